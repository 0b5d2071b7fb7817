package kernel

import (
	"context"

	"github.com/google/uuid"
	"github.com/matthewhartstonge/argon2"
	"github.com/rs/zerolog/log"

	"git.sr.ht/~aondrejcak/chai-api/models"
)

type userSeeder interface {
	FindUserByLogin(ctx context.Context, login string) (*models.User, error)
	CreateUser(ctx context.Context, u *models.User) error
}

// Seed creates a demo creator account outside production so a fresh
// database has someone to donate to.
func (art *AppRuntime) Seed(ctx context.Context, users userSeeder) error {
	if art.Production() {
		return nil
	}

	existing, err := users.FindUserByLogin(ctx, "demo")
	if err != nil || existing != nil {
		return err
	}

	argon := argon2.DefaultConfig()
	password, err := argon.HashEncoded([]byte("P@ssw0rd123"))
	if err != nil {
		return err
	}

	demo := &models.User{
		ID:           uuid.NewString(),
		Username:     "demo",
		Email:        "demo@example.com",
		Name:         "Demo Creator",
		PasswordHash: string(password),
		Bio:          "Buy me a chai!",
		Goal:         models.Goal{Title: "New microphone", TargetAmount: 5000},
	}
	if err := users.CreateUser(ctx, demo); err != nil {
		return err
	}

	log.Info().Str("user_id", demo.ID).Msg("created demo creator demo@example.com:P@ssw0rd123")
	return nil
}
