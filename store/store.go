// Package store persists users and payments. Two backends are available,
// a GORM one for relational databases and a MongoDB one; both honour the
// same contract. Lookups return (nil, nil) when nothing matches.
package store

import (
	"context"
	"errors"
	"time"

	"git.sr.ht/~aondrejcak/chai-api/models"
)

// ErrDuplicate is returned when a unique field (email, username, provider
// order id) is already taken.
var ErrDuplicate = errors.New("duplicate record")

type Store interface {
	Migrate(ctx context.Context) error
	Close(ctx context.Context) error

	CreatePayment(ctx context.Context, p *models.Payment) error
	FindPaymentByOrderID(ctx context.Context, providerOrderID string) (*models.Payment, error)
	TransitionPayment(ctx context.Context, providerOrderID string, to models.PaymentStatus, providerPaymentID string, at time.Time) (bool, error)
	ListPaymentsByPayee(ctx context.Context, payeeID string, status models.PaymentStatus, limit int) ([]models.Payment, error)

	CreateUser(ctx context.Context, u *models.User) error
	FindUserByID(ctx context.Context, id string) (*models.User, error)
	FindUserByLogin(ctx context.Context, login string) (*models.User, error)
	FindUserConflict(ctx context.Context, email, username string) (*models.User, error)
}
