package kernel

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"git.sr.ht/~aondrejcak/chai-api/store"
)

func (art *AppRuntime) dialector() (gorm.Dialector, error) {
	switch art.DatabaseDriver {
	case "mysql":
		return mysql.Open(art.DatabaseDSN), nil
	case "postgres":
		return postgres.Open(art.DatabaseDSN), nil
	case "sqlite":
		return sqlite.Open(art.DatabaseDSN), nil
	default:
		return nil, fmt.Errorf("unsupported DATABASE_DRIVER %q", art.DatabaseDriver)
	}
}

func (art *AppRuntime) PrepareDatabase() error {
	dialector, err := art.dialector()
	if err != nil {
		return err
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: newGormLogger(log.Logger), TranslateError: true})
	if err != nil {
		return err
	}

	if err = db.Use(otelgorm.NewPlugin(
		otelgorm.WithAttributes(),
		otelgorm.WithTracerProvider(otel.GetTracerProvider()),
	)); err != nil {
		return err
	}

	art.DatabaseClient = db
	return nil
}

func (art *AppRuntime) PrepareMongo(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(art.MongoURI))
	if err != nil {
		return err
	}
	if err = client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("pinging mongo: %w", err)
	}

	art.MongoClient = client
	return nil
}

// OpenStore connects the configured backend and migrates it.
func (art *AppRuntime) OpenStore(ctx context.Context) (store.Store, error) {
	var s store.Store
	switch art.Store {
	case "mongo":
		if err := art.PrepareMongo(ctx); err != nil {
			return nil, err
		}
		s = store.NewMongoStore(art.MongoClient, art.MongoDatabase)
	default:
		if err := art.PrepareDatabase(); err != nil {
			return nil, err
		}
		s = store.NewGormStore(art.DatabaseClient)
	}

	if err := s.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrating %s store: %w", art.Store, err)
	}
	log.Info().Str("store", art.Store).Msg("store ready")
	return s, nil
}
