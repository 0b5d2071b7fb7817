// Package checkout issues donation orders and runs the verification
// protocol that moves a payment out of pending.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"git.sr.ht/~aondrejcak/chai-api/models"
	"git.sr.ht/~aondrejcak/chai-api/provider"
)

// PaymentStore persists payment records. Find methods return (nil, nil)
// when nothing matches.
type PaymentStore interface {
	CreatePayment(ctx context.Context, p *models.Payment) error
	FindPaymentByOrderID(ctx context.Context, providerOrderID string) (*models.Payment, error)
	// TransitionPayment moves a pending record to a terminal status. It
	// reports false when the record was no longer pending.
	TransitionPayment(ctx context.Context, providerOrderID string, to models.PaymentStatus, providerPaymentID string, at time.Time) (bool, error)
	ListPaymentsByPayee(ctx context.Context, payeeID string, status models.PaymentStatus, limit int) ([]models.Payment, error)
}

type CreatorLookup interface {
	FindUserByID(ctx context.Context, id string) (*models.User, error)
}

type Config struct {
	Currency  string
	MinAmount int64
	// Secret keys the callback signature. Only providers that sign their
	// callbacks need one.
	Secret string
	// Timeout bounds one verification, provider round trips included.
	Timeout time.Duration
}

type Service struct {
	payments PaymentStore
	creators CreatorLookup
	provider provider.Provider
	signer   *Signer // nil when the provider does not sign callbacks
	timeout  time.Duration

	currency  string
	minAmount int64

	flight singleflight.Group
	tracer trace.Tracer

	createdCounter  metric.Int64Counter
	verifiedCounter metric.Int64Counter

	// OnCompleted runs after a record is committed as completed. It must not
	// block; the verify result does not depend on it.
	OnCompleted func(ctx context.Context, p models.Payment)

	now func() time.Time
}

func NewService(payments PaymentStore, creators CreatorLookup, prov provider.Provider, cfg Config) (*Service, error) {
	if payments == nil || creators == nil || prov == nil {
		return nil, errors.New("checkout: payment store, creator lookup and provider are required")
	}
	var signer *Signer
	if prov.SignsCallbacks() {
		if cfg.Secret == "" {
			return nil, errors.New("checkout: signing secret is required")
		}
		signer = NewSigner(cfg.Secret)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Currency == "" {
		cfg.Currency = "INR"
	}
	if cfg.MinAmount <= 0 {
		cfg.MinAmount = 1
	}

	meter := otel.Meter("checkout")
	created, err := meter.Int64Counter("payments_created_total",
		metric.WithDescription("Total number of donation orders issued"))
	if err != nil {
		return nil, err
	}
	verified, err := meter.Int64Counter("payments_verified_total",
		metric.WithDescription("Total number of verification outcomes by result"))
	if err != nil {
		return nil, err
	}

	return &Service{
		payments:        payments,
		creators:        creators,
		provider:        prov,
		signer:          signer,
		timeout:         cfg.Timeout,
		currency:        cfg.Currency,
		minAmount:       cfg.MinAmount,
		tracer:          otel.Tracer("checkout"),
		createdCounter:  created,
		verifiedCounter: verified,
		now:             time.Now,
	}, nil
}

// Received lists completed donations for a creator, newest first.
func (s *Service) Received(ctx context.Context, payeeID string, limit int) ([]models.Payment, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	payments, err := s.payments.ListPaymentsByPayee(ctx, payeeID, models.PSTATUS_COMPLETED, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return payments, nil
}
