package checkout

import (
	"context"
	"fmt"

	val "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"git.sr.ht/~aondrejcak/chai-api/models"
	"git.sr.ht/~aondrejcak/chai-api/provider"
	"git.sr.ht/~aondrejcak/chai-api/utils"
)

const maxMessageLength = 500

type OrderRequest struct {
	PayerID string
	PayeeID string
	Amount  int64 // major units
	Message string
}

func (r OrderRequest) Validate(minAmount int64) error {
	return val.ValidateStruct(&r,
		val.Field(&r.PayerID, val.Required),
		val.Field(&r.PayeeID, val.Required, val.NotIn(r.PayerID).Error("cannot donate to yourself")),
		val.Field(&r.Amount, val.Required, val.Min(minAmount).Error(fmt.Sprintf("must be at least %d", minAmount))),
		val.Field(&r.Message, val.Length(0, maxMessageLength)),
	)
}

// OrderResult is what the hosted checkout needs to open. Amount is in minor
// units, as the provider reports it.
type OrderResult struct {
	OrderID   string `json:"orderId"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	KeyID     string `json:"keyId"`
	PaymentID string `json:"-"`
}

// CreateOrder mints a provider order and records a pending payment for it.
// Nothing is persisted when the provider call fails.
func (s *Service) CreateOrder(ctx context.Context, req OrderRequest) (*OrderResult, error) {
	ctx, span := s.tracer.Start(ctx, "checkout.create_order")
	defer span.End()

	fail := func(err error) (*OrderResult, error) {
		return nil, utils.SpanErr(span, err)
	}

	if err := req.Validate(s.minAmount); err != nil {
		return fail(fmt.Errorf("%w: %v", ErrValidation, err))
	}

	creator, err := s.creators.FindUserByID(ctx, req.PayeeID)
	if err != nil {
		return fail(fmt.Errorf("%w: could not look up creator: %v", ErrPersistence, err))
	}
	if creator == nil {
		return fail(fmt.Errorf("%w: creator %q", ErrNotFound, req.PayeeID))
	}

	id, err := uuid.NewV7()
	if err != nil {
		return fail(fmt.Errorf("%w: could not generate payment id: %v", ErrPersistence, err))
	}

	order, err := s.provider.CreateOrder(ctx, &provider.OrderRequest{
		Amount:   provider.ToMinor(req.Amount),
		Currency: s.currency,
		Receipt:  "rcpt_" + id.String(),
		Notes: map[string]string{
			"userId":    req.PayerID,
			"creatorId": req.PayeeID,
			"message":   req.Message,
		},
	})
	if err != nil {
		return fail(fmt.Errorf("%w: could not create order: %v", ErrProvider, err))
	}
	span.SetAttributes(attribute.String("payment.order_id", order.ID))

	p := &models.Payment{
		ID:              id.String(),
		Amount:          req.Amount,
		Currency:        s.currency,
		PayerID:         req.PayerID,
		PayeeID:         req.PayeeID,
		Message:         req.Message,
		ProviderOrderID: order.ID,
		Status:          models.PSTATUS_PENDING,
		CreatedAt:       s.now(),
	}
	if err := s.payments.CreatePayment(ctx, p); err != nil {
		log.Error().Err(err).Str("order_id", order.ID).Msg("provider order created but payment record was not saved")
		return fail(fmt.Errorf("%w: could not save payment: %v", ErrPersistence, err))
	}

	s.createdCounter.Add(ctx, 1)
	log.Info().
		Str("payment_id", p.ID).
		Str("order_id", order.ID).
		Str("provider", s.provider.Name()).
		Int64("amount", p.Amount).
		Msg("donation order created")

	currency := order.Currency
	if currency == "" {
		currency = s.currency
	}
	return &OrderResult{
		OrderID:   order.ID,
		Amount:    order.Amount,
		Currency:  currency,
		KeyID:     s.provider.KeyID(),
		PaymentID: p.ID,
	}, nil
}
