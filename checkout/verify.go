package checkout

import (
	"context"
	"errors"
	"fmt"

	val "github.com/go-ozzo/ozzo-validation"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"git.sr.ht/~aondrejcak/chai-api/models"
	"git.sr.ht/~aondrejcak/chai-api/provider"
	"git.sr.ht/~aondrejcak/chai-api/utils"
)

type VerifyRequest struct {
	RequesterID       string
	ProviderOrderID   string
	ProviderPaymentID string
	Signature         string
}

// validate requires a signature only when the provider signs its callbacks.
func (r VerifyRequest) validate(signed bool) error {
	var signature []val.Rule
	if signed {
		signature = append(signature, val.Required)
	}
	return val.ValidateStruct(&r,
		val.Field(&r.RequesterID, val.Required),
		val.Field(&r.ProviderOrderID, val.Required),
		val.Field(&r.ProviderPaymentID, val.Required),
		val.Field(&r.Signature, signature...),
	)
}

// Verify confirms a checkout callback against the stored record and the
// provider, in this order: lookup, ownership, terminal replay, signature,
// capture, commit. Only signature and capture failures persist a failed
// status; every other error leaves the record untouched.
func (s *Service) Verify(ctx context.Context, req VerifyRequest) (*models.Payment, error) {
	if err := req.validate(s.signer != nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	// Identical concurrent retries share one provider round trip. The shared
	// call is detached from the first caller so its disconnect cannot fail
	// the others.
	key := req.RequesterID + "|" + req.ProviderOrderID + "|" + req.ProviderPaymentID + "|" + req.Signature
	ch := s.flight.DoChan(key, func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		return s.verify(ctx, req)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			log.Warn().Str("order_id", req.ProviderOrderID).Msg("concurrent duplicate verification coalesced")
		}
		if res.Err != nil {
			return nil, res.Err
		}
		p := *res.Val.(*models.Payment)
		return &p, nil
	}
}

func (s *Service) verify(ctx context.Context, req VerifyRequest) (*models.Payment, error) {
	ctx, span := s.tracer.Start(ctx, "checkout.verify",
		trace.WithAttributes(attribute.String("payment.order_id", req.ProviderOrderID)))
	defer span.End()

	p, err := s.payments.FindPaymentByOrderID(ctx, req.ProviderOrderID)
	if err != nil {
		return nil, utils.SpanErr(span, fmt.Errorf("%w: could not look up payment: %v", ErrPersistence, err))
	}
	if p == nil {
		return nil, utils.SpanErr(span, fmt.Errorf("%w: payment for order %q", ErrNotFound, req.ProviderOrderID))
	}

	if p.PayerID != req.RequesterID {
		log.Warn().
			Str("order_id", p.ProviderOrderID).
			Str("requester_id", req.RequesterID).
			Msg("verification attempted by a user other than the payer")
		return nil, utils.SpanErr(span, fmt.Errorf("%w: payment belongs to another user", ErrAuthorization))
	}

	if p.Status.Terminal() {
		return s.decided(ctx, span, p, req)
	}

	if !s.authentic(req) {
		return s.commit(ctx, span, p, models.PSTATUS_FAILED, req,
			fmt.Errorf("%w: callback signature does not match", ErrSignature))
	}

	remote, err := s.provider.FetchPayment(ctx, req.ProviderPaymentID)
	if err != nil {
		s.record(ctx, "provider_error")
		return nil, utils.SpanErr(span, fmt.Errorf("%w: could not fetch payment status: %v", ErrProvider, err))
	}

	if reason := captureProblem(p, remote); reason != "" {
		return s.commit(ctx, span, p, models.PSTATUS_FAILED, req,
			fmt.Errorf("%w: %s", ErrCapture, reason))
	}

	return s.commit(ctx, span, p, models.PSTATUS_COMPLETED, req, nil)
}

// authentic checks the callback against the shared secret. Providers that do
// not sign callbacks hand back the order id as the payment id; their callback
// is only trusted once FetchPayment confirms it.
func (s *Service) authentic(req VerifyRequest) bool {
	if s.signer == nil {
		return req.ProviderPaymentID == req.ProviderOrderID
	}
	return s.signer.Verify(req.ProviderOrderID, req.ProviderPaymentID, req.Signature)
}

func captureProblem(p *models.Payment, remote *provider.Payment) string {
	switch {
	case remote.Status != provider.StatusCaptured:
		return fmt.Sprintf("provider reports status %q", remote.Status)
	case remote.OrderID != "" && remote.OrderID != p.ProviderOrderID:
		return "payment belongs to a different order"
	case remote.Amount != 0 && remote.Amount != provider.ToMinor(p.Amount):
		return fmt.Sprintf("captured amount %d does not match order amount %d", remote.Amount, provider.ToMinor(p.Amount))
	}
	return ""
}

// commit applies the conditional pending -> terminal write. cause is the
// error returned to the caller for a failed transition.
func (s *Service) commit(ctx context.Context, span trace.Span, p *models.Payment, to models.PaymentStatus, req VerifyRequest, cause error) (*models.Payment, error) {
	at := s.now()
	ok, err := s.payments.TransitionPayment(ctx, p.ProviderOrderID, to, req.ProviderPaymentID, at)
	if err != nil {
		return nil, utils.SpanErr(span, fmt.Errorf("%w: could not update payment: %v", ErrPersistence, err))
	}

	if !ok {
		// another verification decided the record first
		current, err := s.payments.FindPaymentByOrderID(ctx, p.ProviderOrderID)
		if err != nil {
			return nil, utils.SpanErr(span, fmt.Errorf("%w: could not reload payment: %v", ErrPersistence, err))
		}
		if current == nil || !current.Status.Terminal() {
			return nil, utils.SpanErr(span, fmt.Errorf("%w: conditional update lost but payment is not final", ErrPersistence))
		}
		log.Warn().Str("order_id", p.ProviderOrderID).Str("status", string(current.Status)).Msg("payment was finalized by a concurrent verification")
		return s.decided(ctx, span, current, req)
	}

	p.Status = to
	p.ProviderPaymentID = req.ProviderPaymentID
	p.UpdatedAt = at
	span.SetAttributes(attribute.String("payment.status", string(to)))

	if cause != nil {
		s.record(ctx, outcome(cause))
		log.Info().Str("order_id", p.ProviderOrderID).Err(cause).Msg("payment marked failed")
		return nil, utils.SpanErr(span, cause)
	}

	s.record(ctx, "completed")
	log.Info().
		Str("payment_id", p.ID).
		Str("order_id", p.ProviderOrderID).
		Int64("amount", p.Amount).
		Msg("payment completed")

	if s.OnCompleted != nil {
		s.OnCompleted(context.WithoutCancel(ctx), *p)
	}
	return p, nil
}

// decided answers for a record that is already terminal without contacting
// the provider. A replay of the exact successful callback gets the same
// payload back; anything else is rejected.
func (s *Service) decided(ctx context.Context, span trace.Span, p *models.Payment, req VerifyRequest) (*models.Payment, error) {
	switch {
	case p.Status == models.PSTATUS_COMPLETED && p.ProviderPaymentID == req.ProviderPaymentID:
		if !s.authentic(req) {
			return nil, utils.SpanErr(span, fmt.Errorf("%w: callback signature does not match", ErrSignature))
		}
		s.record(ctx, "replayed")
		log.Warn().Str("order_id", p.ProviderOrderID).Msg("duplicate verification of a completed payment")
		return p, nil
	case p.Status == models.PSTATUS_COMPLETED:
		return nil, utils.SpanErr(span, fmt.Errorf("%w: payment already completed with a different payment id", ErrValidation))
	default:
		s.record(ctx, "replayed_failed")
		return nil, utils.SpanErr(span, fmt.Errorf("%w: payment has already failed", ErrValidation))
	}
}

func (s *Service) record(ctx context.Context, result string) {
	s.verifiedCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", result)))
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrSignature):
		return "signature_failed"
	case errors.Is(err, ErrCapture):
		return "capture_failed"
	default:
		return "failed"
	}
}
