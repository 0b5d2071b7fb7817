// Package events fans a completed donation out to notification handlers.
// Handlers run after the payment is committed; their failures are logged
// and never change the verification outcome.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"git.sr.ht/~aondrejcak/chai-api/models"
)

const TypeDonationCompleted = "donation.completed"

type DonationCompleted struct {
	PaymentID         string    `json:"paymentId"`
	ProviderOrderID   string    `json:"providerOrderId"`
	ProviderPaymentID string    `json:"providerPaymentId"`
	PayerID           string    `json:"payerId"`
	PayeeID           string    `json:"payeeId"`
	Amount            int64     `json:"amount"`
	Currency          string    `json:"currency"`
	Message           string    `json:"message,omitempty"`
	CompletedAt       time.Time `json:"completedAt"`
}

func FromPayment(p models.Payment) DonationCompleted {
	completed := p.UpdatedAt
	if completed.IsZero() {
		completed = time.Now()
	}
	return DonationCompleted{
		PaymentID:         p.ID,
		ProviderOrderID:   p.ProviderOrderID,
		ProviderPaymentID: p.ProviderPaymentID,
		PayerID:           p.PayerID,
		PayeeID:           p.PayeeID,
		Amount:            p.Amount,
		Currency:          p.Currency,
		Message:           p.Message,
		CompletedAt:       completed,
	}
}

type Handler interface {
	Name() string
	Handle(ctx context.Context, ev DonationCompleted) error
}

type Dispatcher struct {
	handlers []Handler
	timeout  time.Duration
	wg       sync.WaitGroup
}

func NewDispatcher(timeout time.Duration, handlers ...Handler) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{handlers: handlers, timeout: timeout}
}

func (d *Dispatcher) Len() int {
	return len(d.handlers)
}

// Dispatch runs every handler concurrently and returns the first error.
// All handlers run to completion even when one fails.
func (d *Dispatcher) Dispatch(ctx context.Context, ev DonationCompleted) error {
	var g errgroup.Group
	for _, h := range d.handlers {
		h := h
		g.Go(func() error {
			if err := h.Handle(ctx, ev); err != nil {
				log.Error().Err(err).Str("handler", h.Name()).Str("payment_id", ev.PaymentID).Msg("event handler failed")
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

// DispatchAsync hands the event to the handlers in the background with its
// own deadline. Cancellation of ctx is not propagated.
func (d *Dispatcher) DispatchAsync(ctx context.Context, ev DonationCompleted) {
	if len(d.handlers) == 0 {
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()
		_ = d.Dispatch(ctx, ev)
	}()
}

// Wait blocks until background dispatches have finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// OnCompleted adapts the dispatcher to the checkout completion hook.
func (d *Dispatcher) OnCompleted(ctx context.Context, p models.Payment) {
	d.DispatchAsync(ctx, FromPayment(p))
}
