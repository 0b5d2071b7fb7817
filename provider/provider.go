// Package provider talks to the external payment gateway: it mints remote
// orders and reports the authoritative status of a payment attempt.
package provider

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// StatusCaptured is the only status that proves funds were collected.
const StatusCaptured = "captured"

var (
	ErrUnknownPayment = errors.New("provider: unknown payment")
	ErrRejected       = errors.New("provider: request rejected")
)

var hundred = decimal.NewFromInt(100)

type OrderRequest struct {
	Amount   int64 // minor units
	Currency string
	Receipt  string
	Notes    map[string]string
}

type Order struct {
	ID       string
	Amount   int64 // minor units
	Currency string
}

type Payment struct {
	ID      string
	OrderID string
	Status  string
	Amount  int64 // minor units, zero when the provider did not report one
}

// Provider is implemented by every gateway adapter. KeyID is the public
// identifier the hosted checkout needs; it is never secret.
type Provider interface {
	Name() string
	KeyID() string
	// SignsCallbacks reports whether the hosted checkout signs its callback
	// with the shared secret. Unsigned callbacks are only trusted after
	// FetchPayment has confirmed them with the provider.
	SignsCallbacks() bool
	CreateOrder(ctx context.Context, req *OrderRequest) (*Order, error)
	FetchPayment(ctx context.Context, paymentID string) (*Payment, error)
}

// ToMinor converts major currency units to the provider's minor units.
func ToMinor(amount int64) int64 {
	return decimal.NewFromInt(amount).Mul(hundred).IntPart()
}

// FromMinor converts minor units back to a major-unit decimal.
func FromMinor(minor int64) decimal.Decimal {
	return decimal.NewFromInt(minor).Div(hundred)
}

// ParseMajor parses a decimal string such as "100.00" into minor units.
func ParseMajor(value string) (int64, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, err
	}
	return d.Mul(hundred).Round(0).IntPart(), nil
}
