package checkout

import "errors"

// Error kinds returned by the service. Callers classify with errors.Is; the
// wrapped message carries the detail.
var (
	ErrValidation    = errors.New("invalid request")
	ErrNotFound      = errors.New("not found")
	ErrAuthorization = errors.New("unauthorized payment verification")
	ErrSignature     = errors.New("invalid signature")
	ErrCapture       = errors.New("payment not captured")
	ErrProvider      = errors.New("payment provider error")
	ErrPersistence   = errors.New("payment store error")
)
