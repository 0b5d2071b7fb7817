package payments

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"git.sr.ht/~aondrejcak/chai-api/checkout"
	"git.sr.ht/~aondrejcak/chai-api/kernel"
	"git.sr.ht/~aondrejcak/chai-api/models"
)

type Checkout interface {
	CreateOrder(ctx context.Context, req checkout.OrderRequest) (*checkout.OrderResult, error)
	Verify(ctx context.Context, req checkout.VerifyRequest) (*models.Payment, error)
	Received(ctx context.Context, payeeID string, limit int) ([]models.Payment, error)
}

type Controller struct {
	checkout Checkout
}

func NewController(svc Checkout) *Controller {
	return &Controller{checkout: svc}
}

// RegisterController mounts the checkout routes; every one of them needs an
// authenticated user, so auth runs first.
func (pc *Controller) RegisterController(rg *gin.RouterGroup, auth gin.HandlerFunc) {
	g := rg.Group("/payment")
	g.Use(auth)
	g.POST("/create-order", pc.CreateOrder)
	g.POST("/verify", pc.Verify)

	received := rg.Group("/payments")
	received.Use(auth)
	received.GET("", pc.Received)
	received.GET("/export", pc.Export)
}

// fail maps checkout errors onto HTTP statuses. Provider and store details
// stay in the logs.
func fail(rt *kernel.RequestRuntime, err error) {
	switch {
	case errors.Is(err, checkout.ErrValidation):
		rt.E(http.StatusBadRequest, err.Error(), err)
	case errors.Is(err, checkout.ErrSignature):
		rt.E(http.StatusBadRequest, "Invalid payment signature", err)
	case errors.Is(err, checkout.ErrCapture):
		rt.E(http.StatusBadRequest, "Payment was not captured", err)
	case errors.Is(err, checkout.ErrAuthorization):
		rt.E(http.StatusForbidden, "Unauthorized payment verification", err)
	case errors.Is(err, checkout.ErrNotFound):
		rt.E(http.StatusNotFound, err.Error(), err)
	case errors.Is(err, checkout.ErrProvider):
		rt.E(http.StatusInternalServerError, "Payment provider error, please retry", err)
	default:
		rt.E(http.StatusInternalServerError, "Internal server error", err)
	}
}
