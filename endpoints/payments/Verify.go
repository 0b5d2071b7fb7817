package payments

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"git.sr.ht/~aondrejcak/chai-api/assert"
	"git.sr.ht/~aondrejcak/chai-api/checkout"
	"git.sr.ht/~aondrejcak/chai-api/kernel"
	"git.sr.ht/~aondrejcak/chai-api/models"
)

// VerifyDto accepts the field names the Razorpay checkout posts back as
// well as provider neutral ones.
type VerifyDto struct {
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpaySignature string `json:"razorpay_signature"`

	ProviderPaymentID string `json:"providerPaymentId"`
	ProviderOrderID   string `json:"providerOrderId"`
	ClientSignature   string `json:"clientSignature"`
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func (dto VerifyDto) request(requesterID string) checkout.VerifyRequest {
	return checkout.VerifyRequest{
		RequesterID:       requesterID,
		ProviderOrderID:   firstOf(dto.ProviderOrderID, dto.RazorpayOrderID),
		ProviderPaymentID: firstOf(dto.ProviderPaymentID, dto.RazorpayPaymentID),
		Signature:         firstOf(dto.ClientSignature, dto.RazorpaySignature),
	}
}

type PaymentView struct {
	ID        string               `json:"id"`
	Amount    int64                `json:"amount"`
	Currency  string               `json:"currency"`
	Status    models.PaymentStatus `json:"status"`
	CreatedAt time.Time            `json:"createdAt"`
}

func viewOf(p *models.Payment) PaymentView {
	return PaymentView{
		ID:        p.ID,
		Amount:    p.Amount,
		Currency:  p.Currency,
		Status:    p.Status,
		CreatedAt: p.CreatedAt,
	}
}

func (pc *Controller) Verify(c *gin.Context) {
	rt := kernel.FromContext(c)
	assert.NotNil(rt, "request runtime missing for %s", c.FullPath())

	var dto VerifyDto
	if !rt.BindJSON(&dto) {
		return
	}

	p, err := pc.checkout.Verify(rt.SpanContext, dto.request(rt.Identity))
	if err != nil {
		fail(rt, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"payment": viewOf(p),
	})
}
