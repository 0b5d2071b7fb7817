package payments

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"git.sr.ht/~aondrejcak/chai-api/assert"
	"git.sr.ht/~aondrejcak/chai-api/checkout"
	"git.sr.ht/~aondrejcak/chai-api/kernel"
)

// CreateOrderDto takes the amount in major units, as a number or a string.
type CreateOrderDto struct {
	Amount    decimal.Decimal `json:"amount"`
	CreatorID string          `json:"creatorId"`
	Message   string          `json:"message"`
}

func (pc *Controller) CreateOrder(c *gin.Context) {
	rt := kernel.FromContext(c)
	assert.NotNil(rt, "request runtime missing for %s", c.FullPath())

	var dto CreateOrderDto
	if !rt.BindJSON(&dto) {
		return
	}
	if !dto.Amount.IsInteger() {
		rt.Ef(http.StatusBadRequest, "amount: must be a whole number")
		return
	}

	res, err := pc.checkout.CreateOrder(rt.SpanContext, checkout.OrderRequest{
		PayerID: rt.Identity,
		PayeeID: dto.CreatorID,
		Amount:  dto.Amount.IntPart(),
		Message: dto.Message,
	})
	if err != nil {
		fail(rt, err)
		return
	}

	c.JSON(http.StatusOK, res)
}
