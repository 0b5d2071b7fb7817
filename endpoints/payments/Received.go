package payments

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
	"github.com/xuri/excelize/v2"

	"git.sr.ht/~aondrejcak/chai-api/assert"
	"git.sr.ht/~aondrejcak/chai-api/kernel"
	"git.sr.ht/~aondrejcak/chai-api/models"
)

const (
	exportSheet = "Donations"
	xlsxMime    = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type ReceivedView struct {
	PaymentView
	PayerID string `json:"payerId"`
	Message string `json:"message,omitempty"`
}

// Received lists completed donations to the signed in creator.
func (pc *Controller) Received(c *gin.Context) {
	rt := kernel.FromContext(c)
	assert.NotNil(rt, "request runtime missing for %s", c.FullPath())

	list, err := pc.checkout.Received(rt.SpanContext, rt.Identity, cast.ToInt(c.Query("limit")))
	if err != nil {
		fail(rt, err)
		return
	}

	views := make([]ReceivedView, 0, len(list))
	for i := range list {
		views = append(views, ReceivedView{
			PaymentView: viewOf(&list[i]),
			PayerID:     list[i].PayerID,
			Message:     list[i].Message,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"payments": views,
	})
}

func (pc *Controller) Export(c *gin.Context) {
	rt := kernel.FromContext(c)
	assert.NotNil(rt, "request runtime missing for %s", c.FullPath())

	list, err := pc.checkout.Received(rt.SpanContext, rt.Identity, 500)
	if err != nil {
		fail(rt, err)
		return
	}

	rt.StepInto("payments.export")
	f, err := buildWorkbook(list)
	if err != nil {
		rt.E(http.StatusInternalServerError, "Could not build export", err)
		return
	}
	defer func() { _ = f.Close() }()
	rt.StepBack()

	name := fmt.Sprintf("donations-%s.xlsx", time.Now().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Header("Content-Type", xlsxMime)
	c.Status(http.StatusOK)
	if err := f.Write(c.Writer); err != nil {
		_ = rt.MakeError(err)
	}
}

func buildWorkbook(list []models.Payment) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, err
	}

	header := []interface{}{"Date", "Amount", "Currency", "Payer", "Message", "Order ID", "Payment ID"}
	if err := f.SetSheetRow(exportSheet, "A1", &header); err != nil {
		return nil, err
	}

	for i, p := range list {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := []interface{}{
			p.CreatedAt.Format(time.RFC3339),
			p.Amount,
			p.Currency,
			p.PayerID,
			p.Message,
			p.ProviderOrderID,
			p.ProviderPaymentID,
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return nil, err
		}
	}

	return f, nil
}
