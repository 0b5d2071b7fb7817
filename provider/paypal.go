package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/plutov/paypal/v4"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"git.sr.ht/~aondrejcak/chai-api/utils"
)

type PayPalConfig struct {
	ClientID     string
	ClientSecret string
	Sandbox      bool
	// BaseURL overrides the live/sandbox API base.
	BaseURL string
	Timeout time.Duration
}

// PayPal adapts PayPal orders. The hosted checkout hands back the approved
// order id, so the payment id and the order id are the same value here.
// Orders are created with the CAPTURE intent and captured server side when
// the verifier first fetches them.
type PayPal struct {
	client   *paypal.Client
	clientID string
	timeout  time.Duration
	tracer   trace.Tracer
}

func NewPayPal(ctx context.Context, cfg PayPalConfig) (*PayPal, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("paypal: client id and client secret are required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	environment := paypal.APIBaseLive
	if cfg.Sandbox {
		environment = paypal.APIBaseSandBox
	}
	if cfg.BaseURL != "" {
		environment = strings.TrimRight(cfg.BaseURL, "/")
	}

	client, err := paypal.NewClient(cfg.ClientID, cfg.ClientSecret, environment)
	if err != nil {
		return nil, err
	}
	client.SetHTTPClient(&http.Client{Timeout: cfg.Timeout})

	tokenCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if _, err = client.GetAccessToken(tokenCtx); err != nil {
		return nil, fmt.Errorf("paypal: could not obtain access token: %w", err)
	}

	log.Info().Bool("sandbox", cfg.Sandbox).Msg("paypal payment provider initialized")
	return &PayPal{
		client:   client,
		clientID: cfg.ClientID,
		timeout:  cfg.Timeout,
		tracer:   otel.Tracer("provider.paypal"),
	}, nil
}

func (p *PayPal) Name() string {
	return "paypal"
}

func (p *PayPal) KeyID() string {
	return p.clientID
}

// SignsCallbacks is false: the PayPal buttons only return the order id.
func (p *PayPal) SignsCallbacks() bool {
	return false
}

func (p *PayPal) CreateOrder(ctx context.Context, req *OrderRequest) (*Order, error) {
	ctx, span := p.tracer.Start(ctx, "paypal.orders.create")
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	currency := strings.ToUpper(req.Currency)
	units := []paypal.PurchaseUnitRequest{
		{
			ReferenceID: req.Receipt,
			Amount: &paypal.PurchaseUnitAmount{
				Currency: currency,
				Value:    FromMinor(req.Amount).StringFixed(2),
			},
			Description: "Virtual chai donation",
		},
	}

	order, err := p.client.CreateOrder(ctx, "CAPTURE", units, nil, nil)
	if err != nil {
		return nil, utils.SpanErr(span, fmt.Errorf("paypal: could not create order: %w", err))
	}
	span.SetAttributes(attribute.String("paypal.order_id", order.ID))

	return &Order{ID: order.ID, Amount: req.Amount, Currency: currency}, nil
}

// FetchPayment reads the order and captures it when the buyer has approved
// it but nothing has been collected yet.
func (p *PayPal) FetchPayment(ctx context.Context, paymentID string) (*Payment, error) {
	ctx, span := p.tracer.Start(ctx, "paypal.orders.get")
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	order, err := p.client.GetOrder(ctx, paymentID)
	if err != nil {
		var pe *paypal.ErrorResponse
		if errors.As(err, &pe) && pe.Response != nil && pe.Response.StatusCode == http.StatusNotFound {
			return nil, utils.SpanErr(span, fmt.Errorf("%w: %s", ErrUnknownPayment, paymentID))
		}
		return nil, utils.SpanErr(span, fmt.Errorf("paypal: could not fetch order: %w", err))
	}

	status := order.Status
	if status == "APPROVED" {
		captured, err := p.client.CaptureOrder(ctx, order.ID, paypal.CaptureOrderRequest{})
		if err != nil {
			return nil, utils.SpanErr(span, fmt.Errorf("paypal: could not capture order: %w", err))
		}
		status = captured.Status
		span.SetAttributes(attribute.Bool("paypal.captured_now", true))
		log.Info().Str("order_id", order.ID).Str("status", status).Msg("paypal order captured")
	}

	res := &Payment{
		ID:      order.ID,
		OrderID: order.ID,
		Status:  payPalStatus(status),
	}
	if len(order.PurchaseUnits) > 0 && order.PurchaseUnits[0].Amount != nil {
		if minor, err := ParseMajor(order.PurchaseUnits[0].Amount.Value); err == nil {
			res.Amount = minor
		}
	}
	span.SetAttributes(attribute.String("paypal.order_status", status))

	return res, nil
}

// payPalStatus maps PayPal order states onto the capture vocabulary used by
// the verifier.
func payPalStatus(status string) string {
	switch status {
	case "COMPLETED":
		return StatusCaptured
	case "APPROVED":
		return "authorized"
	default:
		return strings.ToLower(status)
	}
}
