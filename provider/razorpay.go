package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cast"
	"github.com/valyala/fasthttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"git.sr.ht/~aondrejcak/chai-api/utils"
)

const DefaultRazorpayURL = "https://api.razorpay.com"

type RazorpayConfig struct {
	BaseURL   string
	KeyID     string
	KeySecret string
	Timeout   time.Duration
}

type Razorpay struct {
	client  *fasthttp.Client
	baseURL string
	keyID   string
	auth    string
	timeout time.Duration
	tracer  trace.Tracer
}

func NewRazorpay(cfg RazorpayConfig) (*Razorpay, error) {
	if cfg.KeyID == "" || cfg.KeySecret == "" {
		return nil, errors.New("razorpay: key id and key secret are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultRazorpayURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	return &Razorpay{
		client: &fasthttp.Client{
			Name:                "chai-api",
			ReadTimeout:         cfg.Timeout,
			WriteTimeout:        cfg.Timeout,
			MaxIdleConnDuration: time.Minute,
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		keyID:   cfg.KeyID,
		auth:    "Basic " + base64.StdEncoding.EncodeToString([]byte(cfg.KeyID+":"+cfg.KeySecret)),
		timeout: cfg.Timeout,
		tracer:  otel.Tracer("provider.razorpay"),
	}, nil
}

func (r *Razorpay) Name() string {
	return "razorpay"
}

func (r *Razorpay) KeyID() string {
	return r.keyID
}

func (r *Razorpay) SignsCallbacks() bool {
	return true
}

func (r *Razorpay) CreateOrder(ctx context.Context, req *OrderRequest) (*Order, error) {
	ctx, span := r.tracer.Start(ctx, "razorpay.orders.create")
	defer span.End()

	notes := make(map[string]string, len(req.Notes))
	for k, v := range req.Notes {
		notes[k] = v
	}

	var res map[string]interface{}
	err := r.do(ctx, span, fasthttp.MethodPost, "/v1/orders", map[string]interface{}{
		"amount":   req.Amount,
		"currency": req.Currency,
		"receipt":  req.Receipt,
		"notes":    notes,
	}, &res)
	if err != nil {
		return nil, err
	}

	order := &Order{
		ID:       cast.ToString(res["id"]),
		Amount:   cast.ToInt64(res["amount"]),
		Currency: cast.ToString(res["currency"]),
	}
	if order.ID == "" {
		return nil, utils.SpanErrf(span, "razorpay: order response carried no id")
	}
	span.SetAttributes(attribute.String("razorpay.order_id", order.ID))

	return order, nil
}

func (r *Razorpay) FetchPayment(ctx context.Context, paymentID string) (*Payment, error) {
	ctx, span := r.tracer.Start(ctx, "razorpay.payments.fetch")
	defer span.End()

	var res map[string]interface{}
	if err := r.do(ctx, span, fasthttp.MethodGet, "/v1/payments/"+url.PathEscape(paymentID), nil, &res); err != nil {
		return nil, err
	}

	p := &Payment{
		ID:      cast.ToString(res["id"]),
		OrderID: cast.ToString(res["order_id"]),
		Status:  cast.ToString(res["status"]),
		Amount:  cast.ToInt64(res["amount"]),
	}
	span.SetAttributes(attribute.String("razorpay.payment_status", p.Status))

	return p, nil
}

func (r *Razorpay) do(ctx context.Context, span trace.Span, method, path string, body interface{}, out interface{}) error {
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	rsp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(rsp)

	req.SetRequestURI(r.baseURL + path)
	req.Header.SetMethod(method)
	req.Header.Set("Authorization", r.auth)

	requestId, err := uuid.NewV7()
	if err != nil {
		return utils.SpanErrf(span, "razorpay: could not generate request id: %v", err)
	}
	req.Header.Set("X-Request-ID", requestId.String())
	span.SetAttributes(attribute.String("razorpay.request_id", requestId.String()))

	if body != nil {
		j, err := json.Marshal(body)
		if err != nil {
			return utils.SpanErrf(span, "razorpay: could not marshal request: %v", err)
		}
		req.Header.SetContentType("application/json")
		req.SetBody(j)
	}

	timeout := r.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 {
		return utils.SpanErr(span, fmt.Errorf("razorpay %s %s: %w", method, path, context.DeadlineExceeded))
	}

	if err := r.client.DoTimeout(req, rsp, timeout); err != nil {
		return utils.SpanErr(span, fmt.Errorf("razorpay %s %s: %w", method, path, err))
	}

	status := rsp.StatusCode()
	if status != fasthttp.StatusOK {
		return utils.SpanHttpErr(span, status, rsp.Body(), r.statusErr(method, path, status, rsp.Body()))
	}

	if err := json.Unmarshal(rsp.Body(), out); err != nil {
		return utils.SpanErrf(span, "razorpay: could not unmarshal response: %v", err)
	}
	return nil
}

func (r *Razorpay) statusErr(method, path string, status int, body []byte) error {
	var e struct {
		Error struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err != nil {
		log.Debug().Err(err).Int("status", status).Msg("razorpay error body is not json")
	}

	switch {
	case status == fasthttp.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrUnknownPayment, e.Error.Description)
	case status == fasthttp.StatusBadRequest && strings.HasPrefix(path, "/v1/payments/"):
		return fmt.Errorf("%w: %s", ErrUnknownPayment, e.Error.Description)
	case status >= 400 && status < 500:
		return fmt.Errorf("%w: razorpay %s %s returned %d: %s", ErrRejected, method, path, status, e.Error.Description)
	default:
		return fmt.Errorf("razorpay %s %s returned a non-OK status code: %d", method, path, status)
	}
}
