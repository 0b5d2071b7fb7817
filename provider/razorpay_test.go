package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestRazorpay(t *testing.T, handler http.HandlerFunc) *Razorpay {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	rp, err := NewRazorpay(RazorpayConfig{
		BaseURL:   srv.URL,
		KeyID:     "rzp_test_key",
		KeySecret: "secret",
		Timeout:   2 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewRazorpay() error = %v", err)
	}
	return rp
}

func TestRazorpayCreateOrder(t *testing.T) {
	var got map[string]interface{}
	rp := newTestRazorpay(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/orders" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "rzp_test_key" || pass != "secret" {
			t.Errorf("basic auth = %q/%q/%v", user, pass, ok)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("missing X-Request-ID header")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"order_O1","amount":10000,"currency":"INR","status":"created"}`))
	})

	order, err := rp.CreateOrder(context.Background(), &OrderRequest{
		Amount:   10000,
		Currency: "INR",
		Receipt:  "rcpt_1",
		Notes:    map[string]string{"payerId": "u1"},
	})
	if err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}
	if order.ID != "order_O1" || order.Amount != 10000 || order.Currency != "INR" {
		t.Errorf("CreateOrder() = %+v", order)
	}
	if got["amount"].(float64) != 10000 {
		t.Errorf("request amount = %v, want 10000", got["amount"])
	}
	if got["receipt"] != "rcpt_1" {
		t.Errorf("request receipt = %v", got["receipt"])
	}
}

func TestRazorpayCreateOrderRejected(t *testing.T) {
	rp := newTestRazorpay(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"amount too small"}}`))
	})

	_, err := rp.CreateOrder(context.Background(), &OrderRequest{Amount: 1, Currency: "INR"})
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("CreateOrder() error = %v, want ErrRejected", err)
	}
	if !strings.Contains(err.Error(), "amount too small") {
		t.Errorf("error %q should carry the provider description", err)
	}
}

func TestRazorpayFetchPayment(t *testing.T) {
	rp := newTestRazorpay(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/payments/pay_P1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"id":"pay_P1","order_id":"order_O1","status":"captured","amount":10000}`))
	})

	p, err := rp.FetchPayment(context.Background(), "pay_P1")
	if err != nil {
		t.Fatalf("FetchPayment() error = %v", err)
	}
	want := Payment{ID: "pay_P1", OrderID: "order_O1", Status: StatusCaptured, Amount: 10000}
	if *p != want {
		t.Errorf("FetchPayment() = %+v, want %+v", *p, want)
	}
}

func TestRazorpayFetchPaymentUnknown(t *testing.T) {
	rp := newTestRazorpay(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"The id provided does not exist"}}`))
	})

	_, err := rp.FetchPayment(context.Background(), "pay_missing")
	if !errors.Is(err, ErrUnknownPayment) {
		t.Fatalf("FetchPayment() error = %v, want ErrUnknownPayment", err)
	}
}

func TestRazorpayServerError(t *testing.T) {
	rp := newTestRazorpay(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := rp.FetchPayment(context.Background(), "pay_P1")
	if err == nil {
		t.Fatal("FetchPayment() expected error")
	}
	if errors.Is(err, ErrUnknownPayment) || errors.Is(err, ErrRejected) {
		t.Errorf("5xx should not be classified as a business rejection: %v", err)
	}
}

func TestRazorpayTimeout(t *testing.T) {
	rp := newTestRazorpay(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		_, _ = w.Write([]byte(`{}`))
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	if _, err := rp.FetchPayment(ctx, "pay_P1"); err == nil {
		t.Fatal("FetchPayment() expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > 250*time.Millisecond {
		t.Errorf("FetchPayment() took %v, context deadline not honoured", elapsed)
	}
}

func TestNewRazorpayRequiresCredentials(t *testing.T) {
	if _, err := NewRazorpay(RazorpayConfig{KeyID: "only-id"}); err == nil {
		t.Error("NewRazorpay() without secret should fail")
	}
}

func TestMinorUnits(t *testing.T) {
	if got := ToMinor(100); got != 10000 {
		t.Errorf("ToMinor(100) = %d", got)
	}
	if got := FromMinor(12345).StringFixed(2); got != "123.45" {
		t.Errorf("FromMinor(12345) = %s", got)
	}
	if got, err := ParseMajor("100.00"); err != nil || got != 10000 {
		t.Errorf("ParseMajor(100.00) = %d, %v", got, err)
	}
	if _, err := ParseMajor("abc"); err == nil {
		t.Error("ParseMajor(abc) expected error")
	}
}

func TestPayPalStatus(t *testing.T) {
	cases := map[string]string{
		"COMPLETED": StatusCaptured,
		"APPROVED":  "authorized",
		"VOIDED":    "voided",
	}
	for in, want := range cases {
		if got := payPalStatus(in); got != want {
			t.Errorf("payPalStatus(%q) = %q, want %q", in, got, want)
		}
	}
}
