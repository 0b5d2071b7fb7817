package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// fakePayPal serves the slice of the orders API the adapter uses.
type fakePayPal struct {
	mu          sync.Mutex
	status      string
	delay       time.Duration
	captures    int
	createdBody map[string]interface{}
}

func (f *fakePayPal) Captures() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.captures
}

func (f *fakePayPal) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/v1/oauth2/token":
		_, _ = w.Write([]byte(`{"access_token":"A21","token_type":"Bearer","expires_in":32400}`))

	case r.Method == http.MethodPost && r.URL.Path == "/v2/checkout/orders":
		f.mu.Lock()
		_ = json.NewDecoder(r.Body).Decode(&f.createdBody)
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"ORDER1","status":"CREATED"}`))

	case r.Method == http.MethodGet && r.URL.Path == "/v2/checkout/orders/ORDER1":
		if f.delay > 0 {
			time.Sleep(f.delay)
		}
		f.mu.Lock()
		status := f.status
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{"id":"ORDER1","status":"` + status + `","purchase_units":[{"amount":{"currency_code":"INR","value":"100.00"}}]}`))

	case r.Method == http.MethodPost && r.URL.Path == "/v2/checkout/orders/ORDER1/capture":
		f.mu.Lock()
		f.captures++
		f.status = "COMPLETED"
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"ORDER1","status":"COMPLETED"}`))

	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"name":"RESOURCE_NOT_FOUND","message":"The specified resource does not exist."}`))
	}
}

func newTestPayPal(t *testing.T, fake *fakePayPal, timeout time.Duration) *PayPal {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	pp, err := NewPayPal(context.Background(), PayPalConfig{
		ClientID:     "client",
		ClientSecret: "secret",
		BaseURL:      srv.URL,
		Timeout:      timeout,
	})
	if err != nil {
		t.Fatalf("NewPayPal() error = %v", err)
	}
	return pp
}

func TestPayPalCreateOrder(t *testing.T) {
	fake := &fakePayPal{}
	pp := newTestPayPal(t, fake, 2*time.Second)

	order, err := pp.CreateOrder(context.Background(), &OrderRequest{Amount: 10000, Currency: "inr", Receipt: "rcpt_1"})
	if err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}
	if order.ID != "ORDER1" || order.Amount != 10000 || order.Currency != "INR" {
		t.Errorf("CreateOrder() = %+v", order)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if fake.createdBody["intent"] != "CAPTURE" {
		t.Errorf("intent = %v, want CAPTURE", fake.createdBody["intent"])
	}
	units, _ := fake.createdBody["purchase_units"].([]interface{})
	if len(units) != 1 {
		t.Fatalf("purchase_units = %v", fake.createdBody["purchase_units"])
	}
	amount := units[0].(map[string]interface{})["amount"].(map[string]interface{})
	if amount["value"] != "100.00" || amount["currency_code"] != "INR" {
		t.Errorf("amount = %v", amount)
	}
}

func TestPayPalCapturesApprovedOrder(t *testing.T) {
	fake := &fakePayPal{status: "APPROVED"}
	pp := newTestPayPal(t, fake, 2*time.Second)

	p, err := pp.FetchPayment(context.Background(), "ORDER1")
	if err != nil {
		t.Fatalf("FetchPayment() error = %v", err)
	}
	want := Payment{ID: "ORDER1", OrderID: "ORDER1", Status: StatusCaptured, Amount: 10000}
	if *p != want {
		t.Errorf("FetchPayment() = %+v, want %+v", *p, want)
	}
	if fake.Captures() != 1 {
		t.Errorf("captures = %d, want 1", fake.Captures())
	}

	// already collected: no second capture
	if _, err := pp.FetchPayment(context.Background(), "ORDER1"); err != nil {
		t.Fatalf("second FetchPayment() error = %v", err)
	}
	if fake.Captures() != 1 {
		t.Errorf("captures = %d after the order completed, want 1", fake.Captures())
	}
}

func TestPayPalUnapprovedOrder(t *testing.T) {
	fake := &fakePayPal{status: "CREATED"}
	pp := newTestPayPal(t, fake, 2*time.Second)

	p, err := pp.FetchPayment(context.Background(), "ORDER1")
	if err != nil {
		t.Fatalf("FetchPayment() error = %v", err)
	}
	if p.Status == StatusCaptured || fake.Captures() != 0 {
		t.Errorf("status = %q, captures = %d; an unapproved order must not be captured", p.Status, fake.Captures())
	}
}

func TestPayPalUnknownOrder(t *testing.T) {
	pp := newTestPayPal(t, &fakePayPal{}, 2*time.Second)

	_, err := pp.FetchPayment(context.Background(), "MISSING")
	if !errors.Is(err, ErrUnknownPayment) {
		t.Fatalf("FetchPayment() error = %v, want ErrUnknownPayment", err)
	}
}

func TestPayPalTimeout(t *testing.T) {
	fake := &fakePayPal{status: "COMPLETED", delay: 300 * time.Millisecond}
	pp := newTestPayPal(t, fake, 50*time.Millisecond)

	start := time.Now()
	if _, err := pp.FetchPayment(context.Background(), "ORDER1"); err == nil {
		t.Fatal("FetchPayment() expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > 250*time.Millisecond {
		t.Errorf("FetchPayment() took %v, provider timeout not applied", elapsed)
	}
}

func TestCallbackSigning(t *testing.T) {
	if (&PayPal{}).SignsCallbacks() {
		t.Error("paypal callbacks carry no signature")
	}
	if !(&Razorpay{}).SignsCallbacks() {
		t.Error("razorpay callbacks are signed")
	}
}
