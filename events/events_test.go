package events

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/keighl/postmark"

	"git.sr.ht/~aondrejcak/chai-api/models"
)

var ErrMockHandler = errors.New("mock handler error")

type MockHandler struct {
	mu         sync.Mutex
	HandleFunc func(ctx context.Context, ev DonationCompleted) error
	Events     []DonationCompleted
}

func (m *MockHandler) Name() string { return "mock" }

func (m *MockHandler) Handle(ctx context.Context, ev DonationCompleted) error {
	m.mu.Lock()
	m.Events = append(m.Events, ev)
	m.mu.Unlock()
	if m.HandleFunc != nil {
		return m.HandleFunc(ctx, ev)
	}
	return nil
}

func (m *MockHandler) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Events)
}

type MockMailer struct {
	SendFunc func(email postmark.Email) (postmark.EmailResponse, error)
	Sent     []postmark.Email
}

func (m *MockMailer) SendEmail(email postmark.Email) (postmark.EmailResponse, error) {
	m.Sent = append(m.Sent, email)
	if m.SendFunc != nil {
		return m.SendFunc(email)
	}
	return postmark.EmailResponse{MessageID: "msg-1"}, nil
}

type MockUsers map[string]*models.User

func (m MockUsers) FindUserByID(_ context.Context, id string) (*models.User, error) {
	return m[id], nil
}

type MockSQS struct {
	Inputs []*sqs.SendMessageInput
	Err    error
}

func (m *MockSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	m.Inputs = append(m.Inputs, in)
	if m.Err != nil {
		return nil, m.Err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("sqs-1")}, nil
}

func testEvent() DonationCompleted {
	return FromPayment(models.Payment{
		ID:                "pmt_1",
		Amount:            100,
		Currency:          "INR",
		PayerID:           "payer",
		PayeeID:           "creator",
		Message:           "<b>thanks</b>",
		ProviderOrderID:   "order_1",
		ProviderPaymentID: "pay_1",
		Status:            models.PSTATUS_COMPLETED,
	})
}

func TestDispatchRunsAllHandlers(t *testing.T) {
	ok := &MockHandler{}
	failing := &MockHandler{HandleFunc: func(context.Context, DonationCompleted) error { return ErrMockHandler }}

	d := NewDispatcher(time.Second, failing, ok)
	err := d.Dispatch(context.Background(), testEvent())
	if !errors.Is(err, ErrMockHandler) {
		t.Errorf("Dispatch() error = %v, want ErrMockHandler", err)
	}
	if ok.Count() != 1 || failing.Count() != 1 {
		t.Errorf("handler calls = %d/%d, want 1/1", ok.Count(), failing.Count())
	}
}

func TestDispatchAsyncOutlivesCaller(t *testing.T) {
	var got error
	h := &MockHandler{HandleFunc: func(ctx context.Context, _ DonationCompleted) error {
		time.Sleep(20 * time.Millisecond)
		got = ctx.Err()
		return got
	}}
	d := NewDispatcher(time.Second, h)

	ctx, cancel := context.WithCancel(context.Background())
	d.OnCompleted(ctx, models.Payment{ID: "pmt_1"})
	cancel()
	d.Wait()

	if h.Count() != 1 {
		t.Fatalf("handler calls = %d, want 1", h.Count())
	}
	if got != nil {
		t.Errorf("handler saw %v, request cancellation must not reach it", got)
	}
}

func TestDispatchAsyncTimeout(t *testing.T) {
	var got error
	h := &MockHandler{HandleFunc: func(ctx context.Context, _ DonationCompleted) error {
		<-ctx.Done()
		got = ctx.Err()
		return got
	}}
	d := NewDispatcher(20*time.Millisecond, h)
	d.DispatchAsync(context.Background(), testEvent())
	d.Wait()

	if !errors.Is(got, context.DeadlineExceeded) {
		t.Errorf("handler context error = %v, want deadline exceeded", got)
	}
}

func TestMailHandler(t *testing.T) {
	mailer := &MockMailer{}
	users := MockUsers{
		"creator": {ID: "creator", Email: "creator@example.com"},
		"payer":   {ID: "payer", Username: "alice"},
	}
	h := NewMailHandler(mailer, users, "chai@example.com")

	if err := h.Handle(context.Background(), testEvent()); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if len(mailer.Sent) != 1 {
		t.Fatalf("sent %d emails, want 1", len(mailer.Sent))
	}
	email := mailer.Sent[0]
	if email.To != "creator@example.com" || email.From != "chai@example.com" {
		t.Errorf("email addressed %s -> %s", email.From, email.To)
	}
	if !strings.Contains(email.Subject, "alice") {
		t.Errorf("subject %q should name the payer", email.Subject)
	}
	if strings.Contains(email.HtmlBody, "<b>") {
		t.Errorf("message must be escaped in html body: %s", email.HtmlBody)
	}
}

func TestMailHandlerSkipsWithoutEmail(t *testing.T) {
	mailer := &MockMailer{}
	h := NewMailHandler(mailer, MockUsers{}, "chai@example.com")

	if err := h.Handle(context.Background(), testEvent()); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if len(mailer.Sent) != 0 {
		t.Error("no email should be sent to an unknown creator")
	}
}

func TestMailHandlerRejected(t *testing.T) {
	mailer := &MockMailer{SendFunc: func(postmark.Email) (postmark.EmailResponse, error) {
		return postmark.EmailResponse{ErrorCode: 406, Message: "Inactive recipient"}, nil
	}}
	h := NewMailHandler(mailer, MockUsers{"creator": {Email: "creator@example.com"}}, "chai@example.com")

	if err := h.Handle(context.Background(), testEvent()); err == nil {
		t.Error("Handle() should report a postmark rejection")
	}
}

func TestQueueHandler(t *testing.T) {
	client := &MockSQS{}
	h := NewQueueHandler(client, "https://sqs.ap-south-1.amazonaws.com/123/donations.fifo")

	if err := h.Handle(context.Background(), testEvent()); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if len(client.Inputs) != 1 {
		t.Fatalf("sent %d messages, want 1", len(client.Inputs))
	}
	in := client.Inputs[0]
	if aws.ToString(in.MessageGroupId) != "creator" || aws.ToString(in.MessageDeduplicationId) != "pmt_1" {
		t.Errorf("fifo attributes = %q/%q", aws.ToString(in.MessageGroupId), aws.ToString(in.MessageDeduplicationId))
	}

	var ev DonationCompleted
	if err := json.Unmarshal([]byte(aws.ToString(in.MessageBody)), &ev); err != nil {
		t.Fatalf("message body is not json: %v", err)
	}
	if ev.ProviderOrderID != "order_1" || ev.Amount != 100 {
		t.Errorf("published event = %+v", ev)
	}
}

func TestQueueHandlerError(t *testing.T) {
	client := &MockSQS{Err: ErrMockHandler}
	h := NewQueueHandler(client, "https://sqs.ap-south-1.amazonaws.com/123/donations")

	if err := h.Handle(context.Background(), testEvent()); !errors.Is(err, ErrMockHandler) {
		t.Errorf("Handle() error = %v", err)
	}
	if client.Inputs[0].MessageGroupId != nil {
		t.Error("standard queues take no message group")
	}
}
