package checkout

import (
	"context"
	"errors"
	"sync"
	"time"

	"git.sr.ht/~aondrejcak/chai-api/models"
	"git.sr.ht/~aondrejcak/chai-api/provider"
)

var (
	ErrMockStorage  = errors.New("mock storage error")
	ErrMockProvider = errors.New("mock provider error")
)

// MockStore is an in-memory PaymentStore with the same conditional update
// semantics as the real stores.
type MockStore struct {
	mu       sync.Mutex
	payments map[string]models.Payment

	CreateErr       error
	FindErr         error
	TransitionErr   error
	BeforeTransition func(orderID string)

	TransitionCalls int
}

func NewMockStore() *MockStore {
	return &MockStore{payments: map[string]models.Payment{}}
}

func (m *MockStore) Put(p models.Payment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[p.ProviderOrderID] = p
}

func (m *MockStore) Get(orderID string) (models.Payment, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[orderID]
	return p, ok
}

func (m *MockStore) CreatePayment(_ context.Context, p *models.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return m.CreateErr
	}
	if _, ok := m.payments[p.ProviderOrderID]; ok {
		return errors.New("duplicate provider order id")
	}
	m.payments[p.ProviderOrderID] = *p
	return nil
}

func (m *MockStore) FindPaymentByOrderID(_ context.Context, orderID string) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	p, ok := m.payments[orderID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *MockStore) TransitionPayment(_ context.Context, orderID string, to models.PaymentStatus, paymentID string, at time.Time) (bool, error) {
	if m.BeforeTransition != nil {
		m.BeforeTransition(orderID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.TransitionCalls++
	if m.TransitionErr != nil {
		return false, m.TransitionErr
	}
	p, ok := m.payments[orderID]
	if !ok || p.Status != models.PSTATUS_PENDING {
		return false, nil
	}
	p.Status = to
	p.ProviderPaymentID = paymentID
	p.UpdatedAt = at
	m.payments[orderID] = p
	return true, nil
}

func (m *MockStore) ListPaymentsByPayee(_ context.Context, payeeID string, status models.PaymentStatus, limit int) ([]models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	var out []models.Payment
	for _, p := range m.payments {
		if p.PayeeID == payeeID && p.Status == status && len(out) < limit {
			out = append(out, p)
		}
	}
	return out, nil
}

type MockCreators struct {
	Users map[string]*models.User
	Err   error
}

func (m *MockCreators) FindUserByID(_ context.Context, id string) (*models.User, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Users[id], nil
}

// MockProvider counts calls so tests can assert the provider was not
// contacted.
type MockProvider struct {
	mu               sync.Mutex
	CreateOrderFunc  func(ctx context.Context, req *provider.OrderRequest) (*provider.Order, error)
	FetchPaymentFunc func(ctx context.Context, paymentID string) (*provider.Payment, error)

	// Unsigned makes the provider behave like a gateway whose callbacks
	// carry no signature.
	Unsigned bool

	CreateCalls int
	FetchCalls  int
	LastOrder   *provider.OrderRequest
}

func (m *MockProvider) Name() string         { return "mock" }
func (m *MockProvider) KeyID() string        { return "rzp_test_key" }
func (m *MockProvider) SignsCallbacks() bool { return !m.Unsigned }

func (m *MockProvider) CreateOrder(ctx context.Context, req *provider.OrderRequest) (*provider.Order, error) {
	m.mu.Lock()
	m.CreateCalls++
	m.LastOrder = req
	m.mu.Unlock()

	if m.CreateOrderFunc != nil {
		return m.CreateOrderFunc(ctx, req)
	}
	return &provider.Order{ID: "order_O1", Amount: req.Amount, Currency: req.Currency}, nil
}

func (m *MockProvider) FetchPayment(ctx context.Context, paymentID string) (*provider.Payment, error) {
	m.mu.Lock()
	m.FetchCalls++
	m.mu.Unlock()

	if m.FetchPaymentFunc != nil {
		return m.FetchPaymentFunc(ctx, paymentID)
	}
	return &provider.Payment{ID: paymentID, Status: provider.StatusCaptured}, nil
}

func (m *MockProvider) Fetches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.FetchCalls
}
