package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"print-order-service/internal/domain"
	"print-order-service/internal/repository"

	"gorm.io/datatypes"
)

const (
	TestOrderID       = "0b6f1c1e-2f5e-4c55-9a52-4b7c4c2b9a01"
	TestTransactionID = "txn-123"
	TestOrderNumber   = "FP-20260115-0001"
	TestTotal         = int64(24900)
)

var testNow = time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

// quietT lets mock assertions be polled from assert.Eventually.
type quietT struct{}

func (quietT) Logf(string, ...interface{})   {}
func (quietT) Errorf(string, ...interface{}) {}
func (quietT) FailNow()                      {}

func CreateMockOrder(id string, status domain.OrderStatus) *domain.Order {
	return &domain.Order{
		ID:                   id,
		OrderNumber:          TestOrderNumber,
		CustomerName:         "Dana Levi",
		CustomerEmail:        "dana@example.com",
		Status:               status,
		Subtotal:             22900,
		ShippingCost:         2000,
		Total:                TestTotal,
		Currency:             domain.HomeCurrency,
		PaymentProvider:      domain.ProviderPayPlus,
		PaymentTransactionID: TestTransactionID,
		ShippingAddress: datatypes.NewJSONType(domain.ShippingAddress{
			Name:       "Dana Levi",
			Street:     "Herzl 10",
			City:       "Haifa",
			PostalCode: "3303110",
			Phone:      "050-0000000",
		}),
		CreatedAt: testNow,
		UpdatedAt: testNow,
	}
}

func validCreateParams() CreateOrderParams {
	return CreateOrderParams{
		CustomerName:  "Dana Levi",
		CustomerEmail: "dana@example.com",
		Items: []CreateOrderItem{
			{Name: "Pop art print", Quantity: 1, Price: 22900, Style: "Pop Art", Size: "A3", Paper: "canvas"},
		},
		Subtotal:             22900,
		Shipping:             2000,
		Total:                TestTotal,
		PaymentTransactionID: TestTransactionID,
		ShippingAddress: domain.ShippingAddress{
			Street: "Herzl 10",
			City:   "Haifa",
		},
	}
}

// memoryStore enforces the same unique keys as the database schema.
type memoryStore struct {
	mu             sync.Mutex
	orders         map[string]domain.Order
	payments       map[string]domain.PaymentRecord
	orderInserts   int
	paymentInserts int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		orders:   make(map[string]domain.Order),
		payments: make(map[string]domain.PaymentRecord),
	}
}

type memoryOrderRepo struct{ *memoryStore }

type memoryPaymentRepo struct{ *memoryStore }

func (s *memoryStore) inserts() (orders, payments int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orderInserts, s.paymentInserts
}

func (r memoryOrderRepo) Create(ctx context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.OrderNumber == order.OrderNumber ||
			(o.PaymentProvider == order.PaymentProvider && o.PaymentTransactionID == order.PaymentTransactionID) {
			return repository.ErrDuplicate
		}
	}
	r.orders[order.ID] = *order
	r.orderInserts++
	return nil
}

func (r memoryOrderRepo) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, nil
	}
	o.History = append([]domain.StatusHistoryEntry(nil), o.History...)
	return &o, nil
}

func (r memoryOrderRepo) FindByPaymentTransaction(ctx context.Context, provider, transactionID string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.PaymentProvider == provider && o.PaymentTransactionID == transactionID {
			return &o, nil
		}
	}
	return nil, nil
}

func (r memoryOrderRepo) LatestOrderNumber(ctx context.Context, datePrefix string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	latest := ""
	for _, o := range r.orders {
		if strings.HasPrefix(o.OrderNumber, datePrefix+"-") && o.OrderNumber > latest {
			latest = o.OrderNumber
		}
	}
	return latest, nil
}

func (r memoryOrderRepo) ApplyStatusChange(ctx context.Context, change repository.StatusChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[change.OrderID]
	if !ok || o.Status != change.From {
		return repository.ErrConflict
	}
	o.Status = change.To
	entry := change.Entry
	entry.OrderID = o.ID
	o.History = append(o.History, entry)
	r.orders[o.ID] = o
	return nil
}

func (r memoryPaymentRepo) Create(ctx context.Context, record *domain.PaymentRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if p.Provider == record.Provider && p.ExternalTransactionID == record.ExternalTransactionID {
			return repository.ErrDuplicate
		}
	}
	r.payments[record.ID] = *record
	r.paymentInserts++
	return nil
}

func (r memoryPaymentRepo) FindByExternalTransaction(ctx context.Context, provider, transactionID string) (*domain.PaymentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if p.Provider == provider && p.ExternalTransactionID == transactionID {
			return &p, nil
		}
	}
	return nil, nil
}

func (r memoryPaymentRepo) FindSucceededByOrder(ctx context.Context, orderID string) (*domain.PaymentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if p.OrderID == orderID && p.Status == domain.PaymentSucceeded {
			return &p, nil
		}
	}
	return nil, nil
}

func (r memoryPaymentRepo) SumRefundedByOrder(ctx context.Context, orderID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum int64
	for _, p := range r.payments {
		if p.OrderID == orderID && p.Status == domain.PaymentRefunded {
			sum -= p.Amount
		}
	}
	return sum, nil
}
