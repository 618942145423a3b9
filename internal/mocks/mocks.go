package mocks

import (
	"context"

	"print-order-service/internal/domain"
	"print-order-service/internal/infra"
	"print-order-service/internal/infra/carrier"
	"print-order-service/internal/infra/payplus"
	"print-order-service/internal/repository"

	"github.com/stretchr/testify/mock"
)

type MockOrderRepository struct {
	mock.Mock
}

type MockPaymentRepository struct {
	mock.Mock
}

type MockShipmentRepository struct {
	mock.Mock
}

type MockAuditRepository struct {
	mock.Mock
}

type MockPublisher struct {
	mock.Mock
}

type MockCarrierGateway struct {
	mock.Mock
}

type MockRefunder struct {
	mock.Mock
}

type MockTransformClient struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, message interface{}) error {
	args := m.Called(ctx, topic, message)
	return args.Error(0)
}

func (m *MockOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockOrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderRepository) FindByPaymentTransaction(ctx context.Context, provider, transactionID string) (*domain.Order, error) {
	args := m.Called(ctx, provider, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderRepository) LatestOrderNumber(ctx context.Context, datePrefix string) (string, error) {
	args := m.Called(ctx, datePrefix)
	return args.String(0), args.Error(1)
}

func (m *MockOrderRepository) ApplyStatusChange(ctx context.Context, change repository.StatusChange) error {
	args := m.Called(ctx, change)
	return args.Error(0)
}

func (m *MockPaymentRepository) Create(ctx context.Context, record *domain.PaymentRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockPaymentRepository) FindByExternalTransaction(ctx context.Context, provider, transactionID string) (*domain.PaymentRecord, error) {
	args := m.Called(ctx, provider, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentRecord), args.Error(1)
}

func (m *MockPaymentRepository) FindSucceededByOrder(ctx context.Context, orderID string) (*domain.PaymentRecord, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentRecord), args.Error(1)
}

func (m *MockPaymentRepository) SumRefundedByOrder(ctx context.Context, orderID string) (int64, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockShipmentRepository) Create(ctx context.Context, shipment *domain.Shipment) error {
	args := m.Called(ctx, shipment)
	return args.Error(0)
}

func (m *MockShipmentRepository) FindByID(ctx context.Context, id string) (*domain.Shipment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Shipment), args.Error(1)
}

func (m *MockShipmentRepository) FindActiveByOrder(ctx context.Context, orderID string) (*domain.Shipment, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Shipment), args.Error(1)
}

func (m *MockShipmentRepository) Update(ctx context.Context, shipment *domain.Shipment) error {
	args := m.Called(ctx, shipment)
	return args.Error(0)
}

func (m *MockShipmentRepository) List(ctx context.Context, orderID string, limit, offset int) ([]domain.Shipment, int64, error) {
	args := m.Called(ctx, orderID, limit, offset)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]domain.Shipment), args.Get(1).(int64), args.Error(2)
}

func (m *MockAuditRepository) Append(ctx context.Context, entry *domain.AuditLogEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockCarrierGateway) CreateShipment(ctx context.Context, req carrier.ShipmentRequest, code carrier.Code) (*carrier.ShipmentResult, error) {
	args := m.Called(ctx, req, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*carrier.ShipmentResult), args.Error(1)
}

func (m *MockCarrierGateway) CancelShipment(ctx context.Context, shipmentID string, code carrier.Code) (bool, error) {
	args := m.Called(ctx, shipmentID, code)
	return args.Bool(0), args.Error(1)
}

func (m *MockCarrierGateway) GetRates(ctx context.Context, req carrier.RateRequest, code carrier.Code) ([]carrier.RateQuote, error) {
	args := m.Called(ctx, req, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]carrier.RateQuote), args.Error(1)
}

func (m *MockCarrierGateway) GetAllRates(ctx context.Context, req carrier.RateRequest) []carrier.RateQuote {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]carrier.RateQuote)
}

func (m *MockRefunder) Refund(ctx context.Context, req payplus.RefundRequest) payplus.RefundResult {
	args := m.Called(ctx, req)
	return args.Get(0).(payplus.RefundResult)
}

func (m *MockTransformClient) Transform(ctx context.Context, contentType string, body []byte) (*infra.TransformResponse, error) {
	args := m.Called(ctx, contentType, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*infra.TransformResponse), args.Error(1)
}
