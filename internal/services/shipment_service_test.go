package services

import (
	"context"
	"errors"
	"testing"

	"print-order-service/internal/config"
	"print-order-service/internal/domain"
	"print-order-service/internal/infra/carrier"
	"print-order-service/internal/mocks"
	"print-order-service/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

type shipmentMocks struct {
	orders    *mocks.MockOrderRepository
	shipments *mocks.MockShipmentRepository
	audit     *mocks.MockAuditRepository
	carriers  *mocks.MockCarrierGateway
}

func newShipmentService(t *testing.T) (*ShipmentService, shipmentMocks) {
	t.Helper()
	m := shipmentMocks{
		orders:    new(mocks.MockOrderRepository),
		shipments: new(mocks.MockShipmentRepository),
		audit:     new(mocks.MockAuditRepository),
		carriers:  new(mocks.MockCarrierGateway),
	}
	orders := NewOrderService(m.orders, nil)
	orders.SetClock(fixedClock)
	defaults := ShipmentDefaultsFromConfig(config.Shop{Name: "Footprint", City: "Tel Aviv", PackageWeight: 500})
	svc := NewShipmentService(orders, m.shipments, NewAuditLogger(m.audit), m.carriers, defaults)
	svc.now = fixedClock
	return svc, m
}

func failedShipment() *domain.Shipment {
	msg := "timeout"
	return &domain.Shipment{
		ID:          "ship-1",
		OrderID:     TestOrderID,
		Carrier:     string(carrier.IsraelPost),
		Status:      domain.ShipmentFailed,
		ServiceType: domain.ServiceExpress,
		RetryCount:  1,
		LastError:   &msg,
	}
}

var carrierDown = &carrier.ProviderError{Message: "Israel Post API error: 503", Code: "HTTP_503", Carrier: carrier.IsraelPost, Retryable: true}

func expectShipped(m shipmentMocks, tracking string) {
	m.orders.On("FindByID", mock.Anything, TestOrderID).Return(CreateMockOrder(TestOrderID, domain.StatusPrinting), nil).Once()
	m.orders.On("ApplyStatusChange", mock.Anything, mock.MatchedBy(func(c repository.StatusChange) bool {
		return c.From == domain.StatusPrinting && c.To == domain.StatusShipped && c.Fields["tracking_number"] == tracking
	})).Return(nil)
	m.orders.On("FindByID", mock.Anything, TestOrderID).Return(CreateMockOrder(TestOrderID, domain.StatusShipped), nil).Once()
}

func TestShipmentService_Create(t *testing.T) {
	svc, m := newShipmentService(t)
	m.orders.On("FindByID", mock.Anything, TestOrderID).Return(CreateMockOrder(TestOrderID, domain.StatusPrinting), nil).Once()
	m.shipments.On("FindActiveByOrder", mock.Anything, TestOrderID).Return(nil, nil)
	m.carriers.On("CreateShipment", mock.Anything, mock.MatchedBy(func(r carrier.ShipmentRequest) bool {
		return r.Recipient.City == "Haifa" && r.Recipient.Country == "Israel" && r.Sender.Name == "Footprint" &&
			r.ServiceType == domain.ServiceRegistered && r.DeclaredValue == TestTotal && r.Reference == TestOrderNumber
	}), carrier.IsraelPost).Return(&carrier.ShipmentResult{ShipmentID: "IP-1", TrackingNumber: "RR1IL", Carrier: carrier.IsraelPost}, nil)
	m.shipments.On("Create", mock.Anything, mock.MatchedBy(func(s *domain.Shipment) bool {
		return s.Status == domain.ShipmentCreated && s.CarrierShipmentID == "IP-1" && s.LastError == nil
	})).Return(nil)
	m.audit.On("Append", mock.Anything, auditAction(domain.AuditShipmentCreated, domain.OutcomeSuccess)).Return(nil)
	expectShipped(m, "RR1IL")

	out, err := svc.Create(context.Background(), CreateShipmentParams{OrderID: TestOrderID, Actor: "alice"})

	require.NoError(t, err)
	assert.True(t, out.OrderShipped)
	assert.Equal(t, "RR1IL", out.Shipment.TrackingNumber)
	m.orders.AssertExpectations(t)
	m.carriers.AssertExpectations(t)
	m.shipments.AssertExpectations(t)
	m.audit.AssertExpectations(t)
}

func TestShipmentService_CreateCarrierFailureStoresFailedRow(t *testing.T) {
	svc, m := newShipmentService(t)
	m.orders.On("FindByID", mock.Anything, TestOrderID).Return(CreateMockOrder(TestOrderID, domain.StatusPrinting), nil)
	m.shipments.On("FindActiveByOrder", mock.Anything, TestOrderID).Return(nil, nil)
	m.carriers.On("CreateShipment", mock.Anything, mock.Anything, carrier.IsraelPost).Return(nil, carrierDown)
	m.shipments.On("Create", mock.Anything, mock.MatchedBy(func(s *domain.Shipment) bool {
		return s.Status == domain.ShipmentFailed && s.LastError != nil && *s.LastError == carrierDown.Message
	})).Return(nil)
	m.audit.On("Append", mock.Anything, auditAction(domain.AuditShipmentCreated, domain.OutcomeFailure)).Return(nil)

	out, err := svc.Create(context.Background(), CreateShipmentParams{OrderID: TestOrderID, ServiceType: domain.ServiceExpress})

	var perr *carrier.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.True(t, perr.Retryable)
	require.NotNil(t, out)
	assert.Equal(t, domain.ShipmentFailed, out.Shipment.Status)
	m.orders.AssertNotCalled(t, "ApplyStatusChange", mock.Anything, mock.Anything)
	m.shipments.AssertExpectations(t)
	m.audit.AssertExpectations(t)
}

func TestShipmentService_CreateRejects(t *testing.T) {
	tests := []struct {
		name          string
		order         *domain.Order
		existing      *domain.Shipment
		serviceType   domain.ServiceType
		expectedError error
		validationErr bool
	}{
		{name: "order not printing", order: CreateMockOrder(TestOrderID, domain.StatusPaid), expectedError: ErrOrderNotShippable},
		{name: "unknown service type", order: CreateMockOrder(TestOrderID, domain.StatusPrinting), serviceType: "drone", validationErr: true},
		{
			name: "no shipping address",
			order: func() *domain.Order {
				o := CreateMockOrder(TestOrderID, domain.StatusPrinting)
				o.ShippingAddress = datatypes.NewJSONType(domain.ShippingAddress{Name: "Dana Levi"})
				return o
			}(),
			expectedError: ErrNoShippingAddress,
		},
		{
			name:          "earlier attempt failed",
			order:         CreateMockOrder(TestOrderID, domain.StatusPrinting),
			existing:      failedShipment(),
			expectedError: ErrShipmentExists,
		},
		{
			name:  "shipment already created",
			order: CreateMockOrder(TestOrderID, domain.StatusPrinting),
			existing: &domain.Shipment{
				ID:      "ship-2",
				OrderID: TestOrderID,
				Status:  domain.ShipmentCreated,
			},
			expectedError: ErrShipmentExists,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newShipmentService(t)
			m.orders.On("FindByID", mock.Anything, TestOrderID).Return(tt.order, nil).Maybe()
			m.shipments.On("FindActiveByOrder", mock.Anything, TestOrderID).Return(tt.existing, nil).Maybe()

			_, err := svc.Create(context.Background(), CreateShipmentParams{OrderID: TestOrderID, ServiceType: tt.serviceType})

			if tt.validationErr {
				var verr *ValidationError
				assert.True(t, errors.As(err, &verr))
			} else {
				assert.ErrorIs(t, err, tt.expectedError)
			}
			m.carriers.AssertNotCalled(t, "CreateShipment", mock.Anything, mock.Anything, mock.Anything)
			m.shipments.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestShipmentService_Retry(t *testing.T) {
	t.Run("carrier error bumps retry count and keeps order status", func(t *testing.T) {
		svc, m := newShipmentService(t)
		m.shipments.On("FindByID", mock.Anything, "ship-1").Return(failedShipment(), nil)
		m.orders.On("FindByID", mock.Anything, TestOrderID).Return(CreateMockOrder(TestOrderID, domain.StatusPrinting), nil)
		m.carriers.On("CreateShipment", mock.Anything, mock.MatchedBy(func(r carrier.ShipmentRequest) bool {
			return r.ServiceType == domain.ServiceExpress
		}), carrier.IsraelPost).Return(nil, carrierDown)
		m.shipments.On("Update", mock.Anything, mock.MatchedBy(func(s *domain.Shipment) bool {
			return s.RetryCount == 2 && *s.LastError == carrierDown.Message && s.Status == domain.ShipmentFailed
		})).Return(nil)
		m.audit.On("Append", mock.Anything, auditAction(domain.AuditShipmentRetried, domain.OutcomeFailure)).Return(nil)

		_, err := svc.Retry(context.Background(), "ship-1", "alice")

		var perr *carrier.ProviderError
		require.True(t, errors.As(err, &perr))
		assert.Equal(t, "HTTP_503", perr.Code)
		m.orders.AssertNotCalled(t, "ApplyStatusChange", mock.Anything, mock.Anything)
		m.shipments.AssertExpectations(t)
		m.audit.AssertExpectations(t)
	})

	t.Run("success clears the error and ships the order", func(t *testing.T) {
		svc, m := newShipmentService(t)
		m.shipments.On("FindByID", mock.Anything, "ship-1").Return(failedShipment(), nil)
		m.carriers.On("CreateShipment", mock.Anything, mock.Anything, carrier.IsraelPost).
			Return(&carrier.ShipmentResult{ShipmentID: "IP-2", TrackingNumber: "RR2IL", Carrier: carrier.IsraelPost, LabelURL: "https://l/2"}, nil)
		m.shipments.On("Update", mock.Anything, mock.MatchedBy(func(s *domain.Shipment) bool {
			return s.RetryCount == 2 && s.LastError == nil && s.Status == domain.ShipmentCreated && s.LabelURL == "https://l/2"
		})).Return(nil)
		m.audit.On("Append", mock.Anything, auditAction(domain.AuditShipmentRetried, domain.OutcomeSuccess)).Return(nil)
		m.orders.On("FindByID", mock.Anything, TestOrderID).Return(CreateMockOrder(TestOrderID, domain.StatusPrinting), nil).Once()
		expectShipped(m, "RR2IL")

		out, err := svc.Retry(context.Background(), "ship-1", "alice")

		require.NoError(t, err)
		assert.True(t, out.OrderShipped)
		assert.Equal(t, "IP-2", out.Shipment.CarrierShipmentID)
		m.orders.AssertExpectations(t)
		m.shipments.AssertExpectations(t)
	})

	t.Run("only failed shipments", func(t *testing.T) {
		svc, m := newShipmentService(t)
		s := failedShipment()
		s.Status = domain.ShipmentCreated
		m.shipments.On("FindByID", mock.Anything, "ship-1").Return(s, nil)

		_, err := svc.Retry(context.Background(), "ship-1", "alice")

		assert.ErrorIs(t, err, ErrShipmentNotRetryable)
		m.carriers.AssertNotCalled(t, "CreateShipment", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("missing shipment", func(t *testing.T) {
		svc, m := newShipmentService(t)
		m.shipments.On("FindByID", mock.Anything, "nope").Return(nil, nil)

		_, err := svc.Retry(context.Background(), "nope", "alice")

		assert.ErrorIs(t, err, ErrShipmentNotFound)
	})
}

func TestShipmentService_Cancel(t *testing.T) {
	created := func() *domain.Shipment {
		return &domain.Shipment{
			ID:                "ship-1",
			OrderID:           TestOrderID,
			Carrier:           string(carrier.IsraelPost),
			CarrierShipmentID: "IP-1",
			Status:            domain.ShipmentCreated,
		}
	}

	tests := []struct {
		name             string
		shipment         func() *domain.Shipment
		carrierOK        bool
		carrierErr       error
		expectCarrier    bool
		expectedError    error
		carrierCancelled bool
	}{
		{name: "carrier confirms", shipment: created, carrierOK: true, expectCarrier: true, carrierCancelled: true},
		{name: "carrier declines", shipment: created, expectCarrier: true},
		{name: "carrier unreachable still cancels locally", shipment: created, carrierErr: carrierDown, expectCarrier: true},
		{name: "never booked at carrier", shipment: failedShipment},
		{
			name: "already delivered",
			shipment: func() *domain.Shipment {
				s := created()
				s.Status = domain.ShipmentDelivered
				return s
			},
			expectedError: ErrShipmentNotCancellable,
		},
		{
			name: "already cancelled",
			shipment: func() *domain.Shipment {
				s := created()
				s.Status = domain.ShipmentCancelled
				return s
			},
			expectedError: ErrShipmentNotCancellable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newShipmentService(t)
			m.shipments.On("FindByID", mock.Anything, "ship-1").Return(tt.shipment(), nil)
			if tt.expectCarrier {
				m.carriers.On("CancelShipment", mock.Anything, "IP-1", carrier.IsraelPost).Return(tt.carrierOK, tt.carrierErr)
			}
			m.shipments.On("Update", mock.Anything, mock.MatchedBy(func(s *domain.Shipment) bool {
				return s.Status == domain.ShipmentCancelled && s.CancelledAt != nil && *s.CancelledBy == "alice"
			})).Return(nil).Maybe()
			m.audit.On("Append", mock.Anything, auditAction(domain.AuditShipmentCancelled, domain.OutcomeSuccess)).Return(nil).Maybe()

			out, err := svc.Cancel(context.Background(), "ship-1", "alice")

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				m.shipments.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.carrierCancelled, out.CarrierCancelled)
			assert.Equal(t, domain.ShipmentCancelled, out.Shipment.Status)
			if tt.carrierErr != nil {
				assert.Equal(t, carrierDown.Message, out.CarrierError)
			}
			if !tt.expectCarrier {
				m.carriers.AssertNotCalled(t, "CancelShipment", mock.Anything, mock.Anything, mock.Anything)
			}
			m.shipments.AssertExpectations(t)
			m.audit.AssertExpectations(t)
		})
	}
}

func TestShipmentService_Quote(t *testing.T) {
	svc, m := newShipmentService(t)
	rates := []carrier.RateQuote{{ServiceType: domain.ServiceStandard, Price: 2500, Carrier: carrier.IsraelPost}}
	m.carriers.On("GetAllRates", mock.Anything, mock.MatchedBy(func(r carrier.RateRequest) bool {
		return r.Package.Weight == 500 && r.Sender.City == "Tel Aviv"
	})).Return(rates)
	m.carriers.On("GetRates", mock.Anything, mock.MatchedBy(func(r carrier.RateRequest) bool {
		return r.Package.Weight == 1200
	}), carrier.IsraelPost).Return(nil, carrierDown)

	all, err := svc.Quote(context.Background(), QuoteParams{Recipient: carrier.Address{City: "Haifa"}})
	require.NoError(t, err)
	assert.Equal(t, rates, all)

	_, err = svc.Quote(context.Background(), QuoteParams{Carrier: carrier.IsraelPost, Package: &carrier.Package{Weight: 1200}})
	assert.ErrorIs(t, err, carrierDown)
}

func TestShipmentService_List(t *testing.T) {
	svc, m := newShipmentService(t)
	m.shipments.On("List", mock.Anything, TestOrderID, 20, 20).Return([]domain.Shipment{{ID: "ship-1"}}, int64(21), nil)

	page, err := svc.List(context.Background(), TestOrderID, 2, 0)

	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, 20, page.Limit)
	assert.Len(t, page.Shipments, 1)
}
