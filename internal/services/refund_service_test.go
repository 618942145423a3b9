package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"print-order-service/internal/domain"
	"print-order-service/internal/infra/payplus"
	"print-order-service/internal/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func succeededPayment() *domain.PaymentRecord {
	return &domain.PaymentRecord{
		ID:                    "pay-1",
		OrderID:               TestOrderID,
		Provider:              domain.ProviderPayPlus,
		Status:                domain.PaymentSucceeded,
		ExternalTransactionID: TestTransactionID,
		Amount:                TestTotal,
		Currency:              domain.HomeCurrency,
	}
}

func auditAction(action, outcome string) interface{} {
	return mock.MatchedBy(func(e *domain.AuditLogEntry) bool {
		return e.Action == action && e.Outcome == outcome
	})
}

func TestRefundService_RefundOrder(t *testing.T) {
	tests := []struct {
		name          string
		status        domain.OrderStatus
		amount        int64
		setupMocks    func(*mocks.MockPaymentRepository, *mocks.MockRefunder, *mocks.MockAuditRepository)
		expectedError error
		validationErr bool
		providerErr   bool
	}{
		{
			name:   "partial refund appended to ledger",
			status: domain.StatusShipped,
			amount: 5000,
			setupMocks: func(pay *mocks.MockPaymentRepository, ref *mocks.MockRefunder, audit *mocks.MockAuditRepository) {
				pay.On("FindSucceededByOrder", mock.Anything, TestOrderID).Return(succeededPayment(), nil)
				pay.On("SumRefundedByOrder", mock.Anything, TestOrderID).Return(int64(0), nil)
				ref.On("Refund", mock.Anything, payplus.RefundRequest{TransactionID: TestTransactionID, Amount: 5000, Reason: "damaged"}).
					Return(payplus.RefundResult{Success: true, RefundTransactionID: "rf-1"})
				pay.On("Create", mock.Anything, mock.MatchedBy(func(r *domain.PaymentRecord) bool {
					return r.Status == domain.PaymentRefunded && r.Amount == -5000 &&
						r.ExternalTransactionID == "rf-1" && *r.ExternalID == TestTransactionID && r.CompletedAt != nil
				})).Return(nil)
				audit.On("Append", mock.Anything, auditAction(domain.AuditOrderRefunded, domain.OutcomeSuccess)).Return(nil)
			},
		},
		{
			name:   "zero amount refunds the full payment",
			status: domain.StatusPaid,
			setupMocks: func(pay *mocks.MockPaymentRepository, ref *mocks.MockRefunder, audit *mocks.MockAuditRepository) {
				pay.On("FindSucceededByOrder", mock.Anything, TestOrderID).Return(succeededPayment(), nil)
				pay.On("SumRefundedByOrder", mock.Anything, TestOrderID).Return(int64(0), nil)
				ref.On("Refund", mock.Anything, mock.MatchedBy(func(r payplus.RefundRequest) bool { return r.Amount == TestTotal })).
					Return(payplus.RefundResult{Success: true, RefundTransactionID: "rf-2"})
				pay.On("Create", mock.Anything, mock.Anything).Return(nil)
				audit.On("Append", mock.Anything, mock.Anything).Return(nil)
			},
		},
		{
			name:   "ledger failure does not undo an issued refund",
			status: domain.StatusPaid,
			amount: 100,
			setupMocks: func(pay *mocks.MockPaymentRepository, ref *mocks.MockRefunder, audit *mocks.MockAuditRepository) {
				pay.On("FindSucceededByOrder", mock.Anything, TestOrderID).Return(succeededPayment(), nil)
				pay.On("SumRefundedByOrder", mock.Anything, TestOrderID).Return(int64(0), nil)
				ref.On("Refund", mock.Anything, mock.Anything).Return(payplus.RefundResult{Success: true, RefundTransactionID: "rf-3"})
				pay.On("Create", mock.Anything, mock.Anything).Return(errors.New("lost connection"))
				audit.On("Append", mock.Anything, mock.Anything).Return(errors.New("lost connection"))
			},
		},
		{
			name:   "provider decline",
			status: domain.StatusProcessing,
			amount: 100,
			setupMocks: func(pay *mocks.MockPaymentRepository, ref *mocks.MockRefunder, audit *mocks.MockAuditRepository) {
				pay.On("FindSucceededByOrder", mock.Anything, TestOrderID).Return(succeededPayment(), nil)
				pay.On("SumRefundedByOrder", mock.Anything, TestOrderID).Return(int64(0), nil)
				ref.On("Refund", mock.Anything, mock.Anything).Return(payplus.RefundResult{ErrorMessage: "PayPlus API error: 500"})
				audit.On("Append", mock.Anything, auditAction(domain.AuditOrderRefunded, domain.OutcomeFailure)).Return(nil)
			},
			providerErr: true,
		},
		{
			name:   "amount above payment",
			status: domain.StatusPaid,
			amount: TestTotal + 1,
			setupMocks: func(pay *mocks.MockPaymentRepository, ref *mocks.MockRefunder, audit *mocks.MockAuditRepository) {
				pay.On("FindSucceededByOrder", mock.Anything, TestOrderID).Return(succeededPayment(), nil)
				pay.On("SumRefundedByOrder", mock.Anything, TestOrderID).Return(int64(0), nil)
			},
			validationErr: true,
		},
		{
			name:   "negative amount",
			status: domain.StatusPaid,
			amount: -1,
			setupMocks: func(pay *mocks.MockPaymentRepository, ref *mocks.MockRefunder, audit *mocks.MockAuditRepository) {
				pay.On("FindSucceededByOrder", mock.Anything, TestOrderID).Return(succeededPayment(), nil)
				pay.On("SumRefundedByOrder", mock.Anything, TestOrderID).Return(int64(0), nil)
			},
			validationErr: true,
		},
		{
			name:   "zero amount refunds only the remaining balance",
			status: domain.StatusShipped,
			setupMocks: func(pay *mocks.MockPaymentRepository, ref *mocks.MockRefunder, audit *mocks.MockAuditRepository) {
				pay.On("FindSucceededByOrder", mock.Anything, TestOrderID).Return(succeededPayment(), nil)
				pay.On("SumRefundedByOrder", mock.Anything, TestOrderID).Return(int64(5000), nil)
				ref.On("Refund", mock.Anything, mock.MatchedBy(func(r payplus.RefundRequest) bool { return r.Amount == TestTotal-5000 })).
					Return(payplus.RefundResult{Success: true, RefundTransactionID: "rf-4"})
				pay.On("Create", mock.Anything, mock.MatchedBy(func(r *domain.PaymentRecord) bool { return r.Amount == -(TestTotal - 5000) })).Return(nil)
				audit.On("Append", mock.Anything, mock.Anything).Return(nil)
			},
		},
		{
			name:   "amount above remaining balance",
			status: domain.StatusPaid,
			amount: TestTotal - 4999,
			setupMocks: func(pay *mocks.MockPaymentRepository, ref *mocks.MockRefunder, audit *mocks.MockAuditRepository) {
				pay.On("FindSucceededByOrder", mock.Anything, TestOrderID).Return(succeededPayment(), nil)
				pay.On("SumRefundedByOrder", mock.Anything, TestOrderID).Return(int64(5000), nil)
			},
			validationErr: true,
		},
		{
			name:   "already fully refunded",
			status: domain.StatusPaid,
			setupMocks: func(pay *mocks.MockPaymentRepository, ref *mocks.MockRefunder, audit *mocks.MockAuditRepository) {
				pay.On("FindSucceededByOrder", mock.Anything, TestOrderID).Return(succeededPayment(), nil)
				pay.On("SumRefundedByOrder", mock.Anything, TestOrderID).Return(TestTotal, nil)
			},
			expectedError: ErrAlreadyRefunded,
		},
		{
			name:          "pending order",
			status:        domain.StatusPending,
			setupMocks:    func(*mocks.MockPaymentRepository, *mocks.MockRefunder, *mocks.MockAuditRepository) {},
			expectedError: ErrOrderNotRefundable,
		},
		{
			name:          "cancelled order",
			status:        domain.StatusCancelled,
			setupMocks:    func(*mocks.MockPaymentRepository, *mocks.MockRefunder, *mocks.MockAuditRepository) {},
			expectedError: ErrOrderNotRefundable,
		},
		{
			name:   "no successful payment",
			status: domain.StatusPaid,
			setupMocks: func(pay *mocks.MockPaymentRepository, ref *mocks.MockRefunder, audit *mocks.MockAuditRepository) {
				pay.On("FindSucceededByOrder", mock.Anything, TestOrderID).Return(nil, nil)
			},
			expectedError: ErrPaymentNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders := new(mocks.MockOrderRepository)
			payments := new(mocks.MockPaymentRepository)
			refunder := new(mocks.MockRefunder)
			audit := new(mocks.MockAuditRepository)
			orders.On("FindByID", mock.Anything, TestOrderID).Return(CreateMockOrder(TestOrderID, tt.status), nil)
			tt.setupMocks(payments, refunder, audit)

			service := NewRefundService(orders, payments, NewAuditLogger(audit), refunder)
			result, err := service.RefundOrder(context.Background(), RefundParams{
				OrderID: TestOrderID,
				Amount:  tt.amount,
				Reason:  "damaged",
				Actor:   "alice",
			})

			switch {
			case tt.validationErr:
				var verr *ValidationError
				require.True(t, errors.As(err, &verr), "got %v", err)
				assert.Equal(t, "amount", verr.Field)
				refunder.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything)
			case tt.providerErr:
				var rerr *RefundFailedError
				require.True(t, errors.As(err, &rerr), "got %v", err)
				assert.Equal(t, "PayPlus API error: 500", rerr.Message)
				require.NotNil(t, result)
				assert.False(t, result.Success)
				payments.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
			case tt.expectedError != nil:
				assert.ErrorIs(t, err, tt.expectedError)
				refunder.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything)
			default:
				require.NoError(t, err)
				assert.True(t, result.Success)
				assert.NotEmpty(t, result.RefundTransactionID)
			}
			payments.AssertExpectations(t)
			refunder.AssertExpectations(t)
			audit.AssertExpectations(t)
		})
	}
}

func TestRefundService_OrderNotFound(t *testing.T) {
	orders := new(mocks.MockOrderRepository)
	orders.On("FindByID", mock.Anything, "missing").Return(nil, nil)
	service := NewRefundService(orders, new(mocks.MockPaymentRepository), NewAuditLogger(nil), new(mocks.MockRefunder))

	_, err := service.RefundOrder(context.Background(), RefundParams{OrderID: "missing"})

	assert.ErrorIs(t, err, ErrOrderNotFound)
}

type countingRefunder struct {
	mu    sync.Mutex
	calls int
}

func (r *countingRefunder) Refund(ctx context.Context, req payplus.RefundRequest) payplus.RefundResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return payplus.RefundResult{Success: true, RefundTransactionID: fmt.Sprintf("rf-%d", r.calls)}
}

func TestRefundService_RepeatedFullRefund(t *testing.T) {
	store := newMemoryStore()
	store.orders[TestOrderID] = *CreateMockOrder(TestOrderID, domain.StatusShipped)
	payment := succeededPayment()
	store.payments[payment.ID] = *payment

	refunder := &countingRefunder{}
	service := NewRefundService(memoryOrderRepo{store}, memoryPaymentRepo{store}, NewAuditLogger(nil), refunder)

	first, err := service.RefundOrder(context.Background(), RefundParams{OrderID: TestOrderID, Actor: "alice"})
	require.NoError(t, err)
	assert.True(t, first.Success)

	_, err = service.RefundOrder(context.Background(), RefundParams{OrderID: TestOrderID, Actor: "alice"})
	assert.ErrorIs(t, err, ErrAlreadyRefunded)

	assert.Equal(t, 1, refunder.calls)
	refunded, err := memoryPaymentRepo{store}.SumRefundedByOrder(context.Background(), TestOrderID)
	require.NoError(t, err)
	assert.Equal(t, TestTotal, refunded)
}

func TestRefundService_PartialRefundsStopAtPaidAmount(t *testing.T) {
	store := newMemoryStore()
	store.orders[TestOrderID] = *CreateMockOrder(TestOrderID, domain.StatusPaid)
	payment := succeededPayment()
	store.payments[payment.ID] = *payment

	refunder := &countingRefunder{}
	service := NewRefundService(memoryOrderRepo{store}, memoryPaymentRepo{store}, NewAuditLogger(nil), refunder)
	ctx := context.Background()

	_, err := service.RefundOrder(ctx, RefundParams{OrderID: TestOrderID, Amount: 20000})
	require.NoError(t, err)

	_, err = service.RefundOrder(ctx, RefundParams{OrderID: TestOrderID, Amount: 5000})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "got %v", err)
	assert.Equal(t, "Refund amount must be between 1 and 4900", verr.Message)

	_, err = service.RefundOrder(ctx, RefundParams{OrderID: TestOrderID})
	require.NoError(t, err)

	assert.Equal(t, 2, refunder.calls)
	refunded, err := memoryPaymentRepo{store}.SumRefundedByOrder(ctx, TestOrderID)
	require.NoError(t, err)
	assert.Equal(t, TestTotal, refunded)
}
