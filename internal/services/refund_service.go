package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"print-order-service/internal/domain"
	"print-order-service/internal/infra/payplus"
	"print-order-service/internal/repository"

	"github.com/google/uuid"
)

var (
	ErrOrderNotRefundable = errors.New("order cannot be refunded in its current status")
	ErrPaymentNotFound    = errors.New("no successful payment found for order")
	ErrAlreadyRefunded    = errors.New("order payment has already been fully refunded")
)

// RefundFailedError carries the provider's message when it declines a refund.
type RefundFailedError struct {
	Message string
}

func (e *RefundFailedError) Error() string {
	return "refund failed: " + e.Message
}

// Refunder issues refunds at the payment provider and never returns an error.
type Refunder interface {
	Refund(ctx context.Context, req payplus.RefundRequest) payplus.RefundResult
}

var refundableStatuses = map[domain.OrderStatus]bool{
	domain.StatusPaid:       true,
	domain.StatusProcessing: true,
	domain.StatusPrinting:   true,
	domain.StatusShipped:    true,
}

type RefundParams struct {
	OrderID string
	// Amount in minor units; zero refunds whatever has not been refunded yet.
	Amount int64
	Reason string
	Actor  string
}

type RefundService struct {
	orders   repository.OrderRepository
	payments repository.PaymentRepository
	audit    *AuditLogger
	refunder Refunder
	now      func() time.Time
}

func NewRefundService(orders repository.OrderRepository, payments repository.PaymentRepository, audit *AuditLogger, refunder Refunder) *RefundService {
	return &RefundService{orders: orders, payments: payments, audit: audit, refunder: refunder, now: time.Now}
}

func (s *RefundService) RefundOrder(ctx context.Context, p RefundParams) (*payplus.RefundResult, error) {
	order, err := s.orders.FindByID(ctx, p.OrderID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if !refundableStatuses[order.Status] {
		return nil, ErrOrderNotRefundable
	}

	payment, err := s.payments.FindSucceededByOrder(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}

	refunded, err := s.payments.SumRefundedByOrder(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	remaining := payment.Amount - refunded
	if remaining <= 0 {
		return nil, ErrAlreadyRefunded
	}

	amount := p.Amount
	if amount == 0 {
		amount = remaining
	}
	if amount < 1 || amount > remaining {
		return nil, &ValidationError{
			Field:   "amount",
			Message: fmt.Sprintf("Refund amount must be between 1 and %d", remaining),
		}
	}

	result := s.refunder.Refund(ctx, payplus.RefundRequest{
		TransactionID: payment.ExternalTransactionID,
		Amount:        amount,
		Reason:        p.Reason,
	})

	details := map[string]any{
		"orderId":       order.ID,
		"transactionId": payment.ExternalTransactionID,
		"amount":        amount,
		"refundedSoFar": refunded,
		"reason":        p.Reason,
	}
	if !result.Success {
		details["error"] = result.ErrorMessage
		s.audit.Record(ctx, p.Actor, domain.AuditOrderRefunded, domain.OutcomeFailure, details)
		return &result, &RefundFailedError{Message: result.ErrorMessage}
	}

	details["refundTransactionId"] = result.RefundTransactionID
	s.appendLedger(ctx, order, payment, amount, result)
	s.audit.Record(ctx, p.Actor, domain.AuditOrderRefunded, domain.OutcomeSuccess, details)
	return &result, nil
}

// appendLedger stores the refund as its own ledger row. The money has already
// moved at this point, so a failed insert is logged rather than returned.
func (s *RefundService) appendLedger(ctx context.Context, order *domain.Order, payment *domain.PaymentRecord, amount int64, result payplus.RefundResult) {
	refundTxn := result.RefundTransactionID
	if refundTxn == "" {
		refundTxn = "refund-" + uuid.NewString()
	}
	now := s.now().UTC()
	related := payment.ExternalTransactionID
	payload, _ := json.Marshal(result)

	record := &domain.PaymentRecord{
		ID:                    uuid.NewString(),
		OrderID:               order.ID,
		Provider:              payment.Provider,
		Status:                domain.PaymentRefunded,
		ExternalID:            &related,
		ExternalTransactionID: refundTxn,
		Amount:                -amount,
		Currency:              payment.Currency,
		Installments:          1,
		WebhookPayload:        payload,
		CompletedAt:           &now,
	}
	if err := s.payments.Create(ctx, record); err != nil && !errors.Is(err, repository.ErrDuplicate) {
		slog.ErrorContext(ctx, "refund issued but ledger append failed",
			"order_id", order.ID, "refund_transaction_id", refundTxn, "amount", amount, "error", err)
	}
}
