package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"print-order-service/internal/domain"
	"print-order-service/internal/repository"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

var ErrPaymentRecordFailed = errors.New("failed to record payment")

type RecordPaymentParams struct {
	OrderID               string
	Provider              string
	Status                domain.PaymentStatus
	ExternalID            string
	ExternalTransactionID string
	Amount                int64
	Currency              string
	Installments          int
	CardLastFour          string
	CardBrand             string
	ErrorCode             string
	ErrorMessage          string
	WebhookPayload        []byte
}

type RecordPaymentResult struct {
	PaymentID     string
	AlreadyExists bool
	// Status is the stored row's status, which for a replay is the first delivery's.
	Status domain.PaymentStatus
}

// PaymentRecorder writes the payment ledger. (provider, external transaction
// id) is the idempotency key; a replayed event returns the stored row.
type PaymentRecorder struct {
	repo repository.PaymentRepository
	now  func() time.Time
}

func NewPaymentRecorder(repo repository.PaymentRepository) *PaymentRecorder {
	return &PaymentRecorder{repo: repo, now: time.Now}
}

func (r *PaymentRecorder) Record(ctx context.Context, p RecordPaymentParams) (*RecordPaymentResult, error) {
	if p.OrderID == "" {
		return nil, &ValidationError{Field: "orderId", Message: "Order ID is required"}
	}
	if p.ExternalTransactionID == "" {
		return nil, &ValidationError{Field: "externalTransactionId", Message: "External transaction ID is required"}
	}
	if p.Provider == "" {
		p.Provider = domain.ProviderPayPlus
	}

	existing, err := r.repo.FindByExternalTransaction(ctx, p.Provider, p.ExternalTransactionID)
	if err != nil {
		slog.ErrorContext(ctx, "payment lookup failed", "transaction_id", p.ExternalTransactionID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrPaymentRecordFailed, err)
	}
	if existing != nil {
		slog.InfoContext(ctx, "payment already recorded", "payment_id", existing.ID, "transaction_id", p.ExternalTransactionID)
		return &RecordPaymentResult{PaymentID: existing.ID, AlreadyExists: true, Status: existing.Status}, nil
	}

	record := r.buildRecord(p)
	err = r.repo.Create(ctx, record)
	if errors.Is(err, repository.ErrDuplicate) {
		// A concurrent delivery of the same event got there first.
		existing, lookupErr := r.repo.FindByExternalTransaction(ctx, p.Provider, p.ExternalTransactionID)
		if lookupErr != nil || existing == nil {
			return nil, fmt.Errorf("%w: duplicate without stored row", ErrPaymentRecordFailed)
		}
		return &RecordPaymentResult{PaymentID: existing.ID, AlreadyExists: true, Status: existing.Status}, nil
	}
	if err != nil {
		slog.ErrorContext(ctx, "payment insert failed", "order_id", p.OrderID, "transaction_id", p.ExternalTransactionID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrPaymentRecordFailed, err)
	}

	slog.InfoContext(ctx, "payment recorded", "payment_id", record.ID, "order_id", p.OrderID, "status", p.Status)
	return &RecordPaymentResult{PaymentID: record.ID, Status: record.Status}, nil
}

func (r *PaymentRecorder) buildRecord(p RecordPaymentParams) *domain.PaymentRecord {
	status := p.Status
	if status == "" {
		status = domain.PaymentPending
	}
	currency := p.Currency
	if currency == "" {
		currency = domain.HomeCurrency
	}
	installments := p.Installments
	if installments <= 0 {
		installments = 1
	}

	record := &domain.PaymentRecord{
		ID:                    uuid.NewString(),
		OrderID:               p.OrderID,
		Provider:              p.Provider,
		Status:                status,
		ExternalID:            optional(p.ExternalID),
		ExternalTransactionID: p.ExternalTransactionID,
		Amount:                p.Amount,
		Currency:              currency,
		Installments:          installments,
		CardLastFour:          optional(p.CardLastFour),
		CardBrand:             optional(p.CardBrand),
		ErrorCode:             optional(p.ErrorCode),
		ErrorMessage:          optional(p.ErrorMessage),
	}
	if len(p.WebhookPayload) > 0 {
		record.WebhookPayload = datatypes.JSON(p.WebhookPayload)
	}
	if status == domain.PaymentSucceeded {
		now := r.now().UTC()
		record.CompletedAt = &now
	}
	return record
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
