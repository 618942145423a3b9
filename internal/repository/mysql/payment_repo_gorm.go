package mysql

import (
	"context"
	"errors"

	"print-order-service/internal/domain"
	"print-order-service/internal/repository"

	"gorm.io/gorm"
)

type paymentRepo struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) repository.PaymentRepository {
	return &paymentRepo{db: db}
}

func (r *paymentRepo) Create(ctx context.Context, record *domain.PaymentRecord) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return repository.ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *paymentRepo) FindByExternalTransaction(ctx context.Context, provider, transactionID string) (*domain.PaymentRecord, error) {
	var p domain.PaymentRecord
	err := r.db.WithContext(ctx).
		Where("provider = ? AND external_transaction_id = ?", provider, transactionID).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *paymentRepo) FindSucceededByOrder(ctx context.Context, orderID string) (*domain.PaymentRecord, error) {
	var p domain.PaymentRecord
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status = ?", orderID, domain.PaymentSucceeded).
		Order("created_at ASC").
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Refund rows carry negative amounts.
func (r *paymentRepo) SumRefundedByOrder(ctx context.Context, orderID string) (int64, error) {
	var sum int64
	err := r.db.WithContext(ctx).
		Model(&domain.PaymentRecord{}).
		Where("order_id = ? AND status = ?", orderID, domain.PaymentRefunded).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&sum).Error
	if err != nil {
		return 0, err
	}
	return -sum, nil
}
