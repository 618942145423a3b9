package mysql

import (
	"context"
	"errors"
	"log/slog"

	"print-order-service/internal/domain"
	"print-order-service/internal/repository"

	"gorm.io/gorm"
)

type orderRepo struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) repository.OrderRepository {
	return &orderRepo{db: db}
}

// Create inserts the order header and its items in one transaction.
func (r *orderRepo) Create(ctx context.Context, order *domain.Order) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		items := order.Items
		history := order.History
		order.Items, order.History = nil, nil
		defer func() { order.Items, order.History = items, history }()

		if err := tx.Create(order).Error; err != nil {
			return err
		}
		for i := range items {
			items[i].OrderID = order.ID
		}
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return err
			}
		}
		for i := range history {
			history[i].OrderID = order.ID
		}
		if len(history) > 0 {
			if err := tx.Create(&history).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return repository.ErrDuplicate
		}
		slog.ErrorContext(ctx, "order insert failed", "order_number", order.OrderNumber, "error", err)
		return err
	}
	return nil
}

func (r *orderRepo) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	var o domain.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("History", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&o, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.ErrorContext(ctx, "order lookup failed", "order_id", id, "error", err)
		return nil, err
	}
	return &o, nil
}

func (r *orderRepo) FindByPaymentTransaction(ctx context.Context, provider, transactionID string) (*domain.Order, error) {
	var o domain.Order
	err := r.db.WithContext(ctx).
		Where("payment_provider = ? AND payment_transaction_id = ?", provider, transactionID).
		First(&o).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.ErrorContext(ctx, "order lookup by transaction failed", "transaction_id", transactionID, "error", err)
		return nil, err
	}
	return &o, nil
}

// LatestOrderNumber returns the highest order number issued under datePrefix,
// or "" when there is none. Sequences are fixed width so lexical order works.
func (r *orderRepo) LatestOrderNumber(ctx context.Context, datePrefix string) (string, error) {
	var numbers []string
	err := r.db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("order_number LIKE ?", datePrefix+"-%").
		Order("order_number DESC").
		Limit(1).
		Pluck("order_number", &numbers).Error
	if err != nil {
		return "", err
	}
	if len(numbers) == 0 {
		return "", nil
	}
	return numbers[0], nil
}

func (r *orderRepo) ApplyStatusChange(ctx context.Context, change repository.StatusChange) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{"status": change.To}
		for k, v := range change.Fields {
			updates[k] = v
		}

		res := tx.Model(&domain.Order{}).
			Where("id = ? AND status = ?", change.OrderID, change.From).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return repository.ErrConflict
		}

		entry := change.Entry
		entry.OrderID = change.OrderID
		return tx.Create(&entry).Error
	})
}
