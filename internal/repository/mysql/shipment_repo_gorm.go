package mysql

import (
	"context"
	"errors"

	"print-order-service/internal/domain"
	"print-order-service/internal/repository"

	"gorm.io/gorm"
)

type shipmentRepo struct {
	db *gorm.DB
}

func NewShipmentRepository(db *gorm.DB) repository.ShipmentRepository {
	return &shipmentRepo{db: db}
}

func (r *shipmentRepo) Create(ctx context.Context, s *domain.Shipment) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *shipmentRepo) FindByID(ctx context.Context, id string) (*domain.Shipment, error) {
	var s domain.Shipment
	err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *shipmentRepo) FindActiveByOrder(ctx context.Context, orderID string) (*domain.Shipment, error) {
	var s domain.Shipment
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status <> ?", orderID, domain.ShipmentCancelled).
		Order("created_at DESC").
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Update writes every column, including the ones cleared to NULL on retry.
func (r *shipmentRepo) Update(ctx context.Context, s *domain.Shipment) error {
	return r.db.WithContext(ctx).Save(s).Error
}

func (r *shipmentRepo) List(ctx context.Context, orderID string, limit, offset int) ([]domain.Shipment, int64, error) {
	byOrder := func(db *gorm.DB) *gorm.DB {
		if orderID != "" {
			return db.Where("order_id = ?", orderID)
		}
		return db
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&domain.Shipment{}).Scopes(byOrder).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var out []domain.Shipment
	err := r.db.WithContext(ctx).
		Scopes(byOrder).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&out).Error
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

type auditRepo struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) repository.AuditRepository {
	return &auditRepo{db: db}
}

func (r *auditRepo) Append(ctx context.Context, entry *domain.AuditLogEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}
