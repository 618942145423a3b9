package repository

import (
	"context"
	"errors"

	"print-order-service/internal/domain"
)

var (
	ErrDuplicate = errors.New("duplicate record")
	// ErrConflict means a conditional update matched no row because the
	// stored state changed underneath the caller.
	ErrConflict = errors.New("conflicting update")
)

// StatusChange is applied only if the order is still in From.
type StatusChange struct {
	OrderID string
	From    domain.OrderStatus
	To      domain.OrderStatus
	Fields  map[string]any
	Entry   domain.StatusHistoryEntry
}

type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	FindByID(ctx context.Context, id string) (*domain.Order, error)
	FindByPaymentTransaction(ctx context.Context, provider, transactionID string) (*domain.Order, error)
	LatestOrderNumber(ctx context.Context, datePrefix string) (string, error)
	ApplyStatusChange(ctx context.Context, change StatusChange) error
}

type PaymentRepository interface {
	Create(ctx context.Context, record *domain.PaymentRecord) error
	FindByExternalTransaction(ctx context.Context, provider, transactionID string) (*domain.PaymentRecord, error)
	FindSucceededByOrder(ctx context.Context, orderID string) (*domain.PaymentRecord, error)
	// SumRefundedByOrder is the total already refunded, as a positive amount.
	SumRefundedByOrder(ctx context.Context, orderID string) (int64, error)
}

type ShipmentRepository interface {
	Create(ctx context.Context, shipment *domain.Shipment) error
	FindByID(ctx context.Context, id string) (*domain.Shipment, error)
	Update(ctx context.Context, shipment *domain.Shipment) error
	// FindActiveByOrder returns the order's most recent shipment that is not cancelled.
	FindActiveByOrder(ctx context.Context, orderID string) (*domain.Shipment, error)
	// List pages shipments newest first; an empty orderID lists all orders.
	List(ctx context.Context, orderID string, limit, offset int) ([]domain.Shipment, int64, error)
}

type AuditRepository interface {
	Append(ctx context.Context, entry *domain.AuditLogEntry) error
}
