package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"print-order-service/internal/domain"
	rabbit "print-order-service/internal/infra/rabbitmq"
	"print-order-service/internal/repository"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrOrderCreationFailed = errors.New("failed to create order")
	ErrStatusConflict      = errors.New("order status changed concurrently")
	ErrPersistence         = errors.New("operation failed")
)

const (
	maxOrderNumberAttempts = 3
	ActorSystem            = "system"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

type CreateOrderItem struct {
	Name           string
	Quantity       int
	Price          int64
	ImageURL       string
	ResultImageURL string
	Style          string
	Size           string
	Paper          string
	Frame          string
}

type CreateOrderParams struct {
	UserID               string
	CustomerName         string
	CustomerEmail        string
	CustomerPhone        string
	Items                []CreateOrderItem
	Subtotal             int64
	Shipping             int64
	Discount             int64
	Tax                  int64
	Total                int64
	ShippingAddress      domain.ShippingAddress
	PaymentProvider      string
	PaymentTransactionID string
	IsGift               bool
	GiftMessage          string
	// Status is paid unless the order is pre-created ahead of the payment webhook.
	Status domain.OrderStatus
}

type CreateOrderResult struct {
	OrderID     string
	OrderNumber string
	Existing    bool
}

type TransitionRequest struct {
	OrderID string
	To      domain.OrderStatus
	Actor   string
	Note    string
	// Fields are extra columns written in the same conditional update.
	Fields map[string]any
}

type OrderService struct {
	repo      repository.OrderRepository
	numbers   *OrderNumberGenerator
	publisher rabbit.PublisherInterface
	now       func() time.Time
}

func NewOrderService(r repository.OrderRepository, pub rabbit.PublisherInterface) *OrderService {
	return &OrderService{
		repo:      r,
		numbers:   NewOrderNumberGenerator(r, time.Now),
		publisher: pub,
		now:       time.Now,
	}
}

// SetClock replaces the time source for timestamps and order numbers.
func (u *OrderService) SetClock(now func() time.Time) {
	u.now = now
	u.numbers = NewOrderNumberGenerator(u.repo, now)
}

func validateCreateOrder(p CreateOrderParams) error {
	if strings.TrimSpace(p.CustomerName) == "" {
		return &ValidationError{Field: "customerName", Message: "Customer name is required"}
	}
	if strings.TrimSpace(p.CustomerEmail) == "" {
		return &ValidationError{Field: "customerEmail", Message: "Customer email is required"}
	}
	if len(p.Items) == 0 {
		return &ValidationError{Field: "items", Message: "At least one item is required"}
	}
	if p.Total <= 0 {
		return &ValidationError{Field: "total", Message: "Total must be greater than 0"}
	}
	if strings.TrimSpace(p.PaymentTransactionID) == "" {
		return &ValidationError{Field: "paymentTransactionId", Message: "Payment transaction ID is required"}
	}
	switch p.Status {
	case "", domain.StatusPaid, domain.StatusPending:
	default:
		return &ValidationError{Field: "status", Message: "Status must be 'pending' or 'paid'"}
	}
	for i, item := range p.Items {
		if item.Quantity <= 0 {
			return &ValidationError{Field: fmt.Sprintf("items[%d].quantity", i), Message: "Item quantity must be greater than 0"}
		}
		if item.Price < 0 {
			return &ValidationError{Field: fmt.Sprintf("items[%d].price", i), Message: "Item price must not be negative"}
		}
	}
	return nil
}

// CreateOrder materialises an order for a payment transaction. Repeating the
// call with the same transaction returns the order created the first time.
func (u *OrderService) CreateOrder(ctx context.Context, p CreateOrderParams) (*CreateOrderResult, error) {
	if err := validateCreateOrder(p); err != nil {
		return nil, err
	}
	p.CustomerName = strings.TrimSpace(p.CustomerName)
	p.CustomerEmail = strings.TrimSpace(p.CustomerEmail)
	p.CustomerPhone = strings.TrimSpace(p.CustomerPhone)
	if p.PaymentProvider == "" {
		p.PaymentProvider = domain.ProviderPayPlus
	}
	if p.Status == "" {
		p.Status = domain.StatusPaid
	}

	existing, err := u.repo.FindByPaymentTransaction(ctx, p.PaymentProvider, p.PaymentTransactionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderCreationFailed, err)
	}
	if existing != nil {
		return &CreateOrderResult{OrderID: existing.ID, OrderNumber: existing.OrderNumber, Existing: true}, nil
	}

	for attempt := 1; attempt <= maxOrderNumberAttempts; attempt++ {
		number, err := u.numbers.Next(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrOrderCreationFailed, err)
		}

		order := u.buildOrder(p, number)
		err = u.repo.Create(ctx, order)
		if err == nil {
			go u.publishConfirmation(context.Background(), order)
			return &CreateOrderResult{OrderID: order.ID, OrderNumber: order.OrderNumber}, nil
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			slog.ErrorContext(ctx, "failed to create order", "transaction_id", p.PaymentTransactionID, "error", err)
			return nil, fmt.Errorf("%w: %v", ErrOrderCreationFailed, err)
		}

		// Either a concurrent delivery of the same payment won the race, or
		// another order took this number.
		existing, lookupErr := u.repo.FindByPaymentTransaction(ctx, p.PaymentProvider, p.PaymentTransactionID)
		if lookupErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrOrderCreationFailed, lookupErr)
		}
		if existing != nil {
			return &CreateOrderResult{OrderID: existing.ID, OrderNumber: existing.OrderNumber, Existing: true}, nil
		}
		slog.WarnContext(ctx, "order number collision, retrying", "order_number", number, "attempt", attempt)
	}
	return nil, fmt.Errorf("%w: order number collisions", ErrOrderCreationFailed)
}

func (u *OrderService) buildOrder(p CreateOrderParams, number string) *domain.Order {
	now := u.now().UTC()
	addr := p.ShippingAddress
	addr.Name = p.CustomerName
	addr.Email = p.CustomerEmail
	addr.Phone = p.CustomerPhone

	order := &domain.Order{
		ID:                   uuid.NewString(),
		OrderNumber:          number,
		CustomerName:         p.CustomerName,
		CustomerEmail:        p.CustomerEmail,
		CustomerPhone:        p.CustomerPhone,
		Status:               p.Status,
		Subtotal:             p.Subtotal,
		ShippingCost:         p.Shipping,
		Discount:             p.Discount,
		Tax:                  p.Tax,
		Total:                p.Total,
		Currency:             domain.HomeCurrency,
		ShippingAddress:      datatypes.NewJSONType(addr),
		IsGift:               p.IsGift,
		PaymentProvider:      p.PaymentProvider,
		PaymentTransactionID: p.PaymentTransactionID,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if p.UserID != "" {
		userID := p.UserID
		order.UserID = &userID
	}
	if p.GiftMessage != "" {
		msg := p.GiftMessage
		order.GiftMessage = &msg
	}
	if p.Status == domain.StatusPaid {
		order.PaidAt = &now
	}

	for _, item := range p.Items {
		order.Items = append(order.Items, domain.OrderItem{
			Name:          item.Name,
			Quantity:      item.Quantity,
			UnitPrice:     item.Price,
			ItemTotal:     item.Price * int64(item.Quantity),
			Customization: datatypes.NewJSONType(normalizeCustomization(item)),
		})
	}
	order.History = []domain.StatusHistoryEntry{{
		Status:    p.Status,
		ChangedBy: ActorSystem,
		Timestamp: now,
	}}
	return order
}

func (u *OrderService) publishConfirmation(ctx context.Context, order *domain.Order) {
	if u.publisher == nil {
		return
	}
	evt := domain.OrderConfirmationEvent{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		CustomerEmail: order.CustomerEmail,
		Total:         order.Total,
		CreatedAt:     order.CreatedAt,
	}
	if err := u.publisher.Publish(ctx, domain.RoutingOrderConfirmation, evt); err != nil {
		slog.Error("failed to enqueue order confirmation", "order_id", order.ID, "error", err)
	}
}

func (u *OrderService) GetOrderByID(ctx context.Context, id string) (*domain.Order, error) {
	o, err := u.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if o == nil {
		return nil, ErrOrderNotFound
	}
	return o, nil
}

func (u *OrderService) NextStatuses(ctx context.Context, id string) (domain.OrderStatus, []domain.OrderStatus, error) {
	o, err := u.GetOrderByID(ctx, id)
	if err != nil {
		return "", nil, err
	}
	return o.Status, domain.NextStatuses(o.Status), nil
}

// UpdateStatus is the admin status change: validate, apply, append history.
func (u *OrderService) UpdateStatus(ctx context.Context, orderID string, to domain.OrderStatus, actor, note string) (*domain.Order, error) {
	return u.ApplyTransition(ctx, TransitionRequest{OrderID: orderID, To: to, Actor: actor, Note: note})
}

func (u *OrderService) ApplyTransition(ctx context.Context, req TransitionRequest) (*domain.Order, error) {
	if !req.To.Valid() {
		return nil, &ValidationError{Field: "status", Message: fmt.Sprintf("Invalid status value: %s", req.To)}
	}
	order, err := u.GetOrderByID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if !domain.IsValidTransition(order.Status, req.To) {
		return nil, &domain.TransitionError{From: order.Status, To: req.To}
	}

	now := u.now().UTC()
	fields := map[string]any{"updated_at": now}
	switch req.To {
	case domain.StatusPaid:
		fields["paid_at"] = now
	case domain.StatusShipped:
		fields["shipped_at"] = now
	case domain.StatusDelivered:
		fields["delivered_at"] = now
	case domain.StatusCancelled:
		fields["cancelled_at"] = now
	}
	for k, v := range req.Fields {
		fields[k] = v
	}

	actor := req.Actor
	if actor == "" {
		actor = ActorSystem
	}
	entry := domain.StatusHistoryEntry{Status: req.To, ChangedBy: actor, Timestamp: now}
	if req.Note != "" {
		note := req.Note
		entry.Note = &note
	}

	err = u.repo.ApplyStatusChange(ctx, repository.StatusChange{
		OrderID: order.ID,
		From:    order.Status,
		To:      req.To,
		Fields:  fields,
		Entry:   entry,
	})
	if errors.Is(err, repository.ErrConflict) {
		return nil, ErrStatusConflict
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to update order status", "order_id", order.ID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	go u.publishStatusChanged(context.Background(), domain.OrderStatusChangedEvent{
		OrderID:   order.ID,
		From:      order.Status,
		To:        req.To,
		ChangedBy: actor,
		Note:      req.Note,
		ChangedAt: now,
	})

	return u.GetOrderByID(ctx, order.ID)
}

func (u *OrderService) publishStatusChanged(ctx context.Context, evt domain.OrderStatusChangedEvent) {
	if u.publisher == nil {
		return
	}
	if err := u.publisher.Publish(ctx, domain.RoutingOrderStatusChanged, evt); err != nil {
		slog.Error("failed to publish status change", "order_id", evt.OrderID, "error", err)
	}
}
