package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"print-order-service/internal/config"
	"print-order-service/internal/domain"
	"print-order-service/internal/infra/carrier"
	"print-order-service/internal/repository"

	"github.com/google/uuid"
)

var (
	ErrShipmentNotFound       = errors.New("shipment not found")
	ErrShipmentNotRetryable   = errors.New("only failed shipments can be retried")
	ErrShipmentNotCancellable = errors.New("shipment is already delivered or cancelled")
	ErrOrderNotShippable      = errors.New("order is not ready for shipping")
	ErrNoShippingAddress      = errors.New("order has no shipping address")
	ErrShipmentExists         = errors.New("order already has a shipment")
)

const shipmentDescription = "Custom art print"

// CarrierGateway is the carrier registry as seen by the shipment flows.
type CarrierGateway interface {
	CreateShipment(ctx context.Context, req carrier.ShipmentRequest, code carrier.Code) (*carrier.ShipmentResult, error)
	CancelShipment(ctx context.Context, shipmentID string, code carrier.Code) (bool, error)
	GetRates(ctx context.Context, req carrier.RateRequest, code carrier.Code) ([]carrier.RateQuote, error)
	GetAllRates(ctx context.Context, req carrier.RateRequest) []carrier.RateQuote
}

type ShipmentDefaults struct {
	Sender  carrier.Address
	Package carrier.Package
}

func ShipmentDefaultsFromConfig(shop config.Shop) ShipmentDefaults {
	return ShipmentDefaults{
		Sender: carrier.Address{
			Name:       shop.Name,
			Company:    shop.Company,
			Street:     shop.Street,
			City:       shop.City,
			PostalCode: shop.PostalCode,
			Country:    shop.Country,
			Phone:      shop.Phone,
			Email:      shop.Email,
		},
		Package: carrier.Package{
			Length: shop.PackageLength,
			Width:  shop.PackageWidth,
			Height: shop.PackageHeight,
			Weight: shop.PackageWeight,
		},
	}
}

type CreateShipmentParams struct {
	OrderID     string
	Carrier     carrier.Code
	ServiceType domain.ServiceType
	Actor       string
}

type QuoteParams struct {
	Recipient    carrier.Address
	Package      *carrier.Package
	Carrier      carrier.Code
	ServiceTypes []domain.ServiceType
}

type ShipmentOutcome struct {
	Shipment     *domain.Shipment
	OrderShipped bool
	// Cancel only. CarrierError is set when the carrier could not be reached.
	CarrierCancelled bool
	CarrierError     string
}

type ShipmentService struct {
	orders    *OrderService
	shipments repository.ShipmentRepository
	audit     *AuditLogger
	carriers  CarrierGateway
	defaults  ShipmentDefaults
	now       func() time.Time
}

func NewShipmentService(orders *OrderService, shipments repository.ShipmentRepository, audit *AuditLogger, carriers CarrierGateway, defaults ShipmentDefaults) *ShipmentService {
	return &ShipmentService{
		orders:    orders,
		shipments: shipments,
		audit:     audit,
		carriers:  carriers,
		defaults:  defaults,
		now:       time.Now,
	}
}

func (s *ShipmentService) Create(ctx context.Context, p CreateShipmentParams) (*ShipmentOutcome, error) {
	if p.Carrier == "" {
		p.Carrier = carrier.IsraelPost
	}
	if p.ServiceType == "" {
		p.ServiceType = domain.ServiceRegistered
	}
	if !p.ServiceType.Valid() {
		return nil, &ValidationError{Field: "serviceType", Message: fmt.Sprintf("Invalid service type: %s", p.ServiceType)}
	}

	order, err := s.orders.GetOrderByID(ctx, p.OrderID)
	if err != nil {
		return nil, err
	}
	if order.Status != domain.StatusPrinting {
		return nil, fmt.Errorf("%w: status is %s", ErrOrderNotShippable, order.Status)
	}
	// A failed attempt is retried, not recreated.
	existing, err := s.shipments.FindActiveByOrder(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s is %s", ErrShipmentExists, existing.ID, existing.Status)
	}
	req, err := s.shipmentRequest(order, p.ServiceType)
	if err != nil {
		return nil, err
	}

	shipment := &domain.Shipment{
		ID:          uuid.NewString(),
		OrderID:     order.ID,
		Carrier:     string(p.Carrier),
		ServiceType: p.ServiceType,
		Status:      domain.ShipmentPending,
	}

	res, carrierErr := s.carriers.CreateShipment(ctx, req, p.Carrier)
	if carrierErr != nil {
		msg := providerMessage(carrierErr)
		shipment.Status = domain.ShipmentFailed
		shipment.LastError = &msg
		if err := s.shipments.Create(ctx, shipment); err != nil {
			slog.ErrorContext(ctx, "failed to store failed shipment", "order_id", order.ID, "error", err)
		}
		s.audit.Record(ctx, p.Actor, domain.AuditShipmentCreated, domain.OutcomeFailure, map[string]any{
			"shipmentId": shipment.ID,
			"orderId":    order.ID,
			"carrier":    p.Carrier,
			"error":      msg,
		})
		return &ShipmentOutcome{Shipment: shipment}, carrierErr
	}

	applyCarrierResult(shipment, res)
	if err := s.shipments.Create(ctx, shipment); err != nil {
		slog.ErrorContext(ctx, "carrier shipment created but not stored",
			"order_id", order.ID, "carrier_shipment_id", res.ShipmentID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	s.audit.Record(ctx, p.Actor, domain.AuditShipmentCreated, domain.OutcomeSuccess, map[string]any{
		"shipmentId":     shipment.ID,
		"orderId":        order.ID,
		"carrier":        res.Carrier,
		"trackingNumber": res.TrackingNumber,
	})

	return &ShipmentOutcome{
		Shipment:     shipment,
		OrderShipped: s.markShipped(ctx, order.ID, res.TrackingNumber, p.Actor),
	}, nil
}

func (s *ShipmentService) Retry(ctx context.Context, shipmentID, actor string) (*ShipmentOutcome, error) {
	shipment, err := s.Get(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	if shipment.Status != domain.ShipmentFailed {
		return nil, ErrShipmentNotRetryable
	}
	order, err := s.orders.GetOrderByID(ctx, shipment.OrderID)
	if err != nil {
		return nil, err
	}
	serviceType := shipment.ServiceType
	if !serviceType.Valid() {
		serviceType = domain.ServiceRegistered
	}
	req, err := s.shipmentRequest(order, serviceType)
	if err != nil {
		return nil, err
	}

	res, carrierErr := s.carriers.CreateShipment(ctx, req, carrier.Code(shipment.Carrier))
	shipment.RetryCount++
	if carrierErr != nil {
		msg := providerMessage(carrierErr)
		shipment.LastError = &msg
		if err := s.shipments.Update(ctx, shipment); err != nil {
			slog.ErrorContext(ctx, "failed to store retry error", "shipment_id", shipment.ID, "error", err)
		}
		s.audit.Record(ctx, actor, domain.AuditShipmentRetried, domain.OutcomeFailure, map[string]any{
			"shipmentId": shipment.ID,
			"orderId":    shipment.OrderID,
			"retryCount": shipment.RetryCount,
			"error":      msg,
		})
		return &ShipmentOutcome{Shipment: shipment}, carrierErr
	}

	applyCarrierResult(shipment, res)
	if err := s.shipments.Update(ctx, shipment); err != nil {
		slog.ErrorContext(ctx, "carrier shipment created but not stored",
			"shipment_id", shipment.ID, "carrier_shipment_id", res.ShipmentID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	s.audit.Record(ctx, actor, domain.AuditShipmentRetried, domain.OutcomeSuccess, map[string]any{
		"shipmentId":        shipment.ID,
		"orderId":           shipment.OrderID,
		"newTrackingNumber": res.TrackingNumber,
		"retryCount":        shipment.RetryCount,
	})

	return &ShipmentOutcome{
		Shipment:     shipment,
		OrderShipped: s.markShipped(ctx, shipment.OrderID, res.TrackingNumber, actor),
	}, nil
}

// Cancel always marks the shipment cancelled locally. Whether the carrier
// confirmed is reported back, not enforced.
func (s *ShipmentService) Cancel(ctx context.Context, shipmentID, actor string) (*ShipmentOutcome, error) {
	shipment, err := s.Get(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	if shipment.Status == domain.ShipmentDelivered || shipment.Status == domain.ShipmentCancelled {
		return nil, ErrShipmentNotCancellable
	}
	if actor == "" {
		actor = DefaultActor
	}

	out := &ShipmentOutcome{Shipment: shipment}
	if shipment.CarrierShipmentID != "" {
		ok, err := s.carriers.CancelShipment(ctx, shipment.CarrierShipmentID, carrier.Code(shipment.Carrier))
		if err != nil {
			out.CarrierError = providerMessage(err)
			slog.WarnContext(ctx, "carrier cancellation failed, cancelling locally",
				"shipment_id", shipment.ID, "carrier", shipment.Carrier, "error", err)
		}
		out.CarrierCancelled = ok && err == nil
	}

	now := s.now().UTC()
	shipment.Status = domain.ShipmentCancelled
	shipment.CancelledAt = &now
	shipment.CancelledBy = &actor
	if err := s.shipments.Update(ctx, shipment); err != nil {
		slog.ErrorContext(ctx, "failed to cancel shipment", "shipment_id", shipment.ID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	details := map[string]any{
		"shipmentId":       shipment.ID,
		"orderId":          shipment.OrderID,
		"carrier":          shipment.Carrier,
		"carrierCancelled": out.CarrierCancelled,
	}
	if out.CarrierError != "" {
		details["carrierError"] = out.CarrierError
	}
	s.audit.Record(ctx, actor, domain.AuditShipmentCancelled, domain.OutcomeSuccess, details)
	return out, nil
}

func (s *ShipmentService) Get(ctx context.Context, shipmentID string) (*domain.Shipment, error) {
	shipment, err := s.shipments.FindByID(ctx, shipmentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if shipment == nil {
		return nil, ErrShipmentNotFound
	}
	return shipment, nil
}

type ShipmentPage struct {
	Shipments  []domain.Shipment `json:"shipments"`
	Total      int64             `json:"total"`
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
	TotalPages int               `json:"totalPages"`
}

func (s *ShipmentService) List(ctx context.Context, orderID string, page, limit int) (*ShipmentPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	items, total, err := s.shipments.List(ctx, orderID, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if items == nil {
		items = []domain.Shipment{}
	}
	return &ShipmentPage{
		Shipments:  items,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: int((total + int64(limit) - 1) / int64(limit)),
	}, nil
}

// Quote asks one carrier, or every configured carrier when none is named.
func (s *ShipmentService) Quote(ctx context.Context, p QuoteParams) ([]carrier.RateQuote, error) {
	req := carrier.RateRequest{
		Sender:       s.defaults.Sender,
		Recipient:    p.Recipient,
		Package:      s.defaults.Package,
		ServiceTypes: p.ServiceTypes,
	}
	if p.Package != nil {
		req.Package = *p.Package
	}
	if p.Carrier != "" {
		return s.carriers.GetRates(ctx, req, p.Carrier)
	}
	return s.carriers.GetAllRates(ctx, req), nil
}

func (s *ShipmentService) shipmentRequest(order *domain.Order, serviceType domain.ServiceType) (carrier.ShipmentRequest, error) {
	addr := order.ShippingAddress.Data()
	if addr.Street == "" || addr.City == "" {
		return carrier.ShipmentRequest{}, ErrNoShippingAddress
	}
	country := addr.Country
	if country == "" {
		country = "Israel"
	}
	return carrier.ShipmentRequest{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Sender:      s.defaults.Sender,
		Recipient: carrier.Address{
			Name:       addr.Name,
			Street:     addr.Street,
			Street2:    addr.Street2,
			City:       addr.City,
			PostalCode: addr.PostalCode,
			Country:    country,
			Phone:      addr.Phone,
			Email:      addr.Email,
		},
		Package:       s.defaults.Package,
		ServiceType:   serviceType,
		DeclaredValue: order.Total,
		Description:   shipmentDescription,
		Reference:     order.OrderNumber,
	}, nil
}

// markShipped advances the order after a successful carrier booking. The
// shipment already exists at the carrier, so a refused transition is logged.
func (s *ShipmentService) markShipped(ctx context.Context, orderID, trackingNumber, actor string) bool {
	if actor == "" {
		actor = DefaultActor
	}
	_, err := s.orders.ApplyTransition(ctx, TransitionRequest{
		OrderID: orderID,
		To:      domain.StatusShipped,
		Actor:   actor,
		Note:    "Shipment created, tracking " + trackingNumber,
		Fields:  map[string]any{"tracking_number": trackingNumber},
	})
	if err != nil {
		slog.WarnContext(ctx, "order not advanced to shipped", "order_id", orderID, "error", err)
		return false
	}
	return true
}

func applyCarrierResult(shipment *domain.Shipment, res *carrier.ShipmentResult) {
	shipment.CarrierShipmentID = res.ShipmentID
	shipment.TrackingNumber = res.TrackingNumber
	shipment.LabelURL = res.LabelURL
	if res.Carrier != "" {
		shipment.Carrier = string(res.Carrier)
	}
	shipment.Status = domain.ShipmentCreated
	shipment.LastError = nil
}

func providerMessage(err error) string {
	var perr *carrier.ProviderError
	if errors.As(err, &perr) {
		return perr.Message
	}
	return err.Error()
}
