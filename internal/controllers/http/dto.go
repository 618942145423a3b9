package http

import (
	"print-order-service/internal/domain"
	"print-order-service/internal/infra/carrier"
	"print-order-service/internal/services"
)

type OrderItemRequest struct {
	Name                string `json:"name"`
	Quantity            int    `json:"quantity"`
	Price               int64  `json:"price"`
	ImageURL            string `json:"imageUrl"`
	TransformedImageURL string `json:"transformedImageUrl"`
	Style               string `json:"style"`
	Size                string `json:"size"`
	Paper               string `json:"paper"`
	Frame               string `json:"frame"`
}

type ShippingAddressRequest struct {
	Street     string `json:"street"`
	Street2    string `json:"street2"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

type CreateOrderRequest struct {
	UserID               string                 `json:"userId"`
	CustomerName         string                 `json:"customerName"`
	CustomerEmail        string                 `json:"customerEmail"`
	CustomerPhone        string                 `json:"customerPhone"`
	Items                []OrderItemRequest     `json:"items"`
	Subtotal             int64                  `json:"subtotal"`
	Shipping             int64                  `json:"shipping"`
	Discount             int64                  `json:"discount"`
	Tax                  int64                  `json:"tax"`
	Total                int64                  `json:"total"`
	ShippingAddress      ShippingAddressRequest `json:"shippingAddress"`
	PaymentProvider      string                 `json:"paymentProvider"`
	PaymentTransactionID string                 `json:"paymentTransactionId"`
	IsGift               bool                   `json:"isGift"`
	GiftMessage          string                 `json:"giftMessage"`
	Status               string                 `json:"status"`
}

func (r CreateOrderRequest) toParams() services.CreateOrderParams {
	items := make([]services.CreateOrderItem, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, services.CreateOrderItem{
			Name:           it.Name,
			Quantity:       it.Quantity,
			Price:          it.Price,
			ImageURL:       it.ImageURL,
			ResultImageURL: it.TransformedImageURL,
			Style:          it.Style,
			Size:           it.Size,
			Paper:          it.Paper,
			Frame:          it.Frame,
		})
	}
	return services.CreateOrderParams{
		UserID:        r.UserID,
		CustomerName:  r.CustomerName,
		CustomerEmail: r.CustomerEmail,
		CustomerPhone: r.CustomerPhone,
		Items:         items,
		Subtotal:      r.Subtotal,
		Shipping:      r.Shipping,
		Discount:      r.Discount,
		Tax:           r.Tax,
		Total:         r.Total,
		ShippingAddress: domain.ShippingAddress{
			Street:     r.ShippingAddress.Street,
			Street2:    r.ShippingAddress.Street2,
			City:       r.ShippingAddress.City,
			PostalCode: r.ShippingAddress.PostalCode,
			Country:    r.ShippingAddress.Country,
		},
		PaymentProvider:      r.PaymentProvider,
		PaymentTransactionID: r.PaymentTransactionID,
		IsGift:               r.IsGift,
		GiftMessage:          r.GiftMessage,
		Status:               domain.OrderStatus(r.Status),
	}
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Note   string `json:"note"`
}

type RefundRequest struct {
	Amount int64  `json:"amount" binding:"min=0"`
	Reason string `json:"reason"`
}

type CreateShipmentRequest struct {
	OrderID     string `json:"orderId" binding:"required"`
	Carrier     string `json:"carrier"`
	ServiceType string `json:"serviceType"`
}

type QuoteRequest struct {
	Carrier      string               `json:"carrier"`
	Recipient    carrier.Address      `json:"recipient"`
	Package      *carrier.Package     `json:"package"`
	ServiceTypes []domain.ServiceType `json:"serviceTypes"`
}

type ShipmentResponse struct {
	Success        bool   `json:"success"`
	ID             string `json:"id"`
	ShipmentID     string `json:"shipmentId"`
	TrackingNumber string `json:"trackingNumber"`
	Carrier        string `json:"carrier"`
	LabelURL       string `json:"labelUrl,omitempty"`
	RetryCount     int    `json:"retryCount"`
	OrderShipped   bool   `json:"orderShipped"`
}

func toShipmentResponse(out *services.ShipmentOutcome) ShipmentResponse {
	s := out.Shipment
	return ShipmentResponse{
		Success:        true,
		ID:             s.ID,
		ShipmentID:     s.CarrierShipmentID,
		TrackingNumber: s.TrackingNumber,
		Carrier:        s.Carrier,
		LabelURL:       s.LabelURL,
		RetryCount:     s.RetryCount,
		OrderShipped:   out.OrderShipped,
	}
}
