package domain

import (
	"time"

	"gorm.io/datatypes"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusPaid       OrderStatus = "paid"
	StatusProcessing OrderStatus = "processing"
	StatusPrinting   OrderStatus = "printing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

const HomeCurrency = "ILS"

type ShippingAddress struct {
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Street     string `json:"street"`
	Street2    string `json:"street2,omitempty"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country,omitempty"`
}

// Order amounts are integer minor units. Total is supplied by the caller and
// is expected to equal Subtotal + ShippingCost - Discount + Tax.
type Order struct {
	ID                   string                              `json:"id" gorm:"primaryKey;type:char(36)"`
	OrderNumber          string                              `json:"orderNumber" gorm:"type:varchar(20);not null;uniqueIndex"`
	UserID               *string                             `json:"userId,omitempty" gorm:"type:varchar(64);index"`
	CustomerName         string                              `json:"customerName" gorm:"type:varchar(255);not null"`
	CustomerEmail        string                              `json:"customerEmail" gorm:"type:varchar(255);not null"`
	CustomerPhone        string                              `json:"customerPhone,omitempty" gorm:"type:varchar(32)"`
	Status               OrderStatus                         `json:"status" gorm:"type:varchar(16);not null;index"`
	Subtotal             int64                               `json:"subtotal" gorm:"not null"`
	ShippingCost         int64                               `json:"shippingCost" gorm:"not null"`
	Discount             int64                               `json:"discount" gorm:"not null;default:0"`
	Tax                  int64                               `json:"tax" gorm:"not null;default:0"`
	Total                int64                               `json:"total" gorm:"not null"`
	Currency             string                              `json:"currency" gorm:"type:char(3);not null"`
	ShippingAddress      datatypes.JSONType[ShippingAddress] `json:"shippingAddress"`
	IsGift               bool                                `json:"isGift"`
	GiftMessage          *string                             `json:"giftMessage,omitempty" gorm:"type:text"`
	PaymentProvider      string                              `json:"paymentProvider" gorm:"type:varchar(32);not null;uniqueIndex:idx_orders_payment"`
	PaymentTransactionID string                              `json:"paymentTransactionId" gorm:"type:varchar(128);not null;uniqueIndex:idx_orders_payment"`
	TrackingNumber       *string                             `json:"trackingNumber,omitempty" gorm:"type:varchar(64)"`
	CreatedAt            time.Time                           `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt            time.Time                           `json:"updatedAt" gorm:"autoUpdateTime"`
	PaidAt               *time.Time                          `json:"paidAt,omitempty"`
	ShippedAt            *time.Time                          `json:"shippedAt,omitempty"`
	DeliveredAt          *time.Time                          `json:"deliveredAt,omitempty"`
	CancelledAt          *time.Time                          `json:"cancelledAt,omitempty"`

	Items   []OrderItem          `json:"items,omitempty" gorm:"foreignKey:OrderID"`
	History []StatusHistoryEntry `json:"history,omitempty" gorm:"foreignKey:OrderID"`
}

type ItemCustomization struct {
	Style          string `json:"style"`
	Size           string `json:"size"`
	Paper          string `json:"paper"`
	Frame          string `json:"frame"`
	SourceImageURL string `json:"sourceImageUrl,omitempty"`
	ResultImageURL string `json:"resultImageUrl,omitempty"`
}

// OrderItem is created together with its order and never modified.
type OrderItem struct {
	ID            uint64                                `json:"id" gorm:"primaryKey;autoIncrement"`
	OrderID       string                                `json:"orderId" gorm:"type:char(36);not null;index"`
	Name          string                                `json:"name" gorm:"type:varchar(255);not null"`
	Quantity      int                                   `json:"quantity" gorm:"not null"`
	UnitPrice     int64                                 `json:"unitPrice" gorm:"not null"`
	ItemTotal     int64                                 `json:"itemTotal" gorm:"not null"`
	Customization datatypes.JSONType[ItemCustomization] `json:"customization"`
}

// StatusHistoryEntry rows are append-only.
type StatusHistoryEntry struct {
	ID        uint64      `json:"id" gorm:"primaryKey;autoIncrement"`
	OrderID   string      `json:"orderId" gorm:"type:char(36);not null;index"`
	Status    OrderStatus `json:"status" gorm:"type:varchar(16);not null"`
	ChangedBy string      `json:"changedBy" gorm:"type:varchar(64);not null"`
	Note      *string     `json:"note,omitempty" gorm:"type:text"`
	Timestamp time.Time   `json:"timestamp" gorm:"not null"`
}

func (StatusHistoryEntry) TableName() string { return "order_status_history" }
