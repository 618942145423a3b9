package domain

import "time"

type ShipmentStatus string

const (
	ShipmentPending   ShipmentStatus = "pending"
	ShipmentCreated   ShipmentStatus = "created"
	ShipmentFailed    ShipmentStatus = "failed"
	ShipmentCancelled ShipmentStatus = "cancelled"
	ShipmentDelivered ShipmentStatus = "delivered"
)

type ServiceType string

const (
	ServiceStandard   ServiceType = "standard"
	ServiceExpress    ServiceType = "express"
	ServiceRegistered ServiceType = "registered"
)

func (s ServiceType) Valid() bool {
	switch s {
	case ServiceStandard, ServiceExpress, ServiceRegistered:
		return true
	}
	return false
}

// Shipment is mutated in place across retries and on cancellation.
type Shipment struct {
	ID                string         `json:"id" gorm:"primaryKey;type:char(36)"`
	OrderID           string         `json:"orderId" gorm:"type:char(36);not null;index"`
	Carrier           string         `json:"carrier" gorm:"type:varchar(32);not null"`
	CarrierShipmentID string         `json:"shipmentId" gorm:"type:varchar(128)"`
	TrackingNumber    string         `json:"trackingNumber" gorm:"type:varchar(64)"`
	Status            ShipmentStatus `json:"status" gorm:"type:varchar(16);not null"`
	ServiceType       ServiceType    `json:"serviceType" gorm:"type:varchar(16);not null"`
	RetryCount        int            `json:"retryCount" gorm:"not null;default:0"`
	LastError         *string        `json:"lastError,omitempty" gorm:"type:text"`
	LabelURL          string         `json:"labelUrl,omitempty" gorm:"type:varchar(512)"`
	CancelledAt       *time.Time     `json:"cancelledAt,omitempty"`
	CancelledBy       *string        `json:"cancelledBy,omitempty" gorm:"type:varchar(64)"`
	CreatedAt         time.Time      `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt         time.Time      `json:"updatedAt" gorm:"autoUpdateTime"`
}
