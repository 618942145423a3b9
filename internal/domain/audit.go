package domain

import (
	"time"

	"gorm.io/datatypes"
)

const (
	AuditShipmentCreated   = "shipment_created"
	AuditShipmentRetried   = "shipment_retried"
	AuditShipmentCancelled = "shipment_cancelled"
	AuditOrderRefunded     = "order_refunded"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

type AuditLogEntry struct {
	ID        uint64         `json:"id" gorm:"primaryKey;autoIncrement"`
	ActorID   string         `json:"actorId" gorm:"type:varchar(64);not null;index"`
	Action    string         `json:"action" gorm:"type:varchar(64);not null"`
	Outcome   string         `json:"outcome" gorm:"type:varchar(16);not null"`
	Details   datatypes.JSON `json:"details"`
	CreatedAt time.Time      `json:"createdAt" gorm:"autoCreateTime"`
}

func (AuditLogEntry) TableName() string { return "admin_audit_log" }
