package carrier

import (
	"context"
	"fmt"

	"print-order-service/internal/domain"
)

type Code string

const (
	IsraelPost Code = "israel_post"
	Other      Code = "other"
)

type Address struct {
	Name       string `json:"name"`
	Company    string `json:"company,omitempty"`
	Street     string `json:"address"`
	Street2    string `json:"address2,omitempty"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country,omitempty"`
	Phone      string `json:"phone"`
	Email      string `json:"email,omitempty"`
}

// Package dimensions are centimetres, weight is grams.
type Package struct {
	Length int `json:"length"`
	Width  int `json:"width"`
	Height int `json:"height"`
	Weight int `json:"weight"`
}

type ShipmentRequest struct {
	OrderID     string
	OrderNumber string
	Sender      Address
	Recipient   Address
	Package     Package
	ServiceType domain.ServiceType
	// DeclaredValue is in minor units.
	DeclaredValue int64
	Description   string
	Reference     string
}

type ShipmentResult struct {
	ShipmentID     string `json:"shipmentId"`
	TrackingNumber string `json:"trackingNumber"`
	Carrier        Code   `json:"carrier"`
	LabelURL       string `json:"labelUrl,omitempty"`
}

type RateRequest struct {
	Sender       Address              `json:"sender"`
	Recipient    Address              `json:"recipient"`
	Package      Package              `json:"package"`
	ServiceTypes []domain.ServiceType `json:"serviceTypes,omitempty"`
}

type RateQuote struct {
	ServiceType domain.ServiceType `json:"serviceType"`
	Price       int64              `json:"price"`
	Currency    string             `json:"currency"`
	MinDays     int                `json:"minDays"`
	MaxDays     int                `json:"maxDays"`
	Carrier     Code               `json:"carrier"`
}

// Provider is one carrier integration.
type Provider interface {
	Code() Code
	Name() string
	Configured() bool
	CreateShipment(ctx context.Context, req ShipmentRequest) (*ShipmentResult, error)
	// CancelShipment reports false when the carrier declined the cancellation.
	CancelShipment(ctx context.Context, shipmentID string) (bool, error)
	GetRates(ctx context.Context, req RateRequest) ([]RateQuote, error)
}

// ProviderError is returned by every carrier call that fails.
type ProviderError struct {
	Message   string
	Code      string
	Carrier   Code
	Retryable bool
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Carrier, e.Message, e.Code)
}
