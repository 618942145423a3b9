package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"print-order-service/internal/domain"
	"print-order-service/internal/repository"

	"github.com/shopspring/decimal"
)

const (
	ActorPayPlusWebhook   = "payplus-webhook"
	payPlusSuccessCode    = "000"
	payPlusPaymentConfirm = "Payment confirmed by PayPlus"
)

// PayPlusWebhook is the callback body PayPlus posts after a charge. Amount is
// in shekels, either as a JSON number or a string.
type PayPlusWebhook struct {
	TransactionUID   string          `json:"transaction_uid"`
	PageRequestUID   string          `json:"page_request_uid"`
	StatusCode       string          `json:"status_code"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	NumberOfPayments int             `json:"number_of_payments"`
	FourDigits       string          `json:"four_digits"`
	BrandName        string          `json:"brand_name"`
	MoreInfo         string          `json:"more_info"`
	ErrorCode        string          `json:"error_code"`
	ErrorMessage     string          `json:"error_message"`
}

type WebhookOutcome struct {
	OrderID   string
	PaymentID string
	Duplicate bool
	// MarkedPaid is true only for the delivery that moved the order to paid.
	MarkedPaid bool
}

type WebhookService struct {
	orders   *OrderService
	repo     repository.OrderRepository
	recorder *PaymentRecorder
}

func NewWebhookService(orders *OrderService, repo repository.OrderRepository, recorder *PaymentRecorder) *WebhookService {
	return &WebhookService{orders: orders, repo: repo, recorder: recorder}
}

func (s *WebhookService) HandlePayPlus(ctx context.Context, evt PayPlusWebhook, raw []byte) (*WebhookOutcome, error) {
	if evt.TransactionUID == "" {
		return nil, &ValidationError{Field: "transaction_uid", Message: "Missing transaction_uid"}
	}

	order, err := s.resolveOrder(ctx, evt)
	if err != nil {
		return nil, err
	}

	status := domain.PaymentFailed
	if evt.StatusCode == payPlusSuccessCode {
		status = domain.PaymentSucceeded
	}

	rec, err := s.recorder.Record(ctx, RecordPaymentParams{
		OrderID:               order.ID,
		Provider:              domain.ProviderPayPlus,
		Status:                status,
		ExternalID:            evt.PageRequestUID,
		ExternalTransactionID: evt.TransactionUID,
		Amount:                evt.Amount.Shift(2).Round(0).IntPart(),
		Currency:              evt.Currency,
		Installments:          evt.NumberOfPayments,
		CardLastFour:          evt.FourDigits,
		CardBrand:             evt.BrandName,
		ErrorCode:             evt.ErrorCode,
		ErrorMessage:          evt.ErrorMessage,
		WebhookPayload:        raw,
	})
	if err != nil {
		return nil, err
	}

	out := &WebhookOutcome{OrderID: order.ID, PaymentID: rec.PaymentID, Duplicate: rec.AlreadyExists}
	// A replay still advances the order when an earlier delivery stored the
	// payment but failed before the transition. The conditional update turns
	// a true duplicate into a conflict below.
	if rec.Status != domain.PaymentSucceeded {
		return out, nil
	}
	if order.Status != domain.StatusPending {
		slog.InfoContext(ctx, "order already past pending", "order_id", order.ID, "status", order.Status)
		return out, nil
	}

	_, err = s.orders.ApplyTransition(ctx, TransitionRequest{
		OrderID: order.ID,
		To:      domain.StatusPaid,
		Actor:   ActorPayPlusWebhook,
		Note:    payPlusPaymentConfirm,
	})
	var terr *domain.TransitionError
	switch {
	case err == nil:
		out.MarkedPaid = true
	case errors.Is(err, ErrStatusConflict), errors.As(err, &terr):
		slog.InfoContext(ctx, "order status moved concurrently", "order_id", order.ID, "error", err)
	default:
		return nil, err
	}
	return out, nil
}

func (s *WebhookService) resolveOrder(ctx context.Context, evt PayPlusWebhook) (*domain.Order, error) {
	var (
		order *domain.Order
		err   error
	)
	switch {
	case evt.MoreInfo != "":
		order, err = s.repo.FindByID(ctx, evt.MoreInfo)
	case evt.PageRequestUID != "":
		order, err = s.repo.FindByPaymentTransaction(ctx, domain.ProviderPayPlus, evt.PageRequestUID)
	default:
		return nil, &ValidationError{Field: "more_info", Message: "Webhook does not identify an order"}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if order == nil {
		slog.WarnContext(ctx, "webhook for unknown order", "transaction_id", evt.TransactionUID, "more_info", evt.MoreInfo)
		return nil, ErrOrderNotFound
	}
	return order, nil
}
