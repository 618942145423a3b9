package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"print-order-service/internal/config"
	"print-order-service/internal/domain"
	"print-order-service/internal/infra/rabbitmq"
)

// Worker turns queued order events into calls to the storefront's
// confirmation endpoint. Email content is produced there.
type Worker struct {
	confirmURL string
	httpClient *http.Client
}

func NewWorker(cfg config.Notification) *Worker {
	return &Worker{
		confirmURL: cfg.ConfirmURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Handle is a rabbitmq.HandlerFunc.
func (w *Worker) Handle(ctx context.Context, env rabbitmq.Envelope) error {
	switch env.Pattern {
	case domain.RoutingOrderConfirmation:
		var evt domain.OrderConfirmationEvent
		if err := json.Unmarshal(env.Data, &evt); err != nil {
			slog.ErrorContext(ctx, "dropping undecodable confirmation", "message_id", env.ID, "error", err)
			return nil
		}
		return w.sendConfirmation(ctx, evt)
	case domain.RoutingOrderStatusChanged:
		var evt domain.OrderStatusChangedEvent
		if err := json.Unmarshal(env.Data, &evt); err != nil {
			slog.ErrorContext(ctx, "dropping undecodable status change", "message_id", env.ID, "error", err)
			return nil
		}
		slog.InfoContext(ctx, "order status changed", "order_id", evt.OrderID, "from", evt.From, "to", evt.To, "changed_by", evt.ChangedBy)
		return nil
	default:
		slog.WarnContext(ctx, "ignoring message with unknown pattern", "pattern", env.Pattern, "message_id", env.ID)
		return nil
	}
}

func (w *Worker) sendConfirmation(ctx context.Context, evt domain.OrderConfirmationEvent) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	url := fmt.Sprintf(w.confirmURL, evt.OrderID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("confirmation request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("confirmation endpoint returned %d", resp.StatusCode)
	}
	if resp.StatusCode >= 300 {
		slog.WarnContext(ctx, "confirmation rejected", "order_id", evt.OrderID, "status", resp.StatusCode)
		return nil
	}
	slog.InfoContext(ctx, "confirmation sent", "order_id", evt.OrderID, "order_number", evt.OrderNumber)
	return nil
}
