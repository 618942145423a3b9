package payplus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"print-order-service/internal/config"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const refundPath = "/Transactions/RefundByTransactionUID"

// RefundResult is the only outcome of a refund attempt; failures are carried
// in ErrorMessage rather than returned as errors.
type RefundResult struct {
	Success             bool   `json:"success"`
	RefundTransactionID string `json:"refundTransactionId,omitempty"`
	ErrorMessage        string `json:"errorMessage,omitempty"`
}

type RefundRequest struct {
	TransactionID string
	Amount        int64 // minor units
	Reason        string
}

type refundPayload struct {
	RelatedTransactionUID string      `json:"related_transaction_uid"`
	Amount                json.Number `json:"amount"`
	MoreInfo              string      `json:"more_info,omitempty"`
}

type refundResponse struct {
	Results *struct {
		Status      string `json:"status"`
		Code        any    `json:"code"`
		Description string `json:"description"`
	} `json:"results"`
	Data *struct {
		TransactionUID string `json:"transaction_uid"`
	} `json:"data"`
}

type Client struct {
	baseURL    string
	apiKey     string
	secretKey  string
	httpClient *http.Client
}

func NewClient(cfg config.PayPlus) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		secretKey:  cfg.SecretKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// WithHTTPClient swaps the transport, keeping the configured timeout when the
// given client has none. The caller's client is not modified.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	clone := *hc
	if clone.Timeout == 0 {
		clone.Timeout = c.httpClient.Timeout
	}
	c.httpClient = &clone
	return c
}

// MinorToMajor converts agorot to the shekel amount PayPlus expects.
func MinorToMajor(amount int64) decimal.Decimal {
	return decimal.New(amount, -2)
}

func (c *Client) Refund(ctx context.Context, req RefundRequest) (result RefundResult) {
	ctx, span := otel.Tracer("payplus").Start(ctx, "payplus.refund")
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "refund panicked", "panic", r)
			result = RefundResult{ErrorMessage: fmt.Sprintf("refund failed: %v", r)}
		}
		span.SetAttributes(attribute.Bool("refund.success", result.Success))
		if !result.Success {
			span.SetStatus(codes.Error, result.ErrorMessage)
		}
		span.End()
	}()

	if !strings.HasPrefix(c.baseURL, "https://") {
		return RefundResult{ErrorMessage: "PayPlus base URL must use HTTPS"}
	}

	amount := MinorToMajor(req.Amount)
	slog.InfoContext(ctx, "processing refund", "transaction_id", req.TransactionID, "amount", amount.StringFixed(2))

	body, err := json.Marshal(refundPayload{
		RelatedTransactionUID: req.TransactionID,
		Amount:                json.Number(amount.StringFixed(2)),
		MoreInfo:              req.Reason,
	})
	if err != nil {
		return RefundResult{ErrorMessage: err.Error()}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+refundPath, bytes.NewReader(body))
	if err != nil {
		return RefundResult{ErrorMessage: err.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("api-key", c.apiKey)
	httpReq.Header.Set("secret-key", c.secretKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		slog.ErrorContext(ctx, "refund request failed", "transaction_id", req.TransactionID, "error", err)
		return RefundResult{ErrorMessage: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		slog.ErrorContext(ctx, "PayPlus refund API error", "status", resp.StatusCode, "body", string(text))
		return RefundResult{ErrorMessage: fmt.Sprintf("PayPlus API error: %d", resp.StatusCode)}
	}

	var data refundResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		slog.ErrorContext(ctx, "malformed refund response", "error", err)
		return RefundResult{ErrorMessage: fmt.Sprintf("malformed PayPlus response: %v", err)}
	}

	if data.Results == nil || data.Results.Status != "success" {
		msg := "Error code: unknown"
		if data.Results != nil {
			msg = data.Results.Description
			if msg == "" {
				msg = fmt.Sprintf("Error code: %v", data.Results.Code)
			}
		}
		slog.ErrorContext(ctx, "PayPlus refund failed", "transaction_id", req.TransactionID, "message", msg)
		return RefundResult{ErrorMessage: msg}
	}

	var refundID string
	if data.Data != nil {
		refundID = data.Data.TransactionUID
	}
	slog.InfoContext(ctx, "refund successful", "refund_transaction_id", refundID)
	return RefundResult{Success: true, RefundTransactionID: refundID}
}
