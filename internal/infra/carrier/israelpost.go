package carrier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"print-order-service/internal/config"
	"print-order-service/internal/domain"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var israelPostServices = map[domain.ServiceType]string{
	domain.ServiceStandard:   "REGULAR",
	domain.ServiceExpress:    "EXPRESS",
	domain.ServiceRegistered: "REGISTERED",
}

type israelPostShipment struct {
	CustomerID    string  `json:"customerId"`
	Reference     string  `json:"reference"`
	ServiceType   string  `json:"serviceType"`
	Sender        Address `json:"sender"`
	Recipient     Address `json:"recipient"`
	Package       Package `json:"package"`
	DeclaredValue string  `json:"declaredValue"`
	Description   string  `json:"description,omitempty"`
}

type israelPostShipmentResponse struct {
	ShipmentID     string `json:"shipmentId"`
	TrackingNumber string `json:"trackingNumber"`
	LabelURL       string `json:"labelUrl"`
}

type israelPostRate struct {
	ServiceType string  `json:"serviceType"`
	Price       float64 `json:"price"`
	Currency    string  `json:"currency"`
	MinDays     int     `json:"minDays"`
	MaxDays     int     `json:"maxDays"`
}

type israelPostError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// IsraelPostProvider talks to the Israel Post shipping REST API.
type IsraelPostProvider struct {
	baseURL    string
	apiKey     string
	customerID string
	httpClient *http.Client
	tracer     trace.Tracer
}

func NewIsraelPostProvider(cfg config.IsraelPost) *IsraelPostProvider {
	return &IsraelPostProvider{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		customerID: cfg.CustomerID,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		tracer:     otel.Tracer("carrier.israel_post"),
	}
}

func (p *IsraelPostProvider) Code() Code   { return IsraelPost }
func (p *IsraelPostProvider) Name() string { return "Israel Post" }

func (p *IsraelPostProvider) Configured() bool {
	return p.baseURL != "" && p.apiKey != ""
}

func (p *IsraelPostProvider) CreateShipment(ctx context.Context, req ShipmentRequest) (*ShipmentResult, error) {
	ctx, span := p.tracer.Start(ctx, "israel_post.create_shipment", trace.WithAttributes(attribute.String("order.id", req.OrderID)))
	defer span.End()

	service, ok := israelPostServices[req.ServiceType]
	if !ok {
		service = israelPostServices[domain.ServiceStandard]
	}
	reference := req.Reference
	if reference == "" {
		reference = req.OrderNumber
	}
	body := israelPostShipment{
		CustomerID:    p.customerID,
		Reference:     reference,
		ServiceType:   service,
		Sender:        req.Sender,
		Recipient:     req.Recipient,
		Package:       req.Package,
		DeclaredValue: decimal.New(req.DeclaredValue, -2).StringFixed(2),
		Description:   req.Description,
	}

	var out israelPostShipmentResponse
	if err := p.do(ctx, http.MethodPost, "/shipments", body, &out); err != nil {
		recordError(span, err)
		return nil, err
	}
	if out.ShipmentID == "" {
		err := &ProviderError{Message: "carrier returned no shipment id", Code: "INVALID_RESPONSE", Carrier: IsraelPost}
		recordError(span, err)
		return nil, err
	}
	slog.InfoContext(ctx, "shipment created", "carrier", IsraelPost, "order_id", req.OrderID, "tracking_number", out.TrackingNumber)
	return &ShipmentResult{
		ShipmentID:     out.ShipmentID,
		TrackingNumber: out.TrackingNumber,
		Carrier:        IsraelPost,
		LabelURL:       out.LabelURL,
	}, nil
}

func (p *IsraelPostProvider) CancelShipment(ctx context.Context, shipmentID string) (bool, error) {
	ctx, span := p.tracer.Start(ctx, "israel_post.cancel_shipment")
	defer span.End()

	if err := p.do(ctx, http.MethodDelete, "/shipments/"+shipmentID, nil, nil); err != nil {
		recordError(span, err)
		return false, err
	}
	return true, nil
}

func (p *IsraelPostProvider) GetRates(ctx context.Context, req RateRequest) ([]RateQuote, error) {
	ctx, span := p.tracer.Start(ctx, "israel_post.get_rates")
	defer span.End()

	var out struct {
		Rates []israelPostRate `json:"rates"`
	}
	body := struct {
		CustomerID string  `json:"customerId"`
		Sender     Address `json:"sender"`
		Recipient  Address `json:"recipient"`
		Package    Package `json:"package"`
	}{p.customerID, req.Sender, req.Recipient, req.Package}
	if err := p.do(ctx, http.MethodPost, "/rates", body, &out); err != nil {
		recordError(span, err)
		return nil, err
	}

	wanted := make(map[domain.ServiceType]bool, len(req.ServiceTypes))
	for _, st := range req.ServiceTypes {
		wanted[st] = true
	}

	var quotes []RateQuote
	for _, r := range out.Rates {
		st := serviceFromIsraelPost(r.ServiceType)
		if st == "" || (len(wanted) > 0 && !wanted[st]) {
			continue
		}
		currency := r.Currency
		if currency == "" {
			currency = domain.HomeCurrency
		}
		quotes = append(quotes, RateQuote{
			ServiceType: st,
			Price:       decimal.NewFromFloat(r.Price).Shift(2).Round(0).IntPart(),
			Currency:    currency,
			MinDays:     r.MinDays,
			MaxDays:     r.MaxDays,
			Carrier:     IsraelPost,
		})
	}
	return quotes, nil
}

func serviceFromIsraelPost(name string) domain.ServiceType {
	for st, n := range israelPostServices {
		if strings.EqualFold(n, name) {
			return st
		}
	}
	return ""
}

// do performs one API call. Every failure comes back as a *ProviderError;
// transport failures and 5xx responses are retryable.
func (p *IsraelPostProvider) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return &ProviderError{Message: err.Error(), Code: "ENCODE_ERROR", Carrier: IsraelPost}
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return &ProviderError{Message: err.Error(), Code: "REQUEST_ERROR", Carrier: IsraelPost}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		code := "NETWORK_ERROR"
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			code = "TIMEOUT"
		}
		slog.ErrorContext(ctx, "carrier request failed", "carrier", IsraelPost, "path", path, "code", code, "error", err)
		return &ProviderError{Message: err.Error(), Code: code, Carrier: IsraelPost, Retryable: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr israelPostError
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = json.Unmarshal(raw, &apiErr)
		if apiErr.Code == "" {
			apiErr.Code = fmt.Sprintf("HTTP_%d", resp.StatusCode)
		}
		if apiErr.Message == "" {
			apiErr.Message = fmt.Sprintf("Israel Post API error: %d", resp.StatusCode)
		}
		slog.ErrorContext(ctx, "carrier API error", "carrier", IsraelPost, "path", path, "status", resp.StatusCode, "code", apiErr.Code)
		return &ProviderError{
			Message:   apiErr.Message,
			Code:      apiErr.Code,
			Carrier:   IsraelPost,
			Retryable: resp.StatusCode >= 500,
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ProviderError{Message: "malformed carrier response: " + err.Error(), Code: "INVALID_RESPONSE", Carrier: IsraelPost}
	}
	return nil
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
