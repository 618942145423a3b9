package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"print-order-service/internal/domain"
	"print-order-service/internal/infra"
	"print-order-service/internal/infra/carrier"
	"print-order-service/internal/infra/payplus"
	"print-order-service/internal/services"

	"github.com/gin-gonic/gin"
)

const payPlusUserAgent = "PayPlus"

type Handler struct {
	orders        *services.OrderService
	webhooks      *services.WebhookService
	refunds       *services.RefundService
	shipments     *services.ShipmentService
	transforms    *services.TransformGate
	limiter       *services.RateLimiter
	webhookSecret string
}

type Deps struct {
	Orders        *services.OrderService
	Webhooks      *services.WebhookService
	Refunds       *services.RefundService
	Shipments     *services.ShipmentService
	Transforms    *services.TransformGate
	Limiter       *services.RateLimiter
	WebhookSecret string
}

func NewHandler(d Deps) *Handler {
	limiter := d.Limiter
	if limiter == nil {
		limiter = services.NewRateLimiter(nil, nil)
	}
	return &Handler{
		orders:        d.Orders,
		webhooks:      d.Webhooks,
		refunds:       d.Refunds,
		shipments:     d.Shipments,
		transforms:    d.Transforms,
		limiter:       limiter,
		webhookSecret: d.WebhookSecret,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	limit := func(t services.RateTier) gin.HandlerFunc { return RateLimit(h.limiter, t) }

	api := r.Group("/api")
	api.POST("/orders", limit(services.TierCheckout), h.CreateOrder)
	api.GET("/orders/:id", limit(services.TierGeneral), h.GetOrder)
	api.POST("/transform", limit(services.TierTransform), h.Transform)
	api.POST("/webhooks/payplus", h.PayPlusWebhook)

	admin := api.Group("/admin", limit(services.TierGeneral))
	admin.PATCH("/orders/:id/status", h.UpdateStatus)
	admin.GET("/orders/:id/transitions", h.Transitions)
	admin.POST("/orders/:id/refund", limit(services.TierStrict), h.Refund)

	admin.POST("/shipments", h.CreateShipment)
	admin.GET("/shipments", h.ListShipments)
	admin.POST("/shipments/quote", h.QuoteShipment)
	admin.GET("/shipments/:id", h.GetShipment)
	admin.PATCH("/shipments/:id/retry", h.RetryShipment)
	admin.DELETE("/shipments/:id", h.CancelShipment)
}

func (h *Handler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	res, err := h.orders.CreateOrder(c.Request.Context(), req.toParams())
	if err != nil {
		writeError(c, err)
		return
	}

	status := http.StatusCreated
	if res.Existing {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{"orderId": res.OrderID, "orderNumber": res.OrderNumber, "existing": res.Existing})
}

func (h *Handler) GetOrder(c *gin.Context) {
	order, err := h.orders.GetOrderByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Status is required"})
		return
	}

	order, err := h.orders.UpdateStatus(c.Request.Context(), c.Param("id"), domain.OrderStatus(req.Status), actorID(c), req.Note)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) Transitions(c *gin.Context) {
	current, next, err := h.orders.NextStatuses(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if next == nil {
		next = []domain.OrderStatus{}
	}
	c.JSON(http.StatusOK, gin.H{"status": current, "transitions": next})
}

func (h *Handler) Refund(c *gin.Context) {
	var req RefundRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
	}

	res, err := h.refunds.RefundOrder(c.Request.Context(), services.RefundParams{
		OrderID: c.Param("id"),
		Amount:  req.Amount,
		Reason:  req.Reason,
		Actor:   actorID(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// PayPlusWebhook answers 200 for every delivery it has durably handled,
// including repeats, so PayPlus stops retrying.
func (h *Handler) PayPlusWebhook(c *gin.Context) {
	if h.webhookSecret == "" {
		slog.ErrorContext(c.Request.Context(), "payplus webhook secret not configured")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook not configured"})
		return
	}
	if c.GetHeader("User-Agent") != payPlusUserAgent {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	hash := c.GetHeader("hash")
	if hash == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing signature"})
		return
	}

	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if !payplus.ValidateWebhook(raw, hash, h.webhookSecret) {
		slog.WarnContext(c.Request.Context(), "payplus webhook signature mismatch")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid signature"})
		return
	}

	var evt services.PayPlusWebhook
	if err := json.Unmarshal(raw, &evt); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}

	out, err := h.webhooks.HandlePayPlus(c.Request.Context(), evt, raw)
	if err != nil {
		writeError(c, err)
		return
	}
	if out.Duplicate {
		c.JSON(http.StatusOK, gin.H{"received": true, "duplicate": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (h *Handler) Transform(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	subject := strings.TrimSpace(c.GetHeader("X-User-ID"))
	if subject == "" {
		subject = ClientIdentity(c.Request)
	}

	resp, slot, err := h.transforms.Run(c.Request.Context(), subject, c.ContentType(), body)
	switch {
	case errors.Is(err, services.ErrConcurrencyLimit):
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":   "Too many concurrent transforms. Please wait for one to finish.",
			"code":    "CONCURRENCY_LIMIT",
			"current": slot.CurrentCount,
		})
	case errors.Is(err, infra.ErrTransformUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Transform service unavailable"})
	case err != nil:
		c.JSON(http.StatusBadGateway, gin.H{"error": "Transform failed"})
	default:
		c.Data(resp.StatusCode, resp.ContentType, resp.Body)
	}
}

func (h *Handler) CreateShipment(c *gin.Context) {
	var req CreateShipmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Order ID is required"})
		return
	}

	out, err := h.shipments.Create(c.Request.Context(), services.CreateShipmentParams{
		OrderID:     req.OrderID,
		Carrier:     carrier.Code(req.Carrier),
		ServiceType: domain.ServiceType(req.ServiceType),
		Actor:       actorID(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toShipmentResponse(out))
}

func (h *Handler) ListShipments(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	res, err := h.shipments.List(c.Request.Context(), c.Query("orderId"), page, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) GetShipment(c *gin.Context) {
	shipment, err := h.shipments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, shipment)
}

func (h *Handler) RetryShipment(c *gin.Context) {
	out, err := h.shipments.Retry(c.Request.Context(), c.Param("id"), actorID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toShipmentResponse(out))
}

func (h *Handler) CancelShipment(c *gin.Context) {
	out, err := h.shipments.Cancel(c.Request.Context(), c.Param("id"), actorID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	resp := gin.H{
		"success":          true,
		"id":               out.Shipment.ID,
		"status":           out.Shipment.Status,
		"carrierCancelled": out.CarrierCancelled,
	}
	if out.CarrierError != "" {
		resp["carrierError"] = out.CarrierError
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) QuoteShipment(c *gin.Context) {
	var req QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	quotes, err := h.shipments.Quote(c.Request.Context(), services.QuoteParams{
		Recipient:    req.Recipient,
		Package:      req.Package,
		Carrier:      carrier.Code(req.Carrier),
		ServiceTypes: req.ServiceTypes,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	if quotes == nil {
		quotes = []carrier.RateQuote{}
	}
	c.JSON(http.StatusOK, gin.H{"rates": quotes})
}

func writeError(c *gin.Context, err error) {
	var (
		validation *services.ValidationError
		transition *domain.TransitionError
		provider   *carrier.ProviderError
		refund     *services.RefundFailedError
	)
	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Message, "field": validation.Field})
	case errors.As(err, &transition):
		c.JSON(http.StatusBadRequest, gin.H{"error": transition.Error()})
	case errors.Is(err, services.ErrShipmentNotRetryable),
		errors.Is(err, services.ErrShipmentNotCancellable),
		errors.Is(err, services.ErrOrderNotShippable),
		errors.Is(err, services.ErrNoShippingAddress),
		errors.Is(err, services.ErrOrderNotRefundable),
		errors.Is(err, services.ErrPaymentNotFound),
		errors.Is(err, services.ErrAlreadyRefunded):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
	case errors.Is(err, services.ErrShipmentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Shipment not found"})
	case errors.Is(err, services.ErrShipmentExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrStatusConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "Order status changed, please reload and try again"})
	case errors.As(err, &provider):
		c.JSON(http.StatusBadGateway, gin.H{
			"error":     provider.Message,
			"code":      provider.Code,
			"carrier":   provider.Carrier,
			"retryable": provider.Retryable,
		})
	case errors.As(err, &refund):
		c.JSON(http.StatusBadGateway, gin.H{"error": refund.Message})
	default:
		slog.ErrorContext(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
