package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"print-order-service/internal/services"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

const anonymousClient = "anonymous"

// ClientIdentity is the first address of X-Forwarded-For, then X-Real-IP.
func ClientIdentity(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	return anonymousClient
}

// RateLimit rejects requests over the tier's budget with 429 and Retry-After.
func RateLimit(limiter *services.RateLimiter, tier services.RateTier) gin.HandlerFunc {
	return func(c *gin.Context) {
		decision := limiter.Check(c.Request.Context(), tier, ClientIdentity(c.Request))
		if decision.Allowed {
			c.Next()
			return
		}
		retryAfter := decision.RetryAfter(time.Now())
		c.Header("Retry-After", strconv.Itoa(retryAfter))
		c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Header("X-RateLimit-Remaining", "0")
		c.Header("X-RateLimit-Reset", strconv.FormatInt(decision.Reset.Unix(), 10))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":      "Too many requests. Please try again later.",
			"code":       "RATE_LIMITED",
			"retryAfter": retryAfter,
		})
	}
}

// Trace opens a server span per request, continuing any incoming W3C context.
func Trace(service string) gin.HandlerFunc {
	tracer := otel.Tracer(service)
	return func(c *gin.Context) {
		r := c.Request
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		route := c.FullPath()
		if route == "" {
			route = r.URL.Path
		}
		ctx, span := tracer.Start(ctx, r.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPMethodKey.String(r.Method),
				semconv.HTTPTargetKey.String(r.URL.Path),
				semconv.HTTPRouteKey.String(route),
				semconv.NetHostNameKey.String(r.Host),
			),
		)
		defer span.End()

		c.Request = r.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(semconv.HTTPStatusCodeKey.Int(status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}

func actorID(c *gin.Context) string {
	if a := strings.TrimSpace(c.GetHeader("X-Actor-ID")); a != "" {
		return a
	}
	return services.DefaultActor
}
