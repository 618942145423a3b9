package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"print-order-service/internal/infra/redis"
)

type RateTier string

const (
	TierGeneral   RateTier = "general"
	TierUpload    RateTier = "upload"
	TierTransform RateTier = "transform"
	TierCheckout  RateTier = "checkout"
	TierStrict    RateTier = "strict"
)

type TierLimit struct {
	Requests int
	Window   time.Duration
}

var DefaultTiers = map[RateTier]TierLimit{
	TierGeneral:   {Requests: 60, Window: time.Minute},
	TierUpload:    {Requests: 20, Window: time.Minute},
	TierTransform: {Requests: 10, Window: time.Minute},
	TierCheckout:  {Requests: 5, Window: time.Minute},
	TierStrict:    {Requests: 3, Window: time.Minute},
}

// WindowStore is the sliding-window backend for a single tier.
type WindowStore interface {
	Allow(ctx context.Context, identifier string, limit int, window time.Duration) (redis.WindowResult, error)
}

type RateDecision struct {
	Allowed bool
	Limit   int
	Reset   time.Time
}

// RetryAfter is the whole number of seconds until the window resets, at least 1.
func (d RateDecision) RetryAfter(now time.Time) int {
	secs := int((d.Reset.Sub(now) + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

type RateLimiter struct {
	windows map[RateTier]WindowStore
	tiers   map[RateTier]TierLimit
}

// NewRateLimiter takes one window store per tier. A nil map disables limiting.
func NewRateLimiter(windows map[RateTier]WindowStore, tiers map[RateTier]TierLimit) *RateLimiter {
	if tiers == nil {
		tiers = DefaultTiers
	}
	return &RateLimiter{windows: windows, tiers: tiers}
}

// TierPrefix is the key prefix of a tier's windows.
func TierPrefix(tier RateTier) string {
	return fmt.Sprintf("ratelimit:%s", tier)
}

// Check never blocks a request because the backend is down.
func (l *RateLimiter) Check(ctx context.Context, tier RateTier, clientID string) RateDecision {
	limit, ok := l.tiers[tier]
	if !ok {
		slog.WarnContext(ctx, "unknown rate limit tier", "tier", tier)
		return RateDecision{Allowed: true}
	}
	window, ok := l.windows[tier]
	if !ok || window == nil {
		return RateDecision{Allowed: true, Limit: limit.Requests}
	}

	res, err := window.Allow(ctx, clientID, limit.Requests, limit.Window)
	if err != nil {
		slog.ErrorContext(ctx, "rate limiting error, allowing request", "tier", tier, "error", err)
		return RateDecision{Allowed: true, Limit: limit.Requests}
	}
	if !res.Allowed {
		slog.InfoContext(ctx, "rate limit exceeded", "tier", tier, "client", clientID)
	}
	return RateDecision{Allowed: res.Allowed, Limit: res.Limit, Reset: res.Reset}
}
