package services

import (
	"context"
	"log/slog"
	"time"
)

const (
	DefaultMaxConcurrent = 3
	DefaultSlotTTL       = 120 * time.Second
	concurrencyKeyPrefix = "concurrent"
)

// CounterStore is the atomic counter primitive shared by every process.
type CounterStore interface {
	Increment(ctx context.Context, key string) (int64, error)
	Decrement(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type SlotResult struct {
	Allowed      bool
	CurrentCount int64
}

// SlotManager bounds concurrent expensive operations per subject. It is
// admission control, not a lock: store failures let the caller through.
type SlotManager struct {
	store         CounterStore
	maxConcurrent int64
	ttl           time.Duration
}

// NewSlotManager accepts a nil store, in which case every acquire succeeds.
func NewSlotManager(store CounterStore, maxConcurrent int, ttl time.Duration) *SlotManager {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	if ttl <= 0 {
		ttl = DefaultSlotTTL
	}
	return &SlotManager{store: store, maxConcurrent: int64(maxConcurrent), ttl: ttl}
}

func ConcurrencyKey(subjectID string) string {
	return concurrencyKeyPrefix + ":" + subjectID
}

func (m *SlotManager) Acquire(ctx context.Context, subjectID string) SlotResult {
	if m.store == nil {
		return SlotResult{Allowed: true}
	}
	key := ConcurrencyKey(subjectID)

	count, err := m.store.Increment(ctx, key)
	if err != nil {
		slog.WarnContext(ctx, "concurrency check failed, allowing request", "subject", subjectID, "error", err)
		return SlotResult{Allowed: true}
	}

	if count > m.maxConcurrent {
		if _, err := m.store.Decrement(ctx, key); err != nil {
			slog.WarnContext(ctx, "concurrency rollback failed", "subject", subjectID, "error", err)
		}
		return SlotResult{Allowed: false, CurrentCount: m.maxConcurrent}
	}

	if err := m.store.Expire(ctx, key, m.ttl); err != nil {
		slog.WarnContext(ctx, "concurrency ttl refresh failed", "subject", subjectID, "error", err)
	}
	return SlotResult{Allowed: true, CurrentCount: count}
}

// Release never fails; a counter at or below zero is removed.
func (m *SlotManager) Release(ctx context.Context, subjectID string) {
	if m.store == nil {
		return
	}
	key := ConcurrencyKey(subjectID)

	count, err := m.store.Decrement(ctx, key)
	if err != nil {
		slog.WarnContext(ctx, "concurrency release failed", "subject", subjectID, "error", err)
		return
	}
	if count <= 0 {
		if err := m.store.Delete(ctx, key); err != nil {
			slog.WarnContext(ctx, "concurrency key cleanup failed", "subject", subjectID, "error", err)
		}
	}
}
