package services

import (
	"context"
	"errors"
	"log/slog"

	"print-order-service/internal/infra"
)

var ErrConcurrencyLimit = errors.New("too many concurrent transforms")

// TransformGate admits at most the slot limit of in-flight transforms per
// subject and forwards admitted requests to the transform service.
type TransformGate struct {
	slots  *SlotManager
	client infra.TransformClientInterface
}

func NewTransformGate(slots *SlotManager, client infra.TransformClientInterface) *TransformGate {
	return &TransformGate{slots: slots, client: client}
}

func (g *TransformGate) Run(ctx context.Context, subjectID, contentType string, body []byte) (*infra.TransformResponse, SlotResult, error) {
	slot := g.slots.Acquire(ctx, subjectID)
	if !slot.Allowed {
		slog.InfoContext(ctx, "transform rejected, concurrency limit reached", "subject", subjectID, "current", slot.CurrentCount)
		return nil, slot, ErrConcurrencyLimit
	}
	// Released even when the caller has gone away.
	defer g.slots.Release(context.WithoutCancel(ctx), subjectID)

	resp, err := g.client.Transform(ctx, contentType, body)
	if err != nil {
		slog.ErrorContext(ctx, "transform failed", "subject", subjectID, "error", err)
		return nil, slot, err
	}
	return resp, slot, nil
}
