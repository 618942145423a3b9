package services

import (
	"context"
	"encoding/json"
	"log/slog"

	"print-order-service/internal/domain"
	"print-order-service/internal/repository"
)

const DefaultActor = "admin"

// AuditLogger appends admin actions to the audit log. A failed write is
// logged and never fails the action itself.
type AuditLogger struct {
	repo repository.AuditRepository
}

func NewAuditLogger(repo repository.AuditRepository) *AuditLogger {
	return &AuditLogger{repo: repo}
}

func (a *AuditLogger) Record(ctx context.Context, actor, action, outcome string, details map[string]any) {
	if a == nil || a.repo == nil {
		return
	}
	if actor == "" {
		actor = DefaultActor
	}
	raw, err := json.Marshal(details)
	if err != nil {
		slog.ErrorContext(ctx, "audit details not encodable", "action", action, "error", err)
		raw = []byte("{}")
	}
	entry := &domain.AuditLogEntry{
		ActorID: actor,
		Action:  action,
		Outcome: outcome,
		Details: raw,
	}
	if err := a.repo.Append(ctx, entry); err != nil {
		slog.ErrorContext(ctx, "audit log write failed", "action", action, "actor", actor, "error", err)
	}
}
