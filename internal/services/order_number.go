package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"print-order-service/internal/domain"
	"print-order-service/internal/repository"
)

var ErrOrderSequenceExhausted = errors.New("order sequence exhausted for date")

// OrderNumberGenerator derives the next FP-YYYYMMDD-NNNN from the latest
// stored number. Two callers can derive the same number; the unique index on
// order_number rejects the second insert and the caller retries.
type OrderNumberGenerator struct {
	repo repository.OrderRepository
	now  func() time.Time
}

func NewOrderNumberGenerator(repo repository.OrderRepository, now func() time.Time) *OrderNumberGenerator {
	if now == nil {
		now = time.Now
	}
	return &OrderNumberGenerator{repo: repo, now: now}
}

func (g *OrderNumberGenerator) Next(ctx context.Context) (string, error) {
	date := g.now().UTC()
	last, err := g.repo.LatestOrderNumber(ctx, domain.OrderNumberDatePrefix(date))
	if err != nil {
		return "", fmt.Errorf("latest order number: %w", err)
	}

	seq := 1
	if last != "" {
		prev, err := domain.ParseOrderSequence(last)
		if err != nil {
			return "", err
		}
		seq = prev + 1
	}
	if seq > domain.MaxOrderSequence {
		return "", fmt.Errorf("%w: %s", ErrOrderSequenceExhausted, date.Format("2006-01-02"))
	}
	return domain.FormatOrderNumber(date, seq), nil
}
