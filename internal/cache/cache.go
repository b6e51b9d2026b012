package cache

import (
	"context"
	"time"

	"souqpos/backend/internal/domain"
)

// ReportCache stores computed dashboards. Misses and failures are never
// fatal to callers; they recompute.
type ReportCache interface {
	Get(ctx context.Context, key string) (*domain.Dashboard, bool, error)
	Set(ctx context.Context, key string, value *domain.Dashboard, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) error
}

type NoopReportCache struct{}

func (NoopReportCache) Get(_ context.Context, _ string) (*domain.Dashboard, bool, error) {
	return nil, false, nil
}

func (NoopReportCache) Set(_ context.Context, _ string, _ *domain.Dashboard, _ time.Duration) error {
	return nil
}

func (NoopReportCache) DeletePrefix(_ context.Context, _ string) error {
	return nil
}
