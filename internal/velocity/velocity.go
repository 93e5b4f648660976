// Package velocity tracks case submission velocity per tenant so the
// API can throttle bulk uploaders.
package velocity

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Shauryaditya/aml-case-processor/internal/domain"
)

// DefaultWindow and DefaultLimit apply when configuration leaves them unset.
const (
	DefaultWindow = time.Minute
	DefaultLimit  = 60
)

// Service counts submissions per tenant inside a sliding window using
// the cache's atomic counters, so Pro deployments get one shared count
// across nodes through Redis.
type Service struct {
	cache  domain.Cache
	window time.Duration
	limit  int64
}

// NewService creates a submission velocity service.
func NewService(cache domain.Cache, window time.Duration, limit int64) *Service {
	if window <= 0 {
		window = DefaultWindow
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Service{
		cache:  cache,
		window: window,
		limit:  limit,
	}
}

// Record counts one submission and returns the tenant's total inside
// the current window.
func (s *Service) Record(ctx context.Context, tenantID string) (int64, error) {
	if tenantID == "" {
		return 0, fmt.Errorf("tenantID is required")
	}
	if s.cache == nil {
		return 0, fmt.Errorf("no counter backend available")
	}
	return s.cache.IncrementCounter(ctx, tenantID, "submissions", s.window)
}

// Allow records a submission and reports whether the tenant is still
// under its limit. Counter backend failures fail open: throttling is
// protective, not load-bearing, so an unreachable counter must not
// block case intake.
func (s *Service) Allow(ctx context.Context, tenantID string) (bool, int64, error) {
	count, err := s.Record(ctx, tenantID)
	if err != nil {
		slog.Warn("submission counter unavailable, allowing request",
			"tenant_id", tenantID,
			"error", err,
		)
		return true, 0, nil
	}
	return count <= s.limit, count, nil
}

// Limit returns the configured per-window submission limit.
func (s *Service) Limit() int64 {
	return s.limit
}
