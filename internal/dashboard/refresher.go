package dashboard

import (
	"context"
	"sync"
	"time"

	"github.com/hive-corporation/ioc-console/internal/core/domain"
	"github.com/hive-corporation/ioc-console/internal/logging"
	"github.com/hive-corporation/ioc-console/internal/metrics"
)

// StatsSource computes a fresh dashboard snapshot.
type StatsSource interface {
	Dashboard(ctx context.Context) (domain.DashboardStats, error)
}

// Refresher recomputes dashboard statistics on a fixed interval and keeps
// the most recent snapshot. A failed refresh keeps the previous one.
type Refresher struct {
	source   StatsSource
	interval time.Duration
	log      logging.Logger

	mu        sync.RWMutex
	latest    *domain.DashboardStats
	updatedAt time.Time
}

func NewRefresher(source StatsSource, interval time.Duration, log logging.Logger) *Refresher {
	return &Refresher{
		source:   source,
		interval: interval,
		log:      log.With("component", "dashboard"),
	}
}

// Run refreshes once immediately, then every interval until ctx is done.
// A non-positive interval refreshes once and returns.
func (r *Refresher) Run(ctx context.Context) error {
	r.Refresh(ctx)
	if r.interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.Refresh(ctx)
		case <-ctx.Done():
			r.log.Info(ctx, "dashboard refresher stopped")
			return nil
		}
	}
}

// Refresh recomputes the snapshot now and returns it.
func (r *Refresher) Refresh(ctx context.Context) (domain.DashboardStats, error) {
	stats, err := r.source.Dashboard(ctx)
	if err != nil {
		if ctx.Err() == nil {
			r.log.Warn(ctx, "dashboard refresh failed", "error", err)
		}
		return domain.DashboardStats{}, err
	}

	r.mu.Lock()
	r.latest = &stats
	r.updatedAt = time.Now()
	r.mu.Unlock()

	byStatus := make(map[string]int, len(stats.IOCsByStatus))
	for status, n := range stats.IOCsByStatus {
		byStatus[string(status)] = n
	}
	metrics.RecordCollectionSize(byStatus)

	r.log.Debug(ctx, "dashboard refreshed", "total", stats.TotalIOCs)
	return stats, nil
}

// Latest returns the last successful snapshot and when it was taken.
// ok is false until the first refresh succeeds.
func (r *Refresher) Latest() (stats domain.DashboardStats, updatedAt time.Time, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.latest == nil {
		return domain.DashboardStats{}, time.Time{}, false
	}
	return *r.latest, r.updatedAt, true
}
