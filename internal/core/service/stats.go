package service

import (
	"context"
	"time"

	"github.com/hive-corporation/ioc-console/internal/core/domain"
	"github.com/hive-corporation/ioc-console/internal/core/ports"
	"github.com/hive-corporation/ioc-console/internal/metrics"
)

type StatsService struct {
	repo ports.IOCRepository
	now  func() time.Time
}

func NewStatsService(repo ports.IOCRepository) *StatsService {
	return &StatsService{repo: repo, now: time.Now}
}

// Dashboard computes aggregate statistics over the current collection.
func (s *StatsService) Dashboard(ctx context.Context) (domain.DashboardStats, error) {
	timer := metrics.StartRefreshTimer()
	defer timer.ObserveDuration()

	iocs, err := s.repo.List(ctx)
	if err != nil {
		return domain.DashboardStats{}, err
	}
	return domain.ComputeStats(iocs, s.now()), nil
}
