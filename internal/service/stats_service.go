package service

import (
	"context"

	"github.com/sentinelhq/domainwatch/internal/database"
)

// FleetStats is the aggregate view served by GET /api/v1/stats
type FleetStats struct {
	database.DomainStats
	OpenAlerts int64 `json:"open_alerts"`
}

// StatsService computes fleet-wide health statistics over completed runs
type StatsService struct {
	opRepo    *database.OperationRepository
	alertRepo *database.AlertRepository
}

// NewStatsService creates a stats service
func NewStatsService(opRepo *database.OperationRepository, alertRepo *database.AlertRepository) *StatsService {
	return &StatsService{
		opRepo:    opRepo,
		alertRepo: alertRepo,
	}
}

// Stats aggregates uptime, SSL validity, and response time across all
// completed runs, optionally restricted by a domain substring
func (s *StatsService) Stats(ctx context.Context, domainFilter string) (*FleetStats, error) {
	domainStats, err := s.opRepo.AggregateStats(ctx, domainFilter)
	if err != nil {
		return nil, err
	}

	openAlerts, err := s.alertRepo.CountOpen(ctx)
	if err != nil {
		return nil, err
	}

	return &FleetStats{
		DomainStats: *domainStats,
		OpenAlerts:  openAlerts,
	}, nil
}
