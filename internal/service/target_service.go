package service

import (
	"context"
	"fmt"

	"github.com/sentinelhq/domainwatch/internal/database"
	"github.com/sentinelhq/domainwatch/internal/model"
)

// TargetService manages the monitored domain registry
type TargetService struct {
	repo *database.TargetRepository
}

// NewTargetService creates a target service
func NewTargetService(repo *database.TargetRepository) *TargetService {
	return &TargetService{
		repo: repo,
	}
}

// Register adds a domain to the registry, or updates it if present
func (s *TargetService) Register(ctx context.Context, target *model.Target) error {
	if err := target.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	return s.repo.Upsert(ctx, target)
}

// List retrieves registry entries with pagination
func (s *TargetService) List(ctx context.Context, page, limit int) ([]model.Target, int64, error) {
	return s.repo.List(ctx, page, limit)
}

// Delete removes a domain from the registry
func (s *TargetService) Delete(ctx context.Context, domain string) error {
	return s.repo.Delete(ctx, domain)
}
