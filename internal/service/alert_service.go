package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sentinelhq/domainwatch/internal/alert"
	"github.com/sentinelhq/domainwatch/internal/database"
	"github.com/sentinelhq/domainwatch/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AlertService exposes alert queries and lifecycle transitions
type AlertService struct {
	repo    *database.AlertRepository
	manager *alert.Manager
}

// NewAlertService creates an alert service
func NewAlertService(repo *database.AlertRepository, manager *alert.Manager) *AlertService {
	return &AlertService{
		repo:    repo,
		manager: manager,
	}
}

// List retrieves alert summaries with filtering
func (s *AlertService) List(ctx context.Context, status, domain, alertType string, page, limit int) ([]model.AlertSummary, int64, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	if domain != "" {
		filter["domain"] = domain
	}
	if alertType != "" {
		filter["type"] = alertType
	}

	alerts, total, err := s.repo.List(ctx, filter, page, limit)
	if err != nil {
		return nil, 0, err
	}

	summaries := make([]model.AlertSummary, len(alerts))
	for i := range alerts {
		summaries[i] = alerts[i].ToSummary()
	}

	return summaries, total, nil
}

// GetByID retrieves a full alert record including its history
func (s *AlertService) GetByID(ctx context.Context, id string) (*model.HealthCheckAlert, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid ID format: %w", err)
	}

	return s.repo.GetByID(ctx, objID)
}

// Acknowledge marks an active alert as acknowledged
func (s *AlertService) Acknowledge(ctx context.Context, id, by string) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("invalid ID format: %w", err)
	}

	return s.manager.Acknowledge(ctx, objID, by)
}

// Resolve closes an alert
func (s *AlertService) Resolve(ctx context.Context, id, note string) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("invalid ID format: %w", err)
	}

	return s.manager.Resolve(ctx, objID, note)
}

// Suppress silences an alert's notifications until the given time
func (s *AlertService) Suppress(ctx context.Context, id string, until time.Time) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("invalid ID format: %w", err)
	}

	return s.manager.Suppress(ctx, objID, until)
}
