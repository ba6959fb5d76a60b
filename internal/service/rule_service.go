package service

import (
	"context"
	"fmt"

	"github.com/sentinelhq/domainwatch/internal/database"
	"github.com/sentinelhq/domainwatch/internal/model"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RuleService manages the alert rules that drive notification fan-out
type RuleService struct {
	ruleRepo *database.RuleRepository
}

// NewRuleService creates a rule service
func NewRuleService(ruleRepo *database.RuleRepository) *RuleService {
	return &RuleService{ruleRepo: ruleRepo}
}

// Create validates and persists a new alert rule
func (s *RuleService) Create(ctx context.Context, rule *model.AlertRule) error {
	if err := rule.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	return s.ruleRepo.Create(ctx, rule)
}

// GetByID retrieves an alert rule by ID
func (s *RuleService) GetByID(ctx context.Context, id string) (*model.AlertRule, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid ID format: %w", err)
	}

	return s.ruleRepo.GetByID(ctx, objID)
}

// List retrieves all alert rules
func (s *RuleService) List(ctx context.Context) ([]model.AlertRule, error) {
	return s.ruleRepo.List(ctx)
}

// Update validates and replaces an existing alert rule
func (s *RuleService) Update(ctx context.Context, id string, rule *model.AlertRule) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("invalid ID format: %w", err)
	}

	rule.ID = objID
	if err := rule.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	return s.ruleRepo.Update(ctx, rule)
}

// Delete removes an alert rule
func (s *RuleService) Delete(ctx context.Context, id string) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("invalid ID format: %w", err)
	}

	return s.ruleRepo.Delete(ctx, objID)
}
