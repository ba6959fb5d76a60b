package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sentinelhq/domainwatch/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// RuleRepository handles alert rule documents
type RuleRepository struct {
	collection *mongo.Collection
}

// NewRuleRepository creates a new rule repository
func NewRuleRepository(db *MongoDB) *RuleRepository {
	return &RuleRepository{
		collection: db.GetCollection(CollectionAlertRules),
	}
}

// Create inserts a new alert rule
func (r *RuleRepository) Create(ctx context.Context, rule *model.AlertRule) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if rule.ID.IsZero() {
		rule.ID = primitive.NewObjectID()
	}

	_, err := r.collection.InsertOne(ctxTimeout, rule)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("alert rule with name '%s' already exists", rule.Name)
		}
		return fmt.Errorf("failed to create alert rule: %w", err)
	}

	return nil
}

// GetByID retrieves an alert rule by ID
func (r *RuleRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*model.AlertRule, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var rule model.AlertRule
	err := r.collection.FindOne(ctxTimeout, bson.M{"_id": id}).Decode(&rule)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("alert rule not found")
		}
		return nil, fmt.Errorf("failed to get alert rule: %w", err)
	}

	return &rule, nil
}

// List retrieves all alert rules, newest first
func (r *RuleRepository) List(ctx context.Context) ([]model.AlertRule, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "metadata.created_at", Value: -1}})

	cursor, err := r.collection.Find(ctxTimeout, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list alert rules: %w", err)
	}
	defer cursor.Close(ctxTimeout)

	var rules []model.AlertRule
	if err := cursor.All(ctxTimeout, &rules); err != nil {
		return nil, fmt.Errorf("failed to decode alert rules: %w", err)
	}

	return rules, nil
}

// ListEnabled retrieves the rules eligible for notification fan-out
func (r *RuleRepository) ListEnabled(ctx context.Context) ([]model.AlertRule, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cursor, err := r.collection.Find(ctxTimeout, bson.M{"enabled": true})
	if err != nil {
		return nil, fmt.Errorf("failed to list enabled alert rules: %w", err)
	}
	defer cursor.Close(ctxTimeout)

	var rules []model.AlertRule
	if err := cursor.All(ctxTimeout, &rules); err != nil {
		return nil, fmt.Errorf("failed to decode alert rules: %w", err)
	}

	return rules, nil
}

// Update replaces an existing alert rule
func (r *RuleRepository) Update(ctx context.Context, rule *model.AlertRule) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rule.Metadata.UpdatedAt = time.Now().UTC()

	result, err := r.collection.ReplaceOne(ctxTimeout, bson.M{"_id": rule.ID}, rule)
	if err != nil {
		return fmt.Errorf("failed to update alert rule: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("alert rule not found")
	}

	return nil
}

// Delete removes an alert rule
func (r *RuleRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result, err := r.collection.DeleteOne(ctxTimeout, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete alert rule: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("alert rule not found")
	}

	return nil
}
