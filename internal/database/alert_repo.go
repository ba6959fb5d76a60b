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

// AlertRepository handles alert incident documents
type AlertRepository struct {
	collection *mongo.Collection
}

// NewAlertRepository creates a new alert repository
func NewAlertRepository(db *MongoDB) *AlertRepository {
	return &AlertRepository{
		collection: db.GetCollection(CollectionAlerts),
	}
}

// FindOpen returns the open alert for the deduplication key, or nil when
// no live incident exists. Resolved alerts are never returned: a new
// detection after resolution starts a fresh record.
func (r *AlertRepository) FindOpen(ctx context.Context, key model.AlertKey) (*model.HealthCheckAlert, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{
		"domain": key.Domain,
		"type":   key.Type,
		"status": bson.M{"$in": []model.AlertStatus{
			model.AlertActive,
			model.AlertAcknowledged,
			model.AlertSuppressed,
		}},
	}

	var alert model.HealthCheckAlert
	err := r.collection.FindOne(ctxTimeout, filter).Decode(&alert)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find open alert: %w", err)
	}

	return &alert, nil
}

// GetByID retrieves an alert by ID
func (r *AlertRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*model.HealthCheckAlert, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var alert model.HealthCheckAlert
	err := r.collection.FindOne(ctxTimeout, bson.M{"_id": id}).Decode(&alert)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("alert not found")
		}
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}

	return &alert, nil
}

// Create inserts a new alert record
func (r *AlertRepository) Create(ctx context.Context, alert *model.HealthCheckAlert) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if alert.ID.IsZero() {
		alert.ID = primitive.NewObjectID()
	}

	_, err := r.collection.InsertOne(ctxTimeout, alert)
	if err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}

	return nil
}

// Update replaces the mutable state of an existing alert
func (r *AlertRepository) Update(ctx context.Context, alert *model.HealthCheckAlert) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result, err := r.collection.ReplaceOne(ctxTimeout, bson.M{"_id": alert.ID}, alert)
	if err != nil {
		return fmt.Errorf("failed to update alert: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("alert not found")
	}

	return nil
}

// CountOpen counts alerts that still track a live incident
func (r *AlertRepository) CountOpen(ctx context.Context) (int64, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{"status": bson.M{"$in": []model.AlertStatus{
		model.AlertActive,
		model.AlertAcknowledged,
		model.AlertSuppressed,
	}}}

	count, err := r.collection.CountDocuments(ctxTimeout, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count open alerts: %w", err)
	}

	return count, nil
}

// List retrieves alerts with filtering and pagination, newest detections first
func (r *AlertRepository) List(ctx context.Context, filter bson.M, page, limit int) ([]model.HealthCheckAlert, int64, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	total, err := r.collection.CountDocuments(ctxTimeout, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count alerts: %w", err)
	}

	skip := (page - 1) * limit
	opts := options.Find().
		SetSkip(int64(skip)).
		SetLimit(int64(limit)).
		SetSort(bson.D{{Key: "last_detected", Value: -1}})

	cursor, err := r.collection.Find(ctxTimeout, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer cursor.Close(ctxTimeout)

	var alerts []model.HealthCheckAlert
	if err := cursor.All(ctxTimeout, &alerts); err != nil {
		return nil, 0, fmt.Errorf("failed to decode alerts: %w", err)
	}

	return alerts, total, nil
}
