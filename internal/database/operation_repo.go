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

// OperationRepository handles batch operation documents
type OperationRepository struct {
	collection *mongo.Collection
}

// NewOperationRepository creates a new operation repository
func NewOperationRepository(db *MongoDB) *OperationRepository {
	return &OperationRepository{
		collection: db.GetCollection(CollectionOperations),
	}
}

// Create inserts a new operation
func (r *OperationRepository) Create(ctx context.Context, op *model.Operation) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if op.ID.IsZero() {
		op.ID = primitive.NewObjectID()
	}

	_, err := r.collection.InsertOne(ctxTimeout, op)
	if err != nil {
		return fmt.Errorf("failed to create operation: %w", err)
	}

	return nil
}

// GetByID retrieves an operation by ID
func (r *OperationRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*model.Operation, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var op model.Operation
	err := r.collection.FindOne(ctxTimeout, bson.M{"_id": id}).Decode(&op)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("operation not found")
		}
		return nil, fmt.Errorf("failed to get operation: %w", err)
	}

	return &op, nil
}

// List retrieves operations with filtering and pagination
func (r *OperationRepository) List(ctx context.Context, filter bson.M, page, limit int) ([]model.Operation, int64, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	total, err := r.collection.CountDocuments(ctxTimeout, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count operations: %w", err)
	}

	skip := (page - 1) * limit
	opts := options.Find().
		SetSkip(int64(skip)).
		SetLimit(int64(limit)).
		SetSort(bson.D{{Key: "metadata.created_at", Value: -1}})

	cursor, err := r.collection.Find(ctxTimeout, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list operations: %w", err)
	}
	defer cursor.Close(ctxTimeout)

	var ops []model.Operation
	if err := cursor.All(ctxTimeout, &ops); err != nil {
		return nil, 0, fmt.Errorf("failed to decode operations: %w", err)
	}

	return ops, total, nil
}

// UpdateStatus updates the lifecycle status of an operation
func (r *OperationRepository) UpdateStatus(ctx context.Context, id primitive.ObjectID, status model.OperationStatus, at time.Time) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	update := bson.M{
		"$set": bson.M{
			"status":              status,
			"metadata.updated_at": at,
		},
	}
	if status == model.OperationInProgress {
		update["$set"].(bson.M)["started_at"] = at
	}

	result, err := r.collection.UpdateOne(ctxTimeout, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to update operation status: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("operation not found")
	}

	return nil
}

// SaveFinished persists the terminal state of a run, including results
// and the final summary
func (r *OperationRepository) SaveFinished(ctx context.Context, op *model.Operation) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	op.Metadata.UpdatedAt = time.Now().UTC()

	update := bson.M{
		"$set": bson.M{
			"status":              op.Status,
			"results":             op.Results,
			"errors":              op.Errors,
			"completed_at":        op.CompletedAt,
			"duration_ms":         op.DurationMs,
			"metadata.updated_at": op.Metadata.UpdatedAt,
		},
	}

	result, err := r.collection.UpdateOne(ctxTimeout, bson.M{"_id": op.ID}, update)
	if err != nil {
		return fmt.Errorf("failed to save operation results: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("operation not found")
	}

	return nil
}

// FindDueRecurring retrieves recurring definitions whose next run is due
func (r *OperationRepository) FindDueRecurring(ctx context.Context, now time.Time) ([]model.Operation, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	filter := bson.M{
		"kind": model.KindRecurring,
		"schedule.next_run": bson.M{
			"$lte": now,
		},
	}

	cursor, err := r.collection.Find(ctxTimeout, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to find due recurring operations: %w", err)
	}
	defer cursor.Close(ctxTimeout)

	var ops []model.Operation
	if err := cursor.All(ctxTimeout, &ops); err != nil {
		return nil, fmt.Errorf("failed to decode recurring operations: %w", err)
	}

	return ops, nil
}

// UpdateScheduledRun updates the last and next scheduled run timestamps
// of a recurring definition
func (r *OperationRepository) UpdateScheduledRun(ctx context.Context, id primitive.ObjectID, lastRun, nextRun time.Time) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	update := bson.M{
		"$set": bson.M{
			"schedule.last_run": lastRun,
			"schedule.next_run": nextRun,
		},
	}

	result, err := r.collection.UpdateOne(ctxTimeout, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to update scheduled run: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("operation not found")
	}

	return nil
}

// DomainStats is the aggregate health view returned by AggregateStats
type DomainStats struct {
	TotalChecks           int64   `bson:"total_checks" json:"total_checks"`
	HealthyChecks         int64   `bson:"healthy_checks" json:"healthy_checks"`
	CriticalChecks        int64   `bson:"critical_checks" json:"critical_checks"`
	SSLValidChecks        int64   `bson:"ssl_valid_checks" json:"ssl_valid_checks"`
	AverageResponseTimeMs float64 `bson:"average_response_time_ms" json:"average_response_time_ms"`
	UptimePercent         float64 `bson:"-" json:"uptime_percent"`
	SSLValidPercent       float64 `bson:"-" json:"ssl_valid_percent"`
}

// AggregateStats computes fleet-wide uptime, SSL, and response-time
// statistics over completed runs, optionally restricted to domains
// containing domainFilter
func (r *OperationRepository) AggregateStats(ctx context.Context, domainFilter string) (*DomainStats, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"status": model.OperationCompleted}}},
		{{Key: "$unwind", Value: "$results.health_checks"}},
	}

	if domainFilter != "" {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: bson.M{
			"results.health_checks.domain": bson.M{
				"$regex": primitive.Regex{Pattern: domainFilter, Options: "i"},
			},
		}}})
	}

	pipeline = append(pipeline, bson.D{{Key: "$group", Value: bson.M{
		"_id":          nil,
		"total_checks": bson.M{"$sum": 1},
		"healthy_checks": bson.M{"$sum": bson.M{"$cond": bson.A{
			bson.M{"$eq": bson.A{"$results.health_checks.status", model.StatusHealthy}}, 1, 0,
		}}},
		"critical_checks": bson.M{"$sum": bson.M{"$cond": bson.A{
			bson.M{"$eq": bson.A{"$results.health_checks.status", model.StatusCritical}}, 1, 0,
		}}},
		"ssl_valid_checks": bson.M{"$sum": bson.M{"$cond": bson.A{
			"$results.health_checks.ssl_valid", 1, 0,
		}}},
		"average_response_time_ms": bson.M{"$avg": "$results.health_checks.response_time_ms"},
	}}})

	cursor, err := r.collection.Aggregate(ctxTimeout, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate stats: %w", err)
	}
	defer cursor.Close(ctxTimeout)

	var results []DomainStats
	if err := cursor.All(ctxTimeout, &results); err != nil {
		return nil, fmt.Errorf("failed to decode stats: %w", err)
	}

	if len(results) == 0 {
		return &DomainStats{}, nil
	}

	stats := results[0]
	if stats.TotalChecks > 0 {
		stats.UptimePercent = float64(stats.HealthyChecks) / float64(stats.TotalChecks) * 100
		stats.SSLValidPercent = float64(stats.SSLValidChecks) / float64(stats.TotalChecks) * 100
	}

	return &stats, nil
}
