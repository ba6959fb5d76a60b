package database

import (
	"context"
	"fmt"
	"time"

	"github.com/sentinelhq/domainwatch/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// TargetRepository handles the monitored domain registry
type TargetRepository struct {
	collection *mongo.Collection
}

// NewTargetRepository creates a new target repository
func NewTargetRepository(db *MongoDB) *TargetRepository {
	return &TargetRepository{
		collection: db.GetCollection(CollectionTargets),
	}
}

// Upsert registers a domain, or updates its enabled flag and metadata if
// it already exists
func (r *TargetRepository) Upsert(ctx context.Context, target *model.Target) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	now := time.Now().UTC()
	update := bson.M{
		"$set": bson.M{
			"enabled":             target.Enabled,
			"metadata.updated_at": now,
			"metadata.tags":       target.Metadata.Tags,
		},
		"$setOnInsert": bson.M{
			"domain":              target.Domain,
			"metadata.created_at": now,
			"metadata.created_by": target.Metadata.CreatedBy,
		},
	}

	opts := options.Update().SetUpsert(true)
	_, err := r.collection.UpdateOne(ctxTimeout, bson.M{"domain": target.Domain}, update, opts)
	if err != nil {
		return fmt.Errorf("failed to upsert target: %w", err)
	}

	return nil
}

// List retrieves registry entries with pagination
func (r *TargetRepository) List(ctx context.Context, page, limit int) ([]model.Target, int64, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	filter := bson.M{}

	total, err := r.collection.CountDocuments(ctxTimeout, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count targets: %w", err)
	}

	skip := (page - 1) * limit
	opts := options.Find().
		SetSkip(int64(skip)).
		SetLimit(int64(limit)).
		SetSort(bson.D{{Key: "domain", Value: 1}})

	cursor, err := r.collection.Find(ctxTimeout, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list targets: %w", err)
	}
	defer cursor.Close(ctxTimeout)

	var targets []model.Target
	if err := cursor.All(ctxTimeout, &targets); err != nil {
		return nil, 0, fmt.Errorf("failed to decode targets: %w", err)
	}

	return targets, total, nil
}

// Resolve returns the enabled domains matching the filter. A nil or
// empty filter matches the whole enabled fleet.
func (r *TargetRepository) Resolve(ctx context.Context, filter *model.TargetFilter) ([]string, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	query := bson.M{"enabled": true}
	if filter != nil {
		if filter.NameContains != "" {
			query["domain"] = bson.M{
				"$regex": primitive.Regex{Pattern: filter.NameContains, Options: "i"},
			}
		}
		if filter.LastStatus != "" {
			query["last_status"] = filter.LastStatus
		}
		if !filter.CheckedBefore.IsZero() {
			query["last_checked_at"] = bson.M{"$lt": filter.CheckedBefore}
		}
	}

	opts := options.Find().
		SetProjection(bson.M{"domain": 1}).
		SetSort(bson.D{{Key: "domain", Value: 1}})

	cursor, err := r.collection.Find(ctxTimeout, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve targets: %w", err)
	}
	defer cursor.Close(ctxTimeout)

	var entries []model.Target
	if err := cursor.All(ctxTimeout, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode targets: %w", err)
	}

	domains := make([]string, 0, len(entries))
	for _, entry := range entries {
		domains = append(domains, entry.Domain)
	}

	return domains, nil
}

// RecordResult updates the registry entry for a domain after a check.
// Unregistered domains are ignored: an explicit target list may name
// domains outside the registry.
func (r *TargetRepository) RecordResult(ctx context.Context, domain string, status model.HealthStatus, at time.Time) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	update := bson.M{
		"$set": bson.M{
			"last_status":         status,
			"last_checked_at":     at,
			"metadata.updated_at": at,
		},
	}

	_, err := r.collection.UpdateOne(ctxTimeout, bson.M{"domain": domain}, update)
	if err != nil {
		return fmt.Errorf("failed to record target result: %w", err)
	}

	return nil
}

// Delete removes a domain from the registry
func (r *TargetRepository) Delete(ctx context.Context, domain string) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result, err := r.collection.DeleteOne(ctxTimeout, bson.M{"domain": domain})
	if err != nil {
		return fmt.Errorf("failed to delete target: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("target not found")
	}

	return nil
}
