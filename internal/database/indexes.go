package database

import (
	"context"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CreateIndexes creates all necessary indexes for the collections
func CreateIndexes(ctx context.Context, db *MongoDB) error {
	slog.Info("Creating MongoDB indexes")

	if err := createOperationIndexes(ctx, db); err != nil {
		return err
	}

	if err := createAlertIndexes(ctx, db); err != nil {
		return err
	}

	if err := createAlertRuleIndexes(ctx, db); err != nil {
		return err
	}

	if err := createTargetIndexes(ctx, db); err != nil {
		return err
	}

	if err := createScheduleLockIndexes(ctx, db); err != nil {
		return err
	}

	slog.Info("Successfully created all MongoDB indexes")
	return nil
}

func createOperationIndexes(ctx context.Context, db *MongoDB) error {
	collection := db.GetCollection(CollectionOperations)

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "status", Value: 1},
				{Key: "metadata.created_at", Value: -1},
			},
			Options: options.Index().SetName("idx_status_created_at"),
		},
		{
			Keys:    bson.D{{Key: "kind", Value: 1}},
			Options: options.Index().SetName("idx_kind"),
		},
		{
			Keys: bson.D{
				{Key: "kind", Value: 1},
				{Key: "schedule.next_run", Value: 1},
			},
			Options: options.Index().SetName("idx_kind_next_run"),
		},
		{
			Keys:    bson.D{{Key: "metadata.created_at", Value: -1}},
			Options: options.Index().SetName("idx_created_at"),
		},
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := collection.Indexes().CreateMany(ctxTimeout, indexes)
	if err != nil {
		return err
	}

	slog.Info("Created batch_operations indexes")
	return nil
}

func createAlertIndexes(ctx context.Context, db *MongoDB) error {
	collection := db.GetCollection(CollectionAlerts)

	indexes := []mongo.IndexModel{
		{
			// Dedup identity lookup: one open incident per (domain, type)
			Keys: bson.D{
				{Key: "domain", Value: 1},
				{Key: "type", Value: 1},
				{Key: "status", Value: 1},
			},
			Options: options.Index().SetName("idx_domain_type_status"),
		},
		{
			Keys: bson.D{
				{Key: "status", Value: 1},
				{Key: "last_detected", Value: -1},
			},
			Options: options.Index().SetName("idx_status_last_detected"),
		},
		{
			Keys:    bson.D{{Key: "last_detected", Value: -1}},
			Options: options.Index().SetName("idx_last_detected"),
		},
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := collection.Indexes().CreateMany(ctxTimeout, indexes)
	if err != nil {
		return err
	}

	slog.Info("Created health_check_alerts indexes")
	return nil
}

func createAlertRuleIndexes(ctx context.Context, db *MongoDB) error {
	collection := db.GetCollection(CollectionAlertRules)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_name_unique"),
		},
		{
			Keys:    bson.D{{Key: "enabled", Value: 1}},
			Options: options.Index().SetName("idx_enabled"),
		},
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := collection.Indexes().CreateMany(ctxTimeout, indexes)
	if err != nil {
		return err
	}

	slog.Info("Created alert_rules indexes")
	return nil
}

func createTargetIndexes(ctx context.Context, db *MongoDB) error {
	collection := db.GetCollection(CollectionTargets)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "domain", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_domain_unique"),
		},
		{
			Keys: bson.D{
				{Key: "enabled", Value: 1},
				{Key: "last_status", Value: 1},
			},
			Options: options.Index().SetName("idx_enabled_last_status"),
		},
		{
			Keys:    bson.D{{Key: "last_checked_at", Value: 1}},
			Options: options.Index().SetName("idx_last_checked_at"),
		},
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := collection.Indexes().CreateMany(ctxTimeout, indexes)
	if err != nil {
		return err
	}

	slog.Info("Created targets indexes")
	return nil
}

func createScheduleLockIndexes(ctx context.Context, db *MongoDB) error {
	collection := db.GetCollection(CollectionScheduleLocks)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "operation_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_operation_id_unique"),
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("idx_expires_at_ttl"),
		},
		{
			Keys:    bson.D{{Key: "locked_by", Value: 1}},
			Options: options.Index().SetName("idx_locked_by"),
		},
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := collection.Indexes().CreateMany(ctxTimeout, indexes)
	if err != nil {
		return err
	}

	slog.Info("Created schedule_locks indexes")
	return nil
}
