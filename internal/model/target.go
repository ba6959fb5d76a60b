package model

import (
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Target is one monitored domain in the fleet registry.
// Batch operations resolve their domain lists against this collection
// when they are defined through a filter instead of explicit names.
type Target struct {
	ID            primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Domain        string             `json:"domain" bson:"domain"`
	Enabled       bool               `json:"enabled" bson:"enabled"`
	LastStatus    HealthStatus       `json:"last_status,omitempty" bson:"last_status,omitempty"`
	LastCheckedAt time.Time          `json:"last_checked_at,omitempty" bson:"last_checked_at,omitempty"`
	Metadata      Metadata           `json:"metadata" bson:"metadata"`
}

// Validate validates the target
func (t *Target) Validate() error {
	t.Domain = strings.TrimSpace(strings.ToLower(t.Domain))
	if t.Domain == "" {
		return errors.New("target domain is required")
	}
	if strings.ContainsAny(t.Domain, " /:") {
		return errors.New("target domain must be a bare hostname")
	}
	now := time.Now().UTC()
	if t.Metadata.CreatedAt.IsZero() {
		t.Metadata.CreatedAt = now
	}
	if t.Metadata.UpdatedAt.IsZero() {
		t.Metadata.UpdatedAt = now
	}
	return nil
}
