package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AlertType identifies the class of incident an alert tracks
type AlertType string

const (
	AlertDowntime   AlertType = "downtime"
	AlertDNSFailure AlertType = "dns_failure"
	AlertSSLExpiry  AlertType = "ssl_expiry"
	AlertSystem     AlertType = "system"
)

// AlertStatus is the lifecycle state of an alert
type AlertStatus string

const (
	AlertActive       AlertStatus = "active"
	AlertAcknowledged AlertStatus = "acknowledged"
	AlertResolved     AlertStatus = "resolved"
	AlertSuppressed   AlertStatus = "suppressed"
)

// Open reports whether the alert still tracks a live incident.
// Resolved is terminal; a new detection after resolution starts a
// fresh incident record.
func (s AlertStatus) Open() bool {
	return s == AlertActive || s == AlertAcknowledged || s == AlertSuppressed
}

// AlertKey is the deduplication identity of an incident
type AlertKey struct {
	Domain string    `json:"domain" bson:"domain"`
	Type   AlertType `json:"type" bson:"type"`
}

// String returns the canonical key form used for per-key locking
func (k AlertKey) String() string {
	return k.Domain + "|" + string(k.Type)
}

// AlertEventKind classifies a history entry on an alert
type AlertEventKind string

const (
	EventTriggered    AlertEventKind = "triggered"
	EventNotified     AlertEventKind = "notified"
	EventAcknowledged AlertEventKind = "acknowledged"
	EventResolved     AlertEventKind = "resolved"
	EventSuppressed   AlertEventKind = "suppressed"
)

// AlertEvent is one entry in an alert's history timeline
type AlertEvent struct {
	Kind      AlertEventKind `json:"kind" bson:"kind"`
	Timestamp time.Time      `json:"timestamp" bson:"timestamp"`
	Channel   string         `json:"channel,omitempty" bson:"channel,omitempty"`
	Note      string         `json:"note,omitempty" bson:"note,omitempty"`
}

// HealthCheckAlert is a persistent, deduplicated incident record.
// Repeated detections of the same (domain, type) pair update the
// existing record instead of creating duplicates.
type HealthCheckAlert struct {
	ID                primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Domain            string             `json:"domain" bson:"domain"`
	Type              AlertType          `json:"type" bson:"type"`
	Severity          IssueSeverity      `json:"severity" bson:"severity"`
	Status            AlertStatus        `json:"status" bson:"status"`
	Message           string             `json:"message" bson:"message"`
	FirstDetected     time.Time          `json:"first_detected" bson:"first_detected"`
	LastDetected      time.Time          `json:"last_detected" bson:"last_detected"`
	EscalationLevel   int                `json:"escalation_level" bson:"escalation_level"`
	NotificationsSent int                `json:"notifications_sent" bson:"notifications_sent"`
	SuppressedUntil   *time.Time         `json:"suppressed_until,omitempty" bson:"suppressed_until,omitempty"`
	AcknowledgedBy    string             `json:"acknowledged_by,omitempty" bson:"acknowledged_by,omitempty"`
	AcknowledgedAt    time.Time          `json:"acknowledged_at,omitempty" bson:"acknowledged_at,omitempty"`
	ResolvedNote      string             `json:"resolved_note,omitempty" bson:"resolved_note,omitempty"`
	ResolvedAt        time.Time          `json:"resolved_at,omitempty" bson:"resolved_at,omitempty"`
	History           []AlertEvent       `json:"history,omitempty" bson:"history,omitempty"`
	CreatedAt         time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at" bson:"updated_at"`
}

// Key returns the alert's deduplication identity
func (a *HealthCheckAlert) Key() AlertKey {
	return AlertKey{Domain: a.Domain, Type: a.Type}
}

// TriggeredSince counts history entries of kind triggered at or after the cutoff.
// The count includes the current detection once it has been appended, which is
// what the rolling throttle windows compare against.
func (a *HealthCheckAlert) TriggeredSince(cutoff time.Time) int {
	count := 0
	for _, event := range a.History {
		if event.Kind == EventTriggered && !event.Timestamp.Before(cutoff) {
			count++
		}
	}
	return count
}

// SuppressionExpired reports whether a suppressed alert's window has elapsed
func (a *HealthCheckAlert) SuppressionExpired(now time.Time) bool {
	return a.Status == AlertSuppressed &&
		(a.SuppressedUntil == nil || !now.Before(*a.SuppressedUntil))
}

// AlertSummary is a compact view of an alert for list responses
type AlertSummary struct {
	ID                string        `json:"id"`
	Domain            string        `json:"domain"`
	Type              AlertType     `json:"type"`
	Severity          IssueSeverity `json:"severity"`
	Status            AlertStatus   `json:"status"`
	Message           string        `json:"message"`
	FirstDetected     string        `json:"first_detected"`
	LastDetected      string        `json:"last_detected"`
	EscalationLevel   int           `json:"escalation_level"`
	NotificationsSent int           `json:"notifications_sent"`
}

// ToSummary converts a HealthCheckAlert to an AlertSummary
func (a *HealthCheckAlert) ToSummary() AlertSummary {
	var first, last string
	if !a.FirstDetected.IsZero() {
		first = a.FirstDetected.Format(time.RFC3339)
	}
	if !a.LastDetected.IsZero() {
		last = a.LastDetected.Format(time.RFC3339)
	}

	return AlertSummary{
		ID:                a.ID.Hex(),
		Domain:            a.Domain,
		Type:              a.Type,
		Severity:          a.Severity,
		Status:            a.Status,
		Message:           a.Message,
		FirstDetected:     first,
		LastDetected:      last,
		EscalationLevel:   a.EscalationLevel,
		NotificationsSent: a.NotificationsSent,
	}
}

// ChannelType identifies a notification transport
type ChannelType string

const (
	ChannelEmail   ChannelType = "email"
	ChannelSlack   ChannelType = "slack"
	ChannelWebhook ChannelType = "webhook"
)

// ChannelConfig binds a channel type to its delivery target
// (webhook URL, Slack webhook URL, or email recipient list).
type ChannelConfig struct {
	Type    ChannelType       `json:"type" bson:"type"`
	Target  string            `json:"target" bson:"target"`
	Headers map[string]string `json:"headers,omitempty" bson:"headers,omitempty"`
}

// Validate validates a channel configuration
func (cc *ChannelConfig) Validate() error {
	switch cc.Type {
	case ChannelEmail, ChannelSlack, ChannelWebhook:
	default:
		return fmt.Errorf("invalid channel type: %s", cc.Type)
	}
	if cc.Target == "" {
		return errors.New("channel target is required")
	}
	return nil
}

// AlertRule decides which alerts notify which channels and how often
type AlertRule struct {
	ID            primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name          string             `json:"name" bson:"name"`
	Enabled       bool               `json:"enabled" bson:"enabled"`
	DomainPattern string             `json:"domain_pattern,omitempty" bson:"domain_pattern,omitempty"` // substring match, empty matches all
	Types         []AlertType        `json:"types,omitempty" bson:"types,omitempty"`                   // empty matches all
	MinSeverity   IssueSeverity      `json:"min_severity,omitempty" bson:"min_severity,omitempty"`
	MaxPerHour    int                `json:"max_per_hour" bson:"max_per_hour"`
	MaxPerDay     int                `json:"max_per_day" bson:"max_per_day"`
	Channels      []ChannelConfig    `json:"channels" bson:"channels"`
	Metadata      Metadata           `json:"metadata" bson:"metadata"`
}

// Validate validates the alert rule
func (r *AlertRule) Validate() error {
	if r.Name == "" {
		return errors.New("alert rule name is required")
	}
	if r.MaxPerHour < 0 || r.MaxPerDay < 0 {
		return errors.New("throttle limits must not be negative")
	}
	if len(r.Channels) == 0 {
		return errors.New("at least one channel is required")
	}
	for i, ch := range r.Channels {
		if err := ch.Validate(); err != nil {
			return fmt.Errorf("channel %d validation failed: %w", i, err)
		}
	}
	now := time.Now().UTC()
	if r.Metadata.CreatedAt.IsZero() {
		r.Metadata.CreatedAt = now
	}
	if r.Metadata.UpdatedAt.IsZero() {
		r.Metadata.UpdatedAt = now
	}
	return nil
}

// Matches reports whether the rule applies to the given alert
func (r *AlertRule) Matches(a *HealthCheckAlert) bool {
	if !r.Enabled {
		return false
	}
	if r.DomainPattern != "" && !strings.Contains(a.Domain, r.DomainPattern) {
		return false
	}
	if len(r.Types) > 0 {
		found := false
		for _, t := range r.Types {
			if t == a.Type {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if r.MinSeverity != "" && a.Severity.Rank() < r.MinSeverity.Rank() {
		return false
	}
	return true
}
