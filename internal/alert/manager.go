// Package alert maintains deduplicated incident records derived from
// critical domain findings and drives throttled notification fan-out.
package alert

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sentinelhq/domainwatch/internal/model"
	"github.com/sentinelhq/domainwatch/internal/notify"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Store persists alert records
type Store interface {
	// FindOpen returns the open (active/acknowledged/suppressed) alert
	// for the key, or nil when no open incident exists.
	FindOpen(ctx context.Context, key model.AlertKey) (*model.HealthCheckAlert, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*model.HealthCheckAlert, error)
	Create(ctx context.Context, alert *model.HealthCheckAlert) error
	Update(ctx context.Context, alert *model.HealthCheckAlert) error
}

// RuleStore provides the enabled notification rules
type RuleStore interface {
	ListEnabled(ctx context.Context) ([]model.AlertRule, error)
}

// Notifier fans a message out to channel configurations
type Notifier interface {
	Send(ctx context.Context, configs []model.ChannelConfig, msg notify.Message) []notify.SendResult
}

// Manager owns the alert lifecycle: deduplicated raises, throttled
// notifications, and explicit acknowledge/resolve/suppress transitions.
type Manager struct {
	store    Store
	rules    RuleStore
	notifier Notifier
	locks    *keyedMutex

	// now is injected so throttling-window tests are deterministic
	now func() time.Time
}

// NewManager creates an alert manager
func NewManager(store Store, rules RuleStore, notifier Notifier) *Manager {
	return &Manager{
		store:    store,
		rules:    rules,
		notifier: notifier,
		locks:    newKeyedMutex(),
		now:      time.Now,
	}
}

// RaiseFromResult raises or updates an incident for a failed domain
// evaluation. Unknown results are treated as critical for alerting.
func (m *Manager) RaiseFromResult(ctx context.Context, result model.DomainHealthResult) error {
	alertType, message := classifyResult(result)
	_, err := m.Raise(ctx, result.Domain, alertType, model.SeverityCritical, message)
	return err
}

// classifyResult maps a domain result onto an alert type and message
func classifyResult(result model.DomainHealthResult) (model.AlertType, string) {
	for _, issue := range result.Issues {
		if issue.Severity != model.SeverityCritical {
			continue
		}
		switch issue.Type {
		case model.IssueDNS:
			return model.AlertDNSFailure, issue.Message
		case model.IssueSSL:
			return model.AlertSSLExpiry, issue.Message
		case model.IssueSystem:
			return model.AlertSystem, issue.Message
		default:
			return model.AlertDowntime, issue.Message
		}
	}
	return model.AlertDowntime, fmt.Sprintf("health status %s for %s", result.Status, result.Domain)
}

// Raise creates or updates the deduplicated alert for (domain, type).
// Raises for the same key are serialized; a repeated detection while
// the incident is open updates lastDetected and increments the
// escalation level instead of creating a duplicate record.
func (m *Manager) Raise(ctx context.Context, domain string, alertType model.AlertType, severity model.IssueSeverity, message string) (*model.HealthCheckAlert, error) {
	key := model.AlertKey{Domain: domain, Type: alertType}
	unlock := m.locks.lock(key.String())
	defer unlock()

	now := m.now().UTC()

	existing, err := m.store.FindOpen(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to look up alert for %s: %w", key.String(), err)
	}

	var alert *model.HealthCheckAlert
	created := false

	if existing == nil {
		alert = &model.HealthCheckAlert{
			ID:            primitive.NewObjectID(),
			Domain:        domain,
			Type:          alertType,
			Severity:      severity,
			Status:        model.AlertActive,
			Message:       message,
			FirstDetected: now,
			LastDetected:  now,
			CreatedAt:     now,
		}
		created = true
	} else {
		alert = existing
		alert.LastDetected = now
		alert.EscalationLevel++
		alert.Message = message
		if severity.Rank() > alert.Severity.Rank() {
			alert.Severity = severity
		}
		// A suppression window that has elapsed reactivates on the
		// next detection; an unexpired one records silently.
		if alert.SuppressionExpired(now) {
			alert.Status = model.AlertActive
			alert.SuppressedUntil = nil
		}
	}

	alert.History = append(alert.History, model.AlertEvent{Kind: model.EventTriggered, Timestamp: now})
	alert.UpdatedAt = now

	if alert.Status != model.AlertSuppressed {
		m.notifyRules(ctx, alert, now)
	}

	if created {
		err = m.store.Create(ctx, alert)
	} else {
		err = m.store.Update(ctx, alert)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to persist alert for %s: %w", key.String(), err)
	}

	slog.Info("Alert raised",
		"domain", domain,
		"type", alertType,
		"created", created,
		"escalation_level", alert.EscalationLevel,
	)

	return alert, nil
}

// notifyRules fans the detection out to every matching rule's channels,
// unless the rule's rolling-window caps are exhausted. Throttled rules
// still record the detection — only delivery is suppressed.
func (m *Manager) notifyRules(ctx context.Context, alert *model.HealthCheckAlert, now time.Time) {
	rules, err := m.rules.ListEnabled(ctx)
	if err != nil {
		slog.Error("Failed to load alert rules", "error", err)
		return
	}

	msg := notify.Message{
		Title:    fmt.Sprintf("[%s] %s: %s", alert.Severity, alert.Domain, alert.Type),
		Text:     alert.Message,
		Domain:   alert.Domain,
		Severity: alert.Severity,
	}

	for _, rule := range rules {
		if !rule.Matches(alert) {
			continue
		}
		if m.throttled(&rule, alert, now) {
			slog.Info("Notification throttled",
				"rule", rule.Name,
				"domain", alert.Domain,
				"type", alert.Type,
			)
			continue
		}

		for _, result := range m.notifier.Send(ctx, rule.Channels, msg) {
			if result.Err != nil {
				continue
			}
			alert.NotificationsSent++
			alert.History = append(alert.History, model.AlertEvent{
				Kind:      model.EventNotified,
				Timestamp: now,
				Channel:   string(result.Config.Type),
			})
		}
	}
}

// throttled consults the rule's rolling hourly and daily caps against
// the alert's trigger history. The current detection is already in the
// history, so with a cap of N the (N+1)-th raise inside the window is
// suppressed.
func (m *Manager) throttled(rule *model.AlertRule, alert *model.HealthCheckAlert, now time.Time) bool {
	if rule.MaxPerHour > 0 && alert.TriggeredSince(now.Add(-time.Hour)) > rule.MaxPerHour {
		return true
	}
	if rule.MaxPerDay > 0 && alert.TriggeredSince(now.Add(-24*time.Hour)) > rule.MaxPerDay {
		return true
	}
	return false
}

// Acknowledge marks an active alert as acknowledged
func (m *Manager) Acknowledge(ctx context.Context, id primitive.ObjectID, by string) error {
	return m.transition(ctx, id, func(alert *model.HealthCheckAlert, now time.Time) error {
		if alert.Status != model.AlertActive {
			return fmt.Errorf("cannot acknowledge alert in status %s", alert.Status)
		}
		alert.Status = model.AlertAcknowledged
		alert.AcknowledgedBy = by
		alert.AcknowledgedAt = now
		alert.History = append(alert.History, model.AlertEvent{
			Kind:      model.EventAcknowledged,
			Timestamp: now,
			Note:      by,
		})
		return nil
	})
}

// Resolve closes the incident. Resolved is terminal: a later critical
// detection for the same key starts a fresh incident record.
func (m *Manager) Resolve(ctx context.Context, id primitive.ObjectID, note string) error {
	return m.transition(ctx, id, func(alert *model.HealthCheckAlert, now time.Time) error {
		if alert.Status != model.AlertActive && alert.Status != model.AlertAcknowledged {
			return fmt.Errorf("cannot resolve alert in status %s", alert.Status)
		}
		alert.Status = model.AlertResolved
		alert.ResolvedNote = note
		alert.ResolvedAt = now
		alert.History = append(alert.History, model.AlertEvent{
			Kind:      model.EventResolved,
			Timestamp: now,
			Note:      note,
		})
		return nil
	})
}

// Suppress silences notifications for the incident until the given time
func (m *Manager) Suppress(ctx context.Context, id primitive.ObjectID, until time.Time) error {
	return m.transition(ctx, id, func(alert *model.HealthCheckAlert, now time.Time) error {
		if alert.Status != model.AlertActive && alert.Status != model.AlertAcknowledged {
			return fmt.Errorf("cannot suppress alert in status %s", alert.Status)
		}
		if !until.After(now) {
			return fmt.Errorf("suppression end must be in the future")
		}
		untilUTC := until.UTC()
		alert.Status = model.AlertSuppressed
		alert.SuppressedUntil = &untilUTC
		alert.History = append(alert.History, model.AlertEvent{
			Kind:      model.EventSuppressed,
			Timestamp: now,
			Note:      untilUTC.Format(time.RFC3339),
		})
		return nil
	})
}

// transition loads the alert, applies the state change under the key
// lock, and persists it
func (m *Manager) transition(ctx context.Context, id primitive.ObjectID, apply func(*model.HealthCheckAlert, time.Time) error) error {
	alert, err := m.store.GetByID(ctx, id)
	if err != nil {
		return err
	}

	unlock := m.locks.lock(alert.Key().String())
	defer unlock()

	// Re-read under the lock so a concurrent raise is not lost
	alert, err = m.store.GetByID(ctx, id)
	if err != nil {
		return err
	}

	now := m.now().UTC()
	if err := apply(alert, now); err != nil {
		return err
	}
	alert.UpdatedAt = now

	return m.store.Update(ctx, alert)
}
