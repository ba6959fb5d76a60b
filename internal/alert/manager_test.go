package alert

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sentinelhq/domainwatch/internal/model"
	"github.com/sentinelhq/domainwatch/internal/notify"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type memStore struct {
	mu     sync.Mutex
	alerts map[primitive.ObjectID]*model.HealthCheckAlert
}

func newMemStore() *memStore {
	return &memStore{alerts: make(map[primitive.ObjectID]*model.HealthCheckAlert)}
}

func (s *memStore) FindOpen(ctx context.Context, key model.AlertKey) (*model.HealthCheckAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.alerts {
		if a.Domain == key.Domain && a.Type == key.Type && a.Status.Open() {
			clone := *a
			return &clone, nil
		}
	}
	return nil, nil
}

func (s *memStore) GetByID(ctx context.Context, id primitive.ObjectID) (*model.HealthCheckAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.alerts[id]; ok {
		clone := *a
		return &clone, nil
	}
	return nil, context.Canceled
}

func (s *memStore) Create(ctx context.Context, alert *model.HealthCheckAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *alert
	s.alerts[alert.ID] = &clone
	return nil
}

func (s *memStore) Update(ctx context.Context, alert *model.HealthCheckAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *alert
	s.alerts[alert.ID] = &clone
	return nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.alerts)
}

func (s *memStore) only(t *testing.T) *model.HealthCheckAlert {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.alerts) != 1 {
		t.Fatalf("want exactly 1 alert, got %d", len(s.alerts))
	}
	for _, a := range s.alerts {
		clone := *a
		return &clone
	}
	return nil
}

type memRules struct {
	rules []model.AlertRule
}

func (r *memRules) ListEnabled(ctx context.Context) ([]model.AlertRule, error) {
	return r.rules, nil
}

type recordingNotifier struct {
	mu    sync.Mutex
	sends []model.ChannelConfig
	fail  bool
}

func (n *recordingNotifier) Send(ctx context.Context, configs []model.ChannelConfig, msg notify.Message) []notify.SendResult {
	n.mu.Lock()
	defer n.mu.Unlock()
	results := make([]notify.SendResult, 0, len(configs))
	for _, config := range configs {
		var err error
		if n.fail {
			err = context.DeadlineExceeded
		} else {
			n.sends = append(n.sends, config)
		}
		results = append(results, notify.SendResult{Config: config, Err: err})
	}
	return results
}

func (n *recordingNotifier) sent() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sends)
}

func defaultRule() model.AlertRule {
	return model.AlertRule{
		Name:    "all-critical",
		Enabled: true,
		Channels: []model.ChannelConfig{
			{Type: model.ChannelWebhook, Target: "https://hooks.example.com/a"},
		},
	}
}

func newTestManager(store Store, rules []model.AlertRule, notifier Notifier) *Manager {
	return NewManager(store, &memRules{rules: rules}, notifier)
}

func TestRaise_CreatesActiveAlert(t *testing.T) {
	store := newMemStore()
	notifier := &recordingNotifier{}
	m := newTestManager(store, []model.AlertRule{defaultRule()}, notifier)

	alert, err := m.Raise(context.Background(), "example.com", model.AlertDowntime, model.SeverityCritical, "down")
	if err != nil {
		t.Fatalf("raise failed: %v", err)
	}

	if alert.Status != model.AlertActive {
		t.Fatalf("want active, got %s", alert.Status)
	}
	if alert.EscalationLevel != 0 {
		t.Fatalf("want escalation 0 on first raise, got %d", alert.EscalationLevel)
	}
	if notifier.sent() != 1 {
		t.Fatalf("want 1 notification, got %d", notifier.sent())
	}
	if alert.NotificationsSent != 1 {
		t.Fatalf("want notifications_sent 1, got %d", alert.NotificationsSent)
	}

	stored := store.only(t)
	if len(stored.History) != 2 {
		t.Fatalf("want triggered + notified history, got %+v", stored.History)
	}
	if stored.History[0].Kind != model.EventTriggered || stored.History[1].Kind != model.EventNotified {
		t.Fatalf("unexpected history order: %+v", stored.History)
	}
}

func TestRaise_DeduplicatesAndEscalates(t *testing.T) {
	store := newMemStore()
	m := newTestManager(store, nil, &recordingNotifier{})

	first, err := m.Raise(context.Background(), "example.com", model.AlertDowntime, model.SeverityHigh, "down")
	if err != nil {
		t.Fatalf("first raise failed: %v", err)
	}
	second, err := m.Raise(context.Background(), "example.com", model.AlertDowntime, model.SeverityCritical, "still down")
	if err != nil {
		t.Fatalf("second raise failed: %v", err)
	}

	if store.count() != 1 {
		t.Fatalf("want a single deduplicated record, got %d", store.count())
	}
	if second.ID != first.ID {
		t.Fatalf("want same record, got %s and %s", first.ID.Hex(), second.ID.Hex())
	}
	if second.EscalationLevel != 1 {
		t.Fatalf("want escalation 1 after repeat, got %d", second.EscalationLevel)
	}
	if second.Severity != model.SeverityCritical {
		t.Fatalf("severity should rise to critical, got %s", second.Severity)
	}
	if !second.LastDetected.After(second.FirstDetected) && !second.LastDetected.Equal(second.FirstDetected) {
		t.Fatalf("last detected %v before first detected %v", second.LastDetected, second.FirstDetected)
	}
}

func TestRaise_DistinctTypesAreDistinctIncidents(t *testing.T) {
	store := newMemStore()
	m := newTestManager(store, nil, &recordingNotifier{})

	if _, err := m.Raise(context.Background(), "example.com", model.AlertDowntime, model.SeverityCritical, "down"); err != nil {
		t.Fatalf("raise failed: %v", err)
	}
	if _, err := m.Raise(context.Background(), "example.com", model.AlertSSLExpiry, model.SeverityCritical, "cert"); err != nil {
		t.Fatalf("raise failed: %v", err)
	}

	if store.count() != 2 {
		t.Fatalf("want 2 incidents for distinct types, got %d", store.count())
	}
}

func TestRaise_HourlyThrottle(t *testing.T) {
	store := newMemStore()
	notifier := &recordingNotifier{}
	rule := defaultRule()
	rule.MaxPerHour = 2
	m := newTestManager(store, []model.AlertRule{rule}, notifier)

	base := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		offset := time.Duration(i) * time.Minute
		m.now = func() time.Time { return base.Add(offset) }
		if _, err := m.Raise(context.Background(), "example.com", model.AlertDowntime, model.SeverityCritical, "down"); err != nil {
			t.Fatalf("raise %d failed: %v", i, err)
		}
	}

	// Cap of 2: the third and fourth raises inside the hour are throttled
	if notifier.sent() != 2 {
		t.Fatalf("want 2 notifications under the hourly cap, got %d", notifier.sent())
	}

	// Outside the rolling window delivery resumes
	m.now = func() time.Time { return base.Add(2 * time.Hour) }
	if _, err := m.Raise(context.Background(), "example.com", model.AlertDowntime, model.SeverityCritical, "down"); err != nil {
		t.Fatalf("raise failed: %v", err)
	}
	if notifier.sent() != 3 {
		t.Fatalf("want delivery to resume outside the window, got %d", notifier.sent())
	}

	stored := store.only(t)
	triggered := stored.TriggeredSince(time.Time{})
	if triggered != 5 {
		t.Fatalf("throttling must not drop detections: want 5 triggered, got %d", triggered)
	}
}

func TestRaise_FailedDeliveryNotCounted(t *testing.T) {
	store := newMemStore()
	notifier := &recordingNotifier{fail: true}
	m := newTestManager(store, []model.AlertRule{defaultRule()}, notifier)

	alert, err := m.Raise(context.Background(), "example.com", model.AlertDowntime, model.SeverityCritical, "down")
	if err != nil {
		t.Fatalf("raise failed: %v", err)
	}
	if alert.NotificationsSent != 0 {
		t.Fatalf("failed sends must not count, got %d", alert.NotificationsSent)
	}
}

func TestAcknowledgeResolveLifecycle(t *testing.T) {
	store := newMemStore()
	m := newTestManager(store, nil, &recordingNotifier{})

	alert, err := m.Raise(context.Background(), "example.com", model.AlertDowntime, model.SeverityCritical, "down")
	if err != nil {
		t.Fatalf("raise failed: %v", err)
	}

	if err := m.Acknowledge(context.Background(), alert.ID, "oncall"); err != nil {
		t.Fatalf("acknowledge failed: %v", err)
	}
	if err := m.Acknowledge(context.Background(), alert.ID, "oncall"); err == nil {
		t.Fatalf("want error acknowledging an already acknowledged alert")
	}

	if err := m.Resolve(context.Background(), alert.ID, "fixed"); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if err := m.Resolve(context.Background(), alert.ID, "again"); err == nil {
		t.Fatalf("want error resolving a resolved alert")
	}

	stored := store.only(t)
	if stored.Status != model.AlertResolved {
		t.Fatalf("want resolved, got %s", stored.Status)
	}
	if stored.AcknowledgedBy != "oncall" || stored.ResolvedNote != "fixed" {
		t.Fatalf("lifecycle fields not recorded: %+v", stored)
	}
}

func TestRaiseAfterResolveStartsFreshIncident(t *testing.T) {
	store := newMemStore()
	m := newTestManager(store, nil, &recordingNotifier{})

	first, err := m.Raise(context.Background(), "example.com", model.AlertDowntime, model.SeverityCritical, "down")
	if err != nil {
		t.Fatalf("raise failed: %v", err)
	}
	if err := m.Resolve(context.Background(), first.ID, "fixed"); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	second, err := m.Raise(context.Background(), "example.com", model.AlertDowntime, model.SeverityCritical, "down again")
	if err != nil {
		t.Fatalf("raise failed: %v", err)
	}

	if second.ID == first.ID {
		t.Fatalf("resolved is terminal: want a fresh record")
	}
	if second.EscalationLevel != 0 {
		t.Fatalf("fresh incident should start at escalation 0, got %d", second.EscalationLevel)
	}
	if store.count() != 2 {
		t.Fatalf("want 2 records after resolve+raise, got %d", store.count())
	}
}

func TestSuppress_SilencesUntilExpiry(t *testing.T) {
	store := newMemStore()
	notifier := &recordingNotifier{}
	m := newTestManager(store, []model.AlertRule{defaultRule()}, notifier)

	base := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }

	alert, err := m.Raise(context.Background(), "example.com", model.AlertDowntime, model.SeverityCritical, "down")
	if err != nil {
		t.Fatalf("raise failed: %v", err)
	}
	sentBefore := notifier.sent()

	if err := m.Suppress(context.Background(), alert.ID, base.Add(time.Hour)); err != nil {
		t.Fatalf("suppress failed: %v", err)
	}

	// Detection during the window records but does not notify
	m.now = func() time.Time { return base.Add(30 * time.Minute) }
	during, err := m.Raise(context.Background(), "example.com", model.AlertDowntime, model.SeverityCritical, "down")
	if err != nil {
		t.Fatalf("raise failed: %v", err)
	}
	if during.Status != model.AlertSuppressed {
		t.Fatalf("want suppressed during window, got %s", during.Status)
	}
	if notifier.sent() != sentBefore {
		t.Fatalf("suppressed alert must not notify, got %d sends", notifier.sent())
	}

	// After the window the next detection reactivates and notifies
	m.now = func() time.Time { return base.Add(2 * time.Hour) }
	after, err := m.Raise(context.Background(), "example.com", model.AlertDowntime, model.SeverityCritical, "down")
	if err != nil {
		t.Fatalf("raise failed: %v", err)
	}
	if after.Status != model.AlertActive {
		t.Fatalf("want reactivated alert, got %s", after.Status)
	}
	if after.SuppressedUntil != nil {
		t.Fatalf("suppression window should be cleared")
	}
	if notifier.sent() != sentBefore+1 {
		t.Fatalf("want notification after window expiry, got %d", notifier.sent())
	}
}

func TestSuppress_RejectsPastDeadline(t *testing.T) {
	store := newMemStore()
	m := newTestManager(store, nil, &recordingNotifier{})

	alert, err := m.Raise(context.Background(), "example.com", model.AlertDowntime, model.SeverityCritical, "down")
	if err != nil {
		t.Fatalf("raise failed: %v", err)
	}

	if err := m.Suppress(context.Background(), alert.ID, time.Now().Add(-time.Hour)); err == nil {
		t.Fatalf("want error for suppression end in the past")
	}
}

func TestRuleMatching(t *testing.T) {
	store := newMemStore()
	notifier := &recordingNotifier{}
	rule := defaultRule()
	rule.Types = []model.AlertType{model.AlertSSLExpiry}
	m := newTestManager(store, []model.AlertRule{rule}, notifier)

	if _, err := m.Raise(context.Background(), "example.com", model.AlertDowntime, model.SeverityCritical, "down"); err != nil {
		t.Fatalf("raise failed: %v", err)
	}
	if notifier.sent() != 0 {
		t.Fatalf("rule scoped to ssl_expiry must not fire for downtime, got %d", notifier.sent())
	}

	if _, err := m.Raise(context.Background(), "example.com", model.AlertSSLExpiry, model.SeverityCritical, "cert"); err != nil {
		t.Fatalf("raise failed: %v", err)
	}
	if notifier.sent() != 1 {
		t.Fatalf("want 1 notification for matching type, got %d", notifier.sent())
	}
}

func TestRaiseFromResult_ClassifiesByCriticalIssue(t *testing.T) {
	store := newMemStore()
	m := newTestManager(store, nil, &recordingNotifier{})

	result := model.DomainHealthResult{
		Domain: "example.com",
		Status: model.StatusCritical,
		Issues: []model.Issue{
			{Type: model.IssueSSL, Severity: model.SeverityMedium, Message: "expiring"},
			{Type: model.IssueDNS, Severity: model.SeverityCritical, Message: "nxdomain"},
		},
	}

	if err := m.RaiseFromResult(context.Background(), result); err != nil {
		t.Fatalf("raise from result failed: %v", err)
	}

	stored := store.only(t)
	if stored.Type != model.AlertDNSFailure {
		t.Fatalf("want dns_failure from the critical issue, got %s", stored.Type)
	}
}

func TestRaiseFromResult_UnknownBecomesDowntime(t *testing.T) {
	store := newMemStore()
	m := newTestManager(store, nil, &recordingNotifier{})

	result := model.DomainHealthResult{
		Domain: "example.com",
		Status: model.StatusUnknown,
	}

	if err := m.RaiseFromResult(context.Background(), result); err != nil {
		t.Fatalf("raise from result failed: %v", err)
	}

	stored := store.only(t)
	if stored.Type != model.AlertDowntime {
		t.Fatalf("want downtime for unknown result, got %s", stored.Type)
	}
}
