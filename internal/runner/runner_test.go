package runner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sentinelhq/domainwatch/internal/model"
	"github.com/sentinelhq/domainwatch/internal/notify"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakeOpStore struct {
	mu            sync.Mutex
	statusUpdates []model.OperationStatus
	saved         *model.Operation
	failUpdate    bool
}

func (s *fakeOpStore) UpdateStatus(ctx context.Context, id primitive.ObjectID, status model.OperationStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpdate {
		return errors.New("mongo unavailable")
	}
	s.statusUpdates = append(s.statusUpdates, status)
	return nil
}

func (s *fakeOpStore) SaveFinished(ctx context.Context, op *model.Operation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *op
	s.saved = &clone
	return nil
}

type fakeTargetStore struct {
	mu       sync.Mutex
	recorded map[string]model.HealthStatus
}

func (s *fakeTargetStore) RecordResult(ctx context.Context, domain string, status model.HealthStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recorded == nil {
		s.recorded = make(map[string]model.HealthStatus)
	}
	s.recorded[domain] = status
	return nil
}

type fakeAlertSink struct {
	mu     sync.Mutex
	raised []model.DomainHealthResult
}

func (s *fakeAlertSink) RaiseFromResult(ctx context.Context, result model.DomainHealthResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raised = append(s.raised, result)
	return nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []notify.Message
}

func (n *fakeNotifier) Send(ctx context.Context, configs []model.ChannelConfig, msg notify.Message) []notify.SendResult {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, msg)
	results := make([]notify.SendResult, 0, len(configs))
	for _, config := range configs {
		results = append(results, notify.SendResult{Config: config})
	}
	return results
}

// mapEvaluator returns canned results per domain
type mapEvaluator struct {
	results map[string]model.DomainHealthResult
}

func (e *mapEvaluator) Evaluate(ctx context.Context, domain string) model.DomainHealthResult {
	if result, ok := e.results[domain]; ok {
		return result
	}
	return model.DomainHealthResult{Domain: domain, Status: model.StatusHealthy}
}

func newTestRunner(store *fakeOpStore, targets *fakeTargetStore, alerts *fakeAlertSink, notifier *fakeNotifier, results map[string]model.DomainHealthResult) *Runner {
	r := New(store, targets, alerts, notifier, Config{Workers: 2})
	r.newEvaluator = func(types model.CheckTypes, cfg model.CheckConfig) Evaluator {
		return &mapEvaluator{results: results}
	}
	return r
}

func newTestOperation(targets ...string) *model.Operation {
	return &model.Operation{
		ID:      primitive.NewObjectID(),
		Kind:    model.KindImmediate,
		Status:  model.OperationPending,
		Targets: targets,
	}
}

func TestExecute_AggregatesMixedResults(t *testing.T) {
	store := &fakeOpStore{}
	targets := &fakeTargetStore{}
	alerts := &fakeAlertSink{}

	now := time.Now().UTC()
	results := map[string]model.DomainHealthResult{
		"a.com": {Domain: "a.com", Status: model.StatusHealthy, ResponseTimeMs: 100, Timestamp: now},
		"b.com": {
			Domain: "b.com", Status: model.StatusWarning, ResponseTimeMs: 200, Timestamp: now,
			Issues: []model.Issue{{Type: model.IssueSSL, Severity: model.SeverityHigh, Message: "expiring"}},
		},
		"c.com": {
			Domain: "c.com", Status: model.StatusCritical, Timestamp: now,
			Issues: []model.Issue{{Type: model.IssueHTTP, Severity: model.SeverityCritical, Message: "down"}},
		},
	}

	r := newTestRunner(store, targets, alerts, nil, results)
	op := newTestOperation("a.com", "b.com", "c.com")

	if err := r.Execute(context.Background(), op); err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	if op.Status != model.OperationCompleted {
		t.Fatalf("want completed, got %s", op.Status)
	}
	if op.Results.TotalChecked != 3 {
		t.Fatalf("want 3 checked, got %d", op.Results.TotalChecked)
	}
	if op.Results.SuccessCount != 1 || op.Results.WarningCount != 1 || op.Results.FailureCount != 1 {
		t.Fatalf("unexpected counts: %+v", op.Results)
	}
	s := op.Results.Summary
	if s.HealthyCount != 1 || s.WarningCount != 1 || s.CriticalCount != 1 || s.UnknownCount != 0 {
		t.Fatalf("unexpected summary: %+v", s)
	}
	if s.AverageResponseTimeMs != 150 {
		t.Fatalf("want average over responding domains 150, got %d", s.AverageResponseTimeMs)
	}
	if s.IssueCounts[model.IssueSSL] != 1 || s.IssueCounts[model.IssueHTTP] != 1 {
		t.Fatalf("unexpected issue counts: %+v", s.IssueCounts)
	}

	if len(alerts.raised) != 1 || alerts.raised[0].Domain != "c.com" {
		t.Fatalf("want one alert for c.com, got %+v", alerts.raised)
	}
	if len(targets.recorded) != 3 {
		t.Fatalf("want all outcomes recorded in the registry, got %+v", targets.recorded)
	}
	if targets.recorded["c.com"] != model.StatusCritical {
		t.Fatalf("want critical recorded for c.com, got %s", targets.recorded["c.com"])
	}

	if store.saved == nil || store.saved.Status != model.OperationCompleted {
		t.Fatalf("finished operation not persisted: %+v", store.saved)
	}
	if op.DurationMs < 0 {
		t.Fatalf("duration should be >= 0, got %d", op.DurationMs)
	}
}

func TestExecute_UnknownStatusRaisesAlert(t *testing.T) {
	alerts := &fakeAlertSink{}
	results := map[string]model.DomainHealthResult{
		"a.com": {Domain: "a.com", Status: model.StatusUnknown},
	}

	r := newTestRunner(&fakeOpStore{}, &fakeTargetStore{}, alerts, nil, results)
	op := newTestOperation("a.com")

	if err := r.Execute(context.Background(), op); err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	if op.Results.Summary.UnknownCount != 1 {
		t.Fatalf("want unknown counted, got %+v", op.Results.Summary)
	}
	if op.Results.FailureCount != 1 {
		t.Fatalf("unknown counts as failure, got %+v", op.Results)
	}
	if len(alerts.raised) != 1 {
		t.Fatalf("unknown must raise an alert, got %+v", alerts.raised)
	}
}

func TestExecute_SystemIssueBecomesRunError(t *testing.T) {
	results := map[string]model.DomainHealthResult{
		"a.com": {
			Domain: "a.com", Status: model.StatusCritical,
			Issues: []model.Issue{{Type: model.IssueSystem, Severity: model.SeverityCritical, Message: "probe panicked"}},
		},
	}

	r := newTestRunner(&fakeOpStore{}, &fakeTargetStore{}, &fakeAlertSink{}, nil, results)
	op := newTestOperation("a.com")

	if err := r.Execute(context.Background(), op); err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	if len(op.Errors) != 1 || op.Errors[0].Domain != "a.com" {
		t.Fatalf("want system issue surfaced as run error, got %+v", op.Errors)
	}
	if op.Status != model.OperationCompleted {
		t.Fatalf("per-domain failure must not fail the run, got %s", op.Status)
	}
}

func TestExecute_EmptyTargetsCompletesInstantly(t *testing.T) {
	store := &fakeOpStore{}
	alerts := &fakeAlertSink{}

	r := newTestRunner(store, &fakeTargetStore{}, alerts, nil, nil)
	op := newTestOperation()

	if err := r.Execute(context.Background(), op); err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	if op.Status != model.OperationCompleted {
		t.Fatalf("want completed, got %s", op.Status)
	}
	if op.Results.TotalChecked != 0 {
		t.Fatalf("want 0 checked, got %d", op.Results.TotalChecked)
	}
	if len(alerts.raised) != 0 {
		t.Fatalf("want no alerts, got %+v", alerts.raised)
	}
}

func TestExecute_PersistFailureFailsOperation(t *testing.T) {
	store := &fakeOpStore{failUpdate: true}

	r := newTestRunner(store, &fakeTargetStore{}, &fakeAlertSink{}, nil, nil)
	op := newTestOperation("a.com")

	if err := r.Execute(context.Background(), op); err == nil {
		t.Fatalf("want error when run start cannot be persisted")
	}

	if op.Status != model.OperationFailed {
		t.Fatalf("want failed, got %s", op.Status)
	}
	if len(op.Errors) != 1 {
		t.Fatalf("want one synthetic run error, got %+v", op.Errors)
	}
	if store.saved == nil || store.saved.Status != model.OperationFailed {
		t.Fatalf("failed state must still be persisted, got %+v", store.saved)
	}
}

func TestExecute_CancelledBeforeStart(t *testing.T) {
	results := map[string]model.DomainHealthResult{
		"a.com": {Domain: "a.com", Status: model.StatusHealthy},
	}

	r := newTestRunner(&fakeOpStore{}, &fakeTargetStore{}, &fakeAlertSink{}, nil, results)
	op := newTestOperation("a.com", "b.com")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := r.Execute(ctx, op); err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	if op.Status != model.OperationCancelled {
		t.Fatalf("want cancelled, got %s", op.Status)
	}
	if op.Results.TotalChecked >= len(op.Targets) {
		t.Fatalf("cancelled run should not have checked everything, got %d", op.Results.TotalChecked)
	}
}

func TestExecute_CompletionNotification(t *testing.T) {
	notifier := &fakeNotifier{}

	r := newTestRunner(&fakeOpStore{}, &fakeTargetStore{}, &fakeAlertSink{}, notifier, nil)
	op := newTestOperation("a.com")
	op.Notifications = model.NotificationSettings{
		OnCompletion: true,
		Channels:     []model.ChannelConfig{{Type: model.ChannelSlack, Target: "https://hooks.slack.com/x"}},
	}

	if err := r.Execute(context.Background(), op); err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	if len(notifier.messages) != 1 {
		t.Fatalf("want one completion message, got %d", len(notifier.messages))
	}
}

func TestExecute_NoNotificationWhenDisabled(t *testing.T) {
	notifier := &fakeNotifier{}

	r := newTestRunner(&fakeOpStore{}, &fakeTargetStore{}, &fakeAlertSink{}, notifier, nil)
	op := newTestOperation("a.com")
	op.Notifications = model.NotificationSettings{
		Channels: []model.ChannelConfig{{Type: model.ChannelSlack, Target: "https://hooks.slack.com/x"}},
	}

	if err := r.Execute(context.Background(), op); err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	if len(notifier.messages) != 0 {
		t.Fatalf("want no message when on_completion is false, got %d", len(notifier.messages))
	}
}
