// Package runner executes one batch health check operation: it fans the
// target list out over a bounded worker pool, aggregates per-domain
// results under a single writer, persists lifecycle transitions, and
// hands critical outcomes to the alert manager.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sentinelhq/domainwatch/internal/evaluator"
	"github.com/sentinelhq/domainwatch/internal/model"
	"github.com/sentinelhq/domainwatch/internal/notify"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/time/rate"
)

// OperationStore persists operation lifecycle transitions
type OperationStore interface {
	UpdateStatus(ctx context.Context, id primitive.ObjectID, status model.OperationStatus, at time.Time) error
	SaveFinished(ctx context.Context, op *model.Operation) error
}

// TargetStore records the latest outcome per monitored domain
type TargetStore interface {
	RecordResult(ctx context.Context, domain string, status model.HealthStatus, at time.Time) error
}

// AlertSink receives domain results that warrant an incident
type AlertSink interface {
	RaiseFromResult(ctx context.Context, result model.DomainHealthResult) error
}

// CompletionNotifier delivers the run-completion notification
type CompletionNotifier interface {
	Send(ctx context.Context, configs []model.ChannelConfig, msg notify.Message) []notify.SendResult
}

// Evaluator produces one result per domain
type Evaluator interface {
	Evaluate(ctx context.Context, domain string) model.DomainHealthResult
}

// Config bounds the runner's concurrency and outbound probe rate
type Config struct {
	Workers      int
	QueueSize    int
	ProbesPerSec float64
}

// Runner executes batch operations
type Runner struct {
	store    OperationStore
	targets  TargetStore
	alerts   AlertSink
	notifier CompletionNotifier
	limiter  *rate.Limiter
	workers  int
	queue    int

	// newEvaluator builds the per-run evaluator; tests substitute fakes
	newEvaluator func(model.CheckTypes, model.CheckConfig) Evaluator
}

// New creates a runner
func New(store OperationStore, targets TargetStore, alerts AlertSink, notifier CompletionNotifier, cfg Config) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = 10
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = cfg.Workers
	}

	limit := rate.Inf
	if cfg.ProbesPerSec > 0 {
		limit = rate.Limit(cfg.ProbesPerSec)
	}

	return &Runner{
		store:    store,
		targets:  targets,
		alerts:   alerts,
		notifier: notifier,
		limiter:  rate.NewLimiter(limit, cfg.Workers),
		workers:  cfg.Workers,
		queue:    cfg.QueueSize,
		newEvaluator: func(types model.CheckTypes, cfg model.CheckConfig) Evaluator {
			return evaluator.New(types, cfg)
		},
	}
}

// Execute runs the operation to completion, mutating and persisting its
// state as it proceeds. Per-domain failures are recorded as data; only
// a system-level failure outside the per-domain loop marks the
// operation itself failed.
func (r *Runner) Execute(ctx context.Context, op *model.Operation) error {
	slog.Info("Starting batch operation",
		"operation_id", op.ID.Hex(),
		"kind", op.Kind,
		"targets", len(op.Targets),
	)

	start := time.Now()
	op.Status = model.OperationInProgress
	op.StartedAt = start.UTC()

	if err := r.store.UpdateStatus(ctx, op.ID, op.Status, op.StartedAt); err != nil {
		return r.failOperation(ctx, op, start, fmt.Errorf("failed to persist run start: %w", err))
	}

	if op.Results.Summary.IssueCounts == nil {
		op.Results.Summary.IssueCounts = make(map[model.IssueType]int)
	}

	// An empty target list is a valid, instantly complete run
	if len(op.Targets) > 0 {
		r.runDomains(ctx, op)
	}

	if ctx.Err() != nil && op.Results.TotalChecked < len(op.Targets) {
		op.Status = model.OperationCancelled
	} else {
		op.Status = model.OperationCompleted
	}

	op.CompletedAt = time.Now().UTC()
	op.DurationMs = time.Since(start).Milliseconds()
	finalizeSummary(op)

	// The final write is the durable checkpoint for the whole run.
	// Use a fresh context so a cancelled run still persists its state.
	persistCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := r.store.SaveFinished(persistCtx, op); err != nil {
		op.Status = model.OperationFailed
		op.Errors = append(op.Errors, model.RunError{Error: fmt.Sprintf("failed to persist results: %v", err)})
		return fmt.Errorf("failed to persist operation results: %w", err)
	}

	r.raiseAlerts(persistCtx, op)
	r.notifyCompletion(persistCtx, op)

	slog.Info("Batch operation finished",
		"operation_id", op.ID.Hex(),
		"status", op.Status,
		"total_checked", op.Results.TotalChecked,
		"critical", op.Results.Summary.CriticalCount,
		"duration_ms", op.DurationMs,
	)

	return nil
}

// runDomains evaluates every target through the worker pool and
// aggregates results in this goroutine, the sole summary writer.
func (r *Runner) runDomains(ctx context.Context, op *model.Operation) {
	workers := r.workers
	if len(op.Targets) < workers {
		workers = len(op.Targets)
	}

	ev := r.newEvaluator(op.CheckTypes, op.Config)

	p := newPool(workers, r.queue)
	p.start(ctx, func(ctx context.Context, domain string) (model.DomainHealthResult, bool) {
		// Cooperative cancellation point: domains not yet started are
		// abandoned, in-flight evaluations run to completion.
		if ctx.Err() != nil {
			return model.DomainHealthResult{}, false
		}
		if err := r.limiter.Wait(ctx); err != nil {
			return model.DomainHealthResult{}, false
		}
		return ev.Evaluate(ctx, domain), true
	})
	p.dispatch(ctx, op.Targets)

	for result := range p.collect() {
		r.aggregate(op, result)
	}
}

// aggregate folds one domain result into the running totals
func (r *Runner) aggregate(op *model.Operation, result model.DomainHealthResult) {
	op.Results.HealthChecks = append(op.Results.HealthChecks, result)
	op.Results.TotalChecked++

	switch result.Status {
	case model.StatusHealthy:
		op.Results.SuccessCount++
		op.Results.Summary.HealthyCount++
	case model.StatusWarning:
		op.Results.WarningCount++
		op.Results.Summary.WarningCount++
	case model.StatusCritical:
		op.Results.FailureCount++
		op.Results.Summary.CriticalCount++
	default:
		op.Results.FailureCount++
		op.Results.Summary.UnknownCount++
	}

	seen := make(map[model.IssueType]bool)
	for _, issue := range result.Issues {
		if !seen[issue.Type] {
			op.Results.Summary.IssueCounts[issue.Type]++
			seen[issue.Type] = true
		}
		if issue.Type == model.IssueSystem {
			op.Errors = append(op.Errors, model.RunError{
				Domain: result.Domain,
				Error:  issue.Message,
			})
		}
	}
}

// finalizeSummary computes the run-level average over domains that
// produced a response time
func finalizeSummary(op *model.Operation) {
	var sum int64
	var count int64
	for _, result := range op.Results.HealthChecks {
		if result.ResponseTimeMs > 0 {
			sum += result.ResponseTimeMs
			count++
		}
	}
	if count > 0 {
		op.Results.Summary.AverageResponseTimeMs = sum / count
	}
}

// raiseAlerts hands critical outcomes to the alert manager and updates
// the target registry. Unknown counts as failure-equivalent for
// alerting. Both paths are best-effort: a sink failure never rolls
// back the completed run.
func (r *Runner) raiseAlerts(ctx context.Context, op *model.Operation) {
	for _, result := range op.Results.HealthChecks {
		if r.targets != nil {
			if err := r.targets.RecordResult(ctx, result.Domain, result.Status, result.Timestamp); err != nil {
				slog.Warn("Failed to update target registry",
					"domain", result.Domain,
					"error", err,
				)
			}
		}

		if result.Status != model.StatusCritical && result.Status != model.StatusUnknown {
			continue
		}
		if r.alerts == nil {
			continue
		}
		if err := r.alerts.RaiseFromResult(ctx, result); err != nil {
			slog.Error("Failed to raise alert",
				"operation_id", op.ID.Hex(),
				"domain", result.Domain,
				"error", err,
			)
		}
	}
}

// notifyCompletion sends the run summary to the configured channels
func (r *Runner) notifyCompletion(ctx context.Context, op *model.Operation) {
	if !op.Notifications.OnCompletion || len(op.Notifications.Channels) == 0 || r.notifier == nil {
		return
	}

	msg := notify.Message{
		Title: fmt.Sprintf("Batch health check %s", op.Status),
		Text: fmt.Sprintf(
			"Checked %d domains: %d healthy, %d warning, %d critical, %d unknown (avg response %dms)",
			op.Results.TotalChecked,
			op.Results.Summary.HealthyCount,
			op.Results.Summary.WarningCount,
			op.Results.Summary.CriticalCount,
			op.Results.Summary.UnknownCount,
			op.Results.Summary.AverageResponseTimeMs,
		),
		Severity: model.SeverityLow,
	}

	for _, sendResult := range r.notifier.Send(ctx, op.Notifications.Channels, msg) {
		if sendResult.Err != nil {
			slog.Warn("Completion notification failed",
				"operation_id", op.ID.Hex(),
				"channel", sendResult.Config.Type,
				"error", sendResult.Err,
			)
		}
	}
}

// failOperation marks the whole run failed with one synthetic error entry
func (r *Runner) failOperation(ctx context.Context, op *model.Operation, start time.Time, cause error) error {
	slog.Error("Batch operation failed",
		"operation_id", op.ID.Hex(),
		"error", cause,
	)

	op.Status = model.OperationFailed
	op.CompletedAt = time.Now().UTC()
	op.DurationMs = time.Since(start).Milliseconds()
	op.Errors = append(op.Errors, model.RunError{Error: cause.Error()})

	persistCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := r.store.SaveFinished(persistCtx, op); err != nil {
		slog.Error("Failed to persist failed operation",
			"operation_id", op.ID.Hex(),
			"error", err,
		)
	}

	return cause
}
