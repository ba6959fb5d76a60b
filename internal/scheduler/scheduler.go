// Package scheduler fires recurring batch definitions. Each tick it
// finds definitions whose next run is due, takes a distributed lock per
// definition so multiple pods never double-fire, clones the definition
// into a fresh pending run, and hands it to the batch runner.
package scheduler

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sentinelhq/domainwatch/internal/config"
	"github.com/sentinelhq/domainwatch/internal/database"
	"github.com/sentinelhq/domainwatch/internal/model"
	"github.com/sentinelhq/domainwatch/internal/schedule"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Executor runs one batch operation to completion
type Executor interface {
	Execute(ctx context.Context, op *model.Operation) error
}

// TargetResolver expands a target filter into the domains it currently matches
type TargetResolver interface {
	Resolve(ctx context.Context, filter *model.TargetFilter) ([]string, error)
}

// Scheduler drives recurring batch executions with distributed locking
type Scheduler struct {
	cfg      *config.Config
	executor Executor
	lockRepo *database.LockRepository
	opRepo   *database.OperationRepository
	targets  TargetResolver

	podID     string
	ticker    *time.Ticker
	stopChan  chan struct{}
	wg        sync.WaitGroup
	semaphore chan struct{} // Limits concurrent firings
}

// NewScheduler creates a scheduler instance
func NewScheduler(
	cfg *config.Config,
	executor Executor,
	lockRepo *database.LockRepository,
	opRepo *database.OperationRepository,
	targets TargetResolver,
) *Scheduler {
	// Pod identifier (hostname in Kubernetes)
	podID, err := os.Hostname()
	if err != nil {
		podID = uuid.New().String()
		slog.Warn("Failed to get hostname, using UUID as pod ID", "pod_id", podID)
	}

	return &Scheduler{
		cfg:       cfg,
		executor:  executor,
		lockRepo:  lockRepo,
		opRepo:    opRepo,
		targets:   targets,
		podID:     podID,
		stopChan:  make(chan struct{}),
		semaphore: make(chan struct{}, cfg.SchedulerConcurrency),
	}
}

// Start begins the scheduler tick loop
func (s *Scheduler) Start(ctx context.Context) {
	if !s.cfg.SchedulerEnabled {
		slog.Info("Scheduler is disabled by configuration")
		return
	}

	slog.Info("Starting scheduler",
		"pod_id", s.podID,
		"tick_interval", s.cfg.SchedulerTickInterval,
		"lock_ttl", s.cfg.SchedulerLockTTL,
		"concurrency", s.cfg.SchedulerConcurrency,
	)

	s.ticker = time.NewTicker(s.cfg.SchedulerTickInterval)
	s.wg.Add(1)

	go s.run(ctx)
}

// Stop gracefully stops the scheduler, waiting for in-flight firings
func (s *Scheduler) Stop(ctx context.Context) {
	if !s.cfg.SchedulerEnabled {
		return
	}

	slog.Info("Stopping scheduler", "pod_id", s.podID)

	close(s.stopChan)
	if s.ticker != nil {
		s.ticker.Stop()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("All scheduled runs completed")
	case <-ctx.Done():
		slog.Warn("Timeout waiting for scheduled runs to complete")
	}

	if err := s.lockRepo.ReleaseAllLocks(context.Background(), s.podID); err != nil {
		slog.Error("Failed to release locks during shutdown", "error", err)
	}

	slog.Info("Scheduler stopped", "pod_id", s.podID)
}

// run is the main scheduler loop
func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	// Run immediately on start
	s.tick(ctx)

	for {
		select {
		case <-s.ticker.C:
			s.tick(ctx)
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// tick processes one scheduler pass
func (s *Scheduler) tick(ctx context.Context) {
	now := time.Now().UTC()

	if cleaned, err := s.lockRepo.CleanExpiredLocks(ctx); err != nil {
		slog.Error("Failed to clean expired locks", "error", err)
	} else if cleaned > 0 {
		slog.Info("Cleaned expired locks", "count", cleaned)
	}

	definitions, err := s.opRepo.FindDueRecurring(ctx, now)
	if err != nil {
		slog.Error("Failed to find due recurring operations", "error", err)
		return
	}

	if len(definitions) == 0 {
		return
	}

	slog.Info("Found recurring operations due for execution",
		"pod_id", s.podID,
		"count", len(definitions),
	)

	for _, definition := range definitions {
		acquired, err := s.lockRepo.AcquireLock(ctx, definition.ID, s.podID, s.cfg.SchedulerLockTTL)
		if err != nil {
			slog.Error("Failed to acquire lock",
				"operation_id", definition.ID.Hex(),
				"error", err,
			)
			continue
		}
		if !acquired {
			slog.Debug("Lock already held by another pod",
				"operation_id", definition.ID.Hex(),
			)
			continue
		}

		s.wg.Add(1)
		go s.fire(ctx, definition)
	}
}

// fire executes one due definition under its lock
func (s *Scheduler) fire(ctx context.Context, definition model.Operation) {
	defer s.wg.Done()
	defer s.releaseLock(ctx, definition.ID)

	select {
	case s.semaphore <- struct{}{}:
		defer func() { <-s.semaphore }()
	case <-s.stopChan:
		return
	case <-ctx.Done():
		return
	}

	run, err := s.buildRun(ctx, &definition)
	if err != nil {
		// Skip this firing but still advance the schedule below, so a
		// transient resolution failure cannot hot-loop the definition
		slog.Error("Failed to build scheduled run",
			"definition_id", definition.ID.Hex(),
			"error", err,
		)
	} else if err := s.opRepo.Create(ctx, run); err != nil {
		slog.Error("Failed to create scheduled run",
			"definition_id", definition.ID.Hex(),
			"error", err,
		)
		return
	} else {
		slog.Info("Firing scheduled batch run",
			"definition_id", definition.ID.Hex(),
			"run_id", run.ID.Hex(),
			"pod_id", s.podID,
		)

		if err := s.executor.Execute(ctx, run); err != nil {
			slog.Error("Scheduled batch run failed",
				"definition_id", definition.ID.Hex(),
				"run_id", run.ID.Hex(),
				"error", err,
			)
		}
	}

	now := time.Now().UTC()
	nextRun := schedule.NextRun(definition.Schedule, now)
	if err := s.opRepo.UpdateScheduledRun(ctx, definition.ID, now, nextRun); err != nil {
		slog.Error("Failed to update next scheduled run",
			"definition_id", definition.ID.Hex(),
			"error", err,
		)
	}
}

// buildRun derives a fresh pending run from a recurring definition.
// Definitions carrying a target filter are re-resolved at fire time so
// staleness criteria like checked_before stay dynamic; a filter that
// currently matches nothing yields an empty run, which completes
// instantly and leaves an audit record.
func (s *Scheduler) buildRun(ctx context.Context, definition *model.Operation) (*model.Operation, error) {
	now := time.Now().UTC()
	run := &model.Operation{
		Name:          definition.Name,
		Kind:          model.KindScheduled,
		Status:        model.OperationPending,
		Targets:       definition.Targets,
		Filter:        definition.Filter,
		CheckTypes:    definition.CheckTypes,
		Config:        definition.Config,
		Notifications: definition.Notifications,
		Metadata: model.Metadata{
			CreatedAt: now,
			UpdatedAt: now,
			CreatedBy: "scheduler",
			Tags:      definition.Metadata.Tags,
		},
	}

	if len(run.Targets) == 0 && !definition.Filter.Empty() {
		domains, err := s.targets.Resolve(ctx, definition.Filter)
		if err != nil {
			return nil, err
		}
		run.Targets = domains
	}

	return run, nil
}

// releaseLock releases the distributed lock for a definition
func (s *Scheduler) releaseLock(ctx context.Context, definitionID primitive.ObjectID) {
	if err := s.lockRepo.ReleaseLock(ctx, definitionID, s.podID); err != nil {
		slog.Error("Failed to release lock",
			"operation_id", definitionID.Hex(),
			"pod_id", s.podID,
			"error", err,
		)
	}
}
