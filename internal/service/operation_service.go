package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sentinelhq/domainwatch/internal/database"
	"github.com/sentinelhq/domainwatch/internal/model"
	"github.com/sentinelhq/domainwatch/internal/schedule"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Sentinel errors the HTTP layer maps to client responses
var (
	ErrNoTargets      = errors.New("target filter matched no enabled domains")
	ErrNotCancellable = errors.New("operation is not running")
)

// Executor runs one batch operation to completion
type Executor interface {
	Execute(ctx context.Context, op *model.Operation) error
}

// OperationService manages the lifecycle of batch operations: starting
// immediate runs, registering recurring definitions, and cancellation.
type OperationService struct {
	opRepo     *database.OperationRepository
	targetRepo *database.TargetRepository
	executor   Executor

	// cancels maps running operation IDs to their cancel functions
	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewOperationService creates an operation service
func NewOperationService(opRepo *database.OperationRepository, targetRepo *database.TargetRepository, executor Executor) *OperationService {
	return &OperationService{
		opRepo:     opRepo,
		targetRepo: targetRepo,
		executor:   executor,
		cancels:    make(map[string]context.CancelFunc),
	}
}

// StartBatch validates and persists an immediate batch run, then
// executes it in the background. Returns the operation ID right away.
func (s *OperationService) StartBatch(ctx context.Context, op *model.Operation) (*model.Operation, error) {
	op.Kind = model.KindImmediate
	op.Status = model.OperationPending
	op.Schedule = nil

	if err := op.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	if err := s.resolveTargets(ctx, op); err != nil {
		return nil, err
	}

	if err := s.opRepo.Create(ctx, op); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.registerCancel(op.ID.Hex(), cancel)

	go s.executeAsync(runCtx, op)

	return op, nil
}

// ScheduleBatch validates and persists a recurring batch definition.
// The scheduler picks it up once its next run comes due.
func (s *OperationService) ScheduleBatch(ctx context.Context, op *model.Operation) (*model.Operation, error) {
	op.Kind = model.KindRecurring
	op.Status = model.OperationPending

	if err := op.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	// Filters on recurring definitions stay dynamic: the scheduler
	// re-resolves them at every firing. Reject only filters that match
	// nothing right now, which is almost certainly a typo.
	if len(op.Targets) == 0 {
		domains, err := s.targetRepo.Resolve(ctx, op.Filter)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve target filter: %w", err)
		}
		if len(domains) == 0 {
			return nil, ErrNoTargets
		}
	}

	now := time.Now().UTC()
	op.Schedule.NextRun = schedule.NextRun(op.Schedule, now)

	if err := s.opRepo.Create(ctx, op); err != nil {
		return nil, err
	}

	slog.Info("Recurring batch definition registered",
		"operation_id", op.ID.Hex(),
		"frequency", op.Schedule.Frequency,
		"next_run", op.Schedule.NextRun,
	)

	return op, nil
}

// resolveTargets expands a target filter into a concrete domain list.
// Explicit target lists pass through untouched.
func (s *OperationService) resolveTargets(ctx context.Context, op *model.Operation) error {
	if len(op.Targets) > 0 {
		return nil
	}

	domains, err := s.targetRepo.Resolve(ctx, op.Filter)
	if err != nil {
		return fmt.Errorf("failed to resolve target filter: %w", err)
	}
	if len(domains) == 0 {
		return ErrNoTargets
	}

	op.Targets = domains
	return nil
}

// executeAsync runs the operation in the background and cleans up the
// cancellation registry when it finishes
func (s *OperationService) executeAsync(ctx context.Context, op *model.Operation) {
	defer s.unregisterCancel(op.ID.Hex())

	if err := s.executor.Execute(ctx, op); err != nil {
		slog.Error("Background batch execution failed",
			"operation_id", op.ID.Hex(),
			"error", err,
		)
	}
}

// GetByID retrieves a full operation by ID
func (s *OperationService) GetByID(ctx context.Context, id string) (*model.Operation, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid ID format: %w", err)
	}

	return s.opRepo.GetByID(ctx, objID)
}

// List retrieves operation summaries with filtering
func (s *OperationService) List(ctx context.Context, status, kind string, page, limit int) ([]model.OperationSummary, int64, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	if kind != "" {
		filter["kind"] = kind
	}

	ops, total, err := s.opRepo.List(ctx, filter, page, limit)
	if err != nil {
		return nil, 0, err
	}

	summaries := make([]model.OperationSummary, len(ops))
	for i, op := range ops {
		summaries[i] = op.ToSummary()
	}

	return summaries, total, nil
}

// Cancel stops a running operation. Domains already evaluated keep
// their results; the run lands in cancelled state once in-flight
// evaluations drain.
func (s *OperationService) Cancel(ctx context.Context, id string) error {
	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return fmt.Errorf("invalid ID format: %w", err)
	}

	s.mu.Lock()
	cancel, ok := s.cancels[id]
	s.mu.Unlock()

	if !ok {
		return ErrNotCancellable
	}

	slog.Info("Cancelling batch operation", "operation_id", id)
	cancel()
	return nil
}

func (s *OperationService) registerCancel(id string, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancels[id] = cancel
}

func (s *OperationService) unregisterCancel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cancels, id)
}
