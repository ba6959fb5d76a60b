package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OperationKind describes how a batch run was triggered
type OperationKind string

const (
	KindImmediate OperationKind = "immediate"
	KindScheduled OperationKind = "scheduled"
	KindRecurring OperationKind = "recurring"
)

// OperationStatus is the lifecycle state of a batch operation
type OperationStatus string

const (
	OperationPending    OperationStatus = "pending"
	OperationInProgress OperationStatus = "in_progress"
	OperationCompleted  OperationStatus = "completed"
	OperationFailed     OperationStatus = "failed"
	OperationCancelled  OperationStatus = "cancelled"
)

// Terminal reports whether the status is final
func (s OperationStatus) Terminal() bool {
	return s == OperationCompleted || s == OperationFailed || s == OperationCancelled
}

// ScheduleFrequency is the recurrence class of a recurring definition
type ScheduleFrequency string

const (
	FrequencyOnce      ScheduleFrequency = "once"
	FrequencyHourly    ScheduleFrequency = "hourly"
	FrequencyDaily     ScheduleFrequency = "daily"
	FrequencyWeekly    ScheduleFrequency = "weekly"
	FrequencyMonthly   ScheduleFrequency = "monthly"
	FrequencyQuarterly ScheduleFrequency = "quarterly"
	FrequencyYearly    ScheduleFrequency = "yearly"
	FrequencyCustom    ScheduleFrequency = "custom"
)

// Schedule describes when a recurring batch definition fires
type Schedule struct {
	Frequency  ScheduleFrequency `json:"frequency" bson:"frequency"`
	Hour       int               `json:"hour" bson:"hour"`
	Minute     int               `json:"minute" bson:"minute"`
	DayOfWeek  time.Weekday      `json:"day_of_week" bson:"day_of_week"`
	DayOfMonth int               `json:"day_of_month" bson:"day_of_month"`
	Timezone   string            `json:"timezone,omitempty" bson:"timezone,omitempty"`
	Expression string            `json:"expression,omitempty" bson:"expression,omitempty"` // cron, for custom frequency
	NextRun    time.Time         `json:"next_run,omitempty" bson:"next_run,omitempty"`
	LastRun    time.Time         `json:"last_run,omitempty" bson:"last_run,omitempty"`
}

// Validate validates the schedule definition
func (s *Schedule) Validate() error {
	switch s.Frequency {
	case FrequencyOnce, FrequencyHourly, FrequencyDaily, FrequencyWeekly,
		FrequencyMonthly, FrequencyQuarterly, FrequencyYearly:
	case FrequencyCustom:
		if s.Expression == "" {
			return errors.New("expression is required for custom frequency")
		}
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
		if _, err := parser.Parse(s.Expression); err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
	default:
		return fmt.Errorf("invalid schedule frequency: %s", s.Frequency)
	}

	if s.Hour < 0 || s.Hour > 23 {
		return errors.New("schedule hour must be between 0 and 23")
	}
	if s.Minute < 0 || s.Minute > 59 {
		return errors.New("schedule minute must be between 0 and 59")
	}
	if s.DayOfWeek < time.Sunday || s.DayOfWeek > time.Saturday {
		return errors.New("schedule day of week must be between 0 and 6")
	}
	// 0 means unset: monthly schedules keep the day they last ran on
	if s.DayOfMonth < 0 || s.DayOfMonth > 31 {
		return errors.New("schedule day of month must be between 1 and 31, or 0 when unused")
	}
	if s.Timezone != "" {
		if _, err := time.LoadLocation(s.Timezone); err != nil {
			return fmt.Errorf("invalid timezone: %w", err)
		}
	}
	return nil
}

// Location resolves the schedule timezone, defaulting to UTC
func (s *Schedule) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// TargetFilter selects monitored domains when no explicit target list is given
type TargetFilter struct {
	NameContains  string       `json:"name_contains,omitempty" bson:"name_contains,omitempty"`
	LastStatus    HealthStatus `json:"last_status,omitempty" bson:"last_status,omitempty"`
	CheckedBefore time.Time    `json:"checked_before,omitempty" bson:"checked_before,omitempty"`
}

// Empty reports whether the filter has no criteria set
func (f *TargetFilter) Empty() bool {
	return f == nil || (f.NameContains == "" && f.LastStatus == "" && f.CheckedBefore.IsZero())
}

// NotificationSettings controls run-level notification behavior
type NotificationSettings struct {
	OnCompletion bool            `json:"on_completion" bson:"on_completion"`
	Channels     []ChannelConfig `json:"channels,omitempty" bson:"channels,omitempty"`
}

// RunError records a per-domain or run-level failure as data
type RunError struct {
	Domain string `json:"domain,omitempty" bson:"domain,omitempty"`
	Error  string `json:"error" bson:"error"`
}

// RunSummary is the aggregate view over all per-domain results of one run
type RunSummary struct {
	HealthyCount          int               `json:"healthy_count" bson:"healthy_count"`
	WarningCount          int               `json:"warning_count" bson:"warning_count"`
	CriticalCount         int               `json:"critical_count" bson:"critical_count"`
	UnknownCount          int               `json:"unknown_count" bson:"unknown_count"`
	AverageResponseTimeMs int64             `json:"average_response_time_ms" bson:"average_response_time_ms"`
	IssueCounts           map[IssueType]int `json:"issue_counts,omitempty" bson:"issue_counts,omitempty"`
}

// RunResults is the running aggregate of one batch operation
type RunResults struct {
	TotalChecked int                  `json:"total_checked" bson:"total_checked"`
	SuccessCount int                  `json:"success_count" bson:"success_count"`
	FailureCount int                  `json:"failure_count" bson:"failure_count"`
	WarningCount int                  `json:"warning_count" bson:"warning_count"`
	HealthChecks []DomainHealthResult `json:"health_checks" bson:"health_checks"`
	Summary      RunSummary           `json:"summary" bson:"summary"`
}

// Operation is one fleet-wide batch health check run (or a recurring definition)
type Operation struct {
	ID            primitive.ObjectID   `json:"id" bson:"_id,omitempty"`
	Name          string               `json:"name,omitempty" bson:"name,omitempty"`
	Kind          OperationKind        `json:"kind" bson:"kind"`
	Status        OperationStatus      `json:"status" bson:"status"`
	Targets       []string             `json:"targets" bson:"targets"`
	Filter        *TargetFilter        `json:"filter,omitempty" bson:"filter,omitempty"`
	CheckTypes    CheckTypes           `json:"check_types" bson:"check_types"`
	Config        CheckConfig          `json:"configuration" bson:"configuration"`
	Schedule      *Schedule            `json:"schedule,omitempty" bson:"schedule,omitempty"`
	Results       RunResults           `json:"results" bson:"results"`
	Errors        []RunError           `json:"errors,omitempty" bson:"errors,omitempty"`
	Notifications NotificationSettings `json:"notifications" bson:"notifications"`
	Metadata      Metadata             `json:"metadata" bson:"metadata"`
	StartedAt     time.Time            `json:"started_at,omitempty" bson:"started_at,omitempty"`
	CompletedAt   time.Time            `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
	DurationMs    int64                `json:"duration_ms,omitempty" bson:"duration_ms,omitempty"`
}

// Metadata represents common metadata fields
type Metadata struct {
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
	CreatedBy string    `json:"created_by,omitempty" bson:"created_by,omitempty"`
	Tags      []string  `json:"tags,omitempty" bson:"tags,omitempty"`
}

// Validate validates the whole operation definition
func (op *Operation) Validate() error {
	switch op.Kind {
	case KindImmediate, KindScheduled, KindRecurring:
	default:
		return fmt.Errorf("invalid operation kind: %s", op.Kind)
	}

	if len(op.Targets) == 0 && op.Filter.Empty() {
		return errors.New("either targets or a target filter is required")
	}

	if !op.CheckTypes.Any() {
		return errors.New("at least one check type must be enabled")
	}

	if err := op.Config.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	if op.Kind == KindRecurring {
		if op.Schedule == nil {
			return errors.New("schedule is required for recurring operations")
		}
		if err := op.Schedule.Validate(); err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	if op.Metadata.CreatedAt.IsZero() {
		op.Metadata.CreatedAt = now
	}
	if op.Metadata.UpdatedAt.IsZero() {
		op.Metadata.UpdatedAt = now
	}

	return nil
}

// OperationSummary is a compact view of an operation for list responses
type OperationSummary struct {
	ID            string          `json:"id"`
	Name          string          `json:"name,omitempty"`
	Kind          OperationKind   `json:"kind"`
	Status        OperationStatus `json:"status"`
	TargetCount   int             `json:"target_count"`
	TotalChecked  int             `json:"total_checked"`
	CriticalCount int             `json:"critical_count"`
	CreatedAt     string          `json:"created_at"`
	CompletedAt   string          `json:"completed_at,omitempty"`
	DurationMs    int64           `json:"duration_ms,omitempty"`
}

// ToSummary converts an Operation to an OperationSummary
func (op *Operation) ToSummary() OperationSummary {
	var createdAt, completedAt string
	if !op.Metadata.CreatedAt.IsZero() {
		createdAt = op.Metadata.CreatedAt.Format(time.RFC3339)
	}
	if !op.CompletedAt.IsZero() {
		completedAt = op.CompletedAt.Format(time.RFC3339)
	}

	return OperationSummary{
		ID:            op.ID.Hex(),
		Name:          op.Name,
		Kind:          op.Kind,
		Status:        op.Status,
		TargetCount:   len(op.Targets),
		TotalChecked:  op.Results.TotalChecked,
		CriticalCount: op.Results.Summary.CriticalCount,
		CreatedAt:     createdAt,
		CompletedAt:   completedAt,
		DurationMs:    op.DurationMs,
	}
}
