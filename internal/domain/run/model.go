package run

import (
	"time"

	"github.com/google/uuid"
)

// Trigger identifies what started a run
type Trigger string

const (
	TriggerSchedule Trigger = "schedule"
	TriggerManual   Trigger = "manual"
	TriggerStartup  Trigger = "startup"
)

// Status represents the status of a run or of one of its stages
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	// StatusPartial means the run finished but at least one stage failed
	StatusPartial   Status = "partial"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
	StatusCancelled Status = "cancelled"
)

// Stage names that are not per resource type
const (
	StageRates   = "rates"
	StagePricing = "pricing"
	StageHistory = "history"
)

// ResourceStage returns the stage name for a resource type
func ResourceStage(resourceType string) string {
	return "resources:" + resourceType
}

// Report describes one pipeline execution
type Report struct {
	ID           uuid.UUID     `json:"id"`
	Trigger      Trigger       `json:"trigger"`
	Status       Status        `json:"status"`
	RunTimestamp time.Time     `json:"run_timestamp"`
	StartedAt    time.Time     `json:"started_at"`
	CompletedAt  *time.Time    `json:"completed_at,omitempty"`
	Stages       []StageResult `json:"stages"`
}

// StageResult is the outcome of one stage
type StageResult struct {
	Stage      string `json:"stage"`
	Status     Status `json:"status"`
	Rows       int    `json:"rows"`
	Attempts   int    `json:"attempts,omitempty"`
	ErrorCode  string `json:"error_code,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// Stage returns the result recorded for name
func (r *Report) Stage(name string) (StageResult, bool) {
	for _, s := range r.Stages {
		if s.Stage == name {
			return s, true
		}
	}
	return StageResult{}, false
}

// Failed reports whether any stage failed
func (r *Report) Failed() bool {
	for _, s := range r.Stages {
		if s.Status == StatusFailed {
			return true
		}
	}
	return false
}

// Filter contains run listing options
type Filter struct {
	Status Status
	Limit  int
	Offset int
}
