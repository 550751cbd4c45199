package model

import (
	"time"
)

// RunStatus represents the current state of a dataset evaluation run.
type RunStatus string

const (
	RunStatusQueued           RunStatus = "queued"
	RunStatusLoaded           RunStatus = "loaded"
	RunStatusPreprocessed     RunStatus = "preprocessed"
	RunStatusEvaluating       RunStatus = "evaluating"
	RunStatusAggregated       RunStatus = "aggregated"
	RunStatusReported         RunStatus = "reported"
	RunStatusLoadFailed       RunStatus = "load_failed"
	RunStatusPreprocessFailed RunStatus = "preprocess_failed"
)

// Terminal reports whether no further transitions follow this status.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusReported, RunStatusLoadFailed, RunStatusPreprocessFailed:
		return true
	}
	return false
}

// Failed reports whether the run ended in a dataset-level failure.
func (s RunStatus) Failed() bool {
	return s == RunStatusLoadFailed || s == RunStatusPreprocessFailed
}

// Run represents a single evaluation run for one dataset file.
type Run struct {
	ID        string            `json:"id"`
	File      string            `json:"file"`
	Status    RunStatus         `json:"status"`
	Result    *ComplianceReport `json:"result,omitempty"`
	Error     string            `json:"error,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// RunPhase represents one pillar evaluation within a run.
type RunPhase struct {
	ID        string       `json:"id"`
	RunID     string       `json:"run_id"`
	Name      string       `json:"name"`
	Status    PhaseStatus  `json:"status"`
	Result    *PhaseResult `json:"result,omitempty"`
	StartedAt time.Time    `json:"started_at"`
}

// PhaseStatus represents the current state of a pipeline phase.
type PhaseStatus string

const (
	PhaseStatusRunning  PhaseStatus = "running"
	PhaseStatusComplete PhaseStatus = "complete"
	PhaseStatusFailed   PhaseStatus = "failed"
	PhaseStatusSkipped  PhaseStatus = "skipped"
)

// PhaseResult holds the outcome of a pipeline phase.
type PhaseResult struct {
	Name     string         `json:"name"`
	Status   PhaseStatus    `json:"status"`
	Duration int64          `json:"duration_ms"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}
