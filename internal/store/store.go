// Package store persists evaluation runs and their pillar phases.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/compliance-cli/internal/model"
)

// ErrNotFound is returned when a run or phase does not exist.
var ErrNotFound = eris.New("store: not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	File   string          `json:"file,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the evaluation pipeline.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, file string) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	FailRun(ctx context.Context, runID string, status model.RunStatus, reason string) error
	UpdateRunResult(ctx context.Context, runID string, result *model.ComplianceReport) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)
	CountRuns(ctx context.Context) (map[model.RunStatus]int, error)

	// Phases
	CreatePhase(ctx context.Context, runID string, name string) (*model.RunPhase, error)
	CompletePhase(ctx context.Context, phaseID string, result *model.PhaseResult) error
	ListPhases(ctx context.Context, runID string) ([]model.RunPhase, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

func notFound(entity, id string) error {
	return eris.Wrapf(ErrNotFound, "%s not found: %s", entity, id)
}

const defaultListLimit = 100
