// Package pipeline drives datasets through classification, preprocessing,
// pillar evaluation, aggregation and reporting.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/compliance-cli/internal/classify"
	"github.com/sells-group/compliance-cli/internal/config"
	"github.com/sells-group/compliance-cli/internal/dataset"
	"github.com/sells-group/compliance-cli/internal/evaluator"
	"github.com/sells-group/compliance-cli/internal/model"
	"github.com/sells-group/compliance-cli/internal/monitoring"
	"github.com/sells-group/compliance-cli/internal/preprocess"
	"github.com/sells-group/compliance-cli/internal/report"
	"github.com/sells-group/compliance-cli/internal/scoring"
	"github.com/sells-group/compliance-cli/internal/store"
)

// Pipeline evaluates datasets end to end. The store and metrics are optional.
type Pipeline struct {
	cfg        *config.Config
	store      store.Store
	metrics    *monitoring.Metrics
	classifier *classify.Classifier
	evaluators []evaluator.Evaluator
	builder    *report.Builder
	writer     *report.Writer
	opts       evaluator.Options
}

// New creates a Pipeline with the default rule table and evaluators.
func New(cfg *config.Config, st store.Store, metrics *monitoring.Metrics) *Pipeline {
	rules := classify.DefaultRules()
	return &Pipeline{
		cfg:        cfg,
		store:      st,
		metrics:    metrics,
		classifier: classify.New(rules),
		evaluators: evaluator.Defaults(rules),
		builder:    report.NewBuilder(cfg.Scoring.Thresholds),
		writer:     report.NewWriter(cfg.Output.Dir, cfg.Output.ReportFormat),
		opts:       Options(cfg.Scoring),
	}
}

// WithEvaluators replaces the evaluator set.
func (p *Pipeline) WithEvaluators(evals ...evaluator.Evaluator) *Pipeline {
	p.evaluators = evals
	return p
}

// Options converts scoring configuration into evaluator run options.
func Options(cfg config.ScoringConfig) evaluator.Options {
	opts := evaluator.DefaultOptions()
	opts.Seed = cfg.Seed
	opts.Target = cfg.TargetColumn
	if cfg.TestRatio > 0 {
		opts.TestRatio = cfg.TestRatio
	}
	if cfg.MaxIter > 0 {
		opts.MaxIter = cfg.MaxIter
	}
	if cfg.LearningRate > 0 {
		opts.LearningRate = cfg.LearningRate
	}
	if cfg.Epsilon > 0 {
		opts.Epsilon = cfg.Epsilon
	}
	if cfg.AdversarialEps > 0 {
		opts.AdversarialEps = cfg.AdversarialEps
	}
	return opts
}

// Outcome describes how one dataset went through the pipeline. Report is
// nil when the dataset failed to load or preprocess.
type Outcome struct {
	File      string                  `json:"file"`
	RunID     string                  `json:"run_id,omitempty"`
	Status    model.RunStatus         `json:"status"`
	Report    *model.ComplianceReport `json:"report,omitempty"`
	Artifacts []string                `json:"artifacts,omitempty"`
	Err       error                   `json:"-"`
}

// Run evaluates the dataset at path and writes its artifacts. The returned
// Outcome is never nil. A non-nil error means the dataset produced no report
// or its artifacts could not be written.
func (p *Pipeline) Run(ctx context.Context, path string) (*Outcome, error) {
	return p.run(ctx, path, p.writer.Reserve(path))
}

// run evaluates the dataset at path, naming its artifacts after name.
func (p *Pipeline) run(ctx context.Context, path, name string) (*Outcome, error) {
	file := filepath.Base(path)
	log := zap.L().With(zap.String("file", file))
	log.Info("pipeline: starting evaluation")

	t := p.newTracker(ctx, file, log)
	out := &Outcome{File: file, RunID: t.runID, Status: model.RunStatusQueued}

	var ds *model.Dataset
	err := t.phase("load", func() (*model.PhaseResult, error) {
		var loadErr error
		ds, loadErr = dataset.Load(ctx, path)
		if loadErr != nil {
			return nil, loadErr
		}
		return &model.PhaseResult{Metadata: map[string]any{
			"rows":    ds.Rows(),
			"columns": ds.Width(),
		}}, nil
	})
	if err != nil {
		return p.fail(t, out, model.RunStatusLoadFailed, eris.Wrapf(err, "pipeline: load %s", file))
	}
	t.setStatus(model.RunStatusLoaded)
	out.Status = model.RunStatusLoaded

	return p.evaluate(ctx, t, out, ds, name)
}

// Evaluate runs an already loaded dataset through the pipeline.
func (p *Pipeline) Evaluate(ctx context.Context, ds *model.Dataset) (*Outcome, error) {
	log := zap.L().With(zap.String("file", ds.Name))
	t := p.newTracker(ctx, ds.Name, log)
	t.setStatus(model.RunStatusLoaded)
	out := &Outcome{File: ds.Name, RunID: t.runID, Status: model.RunStatusLoaded}
	return p.evaluate(ctx, t, out, ds, p.writer.Reserve(ds.Name))
}

func (p *Pipeline) evaluate(ctx context.Context, t *tracker, out *Outcome, ds *model.Dataset, name string) (*Outcome, error) {
	var pre *preprocess.Result
	err := t.phase("preprocess", func() (*model.PhaseResult, error) {
		var preErr error
		pre, preErr = p.preprocess(ds)
		if preErr != nil {
			return nil, preErr
		}
		return &model.PhaseResult{Metadata: map[string]any{
			"kept":    len(pre.Kept),
			"dropped": len(pre.Dropped),
		}}, nil
	})
	if err != nil {
		return p.fail(t, out, model.RunStatusPreprocessFailed, eris.Wrapf(err, "pipeline: preprocess %s", out.File))
	}
	t.setStatus(model.RunStatusPreprocessed)
	out.Status = model.RunStatusPreprocessed

	if p.cfg.Output.WriteProcessed {
		path, writeErr := p.writeProcessed(name, pre.Data)
		if writeErr != nil {
			t.log.Warn("pipeline: failed to write processed dataset", zap.Error(writeErr))
		} else {
			out.Artifacts = append(out.Artifacts, path)
		}
	}

	t.setStatus(model.RunStatusEvaluating)
	out.Status = model.RunStatusEvaluating

	runner := evaluator.NewRunner(p.evaluators, p.cfg.Batch.ConcurrentPillars)
	runner.OnResult(func(res model.PillarResult, elapsed time.Duration) {
		p.metrics.Pillar(res, elapsed)
		t.pillar(res, elapsed)
	})
	results := runner.Run(ctx, evaluator.Input{
		Data:    pre.Data,
		Columns: ds.ColumnNames(),
		Options: p.opts,
	})

	score := scoring.Aggregate(results)
	t.setStatus(model.RunStatusAggregated)
	out.Status = model.RunStatusAggregated

	rep := p.builder.Build(out.File, ds.ColumnNames(), pre.Kept, results, score)
	out.Report = rep

	err = t.phase("report", func() (*model.PhaseResult, error) {
		paths, writeErr := p.writeReport(name, rep)
		out.Artifacts = append(out.Artifacts, paths...)
		if writeErr != nil {
			return nil, writeErr
		}
		return &model.PhaseResult{Metadata: map[string]any{"artifacts": len(paths)}}, nil
	})
	if err != nil {
		return out, eris.Wrapf(err, "pipeline: write report %s", out.File)
	}

	if t.runID != "" {
		if storeErr := p.store.UpdateRunResult(ctx, t.runID, rep); storeErr != nil {
			t.log.Warn("pipeline: failed to save result", zap.Error(storeErr))
		}
	}
	out.Status = model.RunStatusReported
	p.metrics.Dataset(model.RunStatusReported)
	p.metrics.Composite(score.Composite)

	t.log.Info("pipeline: evaluation complete",
		zap.String("composite", score.Composite.String()),
		zap.Int("pillars_scored", len(score.Present())),
	)
	return out, nil
}

// preprocess classifies and encodes ds, converting a panic into an error.
func (p *Pipeline) preprocess(ds *model.Dataset) (res *preprocess.Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = eris.Errorf("pipeline: preprocess panicked: %v", rec)
		}
	}()
	roles := p.classifier.Classify(ds)
	classify.LogRoles(ds.Name, ds, roles)
	return preprocess.Run(ds, roles), nil
}

func (p *Pipeline) writeProcessed(name string, ds *model.Dataset) (string, error) {
	path, err := p.writer.ProcessedPath(name)
	if err != nil {
		return "", err
	}
	if err := dataset.WriteCSV(ds, path); err != nil {
		return "", eris.Wrap(err, "pipeline: write processed dataset")
	}
	return path, nil
}

func (p *Pipeline) writeReport(name string, rep *model.ComplianceReport) ([]string, error) {
	var paths []string
	path, err := p.writer.WriteReport(name, rep)
	if err != nil {
		return paths, err
	}
	paths = append(paths, path)

	path, err = p.writer.WriteNarrative(name, rep)
	if err != nil {
		return paths, err
	}
	return append(paths, path), nil
}

func (p *Pipeline) fail(t *tracker, out *Outcome, status model.RunStatus, err error) (*Outcome, error) {
	out.Status = status
	out.Err = err
	t.log.Error("pipeline: dataset not evaluated", zap.String("status", string(status)), zap.Error(err))
	if t.runID != "" {
		if storeErr := p.store.FailRun(context.WithoutCancel(t.ctx), t.runID, status, err.Error()); storeErr != nil {
			t.log.Warn("pipeline: failed to record failure", zap.Error(storeErr))
		}
	}
	p.metrics.Dataset(status)
	return out, err
}

// tracker records run and phase state in the store. With no store it only logs.
type tracker struct {
	ctx   context.Context
	store store.Store
	runID string
	log   *zap.Logger
	mu    sync.Mutex
}

func (p *Pipeline) newTracker(ctx context.Context, file string, log *zap.Logger) *tracker {
	t := &tracker{ctx: ctx, store: p.store, log: log}
	if p.store == nil {
		return t
	}
	run, err := p.store.CreateRun(ctx, file)
	if err != nil {
		log.Warn("pipeline: failed to create run", zap.Error(err))
		return t
	}
	t.runID = run.ID
	t.log = log.With(zap.String("run_id", run.ID))
	return t
}

func (t *tracker) setStatus(status model.RunStatus) {
	if t.runID == "" {
		return
	}
	if err := t.store.UpdateRunStatus(t.ctx, t.runID, status); err != nil {
		t.log.Warn("pipeline: failed to update status", zap.Error(err))
	}
}

// phase runs fn and records it as a named phase of the run.
func (t *tracker) phase(name string, fn func() (*model.PhaseResult, error)) error {
	var phase *model.RunPhase
	if t.runID != "" {
		var err error
		phase, err = t.store.CreatePhase(t.ctx, t.runID, name)
		if err != nil {
			t.log.Warn("pipeline: failed to create phase", zap.String("phase", name), zap.Error(err))
		}
	}

	start := time.Now()
	result, fnErr := fn()
	duration := time.Since(start).Milliseconds()

	if result == nil {
		result = &model.PhaseResult{}
	}
	result.Name = name
	result.Duration = duration

	if fnErr != nil {
		result.Status = model.PhaseStatusFailed
		result.Error = fnErr.Error()
	} else {
		result.Status = model.PhaseStatusComplete
		t.log.Debug("pipeline: phase complete",
			zap.String("phase", name),
			zap.Int64("duration_ms", duration),
		)
	}

	t.complete(phase, result)
	return fnErr
}

// pillar records a finished pillar evaluation. It may be called concurrently.
func (t *tracker) pillar(res model.PillarResult, elapsed time.Duration) {
	if t.runID == "" {
		return
	}
	name := fmt.Sprintf("evaluate.%s", res.Pillar)

	t.mu.Lock()
	defer t.mu.Unlock()

	phase, err := t.store.CreatePhase(t.ctx, t.runID, name)
	if err != nil {
		t.log.Warn("pipeline: failed to create phase", zap.String("phase", name), zap.Error(err))
		return
	}

	result := &model.PhaseResult{
		Name:     name,
		Duration: elapsed.Milliseconds(),
		Metadata: map[string]any{"outcome": string(res.Outcome)},
	}
	switch res.Outcome {
	case model.OutcomeFailure:
		result.Status = model.PhaseStatusFailed
		result.Error = res.Cause
	case model.OutcomeDegenerate:
		result.Status = model.PhaseStatusSkipped
		result.Metadata["reason"] = res.Reason
	default:
		result.Status = model.PhaseStatusComplete
	}
	t.complete(phase, result)
}

func (t *tracker) complete(phase *model.RunPhase, result *model.PhaseResult) {
	if phase == nil {
		return
	}
	if err := t.store.CompletePhase(t.ctx, phase.ID, result); err != nil {
		t.log.Warn("pipeline: failed to complete phase", zap.String("phase", result.Name), zap.Error(err))
	}
}
