package pipeline

import (
	"context"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/compliance-cli/internal/model"
)

// BatchResult is the outcome of RunBatch.
type BatchResult struct {
	Summary   *model.RunSummary `json:"summary"`
	Outcomes  []*Outcome        `json:"outcomes"`
	Artifacts []string          `json:"artifacts"`
}

// RunBatch evaluates every path, at most batch.max_concurrent_datasets at a
// time. A failing dataset never stops the batch; it gets an all-NA summary
// row. Summary artifacts are written once, after every dataset finished, with
// rows in input order.
func (p *Pipeline) RunBatch(ctx context.Context, paths []string) (*BatchResult, error) {
	concurrency := p.cfg.Batch.MaxConcurrentDatasets
	if concurrency <= 0 {
		concurrency = 1
	}
	zap.L().Info("pipeline: processing batch",
		zap.Int("datasets", len(paths)),
		zap.Int("concurrency", concurrency),
	)

	// Reserve in input order so artifact names do not depend on scheduling.
	names := make([]string, len(paths))
	for i, path := range paths {
		names[i] = p.writer.Reserve(path)
	}

	outcomes := make([]*Outcome, len(paths))
	var succeeded, failed atomic.Int64

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, path := range paths {
		g.Go(func() error {
			out, err := p.run(ctx, path, names[i])
			outcomes[i] = out
			if err != nil {
				failed.Add(1)
				if out.Err == nil {
					out.Err = err
				}
				return nil
			}
			succeeded.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	res := &BatchResult{Summary: Summarize(outcomes), Outcomes: outcomes}

	zap.L().Info("pipeline: batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)

	if err := ctx.Err(); err != nil {
		return res, eris.Wrap(err, "pipeline: batch cancelled")
	}

	artifacts, err := p.writeSummary(res.Summary)
	res.Artifacts = artifacts
	if err != nil {
		return res, err
	}
	return res, nil
}

// Summarize builds the run summary from outcomes, keeping their order.
// An outcome with a report contributes it even if writing artifacts failed.
func Summarize(outcomes []*Outcome) *model.RunSummary {
	s := &model.RunSummary{}
	for _, out := range outcomes {
		if out == nil {
			continue
		}
		if out.Report != nil {
			s.Reports = append(s.Reports, out.Report)
			s.Rows = append(s.Rows, model.RowFromReport(out.Report))
			continue
		}
		s.Rows = append(s.Rows, model.RowFromFailure(out.File, out.Err))
	}
	return s
}

func (p *Pipeline) writeSummary(s *model.RunSummary) ([]string, error) {
	var paths []string

	path, err := p.writer.WriteSummaryCSV(s.Rows)
	if err != nil {
		return paths, eris.Wrap(err, "pipeline: write summary")
	}
	paths = append(paths, path)

	if p.cfg.Output.SummaryXLSX {
		path, err = p.writer.WriteSummaryXLSX(s.Rows)
		if err != nil {
			return paths, eris.Wrap(err, "pipeline: write summary workbook")
		}
		paths = append(paths, path)
	}

	path, err = p.writer.WriteRunNarrative(s)
	if err != nil {
		return paths, eris.Wrap(err, "pipeline: write run conclusion")
	}
	return append(paths, path), nil
}
