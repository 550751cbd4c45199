// Package evaluator scores a preprocessed dataset against the five
// governance pillars. Every evaluator is independent: an error or panic in
// one becomes a Failure result for that pillar only.
package evaluator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/compliance-cli/internal/classify"
	"github.com/sells-group/compliance-cli/internal/model"
)

// ErrTooFewColumns is returned by model-based evaluators when the dataset
// cannot be split into features and a target.
var ErrTooFewColumns = eris.New("evaluator: at least two columns required")

// Options are the immutable per-run parameters shared by all evaluators.
type Options struct {
	Seed           uint64
	TestRatio      float64
	Target         string // empty selects the last column
	MaxIter        int
	LearningRate   float64
	Epsilon        float64
	AdversarialEps float64
}

// DefaultOptions returns the standard run parameters.
func DefaultOptions() Options {
	return Options{
		Seed:           42,
		TestRatio:      0.2,
		MaxIter:        1000,
		LearningRate:   0.1,
		Epsilon:        1.0,
		AdversarialEps: 0.2,
	}
}

// Input is what every evaluator receives. Data must not be modified.
type Input struct {
	Data    *model.Dataset
	Columns []string // column names before preprocessing
	Options Options
}

// Evaluator computes one pillar's raw result.
type Evaluator interface {
	Pillar() model.Pillar
	Evaluate(ctx context.Context, in Input) (model.PillarResult, error)
}

// Defaults returns one evaluator per pillar in reporting order.
func Defaults(rules classify.Rules) []Evaluator {
	return []Evaluator{
		NewFairness(rules),
		NewTransparency(),
		NewRobustness(),
		NewPrivacy(),
		NewAccountability(rules),
	}
}

// ResultFunc observes each finished pillar. It may be called concurrently.
type ResultFunc func(res model.PillarResult, elapsed time.Duration)

// Runner evaluates a dataset with a fixed set of evaluators.
type Runner struct {
	evaluators []Evaluator
	concurrent bool
	onResult   ResultFunc
}

// NewRunner creates a Runner. When concurrent is false pillars run in order.
func NewRunner(evaluators []Evaluator, concurrent bool) *Runner {
	return &Runner{evaluators: evaluators, concurrent: concurrent}
}

// OnResult registers an observer for finished pillars.
func (r *Runner) OnResult(fn ResultFunc) {
	r.onResult = fn
}

// Run evaluates every pillar and always returns one result per evaluator.
func (r *Runner) Run(ctx context.Context, in Input) map[model.Pillar]model.PillarResult {
	var mu sync.Mutex
	results := make(map[model.Pillar]model.PillarResult, len(r.evaluators))

	record := func(e Evaluator) {
		start := time.Now()
		res := safeEvaluate(ctx, e, in)
		elapsed := time.Since(start)
		logResult(in, res)

		mu.Lock()
		results[e.Pillar()] = res
		mu.Unlock()

		if r.onResult != nil {
			r.onResult(res, elapsed)
		}
	}

	if !r.concurrent {
		for _, e := range r.evaluators {
			record(e)
		}
		return results
	}

	var g errgroup.Group
	for _, e := range r.evaluators {
		g.Go(func() error {
			record(e)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// safeEvaluate converts errors and panics into a Failure result.
func safeEvaluate(ctx context.Context, e Evaluator, in Input) (res model.PillarResult) {
	p := e.Pillar()
	defer func() {
		if rec := recover(); rec != nil {
			res = model.Failure(p, eris.Errorf("evaluator: %s panicked: %v", p, rec))
		}
	}()

	if err := ctx.Err(); err != nil {
		return model.Failure(p, eris.Wrapf(err, "evaluator: %s", p))
	}
	out, err := e.Evaluate(ctx, in)
	if err != nil {
		return model.Failure(p, eris.Wrapf(err, "evaluator: %s", p))
	}
	out.Pillar = p
	return out
}

func logResult(in Input, res model.PillarResult) {
	name := ""
	if in.Data != nil {
		name = in.Data.Name
	}
	switch res.Outcome {
	case model.OutcomeFailure:
		zap.L().Warn("evaluator: pillar failed",
			zap.String("dataset", name),
			zap.String("pillar", string(res.Pillar)),
			zap.String("cause", res.Cause),
		)
	case model.OutcomeDegenerate:
		zap.L().Info("evaluator: pillar not measurable",
			zap.String("dataset", name),
			zap.String("pillar", string(res.Pillar)),
			zap.String("reason", res.Reason),
		)
	default:
		zap.L().Debug("evaluator: pillar complete",
			zap.String("dataset", name),
			zap.String("pillar", string(res.Pillar)),
			zap.String("metrics", fmt.Sprint(res.Metrics)),
		)
	}
}
