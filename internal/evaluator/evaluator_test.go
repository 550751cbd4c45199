package evaluator

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/compliance-cli/internal/classify"
	"github.com/sells-group/compliance-cli/internal/model"
)

// loans builds a numeric dataset where approved = income > 50.
func loans(n int) *model.Dataset {
	age := make([]float64, n)
	income := make([]float64, n)
	approved := make([]float64, n)
	for i := range n {
		age[i] = float64(20 + i%40)
		income[i] = float64(10 + i*90/n)
		if income[i] > 50 {
			approved[i] = 1
		}
	}
	return &model.Dataset{Name: "loans", Columns: []model.Column{
		model.NewNumericColumn("age", age),
		model.NewNumericColumn("income", income),
		model.NewNumericColumn("approved", approved),
	}}
}

func inputFor(ds *model.Dataset) Input {
	return Input{Data: ds, Columns: ds.ColumnNames(), Options: DefaultOptions()}
}

func runAll(t *testing.T, in Input) map[model.Pillar]model.PillarResult {
	t.Helper()
	r := NewRunner(Defaults(classify.DefaultRules()), true)
	out := r.Run(context.Background(), in)
	require.Len(t, out, len(model.Pillars))
	return out
}

func TestRun_ScenarioA_AllNumeric(t *testing.T) {
	out := runAll(t, inputFor(loans(50)))

	assert.Equal(t, model.OutcomeDegenerate, out[model.PillarAccountability].Outcome)
	assert.Equal(t, model.OutcomeDegenerate, out[model.PillarFairness].Outcome)

	tr := out[model.PillarTransparency]
	require.Equal(t, model.OutcomeSuccess, tr.Outcome, tr.Cause)
	acc := tr.Metric(model.MetricModelAccuracy)
	require.True(t, acc.Valid)
	assert.GreaterOrEqual(t, acc.Float, 0.8)
	assert.Len(t, tr.Attributions, 2)

	rb := out[model.PillarRobustness]
	require.Equal(t, model.OutcomeSuccess, rb.Outcome, rb.Cause)
	assert.True(t, rb.Metric(model.MetricInitialAccuracy).Valid)
	assert.True(t, rb.Metric(model.MetricAdversarialAcc).Valid)
	assert.Equal(t, acc, rb.Metric(model.MetricInitialAccuracy))

	pv := out[model.PillarPrivacy]
	require.Equal(t, model.OutcomeSuccess, pv.Outcome, pv.Cause)
	pa := pv.Metric(model.MetricPrivacyAccuracy)
	assert.GreaterOrEqual(t, pa.Float, 0.0)
	assert.LessOrEqual(t, pa.Float, 1.0)
	assert.Equal(t, model.Float(1.0), pv.Metric(model.MetricEpsilon))
}

func TestRun_ScenarioB_AccountabilityFlags(t *testing.T) {
	n := 20
	col := func(name string) model.Column {
		v := make([]float64, n)
		for i := range v {
			v[i] = float64(i % 2)
		}
		return model.NewNumericColumn(name, v)
	}
	ds := &model.Dataset{Name: "b", Columns: []model.Column{
		col("x"), col("audit_log"), col("explanation"), col("timestamp"), col("y"),
	}}

	out := runAll(t, inputFor(ds))
	acc := out[model.PillarAccountability]

	assert.Equal(t, model.OutcomeSuccess, acc.Outcome)
	assert.Equal(t, map[string]bool{
		"auditability":   true,
		"explainability": true,
		"traceability":   true,
	}, acc.Flags)
}

func TestRun_ScenarioC_FairnessSelfComparison(t *testing.T) {
	ds := &model.Dataset{Name: "c", Columns: []model.Column{
		model.NewNumericColumn("Sex", []float64{0, 0, 1, 1, 0, 1}),
		model.NewNumericColumn("age", []float64{30, 40, 50, 60, 70, 80}),
		model.NewNumericColumn("approved", []float64{1, 0, 1, 0, 1, 1}),
	}}
	// Sex=0 approves 2/3, Sex=1 approves 2/3.

	res, err := NewFairness(classify.DefaultRules()).Evaluate(context.Background(), inputFor(ds))
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeSuccess, res.Outcome)
	assert.Equal(t, model.Float(0), res.Metric(model.MetricParityDifference))
	assert.Equal(t, model.Float(0), res.Metric(model.MetricMeanDifference))
}

func TestFairness_UnequalRates(t *testing.T) {
	ds := &model.Dataset{Columns: []model.Column{
		model.NewNumericColumn("approved", []float64{1, 0, 1, 1}),
		model.NewNumericColumn("gender", []float64{0, 0, 1, 1}),
	}}
	res, err := NewFairness(classify.DefaultRules()).Evaluate(context.Background(), inputFor(ds))
	require.NoError(t, err)
	assert.Equal(t, model.Float(0.5), res.Metric(model.MetricParityDifference))
}

func TestFairness_Degenerate(t *testing.T) {
	f := NewFairness(classify.DefaultRules())

	noProtected := &model.Dataset{Columns: []model.Column{
		model.NewNumericColumn("approved", []float64{1, 0, 1}),
	}}
	res, err := f.Evaluate(context.Background(), inputFor(noProtected))
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeDegenerate, res.Outcome)
	assert.Equal(t, "no protected attribute column", res.Reason)
	assert.False(t, res.Metric(model.MetricParityDifference).Valid)
	assert.Contains(t, res.Metrics, model.MetricMeanDifference)

	noTarget := &model.Dataset{Columns: []model.Column{
		model.NewNumericColumn("race", []float64{0, 1, 2}),
		model.NewNumericColumn("score", []float64{1, 2, 3}),
	}}
	res, err = f.Evaluate(context.Background(), inputFor(noTarget))
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeDegenerate, res.Outcome)
	assert.Equal(t, "no binary target column", res.Reason)

	res, err = f.Evaluate(context.Background(), inputFor(&model.Dataset{}))
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeDegenerate, res.Outcome)
}

func TestFairness_SkipsProtectedAsTarget(t *testing.T) {
	ds := &model.Dataset{Columns: []model.Column{
		model.NewNumericColumn("sex", []float64{0, 1, 0, 1}),
		model.NewNumericColumn("flag", []float64{1, 1, 0, 0}),
	}}
	res, err := NewFairness(classify.DefaultRules()).Evaluate(context.Background(), inputFor(ds))
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeSuccess, res.Outcome)
	assert.Equal(t, model.Float(0), res.Metric(model.MetricParityDifference))
}

func TestRun_ScenarioD_SingleColumn(t *testing.T) {
	ds := &model.Dataset{Name: "d", Columns: []model.Column{
		model.NewNumericColumn("approved", []float64{1, 0, 1, 0}),
	}}
	out := runAll(t, inputFor(ds))

	for _, p := range []model.Pillar{model.PillarTransparency, model.PillarRobustness, model.PillarPrivacy} {
		res := out[p]
		assert.Equal(t, model.OutcomeFailure, res.Outcome, string(p))
		assert.Contains(t, res.Cause, "at least two columns", string(p))
		assert.Equal(t, p, res.Pillar)
	}
	assert.NotEqual(t, model.OutcomeFailure, out[model.PillarFairness].Outcome)
	assert.NotEqual(t, model.OutcomeFailure, out[model.PillarAccountability].Outcome)
}

func TestRun_EmptyDataset(t *testing.T) {
	in := Input{Data: &model.Dataset{Name: "empty"}, Columns: []string{"name", "audit_trail"}, Options: DefaultOptions()}
	out := runAll(t, in)

	assert.True(t, out[model.PillarTransparency].Failed())
	assert.Equal(t, model.OutcomeDegenerate, out[model.PillarFairness].Outcome)
	acc := out[model.PillarAccountability]
	assert.Equal(t, model.OutcomeSuccess, acc.Outcome)
	assert.True(t, acc.Flag("auditability"))
}

func TestRun_ContinuousTargetFails(t *testing.T) {
	ds := &model.Dataset{Columns: []model.Column{
		model.NewNumericColumn("a", []float64{1, 2, 3, 4, 5}),
		model.NewNumericColumn("score", []float64{0.1, 0.5, 0.9, 0.3, 0.7}),
	}}
	out := runAll(t, inputFor(ds))
	assert.True(t, out[model.PillarTransparency].Failed())
	assert.True(t, out[model.PillarRobustness].Failed())
	assert.True(t, out[model.PillarPrivacy].Failed())
}

func TestRun_TargetOverride(t *testing.T) {
	ds := loans(50)
	in := inputFor(ds)
	in.Options.Target = "approved"
	out := runAll(t, in)
	assert.Equal(t, model.OutcomeSuccess, out[model.PillarTransparency].Outcome)

	in.Options.Target = "missing"
	out = runAll(t, in)
	assert.True(t, out[model.PillarTransparency].Failed())
	assert.Contains(t, out[model.PillarTransparency].Cause, `"missing"`)
}

func TestRun_Deterministic(t *testing.T) {
	in := inputFor(loans(60))
	a := runAll(t, in)
	b := runAll(t, in)
	assert.Equal(t, a, b)

	seq := NewRunner(Defaults(classify.DefaultRules()), false).Run(context.Background(), in)
	assert.Equal(t, a, seq)
}

func TestRun_DoesNotMutateInput(t *testing.T) {
	ds := loans(30)
	before := ds.Clone()
	_ = runAll(t, inputFor(ds))
	assert.Equal(t, before, ds)
}

type stubEvaluator struct {
	pillar model.Pillar
	fn     func() (model.PillarResult, error)
}

func (s *stubEvaluator) Pillar() model.Pillar { return s.pillar }

func (s *stubEvaluator) Evaluate(context.Context, Input) (model.PillarResult, error) {
	return s.fn()
}

func TestRun_FailureContainment(t *testing.T) {
	evals := []Evaluator{
		&stubEvaluator{pillar: model.PillarFairness, fn: func() (model.PillarResult, error) {
			panic("boom")
		}},
		&stubEvaluator{pillar: model.PillarTransparency, fn: func() (model.PillarResult, error) {
			return model.PillarResult{}, errors.New("fit failed")
		}},
		&stubEvaluator{pillar: model.PillarPrivacy, fn: func() (model.PillarResult, error) {
			return model.Success(model.PillarPrivacy, map[string]model.NullFloat{
				model.MetricPrivacyAccuracy: model.Float(0.9),
			}), nil
		}},
	}

	var calls atomic.Int32
	r := NewRunner(evals, true)
	r.OnResult(func(model.PillarResult, time.Duration) { calls.Add(1) })
	out := r.Run(context.Background(), inputFor(loans(10)))

	require.Len(t, out, 3)
	assert.Equal(t, int32(3), calls.Load())
	assert.True(t, out[model.PillarFairness].Failed())
	assert.Contains(t, out[model.PillarFairness].Cause, "boom")
	assert.True(t, out[model.PillarTransparency].Failed())
	assert.Contains(t, out[model.PillarTransparency].Cause, "fit failed")
	assert.Equal(t, model.Float(0.9), out[model.PillarPrivacy].Metric(model.MetricPrivacyAccuracy))
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := NewRunner(Defaults(classify.DefaultRules()), true).Run(ctx, inputFor(loans(10)))
	for _, p := range model.Pillars {
		assert.True(t, out[p].Failed(), string(p))
	}
}

func TestPrepare(t *testing.T) {
	sv, err := prepare(inputFor(loans(10)))
	require.NoError(t, err)
	assert.Equal(t, []string{"age", "income"}, sv.features)
	assert.Len(t, sv.XTest, 2)
	assert.Len(t, sv.XTrain, 8)

	_, err = prepare(inputFor(&model.Dataset{}))
	assert.True(t, eris.Is(err, ErrTooFewColumns))

	text := &model.Dataset{Columns: []model.Column{
		model.NewTextColumn("a", []string{"x"}, nil),
		model.NewNumericColumn("b", []float64{1}),
	}}
	_, err = prepare(inputFor(text))
	assert.Error(t, err)
}
