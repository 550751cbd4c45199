package evaluator

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/compliance-cli/internal/ml"
	"github.com/sells-group/compliance-cli/internal/model"
)

// supervised is a seeded train/test partition of features and target.
type supervised struct {
	features []string
	XTrain   [][]float64
	YTrain   []float64
	XTest    [][]float64
	YTest    []float64
}

// targetIndex resolves the target column: the named column if set, else the last.
func targetIndex(ds *model.Dataset, name string) (int, error) {
	if name == "" {
		return ds.Width() - 1, nil
	}
	idx := ds.Index(name)
	if idx < 0 {
		return 0, eris.Errorf("evaluator: target column %q not found", name)
	}
	return idx, nil
}

// prepare splits the dataset into features and the target and partitions rows.
func prepare(in Input) (*supervised, error) {
	ds := in.Data
	if ds.Width() < 2 {
		return nil, eris.Wrapf(ErrTooFewColumns, "evaluator: dataset has %d", ds.Width())
	}
	if !ds.NumericOnly() {
		return nil, eris.New("evaluator: dataset has non-numeric columns")
	}
	ti, err := targetIndex(ds, in.Options.Target)
	if err != nil {
		return nil, err
	}

	var cols []int
	var names []string
	for i, c := range ds.Columns {
		if i == ti {
			continue
		}
		cols = append(cols, i)
		names = append(names, c.Name)
	}

	split, err := ml.TrainTestSplit(ds.Rows(), in.Options.TestRatio, in.Options.Seed)
	if err != nil {
		return nil, err
	}

	X := ds.Matrix(cols)
	y := ds.Vector(ti)
	return &supervised{
		features: names,
		XTrain:   ml.Rows(X, split.Train),
		YTrain:   ml.Values(y, split.Train),
		XTest:    ml.Rows(X, split.Test),
		YTest:    ml.Values(y, split.Test),
	}, nil
}

func (o Options) fitOptions() ml.Options {
	opts := ml.DefaultOptions()
	if o.MaxIter > 0 {
		opts.MaxIter = o.MaxIter
	}
	if o.LearningRate > 0 {
		opts.LearningRate = o.LearningRate
	}
	return opts
}

