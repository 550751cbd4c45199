// Package preprocess turns a classified dataset into an all-numeric,
// missing-free dataset ready for model fitting.
package preprocess

import (
	"go.uber.org/zap"

	"github.com/sells-group/compliance-cli/internal/model"
)

// MissingLabel replaces missing values in kept text columns before encoding.
const MissingLabel = "Missing"

// Result is the output of Run.
type Result struct {
	Data     *model.Dataset
	Encoders map[string]*Encoder
	Kept     []string
	Dropped  []string
}

// Empty reports whether no column survived.
func (r *Result) Empty() bool {
	return r.Data.Width() == 0
}

// Run builds a new dataset from ds using roles. Numeric columns pass through
// with missing values set to 0. Kept text columns have missing values
// replaced with MissingLabel and are label encoded. All other columns are
// dropped. The input dataset is not modified.
func Run(ds *model.Dataset, roles model.RoleMap) *Result {
	res := &Result{
		Data:     &model.Dataset{Name: ds.Name},
		Encoders: make(map[string]*Encoder),
	}

	for _, col := range ds.Columns {
		role := roles[col.Name]
		if col.IsNumeric() {
			res.Data.Columns = append(res.Data.Columns, fillNumeric(col))
			res.Kept = append(res.Kept, col.Name)
			continue
		}
		if !role.Keep() {
			res.Dropped = append(res.Dropped, col.Name)
			continue
		}

		texts := make([]string, col.Len())
		for i, v := range col.Texts {
			if col.Missing != nil && col.Missing[i] {
				v = MissingLabel
			}
			texts[i] = v
		}
		enc := NewEncoder()
		res.Encoders[col.Name] = enc
		res.Data.Columns = append(res.Data.Columns, model.NewNumericColumn(col.Name, enc.Fit(texts)))
		res.Kept = append(res.Kept, col.Name)
	}

	if res.Empty() {
		zap.L().Info("preprocess: no columns survived",
			zap.String("dataset", ds.Name),
			zap.Int("dropped", len(res.Dropped)),
		)
	}
	return res
}

func fillNumeric(col model.Column) model.Column {
	out := model.Column{
		Name:    col.Name,
		Kind:    model.KindNumeric,
		Nums:    make([]float64, len(col.Nums)),
		Missing: make([]bool, len(col.Nums)),
	}
	for i, v := range col.Nums {
		if col.Missing != nil && col.Missing[i] {
			v = 0
		}
		out.Nums[i] = v
	}
	return out
}
