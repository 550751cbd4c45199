package classify

import (
	"go.uber.org/zap"

	"github.com/sells-group/compliance-cli/internal/model"
)

// Classifier assigns a Role to every column of a dataset.
type Classifier struct {
	rules Rules
}

// New creates a Classifier over the given rule table.
func New(rules Rules) *Classifier {
	return &Classifier{rules: rules}
}

// Rules returns the classifier's rule table.
func (c *Classifier) Rules() Rules {
	return c.rules
}

// Classify returns a role per column. Numeric columns are always Numeric;
// keyword rules apply only to non-numeric columns. Row values are never read.
func (c *Classifier) Classify(ds *model.Dataset) model.RoleMap {
	roles := make(model.RoleMap, ds.Width())
	for _, col := range ds.Columns {
		roles[col.Name] = c.Role(col.Name, col.Kind)
	}
	return roles
}

// Role classifies a single column from its name and kind.
func (c *Classifier) Role(name string, kind model.ColumnKind) model.Role {
	if kind == model.KindNumeric {
		return model.Role{Numeric: true}
	}
	return model.Role{
		Protected: c.rules.IsProtected(name),
		Preserved: c.rules.IsPreserved(name),
		Signals:   c.rules.SignalsFor(name),
	}
}

// LogRoles writes one debug line per column.
func LogRoles(file string, ds *model.Dataset, roles model.RoleMap) {
	log := zap.L().With(zap.String("file", file))
	for _, col := range ds.Columns {
		r := roles[col.Name]
		sigs := make([]string, len(r.Signals))
		for i, s := range r.Signals {
			sigs[i] = string(s)
		}
		log.Debug("classify: column role",
			zap.String("column", col.Name),
			zap.String("role", string(r.Kind())),
			zap.Strings("signals", sigs),
			zap.Bool("preserved", r.Preserved),
		)
	}
}
