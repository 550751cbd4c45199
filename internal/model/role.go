package model

// SignalKind is an accountability signal category detected from a column name.
type SignalKind string

const (
	SignalAuditability   SignalKind = "auditability"
	SignalExplainability SignalKind = "explainability"
	SignalTraceability   SignalKind = "traceability"
)

// SignalKinds lists accountability signals in reporting order.
var SignalKinds = []SignalKind{SignalAuditability, SignalExplainability, SignalTraceability}

// RoleKind is the primary label of a column role, used for logging and display.
type RoleKind string

const (
	RoleNumeric              RoleKind = "numeric"
	RoleProtectedAttribute   RoleKind = "protected_attribute"
	RoleAccountabilitySignal RoleKind = "accountability_signal"
	RoleExplicitlyPreserved  RoleKind = "explicitly_preserved"
	RoleIrrelevant           RoleKind = "irrelevant"
)

// Role is the classification of one column. Numeric excludes every other
// flag; Protected, Preserved and Signals are independent of each other.
type Role struct {
	Numeric   bool         `json:"numeric"`
	Protected bool         `json:"protected"`
	Preserved bool         `json:"preserved"`
	Signals   []SignalKind `json:"signals,omitempty"`
}

// HasSignal reports whether the role carries the given accountability signal.
func (r Role) HasSignal(k SignalKind) bool {
	for _, s := range r.Signals {
		if s == k {
			return true
		}
	}
	return false
}

// Irrelevant reports whether no rule fired for the column.
func (r Role) Irrelevant() bool {
	return !r.Numeric && !r.Protected && !r.Preserved && len(r.Signals) == 0
}

// Keep reports whether the column survives preprocessing.
func (r Role) Keep() bool {
	return r.Numeric || r.Preserved || len(r.Signals) > 0
}

// Kind returns the primary label for the role.
func (r Role) Kind() RoleKind {
	switch {
	case r.Numeric:
		return RoleNumeric
	case r.Protected:
		return RoleProtectedAttribute
	case len(r.Signals) > 0:
		return RoleAccountabilitySignal
	case r.Preserved:
		return RoleExplicitlyPreserved
	default:
		return RoleIrrelevant
	}
}

// RoleMap maps column names to their roles.
type RoleMap map[string]Role
