package model

import (
	"math"
)

// ColumnKind is the semantic kind of a column's values.
type ColumnKind string

const (
	KindNumeric ColumnKind = "numeric"
	KindText    ColumnKind = "text"
)

// Column is a named sequence of values of a single kind. Nums is populated
// for numeric columns and Texts for text columns; Missing marks absent
// values in either case.
type Column struct {
	Name    string     `json:"name"`
	Kind    ColumnKind `json:"kind"`
	Nums    []float64  `json:"nums,omitempty"`
	Texts   []string   `json:"texts,omitempty"`
	Missing []bool     `json:"missing,omitempty"`
}

// NewNumericColumn builds a numeric column. NaN values are marked missing.
func NewNumericColumn(name string, values []float64) Column {
	c := Column{Name: name, Kind: KindNumeric, Nums: values, Missing: make([]bool, len(values))}
	for i, v := range values {
		if math.IsNaN(v) {
			c.Missing[i] = true
		}
	}
	return c
}

// NewTextColumn builds a text column with the given missing markers.
// A nil missing slice means no values are missing.
func NewTextColumn(name string, values []string, missing []bool) Column {
	if missing == nil {
		missing = make([]bool, len(values))
	}
	return Column{Name: name, Kind: KindText, Texts: values, Missing: missing}
}

// Len returns the number of rows in the column.
func (c Column) Len() int {
	if c.Kind == KindNumeric {
		return len(c.Nums)
	}
	return len(c.Texts)
}

// IsNumeric reports whether the column holds numbers.
func (c Column) IsNumeric() bool { return c.Kind == KindNumeric }

// HasMissing reports whether any value is missing.
func (c Column) HasMissing() bool {
	for _, m := range c.Missing {
		if m {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the column.
func (c Column) Clone() Column {
	out := Column{Name: c.Name, Kind: c.Kind}
	if c.Nums != nil {
		out.Nums = append([]float64(nil), c.Nums...)
	}
	if c.Texts != nil {
		out.Texts = append([]string(nil), c.Texts...)
	}
	if c.Missing != nil {
		out.Missing = append([]bool(nil), c.Missing...)
	}
	return out
}

// Dataset is an ordered set of positionally aligned columns.
type Dataset struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// Rows returns the row count, taken from the first column.
func (d *Dataset) Rows() int {
	if d == nil || len(d.Columns) == 0 {
		return 0
	}
	return d.Columns[0].Len()
}

// Width returns the number of columns.
func (d *Dataset) Width() int {
	if d == nil {
		return 0
	}
	return len(d.Columns)
}

// ColumnNames returns the column names in order.
func (d *Dataset) ColumnNames() []string {
	names := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		names[i] = c.Name
	}
	return names
}

// Index returns the position of the named column, or -1.
func (d *Dataset) Index(name string) int {
	for i, c := range d.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy of the dataset.
func (d *Dataset) Clone() *Dataset {
	out := &Dataset{Name: d.Name, Columns: make([]Column, len(d.Columns))}
	for i, c := range d.Columns {
		out.Columns[i] = c.Clone()
	}
	return out
}

// NumericOnly reports whether every column is numeric.
func (d *Dataset) NumericOnly() bool {
	for _, c := range d.Columns {
		if !c.IsNumeric() {
			return false
		}
	}
	return true
}

// Vector returns a copy of numeric column idx.
func (d *Dataset) Vector(idx int) []float64 {
	return append([]float64(nil), d.Columns[idx].Nums...)
}

// Matrix returns the numeric columns at the given indices as row-major data.
func (d *Dataset) Matrix(cols []int) [][]float64 {
	n := d.Rows()
	out := make([][]float64, n)
	for i := range n {
		row := make([]float64, len(cols))
		for j, c := range cols {
			row[j] = d.Columns[c].Nums[i]
		}
		out[i] = row
	}
	return out
}
