package dataset

import (
	"fmt"
	"strconv"
)

// Dataset is an in-memory table of named columns with a fixed row count.
// Numeric columns hold float64 values; non-numeric columns (group keys,
// ids) are kept as string columns. Columns are mutated in place only by
// the scoring engine, which adds or overwrites derived score columns.
type Dataset struct {
	rows    int
	order   []string
	floats  map[string][]float64
	strings map[string][]string
}

// New creates an empty dataset with the given row count.
func New(rows int) *Dataset {
	return &Dataset{
		rows:    rows,
		floats:  make(map[string][]float64),
		strings: make(map[string][]string),
	}
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	return d.rows
}

// Columns returns the column names in insertion order.
func (d *Dataset) Columns() []string {
	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}

// HasColumn reports whether a column of either kind exists.
func (d *Dataset) HasColumn(name string) bool {
	_, ok := d.floats[name]
	if !ok {
		_, ok = d.strings[name]
	}
	return ok
}

// Column returns a numeric column by name.
func (d *Dataset) Column(name string) ([]float64, error) {
	col, ok := d.floats[name]
	if !ok {
		return nil, fmt.Errorf("dataset: no numeric column %q", name)
	}
	return col, nil
}

// StringColumn returns a string column by name.
func (d *Dataset) StringColumn(name string) ([]string, error) {
	col, ok := d.strings[name]
	if !ok {
		return nil, fmt.Errorf("dataset: no string column %q", name)
	}
	return col, nil
}

// SetColumn adds or overwrites a numeric column.
func (d *Dataset) SetColumn(name string, values []float64) error {
	if len(values) != d.rows {
		return fmt.Errorf("dataset: column %q has %d values, want %d", name, len(values), d.rows)
	}
	if !d.HasColumn(name) {
		d.order = append(d.order, name)
	}
	delete(d.strings, name)
	d.floats[name] = values
	return nil
}

// SetStringColumn adds or overwrites a string column.
func (d *Dataset) SetStringColumn(name string, values []string) error {
	if len(values) != d.rows {
		return fmt.Errorf("dataset: column %q has %d values, want %d", name, len(values), d.rows)
	}
	if !d.HasColumn(name) {
		d.order = append(d.order, name)
	}
	delete(d.floats, name)
	d.strings[name] = values
	return nil
}

// GroupKeys returns a per-row group key for the named column. String
// columns are used verbatim; numeric columns are formatted. This is how
// evaluators group rows regardless of the key column's type.
func (d *Dataset) GroupKeys(name string) ([]string, error) {
	if col, ok := d.strings[name]; ok {
		return col, nil
	}
	col, ok := d.floats[name]
	if !ok {
		return nil, fmt.Errorf("dataset: no column %q to group by", name)
	}
	keys := make([]string, len(col))
	for i, v := range col {
		keys[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return keys, nil
}

// Clone returns an independent copy of the dataset. Numeric columns are
// deep-copied because the scoring engine overwrites derived columns in
// place; string columns are never mutated and share storage.
func (d *Dataset) Clone() *Dataset {
	out := &Dataset{
		rows:    d.rows,
		order:   make([]string, len(d.order)),
		floats:  make(map[string][]float64, len(d.floats)),
		strings: make(map[string][]string, len(d.strings)),
	}
	copy(out.order, d.order)
	for name, col := range d.floats {
		copied := make([]float64, len(col))
		copy(copied, col)
		out.floats[name] = copied
	}
	for name, col := range d.strings {
		out.strings[name] = col
	}
	return out
}

// Matrix returns a column-major view of the selected numeric columns.
// The returned slices alias the dataset's storage.
func (d *Dataset) Matrix(selected []string) ([][]float64, error) {
	out := make([][]float64, len(selected))
	for i, name := range selected {
		col, err := d.Column(name)
		if err != nil {
			return nil, err
		}
		out[i] = col
	}
	return out, nil
}
