// Package domain defines the in-memory tabular snapshot the pipeline
// passes from stage to stage.
package domain

// Record represents one observation of the validator queue as decoded
// from the feed. Field values are raw JSON values (json.Number for
// numerics); a nil value or an absent key both count as missing.
type Record map[string]any

// IsMissing reports whether the record has no usable value for col.
func (r Record) IsMissing(col string) bool {
	v, ok := r[col]
	return !ok || v == nil
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Table is an ordered sequence of records. Columns lists field names in
// first-appearance order, which is the order the feed emitted them; row
// order is insertion order and is not assumed chronological.
type Table struct {
	Columns []string
	Rows    []Record
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{}
}

// Append adds a record. keys carries the record's field names in feed
// order; names not yet in Columns are appended, preserving first
// appearance.
func (t *Table) Append(keys []string, r Record) {
	for _, k := range keys {
		if !t.HasColumn(k) {
			t.Columns = append(t.Columns, k)
		}
	}
	t.Rows = append(t.Rows, r)
}

// HasColumn reports whether the table carries the named column.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// CloneSchema returns an empty table with the same column list.
func (t *Table) CloneSchema() *Table {
	cols := make([]string, len(t.Columns))
	copy(cols, t.Columns)
	return &Table{Columns: cols}
}
