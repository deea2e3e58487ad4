package types

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/emirpasic/gods/maps/linkedhashmap"
	"gopkg.in/yaml.v3"
)

// DataTable is an ordered mapping from column name to an ordered list of values.
// All columns hold the same number of values, the row count.
type DataTable struct {
	columns *linkedhashmap.Map
}

// NewDataTable creates an empty table.
func NewDataTable() *DataTable {
	return &DataTable{columns: linkedhashmap.New()}
}

// DataTableFromMap builds a table from a plain map. Go maps are unordered so the
// columns are added in lexicographic order.
func DataTableFromMap(m map[string][]string) *DataTable {
	t := NewDataTable()
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		t.AddColumn(name, m[name]...)
	}
	return t
}

// AddColumn appends a column. Re-adding an existing column replaces its values
// and keeps its original position.
func (t *DataTable) AddColumn(name string, values ...string) *DataTable {
	if t.columns == nil {
		t.columns = linkedhashmap.New()
	}
	cp := make([]string, len(values))
	copy(cp, values)
	t.columns.Put(name, cp)
	return t
}

// Columns returns the column names in insertion order.
func (t *DataTable) Columns() []string {
	if t == nil || t.columns == nil {
		return nil
	}
	keys := t.columns.Keys()
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		names = append(names, k.(string))
	}
	return names
}

// Column returns the values of a column.
func (t *DataTable) Column(name string) ([]string, bool) {
	if t == nil || t.columns == nil {
		return nil, false
	}
	v, ok := t.columns.Get(name)
	if !ok {
		return nil, false
	}
	return v.([]string), true
}

// Empty reports whether the table has no columns.
func (t *DataTable) Empty() bool {
	return t == nil || t.columns == nil || t.columns.Empty()
}

// Rows returns the row count, taken from the first column.
func (t *DataTable) Rows() int {
	cols := t.Columns()
	if len(cols) == 0 {
		return 0
	}
	values, _ := t.Column(cols[0])
	return len(values)
}

// Iterations is the number of times a descriptor bound to t executes: once
// without a table, once per row otherwise. A table with columns and no rows
// yields zero.
func (t *DataTable) Iterations() int {
	if t.Empty() {
		return 1
	}
	return t.Rows()
}

// Value returns the cell at the given column and row.
func (t *DataTable) Value(col string, row int) (string, bool) {
	values, ok := t.Column(col)
	if !ok || row < 0 || row >= len(values) {
		return "", false
	}
	return values[row], true
}

// Row returns every column's value for one row. Columns shorter than row are omitted.
func (t *DataTable) Row(row int) map[string]string {
	out := make(map[string]string)
	for _, col := range t.Columns() {
		if v, ok := t.Value(col, row); ok {
			out[col] = v
		}
	}
	return out
}

// Validate checks that column names are non-empty and all columns have equal length.
func (t *DataTable) Validate() error {
	if t.Empty() {
		return nil
	}
	var errs []error
	want := t.Rows()
	first := t.Columns()[0]
	for _, col := range t.Columns() {
		if strings.TrimSpace(col) == "" {
			errs = append(errs, errors.New("data table has an empty column name"))
			continue
		}
		values, _ := t.Column(col)
		if len(values) != want {
			errs = append(errs, fmt.Errorf("column %q has %d rows, column %q has %d", col, len(values), first, want))
		}
	}
	return errors.Join(errs...)
}

// UnmarshalYAML decodes a mapping of column name to value list and keeps the
// document's column order.
func (t *DataTable) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: data table must be a mapping of column to values", node.Line)
	}
	t.columns = linkedhashmap.New()
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		var values []string
		if err := val.Decode(&values); err != nil {
			return fmt.Errorf("line %d: column %q: %w", val.Line, key.Value, err)
		}
		t.AddColumn(key.Value, values...)
	}
	return nil
}

// Reference returns the referenced column name when v has the form "<col>".
func Reference(v string) (string, bool) {
	if len(v) > 2 && strings.HasPrefix(v, "<") && strings.HasSuffix(v, ">") {
		return v[1 : len(v)-1], true
	}
	return "", false
}
