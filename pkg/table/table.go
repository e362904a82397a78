// Package table holds the tabular data nodes consume and produce, plus
// CSV and JSON codecs for it.
package table

import (
	"sort"

	"github.com/ajitpratap0/forcebridge/pkg/errors"
)

// Table is an ordered set of rows sharing one column list.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]interface{}
}

// New creates an empty table with the given columns.
func New(name string, columns ...string) *Table {
	return &Table{Name: name, Columns: columns}
}

// SingleCell creates a one-row, one-column table.
func SingleCell(name, column string, value interface{}) *Table {
	return &Table{
		Name:    name,
		Columns: []string{column},
		Rows:    [][]interface{}{{value}},
	}
}

// Append adds a row. The row must have one value per column.
func (t *Table) Append(row ...interface{}) error {
	if len(row) != len(t.Columns) {
		return errors.Newf(errors.ErrorTypeValidation,
			"table %s: row has %d values, want %d", t.Name, len(row), len(t.Columns))
	}
	t.Rows = append(t.Rows, row)
	return nil
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// ColumnIndex returns the position of column, or -1.
func (t *Table) ColumnIndex(column string) int {
	for i, c := range t.Columns {
		if c == column {
			return i
		}
	}
	return -1
}

// Cell returns the value of column in row i.
func (t *Table) Cell(i int, column string) (interface{}, bool) {
	j := t.ColumnIndex(column)
	if j < 0 || i < 0 || i >= len(t.Rows) {
		return nil, false
	}
	return t.Rows[i][j], true
}

// Records converts every row to a field map. Nil cells are left out.
func (t *Table) Records() []map[string]interface{} {
	out := make([]map[string]interface{}, len(t.Rows))
	for i, row := range t.Rows {
		rec := make(map[string]interface{}, len(t.Columns))
		for j, c := range t.Columns {
			if j < len(row) && row[j] != nil {
				rec[c] = row[j]
			}
		}
		out[i] = rec
	}
	return out
}

// WithColumn returns a copy of t with column appended and each row
// extended by value(i).
func (t *Table) WithColumn(column string, value func(i int) interface{}) *Table {
	out := &Table{
		Name:    t.Name,
		Columns: append(append(make([]string, 0, len(t.Columns)+1), t.Columns...), column),
		Rows:    make([][]interface{}, len(t.Rows)),
	}
	for i, row := range t.Rows {
		r := make([]interface{}, 0, len(row)+1)
		out.Rows[i] = append(append(r, row...), value(i))
	}
	return out
}

// FromRecords builds a table from field maps. Columns are the sorted union
// of keys, minus skip.
func FromRecords(name string, records []map[string]interface{}, skip ...string) *Table {
	excluded := make(map[string]struct{}, len(skip))
	for _, s := range skip {
		excluded[s] = struct{}{}
	}

	seen := make(map[string]struct{})
	var columns []string
	for _, rec := range records {
		for k := range rec {
			if _, ok := excluded[k]; ok {
				continue
			}
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				columns = append(columns, k)
			}
		}
	}
	sort.Strings(columns)

	t := New(name, columns...)
	for _, rec := range records {
		row := make([]interface{}, len(columns))
		for j, c := range columns {
			row[j] = rec[c]
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}
