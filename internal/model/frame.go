package model

import "sort"

// Column is a named, typed, ordered sequence of values. A nil entry in
// Values denotes null for that row.
type Column struct {
	Name   string
	Type   ColumnType
	Values []any
}

// Frame is a named, ordered set of columns sharing one row count, the
// columnar table format produced by the Type Inferencer and consumed by
// the Dataset Merger and Edition Writer.
type Frame struct {
	Columns []*Column
}

// NewFrame builds a Frame from columns, ordering them by name so that two
// frames built from the same column set always compare equal regardless of
// map iteration order upstream. Row order within each column is the
// caller's responsibility and is preserved as given.
func NewFrame(columns []*Column) *Frame {
	sorted := make([]*Column, len(columns))
	copy(sorted, columns)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	return &Frame{Columns: sorted}
}

// NumRows returns the frame's row count, or 0 for a frame with no columns.
func (f *Frame) NumRows() int {
	if len(f.Columns) == 0 {
		return 0
	}
	return len(f.Columns[0].Values)
}

// ColumnNames returns the frame's column names in frame order.
func (f *Frame) ColumnNames() []string {
	names := make([]string, len(f.Columns))
	for i, c := range f.Columns {
		names[i] = c.Name
	}
	return names
}

// Column returns the named column and whether it exists.
func (f *Frame) Column(name string) (*Column, bool) {
	for _, c := range f.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// HasColumn reports whether the frame has a column with the given name.
func (f *Frame) HasColumn(name string) bool {
	_, ok := f.Column(name)
	return ok
}

// Row returns row i as a Row mapping, suitable for re-inference or joins.
func (f *Frame) Row(i int) Row {
	row := make(Row, len(f.Columns))
	for _, c := range f.Columns {
		row[c.Name] = c.Values[i]
	}
	return row
}

// Rows returns every row in the frame, in frame order.
func (f *Frame) Rows() []Row {
	rows := make([]Row, f.NumRows())
	for i := range rows {
		rows[i] = f.Row(i)
	}
	return rows
}
