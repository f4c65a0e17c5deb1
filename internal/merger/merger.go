// Package merger implements the Dataset Merger (§4.2): folding a freshly
// inferred batch of rows into whatever columnar table already sits at a
// storage path, the same full-outer-join-on-key shape the teacher's
// normalize/merge-statement generators build for BigQuery and ClickHouse
// targets (connectors/bigquery/merge_stmt_generator.go,
// connectors/clickhouse/normalize.go), but evaluated in process instead of
// pushed down as SQL.
package merger

import (
	"context"
	"fmt"
	"sort"

	"github.com/oslokommune/okdata-data-uploader/internal/ingesterr"
	"github.com/oslokommune/okdata-data-uploader/internal/model"
	"github.com/oslokommune/okdata-data-uploader/internal/objectstore"
	"github.com/oslokommune/okdata-data-uploader/internal/typeinfer"
)

// Result is the outcome of a successful merge: the merged frame, and the
// columns that weren't present in whatever table previously lived at the
// target path (empty when there was no existing table).
type Result struct {
	Frame      *model.Frame
	NewColumns []string
}

// Merge builds a frame from rows via the Type Inferencer, reads whatever
// frame already exists at path, and combines them per §4.2: concatenation
// when mergeOn is empty, a full outer join on mergeOn otherwise.
func Merge(ctx context.Context, store objectstore.Store, path string, rows []model.Row, mergeOn []string) (*Result, error) {
	newFrame, err := typeinfer.Infer(rows)
	if err != nil {
		return nil, err
	}

	existing, existed, err := store.ReadFrame(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("merger: read existing frame at %q: %w", path, err)
	}
	if !existed {
		return &Result{Frame: newFrame, NewColumns: nil}, nil
	}

	existingNames := make(map[string]bool, len(existing.Columns))
	for _, c := range existing.Columns {
		existingNames[c.Name] = true
	}

	names := unionColumnNames(existing, newFrame)

	var merged []model.Row
	if len(mergeOn) == 0 {
		merged = concat(existing, newFrame, names)
	} else {
		merged, err = join(existing, newFrame, mergeOn, names)
		if err != nil {
			return nil, err
		}
	}

	// Row ordering is reset to a fresh sequential index by construction:
	// merged is built fresh above rather than threading either side's
	// original index through.
	typed, err := typeColumns(existing, newFrame, names, merged)
	if err != nil {
		return nil, err
	}

	var newColumns []string
	for _, name := range names {
		if !existingNames[name] {
			newColumns = append(newColumns, name)
		}
	}
	sort.Strings(newColumns)

	return &Result{Frame: typed, NewColumns: newColumns}, nil
}

// concat appends new's rows after existing's rows, column-set-union, null
// filling columns absent on either side.
func concat(existing, next *model.Frame, names []string) []model.Row {
	rows := make([]model.Row, 0, existing.NumRows()+next.NumRows())
	rows = append(rows, fillRows(existing, names)...)
	rows = append(rows, fillRows(next, names)...)
	return rows
}

// join performs a full outer join on mergeOn's key tuple, per §4.2: where
// keys coincide on both sides, next's columns override existing's
// column-by-column; unmatched rows from either side survive with nulls for
// the columns the other side would have supplied. Non-unique keys are
// permitted on either side and yield duplicate output rows by design.
func join(existing, next *model.Frame, mergeOn []string, names []string) ([]model.Row, error) {
	if err := requireMergeColumns(existing, mergeOn, "existing table"); err != nil {
		return nil, err
	}
	if err := requireMergeColumns(next, mergeOn, "new batch"); err != nil {
		return nil, err
	}

	existingRows := existing.Rows()
	nextRows := next.Rows()

	existingByKey := indexByKey(existingRows, mergeOn)
	nextByKey := indexByKey(nextRows, mergeOn)

	keysInOrder := orderedKeys(existingRows, nextRows, mergeOn)

	var out []model.Row

	for _, key := range keysInOrder {
		lefts := existingByKey[key]
		rights := nextByKey[key]

		switch {
		case len(rights) == 0:
			for _, l := range lefts {
				out = append(out, fillRow(l, names))
			}
		case len(lefts) == 0:
			for _, r := range rights {
				out = append(out, fillRow(r, names))
			}
		default:
			for _, l := range lefts {
				for _, r := range rights {
					out = append(out, mergeRow(l, r, names))
				}
			}
		}
	}

	return out, nil
}

func requireMergeColumns(frame *model.Frame, mergeOn []string, side string) error {
	var missing []string
	for _, col := range mergeOn {
		c, ok := frame.Column(col)
		if !ok {
			missing = append(missing, col)
			continue
		}
		for _, v := range c.Values {
			if v == nil {
				missing = append(missing, col)
				break
			}
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return ingesterr.New(ingesterr.MissingMergeColumns,
			fmt.Sprintf("merge column(s) missing or null in %s: %s", side, joinComma(missing)))
	}
	return nil
}

type rowKey string

func keyFor(row model.Row, mergeOn []string) rowKey {
	k := ""
	for i, col := range mergeOn {
		if i > 0 {
			k += "\x1f"
		}
		k += fmt.Sprintf("%v", row[col])
	}
	return rowKey(k)
}

func indexByKey(rows []model.Row, mergeOn []string) map[rowKey][]model.Row {
	idx := make(map[rowKey][]model.Row)
	for _, r := range rows {
		k := keyFor(r, mergeOn)
		idx[k] = append(idx[k], r)
	}
	return idx
}

// orderedKeys returns every distinct key across both sides, existing-side
// keys first in existing's row order, then any new-only keys in new's row
// order. The resulting row order is explicitly undefined per §4.2, but a
// deterministic rule here keeps output reproducible across runs.
func orderedKeys(existingRows, nextRows []model.Row, mergeOn []string) []rowKey {
	seen := make(map[rowKey]bool)
	var keys []rowKey
	for _, r := range existingRows {
		k := keyFor(r, mergeOn)
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	for _, r := range nextRows {
		k := keyFor(r, mergeOn)
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	return keys
}

func fillRow(row model.Row, names []string) model.Row {
	out := make(model.Row, len(names))
	for _, n := range names {
		out[n] = row[n]
	}
	return out
}

func fillRows(frame *model.Frame, names []string) []model.Row {
	rows := frame.Rows()
	out := make([]model.Row, len(rows))
	for i, r := range rows {
		out[i] = fillRow(r, names)
	}
	return out
}

// mergeRow combines a matched pair: right's values win column-by-column
// wherever right actually has the column.
func mergeRow(left, right model.Row, names []string) model.Row {
	out := make(model.Row, len(names))
	for _, n := range names {
		if v, ok := right[n]; ok {
			out[n] = v
			continue
		}
		out[n] = left[n]
	}
	return out
}

func unionColumnNames(frames ...*model.Frame) []string {
	seen := make(map[string]bool)
	for _, f := range frames {
		for _, n := range f.ColumnNames() {
			seen[n] = true
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// typeColumns resolves each merged column's type from existing's and next's
// own (already-inferred) column types, widening int64/float64 pairs to
// float64 the same as §4.1, and reports InvalidType naming every column
// whose two sides disagree on anything else.
func typeColumns(existing, next *model.Frame, names []string, rows []model.Row) (*model.Frame, error) {
	var mixed []string
	types := make(map[string]model.ColumnType, len(names))

	for _, name := range names {
		t, ok, conflict := resolveColumnType(existing, next, name)
		if conflict {
			mixed = append(mixed, name)
			continue
		}
		if ok {
			types[name] = t
		}
	}

	if len(mixed) > 0 {
		sort.Strings(mixed)
		return nil, ingesterr.New(ingesterr.InvalidType,
			fmt.Sprintf("Invalid or mixed types detected in column(s): %s", joinComma(mixed)))
	}

	columns := make([]*model.Column, len(names))
	for i, name := range names {
		colType := types[name]
		values := make([]any, len(rows))
		for j, r := range rows {
			values[j] = widen(r[name], colType)
		}
		columns[i] = &model.Column{Name: name, Type: colType, Values: values}
	}
	return model.NewFrame(columns), nil
}

// resolveColumnType returns the column type to use for name, or conflict=true
// when existing and next both have the column with irreconcilable types.
func resolveColumnType(existing, next *model.Frame, name string) (t model.ColumnType, ok bool, conflict bool) {
	e, eok := existing.Column(name)
	n, nok := next.Column(name)

	switch {
	case eok && nok:
		if e.Type == n.Type {
			return e.Type, true, false
		}
		if isNumeric(e.Type) && isNumeric(n.Type) {
			return model.ColumnTypeFloat64, true, false
		}
		return 0, false, true
	case eok:
		return e.Type, true, false
	case nok:
		return n.Type, true, false
	default:
		return 0, false, false
	}
}

func isNumeric(t model.ColumnType) bool {
	return t == model.ColumnTypeInt64 || t == model.ColumnTypeFloat64
}

func widen(v any, colType model.ColumnType) any {
	if v == nil || colType != model.ColumnTypeFloat64 {
		return v
	}
	if i, ok := v.(int64); ok {
		return float64(i)
	}
	return v
}

func joinComma(items []string) string {
	out := ""
	for i, item := range items {
		if i > 0 {
			out += ", "
		}
		out += item
	}
	return out
}
