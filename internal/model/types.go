// Package model holds the typed column-frame representation that the Type
// Inferencer produces and the Dataset Merger and Edition Writer operate on.
// It is the Go analogue of the teacher's model/qvalue package referenced
// throughout connectors/sql/query_executor.go: a closed sum of scalar
// kinds plus a schema-carrying batch type, instead of duck-typed rows.
package model

import "fmt"

// ColumnType is the closed set of column types a Frame column can hold,
// per §3/§4.1 of the data model: integer, floating, boolean, string, date,
// and timestamp-microseconds-UTC.
type ColumnType int

const (
	ColumnTypeInt64 ColumnType = iota
	ColumnTypeFloat64
	ColumnTypeBool
	ColumnTypeString
	ColumnTypeDate
	ColumnTypeTimestampUsUTC
)

func (t ColumnType) String() string {
	switch t {
	case ColumnTypeInt64:
		return "integer"
	case ColumnTypeFloat64:
		return "floating"
	case ColumnTypeBool:
		return "boolean"
	case ColumnTypeString:
		return "string"
	case ColumnTypeDate:
		return "date"
	case ColumnTypeTimestampUsUTC:
		return "timestamp-us-utc"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// Row is an unordered mapping from column name to scalar value.
// A value of nil denotes a SQL-style null. Before type inference, values
// are whatever a UseNumber encoding/json decoder produced (json.Number,
// string, bool, nil); after
// inference, Frame columns hold int64, float64, bool, string or
// time.Time.
type Row map[string]any
