// Package typeinfer converts a heterogeneous row-set — the shape JSON
// naturally produces — into a typed model.Frame, the same way the teacher's
// SQL query executor converts a database's loosely-typed driver values into
// qvalue.QValue via columnTypeToQField/toQValue. Here there is no database
// to hand us a column type, so the type is derived from the values
// themselves.
package typeinfer

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/oslokommune/okdata-data-uploader/internal/ingesterr"
	"github.com/oslokommune/okdata-data-uploader/internal/model"
)

var (
	datePattern      = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	timestampPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d{1,9})?(Z|[+-]\d{2}:\d{2})?$`)

	timestampLayouts = []string{
		"2006-01-02T15:04:05.999999999Z07:00",
		"2006-01-02T15:04:05Z07:00",
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04:05",
	}
)

// Infer builds a typed model.Frame from rows, per §4.1. Columns that are
// entirely null across every row are dropped. A column whose non-null
// values cannot be reconciled to a single type yields InvalidType, naming
// every offending column.
func Infer(rows []model.Row) (*model.Frame, error) {
	columnNames := collectColumnNames(rows)

	var columns []*model.Column
	var mixedColumns []string

	for _, name := range columnNames {
		raw := make([]any, len(rows))
		anyNonNull := false
		for i, row := range rows {
			v, present := row[name]
			if present && v != nil {
				raw[i] = v
				anyNonNull = true
			}
		}
		if !anyNonNull {
			continue // drop all-null column
		}

		colType, ok := classify(raw)
		if !ok {
			mixedColumns = append(mixedColumns, name)
			continue
		}

		values := make([]any, len(raw))
		for i, v := range raw {
			if v == nil {
				continue
			}
			values[i] = convert(v, colType)
		}

		columns = append(columns, &model.Column{Name: name, Type: colType, Values: values})
	}

	if len(mixedColumns) > 0 {
		sort.Strings(mixedColumns)
		return nil, ingesterr.New(ingesterr.InvalidType,
			fmt.Sprintf("Invalid or mixed types detected in column(s): %s", joinComma(mixedColumns)))
	}

	return model.NewFrame(columns), nil
}

func collectColumnNames(rows []model.Row) []string {
	seen := make(map[string]bool)
	for _, row := range rows {
		for k := range row {
			seen[k] = true
		}
	}
	names := make([]string, 0, len(seen))
	for k := range seen {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
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

// classify decides the column type for a set of raw (possibly-nil) values,
// per the rules in §4.1. nil entries are ignored. ok is false when the
// non-null values are irreconcilably mixed (some numeric, some string,
// etc.) and the column should be reported as InvalidType.
func classify(raw []any) (model.ColumnType, bool) {
	allBool, allNumeric, anyFloat, allString := true, true, false, true

	for _, v := range raw {
		if v == nil {
			continue
		}
		if _, ok := v.(bool); !ok {
			allBool = false
		}
		if isNum, isInt := classifyNumber(v); isNum {
			if !isInt {
				anyFloat = true
			}
		} else {
			allNumeric = false
		}
		if _, ok := v.(string); !ok {
			allString = false
		}
	}

	switch {
	case allBool:
		return model.ColumnTypeBool, true
	case allNumeric:
		if anyFloat {
			return model.ColumnTypeFloat64, true
		}
		return model.ColumnTypeInt64, true
	case allString:
		return classifyStringColumn(raw), true
	default:
		return 0, false
	}
}

// classifyStringColumn decides between Date, TimestampUsUTC and plain
// String for a column whose non-null values are all Go strings.
func classifyStringColumn(raw []any) model.ColumnType {
	allDate, allTimestamp := true, true
	anyValue := false

	for _, v := range raw {
		if v == nil {
			continue
		}
		s := v.(string)
		anyValue = true
		if !datePattern.MatchString(s) {
			allDate = false
		}
		if !(timestampPattern.MatchString(s) && parseable(s)) {
			allTimestamp = false
		}
	}

	if !anyValue {
		return model.ColumnTypeString
	}
	if allDate {
		return model.ColumnTypeDate
	}
	if allTimestamp {
		return model.ColumnTypeTimestampUsUTC
	}
	return model.ColumnTypeString
}

func parseable(s string) bool {
	_, ok := parseTimestamp(s)
	return ok
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// classifyNumber reports whether v is a recognized numeric value and, if
// so, whether it is an integer (as opposed to having a fractional part).
func classifyNumber(v any) (isNumber bool, isInt bool) {
	switch t := v.(type) {
	case json.Number:
		if _, err := t.Int64(); err == nil {
			return true, true
		}
		if _, err := t.Float64(); err == nil {
			return true, false
		}
		return false, false
	case int:
		return true, true
	case int64:
		return true, true
	case float32:
		return true, false
	case float64:
		return true, false
	default:
		return false, false
	}
}

// convert turns a raw, already-classified value into colType's Go
// representation. v is assumed to have already passed classify for
// colType's column.
func convert(v any, colType model.ColumnType) any {
	switch colType {
	case model.ColumnTypeBool:
		return v.(bool)
	case model.ColumnTypeInt64:
		return toInt64(v)
	case model.ColumnTypeFloat64:
		return toFloat64(v)
	case model.ColumnTypeString:
		return v.(string)
	case model.ColumnTypeDate:
		t, _ := time.Parse("2006-01-02", v.(string))
		return t.UTC()
	case model.ColumnTypeTimestampUsUTC:
		t, _ := parseTimestamp(v.(string))
		return t.Truncate(time.Microsecond)
	default:
		return v
	}
}

func toInt64(v any) int64 {
	switch t := v.(type) {
	case json.Number:
		i, _ := t.Int64()
		return i
	case int:
		return int64(t)
	case int64:
		return t
	}
	return 0
}

func toFloat64(v any) float64 {
	switch t := v.(type) {
	case json.Number:
		f, _ := t.Float64()
		return f
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case float32:
		return float64(t)
	case float64:
		return t
	}
	return 0
}
