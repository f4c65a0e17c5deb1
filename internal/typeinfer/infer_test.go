package typeinfer

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/oslokommune/okdata-data-uploader/internal/ingesterr"
	"github.com/oslokommune/okdata-data-uploader/internal/model"
)

func num(s string) json.Number { return json.Number(s) }

func TestInferIntegerColumn(t *testing.T) {
	rows := []model.Row{
		{"id": num("1")},
		{"id": num("2")},
	}
	f, err := Infer(rows)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	col, ok := f.Column("id")
	if !ok {
		t.Fatalf("expected column id")
	}
	if col.Type != model.ColumnTypeInt64 {
		t.Fatalf("expected int64 column, got %s", col.Type)
	}
	if col.Values[0] != int64(1) || col.Values[1] != int64(2) {
		t.Fatalf("unexpected values: %v", col.Values)
	}
}

func TestInferMixedIntFloatWidensToFloat(t *testing.T) {
	rows := []model.Row{{"v": num("1")}, {"v": num("2.5")}}
	f, err := Infer(rows)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	col, _ := f.Column("v")
	if col.Type != model.ColumnTypeFloat64 {
		t.Fatalf("expected float64 widen, got %s", col.Type)
	}
	if col.Values[0] != float64(1) {
		t.Fatalf("expected widened int to be float64(1), got %v (%T)", col.Values[0], col.Values[0])
	}
}

func TestInferDropsAllNullColumn(t *testing.T) {
	rows := []model.Row{
		{"id": num("1"), "empty": nil},
		{"id": num("2")},
	}
	f, err := Infer(rows)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.HasColumn("empty") {
		t.Fatalf("expected all-null column to be dropped")
	}
}

func TestInferDateColumn(t *testing.T) {
	rows := []model.Row{{"d": "2023-01-15"}, {"d": "2023-02-20"}}
	f, err := Infer(rows)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	col, _ := f.Column("d")
	if col.Type != model.ColumnTypeDate {
		t.Fatalf("expected date column, got %s", col.Type)
	}
	ts, ok := col.Values[0].(time.Time)
	if !ok || ts.Year() != 2023 || ts.Month() != time.January || ts.Day() != 15 {
		t.Fatalf("unexpected date value: %v", col.Values[0])
	}
}

func TestInferTimestampColumnNormalizesToUTC(t *testing.T) {
	rows := []model.Row{
		{"t": "2023-01-15T10:00:00+02:00"},
		{"t": "2023-01-15T10:00:00Z"},
	}
	f, err := Infer(rows)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	col, _ := f.Column("t")
	if col.Type != model.ColumnTypeTimestampUsUTC {
		t.Fatalf("expected timestamp column, got %s", col.Type)
	}
	ts0 := col.Values[0].(time.Time)
	if ts0.Location().String() != "UTC" || ts0.Hour() != 8 {
		t.Fatalf("expected offset normalized to UTC 08:00, got %v", ts0)
	}
}

func TestInferPartialDateRemainsString(t *testing.T) {
	rows := []model.Row{{"d": "2023"}, {"d": "2023-02-20"}}
	f, err := Infer(rows)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	col, _ := f.Column("d")
	if col.Type != model.ColumnTypeString {
		t.Fatalf("expected partial date column to remain string, got %s", col.Type)
	}
}

func TestInferMixedDateAndTimestampRemainsString(t *testing.T) {
	rows := []model.Row{{"d": "2023-02-20"}, {"d": "2023-02-20T10:00:00Z"}}
	f, err := Infer(rows)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	col, _ := f.Column("d")
	if col.Type != model.ColumnTypeString {
		t.Fatalf("expected mixed date/timestamp column to remain string, got %s", col.Type)
	}
}

func TestInferMixedTypesIsInvalidType(t *testing.T) {
	rows := []model.Row{{"v": num("1")}, {"v": "a string"}}
	_, err := Infer(rows)
	if err == nil {
		t.Fatalf("expected InvalidType error")
	}
	var ierr *ingesterr.Error
	if !asIngestErr(err, &ierr) {
		t.Fatalf("expected *ingesterr.Error, got %T: %v", err, err)
	}
	if ierr.Kind != ingesterr.InvalidType {
		t.Fatalf("expected InvalidType kind, got %s", ierr.Kind)
	}
}

func TestInferBooleanColumn(t *testing.T) {
	rows := []model.Row{{"b": true}, {"b": false}, {"b": nil}}
	f, err := Infer(rows)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	col, _ := f.Column("b")
	if col.Type != model.ColumnTypeBool {
		t.Fatalf("expected bool column, got %s", col.Type)
	}
	if col.Values[2] != nil {
		t.Fatalf("expected null preserved, got %v", col.Values[2])
	}
}

func TestInferIsDeterministic(t *testing.T) {
	rows := []model.Row{{"a": num("1"), "b": "x"}, {"a": num("2"), "b": "y"}}
	f1, err1 := Infer(rows)
	f2, err2 := Infer(rows)
	if err1 != nil || err2 != nil {
		t.Fatalf("unexpected errors: %v %v", err1, err2)
	}
	if len(f1.Columns) != len(f2.Columns) {
		t.Fatalf("inference not deterministic across runs")
	}
	for i := range f1.Columns {
		if f1.Columns[i].Name != f2.Columns[i].Name || f1.Columns[i].Type != f2.Columns[i].Type {
			t.Fatalf("inference not deterministic across runs at column %d", i)
		}
	}
}

func asIngestErr(err error, target **ingesterr.Error) bool {
	e, ok := err.(*ingesterr.Error)
	if ok {
		*target = e
	}
	return ok
}
