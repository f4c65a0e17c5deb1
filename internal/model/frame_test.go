package model

import "testing"

func TestNewFrameOrdersColumnsByName(t *testing.T) {
	f := NewFrame([]*Column{
		{Name: "zeta", Type: ColumnTypeString, Values: []any{"a"}},
		{Name: "alpha", Type: ColumnTypeInt64, Values: []any{int64(1)}},
	})

	got := f.ColumnNames()
	want := []string{"alpha", "zeta"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("column order = %v, want %v", got, want)
		}
	}
}

func TestFrameRowRoundTrip(t *testing.T) {
	f := NewFrame([]*Column{
		{Name: "id", Type: ColumnTypeInt64, Values: []any{int64(1), int64(2)}},
		{Name: "name", Type: ColumnTypeString, Values: []any{"a", nil}},
	})

	if f.NumRows() != 2 {
		t.Fatalf("NumRows = %d, want 2", f.NumRows())
	}

	row0 := f.Row(0)
	if row0["id"] != int64(1) || row0["name"] != "a" {
		t.Fatalf("unexpected row 0: %v", row0)
	}

	row1 := f.Row(1)
	if row1["name"] != nil {
		t.Fatalf("expected null name in row 1, got %v", row1["name"])
	}

	rows := f.Rows()
	if len(rows) != 2 {
		t.Fatalf("Rows() returned %d rows, want 2", len(rows))
	}
}

func TestFrameColumnLookup(t *testing.T) {
	f := NewFrame([]*Column{{Name: "id", Type: ColumnTypeInt64, Values: []any{int64(1)}}})

	if !f.HasColumn("id") {
		t.Errorf("expected HasColumn(id) to be true")
	}
	if f.HasColumn("missing") {
		t.Errorf("expected HasColumn(missing) to be false")
	}
}

func TestEmptyFrameHasZeroRows(t *testing.T) {
	f := NewFrame(nil)
	if f.NumRows() != 0 {
		t.Errorf("expected 0 rows for empty frame, got %d", f.NumRows())
	}
}
