package objectstore

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/oslokommune/okdata-data-uploader/internal/model"
)

// schemaFor builds the parquet.Schema for frame's columns. Every leaf is
// optional: nulls are a normal part of the data (§4.1), not an error.
func schemaFor(frame *model.Frame) (*parquet.Schema, error) {
	group := make(parquet.Group, len(frame.Columns))
	for _, col := range frame.Columns {
		node, err := leafFor(col.Type)
		if err != nil {
			return nil, err
		}
		group[col.Name] = parquet.Optional(node)
	}
	return parquet.NewSchema("row", group), nil
}

func leafFor(t model.ColumnType) (parquet.Node, error) {
	switch t {
	case model.ColumnTypeInt64:
		return parquet.Leaf(parquet.Int64Type), nil
	case model.ColumnTypeFloat64:
		return parquet.Leaf(parquet.DoubleType), nil
	case model.ColumnTypeBool:
		return parquet.Leaf(parquet.BooleanType), nil
	case model.ColumnTypeString:
		return parquet.String(), nil
	case model.ColumnTypeDate:
		return parquet.Date(), nil
	case model.ColumnTypeTimestampUsUTC:
		return parquet.Timestamp(parquet.Microsecond), nil
	default:
		return nil, fmt.Errorf("objectstore: no parquet representation for column type %s", t)
	}
}

// EncodeFrame serializes frame as a parquet file, one row group, columns in
// frame order.
func EncodeFrame(frame *model.Frame) ([]byte, error) {
	schema, err := schemaFor(frame)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	writer := parquet.NewGenericWriter[map[string]any](&buf, schema)

	rows := make([]map[string]any, frame.NumRows())
	for i := range rows {
		row := make(map[string]any, len(frame.Columns))
		for _, col := range frame.Columns {
			row[col.Name] = parquetValue(col.Type, col.Values[i])
		}
		rows[i] = row
	}

	if len(rows) > 0 {
		if _, err := writer.Write(rows); err != nil {
			return nil, fmt.Errorf("objectstore: write parquet rows: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("objectstore: close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}

// parquetValue adapts a Frame cell to the Go value parquet-go expects for
// the column's logical type. time.Time values round-trip as-is; everything
// else is already the concrete type the schema wants.
func parquetValue(_ model.ColumnType, v any) any {
	return v
}

// DecodeFrame reads back a frame previously written by EncodeFrame,
// reconstructing column types from the file's embedded schema.
func DecodeFrame(data []byte) (*model.Frame, error) {
	file, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("objectstore: open parquet file: %w", err)
	}

	columns := make([]*model.Column, 0, len(file.Schema().Fields()))
	types := make(map[string]model.ColumnType, len(columns))
	for _, f := range file.Schema().Fields() {
		t, err := columnTypeFor(f)
		if err != nil {
			return nil, err
		}
		types[f.Name()] = t
		columns = append(columns, &model.Column{Name: f.Name(), Type: t})
	}

	reader := parquet.NewGenericReader[map[string]any](bytes.NewReader(data))
	defer reader.Close()

	rows := make([]map[string]any, reader.NumRows())
	for i := range rows {
		rows[i] = make(map[string]any, len(columns))
	}

	n := 0
	buf := make([]map[string]any, 128)
	for {
		read, err := reader.Read(buf)
		for i := 0; i < read; i++ {
			rows[n+i] = buf[i]
		}
		n += read
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("objectstore: read parquet rows: %w", err)
		}
	}

	for _, col := range columns {
		col.Values = make([]any, len(rows))
		for i, row := range rows {
			col.Values[i] = fromParquetValue(types[col.Name], row[col.Name])
		}
	}

	return model.NewFrame(columns), nil
}

func columnTypeFor(f parquet.Field) (model.ColumnType, error) {
	logical := f.Type().LogicalType()
	switch {
	case logical != nil && logical.Date != nil:
		return model.ColumnTypeDate, nil
	case logical != nil && logical.Timestamp != nil:
		return model.ColumnTypeTimestampUsUTC, nil
	case logical != nil && logical.UTF8 != nil:
		return model.ColumnTypeString, nil
	}
	switch f.Type().Kind() {
	case parquet.Int64:
		return model.ColumnTypeInt64, nil
	case parquet.Double:
		return model.ColumnTypeFloat64, nil
	case parquet.Boolean:
		return model.ColumnTypeBool, nil
	case parquet.ByteArray:
		return model.ColumnTypeString, nil
	default:
		return 0, fmt.Errorf("objectstore: unrecognized parquet column kind for %q", f.Name())
	}
}

func fromParquetValue(t model.ColumnType, v any) any {
	if v == nil {
		return nil
	}
	switch t {
	case model.ColumnTypeDate, model.ColumnTypeTimestampUsUTC:
		if tm, ok := v.(time.Time); ok {
			return tm.UTC()
		}
	}
	return v
}
