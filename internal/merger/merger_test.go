package merger

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oslokommune/okdata-data-uploader/internal/ingesterr"
	"github.com/oslokommune/okdata-data-uploader/internal/model"
	"github.com/oslokommune/okdata-data-uploader/internal/objectstore"
)

func num(s string) json.Number { return json.Number(s) }

func TestMergeNoExistingTableAppendsVerbatim(t *testing.T) {
	store := objectstore.NewMemStore()
	rows := []model.Row{{"id": num("1"), "data": "a"}}

	result, err := Merge(context.Background(), store, "processed/green/ds/version=1/latest", rows, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Frame.NumRows())
	assert.Empty(t, result.NewColumns)
}

func TestMergeWithoutMergeOnConcatenates(t *testing.T) {
	ctx := context.Background()
	store := objectstore.NewMemStore()
	path := "processed/green/ds/version=1/latest"

	existing := model.NewFrame([]*model.Column{
		{Name: "id", Type: model.ColumnTypeInt64, Values: []any{int64(1)}},
	})
	require.NoError(t, store.WriteFrame(ctx, path, existing))

	rows := []model.Row{{"id": num("2")}}
	result, err := Merge(ctx, store, path, rows, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Frame.NumRows())
}

func TestMergeOnKeyOverridesExistingValues(t *testing.T) {
	ctx := context.Background()
	store := objectstore.NewMemStore()
	path := "processed/green/ds/version=1/latest"

	existing := model.NewFrame([]*model.Column{
		{Name: "id", Type: model.ColumnTypeInt64, Values: []any{int64(1)}},
		{Name: "data", Type: model.ColumnTypeInt64, Values: []any{int64(1)}},
	})
	require.NoError(t, store.WriteFrame(ctx, path, existing))

	rows := []model.Row{{"id": num("1"), "data": num("2")}}
	result, err := Merge(ctx, store, path, rows, []string{"id"})
	require.NoError(t, err)

	require.Equal(t, 1, result.Frame.NumRows())
	dataCol, ok := result.Frame.Column("data")
	require.True(t, ok)
	assert.Equal(t, int64(2), dataCol.Values[0])
}

func TestMergeOnKeyAddsNewColumnAndReportsIt(t *testing.T) {
	ctx := context.Background()
	store := objectstore.NewMemStore()
	path := "processed/green/ds/version=1/latest"

	existing := model.NewFrame([]*model.Column{
		{Name: "id", Type: model.ColumnTypeInt64, Values: []any{int64(1)}},
	})
	require.NoError(t, store.WriteFrame(ctx, path, existing))

	rows := []model.Row{{"id": num("1"), "newcol": "x"}}
	result, err := Merge(ctx, store, path, rows, []string{"id"})
	require.NoError(t, err)
	assert.Equal(t, []string{"newcol"}, result.NewColumns)

	row0 := result.Frame.Row(0)
	assert.Equal(t, "x", row0["newcol"])
}

func TestMergeMissingMergeColumnFails(t *testing.T) {
	ctx := context.Background()
	store := objectstore.NewMemStore()
	path := "processed/green/ds/version=1/latest"

	existing := model.NewFrame([]*model.Column{
		{Name: "data", Type: model.ColumnTypeInt64, Values: []any{int64(1)}},
	})
	require.NoError(t, store.WriteFrame(ctx, path, existing))

	rows := []model.Row{{"id": num("1"), "data": num("2")}}
	_, err := Merge(ctx, store, path, rows, []string{"id"})
	require.Error(t, err)

	var ierr *ingesterr.Error
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, ingesterr.MissingMergeColumns, ierr.Kind)
}

func TestMergeOnKeyAllowsNonUniqueKeysAndProducesDuplicates(t *testing.T) {
	ctx := context.Background()
	store := objectstore.NewMemStore()
	path := "processed/green/ds/version=1/latest"

	existing := model.NewFrame([]*model.Column{
		{Name: "id", Type: model.ColumnTypeInt64, Values: []any{int64(1), int64(1)}},
		{Name: "data", Type: model.ColumnTypeInt64, Values: []any{int64(10), int64(20)}},
	})
	require.NoError(t, store.WriteFrame(ctx, path, existing))

	rows := []model.Row{{"id": num("1"), "data": num("99")}}
	result, err := Merge(ctx, store, path, rows, []string{"id"})
	require.NoError(t, err)

	// Non-unique key on the existing side pairs with the single new row
	// twice, producing duplicate output rows by design (§4.2).
	assert.Equal(t, 2, result.Frame.NumRows())
}

func TestMergeIrreconcilableColumnTypesFails(t *testing.T) {
	ctx := context.Background()
	store := objectstore.NewMemStore()
	path := "processed/green/ds/version=1/latest"

	existing := model.NewFrame([]*model.Column{
		{Name: "id", Type: model.ColumnTypeInt64, Values: []any{int64(1)}},
		{Name: "v", Type: model.ColumnTypeString, Values: []any{"x"}},
	})
	require.NoError(t, store.WriteFrame(ctx, path, existing))

	rows := []model.Row{{"id": num("2"), "v": num("5")}}
	_, err := Merge(ctx, store, path, rows, nil)
	require.Error(t, err)

	var ierr *ingesterr.Error
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, ingesterr.InvalidType, ierr.Kind)
}
