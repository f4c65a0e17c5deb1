package dispatch

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oslokommune/okdata-data-uploader/internal/editionwriter"
	"github.com/oslokommune/okdata-data-uploader/internal/ingesterr"
	"github.com/oslokommune/okdata-data-uploader/internal/metadata"
	"github.com/oslokommune/okdata-data-uploader/internal/notifier"
	"github.com/oslokommune/okdata-data-uploader/internal/objectstore"
)

type fakeMetadataClient struct {
	dataset *metadata.Dataset
	err     error
}

func (f *fakeMetadataClient) GetDataset(_ context.Context, _ string) (*metadata.Dataset, error) {
	return f.dataset, f.err
}

type fakeAuthorizer struct {
	owner bool
}

func (f *fakeAuthorizer) IsOwner(_ context.Context, _, _ string) bool { return f.owner }

type fakeLocker struct {
	err error
}

func (f *fakeLocker) WithLock(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	if f.err != nil {
		return f.err
	}
	return fn(ctx)
}

type fakeEnqueuer struct {
	called bool
	err    error
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, _ string, _ []byte) (string, error) {
	f.called = true
	if f.err != nil {
		return "", f.err
	}
	return "trace-1", nil
}

type fakeTokens struct{}

func (fakeTokens) Token(_ context.Context) (string, error) { return "tok", nil }

func newTestDispatcher(t *testing.T, md MetadataClient, auth Authorizer, lock Locker, queue Enqueuer, enableAuth bool) *Dispatcher {
	t.Helper()
	store := objectstore.NewMemStore()
	writer := editionwriter.New(store, &fakeEditionMetadata{editionID: "data-1/1/1"})
	n := notifier.New(&fakeSubscriptionTable{}, nil, "", "")
	d, err := New(store, md, auth, lock, queue, writer, n, fakeTokens{}, enableAuth)
	require.NoError(t, err)
	return d
}

type fakeEditionMetadata struct {
	editionID string
}

func (f *fakeEditionMetadata) CreateEdition(_ context.Context, _, _, _ string) (string, error) {
	return f.editionID, nil
}

func (f *fakeEditionMetadata) CreateDistribution(_ context.Context, _, _, _, _ string, _ metadata.Distribution) error {
	return nil
}

type fakeSubscriptionTable struct{}

func (fakeSubscriptionTable) GetItem(_ context.Context, _ *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return &dynamodb.GetItemOutput{}, nil
}

func body(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestHandleSchemaViolationReturns400(t *testing.T) {
	d := newTestDispatcher(t, &fakeMetadataClient{}, &fakeAuthorizer{owner: true}, &fakeLocker{}, &fakeEnqueuer{}, false)
	resp := d.Handle(context.Background(), body(t, map[string]any{"events": []any{}}), "")
	assert.Equal(t, 400, resp.StatusCode)
}

func TestHandleMalformedJSONReturns400(t *testing.T) {
	d := newTestDispatcher(t, &fakeMetadataClient{}, &fakeAuthorizer{owner: true}, &fakeLocker{}, &fakeEnqueuer{}, false)
	resp := d.Handle(context.Background(), []byte("not json"), "")
	assert.Equal(t, 400, resp.StatusCode)
}

func TestHandleUnauthorizedReturns403(t *testing.T) {
	d := newTestDispatcher(t, &fakeMetadataClient{}, &fakeAuthorizer{owner: false}, &fakeLocker{}, &fakeEnqueuer{}, true)
	req := map[string]any{"datasetId": "data-1", "events": []any{map[string]any{"a": 1}}}
	resp := d.Handle(context.Background(), body(t, req), "Bearer abc")
	assert.Equal(t, 403, resp.StatusCode)
}

func TestHandleDatasetNotFoundReturns404(t *testing.T) {
	md := &fakeMetadataClient{err: ingesterr.New(ingesterr.DatasetNotFound, "Dataset data-1 does not exist")}
	d := newTestDispatcher(t, md, &fakeAuthorizer{owner: true}, &fakeLocker{}, &fakeEnqueuer{}, false)
	req := map[string]any{"datasetId": "data-1", "events": []any{map[string]any{"a": 1}}}
	resp := d.Handle(context.Background(), body(t, req), "")
	assert.Equal(t, 404, resp.StatusCode)
}

func TestHandleWrongSourceTypeReturns400(t *testing.T) {
	md := &fakeMetadataClient{dataset: &metadata.Dataset{ID: "data-1", SourceType: "file", AccessRights: "public"}}
	d := newTestDispatcher(t, md, &fakeAuthorizer{owner: true}, &fakeLocker{}, &fakeEnqueuer{}, false)
	req := map[string]any{"datasetId": "data-1", "events": []any{map[string]any{"a": 1}}}
	resp := d.Handle(context.Background(), body(t, req), "")
	assert.Equal(t, 400, resp.StatusCode)
}

func TestHandleAsyncPayloadTooLarge(t *testing.T) {
	md := &fakeMetadataClient{dataset: &metadata.Dataset{ID: "data-1", SourceType: "event", AccessRights: "public"}}
	queue := &fakeEnqueuer{}
	d := newTestDispatcher(t, md, &fakeAuthorizer{owner: true}, &fakeLocker{}, queue, false)

	events := make([]any, 0, 50000)
	for i := 0; i < 50000; i++ {
		events = append(events, map[string]any{"a": "xxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx"})
	}
	req := map[string]any{"datasetId": "data-1", "events": events, "apiVersion": 2}
	resp := d.Handle(context.Background(), body(t, req), "")
	assert.Equal(t, 400, resp.StatusCode)
	assert.False(t, queue.called)
}

func TestHandleAsyncEnqueuesAndReturns200(t *testing.T) {
	md := &fakeMetadataClient{dataset: &metadata.Dataset{ID: "data-1", SourceType: "event", AccessRights: "public"}}
	queue := &fakeEnqueuer{}
	d := newTestDispatcher(t, md, &fakeAuthorizer{owner: true}, &fakeLocker{}, queue, false)

	req := map[string]any{"datasetId": "data-1", "events": []any{map[string]any{"a": 1}}, "apiVersion": 2}
	resp := d.Handle(context.Background(), body(t, req), "")
	assert.Equal(t, 200, resp.StatusCode)
	assert.True(t, queue.called)
}

func TestHandleSyncHappyPathReturns201WithEditionID(t *testing.T) {
	md := &fakeMetadataClient{dataset: &metadata.Dataset{ID: "data-1", SourceType: "event", AccessRights: "public"}}
	d := newTestDispatcher(t, md, &fakeAuthorizer{owner: true}, &fakeLocker{}, &fakeEnqueuer{}, false)

	req := map[string]any{"datasetId": "data-1", "events": []any{map[string]any{"a": 1}}}
	resp := d.Handle(context.Background(), body(t, req), "")
	require.Equal(t, 201, resp.StatusCode)

	var parsed map[string]string
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &parsed))
	assert.Equal(t, "data-1/1/1", parsed["editionId"])
}

func TestHandleSyncLockExhaustedReturns409(t *testing.T) {
	md := &fakeMetadataClient{dataset: &metadata.Dataset{ID: "data-1", SourceType: "event", AccessRights: "public"}}
	lock := &fakeLocker{err: ingesterr.New(ingesterr.Locked, "dataset data-1 is locked")}
	d := newTestDispatcher(t, md, &fakeAuthorizer{owner: true}, lock, &fakeEnqueuer{}, false)

	req := map[string]any{"datasetId": "data-1", "events": []any{map[string]any{"a": 1}}}
	resp := d.Handle(context.Background(), body(t, req), "")
	assert.Equal(t, 409, resp.StatusCode)
}
