package presign

import (
	"context"
	"testing"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oslokommune/okdata-data-uploader/internal/metadata"
)

type fakeMetadataClient struct {
	dataset          *metadata.Dataset
	getDatasetErr    error
	validVersion     bool
	validEdition     bool
	createdEdition   string
	createEditionErr error
}

func (f *fakeMetadataClient) GetDataset(_ context.Context, _ string) (*metadata.Dataset, error) {
	return f.dataset, f.getDatasetErr
}

func (f *fakeMetadataClient) ValidateVersion(_ context.Context, _, _ string) (bool, error) {
	return f.validVersion, nil
}

func (f *fakeMetadataClient) ValidateEdition(_ context.Context, _, _, _ string) (bool, error) {
	return f.validEdition, nil
}

func (f *fakeMetadataClient) CreateEdition(_ context.Context, _, _, _ string) (string, error) {
	return f.createdEdition, f.createEditionErr
}

type fakePresignClient struct {
	lastInput *s3.PutObjectInput
}

func (f *fakePresignClient) PresignPutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	f.lastInput = params
	return &v4.PresignedHTTPRequest{URL: "https://example.invalid/signed"}, nil
}

func TestHandleAutoCreatesEditionWhenOnlyVersionGiven(t *testing.T) {
	md := &fakeMetadataClient{
		dataset:        &metadata.Dataset{ID: "data-1", SourceType: "file", AccessRights: "public"},
		validVersion:   true,
		createdEdition: "data-1/1/7",
	}
	presignClient := &fakePresignClient{}
	traceCalls := 0
	h := New(md, presignClient, "my-bucket", nil, nil, func() string {
		traceCalls++
		return "trace-1"
	})

	result, err := h.Handle(context.Background(), Request{EditionID: "data-1/1", Filename: "data.csv", Token: "tok"})
	require.NoError(t, err)
	assert.Equal(t, "https://example.invalid/signed", result.URL)
	assert.Equal(t, "trace-1", result.TraceID)
	assert.Equal(t, 1, traceCalls)
	assert.Contains(t, result.S3Path, "edition=7")
	assert.Contains(t, result.S3Path, "data.csv")
}

func TestHandleValidatesExistingEdition(t *testing.T) {
	md := &fakeMetadataClient{
		dataset:      &metadata.Dataset{ID: "data-1", SourceType: "file", AccessRights: "public"},
		validEdition: true,
	}
	presignClient := &fakePresignClient{}
	h := New(md, presignClient, "my-bucket", nil, nil, func() string { return "trace-2" })

	result, err := h.Handle(context.Background(), Request{EditionID: "data-1/1/3", Filename: "data.csv"})
	require.NoError(t, err)
	assert.Contains(t, result.S3Path, "edition=3")
}

func TestHandleRejectsInvalidEdition(t *testing.T) {
	md := &fakeMetadataClient{
		dataset:      &metadata.Dataset{ID: "data-1", SourceType: "file", AccessRights: "public"},
		validEdition: false,
	}
	h := New(md, &fakePresignClient{}, "my-bucket", nil, nil, func() string { return "trace-3" })

	_, err := h.Handle(context.Background(), Request{EditionID: "data-1/1/3", Filename: "data.csv"})
	require.Error(t, err)
}

func TestHandleRejectsWrongSourceType(t *testing.T) {
	md := &fakeMetadataClient{
		dataset: &metadata.Dataset{ID: "data-1", SourceType: "event", AccessRights: "public"},
	}
	h := New(md, &fakePresignClient{}, "my-bucket", nil, nil, func() string { return "trace-4" })

	_, err := h.Handle(context.Background(), Request{EditionID: "data-1/1/3", Filename: "data.csv"})
	require.Error(t, err)
}

func TestHandleRejectsMalformedEditionID(t *testing.T) {
	h := New(&fakeMetadataClient{}, &fakePresignClient{}, "my-bucket", nil, nil, func() string { return "trace-5" })

	_, err := h.Handle(context.Background(), Request{EditionID: "not-an-edition-id-at-all-because-no-slash", Filename: "data.csv"})
	require.Error(t, err)
}
