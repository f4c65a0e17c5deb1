package status

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTokens struct {
	err error
}

func (f fakeTokens) Token(_ context.Context) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "svc-tok", nil
}

func TestReportSendsAuthenticatedTrace(t *testing.T) {
	var gotAuth string
	var gotTrace Trace
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotTrace))
	}))
	defer srv.Close()

	r := NewReporter(srv.URL, srv.Client())
	r.Report(context.Background(), fakeTokens{}, "trace-1", "dataset", "data-1/1", Finished)

	assert.Equal(t, "Bearer svc-tok", gotAuth)
	assert.Equal(t, "trace-1", gotTrace.TraceID)
	assert.Equal(t, Finished, gotTrace.Status)
	assert.Equal(t, "data-1/1", gotTrace.DomainID)
}

func TestReportSwallowsTokenFailure(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	r := NewReporter(srv.URL, srv.Client())
	assert.NotPanics(t, func() {
		r.Report(context.Background(), fakeTokens{err: assertErr{}}, "trace-1", "dataset", "data-1/1", Failed)
	})
	assert.False(t, called)
}

type assertErr struct{}

func (assertErr) Error() string { return "token error" }
