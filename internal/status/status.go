// Package status reports pipeline progress to the status-tracking API
// (STATUS_API_URL), the same sink okdata.aws.status's status_wrapper/
// status_add decorators write to in
// original_source/uploader/handlers/handle_queue.py and
// original_source/uploader/common.py's create_status_trace. The Queue
// Consumer and the Presigned Upload handler each post one terminal
// TraceStatus (FINISHED or FAILED) per run; no caller posts STARTED.
package status

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// TraceStatus is the state reported for one traced run.
type TraceStatus string

const (
	Started  TraceStatus = "STARTED"
	Finished TraceStatus = "FINISHED"
	Failed   TraceStatus = "FAILED"
)

// Trace is one status update posted to STATUS_API_URL. DomainID is the
// "<datasetId>/<version>" pair status_add(domain="dataset", ...) records
// in the original handler.
type Trace struct {
	TraceID   string      `json:"traceId"`
	Domain    string      `json:"domain,omitempty"`
	DomainID  string      `json:"domainId,omitempty"`
	Operation string      `json:"operation,omitempty"`
	Status    TraceStatus `json:"status"`
	Timestamp string      `json:"timestamp"`
}

// Reporter posts Trace updates, authenticating with a service-account
// bearer token the same way create_status_trace(token, status_data)
// does in the original implementation.
type Reporter struct {
	baseURL string
	http    *http.Client
	log     *slog.Logger
}

// TokenProvider returns the bearer token a Reporter authenticates with.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// NewReporter returns a Reporter posting to baseURL.
func NewReporter(baseURL string, httpClient *http.Client) *Reporter {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Reporter{baseURL: baseURL, http: httpClient, log: slog.Default().With("component", "status")}
}

// Report posts trace with the given status, using tokens to authenticate.
// Failures are logged, never returned: a status-tracking outage must
// never fail the pipeline run it's trying to describe.
func (r *Reporter) Report(ctx context.Context, tokens TokenProvider, traceID, domain, domainID string, st TraceStatus) {
	trace := Trace{
		TraceID:   traceID,
		Domain:    domain,
		DomainID:  domainID,
		Status:    st,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	token, err := tokens.Token(ctx)
	if err != nil {
		r.log.Warn("could not obtain service token for status trace", "error", err)
		return
	}

	data, err := json.Marshal(trace)
	if err != nil {
		r.log.Warn("could not marshal status trace", "error", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL, bytes.NewReader(data))
	if err != nil {
		r.log.Warn("could not build status trace request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))

	resp, err := r.http.Do(req)
	if err != nil {
		r.log.Warn("could not send status trace", "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		r.log.Warn("status trace rejected", "status", resp.StatusCode, "traceId", traceID)
	}
}
