// Package auth checks whether the caller of a push-events or
// presigned-upload request is authorized to write to a dataset (§4.7,
// §4.9). Grounded on original_source/uploader/auth.py's is_owner: a GET
// to the authorizer API with the inbound Authorization header forwarded
// verbatim, true iff the JSON response has `{"access": true}`. Any
// non-2xx status or undecodable body is treated as denied, never as an
// error — the original only ever returns a bool.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// ResourceAuthorizer checks write access to one dataset.
type ResourceAuthorizer struct {
	baseURL string
	http    *http.Client
	log     *slog.Logger
}

// NewResourceAuthorizer returns a ResourceAuthorizer calling baseURL (the
// AUTHORIZER_API root, no trailing slash).
func NewResourceAuthorizer(baseURL string, httpClient *http.Client) *ResourceAuthorizer {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &ResourceAuthorizer{baseURL: baseURL, http: httpClient, log: slog.Default().With("component", "auth")}
}

// IsOwner reports whether authorizationHeader (the raw `Authorization`
// header value, e.g. "Bearer <token>") grants write access to datasetID
// for scope okdata:dataset:write / resource okdata:dataset:<datasetID>
// (§4.7). Every failure mode — network error, non-2xx status, malformed
// body — resolves to false rather than an error, matching is_owner.
func (a *ResourceAuthorizer) IsOwner(ctx context.Context, authorizationHeader, datasetID string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/%s", a.baseURL, datasetID), nil)
	if err != nil {
		a.log.Error("failed to build authorization request", "datasetId", datasetID, "error", err)
		return false
	}
	req.Header.Set("Authorization", authorizationHeader)

	resp, err := a.http.Do(req)
	if err != nil {
		a.log.Error("authorization request failed", "datasetId", datasetID, "error", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		a.log.Error("authorization request rejected", "datasetId", datasetID, "status", resp.StatusCode)
		return false
	}

	var body struct {
		Access bool `json:"access"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		a.log.Error("authorization response decode failure", "datasetId", datasetID, "error", err)
		return false
	}
	return body.Access
}
