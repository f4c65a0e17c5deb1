// Package metadata is the REST client for the dataset metadata service
// (§4.5): dataset/version/edition lookups and creation, the single
// upstream every other component consults to resolve a dataset id into
// the record driving storage paths and authorization checks. Grounded on
// the teacher's HTTP-client-over-net/http idiom used by its metadata/API
// helper activities, generalized from gRPC (the teacher's own
// route.pb.gw.go surface, dropped here — see DESIGN.md) to plain REST
// since this upstream has no gRPC surface.
package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/oslokommune/okdata-data-uploader/internal/ingesterr"
)

// Dataset is the subset of the metadata service's dataset record this
// system consumes.
type Dataset struct {
	ID           string `json:"id"`
	AccessRights string `json:"accessRights"`
	SourceType   string `json:"sourceType"`
	ParentID     string `json:"parentId,omitempty"`
}

// Client talks to METADATA_API_URL.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a Client rooted at baseURL (no trailing slash).
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimSuffix(baseURL, "/"), http: httpClient}
}

// GetDataset fetches the dataset record by id, per §4.5.
func (c *Client) GetDataset(ctx context.Context, id string) (*Dataset, error) {
	var ds Dataset
	status, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/datasets/%s", id), nil, nil, &ds)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, ingesterr.New(ingesterr.DatasetNotFound, fmt.Sprintf("Dataset %s does not exist", id))
	}
	if status/100 != 2 {
		return nil, ingesterr.New(ingesterr.Internal, fmt.Sprintf("metadata service returned status %d for dataset %s", status, id))
	}
	return &ds, nil
}

// ValidateSourceType fails InvalidSourceType when ds isn't of the expected
// source type.
func ValidateSourceType(ds *Dataset, expected string) error {
	if ds.SourceType != expected {
		return ingesterr.New(ingesterr.InvalidSourceType,
			fmt.Sprintf("expected dataset of sourceType %q, got %q", expected, ds.SourceType))
	}
	return nil
}

// ValidateEdition reports whether editionID names an edition that
// actually exists, per §4.5: true iff the returned Id matches exactly.
func (c *Client) ValidateEdition(ctx context.Context, datasetID, version, edition string) (bool, error) {
	var body struct {
		ID string `json:"Id"`
	}
	path := fmt.Sprintf("/datasets/%s/versions/%s/editions/%s", datasetID, version, edition)
	status, err := c.do(ctx, http.MethodGet, path, nil, nil, &body)
	if err != nil {
		return false, err
	}
	if status/100 != 2 {
		return false, nil
	}
	return body.ID == edition, nil
}

// ValidateVersion reports whether versionID names a version that
// actually exists, analogous to ValidateEdition.
func (c *Client) ValidateVersion(ctx context.Context, datasetID, version string) (bool, error) {
	var body struct {
		ID string `json:"Id"`
	}
	path := fmt.Sprintf("/datasets/%s/versions/%s", datasetID, version)
	status, err := c.do(ctx, http.MethodGet, path, nil, nil, &body)
	if err != nil {
		return false, err
	}
	if status/100 != 2 {
		return false, nil
	}
	return body.ID == version, nil
}

// CreateEdition creates a new edition for (datasetID, version) and returns
// its id with surrounding quotes stripped, per §4.5. 409 maps to
// DataExists.
func (c *Client) CreateEdition(ctx context.Context, token, datasetID, version string) (string, error) {
	path := fmt.Sprintf("/datasets/%s/versions/%s/editions", datasetID, version)
	headers := map[string]string{"Authorization": "Bearer " + token}

	var raw json.RawMessage
	status, err := c.do(ctx, http.MethodPost, path, headers, nil, &raw)
	if err != nil {
		return "", err
	}
	if status == http.StatusConflict {
		return "", ingesterr.New(ingesterr.DataExists, fmt.Sprintf("edition already exists for %s/%s", datasetID, version))
	}
	if status/100 != 2 {
		return "", ingesterr.New(ingesterr.Internal, fmt.Sprintf("metadata service returned status %d creating edition", status))
	}
	return strings.Trim(string(raw), `"`), nil
}

// Distribution describes a published set of objects for an edition, per
// §4.5/§6.
type Distribution struct {
	Type        string   `json:"type"`
	ContentType string   `json:"contentType"`
	Filenames   []string `json:"filenames"`
}

// CreateDistribution posts a distribution descriptor for an edition,
// retrying up to three times on transient failure per §4.5.
func (c *Client) CreateDistribution(ctx context.Context, token, datasetID, version, edition string, dist Distribution) error {
	path := fmt.Sprintf("/datasets/%s/versions/%s/editions/%s/distributions", datasetID, version, edition)
	headers := map[string]string{"Authorization": "Bearer " + token}

	body, err := json.Marshal(dist)
	if err != nil {
		return fmt.Errorf("metadata: marshal distribution: %w", err)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)

	return backoff.Retry(func() error {
		status, doErr := c.do(ctx, http.MethodPost, path, headers, body, nil)
		if doErr != nil {
			return doErr
		}
		if status/100 == 2 {
			return nil
		}
		if status >= 500 {
			return fmt.Errorf("metadata: transient status %d creating distribution", status)
		}
		return backoff.Permanent(fmt.Errorf("metadata: status %d creating distribution", status))
	}, policy)
}

func (c *Client) do(ctx context.Context, method, path string, headers map[string]string, body []byte, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("metadata: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("metadata: request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("metadata: read response body: %w", err)
	}

	if out != nil && len(data) > 0 && resp.StatusCode/100 == 2 {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("metadata: decode response body: %w", err)
		}
	}

	return resp.StatusCode, nil
}

// clientTimeout is the default HTTP timeout for outbound metadata calls.
const clientTimeout = 10 * time.Second

// DefaultHTTPClient returns an *http.Client with clientTimeout applied,
// for callers that don't need to share a transport.
func DefaultHTTPClient() *http.Client {
	return &http.Client{Timeout: clientTimeout}
}
