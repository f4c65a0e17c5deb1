// Package dispatch implements the Request Dispatcher (§4.7): the
// synchronous entry point for push-events ingestion, validating the
// envelope, checking authorization, resolving the dataset, and branching
// into the v1 (lock -> merge -> write -> notify) or v2 (enqueue) path.
// Grounded on
// original_source/uploader/handlers/push_dataset_events.py's handler
// function, restructured into the teacher's
// one-struct-per-pipeline-stage dependency shape.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/oslokommune/okdata-data-uploader/internal/editionwriter"
	"github.com/oslokommune/okdata-data-uploader/internal/ingesterr"
	"github.com/oslokommune/okdata-data-uploader/internal/merger"
	"github.com/oslokommune/okdata-data-uploader/internal/metadata"
	"github.com/oslokommune/okdata-data-uploader/internal/model"
	"github.com/oslokommune/okdata-data-uploader/internal/notifier"
	"github.com/oslokommune/okdata-data-uploader/internal/objectstore"
	"github.com/oslokommune/okdata-data-uploader/internal/serviceauth"
)

// maxSyncPayloadBytes is the 256 KiB cap the v2 (async) path enforces on
// the raw request body, per §4.7 step 5 / §6.
const maxSyncPayloadBytes = 256 * 1024

// MetadataClient is the subset of *metadata.Client the dispatcher needs.
type MetadataClient interface {
	GetDataset(ctx context.Context, id string) (*metadata.Dataset, error)
}

// Authorizer checks write access to a dataset.
type Authorizer interface {
	IsOwner(ctx context.Context, authorizationHeader, datasetID string) bool
}

// Locker runs fn while holding the per-dataset write lock.
type Locker interface {
	WithLock(ctx context.Context, datasetID string, fn func(ctx context.Context) error) error
}

// Enqueuer sends the raw request body onto the async ingestion queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, datasetID string, body []byte) (traceID string, err error)
}

// Dispatcher wires every collaborator the push-events request needs.
type Dispatcher struct {
	store    objectstore.Store
	metadata MetadataClient
	auth     Authorizer
	lock     Locker
	queue    Enqueuer
	writer   *editionwriter.Writer
	notifier *notifier.Notifier
	tokens   serviceauth.TokenProvider
	schema   *jsonschema.Schema
	log      *slog.Logger

	enableAuth bool
}

// New builds a Dispatcher, compiling the pushEventsRequest schema once.
func New(store objectstore.Store, metadataClient MetadataClient, auth Authorizer, lock Locker, queue Enqueuer, writer *editionwriter.Writer, n *notifier.Notifier, tokens serviceauth.TokenProvider, enableAuth bool) (*Dispatcher, error) {
	schema, err := compilePushEventsSchema()
	if err != nil {
		return nil, err
	}
	return &Dispatcher{
		store:      store,
		metadata:   metadataClient,
		auth:       auth,
		lock:       lock,
		queue:      queue,
		writer:     writer,
		notifier:   n,
		tokens:     tokens,
		schema:     schema,
		enableAuth: enableAuth,
		log:        slog.Default().With("component", "dispatch"),
	}, nil
}

// Request is the inbound push-events envelope (§4.7/§6). Events is kept
// as raw JSON here and re-decoded with json.Decoder.UseNumber in toRows,
// so integer values survive as json.Number into the Type Inferencer
// instead of collapsing to float64 through a plain json.Unmarshal.
type Request struct {
	DatasetID  string            `json:"datasetId"`
	Events     []json.RawMessage `json:"events"`
	MergeOn    []string          `json:"mergeOn,omitempty"`
	Version    string            `json:"version,omitempty"`
	APIVersion int               `json:"apiVersion,omitempty"`
}

// Response is the API-Gateway-shaped response envelope (§6).
type Response struct {
	IsBase64Encoded bool              `json:"isBase64Encoded"`
	StatusCode      int               `json:"statusCode"`
	Headers         map[string]string `json:"headers"`
	Body            string            `json:"body"`
}

func newResponse(statusCode int, body any) Response {
	data, err := json.Marshal(body)
	if err != nil {
		data = []byte(`{"message":"internal server error"}`)
		statusCode = ingesterr.Status[ingesterr.Internal]
	}
	return Response{
		StatusCode: statusCode,
		Headers:    map[string]string{"Access-Control-Allow-Origin": "*"},
		Body:       string(data),
	}
}

func errorResponse(err error) Response {
	return newResponse(ingesterr.StatusFor(err), map[string]string{"message": messageFor(err)})
}

// messageFor returns the surfaced body text from §7's table.
func messageFor(err error) string {
	var ierr *ingesterr.Error
	if !errors.As(err, &ierr) {
		return "Internal server error"
	}
	switch ierr.Kind {
	case ingesterr.InvalidJSON:
		return "Body is not a valid JSON document"
	case ingesterr.SchemaViolation:
		return fmt.Sprintf("JSON document does not conform to the given schema: %s", ierr.Message)
	case ingesterr.InvalidDatasetEdition:
		if ierr.Message == "Invalid dataset edition format" {
			return ierr.Message
		}
		return "Incorrect dataset edition"
	case ingesterr.Unauthorized:
		return "Forbidden"
	case ingesterr.DatasetNotFound:
		return ierr.Message
	default:
		return ierr.Message
	}
}

// Handle runs the full state machine of §4.7 for one raw request body and
// Authorization header value.
func (d *Dispatcher) Handle(ctx context.Context, rawBody []byte, authorizationHeader string) Response {
	req, err := d.parseAndValidate(rawBody)
	if err != nil {
		return errorResponse(err)
	}
	if req.Version == "" {
		req.Version = "1"
	}

	if d.enableAuth && !d.auth.IsOwner(ctx, authorizationHeader, req.DatasetID) {
		return errorResponse(ingesterr.New(ingesterr.Unauthorized, "Forbidden"))
	}

	dataset, err := d.metadata.GetDataset(ctx, req.DatasetID)
	if err != nil {
		return errorResponse(err)
	}
	if err := metadata.ValidateSourceType(dataset, "event"); err != nil {
		return errorResponse(err)
	}

	if req.APIVersion == 2 {
		return d.handleAsync(ctx, req, rawBody)
	}
	return d.handleSync(ctx, req, dataset)
}

func (d *Dispatcher) parseAndValidate(rawBody []byte) (*Request, error) {
	var instance any
	if err := json.Unmarshal(rawBody, &instance); err != nil {
		return nil, ingesterr.New(ingesterr.InvalidJSON, "Body is not a valid JSON document")
	}

	if err := d.schema.Validate(instance); err != nil {
		return nil, ingesterr.Wrap(ingesterr.SchemaViolation, err, "%s", err.Error())
	}

	var req Request
	if err := json.Unmarshal(rawBody, &req); err != nil {
		return nil, ingesterr.New(ingesterr.InvalidJSON, "Body is not a valid JSON document")
	}
	return &req, nil
}

func (d *Dispatcher) handleAsync(ctx context.Context, req *Request, rawBody []byte) Response {
	if len(rawBody) > maxSyncPayloadBytes {
		return errorResponse(ingesterr.New(ingesterr.PayloadTooLarge, "request body exceeds 256 KiB"))
	}

	if _, err := d.queue.Enqueue(ctx, req.DatasetID, rawBody); err != nil {
		return errorResponse(ingesterr.Wrap(ingesterr.QueueUnavailable, err, "failed to enqueue request"))
	}
	return newResponse(200, map[string]string{"message": "accepted"})
}

func (d *Dispatcher) handleSync(ctx context.Context, req *Request, dataset *metadata.Dataset) Response {
	var editionID string

	err := d.lock.WithLock(ctx, req.DatasetID, func(ctx context.Context) error {
		rows, err := toRows(req.Events)
		if err != nil {
			return err
		}
		result, err := RunPipeline(ctx, d.store, d.writer, d.notifier, d.tokens, toObjectstoreDataset(dataset), req.Version, rows, req.MergeOn)
		if err != nil {
			return err
		}
		editionID = result.EditionID
		return nil
	})
	if err != nil {
		return errorResponse(err)
	}

	return newResponse(201, map[string]string{"editionId": editionID})
}

// RunPipeline runs the Merger -> Edition Writer -> Notifier sequence
// shared by the synchronous dispatch path (§4.7 step 6) and the Queue
// Consumer (§4.8).
func RunPipeline(ctx context.Context, store objectstore.Store, writer *editionwriter.Writer, n *notifier.Notifier, tokens serviceauth.TokenProvider, dataset objectstore.Dataset, version string, rows []model.Row, mergeOn []string) (*editionwriter.Result, error) {
	latestID := objectstore.EditionID{DatasetID: dataset.ID, Version: version, Edition: "latest"}
	path, err := objectstore.Path(dataset, latestID, objectstore.StageProcessed, "")
	if err != nil {
		return nil, fmt.Errorf("dispatch: compute latest path: %w", err)
	}

	merged, err := merger.Merge(ctx, store, objectstore.JoinPath(path, "data.parquet"), rows, mergeOn)
	if err != nil {
		return nil, err
	}

	token, err := tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("dispatch: obtain service token: %w", err)
	}

	result, err := writer.Publish(ctx, token, dataset, version, merged, rows)
	if err != nil {
		return nil, err
	}

	n.NotifyNewColumns(ctx, dataset.ID, merged.NewColumns)
	return result, nil
}

func toObjectstoreDataset(d *metadata.Dataset) objectstore.Dataset {
	return objectstore.Dataset{
		ID:           d.ID,
		AccessRights: d.AccessRights,
		SourceType:   d.SourceType,
		ParentID:     d.ParentID,
	}
}

// toRows re-decodes each raw event with a number-preserving decoder: a
// plain json.Unmarshal into map[string]any turns every JSON number into
// float64, which would make the Type Inferencer's int/float
// discrimination unreachable from the real request path. The schema
// validation pass earlier already rejected malformed JSON, so decode
// errors here are not expected in practice.
func toRows(events []json.RawMessage) ([]model.Row, error) {
	rows := make([]model.Row, len(events))
	for i, e := range events {
		dec := json.NewDecoder(bytes.NewReader(e))
		dec.UseNumber()

		var row model.Row
		if err := dec.Decode(&row); err != nil {
			return nil, ingesterr.Wrap(ingesterr.InvalidJSON, err, "event %d is not a valid JSON object", i)
		}
		rows[i] = row
	}
	return rows, nil
}
