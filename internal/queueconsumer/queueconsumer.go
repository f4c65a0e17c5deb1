// Package queueconsumer implements the Queue Consumer (§4.8): the async
// counterpart of the Request Dispatcher's v2 path. One SQS message in,
// one pipeline run, no caller to answer back to — errors surface only
// through SQS redelivery/DLQ and status traces (the documented gap, see
// DESIGN.md's Open Question decision 1). Grounded on
// original_source/uploader/handlers/handle_queue.py's
// event_queue_handler: same trace_id extraction from message
// attributes, same dataset lookup and Merger/Edition-Writer/Notifier
// sequence, same terminal FINISHED status trace.
package queueconsumer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/oslokommune/okdata-data-uploader/internal/dispatch"
	"github.com/oslokommune/okdata-data-uploader/internal/editionwriter"
	"github.com/oslokommune/okdata-data-uploader/internal/metadata"
	"github.com/oslokommune/okdata-data-uploader/internal/model"
	"github.com/oslokommune/okdata-data-uploader/internal/notifier"
	"github.com/oslokommune/okdata-data-uploader/internal/objectstore"
	"github.com/oslokommune/okdata-data-uploader/internal/serviceauth"
	"github.com/oslokommune/okdata-data-uploader/internal/status"
)

// MetadataClient is the subset of *metadata.Client the consumer needs.
type MetadataClient interface {
	GetDataset(ctx context.Context, id string) (*metadata.Dataset, error)
}

// Message is one queue record, already stripped of SQS transport detail
// by the caller (the cmd/ Lambda entry point unpacks events.SQSMessage
// into this).
type Message struct {
	Body    []byte
	TraceID string
}

// Consumer wires the collaborators one queue message needs to complete
// a push-events pipeline run.
type Consumer struct {
	store    objectstore.Store
	metadata MetadataClient
	writer   *editionwriter.Writer
	notifier *notifier.Notifier
	tokens   serviceauth.TokenProvider
	statuses *status.Reporter
	log      *slog.Logger
}

// New returns a Consumer.
func New(store objectstore.Store, metadataClient MetadataClient, writer *editionwriter.Writer, n *notifier.Notifier, tokens serviceauth.TokenProvider, statuses *status.Reporter) *Consumer {
	return &Consumer{
		store:    store,
		metadata: metadataClient,
		writer:   writer,
		notifier: n,
		tokens:   tokens,
		statuses: statuses,
		log:      slog.Default().With("component", "queueconsumer"),
	}
}

// envelope mirrors dispatch.Request's shape: the consumer parses the
// exact same body the dispatcher enqueued, without re-checking
// authorization (it was already checked once, at enqueue time). Events
// is kept as raw JSON and re-decoded with json.Decoder.UseNumber in
// toRows, the same reason dispatch.Request does it: a plain
// map[string]any decode would collapse every integer to float64 before
// it ever reaches the Type Inferencer.
type envelope struct {
	DatasetID string            `json:"datasetId"`
	Events    []json.RawMessage `json:"events"`
	MergeOn   []string          `json:"mergeOn,omitempty"`
	Version   string            `json:"version,omitempty"`
}

// Handle runs one queued push-events message to completion.
func (c *Consumer) Handle(ctx context.Context, msg Message) (string, error) {
	log := c.log.With("traceId", msg.TraceID)

	var env envelope
	if err := json.Unmarshal(msg.Body, &env); err != nil {
		return "", fmt.Errorf("queueconsumer: parse message body: %w", err)
	}
	if env.Version == "" {
		env.Version = "1"
	}

	log = log.With("datasetId", env.DatasetID, "version", env.Version)
	domainID := fmt.Sprintf("%s/%s", env.DatasetID, env.Version)

	dataset, err := c.metadata.GetDataset(ctx, env.DatasetID)
	if err != nil {
		c.reportFailure(ctx, msg.TraceID, domainID)
		return "", err
	}
	if err := metadata.ValidateSourceType(dataset, "event"); err != nil {
		c.reportFailure(ctx, msg.TraceID, domainID)
		return "", err
	}

	rows, err := toRows(env.Events)
	if err != nil {
		c.reportFailure(ctx, msg.TraceID, domainID)
		return "", err
	}

	result, err := dispatch.RunPipeline(ctx, c.store, c.writer, c.notifier, c.tokens,
		toObjectstoreDataset(dataset), env.Version, rows, env.MergeOn)
	if err != nil {
		log.Error("queue consumer pipeline run failed", "error", err)
		c.reportFailure(ctx, msg.TraceID, domainID)
		return "", err
	}

	if c.statuses != nil {
		c.statuses.Report(ctx, c.tokens, msg.TraceID, "dataset", domainID, status.Finished)
	}
	log.Info("queue consumer pipeline run finished", "editionId", result.EditionID)
	return result.EditionID, nil
}

func (c *Consumer) reportFailure(ctx context.Context, traceID, domainID string) {
	if c.statuses != nil {
		c.statuses.Report(ctx, c.tokens, traceID, "dataset", domainID, status.Failed)
	}
}

func toObjectstoreDataset(d *metadata.Dataset) objectstore.Dataset {
	return objectstore.Dataset{
		ID:           d.ID,
		AccessRights: d.AccessRights,
		SourceType:   d.SourceType,
		ParentID:     d.ParentID,
	}
}

func toRows(events []json.RawMessage) ([]model.Row, error) {
	rows := make([]model.Row, len(events))
	for i, e := range events {
		dec := json.NewDecoder(bytes.NewReader(e))
		dec.UseNumber()

		var row model.Row
		if err := dec.Decode(&row); err != nil {
			return nil, fmt.Errorf("queueconsumer: event %d is not a valid JSON object: %w", i, err)
		}
		rows[i] = row
	}
	return rows, nil
}
