// Package editionwriter implements the Edition Writer (§4.3): publishes a
// merged frame as a new dataset edition, archiving the raw input batch
// first and registering a distribution descriptor last. Grounded on
// original_source/uploader/handlers/push_dataset_events.py's
// _handle_events (auto-create edition, write raw + processed, create
// distribution), restructured into the teacher's
// one-orchestrator-function-calling-narrow-collaborators shape.
package editionwriter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/oslokommune/okdata-data-uploader/internal/merger"
	"github.com/oslokommune/okdata-data-uploader/internal/metadata"
	"github.com/oslokommune/okdata-data-uploader/internal/model"
	"github.com/oslokommune/okdata-data-uploader/internal/objectstore"
)

// MetadataClient is the subset of *metadata.Client the Edition Writer
// needs, narrowed for testability.
type MetadataClient interface {
	CreateEdition(ctx context.Context, token, datasetID, version string) (string, error)
	CreateDistribution(ctx context.Context, token, datasetID, version, edition string, dist metadata.Distribution) error
}

// Writer publishes merged frames as new dataset editions. The token it
// writes with is supplied by the caller per-call (RunPipeline obtains it
// from serviceauth once per pipeline run) rather than held here, so the
// Writer itself stays agnostic of how that token is produced.
type Writer struct {
	store    objectstore.Store
	metadata MetadataClient
	log      *slog.Logger
}

// New returns a Writer backed by store and metadata.
func New(store objectstore.Store, metadataClient MetadataClient) *Writer {
	return &Writer{store: store, metadata: metadataClient, log: slog.Default().With("component", "editionwriter")}
}

// Result is what publishing an edition produces.
type Result struct {
	EditionID string
}

// Publish runs §4.3 steps 1-7: auto-create an edition id, compute storage
// paths, archive the raw batch, clear `latest`, write the new edition path,
// rewrite `latest`, enumerate the new edition path, and register a
// distribution.
func (w *Writer) Publish(ctx context.Context, token string, dataset objectstore.Dataset, version string, merged *merger.Result, rawBatch []model.Row) (*Result, error) {
	edition, err := w.metadata.CreateEdition(ctx, token, dataset.ID, version)
	if err != nil {
		return nil, err
	}

	editionID, err := objectstore.ParseEditionID(edition)
	if err != nil {
		return nil, fmt.Errorf("editionwriter: parse created edition id %q: %w", edition, err)
	}

	rawPath, err := objectstore.Path(dataset, editionID, objectstore.StageRaw, "data.json")
	if err != nil {
		return nil, fmt.Errorf("editionwriter: compute raw path: %w", err)
	}
	newEditionPath, err := objectstore.Path(dataset, editionID, objectstore.StageProcessed, "")
	if err != nil {
		return nil, fmt.Errorf("editionwriter: compute new edition path: %w", err)
	}
	latestID := objectstore.EditionID{DatasetID: dataset.ID, Version: version, Edition: "latest"}
	latestPath, err := objectstore.Path(dataset, latestID, objectstore.StageProcessed, "")
	if err != nil {
		return nil, fmt.Errorf("editionwriter: compute latest path: %w", err)
	}

	// Step 3: the raw archive precedes every destructive step, so the
	// input payload is always recoverable even if a later step fails.
	rawJSON, err := json.Marshal(rawBatch)
	if err != nil {
		return nil, fmt.Errorf("editionwriter: marshal raw batch: %w", err)
	}
	if err := w.store.PutObject(ctx, rawPath, rawJSON); err != nil {
		return nil, fmt.Errorf("editionwriter: write raw archive: %w", err)
	}

	// Steps 4-5: not atomic across the pair of paths by design (§4.3);
	// the new edition path is authoritative and a crash here converges
	// on re-run.
	if err := w.store.DeleteAll(ctx, latestPath+"/"); err != nil {
		return nil, fmt.Errorf("editionwriter: clear latest path: %w", err)
	}
	if err := w.store.WriteFrame(ctx, objectstore.JoinPath(newEditionPath, "data.parquet"), merged.Frame); err != nil {
		return nil, fmt.Errorf("editionwriter: write new edition frame: %w", err)
	}
	if err := w.store.WriteFrame(ctx, objectstore.JoinPath(latestPath, "data.parquet"), merged.Frame); err != nil {
		return nil, fmt.Errorf("editionwriter: write latest frame: %w", err)
	}

	filenames, err := w.store.ListObjects(ctx, newEditionPath)
	if err != nil {
		return nil, fmt.Errorf("editionwriter: enumerate new edition objects: %w", err)
	}

	dist := metadata.Distribution{
		Type:        "file",
		ContentType: "application/vnd.apache.parquet",
		Filenames:   filenames,
	}
	if err := w.metadata.CreateDistribution(ctx, token, dataset.ID, version, editionID.Edition, dist); err != nil {
		return nil, fmt.Errorf("editionwriter: create distribution: %w", err)
	}

	w.log.Info("published edition", "datasetId", dataset.ID, "editionId", editionID.String())
	return &Result{EditionID: editionID.String()}, nil
}
