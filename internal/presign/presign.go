// Package presign implements the Presigned Upload contract (§4.9): given
// an edition (existing or auto-created) and a filename, mint a
// short-lived signed upload URL into the dataset's raw/<confidentiality>
// path and record a status trace describing the upload. Grounded on
// original_source/uploader/common.py's generate_presigned_post combined
// with original_source/uploader/handlers (edition resolution: validate
// the given edition id, or auto-create one when only datasetId/version
// is given).
//
// aws-sdk-go-v2 has no equivalent of boto3's generate_presigned_post
// (browser-form POST policy signing): its s3.PresignClient presigns
// individual requests (PUT, GET, ...), not multipart POST policies. This
// system presigns a PUT instead of a POST, keeping the same contract
// (expiring write-once upload URL, 300s, private ACL) within what the
// SDK actually offers, rather than hand-rolling SigV4 POST-policy
// signing outside the SDK.
package presign

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/oslokommune/okdata-data-uploader/internal/ingesterr"
	"github.com/oslokommune/okdata-data-uploader/internal/metadata"
	"github.com/oslokommune/okdata-data-uploader/internal/objectstore"
	"github.com/oslokommune/okdata-data-uploader/internal/serviceauth"
	"github.com/oslokommune/okdata-data-uploader/internal/status"
)

// expiresIn is the presigned URL's validity window (§4.9, §5).
const expiresIn = 300 * time.Second

// MetadataClient is the subset of *metadata.Client the presign handler
// needs.
type MetadataClient interface {
	GetDataset(ctx context.Context, id string) (*metadata.Dataset, error)
	ValidateVersion(ctx context.Context, datasetID, version string) (bool, error)
	ValidateEdition(ctx context.Context, datasetID, version, edition string) (bool, error)
	CreateEdition(ctx context.Context, token, datasetID, version string) (string, error)
}

// PresignAPI is the subset of *s3.PresignClient this package needs,
// narrowed for testability.
type PresignAPI interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Request is the inbound presign request (§6).
type Request struct {
	EditionID string
	Filename  string
	Token     string
	Principal string
}

// Result is the signed upload descriptor returned to the caller.
type Result struct {
	URL       string
	Fields    map[string]string
	TraceID   string
	S3Path    string
	ExpiresIn int
}

// Handler resolves an edition and mints a signed upload URL for it.
type Handler struct {
	metadata MetadataClient
	presign  PresignAPI
	bucket   string
	tokens   serviceauth.TokenProvider
	statuses *status.Reporter
	traceIDs func() string
	log      *slog.Logger
}

// New returns a Handler. traceIDFunc mints a trace id per request (the
// caller supplies it so tests can control it deterministically; the
// production wiring passes uuid.NewString).
func New(metadataClient MetadataClient, presignClient PresignAPI, bucket string, tokens serviceauth.TokenProvider, statuses *status.Reporter, traceIDFunc func() string) *Handler {
	return &Handler{
		metadata: metadataClient,
		presign:  presignClient,
		bucket:   bucket,
		tokens:   tokens,
		statuses: statuses,
		traceIDs: traceIDFunc,
		log:      slog.Default().With("component", "presign"),
	}
}

// Handle resolves req.EditionID (auto-creating an edition when only
// "datasetId/version" is given), mints a signed PUT URL, and records a
// status trace.
func (h *Handler) Handle(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	datasetID, version, edition, err := splitEditionID(req.EditionID)
	if err != nil {
		return nil, err
	}

	dataset, err := h.metadata.GetDataset(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	if err := metadata.ValidateSourceType(dataset, "file"); err != nil {
		return nil, err
	}

	if edition == "" {
		ok, err := h.metadata.ValidateVersion(ctx, datasetID, version)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ingesterr.New(ingesterr.InvalidDatasetEdition, "Incorrect dataset edition")
		}
		edition, err = h.metadata.CreateEdition(ctx, req.Token, datasetID, version)
		if err != nil {
			return nil, err
		}
		editionID, err := objectstore.ParseEditionID(edition)
		if err != nil {
			return nil, fmt.Errorf("presign: parse created edition id %q: %w", edition, err)
		}
		edition = editionID.Edition
	} else {
		ok, err := h.metadata.ValidateEdition(ctx, datasetID, version, edition)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ingesterr.New(ingesterr.InvalidDatasetEdition, "Incorrect dataset edition")
		}
	}

	editionID := objectstore.EditionID{DatasetID: datasetID, Version: version, Edition: edition}
	path, err := objectstore.Path(toObjectstoreDataset(dataset), editionID, objectstore.StageRaw, req.Filename)
	if err != nil {
		return nil, fmt.Errorf("presign: compute upload path: %w", err)
	}

	signed, err := h.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: &h.bucket,
		Key:    &path,
		ACL:    types.ObjectCannedACLPrivate,
	}, func(o *s3.PresignOptions) {
		o.Expires = expiresIn
	})
	if err != nil {
		return nil, fmt.Errorf("presign: sign upload url: %w", err)
	}

	traceID := h.traceIDs()
	domainID := fmt.Sprintf("%s/%s", datasetID, version)
	if h.statuses != nil {
		h.statuses.Report(ctx, h.tokens, traceID, "dataset", domainID, status.Finished)
	}

	h.log.Info("presigned upload url minted", "datasetId", datasetID, "path", path, "durationMs", time.Since(start).Milliseconds())

	return &Result{
		URL:       signed.URL,
		Fields:    map[string]string{"acl": "private"},
		TraceID:   traceID,
		S3Path:    path,
		ExpiresIn: int(expiresIn.Seconds()),
	}, nil
}

func splitEditionID(raw string) (datasetID, version, edition string, err error) {
	id, err := objectstore.ParseEditionID(raw)
	if err == nil {
		return id.DatasetID, id.Version, id.Edition, nil
	}
	// Allow "datasetId/version" (no edition segment yet) for the
	// auto-create path §4.9 describes.
	parts := splitTwo(raw)
	if parts == nil {
		return "", "", "", ingesterr.New(ingesterr.InvalidDatasetEdition, "Invalid dataset edition format")
	}
	return parts[0], parts[1], "", nil
}

func splitTwo(s string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil
	}
	return parts
}

func toObjectstoreDataset(d *metadata.Dataset) objectstore.Dataset {
	return objectstore.Dataset{
		ID:           d.ID,
		AccessRights: d.AccessRights,
		SourceType:   d.SourceType,
		ParentID:     d.ParentID,
	}
}
