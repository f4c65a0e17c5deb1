// Package objectstore is the columnar-table + blob store abstraction the
// Dataset Merger and Edition Writer build on, the Go analogue of the
// teacher's SQLQueryExecutor interface in connectors/sql: one interface,
// one production implementation (S3 backed by parquet-go instead of a SQL
// driver), and a test double.
package objectstore

import (
	"context"

	"github.com/oslokommune/okdata-data-uploader/internal/model"
)

// Store is the object store this system consumes: a keyed blob store, and
// the backing of a columnar table library (§1, out-of-scope collaborators).
type Store interface {
	// ReadFrame reads the columnar table at path. existed is false when
	// no table is present at path (not an error).
	ReadFrame(ctx context.Context, path string) (frame *model.Frame, existed bool, err error)

	// WriteFrame writes frame to path with overwrite+schema-merge
	// semantics (§4.3): the path's prior contents, if any, are replaced
	// entirely by frame, whose schema already reflects any merge the
	// caller performed.
	WriteFrame(ctx context.Context, path string, frame *model.Frame) error

	// PutObject writes body verbatim to the given key.
	PutObject(ctx context.Context, key string, body []byte) error

	// DeleteAll deletes every object whose key has the given prefix.
	DeleteAll(ctx context.Context, prefix string) error

	// ListObjects lists every object key under prefix, returned as
	// filenames relative to prefix (the "/" separator and prefix
	// stripped), matching wr.s3.list_objects in the original
	// implementation.
	ListObjects(ctx context.Context, prefix string) ([]string, error)
}
