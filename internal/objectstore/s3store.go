package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/oslokommune/okdata-data-uploader/internal/model"
)

// S3API is the subset of the S3 client S3Store needs, narrowed for
// testability the way the teacher narrows its SQL driver interfaces in
// connectors/sql/query_executor.go.
type S3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, opts ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// S3Store is the production Store backed by a single S3 bucket, one object
// per path plus a parquet encoding for columnar frames.
type S3Store struct {
	client   S3API
	uploader *manager.Uploader
	bucket   string
	log      *slog.Logger
}

// NewS3Store returns an S3Store writing to bucket via client.
func NewS3Store(client *s3.Client, bucket string) *S3Store {
	return &S3Store{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		log:      slog.Default().With("component", "s3store", "bucket", bucket),
	}
}

func (s *S3Store) ReadFrame(ctx context.Context, path string) (*model.Frame, bool, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("objectstore: get object %q: %w", path, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, true, fmt.Errorf("objectstore: read object %q: %w", path, err)
	}

	frame, err := DecodeFrame(data)
	if err != nil {
		return nil, true, fmt.Errorf("objectstore: decode frame %q: %w", path, err)
	}
	return frame, true, nil
}

func (s *S3Store) WriteFrame(ctx context.Context, path string, frame *model.Frame) error {
	data, err := EncodeFrame(frame)
	if err != nil {
		return fmt.Errorf("objectstore: encode frame %q: %w", path, err)
	}
	return s.PutObject(ctx, path, data)
}

func (s *S3Store) PutObject(ctx context.Context, key string, body []byte) error {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(body),
		ACL:    types.ObjectCannedACLPrivate,
	})
	if err != nil {
		return fmt.Errorf("objectstore: put object %q: %w", key, err)
	}
	return nil
}

func (s *S3Store) DeleteAll(ctx context.Context, prefix string) error {
	keys, err := s.ListObjects(ctx, prefix)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}

	objects := make([]types.ObjectIdentifier, len(keys))
	for i, name := range keys {
		key := prefix
		if name != "" {
			key = strings.TrimSuffix(prefix, "/") + "/" + name
		}
		objects[i] = types.ObjectIdentifier{Key: aws.String(key)}
	}

	_, err = s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(s.bucket),
		Delete: &types.Delete{Objects: objects},
	})
	if err != nil {
		return fmt.Errorf("objectstore: delete objects under %q: %w", prefix, err)
	}
	s.log.Info("deleted objects", "prefix", prefix, "count", len(objects))
	return nil
}

func (s *S3Store) ListObjects(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	var token *string

	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("objectstore: list objects under %q: %w", prefix, err)
		}
		for _, obj := range out.Contents {
			names = append(names, strings.TrimPrefix(strings.TrimPrefix(aws.ToString(obj.Key), prefix), "/"))
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		token = out.NextContinuationToken
	}
	return names, nil
}
