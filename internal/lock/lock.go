// Package lock implements the distributed single-writer lock (§4.6): a
// DynamoDB conditional put/delete guarding serialized writes to one
// dataset's columnar table, grounded on
// original_source/uploader/handlers/push_dataset_events.py's
// lock_table.put_item/delete_item loop, translated into the teacher's
// AWS-SDK-v2-client-plus-narrow-interface idiom.
package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/oslokommune/okdata-data-uploader/internal/ingesterr"
)

const tableName = "delta-write-lock"

// DynamoDBAPI is the subset of the DynamoDB client the lock needs.
type DynamoDBAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// Lock guards the delta-write-lock table's DatasetId partition key.
type Lock struct {
	client       DynamoDBAPI
	waitInterval time.Duration
	retries      int
	log          *slog.Logger
}

// New returns a Lock that waits waitSeconds between attempts, up to
// retries attempts, matching LOCK_WAIT_SECONDS/LOCK_RETRIES (§4.6).
func New(client DynamoDBAPI, waitSeconds, retries int) *Lock {
	return &Lock{
		client:       client,
		waitInterval: time.Duration(waitSeconds) * time.Second,
		retries:      retries,
		log:          slog.Default().With("component", "lock"),
	}
}

type lockItem struct {
	DatasetId string
	Timestamp string
}

// WithLock acquires the lock for datasetID, runs fn, and releases the lock
// on every exit path — success, error, or panic — per §4.6. If the
// acquisition retry budget is exhausted, it returns a Locked error without
// calling fn.
func (l *Lock) WithLock(ctx context.Context, datasetID string, fn func(ctx context.Context) error) error {
	for attempt := 0; attempt < l.retries; attempt++ {
		acquired, err := l.tryAcquire(ctx, datasetID)
		if err != nil {
			return fmt.Errorf("lock: acquire for %q: %w", datasetID, err)
		}
		if !acquired {
			l.log.Info("lock held by another writer, waiting", "datasetId", datasetID, "attempt", attempt)
			select {
			case <-time.After(l.waitInterval):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		err = l.runLocked(ctx, datasetID, fn)
		return err
	}

	return ingesterr.New(ingesterr.Locked,
		"The dataset remains write-locked after several retries. This should not happen, please contact Dataspeilet.")
}

// runLocked invokes fn while holding the lock, guaranteeing release
// (including on panic) before returning or re-panicking.
func (l *Lock) runLocked(ctx context.Context, datasetID string, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if releaseErr := l.release(ctx, datasetID); releaseErr != nil {
			l.log.Error("failed to release lock", "datasetId", datasetID, "error", releaseErr)
		}
	}()
	return fn(ctx)
}

func (l *Lock) tryAcquire(ctx context.Context, datasetID string) (bool, error) {
	item, err := attributevalue.MarshalMap(lockItem{
		DatasetId: datasetID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return false, fmt.Errorf("marshal lock item: %w", err)
	}

	_, err = l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(DatasetId)"),
	})
	if err == nil {
		return true, nil
	}

	var condFailed *types.ConditionalCheckFailedException
	if errors.As(err, &condFailed) {
		return false, nil
	}
	return false, err
}

func (l *Lock) release(ctx context.Context, datasetID string) error {
	key, err := attributevalue.MarshalMap(struct{ DatasetId string }{DatasetId: datasetID})
	if err != nil {
		return fmt.Errorf("marshal lock key: %w", err)
	}
	_, err = l.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(tableName),
		Key:       key,
	})
	return err
}
