// Command queueconsumer is the Lambda entry point for the Queue
// Consumer (§4.8): SQS invokes it once per message, batch size 1.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/oslokommune/okdata-data-uploader/internal/config"
	"github.com/oslokommune/okdata-data-uploader/internal/editionwriter"
	"github.com/oslokommune/okdata-data-uploader/internal/metadata"
	"github.com/oslokommune/okdata-data-uploader/internal/notifier"
	"github.com/oslokommune/okdata-data-uploader/internal/objectstore"
	"github.com/oslokommune/okdata-data-uploader/internal/queueconsumer"
	"github.com/oslokommune/okdata-data-uploader/internal/serviceauth"
	"github.com/oslokommune/okdata-data-uploader/internal/status"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		slog.Error("could not load AWS config", "error", err)
		os.Exit(1)
	}

	store := objectstore.NewS3Store(s3.NewFromConfig(awsCfg), cfg.Bucket)
	metadataClient := metadata.NewClient(cfg.MetadataAPIURL, http.DefaultClient)
	writer := editionwriter.New(store, metadataClient)
	n := notifier.New(dynamodb.NewFromConfig(awsCfg), http.DefaultClient, cfg.EmailAPIURL, cfg.EmailAPIKey)
	tokens := serviceauth.NewClientCredentials(cfg.LoginURL, cfg.ServiceClientID, cfg.ServiceClientSecret, http.DefaultClient)
	statuses := status.NewReporter(cfg.StatusAPIURL, http.DefaultClient)

	consumer := queueconsumer.New(store, metadataClient, writer, n, tokens, statuses)

	lambda.Start(func(ctx context.Context, evt events.SQSEvent) error {
		if len(evt.Records) == 0 {
			return nil
		}
		// Batch size on the trigger is 1: there is never more than one
		// record per invocation.
		record := evt.Records[0]

		traceID := ""
		if attr, ok := record.MessageAttributes["trace_id"]; ok && attr.StringValue != nil {
			traceID = *attr.StringValue
		}

		_, err := consumer.Handle(ctx, queueconsumer.Message{
			Body:    []byte(record.Body),
			TraceID: traceID,
		})
		if err != nil {
			return fmt.Errorf("queueconsumer: %w", err)
		}
		return nil
	})
}
