// Command pushevents is the Lambda entry point for the Request
// Dispatcher (§4.7): API Gateway invokes it once per push-events HTTP
// request.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/oslokommune/okdata-data-uploader/internal/auth"
	"github.com/oslokommune/okdata-data-uploader/internal/config"
	"github.com/oslokommune/okdata-data-uploader/internal/dispatch"
	"github.com/oslokommune/okdata-data-uploader/internal/editionwriter"
	"github.com/oslokommune/okdata-data-uploader/internal/lock"
	"github.com/oslokommune/okdata-data-uploader/internal/metadata"
	"github.com/oslokommune/okdata-data-uploader/internal/notifier"
	"github.com/oslokommune/okdata-data-uploader/internal/objectstore"
	"github.com/oslokommune/okdata-data-uploader/internal/queue"
	"github.com/oslokommune/okdata-data-uploader/internal/serviceauth"
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
	authorizer := auth.NewResourceAuthorizer(cfg.AuthorizerAPI, http.DefaultClient)
	lockTable := lock.New(dynamodb.NewFromConfig(awsCfg), cfg.LockWaitSeconds, cfg.LockRetries)
	eventQueue := queue.New(sqs.NewFromConfig(awsCfg), cfg.EventQueueURL)
	writer := editionwriter.New(store, metadataClient)
	n := notifier.New(dynamodb.NewFromConfig(awsCfg), http.DefaultClient, cfg.EmailAPIURL, cfg.EmailAPIKey)
	tokens := serviceauth.NewClientCredentials(cfg.LoginURL, cfg.ServiceClientID, cfg.ServiceClientSecret, http.DefaultClient)

	d, err := dispatch.New(store, metadataClient, authorizer, lockTable, eventQueue, writer, n, tokens, cfg.EnableAuth)
	if err != nil {
		slog.Error("could not build dispatcher", "error", err)
		os.Exit(1)
	}

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		resp := d.Handle(ctx, []byte(req.Body), req.Headers["Authorization"])
		return events.APIGatewayProxyResponse{
			StatusCode: resp.StatusCode,
			Headers:    resp.Headers,
			Body:       resp.Body,
		}, nil
	})
}
