// Command metadataproxy is a narrow Lambda handler that looks up a
// dataset's metadata record without going through the ingestion
// pipeline, recovered from original_source/src/metadata_api_proxy.py
// (not part of the distilled spec's component list, but not excluded by
// any Non-goal either).
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/oslokommune/okdata-data-uploader/internal/config"
	"github.com/oslokommune/okdata-data-uploader/internal/ingesterr"
	"github.com/oslokommune/okdata-data-uploader/internal/metadata"
)

func main() {
	cfg := config.Load()
	if cfg.MetadataAPIURL == "" {
		slog.Error("METADATA_API_URL is not set")
		os.Exit(1)
	}

	client := metadata.NewClient(cfg.MetadataAPIURL, http.DefaultClient)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		datasetID := req.PathParameters["datasetId"]
		if datasetID == "" {
			return errorResponse(ingesterr.New(ingesterr.DatasetNotFound, "Missing datasetId path parameter")), nil
		}

		dataset, err := client.GetDataset(ctx, datasetID)
		if err != nil {
			return errorResponse(err), nil
		}

		data, err := json.Marshal(dataset)
		if err != nil {
			return errorResponse(err), nil
		}
		return events.APIGatewayProxyResponse{
			StatusCode: 200,
			Headers:    map[string]string{"Access-Control-Allow-Origin": "*", "Content-Type": "application/json"},
			Body:       string(data),
		}, nil
	})
}

func errorResponse(err error) events.APIGatewayProxyResponse {
	data, _ := json.Marshal(map[string]string{"message": err.Error()})
	return events.APIGatewayProxyResponse{
		StatusCode: ingesterr.StatusFor(err),
		Headers:    map[string]string{"Access-Control-Allow-Origin": "*"},
		Body:       string(data),
	}
}
