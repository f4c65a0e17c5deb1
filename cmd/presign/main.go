// Command presign is the Lambda entry point for the Presigned Upload
// handler (§4.9): API Gateway invokes it once per upload-URL request.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/oslokommune/okdata-data-uploader/internal/config"
	"github.com/oslokommune/okdata-data-uploader/internal/ingesterr"
	"github.com/oslokommune/okdata-data-uploader/internal/metadata"
	"github.com/oslokommune/okdata-data-uploader/internal/presign"
	"github.com/oslokommune/okdata-data-uploader/internal/serviceauth"
	"github.com/oslokommune/okdata-data-uploader/internal/status"
)

type requestBody struct {
	EditionID string `json:"editionId"`
	Filename  string `json:"filename"`
}

func main() {
	cfg := config.Load()
	ctx := context.Background()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		slog.Error("could not load AWS config", "error", err)
		os.Exit(1)
	}

	metadataClient := metadata.NewClient(cfg.MetadataAPIURL, http.DefaultClient)
	presignClient := s3.NewPresignClient(s3.NewFromConfig(awsCfg))
	tokens := serviceauth.NewClientCredentials(cfg.LoginURL, cfg.ServiceClientID, cfg.ServiceClientSecret, http.DefaultClient)
	statuses := status.NewReporter(cfg.StatusAPIURL, http.DefaultClient)

	handler := presign.New(metadataClient, presignClient, cfg.Bucket, tokens, statuses, uuid.NewString)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		var body requestBody
		if err := json.Unmarshal([]byte(req.Body), &body); err != nil {
			return errorResponse(ingesterr.New(ingesterr.InvalidJSON, "Body is not a valid JSON document")), nil
		}

		token, ok := bearerToken(req.Headers["Authorization"])
		if !ok {
			return errorResponse(ingesterr.New(ingesterr.Unauthorized, "Forbidden")), nil
		}

		result, err := handler.Handle(ctx, presign.Request{
			EditionID: body.EditionID,
			Filename:  body.Filename,
			Token:     token,
			Principal: req.RequestContext.Identity.CognitoIdentityID,
		})
		if err != nil {
			return errorResponse(err), nil
		}

		data, err := json.Marshal(map[string]any{
			"url":       result.URL,
			"fields":    result.Fields,
			"traceId":   result.TraceID,
			"expiresIn": result.ExpiresIn,
		})
		if err != nil {
			return errorResponse(err), nil
		}
		return events.APIGatewayProxyResponse{
			StatusCode: 200,
			Headers:    map[string]string{"Access-Control-Allow-Origin": "*"},
			Body:       string(data),
		}, nil
	})
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return "", false
	}
	return header[len(prefix):], true
}

func errorResponse(err error) events.APIGatewayProxyResponse {
	status := ingesterr.StatusFor(err)
	data, _ := json.Marshal(map[string]string{"message": err.Error()})
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Access-Control-Allow-Origin": "*"},
		Body:       string(data),
	}
}
