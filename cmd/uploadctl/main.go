// Command uploadctl is a small CLI wrapping push-events and presigned
// upload calls for local testing and scripting, recovered from
// original_source/examples/python/sdk/data_uploader.py and
// original_source/examples/python/upload.py. Not part of the Lambda
// deployment; it talks to an already-deployed API over HTTP the same
// way the Python examples do.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:  "uploadctl",
		Usage: "push events to, or request a presigned upload from, an okdata-data-uploader API",
		Commands: []*cli.Command{
			pushEventsCommand(),
			presignCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "uploadctl:", err)
		os.Exit(1)
	}
}

func pushEventsCommand() *cli.Command {
	return &cli.Command{
		Name:  "push-events",
		Usage: "send a batch of events to a dataset's push-events endpoint",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "api-url", Required: true, Usage: "base URL of the push-events endpoint"},
			&cli.StringFlag{Name: "token", Required: true, Usage: "bearer token"},
			&cli.StringFlag{Name: "file", Required: true, Usage: "path to a JSON file containing the request body"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			body, err := os.ReadFile(cmd.String("file"))
			if err != nil {
				return fmt.Errorf("read request file: %w", err)
			}
			return postJSON(ctx, cmd.String("api-url"), cmd.String("token"), body)
		},
	}
}

func presignCommand() *cli.Command {
	return &cli.Command{
		Name:  "presign",
		Usage: "request a presigned upload URL and PUT a local file to it",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "api-url", Required: true, Usage: "base URL of the presign endpoint"},
			&cli.StringFlag{Name: "token", Required: true, Usage: "bearer token"},
			&cli.StringFlag{Name: "edition-id", Required: true, Usage: "datasetId/version or datasetId/version/edition"},
			&cli.StringFlag{Name: "file", Required: true, Usage: "local file to upload"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			filename := cmd.String("file")
			reqBody, err := json.Marshal(map[string]string{
				"editionId": cmd.String("edition-id"),
				"filename":  filename,
			})
			if err != nil {
				return fmt.Errorf("marshal presign request: %w", err)
			}

			resp, err := doRequest(ctx, http.MethodPost, cmd.String("api-url"), cmd.String("token"), reqBody)
			if err != nil {
				return err
			}

			var signed struct {
				URL string `json:"url"`
			}
			if err := json.Unmarshal(resp, &signed); err != nil {
				return fmt.Errorf("decode presign response: %w", err)
			}

			data, err := os.ReadFile(filename)
			if err != nil {
				return fmt.Errorf("read local file: %w", err)
			}

			putReq, err := http.NewRequestWithContext(ctx, http.MethodPut, signed.URL, bytes.NewReader(data))
			if err != nil {
				return fmt.Errorf("build upload request: %w", err)
			}
			httpClient := &http.Client{Timeout: 60 * time.Second}
			putResp, err := httpClient.Do(putReq)
			if err != nil {
				return fmt.Errorf("upload file: %w", err)
			}
			defer putResp.Body.Close()
			if putResp.StatusCode/100 != 2 {
				return fmt.Errorf("upload failed with status %d", putResp.StatusCode)
			}
			fmt.Println("uploaded", filename)
			return nil
		},
	}
}

func postJSON(ctx context.Context, url, token string, body []byte) error {
	resp, err := doRequest(ctx, http.MethodPost, url, token, body)
	if err != nil {
		return err
	}
	fmt.Println(string(resp))
	return nil
}

func doRequest(ctx context.Context, method, url, token string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	httpClient := &http.Client{Timeout: 30 * time.Second}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, data)
	}
	return data, nil
}
