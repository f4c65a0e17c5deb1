// Package notifier implements the Schema-Drift Notifier (§4.4): when a
// merge introduces columns a dataset's table didn't have before, look up
// its subscribers and email them. Grounded on
// original_source/uploader/alerts.py's alert_if_new_columns/_send_email,
// translated line for line into Go: same DynamoDB lookup, same Norwegian
// field names and phrasing, same "never fails the pipeline" contract.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/oslokommune/okdata-data-uploader/internal/ingesterr"
)

const subscriptionsTable = "dataset-subscriptions"

const (
	senderEmail = "dataplattform@oslo.kommune.no"
	senderName  = "Dataspeilet"
	subject     = "Endring i datastruktur"
)

// DynamoDBAPI is the subset of the DynamoDB client the notifier needs.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// Notifier emails a dataset's subscribers when new columns appear.
type Notifier struct {
	db          DynamoDBAPI
	http        *http.Client
	emailURL    string
	emailAPIKey string
	log         *slog.Logger
}

// New returns a Notifier posting to emailURL with the given shared-secret
// API key.
func New(db DynamoDBAPI, httpClient *http.Client, emailURL, emailAPIKey string) *Notifier {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Notifier{
		db:          db,
		http:        httpClient,
		emailURL:    emailURL,
		emailAPIKey: emailAPIKey,
		log:         slog.Default().With("component", "notifier"),
	}
}

type subscriptionItem struct {
	DatasetId   string
	Subscribers []string
}

// NotifyNewColumns looks up subscribers for datasetID and emails them
// about newColumns, per §4.4. Does nothing when newColumns is empty or the
// dataset has no subscribers. Any failure is logged and swallowed: the
// caller's pipeline must still succeed.
func (n *Notifier) NotifyNewColumns(ctx context.Context, datasetID string, newColumns []string) {
	if len(newColumns) == 0 {
		return
	}

	subscribers, err := n.subscribers(ctx, datasetID)
	if err != nil {
		n.log.Error("failed to look up subscribers", "datasetId", datasetID, "error", err)
		return
	}
	if len(subscribers) == 0 {
		return
	}

	body := composeBody(datasetID, newColumns)
	if err := n.sendEmail(ctx, subscribers, body); err != nil {
		alertErr := ingesterr.Wrap(ingesterr.AlertEmail, err, "failed to send schema-drift email for dataset %s", datasetID)
		n.log.Error("schema-drift notification failed", "datasetId", datasetID, "error", alertErr)
	}
}

func (n *Notifier) subscribers(ctx context.Context, datasetID string) ([]string, error) {
	key, err := attributevalue.MarshalMap(struct{ DatasetId string }{DatasetId: datasetID})
	if err != nil {
		return nil, fmt.Errorf("marshal subscriptions key: %w", err)
	}

	out, err := n.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(subscriptionsTable),
		Key:       key,
	})
	if err != nil {
		return nil, fmt.Errorf("get subscriptions item: %w", err)
	}
	if out.Item == nil {
		return nil, nil
	}

	var item subscriptionItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshal subscriptions item: %w", err)
	}
	return item.Subscribers, nil
}

// composeBody builds the Norwegian notification text, singular/plural
// phrasing matching alerts.py's alert_if_new_columns exactly.
func composeBody(datasetID string, newColumns []string) string {
	sorted := append([]string(nil), newColumns...)
	sort.Strings(sorted)

	lede := "En ny kolonne"
	if len(sorted) > 1 {
		lede = "Nye kolonner"
	}

	var bullets strings.Builder
	for i, c := range sorted {
		if i > 0 {
			bullets.WriteString("\n")
		}
		bullets.WriteString("- " + c)
	}

	return fmt.Sprintf("%s har blitt lagt til datasettet '%s':\n%s", lede, datasetID, bullets.String())
}

type emailRequest struct {
	MottakerEpost []string `json:"mottakerepost"`
	AvsenderEpost string   `json:"avsenderepost"`
	AvsenderNavn  string   `json:"avsendernavn"`
	Emne          string   `json:"emne"`
	Meldingskropp string   `json:"meldingskropp"`
}

func (n *Notifier) sendEmail(ctx context.Context, to []string, body string) error {
	// HTML escaping is off so the <br /> tags reach the gateway literally.
	var payload bytes.Buffer
	enc := json.NewEncoder(&payload)
	enc.SetEscapeHTML(false)
	err := enc.Encode(emailRequest{
		MottakerEpost: to,
		AvsenderEpost: senderEmail,
		AvsenderNavn:  senderName,
		Emne:          subject,
		Meldingskropp: strings.ReplaceAll(body, "\n", "<br />"),
	})
	if err != nil {
		return fmt.Errorf("marshal email request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.emailURL, &payload)
	if err != nil {
		return fmt.Errorf("build email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", n.emailAPIKey)

	resp, err := n.http.Do(req)
	if err != nil {
		return fmt.Errorf("send email request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("email gateway returned status %d", resp.StatusCode)
	}
	return nil
}
