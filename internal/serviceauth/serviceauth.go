// Package serviceauth obtains the service-account bearer token the
// Metadata Client uses for write operations (CreateEdition,
// CreateDistribution): the pipeline authenticates as itself, not as the
// end user, once a request has already been authorized (§4.7 step 2
// happens against the caller's own token; everything downstream of that
// uses this system's own client-credentials grant). Grounded on
// examples/python/sdk/data_uploader.py's login() method (client_id +
// client_secret + grant_type=client_credentials against a login URL),
// with golang-jwt/jwt/v5 added on top to read the token's expiry claim so
// a still-valid token is reused instead of fetched on every call.
package serviceauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenProvider returns a bearer token valid for outbound metadata calls.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// ClientCredentials obtains and caches a service-account token via the
// OAuth2 client_credentials grant.
type ClientCredentials struct {
	loginURL     string
	clientID     string
	clientSecret string
	http         *http.Client

	mu      sync.Mutex
	cached  string
	expires time.Time
}

// NewClientCredentials returns a ClientCredentials provider posting to
// loginURL.
func NewClientCredentials(loginURL, clientID, clientSecret string, httpClient *http.Client) *ClientCredentials {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &ClientCredentials{loginURL: loginURL, clientID: clientID, clientSecret: clientSecret, http: httpClient}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

// Token returns a cached token if it hasn't expired, otherwise fetches a
// fresh one.
func (c *ClientCredentials) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cached != "" && time.Now().Before(c.expires) {
		return c.cached, nil
	}

	form := url.Values{
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"grant_type":    {"client_credentials"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.loginURL, bytes.NewReader([]byte(form.Encode())))
	if err != nil {
		return "", fmt.Errorf("serviceauth: build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("serviceauth: login request: %w", err)
	}
	defer resp.Body.Close()

	var body tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("serviceauth: decode login response: %w", err)
	}
	if body.Error != "" {
		return "", fmt.Errorf("serviceauth: could not authenticate client: %s", body.Description)
	}

	c.cached = body.AccessToken
	c.expires = expiryOf(body.AccessToken)
	return c.cached, nil
}

// expiryOf reads the token's exp claim without verifying its signature
// (verification is the issuer's job; this system only needs to know when
// to refresh), falling back to a short TTL if the claim can't be read.
func expiryOf(token string) time.Time {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time.Add(-30 * time.Second)
		}
	}
	return time.Now().Add(60 * time.Second)
}
