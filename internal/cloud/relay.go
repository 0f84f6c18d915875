// Package cloud talks to the hub's cloud relay, which exposes local webhooks
// on a public URL for vendors that push updates.
package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/joshp123/gohome-switchbot/internal/config"
)

const requestTimeout = 15 * time.Second

// Relay is the subset of the cloud relay used by integrations.
type Relay interface {
	Available(ctx context.Context) bool
	CreateCloudhook(ctx context.Context, webhookID string) (string, error)
	DeleteCloudhook(ctx context.Context, webhookID string) error
}

// HTTPStatusError reports a non-2xx relay response.
type HTTPStatusError struct {
	Status int
	Body   string
}

func (e HTTPStatusError) Error() string {
	return fmt.Sprintf("cloud relay error %d: %s", e.Status, strings.TrimSpace(e.Body))
}

// Client is an HTTP client for the cloud relay API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a relay client authenticated with OAuth2 client credentials.
func NewClient(cfg *config.CloudConfig) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("cloud config is required")
	}
	secret, err := config.ReadSecret(cfg.ClientSecretFile)
	if err != nil {
		return nil, fmt.Errorf("read cloud client secret: %w", err)
	}
	creds := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: secret,
		TokenURL:     cfg.TokenURL,
	}
	httpClient := creds.Client(context.Background())
	httpClient.Timeout = requestTimeout
	return NewClientWithHTTP(cfg.RelayURL, httpClient), nil
}

// NewClientWithHTTP uses an already authenticated HTTP client.
func NewClientWithHTTP(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

// Available reports whether the relay is reachable with an active subscription
// and a live connection. Any failure counts as unavailable.
func (c *Client) Available(ctx context.Context) bool {
	if c == nil {
		return false
	}
	var status struct {
		SubscriptionActive bool `json:"subscription_active"`
		Connected          bool `json:"connected"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/status", nil, &status); err != nil {
		return false
	}
	return status.SubscriptionActive && status.Connected
}

// CreateCloudhook allocates a public URL that forwards to the local webhook id.
func (c *Client) CreateCloudhook(ctx context.Context, webhookID string) (string, error) {
	if webhookID == "" {
		return "", fmt.Errorf("webhook id is required")
	}
	var resp struct {
		CloudhookURL string `json:"cloudhook_url"`
	}
	body := map[string]string{"webhook_id": webhookID}
	if err := c.do(ctx, http.MethodPost, "/v1/cloudhooks", body, &resp); err != nil {
		return "", fmt.Errorf("create cloudhook: %w", err)
	}
	if resp.CloudhookURL == "" {
		return "", fmt.Errorf("create cloudhook: empty url in response")
	}
	return resp.CloudhookURL, nil
}

// DeleteCloudhook releases a previously allocated cloudhook.
func (c *Client) DeleteCloudhook(ctx context.Context, webhookID string) error {
	return c.do(ctx, http.MethodDelete, "/v1/cloudhooks/"+url.PathEscape(webhookID), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body any, dest any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return HTTPStatusError{Status: resp.StatusCode, Body: string(payload)}
	}
	if dest == nil || len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
