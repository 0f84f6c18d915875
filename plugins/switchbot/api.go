package switchbot

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	defaultBaseURL = "https://api.switch-bot.com"
	apiPrefix      = "/v1.1"
	statusSuccess  = 100
)

var (
	ErrCannotConnect = errors.New("cannot connect to switchbot api")
	ErrInvalidAuth   = errors.New("switchbot api rejected the credentials")
)

// API is the vendor surface used by the integration.
type API interface {
	ListDevices(ctx context.Context) ([]Device, error)
	DeviceStatus(ctx context.Context, deviceID string) (Snapshot, error)
	SendCommand(ctx context.Context, deviceID string, cmd Command) error
	SetupWebhook(ctx context.Context, webhookURL string) error
}

// HTTPStatusError is a non-2xx reply. 401 and 403 unwrap to ErrInvalidAuth,
// everything else to ErrCannotConnect.
type HTTPStatusError struct {
	Status int
	Body   string
}

func (e HTTPStatusError) Error() string {
	return fmt.Sprintf("switchbot api error %d: %s", e.Status, strings.TrimSpace(e.Body))
}

func (e HTTPStatusError) Unwrap() error {
	if e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden {
		return ErrInvalidAuth
	}
	return ErrCannotConnect
}

// APIError is a well-formed reply whose envelope reports failure.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("switchbot api status %d: %s", e.Code, e.Message)
}

// ClientConfig configures a Client.
type ClientConfig struct {
	BaseURL    string
	Token      string
	Secret     string
	HTTPClient *http.Client
}

// Client talks to the SwitchBot OpenAPI v1.1.
type Client struct {
	baseURL    string
	token      string
	secret     string
	httpClient *http.Client

	now   func() time.Time
	nonce func() string
}

func NewClient(cfg ClientConfig) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL:    baseURL,
		token:      cfg.Token,
		secret:     cfg.Secret,
		httpClient: httpClient,
		now:        time.Now,
		nonce:      uuid.NewString,
	}
}

func (c *Client) ListDevices(ctx context.Context) ([]Device, error) {
	var body struct {
		DeviceList []struct {
			DeviceID           string `json:"deviceId"`
			DeviceName         string `json:"deviceName"`
			DeviceType         string `json:"deviceType"`
			HubDeviceID        string `json:"hubDeviceId"`
			EnableCloudService bool   `json:"enableCloudService"`
		} `json:"deviceList"`
		InfraredRemoteList []struct {
			DeviceID    string `json:"deviceId"`
			DeviceName  string `json:"deviceName"`
			RemoteType  string `json:"remoteType"`
			HubDeviceID string `json:"hubDeviceId"`
		} `json:"infraredRemoteList"`
	}
	if err := c.do(ctx, http.MethodGet, "/devices", nil, &body); err != nil {
		return nil, err
	}

	devices := make([]Device, 0, len(body.DeviceList)+len(body.InfraredRemoteList))
	for _, d := range body.DeviceList {
		devices = append(devices, Device{
			ID:           d.DeviceID,
			Name:         d.DeviceName,
			Type:         d.DeviceType,
			HubID:        d.HubDeviceID,
			CloudService: d.EnableCloudService,
		})
	}
	for _, d := range body.InfraredRemoteList {
		devices = append(devices, Device{
			ID:     d.DeviceID,
			Name:   d.DeviceName,
			Type:   d.RemoteType,
			HubID:  d.HubDeviceID,
			Remote: true,
		})
	}
	return devices, nil
}

func (c *Client) DeviceStatus(ctx context.Context, deviceID string) (Snapshot, error) {
	var snap Snapshot
	if err := c.do(ctx, http.MethodGet, "/devices/"+url.PathEscape(deviceID)+"/status", nil, &snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func (c *Client) SendCommand(ctx context.Context, deviceID string, cmd Command) error {
	payload := map[string]string{
		"command":     string(cmd),
		"parameter":   "default",
		"commandType": "command",
	}
	return c.do(ctx, http.MethodPost, "/devices/"+url.PathEscape(deviceID)+"/commands", payload, nil)
}

func (c *Client) SetupWebhook(ctx context.Context, webhookURL string) error {
	payload := map[string]string{
		"action":     "setupWebhook",
		"url":        webhookURL,
		"deviceList": "ALL",
	}
	return c.do(ctx, http.MethodPost, "/webhook/setupWebhook", payload, nil)
}

func (c *Client) DeleteWebhook(ctx context.Context, webhookURL string) error {
	payload := map[string]string{
		"action": "deleteWebhook",
		"url":    webhookURL,
	}
	return c.do(ctx, http.MethodPost, "/webhook/deleteWebhook", payload, nil)
}

// Sign computes the request signature for token, timestamp and nonce.
func Sign(token, secret, timestamp, nonce string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(token + timestamp + nonce))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (c *Client) do(ctx context.Context, method, path string, body any, dest any) error {
	endpoint := c.baseURL + apiPrefix + path

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	timestamp := strconv.FormatInt(c.now().UnixMilli(), 10)
	nonce := c.nonce()
	req.Header.Set("Authorization", c.token)
	req.Header.Set("sign", Sign(c.token, c.secret, timestamp, nonce))
	req.Header.Set("t", timestamp)
	req.Header.Set("nonce", nonce)
	req.Header.Set("Content-Type", "application/json; charset=utf8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrCannotConnect, method, path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read %s: %w", ErrCannotConnect, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return HTTPStatusError{Status: resp.StatusCode, Body: string(payload)}
	}

	var envelope struct {
		StatusCode int             `json:"statusCode"`
		Message    string          `json:"message"`
		Body       json.RawMessage `json:"body"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	if envelope.StatusCode != statusSuccess {
		return &APIError{Code: envelope.StatusCode, Message: envelope.Message}
	}
	if dest == nil || len(envelope.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Body, dest); err != nil {
		return fmt.Errorf("decode %s body: %w", path, err)
	}
	return nil
}
