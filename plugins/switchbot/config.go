package switchbot

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/joshp123/gohome-switchbot/internal/config"
	"github.com/joshp123/gohome-switchbot/internal/rate"
)

// Config is the runtime configuration of the plugin.
type Config struct {
	BaseURL           string
	PollInterval      time.Duration
	RequestTimeout    time.Duration
	DailyRequestLimit int
	WebhookFailure    string
}

func ConfigFromFile(cfg *config.SwitchBotConfig) (Config, error) {
	if cfg == nil {
		return Config{}, fmt.Errorf("switchbot config is required")
	}
	if cfg.DailyRequestLimit <= 0 {
		return Config{}, fmt.Errorf("switchbot daily_request_limit must be positive")
	}
	return Config{
		BaseURL:           cfg.BaseURL,
		PollInterval:      time.Duration(cfg.PollIntervalSeconds) * time.Second,
		RequestTimeout:    time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
		DailyRequestLimit: cfg.DailyRequestLimit,
		WebhookFailure:    cfg.WebhookFailure,
	}, nil
}

// RateDeclaration is the per-account quota. A twentieth of the daily budget
// is held back for commands and setup.
func (c Config) RateDeclaration() rate.Declaration {
	return rate.Provider("switchbot").
		MaxRequestsPer(rate.Day, c.DailyRequestLimit).
		Reserve(rate.Day, c.DailyRequestLimit/20)
}

// APIFactory returns a factory of rate-guarded vendor clients. Clients for
// the same token share one quota once the account has answered a device
// listing, so rejected tokens are never cached.
func (c Config) APIFactory() APIFactory {
	return c.apiFactory(newAccountQuotas())
}

func (c Config) apiFactory(quotas *accountQuotas) APIFactory {
	return func(token, secret string) API {
		httpClient, known := quotas.get(token)
		if !known {
			httpClient = rate.WrapHTTP(c.RateDeclaration(), &http.Client{Timeout: c.RequestTimeout})
		}
		client := NewClient(ClientConfig{
			BaseURL:    c.BaseURL,
			Token:      token,
			Secret:     secret,
			HTTPClient: httpClient,
		})
		if known {
			return client
		}
		return &provisionalClient{Client: client, keep: func() { quotas.keep(token, httpClient) }}
	}
}

// accountQuotas holds the rate-guarded HTTP client of every proven account.
type accountQuotas struct {
	mu      sync.Mutex
	clients map[string]*http.Client
}

func newAccountQuotas() *accountQuotas {
	return &accountQuotas{clients: make(map[string]*http.Client)}
}

func (q *accountQuotas) get(token string) (*http.Client, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	client, ok := q.clients[token]
	return client, ok
}

func (q *accountQuotas) keep(token string, client *http.Client) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.clients[token]; !ok {
		q.clients[token] = client
	}
}

func (q *accountQuotas) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.clients)
}

// provisionalClient caches its quota after the first successful device listing.
type provisionalClient struct {
	*Client
	keep func()
	once sync.Once
}

func (p *provisionalClient) ListDevices(ctx context.Context) ([]Device, error) {
	devices, err := p.Client.ListDevices(ctx)
	if err == nil {
		p.once.Do(p.keep)
	}
	return devices, err
}
