package switchbot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/joshp123/gohome-switchbot/internal/cloud"
	"github.com/joshp123/gohome-switchbot/internal/config"
	"github.com/joshp123/gohome-switchbot/internal/entries"
)

const (
	FieldAPIToken         = "api_token"
	FieldAPIKey           = "api_key"
	FieldConfigureWebhook = "configure_webhook"

	// ErrorBase is the form error key for errors not tied to a field.
	ErrorBase = "base"

	CodeCannotConnect = "cannot_connect"
	CodeInvalidAuth   = "invalid_auth"
	CodeUnknown       = "unknown"

	ReasonAlreadyConfigured = "already_configured"
)

// ErrAlreadyConfigured aborts a setup whose token already has an entry.
var ErrAlreadyConfigured = errors.New("switchbot account already configured")

// SetupError is a credential validation failure shown to the user.
type SetupError struct {
	Code string
	Err  error
}

func (e *SetupError) Error() string {
	if e.Err == nil {
		return e.Code
	}
	return e.Code + ": " + e.Err.Error()
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

// Input is the submitted setup form.
type Input struct {
	APIToken         string
	APIKey           string
	ConfigureWebhook bool
}

// APIFactory builds a vendor client for a token and secret.
type APIFactory func(token, secret string) API

// EntryStore persists config entries.
type EntryStore interface {
	Exists(ctx context.Context, domain, uniqueID string) (bool, error)
	Create(ctx context.Context, e entries.Entry) (entries.Entry, error)
}

// FlowConfig configures a Flow. Relay may be nil when no cloud relay is set up.
type FlowConfig struct {
	NewAPI         APIFactory
	Store          EntryStore
	Relay          cloud.Relay
	Logger         *zap.Logger
	WebhookFailure string
}

// Flow runs the credential setup.
type Flow struct {
	newAPI         APIFactory
	store          EntryStore
	relay          cloud.Relay
	logger         *zap.Logger
	webhookFailure string
	newWebhookID   func() string
}

func NewFlow(cfg FlowConfig) *Flow {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	policy := cfg.WebhookFailure
	if policy == "" {
		policy = config.WebhookFailureAbort
	}
	return &Flow{
		newAPI:         cfg.NewAPI,
		store:          cfg.Store,
		relay:          cfg.Relay,
		logger:         logger.Named("switchbot.setup"),
		webhookFailure: policy,
		newWebhookID: func() string {
			return strings.ReplaceAll(uuid.NewString(), "-", "")
		},
	}
}

// CloudAvailable reports whether a cloud relay can hand out webhook URLs.
func (f *Flow) CloudAvailable(ctx context.Context) bool {
	return f.relay != nil && f.relay.Available(ctx)
}

// AttemptSetup validates the credentials, optionally provisions a push
// webhook, and persists a config entry.
func (f *Flow) AttemptSetup(ctx context.Context, in Input, cloudAvailable bool) (entries.Entry, error) {
	api := f.newAPI(in.APIToken, in.APIKey)
	if _, err := api.ListDevices(ctx); err != nil {
		return entries.Entry{}, f.classify(err)
	}

	exists, err := f.store.Exists(ctx, Domain, in.APIToken)
	if err != nil {
		return entries.Entry{}, err
	}
	if exists {
		return entries.Entry{}, ErrAlreadyConfigured
	}

	data := EntryData{APIToken: in.APIToken, APIKey: in.APIKey}
	if cloudAvailable && in.ConfigureWebhook {
		id, webhookURL, err := f.provisionWebhook(ctx, api)
		switch {
		case err == nil:
			data.WebhookID = &id
			data.WebhookURL = webhookURL
		case f.webhookFailure == config.WebhookFailureCreateWithoutWebhook:
			f.logger.Warn("webhook registration failed, creating entry without webhook", zap.Error(err))
		default:
			return entries.Entry{}, err
		}
	}

	entry, err := newEntry(data)
	if err != nil {
		return entries.Entry{}, err
	}
	created, err := f.store.Create(ctx, entry)
	if err != nil {
		if data.HasWebhook() {
			f.unregisterWebhook(ctx, api, *data.WebhookID, data.WebhookURL)
		}
		if errors.Is(err, entries.ErrDuplicate) {
			return entries.Entry{}, ErrAlreadyConfigured
		}
		return entries.Entry{}, fmt.Errorf("persist entry: %w", err)
	}
	f.logger.Info("switchbot entry created",
		zap.String("entry_id", created.ID),
		zap.Bool("webhook", data.HasWebhook()),
	)
	return created, nil
}

func (f *Flow) provisionWebhook(ctx context.Context, api API) (string, string, error) {
	id := f.newWebhookID()
	webhookURL, err := f.relay.CreateCloudhook(ctx, id)
	if err != nil {
		return "", "", fmt.Errorf("create cloudhook: %w", err)
	}
	if err := api.SetupWebhook(ctx, webhookURL); err != nil {
		f.releaseCloudhook(ctx, id)
		return "", "", fmt.Errorf("setup webhook: %w", err)
	}
	return id, webhookURL, nil
}

// unregisterWebhook undoes provisionWebhook when the entry cannot be stored.
func (f *Flow) unregisterWebhook(ctx context.Context, api API, id, webhookURL string) {
	if deleter, ok := api.(WebhookDeleter); ok {
		if err := deleter.DeleteWebhook(ctx, webhookURL); err != nil {
			f.logger.Warn("vendor webhook delete failed", zap.String("webhook_id", id), zap.Error(err))
		}
	}
	f.releaseCloudhook(ctx, id)
}

func (f *Flow) releaseCloudhook(ctx context.Context, id string) {
	if err := f.relay.DeleteCloudhook(ctx, id); err != nil {
		f.logger.Warn("cloudhook release failed", zap.String("webhook_id", id), zap.Error(err))
		return
	}
	f.logger.Debug("cloudhook released", zap.String("webhook_id", id))
}

func (f *Flow) classify(err error) error {
	switch {
	case errors.Is(err, ErrInvalidAuth):
		return &SetupError{Code: CodeInvalidAuth, Err: err}
	case errors.Is(err, ErrCannotConnect):
		return &SetupError{Code: CodeCannotConnect, Err: err}
	default:
		f.logger.Error("unexpected error validating switchbot credentials", zap.Error(err), zap.Stack("stack"))
		return &SetupError{Code: CodeUnknown, Err: err}
	}
}
