package switchbot

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"go.uber.org/zap"
)

const (
	WebhookRoute     = "/api/webhook/{webhookID}"
	maxWebhookBody   = 64 << 10
	webhookSchemaURL = "switchbot-webhook.json"
)

//go:embed webhook_schema.json
var webhookSchemaJSON []byte

// WebhookEvent is a vendor push.
type WebhookEvent struct {
	EventType    string   `json:"eventType"`
	EventVersion string   `json:"eventVersion"`
	Context      Snapshot `json:"context"`
}

func compileWebhookSchema() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(webhookSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("parse webhook schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(webhookSchemaURL, doc); err != nil {
		return nil, fmt.Errorf("add webhook schema: %w", err)
	}
	schema, err := compiler.Compile(webhookSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile webhook schema: %w", err)
	}
	return schema, nil
}

// WebhookHandler accepts vendor pushes for the hub.
type WebhookHandler struct {
	hub    *Hub
	schema *jsonschema.Schema
	logger *zap.Logger
}

func NewWebhookHandler(hub *Hub, logger *zap.Logger) (*WebhookHandler, error) {
	schema, err := compileWebhookSchema()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{hub: hub, schema: schema, logger: logger.Named("switchbot.webhook")}, nil
}

// Register mounts the handler on r.
func (h *WebhookHandler) Register(r chi.Router) {
	r.Post(WebhookRoute, h.ServeHTTP)
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	webhookID := chi.URLParam(r, "webhookID")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody+1))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}
	if len(body) > maxWebhookBody {
		http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
		return
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := h.schema.Validate(inst); err != nil {
		h.logger.Debug("rejected webhook payload", zap.String("webhook_id", webhookID), zap.Error(err))
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	if !h.hub.HandleWebhook(webhookID, &event.Context) {
		http.NotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusOK)
}
