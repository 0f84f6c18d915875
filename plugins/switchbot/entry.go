package switchbot

import (
	"encoding/json"
	"fmt"

	"github.com/joshp123/gohome-switchbot/internal/entries"
)

const (
	Domain     = "switchbot_cloud"
	EntryTitle = "SwitchBot Cloud"
)

// EntryData is the integration payload of a config entry. WebhookID is nil
// when no push webhook was provisioned.
type EntryData struct {
	APIToken   string  `json:"api_token"`
	APIKey     string  `json:"api_key"`
	WebhookID  *string `json:"webhook_id,omitempty"`
	WebhookURL string  `json:"webhook_url,omitempty"`
}

// HasWebhook reports whether a webhook was provisioned for the entry.
func (d EntryData) HasWebhook() bool {
	return d.WebhookID != nil && *d.WebhookID != ""
}

// DecodeEntry extracts the SwitchBot payload of e.
func DecodeEntry(e entries.Entry) (EntryData, error) {
	if e.Domain != Domain {
		return EntryData{}, fmt.Errorf("entry %s belongs to %s", e.ID, e.Domain)
	}
	var data EntryData
	if err := e.DecodeData(&data); err != nil {
		return EntryData{}, fmt.Errorf("decode entry %s: %w", e.ID, err)
	}
	return data, nil
}

func newEntry(data EntryData) (entries.Entry, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return entries.Entry{}, fmt.Errorf("encode entry: %w", err)
	}
	return entries.Entry{
		Domain:   Domain,
		Title:    EntryTitle,
		UniqueID: data.APIToken,
		Data:     payload,
	}, nil
}
