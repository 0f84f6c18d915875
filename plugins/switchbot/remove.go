package switchbot

import (
	"context"

	"go.uber.org/zap"

	"github.com/joshp123/gohome-switchbot/internal/entries"
)

// EntryRemover deletes persisted entries.
type EntryRemover interface {
	Get(ctx context.Context, id string) (entries.Entry, error)
	Delete(ctx context.Context, id string) error
}

// WebhookDeleter unregisters a vendor webhook.
type WebhookDeleter interface {
	DeleteWebhook(ctx context.Context, webhookURL string) error
}

// CloudhookReleaser frees a relay URL.
type CloudhookReleaser interface {
	DeleteCloudhook(ctx context.Context, webhookID string) error
}

// RemoveEntry deletes entry id. Unregistering the vendor webhook and the relay
// URL is best effort; the entry is deleted regardless. relay may be nil.
func RemoveEntry(ctx context.Context, store EntryRemover, newDeleter func(token, secret string) WebhookDeleter, relay CloudhookReleaser, id string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	entry, err := store.Get(ctx, id)
	if err != nil {
		return err
	}
	data, err := DecodeEntry(entry)
	if err != nil {
		return err
	}

	if data.HasWebhook() {
		if data.WebhookURL != "" && newDeleter != nil {
			if err := newDeleter(data.APIToken, data.APIKey).DeleteWebhook(ctx, data.WebhookURL); err != nil {
				logger.Warn("delete switchbot webhook", zap.String("entry_id", id), zap.Error(err))
			}
		}
		if relay != nil {
			if err := relay.DeleteCloudhook(ctx, *data.WebhookID); err != nil {
				logger.Warn("release cloudhook", zap.String("entry_id", id), zap.Error(err))
			}
		}
	}
	return store.Delete(ctx, id)
}
