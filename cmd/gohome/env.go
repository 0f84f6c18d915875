package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/joshp123/gohome-switchbot/internal/cloud"
	"github.com/joshp123/gohome-switchbot/internal/config"
	"github.com/joshp123/gohome-switchbot/internal/entries"
	"github.com/joshp123/gohome-switchbot/internal/plugins"
	"github.com/joshp123/gohome-switchbot/plugins/switchbot"
)

// openEnv opens the entry store and the optional relay and blob mirror.
func openEnv(ctx context.Context, cfg *config.Config, logger *zap.Logger) (plugins.Env, func(), error) {
	store, err := entries.Open(ctx, cfg.Storage.Path, logger)
	if err != nil {
		return plugins.Env{}, nil, err
	}
	if cfg.Blob != nil {
		mirror, err := entries.NewS3Mirror(cfg.Blob)
		if err != nil {
			_ = store.Close()
			return plugins.Env{}, nil, fmt.Errorf("blob mirror: %w", err)
		}
		store.SetMirror(mirror)
	}

	env := plugins.Env{Config: cfg, Entries: store, Logger: logger}
	if cfg.Cloud != nil {
		relay, err := cloud.NewClient(cfg.Cloud)
		if err != nil {
			_ = store.Close()
			return plugins.Env{}, nil, fmt.Errorf("cloud relay: %w", err)
		}
		env.Relay = relay
	}

	return env, func() { _ = store.Close() }, nil
}

func webhookDeleter(cfg *config.Config) func(token, secret string) switchbot.WebhookDeleter {
	baseURL := ""
	timeout := 15 * time.Second
	if cfg.SwitchBot != nil {
		baseURL = cfg.SwitchBot.BaseURL
		timeout = time.Duration(cfg.SwitchBot.RequestTimeoutSeconds) * time.Second
	}
	return func(token, secret string) switchbot.WebhookDeleter {
		return switchbot.NewClient(switchbot.ClientConfig{
			BaseURL:    baseURL,
			Token:      token,
			Secret:     secret,
			HTTPClient: &http.Client{Timeout: timeout},
		})
	}
}
