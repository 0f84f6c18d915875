package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeAppliesDefaults(t *testing.T) {
	cfg, err := Decode([]byte("schema_version: 1\nswitchbot: {}\n"))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.Core.GRPCAddr)
	assert.Equal(t, "0.0.0.0:8080", cfg.Core.HTTPAddr)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "/var/lib/gohome/switchbot.db", cfg.Storage.Path)
	require.NotNil(t, cfg.SwitchBot)
	assert.Equal(t, "https://api.switch-bot.com", cfg.SwitchBot.BaseURL)
	assert.Equal(t, 600, cfg.SwitchBot.PollIntervalSeconds)
	assert.Equal(t, 10000, cfg.SwitchBot.DailyRequestLimit)
	assert.Equal(t, WebhookFailureAbort, cfg.SwitchBot.WebhookFailure)
	assert.Nil(t, cfg.Cloud)
	assert.Nil(t, cfg.MQTT)
}

func TestDecodeKeepsExplicitValues(t *testing.T) {
	raw := `
schema_version: 1
core:
  grpc_addr: 127.0.0.1:9100
mqtt:
  broker: tcp://mqtt.local:1883
switchbot:
  poll_interval_seconds: 60
  webhook_failure: create_without_webhook
`
	cfg, err := Decode([]byte(raw))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9100", cfg.Core.GRPCAddr)
	assert.Equal(t, 60, cfg.SwitchBot.PollIntervalSeconds)
	assert.Equal(t, WebhookFailureCreateWithoutWebhook, cfg.SwitchBot.WebhookFailure)
	require.NotNil(t, cfg.MQTT)
	assert.Equal(t, "gohome/switchbot", cfg.MQTT.TopicPrefix)
}

func TestDecodeOptionalSections(t *testing.T) {
	const blob = `
blob:
  endpoint: http://minio:9000
  bucket: gohome
  access_key_file: /run/secrets/minio-access
  secret_key_file: /run/secrets/minio-secret
`
	cases := map[string]string{
		"none":           "schema_version: 1\n",
		"switchbot only": "schema_version: 1\nswitchbot: {}\n",
		"blob only":      "schema_version: 1\n" + blob,
		"mqtt only":      "schema_version: 1\nmqtt:\n  broker: tcp://mqtt.local:1883\n",
		"all":            "schema_version: 1\nswitchbot: {}\nmqtt:\n  broker: tcp://mqtt.local:1883\n" + blob,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			var (
				cfg *Config
				err error
			)
			require.NotPanics(t, func() { cfg, err = Decode([]byte(raw)) })
			require.NoError(t, err)

			assert.Equal(t, "0.0.0.0:9000", cfg.Core.GRPCAddr)
			if cfg.Blob != nil {
				assert.Equal(t, "gohome/switchbot/entries", cfg.Blob.Prefix)
			}
			if cfg.MQTT != nil {
				assert.Equal(t, "gohome/switchbot", cfg.MQTT.TopicPrefix)
			}
			if cfg.SwitchBot != nil {
				assert.Equal(t, 600, cfg.SwitchBot.PollIntervalSeconds)
			}
		})
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	cases := map[string]string{
		"schema version": "schema_version: 2\n",
		"webhook policy": "schema_version: 1\nswitchbot:\n  webhook_failure: retry\n",
		"mqtt broker":    "schema_version: 1\nmqtt:\n  username: bob\n",
		"cloud relay":    "schema_version: 1\ncloud:\n  relay_url: not a url\n",
		"blob bucket":    "schema_version: 1\nblob:\n  endpoint: http://minio:9000\n",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(raw))
			assert.Error(t, err)
		})
	}
}

func TestEnabledPlugins(t *testing.T) {
	assert.Empty(t, EnabledPlugins(nil))
	assert.Empty(t, EnabledPlugins(&Config{}))
	assert.Equal(t, map[string]bool{"switchbot": true}, EnabledPlugins(&Config{SwitchBot: &SwitchBotConfig{}}))
}

func TestLoadAndReadSecret(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("schema_version: 1\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Nil(t, cfg.SwitchBot)

	secretPath := filepath.Join(dir, "secret")
	require.NoError(t, os.WriteFile(secretPath, []byte("  s3cret\n"), 0o600))
	secret, err := ReadSecret(secretPath)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", secret)
}
