package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

const (
	SchemaVersion = 1
	DefaultPath   = "/etc/gohome/config.yaml"
)

// Webhook failure policies for the SwitchBot setup flow.
const (
	WebhookFailureAbort                = "abort"
	WebhookFailureCreateWithoutWebhook = "create_without_webhook"
)

// Config is the root of the gohome config file.
type Config struct {
	SchemaVersion int              `yaml:"schema_version"`
	Core          CoreConfig       `yaml:"core"`
	Log           LogConfig        `yaml:"log"`
	Storage       StorageConfig    `yaml:"storage"`
	Blob          *BlobConfig      `yaml:"blob,omitempty"`
	Cloud         *CloudConfig     `yaml:"cloud,omitempty"`
	MQTT          *MQTTConfig      `yaml:"mqtt,omitempty"`
	SwitchBot     *SwitchBotConfig `yaml:"switchbot,omitempty"`
}

type CoreConfig struct {
	GRPCAddr string `yaml:"grpc_addr" default:"0.0.0.0:9000"`
	HTTPAddr string `yaml:"http_addr" default:"0.0.0.0:8080"`
}

type LogConfig struct {
	Format string `yaml:"format" default:"console"`
	Level  string `yaml:"level" default:"info"`
}

type StorageConfig struct {
	Path string `yaml:"path" default:"/var/lib/gohome/switchbot.db"`
}

// BlobConfig points at an S3-compatible bucket mirroring configuration entries.
type BlobConfig struct {
	Endpoint      string `yaml:"endpoint"`
	Bucket        string `yaml:"bucket"`
	Prefix        string `yaml:"prefix" default:"gohome/switchbot/entries"`
	Region        string `yaml:"region"`
	AccessKeyFile string `yaml:"access_key_file"`
	SecretKeyFile string `yaml:"secret_key_file"`
}

// CloudConfig describes the cloud relay that hands out public webhook URLs.
type CloudConfig struct {
	RelayURL         string `yaml:"relay_url"`
	TokenURL         string `yaml:"token_url"`
	ClientID         string `yaml:"client_id"`
	ClientSecretFile string `yaml:"client_secret_file"`
}

type MQTTConfig struct {
	Broker       string `yaml:"broker"`
	Username     string `yaml:"username"`
	PasswordFile string `yaml:"password_file"`
	ClientID     string `yaml:"client_id" default:"gohome-switchbot"`
	TopicPrefix  string `yaml:"topic_prefix" default:"gohome/switchbot"`
}

type SwitchBotConfig struct {
	BaseURL               string `yaml:"base_url" default:"https://api.switch-bot.com"`
	PollIntervalSeconds   int    `yaml:"poll_interval_seconds" default:"600"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds" default:"15"`
	DailyRequestLimit     int    `yaml:"daily_request_limit" default:"10000"`
	WebhookFailure        string `yaml:"webhook_failure" default:"abort"`
}

// Load parses the YAML config file, applies defaults, and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Decode(data)
}

// Decode parses config bytes, applies defaults, and validates.
func Decode(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := applyDefaults(cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) error {
	if err := defaults.Set(cfg); err != nil {
		return fmt.Errorf("apply defaults: %w", err)
	}
	// Optional sections stay nil when omitted.
	if cfg.Blob != nil {
		if err := defaults.Set(cfg.Blob); err != nil {
			return fmt.Errorf("apply blob defaults: %w", err)
		}
	}
	if cfg.MQTT != nil {
		if err := defaults.Set(cfg.MQTT); err != nil {
			return fmt.Errorf("apply mqtt defaults: %w", err)
		}
	}
	if cfg.SwitchBot != nil {
		if err := defaults.Set(cfg.SwitchBot); err != nil {
			return fmt.Errorf("apply switchbot defaults: %w", err)
		}
	}
	return nil
}

// Validate enforces required invariants beyond YAML typing.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if cfg.SchemaVersion != SchemaVersion {
		return fmt.Errorf("schema_version must be %d", SchemaVersion)
	}
	if cfg.Core.GRPCAddr == "" {
		return fmt.Errorf("core.grpc_addr is required")
	}
	if cfg.Core.HTTPAddr == "" {
		return fmt.Errorf("core.http_addr is required")
	}
	if cfg.Storage.Path == "" {
		return fmt.Errorf("storage.path is required")
	}

	if cfg.Blob != nil {
		if cfg.Blob.Endpoint == "" {
			return fmt.Errorf("blob.endpoint is required")
		}
		if cfg.Blob.Bucket == "" {
			return fmt.Errorf("blob.bucket is required")
		}
		if cfg.Blob.AccessKeyFile == "" || cfg.Blob.SecretKeyFile == "" {
			return fmt.Errorf("blob.access_key_file and blob.secret_key_file are required")
		}
	}

	if cfg.Cloud != nil {
		if _, err := url.ParseRequestURI(cfg.Cloud.RelayURL); err != nil {
			return fmt.Errorf("cloud.relay_url is invalid: %w", err)
		}
		if cfg.Cloud.TokenURL == "" || cfg.Cloud.ClientID == "" || cfg.Cloud.ClientSecretFile == "" {
			return fmt.Errorf("cloud.token_url, cloud.client_id and cloud.client_secret_file are required")
		}
	}

	if cfg.MQTT != nil && cfg.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required")
	}

	if sb := cfg.SwitchBot; sb != nil {
		if _, err := url.ParseRequestURI(sb.BaseURL); err != nil {
			return fmt.Errorf("switchbot.base_url is invalid: %w", err)
		}
		if sb.PollIntervalSeconds < 0 {
			return fmt.Errorf("switchbot.poll_interval_seconds must not be negative")
		}
		if sb.DailyRequestLimit <= 0 {
			return fmt.Errorf("switchbot.daily_request_limit must be positive")
		}
		switch sb.WebhookFailure {
		case WebhookFailureAbort, WebhookFailureCreateWithoutWebhook:
		default:
			return fmt.Errorf("switchbot.webhook_failure must be %q or %q", WebhookFailureAbort, WebhookFailureCreateWithoutWebhook)
		}
	}

	return nil
}

// EnabledPlugins maps enabled plugin IDs based on config presence.
func EnabledPlugins(cfg *Config) map[string]bool {
	enabled := make(map[string]bool)
	if cfg == nil {
		return enabled
	}
	if cfg.SwitchBot != nil {
		enabled["switchbot"] = true
	}
	return enabled
}

// ReadSecret reads a secret file and trims surrounding whitespace.
func ReadSecret(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
