// Package config loads the engine configuration from a YAML file with
// environment variable overrides for secrets.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML can carry strings like "45s" or
// plain numbers (interpreted as seconds).
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*d = 0
		return nil
	}
	raw := strings.TrimSpace(node.Value)
	if raw == "" {
		*d = 0
		return nil
	}
	if td, err := time.ParseDuration(raw); err == nil {
		*d = Duration(td)
		return nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		*d = Duration(time.Duration(f * float64(time.Second)))
		return nil
	}
	return fmt.Errorf("invalid duration value: %q", node.Value)
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }

type ServerConfig struct {
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

func (s ServerConfig) Addr() string {
	addr := s.Address
	if addr == "" {
		addr = "127.0.0.1"
	}
	port := s.Port
	if port == 0 {
		port = 8745
	}
	return fmt.Sprintf("%s:%d", addr, port)
}

type StorageConfig struct {
	DBPath string `yaml:"db_path"`
}

type AuthConfig struct {
	// TokenSecret verifies the HS256 session token; Issuer and Audience
	// are checked when non-empty.
	TokenSecret string `yaml:"token_secret"`
	Issuer      string `yaml:"issuer"`
	Audience    string `yaml:"audience"`
	// Token is the session token of the signed-in user this engine runs
	// for. Usually supplied via COACHSYNC_TOKEN rather than the file.
	Token    string `yaml:"token"`
	Timezone string `yaml:"timezone"`
}

type AssistantConfig struct {
	// Provider selects the generation backend: "openai", "anthropic" or
	// "remote".
	Provider    string  `yaml:"provider"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float32 `yaml:"temperature"`
	// BaseURL overrides the provider endpoint (anthropic only).
	BaseURL string `yaml:"base_url"`
	// Endpoint and EndpointToken configure the "remote" provider, which
	// POSTs generation requests to a deployed function.
	Endpoint      string `yaml:"endpoint"`
	EndpointToken string `yaml:"endpoint_token"`
	HistoryLimit  int    `yaml:"history_limit"`
	// TypingFallbackSecs bounds the typing indicator when generation
	// hangs. Zero uses the built-in default.
	TypingFallbackSecs int64 `yaml:"typing_fallback_secs"`
}

type AnalyticsConfig struct {
	Enabled       bool          `yaml:"enabled"`
	APIKey        string        `yaml:"api_key"`
	Endpoint      string        `yaml:"endpoint"`
	SpoolPath     string        `yaml:"spool_path"`
	FlushInterval Duration `yaml:"flush_interval"`
}

type SupportConfig struct {
	TelegramToken  string `yaml:"telegram_token"`
	TelegramChatID int64  `yaml:"telegram_chat_id"`
}

type NotificationsConfig struct {
	Enabled bool `yaml:"enabled"`
	// Cron is the sweep schedule; defaults to every 15 minutes.
	Cron       string `yaml:"cron"`
	WebhookURL string `yaml:"webhook_url"`
}

type PurchasesConfig struct {
	VerifyURL string `yaml:"verify_url"`
	Token     string `yaml:"token"`
}

type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Storage       StorageConfig       `yaml:"storage"`
	Auth          AuthConfig          `yaml:"auth"`
	Assistant     AssistantConfig     `yaml:"assistant"`
	Analytics     AnalyticsConfig     `yaml:"analytics"`
	Support       SupportConfig       `yaml:"support"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Purchases     PurchasesConfig     `yaml:"purchases"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// Load reads path (when non-empty) and applies environment overrides.
// A missing file is not an error; env vars alone can configure the engine.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	applyEnv(&cfg)
	if cfg.Storage.DBPath == "" {
		cfg.Storage.DBPath = "./data/coachsync"
	}
	return cfg, nil
}

// applyEnv overlays COACHSYNC_* variables. Env always wins so secrets can
// stay out of the file.
func applyEnv(cfg *Config) {
	setStr := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setStr(&cfg.Storage.DBPath, "COACHSYNC_DB_PATH")
	setStr(&cfg.Auth.TokenSecret, "COACHSYNC_TOKEN_SECRET")
	setStr(&cfg.Auth.Token, "COACHSYNC_TOKEN")
	setStr(&cfg.Auth.Timezone, "COACHSYNC_TZ")
	setStr(&cfg.Assistant.Provider, "COACHSYNC_ASSISTANT_PROVIDER")
	setStr(&cfg.Assistant.APIKey, "COACHSYNC_ASSISTANT_API_KEY")
	setStr(&cfg.Assistant.Endpoint, "COACHSYNC_ASSISTANT_ENDPOINT")
	setStr(&cfg.Assistant.EndpointToken, "COACHSYNC_ASSISTANT_ENDPOINT_TOKEN")
	setStr(&cfg.Analytics.APIKey, "COACHSYNC_ANALYTICS_API_KEY")
	setStr(&cfg.Support.TelegramToken, "COACHSYNC_TELEGRAM_TOKEN")
	setStr(&cfg.Purchases.Token, "COACHSYNC_PURCHASES_TOKEN")
	setStr(&cfg.Logging.Level, "COACHSYNC_LOG_LEVEL")
}
