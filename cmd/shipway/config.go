package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// =============================================================================
// Config Types
// =============================================================================

// Config holds binary-level configuration. Deployment inputs (the manifest
// and the env files) are not configuration; they are read per command.
type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	History HistoryConfig `mapstructure:"history"`
	Target  TargetConfig  `mapstructure:"target"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// HistoryConfig holds the run history store configuration.
type HistoryConfig struct {
	// Path is the SQLite database file, resolved against the repo root
	// when relative. Empty disables run recording.
	Path string `mapstructure:"path"`

	// Key is the passphrase protecting recorded environment snapshots.
	// Empty records runs without environment snapshots.
	// Set via SHIPWAY_HISTORY_KEY.
	Key string `mapstructure:"key"`
}

// TargetConfig holds webhook target settings. These describe deployment
// infrastructure, not the deployment itself, so they live here rather than
// in the schema-validated env files. Everything is overridable per deploy
// via flags, and host/key fall back to the provisioned target recorded in
// history.
type TargetConfig struct {
	// Kind selects the default apply target: "aci" or "webhook".
	Kind string `mapstructure:"kind"`

	// Host is the SSH target as user@host. Empty means look up the active
	// provisioned target in history.
	Host string `mapstructure:"host"`

	// SSHKeyFile is the PEM private key for Host. Ignored when Host comes
	// from history, which stores its own key.
	SSHKeyFile string `mapstructure:"ssh_key_file"`

	// RemoteDir is where stack and env files land on the host.
	// Empty derives /opt/<deployment name>.
	RemoteDir string `mapstructure:"remote_dir"`

	// WebhookURL is the full Portainer stack webhook URL. Wins over
	// WebhookToken when both are set.
	WebhookURL string `mapstructure:"webhook_url"`

	// WebhookToken is the stack webhook token; the URL is derived from
	// Host and HTTPSPort.
	WebhookToken string `mapstructure:"webhook_token"`

	// HTTPSPort is the host port the Portainer UI is published on.
	HTTPSPort int `mapstructure:"https_port"`

	// Insecure skips TLS verification on webhook calls. Portainer ships
	// with a self-signed certificate, so this is usually required.
	Insecure bool `mapstructure:"insecure"`
}

// =============================================================================
// Config Loading
// =============================================================================

// LoadConfig loads configuration from file and environment.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("history.path", ".shipway/history.db")
	v.SetDefault("history.key", "")

	v.SetDefault("target.kind", "aci")
	v.SetDefault("target.host", "")
	v.SetDefault("target.ssh_key_file", "")
	v.SetDefault("target.remote_dir", "")
	v.SetDefault("target.webhook_url", "")
	v.SetDefault("target.webhook_token", "")
	v.SetDefault("target.https_port", 9943)
	v.SetDefault("target.insecure", true)

	// Load from file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			// Only return error if file was explicitly specified and is invalid
			if _, ok := err.(viper.ConfigParseError); ok {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
			// File not found is OK, we'll use defaults
		}
	}

	// Enable environment variable overrides
	v.SetEnvPrefix("SHIPWAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format. Logs go
// to stderr; stdout is reserved for command output.
func SetupLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}
