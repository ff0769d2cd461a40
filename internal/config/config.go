package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration. Values come from an optional
// YAML file, overridden by environment variables, with defaults applied last.
// Configuration is loaded once at startup and never re-read.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Watch  WatchConfig  `yaml:"watch"`
	Notify NotifyConfig `yaml:"notify"`
	HTTP   HTTPConfig   `yaml:"http"`
}

// ServerConfig describes the game server being watched; used only for the
// "server is live" notification.
type ServerConfig struct {
	Address string `yaml:"address" env:"SERVER_IP"`
	Port    int    `yaml:"port" env:"SERVER_PORT"`
}

// WatchConfig holds log input and state file settings.
type WatchConfig struct {
	// LogPath, when set, tails the live log file instead of reading stdin.
	LogPath   string `yaml:"log_path" env:"LOG_PATH"`
	StateFile string `yaml:"state_file" env:"STATE_FILE"`
}

// NotifyConfig holds outbound notification settings. Empty endpoints disable
// the corresponding sink; that is not an error.
type NotifyConfig struct {
	WebhookURL  string        `yaml:"webhook_url" env:"DISCORD"`
	Timeout     time.Duration `yaml:"timeout" env:"NOTIFY_TIMEOUT"`
	NATSURL     string        `yaml:"nats_url" env:"NATS_URL"`
	NATSSubject string        `yaml:"nats_subject" env:"NATS_SUBJECT"`
}

// HTTPConfig holds the optional status API settings. The API is disabled
// unless ListenAddr is set.
type HTTPConfig struct {
	ListenAddr        string        `yaml:"listen_addr" env:"HTTP_LISTEN"`
	AdminPasswordHash string        `yaml:"admin_password_hash" env:"ADMIN_PASSWORD_HASH"`
	JWTSecret         string        `yaml:"jwt_secret" env:"JWT_SECRET"`
	TokenDuration     time.Duration `yaml:"token_duration" env:"TOKEN_DURATION"`
}

// Load reads configuration from an optional YAML file at path (empty or
// missing path is fine), applies environment overrides, then defaults.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	// Set defaults
	if cfg.Server.Address == "" {
		cfg.Server.Address = "NONE"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 2456
	}
	if cfg.Watch.StateFile == "" {
		cfg.Watch.StateFile = "./state.json"
	}
	if cfg.Notify.Timeout == 0 {
		cfg.Notify.Timeout = 5 * time.Second
	}
	if cfg.HTTP.TokenDuration == 0 {
		cfg.HTTP.TokenDuration = 24 * time.Hour
	}
	// Note: WebhookURL intentionally has no default - empty suppresses notifications

	return &cfg, nil
}
