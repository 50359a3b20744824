package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Discord   DiscordConfig   `yaml:"discord"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Alerting  AlertingConfig  `yaml:"alerting"`
	Database  DatabaseConfig  `yaml:"database"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	IdleTimeout     time.Duration `yaml:"idleTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	MetricsPort     int           `yaml:"metricsPort"`
	TLSCertFile     string        `yaml:"tlsCertFile"`
	TLSKeyFile      string        `yaml:"tlsKeyFile"`
	// HandlerTimeout bounds synchronous handlers. Zero disables it.
	HandlerTimeout     time.Duration `yaml:"handlerTimeout"`
	RateLimitPerMinute int           `yaml:"rateLimitPerMinute"`
	TrustProxy         bool          `yaml:"trustProxy"`
}

type DiscordConfig struct {
	ApplicationID      string        `yaml:"applicationID"`
	PublicKey          string        `yaml:"publicKey"`
	BotToken           string        `yaml:"botToken"`
	APITimeout         time.Duration `yaml:"apiTimeout"`
	MaxRetries         int           `yaml:"maxRetries"`
	SyncGlobalCommands bool          `yaml:"syncGlobalCommands"`
}

type SchedulerConfig struct {
	Workers int `yaml:"workers"`
}

type AlertingConfig struct {
	Enabled bool        `yaml:"enabled"`
	Slack   SlackConfig `yaml:"slack"`
}

type SlackConfig struct {
	WebhookURL  string        `yaml:"webhookURL"`
	BotToken    string        `yaml:"botToken"`
	Channel     string        `yaml:"channel"`
	Environment string        `yaml:"environment"`
	Cooldown    time.Duration `yaml:"cooldown"`
}

type DatabaseConfig struct {
	Enabled bool         `yaml:"enabled"`
	SQLite  SQLiteConfig `yaml:"sqlite"`
	// Retention is how long audit records are kept. Zero keeps them forever.
	Retention time.Duration `yaml:"retention"`
}

type SQLiteConfig struct {
	Path              string `yaml:"path"`
	MaxOpenConns      int    `yaml:"maxOpenConns"`
	PragmaJournalMode string `yaml:"pragmaJournalMode"`
	PragmaBusyTimeout int    `yaml:"pragmaBusyTimeout"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// LoadDotEnv loads KEY=VALUE pairs from path into the environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// Load reads a YAML config file and returns a Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			MetricsPort:     9090,
		},
		Discord: DiscordConfig{
			APITimeout: 10 * time.Second,
			MaxRetries: 3,
		},
		Scheduler: SchedulerConfig{
			Workers: 8,
		},
		Alerting: AlertingConfig{
			Slack: SlackConfig{
				Environment: "dev",
				Cooldown:    10 * time.Minute,
			},
		},
		Database: DatabaseConfig{
			Enabled: true,
			SQLite: SQLiteConfig{
				Path:              "/data/interactiond.db",
				MaxOpenConns:      1,
				PragmaJournalMode: "wal",
				PragmaBusyTimeout: 5000,
			},
			Retention: 30 * 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// expandEnvVars replaces ${VAR} patterns with environment variable values.
func expandEnvVars(s string) string {
	return os.Expand(s, func(key string) string {
		if val, ok := os.LookupEnv(key); ok {
			return val
		}
		return "${" + key + "}"
	})
}
