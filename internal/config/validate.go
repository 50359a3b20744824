package config

import (
	"fmt"
	"strings"

	"github.com/jonny/interactiond/internal/adapter/inbound/webhook/signature"
)

// Validate checks the config for errors.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if cfg.Server.MetricsPort < 0 || cfg.Server.MetricsPort > 65535 {
		errs = append(errs, "server.metricsPort must be between 0 and 65535")
	}
	if cfg.Server.MetricsPort != 0 && cfg.Server.MetricsPort == cfg.Server.Port {
		errs = append(errs, "server.metricsPort must differ from server.port")
	}
	if (cfg.Server.TLSCertFile == "") != (cfg.Server.TLSKeyFile == "") {
		errs = append(errs, "server.tlsCertFile and server.tlsKeyFile must be set together")
	}
	if cfg.Server.HandlerTimeout < 0 {
		errs = append(errs, "server.handlerTimeout must not be negative")
	}
	if cfg.Server.RateLimitPerMinute < 0 {
		errs = append(errs, "server.rateLimitPerMinute must not be negative")
	}

	if cfg.Discord.ApplicationID == "" {
		errs = append(errs, "discord.applicationID is required")
	}
	if cfg.Discord.PublicKey == "" {
		errs = append(errs, "discord.publicKey is required")
	} else if _, err := signature.ParsePublicKey(cfg.Discord.PublicKey); err != nil {
		errs = append(errs, fmt.Sprintf("discord.publicKey is invalid: %v", err))
	}
	if cfg.Discord.SyncGlobalCommands && cfg.Discord.BotToken == "" {
		errs = append(errs, "discord.botToken is required when syncGlobalCommands is set")
	}
	if cfg.Discord.MaxRetries < 0 {
		errs = append(errs, "discord.maxRetries must not be negative")
	}

	if cfg.Scheduler.Workers <= 0 {
		errs = append(errs, "scheduler.workers must be positive")
	}

	if cfg.Alerting.Enabled {
		s := cfg.Alerting.Slack
		if s.WebhookURL == "" && (s.BotToken == "" || s.Channel == "") {
			errs = append(errs, "alerting.slack needs webhookURL or botToken and channel when alerting is enabled")
		}
	}

	if cfg.Database.Enabled && cfg.Database.SQLite.Path == "" {
		errs = append(errs, "database.sqlite.path is required when database is enabled")
	}
	if cfg.Database.Retention < 0 {
		errs = append(errs, "database.retention must not be negative")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("logging.level must be debug, info, warn, or error (got %q)", cfg.Logging.Level))
	}
	if cfg.Logging.Format != "json" && cfg.Logging.Format != "text" {
		errs = append(errs, fmt.Sprintf("logging.format must be json or text (got %q)", cfg.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}
