package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonny/interactiond/internal/adapter/inbound/webhook"
	"github.com/jonny/interactiond/internal/adapter/inbound/webhook/signature"
	"github.com/jonny/interactiond/internal/adapter/outbound/discord"
	"github.com/jonny/interactiond/internal/adapter/outbound/notification"
	slackalerter "github.com/jonny/interactiond/internal/adapter/outbound/notification/slack"
	"github.com/jonny/interactiond/internal/adapter/outbound/persistence/sqlite"
	"github.com/jonny/interactiond/internal/config"
	"github.com/jonny/interactiond/internal/domain/port/outbound"
	"github.com/jonny/interactiond/internal/domain/service"
	"github.com/jonny/interactiond/pkg/health"
	"github.com/jonny/interactiond/pkg/version"
)

const (
	pruneInterval = time.Hour
	// Readiness fails once more continuations than this, per worker, are queued.
	schedulerBacklogPerWorker = 100
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	envPath := flag.String("env", ".env", "path to an optional .env file")
	printVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *printVersion {
		fmt.Println(version.String())
		os.Exit(0)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if err := config.LoadDotEnv(*envPath); err != nil {
		logger.Error("failed to load env file", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = buildLogger(cfg.Logging)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("interactiond stopped")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	publicKey, err := signature.ParsePublicKey(cfg.Discord.PublicKey)
	if err != nil {
		return fmt.Errorf("parsing discord public key: %w", err)
	}

	// --- Database ---
	var (
		store     *sqlite.Store
		auditRepo *sqlite.AuditRepo
		audits    outbound.AuditRepository
	)
	if cfg.Database.Enabled {
		store, err = sqlite.NewStore(ctx, sqlite.Config{
			Path:              cfg.Database.SQLite.Path,
			MaxOpenConns:      cfg.Database.SQLite.MaxOpenConns,
			PragmaJournalMode: cfg.Database.SQLite.PragmaJournalMode,
			PragmaBusyTimeout: cfg.Database.SQLite.PragmaBusyTimeout,
		})
		if err != nil {
			return fmt.Errorf("opening sqlite store: %w", err)
		}
		defer store.Close()
		auditRepo = sqlite.NewAuditRepo(store)
		audits = auditRepo
	} else {
		logger.Info("interaction audit log disabled")
	}

	// --- Discord REST ---
	httpClient := &http.Client{Timeout: cfg.Discord.APITimeout + 5*time.Second}
	discordClient, err := discord.NewClient(discord.Config{
		ApplicationID: cfg.Discord.ApplicationID,
		BotToken:      cfg.Discord.BotToken,
		Timeout:       cfg.Discord.APITimeout,
		MaxRetries:    cfg.Discord.MaxRetries,
		HTTPClient:    httpClient,
	})
	if err != nil {
		return fmt.Errorf("creating discord client: %w", err)
	}

	// --- Alerting ---
	var alerter outbound.Alerter = notification.NewNoopAlerter(logger)
	var slackAlerts *slackalerter.Alerter
	if cfg.Alerting.Enabled {
		slackAlerts, err = slackalerter.NewAlerter(slackalerter.Config{
			WebhookURL:  cfg.Alerting.Slack.WebhookURL,
			BotToken:    cfg.Alerting.Slack.BotToken,
			Channel:     cfg.Alerting.Slack.Channel,
			Environment: cfg.Alerting.Slack.Environment,
			AppName:     "interactiond",
			Cooldown:    cfg.Alerting.Slack.Cooldown,
			HTTPClient:  httpClient,
		}, logger)
		if err != nil {
			return fmt.Errorf("creating slack alerter: %w", err)
		}
		alerter = slackAlerts
		defer slackAlerts.Wait()
	}

	// --- Domain services ---
	registry := service.NewRegistry(discordClient)
	registerHandlers(registry)

	scheduler := service.NewScheduler(cfg.Scheduler.Workers, logger)
	defer scheduler.StopWait()

	rt := service.Runtime{
		Registry:  registry,
		Responder: discordClient,
		Guilds:    discordClient,
		Scheduler: scheduler,
		Logger:    logger,
	}

	if cfg.Discord.SyncGlobalCommands {
		cmds, err := discordClient.BulkOverwriteGlobalCommands(ctx, globalCommands())
		if err != nil {
			return fmt.Errorf("syncing global commands: %w", err)
		}
		logger.Info("global commands synced", "count", len(cmds))
	}

	// --- Interactions server ---
	dispatcher := webhook.NewDispatcher(rt, alerter, audits, webhook.DispatcherConfig{
		HandlerTimeout: cfg.Server.HandlerTimeout,
	})
	server := webhook.NewServer(webhook.ServerConfig{
		Port:               cfg.Server.Port,
		ReadTimeout:        cfg.Server.ReadTimeout,
		WriteTimeout:       cfg.Server.WriteTimeout,
		IdleTimeout:        cfg.Server.IdleTimeout,
		ShutdownTimeout:    cfg.Server.ShutdownTimeout,
		TLSCertFile:        cfg.Server.TLSCertFile,
		TLSKeyFile:         cfg.Server.TLSKeyFile,
		RateLimitPerMinute: cfg.Server.RateLimitPerMinute,
		TrustProxy:         cfg.Server.TrustProxy,
	}, publicKey, dispatcher, logger)

	// --- Health checker ---
	checker := health.NewChecker()
	if store != nil {
		checker.Register("database", store.Ping)
	}
	checker.Register("registry", func(context.Context) error {
		if registry.Counts().Global == 0 {
			return errors.New("no global handlers registered")
		}
		return nil
	})
	checker.Register("scheduler", scheduler.Check(cfg.Scheduler.Workers*schedulerBacklogPerWorker))

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting interactions server", "port", cfg.Server.Port)
		return server.Start(gCtx)
	})

	if cfg.Server.MetricsPort > 0 {
		metricsMux := http.NewServeMux()
		metricsMux.HandleFunc("/healthz", checker.LivenessHandler())
		metricsMux.HandleFunc("/readyz", checker.ReadinessHandler())
		if audits != nil {
			metricsMux.HandleFunc("GET /debug/audit", webhook.AuditHandler(audits, logger))
		}
		metricsServer := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.MetricsPort),
			Handler:           metricsMux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("starting metrics server", "port", cfg.Server.MetricsPort)
			errCh := make(chan error, 1)
			go func() {
				if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()
			select {
			case <-gCtx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
				defer cancel()
				return metricsServer.Shutdown(shutdownCtx)
			case err := <-errCh:
				return err
			}
		})
	}

	if auditRepo != nil && cfg.Database.Retention > 0 {
		g.Go(func() error {
			pruneAudits(gCtx, auditRepo, cfg.Database.Retention, logger)
			return nil
		})
	}

	logger.Info("interactiond started",
		"version", version.String(),
		"application_id", cfg.Discord.ApplicationID,
		"global_handlers", registry.Counts().Global,
	)

	return g.Wait()
}

// pruneAudits removes audit records older than retention until ctx is done.
func pruneAudits(ctx context.Context, repo *sqlite.AuditRepo, retention time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		n, err := repo.Prune(ctx, time.Now().Add(-retention))
		switch {
		case err != nil && ctx.Err() == nil:
			logger.Warn("pruning audit records failed", "error", err)
		case n > 0:
			logger.Info("pruned audit records", "count", n)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// buildLogger constructs a slog.Logger based on config.
func buildLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	out := os.Stdout
	if cfg.Output == "stderr" {
		out = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(out, opts))
	}
	return slog.New(slog.NewJSONHandler(out, opts))
}
