package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quokkaops/answer-bridge/internal/adapter/handler"
	"github.com/quokkaops/answer-bridge/internal/infrastructure/config"
	"github.com/quokkaops/answer-bridge/internal/infrastructure/dedup"
	"github.com/quokkaops/answer-bridge/internal/infrastructure/llm"
	"github.com/quokkaops/answer-bridge/internal/infrastructure/observability"
	"github.com/quokkaops/answer-bridge/internal/infrastructure/resilience"
	"github.com/quokkaops/answer-bridge/internal/infrastructure/server"
	infraslack "github.com/quokkaops/answer-bridge/internal/infrastructure/slack"
	"github.com/quokkaops/answer-bridge/internal/usecase/respond"
)

const serviceVersion = "0.1.0"

func main() {
	// Setup logger
	logLevel := new(slog.LevelVar)
	logger := setupLogger(logLevel, "info", "json")

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Recreate the logger with the configured level and format
	logger = setupLogger(logLevel, cfg.Logging.Level, cfg.Logging.Format)

	logger.Info("configuration loaded",
		"storage_type", cfg.Storage.Type,
		"server_port", cfg.Server.Port,
		"verify_signatures", cfg.Webhook.VerifySignatures,
		"dedup_window", cfg.Webhook.DedupWindow,
		"model", cfg.LLM.Model,
	)

	// Initialize the dedup store
	store, err := newDedupStore(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize dedup store", "error", err)
		os.Exit(1)
	}

	// Initialize telemetry
	telemetry, err := observability.NewTelemetry(observability.ServiceName, serviceVersion)
	if err != nil {
		logger.Error("failed to initialize telemetry", "error", err)
		os.Exit(1)
	}
	metrics := telemetry.Metrics

	// Initialize the Slack client and resolve the bot identity
	slackClient := infraslack.NewClient(cfg.Slack.BotToken, cfg.Slack.APIURL).WithMetrics(metrics)

	botUserID := cfg.Slack.BotUserID
	if botUserID == "" {
		authCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		botUserID, err = slackClient.BotUserID(authCtx)
		cancel()
		if err != nil {
			logger.Error("failed to resolve bot user ID via auth.test", "error", err)
			os.Exit(1)
		}
	}
	logger.Info("slack integration ready", "bot_user_id", botUserID)

	// Initialize the answer engine behind a circuit breaker
	breaker := resilience.NewCircuitBreaker("llm", 5, 30*time.Second)
	engine := llm.NewEngine(llm.Config{
		APIKey:       cfg.LLM.APIKey,
		Model:        cfg.LLM.Model,
		MaxTokens:    cfg.LLM.MaxTokens,
		Timeout:      cfg.LLM.Timeout,
		SystemPrompt: cfg.LLM.SystemPrompt,
	}, breaker, metrics)

	// Initialize the response pipeline
	stats := respond.NewStats()

	policySource := respond.NewPolicySource(postPolicyFrom(cfg))

	poster := respond.NewPoster(slackClient, resilience.DefaultRetryPolicy(), policySource, logger)
	processor := respond.NewProcessor(engine, poster, stats, logger, botUserID, policySource)

	// Watch the config file so reloadable keys apply without restart
	manager := config.NewManager(configPath, cfg, logger)
	manager.OnReload(func(*config.Config) {
		next := manager.Get()
		logLevel.Set(parseLevel(next.Logging.Level))
		policySource.Update(postPolicyFrom(next))
		logger.Info("applied reloaded configuration",
			"log_level", next.Logging.Level,
			"max_response_length", next.Webhook.MaxResponseLength,
			"enable_threading", next.Webhook.EnableThreading,
			"enable_direct_messages", next.Webhook.EnableDirectMessages,
		)
	})
	if err := manager.Watch(); err != nil {
		logger.Warn("config file watching disabled", "error", err)
	}
	defer manager.Close()

	// Initialize handlers
	handlers := &server.Handlers{
		Events: handler.NewEventsHandler(
			infraslack.NewSignatureVerifier(cfg.Slack.SigningSecret),
			store,
			processor,
			stats,
			metrics,
			logger,
			cfg.Webhook.VerifySignatures,
			cfg.Webhook.ProcessingTimeout,
		),
		Health:  handler.NewHealthHandler(stats),
		Ready:   handler.NewReadyHandler(store),
		Stats:   handler.NewStatsHandler(stats),
		Metrics: handler.NewMetricsHandler(),
		Reload:  handler.NewReloadHandler(manager, logger),
	}

	// Setup router and server
	router := server.NewRouter(handlers, logger, metrics)
	srv := server.New(cfg.Server, router, logger)

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting answer-bridge",
		"port", cfg.Server.Port,
	)

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shut down telemetry", "error", err)
	}
	cancel()

	if err := store.Close(); err != nil {
		logger.Error("failed to close dedup store", "error", err)
	}

	logger.Info("answer-bridge stopped")
}

// postPolicyFrom maps the webhook configuration to the delivery policy.
func postPolicyFrom(cfg *config.Config) respond.PostPolicy {
	return respond.PostPolicy{
		EnableThreading:      cfg.Webhook.EnableThreading,
		EnableDirectMessages: cfg.Webhook.EnableDirectMessages,
		MaxResponseLength:    cfg.Webhook.MaxResponseLength,
		PostTimeout:          cfg.Webhook.PostTimeout,
	}
}

// newDedupStore builds the duplicate-suppression store selected by the
// storage configuration.
func newDedupStore(cfg *config.Config, logger *slog.Logger) (dedup.Store, error) {
	switch cfg.Storage.Type {
	case "mysql":
		store, err := dedup.NewMySQLStore(dedup.MySQLConfig{
			Host:     cfg.Storage.MySQL.Host,
			Port:     cfg.Storage.MySQL.Port,
			Database: cfg.Storage.MySQL.Database,
			Username: cfg.Storage.MySQL.Username,
			Password: cfg.Storage.MySQL.Password,
		}, cfg.Webhook.DedupWindow)
		if err != nil {
			return nil, err
		}
		logger.Info("MySQL dedup store initialized",
			"host", cfg.Storage.MySQL.Host,
			"database", cfg.Storage.MySQL.Database,
		)
		return store, nil

	case "sqlite":
		store, err := dedup.NewSQLiteStore(cfg.Storage.SQLite.Path, cfg.Webhook.DedupWindow)
		if err != nil {
			return nil, err
		}
		logger.Info("SQLite dedup store initialized", "path", cfg.Storage.SQLite.Path)
		return store, nil

	default:
		logger.Info("in-memory dedup store initialized")
		return dedup.NewMemoryStore(cfg.Webhook.DedupWindow), nil
	}
}

// setupLogger creates and configures the logger. The LevelVar lets the
// level change on config reload without rebuilding the handler.
func setupLogger(logLevel *slog.LevelVar, level, format string) *slog.Logger {
	logLevel.Set(parseLevel(level))

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
