package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/xbiggyl/wsassistant/internal/config"
	"github.com/xbiggyl/wsassistant/internal/fanout"
	"github.com/xbiggyl/wsassistant/internal/metrics"
	"github.com/xbiggyl/wsassistant/internal/notify"
	"github.com/xbiggyl/wsassistant/internal/orchestrator"
	"github.com/xbiggyl/wsassistant/internal/persistence"
	"github.com/xbiggyl/wsassistant/internal/server"
	"github.com/xbiggyl/wsassistant/internal/session"
	"github.com/xbiggyl/wsassistant/internal/summarize"
	"github.com/xbiggyl/wsassistant/internal/transcription"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "meeting-assistant"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load .env for local development; absence is not an error
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	// Log service startup
	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	// Log configuration summary (without sensitive data)
	logger.Info("Configuration loaded",
		slog.Int("ws_port", cfg.Server.Port),
		slog.String("bind_address", cfg.Server.BindAddress),
		slog.Int("sample_rate", cfg.Audio.SampleRate),
		slog.Int("window_threshold_ms", cfg.Audio.WindowThresholdMs),
		slog.Int("summary_interval_ms", cfg.Summary.IntervalMs),
		slog.String("transcription_endpoint", cfg.Transcription.Endpoint),
		slog.String("summarizer_provider", cfg.Summarizer.Provider),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics()
	logger.Info("Prometheus metrics initialized")

	// Initialize the transcription adapter; a misconfigured adapter is a
	// fatal init error so no session can start without one
	transcriber, err := transcription.NewHTTPClient(transcription.Config{
		Endpoint:      cfg.Transcription.Endpoint,
		APIKey:        cfg.Transcription.APIKey,
		Model:         cfg.Transcription.Model,
		Timeout:       cfg.Transcription.GetTimeoutDuration(),
		MaxConcurrent: cfg.Transcription.MaxConcurrent,
	})
	if err != nil {
		logger.Error("Failed to create transcription client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize the summarization adapter, selected once by configuration
	summarizer, err := summarize.New(summarize.Config{
		Provider:     cfg.Summarizer.Provider,
		Endpoint:     cfg.Summarizer.Endpoint,
		APIKey:       cfg.Summarizer.APIKey,
		GeminiAPIKey: cfg.Summarizer.GeminiAPIKey,
		Model:        cfg.Summarizer.Model,
		Timeout:      cfg.Summarizer.GetTimeoutDuration(),
	})
	if err != nil {
		logger.Error("Failed to create summarizer", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize optional post-archive collaborators
	var store persistence.Store
	if cfg.Persistence.Enabled {
		fileStore, err := persistence.NewFileStore(cfg.Persistence.Dir)
		if err != nil {
			logger.Error("Failed to create archive store", slog.String("error", err.Error()))
			os.Exit(1)
		}
		store = fileStore
		logger.Info("Archive store initialized", slog.String("dir", cfg.Persistence.Dir))
	}

	var notifier notify.Notifier
	if cfg.Notification.Enabled {
		smtpNotifier, err := notify.NewSMTPNotifier(notify.SMTPConfig{
			Host:     cfg.Notification.SMTPHost,
			Port:     cfg.Notification.SMTPPort,
			Username: cfg.Notification.SMTPUsername,
			Password: cfg.Notification.SMTPPassword,
			From:     cfg.Notification.From,
		})
		if err != nil {
			logger.Error("Failed to create notifier", slog.String("error", err.Error()))
			os.Exit(1)
		}
		notifier = smtpNotifier
		logger.Info("Mail notifier initialized", slog.String("smtp_host", cfg.Notification.SMTPHost))
	}

	// Initialize session registry
	registry := session.NewRegistry(logger, session.Config{
		BytesPerSecond:  cfg.Audio.BytesPerSecond(),
		MaxPendingAudio: cfg.Audio.GetMaxPending(),
		WindowQueueSize: cfg.Server.WindowQueueSize,
	})

	// Initialize fanout and orchestrator
	fan := fanout.New(logger, appMetrics)
	orch := orchestrator.New(registry, fan, transcriber, summarizer, store, notifier, appMetrics, logger,
		orchestrator.Config{
			WindowThreshold: cfg.Audio.GetWindowThreshold(),
			SummaryInterval: cfg.Summary.GetInterval(),
			AdapterTimeout:  cfg.Transcription.GetTimeoutDuration(),
		})
	logger.Info("Orchestrator initialized",
		slog.Duration("window_threshold", cfg.Audio.GetWindowThreshold()),
		slog.Duration("summary_interval", cfg.Summary.GetInterval()),
	)

	// Initialize WebSocket server
	wsServer := server.NewWSServer(cfg.Server, orch, logger, appMetrics)
	logger.Info("WebSocket server initialized")

	// Initialize HTTP API server (if enabled)
	var httpServer *server.HTTPServer
	if cfg.HTTP.Enabled {
		httpServer = server.NewHTTPServer(cfg.HTTP, logger, cfg, registry, fan, transcriber, appMetrics)
		logger.Info("HTTP API server initialized",
			slog.String("address", fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)),
		)
	}

	// Start WebSocket server
	if err := wsServer.Start(); err != nil {
		logger.Error("Failed to start WebSocket server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start HTTP server (if enabled)
	if httpServer != nil {
		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...",
		slog.String("ws_address", fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.Port)),
	)

	sig := <-sigChan
	logger.Info("Received shutdown signal", slog.String("signal", sig.String()))

	logger.Info("Starting graceful shutdown...")

	// Stop servers first (stop accepting new connections and requests)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := wsServer.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping WebSocket server", slog.String("error", err.Error()))
	}

	if httpServer != nil {
		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
		}
	}

	// Drain remaining sessions so their aggregates are persisted, then wait
	// for background work to finish
	orch.Stop()

	// Get final statistics
	fanoutStats := fan.Stats()
	transcriptionStats := transcriber.GetStats()
	logger.Info("Final server statistics",
		slog.Uint64("events_sent", fanoutStats.EventsSent),
		slog.Uint64("send_failures", fanoutStats.SendFailures),
		slog.Uint64("transcription_requests", transcriptionStats.TotalRequests),
		slog.Uint64("transcription_failures", transcriptionStats.FailedRequests),
	)

	logger.Info("Service stopped")
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	// Parse log level
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo // default fallback
	}

	// Configure handler options
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug, // Add source info for debug level
	}

	// Determine output destination
	var output io.Writer
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		// File path: rotate with lumberjack
		maxSize := cfg.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 100
		}
		output = &lumberjack.Logger{
			Filename:   cfg.Output,
			MaxSize:    maxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
	}

	// Create handler based on format
	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	case "text", "":
		handler = slog.NewTextHandler(output, opts)
	default:
		// Default to text format
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
