package main

import (
	"context"
	"encoding/json"
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

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/benzinga-stream/internal/auth"
	"github.com/rickgao/benzinga-stream/internal/config"
	"github.com/rickgao/benzinga-stream/internal/connection"
	"github.com/rickgao/benzinga-stream/internal/database"
	"github.com/rickgao/benzinga-stream/internal/metrics"
	"github.com/rickgao/benzinga-stream/internal/model"
	"github.com/rickgao/benzinga-stream/internal/router"
	"github.com/rickgao/benzinga-stream/internal/subscription"
	"github.com/rickgao/benzinga-stream/internal/version"
	"github.com/rickgao/benzinga-stream/internal/writer"
)

func main() {
	configPath := flag.String("config", "configs/gatherer.local.yaml", "path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "config", *configPath)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting gatherer",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
		"instance_id", cfg.Instance.ID,
		"transport", cfg.Feed.Transport,
	)

	creds, err := auth.LoadCredentials(cfg.Feed.Username, cfg.Feed.APIKey, cfg.Feed.APIKeyPath)
	if err != nil {
		logger.Error("failed to load credentials", "error", err)
		os.Exit(1)
	}
	logger.Info("credentials loaded", "credentials", creds.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New("benzinga")

	// Connect to database
	var pool *pgxpool.Pool
	if !cfg.Database.Disabled {
		logger.Info("connecting to database",
			"host", cfg.Database.Postgres.Host,
			"port", cfg.Database.Postgres.Port,
			"database", cfg.Database.Postgres.Name,
		)
		pool, err = database.Connect(ctx, cfg.Database.Postgres, version.Product+"-"+cfg.Instance.ID)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		if err := database.EnsureSchema(ctx, pool); err != nil {
			logger.Error("failed to ensure schema", "error", err)
			os.Exit(1)
		}
		logger.Info("database connected")
	} else {
		logger.Warn("database disabled, news events will only be logged")
	}

	// Events flow: manager -> dispatcher -> sink -> buffer -> writer.
	buf := router.NewBoundedBuffer[model.NewsEvent](cfg.Writers.BufferSize, cfg.Writers.MaxBufferSize)
	var sink subscription.Sink = router.NewBufferSink(buf, logger)
	if pool == nil {
		sink = subscription.SinkFunc(func(e model.NewsEvent) {
			logger.Info("news",
				"id", e.ID,
				"symbol", e.Symbol,
				"title", e.Title,
				"updated_at", time.UnixMicro(e.UpdatedAt).UTC(),
			)
		})
	}

	connCfg, err := connection.ConfigFromFile(cfg, creds)
	if err != nil {
		logger.Error("invalid connection settings", "error", err)
		os.Exit(1)
	}
	manager, err := connection.NewManager(connCfg, sink, m, logger)
	if err != nil {
		logger.Error("failed to create connection manager", "error", err)
		os.Exit(1)
	}
	for _, symbol := range cfg.Dispatch.Symbols {
		if _, err := manager.Subscribe(symbol, sink); err != nil {
			logger.Error("failed to subscribe", "symbol", symbol, "error", err)
			os.Exit(1)
		}
	}
	logger.Info("subscriptions registered",
		"mode", connCfg.Mode,
		"symbols", manager.Registry().Symbols(),
	)

	var newsWriter *writer.NewsWriter
	if pool != nil {
		newsWriter = writer.NewNewsWriter(writer.WriterConfig{
			BatchSize:     cfg.Writers.BatchSize,
			FlushInterval: cfg.Writers.FlushInterval,
		}, buf, pool, m, logger)
		if err := newsWriter.Start(ctx); err != nil {
			logger.Error("failed to start news writer", "error", err)
			os.Exit(1)
		}
	}

	healthServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler:           createHandler(cfg.Metrics.Path, m, manager, pool, newsWriter),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting health server", "port", cfg.Metrics.Port, "metrics_path", cfg.Metrics.Path)
		if err := healthServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})

	if err := manager.Start(gctx); err != nil {
		logger.Error("failed to start connection manager", "error", err)
		os.Exit(1)
	}

	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case <-manager.Done():
			// The worker only exits on its own after a fatal error.
			if err := manager.Err(); err != nil {
				return fmt.Errorf("connection manager halted: %w", err)
			}
			return nil
		}
	})

	logger.Info("gatherer running",
		"instance_id", cfg.Instance.ID,
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Metrics.Port),
	)

	<-gctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Connections.ShutdownTimeout)
	defer cancel()

	if err := manager.Stop(shutdownCtx); err != nil {
		logger.Warn("connection manager stop", "error", err)
	}
	if newsWriter != nil {
		buf.Close()
		if err := newsWriter.Stop(shutdownCtx); err != nil {
			logger.Warn("news writer stop", "error", err)
		}
	}
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("health server shutdown", "error", err)
	}

	if err := g.Wait(); err != nil {
		logger.Error("gatherer stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("gatherer stopped")
}

// newLogger builds the process logger from the log section.
func newLogger(cfg config.LogConfig) *slog.Logger {
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

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// createHandler creates the HTTP handler for metrics and health checks.
// pool and newsWriter are nil when the database is disabled.
func createHandler(
	metricsPath string,
	m *metrics.Metrics,
	manager *connection.Manager,
	pool *pgxpool.Pool,
	newsWriter *writer.NewsWriter,
) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(metricsPath, m.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string         `json:"status"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]any),
		}

		stats := manager.Stats()
		health.Components["stream"] = map[string]any{
			"state":       stats.State.String(),
			"connected":   stats.Connected,
			"sessions":    stats.Sessions,
			"disconnects": stats.Disconnects,
			"messages":    stats.Messages,
			"last_error":  stats.LastError,
			"dispatch":    stats.Dispatch,
		}
		if !stats.Connected {
			health.Status = "degraded"
		}
		if manager.Err() != nil {
			health.Status = "unhealthy"
		}

		if pool != nil {
			if err := pool.Ping(ctx); err != nil {
				health.Status = "unhealthy"
				health.Components["postgres"] = map[string]string{
					"status": "disconnected",
					"error":  err.Error(),
				}
			} else {
				health.Components["postgres"] = "connected"
			}
		}
		if newsWriter != nil {
			health.Components["news_writer"] = newsWriter.Stats()
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	return mux
}
