// streamtest connects to the Benzinga news stream and prints each event with
// its sentiment score. Nothing is written to the database.
//
// Usage: go run ./cmd/streamtest --config configs/gatherer.local.yaml --symbols AAPL,TSLA
//
// Credentials come from the config file or the environment:
//
//	BENZINGA_API_KEY      - API key issued by Benzinga
//	BENZINGA_API_KEY_PATH - File holding the key, used when BENZINGA_API_KEY is unset
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rickgao/benzinga-stream/internal/auth"
	"github.com/rickgao/benzinga-stream/internal/config"
	"github.com/rickgao/benzinga-stream/internal/connection"
	"github.com/rickgao/benzinga-stream/internal/model"
	"github.com/rickgao/benzinga-stream/internal/router"
	"github.com/rickgao/benzinga-stream/internal/sentiment"
	"github.com/rickgao/benzinga-stream/internal/subscription"
)

func main() {
	configPath := flag.String("config", "configs/gatherer.example.yaml", "path to config file")
	symbols := flag.String("symbols", "", "comma-separated symbols; empty prints every event")
	verbose := flag.Bool("verbose", false, "print full event JSON")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	cfg, err := config.LoadWithDefaults(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg.Database.Disabled = true
	if *symbols != "" {
		cfg.Dispatch.Mode = subscription.ModeStrict.String()
		cfg.Dispatch.Symbols = strings.Split(*symbols, ",")
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	creds, err := auth.LoadCredentials(cfg.Feed.Username, cfg.Feed.APIKey, cfg.Feed.APIKeyPath)
	if err != nil {
		logger.Error("API credentials required",
			"error", err,
			"api_key_set", cfg.Feed.APIKey != "",
			"api_key_path_set", cfg.Feed.APIKeyPath != "",
		)
		logger.Info("Set BENZINGA_API_KEY or BENZINGA_API_KEY_PATH")
		os.Exit(1)
	}
	logger.Info("using API credentials", "credentials", creds.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	buf := router.NewGrowableBuffer[model.NewsEvent](cfg.Writers.BufferSize)
	sink := router.NewBufferSink(buf, logger)

	connCfg, err := connection.ConfigFromFile(cfg, creds)
	if err != nil {
		logger.Error("invalid connection settings", "error", err)
		os.Exit(1)
	}
	connMgr, err := connection.NewManager(connCfg, sink, nil, logger)
	if err != nil {
		logger.Error("failed to create connection manager", "error", err)
		os.Exit(1)
	}
	for _, symbol := range cfg.Dispatch.Symbols {
		if _, err := connMgr.Subscribe(symbol, sink); err != nil {
			logger.Error("failed to subscribe", "symbol", symbol, "error", err)
			os.Exit(1)
		}
	}

	logger.Info("starting connection manager",
		"transport", connCfg.Transport,
		"mode", connCfg.Mode,
		"symbols", connMgr.Registry().Symbols(),
	)
	if err := connMgr.Start(ctx); err != nil {
		logger.Error("failed to start connection manager", "error", err)
		os.Exit(1)
	}

	go printEvents(ctx, buf, *verbose)

	// Stats printer
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats := connMgr.Stats()
				logger.Info("stats",
					"state", stats.State,
					"connected", stats.Connected,
					"sessions", stats.Sessions,
					"messages", stats.Messages,
					"pings_sent", stats.PingsSent,
					"delivered", stats.Dispatch.EventsDelivered,
					"mapping_errors", stats.Dispatch.MappingErrors,
					"buffered", buf.Len(),
				)
			}
		}
	}()

	logger.Info("streaming started - press Ctrl+C to stop")

	select {
	case <-ctx.Done():
	case <-connMgr.Done():
		logger.Error("connection manager halted", "error", connMgr.Err())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Connections.ShutdownTimeout)
	defer cancel()

	logger.Info("shutting down...")
	if err := connMgr.Stop(shutdownCtx); err != nil {
		logger.Warn("connection manager stop", "error", err)
	}

	logger.Info("shutdown complete")
}

func printEvents(ctx context.Context, buf *router.GrowableBuffer[model.NewsEvent], verbose bool) {
	var scorer sentiment.Scorer
	for {
		select {
		case <-ctx.Done():
			return
		default:
			e, ok := buf.TryReceive()
			if !ok {
				time.Sleep(10 * time.Millisecond)
				continue
			}

			score := scorer.ScoreEvent(e)
			if verbose {
				data, _ := json.MarshalIndent(e, "", "  ")
				fmt.Printf("[NEWS] score=%.2f signal=%s\n%s\n", score, sentiment.Classify(score), data)
				continue
			}
			fmt.Printf("[NEWS] id=%d symbol=%s score=%.2f signal=%s weight=%.2f title=%q\n",
				e.ID, e.Symbol, score, sentiment.Classify(score), sentiment.Weight(score), e.Title)
		}
	}
}
