package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/user/netpulse/internal/alert"
	"github.com/user/netpulse/internal/config"
	"github.com/user/netpulse/internal/prompt"
	"github.com/user/netpulse/internal/ratelimit"
	"github.com/user/netpulse/internal/store"
	"github.com/user/netpulse/internal/telemetry"
	"github.com/user/netpulse/internal/watcher"
	"github.com/user/netpulse/internal/worker"
	"github.com/user/netpulse/pkg/llm"
	"github.com/user/netpulse/pkg/llm/anthropic"
	"github.com/user/netpulse/pkg/llm/gemini"
	"github.com/user/netpulse/pkg/llm/openai"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the netpulse worker daemon",
	RunE:  runServe,
}

func writePIDFile(dataDir string) (string, error) {
	pidPath := filepath.Join(dataDir, "netpulse.pid")
	pid := os.Getpid()
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return "", fmt.Errorf("write PID file: %w", err)
	}
	return pidPath, nil
}

func newProvider(ctx context.Context, cfg *config.Config) (llm.Provider, error) {
	llmCfg := &llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	}
	switch cfg.LLM.Provider {
	case "openai", "":
		return openai.New(llmCfg), nil
	case "gemini":
		return gemini.New(ctx, llmCfg)
	case "anthropic":
		return anthropic.New(llmCfg), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %q", cfg.LLM.Provider)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	if cfg.LLM.APIKey == "" {
		return fmt.Errorf("no API key configured for provider %q", cfg.LLM.Provider)
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	pidPath, err := writePIDFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer os.Remove(pidPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Stores
	db, err := store.Open(filepath.Join(cfg.DataDir, "netpulse.db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	requests := store.NewRequestStore(db)
	responses := store.NewResponseStore(db)
	samples := store.NewTelemetryStore(db)

	// LLM provider
	provider, err := newProvider(ctx, cfg)
	if err != nil {
		return err
	}

	// Prompt builder
	builder, err := prompt.New(cfg.LLM.Model, cfg.LLM.MaxContextTokens, cfg.LLM.OutputReserve)
	if err != nil {
		return fmt.Errorf("create prompt builder: %w", err)
	}

	// Per-device rate limiter, when redis is configured.
	var limiter ratelimit.Limiter = ratelimit.Noop{}
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		limiter = ratelimit.NewRedisLimiter(rdb,
			cfg.Redis.RequestsPerWindow,
			time.Duration(cfg.Redis.WindowSeconds)*time.Second)
		slog.Info("redis rate limiter enabled", "addr", cfg.Redis.Addr)
	}

	// Operator alerts
	var alerts *alert.Registry
	if cfg.Telegram.Token != "" && cfg.Telegram.ChatID != 0 {
		notifier, err := alert.NewTelegramNotifier(cfg.Telegram.Token, cfg.Telegram.ChatID)
		if err != nil {
			return fmt.Errorf("create telegram notifier: %w", err)
		}
		alerts = alert.NewRegistry()
		alerts.Register("", notifier.Notify)
		slog.Info("telegram alerts enabled")
	} else {
		slog.Warn("telegram alerts disabled (no token or chat_id)")
	}

	// Handler
	handler := worker.NewHandler(requests, responses, samples, provider, builder, cfg.LLM.Model, worker.Options{
		Limiter: limiter,
		Alerts:  alerts,
		Timeout: time.Duration(cfg.Watch.TimeoutSeconds) * time.Second,
	})

	// Watcher
	w := watcher.New(requests,
		time.Duration(cfg.Watch.IntervalSeconds)*time.Second,
		int64(cfg.Watch.MaxConcurrent))
	w.Queue.SetProcessor(handler.Handle)
	w.Start(ctx)
	defer w.Stop()

	// Background jobs: telemetry classification and stale-request sweeps.
	classifier := telemetry.NewClassifier(samples, alerts)
	sweeper := worker.NewSweeper(requests, alerts,
		time.Duration(cfg.Watch.LeaseMinutes)*time.Minute)

	c := cron.New()
	if _, err := c.AddFunc("@every 1m", func() {
		if n, err := classifier.Run(ctx); err != nil {
			slog.Error("telemetry classification failed", "error", err)
		} else if n > 0 {
			slog.Debug("telemetry classified", "count", n)
		}
	}); err != nil {
		return fmt.Errorf("schedule classifier: %w", err)
	}
	if _, err := c.AddFunc("@every 5m", func() {
		if _, err := sweeper.Run(ctx); err != nil {
			slog.Error("stale request sweep failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule sweeper: %w", err)
	}
	c.Start()
	defer c.Stop()

	slog.Info("netpulse started",
		"data_dir", cfg.DataDir,
		"log_level", cfg.LogLevel,
		"poll_interval_s", cfg.Watch.IntervalSeconds,
		"max_concurrent", cfg.Watch.MaxConcurrent,
		"llm_provider", cfg.LLM.Provider,
		"llm_model", cfg.LLM.Model,
		"pid_file", pidPath,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		sig := <-sigChan
		if sig == syscall.SIGHUP {
			slog.Info("received SIGHUP, restarting")
			execPath, err := os.Executable()
			if err != nil {
				slog.Error("failed to get executable path", "error", err)
				continue
			}
			// Clean up PID file before re-exec
			os.Remove(pidPath)
			if err := syscall.Exec(execPath, os.Args, os.Environ()); err != nil {
				slog.Error("failed to re-exec", "error", err)
				if _, writeErr := writePIDFile(cfg.DataDir); writeErr != nil {
					slog.Error("failed to re-write PID file", "error", writeErr)
				}
				continue
			}
		}
		// SIGINT or SIGTERM
		slog.Info("shutting down", "signal", sig)
		return nil
	}
}
