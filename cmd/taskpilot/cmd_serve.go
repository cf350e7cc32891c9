package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/taskpilot/internal/agent"
	"github.com/user/taskpilot/internal/auth"
	"github.com/user/taskpilot/internal/chat"
	"github.com/user/taskpilot/internal/httpapi"
	"github.com/user/taskpilot/internal/retention"
	"github.com/user/taskpilot/internal/store"
	"github.com/user/taskpilot/internal/telegram"
	"github.com/user/taskpilot/pkg/llm"
	"github.com/user/taskpilot/pkg/llm/openai"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the taskpilot server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	if cfg.JWT.Secret == "" {
		return fmt.Errorf("jwt secret is required (set JWT_SECRET_KEY or jwt.secret in config)")
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	db, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	users := store.NewUserStore(db)
	tasks := store.NewTaskStore(db)
	conversations := store.NewConversationStore(db)

	provider := openai.New(&llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	})

	registry, err := agent.NewRegistry(tasks)
	if err != nil {
		return fmt.Errorf("create tool registry: %w", err)
	}
	runner := agent.NewRunner(provider, cfg.MaxIterations)
	fallback := agent.NewResponder()

	trimmer, err := agent.NewHistoryTrimmer(cfg.LLM.Model, cfg.LLM.MaxContextTokens, cfg.LLM.OutputReserve)
	if err != nil {
		return fmt.Errorf("create history trimmer: %w", err)
	}

	chatSvc := chat.NewService(db, registry, runner, fallback, trimmer, cfg.HistoryLimit)

	tokens, err := auth.NewTokenIssuer(cfg.JWT.Secret)
	if err != nil {
		return err
	}
	api := httpapi.NewServer(users, tasks, chatSvc, tokens, int64(cfg.MaxConcurrentTurns))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telegram adapter
	if cfg.Telegram.Token != "" {
		adapter, err := telegram.New(cfg.Telegram.Token, chatSvc, users)
		if err != nil {
			return fmt.Errorf("create telegram adapter: %w", err)
		}
		go adapter.Start(ctx)
		slog.Info("telegram adapter started")
	} else {
		slog.Warn("telegram adapter disabled (no token)")
	}

	// Retention sweeper
	if cfg.RetentionDays > 0 {
		sweeper := retention.New(conversations, cfg.RetentionDays)
		if err := sweeper.Start(); err != nil {
			return fmt.Errorf("start retention sweeper: %w", err)
		}
		defer sweeper.Stop()
	}

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: api,
	}

	go func() {
		slog.Info("taskpilot started",
			"listen_addr", cfg.ListenAddr,
			"database", cfg.DatabaseURL,
			"log_level", cfg.LogLevel,
			"max_concurrent_turns", cfg.MaxConcurrentTurns,
			"max_iterations", cfg.MaxIterations,
			"llm_model", cfg.LLM.Model,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", "error", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigChan:
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}
