package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mealsnap/food-diary/internal/api"
	"github.com/mealsnap/food-diary/internal/bot"
	"github.com/mealsnap/food-diary/internal/bot/state"
	"github.com/mealsnap/food-diary/internal/config"
	"github.com/mealsnap/food-diary/internal/logger"
	"github.com/mealsnap/food-diary/internal/services"
	"github.com/mealsnap/food-diary/internal/session"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logger.Warn(".env file not found, using environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", "error", err)
	}

	if err := logger.InitWithConfig(logger.Config{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	}); err != nil {
		logger.Fatal("Failed to initialize logger", "error", err)
	}
	defer logger.Close()

	logger.Info("Starting Food Diary", "provider", cfg.AI.Provider, "model", cfg.AI.Model())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	aiService, err := services.NewAIService(ctx, cfg.AI)
	if err != nil {
		logger.Fatal("Failed to initialize AI service", "error", err)
	}
	defer aiService.Close()
	if cfg.AI.APIKey() == "" {
		logger.Warn("No API key configured; AI operations will report a missing credential", "provider", cfg.AI.Provider)
	}

	sessions := session.NewStore(aiService, cfg.Session.TTL)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(api.NewHandler(sessions, cfg.Session.MaxImageBytes)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server stopped with error", "error", err)
			stop()
		}
	}()

	if cfg.TelegramToken != "" {
		stateManager, closeState := newStateManager(cfg.Redis)
		defer closeState()

		telegramBot, err := bot.NewBot(cfg.TelegramToken, sessions, stateManager, cfg.Session.MaxImageBytes)
		if err != nil {
			logger.Fatal("Failed to create bot", "error", err)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Bot stopped with error", "error", err)
			}
		}()
	} else {
		logger.Info("TELEGRAM_BOT_TOKEN not set, Telegram bot disabled")
	}

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}
	wg.Wait()
}

// newStateManager prefers Redis for bot UI state and falls back to memory
func newStateManager(cfg config.RedisConfig) (state.StateManager, func()) {
	if cfg.Host == "" {
		return state.NewManager(), func() {}
	}
	redisManager, err := state.NewRedisManager(cfg.Host, cfg.Port)
	if err != nil {
		logger.Warn("Redis unavailable, keeping bot state in memory", "error", err)
		return state.NewManager(), func() {}
	}
	logger.Info("Bot state stored in Redis", "host", cfg.Host, "port", cfg.Port)
	return redisManager, func() {
		if err := redisManager.Close(); err != nil {
			logger.Warn("Failed to close Redis", "error", err)
		}
	}
}
