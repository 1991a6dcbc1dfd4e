package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/mealsnap/food-diary/internal/config"
)

func main() {
	fmt.Println("🔍 Checking configuration...")

	if err := godotenv.Load(); err != nil {
		fmt.Printf("⚠️  .env file not found: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("❌ Configuration is invalid:\n%v\n", err)
		os.Exit(1)
	}

	fmt.Println("✅ Configuration is valid!")
	fmt.Printf("📋 Details:\n")
	fmt.Printf("  - HTTP Address: %s\n", cfg.HTTPAddr)
	fmt.Printf("  - AI Provider: %s\n", cfg.AI.Provider)
	fmt.Printf("  - AI Model: %s\n", cfg.AI.Model())
	fmt.Printf("  - AI API Key: %s\n", maskToken(cfg.AI.APIKey()))
	fmt.Printf("  - AI Locale: %s\n", cfg.AI.Locale)
	fmt.Printf("  - AI Timeout: %s\n", cfg.AI.Timeout)
	fmt.Printf("  - Session TTL: %s\n", cfg.Session.TTL)
	fmt.Printf("  - Max Image Bytes: %d\n", cfg.Session.MaxImageBytes)
	fmt.Printf("  - Telegram Token: %s\n", maskToken(cfg.TelegramToken))
	if cfg.Redis.Host != "" {
		fmt.Printf("  - Redis: %s:%s\n", cfg.Redis.Host, cfg.Redis.Port)
	} else {
		fmt.Printf("  - Redis: <disabled>\n")
	}
	fmt.Printf("  - Log Level: %v\n", cfg.Logger.Level)
	fmt.Printf("  - Log Output: %s\n", cfg.Logger.OutputPath)
	fmt.Printf("  - Log Format: %s\n", cfg.Logger.Format)

	if cfg.AI.APIKey() == "" {
		fmt.Println("⚠️  No API key for the selected provider; every AI call will fail with a missing credential.")
	}
}

func maskToken(token string) string {
	if token == "" {
		return "<not set>"
	}
	if len(token) <= 8 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
