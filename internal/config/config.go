package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mealsnap/food-diary/internal/logger"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

type Config struct {
	HTTPAddr      string
	TelegramToken string
	AI            AIConfig
	Session       SessionConfig
	Redis         RedisConfig
	Logger        LoggerConfig
}

type AIConfig struct {
	Provider     string
	GeminiAPIKey string
	GeminiModel  string
	OpenAIAPIKey string
	OpenAIModel  string
	Locale       string
	Timeout      time.Duration
}

// APIKey returns the credential of the selected provider.
func (c AIConfig) APIKey() string {
	if c.Provider == ProviderOpenAI {
		return c.OpenAIAPIKey
	}
	return c.GeminiAPIKey
}

// Model returns the model identifier of the selected provider.
func (c AIConfig) Model() string {
	if c.Provider == ProviderOpenAI {
		return c.OpenAIModel
	}
	return c.GeminiModel
}

type SessionConfig struct {
	TTL           time.Duration
	MaxImageBytes int64
}

// RedisConfig is optional; an empty Host keeps bot UI state in memory.
type RedisConfig struct {
	Host string
	Port string
}

type LoggerConfig struct {
	Level      logger.LogLevel
	OutputPath string
	Format     string
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return logger.LevelDebug
	case "info":
		return logger.LevelInfo
	case "warn", "warning":
		return logger.LevelWarn
	case "error":
		return logger.LevelError
	default:
		return logger.LevelInfo
	}
}

// Load reads the configuration from the environment and validates it.
// A missing API key is not an error: the gateway reports it per call.
func Load() (*Config, error) {
	var errs []error

	timeout, err := time.ParseDuration(getEnvOrDefault("AI_TIMEOUT", "60s"))
	if err != nil {
		errs = append(errs, fmt.Errorf("AI_TIMEOUT: %w", err))
	} else if timeout <= 0 {
		errs = append(errs, errors.New("AI_TIMEOUT must be positive"))
	}
	ttl, err := time.ParseDuration(getEnvOrDefault("SESSION_TTL", "24h"))
	if err != nil {
		errs = append(errs, fmt.Errorf("SESSION_TTL: %w", err))
	}
	maxImage, err := strconv.ParseInt(getEnvOrDefault("MAX_IMAGE_BYTES", "10485760"), 10, 64)
	if err != nil {
		errs = append(errs, fmt.Errorf("MAX_IMAGE_BYTES: %w", err))
	} else if maxImage <= 0 {
		errs = append(errs, errors.New("MAX_IMAGE_BYTES must be positive"))
	}

	cfg := &Config{
		HTTPAddr:      getEnvOrDefault("HTTP_ADDR", ":8080"),
		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		AI: AIConfig{
			Provider:     strings.ToLower(getEnvOrDefault("AI_PROVIDER", ProviderGemini)),
			GeminiAPIKey: strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
			GeminiModel:  getEnvOrDefault("GEMINI_MODEL", "gemini-2.5-flash"),
			OpenAIAPIKey: strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
			OpenAIModel:  getEnvOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
			Locale:       getEnvOrDefault("AI_LOCALE", "English"),
			Timeout:      timeout,
		},
		Session: SessionConfig{
			TTL:           ttl,
			MaxImageBytes: maxImage,
		},
		Redis: RedisConfig{
			Host: os.Getenv("REDIS_HOST"),
			Port: getEnvOrDefault("REDIS_PORT", "6379"),
		},
		Logger: LoggerConfig{
			Level:      parseLogLevel(getEnvOrDefault("LOG_LEVEL", "info")),
			OutputPath: getEnvOrDefault("LOG_OUTPUT", "stdout"),
			Format:     getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	switch cfg.AI.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		errs = append(errs, fmt.Errorf("AI_PROVIDER: unknown provider %q", cfg.AI.Provider))
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}
