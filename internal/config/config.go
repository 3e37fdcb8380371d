package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/vladimiradmaev/food-diary/internal/logger"
)

type Config struct {
	HTTP             HTTPConfig
	BotToken         string
	JWTSecret        string
	AI               AIConfig
	DB               DBConfig
	Redis            RedisConfig
	Admin            AdminConfig
	FreeRequestsDays int
	Logger           LoggerConfig
}

type HTTPConfig struct {
	Port      string
	StaticDir string
	LockFile  string
}

type AIConfig struct {
	Provider       string // "openai" or "gemini"
	OpenAIAPIKey   string
	GeminiAPIKey   string
	RequestTimeout time.Duration
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

type RedisConfig struct {
	Host string
	Port string
}

type AdminConfig struct {
	Username     string
	Password     string
	CookieSecret string
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

func Load() (*Config, error) {
	freeDays, err := strconv.Atoi(getEnvOrDefault("FREE_REQUESTS_DAYS", "7"))
	if err != nil {
		return nil, fmt.Errorf("invalid FREE_REQUESTS_DAYS: %w", err)
	}

	timeout, err := time.ParseDuration(getEnvOrDefault("AI_REQUEST_TIMEOUT", "90s"))
	if err != nil {
		return nil, fmt.Errorf("invalid AI_REQUEST_TIMEOUT: %w", err)
	}

	provider := strings.ToLower(getEnvOrDefault("AI_PROVIDER", "openai"))
	if provider != "openai" && provider != "gemini" {
		return nil, fmt.Errorf("unknown AI_PROVIDER %q", provider)
	}

	return &Config{
		HTTP: HTTPConfig{
			Port:      getEnvOrDefault("HTTP_PORT", "8000"),
			StaticDir: getEnvOrDefault("STATIC_DIR", "static/images"),
			LockFile:  getEnvOrDefault("REAPER_LOCK_FILE", "reaper.lock"),
		},
		BotToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
		JWTSecret: os.Getenv("HASH_SECRET_KEY"),
		AI: AIConfig{
			Provider:       provider,
			OpenAIAPIKey:   os.Getenv("OPENAI_API_KEY"),
			GeminiAPIKey:   os.Getenv("GEMINI_API_KEY"),
			RequestTimeout: timeout,
		},
		DB: DBConfig{
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getEnvOrDefault("DB_PORT", "5432"),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", "postgres"),
			DBName:   getEnvOrDefault("DB_NAME", "food_diary"),
		},
		Redis: RedisConfig{
			Host: os.Getenv("REDIS_HOST"),
			Port: getEnvOrDefault("REDIS_PORT", "6379"),
		},
		Admin: AdminConfig{
			Username:     getEnvOrDefault("ADMIN_USERNAME", "admin"),
			Password:     getEnvOrDefault("ADMIN_PASSWORD", "admin"),
			CookieSecret: getEnvOrDefault("COOKIE_SECRET", "change-me-in-production"),
		},
		FreeRequestsDays: freeDays,
		Logger: LoggerConfig{
			Level:      parseLogLevel(getEnvOrDefault("LOG_LEVEL", "info")),
			OutputPath: getEnvOrDefault("LOG_OUTPUT", "logs/app.log"),
			Format:     getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}, nil
}
