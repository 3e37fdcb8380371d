package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/vladimiradmaev/food-diary/internal/auth"
	"github.com/vladimiradmaev/food-diary/internal/config"
	"github.com/vladimiradmaev/food-diary/internal/database"
	"github.com/vladimiradmaev/food-diary/internal/interfaces"
	"github.com/vladimiradmaev/food-diary/internal/logger"
	"github.com/vladimiradmaev/food-diary/internal/notifier"
	"github.com/vladimiradmaev/food-diary/internal/reaper"
	"github.com/vladimiradmaev/food-diary/internal/server"
	"github.com/vladimiradmaev/food-diary/internal/services"
	"github.com/vladimiradmaev/food-diary/internal/storage"
	"github.com/vladimiradmaev/food-diary/internal/tasks"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.InitWithConfig(logger.Config{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	logger.Info("Starting food diary service...")

	db, err := database.NewPostgresDB(cfg.DB)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	logger.Info("Database connection established and migrations completed")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var redisClient *redis.Client
	if cfg.Redis.Host != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr: cfg.Redis.Host + ":" + cfg.Redis.Port,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warnf("Redis unavailable, rate limiting disabled: %v", err)
			redisClient = nil
		}
	}

	var diaryNotifier interfaces.NotifierInterface
	if cfg.BotToken != "" {
		tg, err := notifier.NewTelegramNotifier(cfg.BotToken)
		if err != nil {
			logger.Warnf("Notifier disabled: %v", err)
		} else {
			diaryNotifier = tg
		}
	}

	aiService, err := services.NewAIService(cfg.AI)
	if err != nil {
		logger.Fatalf("Failed to initialize AI service: %v", err)
	}

	photos := storage.NewPhotoStore(cfg.HTTP.StaticDir)
	registry := tasks.NewRegistry()
	userService := services.NewUserService(db)
	accessService := services.NewAccessService(db, cfg.FreeRequestsDays)
	analysisService := services.NewAnalysisService(aiService, db, photos, registry, userService, accessService)
	diaryService := services.NewDiaryService(db, aiService, userService, accessService, diaryNotifier)
	faqService := services.NewFAQService(db)
	logger.Info("Services initialized successfully")

	if err := server.EnsureAdminUser(db, cfg.Admin); err != nil {
		logger.Fatalf("Failed to ensure admin account: %v", err)
	}

	sweeper := reaper.New(db, photos, cfg.HTTP.LockFile)
	go func() {
		if err := sweeper.Run(ctx); err != nil {
			logger.Errorf("Reaper stopped with error: %v", err)
		}
	}()

	srv := server.New(cfg, server.Dependencies{
		Users:    userService,
		Analysis: analysisService,
		Diary:    diaryService,
		FAQ:      faqService,
		Tokens:   auth.NewTokenService(cfg.JWTSecret),
		DB:       db,
		Redis:    redisClient,
	})

	if err := srv.Run(ctx); err != nil {
		logger.Fatalf("HTTP server stopped with error: %v", err)
	}

	registry.Shutdown()
	logger.Info("Service stopped")
}
