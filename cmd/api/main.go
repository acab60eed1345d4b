package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/gradelab/grader-go-api/internal/config"
	"github.com/gradelab/grader-go-api/internal/database"
	"github.com/gradelab/grader-go-api/internal/handler"
	"github.com/gradelab/grader-go-api/internal/middleware"
	"github.com/gradelab/grader-go-api/internal/models"
	"github.com/gradelab/grader-go-api/internal/preprocess"
	"github.com/gradelab/grader-go-api/internal/repository"
	"github.com/gradelab/grader-go-api/internal/router"
	"github.com/gradelab/grader-go-api/internal/service"
	"github.com/gradelab/grader-go-api/internal/textclean"
	"github.com/gradelab/grader-go-api/pkg/ai"
	"github.com/gradelab/grader-go-api/pkg/ocr"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	var historyRepo repository.GradingHistoryRepository
	if db := connectDatabase(cfg, logger); db != nil {
		if err := db.AutoMigrate(&models.GradingBatch{}); err != nil {
			log.Fatalf("failed to migrate database: %v", err)
		}
		historyRepo = repository.NewGradingHistoryRepository(db)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	} else {
		logger.Warn().Msg("redis url not set, ocr caching disabled")
	}

	var oracle ai.Oracle
	if cfg.OpenAIAPIKey != "" {
		oracle, err = ai.NewOpenAIOracle(ai.OpenAIConfig{
			APIKey:      cfg.OpenAIAPIKey,
			Model:       cfg.OpenAIModel,
			MaxTokens:   cfg.OpenAIMaxTokens,
			Temperature: cfg.OpenAITemperature,
			Logger:      logger,
		})
		if err != nil {
			log.Fatalf("failed to create grading oracle: %v", err)
		}
	} else {
		logger.Warn().Msg("openai api key not set, grading endpoints will reject requests")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	preprocessOpts := preprocess.Options{
		PDFRasterDPI: cfg.PDFRasterDPI,
		Contrast:     cfg.ContrastFactor,
		Sharpness:    cfg.SharpnessFactor,
	}
	sanitizeOpts := textclean.Options{RewriteLookalikes: cfg.LookalikeRewrites}

	gradingService := service.NewGradingService(oracle, historyRepo, validate, logger, service.GradingConfig{
		Concurrency:     cfg.GradeConcurrency,
		DefaultMaxScore: cfg.DefaultMaxScore,
		Preprocess:      preprocessOpts,
		Sanitize:        sanitizeOpts,
	})
	ocrService := service.NewOCRService(ocr.NewTesseractEngine(), redisClient, logger, service.OCRConfig{
		Languages:  cfg.OCRLanguages,
		CacheTTL:   cfg.OCRCacheTTL,
		Preprocess: preprocessOpts,
		Sanitize:   sanitizeOpts,
	})
	reportService := service.NewReportService(cfg.ReportExportDir, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    64 * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		GradeHandler:  handler.NewGradeHandler(gradingService, logger),
		OCRHandler:    handler.NewOCRHandler(ocrService, logger),
		ReportHandler: handler.NewReportHandler(reportService, validate, logger),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

// connectDatabase picks Postgres when a DSN is configured and falls back to a
// local SQLite file otherwise. Returning nil disables grading history.
func connectDatabase(cfg config.Config, logger zerolog.Logger) *gorm.DB {
	if cfg.DatabaseURL != "" {
		db, err := database.ConnectPostgres(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("failed to connect to database: %v", err)
		}
		return db
	}

	db, err := database.ConnectSQLite("grader.db")
	if err != nil {
		logger.Warn().Err(err).Msg("sqlite unavailable, grading history disabled")
		return nil
	}
	return db
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
