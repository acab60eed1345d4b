package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/gradelab/grader-go-api/internal/config"
	"github.com/gradelab/grader-go-api/internal/handler"
	"github.com/gradelab/grader-go-api/internal/middleware"
	"github.com/gradelab/grader-go-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	GradeHandler  *handler.GradeHandler
	OCRHandler    *handler.OCRHandler
	ReportHandler *handler.ReportHandler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	if deps.GradeHandler != nil {
		deps.GradeHandler.Register(api.Group("/grade", middleware.RateLimit("grade", 30, time.Minute)))
	}

	if deps.OCRHandler != nil {
		deps.OCRHandler.Register(api.Group("/ocr", middleware.RateLimit("ocr", 60, time.Minute)))
	}

	if deps.ReportHandler != nil {
		deps.ReportHandler.Register(api.Group("/reports"))
	}
}
