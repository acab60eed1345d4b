package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/gradelab/grader-go-api/internal/middleware"
	"github.com/gradelab/grader-go-api/internal/service"
)

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}

// statusForError maps service failures onto the error taxonomy: input
// problems are client errors, oracle transport failures are upstream errors,
// a missing oracle is a configuration problem.
func statusForError(err error) int {
	switch {
	case isValidationError(err),
		errors.Is(err, service.ErrNoSubmission),
		errors.Is(err, service.ErrInvalidImage),
		errors.Is(err, service.ErrEmptyReportPayload),
		errors.Is(err, service.ErrBadReportPayload):
		return fiber.StatusBadRequest
	case errors.Is(err, service.ErrOracleUnavailable):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusBadGateway
	}
}
