package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/gradelab/grader-go-api/internal/dto"
	"github.com/gradelab/grader-go-api/internal/service"
	"github.com/gradelab/grader-go-api/internal/utils"
)

// GradeHandler exposes the batch and ad hoc grading endpoints.
type GradeHandler struct {
	service service.GradingService
	logger  zerolog.Logger
}

// NewGradeHandler builds a grading handler instance.
func NewGradeHandler(service service.GradingService, logger zerolog.Logger) *GradeHandler {
	return &GradeHandler{
		service: service,
		logger:  logger.With().Str("component", "grade_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *GradeHandler) Register(router fiber.Router) {
	router.Post("", h.batch)
	router.Post("/single", h.single)
}

func (h *GradeHandler) batch(c *fiber.Ctx) error {
	var payload dto.GradeBatchRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	report, err := h.service.GradeBatch(c.Context(), payload)
	if err != nil {
		requestLogger(h.logger, c).Warn().Err(err).Int("student_id", payload.StudentID).Msg("batch grading failed")
		return utils.SendError(c, statusForError(err), err.Error())
	}

	return c.JSON(report)
}

// single serves the desktop-style contract: the result object on success,
// {"error": ...} on failure.
func (h *GradeHandler) single(c *fiber.Ctx) error {
	var payload dto.GradeSingleRequest
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	result, err := h.service.GradeSingle(c.Context(), payload)
	if err != nil {
		requestLogger(h.logger, c).Warn().Err(err).Msg("single grading failed")
		return c.Status(statusForError(err)).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(result)
}
