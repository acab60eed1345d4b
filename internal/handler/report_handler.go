package handler

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/gradelab/grader-go-api/internal/dto"
	"github.com/gradelab/grader-go-api/internal/service"
	"github.com/gradelab/grader-go-api/internal/utils"
)

// ReportHandler exposes report rendering and verbatim save endpoints.
type ReportHandler struct {
	service   service.ReportService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewReportHandler builds a report handler instance.
func NewReportHandler(service service.ReportService, validate *validator.Validate, logger zerolog.Logger) *ReportHandler {
	return &ReportHandler{
		service:   service,
		validator: validate,
		logger:    logger.With().Str("component", "report_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *ReportHandler) Register(router fiber.Router) {
	router.Post("/export", h.export)
	router.Post("/save", h.save)
}

func (h *ReportHandler) export(c *fiber.Ctx) error {
	var payload dto.ReportExportRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var (
		data        []byte
		err         error
		contentType string
	)
	switch payload.Format {
	case "xlsx":
		data, err = h.service.ExportXLSX(payload.Report)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		data, err = h.service.ExportCSV(payload.Report)
		contentType = "text/csv"
	}
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Str("format", payload.Format).Msg("report export failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to render report")
	}

	filename := fmt.Sprintf("examination-report-%d.%s", payload.Report.StudentID, payload.Format)
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))

	return c.Send(data)
}

func (h *ReportHandler) save(c *fiber.Ctx) error {
	var payload dto.SaveReportRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	resp, err := h.service.SaveVerbatim(payload)
	if err != nil {
		status := fiber.StatusInternalServerError
		if errors.Is(err, service.ErrEmptyReportPayload) || errors.Is(err, service.ErrBadReportPayload) {
			status = fiber.StatusBadRequest
		}
		requestLogger(h.logger, c).Warn().Err(err).Msg("report save failed")
		return utils.SendError(c, status, err.Error())
	}

	return c.JSON(resp)
}
