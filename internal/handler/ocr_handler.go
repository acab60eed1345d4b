package handler

import (
	"io"
	"mime/multipart"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/gradelab/grader-go-api/internal/dto"
	"github.com/gradelab/grader-go-api/internal/service"
	"github.com/gradelab/grader-go-api/internal/utils"
)

// OCRHandler exposes the standalone text-extraction endpoint.
type OCRHandler struct {
	service service.OCRService
	logger  zerolog.Logger
}

// NewOCRHandler builds an OCR handler instance.
func NewOCRHandler(service service.OCRService, logger zerolog.Logger) *OCRHandler {
	return &OCRHandler{
		service: service,
		logger:  logger.With().Str("component", "ocr_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *OCRHandler) Register(router fiber.Router) {
	router.Post("", h.extract)
}

func (h *OCRHandler) extract(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "multipart form with files is required")
	}

	files := form.File["files"]
	if len(files) == 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "at least one file is required")
	}

	// a failing file yields an error entry and never blocks its siblings
	pages := make([]dto.OCRPageResponse, 0, len(files))
	for _, file := range files {
		raw, err := readUpload(file)
		if err != nil {
			pages = append(pages, dto.OCRPageResponse{Filename: file.Filename, Error: "failed to read uploaded file"})
			continue
		}

		text, err := h.service.ExtractText(c.Context(), raw)
		if err != nil {
			requestLogger(h.logger, c).Warn().Err(err).Str("filename", file.Filename).Msg("ocr extraction failed")
			pages = append(pages, dto.OCRPageResponse{Filename: file.Filename, Error: err.Error()})
			continue
		}

		pages = append(pages, dto.OCRPageResponse{Filename: file.Filename, Text: text})
	}

	return c.JSON(dto.OCRResponse{Pages: pages})
}

func readUpload(file *multipart.FileHeader) ([]byte, error) {
	f, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return io.ReadAll(f)
}
