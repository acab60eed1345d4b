package service

import (
	"bytes"
	"encoding/base64"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/gradelab/grader-go-api/internal/dto"
)

// ErrEmptyReportPayload indicates a save request without content.
var ErrEmptyReportPayload = errors.New("missing report payload")

// ErrBadReportPayload indicates the payload base64 could not be decoded.
var ErrBadReportPayload = errors.New("invalid report payload base64")

var reportHeader = []string{"question_id", "score", "explanation"}

// ReportService renders batch reports and persists client-generated exports.
type ReportService interface {
	ExportCSV(report dto.GradeBatchResponse) ([]byte, error)
	ExportXLSX(report dto.GradeBatchResponse) ([]byte, error)
	SaveVerbatim(req dto.SaveReportRequest) (dto.SaveReportResponse, error)
}

type reportService struct {
	exportDir string
	logger    zerolog.Logger
}

// NewReportService constructs the report service writing into exportDir.
func NewReportService(exportDir string, logger zerolog.Logger) ReportService {
	if exportDir == "" {
		exportDir = "exports"
	}

	return &reportService{
		exportDir: exportDir,
		logger:    logger.With().Str("component", "report_service").Logger(),
	}
}

// ExportCSV renders a batch report as CSV with one row per question and a
// trailing total row.
func (s *reportService) ExportCSV(report dto.GradeBatchResponse) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(reportHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}

	for _, entry := range report.PerQuestion {
		explanation := entry.Explanation
		if entry.Error != "" {
			explanation = entry.Error
		}
		row := []string{strconv.Itoa(entry.QuestionID), strconv.Itoa(entry.Score), explanation}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}

	if err := writer.Write([]string{"total", strconv.Itoa(report.TotalScore), ""}); err != nil {
		return nil, fmt.Errorf("write csv total: %w", err)
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportXLSX renders a batch report as a single-sheet workbook.
func (s *reportService) ExportXLSX(report dto.GradeBatchResponse) ([]byte, error) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	for i, title := range reportHeader {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, title); err != nil {
			return nil, fmt.Errorf("write xlsx header: %w", err)
		}
	}

	for row, entry := range report.PerQuestion {
		explanation := entry.Explanation
		if entry.Error != "" {
			explanation = entry.Error
		}
		values := []interface{}{entry.QuestionID, entry.Score, explanation}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return nil, fmt.Errorf("write xlsx row: %w", err)
			}
		}
	}

	totalRow := len(report.PerQuestion) + 2
	cell, _ := excelize.CoordinatesToCellName(1, totalRow)
	if err := f.SetCellValue(sheet, cell, "total"); err != nil {
		return nil, fmt.Errorf("write xlsx total: %w", err)
	}
	cell, _ = excelize.CoordinatesToCellName(2, totalRow)
	if err := f.SetCellValue(sheet, cell, report.TotalScore); err != nil {
		return nil, fmt.Errorf("write xlsx total: %w", err)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("serialize xlsx: %w", err)
	}

	return buf.Bytes(), nil
}

// SaveVerbatim decodes a client-rendered report and writes the bytes
// unchanged into the export directory.
func (s *reportService) SaveVerbatim(req dto.SaveReportRequest) (dto.SaveReportResponse, error) {
	payload := strings.TrimSpace(req.PayloadBase64)
	if payload == "" {
		return dto.SaveReportResponse{}, ErrEmptyReportPayload
	}

	content, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return dto.SaveReportResponse{}, fmt.Errorf("%w: %v", ErrBadReportPayload, err)
	}

	filename := sanitizeFilename(req.SuggestedFilename)

	if err := os.MkdirAll(s.exportDir, 0o755); err != nil {
		return dto.SaveReportResponse{}, fmt.Errorf("create export dir: %w", err)
	}

	path := filepath.Join(s.exportDir, filename)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return dto.SaveReportResponse{}, fmt.Errorf("write report: %w", err)
	}

	s.logger.Info().Str("path", path).Int("bytes", len(content)).Msg("report saved")

	return dto.SaveReportResponse{OK: true, Path: path}, nil
}

func sanitizeFilename(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == string(filepath.Separator) || name == "" {
		name = "examination-report.pdf"
	}

	lower := strings.ToLower(name)
	if !strings.HasSuffix(lower, ".pdf") && !strings.HasSuffix(lower, ".csv") && !strings.HasSuffix(lower, ".xlsx") {
		name += ".pdf"
	}

	return name
}
