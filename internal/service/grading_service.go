package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"github.com/gradelab/grader-go-api/internal/dto"
	"github.com/gradelab/grader-go-api/internal/models"
	"github.com/gradelab/grader-go-api/internal/preprocess"
	"github.com/gradelab/grader-go-api/internal/repository"
	"github.com/gradelab/grader-go-api/internal/textclean"
	"github.com/gradelab/grader-go-api/pkg/ai"
)

// ErrNoSubmission indicates a question carries neither typed text nor an image.
var ErrNoSubmission = errors.New("no student answer provided")

// ErrInvalidImage indicates the submitted image payload could not be used.
var ErrInvalidImage = errors.New("invalid student image")

// ErrOracleUnavailable indicates the grading oracle is not configured.
var ErrOracleUnavailable = errors.New("grading oracle unavailable")

// QuestionInput is the material for evaluating a single question.
type QuestionInput struct {
	QuestionID    int
	QuestionText  string
	TypedText     string
	ImageBytes    []byte
	ExpertAnswers []string
	MaxScore      int
}

// GradingConfig carries the orchestrator tuning knobs.
type GradingConfig struct {
	Concurrency     int
	DefaultMaxScore int
	Preprocess      preprocess.Options
	Sanitize        textclean.Options
}

// GradingService sequences the evaluation pipeline for single questions and
// batches.
type GradingService interface {
	GradeOne(ctx context.Context, input QuestionInput) (ai.GradeResult, error)
	GradeBatch(ctx context.Context, req dto.GradeBatchRequest) (dto.GradeBatchResponse, error)
	GradeSingle(ctx context.Context, req dto.GradeSingleRequest) (dto.GradeSingleResponse, error)
}

type gradingService struct {
	oracle    ai.Oracle
	history   repository.GradingHistoryRepository
	validator *validator.Validate
	logger    zerolog.Logger
	cfg       GradingConfig
}

// NewGradingService constructs the grading orchestrator. The history
// repository may be nil when persistence is disabled.
func NewGradingService(oracle ai.Oracle, history repository.GradingHistoryRepository, validate *validator.Validate, logger zerolog.Logger, cfg GradingConfig) GradingService {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.DefaultMaxScore <= 0 {
		cfg.DefaultMaxScore = 10
	}

	return &gradingService{
		oracle:    oracle,
		history:   history,
		validator: validate,
		logger:    logger.With().Str("component", "grading_service").Logger(),
		cfg:       cfg,
	}
}

// GradeOne runs normalize, sanitize, compose, oracle call and extraction for
// one question. Oracle unreliability degrades into the result; only input and
// transport problems surface as errors.
func (s *gradingService) GradeOne(ctx context.Context, input QuestionInput) (ai.GradeResult, error) {
	if s.oracle == nil {
		return ai.GradeResult{}, ErrOracleUnavailable
	}

	maxScore := input.MaxScore
	if maxScore <= 0 {
		maxScore = s.cfg.DefaultMaxScore
	}

	studentText := strings.TrimSpace(input.TypedText)
	useText := studentText != ""

	if !useText && len(input.ImageBytes) == 0 {
		return ai.GradeResult{}, ErrNoSubmission
	}

	gradeInput := ai.GradeInput{
		Question:      input.QuestionText,
		ExpertAnswers: input.ExpertAnswers,
		MaxScore:      maxScore,
	}

	if useText {
		gradeInput.StudentText = textclean.CleanWithOptions(textclean.StripMarkup(studentText), s.cfg.Sanitize)
	} else {
		normalized, err := preprocess.Normalize(input.ImageBytes, s.cfg.Preprocess)
		if err != nil {
			return ai.GradeResult{}, fmt.Errorf("%w: %v", ErrInvalidImage, err)
		}

		var buf bytes.Buffer
		if err := png.Encode(&buf, normalized); err != nil {
			return ai.GradeResult{}, fmt.Errorf("%w: encode: %v", ErrInvalidImage, err)
		}
		gradeInput.ImageBase64 = base64.StdEncoding.EncodeToString(buf.Bytes())
	}

	raw, err := s.oracle.Grade(ctx, gradeInput)
	if err != nil {
		return ai.GradeResult{}, fmt.Errorf("oracle call: %w", err)
	}

	return ai.ExtractResult(raw, maxScore), nil
}

// GradeBatch evaluates every question independently under a bounded degree of
// parallelism. A failing question degrades to a zero-credit entry instead of
// aborting its siblings; cancellation yields whatever entries resolved.
func (s *gradingService) GradeBatch(ctx context.Context, req dto.GradeBatchRequest) (dto.GradeBatchResponse, error) {
	tracer := otel.Tracer("github.com/gradelab/grader-go-api/internal/service/grading")
	ctx, span := tracer.Start(ctx, "grading.batch")
	span.SetAttributes(
		attribute.Int("grading.student_id", req.StudentID),
		attribute.Int("grading.questions", len(req.Answers)),
	)
	defer span.End()

	if err := s.validator.Struct(req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.GradeBatchResponse{}, err
	}

	// Submission presence is checked up front so an obviously broken request
	// never spends oracle calls.
	for _, answer := range req.Answers {
		if strings.TrimSpace(answer.StudentAnswer) == "" && strings.TrimSpace(answer.ImageBase64) == "" {
			err := fmt.Errorf("%w: question %d", ErrNoSubmission, answer.QuestionID)
			span.RecordError(err)
			span.SetStatus(codes.Error, "missing_submission")
			return dto.GradeBatchResponse{}, err
		}
	}

	entries := make([]dto.QuestionScoreResponse, len(req.Answers))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.cfg.Concurrency)

	for i, answer := range req.Answers {
		group.Go(func() error {
			entries[i] = s.gradeBatchEntry(groupCtx, answer)
			return nil
		})
	}

	// goroutines never return errors: each failure is captured in its entry
	_ = group.Wait()

	response := dto.GradeBatchResponse{
		StudentID:   req.StudentID,
		PerQuestion: entries,
	}
	for _, entry := range entries {
		response.TotalScore += entry.Score
	}

	span.SetAttributes(attribute.Int("grading.total_score", response.TotalScore))

	s.persistBatch(ctx, response)

	return response, nil
}

func (s *gradingService) gradeBatchEntry(ctx context.Context, answer dto.QuestionGradeRequest) dto.QuestionScoreResponse {
	entry := dto.QuestionScoreResponse{QuestionID: answer.QuestionID}

	if err := ctx.Err(); err != nil {
		entry.Error = fmt.Sprintf("evaluation cancelled: %v", err)
		return entry
	}

	input := QuestionInput{
		QuestionID:    answer.QuestionID,
		QuestionText:  answer.QuestionText,
		TypedText:     answer.StudentAnswer,
		ExpertAnswers: answer.ExpertAnswers,
		MaxScore:      answer.MaxScore,
	}

	if trimmed := strings.TrimSpace(answer.ImageBase64); trimmed != "" {
		raw, err := base64.StdEncoding.DecodeString(trimmed)
		if err != nil {
			entry.Error = fmt.Sprintf("invalid student image base64: %v", err)
			return entry
		}
		input.ImageBytes = raw
	}

	result, err := s.GradeOne(ctx, input)
	if err != nil {
		s.logger.Warn().Err(err).Int("question_id", answer.QuestionID).Msg("question evaluation failed")
		entry.Error = err.Error()
		return entry
	}

	if result.Score != nil {
		entry.Score = *result.Score
	}
	entry.Explanation = result.Explanation

	return entry
}

func (s *gradingService) persistBatch(ctx context.Context, report dto.GradeBatchResponse) {
	if s.history == nil {
		return
	}

	questions, err := json.Marshal(report.PerQuestion)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to encode batch history")
		return
	}

	batch := models.GradingBatch{
		StudentID:  report.StudentID,
		TotalScore: report.TotalScore,
		Questions:  datatypes.JSON(questions),
	}
	if err := s.history.Create(ctx, &batch); err != nil {
		s.logger.Warn().Err(err).Int("student_id", report.StudentID).Msg("failed to persist batch history")
	}
}

// GradeSingle serves the ad hoc desktop-style request with three fixed expert
// slots.
func (s *gradingService) GradeSingle(ctx context.Context, req dto.GradeSingleRequest) (dto.GradeSingleResponse, error) {
	input := QuestionInput{
		QuestionText:  req.Question,
		TypedText:     req.StudentText,
		ExpertAnswers: []string{req.Expert1, req.Expert2, req.Expert3},
		MaxScore:      s.cfg.DefaultMaxScore,
	}

	if strings.TrimSpace(req.StudentText) == "" && strings.TrimSpace(req.StudentImageBase64) != "" {
		raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(req.StudentImageBase64))
		if err != nil {
			return dto.GradeSingleResponse{}, fmt.Errorf("%w: base64: %v", ErrInvalidImage, err)
		}
		input.ImageBytes = raw
	}

	result, err := s.GradeOne(ctx, input)
	if err != nil {
		return dto.GradeSingleResponse{}, err
	}

	return dto.GradeSingleResponse{
		Score:            result.Score,
		Explanation:      result.Explanation,
		CoverageSummary:  result.CoverageSummary,
		Suggestions:      result.Suggestions,
		RawModelResponse: result.RawResponse,
	}, nil
}
