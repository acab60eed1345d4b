package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/gradelab/grader-go-api/internal/dto"
	"github.com/gradelab/grader-go-api/internal/models"
	"github.com/gradelab/grader-go-api/pkg/ai"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

type fakeOracle struct {
	mu       sync.Mutex
	response string
	err      error
	failOn   string
	inputs   []ai.GradeInput
}

func (f *fakeOracle) Grade(ctx context.Context, input ai.GradeInput) (string, error) {
	f.mu.Lock()
	f.inputs = append(f.inputs, input)
	f.mu.Unlock()

	if f.err != nil {
		return "", f.err
	}
	if f.failOn != "" && strings.Contains(input.Question, f.failOn) {
		return "", errors.New("transport error")
	}
	return f.response, nil
}

func (f *fakeOracle) recorded() []ai.GradeInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ai.GradeInput(nil), f.inputs...)
}

type fakeHistoryRepo struct {
	mu      sync.Mutex
	batches []models.GradingBatch
}

func (f *fakeHistoryRepo) Create(ctx context.Context, batch *models.GradingBatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, *batch)
	return nil
}

func (f *fakeHistoryRepo) ListByStudent(ctx context.Context, studentID int) ([]models.GradingBatch, error) {
	return nil, nil
}

func newTestService(oracle ai.Oracle, history *fakeHistoryRepo) GradingService {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if history == nil {
		return NewGradingService(oracle, nil, validate, testLogger(), GradingConfig{})
	}
	return NewGradingService(oracle, history, validate, testLogger(), GradingConfig{})
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 24, 24))
	for y := 0; y < 24; y++ {
		for x := 0; x < 24; x++ {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestGradeOneTypedText(t *testing.T) {
	oracle := &fakeOracle{response: `{"score": 8, "explanation": "good", "coverage_summary": "most points", "suggestions": "add detail"}`}
	svc := newTestService(oracle, nil)

	result, err := svc.GradeOne(context.Background(), QuestionInput{
		QuestionText:  "What is osmosis?",
		TypedText:     "  water   moves across a membrane ",
		ExpertAnswers: []string{"water moves", "diffusion of water", ""},
		MaxScore:      10,
	})
	require.NoError(t, err)
	require.NotNil(t, result.Score)
	require.Equal(t, 8, *result.Score)
	require.Equal(t, "good", result.Explanation)

	inputs := oracle.recorded()
	require.Len(t, inputs, 1)
	require.Equal(t, "water moves across a membrane", inputs[0].StudentText)
	require.Empty(t, inputs[0].ImageBase64)
}

func TestGradeOneTypedTextWinsOverImage(t *testing.T) {
	oracle := &fakeOracle{response: `{"score": 5}`}
	svc := newTestService(oracle, nil)

	_, err := svc.GradeOne(context.Background(), QuestionInput{
		TypedText:     "typed answer",
		ImageBytes:    pngBytes(t),
		ExpertAnswers: []string{"a"},
	})
	require.NoError(t, err)

	inputs := oracle.recorded()
	require.Len(t, inputs, 1)
	require.Equal(t, "typed answer", inputs[0].StudentText)
	require.Empty(t, inputs[0].ImageBase64, "text mode must short-circuit image processing")
}

func TestGradeOneImagePath(t *testing.T) {
	oracle := &fakeOracle{response: `{"score": 6, "explanation": "ok", "coverage_summary": "", "suggestions": ""}`}
	svc := newTestService(oracle, nil)

	result, err := svc.GradeOne(context.Background(), QuestionInput{
		QuestionText:  "q",
		ImageBytes:    pngBytes(t),
		ExpertAnswers: []string{"a", "b", "c"},
	})
	require.NoError(t, err)
	require.NotNil(t, result.Score)

	inputs := oracle.recorded()
	require.Len(t, inputs, 1)
	require.Empty(t, inputs[0].StudentText)
	require.NotEmpty(t, inputs[0].ImageBase64)

	decoded, err := base64.StdEncoding.DecodeString(inputs[0].ImageBase64)
	require.NoError(t, err)
	_, err = png.Decode(bytes.NewReader(decoded))
	require.NoError(t, err, "attached image must be a valid PNG")
}

func TestGradeOneNoSubmission(t *testing.T) {
	svc := newTestService(&fakeOracle{}, nil)

	_, err := svc.GradeOne(context.Background(), QuestionInput{ExpertAnswers: []string{"a"}})
	require.ErrorIs(t, err, ErrNoSubmission)
}

func TestGradeOneUndecodableImage(t *testing.T) {
	oracle := &fakeOracle{}
	svc := newTestService(oracle, nil)

	_, err := svc.GradeOne(context.Background(), QuestionInput{
		ImageBytes:    []byte("not an image"),
		ExpertAnswers: []string{"a"},
	})
	require.ErrorIs(t, err, ErrInvalidImage)
	require.Empty(t, oracle.recorded(), "decode failure must not reach the oracle")
}

func TestGradeOneOracleUnavailable(t *testing.T) {
	svc := newTestService(nil, nil)

	_, err := svc.GradeOne(context.Background(), QuestionInput{TypedText: "x", ExpertAnswers: []string{"a"}})
	require.ErrorIs(t, err, ErrOracleUnavailable)
}

func TestGradeBatchPartialFailure(t *testing.T) {
	oracle := &fakeOracle{
		response: `{"score": 7, "explanation": "fine", "coverage_summary": "", "suggestions": ""}`,
		failOn:   "question two",
	}
	svc := newTestService(oracle, nil)

	report, err := svc.GradeBatch(context.Background(), dto.GradeBatchRequest{
		StudentID: 1,
		Answers: []dto.QuestionGradeRequest{
			{QuestionID: 1, QuestionText: "question one", StudentAnswer: "a1", ExpertAnswers: []string{"e"}},
			{QuestionID: 2, QuestionText: "question two", StudentAnswer: "a2", ExpertAnswers: []string{"e"}},
			{QuestionID: 3, QuestionText: "question three", StudentAnswer: "a3", ExpertAnswers: []string{"e"}},
		},
	})
	require.NoError(t, err)
	require.Len(t, report.PerQuestion, 3)

	byID := map[int]dto.QuestionScoreResponse{}
	for _, entry := range report.PerQuestion {
		byID[entry.QuestionID] = entry
	}

	require.Equal(t, 7, byID[1].Score)
	require.Empty(t, byID[1].Error)
	require.Equal(t, 0, byID[2].Score)
	require.NotEmpty(t, byID[2].Error)
	require.Equal(t, 7, byID[3].Score)
	require.Equal(t, 14, report.TotalScore)
}

func TestGradeBatchPreservesOrder(t *testing.T) {
	oracle := &fakeOracle{response: `{"score": 1}`}
	svc := newTestService(oracle, nil)

	report, err := svc.GradeBatch(context.Background(), dto.GradeBatchRequest{
		StudentID: 9,
		Answers: []dto.QuestionGradeRequest{
			{QuestionID: 11, StudentAnswer: "a", ExpertAnswers: []string{"e"}},
			{QuestionID: 12, StudentAnswer: "b", ExpertAnswers: []string{"e"}},
			{QuestionID: 13, StudentAnswer: "c", ExpertAnswers: []string{"e"}},
		},
	})
	require.NoError(t, err)
	require.Equal(t, []int{11, 12, 13}, []int{
		report.PerQuestion[0].QuestionID,
		report.PerQuestion[1].QuestionID,
		report.PerQuestion[2].QuestionID,
	})
}

func TestGradeBatchMissingSubmissionRejectedBeforeOracle(t *testing.T) {
	oracle := &fakeOracle{response: `{"score": 1}`}
	svc := newTestService(oracle, nil)

	_, err := svc.GradeBatch(context.Background(), dto.GradeBatchRequest{
		StudentID: 1,
		Answers: []dto.QuestionGradeRequest{
			{QuestionID: 1, StudentAnswer: "fine", ExpertAnswers: []string{"e"}},
			{QuestionID: 2, StudentAnswer: "   ", ExpertAnswers: []string{"e"}},
		},
	})
	require.ErrorIs(t, err, ErrNoSubmission)
	require.Empty(t, oracle.recorded())
}

func TestGradeBatchValidation(t *testing.T) {
	svc := newTestService(&fakeOracle{}, nil)

	_, err := svc.GradeBatch(context.Background(), dto.GradeBatchRequest{StudentID: 1})
	require.Error(t, err)
}

func TestGradeBatchPersistsHistory(t *testing.T) {
	history := &fakeHistoryRepo{}
	oracle := &fakeOracle{response: `{"score": 4, "explanation": "", "coverage_summary": "", "suggestions": ""}`}
	svc := newTestService(oracle, history)

	_, err := svc.GradeBatch(context.Background(), dto.GradeBatchRequest{
		StudentID: 7,
		Answers: []dto.QuestionGradeRequest{
			{QuestionID: 1, StudentAnswer: "x", ExpertAnswers: []string{"e"}},
		},
	})
	require.NoError(t, err)
	require.Len(t, history.batches, 1)
	require.Equal(t, 7, history.batches[0].StudentID)
	require.Equal(t, 4, history.batches[0].TotalScore)
}

func TestGradeSingleMapsExperts(t *testing.T) {
	oracle := &fakeOracle{response: `{"score": 9, "explanation": "solid", "coverage_summary": "all", "suggestions": "none"}`}
	svc := newTestService(oracle, nil)

	resp, err := svc.GradeSingle(context.Background(), dto.GradeSingleRequest{
		Question:    "why do cats purr",
		StudentText: "vibration of the larynx",
		Expert1:     "cats purr",
		Expert2:     "",
		Expert3:     "cats are felines",
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Score)
	require.Equal(t, 9, *resp.Score)
	require.Equal(t, "solid", resp.Explanation)
	require.NotEmpty(t, resp.RawModelResponse)

	inputs := oracle.recorded()
	require.Len(t, inputs, 1)
	require.Equal(t, []string{"cats purr", "", "cats are felines"}, inputs[0].ExpertAnswers)
}

func TestGradeSingleBadBase64(t *testing.T) {
	svc := newTestService(&fakeOracle{}, nil)

	_, err := svc.GradeSingle(context.Background(), dto.GradeSingleRequest{
		StudentImageBase64: "%%% not base64 %%%",
	})
	require.ErrorIs(t, err, ErrInvalidImage)
}

func TestGradeSingleNoSubmission(t *testing.T) {
	svc := newTestService(&fakeOracle{}, nil)

	_, err := svc.GradeSingle(context.Background(), dto.GradeSingleRequest{Question: "q"})
	require.ErrorIs(t, err, ErrNoSubmission)
}

func TestGradeOneDegradedOracleOutput(t *testing.T) {
	oracle := &fakeOracle{response: "I refuse to answer in JSON."}
	svc := newTestService(oracle, nil)

	result, err := svc.GradeOne(context.Background(), QuestionInput{
		TypedText:     "an answer",
		ExpertAnswers: []string{"e"},
	})
	require.NoError(t, err, "parse degradation is not an error")
	require.Nil(t, result.Score)
	require.Equal(t, "I refuse to answer in JSON.", result.Explanation)
	require.Equal(t, "I refuse to answer in JSON.", result.RawResponse)
}
