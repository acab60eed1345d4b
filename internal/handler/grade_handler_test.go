package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/gradelab/grader-go-api/internal/dto"
	"github.com/gradelab/grader-go-api/internal/handler"
	"github.com/gradelab/grader-go-api/internal/service"
	"github.com/gradelab/grader-go-api/pkg/ai"
)

type mockGradingService struct {
	batchResponse  dto.GradeBatchResponse
	singleResponse dto.GradeSingleResponse
	err            error
	lastBatch      dto.GradeBatchRequest
	lastSingle     dto.GradeSingleRequest
}

func (m *mockGradingService) GradeOne(context.Context, service.QuestionInput) (ai.GradeResult, error) {
	return ai.GradeResult{}, nil
}

func (m *mockGradingService) GradeBatch(_ context.Context, req dto.GradeBatchRequest) (dto.GradeBatchResponse, error) {
	m.lastBatch = req
	if m.err != nil {
		return dto.GradeBatchResponse{}, m.err
	}
	return m.batchResponse, nil
}

func (m *mockGradingService) GradeSingle(_ context.Context, req dto.GradeSingleRequest) (dto.GradeSingleResponse, error) {
	m.lastSingle = req
	if m.err != nil {
		return dto.GradeSingleResponse{}, m.err
	}
	return m.singleResponse, nil
}

func newGradeApp(svc service.GradingService) *fiber.App {
	app := fiber.New()
	group := app.Group("/api/v1/grade")
	handler.NewGradeHandler(svc, zerolog.New(io.Discard)).Register(group)
	return app
}

func postJSON(t *testing.T, app *fiber.App, path string, payload any) *http.Response {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func decodeResponse(t *testing.T, resp *http.Response, target any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
}

func TestGradeHandlerBatch(t *testing.T) {
	svc := &mockGradingService{
		batchResponse: dto.GradeBatchResponse{
			StudentID:  5,
			TotalScore: 14,
			PerQuestion: []dto.QuestionScoreResponse{
				{QuestionID: 1, Score: 7, Explanation: "ok"},
				{QuestionID: 2, Score: 7, Explanation: "ok"},
			},
		},
	}
	app := newGradeApp(svc)

	resp := postJSON(t, app, "/api/v1/grade", dto.GradeBatchRequest{
		StudentID: 5,
		Answers: []dto.QuestionGradeRequest{
			{QuestionID: 1, StudentAnswer: "a", ExpertAnswers: []string{"e"}},
		},
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var report dto.GradeBatchResponse
	decodeResponse(t, resp, &report)
	require.Equal(t, 14, report.TotalScore)
	require.Len(t, report.PerQuestion, 2)
	require.Equal(t, 5, svc.lastBatch.StudentID)
}

func TestGradeHandlerBatchMissingSubmission(t *testing.T) {
	svc := &mockGradingService{err: service.ErrNoSubmission}
	app := newGradeApp(svc)

	resp := postJSON(t, app, "/api/v1/grade", dto.GradeBatchRequest{StudentID: 1})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestGradeHandlerBatchOracleDown(t *testing.T) {
	svc := &mockGradingService{err: errors.New("oracle call: connection refused")}
	app := newGradeApp(svc)

	resp := postJSON(t, app, "/api/v1/grade", dto.GradeBatchRequest{StudentID: 1})
	require.Equal(t, fiber.StatusBadGateway, resp.StatusCode)
}

func TestGradeHandlerSingle(t *testing.T) {
	score := 9
	svc := &mockGradingService{
		singleResponse: dto.GradeSingleResponse{
			Score:            &score,
			Explanation:      "solid",
			CoverageSummary:  "all points",
			Suggestions:      "none",
			RawModelResponse: `{"score": 9}`,
		},
	}
	app := newGradeApp(svc)

	resp := postJSON(t, app, "/api/v1/grade/single", dto.GradeSingleRequest{
		Question:    "why",
		StudentText: "because",
		Expert1:     "because",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var result dto.GradeSingleResponse
	decodeResponse(t, resp, &result)
	require.NotNil(t, result.Score)
	require.Equal(t, 9, *result.Score)
	require.Equal(t, "because", svc.lastSingle.StudentText)
}

func TestGradeHandlerSingleErrorContract(t *testing.T) {
	svc := &mockGradingService{err: service.ErrNoSubmission}
	app := newGradeApp(svc)

	resp := postJSON(t, app, "/api/v1/grade/single", dto.GradeSingleRequest{})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var body map[string]string
	decodeResponse(t, resp, &body)
	require.Contains(t, body["error"], "no student answer")
}

func TestGradeHandlerSingleOracleUnavailable(t *testing.T) {
	svc := &mockGradingService{err: service.ErrOracleUnavailable}
	app := newGradeApp(svc)

	resp := postJSON(t, app, "/api/v1/grade/single", dto.GradeSingleRequest{StudentText: "x"})
	require.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}

func TestGradeHandlerBadBody(t *testing.T) {
	app := newGradeApp(&mockGradingService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/grade", bytes.NewReader([]byte("{broken")))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
