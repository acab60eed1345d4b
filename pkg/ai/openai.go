package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	oracleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "grader",
		Subsystem: "oracle",
		Name:      "call_duration_seconds",
		Help:      "Duration of grading oracle calls",
	}, []string{"model", "mode"})

	oracleFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "grader",
		Subsystem: "oracle",
		Name:      "call_failures_total",
		Help:      "Number of failed grading oracle calls",
	}, []string{"model", "mode"})
)

// OpenAIConfig defines configuration options for the OpenAI oracle.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

// OpenAIOracle implements Oracle against the OpenAI chat completion API,
// using the vision request shape when an image is attached.
type OpenAIOracle struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIOracle builds a new oracle using the provided configuration.
func NewOpenAIOracle(cfg OpenAIConfig) (*OpenAIOracle, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 512
	}

	tracer := otel.Tracer("github.com/gradelab/grader-go-api/pkg/ai/openai")
	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	client := openai.NewClientWithConfig(config)

	return &OpenAIOracle{
		client: client,
		cfg:    cfg,
		tracer: tracer,
		logger: logger,
	}, nil
}

// Grade sends the grading request to OpenAI and returns the raw model text.
func (o *OpenAIOracle) Grade(parent context.Context, input GradeInput) (string, error) {
	mode := "text"
	if strings.TrimSpace(input.StudentText) == "" && input.ImageBase64 != "" {
		mode = "vision"
	}

	ctx, span := o.tracer.Start(parent, "openai.grade", trace.WithAttributes(
		attribute.String("model", o.cfg.Model),
		attribute.String("mode", mode),
		attribute.Int("max_score", input.MaxScore),
	))
	defer span.End()

	request := openai.ChatCompletionRequest{
		Model:       o.cfg.Model,
		MaxTokens:   o.cfg.MaxTokens,
		Temperature: o.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: SystemPrompt(input.MaxScore),
			},
			userMessage(input, mode),
		},
	}

	start := time.Now()
	resp, err := o.client.CreateChatCompletion(ctx, request)
	oracleDuration.WithLabelValues(o.cfg.Model, mode).Observe(time.Since(start).Seconds())
	if err != nil {
		oracleFailures.WithLabelValues(o.cfg.Model, mode).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("openai grade: %w", err)
	}

	if len(resp.Choices) == 0 {
		err := fmt.Errorf("no choices returned from openai")
		oracleFailures.WithLabelValues(o.cfg.Model, mode).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	o.logger.Debug().
		Str("model", o.cfg.Model).
		Str("mode", mode).
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Msg("oracle call completed")

	return resp.Choices[0].Message.Content, nil
}

func userMessage(input GradeInput, mode string) openai.ChatCompletionMessage {
	prompt := ComposePrompt(input.Question, input.ExpertAnswers, input.StudentText)

	if mode != "vision" {
		return openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: prompt,
		}
	}

	return openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{
				Type: openai.ChatMessagePartTypeText,
				Text: prompt,
			},
			{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL: "data:image/png;base64," + input.ImageBase64,
				},
			},
		},
	}
}
