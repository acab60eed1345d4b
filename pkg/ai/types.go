package ai

import "context"

// GradeInput contains the material for grading one student answer.
type GradeInput struct {
	Question      string
	ExpertAnswers []string
	StudentText   string
	// ImageBase64 carries the scanned answer as raw base64 PNG (no data-URI
	// prefix). It is only consulted when StudentText is empty.
	ImageBase64 string
	MaxScore    int
}

// Oracle describes a model capable of grading a single answer against the
// expert references. Implementations return the raw model text; turning it
// into a structured result is ExtractResult's job.
type Oracle interface {
	Grade(ctx context.Context, input GradeInput) (string, error)
}
