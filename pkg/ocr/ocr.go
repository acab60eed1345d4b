// Package ocr defines the text-extraction contract used for scanned answers.
package ocr

import "context"

// Engine is the OCR provider contract: one encoded image in, extracted text
// out. An empty string means no text was recognized.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, image []byte, languages []string) (string, error)
}
