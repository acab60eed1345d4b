package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image/png"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gradelab/grader-go-api/internal/preprocess"
	"github.com/gradelab/grader-go-api/internal/textclean"
	"github.com/gradelab/grader-go-api/pkg/ocr"
)

// OCRConfig tunes the standalone text-extraction pipeline.
type OCRConfig struct {
	Languages  []string
	CacheTTL   time.Duration
	Preprocess preprocess.Options
	Sanitize   textclean.Options
}

// OCRService extracts sanitized text from scanned submissions.
type OCRService interface {
	ExtractText(ctx context.Context, raw []byte) (string, error)
}

type ocrService struct {
	engine ocr.Engine
	cache  *redis.Client
	logger zerolog.Logger
	cfg    OCRConfig
}

// NewOCRService constructs the OCR pipeline. The cache client may be nil;
// extraction then always runs the engine.
func NewOCRService(engine ocr.Engine, cache *redis.Client, logger zerolog.Logger, cfg OCRConfig) OCRService {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 15 * time.Minute
	}

	return &ocrService{
		engine: engine,
		cache:  cache,
		logger: logger.With().Str("component", "ocr_service").Logger(),
		cfg:    cfg,
	}
}

// ExtractText normalizes the submission, runs the OCR engine and sanitizes
// the output. Results are cached by content hash so re-uploads of the same
// scan skip the engine.
func (s *ocrService) ExtractText(ctx context.Context, raw []byte) (string, error) {
	key := cacheKey(raw)

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, key).Result(); err == nil {
			return cached, nil
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("ocr cache lookup failed")
		}
	}

	normalized, err := preprocess.Normalize(raw, s.cfg.Preprocess)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, normalized); err != nil {
		return "", fmt.Errorf("%w: encode: %v", ErrInvalidImage, err)
	}

	text, err := s.engine.Recognize(ctx, buf.Bytes(), s.cfg.Languages)
	if err != nil {
		return "", fmt.Errorf("ocr engine: %w", err)
	}

	text = textclean.CleanWithOptions(text, s.cfg.Sanitize)

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, text, s.cfg.CacheTTL).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("ocr cache store failed")
		}
	}

	return text, nil
}

func cacheKey(raw []byte) string {
	sum := sha256.Sum256(raw)
	return "ocr:" + hex.EncodeToString(sum[:])
}
