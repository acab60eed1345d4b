package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "8080", cfg.AppPort)
	require.Equal(t, "gpt-4o-mini", cfg.OpenAIModel)
	require.Equal(t, 4, cfg.GradeConcurrency)
	require.Equal(t, 10, cfg.DefaultMaxScore)
	require.Equal(t, 200, cfg.PDFRasterDPI)
	require.InDelta(t, 1.5, cfg.ContrastFactor, 0.001)
	require.InDelta(t, 2.0, cfg.SharpnessFactor, 0.001)
	require.False(t, cfg.LookalikeRewrites)
	require.Equal(t, []string{"eng"}, cfg.OCRLanguages)
	require.Equal(t, 15*time.Minute, cfg.OCRCacheTTL)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("GRADER_APP_PORT", "9000")
	t.Setenv("GRADER_GRADE_CONCURRENCY", "8")
	t.Setenv("GRADER_OCR_LANGUAGES", "eng, deu")
	t.Setenv("GRADER_TEXT_LOOKALIKE_REWRITES", "true")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "9000", cfg.AppPort)
	require.Equal(t, 8, cfg.GradeConcurrency)
	require.Equal(t, []string{"eng", "deu"}, cfg.OCRLanguages)
	require.True(t, cfg.LookalikeRewrites)
}

func TestHTTPAddress(t *testing.T) {
	require.Equal(t, ":8080", Config{AppPort: "8080"}.HTTPAddress())
	require.Equal(t, ":8080", Config{AppPort: ":8080"}.HTTPAddress())
}

func TestLoadRejectsBadCacheTTL(t *testing.T) {
	t.Setenv("GRADER_OCR_CACHE_TTL", "soon")

	_, err := Load()
	require.Error(t, err)
}
