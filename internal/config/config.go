package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the grading service.
type Config struct {
	AppName           string
	AppEnv            string
	AppPort           string
	DatabaseURL       string
	RedisURL          string
	OpenAIAPIKey      string
	OpenAIModel       string
	OpenAIMaxTokens   int
	OpenAITemperature float32
	GradeConcurrency  int
	DefaultMaxScore   int
	PDFRasterDPI      int
	ContrastFactor    float64
	SharpnessFactor   float64
	LookalikeRewrites bool
	OCRLanguages      []string
	OCRCacheTTL       time.Duration
	ReportExportDir   string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GRADER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Exam Grader API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.max_tokens", 512)
	v.SetDefault("openai.temperature", 0.3)
	v.SetDefault("grade.concurrency", 4)
	v.SetDefault("grade.default_max_score", 10)
	v.SetDefault("image.pdf_dpi", 200)
	v.SetDefault("image.contrast", 1.5)
	v.SetDefault("image.sharpness", 2.0)
	v.SetDefault("text.lookalike_rewrites", false)
	v.SetDefault("ocr.languages", "eng")
	v.SetDefault("ocr.cache_ttl", "15m")
	v.SetDefault("report.export_dir", "exports")

	ttlString := v.GetString("ocr.cache_ttl")
	if ttlString == "" {
		ttlString = "15m"
	}

	ttl, err := time.ParseDuration(ttlString)
	if err != nil {
		return Config{}, fmt.Errorf("invalid ocr cache ttl: %w", err)
	}

	cfg := Config{
		AppName:           v.GetString("app.name"),
		AppEnv:            v.GetString("app.env"),
		AppPort:           v.GetString("app.port"),
		DatabaseURL:       v.GetString("database.url"),
		RedisURL:          v.GetString("redis.url"),
		OpenAIAPIKey:      v.GetString("openai_api_key"),
		OpenAIModel:       v.GetString("openai.model"),
		OpenAIMaxTokens:   v.GetInt("openai.max_tokens"),
		OpenAITemperature: float32(v.GetFloat64("openai.temperature")),
		GradeConcurrency:  v.GetInt("grade.concurrency"),
		DefaultMaxScore:   v.GetInt("grade.default_max_score"),
		PDFRasterDPI:      v.GetInt("image.pdf_dpi"),
		ContrastFactor:    v.GetFloat64("image.contrast"),
		SharpnessFactor:   v.GetFloat64("image.sharpness"),
		LookalikeRewrites: v.GetBool("text.lookalike_rewrites"),
		OCRLanguages:      splitLanguages(v.GetString("ocr.languages")),
		OCRCacheTTL:       ttl,
		ReportExportDir:   v.GetString("report.export_dir"),
	}

	if cfg.GradeConcurrency <= 0 {
		cfg.GradeConcurrency = 4
	}

	if cfg.DefaultMaxScore <= 0 {
		cfg.DefaultMaxScore = 10
	}

	if cfg.PDFRasterDPI <= 0 {
		cfg.PDFRasterDPI = 200
	}

	if cfg.ContrastFactor <= 0 {
		cfg.ContrastFactor = 1.5
	}

	if cfg.SharpnessFactor <= 0 {
		cfg.SharpnessFactor = 2.0
	}

	return cfg, nil
}

func splitLanguages(raw string) []string {
	parts := strings.Split(raw, ",")
	languages := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			languages = append(languages, trimmed)
		}
	}
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return languages
}
