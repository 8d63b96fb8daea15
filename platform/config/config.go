// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
// Tokens are issued by the external auth service; this backend only verifies them.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// RedisConfig provides settings for the shared redis instance
// (catalog cache and asynq broker).
type RedisConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
}

// MinIOConfig provides settings for MinIO S3-compatible storage.
type MinIOConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinIOMaxFileSize() int64
	GetMinioBucketReportImages() string
	IsMinIOEnabled() bool
}

// ExtractionConfig provides settings for the vision extraction agent.
type ExtractionConfig interface {
	GetMoonshotAPIKey() string
	GetExtractionModel() string
	IsExtractionEnabled() bool
}

// GeneratorConfig provides settings for the analysis text generator.
type GeneratorConfig interface {
	GetGeminiAPIKey() string
	GetGenerationModel() string
	GetGeneratorAttempts() int
	GetGeneratorTimeout() time.Duration
	GetPromptTokenRateUSD() float64
	GetCompletionTokenRateUSD() float64
}

// PipelineConfig provides the ingestion/analysis policy knobs. The defaults match
// values observed in production; they are tunable, not proven-optimal.
type PipelineConfig interface {
	GetCatalogCacheTTL() time.Duration
	GetFreshnessWindow() time.Duration
	GetDailyAnalysisQuota() int
	GetCSVPerMetricCap() int
	GetFuzzyMatchThreshold() float64
	GetRecentMeasurementLimit() int
}

// SchedulerConfig provides settings for the asynq scheduler/worker.
type SchedulerConfig interface {
	RedisConfig
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetFailedAnalysisRetention() time.Duration
	GetCompletedAnalysisRetention() time.Duration
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env             string
	HTTPAddr        string
	DatabaseURL     string
	JWTAccessSecret string
	CORSAllowAll    bool
	CORSOrigins     []string
	CORSAllowCreds  bool

	RedisURL         string
	RedisTLSInsecure bool
	AsynqQueueName   string
	AsynqConcurrency int

	MinIOEndpoint          string
	MinIOAccessKey         string
	MinIOSecretKey         string
	MinIOUseSSL            bool
	MinIOMaxFileSize       int64
	MinioBucketReportImage string

	MoonshotAPIKey  string
	ExtractionModel string

	GeminiAPIKey           string
	GenerationModel        string
	GeneratorAttempts      int
	GeneratorTimeout       time.Duration
	PromptTokenRateUSD     float64
	CompletionTokenRateUSD float64

	CatalogCacheTTL        time.Duration
	FreshnessWindow        time.Duration
	DailyAnalysisQuota     int
	CSVPerMetricCap        int
	FuzzyMatchThreshold    float64
	RecentMeasurementLimit int
	DuplicateBandHigh      float64
	DuplicateBandMedium    float64
	DuplicateBandLow       float64

	FailedAnalysisRetention    time.Duration
	CompletedAnalysisRetention time.Duration

	MetricAliasFile string
}

// Load reads configuration from the environment, with .env as a convenience
// fallback for local development.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:             getEnv("APP_ENV", "development"),
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		JWTAccessSecret: os.Getenv("JWT_ACCESS_SECRET"),
		CORSAllowAll:    getEnvBool("CORS_ALLOW_ALL", false),
		CORSOrigins:     getEnvList("CORS_ORIGINS"),
		CORSAllowCreds:  getEnvBool("CORS_ALLOW_CREDENTIALS", true),

		RedisURL:         os.Getenv("REDIS_URL"),
		RedisTLSInsecure: getEnvBool("REDIS_TLS_INSECURE", false),
		AsynqQueueName:   getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency: getEnvInt("ASYNQ_CONCURRENCY", 10),

		MinIOEndpoint:          os.Getenv("MINIO_ENDPOINT"),
		MinIOAccessKey:         os.Getenv("MINIO_ACCESS_KEY"),
		MinIOSecretKey:         os.Getenv("MINIO_SECRET_KEY"),
		MinIOUseSSL:            getEnvBool("MINIO_USE_SSL", false),
		MinIOMaxFileSize:       getEnvInt64("MINIO_MAX_FILE_SIZE", 15<<20),
		MinioBucketReportImage: getEnv("MINIO_BUCKET_REPORT_IMAGES", "report-images"),

		MoonshotAPIKey:  os.Getenv("MOONSHOT_API_KEY"),
		ExtractionModel: getEnv("EXTRACTION_MODEL", "kimi-k2.5"),

		GeminiAPIKey:           os.Getenv("GEMINI_API_KEY"),
		GenerationModel:        getEnv("GENERATION_MODEL", "gemini-2.0-flash"),
		GeneratorAttempts:      getEnvInt("GENERATOR_ATTEMPTS", 2),
		GeneratorTimeout:       getEnvDuration("GENERATOR_TIMEOUT", 60*time.Second),
		PromptTokenRateUSD:     getEnvFloat("PROMPT_TOKEN_RATE_USD", 0.10/1_000_000),
		CompletionTokenRateUSD: getEnvFloat("COMPLETION_TOKEN_RATE_USD", 0.40/1_000_000),

		CatalogCacheTTL:        getEnvDuration("CATALOG_CACHE_TTL", 15*time.Minute),
		FreshnessWindow:        getEnvDuration("ANALYSIS_FRESHNESS_WINDOW", time.Hour),
		DailyAnalysisQuota:     getEnvInt("ANALYSIS_DAILY_QUOTA", 3),
		CSVPerMetricCap:        getEnvInt("CSV_PER_METRIC_CAP", 15),
		FuzzyMatchThreshold:    getEnvFloat("FUZZY_MATCH_THRESHOLD", 0.80),
		RecentMeasurementLimit: getEnvInt("RECENT_MEASUREMENT_LIMIT", 50),
		DuplicateBandHigh:      getEnvFloat("DUPLICATE_BAND_HIGH", 0.95),
		DuplicateBandMedium:    getEnvFloat("DUPLICATE_BAND_MEDIUM", 0.85),
		DuplicateBandLow:       getEnvFloat("DUPLICATE_BAND_LOW", 0.70),

		FailedAnalysisRetention:    getEnvDuration("FAILED_ANALYSIS_RETENTION", 30*24*time.Hour),
		CompletedAnalysisRetention: getEnvDuration("COMPLETED_ANALYSIS_RETENTION", 180*24*time.Hour),

		MetricAliasFile: os.Getenv("METRIC_ALIAS_FILE"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.GeneratorAttempts < 1 {
		cfg.GeneratorAttempts = 1
	}

	return cfg, nil
}

// =============================================================================
// Interface Implementations
// =============================================================================

func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

func (c *Config) GetMinIOEndpoint() string           { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string          { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string          { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool               { return c.MinIOUseSSL }
func (c *Config) GetMinIOMaxFileSize() int64         { return c.MinIOMaxFileSize }
func (c *Config) GetMinioBucketReportImages() string { return c.MinioBucketReportImage }
func (c *Config) IsMinIOEnabled() bool               { return c.MinIOEndpoint != "" }

func (c *Config) GetMoonshotAPIKey() string  { return c.MoonshotAPIKey }
func (c *Config) GetExtractionModel() string { return c.ExtractionModel }
func (c *Config) IsExtractionEnabled() bool  { return c.MoonshotAPIKey != "" }

func (c *Config) GetGeminiAPIKey() string            { return c.GeminiAPIKey }
func (c *Config) GetGenerationModel() string         { return c.GenerationModel }
func (c *Config) GetGeneratorAttempts() int          { return c.GeneratorAttempts }
func (c *Config) GetGeneratorTimeout() time.Duration { return c.GeneratorTimeout }
func (c *Config) GetPromptTokenRateUSD() float64     { return c.PromptTokenRateUSD }
func (c *Config) GetCompletionTokenRateUSD() float64 { return c.CompletionTokenRateUSD }

func (c *Config) GetCatalogCacheTTL() time.Duration { return c.CatalogCacheTTL }
func (c *Config) GetFreshnessWindow() time.Duration { return c.FreshnessWindow }
func (c *Config) GetDailyAnalysisQuota() int        { return c.DailyAnalysisQuota }
func (c *Config) GetCSVPerMetricCap() int           { return c.CSVPerMetricCap }
func (c *Config) GetFuzzyMatchThreshold() float64   { return c.FuzzyMatchThreshold }
func (c *Config) GetRecentMeasurementLimit() int    { return c.RecentMeasurementLimit }
func (c *Config) GetDuplicateBandHigh() float64     { return c.DuplicateBandHigh }
func (c *Config) GetDuplicateBandMedium() float64   { return c.DuplicateBandMedium }
func (c *Config) GetDuplicateBandLow() float64      { return c.DuplicateBandLow }

func (c *Config) GetFailedAnalysisRetention() time.Duration    { return c.FailedAnalysisRetention }
func (c *Config) GetCompletedAnalysisRetention() time.Duration { return c.CompletedAnalysisRetention }

// =============================================================================
// Env Helpers
// =============================================================================

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt64(key string, fallback int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
