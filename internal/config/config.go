package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Env string `json:"env"`

	// Storage
	DatabasePath string `json:"database_path"`
	SourcesFile  string `json:"sources_file"`

	// Redis configuration; an empty URL selects the in-memory cache
	RedisURL    string        `json:"redis_url"`
	RedisPrefix string        `json:"redis_prefix"`
	CacheTTL    time.Duration `json:"cache_ttl"`

	// Fetching
	MaxConcurrency     int           `json:"max_concurrency"`
	HTTPTimeout        time.Duration `json:"http_timeout"`
	SourceFetchTimeout time.Duration `json:"source_fetch_timeout"`
	URLCheckTimeout    time.Duration `json:"url_check_timeout"`
	FetchSchedule      string        `json:"fetch_schedule"`
	SchedulerTimezone  string        `json:"scheduler_timezone"`

	// Summarization collaborator
	OllamaHost       string        `json:"ollama_host"`
	OllamaModel      string        `json:"ollama_model"`
	OllamaTimeout    time.Duration `json:"ollama_timeout"`
	SummaryBatchSize int           `json:"summary_batch_size"`

	// Quality audit thresholds for the CLI exit status
	AuditMinAverage    float64 `json:"audit_min_average"`
	AuditMaxFlaggedPct float64 `json:"audit_max_flagged_pct"`

	// CloudFlare R2 Configuration
	R2Endpoint  string `json:"r2_endpoint"`
	R2AccessKey string `json:"r2_access_key"`
	R2SecretKey string `json:"r2_secret_key"`
	R2Bucket    string `json:"r2_bucket"`

	// Logging
	LogLevel  string `json:"log_level"`
	LogFile   string `json:"log_file"`
	LogPretty bool   `json:"log_pretty"`
}

// Load loads configuration from environment variables and validates it
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	cfg := &Config{
		Env: getEnv("APP_ENV", "development"),

		DatabasePath: getEnv("DATABASE_PATH", "./data/newsauto.db"),
		SourcesFile:  getEnv("SOURCES_FILE", ""),

		RedisURL:    getEnv("REDIS_URL", ""),
		RedisPrefix: getEnv("REDIS_PREFIX", "newsauto:"),
		CacheTTL:    getEnvAsDuration("CACHE_TTL", 720*time.Hour), // 30 days

		MaxConcurrency:     getEnvAsInt("MAX_CONCURRENCY", 5),
		HTTPTimeout:        getEnvAsDuration("HTTP_TIMEOUT", 30*time.Second),
		SourceFetchTimeout: getEnvAsDuration("SOURCE_FETCH_TIMEOUT", 2*time.Minute),
		URLCheckTimeout:    getEnvAsDuration("URL_CHECK_TIMEOUT", 10*time.Second),
		FetchSchedule:      getEnv("FETCH_SCHEDULE", "*/30 * * * *"),
		SchedulerTimezone:  getEnv("SCHEDULER_TIMEZONE", "UTC"),

		OllamaHost:       getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OllamaModel:      getEnv("OLLAMA_MODEL", "llama3.2"),
		OllamaTimeout:    getEnvAsDuration("OLLAMA_TIMEOUT", 120*time.Second),
		SummaryBatchSize: getEnvAsInt("SUMMARY_BATCH_SIZE", 5),

		AuditMinAverage:    getEnvAsFloat("AUDIT_MIN_AVERAGE", 0.75),
		AuditMaxFlaggedPct: getEnvAsFloat("AUDIT_MAX_FLAGGED_PCT", 0.15),

		R2Endpoint:  getEnv("R2_ENDPOINT", ""),
		R2AccessKey: getEnv("R2_ACCESS_KEY", ""),
		R2SecretKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2Bucket:    getEnv("R2_BUCKET", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFile:   getEnv("LOG_FILE", ""),
		LogPretty: getEnvAsBool("LOG_PRETTY", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate rejects values the rest of the application cannot work with
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("DATABASE_PATH must not be empty")
	}
	if c.MaxConcurrency < 1 {
		return fmt.Errorf("MAX_CONCURRENCY must be at least 1, got %d", c.MaxConcurrency)
	}
	if c.SummaryBatchSize < 1 {
		return fmt.Errorf("SUMMARY_BATCH_SIZE must be at least 1, got %d", c.SummaryBatchSize)
	}
	if c.AuditMinAverage < 0 || c.AuditMinAverage > 1 {
		return fmt.Errorf("AUDIT_MIN_AVERAGE must be within [0,1], got %v", c.AuditMinAverage)
	}
	if c.AuditMaxFlaggedPct < 0 || c.AuditMaxFlaggedPct > 1 {
		return fmt.Errorf("AUDIT_MAX_FLAGGED_PCT must be within [0,1], got %v", c.AuditMaxFlaggedPct)
	}
	if _, err := time.LoadLocation(c.SchedulerTimezone); err != nil {
		return fmt.Errorf("unknown SCHEDULER_TIMEZONE %q: %w", c.SchedulerTimezone, err)
	}
	return nil
}

// R2Enabled reports whether audit reports can be uploaded
func (c *Config) R2Enabled() bool {
	return c.R2Endpoint != "" && c.R2Bucket != "" && c.R2AccessKey != "" && c.R2SecretKey != ""
}

// Location resolves the scheduler timezone, falling back to UTC
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.SchedulerTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Helper functions for environment variable handling
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(name string, defaultVal int) int {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %d", name, err, defaultVal)
		return defaultVal
	}
	return value
}

func getEnvAsFloat(name string, defaultVal float64) float64 {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %v", name, err, defaultVal)
		return defaultVal
	}
	return value
}

func getEnvAsBool(name string, defaultVal bool) bool {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %t", name, err, defaultVal)
		return defaultVal
	}
	return value
}

func getEnvAsDuration(name string, defaultVal time.Duration) time.Duration {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %v", name, err, defaultVal)
		return defaultVal
	}
	return value
}
