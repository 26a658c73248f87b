// Package config loads the toolkit configuration from environment
// variables. Safety-relevant settings default to the closed position: the
// internal surface stays off and report writing stays refused until
// explicitly configured.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds the process configuration.
type Config struct {
	Port     string
	LogLevel string

	// Internal HTTP surface. Both must be set for the surface to exist.
	InternalAPIEnabled bool
	InternalKey        string

	// Report persistence. An empty allow-list refuses every write.
	ReportRoots      []string
	ReportS3Bucket   string
	ReportS3Region   string
	ReportS3Endpoint string

	// Execution.
	ConcurrencyLimit int
	TokenTTL         time.Duration
	RedisAddr        string

	// Business handlers.
	DatabaseURL         string
	ScenarioProfilesDir string

	// Telemetry export. Empty disables the OTLP exporters.
	OTLPEndpoint string
}

// Load reads configuration from environment variables.
func Load() *Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	var roots []string
	if raw := os.Getenv("OPSKIT_REPORT_ROOTS"); raw != "" {
		roots = filepath.SplitList(raw)
	}

	return &Config{
		Port:     port,
		LogLevel: logLevel,

		InternalAPIEnabled: os.Getenv("OPSKIT_INTERNAL_API_ENABLED") == "true",
		InternalKey:        os.Getenv("OPSKIT_INTERNAL_KEY"),

		ReportRoots:      roots,
		ReportS3Bucket:   os.Getenv("OPSKIT_REPORT_S3_BUCKET"),
		ReportS3Region:   os.Getenv("OPSKIT_REPORT_S3_REGION"),
		ReportS3Endpoint: os.Getenv("OPSKIT_REPORT_S3_ENDPOINT"),

		ConcurrencyLimit: envInt("OPSKIT_CONCURRENCY_LIMIT", 5),
		TokenTTL:         time.Duration(envInt("OPSKIT_TOKEN_TTL_MINUTES", 10)) * time.Minute,
		RedisAddr:        os.Getenv("OPSKIT_REDIS_ADDR"),

		DatabaseURL:         os.Getenv("DATABASE_URL"),
		ScenarioProfilesDir: os.Getenv("OPSKIT_SCENARIO_PROFILES"),

		OTLPEndpoint: os.Getenv("OPSKIT_OTLP_ENDPOINT"),
	}
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
