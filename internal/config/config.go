package config

import (
	"os"
	"strconv"
	"time"

	"gorisk/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Engine   EngineConfig
	Server   ServerConfig
	Database DatabaseConfig
	Export   ExportConfig
}

// EngineConfig holds simulation engine defaults. It is passed explicitly into
// scenario construction rather than held as process-wide state so runs stay
// independently testable.
type EngineConfig struct {
	DefaultIterations int
	MaxIterations     int
	ConfidenceLevel   float64
	Workers           int
	ChunkSize         int
	StrictCorrelation bool
	FailureThreshold  float64
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port            string
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds result-cache database settings. URL may be empty, in
// which case result caching is disabled.
type DatabaseConfig struct {
	URL string
}

// ExportConfig holds report export settings
type ExportConfig struct {
	Dir string
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Engine:   loadEngineConfig(),
		Server:   loadServerConfig(),
		Database: loadDatabaseConfig(),
		Export:   loadExportConfig(),
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

// DefaultEngine returns the engine defaults used when no environment is loaded
func DefaultEngine() EngineConfig {
	return EngineConfig{
		DefaultIterations: 10000,
		MaxIterations:     10000000,
		ConfidenceLevel:   0.95,
		Workers:           0, // 0 = runtime.NumCPU at execution time
		ChunkSize:         2048,
		StrictCorrelation: false,
		FailureThreshold:  0,
	}
}

func loadEngineConfig() EngineConfig {
	cfg := DefaultEngine()
	cfg.DefaultIterations = getEnvIntOrDefault("SIM_DEFAULT_ITERATIONS", cfg.DefaultIterations)
	cfg.MaxIterations = getEnvIntOrDefault("SIM_MAX_ITERATIONS", cfg.MaxIterations)
	cfg.ConfidenceLevel = getEnvFloatOrDefault("SIM_CONFIDENCE_LEVEL", cfg.ConfidenceLevel)
	cfg.Workers = getEnvIntOrDefault("SIM_WORKERS", cfg.Workers)
	cfg.ChunkSize = getEnvIntOrDefault("SIM_CHUNK_SIZE", cfg.ChunkSize)
	cfg.StrictCorrelation = getEnvBoolOrDefault("SIM_STRICT_CORRELATION", cfg.StrictCorrelation)
	cfg.FailureThreshold = getEnvFloatOrDefault("SIM_FAILURE_THRESHOLD", cfg.FailureThreshold)
	return cfg
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Port:            getEnvOrDefault("PORT", "8080"),
		ShutdownTimeout: getEnvDurationOrDefault("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL: getEnvOrDefault("DATABASE_URL", ""),
	}
}

func loadExportConfig() ExportConfig {
	return ExportConfig{
		Dir: getEnvOrDefault("EXPORT_DIR", "."),
	}
}

func validateConfig(config *Config) error {
	e := config.Engine
	if e.DefaultIterations <= 0 {
		return errors.ConfigInvalid("SIM_DEFAULT_ITERATIONS must be positive")
	}
	if e.MaxIterations < e.DefaultIterations {
		return errors.ConfigInvalid("SIM_MAX_ITERATIONS must be >= SIM_DEFAULT_ITERATIONS")
	}
	if e.ConfidenceLevel <= 0 || e.ConfidenceLevel >= 1 {
		return errors.ConfigInvalid("SIM_CONFIDENCE_LEVEL must be in (0, 1)")
	}
	if e.ChunkSize <= 0 {
		return errors.ConfigInvalid("SIM_CHUNK_SIZE must be positive")
	}
	if e.FailureThreshold < 0 || e.FailureThreshold > 1 {
		return errors.ConfigInvalid("SIM_FAILURE_THRESHOLD must be in [0, 1]")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
