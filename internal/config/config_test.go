package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Engine.DefaultIterations != 10000 {
		t.Errorf("DefaultIterations = %d, want 10000", cfg.Engine.DefaultIterations)
	}
	if cfg.Engine.MaxIterations != 10000000 {
		t.Errorf("MaxIterations = %d, want 10000000", cfg.Engine.MaxIterations)
	}
	if cfg.Engine.ConfidenceLevel != 0.95 {
		t.Errorf("ConfidenceLevel = %g, want 0.95", cfg.Engine.ConfidenceLevel)
	}
	if cfg.Engine.StrictCorrelation {
		t.Error("StrictCorrelation should default to false")
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Server.Port)
	}
	if cfg.Server.ShutdownTimeout != 10*time.Second {
		t.Errorf("ShutdownTimeout = %s, want 10s", cfg.Server.ShutdownTimeout)
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("SIM_DEFAULT_ITERATIONS", "5000")
	t.Setenv("SIM_WORKERS", "8")
	t.Setenv("SIM_STRICT_CORRELATION", "true")
	t.Setenv("SIM_FAILURE_THRESHOLD", "0.05")
	t.Setenv("PORT", "9090")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Engine.DefaultIterations != 5000 {
		t.Errorf("DefaultIterations = %d, want 5000", cfg.Engine.DefaultIterations)
	}
	if cfg.Engine.Workers != 8 {
		t.Errorf("Workers = %d, want 8", cfg.Engine.Workers)
	}
	if !cfg.Engine.StrictCorrelation {
		t.Error("StrictCorrelation override not applied")
	}
	if cfg.Engine.FailureThreshold != 0.05 {
		t.Errorf("FailureThreshold = %g, want 0.05", cfg.Engine.FailureThreshold)
	}
	if cfg.Server.Port != "9090" {
		t.Errorf("Port = %q, want 9090", cfg.Server.Port)
	}
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("ShutdownTimeout = %s, want 30s", cfg.Server.ShutdownTimeout)
	}
}

func TestLoad_MalformedValuesFallBack(t *testing.T) {
	t.Setenv("SIM_DEFAULT_ITERATIONS", "not-a-number")
	t.Setenv("SIM_CONFIDENCE_LEVEL", "high")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Engine.DefaultIterations != 10000 {
		t.Errorf("DefaultIterations = %d, want default 10000", cfg.Engine.DefaultIterations)
	}
	if cfg.Engine.ConfidenceLevel != 0.95 {
		t.Errorf("ConfidenceLevel = %g, want default 0.95", cfg.Engine.ConfidenceLevel)
	}
}

func TestLoad_RejectsInvalidConfiguration(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
	}{
		{"negative iterations", "SIM_DEFAULT_ITERATIONS", "-5"},
		{"max below default", "SIM_MAX_ITERATIONS", "1"},
		{"confidence at 1", "SIM_CONFIDENCE_LEVEL", "1.0"},
		{"zero chunk size", "SIM_CHUNK_SIZE", "0"},
		{"threshold above 1", "SIM_FAILURE_THRESHOLD", "1.5"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			if _, err := Load(); err == nil {
				t.Errorf("Load accepted %s=%s", tc.key, tc.value)
			}
		})
	}
}
