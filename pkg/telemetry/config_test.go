package telemetry

import (
	"testing"

	"github.com/rs/zerolog"
)

// TestDefaultConfig verifies the default configuration is valid.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config failed validation: %v", err)
	}

	if cfg.ServiceName != "casetrack" {
		t.Errorf("expected service name casetrack, got %s", cfg.ServiceName)
	}
	if cfg.Tracing.Enabled {
		t.Error("expected tracing disabled by default")
	}
	if cfg.Metrics.Enabled {
		t.Error("expected metrics disabled by default")
	}
}

// TestConfigValidate covers each rejection path.
func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty service name", func(c *Config) { c.ServiceName = "" }},
		{"empty service version", func(c *Config) { c.ServiceVersion = "" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"bad exporter", func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.Exporter = "carrier-pigeon"
		}},
		{"sampling rate out of range", func(c *Config) { c.Tracing.SamplingRate = 1.5 }},
		{"metrics without address", func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.ListenAddress = ""
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

// TestParseLogLevel verifies level names map to zerolog levels, with
// info as the fallback.
func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"bogus", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := parseLogLevel(tt.input); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

// TestNewTelemetryDisabled verifies the bundle assembles with tracing
// and metrics off.
func TestNewTelemetryDisabled(t *testing.T) {
	tel, err := NewTelemetry(DefaultConfig())
	if err != nil {
		t.Fatalf("failed to create telemetry: %v", err)
	}

	if tel.Logger == nil || tel.Tracer == nil || tel.Metrics == nil {
		t.Fatal("expected all telemetry components to be set")
	}

	// Disabled metrics are a no-op; recording must not panic.
	tel.Metrics.RecordCaseCreated()
	tel.Metrics.RecordStatusUpdate("ok")
}

// TestNewTelemetryInvalid verifies invalid configuration is rejected.
func TestNewTelemetryInvalid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.Level = "loud"

	if _, err := NewTelemetry(cfg); err == nil {
		t.Fatal("expected error for invalid config")
	}
}
