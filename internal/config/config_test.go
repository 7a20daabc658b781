package config

import "testing"

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.SampleRate != 48000 {
		t.Fatalf("unexpected default sample rate: %d", cfg.SampleRate)
	}
	if cfg.DriftThresholdMS != 5.0 {
		t.Fatalf("unexpected default drift threshold: %f", cfg.DriftThresholdMS)
	}
	if cfg.RedisAddr != "" {
		t.Fatalf("expected empty redis addr by default, got %q", cfg.RedisAddr)
	}
}

func TestLoadReadsOverrides(t *testing.T) {
	t.Setenv("GESTUREDECK_SAMPLE_RATE", "44100")
	t.Setenv("GESTUREDECK_ENV", "production")
	t.Setenv("GESTUREDECK_REDIS_ADDR", "localhost:6379")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.SampleRate != 44100 {
		t.Fatalf("unexpected sample rate: %d", cfg.SampleRate)
	}
	if cfg.Environment != "production" {
		t.Fatalf("unexpected environment: %q", cfg.Environment)
	}
	if cfg.RedisAddr != "localhost:6379" {
		t.Fatalf("unexpected redis addr: %q", cfg.RedisAddr)
	}
}

func TestValidateRejectsNonPositiveSampleRate(t *testing.T) {
	cfg := validConfig()
	cfg.SampleRate = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero sample rate")
	}
}

func TestValidateRejectsOutOfRangeTracingSampleRate(t *testing.T) {
	cfg := validConfig()
	cfg.TracingSampleRate = 1.5
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for tracing sample rate > 1")
	}
}

func TestAnalysisTimeoutConvertsMillisecondsToDuration(t *testing.T) {
	cfg := validConfig()
	cfg.AnalysisTimeoutMS = 2500
	if got := cfg.AnalysisTimeout().Milliseconds(); got != 2500 {
		t.Fatalf("AnalysisTimeout() = %dms, want 2500ms", got)
	}
}

func validConfig() *Config {
	return &Config{
		Environment:           "development",
		SampleRate:            48000,
		BlockSize:             128,
		TargetLatencyMS:       20,
		DriftThresholdMS:      5,
		SyncMonitorIntervalMS: 50,
		AnalysisTimeoutMS:     3000,
		TracingSampleRate:     1,
	}
}
