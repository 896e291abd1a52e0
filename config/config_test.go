package config

import "testing"

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DEEPGRAM_API_KEY", "test-key")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.SilenceTimeoutMs != 2000 {
		t.Errorf("SilenceTimeoutMs = %d, want 2000", cfg.SilenceTimeoutMs)
	}
	if cfg.MaxDurationMs != 60000 {
		t.Errorf("MaxDurationMs = %d, want 60000", cfg.MaxDurationMs)
	}
	if cfg.SpeakingThreshold != 0.15 {
		t.Errorf("SpeakingThreshold = %g, want 0.15", cfg.SpeakingThreshold)
	}
	if cfg.Language != "en-US" {
		t.Errorf("Language = %q, want en-US", cfg.Language)
	}
	if cfg.DeepgramModel != "nova-3" {
		t.Errorf("DeepgramModel = %q, want nova-3", cfg.DeepgramModel)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv("DEEPGRAM_API_KEY", "")

	if _, err := Load(); err == nil {
		t.Error("expected error when DEEPGRAM_API_KEY is missing")
	}
}

func TestValidate(t *testing.T) {
	for _, tt := range []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults ok", func(*Config) {}, false},
		{"zero silence", func(c *Config) { c.SilenceTimeoutMs = 0 }, true},
		{"cap below silence", func(c *Config) { c.MaxDurationMs = 1000 }, true},
		{"threshold too high", func(c *Config) { c.SpeakingThreshold = 1.0 }, true},
		{"threshold zero", func(c *Config) { c.SpeakingThreshold = 0 }, true},
	} {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{
				SilenceTimeoutMs:  2000,
				MaxDurationMs:     60000,
				SpeakingThreshold: 0.15,
			}
			tt.mutate(&cfg)
			err := cfg.validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDurationAccessors(t *testing.T) {
	setRequired(t)
	t.Setenv("SILENCE_TIMEOUT_MS", "1500")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.SilenceTimeout().Milliseconds() != 1500 {
		t.Errorf("SilenceTimeout = %v, want 1.5s", cfg.SilenceTimeout())
	}
	if cfg.MaxDuration().Seconds() != 60 {
		t.Errorf("MaxDuration = %v, want 60s", cfg.MaxDuration())
	}
}
