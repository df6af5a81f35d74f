package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Slots.Count != 12 {
		t.Fatalf("expected 12 custom slots, got %d", cfg.Slots.Count)
	}
	if cfg.Narration.Rate != 0.9 {
		t.Fatalf("expected narration rate 0.9, got %v", cfg.Narration.Rate)
	}
	if cfg.Images.DefaultMediaType != "image/jpeg" {
		t.Fatalf("expected image/jpeg default, got %s", cfg.Images.DefaultMediaType)
	}
}

func TestLoadMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")
	if _, err := Load(missing, false); err != nil {
		t.Fatalf("implicit missing file should fall back to defaults: %v", err)
	}
	if _, err := Load(missing, true); err == nil {
		t.Fatal("expected error for explicit missing file")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "talkmate.yaml")
	data := []byte(`
generation:
  provider: ollama
  model: llava
narration:
  mode: exec
  command: 'espeak-ng -v {voice} "{text}"'
  voices:
    - lang: en-US
      name: en-us
    - lang: fr-FR
      name: fr
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Generation.Provider != "ollama" || cfg.Generation.Model != "llava" {
		t.Fatalf("expected generation override, got %+v", cfg.Generation)
	}
	if len(cfg.Narration.Voices) != 2 || cfg.Narration.Voices[1].Lang != "fr-FR" {
		t.Fatalf("expected two voices, got %+v", cfg.Narration.Voices)
	}
	if cfg.HTTP.Port != 8888 {
		t.Fatalf("expected default port to survive, got %d", cfg.HTTP.Port)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TALKMATE_PROVIDER", "openai")
	t.Setenv("TALKMATE_MODEL", "gpt-4o")
	t.Setenv("TALKMATE_HTTP_PORT", "3000")
	t.Setenv("TALKMATE_SLOTS_COUNT", "6")
	t.Setenv("TALKMATE_NARRATION_RATE", "1.2")
	t.Setenv("TALKMATE_NATS_SERVERS", "nats://one:4222, nats://two:4222")
	t.Setenv("TALKMATE_METRICS_ENABLED", "false")

	cfg, err := Load("", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Generation.Provider != "openai" || cfg.Generation.Model != "gpt-4o" {
		t.Fatalf("expected provider override, got %+v", cfg.Generation)
	}
	if cfg.HTTP.Port != 3000 {
		t.Fatalf("expected port 3000, got %d", cfg.HTTP.Port)
	}
	if cfg.Slots.Count != 6 {
		t.Fatalf("expected 6 slots, got %d", cfg.Slots.Count)
	}
	if cfg.Narration.Rate != 1.2 {
		t.Fatalf("expected rate 1.2, got %v", cfg.Narration.Rate)
	}
	if len(cfg.Narration.NATS.Servers) != 2 {
		t.Fatalf("expected 2 servers, got %v", cfg.Narration.NATS.Servers)
	}
	if cfg.Telemetry.MetricsEnabled {
		t.Fatal("expected metrics disabled")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad provider", func(c *Config) { c.Generation.Provider = "bard" }},
		{"bad narration mode", func(c *Config) { c.Narration.Mode = "browser" }},
		{"exec without command", func(c *Config) { c.Narration.Mode = "exec" }},
		{"zero slots", func(c *Config) { c.Slots.Count = 0 }},
		{"non image default", func(c *Config) { c.Images.DefaultMediaType = "text/plain" }},
		{"bad port", func(c *Config) { c.HTTP.Port = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := validate(cfg); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
