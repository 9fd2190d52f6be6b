package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewFromEnv(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		t.Setenv("MODEL_API_URL", "http://model.test/v1/chat/completions")
		t.Setenv("MODEL_API_KEY", "secret")

		cfg, err := NewFromEnv()
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if cfg.ModelAPIURL != "http://model.test/v1/chat/completions" {
			t.Errorf("Unexpected ModelAPIURL: %s", cfg.ModelAPIURL)
		}
		if cfg.Provider != "openai" {
			t.Errorf("Expected default provider 'openai', got '%s'", cfg.Provider)
		}
		if cfg.ModelName != "local-model" {
			t.Errorf("Expected default model name 'local-model', got '%s'", cfg.ModelName)
		}
		if cfg.AQIToken != "demo" {
			t.Errorf("Expected default AQI token 'demo', got '%s'", cfg.AQIToken)
		}
		if cfg.Tunables.QueueMinDelayMs != 1200 {
			t.Errorf("Expected default queue min delay, got %d", cfg.Tunables.QueueMinDelayMs)
		}
	})

	t.Run("MissingModelURL", func(t *testing.T) {
		os.Unsetenv("MODEL_API_URL")

		_, err := NewFromEnv()
		if err == nil {
			t.Fatal("Expected an error for missing MODEL_API_URL, got nil")
		}
	})

	t.Run("GeminiRequiresKey", func(t *testing.T) {
		t.Setenv("MODEL_API_URL", "http://model.test")
		t.Setenv("MODEL_PROVIDER", "gemini")
		os.Unsetenv("GEMINI_API_KEY")

		_, err := NewFromEnv()
		if err == nil {
			t.Fatal("Expected an error for gemini provider without GEMINI_API_KEY, got nil")
		}
	})
}

func TestLoadTunables(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tunables.yaml")

	content := []byte("queue_min_delay_ms: 50\ndefault_city: Lisbon\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	tun, err := LoadTunables(path)
	if err != nil {
		t.Fatalf("LoadTunables failed: %v", err)
	}
	if tun.QueueMinDelayMs != 50 {
		t.Errorf("Expected overridden queue min delay 50, got %d", tun.QueueMinDelayMs)
	}
	if Ms(tun.QueueMinDelayMs) != 50*time.Millisecond {
		t.Errorf("Expected Ms conversion to 50ms, got %v", Ms(tun.QueueMinDelayMs))
	}
	if tun.DefaultCity != "Lisbon" {
		t.Errorf("Expected overridden default city 'Lisbon', got '%s'", tun.DefaultCity)
	}
	// Keys absent from the file keep their defaults.
	if tun.ModelAttempts != 3 {
		t.Errorf("Expected default model attempts 3, got %d", tun.ModelAttempts)
	}
}
