package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("PORT", "")
	t.Setenv("TX_MAX_RETRIES", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8081" {
		t.Errorf("Port: got %q, want %q", cfg.Port, "8081")
	}
	if cfg.TxMaxRetries != 3 {
		t.Errorf("TxMaxRetries: got %d, want 3", cfg.TxMaxRetries)
	}
	if cfg.RabbitMQURL != "" {
		t.Errorf("RabbitMQURL: got %q, want empty", cfg.RabbitMQURL)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte("port: \"9000\"\nlog_level: debug\ncache_ttl: 5s\nallowed_origins:\n  - https://pos.example\n")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "9100")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("CACHE_TTL", "")
	t.Setenv("ALLOWED_ORIGINS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9100" {
		t.Errorf("Port: got %q, want env value 9100", cfg.Port)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel: got %q, want debug", cfg.LogLevel)
	}
	if cfg.CacheTTL != 5*time.Second {
		t.Errorf("CacheTTL: got %v, want 5s", cfg.CacheTTL)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "https://pos.example" {
		t.Errorf("AllowedOrigins: got %v", cfg.AllowedOrigins)
	}
}

func TestLoad_EnvParsing(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("SHUTDOWN_TIMEOUT", "2s")
	t.Setenv("TX_MAX_RETRIES", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.AllowedOrigins) != 2 {
		t.Errorf("AllowedOrigins: got %v, want 2 entries", cfg.AllowedOrigins)
	}
	if cfg.ShutdownTimeout != 2*time.Second {
		t.Errorf("ShutdownTimeout: got %v", cfg.ShutdownTimeout)
	}
	if cfg.TxMaxRetries != 5 {
		t.Errorf("TxMaxRetries: got %d", cfg.TxMaxRetries)
	}
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"bad duration", "CACHE_TTL", "soon"},
		{"bad int", "TX_MAX_RETRIES", "many"},
		{"negative retries", "TX_MAX_RETRIES", "-1"},
		{"bad log level", "LOG_LEVEL", "verbose"},
		{"zero shutdown", "SHUTDOWN_TIMEOUT", "0s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CONFIG_FILE", "")
			t.Setenv(tt.key, tt.val)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%s", tt.key, tt.val)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
