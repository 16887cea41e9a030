package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := LoadFiles()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.APIPort != 5000 {
		t.Errorf("APIPort = %d, want 5000", cfg.APIPort)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %s, want info", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %s, want json", cfg.LogFormat)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.MaxRetries)
	}
	if cfg.RetryBackoff != 2*time.Second {
		t.Errorf("RetryBackoff = %v, want 2s", cfg.RetryBackoff)
	}
	if cfg.MessageDelay != 10*time.Second {
		t.Errorf("MessageDelay = %v, want 10s", cfg.MessageDelay)
	}
	if cfg.ChatLoadTimeout != 45*time.Second {
		t.Errorf("ChatLoadTimeout = %v, want 45s", cfg.ChatLoadTimeout)
	}
	if cfg.UploadTimeout != 60*time.Second {
		t.Errorf("UploadTimeout = %v, want 60s", cfg.UploadTimeout)
	}
	if cfg.MaxUploadBytes != 16*1024*1024 {
		t.Errorf("MaxUploadBytes = %d, want 16MB", cfg.MaxUploadBytes)
	}
	if cfg.Transport != TransportBrowser {
		t.Errorf("Transport = %s, want %s", cfg.Transport, TransportBrowser)
	}
	if cfg.UploadDir != "uploads" {
		t.Errorf("UploadDir = %s, want uploads", cfg.UploadDir)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	t.Setenv("API_PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("MAX_RETRIES", "5")
	t.Setenv("MESSAGE_DELAY", "1500ms")
	t.Setenv("TRANSPORT", " Webhook ")
	t.Setenv("WEBHOOK_URL", "https://example.test/hook")

	cfg, err := LoadFiles()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.APIPort != 9090 {
		t.Errorf("APIPort = %d, want 9090", cfg.APIPort)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %s, want debug", cfg.LogLevel)
	}
	if cfg.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d, want 5", cfg.MaxRetries)
	}
	if cfg.MessageDelay != 1500*time.Millisecond {
		t.Errorf("MessageDelay = %v, want 1.5s", cfg.MessageDelay)
	}
	if cfg.Transport != TransportWebhook {
		t.Errorf("Transport = %s, want %s", cfg.Transport, TransportWebhook)
	}
}

func TestLoad_WebhookRequiresURL(t *testing.T) {
	t.Setenv("TRANSPORT", "webhook")

	_, err := LoadFiles()
	if err == nil {
		t.Fatal("expected error for webhook transport without WEBHOOK_URL, got nil")
	}
}

func TestLoad_UnknownTransport(t *testing.T) {
	t.Setenv("TRANSPORT", "carrier-pigeon")

	if _, err := LoadFiles(); err == nil {
		t.Fatal("expected error for unsupported transport, got nil")
	}
}

func TestLoad_InvalidMaxRetries(t *testing.T) {
	t.Setenv("MAX_RETRIES", "0")

	if _, err := LoadFiles(); err == nil {
		t.Fatal("expected error for MAX_RETRIES=0, got nil")
	}
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("STATIC_DIR=dist\nLOG_LEVEL=warn\n"), 0o600); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}
	t.Setenv("LOG_LEVEL", "error")
	// godotenv writes into the process environment.
	t.Cleanup(func() { _ = os.Unsetenv("STATIC_DIR") })

	cfg, err := LoadFiles(path, filepath.Join(dir, "missing.env"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.StaticDir != "dist" {
		t.Errorf("StaticDir = %s, want dist", cfg.StaticDir)
	}
	if cfg.LogLevel != "error" {
		t.Errorf("LogLevel = %s, want error (environment wins over file)", cfg.LogLevel)
	}
}
