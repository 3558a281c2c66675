package config

import (
	"bytes"
	"encoding/base64"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.HTTPPort != "8080" {
		t.Fatalf("expected default port 8080, got %s", cfg.HTTPPort)
	}
	if cfg.JWTExpiration() != 24*time.Hour {
		t.Fatalf("expected 24h expiration, got %v", cfg.JWTExpiration())
	}
	if cfg.TelemetryServiceURL != "http://localhost:8086" {
		t.Fatalf("unexpected telemetry url %s", cfg.TelemetryServiceURL)
	}
	if cfg.ServiceName != "user-service" {
		t.Fatalf("unexpected service name %s", cfg.ServiceName)
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("JWT_EXPIRATION_MS", "1500")
	t.Setenv("TELEMETRY_ENABLED", "false")
	t.Setenv("APP_ENV", "Development")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.JWTExpiration() != 1500*time.Millisecond {
		t.Fatalf("expected 1.5s expiration, got %v", cfg.JWTExpiration())
	}
	if cfg.TelemetryEnabled {
		t.Fatalf("expected telemetry disabled")
	}
	if !cfg.IsDevelopment() {
		t.Fatalf("expected development mode")
	}
}

func TestDecodeSecret(t *testing.T) {
	raw := []byte("0123456789abcdef0123456789abcdef")

	key, err := DecodeSecret(string(raw))
	if err != nil || !bytes.Equal(key, raw) {
		t.Fatalf("expected raw bytes, got %q, %v", key, err)
	}

	key, err = DecodeSecret(Base64SecretPrefix + base64.StdEncoding.EncodeToString(raw))
	if err != nil || !bytes.Equal(key, raw) {
		t.Fatalf("expected decoded bytes, got %q, %v", key, err)
	}

	if _, err := DecodeSecret(Base64SecretPrefix + "!!not-base64!!"); err == nil {
		t.Fatalf("expected error for corrupt base64 secret")
	}
}
