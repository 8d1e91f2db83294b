package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("API_BASE_URL", "")
	t.Setenv("CHAT_WS_URL", "")
	t.Setenv("CHAT_RECONNECT_DELAY", "")
	cfg := Load()
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("expected default log level, got %s", cfg.LogLevel)
	}
	if cfg.APIBaseURL != "http://127.0.0.1:8000" {
		t.Fatalf("expected default API base URL, got %s", cfg.APIBaseURL)
	}
	if cfg.ChatWSURL != "ws://localhost:8083/ws" {
		t.Fatalf("expected default chat ws URL, got %s", cfg.ChatWSURL)
	}
	if cfg.ChatReconnectDelay != 5*time.Second {
		t.Fatalf("expected default reconnect delay, got %s", cfg.ChatReconnectDelay)
	}
	if cfg.AuthToken != "" {
		t.Fatalf("expected empty default auth token, got %s", cfg.AuthToken)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("API_BASE_URL", "https://api.clinic.example")
	t.Setenv("CHAT_WS_URL", "wss://chat.clinic.example/ws")
	t.Setenv("CHAT_RECONNECT_DELAY", "2s")
	t.Setenv("HTTP_TIMEOUT", "30s")
	t.Setenv("CLINIC_TOKEN", "dev-token")
	cfg := Load()
	if cfg.Env != "production" {
		t.Fatalf("expected env override, got %s", cfg.Env)
	}
	if cfg.ChatWSURL != "wss://chat.clinic.example/ws" {
		t.Fatalf("expected chat ws URL override, got %s", cfg.ChatWSURL)
	}
	if cfg.ChatReconnectDelay != 2*time.Second {
		t.Fatalf("expected reconnect delay override, got %s", cfg.ChatReconnectDelay)
	}
	if cfg.HTTPTimeout != 30*time.Second {
		t.Fatalf("expected http timeout override, got %s", cfg.HTTPTimeout)
	}
	if cfg.AuthToken != "dev-token" {
		t.Fatalf("expected auth token override, got %s", cfg.AuthToken)
	}
}

func TestLoadBadDurationFallsBack(t *testing.T) {
	t.Setenv("CHAT_RECONNECT_DELAY", "soon")
	cfg := Load()
	if cfg.ChatReconnectDelay != 5*time.Second {
		t.Fatalf("expected fallback reconnect delay, got %s", cfg.ChatReconnectDelay)
	}
}
