package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.App.Port)
	}
	if cfg.Chat.SendBufferSize != 128 {
		t.Errorf("expected default send buffer 128, got %d", cfg.Chat.SendBufferSize)
	}
	if cfg.Chat.GreetingText == "" {
		t.Errorf("expected a default greeting")
	}
	if cfg.Auth.AccessTokenTTLMinutes != 60 {
		t.Errorf("expected default token ttl 60, got %d", cfg.Auth.AccessTokenTTLMinutes)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_PORT", "9999")
	t.Setenv("CHAT_POLL_INTERVAL_SECONDS", "12")
	t.Setenv("REDIS_DB", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.Port != "9999" {
		t.Errorf("expected port override, got %s", cfg.App.Port)
	}
	if cfg.Chat.PollInterval() != 12*time.Second {
		t.Errorf("expected 12s poll interval, got %v", cfg.Chat.PollInterval())
	}
	if cfg.Redis.DB != 3 {
		t.Errorf("expected redis db 3, got %d", cfg.Redis.DB)
	}
}

func TestLoadRejectsInvalidRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "not-a-number")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for invalid REDIS_DB")
	}
}

func TestDurationFallbacks(t *testing.T) {
	chat := ChatConfig{}
	if chat.WriteTimeout() != 10*time.Second {
		t.Errorf("expected 10s write timeout fallback, got %v", chat.WriteTimeout())
	}
	if chat.PollInterval() != 5*time.Second {
		t.Errorf("expected 5s poll fallback, got %v", chat.PollInterval())
	}
	app := AppConfig{}
	if app.RequestTimeout() != 0 {
		t.Errorf("expected zero timeout when unset, got %v", app.RequestTimeout())
	}
}
