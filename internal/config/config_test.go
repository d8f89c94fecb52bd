package config

import (
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s3cret")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("expected config, got %v", err)
	}
	if cfg.HTTPPort != "8080" || cfg.StorageDriver != "postgres" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if !cfg.TwoFactorEmail {
		t.Fatalf("expected 2fa email enabled by default")
	}
	if cfg.CodeTTL() != 10*time.Minute || cfg.TwoFactorSessionTTL() != 10*time.Minute {
		t.Fatalf("expected 10 minute windows, got %v / %v", cfg.CodeTTL(), cfg.TwoFactorSessionTTL())
	}
	if cfg.SessionTTL() != 2*time.Hour {
		t.Fatalf("expected 2h session, got %v", cfg.SessionTTL())
	}
}

func TestLoadConfig_RequiresSessionSecret(t *testing.T) {
	t.Setenv("SESSION_SECRET", "")
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error without SESSION_SECRET")
	}
}

func TestDurations_FallbackOnNonPositive(t *testing.T) {
	cfg := &Config{CodeTTLMinutes: 0, TwoFactorSessionMins: -3, SessionTTLMinutes: 30}
	if cfg.CodeTTL() != 10*time.Minute {
		t.Fatalf("expected fallback code ttl, got %v", cfg.CodeTTL())
	}
	if cfg.TwoFactorSessionTTL() != 10*time.Minute {
		t.Fatalf("expected fallback 2fa window, got %v", cfg.TwoFactorSessionTTL())
	}
	if cfg.SessionTTL() != 30*time.Minute {
		t.Fatalf("expected 30m session, got %v", cfg.SessionTTL())
	}
}
