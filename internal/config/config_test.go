package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Port != "4000" {
		t.Fatalf("Port = %q, want 4000", cfg.Port)
	}
	if cfg.TokenLifetime != 2*time.Hour {
		t.Fatalf("TokenLifetime = %v, want 2h", cfg.TokenLifetime)
	}
	if cfg.GinMode != "debug" {
		t.Fatalf("GinMode = %q, want debug", cfg.GinMode)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("TOKEN_LIFETIME_MINUTES", "30")
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Port != "9999" {
		t.Fatalf("Port = %q, want 9999", cfg.Port)
	}
	if cfg.TokenLifetime != 30*time.Minute {
		t.Fatalf("TokenLifetime = %v, want 30m", cfg.TokenLifetime)
	}
	if cfg.JWTSecret != "s3cret" {
		t.Fatalf("JWTSecret = %q, want s3cret", cfg.JWTSecret)
	}
}

func TestValidateReleaseRequiresSecret(t *testing.T) {
	t.Setenv("GIN_MODE", "release")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when JWT_SECRET is missing in release mode")
	}

	t.Setenv("JWT_SECRET", "s3cret")
	if _, err := Load(); err != nil {
		t.Fatalf("Load returned error with secret set: %v", err)
	}
}

func TestValidateRejectsNonPositiveLifetime(t *testing.T) {
	t.Setenv("TOKEN_LIFETIME_MINUTES", "-5")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for negative token lifetime")
	}
}
