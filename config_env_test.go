package goIdentity

import (
	"testing"
	"time"
)

func TestConfigFromEnvDefaults(t *testing.T) {
	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv: %v", err)
	}

	want := DefaultConfig()
	if cfg.Signup.Enabled != want.Signup.Enabled {
		t.Error("signup default mismatch")
	}
	if cfg.Session.TTL != want.Session.TTL {
		t.Errorf("session ttl = %v, want %v", cfg.Session.TTL, want.Session.TTL)
	}
	if cfg.Passwordless.Enabled {
		t.Error("passwordless should default off")
	}
	if len(cfg.Session.Secret) != 0 {
		t.Error("secret should be empty when the variable is unset")
	}
}

func TestConfigFromEnvOverrides(t *testing.T) {
	t.Setenv("IDENTITY_SIGNUP_ENABLED", "false")
	t.Setenv("IDENTITY_USERNAME_REQUIRED", "true")
	t.Setenv("IDENTITY_PASSWORDLESS_ENABLED", "true")
	t.Setenv("IDENTITY_PASSWORDLESS_TOKEN_TTL", "5m")
	t.Setenv("IDENTITY_SESSION_TTL", "2h")
	t.Setenv("IDENTITY_SESSION_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("IDENTITY_DEFAULT_ROLES", "user,beta")
	t.Setenv("IDENTITY_TOTP_ISSUER", "ExampleCorp")

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv: %v", err)
	}

	if cfg.Signup.Enabled {
		t.Error("signup should be disabled")
	}
	if !cfg.Signup.UsernameRequired {
		t.Error("username requirement not applied")
	}
	if !cfg.Passwordless.Enabled || cfg.Passwordless.TokenTTL != 5*time.Minute {
		t.Errorf("passwordless = %+v", cfg.Passwordless)
	}
	if cfg.Session.TTL != 2*time.Hour {
		t.Errorf("session ttl = %v, want 2h", cfg.Session.TTL)
	}
	if string(cfg.Session.Secret) != "0123456789abcdef0123456789abcdef" {
		t.Error("secret not applied")
	}
	if len(cfg.Signup.DefaultRoles) != 2 || cfg.Signup.DefaultRoles[1] != "beta" {
		t.Errorf("roles = %v", cfg.Signup.DefaultRoles)
	}
	if cfg.TOTP.Issuer != "ExampleCorp" {
		t.Errorf("totp issuer = %q", cfg.TOTP.Issuer)
	}
}

func TestConfigFromEnvBadValue(t *testing.T) {
	t.Setenv("IDENTITY_SESSION_TTL", "not-a-duration")

	if _, err := ConfigFromEnv(); err == nil {
		t.Fatal("expected parse error")
	}
}
