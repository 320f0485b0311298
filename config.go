package goIdentity

import (
	"errors"
	"time"
)

// Config is the resolved configuration snapshot consumed by the engine. It is
// read once at Build time; feature toggles are fields here, never ambient
// lookups.
type Config struct {
	Signup       SignupConfig
	Verification VerificationConfig
	Passwordless PasswordlessConfig
	Reset        ResetConfig
	Session      SessionConfig
	Password     PasswordConfig
	TOTP         TOTPConfig
	Notify       NotifyConfig
}

// SignupConfig controls registration.
type SignupConfig struct {
	Enabled bool
	// UsernameRequired turns on the username feature: registration requires a
	// unique username and login also matches on it.
	UsernameRequired bool
	DefaultRoles     []string
	DefaultPlan      string
}

// VerificationConfig controls email verification. When disabled, accounts are
// verified immediately at registration.
type VerificationConfig struct {
	Enabled bool
}

// PasswordlessConfig controls magic-link login.
type PasswordlessConfig struct {
	Enabled  bool
	TokenTTL time.Duration
}

// ResetConfig controls password reset.
type ResetConfig struct {
	TokenTTL time.Duration
}

// SessionConfig configures the session-token signer. Secret is the HS256 key;
// for ed25519 set PrivateKey/PublicKey instead. The signing key is loaded
// once at startup and never rotated mid-process.
type SessionConfig struct {
	TTL           time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	Secret        []byte
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Leeway        time.Duration
}

// PasswordConfig is the Argon2id work factor.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// TOTPConfig configures code generation and verification. Skew is the number
// of time steps of clock drift tolerated on either side of now.
type TOTPConfig struct {
	Issuer string
	Digits int
	Period int
	Skew   int
}

// NotifyConfig bounds asynchronous notification delivery.
type NotifyConfig struct {
	Retries   int
	Timeout   time.Duration
	QueueSize int
}

// DefaultConfig returns a snapshot with production-reasonable defaults:
// signup enabled, verification enabled, passwordless disabled, 30-minute
// session tokens, Argon2id at 64 MB / t=3 / p=2, 6-digit 30-second TOTP with
// one step of skew.
func DefaultConfig() Config {
	return Config{
		Signup: SignupConfig{
			Enabled:      true,
			DefaultRoles: []string{"user"},
			DefaultPlan:  "free",
		},
		Verification: VerificationConfig{
			Enabled: true,
		},
		Passwordless: PasswordlessConfig{
			TokenTTL: 15 * time.Minute,
		},
		Reset: ResetConfig{
			TokenTTL: 1 * time.Hour,
		},
		Session: SessionConfig{
			TTL:           30 * time.Minute,
			SigningMethod: "hs256",
			Issuer:        "goIdentity",
			Leeway:        30 * time.Second,
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		TOTP: TOTPConfig{
			Issuer: "goIdentity",
			Digits: 6,
			Period: 30,
			Skew:   1,
		},
		Notify: NotifyConfig{
			Retries:   2,
			Timeout:   5 * time.Second,
			QueueSize: 256,
		},
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Session.TTL <= 0 {
		return errors.New("session TTL must be positive")
	}
	if cfg.Signup.Enabled && len(cfg.Signup.DefaultRoles) == 0 {
		return errors.New("signup requires at least one default role")
	}
	if cfg.Passwordless.Enabled && cfg.Passwordless.TokenTTL <= 0 {
		return errors.New("passwordless requires a positive token TTL")
	}
	if cfg.Reset.TokenTTL <= 0 {
		return errors.New("reset token TTL must be positive")
	}
	if cfg.TOTP.Digits < 6 || cfg.TOTP.Digits > 8 {
		return errors.New("totp digits must be between 6 and 8")
	}
	if cfg.TOTP.Period <= 0 {
		return errors.New("totp period must be positive")
	}
	if cfg.TOTP.Skew < 0 {
		return errors.New("totp skew must not be negative")
	}
	if cfg.Notify.Retries < 0 {
		return errors.New("notify retries must not be negative")
	}
	if cfg.Notify.QueueSize <= 0 {
		cfg.Notify.QueueSize = 1
	}
	if cfg.Notify.Timeout <= 0 {
		cfg.Notify.Timeout = 5 * time.Second
	}
	return nil
}
