package goIdentity

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type envConfig struct {
	SignupEnabled    bool     `env:"IDENTITY_SIGNUP_ENABLED" envDefault:"true"`
	UsernameRequired bool     `env:"IDENTITY_USERNAME_REQUIRED" envDefault:"false"`
	DefaultRoles     []string `env:"IDENTITY_DEFAULT_ROLES" envDefault:"user"`
	DefaultPlan      string   `env:"IDENTITY_DEFAULT_PLAN" envDefault:"free"`

	VerificationEnabled bool `env:"IDENTITY_VERIFICATION_ENABLED" envDefault:"true"`

	PasswordlessEnabled  bool          `env:"IDENTITY_PASSWORDLESS_ENABLED" envDefault:"false"`
	PasswordlessTokenTTL time.Duration `env:"IDENTITY_PASSWORDLESS_TOKEN_TTL" envDefault:"15m"`

	ResetTokenTTL time.Duration `env:"IDENTITY_RESET_TOKEN_TTL" envDefault:"1h"`

	SessionTTL    time.Duration `env:"IDENTITY_SESSION_TTL" envDefault:"30m"`
	SessionMethod string        `env:"IDENTITY_SESSION_SIGNING_METHOD" envDefault:"hs256"`
	SessionSecret string        `env:"IDENTITY_SESSION_SECRET"`
	SessionIssuer string        `env:"IDENTITY_SESSION_ISSUER" envDefault:"goIdentity"`

	PasswordMemory      uint32 `env:"IDENTITY_PASSWORD_MEMORY_KB" envDefault:"65536"`
	PasswordTime        uint32 `env:"IDENTITY_PASSWORD_TIME" envDefault:"3"`
	PasswordParallelism uint8  `env:"IDENTITY_PASSWORD_PARALLELISM" envDefault:"2"`

	TOTPIssuer string `env:"IDENTITY_TOTP_ISSUER" envDefault:"goIdentity"`

	NotifyRetries int           `env:"IDENTITY_NOTIFY_RETRIES" envDefault:"2"`
	NotifyTimeout time.Duration `env:"IDENTITY_NOTIFY_TIMEOUT" envDefault:"5s"`
}

// ConfigFromEnv builds a [Config] from IDENTITY_* environment variables on
// top of [DefaultConfig]. Unset variables keep their defaults.
func ConfigFromEnv() (Config, error) {
	var ec envConfig
	if err := env.Parse(&ec); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg := DefaultConfig()
	cfg.Signup.Enabled = ec.SignupEnabled
	cfg.Signup.UsernameRequired = ec.UsernameRequired
	cfg.Signup.DefaultRoles = ec.DefaultRoles
	cfg.Signup.DefaultPlan = ec.DefaultPlan
	cfg.Verification.Enabled = ec.VerificationEnabled
	cfg.Passwordless.Enabled = ec.PasswordlessEnabled
	cfg.Passwordless.TokenTTL = ec.PasswordlessTokenTTL
	cfg.Reset.TokenTTL = ec.ResetTokenTTL
	cfg.Session.TTL = ec.SessionTTL
	cfg.Session.SigningMethod = ec.SessionMethod
	if ec.SessionSecret != "" {
		cfg.Session.Secret = []byte(ec.SessionSecret)
	}
	cfg.Session.Issuer = ec.SessionIssuer
	cfg.Password.Memory = ec.PasswordMemory
	cfg.Password.Time = ec.PasswordTime
	cfg.Password.Parallelism = ec.PasswordParallelism
	cfg.TOTP.Issuer = ec.TOTPIssuer
	cfg.Notify.Retries = ec.NotifyRetries
	cfg.Notify.Timeout = ec.NotifyTimeout
	return cfg, nil
}
