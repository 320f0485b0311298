package goIdentity

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Veltherin/goIdentity/jwt"
	"github.com/Veltherin/goIdentity/password"
)

// Builder assembles an [Engine]. Construction is allocation-only until Build:
// no I/O happens before the first Engine method call.
type Builder struct {
	config   Config
	repo     AccountRepository
	notifier NotificationGateway
	logger   *zap.Logger
	clock    func() time.Time
	secrets  SecretSource

	metricsEnabled bool
	built          bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config:         DefaultConfig(),
		metricsEnabled: true,
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRepository sets the account store. Required.
func (b *Builder) WithRepository(repo AccountRepository) *Builder {
	b.repo = repo
	return b
}

// WithNotifier sets the transactional email gateway. Optional; without one
// the engine runs with notifications disabled.
func (b *Builder) WithNotifier(gateway NotificationGateway) *Builder {
	b.notifier = gateway
	return b
}

// WithLogger sets the structured logger. Defaults to zap.NewNop.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides the time source. Test hook.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// WithSecretSource overrides the opaque-token generator. Test hook.
func (b *Builder) WithSecretSource(src SecretSource) *Builder {
	b.secrets = src
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.metricsEnabled = enabled
	return b
}

// Build validates the configuration, wires the crypto components, and starts
// the notification dispatcher. A Builder builds at most once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.repo == nil {
		return nil, errors.New("account repository is required")
	}
	if err := validateConfig(&b.config); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := b.clock
	if clock == nil {
		clock = time.Now
	}
	secrets := b.secrets
	if secrets == nil {
		secrets = cryptoSecretSource{}
	}

	hasher, err := password.New(password.Config{
		Memory:      b.config.Password.Memory,
		Time:        b.config.Password.Time,
		Parallelism: b.config.Password.Parallelism,
		SaltLength:  b.config.Password.SaltLength,
		KeyLength:   b.config.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	tokens, err := jwt.NewManager(jwt.Config{
		DefaultTTL:    b.config.Session.TTL,
		SigningMethod: jwt.SigningMethod(b.config.Session.SigningMethod),
		Secret:        b.config.Session.Secret,
		PrivateKey:    b.config.Session.PrivateKey,
		PublicKey:     b.config.Session.PublicKey,
		Issuer:        b.config.Session.Issuer,
		Leeway:        b.config.Session.Leeway,
	})
	if err != nil {
		return nil, err
	}

	m := newMetrics(b.metricsEnabled)

	e := &Engine{
		config:  b.config,
		repo:    b.repo,
		hasher:  hasher,
		tokens:  tokens,
		totp:    newTOTPManager(b.config.TOTP),
		secrets: secrets,
		metrics: m,
		logger:  logger,
		now:     clock,
	}
	e.notify = newNotifyDispatcher(b.config.Notify, b.notifier, logger, m)

	b.built = true
	return e, nil
}
