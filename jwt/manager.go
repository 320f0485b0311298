package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod selects the token signature algorithm.
type SigningMethod string

const (
	MethodHS256   SigningMethod = "hs256"
	MethodEd25519 SigningMethod = "ed25519"
)

// ErrInvalid covers every client-caused verification failure: bad signature,
// malformed structure, wrong algorithm, expiry. Callers must reject the
// request, not retry it.
var ErrInvalid = errors.New("invalid session token")

// ErrSigning reports unusable key material at issue time. This is an
// infrastructure fault, distinct from ErrInvalid, and safe to retry.
var ErrSigning = errors.New("session token signing failed")

// Config for a [Manager]. DefaultTTL applies when Issue is called without an
// explicit TTL. The signing key is fixed for the process lifetime; rotation
// is an explicit non-goal.
type Config struct {
	DefaultTTL    time.Duration
	SigningMethod SigningMethod
	Secret        []byte // hs256
	PrivateKey    []byte // ed25519 seed or full private key
	PublicKey     []byte // ed25519, verify-only deployments
	Issuer        string
	Leeway        time.Duration
}

// Claims is the verified content of a session token.
type Claims struct {
	AccountID string
	ExpiresAt time.Time
}

type sessionClaims struct {
	jwt.RegisteredClaims
}

// Manager signs and verifies session tokens. Immutable after NewManager.
type Manager struct {
	config    Config
	method    jwt.SigningMethod
	signKey   any
	verifyKey any
}

// NewManager validates the key material up front so signing failures at
// runtime can only mean transient trouble.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.DefaultTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}

	m := &Manager{config: cfg}
	switch cfg.SigningMethod {
	case MethodHS256, "":
		if len(cfg.Secret) < 32 {
			return nil, errors.New("hs256 requires a secret of at least 32 bytes")
		}
		m.method = jwt.SigningMethodHS256
		m.signKey = cfg.Secret
		m.verifyKey = cfg.Secret
	case MethodEd25519:
		m.method = jwt.SigningMethodEdDSA
		if len(cfg.PrivateKey) > 0 {
			priv, err := parseEdPrivateKey(cfg.PrivateKey)
			if err != nil {
				return nil, err
			}
			m.signKey = priv
			m.verifyKey = priv.Public()
		}
		if len(cfg.PublicKey) > 0 {
			pub, err := parseEdPublicKey(cfg.PublicKey)
			if err != nil {
				return nil, err
			}
			m.verifyKey = pub
		}
		if m.verifyKey == nil {
			return nil, errors.New("ed25519 requires a private or public key")
		}
	default:
		return nil, fmt.Errorf("unsupported signing method %q", cfg.SigningMethod)
	}

	return m, nil
}

// Issue produces a token binding the account id with the given TTL. A zero
// ttl falls back to the configured default. Failures wrap [ErrSigning].
func (m *Manager) Issue(accountID string, ttl time.Duration) (token string, expiresAt time.Time, err error) {
	if accountID == "" {
		return "", time.Time{}, fmt.Errorf("%w: empty account id", ErrSigning)
	}
	if m.signKey == nil {
		return "", time.Time{}, fmt.Errorf("%w: no signing key", ErrSigning)
	}
	if ttl <= 0 {
		ttl = m.config.DefaultTTL
	}

	now := time.Now()
	expiresAt = now.Add(ttl)
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(m.method, claims).SignedString(m.signKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %v", ErrSigning, err)
	}
	return signed, expiresAt, nil
}

// Verify parses and validates a token, returning the bound account id.
// Every failure mode maps to [ErrInvalid].
func (m *Manager) Verify(token string) (Claims, error) {
	if strings.TrimSpace(token) == "" {
		return Claims{}, ErrInvalid
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(m.config.Leeway),
	}
	if m.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.config.Issuer))
	}

	var claims sessionClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return m.verifyKey, nil
	}, opts...)
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return Claims{}, ErrInvalid
	}

	return Claims{
		AccountID: claims.Subject,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func parseEdPrivateKey(raw []byte) (ed25519.PrivateKey, error) {
	switch len(raw) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(raw), nil
	default:
		return nil, errors.New("invalid ed25519 private key size")
	}
}

func parseEdPublicKey(raw []byte) (ed25519.PublicKey, error) {
	if len(raw) != ed25519.PublicKeySize {
		return nil, errors.New("invalid ed25519 public key size")
	}
	return ed25519.PublicKey(raw), nil
}
