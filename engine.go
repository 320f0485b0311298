package goIdentity

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Veltherin/goIdentity/jwt"
	"github.com/Veltherin/goIdentity/password"
)

// Engine is the account-lifecycle state machine. Every operation is a single
// unit of work against one account aggregate: load or mutate through the
// repository, delegate to the crypto components, fire notifications off the
// critical path. Safe for concurrent use; operations on different accounts
// are fully independent.
type Engine struct {
	config  Config
	repo    AccountRepository
	notify  *notifyDispatcher
	hasher  *password.Hasher
	tokens  *jwt.Manager
	totp    *totpManager
	secrets SecretSource
	metrics *metrics
	logger  *zap.Logger
	now     func() time.Time
}

// Close stops the notification dispatcher after draining queued sends.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.notify.Close()
}

// VerifySessionToken validates a bearer token issued by any Engine operation
// and returns the bound account id. Signature mismatch, malformed structure,
// and expiry all map to [ErrInvalidToken].
func (e *Engine) VerifySessionToken(token string) (string, error) {
	if e == nil || e.tokens == nil {
		return "", ErrEngineNotReady
	}
	claims, err := e.tokens.Verify(token)
	if err != nil {
		return "", ErrInvalidToken
	}
	return claims.AccountID, nil
}

// MetricsSnapshot returns a point-in-time copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return MetricsSnapshot{}
	}
	return e.metrics.snapshot()
}

// NotificationsDropped reports how many notifications were discarded because
// the dispatch queue was full.
func (e *Engine) NotificationsDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.notify.Dropped()
}

func (e *Engine) ready() error {
	if e == nil || e.repo == nil || e.hasher == nil || e.tokens == nil || e.totp == nil || e.secrets == nil {
		return ErrEngineNotReady
	}
	return nil
}

// issueSession signs a session token for the account. Signing failures are
// retryable infrastructure errors, never client rejections.
func (e *Engine) issueSession(accountID string) (string, time.Time, error) {
	token, expiresAt, err := e.tokens.Issue(accountID, e.config.Session.TTL)
	if err != nil {
		// Key material was validated at Build time, so whatever failed here
		// is transient infrastructure trouble.
		return "", time.Time{}, retryable("sign session token", err)
	}
	return token, expiresAt, nil
}

// sanitize maps the aggregate to the DTO that crosses the service boundary,
// stripping the password hash, all single-use tokens, and the TOTP secret.
func sanitize(a *Account) *PublicAccount {
	if a == nil {
		return nil
	}

	providers := make([]string, 0, len(a.SocialLinks))
	for provider := range a.SocialLinks {
		providers = append(providers, provider)
	}
	sort.Strings(providers)

	return &PublicAccount{
		ID:               a.ID,
		Username:         a.Username,
		Email:            a.Email,
		FirstName:        a.FirstName,
		LastName:         a.LastName,
		AvatarURL:        a.AvatarURL,
		Roles:            append([]string(nil), a.Roles...),
		Plan:             a.Plan,
		Status:           a.Status,
		Verified:         a.Verified,
		TwoFactorEnabled: a.TOTP.Enabled,
		Passwordless:     a.Passwordless,
		SocialProviders:  providers,
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
		LastLoginAt:      a.LastLoginAt,
	}
}

// gravatarURL derives the deterministic identicon avatar for accounts that
// register without one.
func gravatarURL(email string) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
	return "https://www.gravatar.com/avatar/" + hex.EncodeToString(sum[:]) + "?d=identicon"
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// send queues a notification without blocking the calling operation.
func (e *Engine) send(to, template string, data map[string]any) {
	e.notify.Enqueue(notification{To: to, Template: template, Data: data})
}

// findByID loads an aggregate, mapping store not-found to the client error
// and anything else to a retryable fault.
func (e *Engine) findByID(ctx context.Context, id string) (*Account, error) {
	a, err := e.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, retryable("load account", err)
	}
	return a, nil
}

func (e *Engine) findOne(ctx context.Context, q Query) (*Account, error) {
	a, err := e.repo.FindOne(ctx, q)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, retryable("query account", err)
	}
	return a, nil
}

func (e *Engine) update(ctx context.Context, id string, p Patch) (*Account, error) {
	a, err := e.repo.UpdateByID(ctx, id, p)
	if err != nil {
		return nil, mapStoreErr("update account", err)
	}
	return a, nil
}

var zeroTime time.Time

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func timePtr(t time.Time) *time.Time { return &t }

func statusPtr(s AccountStatus) *AccountStatus { return &s }
