package goIdentity

import (
	"context"
	"errors"
)

// PasswordlessConsume exchanges a magic-link token for a session token. The
// token is invalidated inside the same conditional update that consumes it,
// never as a separate step, so a concurrent replay of the link loses with
// [ErrInvalidToken]. An expired token reads as already consumed and fails
// with [ErrTokenExpired]. Consuming also marks the account verified: the
// holder just proved control of the mailbox.
//
// No two-factor code is required on this path. The single-use emailed link
// is itself the possession factor; accounts with TOTP enabled still gate
// their password logins on a code.
func (e *Engine) PasswordlessConsume(ctx context.Context, token string) (*AuthResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if !e.config.Passwordless.Enabled {
		return nil, ErrPasswordlessDisabled
	}
	if token == "" {
		return nil, ErrInvalidToken
	}

	acct, err := e.findOne(ctx, Query{PasswordlessToken: token})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	if acct.Status == AccountDisabled {
		return nil, ErrAccountDisabled
	}
	if acct.PasswordlessTokenExpires.Before(e.now()) {
		return nil, ErrTokenExpired
	}

	updated, err := e.update(ctx, acct.ID, Patch{
		Verified:                 boolPtr(true),
		PasswordlessToken:        strPtr(""),
		PasswordlessTokenExpires: timePtr(zeroTime),
		LastLoginAt:              timePtr(e.now()),
		ExpectPasswordlessToken:  strPtr(token),
	})
	if err != nil {
		return nil, err
	}

	sessionToken, expiresAt, err := e.issueSession(updated.ID)
	if err != nil {
		return nil, err
	}

	e.metrics.inc(MetricMagicLinkConsumed)
	return &AuthResult{
		Account:   sanitize(updated),
		Token:     sessionToken,
		ExpiresAt: expiresAt,
	}, nil
}
