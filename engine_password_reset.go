package goIdentity

import (
	"context"
	"errors"
)

// ForgotPassword stores a reset token with its absolute expiry (TTL from
// configuration) and queues a reset email. Unknown, unverified, and disabled
// accounts fail with their stated error codes; no further detail leaks
// through response shape.
func (e *Engine) ForgotPassword(ctx context.Context, email string) error {
	if err := e.ready(); err != nil {
		return err
	}

	acct, err := e.findOne(ctx, Query{Email: normalizeEmail(email)})
	if err != nil {
		return err
	}
	if !acct.Verified {
		return ErrAccountNotVerified
	}
	if acct.Status == AccountDisabled {
		return ErrAccountDisabled
	}

	token, err := e.secrets.Generate(defaultSecretBytes)
	if err != nil {
		return retryable("generate reset token", err)
	}

	updated, err := e.update(ctx, acct.ID, Patch{
		ResetToken:        strPtr(token),
		ResetTokenExpires: timePtr(e.now().Add(e.config.Reset.TokenTTL)),
	})
	if err != nil {
		return err
	}

	e.metrics.inc(MetricResetRequested)
	e.send(updated.Email, NotifyResetPassword, map[string]any{
		"firstName": updated.FirstName,
		"token":     token,
	})
	return nil
}

// ResetPassword consumes a reset token and installs the new password. The
// hash swap, passwordless=false, verified=true, and the token clear are one
// conditional update keyed by the consumed token, so the token is single-use
// even under concurrent requests. A "password changed" email is queued and a
// session token issued.
func (e *Engine) ResetPassword(ctx context.Context, token, newPassword string) (*AuthResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if token == "" {
		return nil, ErrInvalidToken
	}
	if newPassword == "" {
		return nil, ErrPasswordEmpty
	}

	acct, err := e.findOne(ctx, Query{ResetToken: token})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	if acct.Status == AccountDisabled {
		return nil, ErrAccountDisabled
	}
	if acct.ResetTokenExpires.Before(e.now()) {
		return nil, ErrTokenExpired
	}

	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return nil, retryable("hash password", err)
	}

	updated, err := e.update(ctx, acct.ID, Patch{
		PasswordHash:      strPtr(hash),
		Passwordless:      boolPtr(false),
		Verified:          boolPtr(true),
		ResetToken:        strPtr(""),
		ResetTokenExpires: timePtr(zeroTime),
		ExpectResetToken:  strPtr(token),
	})
	if err != nil {
		return nil, err
	}

	sessionToken, expiresAt, err := e.issueSession(updated.ID)
	if err != nil {
		return nil, err
	}

	e.metrics.inc(MetricResetCompleted)
	e.send(updated.Email, NotifyPasswordChanged, map[string]any{
		"firstName": updated.FirstName,
	})

	return &AuthResult{
		Account:   sanitize(updated),
		Token:     sessionToken,
		ExpiresAt: expiresAt,
	}, nil
}
