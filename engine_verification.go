package goIdentity

import (
	"context"
	"errors"
)

// Verify consumes an email-verification token. The verified flag flip and
// the token clear happen in one conditional update keyed by the consumed
// token, so a racing duplicate request loses with [ErrInvalidToken].
// On success a "welcome" email is queued and a session token issued.
func (e *Engine) Verify(ctx context.Context, token string) (*AuthResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if token == "" {
		return nil, ErrInvalidToken
	}

	acct, err := e.findOne(ctx, Query{VerificationToken: token})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	updated, err := e.update(ctx, acct.ID, Patch{
		Verified:                boolPtr(true),
		VerificationToken:       strPtr(""),
		ExpectVerificationToken: strPtr(token),
	})
	if err != nil {
		return nil, err
	}

	e.metrics.inc(MetricVerifySuccess)

	sessionToken, expiresAt, err := e.issueSession(updated.ID)
	if err != nil {
		return nil, err
	}

	e.send(updated.Email, NotifyWelcome, map[string]any{
		"firstName": updated.FirstName,
	})

	return &AuthResult{
		Account:   sanitize(updated),
		Token:     sessionToken,
		ExpiresAt: expiresAt,
	}, nil
}
