package goIdentity

import (
	"context"
	"errors"
	"strings"
)

// Login authenticates by email (or username when that feature is enabled).
//
// Three outcomes are possible: a session token (password verified, and a
// two-factor code when the account has 2FA enabled); a pending-passwordless
// result when no password was supplied and magic-link login is enabled, which
// is a different success, not an error; or a [*ClientError].
func (e *Engine) Login(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	login := strings.TrimSpace(req.Login)
	if login == "" {
		e.metrics.inc(MetricLoginFailure)
		return nil, ErrUserNotFound
	}

	q := Query{Email: normalizeEmail(login)}
	if e.config.Signup.UsernameRequired {
		// OR lookup: email or username.
		q = Query{Login: login}
	}

	acct, err := e.findOne(ctx, q)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.metrics.inc(MetricLoginFailure)
		}
		return nil, err
	}

	if !acct.Verified {
		e.metrics.inc(MetricLoginFailure)
		return nil, ErrAccountNotVerified
	}
	if acct.Status == AccountDisabled {
		e.metrics.inc(MetricLoginFailure)
		return nil, ErrAccountDisabled
	}
	if acct.Passwordless && req.Password != "" {
		e.metrics.inc(MetricLoginFailure)
		return nil, ErrPasswordlessWithPassword
	}

	switch {
	case req.Password != "":
		if !e.hasher.Verify(req.Password, acct.PasswordHash) {
			e.metrics.inc(MetricLoginFailure)
			return nil, ErrWrongPassword
		}
	case e.config.Passwordless.Enabled:
		return e.sendMagicLink(ctx, acct)
	default:
		e.metrics.inc(MetricLoginFailure)
		return nil, ErrPasswordlessDisabled
	}

	if acct.TOTP.Enabled {
		if req.TOTPCode == "" {
			e.metrics.inc(MetricLoginFailure)
			return nil, ErrMissingTwoFactorCode
		}
		if !e.totp.VerifyCode(acct.TOTP.Secret, req.TOTPCode, e.now()) {
			e.metrics.inc(MetricLoginFailure)
			return nil, ErrInvalidTwoFactorToken
		}
	}

	return e.completeLogin(ctx, acct)
}

// completeLogin stamps lastLoginAt and issues the session token.
func (e *Engine) completeLogin(ctx context.Context, acct *Account) (*AuthResult, error) {
	updated, err := e.update(ctx, acct.ID, Patch{LastLoginAt: timePtr(e.now())})
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := e.issueSession(updated.ID)
	if err != nil {
		return nil, err
	}

	e.metrics.inc(MetricLoginSuccess)
	return &AuthResult{
		Account:   sanitize(updated),
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

// sendMagicLink stores a fresh single-use token with its absolute expiry and
// emails it. The caller gets a pending indicator instead of a session token.
func (e *Engine) sendMagicLink(ctx context.Context, acct *Account) (*AuthResult, error) {
	token, err := e.secrets.Generate(defaultSecretBytes)
	if err != nil {
		return nil, retryable("generate passwordless token", err)
	}

	updated, err := e.update(ctx, acct.ID, Patch{
		PasswordlessToken:        strPtr(token),
		PasswordlessTokenExpires: timePtr(e.now().Add(e.config.Passwordless.TokenTTL)),
	})
	if err != nil {
		return nil, err
	}

	e.metrics.inc(MetricMagicLinkIssued)
	e.send(updated.Email, NotifyMagicLink, map[string]any{
		"firstName": updated.FirstName,
		"token":     token,
	})

	return &AuthResult{
		Account:             sanitize(updated),
		PasswordlessPending: true,
	}, nil
}
