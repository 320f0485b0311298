package goIdentity

import (
	"context"
	"errors"
	"strings"
)

// Register creates a new account with defaults from the configuration
// snapshot. Exactly one of a password hash or passwordless=true is set on the
// new aggregate. When verification is enabled the account starts unverified
// with a pending verification token and an "activate" email; otherwise it is
// verified immediately, gets a session token, and a "welcome" email.
//
// The email/username pre-checks are an optimization only: the store's unique
// constraints are authoritative, and a constraint violation on insert comes
// back as [ErrEmailExists] or [ErrUsernameExists].
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if !e.config.Signup.Enabled {
		e.metrics.inc(MetricRegisterRejected)
		return nil, ErrSignupDisabled
	}

	email := normalizeEmail(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		e.metrics.inc(MetricRegisterRejected)
		return nil, ErrEmailInvalid
	}
	username := strings.TrimSpace(req.Username)

	if e.config.Signup.UsernameRequired {
		if username == "" {
			e.metrics.inc(MetricRegisterRejected)
			return nil, ErrUsernameEmpty
		}
		if _, err := e.findOne(ctx, Query{Username: username}); err == nil {
			e.metrics.inc(MetricRegisterRejected)
			return nil, ErrUsernameExists
		} else if IsRetryable(err) {
			return nil, err
		}
	}

	if _, err := e.findOne(ctx, Query{Email: email}); err == nil {
		e.metrics.inc(MetricRegisterRejected)
		return nil, ErrEmailExists
	} else if IsRetryable(err) {
		return nil, err
	}

	now := e.now()
	acct := &Account{
		Username:  username,
		Email:     email,
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		AvatarURL: req.AvatarURL,
		Roles:     append([]string(nil), e.config.Signup.DefaultRoles...),
		Plan:      e.config.Signup.DefaultPlan,
		Status:    AccountEnabled,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if acct.AvatarURL == "" {
		acct.AvatarURL = gravatarURL(email)
	}

	switch {
	case req.Password != "":
		hash, err := e.hasher.Hash(req.Password)
		if err != nil {
			return nil, retryable("hash password", err)
		}
		acct.PasswordHash = hash
	case e.config.Passwordless.Enabled:
		acct.Passwordless = true
	default:
		e.metrics.inc(MetricRegisterRejected)
		return nil, ErrPasswordEmpty
	}

	if e.config.Verification.Enabled {
		token, err := e.secrets.Generate(defaultSecretBytes)
		if err != nil {
			return nil, retryable("generate verification token", err)
		}
		acct.VerificationToken = token
	} else {
		acct.Verified = true
	}

	created, err := e.repo.Insert(ctx, acct)
	if err != nil {
		if errors.Is(err, ErrEmailExists) || errors.Is(err, ErrUsernameExists) {
			e.metrics.inc(MetricRegisterRejected)
			return nil, err
		}
		return nil, retryable("insert account", err)
	}

	e.metrics.inc(MetricRegisterSuccess)

	result := &AuthResult{Account: sanitize(created)}
	if created.Verified {
		token, expiresAt, err := e.issueSession(created.ID)
		if err != nil {
			return nil, err
		}
		result.Token = token
		result.ExpiresAt = expiresAt
		e.send(created.Email, NotifyWelcome, map[string]any{
			"firstName": created.FirstName,
		})
		return result, nil
	}

	e.send(created.Email, NotifyActivate, map[string]any{
		"firstName": created.FirstName,
		"token":     created.VerificationToken,
	})
	return result, nil
}
