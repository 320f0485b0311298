package goIdentity

import (
	"context"
	"errors"
	"strings"
)

// Link associates a provider identity with the account. Linking trusts the
// provider's assertion, so any pending verification token is cleared and the
// account marked verified in the same update. A subject already owned by a
// different account is rejected with [ErrSocialAccountMismatch]; the store's
// unique provider+subject index backs the pre-check.
func (e *Engine) Link(ctx context.Context, id string, profile Profile) (*PublicAccount, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if profile.Provider == "" || profile.Subject == "" {
		return nil, ErrSocialAccountMismatch
	}

	if owner, err := e.findOne(ctx, Query{Provider: profile.Provider, Subject: profile.Subject}); err == nil {
		if owner.ID != id {
			return nil, ErrSocialAccountMismatch
		}
	} else if IsRetryable(err) {
		return nil, err
	}

	if _, err := e.findByID(ctx, id); err != nil {
		return nil, err
	}

	updated, err := e.update(ctx, id, Patch{
		Verified:          boolPtr(true),
		VerificationToken: strPtr(""),
		SetSocialLink:     &SocialLink{Provider: profile.Provider, Subject: profile.Subject},
	})
	if err != nil {
		return nil, err
	}
	return sanitize(updated), nil
}

// Unlink removes the provider association.
func (e *Engine) Unlink(ctx context.Context, id, provider string) (*PublicAccount, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if _, err := e.findByID(ctx, id); err != nil {
		return nil, err
	}

	updated, err := e.update(ctx, id, Patch{RemoveSocialLink: strPtr(provider)})
	if err != nil {
		return nil, err
	}
	return sanitize(updated), nil
}

// SocialLogin resolves a provider identity assertion to a local account and
// issues a session token for it.
//
// With currentAccountID set, the caller is linking a new provider to their
// own account; a subject already linked elsewhere fails with
// [ErrSocialAccountMismatch]. Anonymous callers log in through an existing
// link, get the provider attached to the account matching the profile email,
// or, when signup is enabled, get a fresh account registered with a
// synthesized username and a throwaway random password.
func (e *Engine) SocialLogin(ctx context.Context, profile Profile, currentAccountID string) (*AuthResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if profile.Provider == "" || profile.Subject == "" {
		return nil, ErrSocialAccountMismatch
	}

	linked, err := e.findOne(ctx, Query{Provider: profile.Provider, Subject: profile.Subject})
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	// Authenticated caller: link to their own account.
	if currentAccountID != "" {
		if linked != nil && linked.ID != currentAccountID {
			return nil, ErrSocialAccountMismatch
		}
		if _, err := e.Link(ctx, currentAccountID, profile); err != nil {
			return nil, err
		}
		acct, err := e.findByID(ctx, currentAccountID)
		if err != nil {
			return nil, err
		}
		return e.socialSession(ctx, acct)
	}

	// Existing link: straight login.
	if linked != nil {
		if linked.Status == AccountDisabled {
			return nil, ErrAccountDisabled
		}
		return e.socialSession(ctx, linked)
	}

	email := normalizeEmail(profile.Email)
	if email == "" {
		return nil, ErrNoSocialEmail
	}
	// Same shape check as Register; Profile is caller-constructed, so the
	// provider assertion is not a guarantee of well-formedness.
	if !strings.Contains(email, "@") {
		return nil, ErrEmailInvalid
	}

	// Matching email on file: attach the provider to that account.
	if byEmail, err := e.findOne(ctx, Query{Email: email}); err == nil {
		if byEmail.Status == AccountDisabled {
			return nil, ErrAccountDisabled
		}
		if _, err := e.Link(ctx, byEmail.ID, profile); err != nil {
			return nil, err
		}
		return e.socialSession(ctx, byEmail)
	} else if IsRetryable(err) {
		return nil, err
	}

	// No match anywhere: register, then link.
	return e.socialRegister(ctx, profile, email)
}

func (e *Engine) socialRegister(ctx context.Context, profile Profile, email string) (*AuthResult, error) {
	if !e.config.Signup.Enabled {
		return nil, ErrSignupDisabled
	}

	username := strings.TrimSpace(profile.Username)
	if username == "" {
		// Synthesize from the email local part.
		username = email[:strings.Index(email, "@")]
	}

	// Throwaway credential; the account authenticates through the provider.
	throwaway, err := e.secrets.Generate(defaultSecretBytes)
	if err != nil {
		return nil, retryable("generate social password", err)
	}
	hash, err := e.hasher.Hash(throwaway)
	if err != nil {
		return nil, retryable("hash password", err)
	}

	avatar := profile.AvatarURL
	if avatar == "" {
		avatar = gravatarURL(email)
	}

	// The provider asserted the email, so the account starts verified even
	// when the verification feature is on.
	now := e.now()
	created, err := e.repo.Insert(ctx, &Account{
		Username:     username,
		Email:        email,
		FirstName:    strings.TrimSpace(profile.FirstName),
		LastName:     strings.TrimSpace(profile.LastName),
		AvatarURL:    avatar,
		PasswordHash: hash,
		Roles:        append([]string(nil), e.config.Signup.DefaultRoles...),
		Plan:         e.config.Signup.DefaultPlan,
		Status:       AccountEnabled,
		Verified:     true,
		SocialLinks:  map[string]string{profile.Provider: profile.Subject},
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		if _, ok := IsClientError(err); ok {
			return nil, err
		}
		return nil, retryable("insert account", err)
	}

	e.metrics.inc(MetricRegisterSuccess)
	e.send(created.Email, NotifyWelcome, map[string]any{
		"firstName": created.FirstName,
	})
	return e.socialSession(ctx, created)
}

func (e *Engine) socialSession(ctx context.Context, acct *Account) (*AuthResult, error) {
	result, err := e.completeLogin(ctx, acct)
	if err != nil {
		return nil, err
	}
	e.metrics.inc(MetricSocialLogin)
	return result, nil
}
