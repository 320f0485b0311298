package goIdentity

import "context"

// ProvisionTwoFactor stages two-factor enrollment: a fresh secret is
// generated, stored pending, and returned with its otpauth:// URI for the
// authenticator app. Two-factor is not active until [Engine.ConfirmTwoFactor]
// accepts a code, so an enrollment abandoned here locks nobody out.
// Re-provisioning while two-factor is active would orphan the enrolled app
// and fails with [ErrInvalidTwoFactorToken].
func (e *Engine) ProvisionTwoFactor(ctx context.Context, id string) (*TwoFactorSetup, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	acct, err := e.findByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if acct.Status == AccountDisabled {
		return nil, ErrAccountDisabled
	}
	if acct.TOTP.Enabled {
		return nil, ErrInvalidTwoFactorToken
	}

	secret, err := e.totp.GenerateSecret()
	if err != nil {
		return nil, retryable("generate totp secret", err)
	}
	if _, err := e.update(ctx, id, Patch{TOTPSecret: strPtr(secret)}); err != nil {
		return nil, err
	}

	label := acct.Email
	if acct.Username != "" {
		label = acct.Username
	}
	return &TwoFactorSetup{
		Secret:     secret,
		OTPAuthURI: e.totp.ProvisionURI(secret, label),
	}, nil
}

// ConfirmTwoFactor verifies a code against the pending secret and activates
// two-factor. From here on, password logins require a code.
func (e *Engine) ConfirmTwoFactor(ctx context.Context, id, code string) error {
	if err := e.ready(); err != nil {
		return err
	}

	acct, err := e.findByID(ctx, id)
	if err != nil {
		return err
	}
	if acct.Status == AccountDisabled {
		return ErrAccountDisabled
	}
	if acct.TOTP.Secret == "" {
		return ErrTwoFactorNotEnabled
	}
	if !e.totp.VerifyCode(acct.TOTP.Secret, code, e.now()) {
		return ErrInvalidTwoFactorToken
	}
	if _, err := e.update(ctx, id, Patch{TOTPEnabled: boolPtr(true)}); err != nil {
		return err
	}

	e.metrics.inc(MetricTwoFactorEnabled)
	return nil
}

// DisableTwoFactor verifies the supplied code against the active secret, then
// clears both the enabled flag and the secret in one update.
func (e *Engine) DisableTwoFactor(ctx context.Context, id, code string) error {
	if err := e.ready(); err != nil {
		return err
	}

	acct, err := e.findByID(ctx, id)
	if err != nil {
		return err
	}
	if !acct.TOTP.Enabled {
		return ErrTwoFactorNotEnabled
	}
	if !e.totp.VerifyCode(acct.TOTP.Secret, code, e.now()) {
		return ErrInvalidTwoFactorToken
	}

	if _, err := e.update(ctx, id, Patch{
		TOTPEnabled: boolPtr(false),
		TOTPSecret:  strPtr(""),
	}); err != nil {
		return err
	}

	e.metrics.inc(MetricTwoFactorDisabled)
	return nil
}
