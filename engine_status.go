package goIdentity

import "context"

// EnableAccount re-enables a disabled account. Enabling an already-enabled
// account fails with [ErrAlreadyEnabled] rather than silently succeeding, so
// callers notice double submissions.
func (e *Engine) EnableAccount(ctx context.Context, id string) (*PublicAccount, error) {
	return e.setStatus(ctx, id, AccountEnabled)
}

// DisableAccount blocks every authentication path for the account. Disabling
// an already-disabled account fails with [ErrAlreadyDisabled].
func (e *Engine) DisableAccount(ctx context.Context, id string) (*PublicAccount, error) {
	return e.setStatus(ctx, id, AccountDisabled)
}

func (e *Engine) setStatus(ctx context.Context, id string, status AccountStatus) (*PublicAccount, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	acct, err := e.findByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if acct.Status == status {
		if status == AccountDisabled {
			return nil, ErrAlreadyDisabled
		}
		return nil, ErrAlreadyEnabled
	}

	updated, err := e.update(ctx, id, Patch{Status: statusPtr(status)})
	if err != nil {
		return nil, err
	}
	return sanitize(updated), nil
}

// Remove destroys the account aggregate. The only way an account ever goes
// away; every other operation is a partial update.
func (e *Engine) Remove(ctx context.Context, id string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if _, err := e.findByID(ctx, id); err != nil {
		return err
	}
	if err := e.repo.DeleteByID(ctx, id); err != nil {
		return retryable("delete account", err)
	}
	return nil
}
