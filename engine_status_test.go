package goIdentity_test

import (
	"context"
	"testing"

	goIdentity "github.com/Veltherin/goIdentity"
)

func TestEnableDisableIdempotencyGuards(t *testing.T) {
	env := newTestEnv(t, nil)
	created := env.register(t, "alice@x.com", "correct-horse-1")
	id := created.Account.ID
	ctx := context.Background()

	_, err := env.engine.EnableAccount(ctx, id)
	wantClientCode(t, err, goIdentity.CodeAlreadyEnabled)

	disabled, err := env.engine.DisableAccount(ctx, id)
	if err != nil {
		t.Fatalf("disable: %v", err)
	}
	if disabled.Status != goIdentity.AccountDisabled {
		t.Error("status should be disabled")
	}

	_, err = env.engine.DisableAccount(ctx, id)
	wantClientCode(t, err, goIdentity.CodeAlreadyDisabled)

	enabled, err := env.engine.EnableAccount(ctx, id)
	if err != nil {
		t.Fatalf("re-enable: %v", err)
	}
	if enabled.Status != goIdentity.AccountEnabled {
		t.Error("status should be enabled")
	}
}

func TestStatusUnknownAccount(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := env.engine.DisableAccount(context.Background(), "no-such-id")
	wantClientCode(t, err, goIdentity.CodeUserNotFound)
}

func TestRemoveAccount(t *testing.T) {
	env := newTestEnv(t, nil)
	created := env.register(t, "alice@x.com", "correct-horse-1")

	if err := env.engine.Remove(context.Background(), created.Account.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if env.store.Len() != 0 {
		t.Error("account should be gone from the store")
	}

	err := env.engine.Remove(context.Background(), created.Account.ID)
	wantClientCode(t, err, goIdentity.CodeUserNotFound)
}
