package redistore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	goIdentity "github.com/Veltherin/goIdentity"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return New(rdb, "t"), mr
}

func seed(t *testing.T, s *Store, a *goIdentity.Account) *goIdentity.Account {
	t.Helper()
	stored, err := s.Insert(context.Background(), a)
	if err != nil {
		t.Fatalf("insert %s: %v", a.Email, err)
	}
	return stored
}

func strPtr(s string) *string { return &s }

func TestInsertAndLoad(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	stored := seed(t, s, &goIdentity.Account{
		Email:       "alice@x.com",
		Username:    "alice",
		Roles:       []string{"user"},
		SocialLinks: map[string]string{"github": "gh-1"},
	})
	if stored.ID == "" {
		t.Fatal("expected generated id")
	}

	got, err := s.FindByID(ctx, stored.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Email != "alice@x.com" || got.Username != "alice" {
		t.Errorf("loaded %+v", got)
	}
	if got.SocialLinks["github"] != "gh-1" {
		t.Errorf("social links = %v", got.SocialLinks)
	}
}

func TestInsertUniqueConstraints(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	seed(t, s, &goIdentity.Account{
		Email:       "alice@x.com",
		Username:    "alice",
		SocialLinks: map[string]string{"github": "gh-1"},
	})

	_, err := s.Insert(ctx, &goIdentity.Account{Email: "alice@x.com"})
	if !errors.Is(err, goIdentity.ErrEmailExists) {
		t.Errorf("duplicate email: got %v", err)
	}

	_, err = s.Insert(ctx, &goIdentity.Account{Email: "bob@x.com", Username: "alice"})
	if !errors.Is(err, goIdentity.ErrUsernameExists) {
		t.Errorf("duplicate username: got %v", err)
	}

	_, err = s.Insert(ctx, &goIdentity.Account{
		Email:       "carol@x.com",
		SocialLinks: map[string]string{"github": "gh-1"},
	})
	if !errors.Is(err, goIdentity.ErrSocialAccountMismatch) {
		t.Errorf("duplicate social link: got %v", err)
	}

	// Failed claims must not leave stray index entries behind.
	if _, err := s.FindOne(ctx, goIdentity.Query{Email: "bob@x.com"}); !errors.Is(err, goIdentity.ErrUserNotFound) {
		t.Errorf("rolled-back insert left an email index: %v", err)
	}
}

func TestFindOneThroughIndexes(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	stored := seed(t, s, &goIdentity.Account{
		Email:             "alice@x.com",
		Username:          "alice",
		VerificationToken: "vtok",
		ResetToken:        "rtok",
		SocialLinks:       map[string]string{"github": "gh-1"},
	})

	queries := []goIdentity.Query{
		{Email: "alice@x.com"},
		{Username: "alice"},
		{Login: "alice"},
		{Login: "ALICE@X.COM"},
		{VerificationToken: "vtok"},
		{ResetToken: "rtok"},
		{Provider: "github", Subject: "gh-1"},
	}
	for _, q := range queries {
		got, err := s.FindOne(ctx, q)
		if err != nil {
			t.Errorf("query %+v: %v", q, err)
			continue
		}
		if got.ID != stored.ID {
			t.Errorf("query %+v matched %s", q, got.ID)
		}
	}

	if _, err := s.FindOne(ctx, goIdentity.Query{Email: "nobody@x.com"}); !errors.Is(err, goIdentity.ErrUserNotFound) {
		t.Errorf("missed lookup: got %v", err)
	}
}

func TestUpdateMaintainsTokenIndexes(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s, _ := newTestStore(t)
	s.WithClock(func() time.Time { return base })
	ctx := context.Background()
	stored := seed(t, s, &goIdentity.Account{Email: "alice@x.com", VerificationToken: "vtok"})

	verified := true
	updated, err := s.UpdateByID(ctx, stored.ID, goIdentity.Patch{
		Verified:                &verified,
		VerificationToken:       strPtr(""),
		ExpectVerificationToken: strPtr("vtok"),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.Verified || updated.VerificationToken != "" {
		t.Errorf("patch not applied: %+v", updated)
	}
	if !updated.UpdatedAt.Equal(base) {
		t.Errorf("UpdatedAt = %v, want clock time", updated.UpdatedAt)
	}

	// The consumed token no longer resolves.
	if _, err := s.FindOne(ctx, goIdentity.Query{VerificationToken: "vtok"}); !errors.Is(err, goIdentity.ErrUserNotFound) {
		t.Errorf("stale token index: got %v", err)
	}

	// A newly staged token does.
	_, err = s.UpdateByID(ctx, stored.ID, goIdentity.Patch{ResetToken: strPtr("rtok")})
	if err != nil {
		t.Fatalf("stage reset token: %v", err)
	}
	got, err := s.FindOne(ctx, goIdentity.Query{ResetToken: "rtok"})
	if err != nil {
		t.Fatalf("reset token lookup: %v", err)
	}
	if got.ID != stored.ID {
		t.Errorf("reset token resolved to %s", got.ID)
	}
}

func TestUpdateGuardFailure(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	stored := seed(t, s, &goIdentity.Account{Email: "alice@x.com", VerificationToken: "vtok"})

	verified := true
	_, err := s.UpdateByID(ctx, stored.ID, goIdentity.Patch{
		Verified:                &verified,
		ExpectVerificationToken: strPtr("stale"),
	})
	if !errors.Is(err, goIdentity.ErrInvalidToken) {
		t.Fatalf("want ErrInvalidToken, got %v", err)
	}

	got, err := s.FindByID(ctx, stored.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Verified || got.VerificationToken != "vtok" {
		t.Errorf("failed update mutated the record: %+v", got)
	}
}

func TestUpdateUniqueConstraints(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	seed(t, s, &goIdentity.Account{
		Email:       "alice@x.com",
		Username:    "alice",
		SocialLinks: map[string]string{"github": "gh-1"},
	})
	bob := seed(t, s, &goIdentity.Account{Email: "bob@x.com", Username: "bob"})

	_, err := s.UpdateByID(ctx, bob.ID, goIdentity.Patch{Username: strPtr("alice")})
	if !errors.Is(err, goIdentity.ErrUsernameExists) {
		t.Errorf("username claim: got %v", err)
	}

	_, err = s.UpdateByID(ctx, bob.ID, goIdentity.Patch{
		SetSocialLink: &goIdentity.SocialLink{Provider: "github", Subject: "gh-1"},
	})
	if !errors.Is(err, goIdentity.ErrSocialAccountMismatch) {
		t.Errorf("social claim: got %v", err)
	}
}

func TestUpdateUnknownID(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.UpdateByID(context.Background(), "missing", goIdentity.Patch{})
	if !errors.Is(err, goIdentity.ErrUserNotFound) {
		t.Fatalf("want ErrUserNotFound, got %v", err)
	}
}

func TestDeleteRemovesAllKeys(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()
	stored := seed(t, s, &goIdentity.Account{
		Email:             "alice@x.com",
		Username:          "alice",
		VerificationToken: "vtok",
		SocialLinks:       map[string]string{"github": "gh-1"},
	})

	if err := s.DeleteByID(ctx, stored.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if keys := mr.Keys(); len(keys) != 0 {
		t.Errorf("keys left after delete: %v", keys)
	}
	if err := s.DeleteByID(ctx, stored.ID); !errors.Is(err, goIdentity.ErrUserNotFound) {
		t.Errorf("second delete: got %v", err)
	}
}

func TestConcurrentSocialClaimSingleWinner(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	const n = 8
	ids := make([]string, n)
	for i := range ids {
		a := seed(t, s, &goIdentity.Account{Email: fmt.Sprintf("user%d@x.com", i)})
		ids[i] = a.ID
	}

	var wg sync.WaitGroup
	wg.Add(n)
	results := make(chan error, n)
	for _, id := range ids {
		go func(id string) {
			defer wg.Done()
			_, err := s.UpdateByID(ctx, id, goIdentity.Patch{
				SetSocialLink: &goIdentity.SocialLink{Provider: "github", Subject: "gh-1"},
			})
			results <- err
		}(id)
	}
	wg.Wait()
	close(results)

	success, conflict := 0, 0
	for err := range results {
		switch {
		case err == nil:
			success++
		case errors.Is(err, goIdentity.ErrSocialAccountMismatch):
			conflict++
		default:
			t.Fatalf("unexpected update error: %v", err)
		}
	}
	if success != 1 {
		t.Fatalf("expected exactly one winning claim, got %d", success)
	}
	if conflict != n-1 {
		t.Fatalf("expected %d conflicts, got %d", n-1, conflict)
	}

	// Exactly one record holds the link.
	holders := 0
	for _, id := range ids {
		a, err := s.FindByID(ctx, id)
		if err != nil {
			t.Fatalf("load %s: %v", id, err)
		}
		if a.SocialLinks["github"] == "gh-1" {
			holders++
		}
	}
	if holders != 1 {
		t.Fatalf("%d accounts hold the link, want 1", holders)
	}
}

func TestUnlinkFreesSocialIndex(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	alice := seed(t, s, &goIdentity.Account{
		Email:       "alice@x.com",
		SocialLinks: map[string]string{"github": "gh-1"},
	})
	bob := seed(t, s, &goIdentity.Account{Email: "bob@x.com"})

	_, err := s.UpdateByID(ctx, alice.ID, goIdentity.Patch{RemoveSocialLink: strPtr("github")})
	if err != nil {
		t.Fatalf("unlink: %v", err)
	}

	_, err = s.UpdateByID(ctx, bob.ID, goIdentity.Patch{
		SetSocialLink: &goIdentity.SocialLink{Provider: "github", Subject: "gh-1"},
	})
	if err != nil {
		t.Fatalf("relink to another account: %v", err)
	}

	got, err := s.FindOne(ctx, goIdentity.Query{Provider: "github", Subject: "gh-1"})
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.ID != bob.ID {
		t.Errorf("link resolved to %s, want %s", got.ID, bob.ID)
	}
}
