// Package memstore is an in-memory AccountRepository for tests, examples,
// and single-process deployments. All unique constraints the engine relies
// on (email, username, provider+subject) are enforced here under one mutex,
// which also makes every call atomic. Constraints apply whenever the field
// is present on a record, independent of engine feature toggles: a stored
// username is unique even when the username feature is off.
package memstore

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	goIdentity "github.com/Veltherin/goIdentity"
)

// Store implements goIdentity.AccountRepository.
type Store struct {
	mu       sync.Mutex
	accounts map[string]*goIdentity.Account
	now      func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		accounts: make(map[string]*goIdentity.Account),
		now:      time.Now,
	}
}

// WithClock overrides the timestamp source. Test hook.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) FindOne(ctx context.Context, q goIdentity.Query) (*goIdentity.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.accounts {
		if matches(a, q) {
			return a.Clone(), nil
		}
	}
	return nil, goIdentity.ErrUserNotFound
}

func (s *Store) FindByID(ctx context.Context, id string) (*goIdentity.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, goIdentity.ErrUserNotFound
	}
	return a.Clone(), nil
}

func (s *Store) Insert(ctx context.Context, a *goIdentity.Account) (*goIdentity.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.accounts {
		if existing.Email == a.Email {
			return nil, goIdentity.ErrEmailExists
		}
		if a.Username != "" && existing.Username == a.Username {
			return nil, goIdentity.ErrUsernameExists
		}
		for provider, subject := range a.SocialLinks {
			if existing.SocialLinks[provider] == subject {
				return nil, goIdentity.ErrSocialAccountMismatch
			}
		}
	}

	stored := a.Clone()
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	s.accounts[stored.ID] = stored
	return stored.Clone(), nil
}

func (s *Store) UpdateByID(ctx context.Context, id string, p goIdentity.Patch) (*goIdentity.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.accounts[id]
	if !ok {
		return nil, goIdentity.ErrUserNotFound
	}

	if p.Username != nil && *p.Username != "" {
		for otherID, other := range s.accounts {
			if otherID != id && other.Username == *p.Username {
				return nil, goIdentity.ErrUsernameExists
			}
		}
	}
	if p.SetSocialLink != nil {
		for otherID, other := range s.accounts {
			if otherID != id && other.SocialLinks[p.SetSocialLink.Provider] == p.SetSocialLink.Subject {
				return nil, goIdentity.ErrSocialAccountMismatch
			}
		}
	}

	// Apply on a clone so a failed guard leaves the record untouched.
	next := current.Clone()
	if err := p.Apply(next, s.now()); err != nil {
		return nil, err
	}
	s.accounts[id] = next
	return next.Clone(), nil
}

func (s *Store) DeleteByID(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[id]; !ok {
		return goIdentity.ErrUserNotFound
	}
	delete(s.accounts, id)
	return nil
}

// Len reports the number of stored accounts. Test hook.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.accounts)
}

func matches(a *goIdentity.Account, q goIdentity.Query) bool {
	switch {
	case q.Login != "":
		return a.Email == strings.ToLower(strings.TrimSpace(q.Login)) || a.Username == q.Login
	case q.Email != "":
		return a.Email == q.Email
	case q.Username != "":
		return a.Username == q.Username
	case q.VerificationToken != "":
		return a.VerificationToken == q.VerificationToken
	case q.PasswordlessToken != "":
		return a.PasswordlessToken == q.PasswordlessToken
	case q.ResetToken != "":
		return a.ResetToken == q.ResetToken
	case q.Provider != "" && q.Subject != "":
		return a.SocialLinks[q.Provider] == q.Subject
	default:
		return false
	}
}
