// Package redistore is a Redis-backed AccountRepository. Records are stored
// as JSON blobs keyed by account id; email, username, token, and social-link
// lookups go through index keys whose claim/release is what enforces the
// engine's unique constraints. Constraints apply whenever the field is
// present on a record, independent of engine feature toggles: a stored
// username is unique even when the username feature is off. Conditional
// updates run under WATCH/MULTI so token consumption is a real
// compare-and-set at the store.
package redistore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	goIdentity "github.com/Veltherin/goIdentity"
)

const updateRetries = 8

// Store implements goIdentity.AccountRepository on a redis.Client.
type Store struct {
	rdb    *redis.Client
	prefix string
	now    func() time.Time
}

// New wraps an existing client. prefix namespaces every key; empty defaults
// to "acct".
func New(rdb *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = "acct"
	}
	return &Store{rdb: rdb, prefix: prefix, now: time.Now}
}

// WithClock overrides the timestamp source. Test hook.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) recordKey(id string) string { return s.prefix + ":id:" + id }

func (s *Store) emailKey(email string) string { return s.prefix + ":email:" + email }

func (s *Store) usernameKey(u string) string { return s.prefix + ":username:" + u }

func (s *Store) tokenKey(kind, token string) string { return s.prefix + ":" + kind + ":" + token }

func (s *Store) socialKey(provider, subject string) string {
	return s.prefix + ":social:" + provider + ":" + subject
}

// indexKeys returns every index entry owned by the account.
func (s *Store) indexKeys(a *goIdentity.Account) []string {
	keys := []string{s.emailKey(a.Email)}
	if a.Username != "" {
		keys = append(keys, s.usernameKey(a.Username))
	}
	if a.VerificationToken != "" {
		keys = append(keys, s.tokenKey("vtoken", a.VerificationToken))
	}
	if a.PasswordlessToken != "" {
		keys = append(keys, s.tokenKey("ptoken", a.PasswordlessToken))
	}
	if a.ResetToken != "" {
		keys = append(keys, s.tokenKey("rtoken", a.ResetToken))
	}
	for provider, subject := range a.SocialLinks {
		keys = append(keys, s.socialKey(provider, subject))
	}
	return keys
}

func (s *Store) FindByID(ctx context.Context, id string) (*goIdentity.Account, error) {
	return s.load(ctx, id)
}

func (s *Store) FindOne(ctx context.Context, q goIdentity.Query) (*goIdentity.Account, error) {
	var keys []string
	switch {
	case q.Login != "":
		keys = []string{
			s.emailKey(strings.ToLower(strings.TrimSpace(q.Login))),
			s.usernameKey(q.Login),
		}
	case q.Email != "":
		keys = []string{s.emailKey(q.Email)}
	case q.Username != "":
		keys = []string{s.usernameKey(q.Username)}
	case q.VerificationToken != "":
		keys = []string{s.tokenKey("vtoken", q.VerificationToken)}
	case q.PasswordlessToken != "":
		keys = []string{s.tokenKey("ptoken", q.PasswordlessToken)}
	case q.ResetToken != "":
		keys = []string{s.tokenKey("rtoken", q.ResetToken)}
	case q.Provider != "" && q.Subject != "":
		keys = []string{s.socialKey(q.Provider, q.Subject)}
	default:
		return nil, goIdentity.ErrUserNotFound
	}

	for _, key := range keys {
		id, err := s.rdb.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("redis get %s: %w", key, err)
		}
		return s.load(ctx, id)
	}
	return nil, goIdentity.ErrUserNotFound
}

func (s *Store) Insert(ctx context.Context, a *goIdentity.Account) (*goIdentity.Account, error) {
	stored := a.Clone()
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}

	// Claim the unique indexes one by one with SETNX; the claim is the
	// constraint. Release everything claimed so far on conflict.
	var claimed []string
	release := func() {
		if len(claimed) > 0 {
			s.rdb.Del(context.WithoutCancel(ctx), claimed...)
		}
	}

	claim := func(key string, conflict error) error {
		ok, err := s.rdb.SetNX(ctx, key, stored.ID, 0).Result()
		if err != nil {
			release()
			return fmt.Errorf("redis setnx %s: %w", key, err)
		}
		if !ok {
			release()
			return conflict
		}
		claimed = append(claimed, key)
		return nil
	}

	if err := claim(s.emailKey(stored.Email), goIdentity.ErrEmailExists); err != nil {
		return nil, err
	}
	if stored.Username != "" {
		if err := claim(s.usernameKey(stored.Username), goIdentity.ErrUsernameExists); err != nil {
			return nil, err
		}
	}
	for provider, subject := range stored.SocialLinks {
		if err := claim(s.socialKey(provider, subject), goIdentity.ErrSocialAccountMismatch); err != nil {
			return nil, err
		}
	}

	if err := s.save(ctx, stored); err != nil {
		release()
		return nil, err
	}

	// Token indexes are not uniqueness constraints, just lookups.
	pipe := s.rdb.Pipeline()
	for _, key := range s.tokenIndexKeys(stored) {
		pipe.Set(ctx, key, stored.ID, 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("redis index insert: %w", err)
	}

	return stored.Clone(), nil
}

func (s *Store) UpdateByID(ctx context.Context, id string, p goIdentity.Patch) (*goIdentity.Account, error) {
	var updated *goIdentity.Account

	txn := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, s.recordKey(id)).Result()
		if errors.Is(err, redis.Nil) {
			return goIdentity.ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("redis get record: %w", err)
		}

		var current goIdentity.Account
		if err := json.Unmarshal([]byte(raw), &current); err != nil {
			return fmt.Errorf("decode account: %w", err)
		}

		next := current.Clone()
		if err := p.Apply(next, s.now()); err != nil {
			return err
		}

		// Uniqueness checks for values the patch is claiming.
		if p.Username != nil && *p.Username != "" && *p.Username != current.Username {
			if err := s.checkFree(ctx, tx, s.usernameKey(*p.Username), id, goIdentity.ErrUsernameExists); err != nil {
				return err
			}
		}
		if p.SetSocialLink != nil {
			key := s.socialKey(p.SetSocialLink.Provider, p.SetSocialLink.Subject)
			if err := s.checkFree(ctx, tx, key, id, goIdentity.ErrSocialAccountMismatch); err != nil {
				return err
			}
		}

		oldKeys := s.indexKeys(&current)
		newKeys := s.indexKeys(next)

		blob, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode account: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, key := range diff(oldKeys, newKeys) {
				pipe.Del(ctx, key)
			}
			for _, key := range diff(newKeys, oldKeys) {
				pipe.Set(ctx, key, id, 0)
			}
			pipe.Set(ctx, s.recordKey(id), blob, 0)
			return nil
		})
		if err != nil {
			return err
		}

		updated = next
		return nil
	}

	// Watch the index keys the patch is claiming along with the record key.
	// Two updates racing for the same username or provider+subject then
	// invalidate each other's transaction instead of both committing; the
	// loser retries, sees the claimed key in checkFree, and conflicts.
	watch := []string{s.recordKey(id)}
	if p.Username != nil && *p.Username != "" {
		watch = append(watch, s.usernameKey(*p.Username))
	}
	if p.SetSocialLink != nil {
		watch = append(watch, s.socialKey(p.SetSocialLink.Provider, p.SetSocialLink.Subject))
	}

	for attempt := 0; attempt < updateRetries; attempt++ {
		err := s.rdb.Watch(ctx, txn, watch...)
		if errors.Is(err, redis.TxFailedErr) {
			continue // concurrent writer, re-read and retry
		}
		if err != nil {
			return nil, err
		}
		return updated.Clone(), nil
	}
	return nil, errors.New("redistore: update contention exceeded retries")
}

func (s *Store) DeleteByID(ctx context.Context, id string) error {
	a, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	keys := append(s.indexKeys(a), s.recordKey(id))
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

func (s *Store) load(ctx context.Context, id string) (*goIdentity.Account, error) {
	raw, err := s.rdb.Get(ctx, s.recordKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, goIdentity.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get record: %w", err)
	}

	var a goIdentity.Account
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return nil, fmt.Errorf("decode account: %w", err)
	}
	return &a, nil
}

func (s *Store) save(ctx context.Context, a *goIdentity.Account) error {
	blob, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode account: %w", err)
	}
	if err := s.rdb.Set(ctx, s.recordKey(a.ID), blob, 0).Err(); err != nil {
		return fmt.Errorf("redis set record: %w", err)
	}
	return nil
}

func (s *Store) tokenIndexKeys(a *goIdentity.Account) []string {
	var keys []string
	if a.VerificationToken != "" {
		keys = append(keys, s.tokenKey("vtoken", a.VerificationToken))
	}
	if a.PasswordlessToken != "" {
		keys = append(keys, s.tokenKey("ptoken", a.PasswordlessToken))
	}
	if a.ResetToken != "" {
		keys = append(keys, s.tokenKey("rtoken", a.ResetToken))
	}
	return keys
}

// checkFree fails with conflict when key is owned by a different account.
func (s *Store) checkFree(ctx context.Context, tx *redis.Tx, key, id string, conflict error) error {
	owner, err := tx.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("redis get %s: %w", key, err)
	}
	if owner != id {
		return conflict
	}
	return nil
}

// diff returns the keys in a that are not in b.
func diff(a, b []string) []string {
	seen := make(map[string]struct{}, len(b))
	for _, k := range b {
		seen[k] = struct{}{}
	}
	var out []string
	for _, k := range a {
		if _, ok := seen[k]; !ok {
			out = append(out, k)
		}
	}
	return out
}
