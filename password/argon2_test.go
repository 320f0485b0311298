package password

import (
	"strings"
	"testing"
)

func newTestHasher(t *testing.T) *Hasher {
	t.Helper()

	h, err := New(Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   16,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return h
}

func TestHashVerifyRoundtrip(t *testing.T) {
	h := newTestHasher(t)

	encoded, err := h.Hash("correct-horse-1")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$") {
		t.Fatalf("not PHC encoded: %s", encoded)
	}
	if !h.Verify("correct-horse-1", encoded) {
		t.Fatal("correct password should verify")
	}
	if h.Verify("wrong-password", encoded) {
		t.Fatal("wrong password should not verify")
	}
}

func TestHashSaltsDiffer(t *testing.T) {
	h := newTestHasher(t)

	a, err := h.Hash("correct-horse-1")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	b, err := h.Hash("correct-horse-1")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if a == b {
		t.Fatal("same password should hash to different encodings")
	}
	if !h.Verify("correct-horse-1", b) {
		t.Fatal("second hash should still verify")
	}
}

func TestHashEmptyPassword(t *testing.T) {
	h := newTestHasher(t)
	if _, err := h.Hash(""); err == nil {
		t.Fatal("empty password should error")
	}
}

func TestVerifyMalformedHash(t *testing.T) {
	h := newTestHasher(t)

	cases := []string{
		"",
		"plaintext",
		"$argon2id$v=19$m=8192,t=1,p=1$notbase64!!$notbase64!!",
		"$argon2i$v=19$m=8192,t=1,p=1$c29tZXNhbHRzb21lc2FsdA$aGFzaGhhc2hoYXNoaGFzaA",
		"$argon2id$v=18$m=8192,t=1,p=1$c29tZXNhbHRzb21lc2FsdA$aGFzaGhhc2hoYXNoaGFzaA",
		"$argon2id$v=19$m=64,t=1,p=1$c29tZXNhbHRzb21lc2FsdA$aGFzaGhhc2hoYXNoaGFzaA",
		"$argon2id$v=19$m=8192,t=1$c29tZXNhbHRzb21lc2FsdA$aGFzaGhhc2hoYXNoaGFzaA",
		"$argon2id$v=19$m=8192,t=1,p=1$c2hvcnQ$aGFzaGhhc2hoYXNoaGFzaA",
	}
	for _, encoded := range cases {
		if h.Verify("correct-horse-1", encoded) {
			t.Errorf("malformed hash verified: %q", encoded)
		}
	}
}

func TestVerifyHonorsEncodedParameters(t *testing.T) {
	weak := newTestHasher(t)
	strong, err := New(Config{
		Memory:      16 * 1024,
		Time:        2,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	encoded, err := strong.Hash("correct-horse-1")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	// Parameters come from the encoding, not the verifying hasher's config.
	if !weak.Verify("correct-horse-1", encoded) {
		t.Fatal("hash from a different work factor should verify")
	}
}

func TestNewRejectsWeakConfig(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"memory too low", Config{Memory: 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 16}},
		{"zero time", Config{Memory: 8 * 1024, Time: 0, Parallelism: 1, SaltLength: 16, KeyLength: 16}},
		{"zero parallelism", Config{Memory: 8 * 1024, Time: 1, Parallelism: 0, SaltLength: 16, KeyLength: 16}},
		{"short salt", Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16}},
		{"short key", Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 8}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.cfg); err == nil {
				t.Fatal("want error")
			}
		})
	}
}
