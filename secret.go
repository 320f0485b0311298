package goIdentity

import (
	"crypto/rand"
	"encoding/hex"
)

// SecretSource mints the opaque tokens used for verification, magic-link, and
// reset flows. Tokens carry no meaning beyond uniqueness and unguessability
// and are never derived from user data. Injectable so tests can use a
// deterministic source.
type SecretSource interface {
	// Generate returns a hex string backed by n random bytes.
	Generate(n int) (string, error)
}

const defaultSecretBytes = 32

type cryptoSecretSource struct{}

func (cryptoSecretSource) Generate(n int) (string, error) {
	if n <= 0 {
		n = defaultSecretBytes
	}
	raw := make([]byte, n)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}
