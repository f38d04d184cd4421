// Package pseudonym provides keyed one-way hashing of internal identifiers.
//
// The same raw identifier always maps to the same pseudonym, and the mapping
// cannot be reversed without the key. The key is injected at construction;
// there is no ambient or default key, and construction fails without one.
package pseudonym

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ErrMissingSecret is returned when a Hasher is constructed without a key.
// Callers must treat it as a fatal configuration error at startup.
var ErrMissingSecret = errors.New("pseudonym: hashing secret is not set")

// Hasher derives deterministic pseudonyms from internal identifiers.
type Hasher struct {
	key []byte
}

// New creates a Hasher with the given secret key.
func New(secret string) (*Hasher, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	return &Hasher{key: []byte(secret)}, nil
}

// Hash returns the lowercase hex HMAC-SHA256 of the raw identifier.
func (h *Hasher) Hash(rawID string) string {
	mac := hmac.New(sha256.New, h.key)
	mac.Write([]byte(rawID))
	return hex.EncodeToString(mac.Sum(nil))
}
