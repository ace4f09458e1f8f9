// Package sharetoken generates the unguessable tokens that address client
// portals. Tokens carry no embedded claims; the database row they point at is
// the source of truth, so revoking the row revokes the token.
package sharetoken

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
)

const tokenBytes = 32

// New returns a fresh URL-safe token with 256 bits of entropy.
func New() (string, error) {
	raw := make([]byte, tokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generating share token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// Matches compares a presented token against the stored one in constant time.
func Matches(presented, stored string) bool {
	if len(presented) == 0 || len(stored) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(stored)) == 1
}
