package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// sessionTokenBytes is the entropy of an opaque session token.
const sessionTokenBytes = 64

// NewSessionToken generates a random opaque session token.
func NewSessionToken() (string, error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("security: generate session token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
