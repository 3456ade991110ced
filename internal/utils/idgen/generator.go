// Package idgen generates the opaque public identifiers exposed by the API.
package idgen

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// PublicIDLength is the number of random hex characters after the prefix.
const PublicIDLength = 12

// GenerateSecureID returns an identifier of the form "<prefix>_<hex>" where
// the hex part is `length` lowercase hexadecimal characters drawn from
// crypto/rand. Collisions are left to the caller's unique constraint.
func GenerateSecureID(prefix string, length int) (string, error) {
	if prefix == "" {
		return "", fmt.Errorf("idgen: prefix must not be empty")
	}
	if length <= 0 || length%2 != 0 {
		return "", fmt.Errorf("idgen: length must be a positive even number, got %d", length)
	}

	buf := make([]byte, length/2)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("idgen: read random bytes: %w", err)
	}

	return prefix + "_" + hex.EncodeToString(buf), nil
}

// ValidateIDFormat reports whether id is "<prefix>_" followed by exactly
// PublicIDLength lowercase hex characters.
func ValidateIDFormat(id, prefix string) bool {
	want := prefix + "_"
	if len(id) != len(want)+PublicIDLength {
		return false
	}
	if id[:len(want)] != want {
		return false
	}
	for _, c := range id[len(want):] {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// NewConversationID returns a fresh conversation public ID ("conv_" + 12 hex).
func NewConversationID() (string, error) {
	return GenerateSecureID("conv", PublicIDLength)
}

// NewMessageID returns a fresh message public ID ("msg_" + 12 hex).
func NewMessageID() (string, error) {
	return GenerateSecureID("msg", PublicIDLength)
}
