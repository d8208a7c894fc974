// Package cryptoutil holds key handling shared by the token vault and the audit store.
package cryptoutil

import (
	"encoding/hex"
	"errors"
	"fmt"
)

// KeySize is the key length used for AES-256, HMAC-SHA256 and secretbox.
const KeySize = 32

// ErrInvalidKey is returned when a configured key is neither 32 raw bytes
// nor 64 hex characters.
var ErrInvalidKey = errors.New("invalid key")

// IsHexString reports whether s consists entirely of hexadecimal characters
// (0-9, a-f, A-F). It returns true for an empty string; callers should check
// length separately when a minimum size is required.
func IsHexString(s string) bool {
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}

// ResolveKey interprets key as 64 hex characters (decoded) or 32 raw bytes.
func ResolveKey(key string) ([]byte, error) {
	if len(key) == 2*KeySize && IsHexString(key) {
		decoded, err := hex.DecodeString(key)
		if err != nil || len(decoded) != KeySize {
			return nil, fmt.Errorf("key hex must decode to %d bytes: %w", KeySize, ErrInvalidKey)
		}
		return decoded, nil
	}
	if len(key) == KeySize {
		return []byte(key), nil
	}
	return nil, fmt.Errorf("key must be %d bytes or %d hex characters (got %d): %w", KeySize, 2*KeySize, len(key), ErrInvalidKey)
}

// ResolveKeyArray is ResolveKey for APIs that take a fixed-size array.
func ResolveKeyArray(key string) (*[KeySize]byte, error) {
	b, err := ResolveKey(key)
	if err != nil {
		return nil, err
	}
	var out [KeySize]byte
	copy(out[:], b)
	return &out, nil
}
