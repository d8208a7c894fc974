package audit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/aitsambajwa-iss/Checkoutly/internal/cryptoutil"
)

const signaturePrefix = "hmac-sha256:"

// Signer creates and verifies HMAC-SHA256 signatures over records.
type Signer struct {
	key []byte
}

// NewSigner creates a signer. The key must be 32 raw bytes or 64 hex characters.
func NewSigner(key string) (*Signer, error) {
	keyBytes, err := cryptoutil.ResolveKey(key)
	if err != nil {
		return nil, fmt.Errorf("signing key: %w", err)
	}
	return &Signer{key: keyBytes}, nil
}

// Sign returns the signature of the record with its Signature field cleared.
func (s *Signer) Sign(r Record) (string, error) {
	data, err := canonical(r)
	if err != nil {
		return "", err
	}
	h := hmac.New(sha256.New, s.key)
	h.Write(data)
	return signaturePrefix + hex.EncodeToString(h.Sum(nil)), nil
}

// Verify reports whether r carries a valid signature.
func (s *Signer) Verify(r Record) bool {
	expected, err := s.Sign(r)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(expected), []byte(r.Signature))
}

func canonical(r Record) ([]byte, error) {
	r.Signature = ""
	r.Timestamp = r.Timestamp.UTC()
	if r.TokensApplied == nil {
		r.TokensApplied = []string{}
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshaling record: %w", err)
	}
	return data, nil
}
