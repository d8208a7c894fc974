package redact

import (
	"strings"

	"github.com/google/uuid"
)

// Kind names a category of sensitive value.
type Kind string

// Redaction kinds, in cascade order.
const (
	KindCard    Kind = "card"
	KindPhone   Kind = "phone"
	KindAddress Kind = "address"
	KindName    Kind = "name"
	KindEmail   Kind = "email"
	KindCVV     Kind = "cvv"
	KindExpiry  Kind = "expiry"
)

func (k Kind) valid() bool {
	switch k {
	case KindCard, KindPhone, KindAddress, KindName, KindEmail, KindCVV, KindExpiry:
		return true
	}
	return false
}

// Token is one applied redaction.
type Token struct {
	Value  string `json:"token"`
	Kind   Kind   `json:"kind"`
	TurnID string `json:"turn_id"`
}

// markerPrefixes lists every marker that means "already sanitized".
// MONTH and YEAR are emitted by the voice checkout flow.
var markerPrefixes = []string{
	"[CARD:", "[CVV:", "[EXPIRY:", "[NAME:", "[EMAIL:", "[MONTH:", "[YEAR:", "[PHONE:", "[ADDRESS:",
}

// HasMarker reports whether text already contains a redaction marker.
func HasMarker(text string) bool {
	for _, p := range markerPrefixes {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

// Marker renders the in-text placeholder for a token, e.g. [CARD:tok_ab12...].
func Marker(kind Kind, token string) string {
	return "[" + strings.ToUpper(string(kind)) + ":" + token + "]"
}

// NewToken returns "tok_" followed by 16 random hex characters.
func NewToken() string {
	return "tok_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}
