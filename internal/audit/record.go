// Package audit keeps an append-only, signed trail of every inbound message
// the redactor changed.
//
// Records are written asynchronously by Logger so the chat turn never waits
// on the compliance store. A record holds both the original and the
// sanitized text; stores that can seal the original do so.
package audit

import (
	"context"
	"errors"
	"time"

	checkoutlyotel "github.com/aitsambajwa-iss/Checkoutly/internal/otel"
)

var tracer = checkoutlyotel.Tracer("github.com/aitsambajwa-iss/Checkoutly/internal/audit")

// ErrRecordNotFound is returned by lookups for an unknown record id.
var ErrRecordNotFound = errors.New("audit record not found")

// Record is one audit row.
type Record struct {
	ID               string    `json:"id"`
	TurnID           string    `json:"turn_id"`
	ChatID           string    `json:"call_id"`
	Role             string    `json:"message_role"`
	OriginalContent  string    `json:"original_content"`
	SanitizedContent string    `json:"sanitized_content"`
	TokensApplied    []string  `json:"tokens_applied"`
	Timestamp        time.Time `json:"timestamp"`
	Signature        string    `json:"signature,omitempty"`
}

// Sink persists records.
type Sink interface {
	Write(ctx context.Context, r Record) error
}

// Discard drops every record.
var Discard Sink = discard{}

type discard struct{}

func (discard) Write(context.Context, Record) error { return nil }
