// Package vault persists redaction tokens and the sensitive values they stand for.
//
// The chat pipeline only ever writes to the vault. Reading a value back is an
// operator action (checkoutly vault reveal) and never happens while serving a turn.
package vault

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrTokenExists is returned when a token is written twice. Tokens are write-once.
	ErrTokenExists = errors.New("token already stored")
	// ErrTokenNotFound is returned by Reveal for an unknown token.
	ErrTokenNotFound = errors.New("token not found")
)

// Entry is one token to value mapping.
type Entry struct {
	Token     string    `json:"token"`
	Kind      string    `json:"kind"`
	Value     string    `json:"value"`
	ChatID    string    `json:"call_id"`
	TurnID    string    `json:"turn_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Writer stores token entries.
type Writer interface {
	Put(ctx context.Context, e Entry) error
}

// Discard is a Writer that drops every entry. Used for dry runs.
var Discard Writer = discard{}

type discard struct{}

func (discard) Put(context.Context, Entry) error { return nil }
