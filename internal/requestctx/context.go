// Package requestctx carries the chat and turn identifiers of the request being served.
package requestctx

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

type contextKey struct{ name string }

var (
	chatIDKey = &contextKey{"chat_id"}
	turnIDKey = &contextKey{"turn_id"}
)

// ChatIDPrefix marks identifiers minted by the server rather than supplied by a caller.
const ChatIDPrefix = "chat_"

// NewChatID returns a fresh, time-ordered chat identifier ("chat_" + ULID).
func NewChatID() string {
	return ChatIDPrefix + strings.ToLower(ulid.Make().String())
}

// NewTurnID returns a fresh identifier for one request/response cycle.
func NewTurnID() string {
	return uuid.NewString()
}

// WithChat stores chat_id and turn_id in the context.
func WithChat(ctx context.Context, chatID, turnID string) context.Context {
	ctx = context.WithValue(ctx, chatIDKey, chatID)
	return context.WithValue(ctx, turnIDKey, turnID)
}

// ChatID returns the chat_id from context, or "" if not set.
func ChatID(ctx context.Context) string {
	v, _ := ctx.Value(chatIDKey).(string)
	return v
}

// TurnID returns the turn_id from context, or "" if not set.
func TurnID(ctx context.Context) string {
	v, _ := ctx.Value(turnIDKey).(string)
	return v
}
