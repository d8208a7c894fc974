package requestctx

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithChat(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, ChatID(ctx))
	assert.Empty(t, TurnID(ctx))

	ctx2 := WithChat(ctx, "chat_abc", "turn-1")
	assert.Equal(t, "chat_abc", ChatID(ctx2))
	assert.Equal(t, "turn-1", TurnID(ctx2))
	assert.Empty(t, ChatID(ctx))

	ctx3 := WithChat(ctx2, "chat_def", "turn-2")
	assert.Equal(t, "chat_def", ChatID(ctx3))
	assert.Equal(t, "chat_abc", ChatID(ctx2))
}

func TestNewChatID(t *testing.T) {
	a, b := NewChatID(), NewChatID()
	assert.True(t, strings.HasPrefix(a, ChatIDPrefix))
	assert.Len(t, a, len(ChatIDPrefix)+26)
	assert.Equal(t, strings.ToLower(a), a)
	assert.NotEqual(t, a, b)
}

func TestNewTurnID(t *testing.T) {
	assert.Len(t, NewTurnID(), 36)
	assert.NotEqual(t, NewTurnID(), NewTurnID())
}
