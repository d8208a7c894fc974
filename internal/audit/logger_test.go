package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu      sync.Mutex
	records []Record
	err     error
	block   chan struct{}
}

func (s *recordingSink) Write(ctx context.Context, r Record) error {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
	return s.err
}

func (s *recordingSink) all() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Record(nil), s.records...)
}

func TestLogger_SkipsUnchangedMessages(t *testing.T) {
	sink := &recordingSink{}
	l := NewLogger(sink)

	assert.False(t, l.Record(context.Background(), Entry{Original: "hello", Sanitized: "hello"}))
	require.NoError(t, l.Close(context.Background()))
	assert.Empty(t, sink.all())
}

func TestLogger_WritesChangedMessages(t *testing.T) {
	sink := &recordingSink{}
	fixed := time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)
	l := NewLogger(sink, WithLoggerClock(func() time.Time { return fixed }))

	tokens := []string{"tok_1"}
	ok := l.Record(context.Background(), Entry{
		ChatID:    "chat_1",
		TurnID:    "turn_1",
		Role:      "user",
		Original:  "I'm Sarah",
		Sanitized: "I'm [NAME:tok_1]",
		Tokens:    tokens,
	})
	assert.True(t, ok)
	tokens[0] = "mutated"
	require.NoError(t, l.Close(context.Background()))

	records := sink.all()
	require.Len(t, records, 1)
	r := records[0]
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, "chat_1", r.ChatID)
	assert.Equal(t, "turn_1", r.TurnID)
	assert.Equal(t, "I'm Sarah", r.OriginalContent)
	assert.Equal(t, []string{"tok_1"}, r.TokensApplied)
	assert.Equal(t, fixed, r.Timestamp)
}

func TestLogger_RecordReturnsBeforeWriteCompletes(t *testing.T) {
	sink := &recordingSink{block: make(chan struct{})}
	l := NewLogger(sink)

	assert.True(t, l.Record(context.Background(), Entry{Original: "a", Sanitized: "b"}))
	assert.Empty(t, sink.all())

	close(sink.block)
	require.NoError(t, l.Close(context.Background()))
	assert.Len(t, sink.all(), 1)
}

func TestLogger_WriteSurvivesCanceledRequest(t *testing.T) {
	sink := &recordingSink{}
	l := NewLogger(sink)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l.Record(ctx, Entry{Original: "a", Sanitized: "b"})
	require.NoError(t, l.Close(context.Background()))
	assert.Len(t, sink.all(), 1)
}

func TestLogger_SinkErrorIsSwallowed(t *testing.T) {
	sink := &recordingSink{err: errors.New("store down")}
	l := NewLogger(sink)

	assert.True(t, l.Record(context.Background(), Entry{Original: "a", Sanitized: "b"}))
	assert.NoError(t, l.Close(context.Background()))
}

func TestLogger_WriteTimeout(t *testing.T) {
	sink := &recordingSink{block: make(chan struct{})}
	l := NewLogger(sink, WithWriteTimeout(10*time.Millisecond))

	l.Record(context.Background(), Entry{Original: "a", Sanitized: "b"})
	require.NoError(t, l.Close(context.Background()))
	assert.Empty(t, sink.all())
}

func TestLogger_CloseHonorsContext(t *testing.T) {
	sink := &recordingSink{block: make(chan struct{})}
	defer close(sink.block)
	l := NewLogger(sink, WithWriteTimeout(time.Minute))

	l.Record(context.Background(), Entry{Original: "a", Sanitized: "b"})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Close(ctx), context.DeadlineExceeded)
}

func TestLogger_RecordAfterClose(t *testing.T) {
	sink := &recordingSink{}
	l := NewLogger(sink)
	require.NoError(t, l.Close(context.Background()))

	assert.False(t, l.Record(context.Background(), Entry{Original: "a", Sanitized: "b"}))
	assert.Empty(t, sink.all())
}

func TestNewLogger_NilSinkDiscards(t *testing.T) {
	l := NewLogger(nil)
	assert.True(t, l.Record(context.Background(), Entry{Original: "a", Sanitized: "b"}))
	assert.NoError(t, l.Close(context.Background()))
}
