package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	checkoutlyotel "github.com/aitsambajwa-iss/Checkoutly/internal/otel"
)

// DefaultWriteTimeout bounds one background write.
const DefaultWriteTimeout = 5 * time.Second

// Entry is what the pipeline hands to Logger for one message.
type Entry struct {
	ChatID    string
	TurnID    string
	Role      string
	Original  string
	Sanitized string
	Tokens    []string
}

// Logger writes records in the background. Record never blocks on the sink.
type Logger struct {
	sink    Sink
	timeout time.Duration
	now     func() time.Time

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// LoggerOption configures a Logger.
type LoggerOption func(*Logger)

// WithWriteTimeout overrides DefaultWriteTimeout.
func WithWriteTimeout(d time.Duration) LoggerOption {
	return func(l *Logger) { l.timeout = d }
}

// WithLoggerClock overrides the record timestamp source.
func WithLoggerClock(now func() time.Time) LoggerOption {
	return func(l *Logger) { l.now = now }
}

// NewLogger returns a Logger writing to sink. A nil sink discards.
func NewLogger(sink Sink, opts ...LoggerOption) *Logger {
	if sink == nil {
		sink = Discard
	}
	l := &Logger{sink: sink, timeout: DefaultWriteTimeout, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Record schedules a write and returns immediately. Entries whose sanitized
// text equals the original are skipped, as is everything after Close.
// It reports whether a write was scheduled.
func (l *Logger) Record(ctx context.Context, e Entry) bool {
	if e.Original == e.Sanitized {
		return false
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		log.Warn().Str("chat_id", e.ChatID).Msg("audit_record_after_close")
		return false
	}
	l.wg.Add(1)
	l.mu.Unlock()

	r := Record{
		ID:               uuid.NewString(),
		TurnID:           e.TurnID,
		ChatID:           e.ChatID,
		Role:             e.Role,
		OriginalContent:  e.Original,
		SanitizedContent: e.Sanitized,
		TokensApplied:    append([]string(nil), e.Tokens...),
		Timestamp:        l.now().UTC(),
	}

	// The write outlives the request, so it keeps the trace but not the deadline.
	bg := context.WithoutCancel(ctx)
	go func() {
		defer l.wg.Done()
		wctx, cancel := context.WithTimeout(bg, l.timeout)
		defer cancel()

		start := time.Now()
		if err := l.sink.Write(wctx, r); err != nil {
			log.Error().Err(err).
				Func(checkoutlyotel.LogTraceFields(bg)).
				Str("audit_id", r.ID).
				Msg("audit_write_failed")
			return
		}
		log.Debug().
			Func(checkoutlyotel.LogTraceFields(bg)).
			Str("audit_id", r.ID).
			Int("tokens_applied", len(r.TokensApplied)).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("audit_written")
	}()
	return true
}

// Close stops accepting records and waits for in-flight writes or ctx.
func (l *Logger) Close(ctx context.Context) error {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
