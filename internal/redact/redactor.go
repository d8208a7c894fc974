// Package redact finds sensitive values in shopper messages and replaces them
// with opaque tokens before the text leaves the process.
//
// Detection is an ordered cascade (see patterns/redaction.yaml). A card
// number ends the scan immediately and replaces the whole message. Phone
// and address matches are replaced in place and scanning continues. Name,
// email, CVV and expiry matches end the scan after their replacement.
package redact

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	checkoutlyotel "github.com/aitsambajwa-iss/Checkoutly/internal/otel"
	"github.com/aitsambajwa-iss/Checkoutly/internal/vault"
)

var tracer = checkoutlyotel.Tracer("github.com/aitsambajwa-iss/Checkoutly/internal/redact")

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one inbound chat message.
type Message struct {
	Role    string
	Content string
	ChatID  string
	TurnID  string
}

// Result is the sanitized text and the tokens applied to produce it.
type Result struct {
	Sanitized string
	Tokens    []Token
}

// Changed reports whether any redaction was applied.
func (r *Result) Changed() bool { return len(r.Tokens) > 0 }

// Kinds returns the kind of every applied token, in order.
func (r *Result) Kinds() []string {
	kinds := make([]string, len(r.Tokens))
	for i, t := range r.Tokens {
		kinds[i] = string(t.Kind)
	}
	return kinds
}

// Redactor runs the detector cascade and writes every detected value to the vault.
type Redactor struct {
	cascade  *Cascade
	vault    vault.Writer
	newToken func() string
	now      func() time.Time
}

// Option configures a Redactor.
type Option func(*Redactor)

// WithCascade replaces the embedded cascade.
func WithCascade(c *Cascade) Option {
	return func(r *Redactor) { r.cascade = c }
}

// WithVault sets where detected values are written. Defaults to vault.Discard.
func WithVault(w vault.Writer) Option {
	return func(r *Redactor) { r.vault = w }
}

// WithTokenSource overrides token generation (tests).
func WithTokenSource(fn func() string) Option {
	return func(r *Redactor) { r.newToken = fn }
}

// WithClock overrides the clock used for expiry validation and vault timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Redactor) { r.now = now }
}

// New creates a Redactor. Without options it uses the embedded cascade and discards vault writes.
func New(opts ...Option) (*Redactor, error) {
	r := &Redactor{
		vault:    vault.Discard,
		newToken: NewToken,
		now:      time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	if r.cascade == nil {
		c, err := DefaultCascade()
		if err != nil {
			return nil, fmt.Errorf("loading default cascade: %w", err)
		}
		r.cascade = c
	}
	return r, nil
}

// MustNew is like New but panics on error.
func MustNew(opts ...Option) *Redactor {
	r, err := New(opts...)
	if err != nil {
		panic(fmt.Sprintf("redact.New: %v", err))
	}
	return r
}

// hit is one accepted match, with offsets into the working text.
type hit struct {
	value      string
	start, end int
	whole      bool
}

// Redact sanitizes a message. Only user messages are scanned, and a message
// that already carries a marker is returned unchanged.
func (r *Redactor) Redact(ctx context.Context, msg Message) *Result {
	ctx, span := tracer.Start(ctx, "redact.message")
	defer span.End()

	res := &Result{Sanitized: msg.Content}
	if msg.Role != RoleUser || HasMarker(msg.Content) {
		span.SetAttributes(attribute.Bool("redact.skipped", true))
		return res
	}

	now := r.now()
	env := checkEnv{stoplist: r.cascade.Stoplist, now: now}
	normalized := NormalizeSpokenNumbers(msg.Content)
	working := msg.Content

	for _, d := range r.cascade.Detectors {
		src := working
		if d.Source == SourceNormalized {
			src = normalized
		}
		h, ok := detect(env, d, src)
		if !ok {
			continue
		}

		token := r.newToken()
		r.store(ctx, msg, d.Kind, token, h.value, now)

		marker := Marker(d.Kind, token)
		if h.whole {
			working = marker
		} else {
			working = working[:h.start] + marker + working[h.end:]
		}
		res.Tokens = append(res.Tokens, Token{Value: token, Kind: d.Kind, TurnID: msg.TurnID})
		recordRedaction(ctx, d.Kind)

		if d.Terminal {
			break
		}
	}

	res.Sanitized = working
	span.SetAttributes(checkoutlyotel.TokensApplied.Int(len(res.Tokens)))
	return res
}

// detect returns the first valid match among a detector's patterns.
func detect(env checkEnv, d *Detector, text string) (hit, bool) {
	for _, p := range d.Patterns {
		loc := p.Re.FindStringSubmatchIndex(text)
		if loc == nil {
			continue
		}
		start, end := loc[2*p.Group], loc[2*p.Group+1]
		if start < 0 {
			continue
		}
		start, end = trimSpan(text, start, end)

		groups := make([]string, len(loc)/2)
		for i := range groups {
			if loc[2*i] >= 0 {
				groups[i] = text[loc[2*i]:loc[2*i+1]]
			}
		}

		value, ok := checks[p.Check](env, p, text[start:end], groups)
		if !ok {
			continue
		}
		return hit{value: value, start: start, end: end, whole: p.Replace == ScopeMessage}, true
	}
	return hit{}, false
}

func trimSpan(text string, start, end int) (int, int) {
	for start < end && isSpace(text[start]) {
		start++
	}
	for end > start && isSpace(text[end-1]) {
		end--
	}
	return start, end
}

func isSpace(b byte) bool {
	return strings.IndexByte(" \t\n\r\f\v", b) >= 0
}

// store writes the detected value to the vault. Failures are logged and dropped.
func (r *Redactor) store(ctx context.Context, msg Message, kind Kind, token, value string, now time.Time) {
	err := r.vault.Put(ctx, vault.Entry{
		Token:     token,
		Kind:      string(kind),
		Value:     value,
		ChatID:    msg.ChatID,
		TurnID:    msg.TurnID,
		CreatedAt: now.UTC(),
	})
	if err != nil {
		log.Warn().Err(err).
			Str("kind", string(kind)).
			Str("token", token).
			Func(checkoutlyotel.LogTraceFields(ctx)).
			Msg("vault_write_failed")
	}
}
