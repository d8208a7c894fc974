// Package memory holds per-chat conversation state: the product the shopper
// referenced most recently, used to resolve "add it to my cart".
//
// The state is advisory. Concurrent turns on one chat race with
// last-write-wins semantics and nothing here tries to order them.
package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	checkoutlyotel "github.com/aitsambajwa-iss/Checkoutly/internal/otel"
)

var tracer = checkoutlyotel.Tracer("github.com/aitsambajwa-iss/Checkoutly/internal/memory")

// Backends accepted by NewStore.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendDynamoDB = "dynamodb"
)

// AllProducts is the sentinel the model uses when no single product is named.
const AllProducts = "all"

// ErrUnknownBackend is returned by NewStore for an unsupported backend name.
var ErrUnknownBackend = errors.New("unknown memory backend")

// Store keeps the last referenced product per chat.
type Store interface {
	// Get returns the last referenced product, or "" when none is known.
	Get(ctx context.Context, chatID string) (string, error)
	// Set records product as the last reference. Ambiguous names are ignored.
	Set(ctx context.Context, chatID, product string) error
}

var ambiguous = map[string]struct{}{
	"":          {},
	AllProducts: {},
	"it":        {},
	"this":      {},
	"that":      {},
	"this one":  {},
	"that one":  {},
	"them":      {},
}

// Ambiguous reports whether name refers to no product in particular.
func Ambiguous(name string) bool {
	_, ok := ambiguous[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// Options selects and sizes a Store.
type Options struct {
	Backend     string
	TTL         time.Duration
	MaxEntries  int
	RedisURL    string
	DynamoTable string
}

// NewStore builds the Store named by opts.Backend.
func NewStore(ctx context.Context, opts Options) (Store, error) {
	var (
		store Store
		err   error
	)
	switch opts.Backend {
	case "", BackendMemory:
		store, err = NewLocalStore(opts.MaxEntries, opts.TTL)
	case BackendRedis:
		store, err = NewRedisStore(ctx, opts.RedisURL, opts.TTL)
	case BackendDynamoDB:
		store, err = NewDynamoStoreFromEnv(ctx, opts.DynamoTable, opts.TTL)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
	if err != nil {
		return nil, err
	}
	return store, nil
}
