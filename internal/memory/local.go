package memory

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

// Defaults for the in-process store.
const (
	DefaultMaxEntries = 10000
	DefaultTTL        = 2 * time.Hour
)

// LocalStore is a bounded in-process Store. Entries expire after ttl and the
// least recently used chat is evicted when the store is full.
type LocalStore struct {
	cache *lru.Cache
	ttl   time.Duration
	now   func() time.Time
}

type entry struct {
	product   string
	expiresAt time.Time
}

// NewLocalStore creates a LocalStore. Zero values select the defaults.
func NewLocalStore(maxEntries int, ttl time.Duration) (*LocalStore, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	cache, err := lru.New(maxEntries)
	if err != nil {
		return nil, fmt.Errorf("creating lru cache: %w", err)
	}
	return &LocalStore{cache: cache, ttl: ttl, now: time.Now}, nil
}

// Get implements Store.
func (s *LocalStore) Get(_ context.Context, chatID string) (string, error) {
	val, ok := s.cache.Get(chatID)
	if !ok {
		return "", nil
	}
	e := val.(entry)
	if s.now().After(e.expiresAt) {
		s.cache.Remove(chatID)
		return "", nil
	}
	return e.product, nil
}

// Set implements Store.
func (s *LocalStore) Set(_ context.Context, chatID, product string) error {
	if Ambiguous(product) {
		return nil
	}
	s.cache.Add(chatID, entry{product: product, expiresAt: s.now().Add(s.ttl)})
	return nil
}

// Len returns the number of chats held, expired or not.
func (s *LocalStore) Len() int {
	return s.cache.Len()
}

// Sweep drops expired entries and returns how many were removed.
func (s *LocalStore) Sweep(_ context.Context) (int, error) {
	now := s.now()
	removed := 0
	for _, key := range s.cache.Keys() {
		val, ok := s.cache.Peek(key)
		if !ok {
			continue
		}
		if now.After(val.(entry).expiresAt) {
			s.cache.Remove(key)
			removed++
		}
	}
	return removed, nil
}
