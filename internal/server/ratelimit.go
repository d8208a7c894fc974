package server

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/time/rate"
)

// maxTrackedClients bounds the per-client limiter cache.
const maxTrackedClients = 10000

// RateLimiter enforces a token bucket per client, keyed by IP.
// Least recently seen clients are forgotten once the cache is full.
type RateLimiter struct {
	mu      sync.Mutex
	clients *lru.Cache
	limit   rate.Limit
	burst   int
}

// NewRateLimiter creates a limiter allowing rps requests per second per
// client with the given burst. rps <= 0 disables limiting (returns nil).
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	clients, err := lru.New(maxTrackedClients)
	if err != nil {
		panic("server: creating rate limiter cache: " + err.Error())
	}
	return &RateLimiter{clients: clients, limit: rate.Limit(rps), burst: burst}
}

// Allow reports whether a request from client may proceed.
func (rl *RateLimiter) Allow(client string) bool {
	rl.mu.Lock()
	var limiter *rate.Limiter
	if v, ok := rl.clients.Get(client); ok {
		limiter = v.(*rate.Limiter)
	} else {
		limiter = rate.NewLimiter(rl.limit, rl.burst)
		rl.clients.Add(client, limiter)
	}
	rl.mu.Unlock()
	return limiter.Allow()
}
