// Package infra provides shared infrastructure used by the API server:
// a TTL cache for advisor commentary and per-client rate limiting for the
// endpoints that call the text-generation service.
package infra

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"
)

// --- TTL cache ---

type cacheEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache is a thread-safe in-memory cache with a default TTL.
type Cache[V any] struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry[V]
	ttl     time.Duration
	now     func() time.Time
}

// NewCache creates a cache with the given default TTL. A non-positive TTL
// disables caching: Set becomes a no-op.
func NewCache[V any](ttl time.Duration) *Cache[V] {
	return &Cache[V]{
		entries: make(map[string]cacheEntry[V]),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the value for key if present and not expired.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || c.now().After(entry.expiresAt) {
		var zero V
		return zero, false
	}
	return entry.value, true
}

// Set stores a value with the default TTL.
func (c *Cache[V]) Set(key string, value V) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores a value with a custom TTL.
func (c *Cache[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[key] = cacheEntry[V]{value: value, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
}

// Invalidate removes a key.
func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Len reports the number of stored entries, expired ones included.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Cleanup removes expired entries. Can be called periodically.
func (c *Cache[V]) Cleanup() {
	c.mu.Lock()
	now := c.now()
	for k, v := range c.entries {
		if now.After(v.expiresAt) {
			delete(c.entries, k)
		}
	}
	c.mu.Unlock()
}

// Fingerprint returns a stable hex digest of v's JSON encoding, suitable as a
// cache key for records whose field order is fixed.
func Fingerprint(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:16]), nil
}

// --- Rate limiter ---

// RateLimiter provides simple token-bucket rate limiting. It allows
// maxTokens requests and adds one token back every refillRate.
type RateLimiter struct {
	mu         sync.Mutex
	tokens     int
	maxTokens  int
	refillRate time.Duration
	lastRefill time.Time
	now        func() time.Time
}

func newRateLimiter(maxTokens int, refillRate time.Duration, now func() time.Time) *RateLimiter {
	return &RateLimiter{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillRate: refillRate,
		lastRefill: now(),
		now:        now,
	}
}

// Allow takes a token if one is available and never blocks.
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refill()
	if rl.tokens > 0 {
		rl.tokens--
		return true
	}
	return false
}

// idle reports whether the bucket has refilled completely, meaning the
// client made no request for a full window.
func (rl *RateLimiter) idle() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refill()
	return rl.tokens >= rl.maxTokens
}

// refill adds tokens based on elapsed time. Must be called with mu held.
func (rl *RateLimiter) refill() {
	if rl.refillRate <= 0 {
		rl.tokens = rl.maxTokens
		return
	}
	elapsed := rl.now().Sub(rl.lastRefill)
	if elapsed >= rl.refillRate {
		periods := int(elapsed / rl.refillRate)
		rl.tokens += periods
		if rl.tokens > rl.maxTokens {
			rl.tokens = rl.maxTokens
		}
		rl.lastRefill = rl.lastRefill.Add(time.Duration(periods) * rl.refillRate)
	}
}

// ClientLimiter keeps one RateLimiter per client key (usually the remote IP).
type ClientLimiter struct {
	mu         sync.Mutex
	limiters   map[string]*RateLimiter
	maxTokens  int
	refillRate time.Duration
	now        func() time.Time
}

// NewClientLimiter allows each client perMinute requests per minute with a
// burst of the same size. perMinute <= 0 disables limiting.
func NewClientLimiter(perMinute int) *ClientLimiter {
	cl := &ClientLimiter{
		limiters:  make(map[string]*RateLimiter),
		maxTokens: perMinute,
		now:       time.Now,
	}
	if perMinute > 0 {
		cl.refillRate = time.Minute / time.Duration(perMinute)
	}
	return cl
}

// Allow reports whether client may make another request now.
func (cl *ClientLimiter) Allow(client string) bool {
	if cl.maxTokens <= 0 {
		return true
	}
	cl.mu.Lock()
	rl, ok := cl.limiters[client]
	if !ok {
		rl = newRateLimiter(cl.maxTokens, cl.refillRate, cl.now)
		cl.limiters[client] = rl
	}
	cl.mu.Unlock()
	return rl.Allow()
}

// Cleanup forgets clients whose bucket is full again. A forgotten client
// starts over with a full bucket, so this never loosens the limit.
func (cl *ClientLimiter) Cleanup() {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	for client, rl := range cl.limiters {
		if rl.idle() {
			delete(cl.limiters, client)
		}
	}
}

func (cl *ClientLimiter) size() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return len(cl.limiters)
}
