// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package replay implements the node's anti-replay digest cache
// (spec §4.5): a bounded set of message digests with FIFO eviction
// once capacity is reached and lazy TTL expiry on access.
//
// The underlying store is hashicorp/golang-lru's simplelru.LRU. This
// package calls only Add, Contains, and Peek — never Get — so the
// cache's recency ordering is never disturbed by a lookup, and
// eviction reduces to plain FIFO over insertion order, exactly as the
// spec requires.
package replay

import (
	"crypto/sha256"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/simplelru"

	"github.com/amunchain/layer0/types"
)

// Default capacity and TTL (spec §4.5, §6).
const (
	DefaultCapacity = 65_536
	DefaultTTL      = 120 * time.Second
)

// Verdict is the result of Observe.
type Verdict int

const (
	Fresh Verdict = iota
	Replayed
)

type record struct {
	expiresAt time.Time
}

// Cache is the anti-replay digest cache. It is safe for concurrent
// use; every operation holds a mutex for a constant-time critical
// section (spec §5 "strictly bounded critical sections").
type Cache struct {
	mu    sync.Mutex
	lru   *simplelru.LRU
	ttl   time.Duration
	clock func() time.Time
}

// New creates a Cache with the given capacity and TTL.
func New(capacity int, ttl time.Duration) *Cache {
	lru, err := simplelru.NewLRU(capacity, nil)
	if err != nil {
		// Only returned for a non-positive capacity, which is a
		// caller programming error.
		panic(err)
	}
	return &Cache{lru: lru, ttl: ttl, clock: time.Now}
}

// NewDefault creates a Cache with the spec's default capacity and
// TTL.
func NewDefault() *Cache {
	return New(DefaultCapacity, DefaultTTL)
}

// setClock overrides the cache's time source. Test-only.
func (c *Cache) setClock(clock func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clock = clock
}

// Digest returns the SHA-256 digest of a canonical-encoded message
// (spec §4.5).
func Digest(canonical []byte) types.Hash {
	return sha256.Sum256(canonical)
}

// Observe reports whether digest has been seen before within its TTL
// window. A fresh digest is recorded and Fresh is returned; a digest
// already present and unexpired returns Replayed. An expired entry is
// treated as absent and is refreshed (spec §4.5 "lazy on access").
func (c *Cache) Observe(digest types.Hash) Verdict {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock()
	if v, ok := c.lru.Peek(digest); ok {
		rec := v.(record)
		if now.Before(rec.expiresAt) {
			return Replayed
		}
		// Expired: fall through and treat as fresh, refreshing expiry.
	}
	c.lru.Add(digest, record{expiresAt: now.Add(c.ttl)})
	return Fresh
}

// Len reports the current number of entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
