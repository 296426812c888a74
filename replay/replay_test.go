// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package replay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/amunchain/layer0/types"
)

func digestOf(s string) types.Hash {
	return Digest([]byte(s))
}

func TestObserveFreshThenReplayed(t *testing.T) {
	c := New(16, time.Minute)
	d := digestOf("vote-1")

	require.Equal(t, Fresh, c.Observe(d))
	require.Equal(t, Replayed, c.Observe(d))
}

func TestObserveExpiresLazily(t *testing.T) {
	now := time.Now()
	c := New(16, 2*time.Second)
	c.setClock(func() time.Time { return now })

	d := digestOf("vote-1")
	require.Equal(t, Fresh, c.Observe(d))

	now = now.Add(3 * time.Second)
	require.Equal(t, Fresh, c.Observe(d), "digest must be admitted again once its TTL has elapsed")
}

func TestFIFOEvictionIgnoresAccessRecency(t *testing.T) {
	c := New(2, time.Hour)

	a, b, d := digestOf("a"), digestOf("b"), digestOf("d")
	require.Equal(t, Fresh, c.Observe(a))
	require.Equal(t, Fresh, c.Observe(b))

	// Touching "a" again must not protect it from eviction: eviction
	// is pure insertion-order FIFO, not LRU recency.
	require.Equal(t, Replayed, c.Observe(a))

	require.Equal(t, Fresh, c.Observe(d))
	require.Equal(t, 2, c.Len())

	// "a" was the oldest insertion and should have been evicted to
	// make room for "d", despite being observed again after "b".
	require.Equal(t, Fresh, c.Observe(a))
}
