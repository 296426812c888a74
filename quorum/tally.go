// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package quorum tallies per-slot validator votes toward the 2N/3+1
// threshold the Tide finality gadget requires to finalize a block
// (spec §2, §4.9). It is adapted from the teacher's quorum/static.go
// Static threshold tracker, generalized from ids.NodeID to the
// Ed25519 public keys the spec's validator sets use, and trimmed to
// the single unweighted case — the spec has no weighted voting.
package quorum

import (
	"sort"
	"sync"

	"github.com/amunchain/layer0/types"
)

// Quorum returns floor(2n/3) + 1, the minimum signer count to finalize
// a block for a validator set of size n (spec §2).
func Quorum(n int) int {
	return types.Quorum(n)
}

// Result is a snapshot of a Tally's current state.
type Result struct {
	Achieved     bool
	Count        int
	Threshold    int
	Participants []types.PubKey
}

// Tally accumulates distinct validator votes for one (epoch, height)
// slot. It is safe for concurrent use.
type Tally struct {
	mu        sync.RWMutex
	threshold int
	voted     map[types.PubKey]struct{}
}

// NewTally creates a Tally requiring threshold distinct voters to
// reach quorum.
func NewTally(threshold int) *Tally {
	return &Tally{
		threshold: threshold,
		voted:     make(map[types.PubKey]struct{}),
	}
}

// Add records a vote from voter. Repeated votes from the same voter
// are idempotent (equivocation is rejected upstream, before it ever
// reaches the tally).
func (t *Tally) Add(voter types.PubKey) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.voted[voter] = struct{}{}
}

// Check reports whether quorum has been reached.
func (t *Tally) Check() Result {
	t.mu.RLock()
	defer t.mu.RUnlock()

	participants := make([]types.PubKey, 0, len(t.voted))
	for voter := range t.voted {
		participants = append(participants, voter)
	}
	sort.Slice(participants, func(i, j int) bool {
		return string(participants[i][:]) < string(participants[j][:])
	})

	return Result{
		Achieved:     len(t.voted) >= t.threshold,
		Count:        len(t.voted),
		Threshold:    t.threshold,
		Participants: participants,
	}
}

// Count returns the number of distinct voters recorded so far.
func (t *Tally) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.voted)
}
