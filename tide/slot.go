// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package tide

import (
	"time"

	"github.com/amunchain/layer0/quorum"
	"github.com/amunchain/layer0/types"
)

// Status is a slot's position in its Pending -> Proposed -> Voted ->
// Finalized lifecycle (spec §4.9).
type Status int

const (
	Pending Status = iota
	Proposed
	Voted
	Finalized
	Orphaned
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Proposed:
		return "proposed"
	case Voted:
		return "voted"
	case Finalized:
		return "finalized"
	case Orphaned:
		return "orphaned"
	default:
		return "unknown"
	}
}

// bufferedVote is a vote whose block_hash does not (yet) match any
// known proposal, held for up to vote_buffer_ms pending the proposal.
type bufferedVote struct {
	vote      types.Vote
	receivedAt time.Time
}

// slot is the per-(epoch,height) local state tracked by the gadget
// (spec §4.9).
type slot struct {
	epoch, height uint64

	status Status

	// proposals maps block hash to the proposal body seen for it.
	// Only the first proposal hash is "active"; any later, distinct
	// hash is recorded here too (for equivocation bookkeeping) but
	// never overwrites activeProposal.
	proposals      map[types.Hash]types.Block
	activeProposal types.Hash
	hasProposal    bool

	// votes maps voter -> the single vote retained for them at this
	// slot (first one wins; later distinct votes are equivocation).
	votes map[types.PubKey]types.Vote

	// tallies counts distinct voters per block hash, one quorum.Tally
	// per hash, to detect quorum without re-scanning votes on every
	// insert.
	tallies map[types.Hash]*quorum.Tally

	buffered []bufferedVote

	committed *types.Commit
}

func newSlot(epoch, height uint64) *slot {
	return &slot{
		epoch:     epoch,
		height:    height,
		status:    Pending,
		proposals: make(map[types.Hash]types.Block),
		votes:     make(map[types.PubKey]types.Vote),
		tallies:   make(map[types.Hash]*quorum.Tally),
	}
}

// tallyFor returns the hash's vote tally, lazily creating it against
// threshold (spec §4.9 quorum = floor(2N/3)+1).
func (s *slot) tallyFor(hash types.Hash, threshold int) *quorum.Tally {
	t, ok := s.tallies[hash]
	if !ok {
		t = quorum.NewTally(threshold)
		s.tallies[hash] = t
	}
	return t
}
