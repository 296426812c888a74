// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package tide implements the Tide finality gadget (spec §4.9): a
// deterministic per-(epoch,height) slot state machine that accepts
// proposals, tallies votes toward floor(2N/3)+1 quorum, and constructs
// finality certificates. It holds no network or storage concerns of
// its own — the node orchestrator is the only caller, feeding it
// decoded, already-authenticated messages and reacting to the
// Result values it returns.
package tide

import (
	"sort"
	"sync"
	"time"

	"github.com/amunchain/layer0/codec"
	"github.com/amunchain/layer0/crypto"
	"github.com/amunchain/layer0/types"
	safemath "github.com/amunchain/layer0/utils/math"
)

// Default window and timing parameters (spec §4.9, §6).
const (
	DefaultHMax            = 128
	DefaultVoteBufferMs    = 2 * time.Second
	DefaultProposalTimeout = 4 * time.Second
)

// Config parameterizes a Gadget.
type Config struct {
	Epoch             uint64
	RequireEpoch      bool
	HMax              uint64
	VoteBufferMs      time.Duration
	ProposalTimeoutMs time.Duration
}

// DefaultConfig returns the spec's default timing parameters for the
// given epoch.
func DefaultConfig(epoch uint64) Config {
	return Config{
		Epoch:             epoch,
		HMax:              DefaultHMax,
		VoteBufferMs:      DefaultVoteBufferMs,
		ProposalTimeoutMs: DefaultProposalTimeout,
	}
}

// ProposalResult is returned by HandleProposal.
type ProposalResult struct {
	Accepted     bool
	Equivocation bool
	BlockHash    types.Hash
	Err          error
}

// VoteResult is returned by HandleVote.
type VoteResult struct {
	Accepted     bool
	Equivocation bool
	Buffered     bool
	Finalized    bool
	Commit       *types.Commit
	Err          error
}

// CommitResult is returned by HandleCommit.
type CommitResult struct {
	Accepted        bool
	Finalized       bool
	SafetyViolation bool
	Err             error
}

// Gadget is one running instance of the Tide finality state machine,
// scoped to a single validator set / epoch.
type Gadget struct {
	mu sync.Mutex

	validators *types.ValidatorSet
	cfg        Config

	lastFinalizedHeight uint64
	finalizedHash       map[uint64]types.Hash
	finalizedCommit     map[uint64]types.Commit

	slots map[uint64]*slot

	// activatedAt records when a height first became the active slot
	// (last_finalized_height + 1), stamped by Tick. It lets
	// ProposalTimedOut measure proposal_timeout_ms even for a slot
	// that has received no messages at all (spec §4.9 liveness).
	activatedAt map[uint64]time.Time

	safetyViolations int

	now func() time.Time
}

// New creates a Gadget for validators under cfg.
func New(validators *types.ValidatorSet, cfg Config) *Gadget {
	if cfg.HMax == 0 {
		cfg.HMax = DefaultHMax
	}
	if cfg.VoteBufferMs == 0 {
		cfg.VoteBufferMs = DefaultVoteBufferMs
	}
	if cfg.ProposalTimeoutMs == 0 {
		cfg.ProposalTimeoutMs = DefaultProposalTimeout
	}
	return &Gadget{
		validators:      validators,
		cfg:             cfg,
		finalizedHash:   make(map[uint64]types.Hash),
		finalizedCommit: make(map[uint64]types.Commit),
		slots:           make(map[uint64]*slot),
		activatedAt:     make(map[uint64]time.Time),
		now:             time.Now,
	}
}

// setClock overrides the gadget's time source. Test-only.
func (g *Gadget) setClock(clock func() time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.now = clock
}

// Tick stamps the current active slot's activation time, if not
// already stamped. The node orchestrator calls this on its event loop
// so ProposalTimedOut is meaningful even for a slot that never
// receives a single message.
func (g *Gadget) Tick(now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	height := g.lastFinalizedHeight + 1
	if _, ok := g.activatedAt[height]; !ok {
		g.activatedAt[height] = now
	}
}

// LastFinalizedHeight returns the highest height whose finalization
// chains contiguously from genesis.
func (g *Gadget) LastFinalizedHeight() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastFinalizedHeight
}

// FinalizedHash returns the finalized block hash at height, if any.
func (g *Gadget) FinalizedHash(height uint64) (types.Hash, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	h, ok := g.finalizedHash[height]
	return h, ok
}

// SafetyViolations returns the number of contradicting commits
// observed and rejected so far (spec §4.9, §7 error propagation).
func (g *Gadget) SafetyViolations() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.safetyViolations
}

// IsProposer reports whether self is the designated proposer for
// height under round-robin scheduling.
func (g *Gadget) IsProposer(height uint64, self types.PubKey) bool {
	return g.validators.Proposer(height) == self
}

func (g *Gadget) proposalWindow(height uint64) bool {
	if height <= g.lastFinalizedHeight {
		return false
	}
	return height-g.lastFinalizedHeight <= g.cfg.HMax
}

func (g *Gadget) commitWindow(height uint64) bool {
	if height == 0 {
		return false
	}
	// lastFinalizedHeight and HMax are both attacker-reachable via a
	// crafted Height field; saturate rather than wrap past MaxUint64.
	ceiling, err := safemath.Add64(g.lastFinalizedHeight, g.cfg.HMax)
	if err != nil {
		ceiling = ^uint64(0)
	}
	return height <= ceiling
}

func (g *Gadget) slotFor(epoch, height uint64) *slot {
	s, ok := g.slots[height]
	if !ok {
		s = newSlot(epoch, height)
		g.slots[height] = s
	}
	return s
}

// HandleProposal processes an inbound block proposal (spec §4.9).
func (g *Gadget) HandleProposal(b types.Block) ProposalResult {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.cfg.RequireEpoch && b.Epoch != g.cfg.Epoch {
		return ProposalResult{Err: ErrEpochMismatch}
	}
	if !g.proposalWindow(b.Height) {
		return ProposalResult{Err: ErrSlotOutOfWindow}
	}
	if want := g.validators.Proposer(b.Height); b.Proposer != want {
		return ProposalResult{Err: ErrWrongProposer}
	}
	if parentHash, ok := g.finalizedHash[b.Height-1]; ok && parentHash != b.ParentHash {
		return ProposalResult{Err: ErrParentMismatch}
	}

	hash := crypto.HashBlock(codec.EncodeBlock(b))
	s := g.slotFor(b.Epoch, b.Height)

	if _, dup := s.proposals[hash]; dup {
		return ProposalResult{Err: ErrDuplicateProposal}
	}

	equivocation := s.hasProposal
	s.proposals[hash] = b
	if !s.hasProposal {
		s.hasProposal = true
		s.activeProposal = hash
		if s.status == Pending {
			s.status = Proposed
		}
		g.resolveBuffered(s, hash)
	}

	return ProposalResult{Accepted: true, Equivocation: equivocation, BlockHash: hash}
}

// resolveBuffered applies any buffered votes whose block_hash matches
// the slot's newly-active proposal and whose buffering time has not
// exceeded vote_buffer_ms. Every matching vote is consumed, applied or
// dropped as expired; votes for other hashes stay buffered (spec §4.9
// vote_buffer_ms).
func (g *Gadget) resolveBuffered(s *slot, hash types.Hash) {
	pending := s.buffered
	s.buffered = nil
	for _, bv := range pending {
		if bv.vote.BlockHash != hash {
			s.buffered = append(s.buffered, bv)
			continue
		}
		if g.now().Sub(bv.receivedAt) > g.cfg.VoteBufferMs {
			continue // expired before the proposal arrived
		}
		g.applyVote(s, bv.vote)
	}
}

// HandleVote processes an inbound vote (spec §4.9).
func (g *Gadget) HandleVote(v types.Vote) VoteResult {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.validators.Has(v.Voter) {
		return VoteResult{Err: ErrUnknownValidator}
	}
	if !crypto.VerifyVote(v) {
		return VoteResult{Err: ErrSignatureInvalid}
	}
	if !g.proposalWindow(v.Height) {
		return VoteResult{Err: ErrSlotOutOfWindow}
	}

	s := g.slotFor(v.Epoch, v.Height)
	return g.applyVote(s, v)
}

func (g *Gadget) applyVote(s *slot, v types.Vote) VoteResult {
	if existing, ok := s.votes[v.Voter]; ok {
		if existing.BlockHash == v.BlockHash {
			return VoteResult{Accepted: true}
		}
		return VoteResult{Equivocation: true}
	}

	if _, known := s.proposals[v.BlockHash]; !known {
		s.buffered = append(s.buffered, bufferedVote{vote: v, receivedAt: g.now()})
		return VoteResult{Buffered: true}
	}

	s.votes[v.Voter] = v
	tally := s.tallyFor(v.BlockHash, g.validators.Quorum())
	tally.Add(v.Voter)
	if s.status < Voted {
		s.status = Voted
	}

	if !tally.Check().Achieved {
		return VoteResult{Accepted: true}
	}

	commit := g.buildCommit(s, v.BlockHash)
	finalized, safety := g.finalize(s, v.BlockHash, commit)
	if safety {
		// A quorum was reached for a hash contradicting an
		// already-finalized block at this height; never applied.
		return VoteResult{Accepted: true}
	}
	return VoteResult{Accepted: true, Finalized: finalized, Commit: &commit}
}

func (g *Gadget) buildCommit(s *slot, hash types.Hash) types.Commit {
	voters := s.tallyFor(hash, g.validators.Quorum()).Check().Participants
	sigs := make([]types.VoterSig, 0, len(voters))
	for _, voter := range voters {
		v := s.votes[voter]
		sigs = append(sigs, types.VoterSig{Voter: voter, Signature: v.Signature})
	}
	sort.Slice(sigs, func(i, j int) bool { return sigs[i].Voter.Less(sigs[j].Voter) })
	return types.Commit{Epoch: s.epoch, Height: s.height, BlockHash: hash, Signatures: sigs}
}

// HandleCommit processes an inbound, pre-assembled finality
// certificate (spec §4.9). A valid commit is authoritative even
// without any prior local votes or proposal for the slot.
func (g *Gadget) HandleCommit(c types.Commit) CommitResult {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !c.SortedAndDeduped() {
		return CommitResult{Err: ErrMalformedCommit}
	}
	if !g.commitWindow(c.Height) {
		return CommitResult{Err: ErrSlotOutOfWindow}
	}

	for _, vs := range c.Signatures {
		if !g.validators.Has(vs.Voter) {
			return CommitResult{Err: ErrUnknownValidator}
		}
		synthetic := types.Vote{Epoch: c.Epoch, Height: c.Height, BlockHash: c.BlockHash, Voter: vs.Voter, Signature: vs.Signature}
		if !crypto.VerifyVote(synthetic) {
			return CommitResult{Err: ErrSignatureInvalid}
		}
	}
	if len(c.Signatures) < g.validators.Quorum() {
		return CommitResult{Err: ErrQuorumNotMet}
	}

	s := g.slotFor(c.Epoch, c.Height)
	finalized, safety := g.finalize(s, c.BlockHash, c)
	return CommitResult{Accepted: true, Finalized: finalized, SafetyViolation: safety}
}

// finalize records hash as finalized at s.height unless a different
// hash is already finalized there, in which case it is a safety
// violation that is counted but never applied (spec §4.9).
func (g *Gadget) finalize(s *slot, hash types.Hash, commit types.Commit) (finalized, safety bool) {
	if existing, ok := g.finalizedHash[s.height]; ok {
		if existing == hash {
			return false, false
		}
		g.safetyViolations++
		return false, true
	}

	g.finalizedHash[s.height] = hash
	g.finalizedCommit[s.height] = commit
	s.committed = &commit
	s.status = Finalized

	if s.height == g.lastFinalizedHeight+1 {
		g.lastFinalizedHeight = s.height
		for {
			next := g.lastFinalizedHeight + 1
			if _, ok := g.finalizedHash[next]; !ok {
				break
			}
			g.lastFinalizedHeight = next
		}
	}
	return true, false
}

// ProposalTimedOut reports whether the slot at height is still
// waiting on a proposal past proposal_timeout_ms of becoming the
// active slot (spec §4.9 liveness: the node keeps accepting late
// votes/commits but never votes for a missing proposal itself).
func (g *Gadget) ProposalTimedOut(height uint64, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if height != g.lastFinalizedHeight+1 {
		return false
	}
	if s, ok := g.slots[height]; ok && s.hasProposal {
		return false
	}
	activatedAt, ok := g.activatedAt[height]
	if !ok {
		return false
	}
	return now.Sub(activatedAt) > g.cfg.ProposalTimeoutMs
}
