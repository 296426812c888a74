// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package tide

import (
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/amunchain/layer0/codec"
	"github.com/amunchain/layer0/crypto"
	"github.com/amunchain/layer0/types"
)

type testKey struct {
	pub  types.PubKey
	priv ed25519.PrivateKey
}

func signVote(k testKey, epoch, height uint64, hash types.Hash) types.Vote {
	sig := crypto.SignVote(k.priv, epoch, height, hash)
	return types.Vote{Epoch: epoch, Height: height, BlockHash: hash, Voter: k.pub, Signature: sig}
}

func newValidatorSet(t *testing.T, n int) (*types.ValidatorSet, []testKey) {
	t.Helper()
	keys := make([]testKey, n)
	pubs := make([]types.PubKey, n)
	for i := 0; i < n; i++ {
		pub, priv, err := crypto.GenerateKey()
		require.NoError(t, err)
		var pk types.PubKey
		copy(pk[:], pub)
		keys[i] = testKey{pub: pk, priv: priv}
		pubs[i] = pk
	}
	vs, err := types.NewValidatorSet(1, pubs)
	require.NoError(t, err)
	return vs, keys
}

func TestHappyPathFinalization(t *testing.T) {
	vs, keys := newValidatorSet(t, 4)
	require.Equal(t, 3, vs.Quorum())

	g := New(vs, DefaultConfig(1))

	proposer := vs.Proposer(1)
	block := types.Block{Epoch: 1, Height: 1, Proposer: proposer}
	pr := g.HandleProposal(block)
	require.NoError(t, pr.Err)
	require.True(t, pr.Accepted)

	hash := pr.BlockHash
	var finalResult VoteResult
	for i, k := range keys {
		v := signVote(k, 1, 1, hash)
		res := g.HandleVote(v)
		require.NoError(t, res.Err, "voter %d", i)
		if res.Finalized {
			finalResult = res
		}
	}

	require.NotNil(t, finalResult.Commit)
	require.GreaterOrEqual(t, len(finalResult.Commit.Signatures), vs.Quorum())
	require.True(t, finalResult.Commit.SortedAndDeduped())
	require.Equal(t, uint64(1), g.LastFinalizedHeight())
}

func TestEquivocatingProposer(t *testing.T) {
	vs, _ := newValidatorSet(t, 4)
	g := New(vs, DefaultConfig(1))
	proposer := vs.Proposer(1)

	b1 := types.Block{Epoch: 1, Height: 1, Proposer: proposer, PayloadRoot: types.Hash{1}}
	b2 := types.Block{Epoch: 1, Height: 1, Proposer: proposer, PayloadRoot: types.Hash{2}}

	r1 := g.HandleProposal(b1)
	require.True(t, r1.Accepted)
	require.False(t, r1.Equivocation)

	r2 := g.HandleProposal(b2)
	require.True(t, r2.Accepted)
	require.True(t, r2.Equivocation, "a second distinct block at the same slot is equivocation")
}

func TestDuplicateProposalRejected(t *testing.T) {
	vs, _ := newValidatorSet(t, 4)
	g := New(vs, DefaultConfig(1))
	proposer := vs.Proposer(1)

	b := types.Block{Epoch: 1, Height: 1, Proposer: proposer}
	require.True(t, g.HandleProposal(b).Accepted)

	r := g.HandleProposal(b)
	require.ErrorIs(t, r.Err, ErrDuplicateProposal)
}

func TestWrongProposerRejected(t *testing.T) {
	vs, keys := newValidatorSet(t, 4)
	g := New(vs, DefaultConfig(1))

	idx, _ := vs.Index(vs.Proposer(1))
	wrong := vs.Validators[(idx+1)%len(keys)]

	b := types.Block{Epoch: 1, Height: 1, Proposer: wrong}
	r := g.HandleProposal(b)
	require.ErrorIs(t, r.Err, ErrWrongProposer)
}

func TestVoteBufferedUntilProposalArrives(t *testing.T) {
	vs, keys := newValidatorSet(t, 4)
	g := New(vs, DefaultConfig(1))

	proposer := vs.Proposer(1)
	block := types.Block{Epoch: 1, Height: 1, Proposer: proposer}
	hash := crypto.HashBlock(codec.EncodeBlock(block))

	v := signVote(keys[0], 1, 1, hash)
	res := g.HandleVote(v)
	require.True(t, res.Buffered)

	pr := g.HandleProposal(block)
	require.True(t, pr.Accepted)
	require.Equal(t, hash, pr.BlockHash)

	var finalized bool
	for _, k := range keys[1:] {
		r := g.HandleVote(signVote(k, 1, 1, hash))
		require.NoError(t, r.Err)
		if r.Finalized {
			finalized = true
		}
	}
	require.True(t, finalized)
}

func TestDuplicateVoteIdempotent(t *testing.T) {
	vs, keys := newValidatorSet(t, 4)
	g := New(vs, DefaultConfig(1))
	proposer := vs.Proposer(1)
	block := types.Block{Epoch: 1, Height: 1, Proposer: proposer}
	pr := g.HandleProposal(block)

	v := signVote(keys[0], 1, 1, pr.BlockHash)
	require.True(t, g.HandleVote(v).Accepted)
	r2 := g.HandleVote(v)
	require.True(t, r2.Accepted)
	require.False(t, r2.Equivocation)
}

func TestEquivocatingVoterSecondVoteDropped(t *testing.T) {
	vs, keys := newValidatorSet(t, 4)
	g := New(vs, DefaultConfig(1))
	proposer := vs.Proposer(1)
	block := types.Block{Epoch: 1, Height: 1, Proposer: proposer, PayloadRoot: types.Hash{9}}
	pr := g.HandleProposal(block)

	other := types.Hash{1, 2, 3}
	v1 := signVote(keys[0], 1, 1, pr.BlockHash)
	require.True(t, g.HandleVote(v1).Accepted)

	v2 := signVote(keys[0], 1, 1, other)
	res := g.HandleVote(v2)
	require.True(t, res.Equivocation)
}

func TestSlotOutOfWindowRejected(t *testing.T) {
	vs, _ := newValidatorSet(t, 4)
	cfg := DefaultConfig(1)
	cfg.HMax = 2
	g := New(vs, cfg)

	proposer := vs.Proposer(10)
	b := types.Block{Epoch: 1, Height: 10, Proposer: proposer}
	r := g.HandleProposal(b)
	require.ErrorIs(t, r.Err, ErrSlotOutOfWindow)
}

func sortedSigs(keys []testKey, epoch, height uint64, hash types.Hash) []types.VoterSig {
	sigs := make([]types.VoterSig, 0, len(keys))
	for _, k := range keys {
		v := signVote(k, epoch, height, hash)
		sigs = append(sigs, types.VoterSig{Voter: v.Voter, Signature: v.Signature})
	}
	for i := 0; i < len(sigs); i++ {
		for j := i + 1; j < len(sigs); j++ {
			if sigs[j].Voter.Less(sigs[i].Voter) {
				sigs[i], sigs[j] = sigs[j], sigs[i]
			}
		}
	}
	return sigs
}

func TestContradictingCommitIsSafetyViolationNotApplied(t *testing.T) {
	vs, keys := newValidatorSet(t, 4)
	g := New(vs, DefaultConfig(1))
	proposer := vs.Proposer(1)
	block := types.Block{Epoch: 1, Height: 1, Proposer: proposer}
	pr := g.HandleProposal(block)
	hash := pr.BlockHash

	for _, k := range keys {
		g.HandleVote(signVote(k, 1, 1, hash))
	}
	require.Equal(t, uint64(1), g.LastFinalizedHeight())

	otherHash := types.Hash{0xAA}
	conflicting := types.Commit{Epoch: 1, Height: 1, BlockHash: otherHash, Signatures: sortedSigs(keys, 1, 1, otherHash)}

	res := g.HandleCommit(conflicting)
	require.True(t, res.SafetyViolation)
	require.False(t, res.Finalized)

	finalHash, ok := g.FinalizedHash(1)
	require.True(t, ok)
	require.Equal(t, hash, finalHash)
	require.Equal(t, 1, g.SafetyViolations())
}

func TestCommitAuthoritativeWithoutPriorVotes(t *testing.T) {
	vs, keys := newValidatorSet(t, 4)
	g := New(vs, DefaultConfig(1))

	hash := types.Hash{7, 7, 7}
	c := types.Commit{Epoch: 1, Height: 1, BlockHash: hash, Signatures: sortedSigs(keys[:3], 1, 1, hash)}

	res := g.HandleCommit(c)
	require.NoError(t, res.Err)
	require.True(t, res.Finalized)
	require.Equal(t, uint64(1), g.LastFinalizedHeight())
}

func TestProposalTimedOut(t *testing.T) {
	vs, _ := newValidatorSet(t, 4)
	cfg := DefaultConfig(1)
	cfg.ProposalTimeoutMs = time.Second
	g := New(vs, cfg)

	now := time.Now()
	g.setClock(func() time.Time { return now })
	g.Tick(now)
	require.False(t, g.ProposalTimedOut(1, now))

	later := now.Add(2 * time.Second)
	require.True(t, g.ProposalTimedOut(1, later))
}
