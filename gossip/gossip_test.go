// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package gossip

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/amunchain/layer0/types"
)

func TestMessageEpochByKind(t *testing.T) {
	h := types.Hash{1}
	pub := types.PubKey{2}

	proposal := types.ConsensusMsg{Kind: types.MsgProposal, Proposal: types.Block{Epoch: 7, Height: 1, Proposer: pub, PayloadRoot: h}}
	require.Equal(t, uint64(7), messageEpoch(proposal))

	vote := types.ConsensusMsg{Kind: types.MsgVote, Vote: types.Vote{Epoch: 9, Height: 1, BlockHash: h, Voter: pub}}
	require.Equal(t, uint64(9), messageEpoch(vote))

	commit := types.ConsensusMsg{Kind: types.MsgCommit, Commit: types.Commit{Epoch: 3, Height: 1, BlockHash: h}}
	require.Equal(t, uint64(3), messageEpoch(commit))
}

func TestMessageEpochZeroByDefault(t *testing.T) {
	var msg types.ConsensusMsg
	require.Equal(t, uint64(0), messageEpoch(msg))
}
