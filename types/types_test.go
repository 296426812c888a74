// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func keyFilledWith(b byte) PubKey {
	var k PubKey
	for i := range k {
		k[i] = b
	}
	return k
}

func TestQuorumFormula(t *testing.T) {
	cases := map[int]int{1: 1, 2: 2, 3: 3, 4: 3, 5: 4, 7: 5, 100: 67}
	for n, want := range cases {
		require.Equal(t, want, Quorum(n), "n=%d", n)
	}
}

func TestNewValidatorSetSortsAndRejectsDuplicates(t *testing.T) {
	a, b, c := keyFilledWith(3), keyFilledWith(1), keyFilledWith(2)
	vs, err := NewValidatorSet(1, []PubKey{a, b, c})
	require.NoError(t, err)
	require.Equal(t, []PubKey{b, c, a}, vs.Validators)

	_, err = NewValidatorSet(1, []PubKey{a, a})
	require.ErrorIs(t, err, ErrInvalidValidatorSet)
}

func TestNewValidatorSetRejectsZeroPlaceholder(t *testing.T) {
	var zero PubKey
	_, err := NewValidatorSet(1, []PubKey{zero, keyFilledWith(1)})
	require.ErrorIs(t, err, ErrInvalidValidatorSet)
}

func TestProposerRoundRobin(t *testing.T) {
	vs, err := NewValidatorSet(1, []PubKey{keyFilledWith(1), keyFilledWith(2), keyFilledWith(3)})
	require.NoError(t, err)

	for h := uint64(0); h < 6; h++ {
		want := vs.Validators[h%3]
		require.Equal(t, want, vs.Proposer(h))
	}
}

func TestCommitSortedAndDeduped(t *testing.T) {
	c := Commit{Signatures: []VoterSig{
		{Voter: keyFilledWith(1)},
		{Voter: keyFilledWith(2)},
	}}
	require.True(t, c.SortedAndDeduped())

	c.Signatures[0], c.Signatures[1] = c.Signatures[1], c.Signatures[0]
	require.False(t, c.SortedAndDeduped())
}
