// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package registry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/amunchain/layer0/crypto"
	"github.com/amunchain/layer0/types"
)

func newSignedEnvelope(t *testing.T) (*Envelope, types.PubKey) {
	t.Helper()
	pub, priv, err := crypto.GenerateKey()
	require.NoError(t, err)

	e := &Envelope{
		Version:     1,
		Network:     "amunchain-mainnet",
		IssuedAtMs:  1_000_000,
		ExpiresAtMs: 2_000_000,
		Peers:       []string{"peer-b", "peer-a", "peer-a"},
	}
	Sign(e, priv)

	var pk types.PubKey
	copy(pk[:], pub)
	return e, pk
}

func TestCanonicalBytesSortsAndDedupes(t *testing.T) {
	e, _ := newSignedEnvelope(t)
	canon := string(e.CanonicalBytes())
	require.Equal(t, "v1\nnetwork=amunchain-mainnet\nissued_at_ms=1000000\nexpires_at_ms=2000000\npeers\npeer-a\npeer-b\n", canon)
}

func TestVerifyAccepts(t *testing.T) {
	e, pk := newSignedEnvelope(t)
	peers, err := Verify(e, Params{
		PinnedKey:  pk,
		Network:    "amunchain-mainnet",
		MinVersion: 1,
		NowMs:      1_500_000,
		MaxAgeMs:   1_000_000,
		GraceMs:    0,
	})
	require.NoError(t, err)
	require.Equal(t, []string{"peer-a", "peer-b"}, peers)
}

func TestVerifyRejectsWrongNetwork(t *testing.T) {
	e, pk := newSignedEnvelope(t)
	_, err := Verify(e, Params{
		PinnedKey: pk, Network: "other-network", MinVersion: 1, NowMs: 1_500_000, MaxAgeMs: 1_000_000,
	})
	require.ErrorIs(t, err, ErrRegistryInvalid)
}

func TestVerifyRejectsStaleAge(t *testing.T) {
	e, pk := newSignedEnvelope(t)
	// now_ms within [issued, expires+grace] but age since issuance
	// exceeds max_age_ms.
	_, err := Verify(e, Params{
		PinnedKey: pk, Network: "amunchain-mainnet", MinVersion: 1,
		NowMs: 1_900_000, MaxAgeMs: 500_000, GraceMs: 0,
	})
	require.ErrorIs(t, err, ErrRegistryInvalid)
}

func TestVerifyRejectsOutsideGraceWindow(t *testing.T) {
	e, pk := newSignedEnvelope(t)
	_, err := Verify(e, Params{
		PinnedKey: pk, Network: "amunchain-mainnet", MinVersion: 1,
		NowMs: 2_100_000, MaxAgeMs: 10_000_000, GraceMs: 50_000,
	})
	require.ErrorIs(t, err, ErrRegistryInvalid)
}

func TestVerifyRejectsTamperedPeers(t *testing.T) {
	e, pk := newSignedEnvelope(t)
	e.Peers = append(e.Peers, "injected-peer")
	_, err := Verify(e, Params{
		PinnedKey: pk, Network: "amunchain-mainnet", MinVersion: 1, NowMs: 1_500_000, MaxAgeMs: 1_000_000,
	})
	require.ErrorIs(t, err, ErrRegistryInvalid)
}

func TestResolveAllowlistEmptyFailsInProduction(t *testing.T) {
	_, err := ResolveAllowlist(nil, nil, true)
	require.ErrorIs(t, err, ErrEmptyAllowlist)

	peers, err := ResolveAllowlist(nil, nil, false)
	require.NoError(t, err)
	require.Empty(t, peers)
}

func TestResolveAllowlistMergesAndDedupes(t *testing.T) {
	peers, err := ResolveAllowlist([]string{"b", "a"}, []string{"a", "c"}, true)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, peers)
}
