// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package node

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	luxlog "github.com/luxfi/log"

	"github.com/amunchain/layer0/config"
	"github.com/amunchain/layer0/crypto"
	"github.com/amunchain/layer0/types"
)

// testConfig builds a minimal, valid Config for n validators, binding
// the gossip host and HTTP server to ephemeral loopback ports so
// parallel test runs never collide. It returns the config alongside
// the validator keypairs in generation order, not the sorted
// validator-set order (tests run the node as index 0).
func testConfig(t *testing.T, n int) (*config.Config, []types.PubKey, []ed25519.PrivateKey) {
	t.Helper()

	pubs := make([]types.PubKey, n)
	privs := make([]ed25519.PrivateKey, n)
	hexKeys := make([]string, n)
	for i := 0; i < n; i++ {
		pub, priv, err := crypto.GenerateKey()
		require.NoError(t, err)
		var pk types.PubKey
		copy(pk[:], pub)
		pubs[i] = pk
		privs[i] = priv
		hexKeys[i] = fmt.Sprintf("%x", pub)
	}

	cfg := &config.Config{
		Node: config.Node{Name: "test-validator", DataDir: t.TempDir()},
		HTTP: config.HTTP{ListenAddr: "127.0.0.1:0"},
		P2P: config.P2P{
			ListenAddr:   "/ip4/127.0.0.1/tcp/0",
			Topic:        "amunchain-test",
			MaxMsgPerSec: config.DefaultMaxMsgPerSec,
		},
		Consensus: config.Consensus{ValidatorsHex: hexKeys, Epoch: 1},
	}
	cfg.P2P.AllowPeers = []string{cfg.P2P.ListenAddr}

	return cfg, pubs, privs
}

func TestNewWiresEveryComponent(t *testing.T) {
	cfg, pubs, privs := testConfig(t, 4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	n, err := New(ctx, cfg, privs[0], luxlog.NewNoOpLogger())
	require.NoError(t, err)
	require.NotNil(t, n)

	require.Equal(t, pubs[0], n.Self())
	require.NotNil(t, n.Gadget())
	require.Equal(t, uint64(0), n.Gadget().LastFinalizedHeight())

	require.Contains(t, n.AllowedPeers(), cfg.P2P.ListenAddr)
}

func TestSignVoteProducesVerifiableVote(t *testing.T) {
	cfg, _, privs := testConfig(t, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	n, err := New(ctx, cfg, privs[0], luxlog.NewNoOpLogger())
	require.NoError(t, err)

	hash := types.Hash{1, 2, 3}
	v := n.SignVote(1, 5, hash)
	require.Equal(t, n.Self(), v.Voter)
	require.Equal(t, uint64(5), v.Height)
	require.True(t, crypto.VerifyVote(v))
}

func TestRunShutsDownCleanlyOnCancel(t *testing.T) {
	cfg, _, privs := testConfig(t, 1)

	ctx, cancel := context.WithCancel(context.Background())

	n, err := New(ctx, cfg, privs[0], luxlog.NewNoOpLogger())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- n.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("node did not shut down within timeout")
	}
}
