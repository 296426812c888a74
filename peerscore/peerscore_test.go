// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package peerscore

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/amunchain/layer0/types"
)

func testPeer(b byte) types.PubKey {
	var pk types.PubKey
	pk[0] = b
	return pk
}

func TestBanAfterReputationFloor(t *testing.T) {
	m := NewManager(100, DefaultMaxPeersPerIP)
	peer := testPeer(1)

	for i := 0; i < 11; i++ {
		m.RecordInvalid(peer) // -5 each, 11*-5 = -55 < -50
	}

	now := time.Now()
	require.True(t, m.IsBanned(peer, now))
	require.Equal(t, Banned, m.Admit(peer, now))
}

func TestBanBackoffDoubles(t *testing.T) {
	require.Equal(t, 60*time.Second, banDuration(1))
	require.Equal(t, 120*time.Second, banDuration(2))
	require.Equal(t, 240*time.Second, banDuration(3))
	require.Equal(t, time.Hour, banDuration(20))
}

func TestReputationCappedAt100(t *testing.T) {
	m := NewManager(100, DefaultMaxPeersPerIP)
	peer := testPeer(2)
	for i := 0; i < 200; i++ {
		m.RecordValid(peer)
	}
	require.Equal(t, int32(maxReputation), m.Reputation(peer))
}

func TestThrottleWhenBucketEmpty(t *testing.T) {
	m := NewManager(1, DefaultMaxPeersPerIP)
	peer := testPeer(3)
	now := time.Now()

	require.Equal(t, Admitted, m.Admit(peer, now))
	require.Equal(t, Throttled, m.Admit(peer, now))
}

func TestPerIPConnectionCap(t *testing.T) {
	m := NewManager(100, 2)
	addr := &net.TCPAddr{IP: net.ParseIP("10.0.0.5"), Port: 4001}

	require.True(t, m.AdmitConnection(addr))
	require.True(t, m.AdmitConnection(addr))
	require.False(t, m.AdmitConnection(addr))

	m.ReleaseConnection(addr)
	require.True(t, m.AdmitConnection(addr))
}
