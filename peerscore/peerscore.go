// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package peerscore tracks per-peer rate limiting, reputation, and
// ban backoff (spec §4.6). It is grounded on the teacher's
// networking/benchlist manager: a lock-guarded map keyed by peer
// identity, tracking a benched-until deadline and resetting on
// recovery, generalized here to also carry a token bucket and a
// signed reputation score.
package peerscore

import (
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/amunchain/layer0/types"
)

// Reputation deltas and thresholds (spec §4.6).
const (
	deltaValid         = 1
	deltaInvalid       = -5
	deltaEquivocation  = -20
	deltaOversizeFrame = -10
	deltaQueueOverflow = -2
	deltaThrottled     = -1

	maxReputation = 100
	banThreshold  = -50

	minBanDuration = 60 * time.Second
	maxBanDuration = time.Hour

	// DefaultMaxPeersPerIP caps inbound handshakes accepted from a
	// single remote address (spec §4.6, §6).
	DefaultMaxPeersPerIP = 4
)

// Verdict is the result of Admit.
type Verdict int

const (
	Admitted Verdict = iota
	Throttled
	Banned
)

type peerState struct {
	limiter     *rate.Limiter
	reputation  int32
	bannedUntil time.Time
	banCount    int
}

// Manager is the node's peer scorer. It is safe for concurrent use;
// every method holds a single mutex for a short, constant-time
// critical section (spec §5).
type Manager struct {
	mu sync.Mutex

	maxMsgPerSec  float64
	maxPeersPerIP int

	peers    map[types.PubKey]*peerState
	ipCounts map[string]int
}

// NewManager creates a Manager with the given per-peer rate limit
// (messages/second, also used as the token bucket capacity) and
// per-IP connection cap.
func NewManager(maxMsgPerSec float64, maxPeersPerIP int) *Manager {
	if maxPeersPerIP <= 0 {
		maxPeersPerIP = DefaultMaxPeersPerIP
	}
	return &Manager{
		maxMsgPerSec:  maxMsgPerSec,
		maxPeersPerIP: maxPeersPerIP,
		peers:         make(map[types.PubKey]*peerState),
		ipCounts:      make(map[string]int),
	}
}

func (m *Manager) state(peer types.PubKey) *peerState {
	s, ok := m.peers[peer]
	if !ok {
		s = &peerState{
			limiter: rate.NewLimiter(rate.Limit(m.maxMsgPerSec), int(m.maxMsgPerSec)),
		}
		m.peers[peer] = s
	}
	return s
}

// Admit consults peer's ban status and token bucket. A banned peer is
// rejected outright. Otherwise one token is consumed; an empty bucket
// returns Throttled and costs one reputation point (spec §4.6).
func (m *Manager) Admit(peer types.PubKey, now time.Time) Verdict {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.state(peer)
	if now.Before(s.bannedUntil) {
		return Banned
	}
	if !s.bannedUntil.IsZero() && now.Sub(s.bannedUntil) >= time.Hour {
		// A peer that stays clean for a full hour past its ban has its
		// consecutive-ban counter reset (spec §4.6).
		s.banCount = 0
		s.bannedUntil = time.Time{}
	}

	if !s.limiter.AllowN(now, 1) {
		s.reputation = clamp(s.reputation + deltaThrottled)
		return Throttled
	}
	return Admitted
}

// RecordValid increments reputation for a successfully processed
// message, capped at +100.
func (m *Manager) RecordValid(peer types.PubKey) {
	m.adjust(peer, deltaValid)
}

// RecordInvalid decrements reputation for a message that failed
// decode or semantic validation.
func (m *Manager) RecordInvalid(peer types.PubKey) {
	m.adjust(peer, deltaInvalid)
}

// RecordEquivocation decrements reputation for a peer that gossiped a
// second, conflicting vote/proposal for a slot already occupied.
func (m *Manager) RecordEquivocation(peer types.PubKey) {
	m.adjust(peer, deltaEquivocation)
}

// RecordOversizeFrame decrements reputation for a peer whose frame
// exceeded max_wire_bytes.
func (m *Manager) RecordOversizeFrame(peer types.PubKey) {
	m.adjust(peer, deltaOversizeFrame)
}

// RecordQueueOverflow decrements reputation for a peer whose inbound
// queue overflowed, dropping its oldest pending message.
func (m *Manager) RecordQueueOverflow(peer types.PubKey) {
	m.adjust(peer, deltaQueueOverflow)
}

func (m *Manager) adjust(peer types.PubKey, delta int32) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.state(peer)
	s.reputation = clamp(s.reputation + delta)

	if s.reputation < banThreshold && time.Now().After(s.bannedUntil) {
		s.banCount++
		s.bannedUntil = time.Now().Add(banDuration(s.banCount))
		s.reputation = 0
	}
}

// banDuration computes min(60s * 2^(n-1), 1h) for the n-th
// consecutive ban (n >= 1): 60s, 120s, 240s, ... (spec §4.6).
func banDuration(n int) time.Duration {
	d := minBanDuration
	for i := 1; i < n; i++ {
		d *= 2
		if d >= maxBanDuration {
			return maxBanDuration
		}
	}
	if d > maxBanDuration {
		return maxBanDuration
	}
	return d
}

func clamp(v int32) int32 {
	if v > maxReputation {
		return maxReputation
	}
	return v
}

// Reputation returns peer's current reputation score.
func (m *Manager) Reputation(peer types.PubKey) int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state(peer).reputation
}

// IsBanned reports whether peer is currently within a ban window.
func (m *Manager) IsBanned(peer types.PubKey, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return now.Before(m.state(peer).bannedUntil)
}

// AdmitConnection applies the per-IP connection cap to an inbound
// handshake from addr, returning false if the cap is already reached
// (spec §4.6).
func (m *Manager) AdmitConnection(addr net.Addr) bool {
	host := hostOf(addr)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ipCounts[host] >= m.maxPeersPerIP {
		return false
	}
	m.ipCounts[host]++
	return true
}

// ReleaseConnection returns one slot to addr's per-IP connection
// count when a connection closes.
func (m *Manager) ReleaseConnection(addr net.Addr) {
	host := hostOf(addr)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ipCounts[host] > 0 {
		m.ipCounts[host]--
		if m.ipCounts[host] == 0 {
			delete(m.ipCounts, host)
		}
	}
}

func hostOf(addr net.Addr) string {
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
