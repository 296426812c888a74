// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package gossip wires the node's peer-to-peer transport: a
// Noise-authenticated, Yamux-multiplexed libp2p host carrying a
// single gossipsub topic equal to the consensus network string
// (spec §4.8). It owns no consensus state; it hands decoded,
// cheaply-admitted messages to the node orchestrator and publishes
// whatever the orchestrator asks it to broadcast.
package gossip

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"sync"
	"time"

	libp2p "github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	libp2pcrypto "github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/security/noise"
	"github.com/libp2p/go-libp2p/p2p/transport/tcp"

	"github.com/amunchain/layer0/codec"
	"github.com/amunchain/layer0/peerscore"
	"github.com/amunchain/layer0/replay"
	"github.com/amunchain/layer0/types"
)

// DefaultMaxWireBytes bounds a single gossip frame (spec §4.8, §6).
const DefaultMaxWireBytes = 1 << 20

// Config parameterizes a Host.
type Config struct {
	ListenAddr   string
	Topic        string
	MaxWireBytes int
	Production   bool
}

// DropSink receives a tick for every admission-layer drop reason the
// topic validator observes, feeding the node orchestrator's
// msgs_dropped_{reason} counters (spec §4.10). A nil DropSink is
// valid; drops are simply not counted.
type DropSink interface {
	IncOversize()
	IncReplay()
	IncRate()
}

// Host is the node's libp2p gossip transport.
type Host struct {
	h     host.Host
	ps    *pubsub.PubSub
	topic *pubsub.Topic
	sub   *pubsub.Subscription

	cfg     Config
	scorer  *peerscore.Manager
	cache   *replay.Cache
	metrics DropSink

	mu      sync.Mutex
	closed  bool
	inbound chan types.ConsensusMsg
}

// SetMetrics attaches a DropSink the topic validator reports
// admission-layer drops to. Safe to call once, before the host starts
// receiving traffic.
func (g *Host) SetMetrics(m DropSink) {
	g.metrics = m
}

func (g *Host) incOversize() {
	if g.metrics != nil {
		g.metrics.IncOversize()
	}
}

func (g *Host) incReplay() {
	if g.metrics != nil {
		g.metrics.IncReplay()
	}
}

func (g *Host) incRate() {
	if g.metrics != nil {
		g.metrics.IncRate()
	}
}

// New constructs a libp2p host identified by priv, joins cfg.Topic,
// and registers the admission-layer topic validator (decode, size
// cap, anti-replay, rate limit, legacy-epoch drop). Deeper
// protocol-semantic validation (signatures, quorum, slot window)
// happens downstream in the single-threaded consensus consumer loop,
// which is the only place allowed to mutate Tide/State (spec §4.10).
func New(ctx context.Context, cfg Config, priv ed25519.PrivateKey, scorer *peerscore.Manager, cache *replay.Cache) (*Host, error) {
	if cfg.MaxWireBytes <= 0 {
		cfg.MaxWireBytes = DefaultMaxWireBytes
	}

	p2pPriv, _, err := libp2pcrypto.KeyPairFromStdKey(priv)
	if err != nil {
		return nil, fmt.Errorf("gossip: derive libp2p identity: %w", err)
	}

	h, err := libp2p.New(
		libp2p.Identity(p2pPriv),
		libp2p.ListenAddrStrings(cfg.ListenAddr),
		libp2p.Security(noise.ID, noise.New),
		libp2p.Transport(tcp.NewTCPTransport),
	)
	if err != nil {
		return nil, fmt.Errorf("gossip: create libp2p host: %w", err)
	}

	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		h.Close()
		return nil, fmt.Errorf("gossip: create gossipsub: %w", err)
	}

	g := &Host{
		h:       h,
		ps:      ps,
		cfg:     cfg,
		scorer:  scorer,
		cache:   cache,
		inbound: make(chan types.ConsensusMsg, 256),
	}

	if err := ps.RegisterTopicValidator(cfg.Topic, g.validate); err != nil {
		h.Close()
		return nil, fmt.Errorf("gossip: register topic validator: %w", err)
	}

	topic, err := ps.Join(cfg.Topic)
	if err != nil {
		h.Close()
		return nil, fmt.Errorf("gossip: join topic %s: %w", cfg.Topic, err)
	}
	g.topic = topic

	sub, err := topic.Subscribe()
	if err != nil {
		h.Close()
		return nil, fmt.Errorf("gossip: subscribe to topic %s: %w", cfg.Topic, err)
	}
	g.sub = sub

	return g, nil
}

// ID returns the host's libp2p peer ID.
func (g *Host) ID() peer.ID {
	return g.h.ID()
}

// PeerIDFromPubKey derives the libp2p peer identifier from a raw
// Ed25519 public key without standing up a host. This is what the
// CLI's --print-peer-id prints (spec §4.3, §6): the node's single
// Ed25519 keypair serves as both its validator signing identity and
// its transport identity.
func PeerIDFromPubKey(pub ed25519.PublicKey) (peer.ID, error) {
	p2pPub, err := libp2pcrypto.UnmarshalEd25519PublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("gossip: unmarshal public key: %w", err)
	}
	return peer.IDFromPublicKey(p2pPub)
}

// Addrs returns the host's listen multiaddrs as strings.
func (g *Host) Addrs() []string {
	addrs := g.h.Addrs()
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a.String()
	}
	return out
}

// Inbound returns the channel of messages admitted by the topic
// validator and ready for the consensus consumer loop.
func (g *Host) Inbound() <-chan types.ConsensusMsg {
	return g.inbound
}

// validate is the gossipsub topic validator: the admission layer
// described in spec §4.8/§4.5/§4.6. It never mutates Tide or State.
func (g *Host) validate(ctx context.Context, from peer.ID, msg *pubsub.Message) bool {
	if from == g.h.ID() {
		// Our own publication: let gossipsub propagate it, but never
		// queue it for local re-ingestion (spec §4.8).
		return true
	}

	peerID, hasPeerID := peerKeyOf(from)

	if len(msg.Data) > g.cfg.MaxWireBytes {
		if hasPeerID {
			g.scorer.RecordOversizeFrame(peerID)
		}
		g.incOversize()
		return false
	}

	decoded, err := codec.Decode(msg.Data, g.cfg.MaxWireBytes)
	if err != nil {
		if hasPeerID {
			g.scorer.RecordInvalid(peerID)
		}
		return false
	}

	if g.cfg.Production && messageEpoch(decoded) == 0 {
		// Legacy drop: silently dropped pre-validation in production
		// (spec §4.8).
		return false
	}

	digest := replay.Digest(msg.Data)
	if g.cache.Observe(digest) == replay.Replayed {
		// Replay is attributed to the relay peer, not the signer; no
		// reputation penalty (spec §7 S2).
		g.incReplay()
		return false
	}

	if hasPeerID {
		switch g.scorer.Admit(peerID, time.Now()) {
		case peerscore.Banned, peerscore.Throttled:
			g.incRate()
			return false
		}
	}

	select {
	case g.inbound <- decoded:
	default:
		// Inbound queue overflow: drop oldest with a reputation tick
		// on the source peer (spec §5 backpressure).
		select {
		case <-g.inbound:
		default:
		}
		g.inbound <- decoded
		if hasPeerID {
			g.scorer.RecordQueueOverflow(peerID)
		}
	}
	return true
}

func messageEpoch(msg types.ConsensusMsg) uint64 {
	switch msg.Kind {
	case types.MsgProposal:
		return msg.Proposal.Epoch
	case types.MsgVote:
		return msg.Vote.Epoch
	case types.MsgCommit:
		return msg.Commit.Epoch
	default:
		return 0
	}
}

// peerKeyOf recovers the peer's Ed25519 public key from its libp2p
// peer.ID, which is derived directly from that key (spec §3 PeerID).
func peerKeyOf(id peer.ID) (types.PubKey, bool) {
	pub, err := id.ExtractPublicKey()
	if err != nil || pub == nil {
		return types.PubKey{}, false
	}
	raw, err := pub.Raw()
	if err != nil || len(raw) != len(types.PubKey{}) {
		return types.PubKey{}, false
	}
	var pk types.PubKey
	copy(pk[:], raw)
	return pk, true
}

// Publish broadcasts an already-encoded frame. The transport makes a
// single delivery attempt per peer and never re-ingests its own
// publication locally (spec §4.8): gossipsub runs the topic validator
// on local publishes too, and validate accepts a message from this
// host for propagation without queuing it on Inbound.
func (g *Host) Publish(ctx context.Context, encoded []byte) error {
	g.mu.Lock()
	closed := g.closed
	g.mu.Unlock()
	if closed {
		return ErrClosed
	}
	return g.topic.Publish(ctx, encoded)
}

// Close tears down the subscription, topic, and libp2p host.
func (g *Host) Close() error {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()

	if g.sub != nil {
		g.sub.Cancel()
	}
	if g.topic != nil {
		_ = g.topic.Close()
	}
	return g.h.Close()
}
