// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package node is the node orchestrator (C10, spec §4.10): the only
// component permitted to hold mutable references to the Tide gadget
// and State. It wires the gossip transport's inbound channel to a
// single consensus goroutine, persists state on every commit, and
// serves a loopback-bound HTTP metrics/health endpoint. Every other
// component in the tree interacts with consensus state only through
// the messages this package passes between them, matching spec §5's
// concurrency model.
package node

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	luxlog "github.com/luxfi/log"

	"github.com/amunchain/layer0/api/health"
	"github.com/amunchain/layer0/api/metrics"
	"github.com/amunchain/layer0/codec"
	"github.com/amunchain/layer0/config"
	"github.com/amunchain/layer0/crypto"
	"github.com/amunchain/layer0/gossip"
	"github.com/amunchain/layer0/peerscore"
	"github.com/amunchain/layer0/registry"
	"github.com/amunchain/layer0/replay"
	"github.com/amunchain/layer0/state"
	"github.com/amunchain/layer0/tide"
	"github.com/amunchain/layer0/types"
)

// inboundQueueSize is the capacity of gossip.Host's inbound channel,
// the only buffer between the gossip host and the single consensus
// consumer (spec §5 backpressure is enforced inside gossip.Host). The
// consensus loop reads that channel directly; this package keeps no
// fan-in buffer of its own.
const inboundQueueSize = 256

// Node owns the lifetimes of every other component and is the single
// writer of Tide and State (spec §4.10, §5).
type Node struct {
	cfg  *config.Config
	log  luxlog.Logger
	priv ed25519.PrivateKey
	self types.PubKey

	gadget  *tide.Gadget
	store   *state.State
	scorer  *peerscore.Manager
	gossip  *gossip.Host
	metrics metrics.Metrics

	gatherer  prometheus.Gatherer
	allowlist []string
}

// New wires every component from cfg and priv (the validator's
// keypair, reused as the gossip transport identity per spec §4.3).
// It loads persisted state, verifies the peer registry/allowlist, and
// constructs — but does not start — the gossip host and consensus
// gadget. Startup failures here (ErrNoValidators, ErrEmptyAllowlist,
// state.ErrStateCorrupt) are fatal, matching spec §7's propagation
// policy.
func New(ctx context.Context, cfg *config.Config, priv ed25519.PrivateKey, log luxlog.Logger) (*Node, error) {
	pub, ok := priv.Public().(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("node: validator key is not ed25519")
	}
	self, err := types.PubKeyFromBytes(pub)
	if err != nil {
		return nil, fmt.Errorf("node: %w", err)
	}

	validators, err := cfg.ValidatorSet()
	if err != nil {
		return nil, err
	}

	store, err := state.Load(cfg.Node.DataDir)
	if err != nil {
		return nil, fmt.Errorf("node: %w", err)
	}

	allowlist, err := resolveAllowlist(cfg)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	m, err := metrics.NewMetrics("amunchain", reg)
	if err != nil {
		return nil, fmt.Errorf("node: register metrics: %w", err)
	}

	procReg := prometheus.NewRegistry()
	procReg.MustRegister(prometheus.NewGoCollector())
	procReg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	gatherer := metrics.NewMultiGatherer()
	if err := gatherer.Register("amunchain", reg); err != nil {
		return nil, fmt.Errorf("node: register consensus gatherer: %w", err)
	}
	if err := gatherer.Register("process", procReg); err != nil {
		return nil, fmt.Errorf("node: register process gatherer: %w", err)
	}

	scorer := peerscore.NewManager(cfg.P2P.MaxMsgPerSec, cfg.P2P.MaxPeersPerIP)
	cache := replay.NewDefault()

	gcfg := cfg.GossipConfig()
	host, err := gossip.New(ctx, gcfg, priv, scorer, cache)
	if err != nil {
		return nil, fmt.Errorf("node: %w", err)
	}
	host.SetMetrics(dropSink{m})

	tcfg := tide.DefaultConfig(cfg.Consensus.Epoch)
	tcfg.RequireEpoch = cfg.Consensus.RequireEpoch
	gadget := tide.New(validators, tcfg)
	gadget.Tick(time.Now())
	m.SetFinalizedHeight(gadget.LastFinalizedHeight())

	log.Info("node: started", "name", cfg.Node.Name, "self", self.String(), "validators", validators.N(), "quorum", validators.Quorum(), "allowlist_size", len(allowlist))

	return &Node{
		cfg:       cfg,
		log:       log,
		priv:      priv,
		self:      self,
		gadget:    gadget,
		store:     store,
		scorer:    scorer,
		gossip:    host,
		metrics:   m,
		gatherer:  gatherer,
		allowlist: allowlist,
	}, nil
}

// resolveAllowlist combines the explicit [p2p] allow_peers list with
// any verified signed registry entries. A registry that fails to load
// or verify contributes no peers, unless production and
// peer_registry_require_fresh are both set, in which case its error is
// returned. Otherwise spec §4.7's EmptyAllowlist failure is keyed on
// the *combined* result being empty in production, not on the
// registry alone being absent or invalid.
func resolveAllowlist(cfg *config.Config) ([]string, error) {
	var registryPeers []string
	if cfg.P2P.PeerRegistryPath != "" {
		env, err := registry.Load(cfg.P2P.PeerRegistryPath)
		if err != nil {
			if cfg.Production && cfg.P2P.PeerRegistryRequireFresh {
				return nil, err
			}
		} else {
			pinned, ok, perr := cfg.PeerRegistryPubkey()
			if perr != nil {
				return nil, perr
			}
			if ok {
				peers, verr := registry.Verify(env, registry.Params{
					PinnedKey:  pinned,
					Network:    cfg.P2P.Topic,
					MinVersion: cfg.P2P.PeerRegistryMinVersion,
					NowMs:      uint64(time.Now().UnixMilli()),
					MaxAgeMs:   uint64(cfg.RegistryMaxAge().Milliseconds()),
					GraceMs:    cfg.P2P.PeerRegistryGraceMs,
				})
				if verr != nil {
					if cfg.Production && cfg.P2P.PeerRegistryRequireFresh {
						return nil, verr
					}
				} else {
					registryPeers = peers
				}
			}
		}
	}
	return registry.ResolveAllowlist(cfg.P2P.AllowPeers, registryPeers, cfg.Production)
}

// dropSink adapts api/metrics.Metrics to gossip.DropSink.
type dropSink struct {
	m metrics.Metrics
}

func (d dropSink) IncOversize() { d.m.MsgsDropped(metrics.DropOversize).Inc() }
func (d dropSink) IncReplay()   { d.m.MsgsDropped(metrics.DropReplay).Inc() }
func (d dropSink) IncRate()     { d.m.MsgsDropped(metrics.DropRate).Inc() }

// Run drives the node's three task classes — network I/O (owned by
// gossip.Host internally), the single consensus consumer, and the
// metrics/health HTTP server — until ctx is cancelled, then brings
// each to a quiescent point before returning (spec §5 cancellation).
func (n *Node) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return n.serveHTTP(ctx)
	})

	g.Go(func() error {
		n.consensusLoop(ctx)
		return nil
	})

	<-ctx.Done()
	n.log.Info("node: shutting down")

	if err := n.store.Persist(n.cfg.Node.DataDir); err != nil {
		n.log.Error("node: final state persist failed", "error", err)
	}
	if err := n.gossip.Close(); err != nil {
		n.log.Warn("node: gossip close failed", "error", err)
	}

	if err := g.Wait(); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

// consensusLoop is the single serializer that owns Tide and State. It
// never runs concurrently with itself; every message is fully
// processed in arrival order before the next is read (spec §5
// ordering guarantees).
func (n *Node) consensusLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.gadget.Tick(time.Now())
		case msg, ok := <-n.gossip.Inbound():
			if !ok {
				return
			}
			n.handle(ctx, msg)
		}
	}
}

func (n *Node) handle(ctx context.Context, msg types.ConsensusMsg) {
	n.metrics.MsgsIn().Inc()

	switch msg.Kind {
	case types.MsgProposal:
		res := n.gadget.HandleProposal(msg.Proposal)
		if res.Err != nil {
			n.onValidationError(res.Err, msg.Proposal.Proposer)
			return
		}
		if res.Equivocation {
			n.log.Warn("safety: equivocating proposer", "proposer", msg.Proposal.Proposer.String(), "height", msg.Proposal.Height)
			n.scorer.RecordInvalid(msg.Proposal.Proposer)
		} else {
			n.scorer.RecordValid(msg.Proposal.Proposer)
		}

	case types.MsgVote:
		res := n.gadget.HandleVote(msg.Vote)
		if res.Err != nil {
			n.onValidationError(res.Err, msg.Vote.Voter)
			return
		}
		if res.Equivocation {
			n.scorer.RecordEquivocation(msg.Vote.Voter)
			return
		}
		n.scorer.RecordValid(msg.Vote.Voter)
		if res.Buffered {
			return
		}
		n.metrics.VotesAccepted().Inc()
		if res.Finalized && res.Commit != nil {
			n.onFinalized(ctx, *res.Commit)
		}

	case types.MsgCommit:
		res := n.gadget.HandleCommit(msg.Commit)
		if res.Err != nil {
			n.metrics.MsgsDropped(metrics.DropInvalidSig).Inc()
			return
		}
		if res.SafetyViolation {
			n.log.Error("safety: commit conflicts with an already-finalized block", "height", msg.Commit.Height)
			return
		}
		if res.Finalized {
			n.onFinalized(ctx, msg.Commit)
		}
	}
}

func (n *Node) onValidationError(err error, signer types.PubKey) {
	switch err {
	case tide.ErrUnknownValidator:
		n.metrics.MsgsDropped(metrics.DropUnknownPeer).Inc()
	case tide.ErrSignatureInvalid:
		n.metrics.MsgsDropped(metrics.DropInvalidSig).Inc()
		n.scorer.RecordInvalid(signer)
	default:
		n.scorer.RecordInvalid(signer)
	}
}

// onFinalized commits the resulting state, persists it, and
// broadcasts the certificate (spec §4.9 finalization rule, §4.10
// wiring). Broadcast order for self-originated messages matches the
// order Tide emits them because this loop is single-threaded.
func (n *Node) onFinalized(ctx context.Context, commit types.Commit) {
	n.metrics.CommitsFinalized().Inc()
	n.metrics.SetFinalizedHeight(n.gadget.LastFinalizedHeight())

	n.store.Commit(commit.Height)
	if err := n.store.Persist(n.cfg.Node.DataDir); err != nil {
		n.log.Error("node: state persist failed", "error", err, "height", commit.Height)
	}

	encoded := codec.Encode(types.ConsensusMsg{Kind: types.MsgCommit, Commit: commit})
	if err := n.gossip.Publish(ctx, encoded); err != nil {
		n.log.Warn("node: broadcast commit failed", "error", err, "height", commit.Height)
	}
}

// serveHTTP runs the loopback-bound /metrics and /health endpoints
// until ctx is cancelled (spec §6 metrics, §4.10).
func (n *Node) serveHTTP(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(n.gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", n.healthHandler)

	srv := &http.Server{Addr: n.cfg.HTTP.ListenAddr, Handler: mux}

	ln, err := net.Listen("tcp", n.cfg.HTTP.ListenAddr)
	if err != nil {
		return fmt.Errorf("node: listen %s: %w", n.cfg.HTTP.ListenAddr, err)
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errc:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (n *Node) healthHandler(w http.ResponseWriter, r *http.Request) {
	report := health.Report{
		Healthy: true,
		Checks: []health.Check{
			{Name: "tide", Healthy: true, Details: map[string]interface{}{
				"finalized_height":  n.gadget.LastFinalizedHeight(),
				"safety_violations": n.gadget.SafetyViolations(),
			}},
		},
	}
	if report.Checks[0].Details["safety_violations"].(int) > 0 {
		report.Healthy = false
		report.Checks[0].Healthy = false
	}
	w.Header().Set("Content-Type", "application/json")
	if !report.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	fmt.Fprintf(w, `{"healthy":%t}`, report.Healthy)
}

// Self returns the node's validator/transport public key.
func (n *Node) Self() types.PubKey { return n.self }

// AllowedPeers returns the resolved allowlist (explicit [p2p]
// allow_peers plus any verified signed registry entries, spec §4.7).
func (n *Node) AllowedPeers() []string { return n.allowlist }

// Gadget exposes the running Tide instance, primarily for tests.
func (n *Node) Gadget() *tide.Gadget { return n.gadget }

// SignVote signs a vote for (epoch, height, blockHash) under this
// node's key, for use by callers proposing or voting outside the pure
// gossip-admission path (e.g. a local block producer).
func (n *Node) SignVote(epoch, height uint64, blockHash types.Hash) types.Vote {
	sig := crypto.SignVote(n.priv, epoch, height, blockHash)
	return types.Vote{Epoch: epoch, Height: height, BlockHash: blockHash, Voter: n.self, Signature: sig}
}
