// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package config parses and validates the node's TOML configuration
// file (spec §6). Loading a config file is an external-collaborator
// concern per spec §1, but the shape it produces is load-bearing for
// every other component, so this loader is a thin, real
// implementation rather than a stub: parse with
// github.com/BurntSushi/toml, then fail fast on anything the node
// cannot safely start with.
package config

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/amunchain/layer0/gossip"
	"github.com/amunchain/layer0/peerscore"
	"github.com/amunchain/layer0/types"
)

// Node holds [node] keys.
type Node struct {
	Name    string `toml:"name"`
	DataDir string `toml:"data_dir"`
}

// HTTP holds [http] keys.
type HTTP struct {
	ListenAddr string `toml:"listen_addr"`
}

// P2P holds [p2p] keys.
type P2P struct {
	ListenAddr    string   `toml:"listen_addr"`
	Topic         string   `toml:"topic"`
	MaxMsgPerSec  float64  `toml:"max_msg_per_sec"`
	MaxPeersPerIP int      `toml:"max_peers_per_ip"`
	Bootstrap     []string `toml:"bootstrap"`
	AllowPeers    []string `toml:"allow_peers"`

	PeerRegistryPath          string `toml:"peer_registry_path"`
	PeerRegistryPubkeyHex     string `toml:"peer_registry_pubkey_hex"`
	PeerRegistryMinVersion    uint32 `toml:"peer_registry_min_version"`
	PeerRegistryMaxAgeMs      uint64 `toml:"peer_registry_max_age_ms"`
	PeerRegistryGraceMs       uint64 `toml:"peer_registry_grace_ms"`
	PeerRegistryRequireFresh  bool   `toml:"peer_registry_require_fresh"`
}

// Consensus holds [consensus] keys.
type Consensus struct {
	ValidatorsHex []string `toml:"validators_hex"`
	RequireEpoch  bool     `toml:"require_epoch"`
	// Epoch is not named in spec §6's key list but is required to
	// construct a ValidatorSet; it defaults to 1, the genesis epoch.
	Epoch uint64 `toml:"epoch"`
}

// Security holds [security] keys.
type Security struct {
	RequireSignedMessages bool `toml:"require_signed_messages"`
}

// Config is the fully parsed, defaulted, and validated node
// configuration.
type Config struct {
	Node       Node      `toml:"node"`
	HTTP       HTTP      `toml:"http"`
	P2P        P2P       `toml:"p2p"`
	Consensus  Consensus `toml:"consensus"`
	Security   Security  `toml:"security"`
	Production bool      `toml:"production"`
}

const (
	// DefaultMaxMsgPerSec is applied when [p2p] max_msg_per_sec is
	// zero or absent.
	DefaultMaxMsgPerSec = 50.0
)

// Load reads and parses the TOML file at path, applies defaults for
// any key the file omits, and validates the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Node.DataDir == "" {
		c.Node.DataDir = "."
	}
	if c.HTTP.ListenAddr == "" {
		c.HTTP.ListenAddr = "127.0.0.1:9650"
	}
	if c.P2P.MaxMsgPerSec <= 0 {
		c.P2P.MaxMsgPerSec = DefaultMaxMsgPerSec
	}
	if c.P2P.MaxPeersPerIP <= 0 {
		c.P2P.MaxPeersPerIP = peerscore.DefaultMaxPeersPerIP
	}
	if c.Consensus.Epoch == 0 {
		c.Consensus.Epoch = 1
	}
}

// Validate checks the structural and cross-field invariants the node
// needs at startup. It never panics — every failure is a wrapped
// ErrInvalidConfig or ErrNoValidators the caller (C12's CLI) surfaces
// as a non-zero exit.
func (c *Config) Validate() error {
	if c.Node.Name == "" {
		return fmt.Errorf("%w: [node] name is required", ErrInvalidConfig)
	}
	if c.P2P.ListenAddr == "" {
		return fmt.Errorf("%w: [p2p] listen_addr is required", ErrInvalidConfig)
	}
	if c.P2P.Topic == "" {
		return fmt.Errorf("%w: [p2p] topic is required", ErrInvalidConfig)
	}
	if c.P2P.MaxMsgPerSec <= 0 {
		return fmt.Errorf("%w: [p2p] max_msg_per_sec must be > 0", ErrInvalidConfig)
	}
	if _, err := c.ValidatorSet(); err != nil {
		return err
	}
	return nil
}

// ValidatorSet parses [consensus] validators_hex into a
// types.ValidatorSet, rejecting an empty set, duplicate keys, or a
// zero-pubkey placeholder (spec §9 design note (b): an all-zero
// pubkey placeholder is an invalid set, fatal at startup in
// production).
func (c *Config) ValidatorSet() (*types.ValidatorSet, error) {
	if len(c.Consensus.ValidatorsHex) == 0 {
		return nil, fmt.Errorf("%w: [consensus] validators_hex is empty", ErrNoValidators)
	}
	keys := make([]types.PubKey, 0, len(c.Consensus.ValidatorsHex))
	for _, h := range c.Consensus.ValidatorsHex {
		k, err := decodeHexPubKey(h)
		if err != nil {
			return nil, fmt.Errorf("%w: validators_hex entry %q: %v", ErrNoValidators, h, err)
		}
		keys = append(keys, k)
	}
	vs, err := types.NewValidatorSet(c.Consensus.Epoch, keys)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoValidators, err)
	}
	return vs, nil
}

// GossipConfig builds the gossip.Config this node's [p2p] section
// describes.
func (c *Config) GossipConfig() gossip.Config {
	return gossip.Config{
		ListenAddr:   c.P2P.ListenAddr,
		Topic:        c.P2P.Topic,
		MaxWireBytes: gossip.DefaultMaxWireBytes,
		Production:   c.Production,
	}
}

// PeerRegistryPubkey decodes [p2p] peer_registry_pubkey_hex, if set.
func (c *Config) PeerRegistryPubkey() (types.PubKey, bool, error) {
	if c.P2P.PeerRegistryPubkeyHex == "" {
		return types.PubKey{}, false, nil
	}
	k, err := decodeHexPubKey(c.P2P.PeerRegistryPubkeyHex)
	if err != nil {
		return types.PubKey{}, false, fmt.Errorf("%w: peer_registry_pubkey_hex: %v", ErrInvalidConfig, err)
	}
	return k, true, nil
}

func decodeHexPubKey(h string) (types.PubKey, error) {
	var k types.PubKey
	raw, err := hex.DecodeString(h)
	if err != nil {
		return k, err
	}
	if len(raw) != len(k) {
		return k, fmt.Errorf("expected %d bytes, got %d", len(k), len(raw))
	}
	copy(k[:], raw)
	return k, nil
}

// RegistryMaxAge returns the configured freshness window, defaulting
// to 24h when the config omits peer_registry_max_age_ms.
func (c *Config) RegistryMaxAge() time.Duration {
	if c.P2P.PeerRegistryMaxAgeMs == 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.P2P.PeerRegistryMaxAgeMs) * time.Millisecond
}
