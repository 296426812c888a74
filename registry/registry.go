// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package registry loads and verifies the node's optional signed peer
// allowlist (spec §4.7). The on-disk envelope is TOML, matching the
// teacher's own config-file convention (BurntSushi/toml); the
// signature covers a fixed ASCII canonical encoding of the envelope's
// fields, never the TOML bytes themselves, so the signed content is
// independent of the file's on-disk formatting.
package registry

import (
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/amunchain/layer0/crypto"
	"github.com/amunchain/layer0/types"
)

// Envelope is the on-disk and wire representation of a signed peer
// registry.
type Envelope struct {
	Version      uint32   `toml:"version"`
	Network      string   `toml:"network"`
	IssuedAtMs   uint64   `toml:"issued_at_ms"`
	ExpiresAtMs  uint64   `toml:"expires_at_ms"`
	Peers        []string `toml:"peers"`
	SignatureHex string   `toml:"signature_hex"`
}

// Params bundles the runtime checks performed against a loaded
// Envelope (spec §4.7, config keys under [p2p]).
type Params struct {
	PinnedKey  types.PubKey
	Network    string
	MinVersion uint32
	NowMs      uint64
	MaxAgeMs   uint64
	GraceMs    uint64
}

// Load reads and TOML-decodes an envelope from path.
func Load(path string) (*Envelope, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrRegistryInvalid, path, err)
	}
	var e Envelope
	if _, err := toml.Decode(string(raw), &e); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrRegistryInvalid, path, err)
	}
	return &e, nil
}

// SortedPeers returns e.Peers sorted ascending and deduplicated, the
// exact order used both for signing and for the effective allowlist
// (spec §4.7).
func (e *Envelope) SortedPeers() []string {
	uniq := make(map[string]struct{}, len(e.Peers))
	for _, p := range e.Peers {
		uniq[p] = struct{}{}
	}
	out := make([]string, 0, len(uniq))
	for p := range uniq {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// CanonicalBytes builds the exact ASCII signing block (spec §4.7):
//
//	v<version>
//	network=<network>
//	issued_at_ms=<u64 decimal>
//	expires_at_ms=<u64 decimal>
//	peers
//	<peer1>
//	<peer2>
//	...
//
// ending with a trailing newline.
func (e *Envelope) CanonicalBytes() []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "v%d\n", e.Version)
	fmt.Fprintf(&b, "network=%s\n", e.Network)
	fmt.Fprintf(&b, "issued_at_ms=%d\n", e.IssuedAtMs)
	fmt.Fprintf(&b, "expires_at_ms=%d\n", e.ExpiresAtMs)
	b.WriteString("peers\n")
	for _, p := range e.SortedPeers() {
		b.WriteString(p)
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// Verify checks e's signature and its freshness/network-binding
// constraints against p. On success it returns the verified, sorted
// allowlist.
func Verify(e *Envelope, p Params) ([]string, error) {
	sig, err := decodeSig(e.SignatureHex)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRegistryInvalid, err)
	}
	if !crypto.Verify(p.PinnedKey, crypto.DomainRegistry, e.CanonicalBytes(), sig) {
		return nil, fmt.Errorf("%w: signature verification failed", ErrRegistryInvalid)
	}
	if e.Network != p.Network {
		return nil, fmt.Errorf("%w: network mismatch: registry=%s node=%s", ErrRegistryInvalid, e.Network, p.Network)
	}
	if e.Version < p.MinVersion {
		return nil, fmt.Errorf("%w: version %d below minimum %d", ErrRegistryInvalid, e.Version, p.MinVersion)
	}
	if p.NowMs < e.IssuedAtMs || p.NowMs > e.ExpiresAtMs+p.GraceMs {
		return nil, fmt.Errorf("%w: now_ms=%d outside validity window [%d, %d]", ErrRegistryInvalid, p.NowMs, e.IssuedAtMs, e.ExpiresAtMs+p.GraceMs)
	}
	if p.NowMs-e.IssuedAtMs > p.MaxAgeMs {
		return nil, fmt.Errorf("%w: registry age exceeds max_age_ms", ErrRegistryInvalid)
	}
	return e.SortedPeers(), nil
}

func decodeSig(hexStr string) (types.Signature, error) {
	var sig types.Signature
	raw, err := hex.DecodeString(hexStr)
	if err != nil || len(raw) != len(sig) {
		return sig, fmt.Errorf("malformed signature hex")
	}
	copy(sig[:], raw)
	return sig, nil
}

// ResolveAllowlist combines an explicit allow_peers list with a
// verified (or absent) signed registry. In production mode, if the
// combined result is empty, startup must fail with ErrEmptyAllowlist
// (spec §4.7).
func ResolveAllowlist(explicit []string, registryPeers []string, production bool) ([]string, error) {
	uniq := make(map[string]struct{}, len(explicit)+len(registryPeers))
	for _, p := range explicit {
		uniq[p] = struct{}{}
	}
	for _, p := range registryPeers {
		uniq[p] = struct{}{}
	}
	out := make([]string, 0, len(uniq))
	for p := range uniq {
		out = append(out, p)
	}
	sort.Strings(out)

	if production && len(out) == 0 {
		return nil, ErrEmptyAllowlist
	}
	return out, nil
}
