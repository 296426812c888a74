// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package types holds the wire-level data model shared by every
// consensus component: blocks, votes, commits, the tagged
// ConsensusMsg union, and validator sets.
package types

import (
	"bytes"
	"crypto/ed25519"
	"fmt"
	"sort"
)

// Hash is a 32-byte digest, always the output of SHA-256 over some
// canonical-encoded value.
type Hash [32]byte

// String renders the hash as lowercase hex.
func (h Hash) String() string {
	return fmt.Sprintf("%x", h[:])
}

// IsZero reports whether h is the zero hash.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// PubKey is a raw Ed25519 public key. Validators are identified by
// this key directly; there is no derived node ID in the data model.
type PubKey [ed25519.PublicKeySize]byte

func (k PubKey) String() string {
	return fmt.Sprintf("%x", k[:])
}

// Bytes returns k as an ed25519.PublicKey for verification.
func (k PubKey) Bytes() ed25519.PublicKey {
	return ed25519.PublicKey(k[:])
}

// PubKeyFromBytes copies a raw Ed25519 public key (as returned by
// ed25519.PrivateKey.Public or decoded from hex) into a PubKey,
// rejecting any length other than ed25519.PublicKeySize.
func PubKeyFromBytes(b []byte) (PubKey, error) {
	var k PubKey
	if len(b) != len(k) {
		return k, fmt.Errorf("pubkey must be %d bytes, got %d", len(k), len(b))
	}
	copy(k[:], b)
	return k, nil
}

// Less orders two keys lexicographically on their byte representation.
// This ordering defines validator-set indexing and canonical commit
// signature order (spec §3 ValidatorSet).
func (k PubKey) Less(other PubKey) bool {
	return bytes.Compare(k[:], other[:]) < 0
}

// Signature is a raw Ed25519 signature. Any length other than 64
// bytes is a verification failure, never a panic (spec §4.2).
type Signature [ed25519.SignatureSize]byte

// Block is the proposal unit of the chain.
//
// Invariant: Height = Parent.Height + 1; Epoch >= Parent.Epoch.
type Block struct {
	Epoch        uint64
	Height       uint64
	ParentHash   Hash
	PayloadRoot  Hash
	Proposer     PubKey
	TimestampMs  uint64
}

// Vote is a single validator's signed endorsement of a block at a
// given slot. Signed over the domain-separated tuple
// ("amunchain/vote/v1", epoch, height, block_hash).
type Vote struct {
	Epoch     uint64
	Height    uint64
	BlockHash Hash
	Voter     PubKey
	Signature Signature
}

// VoterSig pairs a voter with their signature, the unit carried by a
// Commit's signature list.
type VoterSig struct {
	Voter     PubKey
	Signature Signature
}

// Commit is a finality certificate: quorum-many individually valid
// signatures over the same block hash, sorted ascending by voter
// public key bytes with no duplicates.
type Commit struct {
	Epoch      uint64
	Height     uint64
	BlockHash  Hash
	Signatures []VoterSig
}

// SortedAndDeduped reports whether c.Signatures is strictly ascending
// by voter bytes with no duplicate voters (spec §3 Commit invariant).
func (c *Commit) SortedAndDeduped() bool {
	for i := 1; i < len(c.Signatures); i++ {
		if !c.Signatures[i-1].Voter.Less(c.Signatures[i].Voter) {
			return false
		}
	}
	return true
}

// MsgKind tags the variant held by a ConsensusMsg.
type MsgKind uint8

const (
	MsgProposal MsgKind = iota + 1
	MsgVote
	MsgCommit
)

func (k MsgKind) String() string {
	switch k {
	case MsgProposal:
		return "proposal"
	case MsgVote:
		return "vote"
	case MsgCommit:
		return "commit"
	default:
		return "unknown"
	}
}

// ConsensusMsg is the tagged union carried by every frame on the
// consensus gossip topic. Exactly one of Proposal/Vote/Commit is set,
// matching Kind.
type ConsensusMsg struct {
	Kind     MsgKind
	Proposal Block
	Vote     Vote
	Commit   Commit
}

// ValidatorSet is the ordered, fixed-per-epoch sequence of validator
// public keys. Ordering is lexicographic on pubkey bytes; this
// ordering defines the canonical commit signature order and the
// round-robin proposer schedule (height mod N).
type ValidatorSet struct {
	Epoch      uint64
	Validators []PubKey
}

// NewValidatorSet builds a ValidatorSet from an arbitrary-order key
// list, sorting and rejecting duplicates or all-zero placeholder keys
// (Design Note (b): a zero pubkey placeholder makes the set invalid).
func NewValidatorSet(epoch uint64, keys []PubKey) (*ValidatorSet, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: empty validator set", ErrInvalidValidatorSet)
	}
	sorted := make([]PubKey, len(keys))
	copy(sorted, keys)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Less(sorted[j]) })
	var zero PubKey
	for i, k := range sorted {
		if k == zero {
			return nil, fmt.Errorf("%w: zero placeholder key", ErrInvalidValidatorSet)
		}
		if i > 0 && sorted[i-1] == k {
			return nil, fmt.Errorf("%w: duplicate key %s", ErrInvalidValidatorSet, k)
		}
	}
	return &ValidatorSet{Epoch: epoch, Validators: sorted}, nil
}

// N is the validator set size.
func (vs *ValidatorSet) N() int {
	return len(vs.Validators)
}

// Quorum is floor(2N/3)+1, the number of signatures required for a
// finality certificate (spec GLOSSARY).
func (vs *ValidatorSet) Quorum() int {
	return Quorum(vs.N())
}

// Quorum computes floor(2N/3)+1 for a validator set of size n: the
// smallest signer count that is strictly more than two-thirds of N
// (e.g. 4 validators need 3 signatures, not 4).
func Quorum(n int) int {
	return (2*n)/3 + 1
}

// Has reports whether k is a member of the set.
func (vs *ValidatorSet) Has(k PubKey) bool {
	_, ok := vs.Index(k)
	return ok
}

// Index returns the position of k in the sorted validator list.
func (vs *ValidatorSet) Index(k PubKey) (int, bool) {
	for i, v := range vs.Validators {
		if v == k {
			return i, true
		}
	}
	return 0, false
}

// Proposer returns the designated proposer for height under
// round-robin scheduling on the sorted validator list.
func (vs *ValidatorSet) Proposer(height uint64) PubKey {
	n := uint64(len(vs.Validators))
	return vs.Validators[height%n]
}
