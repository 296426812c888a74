// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package crypto provides the node's primitive cryptographic
// operations: SHA-256 hashing and Ed25519 signing/verification, both
// with the domain separation the consensus protocol relies on.
//
// Plain Ed25519 has no representation among the teacher's own crypto
// subpackages (crypto/bls targets BLS aggregate signatures,
// crypto/pq targets post-quantum Ringtail signatures — both
// different curves and schemes than the spec calls for), so this
// package is built directly on the standard library, which is the
// canonical, audited implementation of RFC 8032.
package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"

	"github.com/amunchain/layer0/types"
)

// Domain separation labels. Every signed payload is prefixed with one
// of these before hashing/signing (spec §4.2).
const (
	DomainVote     = "amunchain/vote/v1"
	DomainCommit   = "amunchain/commit/v1"
	DomainRegistry = "amunchain/registry/v1"
)

// SHA256 hashes b and returns the 32-byte digest.
func SHA256(b []byte) types.Hash {
	return types.Hash(sha256.Sum256(b))
}

// GenerateKey produces a fresh Ed25519 keypair.
func GenerateKey() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	return ed25519.GenerateKey(rand.Reader)
}

// Sign signs domain||0x00||msg with priv, returning a fixed-size
// Signature.
func Sign(priv ed25519.PrivateKey, domain string, msg []byte) types.Signature {
	payload := domainPayload(domain, msg)
	sig := ed25519.Sign(priv, payload)
	var out types.Signature
	copy(out[:], sig)
	return out
}

// Verify checks sig over domain||0x00||msg under pub. A signature of any
// length other than 64 bytes is a verification failure, never a
// panic (spec §4.2) — enforced here by the fixed-size Signature type
// itself, which cannot hold any other length.
func Verify(pub types.PubKey, domain string, msg []byte, sig types.Signature) bool {
	payload := domainPayload(domain, msg)
	return ed25519.Verify(pub.Bytes(), payload, sig[:])
}

func domainPayload(domain string, msg []byte) []byte {
	out := make([]byte, 0, len(domain)+1+len(msg))
	out = append(out, domain...)
	out = append(out, 0x00)
	out = append(out, msg...)
	return out
}

// HashBlock returns the canonical block hash: SHA-256 over the
// canonical-encoded bytes of the block (spec §4.2).
func HashBlock(encodedBlock []byte) types.Hash {
	return SHA256(encodedBlock)
}

// VotePayload builds the fixed-layout tuple (epoch, height,
// block_hash) signed under DomainVote (spec §3 Vote).
func VotePayload(epoch, height uint64, blockHash types.Hash) []byte {
	return tuplePayload(epoch, height, blockHash)
}

// SignVote signs a Vote's (epoch, height, block_hash) tuple.
func SignVote(priv ed25519.PrivateKey, epoch, height uint64, blockHash types.Hash) types.Signature {
	return Sign(priv, DomainVote, VotePayload(epoch, height, blockHash))
}

// VerifyVote verifies a Vote's signature.
func VerifyVote(v types.Vote) bool {
	return Verify(v.Voter, DomainVote, VotePayload(v.Epoch, v.Height, v.BlockHash), v.Signature)
}

func tuplePayload(epoch, height uint64, blockHash types.Hash) []byte {
	out := make([]byte, 8+8+32)
	binary.LittleEndian.PutUint64(out[0:8], epoch)
	binary.LittleEndian.PutUint64(out[8:16], height)
	copy(out[16:48], blockHash[:])
	return out
}
