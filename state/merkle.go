// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/amunchain/layer0/types"
)

// Domain separation prefixes for Merkle leaf and internal node
// hashing. Frozen per spec Design Note (c): any change to these
// bytes changes every state_root ever produced.
var (
	leafPrefix = []byte("leaf")
	nodePrefix = []byte("node")
)

// Proof is the sibling hash chain from a leaf up to the root, plus
// the leaf's index in the committed ordering.
type Proof struct {
	Index    int
	Siblings []types.Hash
}

func leafHash(k, v []byte) types.Hash {
	buf := make([]byte, 0, len(leafPrefix)+8+len(k)+8+len(v))
	buf = append(buf, leafPrefix...)
	buf = appendUint64(buf, uint64(len(k)))
	buf = append(buf, k...)
	buf = appendUint64(buf, uint64(len(v)))
	buf = append(buf, v...)
	return sha256.Sum256(buf)
}

func nodeHash(left, right types.Hash) types.Hash {
	buf := make([]byte, 0, len(nodePrefix)+64)
	buf = append(buf, nodePrefix...)
	buf = append(buf, left[:]...)
	buf = append(buf, right[:]...)
	return sha256.Sum256(buf)
}

func appendUint64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

// merkleRoot builds the tree over leaves (in the given, already
// sorted-by-key order) and returns the root. An odd trailing leaf is
// duplicated at each level (spec §4.4).
func merkleRoot(leaves []types.Hash) types.Hash {
	if len(leaves) == 0 {
		return types.Hash{}
	}
	level := leaves
	for len(level) > 1 {
		next := make([]types.Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, nodeHash(level[i], level[i+1]))
			} else {
				next = append(next, nodeHash(level[i], level[i]))
			}
		}
		level = next
	}
	return level[0]
}

// buildProof returns the sibling chain for the leaf at idx.
func buildProof(leaves []types.Hash, idx int) Proof {
	siblings := make([]types.Hash, 0)
	level := leaves
	pos := idx
	for len(level) > 1 {
		var sibling types.Hash
		if pos%2 == 0 {
			if pos+1 < len(level) {
				sibling = level[pos+1]
			} else {
				sibling = level[pos]
			}
		} else {
			sibling = level[pos-1]
		}
		siblings = append(siblings, sibling)

		next := make([]types.Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, nodeHash(level[i], level[i+1]))
			} else {
				next = append(next, nodeHash(level[i], level[i]))
			}
		}
		level = next
		pos /= 2
	}
	return Proof{Index: idx, Siblings: siblings}
}

// Verify recomputes the root from a (K,V) leaf and its proof and
// reports whether it matches root.
func Verify(root types.Hash, k, v []byte, proof Proof) bool {
	cur := leafHash(k, v)
	pos := proof.Index
	for _, sibling := range proof.Siblings {
		if pos%2 == 0 {
			cur = nodeHash(cur, sibling)
		} else {
			cur = nodeHash(sibling, cur)
		}
		pos /= 2
	}
	return cur == root
}
