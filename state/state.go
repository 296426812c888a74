// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package state implements the node's key-value store and its
// deterministic Merkle commitment (spec §4.4). Keys are held in an
// ordered in-memory tree so that committed leaves are always taken in
// ascending key order without an explicit sort pass per commit.
package state

import (
	"bytes"
	"sync"

	"github.com/google/btree"

	"github.com/amunchain/layer0/types"
)

type entry struct {
	key, value []byte
}

func lessEntry(a, b entry) bool {
	return bytes.Compare(a.key, b.key) < 0
}

// State is the mutable key-value store backing a validator's
// consensus-committed application state.
type State struct {
	mu sync.RWMutex

	tree *btree.BTreeG[entry]

	height uint64
	root   types.Hash

	// committed is the ordered (K,V) snapshot as of the last Commit,
	// used to answer Prove without racing concurrent mutation.
	committedKeys   [][]byte
	committedValues [][]byte
	committedLeaves []types.Hash
}

// New returns an empty State.
func New() *State {
	return &State{
		tree: btree.NewG(32, lessEntry),
	}
}

// Get returns the current (possibly uncommitted) value for k.
func (s *State) Get(k []byte) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.tree.Get(entry{key: k})
	if !ok {
		return nil, false
	}
	return e.value, true
}

// Put sets k to v.
func (s *State) Put(k, v []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tree.ReplaceOrInsert(entry{key: append([]byte(nil), k...), value: append([]byte(nil), v...)})
}

// Delete removes k, if present.
func (s *State) Delete(k []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tree.Delete(entry{key: k})
}

// Height returns the height of the last Commit.
func (s *State) Height() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.height
}

// Root returns the state root of the last Commit.
func (s *State) Root() types.Hash {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.root
}

// Commit computes the Merkle root over the current (K,V) pairs taken
// in ascending key order, records it as the committed view at height,
// and returns it (spec §4.4).
func (s *State) Commit(height uint64) types.Hash {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([][]byte, 0, s.tree.Len())
	values := make([][]byte, 0, s.tree.Len())
	leaves := make([]types.Hash, 0, s.tree.Len())

	s.tree.Ascend(func(e entry) bool {
		keys = append(keys, e.key)
		values = append(values, e.value)
		leaves = append(leaves, leafHash(e.key, e.value))
		return true
	})

	root := merkleRoot(leaves)

	s.height = height
	s.root = root
	s.committedKeys = keys
	s.committedValues = values
	s.committedLeaves = leaves
	return root
}

// Prove returns an inclusion proof for k against the last Commit's
// root. ErrKeyNotFound if k is absent from the committed view (a key
// put after the last Commit has no proof until committed again).
func (s *State) Prove(k []byte) (Proof, []byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i, ck := range s.committedKeys {
		if bytes.Equal(ck, k) {
			return buildProof(s.committedLeaves, i), s.committedValues[i], nil
		}
	}
	return Proof{}, nil, ErrKeyNotFound
}
