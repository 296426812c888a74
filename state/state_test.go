// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCommitDeterministic(t *testing.T) {
	s1, s2 := New(), New()
	for _, kv := range [][2]string{{"b", "2"}, {"a", "1"}, {"c", "3"}} {
		s1.Put([]byte(kv[0]), []byte(kv[1]))
	}
	for _, kv := range [][2]string{{"c", "3"}, {"a", "1"}, {"b", "2"}} {
		s2.Put([]byte(kv[0]), []byte(kv[1]))
	}
	require.Equal(t, s1.Commit(1), s2.Commit(1), "root must not depend on insertion order")
}

func TestProveVerify(t *testing.T) {
	s := New()
	s.Put([]byte("alpha"), []byte("1"))
	s.Put([]byte("beta"), []byte("2"))
	s.Put([]byte("gamma"), []byte("3"))
	root := s.Commit(1)

	proof, v, err := s.Prove([]byte("beta"))
	require.NoError(t, err)
	require.Equal(t, []byte("2"), v)
	require.True(t, Verify(root, []byte("beta"), v, proof))

	require.False(t, Verify(root, []byte("beta"), []byte("tampered"), proof))
}

func TestProveOddLeafCount(t *testing.T) {
	s := New()
	for i := 0; i < 5; i++ {
		s.Put([]byte(fmt.Sprintf("k%d", i)), []byte(fmt.Sprintf("v%d", i)))
	}
	root := s.Commit(1)
	for i := 0; i < 5; i++ {
		k := []byte(fmt.Sprintf("k%d", i))
		proof, v, err := s.Prove(k)
		require.NoError(t, err)
		require.True(t, Verify(root, k, v, proof))
	}
}

func TestProveMissingKey(t *testing.T) {
	s := New()
	s.Put([]byte("a"), []byte("1"))
	s.Commit(1)
	_, _, err := s.Prove([]byte("missing"))
	require.ErrorIs(t, err, ErrKeyNotFound)
}

func TestPersistLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	s := New()
	for i := 0; i < 1000; i++ {
		s.Put([]byte(fmt.Sprintf("key-%04d", i)), []byte(fmt.Sprintf("val-%04d", i)))
	}
	wantRoot := s.Commit(42)
	require.NoError(t, s.Persist(dir))

	loaded, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, wantRoot, loaded.Root())
	require.Equal(t, uint64(42), loaded.Height())

	v, ok := loaded.Get([]byte("key-0500"))
	require.True(t, ok)
	require.Equal(t, []byte("val-0500"), v)
}

func TestLoadFreshDataDir(t *testing.T) {
	dir := t.TempDir()
	s, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, uint64(0), s.Height())
}

func TestLoadDetectsCorruption(t *testing.T) {
	dir := t.TempDir()

	s := New()
	s.Put([]byte("a"), []byte("1"))
	s.Commit(1)
	require.NoError(t, s.Persist(dir))

	// Corrupt the manifest's root without updating the blob.
	manPath := filepath.Join(dir, ManifestFileName)
	raw, err := os.ReadFile(manPath)
	require.NoError(t, err)
	raw[0] ^= 0xFF
	require.NoError(t, os.WriteFile(manPath, raw, 0o600))

	_, err = Load(dir)
	require.ErrorIs(t, err, ErrStateCorrupt)
}
