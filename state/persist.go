// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/amunchain/layer0/types"
)

// Fixed filenames for the two files a commit writes under data_dir
// (spec §4.4, §6): the serialized KV blob and its manifest.
const (
	BlobFileName     = "state.bin"
	ManifestFileName = "state.manifest"
)

// manifest is the small fixed-layout file pairing a blob with the
// root it is supposed to produce: root(32) || height(8).
const manifestSize = 32 + 8

// Persist writes the committed (K,V) view and its manifest to
// dataDir, each via write-temp-then-fsync-then-rename so a crash
// mid-write never leaves a visible partial commit (spec §4.4, §5).
func (s *State) Persist(dataDir string) error {
	s.mu.RLock()
	keys := s.committedKeys
	values := s.committedValues
	root := s.root
	height := s.height
	s.mu.RUnlock()

	blob := encodeBlob(keys, values)
	if err := atomicWriteFile(filepath.Join(dataDir, BlobFileName), blob); err != nil {
		return fmt.Errorf("state: write blob: %w", err)
	}

	man := encodeManifest(root, height)
	if err := atomicWriteFile(filepath.Join(dataDir, ManifestFileName), man); err != nil {
		return fmt.Errorf("state: write manifest: %w", err)
	}
	return nil
}

// Load reads the blob and manifest from dataDir and reconstructs a
// State. If either file is absent, an empty State is returned (fresh
// start). If both are present but the recomputed root does not match
// the manifest's root, ErrStateCorrupt is returned — fatal at startup
// per spec §5.
func Load(dataDir string) (*State, error) {
	blobPath := filepath.Join(dataDir, BlobFileName)
	manifestPath := filepath.Join(dataDir, ManifestFileName)

	blobRaw, err := os.ReadFile(blobPath)
	if os.IsNotExist(err) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("state: read blob: %w", err)
	}

	manRaw, err := os.ReadFile(manifestPath)
	if os.IsNotExist(err) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("state: read manifest: %w", err)
	}

	wantRoot, height, err := decodeManifest(manRaw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStateCorrupt, err)
	}

	keys, values, err := decodeBlob(blobRaw)
	if err != nil {
		return nil, fmt.Errorf("state: decode blob: %w", err)
	}

	s := New()
	leaves := make([]types.Hash, len(keys))
	for i := range keys {
		s.tree.ReplaceOrInsert(entry{key: keys[i], value: values[i]})
		leaves[i] = leafHash(keys[i], values[i])
	}
	gotRoot := merkleRoot(leaves)
	if gotRoot != wantRoot {
		return nil, ErrStateCorrupt
	}

	s.height = height
	s.root = gotRoot
	s.committedKeys = keys
	s.committedValues = values
	s.committedLeaves = leaves
	return s, nil
}

func encodeBlob(keys, values [][]byte) []byte {
	out := make([]byte, 0, 1024)
	out = appendUint64(out, uint64(len(keys)))
	for i := range keys {
		out = appendUint64(out, uint64(len(keys[i])))
		out = append(out, keys[i]...)
		out = appendUint64(out, uint64(len(values[i])))
		out = append(out, values[i]...)
	}
	return out
}

func decodeBlob(buf []byte) (keys, values [][]byte, err error) {
	pos := 0
	readUint64 := func() (uint64, error) {
		if pos+8 > len(buf) {
			return 0, fmt.Errorf("truncated blob")
		}
		v := binary.LittleEndian.Uint64(buf[pos : pos+8])
		pos += 8
		return v, nil
	}
	readBytes := func(n uint64) ([]byte, error) {
		if uint64(pos)+n > uint64(len(buf)) {
			return nil, fmt.Errorf("truncated blob")
		}
		out := make([]byte, n)
		copy(out, buf[pos:pos+int(n)])
		pos += int(n)
		return out, nil
	}

	count, err := readUint64()
	if err != nil {
		return nil, nil, err
	}
	keys = make([][]byte, 0, count)
	values = make([][]byte, 0, count)
	for i := uint64(0); i < count; i++ {
		kLen, err := readUint64()
		if err != nil {
			return nil, nil, err
		}
		k, err := readBytes(kLen)
		if err != nil {
			return nil, nil, err
		}
		vLen, err := readUint64()
		if err != nil {
			return nil, nil, err
		}
		v, err := readBytes(vLen)
		if err != nil {
			return nil, nil, err
		}
		keys = append(keys, k)
		values = append(values, v)
	}
	if pos != len(buf) {
		return nil, nil, fmt.Errorf("trailing bytes in blob")
	}
	return keys, values, nil
}

func encodeManifest(root types.Hash, height uint64) []byte {
	out := make([]byte, manifestSize)
	copy(out[:32], root[:])
	binary.LittleEndian.PutUint64(out[32:40], height)
	return out
}

func decodeManifest(buf []byte) (types.Hash, uint64, error) {
	if len(buf) != manifestSize {
		return types.Hash{}, 0, fmt.Errorf("manifest has wrong size %d", len(buf))
	}
	var root types.Hash
	copy(root[:], buf[:32])
	height := binary.LittleEndian.Uint64(buf[32:40])
	return root, height, nil
}

// atomicWriteFile writes data to path via a same-directory temp file,
// fsync, then rename (spec §4.4, §5).
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".state-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
