// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package keystore loads and stores the validator's Ed25519 private
// key under <data_dir>/validator.key, optionally encrypted at rest
// with a passphrase (spec §4.3).
package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/pbkdf2"
)

// FileName is the validator key's fixed filename under data_dir.
const FileName = "validator.key"

// magic identifies a passphrase-encrypted key file. Plain files are
// raw PKCS#8 DER and never start with this sequence in a way that
// could be confused with it (DER SEQUENCE tags start with 0x30).
var magic = [4]byte{'A', 'E', 'K', '1'}

const (
	saltSize  = 16
	nonceSize = 12

	minIters     = 100_000
	maxIters     = 10_000_000
	defaultIters = 600_000
)

// Path returns the validator key path under dataDir.
func Path(dataDir string) string {
	return filepath.Join(dataDir, FileName)
}

// Iterations returns the PBKDF2 iteration count to use, reading
// AMUNCHAIN_PBKDF2_ITERS and clamping it to [100_000, 10_000_000]
// (spec §4.3, §6).
func Iterations() int {
	raw := os.Getenv("AMUNCHAIN_PBKDF2_ITERS")
	if raw == "" {
		return defaultIters
	}
	var n int
	if _, err := fmt.Sscanf(raw, "%d", &n); err != nil {
		return defaultIters
	}
	if n < minIters {
		return minIters
	}
	if n > maxIters {
		return maxIters
	}
	return n
}

// Passphrase reads AMUNCHAIN_KEY_PASSPHRASE. An empty result means
// "store/load unencrypted".
func Passphrase() string {
	return os.Getenv("AMUNCHAIN_KEY_PASSPHRASE")
}

// Generate creates a new Ed25519 keypair and persists it to dataDir,
// encrypting it iff passphrase is non-empty. Fails if a key already
// exists.
func Generate(dataDir, passphrase string) (ed25519.PublicKey, error) {
	path := Path(dataDir)
	if _, err := os.Stat(path); err == nil {
		return nil, ErrKeyExists
	}
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	if err := save(path, priv, passphrase); err != nil {
		return nil, err
	}
	return pub, nil
}

// Load reads and, if necessary, decrypts the validator key from
// dataDir.
func Load(dataDir, passphrase string) (ed25519.PrivateKey, error) {
	path := Path(dataDir)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoKey
		}
		return nil, err
	}
	return decode(raw, passphrase)
}

// IsEncrypted reports whether the key file at dataDir is
// passphrase-encrypted, without needing the passphrase.
func IsEncrypted(dataDir string) (bool, error) {
	raw, err := os.ReadFile(Path(dataDir))
	if err != nil {
		if os.IsNotExist(err) {
			return false, ErrNoKey
		}
		return false, err
	}
	return len(raw) >= len(magic) && [4]byte(raw[:4]) == magic, nil
}

// PublicKey derives the Ed25519 public key from dataDir's key file
// without requiring the passphrase, iff the file is unencrypted.
// Otherwise it fails with ErrKeyLocked (spec §4.3 --print-peer-id).
func PublicKey(dataDir string) (ed25519.PublicKey, error) {
	encrypted, err := IsEncrypted(dataDir)
	if err != nil {
		return nil, err
	}
	if encrypted {
		return nil, ErrKeyLocked
	}
	priv, err := Load(dataDir, "")
	if err != nil {
		return nil, err
	}
	return priv.Public().(ed25519.PublicKey), nil
}

func save(path string, priv ed25519.PrivateKey, passphrase string) error {
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return err
	}

	var out []byte
	if passphrase == "" {
		out = der
	} else {
		out, err = encrypt(der, passphrase)
		if err != nil {
			return err
		}
	}
	return atomicWriteFile(path, out, 0o600)
}

func decode(raw []byte, passphrase string) (ed25519.PrivateKey, error) {
	if len(raw) >= len(magic) && [4]byte(raw[:4]) == magic {
		if passphrase == "" {
			return nil, ErrKeyLocked
		}
		der, err := decrypt(raw, passphrase)
		if err != nil {
			return nil, err
		}
		return parsePKCS8(der)
	}
	return parsePKCS8(raw)
}

func parsePKCS8(der []byte) (ed25519.PrivateKey, error) {
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("keystore: parse PKCS#8 key: %w", err)
	}
	priv, ok := key.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("keystore: key file does not contain an Ed25519 key")
	}
	return priv, nil
}

// encrypt lays out magic || salt(16) || nonce(12) || AES-256-GCM(der)
// where the AEAD seals ciphertext||tag together (spec §4.3).
func encrypt(der []byte, passphrase string) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	key := pbkdf2.Key([]byte(passphrase), salt, Iterations(), 32, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	sealed := gcm.Seal(nil, nonce, der, nil)

	out := make([]byte, 0, len(magic)+saltSize+nonceSize+len(sealed))
	out = append(out, magic[:]...)
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, sealed...)
	return out, nil
}

func decrypt(raw []byte, passphrase string) ([]byte, error) {
	hdr := len(magic) + saltSize + nonceSize
	if len(raw) < hdr {
		return nil, ErrWrongPassphrase
	}
	salt := raw[len(magic) : len(magic)+saltSize]
	nonce := raw[len(magic)+saltSize : hdr]
	sealed := raw[hdr:]

	key := pbkdf2.Key([]byte(passphrase), salt, Iterations(), 32, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	der, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return der, nil
}

// atomicWriteFile writes data to a temp file in the same directory
// then renames it into place, so a crash never leaves a partially
// written key (spec §4.3, §5).
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".validator.key.tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
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
