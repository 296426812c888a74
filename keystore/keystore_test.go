// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package keystore

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateLoadRoundTripUnencrypted(t *testing.T) {
	dir := t.TempDir()

	pub, err := Generate(dir, "")
	require.NoError(t, err)

	priv, err := Load(dir, "")
	require.NoError(t, err)
	require.Equal(t, pub, priv.Public())

	encrypted, err := IsEncrypted(dir)
	require.NoError(t, err)
	require.False(t, encrypted)

	derivedPub, err := PublicKey(dir)
	require.NoError(t, err)
	require.Equal(t, pub, derivedPub)

	info, err := os.Stat(Path(dir))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestGenerateLoadRoundTripEncrypted(t *testing.T) {
	dir := t.TempDir()

	pub, err := Generate(dir, "correct horse battery staple")
	require.NoError(t, err)

	encrypted, err := IsEncrypted(dir)
	require.NoError(t, err)
	require.True(t, encrypted)

	priv, err := Load(dir, "correct horse battery staple")
	require.NoError(t, err)
	require.Equal(t, pub, priv.Public())
}

func TestLoadWrongPassphrase(t *testing.T) {
	dir := t.TempDir()
	_, err := Generate(dir, "right-passphrase")
	require.NoError(t, err)

	_, err = Load(dir, "wrong-passphrase")
	require.ErrorIs(t, err, ErrWrongPassphrase)
}

func TestPublicKeyFailsWhenLocked(t *testing.T) {
	dir := t.TempDir()
	_, err := Generate(dir, "a-passphrase")
	require.NoError(t, err)

	_, err = PublicKey(dir)
	require.ErrorIs(t, err, ErrKeyLocked)
}

func TestLoadMissingKey(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(dir, "")
	require.ErrorIs(t, err, ErrNoKey)
}

func TestGenerateRefusesToOverwrite(t *testing.T) {
	dir := t.TempDir()
	_, err := Generate(dir, "")
	require.NoError(t, err)

	_, err = Generate(dir, "")
	require.ErrorIs(t, err, ErrKeyExists)
}

func TestIterationsClampedToRange(t *testing.T) {
	t.Setenv("AMUNCHAIN_PBKDF2_ITERS", "1")
	require.Equal(t, minIters, Iterations())

	t.Setenv("AMUNCHAIN_PBKDF2_ITERS", "99999999999")
	require.Equal(t, maxIters, Iterations())

	t.Setenv("AMUNCHAIN_PBKDF2_ITERS", "")
	require.Equal(t, defaultIters, Iterations())
}
