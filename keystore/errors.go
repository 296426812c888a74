// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package keystore

import "errors"

var (
	// ErrKeyLocked is returned when an operation that requires an
	// unencrypted key (e.g. --print-peer-id) is attempted against a
	// passphrase-encrypted key file.
	ErrKeyLocked = errors.New("keystore: key is passphrase-locked")

	// ErrWrongPassphrase is returned when decryption fails.
	ErrWrongPassphrase = errors.New("keystore: wrong passphrase or corrupt key file")

	// ErrNoKey is returned when no key file exists at the expected path.
	ErrNoKey = errors.New("keystore: no validator key at data_dir")

	// ErrKeyExists is returned by Generate when a key file already exists.
	ErrKeyExists = errors.New("keystore: validator key already exists")
)
