// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package state

import "errors"

// ErrStateCorrupt is returned at startup when no on-disk manifest's
// root matches the recomputed root of its paired blob. It is fatal:
// the node must not start against state it cannot trust.
var ErrStateCorrupt = errors.New("state: manifest root does not match recomputed state root")

// ErrKeyNotFound is returned by Prove for a key absent from the
// committed view.
var ErrKeyNotFound = errors.New("state: key not found in committed view")
