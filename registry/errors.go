// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package registry

import "errors"

// ErrRegistryInvalid covers every way a loaded registry envelope can
// fail verification: bad signature, wrong network, stale version, or
// outside its validity window (spec §4.7).
var ErrRegistryInvalid = errors.New("registry: invalid peer registry")

// ErrEmptyAllowlist is fatal at startup in production mode when both
// the explicit allow_peers list and the signed registry are empty or
// invalid (spec §4.7).
var ErrEmptyAllowlist = errors.New("registry: no valid peer allowlist available")
