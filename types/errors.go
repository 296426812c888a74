// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package types

import "errors"

// Common data-model errors.
var (
	// ErrInvalidValidatorSet is returned when a validator set fails its
	// construction invariants (empty, duplicate, or zero placeholder key).
	ErrInvalidValidatorSet = errors.New("invalid validator set")

	// ErrInvalidBlock is returned when a block fails its height/epoch
	// chaining invariants.
	ErrInvalidBlock = errors.New("invalid block")
)
