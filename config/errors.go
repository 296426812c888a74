// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package config

import "errors"

var (
	// ErrInvalidConfig wraps every way a loaded TOML file can fail the
	// node's structural and cross-field validation (spec §6, §9 design
	// note (b)).
	ErrInvalidConfig = errors.New("config: invalid configuration")

	// ErrNoValidators is returned when [consensus] validators_hex is
	// empty or fails to parse into a valid ValidatorSet.
	ErrNoValidators = errors.New("config: no usable validator set")
)
