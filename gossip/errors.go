// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package gossip

import "errors"

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("gossip: host is closed")
