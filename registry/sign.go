// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package registry

import (
	"crypto/ed25519"
	"encoding/hex"

	"github.com/amunchain/layer0/crypto"
)

// Sign computes and sets e.SignatureHex over e's canonical bytes using
// priv. It is used by the registry-signing operator tool, not by the
// node itself.
func Sign(e *Envelope, priv ed25519.PrivateKey) {
	sig := crypto.Sign(priv, crypto.DomainRegistry, e.CanonicalBytes())
	e.SignatureHex = hex.EncodeToString(sig[:])
}
