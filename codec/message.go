// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package codec

import (
	"github.com/amunchain/layer0/types"
)

// DefaultMaxBytes is the frame size budget used when callers don't
// have a more specific bound (gossip uses max_wire_bytes instead).
const DefaultMaxBytes = 1 << 20 // 1 MiB

func putHash(e *encoder, h types.Hash) { e.putFixed(h[:]) }

func getHash(d *decoder) (types.Hash, error) {
	b, err := d.getFixed(32)
	if err != nil {
		return types.Hash{}, err
	}
	var h types.Hash
	copy(h[:], b)
	return h, nil
}

func putPubKey(e *encoder, k types.PubKey) { e.putFixed(k[:]) }

func getPubKey(d *decoder) (types.PubKey, error) {
	b, err := d.getFixed(32)
	if err != nil {
		return types.PubKey{}, err
	}
	var k types.PubKey
	copy(k[:], b)
	return k, nil
}

func putSignature(e *encoder, s types.Signature) { e.putFixed(s[:]) }

func getSignature(d *decoder) (types.Signature, error) {
	b, err := d.getFixed(64)
	if err != nil {
		return types.Signature{}, err
	}
	var s types.Signature
	copy(s[:], b)
	return s, nil
}

// EncodeBlock canonically encodes a Block.
func EncodeBlock(b types.Block) []byte {
	e := newEncoder()
	encodeBlock(e, b)
	return e.bytes()
}

func encodeBlock(e *encoder, b types.Block) {
	e.putUint64(b.Epoch)
	e.putUint64(b.Height)
	putHash(e, b.ParentHash)
	putHash(e, b.PayloadRoot)
	putPubKey(e, b.Proposer)
	e.putUint64(b.TimestampMs)
}

// DecodeBlock decodes a Block, rejecting any trailing bytes and
// enforcing maxBytes before allocating any field.
func DecodeBlock(data []byte, maxBytes int) (types.Block, error) {
	d := newDecoder(data, maxBytes)
	b, err := decodeBlock(d)
	if err != nil {
		return types.Block{}, err
	}
	if err := d.finish(); err != nil {
		return types.Block{}, err
	}
	return b, nil
}

func decodeBlock(d *decoder) (types.Block, error) {
	var b types.Block
	var err error
	if b.Epoch, err = d.getUint64(); err != nil {
		return b, err
	}
	if b.Height, err = d.getUint64(); err != nil {
		return b, err
	}
	if b.ParentHash, err = getHash(d); err != nil {
		return b, err
	}
	if b.PayloadRoot, err = getHash(d); err != nil {
		return b, err
	}
	if b.Proposer, err = getPubKey(d); err != nil {
		return b, err
	}
	if b.TimestampMs, err = d.getUint64(); err != nil {
		return b, err
	}
	return b, nil
}

// EncodeVote canonically encodes a Vote.
func EncodeVote(v types.Vote) []byte {
	e := newEncoder()
	encodeVote(e, v)
	return e.bytes()
}

func encodeVote(e *encoder, v types.Vote) {
	e.putUint64(v.Epoch)
	e.putUint64(v.Height)
	putHash(e, v.BlockHash)
	putPubKey(e, v.Voter)
	putSignature(e, v.Signature)
}

// DecodeVote decodes a Vote.
func DecodeVote(data []byte, maxBytes int) (types.Vote, error) {
	d := newDecoder(data, maxBytes)
	v, err := decodeVote(d)
	if err != nil {
		return types.Vote{}, err
	}
	if err := d.finish(); err != nil {
		return types.Vote{}, err
	}
	return v, nil
}

func decodeVote(d *decoder) (types.Vote, error) {
	var v types.Vote
	var err error
	if v.Epoch, err = d.getUint64(); err != nil {
		return v, err
	}
	if v.Height, err = d.getUint64(); err != nil {
		return v, err
	}
	if v.BlockHash, err = getHash(d); err != nil {
		return v, err
	}
	if v.Voter, err = getPubKey(d); err != nil {
		return v, err
	}
	if v.Signature, err = getSignature(d); err != nil {
		return v, err
	}
	return v, nil
}

// EncodeCommit canonically encodes a Commit. Signatures are encoded
// in the order given; callers (tide) are responsible for the
// ascending-by-voter invariant — the codec is agnostic to value
// semantics, only to byte-exactness.
func EncodeCommit(c types.Commit) []byte {
	e := newEncoder()
	encodeCommit(e, c)
	return e.bytes()
}

func encodeCommit(e *encoder, c types.Commit) {
	e.putUint64(c.Epoch)
	e.putUint64(c.Height)
	putHash(e, c.BlockHash)
	e.putUint64(uint64(len(c.Signatures)))
	for _, vs := range c.Signatures {
		putPubKey(e, vs.Voter)
		putSignature(e, vs.Signature)
	}
}

// DecodeCommit decodes a Commit.
func DecodeCommit(data []byte, maxBytes int) (types.Commit, error) {
	d := newDecoder(data, maxBytes)
	c, err := decodeCommit(d)
	if err != nil {
		return types.Commit{}, err
	}
	if err := d.finish(); err != nil {
		return types.Commit{}, err
	}
	return c, nil
}

// signatureEntrySize is the encoded size of one VoterSig (32 + 64).
const signatureEntrySize = 32 + 64

func decodeCommit(d *decoder) (types.Commit, error) {
	var c types.Commit
	var err error
	if c.Epoch, err = d.getUint64(); err != nil {
		return c, err
	}
	if c.Height, err = d.getUint64(); err != nil {
		return c, err
	}
	if c.BlockHash, err = getHash(d); err != nil {
		return c, err
	}
	n, err := d.getUint64()
	if err != nil {
		return c, err
	}
	if n > uint64(d.budget)/signatureEntrySize {
		return c, newErr(KindOversize, "commit signature list exceeds budget")
	}
	sigs := make([]types.VoterSig, 0, n)
	for i := uint64(0); i < n; i++ {
		var vs types.VoterSig
		if vs.Voter, err = getPubKey(d); err != nil {
			return c, err
		}
		if vs.Signature, err = getSignature(d); err != nil {
			return c, err
		}
		sigs = append(sigs, vs)
	}
	c.Signatures = sigs
	return c, nil
}

// Encode canonically encodes a ConsensusMsg tagged union.
func Encode(msg types.ConsensusMsg) []byte {
	e := newEncoder()
	e.putUint8(uint8(msg.Kind))
	switch msg.Kind {
	case types.MsgProposal:
		encodeBlock(e, msg.Proposal)
	case types.MsgVote:
		encodeVote(e, msg.Vote)
	case types.MsgCommit:
		encodeCommit(e, msg.Commit)
	}
	return e.bytes()
}

// Decode decodes a ConsensusMsg, enforcing maxBytes and rejecting
// trailing bytes and invalid tags.
func Decode(data []byte, maxBytes int) (types.ConsensusMsg, error) {
	if len(data) > maxBytes {
		return types.ConsensusMsg{}, newErr(KindOversize, "frame exceeds max bytes")
	}
	d := newDecoder(data, maxBytes)
	if err := d.enterUnion(); err != nil {
		return types.ConsensusMsg{}, err
	}
	defer d.exitUnion()

	tag, err := d.getUint8()
	if err != nil {
		return types.ConsensusMsg{}, err
	}

	var msg types.ConsensusMsg
	switch types.MsgKind(tag) {
	case types.MsgProposal:
		msg.Kind = types.MsgProposal
		if msg.Proposal, err = decodeBlock(d); err != nil {
			return types.ConsensusMsg{}, err
		}
	case types.MsgVote:
		msg.Kind = types.MsgVote
		if msg.Vote, err = decodeVote(d); err != nil {
			return types.ConsensusMsg{}, err
		}
	case types.MsgCommit:
		msg.Kind = types.MsgCommit
		if msg.Commit, err = decodeCommit(d); err != nil {
			return types.ConsensusMsg{}, err
		}
	default:
		return types.ConsensusMsg{}, newErr(KindInvalidTag, "unknown ConsensusMsg tag")
	}

	if err := d.finish(); err != nil {
		return types.ConsensusMsg{}, err
	}
	return msg, nil
}
