// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package codec

import (
	"encoding/binary"
	"unicode/utf8"
)

// MaxUnionDepth bounds how many nested tagged unions a single decode
// may traverse before it is rejected as Oversize (spec §4.1).
const MaxUnionDepth = 4

// encoder is a pure append-only byte builder. Every encode* function
// in this package is a pure function of its input: same value, same
// bytes, every time, on every platform (fixed-width little-endian,
// no padding).
type encoder struct {
	buf []byte
}

func newEncoder() *encoder {
	return &encoder{buf: make([]byte, 0, 128)}
}

func (e *encoder) bytes() []byte { return e.buf }

func (e *encoder) putUint8(v uint8) {
	e.buf = append(e.buf, v)
}

func (e *encoder) putUint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

func (e *encoder) putUint64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

func (e *encoder) putFixed(b []byte) {
	e.buf = append(e.buf, b...)
}

// putVarBytes writes a u64 length prefix followed by the bytes.
func (e *encoder) putVarBytes(b []byte) {
	e.putUint64(uint64(len(b)))
	e.buf = append(e.buf, b...)
}

func (e *encoder) putString(s string) {
	e.putVarBytes([]byte(s))
}

// decoder reads from a fixed byte slice, tracking both the read
// cursor and the caller-supplied byte budget. Every variable-length
// read checks the declared length against that budget before
// allocating (spec §4.1(b): enforce the budget before allocating any
// sequence).
type decoder struct {
	buf       []byte
	pos       int
	budget    int
	depth     int
}

func newDecoder(buf []byte, budget int) *decoder {
	return &decoder{buf: buf, budget: budget}
}

func (d *decoder) remaining() int { return len(d.buf) - d.pos }

func (d *decoder) need(n int) error {
	if n < 0 || d.remaining() < n {
		return newErr(KindTruncated, "not enough bytes")
	}
	return nil
}

func (d *decoder) getUint8() (uint8, error) {
	if err := d.need(1); err != nil {
		return 0, err
	}
	v := d.buf[d.pos]
	d.pos++
	return v, nil
}

func (d *decoder) getUint32() (uint32, error) {
	if err := d.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(d.buf[d.pos:])
	d.pos += 4
	return v, nil
}

func (d *decoder) getUint64() (uint64, error) {
	if err := d.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(d.buf[d.pos:])
	d.pos += 8
	return v, nil
}

func (d *decoder) getFixed(n int) ([]byte, error) {
	if n > d.budget {
		return nil, newErr(KindOversize, "fixed field exceeds budget")
	}
	if err := d.need(n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, d.buf[d.pos:d.pos+n])
	d.pos += n
	return out, nil
}

// getVarBytes reads a u64 length prefix, checks it against the
// caller-supplied budget, THEN allocates and copies.
func (d *decoder) getVarBytes() ([]byte, error) {
	n, err := d.getUint64()
	if err != nil {
		return nil, err
	}
	if n > uint64(d.budget) {
		return nil, newErr(KindOversize, "declared sequence length exceeds budget")
	}
	return d.getFixed(int(n))
}

func (d *decoder) getString() (string, error) {
	b, err := d.getVarBytes()
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", newErr(KindInvalidUTF8, "string field is not valid utf-8")
	}
	return string(b), nil
}

// enterUnion increments the tagged-union nesting depth, failing
// Oversize once MaxUnionDepth is exceeded.
func (d *decoder) enterUnion() error {
	d.depth++
	if d.depth > MaxUnionDepth {
		return newErr(KindOversize, "tagged union nesting exceeds max depth")
	}
	return nil
}

func (d *decoder) exitUnion() {
	d.depth--
}

// finish verifies the whole budgeted input was consumed, rejecting
// any trailing byte beyond the declared structure (spec §4.1(a)).
func (d *decoder) finish() error {
	if d.remaining() != 0 {
		return newErr(KindTrailingBytes, "unconsumed bytes after decode")
	}
	return nil
}
