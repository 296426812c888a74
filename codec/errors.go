// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package codec

import (
	"errors"
	"fmt"
)

// Kind enumerates the closed set of ways a decode can fail.
type Kind uint8

const (
	_ Kind = iota
	KindTruncated
	KindTrailingBytes
	KindOversize
	KindInvalidTag
	KindInvalidUTF8
)

func (k Kind) String() string {
	switch k {
	case KindTruncated:
		return "truncated"
	case KindTrailingBytes:
		return "trailing_bytes"
	case KindOversize:
		return "oversize"
	case KindInvalidTag:
		return "invalid_tag"
	case KindInvalidUTF8:
		return "invalid_utf8"
	default:
		return "unknown"
	}
}

// Error is a codec failure tagged with its Kind so callers can branch
// on errors.Is against the sentinel below without string matching.
type Error struct {
	Kind   Kind
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return "codec: " + e.Kind.String()
	}
	return fmt.Sprintf("codec: %s: %s", e.Kind, e.Detail)
}

// Is reports equality by Kind so errors.Is(err, codec.ErrOversize) works
// regardless of Detail.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

func newErr(kind Kind, detail string) error {
	return &Error{Kind: kind, Detail: detail}
}

// Sentinels for errors.Is comparisons against a bare Kind.
var (
	ErrTruncated     = &Error{Kind: KindTruncated}
	ErrTrailingBytes = &Error{Kind: KindTrailingBytes}
	ErrOversize      = &Error{Kind: KindOversize}
	ErrInvalidTag    = &Error{Kind: KindInvalidTag}
	ErrInvalidUTF8   = &Error{Kind: KindInvalidUTF8}
)
