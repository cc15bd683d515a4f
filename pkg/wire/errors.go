// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wire

import "errors"

// Kind enumerates the wire package's error taxonomy; wire errors are
// *Error values carrying a Kind. The lvc and tape packages declare
// their own Kind enums and Error types.
type Kind int

const (
	KindIncomplete Kind = iota
	KindBadFraming
	KindSchemaMissing
	KindTypeMismatch
	KindIoError
	KindOverflow
)

var (
	// ErrIncomplete means the buffer held a partial message; the
	// caller should read more bytes and retry.
	ErrIncomplete = errors.New("wire: incomplete message")

	// ErrBadFraming means framing delimiters were inconsistent;
	// recovery is connection-level, not message-level.
	ErrBadFraming = errors.New("wire: bad framing")

	// ErrSchemaMissing means a fid had no schema entry; the field is
	// elided rather than the whole message failing.
	ErrSchemaMissing = errors.New("wire: fid not in schema")

	// ErrTypeMismatch means the wire type and the schema type
	// disagree; the codec decodes to the wire type and the caller is
	// expected to log it.
	ErrTypeMismatch = errors.New("wire: type mismatch")

	// ErrOverflow means an internal scratch buffer could not grow to
	// hold the requested output.
	ErrOverflow = errors.New("wire: scratch buffer overflow")
)

// Error wraps a Kind with positional/diagnostic context.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }
