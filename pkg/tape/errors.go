// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package tape implements the append-only binary journal of wire
// messages, with per-stream and time-bucketed indices supporting
// forward replay and seek-to-timestamp.
package tape

import "errors"

// Kind enumerates the tape-specific slice of the shared error
// taxonomy.
type Kind int

const (
	KindIoError Kind = iota
	KindCorrupt
	KindEOF
)

var (
	// ErrCorrupt means a record's shape invariant (nByte crossing a
	// bucket boundary inconsistently) was violated during replay.
	ErrCorrupt = errors.New("tape: corrupt record")

	// ErrEOF means Read reached the end of the journal, or a partial
	// trailing record was found after an unclean close.
	ErrEOF = errors.New("tape: end of tape")

	// ErrUnknownVariant means DetectVariant could not recognize the
	// header prelude.
	ErrUnknownVariant = errors.New("tape: unrecognized header variant")
)

// Error wraps a Kind with diagnostic context.
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
