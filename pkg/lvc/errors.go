// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package lvc implements the memory-mapped Last Value Cache: a
// reader-writer shared file mapping (service, ticker) to the latest
// field image for microsecond-latency bulk snapshots.
package lvc

import "errors"

// Kind enumerates the lvc package's error categories.
type Kind int

const (
	KindIoError Kind = iota
	KindLocked
	KindCorrupt
)

var (
	// ErrLocked means the named writer lock wait exceeded the
	// deadline; callers should retry, the store never retries
	// internally.
	ErrLocked = errors.New("lvc: writer lock timed out")

	// ErrNotFound means Snap found no record for (svc, tkr).
	ErrNotFound = errors.New("lvc: stream not found")

	// ErrCorrupt means the file's signature, schema or record chain
	// failed a structural check on Open.
	ErrCorrupt = errors.New("lvc: corrupt store")
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
