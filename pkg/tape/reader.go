// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tape

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"

	"github.com/mdcore/mdd/internal/mdlog"
)

// mapFileReadOnly and unmapFile are declared in mmap_unix.go (build-tagged
// //go:build unix, shared with pkg/lvc's mmap strategy).

// Record is one decoded journal entry handed back by Read.
type Record struct {
	TSec      uint32
	TUsec     uint32
	Svc, Tkr  string
	ChannelID int32
	Loc       uint64
	LocImg    uint64
	Payload   []byte // borrowed: valid until the next Read call
}

// TapeReader replays a tape forward or seeks to a timestamp. A single
// instance is not safe for concurrent use; multiple readers may map
// the same file concurrently.
type TapeReader struct {
	mu   sync.Mutex
	file *os.File
	data []byte

	hdr     Header
	streams map[StreamKey]streamEntry
	coarse  *timeIndex
	fine    *timeIndex

	pos uint64 // current journal read offset
}

// Open maps path read-only and loads its header and indices.
func Open(path string) (*TapeReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &Error{Kind: KindIoError, Msg: "tape: open", Err: err}
	}
	r := &TapeReader{file: f}
	if err := r.mapAndLoad(); err != nil {
		f.Close()
		return nil, err
	}
	r.pos = r.hdr.JournalOff
	return r, nil
}

func (r *TapeReader) mapAndLoad() error {
	fi, err := r.file.Stat()
	if err != nil {
		return &Error{Kind: KindIoError, Msg: "tape: stat", Err: err}
	}
	data, err := mapFileReadOnly(r.file, int(fi.Size()))
	if err != nil {
		return &Error{Kind: KindIoError, Msg: "tape: map", Err: err}
	}
	hdr, err := ReadHeader(data)
	if err != nil {
		unmapFile(data)
		return &Error{Kind: KindCorrupt, Msg: "tape: read header", Err: err}
	}

	streams := make(map[StreamKey]streamEntry)
	for off := int(hdr.StreamIdxOff); off+streamEntryBytes <= int(hdr.CoarseIdxOff); off += streamEntryBytes {
		k, e := decodeStreamEntry(data[off : off+streamEntryBytes])
		if k.Svc == "" && k.Tkr == "" {
			continue
		}
		streams[k] = e
	}

	coarse := loadTimeIndex(data, int64(hdr.CoarseIdxOff), hdr.SecPerIdxT, hdr.NumSecIdxT)
	fine := loadTimeIndex(data, int64(hdr.RecIdxOff), hdr.SecPerIdxR, hdr.NumSecIdxR)

	if r.data != nil {
		unmapFile(r.data)
	}
	r.data = data
	r.hdr = hdr
	r.streams = streams
	r.coarse = coarse
	r.fine = fine
	return nil
}

func loadTimeIndex(data []byte, off int64, secPerIdx, n uint32) *timeIndex {
	ti := newTimeIndex(secPerIdx, n)
	for i := range ti.buckets {
		p := int(off) + i*8
		if p+8 > len(data) {
			break
		}
		ti.buckets[i] = binary.LittleEndian.Uint64(data[p : p+8])
	}
	return ti
}

// Remap grows the mapped region if the tape's tail has advanced.
// Readers may map concurrently with a writer but must remap whenever
// they detect tail growth.
func (r *TapeReader) Remap() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	fi, err := r.file.Stat()
	if err != nil {
		return &Error{Kind: KindIoError, Msg: "tape: stat on remap", Err: err}
	}
	if fi.Size() <= int64(len(r.data)) {
		return nil
	}
	return r.mapAndLoad()
}

// Rewind resets the read cursor to the start of the journal and
// reports the first record's tMsg (unix seconds), or ok=false if the
// journal is empty.
func (r *TapeReader) Rewind() (ts uint32, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pos = r.hdr.JournalOff
	rh, _, ok := r.peekRecHdrLocked(r.pos)
	if !ok {
		return 0, false
	}
	return uint32(rh.tSec), true
}

// RewindTo positions the cursor so the next Read returns the first
// record with tMsg >= t (unix seconds) and reports that record's
// tMsg, or ok=false if no such record exists. It uses the fine index
// when t falls within its window and falls back to the coarse index
// otherwise, then the journal start if neither index has a hint or
// the hint's record is later than t, and from there linearly scans
// forward skipping records with
// tMsg < t — the index only narrows the starting point, since a
// bucket may be empty or t may fall strictly between two hints.
func (r *TapeReader) RewindTo(t uint32) (ts uint32, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	off := r.hdr.JournalOff
	if uint64(t) > r.hdr.TapeStart {
		relSec := uint64(t) - r.hdr.TapeStart
		fineWindow := uint64(r.fine.secPerIdx) * uint64(len(r.fine.buckets))
		if hint, found := r.fine.hint(relSec); found && relSec < fineWindow {
			off = hint
		} else if hint, found := r.coarse.hint(relSec); found {
			off = hint
		}
		// A hint taken from a wrapped ring slot can lie past t; scan
		// from the journal start instead.
		if rh, _, found := r.peekRecHdrLocked(off); found && uint32(rh.tSec) > t {
			off = r.hdr.JournalOff
		}
	}

	for {
		rh, bodyEnd, found := r.peekRecHdrLocked(off)
		if !found {
			r.pos = off
			return 0, false
		}
		if uint32(rh.tSec) >= t {
			r.pos = off
			return uint32(rh.tSec), true
		}
		off = bodyEnd
	}
}

// peekRecHdrLocked decodes the record header at off without advancing
// the read cursor, returning the header, the offset just past the
// record body, and whether a complete record was found there. Caller
// must hold r.mu.
func (r *TapeReader) peekRecHdrLocked(off uint64) (recHdr, uint64, bool) {
	if off >= r.hdr.FreeIdx || off+recHdrBytes > uint64(len(r.data)) {
		return recHdr{}, 0, false
	}
	rh, err := decodeRecHdr(r.data[off:])
	if err != nil {
		return recHdr{}, 0, false
	}
	bodyEnd := off + recHdrBytes + rh.nByte
	if bodyEnd > r.hdr.FreeIdx || bodyEnd > uint64(len(r.data)) {
		return recHdr{}, 0, false
	}
	return rh, bodyEnd, true
}

// Read returns the next record in journal order, advancing the
// cursor past it. It returns ErrEOF at the end of the tape, including
// when a partial trailing record from an unclean close is encountered:
// replay stops there rather than erroring further.
func (r *TapeReader) Read() (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pos >= r.hdr.FreeIdx {
		return Record{}, ErrEOF
	}
	if r.pos+recHdrBytes > uint64(len(r.data)) {
		return Record{}, ErrEOF
	}

	rh, err := decodeRecHdr(r.data[r.pos:])
	if err != nil {
		return Record{}, ErrEOF
	}
	bodyStart := r.pos + recHdrBytes
	bodyEnd := bodyStart + rh.nByte
	if bodyEnd > r.hdr.FreeIdx || bodyEnd > uint64(len(r.data)) {
		mdlog.Warnf("[TAPE] record at %d has nByte=%d crossing journal bound, stopping replay", r.pos, rh.nByte)
		return Record{}, fmt.Errorf("%w: record at offset %d overruns journal", ErrCorrupt, r.pos)
	}

	rec := Record{
		TSec: uint32(rh.tSec), TUsec: rh.tUsec,
		Svc: rh.svc, Tkr: rh.tkr, ChannelID: rh.channelID,
		Loc: rh.loc, LocImg: rh.locImg,
		Payload: r.data[bodyStart:bodyEnd],
	}
	r.pos = bodyEnd
	return rec, nil
}

// LastImage returns the most recent Image record for (svc,tkr), or
// false if no Image has been seen for that stream. Uses the
// streamEntry's `locImg` field for a direct seek.
func (r *TapeReader) LastImage(svc, tkr string) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.streams[StreamKey{Svc: svc, Tkr: tkr}]
	if !ok || e.LocImg == 0 {
		return Record{}, false
	}
	if e.LocImg+recHdrBytes > uint64(len(r.data)) {
		return Record{}, false
	}
	rh, err := decodeRecHdr(r.data[e.LocImg:])
	if err != nil {
		return Record{}, false
	}
	bodyStart := e.LocImg + recHdrBytes
	bodyEnd := bodyStart + rh.nByte
	if bodyEnd > uint64(len(r.data)) {
		return Record{}, false
	}
	return Record{
		TSec: uint32(rh.tSec), TUsec: rh.tUsec,
		Svc: rh.svc, Tkr: rh.tkr, ChannelID: rh.channelID,
		Loc: rh.loc, LocImg: rh.locImg,
		Payload: r.data[bodyStart:bodyEnd],
	}, true
}

// CleanClose reports whether the tape's sentinel marks a clean close.
func (r *TapeReader) CleanClose() bool {
	return r.hdr.CleanClose()
}

// Close unmaps the tape and releases the file handle.
func (r *TapeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.data != nil {
		unmapFile(r.data)
		r.data = nil
	}
	return r.file.Close()
}
