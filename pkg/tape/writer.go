// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tape

import (
	"encoding/binary"
	"os"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/mdcore/mdd/internal/mdlog"
	"github.com/mdcore/mdd/pkg/wire"
)

// Default index sizing: a minute-granularity coarse index spanning a
// day, a second-granularity fine index spanning an hour. Callers size
// differently via Options for shorter-lived tapes (e.g. tests).
const (
	DefaultSecPerIdxT = 60
	DefaultNumSecIdxT = 24 * 60
	DefaultSecPerIdxR = 1
	DefaultNumSecIdxR = 3600
	DefaultMaxStreams = 4096
)

// Options configures a freshly created tape file's fixed-capacity
// regions. Ignored when opening an existing file.
type Options struct {
	MaxStreams int
	SecPerIdxT uint32
	NumSecIdxT uint32
	SecPerIdxR uint32
	NumSecIdxR uint32
}

func (o Options) withDefaults() Options {
	if o.MaxStreams == 0 {
		o.MaxStreams = DefaultMaxStreams
	}
	if o.SecPerIdxT == 0 {
		o.SecPerIdxT = DefaultSecPerIdxT
	}
	if o.NumSecIdxT == 0 {
		o.NumSecIdxT = DefaultNumSecIdxT
	}
	if o.SecPerIdxR == 0 {
		o.SecPerIdxR = DefaultSecPerIdxR
	}
	if o.NumSecIdxR == 0 {
		o.NumSecIdxR = DefaultNumSecIdxR
	}
	return o
}

// TapeWriter appends wire messages to a single-writer journal,
// maintaining the per-stream and time-bucketed indices in memory and
// flushing them (and a sentinel) to disk after every Append.
type TapeWriter struct {
	mu   sync.Mutex
	file *os.File
	path string

	hdr     Header
	streams map[StreamKey]streamEntry
	coarse  *timeIndex
	fine    *timeIndex
	opts    Options

	scheduler gocron.Scheduler
	dayStamp  int64 // unix day number of the currently open tape
}

// NewWriter creates (or truncates, if present) a tape file at path and
// returns a TapeWriter ready to Append. tapeStart is the tape's
// creation epoch, used as the index windows' time origin.
func NewWriter(path string, tapeStart time.Time, opts Options) (*TapeWriter, error) {
	opts = opts.withDefaults()
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, &Error{Kind: KindIoError, Msg: "tape: open", Err: err}
	}

	w := &TapeWriter{
		file:    f,
		path:    path,
		streams: make(map[StreamKey]streamEntry),
		coarse:  newTimeIndex(opts.SecPerIdxT, opts.NumSecIdxT),
		fine:    newTimeIndex(opts.SecPerIdxR, opts.NumSecIdxR),
		opts:    opts,
		dayStamp: tapeStart.Unix() / 86400,
	}

	hdrSize := HeaderSize(VariantLong8)
	streamRegion := opts.MaxStreams * streamEntryBytes
	coarseRegion := int(opts.NumSecIdxT) * 8
	fineRegion := int(opts.NumSecIdxR) * 8
	journalOff := hdrSize + streamRegion + coarseRegion + fineRegion

	w.hdr = Header{
		Variant:      VariantLong8,
		HdrSiz:       uint32(hdrSize),
		SizeofLong:   8,
		SecPerIdxT:   opts.SecPerIdxT,
		NumSecIdxT:   opts.NumSecIdxT,
		SecPerIdxR:   opts.SecPerIdxR,
		NumSecIdxR:   opts.NumSecIdxR,
		TapeStart:    uint64(tapeStart.Unix()),
		StreamIdxOff: uint64(hdrSize),
		CoarseIdxOff: uint64(hdrSize + streamRegion),
		RecIdxOff:    uint64(hdrSize + streamRegion + coarseRegion),
		JournalOff:   uint64(journalOff),
		FreeIdx:      uint64(journalOff),
		FileSiz:      uint64(journalOff),
	}

	if err := w.file.Truncate(int64(journalOff)); err != nil {
		f.Close()
		return nil, &Error{Kind: KindIoError, Msg: "tape: truncate new file", Err: err}
	}
	if err := w.flushMeta(false); err != nil {
		f.Close()
		return nil, err
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		f.Close()
		return nil, &Error{Kind: KindIoError, Msg: "tape: scheduler init", Err: err}
	}
	w.scheduler = sched
	_, err = sched.NewJob(
		gocron.DurationJob(time.Minute),
		gocron.NewTask(w.checkDayRollover),
	)
	if err != nil {
		mdlog.Warnf("[TAPE] could not schedule day-rollover check: %v", err)
	}
	sched.Start()

	return w, nil
}

// Append writes one journal record: the fixed tapeRecHdr plus the
// already wire-encoded payload bytes, updates the per-stream index
// (and locImg for Image messages), writes a coarse/fine index entry
// if this is the first record in its bucket, and bumps FreeIdx/FileSiz.
func (w *TapeWriter) Append(msg wire.Message, payload []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	key := StreamKey{Svc: msg.Header.Svc, Tkr: msg.Header.Tkr, ChannelID: 0}
	prev := w.streams[key]

	loc := w.hdr.FreeIdx
	rh := recHdr{
		tSec: uint64(msg.Header.TSec), tUsec: msg.Header.TUsec,
		nMsg: prev.Loc, nByte: uint64(len(payload)),
		dbIdx: 0, StreamID: 0,
		svc: msg.Header.Svc, tkr: msg.Header.Tkr, channelID: 0,
		loc: loc, locImg: prev.LocImg,
	}
	if msg.Header.MsgType == wire.MTImage {
		rh.locImg = loc
	}

	buf := append(encodeRecHdr(rh), payload...)
	if _, err := w.file.WriteAt(buf, int64(loc)); err != nil {
		return &Error{Kind: KindIoError, Msg: "tape: write record", Err: err}
	}

	w.streams[key] = streamEntry{Loc: loc, LocImg: rh.locImg}

	relSec := rh.tSec - w.hdr.TapeStart
	w.coarse.recordIfFirst(relSec, loc)
	w.fine.recordIfFirst(relSec, loc)

	w.hdr.FreeIdx = loc + uint64(len(buf))
	w.hdr.FileSiz = w.hdr.FreeIdx
	return w.flushMeta(false)
}

// Flush persists the header, stream index and time indices to disk
// without marking the tape cleanly closed.
func (w *TapeWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushMeta(false)
}

func (w *TapeWriter) flushMeta(clean bool) error {
	if clean {
		w.hdr.Sentinel |= sentinelClean
	} else {
		w.hdr.Sentinel &^= sentinelClean
	}

	hdrBuf := make([]byte, w.hdr.HdrSiz)
	WriteHeader(hdrBuf, w.hdr)
	if _, err := w.file.WriteAt(hdrBuf, 0); err != nil {
		return &Error{Kind: KindIoError, Msg: "tape: write header", Err: err}
	}

	i := 0
	for k, e := range w.streams {
		off := int64(w.hdr.StreamIdxOff) + int64(i)*streamEntryBytes
		if _, err := w.file.WriteAt(encodeStreamEntry(k, e), off); err != nil {
			return &Error{Kind: KindIoError, Msg: "tape: write stream index", Err: err}
		}
		i++
	}

	if err := writeTimeIndex(w.file, int64(w.hdr.CoarseIdxOff), w.coarse); err != nil {
		return err
	}
	if err := writeTimeIndex(w.file, int64(w.hdr.RecIdxOff), w.fine); err != nil {
		return err
	}
	return w.file.Sync()
}

func writeTimeIndex(f *os.File, off int64, ti *timeIndex) error {
	buf := make([]byte, len(ti.buckets)*8)
	for i, v := range ti.buckets {
		binary.LittleEndian.PutUint64(buf[i*8:], v)
	}
	if _, err := f.WriteAt(buf, off); err != nil {
		return &Error{Kind: KindIoError, Msg: "tape: write time index", Err: err}
	}
	return nil
}

// checkDayRollover is invoked once a minute by the writer's scheduler.
// When the day number has changed it records the new day and flushes
// the header and indices; it does not rename the file or open a fresh
// tape.
func (w *TapeWriter) checkDayRollover() {
	w.mu.Lock()
	defer w.mu.Unlock()
	today := time.Now().Unix() / 86400
	if today != w.dayStamp {
		w.dayStamp = today
		mdlog.Infof("[TAPE] %s crossed a day boundary, sentinel flushed", w.path)
		_ = w.flushMeta(false)
	}
}

// Close flushes a clean-close sentinel and releases resources.
func (w *TapeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.scheduler != nil {
		_ = w.scheduler.Shutdown()
	}
	if err := w.flushMeta(true); err != nil {
		return err
	}
	return w.file.Close()
}
