// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lvc

import (
	"bytes"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mdcore/mdd/internal/mdlog"
	"github.com/mdcore/mdd/pkg/wire"
)

// StreamKey identifies one (service, ticker) stream.
type StreamKey struct {
	Svc, Tkr string
}

// RecordView is a borrowed snapshot of one stream's current image.
// Fields are detached copies (see FieldList.CopyFrom in the wire
// package) so a RecordView outlives the mmap region it was read
// from, even across a remap triggered by in-place record growth.
type RecordView struct {
	Svc, Tkr string
	Active   bool
	TCreate  uint32
	TUpd     uint32
	TUpdUs   uint32
	TDead    uint32
	NUpd     uint32
	Fields   *wire.FieldList
}

// LVCStats summarizes store occupancy at the moment Stats is called.
type LVCStats struct {
	Records     int
	FileSize    uint64
	FreeBytes   uint64
	LastApplyAt time.Time
}

// LVCStore maintains the memory-mapped last-value-cache file and
// answers snapshot queries against it.
type LVCStore struct {
	path string

	file *os.File
	lock *writerLock

	mu      sync.RWMutex // guards data, index, schema, fileHdr rebuild
	data    []byte
	fileHdr fileHeader
	schema  *wire.Schema
	index   map[StreamKey]uint64 // svc,tkr -> record byte offset

	filterMu sync.Mutex
	filter   Filter

	compactionEpoch atomic.Uint64
	lastApply       atomic.Int64 // unix nano

	rosterMu sync.Mutex
	onRoster func(svc, tkr string, alive bool)
}

// Open maps the file at path, reading its signature and schema and
// building the in-memory (svc,tkr) -> recordOffset map by scanning
// records from the end of the schema region to freeIdx. If the file
// does not exist, it is created fresh with the given schema.
func Open(path string, schema *wire.Schema, protocolSignature string) (*LVCStore, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, &Error{Kind: KindIoError, Msg: "lvc: open", Err: err}
	}

	lock, err := openWriterLock(path)
	if err != nil {
		f.Close()
		return nil, &Error{Kind: KindIoError, Msg: "lvc: open writer lock", Err: err}
	}

	st := &LVCStore{path: path, file: f, lock: lock, index: make(map[StreamKey]uint64)}

	fi, err := f.Stat()
	if err != nil {
		return nil, &Error{Kind: KindIoError, Msg: "lvc: stat", Err: err}
	}
	if fi.Size() == 0 {
		if err := st.initEmpty(schema, protocolSignature); err != nil {
			return nil, err
		}
	}

	if err := st.mapAndLoad(schema); err != nil {
		return nil, err
	}
	mdlog.Infof("[LVC] opened %s (%d streams, %d bytes)", path, len(st.index), st.fileHdr.FileSiz)
	return st, nil
}

func (s *LVCStore) initEmpty(schema *wire.Schema, signature string) error {
	schemaBytes := schema.Dump()
	hdrEnd := fileHdrTotal + len(schemaBytes)
	if err := growFile(s.file, int64(hdrEnd)); err != nil {
		return &Error{Kind: KindIoError, Msg: "lvc: grow new file", Err: err}
	}
	buf := make([]byte, hdrEnd)
	writeFileHeader(buf, fileHeader{
		Signature: signature,
		FileSiz:   uint64(hdrEnd),
		NFlds:     uint32(schema.Size()),
		FreeIdx:   uint64(hdrEnd),
		Sentinel:  sentinelWritable,
	})
	copy(buf[fileHdrTotal:], schemaBytes)
	if _, err := s.file.WriteAt(buf, 0); err != nil {
		return &Error{Kind: KindIoError, Msg: "lvc: write new file header", Err: err}
	}
	return nil
}

func (s *LVCStore) mapAndLoad(fallbackSchema *wire.Schema) error {
	fi, err := s.file.Stat()
	if err != nil {
		return &Error{Kind: KindIoError, Msg: "lvc: stat", Err: err}
	}
	data, err := mapFile(s.file, int(fi.Size()))
	if err != nil {
		return &Error{Kind: KindIoError, Msg: "lvc: map", Err: err}
	}
	hdr, err := readFileHeader(data)
	if err != nil {
		unmapFile(data)
		return &Error{Kind: KindCorrupt, Msg: "lvc: read header", Err: err}
	}
	schemaEnd := schemaRegionEnd(hdr.NFlds)
	if schemaEnd > len(data) {
		unmapFile(data)
		return &Error{Kind: KindCorrupt, Msg: "lvc: schema region exceeds file size"}
	}
	schema, err := wire.Load(data[fileHdrTotal:schemaEnd])
	if err != nil {
		unmapFile(data)
		return &Error{Kind: KindCorrupt, Msg: "lvc: decode schema", Err: err}
	}
	_ = fallbackSchema // an explicit schema may differ across swaps; the on-disk one is authoritative on Open

	index, err := scanRecords(data, schema, schemaEnd, hdr.FreeIdx)
	if err != nil {
		unmapFile(data)
		return err
	}

	s.mu.Lock()
	if s.data != nil {
		unmapFile(s.data)
	}
	s.data = data
	s.fileHdr = hdr
	s.schema = schema
	s.index = index
	s.mu.Unlock()
	return nil
}

func scanRecords(data []byte, schema *wire.Schema, start int, freeIdx uint64) (map[StreamKey]uint64, error) {
	index := make(map[StreamKey]uint64)
	off := uint64(start)
	for off < freeIdx {
		if off+4 > uint64(len(data)) {
			return nil, &Error{Kind: KindCorrupt, Msg: "lvc: record header crosses file boundary"}
		}
		rec, err := decodeRecord(data[off:], schema)
		if err != nil {
			return nil, &Error{Kind: KindCorrupt, Msg: fmt.Sprintf("lvc: scan at offset %d", off), Err: err}
		}
		index[StreamKey{Svc: rec.svc, Tkr: rec.tkr}] = off
		off += uint64(rec.size)
	}
	return index, nil
}

// Remap grows the mapped region to fileSiz if freeIdx has advanced
// since the last map. Cheap no-op when nothing changed.
func (s *LVCStore) Remap() error {
	s.mu.RLock()
	needed := s.fileHdr.FreeIdx > uint64(len(s.data))
	s.mu.RUnlock()
	if !needed {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remapLocked()
}

// remapLocked is Remap's body; the caller holds s.mu for writing.
func (s *LVCStore) remapLocked() error {
	fi, err := s.file.Stat()
	if err != nil {
		return &Error{Kind: KindIoError, Msg: "lvc: stat on remap", Err: err}
	}
	if fi.Size() <= int64(len(s.data)) {
		return nil
	}
	newData, err := mapFile(s.file, int(fi.Size()))
	if err != nil {
		return &Error{Kind: KindIoError, Msg: "lvc: remap", Err: err}
	}
	hdr, err := readFileHeader(newData)
	if err != nil {
		unmapFile(newData)
		return &Error{Kind: KindCorrupt, Msg: "lvc: reread header on remap", Err: err}
	}
	schemaEnd := schemaRegionEnd(hdr.NFlds)
	schema, err := wire.Load(newData[fileHdrTotal:schemaEnd])
	if err != nil {
		unmapFile(newData)
		return &Error{Kind: KindCorrupt, Msg: "lvc: reread schema on remap", Err: err}
	}
	index, err := scanRecords(newData, schema, schemaEnd, hdr.FreeIdx)
	if err != nil {
		unmapFile(newData)
		return err
	}
	unmapFile(s.data)
	s.data = newData
	s.fileHdr = hdr
	prevSchema := s.schema
	s.schema = schema
	s.index = index
	if !bytes.Equal(prevSchema.Dump(), schema.Dump()) {
		prevSchema.NotifySwap(schema)
	}
	return nil
}

// Snap locates the record for (svc,tkr) and returns a borrowed view
// of every present field plus timestamps and nUpd.
func (s *LVCStore) Snap(svc, tkr string) (RecordView, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	off, ok := s.index[StreamKey{Svc: svc, Tkr: tkr}]
	if !ok {
		return RecordView{}, false
	}
	return s.viewAt(off)
}

func (s *LVCStore) viewAt(off uint64) (RecordView, bool) {
	rec, err := decodeRecord(s.data[off:], s.schema)
	if err != nil {
		mdlog.Warnf("[LVC] decode at offset %d: %v", off, err)
		return RecordView{}, false
	}
	fl := wire.NewFieldList(len(rec.present))
	for i, idx := range rec.present {
		e, ok := s.schema.EntryAt(int(idx))
		if !ok {
			continue
		}
		f, err := DecodeValue(e, e.Fid, rec.values[i])
		if err != nil {
			mdlog.Warnf("[LVC] decode value for fid %d: %v", e.Fid, err)
			continue
		}
		fl.Add(f)
	}
	return RecordView{
		Svc: rec.svc, Tkr: rec.tkr, Active: rec.active,
		TCreate: rec.tCreate, TUpd: rec.tUpd, TUpdUs: rec.tUpdUs, TDead: rec.tDead,
		NUpd: rec.nUpd, Fields: fl,
	}, true
}

// SnapAll iterates every live record, applying the store's current
// Filter.
func (s *LVCStore) SnapAll() []RecordView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	s.filterMu.Lock()
	filter := s.filter
	s.filterMu.Unlock()

	out := make([]RecordView, 0, len(s.index))
	for key, off := range s.index {
		if !filter.AllowsService(key.Svc) {
			continue
		}
		view, ok := s.viewAt(off)
		if !ok {
			continue
		}
		filter.Project(view.Fields)
		out = append(out, view)
	}
	return out
}

// SetFilter replaces the store's snapshot filter, taking effect on
// the next SnapAll call.
func (s *LVCStore) SetFilter(f Filter) {
	s.filterMu.Lock()
	s.filter = f
	s.filterMu.Unlock()
}

// Roster returns the cheap name-only listing of every known stream,
// distinct from SnapAll which also materializes field data.
func (s *LVCStore) Roster() []StreamKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]StreamKey, 0, len(s.index))
	for k := range s.index {
		out = append(out, k)
	}
	return out
}

// OnRoster registers a callback invoked on first-apply and on
// dead-transition for a stream, standing in for the out-of-scope
// admin/control channel.
func (s *LVCStore) OnRoster(fn func(svc, tkr string, alive bool)) {
	s.rosterMu.Lock()
	s.onRoster = fn
	s.rosterMu.Unlock()
}

func (s *LVCStore) notifyRoster(svc, tkr string, alive bool) {
	s.rosterMu.Lock()
	fn := s.onRoster
	s.rosterMu.Unlock()
	if fn != nil {
		fn(svc, tkr, alive)
	}
}

// CompactionEpoch is a read-only counter a future external compactor
// can use to detect when abandoned slots are safe to reclaim;
// compaction itself is not implemented here.
func (s *LVCStore) CompactionEpoch() uint64 {
	return s.compactionEpoch.Load()
}

// Stats reports record count, free bytes, file size and the last
// Apply timestamp.
func (s *LVCStore) Stats() LVCStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return LVCStats{
		Records:   len(s.index),
		FileSize:  s.fileHdr.FileSiz,
		FreeBytes: s.fileHdr.FileSiz - s.fileHdr.FreeIdx,
		LastApplyAt: func() time.Time {
			if n := s.lastApply.Load(); n != 0 {
				return time.Unix(0, n)
			}
			return time.Time{}
		}(),
	}
}

// Apply is the writer path: locate-or-append a record for
// (svc,tkr), merge the incoming FieldList into the on-disk image,
// bump tUpd/tUpdUs/nUpd, and set bActive per the merge rule in §4.5.1.
func (s *LVCStore) Apply(msg wire.Message, lockDeadline time.Duration) error {
	if err := s.lock.Lock(lockDeadline); err != nil {
		return &Error{Kind: KindLocked, Msg: "lvc: apply lock", Err: err}
	}
	defer s.lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	key := StreamKey{Svc: msg.Header.Svc, Tkr: msg.Header.Tkr}
	now := uint32(time.Now().Unix())
	nowUs := uint32(time.Now().Nanosecond() / 1000)

	var existing record
	var existingOff uint64
	var isNew bool
	if off, ok := s.index[key]; ok {
		rec, err := decodeRecord(s.data[off:], s.schema)
		if err != nil {
			return &Error{Kind: KindCorrupt, Msg: "lvc: apply decode existing", Err: err}
		}
		existing = rec
		existingOff = off
	} else {
		isNew = true
		existing = record{svc: key.Svc, tkr: key.Tkr, tCreate: now}
	}

	merged := mergeFields(s.schema, existing, msg)
	active := existing.active
	tDead := existing.tDead
	switch msg.Header.MsgType {
	case wire.MTDead:
		active = false
		tDead = now
	default:
		active = true
	}
	nUpd := existing.nUpd + 1

	buf, err := encodeRecord(s.schema, key.Svc, key.Tkr, active, existing.tCreate, now, nowUs, tDead, nUpd, merged.present, merged.values)
	if err != nil {
		return &Error{Kind: KindIoError, Msg: "lvc: encode record", Err: err}
	}

	sameShape := !isNew && len(buf) == int(existing.size)
	var writeOff uint64
	if sameShape {
		writeOff = existingOff
	} else {
		writeOff = s.fileHdr.FreeIdx
		needSize := int64(writeOff) + int64(len(buf))
		if needSize > int64(len(s.data)) {
			if err := growFile(s.file, needSize); err != nil {
				return &Error{Kind: KindIoError, Msg: "lvc: grow for append", Err: err}
			}
		}
	}

	if _, err := s.file.WriteAt(buf, int64(writeOff)); err != nil {
		return &Error{Kind: KindIoError, Msg: "lvc: write record", Err: err}
	}
	if err := s.file.Sync(); err != nil {
		return &Error{Kind: KindIoError, Msg: "lvc: fsync record", Err: err}
	}

	if !sameShape {
		// Publish freeIdx only after the record body is fully
		// written and flushed, so a concurrent reader never sees a
		// half-written record.
		s.fileHdr.FreeIdx = writeOff + uint64(len(buf))
		s.fileHdr.FileSiz = uint64(len(s.data))
		if int64(s.fileHdr.FileSiz) < int64(writeOff)+int64(len(buf)) {
			s.fileHdr.FileSiz = writeOff + uint64(len(buf))
		}
		hdrBuf := make([]byte, fileHdrTotal)
		writeFileHeader(hdrBuf, s.fileHdr)
		if _, err := s.file.WriteAt(hdrBuf, 0); err != nil {
			return &Error{Kind: KindIoError, Msg: "lvc: publish freeIdx", Err: err}
		}
		if err := s.file.Sync(); err != nil {
			return &Error{Kind: KindIoError, Msg: "lvc: fsync header", Err: err}
		}
		if err := s.remapLocked(); err != nil {
			return err
		}
	}

	s.index[key] = writeOff
	s.lastApply.Store(time.Now().UnixNano())
	if isNew || active != existing.active {
		s.notifyRoster(key.Svc, key.Tkr, active)
	}
	return nil
}

type mergedRecord struct {
	present []uint16
	values  [][]byte
}

// mergeFields applies §4.5.1's merge rule: fields present in the
// update overwrite the corresponding slot keyed by schema index;
// fields present in the record but absent from the update are
// retained; Image messages do not clear prior fields either.
func mergeFields(schema *wire.Schema, existing record, msg wire.Message) mergedRecord {
	byIdx := make(map[uint16][]byte, len(existing.present))
	for i, idx := range existing.present {
		byIdx[idx] = existing.values[i]
	}

	if msg.Fields != nil {
		for _, f := range msg.Fields.All() {
			idx, ok := schema.IndexOf(f.Fid)
			if !ok {
				mdlog.Debugf("[LVC] fid %d not in schema, eliding", f.Fid)
				continue
			}
			e, _ := schema.EntryAt(idx)
			enc, err := EncodeValue(e, f)
			if err != nil {
				mdlog.Warnf("[LVC] encode fid %d: %v", f.Fid, err)
				continue
			}
			byIdx[uint16(idx)] = enc
		}
	}

	present := make([]uint16, 0, len(byIdx))
	for idx := range byIdx {
		present = append(present, idx)
	}
	sortUint16(present)
	values := make([][]byte, len(present))
	for i, idx := range present {
		values[i] = byIdx[idx]
	}
	return mergedRecord{present: present, values: values}
}

func sortUint16(s []uint16) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// Close releases the mmap and writer lock resources. Idempotent.
func (s *LVCStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data != nil {
		unmapFile(s.data)
		s.data = nil
	}
	if s.lock != nil {
		s.lock.Close()
	}
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}
