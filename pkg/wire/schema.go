// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wire

import (
	"encoding/binary"
	"fmt"
	"sync"
)

// SchemaEntryBytes is the on-disk size of one Schema entry as laid
// out in the LVC file prelude (§6.1): fid:i32, type:u8, _pad:u8,
// fixedWidth:u16, name:char[32].
const SchemaEntryBytes = 4 + 1 + 1 + 2 + 32

// Entry describes one field in the dictionary.
type Entry struct {
	Fid        int32
	Name       string
	Type       FieldType
	FixedWidth uint16
}

// Schema is an immutable field dictionary: fid -> (name, type, width).
// Replacement is always by atomic swap of the whole Schema, never
// in-place mutation; a Schema value, once returned from Load, must
// not be modified by callers.
type Schema struct {
	entries []Entry
	byFid   map[int32]*Entry
	byName  map[string]*Entry

	subMu sync.Mutex
	subs  []chan<- *Schema
}

// Load parses a packed binary entry table. Trailing bytes beyond a
// full multiple of SchemaEntryBytes are an error.
func Load(buf []byte) (*Schema, error) {
	if len(buf)%SchemaEntryBytes != 0 {
		return nil, fmt.Errorf("wire: schema buffer length %d not a multiple of entry size %d", len(buf), SchemaEntryBytes)
	}
	n := len(buf) / SchemaEntryBytes
	s := &Schema{
		entries: make([]Entry, 0, n),
		byFid:   make(map[int32]*Entry, n),
		byName:  make(map[string]*Entry, n),
	}
	for i := 0; i < n; i++ {
		off := i * SchemaEntryBytes
		rec := buf[off : off+SchemaEntryBytes]
		fid := int32(binary.LittleEndian.Uint32(rec[0:4]))
		typ := FieldType(rec[4])
		width := binary.LittleEndian.Uint16(rec[6:8])
		name := cstring(rec[8:40])

		if fid == 0 {
			return nil, fmt.Errorf("wire: schema entry %d has reserved fid 0", i)
		}
		if _, dup := s.byFid[fid]; dup {
			return nil, fmt.Errorf("wire: duplicate fid %d in schema", fid)
		}
		if _, dup := s.byName[name]; dup {
			return nil, fmt.Errorf("wire: duplicate field name %q in schema", name)
		}

		e := Entry{Fid: fid, Name: name, Type: typ, FixedWidth: width}
		s.entries = append(s.entries, e)
		s.byFid[fid] = &s.entries[len(s.entries)-1]
		s.byName[name] = &s.entries[len(s.entries)-1]
	}
	return s, nil
}

// NewSchema builds a Schema directly from entries, validating the
// same uniqueness rules as Load. Useful for programmatic construction
// in tests and tooling.
func NewSchema(entries []Entry) (*Schema, error) {
	buf := make([]byte, 0, len(entries)*SchemaEntryBytes)
	for _, e := range entries {
		buf = append(buf, dumpEntry(e)...)
	}
	return Load(buf)
}

func dumpEntry(e Entry) []byte {
	rec := make([]byte, SchemaEntryBytes)
	binary.LittleEndian.PutUint32(rec[0:4], uint32(e.Fid))
	rec[4] = byte(e.Type)
	binary.LittleEndian.PutUint16(rec[6:8], e.FixedWidth)
	name := e.Name
	if len(name) > 32 {
		name = name[:32]
	}
	copy(rec[8:40], name)
	return rec
}

// Dump re-serializes the schema to the exact §6.1 byte layout, index
// order preserved. LVCStore writes it into a new file's schema region
// and compares it on Remap to detect a schema change.
func (s *Schema) Dump() []byte {
	buf := make([]byte, 0, len(s.entries)*SchemaEntryBytes)
	for _, e := range s.entries {
		buf = append(buf, dumpEntry(e)...)
	}
	return buf
}

// FindByFid looks up an entry by numeric id in O(1).
func (s *Schema) FindByFid(fid int32) (Entry, bool) {
	e, ok := s.byFid[fid]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// FindByName looks up an entry by name, case-sensitive, in O(1).
func (s *Schema) FindByName(name string) (Entry, bool) {
	e, ok := s.byName[name]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// IndexOf returns the schema-order index of fid, used by LVCStore to
// key the on-disk presentFids array.
func (s *Schema) IndexOf(fid int32) (int, bool) {
	for i, e := range s.entries {
		if e.Fid == fid {
			return i, true
		}
	}
	return 0, false
}

// EntryAt returns the entry at a schema-order index, as used to
// resolve presentFids[i] back to a field descriptor.
func (s *Schema) EntryAt(idx int) (Entry, bool) {
	if idx < 0 || idx >= len(s.entries) {
		return Entry{}, false
	}
	return s.entries[idx], true
}

// Size returns the number of entries in the schema.
func (s *Schema) Size() int {
	return len(s.entries)
}

// Entries returns the schema's entries in declared order. The
// returned slice must not be mutated by the caller.
func (s *Schema) Entries() []Entry {
	return s.entries
}

// Subscribe registers ch to receive the replacement Schema whenever
// this one is swapped out for a new one, so a holder like LVCStore
// can react to a hot-swap without polling. Delivery is non-blocking:
// a subscriber that isn't ready to receive simply misses that
// notification.
func (s *Schema) Subscribe(ch chan<- *Schema) {
	s.subMu.Lock()
	s.subs = append(s.subs, ch)
	s.subMu.Unlock()
}

// NotifySwap fans next out to every channel registered via Subscribe
// on s, the schema being replaced.
func (s *Schema) NotifySwap(next *Schema) {
	s.subMu.Lock()
	subs := s.subs
	s.subMu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- next:
		default:
		}
	}
}

func cstring(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
