// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lvc

import (
	"encoding/binary"
	"fmt"

	"github.com/mdcore/mdd/pkg/wire"
)

// Signature values. LVC_004 carries ASCII-protocol payloads, LVC_005
// binary-protocol payloads; the two are otherwise structurally
// identical.
const (
	SignatureASCII  = "LVC_004"
	SignatureBinary = "LVC_005"

	sigBytes         = 16
	fileHdrTotal     = 40 // schema entries begin at offset 40
	sentinelWritable = 1 << 0
)

// recHdrBytes is the fixed LVC record header size: sizeBytes:u32,
// svc:char[64], tkr:char[128], bActive:u8, tCreate:u32, tUpd:u32,
// tUpdUs:u32, tDead:u32, nUpd:u32, nFld:u16, _pad:u16.
const recHdrBytes = 4 + 64 + 128 + 1 + 4 + 4 + 4 + 4 + 4 + 2 + 2

const (
	svcFieldBytes = 64
	tkrFieldBytes = 128
)

// fileHeader is the decoded form of the fixed file prelude.
type fileHeader struct {
	Signature string
	FileSiz   uint64
	NFlds     uint32
	FreeIdx   uint64
	Sentinel  uint32
}

func readFileHeader(buf []byte) (fileHeader, error) {
	if len(buf) < fileHdrTotal {
		return fileHeader{}, fmt.Errorf("lvc: file too small for header")
	}
	sig := cstring(buf[0:sigBytes])
	if sig != SignatureASCII && sig != SignatureBinary {
		return fileHeader{}, fmt.Errorf("%w: unrecognized signature %q", ErrCorrupt, sig)
	}
	return fileHeader{
		Signature: sig,
		FileSiz:   binary.LittleEndian.Uint64(buf[16:24]),
		NFlds:     binary.LittleEndian.Uint32(buf[24:28]),
		FreeIdx:   binary.LittleEndian.Uint64(buf[28:36]),
		Sentinel:  binary.LittleEndian.Uint32(buf[36:40]),
	}, nil
}

func writeFileHeader(buf []byte, h fileHeader) {
	clear(buf[0:sigBytes])
	copy(buf[0:sigBytes], h.Signature)
	binary.LittleEndian.PutUint64(buf[16:24], h.FileSiz)
	binary.LittleEndian.PutUint32(buf[24:28], h.NFlds)
	binary.LittleEndian.PutUint64(buf[28:36], h.FreeIdx)
	binary.LittleEndian.PutUint32(buf[36:40], h.Sentinel)
}

// schemaRegionEnd returns the byte offset where the record area
// begins: the file prelude plus nFlds schema entries. There is no
// separate free-list region in this implementation (see DESIGN.md);
// freeIdx alone tracks the append point.
func schemaRegionEnd(nFlds uint32) int {
	return fileHdrTotal + int(nFlds)*wire.SchemaEntryBytes
}

// record is the decoded form of one LVC record.
type record struct {
	offset  uint64
	size    uint32
	svc     string
	tkr     string
	active  bool
	tCreate uint32
	tUpd    uint32
	tUpdUs  uint32
	tDead   uint32
	nUpd    uint32
	// present holds schema-order indices (not fids) of the fields
	// actually stored in this record.
	present []uint16
	values  [][]byte // raw encoded value bytes, parallel to present
}

func decodeRecord(buf []byte, schema *wire.Schema) (record, error) {
	if len(buf) < recHdrBytes {
		return record{}, fmt.Errorf("%w: record header truncated", ErrCorrupt)
	}
	size := binary.LittleEndian.Uint32(buf[0:4])
	if int(size) > len(buf) {
		return record{}, fmt.Errorf("%w: record size %d exceeds available bytes %d", ErrCorrupt, size, len(buf))
	}
	off := 4
	svc := cstring(buf[off : off+svcFieldBytes])
	off += svcFieldBytes
	tkr := cstring(buf[off : off+tkrFieldBytes])
	off += tkrFieldBytes
	active := buf[off] != 0
	off++
	tCreate := binary.LittleEndian.Uint32(buf[off : off+4])
	off += 4
	tUpd := binary.LittleEndian.Uint32(buf[off : off+4])
	off += 4
	tUpdUs := binary.LittleEndian.Uint32(buf[off : off+4])
	off += 4
	tDead := binary.LittleEndian.Uint32(buf[off : off+4])
	off += 4
	nUpd := binary.LittleEndian.Uint32(buf[off : off+4])
	off += 4
	nFld := binary.LittleEndian.Uint16(buf[off : off+2])
	off += 2
	off += 2 // _pad

	present := make([]uint16, nFld)
	for i := range present {
		if off+2 > len(buf) {
			return record{}, fmt.Errorf("%w: presentFids truncated", ErrCorrupt)
		}
		present[i] = binary.LittleEndian.Uint16(buf[off : off+2])
		off += 2
	}

	values := make([][]byte, nFld)
	for i, idx := range present {
		e, ok := schema.EntryAt(int(idx))
		if !ok {
			return record{}, fmt.Errorf("%w: presentFids index %d out of schema range", ErrCorrupt, idx)
		}
		w := int(e.FixedWidth)
		if off+w > len(buf) {
			return record{}, fmt.Errorf("%w: value slot truncated", ErrCorrupt)
		}
		values[i] = buf[off : off+w]
		off += w
	}

	return record{
		size:    size,
		svc:     svc,
		tkr:     tkr,
		active:  active,
		tCreate: tCreate,
		tUpd:    tUpd,
		tUpdUs:  tUpdUs,
		tDead:   tDead,
		nUpd:    nUpd,
		present: present,
		values:  values,
	}, nil
}

// encodeRecord serializes a record given its present schema indices
// and already wire-encoded values (parallel slices, index order
// matching schema.IndexOf results).
func encodeRecord(schema *wire.Schema, svc, tkr string, active bool, tCreate, tUpd, tUpdUs, tDead, nUpd uint32, present []uint16, values [][]byte) ([]byte, error) {
	size := recHdrBytes + 2*len(present)
	for i, idx := range present {
		e, ok := schema.EntryAt(int(idx))
		if !ok {
			return nil, fmt.Errorf("lvc: encodeRecord: index %d not in schema", idx)
		}
		if len(values[i]) != int(e.FixedWidth) {
			return nil, fmt.Errorf("lvc: encodeRecord: value %d size %d != fixedWidth %d", i, len(values[i]), e.FixedWidth)
		}
		size += int(e.FixedWidth)
	}

	buf := make([]byte, size)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(size))
	off := 4
	copy(buf[off:off+svcFieldBytes], svc)
	off += svcFieldBytes
	copy(buf[off:off+tkrFieldBytes], tkr)
	off += tkrFieldBytes
	if active {
		buf[off] = 1
	}
	off++
	binary.LittleEndian.PutUint32(buf[off:off+4], tCreate)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:off+4], tUpd)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:off+4], tUpdUs)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:off+4], tDead)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:off+4], nUpd)
	off += 4
	binary.LittleEndian.PutUint16(buf[off:off+2], uint16(len(present)))
	off += 2
	off += 2 // _pad

	for _, idx := range present {
		binary.LittleEndian.PutUint16(buf[off:off+2], idx)
		off += 2
	}
	for _, v := range values {
		copy(buf[off:off+len(v)], v)
		off += len(v)
	}
	return buf, nil
}

func cstring(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

