// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tape

import (
	"encoding/binary"
	"fmt"
)

// recHdrBytes is the journal record header's fixed size: tMsg(sec:u64,
// usec:u32), nMsg:u64, nByte:u64, dbIdx:i32, StreamID:i32, svc:char[64],
// tkr:char[128], channelID:i32, loc:u64, locImg:u64.
const recHdrBytes = 8 + 4 + 8 + 8 + 4 + 4 + 64 + 128 + 4 + 8 + 8

// recHdr is the decoded form of one journal record's fixed prelude.
type recHdr struct {
	tSec    uint64
	tUsec   uint32
	nMsg    uint64
	nByte   uint64
	dbIdx   int32
	StreamID int32
	svc     string
	tkr     string
	channelID int32
	loc     uint64
	locImg  uint64
}

func decodeRecHdr(buf []byte) (recHdr, error) {
	if len(buf) < recHdrBytes {
		return recHdr{}, fmt.Errorf("%w: record header truncated", ErrCorrupt)
	}
	off := 0
	h := recHdr{}
	h.tSec = binary.LittleEndian.Uint64(buf[off : off+8])
	off += 8
	h.tUsec = binary.LittleEndian.Uint32(buf[off : off+4])
	off += 4
	h.nMsg = binary.LittleEndian.Uint64(buf[off : off+8])
	off += 8
	h.nByte = binary.LittleEndian.Uint64(buf[off : off+8])
	off += 8
	h.dbIdx = int32(binary.LittleEndian.Uint32(buf[off : off+4]))
	off += 4
	h.StreamID = int32(binary.LittleEndian.Uint32(buf[off : off+4]))
	off += 4
	h.svc = cstring(buf[off : off+64])
	off += 64
	h.tkr = cstring(buf[off : off+128])
	off += 128
	h.channelID = int32(binary.LittleEndian.Uint32(buf[off : off+4]))
	off += 4
	h.loc = binary.LittleEndian.Uint64(buf[off : off+8])
	off += 8
	h.locImg = binary.LittleEndian.Uint64(buf[off : off+8])
	return h, nil
}

func encodeRecHdr(h recHdr) []byte {
	buf := make([]byte, recHdrBytes)
	off := 0
	binary.LittleEndian.PutUint64(buf[off:off+8], h.tSec)
	off += 8
	binary.LittleEndian.PutUint32(buf[off:off+4], h.tUsec)
	off += 4
	binary.LittleEndian.PutUint64(buf[off:off+8], h.nMsg)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:off+8], h.nByte)
	off += 8
	binary.LittleEndian.PutUint32(buf[off:off+4], uint32(h.dbIdx))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:off+4], uint32(h.StreamID))
	off += 4
	copy(buf[off:off+64], h.svc)
	off += 64
	copy(buf[off:off+128], h.tkr)
	off += 128
	binary.LittleEndian.PutUint32(buf[off:off+4], uint32(h.channelID))
	off += 4
	binary.LittleEndian.PutUint64(buf[off:off+8], h.loc)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:off+8], h.locImg)
	return buf
}

func cstring(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
