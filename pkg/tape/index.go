// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tape

import "encoding/binary"

// StreamKey identifies one (service, ticker, channel) tuple within a
// tape, the granularity the per-stream index is keyed on.
type StreamKey struct {
	Svc, Tkr  string
	ChannelID int32
}

// streamEntry is one per-stream index slot: the byte offset of the
// most recent record for the stream, and of its most recent Image
// (0 if none seen).
type streamEntry struct {
	Loc    uint64
	LocImg uint64
}

const streamEntryBytes = 64 + 128 + 4 + 8 + 8

func decodeStreamEntry(buf []byte) (StreamKey, streamEntry) {
	svc := cstring(buf[0:64])
	tkr := cstring(buf[64:192])
	channelID := int32(binary.LittleEndian.Uint32(buf[192:196]))
	loc := binary.LittleEndian.Uint64(buf[196:204])
	locImg := binary.LittleEndian.Uint64(buf[204:212])
	return StreamKey{Svc: svc, Tkr: tkr, ChannelID: channelID}, streamEntry{Loc: loc, LocImg: locImg}
}

func encodeStreamEntry(k StreamKey, e streamEntry) []byte {
	buf := make([]byte, streamEntryBytes)
	copy(buf[0:64], k.Svc)
	copy(buf[64:192], k.Tkr)
	binary.LittleEndian.PutUint32(buf[192:196], uint32(k.ChannelID))
	binary.LittleEndian.PutUint64(buf[196:204], e.Loc)
	binary.LittleEndian.PutUint64(buf[204:212], e.LocImg)
	return buf
}

// timeIndex is a ring buffer of record offsets keyed by a coarse time
// bucket, one instance for the per-second/per-minute coarse index and
// one for the finer per-record index. Bucket i holds the offset of the
// FIRST record seen whose bucket number mod len(buckets) equals i; the
// window therefore covers secPerIdx*len(buckets) seconds; past it,
// bucket numbers wrap onto slots that already hold an earlier record,
// and those slots keep the earlier offset.
type timeIndex struct {
	secPerIdx uint32
	buckets   []uint64 // 0 means empty
}

func newTimeIndex(secPerIdx uint32, n uint32) *timeIndex {
	return &timeIndex{secPerIdx: secPerIdx, buckets: make([]uint64, n)}
}

func (ti *timeIndex) bucketOf(relSec uint64) int {
	if ti.secPerIdx == 0 || len(ti.buckets) == 0 {
		return 0
	}
	return int((relSec / uint64(ti.secPerIdx)) % uint64(len(ti.buckets)))
}

// recordIfFirst stores loc at relSec's bucket only if that bucket is
// still empty (first-record-in-bucket wins, matching "writes a
// coarse-index entry if this is the first record in its bucket").
func (ti *timeIndex) recordIfFirst(relSec uint64, loc uint64) {
	b := ti.bucketOf(relSec)
	if ti.buckets[b] == 0 {
		ti.buckets[b] = loc
	}
}

// hint returns the best known offset to start scanning from for a
// target relative second, walking backward through buckets bounded by
// the ring's length.
func (ti *timeIndex) hint(relSec uint64) (uint64, bool) {
	if len(ti.buckets) == 0 {
		return 0, false
	}
	start := ti.bucketOf(relSec)
	for i := 0; i < len(ti.buckets); i++ {
		b := (start - i + len(ti.buckets)*2) % len(ti.buckets)
		if ti.buckets[b] != 0 {
			return ti.buckets[b], true
		}
	}
	return 0, false
}
