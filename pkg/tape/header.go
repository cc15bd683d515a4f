// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tape

import (
	"encoding/binary"
	"fmt"
)

// Variant identifies which of the three on-disk header shapes
// produced a tape file. The on-wire difference between the variants
// is entirely the width of the platform `long` fields carried over
// from the original C layout; "native" always collapses to whichever
// of the two byte-widths matches the writing platform, so the reader
// only needs to branch on sizeofLong, not on a third decode path (see
// DESIGN.md).
type Variant int

const (
	VariantUnknown Variant = iota
	VariantLong4 // native-32/win64: C `long` is 4 bytes
	VariantLong8 // linux64: C `long` is 8 bytes
)

func (v Variant) String() string {
	switch v {
	case VariantLong4:
		return "long4"
	case VariantLong8:
		return "long8"
	default:
		return "unknown"
	}
}

const preludeBytes = 32 // hdrSiz..pad, fixed width across all variants

// Header is the canonical, variant-independent decoded form of the
// tape file's fixed prelude. All three on-disk variants expose these
// same logical fields through this one accessor struct.
type Header struct {
	Variant Variant

	HdrSiz     uint32
	SizeofLong uint32
	SecPerIdxT uint32
	NumSecIdxT uint32
	SecPerIdxR uint32
	NumSecIdxR uint32
	Sentinel   uint32

	TapeStart uint64 // tape creation epoch seconds

	CoarseIdxOff uint64
	RecIdxOff    uint64
	StreamIdxOff uint64
	JournalOff   uint64

	FreeIdx uint64 // append point
	FileSiz uint64
}

const sentinelClean = 1 << 0

// DetectVariant reads sizeofLong from the first 16 bytes of buf and
// returns the Variant that long width implies (VariantLong4 or
// VariantLong8); any other width yields ErrUnknownVariant.
func DetectVariant(buf []byte) (Variant, error) {
	if len(buf) < 16 {
		return VariantUnknown, fmt.Errorf("tape: prelude truncated")
	}
	sizeofLong := binary.LittleEndian.Uint32(buf[4:8])
	switch sizeofLong {
	case 4:
		return VariantLong4, nil
	case 8:
		return VariantLong8, nil
	default:
		return VariantUnknown, ErrUnknownVariant
	}
}

func longWidth(v Variant) int {
	if v == VariantLong8 {
		return 8
	}
	return 4
}

// HeaderSize returns the total prelude size in bytes for a variant.
func HeaderSize(v Variant) int {
	return preludeBytes + longWidth(v) + 6*8
}

// ReadHeader decodes the full prelude, dispatching on the
// auto-detected variant.
func ReadHeader(buf []byte) (Header, error) {
	v, err := DetectVariant(buf)
	if err != nil {
		return Header{}, err
	}
	if len(buf) < HeaderSize(v) {
		return Header{}, fmt.Errorf("%w: header truncated for variant %s", ErrCorrupt, v)
	}
	h := Header{
		Variant:    v,
		HdrSiz:     binary.LittleEndian.Uint32(buf[0:4]),
		SizeofLong: binary.LittleEndian.Uint32(buf[4:8]),
		SecPerIdxT: binary.LittleEndian.Uint32(buf[8:12]),
		NumSecIdxT: binary.LittleEndian.Uint32(buf[12:16]),
		SecPerIdxR: binary.LittleEndian.Uint32(buf[16:20]),
		NumSecIdxR: binary.LittleEndian.Uint32(buf[20:24]),
		Sentinel:   binary.LittleEndian.Uint32(buf[24:28]),
	}
	off := preludeBytes
	w := longWidth(v)
	if w == 4 {
		h.TapeStart = uint64(binary.LittleEndian.Uint32(buf[off : off+4]))
	} else {
		h.TapeStart = binary.LittleEndian.Uint64(buf[off : off+8])
	}
	off += w
	h.CoarseIdxOff = binary.LittleEndian.Uint64(buf[off : off+8])
	off += 8
	h.RecIdxOff = binary.LittleEndian.Uint64(buf[off : off+8])
	off += 8
	h.StreamIdxOff = binary.LittleEndian.Uint64(buf[off : off+8])
	off += 8
	h.JournalOff = binary.LittleEndian.Uint64(buf[off : off+8])
	off += 8
	h.FreeIdx = binary.LittleEndian.Uint64(buf[off : off+8])
	off += 8
	h.FileSiz = binary.LittleEndian.Uint64(buf[off : off+8])
	return h, nil
}

// WriteHeader serializes h at its own variant's width. Callers
// writing a fresh tape pick VariantLong8 on 64-bit platforms and
// VariantLong4 otherwise; TapeWriter always writes VariantLong8
// (see writer.go).
func WriteHeader(buf []byte, h Header) {
	binary.LittleEndian.PutUint32(buf[0:4], h.HdrSiz)
	binary.LittleEndian.PutUint32(buf[4:8], h.SizeofLong)
	binary.LittleEndian.PutUint32(buf[8:12], h.SecPerIdxT)
	binary.LittleEndian.PutUint32(buf[12:16], h.NumSecIdxT)
	binary.LittleEndian.PutUint32(buf[16:20], h.SecPerIdxR)
	binary.LittleEndian.PutUint32(buf[20:24], h.NumSecIdxR)
	binary.LittleEndian.PutUint32(buf[24:28], h.Sentinel)
	off := preludeBytes
	w := longWidth(h.Variant)
	if w == 4 {
		binary.LittleEndian.PutUint32(buf[off:off+4], uint32(h.TapeStart))
	} else {
		binary.LittleEndian.PutUint64(buf[off:off+8], h.TapeStart)
	}
	off += w
	binary.LittleEndian.PutUint64(buf[off:off+8], h.CoarseIdxOff)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:off+8], h.RecIdxOff)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:off+8], h.StreamIdxOff)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:off+8], h.JournalOff)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:off+8], h.FreeIdx)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:off+8], h.FileSiz)
}

// CleanClose reports whether the header's sentinel word indicates
// the tape was closed cleanly.
func (h Header) CleanClose() bool {
	return h.Sentinel&sentinelClean != 0
}
