// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lvc

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/mdcore/mdd/pkg/wire"
)

func isVarLen(t wire.FieldType) bool {
	switch t {
	case wire.String, wire.ByteStream, wire.Vector:
		return true
	default:
		return false
	}
}

// DefaultFixedWidth gives a natural on-disk width for the fixed-size
// field types, used when building a Schema programmatically rather
// than loading one from an existing LVC file.
func DefaultFixedWidth(t wire.FieldType) uint16 {
	switch t {
	case wire.Int8:
		return 1
	case wire.Int16:
		return 2
	case wire.Int32, wire.Float:
		return 4
	case wire.Int64, wire.Double:
		return 8
	case wire.Real:
		return 9 // i64 mantissa + u8 hint
	case wire.Date, wire.Time, wire.TimeSec, wire.DateTime, wire.UnixTime:
		return 4
	default:
		return 2 // u16 length prefix only, no payload budget
	}
}

// EncodeValue packs f's value into exactly width bytes per e's
// declared type: fixed types occupy the slot directly; variable types
// use a {len:u16, bytes:[width-2]} sub-layout.
func EncodeValue(e wire.Entry, f wire.Field) ([]byte, error) {
	width := int(e.FixedWidth)
	buf := make([]byte, width)

	if isVarLen(e.Type) {
		if width < 2 {
			return nil, fmt.Errorf("lvc: fixedWidth %d too small for variable field %q", width, e.Name)
		}
		var payload []byte
		switch e.Type {
		case wire.String:
			payload = []byte(f.Str)
		case wire.ByteStream:
			payload = f.Bytes
		case wire.Vector:
			payload = encodeVectorPayload(f)
		}
		if len(payload) > width-2 {
			return nil, fmt.Errorf("lvc: value for %q (%d bytes) exceeds slot budget %d", e.Name, len(payload), width-2)
		}
		binary.LittleEndian.PutUint16(buf[0:2], uint16(len(payload)))
		copy(buf[2:], payload)
		return buf, nil
	}

	switch e.Type {
	case wire.Int8:
		if width < 1 {
			return nil, fmt.Errorf("lvc: width too small for Int8")
		}
		buf[0] = byte(int8(f.I64))
	case wire.Int16:
		binary.LittleEndian.PutUint16(buf, uint16(int16(f.I64)))
	case wire.Int32:
		binary.LittleEndian.PutUint32(buf, uint32(int32(f.I64)))
	case wire.Int64:
		binary.LittleEndian.PutUint64(buf, uint64(f.I64))
	case wire.Float:
		binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(f.F64)))
	case wire.Double:
		binary.LittleEndian.PutUint64(buf, math.Float64bits(f.F64))
	case wire.Real:
		if width < 9 {
			return nil, fmt.Errorf("lvc: width too small for Real")
		}
		binary.LittleEndian.PutUint64(buf[0:8], uint64(f.RealMantissa))
		buf[8] = f.RealHint
	case wire.Date, wire.Time, wire.TimeSec, wire.DateTime, wire.UnixTime:
		binary.LittleEndian.PutUint32(buf, uint32(f.I64))
	default:
		return nil, fmt.Errorf("lvc: unsupported field type %v for %q", e.Type, e.Name)
	}
	return buf, nil
}

// DecodeValue is the inverse of EncodeValue.
func DecodeValue(e wire.Entry, fid int32, buf []byte) (wire.Field, error) {
	f := wire.Field{Fid: fid, Type: e.Type}

	if isVarLen(e.Type) {
		if len(buf) < 2 {
			return f, fmt.Errorf("lvc: value slot too small for %q", e.Name)
		}
		n := binary.LittleEndian.Uint16(buf[0:2])
		if int(n)+2 > len(buf) {
			return f, fmt.Errorf("%w: value length exceeds slot for %q", ErrCorrupt, e.Name)
		}
		payload := buf[2 : 2+int(n)]
		switch e.Type {
		case wire.String:
			f.Str = string(payload)
		case wire.ByteStream:
			f.Bytes = append([]byte(nil), payload...)
		case wire.Vector:
			decodeVectorPayload(&f, payload)
		}
		return f, nil
	}

	switch e.Type {
	case wire.Int8:
		f.I64 = int64(int8(buf[0]))
	case wire.Int16:
		f.I64 = int64(int16(binary.LittleEndian.Uint16(buf)))
	case wire.Int32:
		f.I64 = int64(int32(binary.LittleEndian.Uint32(buf)))
	case wire.Int64:
		f.I64 = int64(binary.LittleEndian.Uint64(buf))
	case wire.Float:
		f.F64 = float64(math.Float32frombits(binary.LittleEndian.Uint32(buf)))
	case wire.Double:
		f.F64 = math.Float64frombits(binary.LittleEndian.Uint64(buf))
	case wire.Real:
		f.RealMantissa = int64(binary.LittleEndian.Uint64(buf[0:8]))
		f.RealHint = buf[8]
	case wire.Date, wire.Time, wire.TimeSec, wire.DateTime, wire.UnixTime:
		f.I64 = int64(binary.LittleEndian.Uint32(buf))
	default:
		return f, fmt.Errorf("lvc: unsupported field type %v for %q", e.Type, e.Name)
	}
	return f, nil
}

func encodeVectorPayload(f wire.Field) []byte {
	buf := make([]byte, 1+4+len(f.Vector)*8)
	buf[0] = f.VecPrecision
	binary.LittleEndian.PutUint32(buf[1:5], uint32(len(f.Vector)))
	scale := math.Pow10(int(f.VecPrecision))
	for i, v := range f.Vector {
		off := 5 + i*8
		binary.LittleEndian.PutUint64(buf[off:off+8], uint64(int64(math.Round(v*scale))))
	}
	return buf
}

func decodeVectorPayload(f *wire.Field, buf []byte) {
	if len(buf) < 5 {
		return
	}
	f.VecPrecision = buf[0]
	count := binary.LittleEndian.Uint32(buf[1:5])
	scale := math.Pow10(int(f.VecPrecision))
	vec := make([]float64, 0, count)
	for i := 0; i < int(count); i++ {
		off := 5 + i*8
		if off+8 > len(buf) {
			break
		}
		raw := int64(binary.LittleEndian.Uint64(buf[off : off+8]))
		vec = append(vec, float64(raw)/scale)
	}
	f.Vector = vec
}
