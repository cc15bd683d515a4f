// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wire

import (
	"encoding/binary"
	"fmt"
	"math"
)

// binPreludeBytes is the fixed prelude size: msgLen:u32, protocol:u8,
// msgType:u8, dataType:u8, bPacked:u8, tag:i32, RTL:i32, timeSec:u32,
// timeUs:u32, hdrLen:u16.
const binPreludeBytes = 4 + 1 + 1 + 1 + 1 + 4 + 4 + 4 + 4 + 2

const binProtocolVersion = 1

// binDecode parses one Binary-framed message from the start of buf.
func binDecode(buf []byte) (int, Message, error) {
	if len(buf) < binPreludeBytes {
		return 0, Message{}, ErrIncomplete
	}
	msgLen := binary.LittleEndian.Uint32(buf[0:4])
	if msgLen < binPreludeBytes {
		return 0, Message{}, &Error{Kind: KindBadFraming, Msg: fmt.Sprintf("wire/bin: msgLen %d smaller than prelude", msgLen)}
	}
	if uint32(len(buf)) < msgLen {
		return 0, Message{}, ErrIncomplete
	}

	msgType := MsgType(buf[5])
	dataType := DataType(buf[6])
	packed := buf[7] != 0
	tag := int32(binary.LittleEndian.Uint32(buf[8:12]))
	rtl := int32(binary.LittleEndian.Uint32(buf[12:16]))
	tSec := binary.LittleEndian.Uint32(buf[16:20])
	tUsec := binary.LittleEndian.Uint32(buf[20:24])
	hdrLen := binary.LittleEndian.Uint16(buf[24:26])

	hdrEnd := binPreludeBytes + int(hdrLen)
	if uint32(hdrEnd) > msgLen {
		return 0, Message{}, &Error{Kind: KindBadFraming, Msg: "wire/bin: header section exceeds message length"}
	}
	hdr := buf[binPreludeBytes:hdrEnd]
	svc, hdr, err := binReadStr8(hdr)
	if err != nil {
		return 0, Message{}, &Error{Kind: KindBadFraming, Msg: "wire/bin: malformed svc", Err: err}
	}
	tkr, hdr, err := binReadStr8(hdr)
	if err != nil {
		return 0, Message{}, &Error{Kind: KindBadFraming, Msg: "wire/bin: malformed tkr", Err: err}
	}
	errStr, _, err := binReadStr8(hdr)
	if err != nil {
		return 0, Message{}, &Error{Kind: KindBadFraming, Msg: "wire/bin: malformed err", Err: err}
	}

	fl := NewFieldList(8)
	body := buf[hdrEnd:msgLen]
	for len(body) > 0 {
		f, rest, err := binDecodeField(body, packed)
		if err != nil {
			return 0, Message{}, &Error{Kind: KindBadFraming, Msg: "wire/bin: malformed field record", Err: err}
		}
		fl.Add(f)
		body = rest
	}
	fl.Dedup()

	msg := Message{
		Header: Header{
			MsgType:  msgType,
			DataType: dataType,
			TagInt:   tag,
			RTL:      rtl,
			TSec:     tSec,
			TUsec:    tUsec,
			Svc:      svc,
			Tkr:      tkr,
			Err:      errStr,
		},
		Fields: fl,
	}
	if msgType == MTImage || msgType == MTUpdate {
		if fl.Len() == 0 {
			msg.Header.MsgType = MTInsAck
		}
	}
	return int(msgLen), msg, nil
}

// BuildOpts controls wire-level choices made at Build time.
type BuildOpts struct {
	// Packed selects the minimal varint field encoding for Binary
	// framing; false selects fixed-width-by-type encoding. Ignored
	// by XML and MF.
	Packed bool
}

func binBuild(h Header, fl *FieldList, opts BuildOpts) ([]byte, error) {
	var hdr []byte
	hdr = binAppendStr8(hdr, h.Svc)
	hdr = binAppendStr8(hdr, h.Tkr)
	hdr = binAppendStr8(hdr, h.Err)

	var body []byte
	for _, f := range fl.All() {
		body = binEncodeField(body, f, opts.Packed)
	}

	msgLen := binPreludeBytes + len(hdr) + len(body)
	out := make([]byte, msgLen)
	binary.LittleEndian.PutUint32(out[0:4], uint32(msgLen))
	out[4] = binProtocolVersion
	out[5] = byte(h.MsgType)
	out[6] = byte(h.DataType)
	if opts.Packed {
		out[7] = 1
	}
	binary.LittleEndian.PutUint32(out[8:12], uint32(h.TagInt))
	binary.LittleEndian.PutUint32(out[12:16], uint32(h.RTL))
	binary.LittleEndian.PutUint32(out[16:20], h.TSec)
	binary.LittleEndian.PutUint32(out[20:24], h.TUsec)
	binary.LittleEndian.PutUint16(out[24:26], uint16(len(hdr)))
	copy(out[binPreludeBytes:], hdr)
	copy(out[binPreludeBytes+len(hdr):], body)
	return out, nil
}

func binReadStr8(b []byte) (string, []byte, error) {
	if len(b) < 1 {
		return "", b, ErrIncomplete
	}
	n := int(b[0])
	if len(b) < 1+n {
		return "", b, ErrIncomplete
	}
	return string(b[1 : 1+n]), b[1+n:], nil
}

func binAppendStr8(b []byte, s string) []byte {
	if len(s) > 255 {
		s = s[:255]
	}
	b = append(b, byte(len(s)))
	b = append(b, s...)
	return b
}

// binEncodeField appends one field record. The fid and type tag are
// always present; only the value payload width is mode-dependent.
func binEncodeField(b []byte, f Field, packed bool) []byte {
	var fidBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(fidBuf[:], uint64(uint32(f.Fid)))
	b = append(b, fidBuf[:n]...)
	b = append(b, byte(f.Type))

	switch f.Type {
	case Real:
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], uint64(f.RealMantissa))
		b = append(b, buf[:]...)
		b = append(b, f.RealHint, 0)
	case Vector:
		b = append(b, f.VecPrecision)
		var cbuf [4]byte
		binary.LittleEndian.PutUint32(cbuf[:], uint32(len(f.Vector)))
		b = append(b, cbuf[:]...)
		scale := math.Pow10(int(f.VecPrecision))
		for _, v := range f.Vector {
			var vbuf [8]byte
			binary.LittleEndian.PutUint64(vbuf[:], uint64(int64(math.Round(v*scale))))
			b = append(b, vbuf[:]...)
		}
	case String, ByteStream:
		raw := []byte(f.Str)
		if f.Type == ByteStream {
			raw = f.Bytes
		}
		if packed {
			var lbuf [binary.MaxVarintLen64]byte
			ln := binary.PutUvarint(lbuf[:], uint64(len(raw)))
			b = append(b, lbuf[:ln]...)
		} else {
			var lbuf [2]byte
			binary.LittleEndian.PutUint16(lbuf[:], uint16(len(raw)))
			b = append(b, lbuf[:]...)
		}
		b = append(b, raw...)
	case Float, Double:
		if packed {
			var buf [8]byte
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(f.F64))
			b = append(b, buf[:]...)
		} else if f.Type == Float {
			var buf [4]byte
			binary.LittleEndian.PutUint32(buf[:], math.Float32bits(float32(f.F64)))
			b = append(b, buf[:]...)
		} else {
			var buf [8]byte
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(f.F64))
			b = append(b, buf[:]...)
		}
	default: // integer-like and date/time variants, carried in I64
		if packed {
			var buf [binary.MaxVarintLen64]byte
			n := binary.PutVarint(buf[:], f.I64)
			b = append(b, buf[:n]...)
		} else {
			b = binAppendFixedInt(b, f.Type, f.I64)
		}
	}
	return b
}

func binAppendFixedInt(b []byte, t FieldType, v int64) []byte {
	switch t {
	case Int8:
		return append(b, byte(int8(v)))
	case Int16:
		var buf [2]byte
		binary.LittleEndian.PutUint16(buf[:], uint16(int16(v)))
		return append(b, buf[:]...)
	case Int32:
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], uint32(int32(v)))
		return append(b, buf[:]...)
	case Int64:
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], uint64(v))
		return append(b, buf[:]...)
	default: // Date, Time, TimeSec, DateTime, UnixTime
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], uint32(v))
		return append(b, buf[:]...)
	}
}

func binDecodeField(b []byte, packed bool) (Field, []byte, error) {
	fid64, n := binary.Uvarint(b)
	if n <= 0 {
		return Field{}, nil, ErrIncomplete
	}
	b = b[n:]
	if len(b) < 1 {
		return Field{}, nil, ErrIncomplete
	}
	typ := FieldType(b[0])
	b = b[1:]
	f := Field{Fid: int32(uint32(fid64)), Type: typ}

	switch typ {
	case Real:
		if len(b) < 10 {
			return Field{}, nil, ErrIncomplete
		}
		f.RealMantissa = int64(binary.LittleEndian.Uint64(b[0:8]))
		f.RealHint = b[8]
		return f, b[10:], nil
	case Vector:
		if len(b) < 5 {
			return Field{}, nil, ErrIncomplete
		}
		f.VecPrecision = b[0]
		count := binary.LittleEndian.Uint32(b[1:5])
		b = b[5:]
		need := int(count) * 8
		if len(b) < need {
			return Field{}, nil, ErrIncomplete
		}
		scale := math.Pow10(int(f.VecPrecision))
		vec := make([]float64, count)
		for i := range vec {
			raw := int64(binary.LittleEndian.Uint64(b[i*8 : i*8+8]))
			vec[i] = float64(raw) / scale
		}
		f.Vector = vec
		return f, b[need:], nil
	case String, ByteStream:
		var ln int
		if packed {
			l64, n := binary.Uvarint(b)
			if n <= 0 {
				return Field{}, nil, ErrIncomplete
			}
			ln = int(l64)
			b = b[n:]
		} else {
			if len(b) < 2 {
				return Field{}, nil, ErrIncomplete
			}
			ln = int(binary.LittleEndian.Uint16(b[0:2]))
			b = b[2:]
		}
		if len(b) < ln {
			return Field{}, nil, ErrIncomplete
		}
		raw := b[:ln]
		if typ == ByteStream {
			f.Bytes = append([]byte(nil), raw...)
		} else {
			f.Str = string(raw)
		}
		return f, b[ln:], nil
	case Float, Double:
		if packed {
			if len(b) < 8 {
				return Field{}, nil, ErrIncomplete
			}
			f.F64 = math.Float64frombits(binary.LittleEndian.Uint64(b[0:8]))
			return f, b[8:], nil
		}
		if typ == Float {
			if len(b) < 4 {
				return Field{}, nil, ErrIncomplete
			}
			f.F64 = float64(math.Float32frombits(binary.LittleEndian.Uint32(b[0:4])))
			return f, b[4:], nil
		}
		if len(b) < 8 {
			return Field{}, nil, ErrIncomplete
		}
		f.F64 = math.Float64frombits(binary.LittleEndian.Uint64(b[0:8]))
		return f, b[8:], nil
	default:
		if packed {
			v, n := binary.Varint(b)
			if n <= 0 {
				return Field{}, nil, ErrIncomplete
			}
			f.I64 = v
			return f, b[n:], nil
		}
		width := 4
		switch typ {
		case Int8:
			width = 1
		case Int16:
			width = 2
		case Int64:
			width = 8
		}
		if len(b) < width {
			return Field{}, nil, ErrIncomplete
		}
		switch width {
		case 1:
			f.I64 = int64(int8(b[0]))
		case 2:
			f.I64 = int64(int16(binary.LittleEndian.Uint16(b[0:2])))
		case 4:
			f.I64 = int64(int32(binary.LittleEndian.Uint32(b[0:4])))
		case 8:
			f.I64 = int64(binary.LittleEndian.Uint64(b[0:8]))
		}
		return f, b[width:], nil
	}
}

// binPing is the keepalive payload: a zero-field message with
// MsgType Ping carrying the sender's current wall-clock.
func binPing(tsec, tusec uint32) []byte {
	h := Header{MsgType: MTPing, TSec: tsec, TUsec: tusec}
	out, _ := binBuild(h, NewFieldList(0), BuildOpts{})
	return out
}
