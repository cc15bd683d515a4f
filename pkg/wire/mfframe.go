// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// MarketFeed (MF) control delimiters.
const (
	mfFS byte = 0x1C
	mfGS byte = 0x1D
	mfRS byte = 0x1E
	mfUS byte = 0x1F
)

var mfMTtoMsgType = map[int]MsgType{
	340: MTImage,
	316: MTUpdate,
	318: MTStale,
	330: MTCtl,
	319: MTGlobalStatus,
	348: MTPing,
}

var mfMsgTypeToMT = map[MsgType]int{
	MTImage:        340,
	MTUpdate:       316,
	MTStale:        318,
	MTCtl:          330,
	MTGlobalStatus: 319,
	MTPing:         348,
}

// mfDecode parses one whole MF message starting at the first FS byte
// found in buf. It returns the number of bytes consumed (including
// any leading slop) and the decoded message, or ErrIncomplete /
// ErrBadFraming.
func mfDecode(buf []byte, native bool, schema *Schema) (int, Message, error) {
	start := bytes.IndexByte(buf, mfFS)
	if start < 0 {
		return 0, Message{}, ErrIncomplete
	}
	// The closing FS of this message is the next FS after the leading one.
	end := bytes.IndexByte(buf[start+1:], mfFS)
	if end < 0 {
		return 0, Message{}, ErrIncomplete
	}
	end = start + 1 + end
	body := buf[start+1 : end]
	consumed := end + 1

	tok := newMfTokenizer(body)

	mtStr, sep, err := tok.next()
	if err != nil || sep != mfUS {
		return 0, Message{}, &Error{Kind: KindBadFraming, Msg: "wire/mf: malformed message-type field", Err: err}
	}
	mt, err := strconv.Atoi(mtStr)
	if err != nil {
		return 0, Message{}, &Error{Kind: KindBadFraming, Msg: "wire/mf: message-type not numeric", Err: err}
	}
	msgType, ok := mfMTtoMsgType[mt]
	if !ok {
		return 0, Message{}, &Error{Kind: KindBadFraming, Msg: fmt.Sprintf("wire/mf: unknown message type %d", mt)}
	}

	svc, sep, err := tok.next()
	if err != nil || sep != mfGS {
		return 0, Message{}, &Error{Kind: KindBadFraming, Msg: "wire/mf: malformed svc field", Err: err}
	}
	tkr, sep, err := tok.next()
	if err != nil || sep != mfUS {
		return 0, Message{}, &Error{Kind: KindBadFraming, Msg: "wire/mf: malformed tkr field", Err: err}
	}
	rtlStr, sep, err := tok.next()
	if err != nil || sep != mfUS {
		return 0, Message{}, &Error{Kind: KindBadFraming, Msg: "wire/mf: malformed rtl field", Err: err}
	}
	rtl, _ := strconv.Atoi(rtlStr)
	tagStr, sep, err := tok.next()
	if err != nil || sep != mfRS {
		return 0, Message{}, &Error{Kind: KindBadFraming, Msg: "wire/mf: malformed tag field", Err: err}
	}
	tag, _ := strconv.Atoi(tagStr)

	fl := NewFieldList(8)
	for !tok.atEnd() {
		fidStr, sep, err := tok.next()
		if err != nil {
			return 0, Message{}, &Error{Kind: KindBadFraming, Msg: "wire/mf: malformed field id", Err: err}
		}
		if sep != mfUS {
			return 0, Message{}, &Error{Kind: KindBadFraming, Msg: "wire/mf: expected US after field id"}
		}
		fid, err := strconv.Atoi(fidStr)
		if err != nil {
			return 0, Message{}, &Error{Kind: KindBadFraming, Msg: "wire/mf: field id not numeric", Err: err}
		}
		valStr, sep, err := tok.next()
		if err != nil || sep != mfRS {
			return 0, Message{}, &Error{Kind: KindBadFraming, Msg: "wire/mf: malformed field value", Err: err}
		}

		f := Field{Fid: int32(fid), Type: String, Str: valStr}
		if native && schema != nil {
			if e, ok := schema.FindByFid(int32(fid)); ok {
				f = nativeizeMF(int32(fid), e.Type, valStr)
			}
		}
		fl.Add(f)
	}
	fl.Dedup()

	msg := Message{
		Header: Header{
			MsgType: msgType,
			TagStr:  tagStr,
			TagInt:  int32(tag),
			RTL:     int32(rtl),
			Svc:     svc,
			Tkr:     tkr,
		},
		Fields: fl,
	}
	if msgType == MTImage || msgType == MTUpdate {
		if fl.Len() == 0 {
			msg.Header.MsgType = MTInsAck
		}
	}
	return consumed, msg, nil
}

// nativeizeMF converts a string-typed MF value into the field type
// the schema declares for fid, recognizing the fractional-price forms
// the original parser accepts ("99 24/32", bare whole numbers, and
// negative whole parts with a positive fraction).
func nativeizeMF(fid int32, t FieldType, s string) Field {
	switch t {
	case Double, Float, Real:
		if v, ok := parseMFNumber(s); ok {
			if t == Real {
				return Field{Fid: fid, Type: Real, RealMantissa: DoubleToReal(v, 4), RealHint: 4}
			}
			return Field{Fid: fid, Type: t, F64: v}
		}
	case Int8, Int16, Int32, Int64, UnixTime, TimeSec:
		if v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			return Field{Fid: fid, Type: t, I64: v}
		}
	}
	return Field{Fid: fid, Type: String, Str: s}
}

// parseMFNumber accepts plain decimals and the fractional-price
// notation "<whole> <num>/<den>", including a negative whole part
// with a positive fraction ("-1 1/2" == -1.5).
func parseMFNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if idx := strings.IndexByte(s, ' '); idx >= 0 {
		wholeStr, fracStr := s[:idx], strings.TrimSpace(s[idx+1:])
		slash := strings.IndexByte(fracStr, '/')
		if slash < 0 {
			return 0, false
		}
		numStr, denStr := fracStr[:slash], fracStr[slash+1:]
		whole, err1 := strconv.ParseFloat(wholeStr, 64)
		num, err2 := strconv.ParseFloat(numStr, 64)
		den, err3 := strconv.ParseFloat(denStr, 64)
		if err1 != nil || err2 != nil || err3 != nil || den == 0 {
			return 0, false
		}
		frac := num / den
		if whole < 0 || strings.HasPrefix(wholeStr, "-") {
			return whole - frac, true
		}
		return whole + frac, true
	}
	if slash := strings.IndexByte(s, '/'); slash >= 0 {
		num, err1 := strconv.ParseFloat(s[:slash], 64)
		den, err2 := strconv.ParseFloat(s[slash+1:], 64)
		if err1 != nil || err2 != nil || den == 0 {
			return 0, false
		}
		return num / den, true
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// mfBuild renders a header+FieldList into MF wire bytes.
func mfBuild(h Header, fl *FieldList) ([]byte, error) {
	mt, ok := mfMsgTypeToMT[h.MsgType]
	if !ok {
		return nil, &Error{Kind: KindBadFraming, Msg: fmt.Sprintf("wire/mf: msgType %v has no MF code", h.MsgType)}
	}
	var b bytes.Buffer
	b.WriteByte(mfFS)
	fmt.Fprintf(&b, "%d", mt)
	b.WriteByte(mfUS)
	b.WriteString(h.Svc)
	b.WriteByte(mfGS)
	b.WriteString(h.Tkr)
	b.WriteByte(mfUS)
	fmt.Fprintf(&b, "%d", h.RTL)
	b.WriteByte(mfUS)
	if h.TagStr != "" {
		b.WriteString(h.TagStr)
	} else {
		fmt.Fprintf(&b, "%d", h.TagInt)
	}
	b.WriteByte(mfRS)
	for _, f := range fl.All() {
		fmt.Fprintf(&b, "%d", f.Fid)
		b.WriteByte(mfUS)
		b.WriteString(mfFieldString(f))
		b.WriteByte(mfRS)
	}
	b.WriteByte(mfFS)
	return b.Bytes(), nil
}

func mfFieldString(f Field) string {
	switch f.Type {
	case String, ByteStream:
		return f.Str
	case Double, Float:
		return strconv.FormatFloat(f.F64, 'f', -1, 64)
	case Real:
		return strconv.FormatFloat(RealToDouble(f.RealMantissa, f.RealHint), 'f', -1, 64)
	case Int8, Int16, Int32, Int64, UnixTime, TimeSec:
		return strconv.FormatInt(f.I64, 10)
	default:
		return f.Str
	}
}

// mfPing is the protocol-specific keepalive payload: an MF message
// with MT=348 and the sender's current wall-clock carried as the tag
// field in place of a body, matching the original's non-empty ping.
func mfPing(tsec, tusec uint32) []byte {
	var b bytes.Buffer
	b.WriteByte(mfFS)
	b.WriteString("348")
	b.WriteByte(mfUS)
	b.WriteByte(mfGS)
	b.WriteByte(mfUS)
	b.WriteString("0") // RTL
	b.WriteByte(mfUS)
	fmt.Fprintf(&b, "%d.%06d", tsec, tusec)
	b.WriteByte(mfRS)
	b.WriteByte(mfFS)
	return b.Bytes()
}

// mfTokenizer scans tokens between mfFS/mfGS/mfRS/mfUS delimiters.
type mfTokenizer struct {
	buf []byte
	pos int
}

func newMfTokenizer(buf []byte) *mfTokenizer { return &mfTokenizer{buf: buf} }

func (t *mfTokenizer) atEnd() bool { return t.pos >= len(t.buf) }

// next reads bytes up to (and consuming) the next delimiter, returning
// the token and which delimiter terminated it.
func (t *mfTokenizer) next() (string, byte, error) {
	start := t.pos
	for t.pos < len(t.buf) {
		c := t.buf[t.pos]
		if c == mfGS || c == mfUS || c == mfRS {
			tok := string(t.buf[start:t.pos])
			t.pos++
			return tok, c, nil
		}
		t.pos++
	}
	return "", 0, ErrIncomplete
}
