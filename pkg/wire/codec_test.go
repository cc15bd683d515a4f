// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMFRoundTrip builds and re-parses an Image for BLOOMBERG/IBM
// EQUITY, tag 42, RTL 7, fields 22 and 25.
func TestMFRoundTrip(t *testing.T) {
	h := Header{
		MsgType: MTImage,
		Svc:     "BLOOMBERG",
		Tkr:     "IBM EQUITY",
		TagStr:  "42",
		RTL:     7,
	}
	fl := NewFieldList(2)
	fl.Add(Field{Fid: 22, Type: String, Str: "120.50"})
	fl.Add(Field{Fid: 25, Type: String, Str: "120.55"})

	c := NewCodec(ProtoMF, nil)
	buf, err := c.Build(h, fl, BuildOpts{})
	require.NoError(t, err)

	n, msg, err := c.Parse(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
	assert.Equal(t, MTImage, msg.Header.MsgType)
	assert.Equal(t, "BLOOMBERG", msg.Header.Svc)
	assert.Equal(t, "IBM EQUITY", msg.Header.Tkr)
	assert.EqualValues(t, 42, msg.Header.TagInt)
	assert.EqualValues(t, 7, msg.Header.RTL)

	f22, ok := msg.Fields.Get(22)
	require.True(t, ok)
	assert.Equal(t, "120.50", f22.Str)
	f25, ok := msg.Fields.Get(25)
	require.True(t, ok)
	assert.Equal(t, "120.55", f25.Str)
}

// TestMFFieldOrderMatchesS1 pins the RTL-before-Tag field order the
// wire literally carries: FS MT US Svc GS Tkr US RTL US Tag RS ...
func TestMFFieldOrderMatchesS1(t *testing.T) {
	h := Header{MsgType: MTImage, Svc: "BLOOMBERG", Tkr: "IBM EQUITY", TagStr: "42", RTL: 7}
	buf, err := mfBuild(h, NewFieldList(0))
	require.NoError(t, err)

	want := []byte{mfFS}
	want = append(want, "340"...)
	want = append(want, mfUS)
	want = append(want, "BLOOMBERG"...)
	want = append(want, mfGS)
	want = append(want, "IBM EQUITY"...)
	want = append(want, mfUS)
	want = append(want, "7"...)
	want = append(want, mfUS)
	want = append(want, "42"...)
	want = append(want, mfRS, mfFS)
	assert.Equal(t, want, buf)
}

// TestMFNativeFieldFractionalPrice exercises nativeField decoding of
// the fractional-price notation against a schema-declared Double fid.
func TestMFNativeFieldFractionalPrice(t *testing.T) {
	schema, err := NewSchema([]Entry{
		{Fid: 22, Name: "BID", Type: Double},
	})
	require.NoError(t, err)

	h := Header{MsgType: MTUpdate, Svc: "S", Tkr: "T", TagStr: "1", RTL: 1}
	fl := NewFieldList(1)
	fl.Add(Field{Fid: 22, Type: String, Str: "99 24/32"})
	buf, err := mfBuild(h, fl)
	require.NoError(t, err)

	c := NewCodec(ProtoMF, schema)
	c.SetNativeField(true)
	_, msg, err := c.Parse(buf)
	require.NoError(t, err)

	f, ok := msg.Fields.Get(22)
	require.True(t, ok)
	require.Equal(t, Double, f.Type)
	assert.InDelta(t, 99.75, f.F64, 1e-9)
}

// TestBinaryRealRoundTrip checks that a Real field with mantissa
// 12055 and hint 2 decodes to 120.55 within 1e-9.
func TestBinaryRealRoundTrip(t *testing.T) {
	h := Header{MsgType: MTUpdate, Svc: "S1", Tkr: "T1", TagInt: 1, RTL: 1}
	fl := NewFieldList(1)
	fl.Add(Field{Fid: 22, Type: Real, RealMantissa: 12055, RealHint: 2})

	c := NewCodec(ProtoBinary, nil)
	buf, err := c.Build(h, fl, BuildOpts{Packed: false})
	require.NoError(t, err)

	n, msg, err := c.Parse(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)

	f, ok := msg.Fields.Get(22)
	require.True(t, ok)
	assert.Equal(t, Real, f.Type)
	d, ok := f.AsDouble()
	require.True(t, ok)
	assert.InDelta(t, 120.55, d, 1e-9)
}

// TestBinaryRealRoundTripPacked re-runs the Real round trip with the
// packed varint field encoding to ensure Real is unaffected by
// BuildOpts.Packed (it is always fixed-width per binEncodeField).
func TestBinaryRealRoundTripPacked(t *testing.T) {
	h := Header{MsgType: MTUpdate, Svc: "S1", Tkr: "T1", TagInt: 1, RTL: 1}
	fl := NewFieldList(1)
	fl.Add(Field{Fid: 22, Type: Real, RealMantissa: 12055, RealHint: 2})

	c := NewCodec(ProtoBinary, nil)
	buf, err := c.Build(h, fl, BuildOpts{Packed: true})
	require.NoError(t, err)

	_, msg, err := c.Parse(buf)
	require.NoError(t, err)
	f, ok := msg.Fields.Get(22)
	require.True(t, ok)
	d, _ := f.AsDouble()
	assert.InDelta(t, 120.55, d, 1e-9)
}

// TestXMLNativeFieldDouble checks that an XML update with a
// string-valued _22 field decodes to String, and that nativeizeMF
// turns the same "9.5" into a Double once a schema declares fid 22
// as Double.
func TestXMLNativeFieldDouble(t *testing.T) {
	buf := []byte(`<update Svc="S" Name="N" Tag="1" RTL="1" Time="0"><_22 v="9.5"/></update>`)

	c := NewCodec(ProtoXML, nil)
	_, msg, err := c.Parse(buf)
	require.NoError(t, err)
	f, ok := msg.Fields.Get(22)
	require.True(t, ok)
	assert.Equal(t, String, f.Type)
	assert.Equal(t, "9.5", f.Str)

	schema, err := NewSchema([]Entry{{Fid: 22, Name: "N22", Type: Double}})
	require.NoError(t, err)

	nf := nativeizeMF(22, schema.entries[0].Type, "9.5")
	assert.Equal(t, Double, nf.Type)
	assert.InDelta(t, 9.5, nf.F64, 1e-9)
}

// TestDetectProtocol exercises the protocol-auto-detect property
// for each supported framing.
func TestDetectProtocol(t *testing.T) {
	assert.Equal(t, ProtoXML, DetectProtocol([]byte("<update></update>")))
	assert.Equal(t, ProtoMF, DetectProtocol([]byte{mfFS, '3', '4', '0'}))
	assert.Equal(t, ProtoBinary, DetectProtocol(make([]byte, binPreludeBytes)))
}

func TestParseAutoRoutesMF(t *testing.T) {
	h := Header{MsgType: MTImage, Svc: "S", Tkr: "T", TagStr: "1", RTL: 1}
	buf, err := mfBuild(h, NewFieldList(0))
	require.NoError(t, err)

	n, msg, proto, err := ParseAuto(buf, nil, false)
	require.NoError(t, err)
	assert.Equal(t, ProtoMF, proto)
	assert.Equal(t, len(buf), n)
	assert.Equal(t, "S", msg.Header.Svc)
}

func TestParseIncompleteBuffer(t *testing.T) {
	c := NewCodec(ProtoBinary, nil)
	_, _, err := c.Parse(make([]byte, 4))
	assert.ErrorIs(t, err, ErrIncomplete)
}
