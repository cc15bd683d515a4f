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

func TestFramerBinarySplitsTwoMessages(t *testing.T) {
	h := Header{MsgType: MTUpdate, Svc: "S", Tkr: "T"}
	fl := NewFieldList(1)
	fl.Add(Field{Fid: 1, Type: Int32, I64: 5})
	msg1, err := binBuild(h, fl, BuildOpts{})
	require.NoError(t, err)
	msg2, err := binBuild(h, fl, BuildOpts{})
	require.NoError(t, err)

	buf := append(append([]byte{}, msg1...), msg2...)
	fr := NewFramer(ProtoBinary)

	span, consumed, _, err := fr.Next(buf)
	require.NoError(t, err)
	assert.Equal(t, msg1, span)
	assert.Equal(t, len(msg1), consumed)

	span2, consumed2, _, err := fr.Next(buf[consumed:])
	require.NoError(t, err)
	assert.Equal(t, msg2, span2)
	assert.Equal(t, len(msg2), consumed2)
}

func TestFramerBinaryIncomplete(t *testing.T) {
	fr := NewFramer(ProtoBinary)
	_, _, needHint, err := fr.Next([]byte{1, 2})
	assert.ErrorIs(t, err, ErrIncomplete)
	assert.Equal(t, 2, needHint)
}

func TestFramerMFSpan(t *testing.T) {
	h := Header{MsgType: MTImage, Svc: "S", Tkr: "T", TagStr: "1", RTL: 1}
	buf, err := mfBuild(h, NewFieldList(0))
	require.NoError(t, err)

	fr := NewFramer(ProtoMF)
	span, consumed, _, err := fr.Next(buf)
	require.NoError(t, err)
	assert.Equal(t, buf, span)
	assert.Equal(t, len(buf), consumed)
}

func TestFramerXMLSpan(t *testing.T) {
	buf := []byte(`<update Svc="S" Name="N" Tag="1" RTL="1" Time="0"><_22 v="9.5"/></update>`)
	fr := NewFramer(ProtoXML)
	span, consumed, _, err := fr.Next(buf)
	require.NoError(t, err)
	assert.Equal(t, buf, span)
	assert.Equal(t, len(buf), consumed)
}
