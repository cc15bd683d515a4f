// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tape

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTripLong8(t *testing.T) {
	h := Header{
		Variant: VariantLong8, SizeofLong: 8,
		SecPerIdxT: 60, NumSecIdxT: 1440, SecPerIdxR: 1, NumSecIdxR: 3600,
		TapeStart: 1_700_000_000,
		CoarseIdxOff: 1000, RecIdxOff: 2000, StreamIdxOff: 500, JournalOff: 4000,
		FreeIdx: 4000, FileSiz: 4000,
	}
	h.HdrSiz = uint32(HeaderSize(VariantLong8))

	buf := make([]byte, h.HdrSiz)
	WriteHeader(buf, h)

	got, err := ReadHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, VariantLong8, got.Variant)
	assert.Equal(t, h.TapeStart, got.TapeStart)
	assert.Equal(t, h.CoarseIdxOff, got.CoarseIdxOff)
	assert.Equal(t, h.JournalOff, got.JournalOff)
}

func TestHeaderRoundTripLong4(t *testing.T) {
	h := Header{
		Variant: VariantLong4, SizeofLong: 4,
		SecPerIdxT: 60, NumSecIdxT: 1440, SecPerIdxR: 1, NumSecIdxR: 3600,
		TapeStart: 1_700_000_000,
		CoarseIdxOff: 1000, RecIdxOff: 2000, StreamIdxOff: 500, JournalOff: 4000,
	}
	h.HdrSiz = uint32(HeaderSize(VariantLong4))

	buf := make([]byte, h.HdrSiz)
	WriteHeader(buf, h)

	got, err := ReadHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, VariantLong4, got.Variant)
	assert.Equal(t, h.TapeStart, got.TapeStart)
}

func TestDetectVariantUnknown(t *testing.T) {
	buf := make([]byte, 16)
	buf[4] = 3 // sizeofLong neither 4 nor 8
	_, err := DetectVariant(buf)
	assert.ErrorIs(t, err, ErrUnknownVariant)
}

func TestCleanCloseSentinel(t *testing.T) {
	h := Header{Sentinel: sentinelClean}
	assert.True(t, h.CleanClose())
	h.Sentinel = 0
	assert.False(t, h.CleanClose())
}
