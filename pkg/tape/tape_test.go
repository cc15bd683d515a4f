// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tape

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdcore/mdd/pkg/wire"
)

func testOptions() Options {
	return Options{MaxStreams: 16, SecPerIdxT: 10, NumSecIdxT: 100, SecPerIdxR: 1, NumSecIdxR: 1000}
}

func TestWriterReaderRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.tape")
	tapeStart := time.Unix(1_700_000_000, 0)

	w, err := NewWriter(path, tapeStart, testOptions())
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		msg := wire.Message{Header: wire.Header{
			MsgType: wire.MTUpdate, Svc: "S1", Tkr: "IBM",
			TSec: uint32(tapeStart.Unix()) + uint32(i*10),
		}}
		require.NoError(t, w.Append(msg, []byte("payload")))
	}
	require.NoError(t, w.Close())

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	assert.True(t, r.CleanClose())

	ts, ok := r.Rewind()
	require.True(t, ok)
	assert.Equal(t, uint32(tapeStart.Unix()), ts)
	count := 0
	for {
		rec, err := r.Read()
		if err == ErrEOF {
			break
		}
		require.NoError(t, err)
		assert.Equal(t, "S1", rec.Svc)
		assert.Equal(t, "payload", string(rec.Payload))
		count++
	}
	assert.Equal(t, 10, count)
}

// TestRewindTo checks that RewindTo(T+50s) then Read returns a record
// with tMsg in [T+50s, T+50s+secPerIdxT], with no earlier-timestamped
// record skipped over.
func TestRewindTo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.tape")
	tapeStart := time.Unix(1_700_000_000, 0)
	opts := testOptions()

	w, err := NewWriter(path, tapeStart, opts)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		msg := wire.Message{Header: wire.Header{
			MsgType: wire.MTUpdate, Svc: "S1", Tkr: "IBM",
			TSec: uint32(tapeStart.Unix()) + uint32(i*10),
		}}
		require.NoError(t, w.Append(msg, []byte("p")))
	}
	require.NoError(t, w.Close())

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	ts, ok := r.RewindTo(uint32(tapeStart.Unix()) + 50)
	require.True(t, ok)
	assert.Equal(t, uint32(tapeStart.Unix())+50, ts)

	rec, err := r.Read()
	require.NoError(t, err)

	low := uint32(tapeStart.Unix()) + 50
	high := low + opts.SecPerIdxT
	assert.GreaterOrEqual(t, rec.TSec, low)
	assert.LessOrEqual(t, rec.TSec, high)
}

// TestRewindToLandsOnEmptyBucket checks that seeking to a timestamp
// whose own index bucket holds no record still returns the first
// record at or after the target, not an earlier one the index hint
// happens to point at.
func TestRewindToLandsOnEmptyBucket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.tape")
	tapeStart := time.Unix(1_700_000_000, 0)
	opts := testOptions()

	w, err := NewWriter(path, tapeStart, opts)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		msg := wire.Message{Header: wire.Header{
			MsgType: wire.MTUpdate, Svc: "S1", Tkr: "IBM",
			TSec: uint32(tapeStart.Unix()) + uint32(i*10),
		}}
		require.NoError(t, w.Append(msg, []byte("p")))
	}
	require.NoError(t, w.Close())

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	target := uint32(tapeStart.Unix()) + 45
	ts, ok := r.RewindTo(target)
	require.True(t, ok)
	assert.Equal(t, uint32(tapeStart.Unix())+50, ts)

	rec, err := r.Read()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, rec.TSec, target)
}

func TestRewindToBeforeTapeStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.tape")
	tapeStart := time.Unix(1_700_000_000, 0)

	w, err := NewWriter(path, tapeStart, testOptions())
	require.NoError(t, err)
	msg := wire.Message{Header: wire.Header{MsgType: wire.MTUpdate, Svc: "S1", Tkr: "IBM", TSec: uint32(tapeStart.Unix())}}
	require.NoError(t, w.Append(msg, []byte("p")))
	require.NoError(t, w.Close())

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	ts, ok := r.RewindTo(uint32(tapeStart.Unix()) - 10)
	require.True(t, ok)
	assert.Equal(t, uint32(tapeStart.Unix()), ts)

	rec, err := r.Read()
	require.NoError(t, err)
	assert.Equal(t, uint32(tapeStart.Unix()), rec.TSec)
}

func TestLastImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.tape")
	tapeStart := time.Unix(1_700_000_000, 0)

	w, err := NewWriter(path, tapeStart, testOptions())
	require.NoError(t, err)

	img := wire.Message{Header: wire.Header{MsgType: wire.MTImage, Svc: "S1", Tkr: "IBM", TSec: uint32(tapeStart.Unix())}}
	require.NoError(t, w.Append(img, []byte("image-1")))
	upd := wire.Message{Header: wire.Header{MsgType: wire.MTUpdate, Svc: "S1", Tkr: "IBM", TSec: uint32(tapeStart.Unix()) + 5}}
	require.NoError(t, w.Append(upd, []byte("update-1")))
	require.NoError(t, w.Close())

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	rec, ok := r.LastImage("S1", "IBM")
	require.True(t, ok)
	assert.Equal(t, "image-1", string(rec.Payload))
}

func TestUncleanCloseStopsAtPartialRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.tape")
	tapeStart := time.Unix(1_700_000_000, 0)

	w, err := NewWriter(path, tapeStart, testOptions())
	require.NoError(t, err)
	msg := wire.Message{Header: wire.Header{MsgType: wire.MTUpdate, Svc: "S1", Tkr: "IBM", TSec: uint32(tapeStart.Unix())}}
	require.NoError(t, w.Append(msg, []byte("p")))
	require.NoError(t, w.Flush()) // no clean-close sentinel
	// A record header cut short past FreeIdx, as an interrupted Append
	// leaves it.
	_, err = w.file.WriteAt(make([]byte, recHdrBytes/2), int64(w.hdr.FreeIdx))
	require.NoError(t, err)
	require.NoError(t, w.file.Close())

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	assert.False(t, r.CleanClose())
	rec, err := r.Read()
	require.NoError(t, err)
	assert.Equal(t, "p", string(rec.Payload))
	_, err = r.Read()
	assert.ErrorIs(t, err, ErrEOF)
}
