// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package snapshot

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdcore/mdd/pkg/lvc"
	"github.com/mdcore/mdd/pkg/tape"
	"github.com/mdcore/mdd/pkg/wire"
)

func newTestStore(t *testing.T) *lvc.LVCStore {
	t.Helper()
	schema, err := wire.NewSchema([]wire.Entry{
		{Fid: 22, Name: "BID", Type: wire.Double, FixedWidth: lvc.DefaultFixedWidth(wire.Double)},
	})
	require.NoError(t, err)
	store, err := lvc.Open(filepath.Join(t.TempDir(), "test.lvc"), schema, lvc.SignatureBinary)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestEngineSnapshot(t *testing.T) {
	store := newTestStore(t)
	fl := wire.NewFieldList(1)
	fl.Add(wire.Field{Fid: 22, Type: wire.Double, F64: 42.5})
	require.NoError(t, store.Apply(wire.Message{
		Header: wire.Header{MsgType: wire.MTImage, Svc: "S1", Tkr: "IBM"},
		Fields: fl,
	}, time.Second))

	codec := wire.NewCodec(wire.ProtoBinary, nil)
	e := NewEngine(store, codec)

	out, err := e.Snapshot("S1", "IBM")
	require.NoError(t, err)

	_, msg, err := codec.Parse(out)
	require.NoError(t, err)
	assert.Equal(t, "S1", msg.Header.Svc)
	f, ok := msg.Fields.Get(22)
	require.True(t, ok)
	assert.InDelta(t, 42.5, f.F64, 1e-9)
}

func TestEngineSnapshotMissing(t *testing.T) {
	store := newTestStore(t)
	codec := wire.NewCodec(wire.ProtoBinary, nil)
	e := NewEngine(store, codec)

	_, err := e.Snapshot("NOPE", "NOPE")
	assert.Error(t, err)
}

type fakeSink struct {
	sent   [][]byte
	queued int
}

func (s *fakeSink) Send(framed []byte) error {
	s.sent = append(s.sent, append([]byte(nil), framed...))
	return nil
}
func (s *fakeSink) Queued() int { return s.queued }

func TestEngineReplayStreamsAllRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.tape")
	tapeStart := time.Unix(1_700_000_000, 0)
	w, err := tape.NewWriter(path, tapeStart, tape.Options{MaxStreams: 4, SecPerIdxT: 10, NumSecIdxT: 100, SecPerIdxR: 1, NumSecIdxR: 1000})
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		msg := wire.Message{Header: wire.Header{MsgType: wire.MTUpdate, Svc: "S1", Tkr: "IBM", TSec: uint32(tapeStart.Unix()) + uint32(i)}}
		require.NoError(t, w.Append(msg, []byte("p")))
	}
	require.NoError(t, w.Close())

	r, err := tape.Open(path)
	require.NoError(t, err)
	defer r.Close()

	store := newTestStore(t)
	codec := wire.NewCodec(wire.ProtoBinary, nil)
	e := NewEngine(store, codec)

	sink := &fakeSink{}
	err = e.Replay(r, uint32(tapeStart.Unix()), 0, Watermarks{}, sink)
	require.NoError(t, err)
	assert.Len(t, sink.sent, 5)
}
