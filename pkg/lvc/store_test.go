// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lvc

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdcore/mdd/pkg/wire"
)

func testSchema(t *testing.T) *wire.Schema {
	t.Helper()
	s, err := wire.NewSchema([]wire.Entry{
		{Fid: 22, Name: "BID", Type: wire.Double, FixedWidth: DefaultFixedWidth(wire.Double)},
		{Fid: 25, Name: "ASK", Type: wire.Double, FixedWidth: DefaultFixedWidth(wire.Double)},
	})
	require.NoError(t, err)
	return s
}

// TestApplyImageThenUpdateMerges checks that applying an Image with
// {22:100.0, 25:100.5} and then an Update with {25:100.6} yields a
// Snap of {22:100.0, 25:100.6, nUpd:2, active:true}.
func TestApplyImageThenUpdateMerges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lvc")
	schema := testSchema(t)
	store, err := Open(path, schema, SignatureBinary)
	require.NoError(t, err)
	defer store.Close()

	img := wire.Message{
		Header: wire.Header{MsgType: wire.MTImage, Svc: "S1", Tkr: "IBM"},
		Fields: fieldsOf(
			wire.Field{Fid: 22, Type: wire.Double, F64: 100.0},
			wire.Field{Fid: 25, Type: wire.Double, F64: 100.5},
		),
	}
	require.NoError(t, store.Apply(img, time.Second))

	upd := wire.Message{
		Header: wire.Header{MsgType: wire.MTUpdate, Svc: "S1", Tkr: "IBM"},
		Fields: fieldsOf(wire.Field{Fid: 25, Type: wire.Double, F64: 100.6}),
	}
	require.NoError(t, store.Apply(upd, time.Second))

	view, ok := store.Snap("S1", "IBM")
	require.True(t, ok)
	assert.True(t, view.Active)
	assert.EqualValues(t, 2, view.NUpd)

	f22, ok := view.Fields.Get(22)
	require.True(t, ok)
	assert.InDelta(t, 100.0, f22.F64, 1e-9)

	f25, ok := view.Fields.Get(25)
	require.True(t, ok)
	assert.InDelta(t, 100.6, f25.F64, 1e-9)
}

// TestSnapAllFilter checks that a filter allowing only service S1 and
// field 22 over two streams each carrying fields {22,25} yields
// exactly one projected view with only fid 22.
func TestSnapAllFilter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lvc")
	schema := testSchema(t)
	store, err := Open(path, schema, SignatureBinary)
	require.NoError(t, err)
	defer store.Close()

	for _, svc := range []string{"S1", "S2"} {
		msg := wire.Message{
			Header: wire.Header{MsgType: wire.MTImage, Svc: svc, Tkr: "TKR"},
			Fields: fieldsOf(
				wire.Field{Fid: 22, Type: wire.Double, F64: 1.0},
				wire.Field{Fid: 25, Type: wire.Double, F64: 2.0},
			),
		}
		require.NoError(t, store.Apply(msg, time.Second))
	}

	require.NoError(t, store.Remap())
	store.SetFilter(NewFilter([]string{"S1"}, []int32{22}))
	views := store.SnapAll()

	require.Len(t, views, 1)
	assert.Equal(t, "S1", views[0].Svc)
	require.Equal(t, 1, views[0].Fields.Len())
	f, ok := views[0].Fields.Get(22)
	require.True(t, ok)
	assert.InDelta(t, 1.0, f.F64, 1e-9)
}

func TestStatsReflectsApply(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lvc")
	schema := testSchema(t)
	store, err := Open(path, schema, SignatureBinary)
	require.NoError(t, err)
	defer store.Close()

	msg := wire.Message{
		Header: wire.Header{MsgType: wire.MTImage, Svc: "S1", Tkr: "TKR"},
		Fields: fieldsOf(wire.Field{Fid: 22, Type: wire.Double, F64: 1.0}),
	}
	require.NoError(t, store.Apply(msg, time.Second))

	stats := store.Stats()
	assert.Equal(t, 1, stats.Records)
	assert.False(t, stats.LastApplyAt.IsZero())
}

// TestOnRosterFiresOnlyOnFirstApplyAndDeadTransition checks that the
// roster callback fires for a stream's first Apply and for a
// subsequent Dead transition, but not for an ordinary Update that
// changes neither.
func TestOnRosterFiresOnlyOnFirstApplyAndDeadTransition(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lvc")
	schema := testSchema(t)
	store, err := Open(path, schema, SignatureBinary)
	require.NoError(t, err)
	defer store.Close()

	var events []bool
	store.OnRoster(func(svc, tkr string, alive bool) {
		events = append(events, alive)
	})

	img := wire.Message{
		Header: wire.Header{MsgType: wire.MTImage, Svc: "S1", Tkr: "IBM"},
		Fields: fieldsOf(wire.Field{Fid: 22, Type: wire.Double, F64: 1.0}),
	}
	require.NoError(t, store.Apply(img, time.Second))
	assert.Equal(t, []bool{true}, events)

	upd := wire.Message{
		Header: wire.Header{MsgType: wire.MTUpdate, Svc: "S1", Tkr: "IBM"},
		Fields: fieldsOf(wire.Field{Fid: 22, Type: wire.Double, F64: 2.0}),
	}
	require.NoError(t, store.Apply(upd, time.Second))
	assert.Equal(t, []bool{true}, events, "plain update must not re-fire the roster callback")

	dead := wire.Message{Header: wire.Header{MsgType: wire.MTDead, Svc: "S1", Tkr: "IBM"}}
	require.NoError(t, store.Apply(dead, time.Second))
	assert.Equal(t, []bool{true, false}, events)
}

func fieldsOf(fields ...wire.Field) *wire.FieldList {
	fl := wire.NewFieldList(len(fields))
	for _, f := range fields {
		fl.Add(f)
	}
	return fl
}
