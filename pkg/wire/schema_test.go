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

func TestSchemaLoadRejectsReservedFid(t *testing.T) {
	_, err := NewSchema([]Entry{{Fid: 0, Name: "BAD", Type: Double}})
	assert.Error(t, err)
}

func TestSchemaLoadRejectsDuplicateFid(t *testing.T) {
	_, err := NewSchema([]Entry{
		{Fid: 22, Name: "BID", Type: Double},
		{Fid: 22, Name: "ASK", Type: Double},
	})
	assert.Error(t, err)
}

func TestSchemaLoadRejectsDuplicateName(t *testing.T) {
	_, err := NewSchema([]Entry{
		{Fid: 22, Name: "BID", Type: Double},
		{Fid: 25, Name: "BID", Type: Double},
	})
	assert.Error(t, err)
}

func TestSchemaFindByFidAndName(t *testing.T) {
	s, err := NewSchema([]Entry{{Fid: 22, Name: "BID", Type: Double, FixedWidth: 8}})
	require.NoError(t, err)

	e, ok := s.FindByFid(22)
	require.True(t, ok)
	assert.Equal(t, "BID", e.Name)

	e, ok = s.FindByName("BID")
	require.True(t, ok)
	assert.EqualValues(t, 22, e.Fid)

	_, ok = s.FindByFid(99)
	assert.False(t, ok)
}

func TestSchemaDumpRoundTrip(t *testing.T) {
	s, err := NewSchema([]Entry{
		{Fid: 22, Name: "BID", Type: Double, FixedWidth: 8},
		{Fid: 25, Name: "ASK", Type: Double, FixedWidth: 8},
	})
	require.NoError(t, err)

	s2, err := Load(s.Dump())
	require.NoError(t, err)
	assert.Equal(t, s.Entries(), s2.Entries())
}

func TestSchemaSubscribeNotifiesOnSwap(t *testing.T) {
	oldSchema, err := NewSchema([]Entry{{Fid: 22, Name: "BID", Type: Double}})
	require.NoError(t, err)
	newSchema, err := NewSchema([]Entry{
		{Fid: 22, Name: "BID", Type: Double},
		{Fid: 25, Name: "ASK", Type: Double},
	})
	require.NoError(t, err)

	ch := make(chan *Schema, 1)
	oldSchema.Subscribe(ch)
	oldSchema.NotifySwap(newSchema)

	select {
	case got := <-ch:
		assert.Same(t, newSchema, got)
	default:
		t.Fatal("expected a notification on the subscribed channel")
	}
}

func TestSchemaSubscribeNonBlockingOnFullChannel(t *testing.T) {
	oldSchema, err := NewSchema([]Entry{{Fid: 22, Name: "BID", Type: Double}})
	require.NoError(t, err)
	newSchema, err := NewSchema([]Entry{{Fid: 22, Name: "BID", Type: Double}})
	require.NoError(t, err)

	ch := make(chan *Schema) // unbuffered, no reader
	oldSchema.Subscribe(ch)

	done := make(chan struct{})
	go func() {
		oldSchema.NotifySwap(newSchema)
		close(done)
	}()
	<-done // must return without blocking even though nobody reads ch
}
