// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mdconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `{
		"protocol": "binary",
		"lvc": {"path": "/tmp/test.lvc", "lock-deadline": "100ms"},
		"tape": {"path": "/tmp/test.tape", "max-streams": 64}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "binary", cfg.Protocol)
	assert.Equal(t, "/tmp/test.lvc", cfg.LVC.Path)
	assert.Equal(t, 64, cfg.Tape.MaxStreams)
}

func TestLoadDefaultsProtocol(t *testing.T) {
	path := writeConfig(t, `{
		"lvc": {"path": "/tmp/test.lvc"},
		"tape": {"path": "/tmp/test.tape"}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "binary", cfg.Protocol)
}

func TestLoadMissingRequiredSection(t *testing.T) {
	path := writeConfig(t, `{"lvc": {"path": "/tmp/test.lvc"}}`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, `{
		"lvc": {"path": "/tmp/test.lvc"},
		"tape": {"path": "/tmp/test.tape"},
		"bogus": true
	}`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadInvalidProtocolEnum(t *testing.T) {
	path := writeConfig(t, `{
		"protocol": "carrier-pigeon",
		"lvc": {"path": "/tmp/test.lvc"},
		"tape": {"path": "/tmp/test.tape"}
	}`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLockDeadlineDurationDefault(t *testing.T) {
	c := LVCConfig{}
	assert.Equal(t, 50*time.Millisecond, c.LockDeadlineDuration())
}
