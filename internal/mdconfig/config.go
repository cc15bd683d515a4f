// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mdconfig

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/mdcore/mdd/pkg/tape"
	"github.com/mdcore/mdd/pkg/transport"
)

// LVCConfig configures the Last Value Cache store.
type LVCConfig struct {
	Path         string `json:"path"`
	LockDeadline string `json:"lock-deadline"`
}

// LockDeadlineDuration parses LockDeadline, defaulting to 50ms.
func (c LVCConfig) LockDeadlineDuration() time.Duration {
	if c.LockDeadline == "" {
		return 50 * time.Millisecond
	}
	d, err := time.ParseDuration(c.LockDeadline)
	if err != nil {
		return 50 * time.Millisecond
	}
	return d
}

// TapeConfig configures the append-only journal.
type TapeConfig struct {
	Path        string `json:"path"`
	MaxStreams  int    `json:"max-streams"`
	SecPerIdxT  uint32 `json:"sec-per-idx-t"`
	NumSecIdxT  uint32 `json:"num-sec-idx-t"`
	SecPerIdxR  uint32 `json:"sec-per-idx-r"`
	NumSecIdxR  uint32 `json:"num-sec-idx-r"`
}

// Options converts the JSON config into tape.Options.
func (c TapeConfig) Options() tape.Options {
	return tape.Options{
		MaxStreams: c.MaxStreams,
		SecPerIdxT: c.SecPerIdxT,
		NumSecIdxT: c.NumSecIdxT,
		SecPerIdxR: c.SecPerIdxR,
		NumSecIdxR: c.NumSecIdxR,
	}
}

// ReplayConfig configures SnapshotEngine's backpressure watermarks.
type ReplayConfig struct {
	WatermarkHigh int `json:"watermark-high"`
	WatermarkLow  int `json:"watermark-low"`
}

// Config is the node's top-level configuration, validated against
// schemas/config.schema.json on Load.
type Config struct {
	LogLevel    string            `json:"log-level"`
	LogDateTime bool              `json:"log-date-time"`
	Protocol    string            `json:"protocol"`
	LVC         LVCConfig         `json:"lvc"`
	Tape        TapeConfig        `json:"tape"`
	Transport   transport.Config  `json:"transport"`
	Replay      ReplayConfig      `json:"replay"`
}

// Load reads, validates and decodes the config file at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("mdconfig: read %s: %w", path, err)
	}
	if err := Validate(raw); err != nil {
		return nil, err
	}
	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("mdconfig: decode %s: %w", path, err)
	}
	if cfg.Protocol == "" {
		cfg.Protocol = "binary"
	}
	return &cfg, nil
}
