// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package mdconfig loads and validates the node's top-level JSON
// configuration against an embedded JSON Schema.
package mdconfig

import (
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"path"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*
var schemaFiles embed.FS

func loadSchema(s string) (io.ReadCloser, error) {
	u, err := url.Parse(s)
	if err != nil {
		return nil, err
	}
	return schemaFiles.Open(path.Join(u.Host, u.Path))
}

func init() {
	// url.Parse lowercases the scheme, so the loader key is lowercase.
	jsonschema.Loaders["embedfs"] = loadSchema
}

// Validate checks raw against the embedded config schema.
func Validate(raw json.RawMessage) error {
	s, err := jsonschema.Compile("embedFS://schemas/config.schema.json")
	if err != nil {
		return fmt.Errorf("mdconfig: compile schema: %w", err)
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("mdconfig: decode config: %w", err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("mdconfig: config failed validation: %w", err)
	}
	return nil
}
