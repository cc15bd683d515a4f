// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lvc

import "github.com/mdcore/mdd/pkg/wire"

// Filter narrows a SnapAll pass to a subset of services and fields.
// The zero value allows everything and projects nothing away.
type Filter struct {
	// Services, if non-empty, is the allow-list of service names;
	// streams for any other service are skipped entirely.
	Services map[string]bool

	// Fields, if non-empty, is the allow-list of field ids; any field
	// not listed is dropped from the projected FieldList.
	Fields map[int32]bool
}

// NewFilter builds a Filter from slices, the construction shape tools
// and config loaders actually have on hand.
func NewFilter(services []string, fids []int32) Filter {
	f := Filter{}
	if len(services) > 0 {
		f.Services = make(map[string]bool, len(services))
		for _, s := range services {
			f.Services[s] = true
		}
	}
	if len(fids) > 0 {
		f.Fields = make(map[int32]bool, len(fids))
		for _, fid := range fids {
			f.Fields[fid] = true
		}
	}
	return f
}

// AllowsService reports whether svc passes the service allow-list.
func (f Filter) AllowsService(svc string) bool {
	if len(f.Services) == 0 {
		return true
	}
	return f.Services[svc]
}

// Project removes fields not in the field allow-list, in place. A nil
// or empty allow-list is a no-op.
func (f Filter) Project(fl *wire.FieldList) {
	if len(f.Fields) == 0 || fl == nil {
		return
	}
	kept := wire.NewFieldList(fl.Len())
	for _, fd := range fl.All() {
		if f.Fields[fd.Fid] {
			kept.Add(fd)
		}
	}
	fl.CopyFrom(kept)
}
