// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wire

// FieldList is a transient, ordered container of (fid, type, value)
// tuples. It keeps no arena of its own: each Field holds its string
// and byte-slice values as the decoder or caller stored them.
type FieldList struct {
	fields []Field
	nFld   int
}

// NewFieldList returns a FieldList with initial capacity n.
func NewFieldList(n int) *FieldList {
	return &FieldList{fields: make([]Field, 0, n)}
}

// Reserve grows capacity to at least n entries without changing the
// current contents.
func (fl *FieldList) Reserve(n int) {
	if cap(fl.fields) >= n {
		return
	}
	grown := make([]Field, len(fl.fields), n)
	copy(grown, fl.fields)
	fl.fields = grown
}

// Add appends a field. No duplicate-fid check is performed by design;
// callers that build a FieldList themselves are trusted, matching the
// wire decode path where "last occurrence wins" is applied once, at
// decode time, not on every Add.
func (fl *FieldList) Add(f Field) {
	fl.fields = append(fl.fields, f)
	fl.nFld = len(fl.fields)
}

// Get performs a linear scan for fid; acceptable because typical
// nFld <= 64. Returns the last-added entry with a matching fid.
func (fl *FieldList) Get(fid int32) (Field, bool) {
	for i := len(fl.fields) - 1; i >= 0; i-- {
		if fl.fields[i].Fid == fid {
			return fl.fields[i], true
		}
	}
	return Field{}, false
}

// Clear empties the list, retaining its backing array's capacity.
func (fl *FieldList) Clear() {
	fl.fields = fl.fields[:0]
	fl.nFld = 0
}

// Len returns nFld, the number of used entries.
func (fl *FieldList) Len() int {
	return len(fl.fields)
}

// All returns the fields in encoding order. The slice is only valid
// until the next Add/Clear/Reserve call.
func (fl *FieldList) All() []Field {
	return fl.fields
}

// Dedup collapses duplicate fids, last occurrence wins, at the
// position of the fid's first occurrence. Used once at decode time
// for protocols that can carry the same fid twice on the wire.
func (fl *FieldList) Dedup() {
	seen := make(map[int32]int, len(fl.fields))
	out := make([]Field, 0, len(fl.fields))
	for _, f := range fl.fields {
		if idx, ok := seen[f.Fid]; ok {
			out[idx] = f
			continue
		}
		seen[f.Fid] = len(out)
		out = append(out, f)
	}
	fl.fields = out
	fl.nFld = len(out)
}

// CopyFrom deep-copies src's fields into fl, detaching Bytes and
// Vector from src's backing arrays. Used by callers like SnapshotEngine that must retain a view
// past the normal borrow window.
func (fl *FieldList) CopyFrom(src *FieldList) {
	fl.fields = make([]Field, len(src.fields))
	for i, f := range src.fields {
		cp := f
		if f.Bytes != nil {
			cp.Bytes = append([]byte(nil), f.Bytes...)
		}
		if f.Vector != nil {
			cp.Vector = append([]float64(nil), f.Vector...)
		}
		fl.fields[i] = cp
	}
	fl.nFld = len(fl.fields)
}
