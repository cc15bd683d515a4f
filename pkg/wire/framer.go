// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"encoding/binary"
	"encoding/xml"
	"io"
)

// Framer cuts a growing byte buffer into whole-message spans without
// copying; it returns sub-slices of the caller's buffer. It is the
// layer a socket pump (an external collaborator, out of scope here)
// would drive in a read loop before handing spans to a Codec.
type Framer struct {
	proto Protocol
}

// NewFramer returns a Framer for one fixed protocol.
func NewFramer(proto Protocol) *Framer {
	return &Framer{proto: proto}
}

// Next returns the next whole-message span in buf. If buf does not
// yet hold a whole message, it returns ErrIncomplete; needHint, when
// nonzero, estimates how many additional bytes are required (always
// known for Binary, never for XML or MF).
func (fr *Framer) Next(buf []byte) (span []byte, consumed int, needHint int, err error) {
	switch fr.proto {
	case ProtoBinary:
		return fr.nextBinary(buf)
	case ProtoMF:
		return fr.nextMF(buf)
	case ProtoXML:
		return fr.nextXML(buf)
	default:
		return nil, 0, 0, ErrBadFraming
	}
}

func (fr *Framer) nextBinary(buf []byte) ([]byte, int, int, error) {
	if len(buf) < 4 {
		return nil, 0, 4 - len(buf), ErrIncomplete
	}
	msgLen := int(binary.LittleEndian.Uint32(buf[0:4]))
	if msgLen < binPreludeBytes {
		return nil, 0, 0, &Error{Kind: KindBadFraming, Msg: "wire/framer: msgLen smaller than prelude"}
	}
	if len(buf) < msgLen {
		return nil, 0, msgLen - len(buf), ErrIncomplete
	}
	return buf[:msgLen], msgLen, 0, nil
}

func (fr *Framer) nextMF(buf []byte) ([]byte, int, int, error) {
	start := bytes.IndexByte(buf, mfFS)
	if start < 0 {
		return nil, 0, 0, ErrIncomplete
	}
	rel := bytes.IndexByte(buf[start+1:], mfFS)
	if rel < 0 {
		return nil, 0, 0, ErrIncomplete
	}
	end := start + 1 + rel + 1 // include closing FS
	return buf[start:end], end, 0, nil
}

func (fr *Framer) nextXML(buf []byte) ([]byte, int, int, error) {
	dec := xml.NewDecoder(bytes.NewReader(buf))
	depth := 0
	seenStart := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil, 0, 0, ErrIncomplete
		}
		if se, ok := err.(*xml.SyntaxError); ok && se.Msg == "unexpected EOF" {
			return nil, 0, 0, ErrIncomplete
		}
		if err != nil {
			return nil, 0, 0, &Error{Kind: KindBadFraming, Msg: "wire/framer: xml tokenize failed", Err: err}
		}
		switch tok.(type) {
		case xml.StartElement:
			depth++
			seenStart = true
		case xml.EndElement:
			depth--
			if seenStart && depth == 0 {
				end := int(dec.InputOffset())
				return buf[:end], end, 0, nil
			}
		}
	}
}
