// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wire

import "fmt"

// Protocol identifies which of the three interchangeable framings a
// Codec speaks.
type Protocol int

const (
	ProtoXML Protocol = iota
	ProtoMF
	ProtoBinary
)

func (p Protocol) String() string {
	switch p {
	case ProtoXML:
		return "xml"
	case ProtoMF:
		return "mf"
	case ProtoBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// DetectProtocol inspects the first byte of buf and returns the
// framing it belongs to, per §6.2: '<' -> XML, 0x1C -> MF, else
// Binary.
func DetectProtocol(buf []byte) Protocol {
	if len(buf) == 0 {
		return ProtoBinary
	}
	switch buf[0] {
	case '<':
		return ProtoXML
	case mfFS:
		return ProtoMF
	default:
		return ProtoBinary
	}
}

// Codec renders a Header+FieldList into wire bytes, or parses wire
// bytes into a Header+FieldList, for one fixed Protocol. A Codec
// instance is single-threaded; callers run one per goroutine.
type Codec struct {
	proto   Protocol
	schema  *Schema
	native  bool
	scratch []byte
}

// NewCodec returns a codec for proto. schema may be nil; it is only
// consulted when nativeField decoding is requested via SetNativeField.
func NewCodec(proto Protocol, schema *Schema) *Codec {
	return &Codec{proto: proto, schema: schema}
}

// SetSchema swaps the schema consulted for nativeField decoding. The
// caller is responsible for synchronizing this with any in-flight
// Parse call on the same Codec (a Codec is single-threaded).
func (c *Codec) SetSchema(s *Schema) { c.schema = s }

// SetNativeField toggles MF nativeField decoding (§6.4 "nativeField").
func (c *Codec) SetNativeField(v bool) { c.native = v }

// Parse decodes one whole message from the front of buf using the
// protocol the Codec was constructed for; ParseAuto is the variant
// that detects the protocol. Returns ErrIncomplete if buf does not
// yet hold a whole message.
func (c *Codec) Parse(buf []byte) (int, Message, error) {
	switch c.proto {
	case ProtoXML:
		return xmlDecode(buf)
	case ProtoMF:
		return mfDecode(buf, c.native, c.schema)
	case ProtoBinary:
		return binDecode(buf)
	default:
		return 0, Message{}, fmt.Errorf("wire: unknown protocol %v", c.proto)
	}
}

// ParseAuto decodes one whole message, detecting protocol from the
// first byte of buf. Useful for routers that accept any of the three
// framings on one socket.
func ParseAuto(buf []byte, schema *Schema, native bool) (int, Message, Protocol, error) {
	proto := DetectProtocol(buf)
	var (
		n   int
		msg Message
		err error
	)
	switch proto {
	case ProtoXML:
		n, msg, err = xmlDecode(buf)
	case ProtoMF:
		n, msg, err = mfDecode(buf, native, schema)
	case ProtoBinary:
		n, msg, err = binDecode(buf)
	}
	return n, msg, proto, err
}

// ParseHeader decodes just enough of buf to recover the Header,
// discarding the FieldList, for routers that need only addressing.
func (c *Codec) ParseHeader(buf []byte) (int, Header, error) {
	n, msg, err := c.Parse(buf)
	if err != nil {
		return 0, Header{}, err
	}
	return n, msg.Header, nil
}

// Build renders header+fl into wire bytes using the codec's scratch
// buffer; the returned slice is owned by the Codec until the next
// Build call and must be copied by the caller if retained.
func (c *Codec) Build(h Header, fl *FieldList, opts BuildOpts) ([]byte, error) {
	var out []byte
	var err error
	switch c.proto {
	case ProtoXML:
		out, err = xmlBuild(h, fl)
	case ProtoMF:
		out, err = mfBuild(h, fl)
	case ProtoBinary:
		out, err = binBuild(h, fl, opts)
	default:
		return nil, fmt.Errorf("wire: unknown protocol %v", c.proto)
	}
	if err != nil {
		return nil, err
	}
	c.scratch = append(c.scratch[:0], out...)
	return c.scratch, nil
}

// Ping returns the protocol-specific keepalive payload for the
// current wall-clock, expressed as (sec, usec) since epoch.
func (c *Codec) Ping(tsec, tusec uint32) []byte {
	switch c.proto {
	case ProtoMF:
		return mfPing(tsec, tusec)
	case ProtoBinary:
		return binPing(tsec, tusec)
	default:
		h := Header{MsgType: MTPing, TSec: tsec, TUsec: tusec}
		out, _ := xmlBuild(h, NewFieldList(0))
		return out
	}
}
