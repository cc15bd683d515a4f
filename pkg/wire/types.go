// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package wire implements the shared field-list data model and the
// three interchangeable wire protocols (XML, MarketFeed, Binary)
// built on top of it.
package wire

import "math"

// FieldType is a tagged variant over the value kinds a Schema entry
// and a Field can hold.
type FieldType uint8

const (
	Undefined FieldType = iota
	String
	Int8
	Int16
	Int32
	Int64
	Float
	Double
	Real
	Date
	Time
	TimeSec
	DateTime
	UnixTime
	ByteStream
	Vector
)

func (t FieldType) String() string {
	switch t {
	case Undefined:
		return "Undefined"
	case String:
		return "String"
	case Int8:
		return "Int8"
	case Int16:
		return "Int16"
	case Int32:
		return "Int32"
	case Int64:
		return "Int64"
	case Float:
		return "Float"
	case Double:
		return "Double"
	case Real:
		return "Real"
	case Date:
		return "Date"
	case Time:
		return "Time"
	case TimeSec:
		return "TimeSec"
	case DateTime:
		return "DateTime"
	case UnixTime:
		return "UnixTime"
	case ByteStream:
		return "ByteStream"
	case Vector:
		return "Vector"
	default:
		return "Unknown"
	}
}

// MsgType enumerates the message-level operations carried in a Header.
type MsgType uint8

const (
	MTUndef MsgType = iota
	MTImage
	MTUpdate
	MTDead
	MTStale
	MTRecovering
	MTGlobalStatus
	MTMount
	MTPing
	MTCtl
	MTOpen
	MTClose
	MTQuery
	MTInsert
	MTInsAck
)

// DataType enumerates the payload shape carried by a message.
type DataType uint8

const (
	DTUndef DataType = iota
	DTFieldList
	DTFixedMsg
	DTBlobList
	DTBlobTable
	DTBookOrder
	DTBookPriceLevel
	DTControl
)

// MaxRealHint is the largest power-of-ten hint a Real field may carry.
const MaxRealHint = 14

// RealToDouble converts a Real field's integer mantissa and hint into
// a float64, losslessly within the declared precision.
func RealToDouble(mantissa int64, hint uint8) float64 {
	return float64(mantissa) * math.Pow10(-int(hint))
}

// DoubleToReal converts a float64 into a mantissa for the given hint.
// Callers pick hint; this just scales and rounds.
func DoubleToReal(v float64, hint uint8) int64 {
	return int64(math.Round(v * math.Pow10(int(hint))))
}

// Field is a single (fid, type, value) tuple. Only the members
// relevant to Type are meaningful; all others are zero. String and
// ByteStream values are copied out of the input buffer by the
// decoders, so they do not alias it.
type Field struct {
	Fid  int32
	Type FieldType

	Str          string
	I64          int64
	F64          float64
	RealMantissa int64
	RealHint     uint8
	Bytes        []byte
	Vector       []float64
	VecPrecision uint8
}

// AsDouble converts the field's value to a float64 where meaningful;
// the second return is false for types with no numeric interpretation.
func (f *Field) AsDouble() (float64, bool) {
	switch f.Type {
	case Float, Double:
		return f.F64, true
	case Real:
		return RealToDouble(f.RealMantissa, f.RealHint), true
	case Int8, Int16, Int32, Int64, UnixTime, TimeSec:
		return float64(f.I64), true
	default:
		return 0, false
	}
}

// Header carries message-level addressing and control fields,
// independent of protocol framing.
type Header struct {
	MsgType  MsgType
	DataType DataType
	TagStr   string
	TagInt   int32
	RTL      int32
	TSec     uint32
	TUsec    uint32
	Svc      string
	Tkr      string
	Err      string
}

// Message pairs a Header with its FieldList payload.
type Message struct {
	Header Header
	Fields *FieldList
}
