// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var xmlTagToMsgType = map[string]MsgType{
	"image":  MTImage,
	"update": MTUpdate,
	"status": MTStale,
	"mount":  MTMount,
	"open":   MTOpen,
	"close":  MTClose,
	"ioctl":  MTCtl,
	"ping":   MTPing,
	"insert": MTInsert,
	"insAck": MTInsAck,
	"query":  MTQuery,
}

var xmlMsgTypeToTag = map[MsgType]string{
	MTImage:  "image",
	MTUpdate: "update",
	MTStale:  "status",
	MTMount:  "mount",
	MTOpen:   "open",
	MTClose:  "close",
	MTCtl:    "ioctl",
	MTPing:   "ping",
	MTInsert: "insert",
	MTInsAck: "insAck",
	MTQuery:  "query",
}

// xmlDecode parses one whole XML message from the start of buf. The
// XML element tree itself is treated as a black box (§1); this walks
// tokens rather than unmarshaling into a fixed struct so that
// arbitrary `_<fid>` child elements are accepted without a schema.
func xmlDecode(buf []byte) (int, Message, error) {
	dec := xml.NewDecoder(bytes.NewReader(buf))
	var msg Message
	fl := NewFieldList(8)
	var depth int
	var consumed int64

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return 0, Message{}, ErrIncomplete
		}
		if se, ok := err.(*xml.SyntaxError); ok && se.Msg == "unexpected EOF" {
			return 0, Message{}, ErrIncomplete
		}
		if err != nil {
			return 0, Message{}, &Error{Kind: KindBadFraming, Msg: "wire/xml: tokenize failed", Err: err}
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth == 1 {
				mt, ok := xmlTagToMsgType[t.Name.Local]
				if !ok {
					return 0, Message{}, &Error{Kind: KindBadFraming, Msg: fmt.Sprintf("wire/xml: unknown tag %q", t.Name.Local)}
				}
				msg.Header.MsgType = mt
				for _, a := range t.Attr {
					switch a.Name.Local {
					case "Svc":
						msg.Header.Svc = unescapeNumericEntities(a.Value)
					case "Name":
						msg.Header.Tkr = unescapeNumericEntities(a.Value)
					case "Tag":
						msg.Header.TagStr = unescapeNumericEntities(a.Value)
					case "RTL":
						if v, err := strconv.Atoi(a.Value); err == nil {
							msg.Header.RTL = int32(v)
						}
					case "Time":
						if v, err := strconv.ParseFloat(a.Value, 64); err == nil {
							msg.Header.TSec = uint32(v)
						}
					case "Error":
						msg.Header.Err = unescapeNumericEntities(a.Value)
					}
				}
			} else if depth == 2 && strings.HasPrefix(t.Name.Local, "_") {
				fidStr := t.Name.Local[1:]
				fid, err := strconv.Atoi(fidStr)
				if err != nil {
					continue
				}
				var v string
				for _, a := range t.Attr {
					if a.Name.Local == "v" {
						v = unescapeNumericEntities(a.Value)
					}
				}
				fl.Add(Field{Fid: int32(fid), Type: String, Str: v})
			}
		case xml.EndElement:
			depth--
			if depth == 0 {
				consumed = dec.InputOffset()
				fl.Dedup()
				msg.Fields = fl
				if msg.Header.MsgType == MTImage || msg.Header.MsgType == MTUpdate {
					if fl.Len() == 0 {
						msg.Header.MsgType = MTInsAck
					}
				}
				return int(consumed), msg, nil
			}
		}
	}
}

// xmlBuild renders a header+FieldList as the XML message form,
// escaping attribute and field values per the entity rules: <, >, &,
// ", ' become the standard entities, and any byte outside printable
// ASCII becomes a numeric entity.
func xmlBuild(h Header, fl *FieldList) ([]byte, error) {
	tag, ok := xmlMsgTypeToTag[h.MsgType]
	if !ok {
		return nil, &Error{Kind: KindBadFraming, Msg: fmt.Sprintf("wire/xml: msgType %v has no XML tag", h.MsgType)}
	}
	var b bytes.Buffer
	fmt.Fprintf(&b, `<%s Svc="%s" Name="%s" Tag="%s" RTL="%d" Time="%d"`,
		tag, xmlEscape(h.Svc), xmlEscape(h.Tkr), xmlEscape(h.TagStr), h.RTL, h.TSec)
	if h.Err != "" {
		fmt.Fprintf(&b, ` Error="%s"`, xmlEscape(h.Err))
	}
	b.WriteByte('>')
	for _, f := range fl.All() {
		fmt.Fprintf(&b, `<_%d v="%s" />`, f.Fid, xmlEscape(mfFieldString(f)))
	}
	fmt.Fprintf(&b, "</%s>", tag)
	return b.Bytes(), nil
}

func xmlEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		case '&':
			b.WriteString("&amp;")
		case '"':
			b.WriteString("&quot;")
		case '\'':
			b.WriteString("&apos;")
		default:
			if r < 0x20 || r > 0x7e {
				fmt.Fprintf(&b, "&#%d;", r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}

func unescapeNumericEntities(s string) string {
	if !strings.Contains(s, "&#") {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); {
		if s[i] == '&' && i+2 < len(s) && s[i+1] == '#' {
			end := strings.IndexByte(s[i:], ';')
			if end > 0 {
				numStr := s[i+2 : i+end]
				if n, err := strconv.Atoi(numStr); err == nil {
					b.WriteRune(rune(n))
					i += end + 1
					continue
				}
			}
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}
