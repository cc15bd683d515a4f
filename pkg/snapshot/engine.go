// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package snapshot provides the stateless glue that orchestrates
// LVCStore, TapeReader/TapeWriter and WireCodec to answer a single
// snapshot or replay request.
package snapshot

import (
	"fmt"
	"io"
	"time"

	"github.com/linkedin/goavro/v2"

	"github.com/mdcore/mdd/internal/mdlog"
	"github.com/mdcore/mdd/pkg/lvc"
	"github.com/mdcore/mdd/pkg/tape"
	"github.com/mdcore/mdd/pkg/wire"
)

// Watermarks bounds a Replay pump's outbound buffering.
type Watermarks struct {
	High int // pause Read when the outbound queue exceeds this many bytes
	Low  int // resume once drained below this many bytes
}

// Sink receives framed bytes produced during a snapshot or replay and
// reports how many bytes are currently queued downstream, the signal
// the backpressure pump reacts to.
type Sink interface {
	Send(framed []byte) error
	Queued() int
}

// Engine orchestrates LVC and Tape access for one store/codec pair.
type Engine struct {
	store *lvc.LVCStore
	codec *wire.Codec
}

// NewEngine builds an Engine over an already-open LVCStore and a
// configured Codec used to build replies.
func NewEngine(store *lvc.LVCStore, codec *wire.Codec) *Engine {
	return &Engine{store: store, codec: codec}
}

// Snapshot answers a single-stream snapshot request: remap if needed,
// resolve the current image, and build a reply.
func (e *Engine) Snapshot(svc, tkr string) ([]byte, error) {
	if err := e.store.Remap(); err != nil {
		snapshotRequests.WithLabelValues("error").Inc()
		return nil, err
	}
	view, ok := e.store.Snap(svc, tkr)
	if !ok {
		snapshotRequests.WithLabelValues("miss").Inc()
		return nil, fmt.Errorf("snapshot: no record for %s/%s", svc, tkr)
	}
	h := wire.Header{
		MsgType: wire.MTImage, DataType: wire.DTFieldList,
		Svc: view.Svc, Tkr: view.Tkr, TSec: view.TUpd, TUsec: view.TUpdUs,
	}
	out, err := e.codec.Build(h, view.Fields, wire.BuildOpts{})
	if err != nil {
		snapshotRequests.WithLabelValues("error").Inc()
		return nil, err
	}
	snapshotRequests.WithLabelValues("ok").Inc()
	return out, nil
}

// SnapshotAll answers a bulk snapshot request, applying f and
// building one reply per surviving record.
func (e *Engine) SnapshotAll(f lvc.Filter) ([][]byte, error) {
	if err := e.store.Remap(); err != nil {
		snapshotRequests.WithLabelValues("error").Inc()
		return nil, err
	}
	e.store.SetFilter(f)
	views := e.store.SnapAll()
	out := make([][]byte, 0, len(views))
	for _, v := range views {
		h := wire.Header{
			MsgType: wire.MTImage, DataType: wire.DTFieldList,
			Svc: v.Svc, Tkr: v.Tkr, TSec: v.TUpd, TUsec: v.TUpdUs,
		}
		b, err := e.codec.Build(h, v.Fields, wire.BuildOpts{})
		if err != nil {
			mdlog.Warnf("[SNAPSHOT] build for %s/%s: %v", v.Svc, v.Tkr, err)
			continue
		}
		out = append(out, append([]byte(nil), b...))
	}
	snapshotRequests.WithLabelValues("ok").Inc()
	return out, nil
}

// Replay streams records from t0 to t1 (unix seconds, t1 zero means
// to end-of-tape) out through sink, pausing whenever the sink's
// queued byte count exceeds wm.High and resuming once it drains below
// wm.Low.
func (e *Engine) Replay(r *tape.TapeReader, t0, t1 uint32, wm Watermarks, sink Sink) error {
	start := time.Now()
	defer func() { replayLatency.Observe(time.Since(start).Seconds()) }()

	r.RewindTo(t0)
	paused := false
	for {
		if !paused && wm.High > 0 && sink.Queued() > wm.High {
			paused = true
			backpressurePauses.Inc()
			mdlog.Debugf("[SNAPSHOT] replay paused, queued=%d > high=%d", sink.Queued(), wm.High)
		}
		if paused {
			if sink.Queued() > wm.Low {
				time.Sleep(time.Millisecond)
				continue
			}
			paused = false
		}

		rec, err := r.Read()
		if err != nil {
			if err == tape.ErrEOF {
				return nil
			}
			return err
		}
		if t1 != 0 && rec.TSec > t1 {
			return nil
		}

		if err := sink.Send(rec.Payload); err != nil {
			return fmt.Errorf("snapshot: replay send: %w", err)
		}
		replayRecords.WithLabelValues(rec.Svc).Inc()
	}
}

// avroSchemaFor builds the Avro record schema matching a RecordView's
// shape: every present field projected to a string, the simplest
// universal Avro representation for a heterogeneously-typed FieldList.
func avroSchemaFor(name string) string {
	return fmt.Sprintf(`{
		"type": "record",
		"name": %q,
		"fields": [
			{"name": "svc", "type": "string"},
			{"name": "tkr", "type": "string"},
			{"name": "tUpd", "type": "long"},
			{"name": "fields", "type": {"type": "map", "values": "string"}}
		]
	}`, name)
}

// ExportAvro writes every current LVC record for svc (or every
// service if svc is empty) to w as an Avro object container file.
func (e *Engine) ExportAvro(svc string, w io.Writer) error {
	f := lvc.Filter{}
	if svc != "" {
		f = lvc.NewFilter([]string{svc}, nil)
	}
	if err := e.store.Remap(); err != nil {
		return err
	}
	e.store.SetFilter(f)
	views := e.store.SnapAll()

	codec, err := goavro.NewCodec(avroSchemaFor("lvc_record"))
	if err != nil {
		return fmt.Errorf("snapshot: avro codec: %w", err)
	}
	writer, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               w,
		Codec:           codec,
		CompressionName: goavro.CompressionDeflateLabel,
	})
	if err != nil {
		return fmt.Errorf("snapshot: avro OCF writer: %w", err)
	}

	records := make([]map[string]any, 0, len(views))
	for _, v := range views {
		fields := make(map[string]any, v.Fields.Len())
		for _, fd := range v.Fields.All() {
			switch fd.Type {
			case wire.String:
				fields[fmt.Sprint(fd.Fid)] = fd.Str
			default:
				if d, ok := fd.AsDouble(); ok {
					fields[fmt.Sprint(fd.Fid)] = fmt.Sprintf("%v", d)
				}
			}
		}
		records = append(records, map[string]any{
			"svc": v.Svc, "tkr": v.Tkr, "tUpd": int64(v.TUpd), "fields": fields,
		})
	}
	if err := writer.Append(records); err != nil {
		return fmt.Errorf("snapshot: avro append: %w", err)
	}
	return nil
}
