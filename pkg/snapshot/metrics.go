// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package snapshot

import "github.com/prometheus/client_golang/prometheus"

const namespace = "mdd"

var (
	// snapshotRequests counts Snapshot calls by outcome.
	snapshotRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "requests_total",
			Help:      "Number of snapshot requests processed, by outcome.",
		}, []string{"outcome"})

	// replayRecords counts records streamed out of TapeReader during
	// replay requests.
	replayRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "replay",
			Name:      "records_total",
			Help:      "Number of tape records streamed during replay.",
		}, []string{"svc"})

	// replayLatency observes wall-clock time spent in one Replay call.
	replayLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "replay",
			Name:      "duration_seconds",
			Help:      "Time spent streaming one replay request.",
			Buckets:   prometheus.DefBuckets,
		})

	// backpressurePauses counts how often the replay pump paused for
	// the outbound watermark.
	backpressurePauses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "replay",
			Name:      "backpressure_pauses_total",
			Help:      "Number of times replay paused on the high watermark.",
		})
)

// Register adds the package's collectors to reg.
func Register(reg *prometheus.Registry) {
	reg.MustRegister(snapshotRequests, replayRecords, replayLatency, backpressurePauses)
}
