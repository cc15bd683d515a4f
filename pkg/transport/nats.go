// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package transport provides the concrete pub/sub carrier
// SnapshotEngine uses to move already-framed wire bytes between
// processes. The core depends only on the Publisher/Subscriber
// interfaces; NATS is one concrete binding.
package transport

import (
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/mdcore/mdd/internal/mdlog"
)

// Publisher sends already-framed wire bytes to a named subject
// (typically a service or service.ticker channel name).
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Subscriber delivers framed wire bytes arriving on a subject.
type Subscriber interface {
	Subscribe(subject string, handler func(subject string, data []byte)) error
	Unsubscribe(subject string) error
}

// Config holds connection parameters for the NATS binding.
type Config struct {
	Address       string `json:"address"`
	Username      string `json:"username"`
	Password      string `json:"password"`
	CredsFilePath string `json:"creds-file-path"`
}

// ConfigSchema is a JSON Schema for a NATS transport config block.
// internal/mdconfig does not use it; it validates the whole node
// config against its own embedded schema file.
const ConfigSchema = `{
    "type": "object",
    "description": "Configuration for the NATS pub/sub transport binding.",
    "properties": {
        "address": {"description": "NATS server address, e.g. nats://localhost:4222.", "type": "string"},
        "username": {"type": "string"},
        "password": {"type": "string"},
        "creds-file-path": {"type": "string"}
    },
    "required": ["address"]
}`

// NatsTransport wraps a NATS connection with subscription tracking,
// implementing Publisher and Subscriber.
type NatsTransport struct {
	conn *nats.Conn

	mu   sync.Mutex
	subs map[string]*nats.Subscription
}

// Dial connects to the configured NATS server.
func Dial(cfg Config) (*NatsTransport, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("transport: NATS address is required")
	}

	var opts []nats.Option
	if cfg.Username != "" && cfg.Password != "" {
		opts = append(opts, nats.UserInfo(cfg.Username, cfg.Password))
	}
	if cfg.CredsFilePath != "" {
		opts = append(opts, nats.UserCredentials(cfg.CredsFilePath))
	}
	opts = append(opts,
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				mdlog.Warnf("[TRANSPORT] disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			mdlog.Infof("[TRANSPORT] reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			mdlog.Errf("[TRANSPORT] async error: %v", err)
		}),
	)

	nc, err := nats.Connect(cfg.Address, opts...)
	if err != nil {
		return nil, fmt.Errorf("transport: connect to %s: %w", cfg.Address, err)
	}
	mdlog.Infof("[TRANSPORT] connected to %s", cfg.Address)

	return &NatsTransport{conn: nc, subs: make(map[string]*nats.Subscription)}, nil
}

// Publish sends data on subject.
func (t *NatsTransport) Publish(subject string, data []byte) error {
	if err := t.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("transport: publish to %q: %w", subject, err)
	}
	return nil
}

// Subscribe registers handler for subject, replacing any prior
// subscription on the same subject.
func (t *NatsTransport) Subscribe(subject string, handler func(subject string, data []byte)) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if prev, ok := t.subs[subject]; ok {
		_ = prev.Unsubscribe()
	}
	sub, err := t.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("transport: subscribe to %q: %w", subject, err)
	}
	t.subs[subject] = sub
	return nil
}

// Unsubscribe cancels the subscription on subject, if any.
func (t *NatsTransport) Unsubscribe(subject string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	sub, ok := t.subs[subject]
	if !ok {
		return nil
	}
	delete(t.subs, subject)
	return sub.Unsubscribe()
}

// Flush blocks until all buffered publishes have been sent.
func (t *NatsTransport) Flush() error {
	return t.conn.Flush()
}

// Close unsubscribes everything and closes the connection.
func (t *NatsTransport) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for subject, sub := range t.subs {
		if err := sub.Unsubscribe(); err != nil {
			mdlog.Warnf("[TRANSPORT] unsubscribe %q: %v", subject, err)
		}
	}
	t.subs = make(map[string]*nats.Subscription)
	if t.conn != nil {
		t.conn.Close()
	}
}
