// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build unix

package lvc

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// mapFile mmaps the first size bytes of f as a read-write shared
// mapping. Grounded on the slotcache package's use of
// syscall.Mmap(..., PROT_READ|PROT_WRITE, MAP_SHARED) for a
// reader-writer file shared across processes.
func mapFile(f *os.File, size int) ([]byte, error) {
	if size == 0 {
		return nil, fmt.Errorf("lvc: cannot map zero-length file")
	}
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("lvc: mmap failed: %w", err)
	}
	return data, nil
}

func unmapFile(data []byte) error {
	if data == nil {
		return nil
	}
	return unix.Munmap(data)
}

// growFile extends the backing file to size bytes; existing mapped
// regions are invalidated by the caller remapping afterward.
func growFile(f *os.File, size int64) error {
	return f.Truncate(size)
}

// writerLock is a named, OS-level exclusivity primitive keyed by the
// LVC file's path: a sidecar ".lock" file held with flock(2), the
// same interprocess-lock-file pattern slotcache uses for its writer
// lock.
type writerLock struct {
	f *os.File
}

func openWriterLock(path string) (*writerLock, error) {
	f, err := os.OpenFile(path+".lock", os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("lvc: open lock file: %w", err)
	}
	return &writerLock{f: f}, nil
}

// Lock acquires the exclusive lock, polling until deadline elapses.
// A zero deadline blocks indefinitely.
func (w *writerLock) Lock(deadline time.Duration) error {
	if deadline <= 0 {
		return unix.Flock(int(w.f.Fd()), unix.LOCK_EX)
	}
	giveUp := time.Now().Add(deadline)
	for {
		err := unix.Flock(int(w.f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return nil
		}
		if time.Now().After(giveUp) {
			return ErrLocked
		}
		time.Sleep(time.Millisecond)
	}
}

func (w *writerLock) Unlock() error {
	return unix.Flock(int(w.f.Fd()), unix.LOCK_UN)
}

func (w *writerLock) Close() error {
	return w.f.Close()
}
