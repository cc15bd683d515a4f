// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build unix

package tape

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// mapFileReadOnly mmaps the first size bytes of f for reading,
// shared so concurrent readers see writer appends after Remap.
// Grounded on the same slotcache-derived approach as pkg/lvc's
// mapFile, here restricted to PROT_READ since TapeReader never
// mutates tape bytes.
func mapFileReadOnly(f *os.File, size int) ([]byte, error) {
	if size == 0 {
		return nil, fmt.Errorf("tape: cannot map zero-length file")
	}
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("tape: mmap failed: %w", err)
	}
	return data, nil
}

func unmapFile(data []byte) error {
	if data == nil {
		return nil
	}
	return unix.Munmap(data)
}
