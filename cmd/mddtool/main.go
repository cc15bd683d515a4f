// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command mddtool is an operator CLI over the core: validate a node
// config, and inspect an LVC store's roster and occupancy without
// standing up the full snapshot/replay machinery.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mdcore/mdd/internal/mdconfig"
	"github.com/mdcore/mdd/internal/mdlog"
	"github.com/mdcore/mdd/pkg/lvc"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "config-check":
		configCheck(os.Args[2:])
	case "lvc-dump":
		lvcDump(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: mddtool <config-check|lvc-dump> [flags]")
}

func configCheck(args []string) {
	fs := flag.NewFlagSet("config-check", flag.ExitOnError)
	path := fs.String("config", "./config.json", "Path to config.json")
	fs.Parse(args)

	cfg, err := mdconfig.Load(*path)
	if err != nil {
		mdlog.Fatalf("config-check: %v", err)
	}
	fmt.Printf("config ok: protocol=%s lvc=%s tape=%s\n", cfg.Protocol, cfg.LVC.Path, cfg.Tape.Path)
}

func lvcDump(args []string) {
	fs := flag.NewFlagSet("lvc-dump", flag.ExitOnError)
	path := fs.String("lvc", "", "Path to the LVC file")
	fs.Parse(args)

	if *path == "" {
		mdlog.Fatal("lvc-dump: -lvc is required")
	}

	store, err := lvc.Open(*path, nil, lvc.SignatureBinary)
	if err != nil {
		mdlog.Fatalf("lvc-dump: open %s: %v", *path, err)
	}
	defer store.Close()

	stats := store.Stats()
	fmt.Printf("records=%d fileSize=%d freeBytes=%d lastApply=%s\n",
		stats.Records, stats.FileSize, stats.FreeBytes, stats.LastApplyAt)

	for _, key := range store.Roster() {
		view, ok := store.Snap(key.Svc, key.Tkr)
		if !ok {
			continue
		}
		fmt.Printf("%s/%s active=%v nUpd=%d nFld=%d\n", key.Svc, key.Tkr, view.Active, view.NUpd, view.Fields.Len())
		for _, f := range view.Fields.All() {
			if d, ok := f.AsDouble(); ok {
				fmt.Printf("  fid=%d type=%s value=%v\n", f.Fid, f.Type, d)
			} else {
				fmt.Printf("  fid=%d type=%s value=%q\n", f.Fid, f.Type, f.Str)
			}
		}
	}
}
