// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package main

import (
	"flag"
	"fmt"

	"github.com/mdcore/mdd/internal/mdlog"
	"github.com/mdcore/mdd/pkg/tape"
)

func main() {
	var path string
	var rewindTo uint
	var limit int

	flag.StringVar(&path, "tape", "", "Path to the tape file to inspect")
	flag.UintVar(&rewindTo, "rewind-to", 0, "Unix seconds to RewindTo before reading (0 = start of journal)")
	flag.IntVar(&limit, "limit", 20, "Maximum number of records to print")
	flag.Parse()

	if path == "" {
		mdlog.Fatal("tape-inspect: -tape is required")
	}

	r, err := tape.Open(path)
	if err != nil {
		mdlog.Fatalf("tape-inspect: open %s: %v", path, err)
	}
	defer r.Close()

	fmt.Printf("clean-close: %v\n", r.CleanClose())

	if rewindTo != 0 {
		ts, ok := r.RewindTo(uint32(rewindTo))
		fmt.Printf("rewind-to: landed=%d ok=%v\n", ts, ok)
	} else {
		ts, ok := r.Rewind()
		fmt.Printf("rewind: first-ts=%d ok=%v\n", ts, ok)
	}

	for i := 0; i < limit; i++ {
		rec, err := r.Read()
		if err != nil {
			if err == tape.ErrEOF {
				fmt.Println("-- end of tape --")
				return
			}
			mdlog.Fatalf("tape-inspect: read: %v", err)
		}
		fmt.Printf("%d.%06d %s/%s chan=%d nbytes=%d loc=%d locImg=%d\n",
			rec.TSec, rec.TUsec, rec.Svc, rec.Tkr, rec.ChannelID, len(rec.Payload), rec.Loc, rec.LocImg)
	}
}
