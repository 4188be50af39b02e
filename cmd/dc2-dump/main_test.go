// Copyright 2025 The DC2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/swill187/DC2/lembox"
)

func TestProcess(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "run.csv")

	brd := &lembox.SimBoard{MaxBlocks: 2}
	n, _, err := lembox.RunStandalone(brd, fname, io.Discard, nil, 250*time.Millisecond,
		lembox.WithBlocks(4, 100),
		lembox.WithQueueDepth(1000),
		lembox.WithProgressInterval(time.Hour),
	)
	if err != nil {
		t.Fatalf("could not generate input file: %+v", err)
	}
	if n != 200 {
		t.Fatalf("invalid sample count: got=%d, want=%d", n, 200)
	}

	out := new(bytes.Buffer)
	err = process(out, fname)
	if err != nil {
		t.Fatalf("could not process %q: %+v", fname, err)
	}

	got := out.String()
	for _, want := range []string{
		"=== run.csv ===",
		"rows:             200\n",
		"samples: 0 -> 199 (0 gaps)\n",
		"time:    ",
		"rate:    ",
		"voltage: min=",
		"current: min=",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing %q in output:\n%s", want, got)
		}
	}
}

func TestProcessNoFile(t *testing.T) {
	err := process(io.Discard, filepath.Join(t.TempDir(), "no-such-file.csv"))
	if err == nil {
		t.Fatalf("expected an error for a missing input file")
	}
}
