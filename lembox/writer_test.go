// Copyright 2025 The DC2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lembox

import (
	"fmt"
	"io"
	"log"
	"strings"
	"testing"
	"time"
)

func testWriterConfig(batch, size int) *config {
	cfg := newConfig()
	cfg.batchSize = batch
	cfg.wbufSize = size
	return &cfg
}

func testTimebase() timebase {
	base := time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)
	return timebase{wall: base, start: base}
}

func TestWriterRowFormat(t *testing.T) {
	out := new(strings.Builder)
	wr := newCSVWriter(out, log.New(io.Discard, "", 0), testTimebase(), testWriterConfig(1, 1024))

	if err := wr.header(); err != nil {
		t.Fatalf("could not write header: %+v", err)
	}
	wr.write(Sample{
		Seq:        42,
		Rel:        1.5,
		VoltageRaw: 0x8000,
		Voltage:    0.0,
		CurrentRaw: 0xffff,
		Current:    9.999695,
	})

	want := csvHeader +
		"42,1.500000,2025-03-14 15:09:27.500000,8000,0.000000,FFFF,9.999695\n"
	if got := out.String(); got != want {
		t.Fatalf("invalid output:\ngot = %q\nwant= %q", got, want)
	}
}

func TestWriterBatchFlush(t *testing.T) {
	out := new(strings.Builder)
	wr := newCSVWriter(out, log.New(io.Discard, "", 0), testTimebase(), testWriterConfig(10, 32768))

	for i := 0; i < 9; i++ {
		wr.write(Sample{Seq: uint64(i)})
	}
	if out.Len() != 0 {
		t.Fatalf("writer flushed before batch threshold (%d bytes out)", out.Len())
	}

	wr.write(Sample{Seq: 9})
	if out.Len() == 0 {
		t.Fatalf("writer did not flush at batch threshold")
	}
	if n := strings.Count(out.String(), "\n"); n != 10 {
		t.Fatalf("invalid flushed row count: got=%d, want=%d", n, 10)
	}
}

func TestWriterCapacityFlush(t *testing.T) {
	out := new(strings.Builder)
	// small buffer, huge batch: only the occupancy threshold can
	// trigger the flush.
	cfg := testWriterConfig(1000000, 512)
	wr := newCSVWriter(out, log.New(io.Discard, "", 0), testTimebase(), cfg)

	for i := 0; i < 100; i++ {
		wr.write(Sample{Seq: uint64(i), Rel: float64(i) * 0.0001})
		if len(wr.buf) > cap(wr.buf)-cfg.wbufMargin {
			t.Fatalf("write buffer exceeded safety margin: len=%d cap=%d", len(wr.buf), cap(wr.buf))
		}
	}
	if out.Len() == 0 {
		t.Fatalf("writer never flushed on occupancy")
	}
}

func TestWriterFinalFlush(t *testing.T) {
	out := new(strings.Builder)
	wr := newCSVWriter(out, log.New(io.Discard, "", 0), testTimebase(), testWriterConfig(1000, 32768))

	for i := 0; i < 5; i++ {
		wr.write(Sample{Seq: uint64(i)})
	}
	if out.Len() != 0 {
		t.Fatalf("writer flushed early")
	}
	if err := wr.close(); err != nil {
		t.Fatalf("could not close writer: %+v", err)
	}
	if n := strings.Count(out.String(), "\n"); n != 5 {
		t.Fatalf("final flush incomplete: got=%d rows, want=%d", n, 5)
	}
	// closing an already-flushed writer is a no-op.
	if err := wr.close(); err != nil {
		t.Fatalf("re-close failed: %+v", err)
	}
}

type failWriter struct {
	nfail int // number of Write calls to fail
	n     int
	out   strings.Builder
}

func (w *failWriter) Write(p []byte) (int, error) {
	w.n++
	if w.n <= w.nfail {
		return 0, fmt.Errorf("disk on fire")
	}
	return w.out.Write(p)
}

func TestWriterKeepsGoingOnError(t *testing.T) {
	out := &failWriter{nfail: 1}
	wr := newCSVWriter(out, log.New(io.Discard, "", 0), testTimebase(), testWriterConfig(2, 32768))

	wr.write(Sample{Seq: 0})
	wr.write(Sample{Seq: 1}) // flush fails, rows dropped
	wr.write(Sample{Seq: 2})
	wr.write(Sample{Seq: 3}) // flush succeeds

	if wr.nerrs != 1 {
		t.Fatalf("invalid error count: got=%d, want=%d", wr.nerrs, 1)
	}
	if n := strings.Count(out.out.String(), "\n"); n != 2 {
		t.Fatalf("invalid surviving rows: got=%d, want=%d", n, 2)
	}
	if err := wr.close(); err != nil {
		t.Fatalf("could not close writer: %+v", err)
	}
}
