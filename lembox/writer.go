// Copyright 2025 The DC2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lembox

import (
	"fmt"
	"io"
	"log"
)

// csvHeader names the fixed row schema of the output log.
const csvHeader = "Sample,PerfTime(s),Timestamp,VoltageRaw,Voltage(V),CurrentRaw,Current(A)\n"

// csvWriter accumulates formatted rows in a fixed-size buffer and
// flushes them to the underlying writer when the buffer is nearly full
// or after every batch of rows. It is owned exclusively by the
// consumer goroutine.
//
// A failed flush is logged and dropped: losing log rows is preferable
// to stalling the acquisition of the physical process. Only the final
// flush at close reports its error to the caller.
type csvWriter struct {
	w   io.Writer
	msg *log.Logger
	tb  timebase

	buf    []byte // len is occupancy, cap is fixed
	margin int    // headroom reserved for one formatted row
	batch  int    // rows since last flush
	size   int    // batch flush threshold

	rows  uint64 // rows handed to the underlying writer
	nerrs int    // failed flushes
}

func newCSVWriter(w io.Writer, msg *log.Logger, tb timebase, cfg *config) *csvWriter {
	return &csvWriter{
		w:      w,
		msg:    msg,
		tb:     tb,
		buf:    make([]byte, 0, cfg.wbufSize),
		margin: cfg.wbufMargin,
		size:   cfg.batchSize,
	}
}

// header writes the CSV header straight through, bypassing the batch
// buffer. Its error aborts the run before acquisition starts.
func (wr *csvWriter) header() error {
	_, err := io.WriteString(wr.w, csvHeader)
	if err != nil {
		return fmt.Errorf("lembox: could not write CSV header: %w", err)
	}
	return nil
}

// write formats one sample row into the batch buffer.
func (wr *csvWriter) write(s Sample) {
	wr.buf = fmt.Appendf(wr.buf, "%d,%.6f,%s,%04X,%.6f,%04X,%.6f\n",
		s.Seq, s.Rel, wr.tb.stamp(s.Rel),
		s.VoltageRaw, s.Voltage,
		s.CurrentRaw, s.Current,
	)
	wr.rows++
	wr.batch++

	if len(wr.buf) > cap(wr.buf)-wr.margin || wr.batch >= wr.size {
		wr.flush()
	}
}

func (wr *csvWriter) flush() {
	if len(wr.buf) == 0 {
		wr.batch = 0
		return
	}
	_, err := wr.w.Write(wr.buf)
	if err != nil {
		wr.nerrs++
		wr.msg.Printf("could not flush write buffer (%d bytes): %+v", len(wr.buf), err)
	}
	wr.buf = wr.buf[:0]
	wr.batch = 0
}

// close performs the final unconditional flush.
func (wr *csvWriter) close() error {
	if len(wr.buf) == 0 {
		return nil
	}
	_, err := wr.w.Write(wr.buf)
	wr.buf = wr.buf[:0]
	if err != nil {
		wr.nerrs++
		return fmt.Errorf("lembox: could not flush write buffer: %w", err)
	}
	return nil
}
