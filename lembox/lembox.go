// Copyright 2025 The DC2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package lembox drives the continuous acquisition of voltage/current
// samples from the LEM box ADC board and logs them to a CSV file.
//
// The acquisition pipeline is a single producer (the acquisition loop,
// draining hardware buffers) and a single consumer (the batched CSV
// writer) connected by a bounded FIFO queue of samples. The producer
// never blocks on the hardware side: filled buffers are drained and
// returned to the board before any queueing wait, so the board never
// starves for buffers while the writer catches up on disk I/O.
package lembox // import "github.com/swill187/DC2/lembox"

// Sample is one converted two-channel reading.
//
// Rel is the elapsed time in seconds since acquisition start, derived
// from the monotonic clock; the absolute timestamp of a sample is
// reconstructed from the wall-clock base captured once at start plus
// Rel, so per-sample wall-clock queries (and their drift against the
// monotonic ordering) are avoided.
type Sample struct {
	Seq uint64  // sequence number, assigned in arrival order
	Rel float64 // seconds since acquisition start (monotonic)

	VoltageRaw uint16
	Voltage    float64 // V
	CurrentRaw uint16
	Current    float64 // A
}
