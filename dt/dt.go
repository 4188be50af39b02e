// Copyright 2025 The DC2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dt drives the DT-98xx simultaneous acquisition board through
// its memory-mapped register window.
//
// The board exposes a small bank of 32-bit registers followed by a
// stream FIFO data port. Each FIFO read pops one sample frame: the
// voltage channel in the low half-word, the current channel in the
// high half-word.
package dt // import "github.com/swill187/DC2/dt"

// Register window layout.
const (
	span = 0x1000 // size of the mapped register window

	regID     = 0x0000 // device identification
	regCtrl   = 0x0004 // run control
	regStatus = 0x0008 // stream status, overrun is write-1-to-clear
	regClkDiv = 0x000c // sample clock divisor
	regRange  = 0x0010 // input range code
	regNChan  = 0x0014 // simultaneous channel count
	regDepth  = 0x0018 // sample frames ready in the stream FIFO
	regFIFO   = 0x001c // stream FIFO data port

	deviceID  = 0x9836     // DT-9836 family code
	baseClock = 36_000_000 // Hz, on-board sample clock

	ctrlRun   = 0x0001
	ctrlReset = 0x0002

	statusRunning = 0x0001
	statusOverrun = 0x0002
)

// Input range codes.
const (
	rangeBi10V  = 0x0 // -10V..+10V
	rangeBi5V   = 0x1 // -5V..+5V
	rangeUni10V = 0x2 // 0V..+10V
)
