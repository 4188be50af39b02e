// Copyright 2025 The DC2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lembox

import (
	"fmt"
	"sync"
	"time"
)

// SimBoard is a software stand-in for the LEM box ADC board. It
// produces a deterministic ramp on both channels: the voltage channel
// counts up, the current channel is its bitwise complement.
//
// With Paced set, blocks become available at the real-time rate implied
// by the configured clock (one block every BlockSize/Rate seconds) and
// a block that comes due while the pool is empty is counted as a
// hardware overrun, like on the real board. Unpaced, a block is handed
// out on every Poll until MaxBlocks is exhausted, which is what the
// tests use.
type SimBoard struct {
	// MaxBlocks limits the number of blocks the board fills over the
	// run; 0 means unlimited.
	MaxBlocks int
	// Paced throttles block production to the configured clock rate.
	Paced bool
	// FailPolls makes the next n calls to Poll return an error.
	FailPolls int

	mu       sync.Mutex
	cfg      BoardConfig
	free     []*Block
	filled   []*Block
	running  bool
	interval time.Duration
	last     time.Time
	next     uint16 // ramp counter
	produced int
	overruns int
}

var _ Board = (*SimBoard)(nil)

func (brd *SimBoard) Configure(cfg BoardConfig) error {
	brd.mu.Lock()
	defer brd.mu.Unlock()

	if cfg.Channels != 2 {
		return fmt.Errorf("lembox: sim board supports exactly 2 channels (got=%d)", cfg.Channels)
	}
	brd.cfg = cfg
	brd.interval = time.Duration(float64(cfg.BlockSize) / cfg.Rate * float64(time.Second))
	return nil
}

func (brd *SimBoard) Start() error {
	brd.mu.Lock()
	defer brd.mu.Unlock()

	if brd.cfg.BlockSize == 0 {
		return fmt.Errorf("lembox: sim board not configured")
	}
	if len(brd.free) == 0 {
		return fmt.Errorf("lembox: sim board has no queued buffers")
	}
	brd.running = true
	brd.last = time.Now()
	return nil
}

func (brd *SimBoard) Stop() error {
	brd.mu.Lock()
	defer brd.mu.Unlock()
	brd.running = false
	return nil
}

func (brd *SimBoard) Poll() (*Block, error) {
	brd.mu.Lock()
	defer brd.mu.Unlock()

	if brd.FailPolls > 0 {
		brd.FailPolls--
		return nil, fmt.Errorf("lembox: sim board poll fault")
	}
	if !brd.running {
		return nil, nil
	}

	switch {
	case brd.Paced:
		for time.Since(brd.last) >= brd.interval {
			brd.last = brd.last.Add(brd.interval)
			brd.fill()
		}
	default:
		if len(brd.filled) == 0 {
			brd.fill()
		}
	}

	if len(brd.filled) == 0 {
		return nil, nil
	}
	blk := brd.filled[0]
	brd.filled = brd.filled[1:]
	return blk, nil
}

// fill moves one block from the free pool to the filled list, writing
// the ramp pattern. Called with brd.mu held.
func (brd *SimBoard) fill() {
	if brd.MaxBlocks > 0 && brd.produced >= brd.MaxBlocks {
		return
	}
	if len(brd.free) == 0 {
		// pool starved: upstream data loss, exactly like the hardware.
		brd.overruns++
		return
	}
	blk := brd.free[0]
	brd.free = brd.free[1:]

	for i := 0; i < brd.cfg.BlockSize; i++ {
		blk.Raw[2*i] = brd.next
		blk.Raw[2*i+1] = ^brd.next
		brd.next++
	}
	brd.filled = append(brd.filled, blk)
	brd.produced++
}

func (brd *SimBoard) Return(blk *Block) error {
	brd.mu.Lock()
	defer brd.mu.Unlock()
	brd.free = append(brd.free, blk)
	return nil
}

func (brd *SimBoard) Close() error { return nil }

// Produced reports the number of blocks the board has filled so far.
func (brd *SimBoard) Produced() int {
	brd.mu.Lock()
	defer brd.mu.Unlock()
	return brd.produced
}

// Overruns reports how many blocks were lost to pool starvation.
func (brd *SimBoard) Overruns() int {
	brd.mu.Lock()
	defer brd.mu.Unlock()
	return brd.overruns
}
