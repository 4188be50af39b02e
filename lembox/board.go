// Copyright 2025 The DC2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lembox

// Block is one hardware buffer: a fixed-size slab of interleaved raw
// channel codes (voltage, current, voltage, current, ...).
//
// A block is owned either by the board (being filled) or by the
// acquisition loop (being drained), never both. Every drained block
// must be handed back with Board.Return before the board runs out of
// buffers, otherwise the hardware overruns and drops data upstream.
type Block struct {
	Raw []uint16 // interleaved raw codes, len = samples-per-block * channels
}

// BoardConfig gathers the channel and clock configuration pushed to
// the board by the lifecycle controller.
type BoardConfig struct {
	Rate       float64 // sampling clock frequency per channel (Hz)
	Channels   int
	Resolution uint // ADC resolution (bits)
	Encoding   Encoding
	Min, Max   float64 // full-scale input range

	NumBlocks int // hardware buffer pool size
	BlockSize int // samples per channel per block
}

// Board abstracts the vendor acquisition device. The core pipeline
// only ever talks to this interface; the concrete implementations are
// the memory-mapped DT board (package dt) and SimBoard.
type Board interface {
	// Configure pushes the channel list, range, encoding and clock
	// configuration to the device.
	Configure(cfg BoardConfig) error

	// Start begins continuous acquisition into the submitted buffer
	// pool; Stop halts it.
	Start() error
	Stop() error

	// Poll fetches one filled block, without waiting. It returns
	// (nil, nil) when no block is ready. A non-nil error means the
	// fetch failed this iteration; the caller decides whether a
	// persistent run of failures is fatal.
	Poll() (*Block, error)

	// Return hands a block back to the board's buffer pool. It is
	// also how the lifecycle controller submits the freshly allocated
	// pool before Start.
	Return(blk *Block) error

	Close() error
}
