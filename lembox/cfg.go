// Copyright 2025 The DC2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lembox

import "time"

// Defaults match the settings of the original LEM box collector:
// 2 channels at 20 kHz, 240 buffers of 4000 samples, a 400000-slot
// sample queue and a 32 KiB write buffer flushed every 1000 rows.
const (
	defaultRate       = 20000.0
	defaultChannels   = 2
	defaultResolution = 16
	defaultNumBlocks  = 240
	defaultBlockSize  = 4000
	defaultQueueDepth = 400000
	defaultWBufSize   = 32768
	defaultWBufMargin = 256
	defaultBatchSize  = 1000
)

type config struct {
	board BoardConfig

	queueDepth int
	wbufSize   int
	wbufMargin int
	batchSize  int
	progress   time.Duration
}

func newConfig() config {
	return config{
		board: BoardConfig{
			Rate:       defaultRate,
			Channels:   defaultChannels,
			Resolution: defaultResolution,
			Encoding:   EncBinary,
			Min:        -10.0,
			Max:        +10.0,
			NumBlocks:  defaultNumBlocks,
			BlockSize:  defaultBlockSize,
		},
		queueDepth: defaultQueueDepth,
		wbufSize:   defaultWBufSize,
		wbufMargin: defaultWBufMargin,
		batchSize:  defaultBatchSize,
		progress:   500 * time.Millisecond,
	}
}

// Option configures a Device.
type Option func(*config)

// WithSampleRate sets the per-channel sampling clock frequency in Hz.
func WithSampleRate(freq float64) Option {
	return func(cfg *config) {
		cfg.board.Rate = freq
	}
}

// WithRange sets the full-scale input range of the ADC.
func WithRange(min, max float64) Option {
	return func(cfg *config) {
		cfg.board.Min = min
		cfg.board.Max = max
	}
}

// WithEncoding sets the raw-code encoding of the ADC.
func WithEncoding(enc Encoding) Option {
	return func(cfg *config) {
		cfg.board.Encoding = enc
	}
}

// WithBlocks sets the hardware buffer pool geometry: n blocks of size
// samples per channel each.
func WithBlocks(n, size int) Option {
	return func(cfg *config) {
		cfg.board.NumBlocks = n
		cfg.board.BlockSize = size
	}
}

// WithQueueDepth sets the capacity of the producer/consumer sample
// queue.
func WithQueueDepth(n int) Option {
	return func(cfg *config) {
		cfg.queueDepth = n
	}
}

// WithBatchSize sets the number of rows after which the writer flushes
// its buffer regardless of occupancy.
func WithBatchSize(n int) Option {
	return func(cfg *config) {
		cfg.batchSize = n
	}
}

// WithWriteBuffer sets the size in bytes of the writer's accumulation
// buffer.
func WithWriteBuffer(n int) Option {
	return func(cfg *config) {
		cfg.wbufSize = n
	}
}

// WithProgressInterval sets the period of the progress report emitted
// by the acquisition loop.
func WithProgressInterval(d time.Duration) Option {
	return func(cfg *config) {
		cfg.progress = d
	}
}
