// Copyright 2025 The DC2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lembox

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// State describes the lifecycle of a Device.
type State uint8

const (
	StateIdle State = iota
	StateConfigured
	StateRunning
	StateStopping
	StateStopped
)

func (st State) String() string {
	switch st {
	case StateIdle:
		return "idle"
	case StateConfigured:
		return "configured"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	}
	return "invalid"
}

// maxPollFaults is the number of consecutive buffer-fetch failures
// after which the hardware stream is considered dead.
const maxPollFaults = 5000

// errBufferAlloc marks a failure to hand the buffer pool to the board,
// as opposed to a rejected channel configuration.
var errBufferAlloc = errors.New("lembox: buffer allocation failed")

// Device owns one acquisition run: the board, the buffer pool, the
// sample queue, and the producer/consumer goroutine pair.
//
// Lifecycle: NewDevice -> Configure -> Start -> Stop, with further
// Start/Stop cycles on the same configuration. The state field is
// owned by the control goroutine; the producer and consumer never
// touch it.
type Device struct {
	msg *log.Logger
	brd Board
	cfg config

	state State
	tb    timebase
	q     *queue
	pool  []*Block
	wr    *csvWriter

	count  atomic.Uint64 // samples enqueued
	stalls atomic.Uint64 // enqueue retries on a full queue

	quit     chan struct{} // operator stop request
	stopOnce sync.Once
	prodDone chan struct{} // closed when the acquisition loop exits
	grp      *errgroup.Group
}

// NewDevice wraps a board into a Device. The board is not touched
// until Configure.
func NewDevice(brd Board, opts ...Option) *Device {
	cfg := newConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Device{
		msg:   log.New(os.Stdout, "lembox: ", 0),
		brd:   brd,
		cfg:   cfg,
		state: StateIdle,
	}
}

// SetLogger redirects the device's progress and error reporting.
func (dev *Device) SetLogger(msg *log.Logger) { dev.msg = msg }

func (dev *Device) State() State { return dev.state }

// Samples reports the number of samples produced so far.
func (dev *Device) Samples() uint64 { return dev.count.Load() }

// Stalls reports how often the producer had to wait on a full queue.
func (dev *Device) Stalls() uint64 { return dev.stalls.Load() }

// Done is closed when the acquisition loop has exited, whether on
// request or on a fatal hardware fault.
func (dev *Device) Done() <-chan struct{} { return dev.prodDone }

// Configure pushes the channel configuration to the board and
// allocates and submits the hardware buffer pool.
func (dev *Device) Configure() error {
	if dev.state != StateIdle {
		return fmt.Errorf("lembox: configure called in state %v", dev.state)
	}

	err := dev.brd.Configure(dev.cfg.board)
	if err != nil {
		return fmt.Errorf("lembox: could not configure board: %w", err)
	}

	dev.pool = make([]*Block, dev.cfg.board.NumBlocks)
	for i := range dev.pool {
		blk := &Block{Raw: make([]uint16, dev.cfg.board.BlockSize*dev.cfg.board.Channels)}
		dev.pool[i] = blk
		err = dev.brd.Return(blk)
		if err != nil {
			return fmt.Errorf("%w: could not queue buffer %d: %w", errBufferAlloc, i, err)
		}
	}

	dev.q = newQueue(dev.cfg.queueDepth)
	dev.state = StateConfigured
	return nil
}

// Start captures the run timebase, starts the board and launches the
// producer and consumer goroutines. The CSV header is written to w
// before the hardware is started, so an unusable output aborts the run
// up front. A stopped device starts a fresh run: sample numbering,
// counters and timebase all reset.
func (dev *Device) Start(w io.Writer) error {
	switch dev.state {
	case StateConfigured, StateStopped:
	default:
		return fmt.Errorf("lembox: start called in state %v", dev.state)
	}

	dev.count.Store(0)
	dev.stalls.Store(0)
	dev.tb = newTimebase()
	dev.wr = newCSVWriter(w, dev.msg, dev.tb, &dev.cfg)
	err := dev.wr.header()
	if err != nil {
		return err
	}

	err = dev.brd.Start()
	if err != nil {
		return fmt.Errorf("lembox: could not start board: %w", err)
	}

	dev.state = StateRunning
	dev.quit = make(chan struct{})
	dev.prodDone = make(chan struct{})
	dev.stopOnce = sync.Once{}

	grp := new(errgroup.Group)
	grp.Go(func() error {
		defer close(dev.prodDone)
		return dev.loop()
	})
	grp.Go(func() error {
		return dev.drain()
	})
	dev.grp = grp
	return nil
}

// Stop requests a cooperative stop, halts the board once the producer
// has exited, waits for the consumer to drain every queued sample and
// performs the final flush. No sample enqueued before the stop request
// is ever lost.
func (dev *Device) Stop() error {
	switch dev.state {
	case StateRunning:
	default:
		return fmt.Errorf("lembox: stop called in state %v", dev.state)
	}
	dev.state = StateStopping

	dev.stopOnce.Do(func() { close(dev.quit) })
	<-dev.prodDone

	errStop := dev.brd.Stop()
	err := dev.grp.Wait()

	dev.state = StateStopped
	if err != nil {
		return err
	}
	if errStop != nil {
		return fmt.Errorf("lembox: could not stop board: %w", errStop)
	}
	return nil
}

// loop is the producer: it drains every available hardware buffer,
// converts and timestamps the samples, returns the buffer to the board
// and only then enqueues, retrying on a full queue. The retry wait is
// safe because the board already has its buffer back.
func (dev *Device) loop() error {
	var (
		period   = 1.0 / dev.cfg.board.Rate
		blockDur = float64(dev.cfg.board.BlockSize) * period

		seq     uint64
		lastRel = -period
		samples = make([]Sample, 0, dev.cfg.board.BlockSize)

		faults int
		report time.Time
	)

	for {
		select {
		case <-dev.quit:
			return nil
		default:
		}

		var (
			drained bool
			faulted bool
		)
	blocks:
		for {
			blk, err := dev.brd.Poll()
			switch {
			case err != nil:
				faults++
				faulted = true
				if faults >= maxPollFaults {
					return fmt.Errorf("lembox: persistent buffer-fetch failure: %w", err)
				}
				break blocks
			case blk == nil:
				break blocks
			}
			faults = 0
			drained = true

			// First-sample time: the block we just fetched spans the
			// last blockDur seconds, clamped so that relative times
			// stay strictly increasing across blocks drained
			// back-to-back.
			first := dev.tb.since() - blockDur
			if min := lastRel + period; first < min {
				first = min
			}

			var (
				nch    = dev.cfg.board.Channels
				npairs = len(blk.Raw) / nch
				bcfg   = &dev.cfg.board
			)
			samples = samples[:0]
			for i := 0; i < npairs; i++ {
				vraw := blk.Raw[nch*i+0]
				craw := blk.Raw[nch*i+1]
				samples = append(samples, Sample{
					Seq:        seq + uint64(i),
					Rel:        first + float64(i)*period,
					VoltageRaw: vraw,
					Voltage:    ConvertToVolts(vraw, bcfg.Resolution, bcfg.Encoding, bcfg.Max, bcfg.Min),
					CurrentRaw: craw,
					Current:    ConvertToVolts(craw, bcfg.Resolution, bcfg.Encoding, bcfg.Max, bcfg.Min),
				})
			}
			seq += uint64(npairs)
			lastRel = first + float64(npairs-1)*period

			// hand the buffer back before any queueing wait.
			err = dev.brd.Return(blk)
			if err != nil {
				dev.msg.Printf("could not return buffer to board: %+v", err)
			}

			for _, s := range samples {
				for !dev.q.enqueue(s) {
					dev.stalls.Add(1)
					dev.q.waitNotFull(1 * time.Millisecond)
				}
				dev.count.Add(1)
			}
		}

		if time.Since(report) >= dev.cfg.progress {
			dev.msg.Printf("samples: %d, queue: %d/%d, stalls: %d",
				dev.count.Load(), dev.q.len(), dev.q.cap(), dev.stalls.Load(),
			)
			report = time.Now()
		}

		// retry a faulted poll right away: either the board recovers or
		// the fault counter trips in bounded time.
		if !drained && !faulted {
			time.Sleep(1 * time.Millisecond)
		}
	}
}

// drain is the consumer: it moves samples from the queue to the
// batched writer for as long as the producer runs, then drains the
// remainder and performs the final flush.
func (dev *Device) drain() error {
	for {
		if s, ok := dev.q.dequeue(); ok {
			dev.wr.write(s)
			continue
		}
		select {
		case <-dev.prodDone:
			for {
				s, ok := dev.q.dequeue()
				if !ok {
					break
				}
				dev.wr.write(s)
			}
			return dev.wr.close()
		default:
			dev.q.waitNotEmpty(1 * time.Millisecond)
		}
	}
}
