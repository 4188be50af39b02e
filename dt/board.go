// Copyright 2025 The DC2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dt

import (
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/swill187/DC2/internal/mmap"
	"github.com/swill187/DC2/lembox"
)

type rwer interface {
	io.ReaderAt
	io.WriterAt
}

type reg32 struct {
	r func() uint32
	w func(v uint32)
}

func newReg32(brd *Board, rw rwer, offset int64) reg32 {
	return reg32{
		r: func() uint32 {
			return brd.readU32(rw, offset)
		},
		w: func(v uint32) {
			brd.writeU32(rw, offset, v)
		},
	}
}

// Board drives one DT-98xx board. It implements lembox.Board.
type Board struct {
	msg *log.Logger
	f   *os.File
	mem *mmap.Handle

	err error
	buf [4]byte

	cfg      lembox.BoardConfig
	free     []*lembox.Block
	running  bool
	overruns uint64

	regs struct {
		id     reg32
		ctrl   reg32
		status reg32
		clkdiv reg32
		rng    reg32
		nchan  reg32
		depth  reg32
		fifo   reg32
	}
}

var _ lembox.Board = (*Board)(nil)

// Open maps the register window of the board behind the given device
// file and verifies its identification register.
func Open(path string) (*Board, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("dt: could not open device %q: %w", path, err)
	}

	mem, err := mmap.Map(f, 0, span)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("dt: could not map registers of %q: %w", path, err)
	}

	brd := newBoard(mem)
	brd.f = f
	brd.mem = mem

	err = brd.identify()
	if err != nil {
		brd.Close()
		return nil, err
	}
	return brd, nil
}

func newBoard(rw rwer) *Board {
	brd := &Board{
		msg: log.New(os.Stdout, "dt: ", 0),
	}
	brd.regs.id = newReg32(brd, rw, regID)
	brd.regs.ctrl = newReg32(brd, rw, regCtrl)
	brd.regs.status = newReg32(brd, rw, regStatus)
	brd.regs.clkdiv = newReg32(brd, rw, regClkDiv)
	brd.regs.rng = newReg32(brd, rw, regRange)
	brd.regs.nchan = newReg32(brd, rw, regNChan)
	brd.regs.depth = newReg32(brd, rw, regDepth)
	brd.regs.fifo = newReg32(brd, rw, regFIFO)
	return brd
}

// SetLogger redirects the board's reporting.
func (brd *Board) SetLogger(msg *log.Logger) { brd.msg = msg }

func (brd *Board) identify() error {
	id := brd.regs.id.r()
	if brd.err != nil {
		return fmt.Errorf("dt: could not read id register: %w", brd.err)
	}
	if id != deviceID {
		return fmt.Errorf("dt: invalid device id: got=0x%x, want=0x%x", id, deviceID)
	}
	return nil
}

func rangeCode(min, max float64) (uint32, error) {
	switch {
	case min == -10 && max == +10:
		return rangeBi10V, nil
	case min == -5 && max == +5:
		return rangeBi5V, nil
	case min == 0 && max == +10:
		return rangeUni10V, nil
	}
	return 0, fmt.Errorf("dt: unsupported input range [%v, %v]", min, max)
}

// Configure resets the board and programs the sample clock, the input
// range and the channel selection.
func (brd *Board) Configure(cfg lembox.BoardConfig) error {
	if cfg.Channels != 2 {
		return fmt.Errorf("dt: board samples exactly 2 channels (got=%d)", cfg.Channels)
	}
	if cfg.Resolution != 16 {
		return fmt.Errorf("dt: board converts at 16 bits (got=%d)", cfg.Resolution)
	}

	rng, err := rangeCode(cfg.Min, cfg.Max)
	if err != nil {
		return err
	}

	div := uint32(baseClock / cfg.Rate)
	if div == 0 || baseClock/float64(div) != cfg.Rate {
		return fmt.Errorf("dt: clock %v Hz does not divide the %d Hz base clock", cfg.Rate, baseClock)
	}

	brd.regs.ctrl.w(ctrlReset)
	brd.regs.clkdiv.w(div)
	brd.regs.rng.w(rng)
	brd.regs.nchan.w(uint32(cfg.Channels))
	if brd.err != nil {
		return fmt.Errorf("dt: could not program board: %w", brd.err)
	}

	brd.cfg = cfg
	brd.free = brd.free[:0]
	return nil
}

// Return hands a drained buffer back to the board pool.
func (brd *Board) Return(blk *lembox.Block) error {
	brd.free = append(brd.free, blk)
	return nil
}

// Start opens the analog front-end and starts the sample clock.
func (brd *Board) Start() error {
	if len(brd.free) == 0 {
		return fmt.Errorf("dt: no buffers queued")
	}
	brd.regs.ctrl.w(ctrlRun)
	if brd.err != nil {
		return fmt.Errorf("dt: could not start board: %w", brd.err)
	}
	brd.running = true
	return nil
}

// Stop halts the sample clock. Frames still in the FIFO remain
// readable.
func (brd *Board) Stop() error {
	brd.regs.ctrl.w(0)
	if brd.err != nil {
		return fmt.Errorf("dt: could not stop board: %w", brd.err)
	}
	brd.running = false
	return nil
}

// Poll drains one block worth of frames from the stream FIFO, if that
// many are ready. It returns (nil, nil) otherwise.
func (brd *Board) Poll() (*lembox.Block, error) {
	status := brd.regs.status.r()
	if brd.err != nil {
		return nil, fmt.Errorf("dt: could not read status: %w", brd.err)
	}
	if status&statusOverrun != 0 {
		brd.overruns++
		brd.msg.Printf("stream FIFO overrun (total: %d)", brd.overruns)
		brd.regs.status.w(statusOverrun)
	}

	depth := brd.regs.depth.r()
	if brd.err != nil {
		return nil, fmt.Errorf("dt: could not read FIFO depth: %w", brd.err)
	}
	if depth < uint32(brd.cfg.BlockSize) || len(brd.free) == 0 {
		return nil, nil
	}

	blk := brd.free[0]
	brd.free = brd.free[1:]
	for i := 0; i < brd.cfg.BlockSize; i++ {
		v := brd.regs.fifo.r()
		blk.Raw[2*i+0] = uint16(v)
		blk.Raw[2*i+1] = uint16(v >> 16)
	}
	if brd.err != nil {
		brd.free = append(brd.free, blk)
		return nil, fmt.Errorf("dt: could not drain FIFO: %w", brd.err)
	}
	return blk, nil
}

// Overruns reports the number of stream FIFO overruns seen so far.
func (brd *Board) Overruns() uint64 { return brd.overruns }

// Close stops the board and unmaps its register window.
func (brd *Board) Close() error {
	if brd.running {
		if err := brd.Stop(); err != nil {
			return err
		}
	}
	if brd.mem != nil {
		if err := brd.mem.Close(); err != nil {
			return fmt.Errorf("dt: could not unmap registers: %w", err)
		}
		brd.mem = nil
	}
	if brd.f != nil {
		if err := brd.f.Close(); err != nil {
			return fmt.Errorf("dt: could not close device: %w", err)
		}
		brd.f = nil
	}
	return nil
}

func (brd *Board) readU32(r io.ReaderAt, off int64) uint32 {
	if brd.err != nil {
		return 0
	}
	_, brd.err = r.ReadAt(brd.buf[:4], off)
	if brd.err != nil {
		brd.err = fmt.Errorf("dt: could not read register 0x%x: %w", off, brd.err)
		return 0
	}
	return binary.LittleEndian.Uint32(brd.buf[:4])
}

func (brd *Board) writeU32(w io.WriterAt, off int64, v uint32) {
	if brd.err != nil {
		return
	}
	binary.LittleEndian.PutUint32(brd.buf[:4], v)
	_, brd.err = w.WriteAt(brd.buf[:4], off)
	if brd.err != nil {
		brd.err = fmt.Errorf("dt: could not write register 0x%x: %w", off, brd.err)
		return
	}
}
