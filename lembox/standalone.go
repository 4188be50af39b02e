// Copyright 2025 The DC2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lembox

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// standalone wires a Device to the subprocess protocol: machine
// parsable OK:/ERROR: status lines on out, operator stop via SIGINT,
// SIGTERM or a 'q' keypress on keys.
type standalone struct {
	dev   *Device
	fname string
	out   io.Writer
	keys  io.Reader
	limit time.Duration
	stop  chan os.Signal
}

// RunStandalone performs one complete acquisition run on brd, logging
// to the CSV file fname. Status lines go to out. A nil keys disables
// the keypress poll; a zero limit runs until an operator stop.
// It returns the number of samples acquired and the number of
// producer stalls on a saturated queue.
func RunStandalone(brd Board, fname string, out io.Writer, keys io.Reader, limit time.Duration, opts ...Option) (samples, stalls uint64, err error) {
	srv := &standalone{
		dev:   NewDevice(brd, opts...),
		fname: fname,
		out:   out,
		keys:  keys,
		limit: limit,
		stop:  make(chan os.Signal, 1),
	}
	return srv.run()
}

func (srv *standalone) run() (uint64, uint64, error) {
	dev := srv.dev

	// open the output first: if the log cannot be created there is no
	// point in touching the hardware.
	f, err := os.Create(srv.fname)
	if err != nil {
		fmt.Fprintf(srv.out, "ERROR:FILE_OPEN_FAILED\n")
		return 0, 0, fmt.Errorf("lembox: could not create output file %q: %w", srv.fname, err)
	}
	defer f.Close()

	err = dev.Configure()
	if err != nil {
		switch {
		case errors.Is(err, errBufferAlloc):
			fmt.Fprintf(srv.out, "ERROR:BUFFER_ALLOC_FAILED\n")
		default:
			fmt.Fprintf(srv.out, "ERROR:ADC_CONFIG_FAILED\n")
		}
		return 0, 0, err
	}

	signal.Notify(srv.stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(srv.stop)

	err = dev.Start(f)
	if err != nil {
		fmt.Fprintf(srv.out, "ERROR:ACQUISITION_START_FAILED\n")
		return 0, 0, err
	}
	fmt.Fprintf(srv.out, "OK:ACQUISITION_STARTED\n")

	quitKey := make(chan struct{})
	if srv.keys != nil {
		go watchKeys(srv.keys, quitKey)
	}

	var limit <-chan time.Time
	if srv.limit > 0 {
		timer := time.NewTimer(srv.limit)
		defer timer.Stop()
		limit = timer.C
	}

	select {
	case <-srv.stop:
	case <-quitKey:
	case <-limit:
	case <-dev.Done(): // fatal hardware fault
	}

	err = dev.Stop()
	n, stalls := dev.Samples(), dev.Stalls()
	if err != nil {
		fmt.Fprintf(srv.out, "ERROR:ACQUISITION_FAILED\n")
		return n, stalls, err
	}

	err = f.Close()
	if err != nil {
		fmt.Fprintf(srv.out, "ERROR:ACQUISITION_FAILED\n")
		return n, stalls, fmt.Errorf("lembox: could not close output file %q: %w", srv.fname, err)
	}

	fmt.Fprintf(srv.out, "OK:ACQUISITION_COMPLETE\n")
	fmt.Fprintf(srv.out, "SAMPLES:%d\n", n)
	return n, stalls, nil
}

// watchKeys implements the non-blocking operator keypress poll: any
// 'q' byte on the stream requests a stop.
func watchKeys(r io.Reader, quit chan struct{}) {
	buf := bufio.NewReader(r)
	for {
		c, err := buf.ReadByte()
		if err != nil {
			return
		}
		if c == 'q' || c == 'Q' {
			close(quit)
			return
		}
	}
}
