// Copyright 2025 The DC2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command dc2-svc exposes the LEM box acquisition as a TDAQ node.
//
// The node acquires to a CSV file under the data directory and taps
// the CSV stream onto its /adc output channel for online monitoring.
// The board is given as the first positional argument, either a device
// file such as /dev/dc2adc0 or the string "sim" for the simulated
// board.
package main // import "github.com/swill187/DC2/cmd/dc2-svc"

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/go-daq/tdaq"
	"github.com/go-daq/tdaq/flags"
	"github.com/swill187/DC2/dt"
	"github.com/swill187/DC2/lembox"
)

func main() {
	cmd := flags.New()

	dev := svc{
		devname: "sim",
		datadir: ".",
		rate:    20000,
	}
	if len(cmd.Args) > 0 {
		dev.devname = cmd.Args[0]
	}
	if len(cmd.Args) > 1 {
		dev.datadir = cmd.Args[1]
	}

	srv := tdaq.New(cmd, os.Stdout)
	srv.CmdHandle("/config", dev.OnConfig)
	srv.CmdHandle("/init", dev.OnInit)
	srv.CmdHandle("/reset", dev.OnReset)
	srv.CmdHandle("/start", dev.OnStart)
	srv.CmdHandle("/stop", dev.OnStop)
	srv.CmdHandle("/quit", dev.OnQuit)

	srv.OutputHandle("/adc", dev.adc)

	srv.RunHandle(dev.run)

	err := srv.Run(context.Background())
	if err != nil {
		log.Panicf("error: %+v", err)
	}
}

type svc struct {
	devname string
	datadir string
	rate    float64

	brd  lembox.Board
	dev  *lembox.Device
	f    *os.File
	data chan []byte
}

func (dev *svc) OnConfig(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /config command...")
	return nil
}

func (dev *svc) OnInit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /init command...")
	return dev.init(ctx)
}

func (dev *svc) OnReset(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /reset command...")
	dev.release(ctx)
	return dev.init(ctx)
}

func (dev *svc) init(ctx tdaq.Context) error {
	brd, err := dev.openBoard()
	if err != nil {
		return fmt.Errorf("could not open board %q: %w", dev.devname, err)
	}
	dev.brd = brd
	dev.dev = lembox.NewDevice(brd, lembox.WithSampleRate(dev.rate))
	dev.data = make(chan []byte, 1024)

	err = dev.dev.Configure()
	if err != nil {
		return fmt.Errorf("could not configure board %q: %w", dev.devname, err)
	}
	ctx.Msg.Infof("board %q configured (rate=%v Hz)", dev.devname, dev.rate)
	return nil
}

func (dev *svc) openBoard() (lembox.Board, error) {
	if dev.devname == "sim" {
		return &lembox.SimBoard{Paced: true}, nil
	}
	return dt.Open(dev.devname)
}

func (dev *svc) OnStart(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /start command...")
	if dev.dev == nil {
		return fmt.Errorf("board not initialized")
	}

	fname := filepath.Join(dev.datadir,
		fmt.Sprintf("dc2-%s.csv", time.Now().UTC().Format("2006-01-02-15h04m05s")),
	)
	f, err := os.Create(fname)
	if err != nil {
		return fmt.Errorf("could not create output file %q: %w", fname, err)
	}
	dev.f = f

	err = dev.dev.Start(io.MultiWriter(f, &tap{data: dev.data}))
	if err != nil {
		return fmt.Errorf("could not start acquisition: %w", err)
	}
	ctx.Msg.Infof("acquiring to %q...", fname)
	return nil
}

func (dev *svc) OnStop(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /stop command...")
	if dev.dev == nil {
		return nil
	}

	err := dev.dev.Stop()
	n, stalls := dev.dev.Samples(), dev.dev.Stalls()
	ctx.Msg.Infof("acquired %d samples (%d stalls)", n, stalls)
	if err != nil {
		return fmt.Errorf("could not stop acquisition: %w", err)
	}

	if dev.f != nil {
		err = dev.f.Close()
		dev.f = nil
		if err != nil {
			return fmt.Errorf("could not close output file: %w", err)
		}
	}
	return nil
}

func (dev *svc) OnQuit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /quit command...")
	dev.release(ctx)
	return nil
}

func (dev *svc) release(ctx tdaq.Context) {
	if dev.f != nil {
		_ = dev.f.Close()
		dev.f = nil
	}
	if dev.brd != nil {
		err := dev.brd.Close()
		if err != nil {
			ctx.Msg.Warnf("could not close board: %+v", err)
		}
		dev.brd = nil
		dev.dev = nil
	}
}

func (dev *svc) adc(ctx tdaq.Context, dst *tdaq.Frame) error {
	select {
	case <-ctx.Ctx.Done():
		dst.Body = nil
		return nil
	case data := <-dev.data:
		dst.Body = data
	}
	return nil
}

func (dev *svc) run(ctx tdaq.Context) error {
	for {
		select {
		case <-ctx.Ctx.Done():
			return nil
		default:
			if dev.dev != nil {
				select {
				case <-dev.dev.Done():
					// fatal hardware fault: surface it through /stop
					ctx.Msg.Errorf("acquisition aborted: %+v", dev.dev.Stop())
					dev.dev = nil
				default:
				}
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
}

// tap forwards the CSV byte stream to the /adc output channel.
// frames are dropped when no consumer keeps up: the monitoring stream
// is lossy, the file is not.
type tap struct {
	data chan []byte
}

func (t *tap) Write(p []byte) (int, error) {
	buf := make([]byte, len(p))
	copy(buf, p)
	select {
	case t.data <- buf:
	default:
	}
	return len(p), nil
}
