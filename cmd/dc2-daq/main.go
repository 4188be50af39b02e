// Copyright 2025 The DC2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command dc2-daq runs the LEM box voltage/current acquisition in
// stand-alone mode.
//
// It emits machine parsable status lines on stdout (OK:... and
// ERROR:...) so a supervisor such as dc2-ctl can track the run, and
// exits with a non-zero status on failure.
package main // import "github.com/swill187/DC2/cmd/dc2-daq"

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/swill187/DC2/dt"
	"github.com/swill187/DC2/lembox"
	"github.com/swill187/DC2/rundb"
)

func main() {
	log.SetPrefix("dc2-daq: ")
	log.SetFlags(0)

	err := xmain(os.Stdout, os.Stdin, os.Args[1:])
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

func xmain(stdout io.Writer, keys io.Reader, args []string) error {
	fset := flag.NewFlagSet("dc2-daq", flag.ContinueOnError)
	var (
		doCheck = fset.Bool("check", false, "probe the board and exit")
		doSim   = fset.Bool("sim", false, "acquire from the simulated board")
		devname = fset.String("dev", "/dev/dc2adc0", "board device file")
		oname   = fset.String("o", "", "output CSV file")
		rate    = fset.Float64("rate", 20000, "per-channel sampling rate (Hz)")
		limit   = fset.Duration("limit", 0, "acquisition duration (0: run until stopped)")
		dbname  = fset.String("db", "", "run database to record into (empty: disabled)")
	)
	err := fset.Parse(args)
	if err != nil {
		return err
	}

	brd, err := openBoard(*doSim, *devname)
	if err != nil {
		fmt.Fprintf(stdout, "ERROR:BOARD_INIT_FAILED\n")
		return fmt.Errorf("could not open board: %w", err)
	}
	defer brd.Close()
	fmt.Fprintf(stdout, "OK:BOARD_CONNECTED\n")

	if *doCheck {
		dev := lembox.NewDevice(brd, lembox.WithSampleRate(*rate))
		err = dev.Configure()
		if err != nil {
			fmt.Fprintf(stdout, "ERROR:ADC_CONFIG_FAILED\n")
			return fmt.Errorf("could not configure board: %w", err)
		}
		return nil
	}

	if *oname == "" {
		fmt.Fprintf(stdout, "ERROR:NO_OUTPUT_FILE\n")
		return fmt.Errorf("missing output file (-o)")
	}

	var (
		db  *rundb.DB
		run int32
	)
	if *dbname != "" {
		db, err = rundb.Open(*dbname)
		if err != nil {
			return fmt.Errorf("could not open run db: %w", err)
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		run, err = db.NextRun(ctx)
		if err != nil {
			return fmt.Errorf("could not allocate run number: %w", err)
		}
		err = db.RecordStart(ctx, run, *oname, *rate)
		if err != nil {
			return fmt.Errorf("could not record run start: %w", err)
		}
		log.Printf("run: %d", run)
	}

	n, stalls, err := lembox.RunStandalone(brd, *oname, stdout, keys, *limit,
		lembox.WithSampleRate(*rate),
	)
	if err != nil {
		return fmt.Errorf("could not run acquisition: %w", err)
	}
	log.Printf("acquired %d samples (%d stalls)", n, stalls)

	if db != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err = db.RecordStop(ctx, run, int64(n), int64(stalls))
		if err != nil {
			return fmt.Errorf("could not record run stop: %w", err)
		}
	}
	return nil
}

func openBoard(sim bool, devname string) (lembox.Board, error) {
	if sim {
		return &lembox.SimBoard{Paced: true}, nil
	}
	return dt.Open(devname)
}
