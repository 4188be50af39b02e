// Copyright 2025 The DC2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// dc2-dump inspects and summarizes DC2 acquisition CSV files.
//
// Usage: dc2-dump [OPTIONS] FILE1 [FILE2 [FILE3 ...]]
//
// Example:
//
//	$> dc2-dump ./run42.csv
//	=== run42.csv ===
//	rows:          40000
//	samples:       0 -> 39999 (0 gaps)
//	time:          0.000000 -> 1.999950 s
//	rate:          20000.0 Hz
//	voltage:       min=-10.000000 max=+9.999695 mean=-0.000153 V
//	current:       min=-10.000000 max=+9.999695 mean=-0.000153 A
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"go-hep.org/x/hep/csvutil"
)

func main() {
	log.SetPrefix("dc2-dump: ")
	log.SetFlags(0)

	flag.Usage = func() {
		fmt.Printf(`dc2-dump inspects and summarizes DC2 acquisition CSV files.

Usage: dc2-dump [OPTIONS] FILE1 [FILE2 [FILE3 ...]]

`)
		flag.PrintDefaults()
	}

	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		log.Fatalf("missing path to input CSV file")
	}

	for _, fname := range flag.Args() {
		err := process(os.Stdout, fname)
		if err != nil {
			log.Fatalf("could not dump file %q: %+v", fname, err)
		}
	}
}

// stats accumulates the running summary of one converted channel.
type stats struct {
	min  float64
	max  float64
	sum  float64
	n    int64
	rmin uint16
	rmax uint16
}

func newStats() stats {
	return stats{min: +1e308, max: -1e308, rmin: 0xffff}
}

func (st *stats) add(raw uint16, v float64) {
	if v < st.min {
		st.min = v
	}
	if v > st.max {
		st.max = v
	}
	if raw < st.rmin {
		st.rmin = raw
	}
	if raw > st.rmax {
		st.rmax = raw
	}
	st.sum += v
	st.n++
}

func (st *stats) mean() float64 {
	if st.n == 0 {
		return 0
	}
	return st.sum / float64(st.n)
}

func process(w io.Writer, fname string) error {
	tbl, err := csvutil.Open(fname)
	if err != nil {
		return fmt.Errorf("could not open %q: %w", fname, err)
	}
	defer tbl.Close()
	tbl.Reader.Comma = ','

	// drop the header row.
	rows, err := tbl.ReadRows(1, -1)
	if err != nil {
		return fmt.Errorf("could not read rows: %w", err)
	}
	defer rows.Close()

	var (
		nrows  int64
		gaps   int64
		first  uint64
		last   uint64
		relMin float64
		relMax float64
		volts  = newStats()
		amps   = newStats()
	)

	for rows.Next() {
		var (
			seq   uint64
			rel   float64
			stamp string
			vraw  string
			volt  float64
			craw  string
			curr  float64
		)
		err = rows.Scan(&seq, &rel, &stamp, &vraw, &volt, &craw, &curr)
		if err != nil {
			return fmt.Errorf("could not scan row %d: %w", nrows, err)
		}

		// raw codes are stored as %04X.
		v16, err := strconv.ParseUint(vraw, 16, 16)
		if err != nil {
			return fmt.Errorf("could not parse raw voltage %q (row %d): %w", vraw, nrows, err)
		}
		c16, err := strconv.ParseUint(craw, 16, 16)
		if err != nil {
			return fmt.Errorf("could not parse raw current %q (row %d): %w", craw, nrows, err)
		}

		switch nrows {
		case 0:
			first = seq
			relMin = rel
		default:
			if seq != last+1 {
				gaps++
			}
		}
		last = seq
		relMax = rel

		volts.add(uint16(v16), volt)
		amps.add(uint16(c16), curr)
		nrows++
	}
	err = rows.Err()
	if err != nil && err != io.EOF {
		return fmt.Errorf("could not iterate over rows: %w", err)
	}

	fmt.Fprintf(w, "=== %s ===\n", filepath.Base(fname))
	fmt.Fprintf(w, "rows:    % 12d\n", nrows)
	if nrows == 0 {
		return nil
	}
	fmt.Fprintf(w, "samples: %d -> %d (%d gaps)\n", first, last, gaps)
	fmt.Fprintf(w, "time:    %.6f -> %.6f s\n", relMin, relMax)
	if nrows > 1 && relMax > relMin {
		fmt.Fprintf(w, "rate:    %.1f Hz\n", float64(nrows-1)/(relMax-relMin))
	}
	fmt.Fprintf(w, "voltage: min=%+.6f max=%+.6f mean=%+.6f V (raw %04X -> %04X)\n",
		volts.min, volts.max, volts.mean(), volts.rmin, volts.rmax,
	)
	fmt.Fprintf(w, "current: min=%+.6f max=%+.6f mean=%+.6f A (raw %04X -> %04X)\n",
		amps.min, amps.max, amps.mean(), amps.rmin, amps.rmax,
	)

	return nil
}
