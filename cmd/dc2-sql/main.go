// Copyright 2025 The DC2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command dc2-sql inspects the DC2 run database.
//
// Without arguments it drops into an interactive prompt:
//
//	runs [n]    display the last n runs (default: 10)
//	last        display the last run number
//	quit        exit
//
// any other input is sent to the database as a raw SQL query.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/peterh/liner"
	"github.com/swill187/DC2/rundb"
)

func main() {
	log.SetPrefix("dc2-sql: ")
	log.SetFlags(0)

	var (
		dbname = flag.String("db", "dc2runs", "run database name")
		nruns  = flag.Int("runs", 0, "display the last n runs and exit")
	)

	flag.Parse()

	db, err := rundb.Open(*dbname)
	if err != nil {
		log.Fatalf("could not open run db: %+v", err)
	}
	defer db.Close()

	if *nruns > 0 {
		err = displayRuns(db, *nruns)
		if err != nil {
			log.Fatalf("could not display runs: %+v", err)
		}
		return
	}

	err = repl(db)
	if err != nil {
		log.Fatalf("could not run prompt: %+v", err)
	}
}

func repl(db *rundb.DB) error {
	term := liner.NewLiner()
	defer term.Close()
	term.SetCtrlCAborts(true)

	for {
		o, err := term.Prompt("dc2> ")
		if err != nil {
			if err == liner.ErrPromptAborted {
				return nil
			}
			return fmt.Errorf("could not read prompt: %w", err)
		}
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		term.AppendHistory(o)

		switch {
		case o == "quit", o == "exit":
			return nil
		case o == "last":
			err = displayLast(db)
		case o == "runs" || strings.HasPrefix(o, "runs "):
			n := 10
			if args := strings.Fields(o); len(args) > 1 {
				n, err = strconv.Atoi(args[1])
				if err != nil {
					log.Printf("invalid run count %q: %+v", args[1], err)
					continue
				}
			}
			err = displayRuns(db, n)
		default:
			err = displayQuery(db, o)
		}
		if err != nil {
			log.Printf("error: %+v", err)
		}
	}
}

func displayLast(db *rundb.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	run, err := db.LastRun(ctx)
	if err != nil {
		return fmt.Errorf("could not get last run: %w", err)
	}
	log.Printf("last run: %d", run)
	return nil
}

func displayRuns(db *rundb.DB, n int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	runs, err := db.Runs(ctx, n)
	if err != nil {
		return fmt.Errorf("could not get last %d runs: %w", n, err)
	}
	for _, run := range runs {
		stop := "(running)"
		if run.Stop.Valid {
			stop = run.Stop.String
		}
		log.Printf("run=%04d start=%s stop=%s file=%q rate=%v Hz samples=%d stalls=%d",
			run.ID, run.Start, stop, run.File, run.Rate, run.Samples, run.Stalls,
		)
	}
	return nil
}

func displayQuery(db *rundb.DB, query string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("could not run query %q: %w", query, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("could not get query columns: %w", err)
	}
	log.Printf("cols: %s", strings.Join(cols, ", "))

	var (
		vals = make([]interface{}, len(cols))
		raw  = make([]sql.RawBytes, len(cols))
	)
	for i := range vals {
		vals[i] = &raw[i]
	}

	i := 0
	for rows.Next() {
		err = rows.Scan(vals...)
		if err != nil {
			return fmt.Errorf("could not scan row %d: %w", i, err)
		}
		out := make([]string, len(raw))
		for j, v := range raw {
			out[j] = string(v)
		}
		log.Printf("row[%d]: %s", i, strings.Join(out, ", "))
		i++
	}
	err = rows.Err()
	if err != nil {
		return fmt.Errorf("could not iterate over rows: %w", err)
	}
	return ctx.Err()
}
