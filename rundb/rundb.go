// Copyright 2025 The DC2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rundb holds types to record and retrieve the bookkeeping of
// DC2 acquisition runs.
package rundb // import "github.com/swill187/DC2/rundb"

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

const (
	host = "localhost"
)

var (
	usr = "username"
	pwd = "s3cr3t"

	drvName = "mysql"
)

// Run describes one acquisition run.
type Run struct {
	ID      int32
	Start   string
	Stop    sql.NullString
	File    string
	Rate    float64
	Samples int64
	Stalls  int64
}

// DB exposes convenience methods to record and retrieve acquisition
// runs from the DC2 database.
type DB struct {
	db   *sql.DB
	name string // name of the DC2 database
}

// Open opens a connection to the DC2 database dbname.
func Open(dbname string) (*DB, error) {
	db, err := sql.Open(drvName, dsn(dbname))
	if err != nil {
		return nil, fmt.Errorf("rundb: could not open %q db: %w", dbname, err)
	}

	err = ping(db, dbname)
	if err != nil {
		return nil, fmt.Errorf("rundb: could not ping %q db: %w", dbname, err)
	}

	return &DB{db: db, name: dbname}, nil
}

func dsn(db string) string {
	return fmt.Sprintf("%s:%s@tcp(%s)/%s", usr, pwd, host, db)
}

func ping(db *sql.DB, dbname string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("rundb: could not ping %q db: %w", dbname, err)
	}

	return nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

func (db *DB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return db.db.QueryContext(ctx, query, args...)
}

// LastRun returns the identifier of the most recent run, zero when the
// database holds none.
func (db *DB) LastRun(ctx context.Context) (int32, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var run int32
	rows, err := db.db.QueryContext(
		ctx,
		"SELECT id FROM runs ORDER BY id DESC LIMIT 1",
	)
	if err != nil {
		return run, fmt.Errorf("rundb: could not query last run: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		err = rows.Scan(&run)
		if err != nil {
			return run, fmt.Errorf("rundb: could not get last run value: %w", err)
		}
	}

	if err := rows.Err(); err != nil {
		return run, fmt.Errorf("rundb: could not scan db for last run: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return run, fmt.Errorf("rundb: context error while retrieving last run: %w", err)
	}

	return run, nil
}

// NextRun allocates the identifier of the next run.
func (db *DB) NextRun(ctx context.Context) (int32, error) {
	run, err := db.LastRun(ctx)
	if err != nil {
		return 0, err
	}
	return run + 1, nil
}

// RecordStart registers the start of a run.
func (db *DB) RecordStart(ctx context.Context, run int32, fname string, rate float64) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := db.db.ExecContext(
		ctx,
		"INSERT INTO runs (id, start, file, rate) VALUES (?, NOW(), ?, ?)",
		run, fname, rate,
	)
	if err != nil {
		return fmt.Errorf("rundb: could not record start of run %d: %w", run, err)
	}

	return nil
}

// RecordStop registers the completion of a run and its final sample
// and stall counts.
func (db *DB) RecordStop(ctx context.Context, run int32, samples, stalls int64) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := db.db.ExecContext(
		ctx,
		"UPDATE runs SET stop=NOW(), samples=?, stalls=? WHERE id=?",
		samples, stalls, run,
	)
	if err != nil {
		return fmt.Errorf("rundb: could not record stop of run %d: %w", run, err)
	}

	return nil
}

// Runs returns the n most recent runs, newest first.
func (db *DB) Runs(ctx context.Context, n int) ([]Run, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var runs []Run
	rows, err := db.db.QueryContext(
		ctx,
		"SELECT id, start, stop, file, rate, samples, stalls FROM runs ORDER BY id DESC LIMIT ?",
		n,
	)
	if err != nil {
		return runs, fmt.Errorf("rundb: could not query runs: %w", err)
	}
	defer rows.Close()

	i := 0
	for rows.Next() {
		var run Run
		err = rows.Scan(
			&run.ID, &run.Start, &run.Stop,
			&run.File, &run.Rate, &run.Samples, &run.Stalls,
		)
		if err != nil {
			return runs, fmt.Errorf("rundb: could not scan row %d for runs: %w", i, err)
		}
		i++

		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return runs, fmt.Errorf("rundb: could not scan db for runs: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return runs, fmt.Errorf("rundb: context error while retrieving runs: %w", err)
	}

	return runs, nil
}
