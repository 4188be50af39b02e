// Copyright 2025 The DC2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rundb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"reflect"
	"testing"

	"github.com/swill187/DC2/internal/fakedb"
)

func init() {
	drvName = "fakedb"
}

func TestOpen(t *testing.T) {
	db, err := Open("fakedb")
	if err != nil {
		t.Fatalf("could not open rundb: %+v", err)
	}
	defer db.Close()
}

func TestLastRun(t *testing.T) {
	db, err := Open("fakedb")
	if err != nil {
		t.Fatalf("could not open rundb: %+v", err)
	}
	defer db.Close()

	_ = fakedb.Run(context.Background(), fakedb.Rows{
		Names: []string{"id"},
		Values: [][]driver.Value{
			{int32(41)},
		},
	}, func(ctx context.Context) error {
		run, err := db.LastRun(ctx)
		if err != nil {
			t.Fatalf("could not retrieve last run: %+v", err)
		}

		if got, want := run, int32(41); got != want {
			t.Fatalf("invalid last run: got=%d, want=%d", got, want)
		}
		return nil
	})
}

func TestNextRun(t *testing.T) {
	db, err := Open("fakedb")
	if err != nil {
		t.Fatalf("could not open rundb: %+v", err)
	}
	defer db.Close()

	_ = fakedb.Run(context.Background(), fakedb.Rows{
		Names: []string{"id"},
		Values: [][]driver.Value{
			{int32(41)},
		},
	}, func(ctx context.Context) error {
		run, err := db.NextRun(ctx)
		if err != nil {
			t.Fatalf("could not allocate next run: %+v", err)
		}

		if got, want := run, int32(42); got != want {
			t.Fatalf("invalid next run: got=%d, want=%d", got, want)
		}
		return nil
	})
}

func TestNextRunEmptyDB(t *testing.T) {
	db, err := Open("fakedb")
	if err != nil {
		t.Fatalf("could not open rundb: %+v", err)
	}
	defer db.Close()

	_ = fakedb.Run(context.Background(), fakedb.Rows{
		Names: []string{"id"},
	}, func(ctx context.Context) error {
		run, err := db.NextRun(ctx)
		if err != nil {
			t.Fatalf("could not allocate next run: %+v", err)
		}

		if got, want := run, int32(1); got != want {
			t.Fatalf("invalid first run: got=%d, want=%d", got, want)
		}
		return nil
	})
}

func TestRecordStart(t *testing.T) {
	db, err := Open("fakedb")
	if err != nil {
		t.Fatalf("could not open rundb: %+v", err)
	}
	defer db.Close()

	_ = fakedb.Run(context.Background(), fakedb.Rows{}, func(ctx context.Context) error {
		err := db.RecordStart(ctx, 42, "run42.csv", 20000)
		if err != nil {
			t.Fatalf("could not record run start: %+v", err)
		}

		calls := fakedb.Calls()
		if len(calls) != 1 {
			t.Fatalf("invalid statement count: got=%d, want=%d", len(calls), 1)
		}
		if got, want := calls[0].Query, "INSERT INTO runs (id, start, file, rate) VALUES (?, NOW(), ?, ?)"; got != want {
			t.Fatalf("invalid statement: got=%q, want=%q", got, want)
		}
		want := []driver.Value{int64(42), "run42.csv", float64(20000)}
		if got := calls[0].Args; !reflect.DeepEqual(got, want) {
			t.Fatalf("invalid statement args:\ngot = %v\nwant= %v", got, want)
		}
		return nil
	})
}

func TestRecordStop(t *testing.T) {
	db, err := Open("fakedb")
	if err != nil {
		t.Fatalf("could not open rundb: %+v", err)
	}
	defer db.Close()

	_ = fakedb.Run(context.Background(), fakedb.Rows{}, func(ctx context.Context) error {
		err := db.RecordStop(ctx, 42, 40000, 3)
		if err != nil {
			t.Fatalf("could not record run stop: %+v", err)
		}

		calls := fakedb.Calls()
		if len(calls) != 1 {
			t.Fatalf("invalid statement count: got=%d, want=%d", len(calls), 1)
		}
		if got, want := calls[0].Query, "UPDATE runs SET stop=NOW(), samples=?, stalls=? WHERE id=?"; got != want {
			t.Fatalf("invalid statement: got=%q, want=%q", got, want)
		}
		want := []driver.Value{int64(40000), int64(3), int64(42)}
		if got := calls[0].Args; !reflect.DeepEqual(got, want) {
			t.Fatalf("invalid statement args:\ngot = %v\nwant= %v", got, want)
		}
		return nil
	})
}

func TestRuns(t *testing.T) {
	db, err := Open("fakedb")
	if err != nil {
		t.Fatalf("could not open rundb: %+v", err)
	}
	defer db.Close()

	_ = fakedb.Run(context.Background(), fakedb.Rows{
		Names: []string{"id", "start", "stop", "file", "rate", "samples", "stalls"},
		Values: [][]driver.Value{
			{int32(42), "2025-03-14 15:09:26", "2025-03-14 15:10:26", "run42.csv", float64(20000), int64(40000), int64(3)},
			{int32(41), "2025-03-14 14:00:00", nil, "run41.csv", float64(20000), int64(0), int64(0)},
		},
	}, func(ctx context.Context) error {
		runs, err := db.Runs(ctx, 2)
		if err != nil {
			t.Fatalf("could not retrieve runs: %+v", err)
		}

		want := []Run{
			{
				ID:      42,
				Start:   "2025-03-14 15:09:26",
				Stop:    sql.NullString{String: "2025-03-14 15:10:26", Valid: true},
				File:    "run42.csv",
				Rate:    20000,
				Samples: 40000,
				Stalls:  3,
			},
			{
				ID:    41,
				Start: "2025-03-14 14:00:00",
				File:  "run41.csv",
				Rate:  20000,
			},
		}
		if !reflect.DeepEqual(runs, want) {
			t.Fatalf("invalid runs:\ngot = %#v\nwant= %#v", runs, want)
		}
		return nil
	})
}

func TestQueryContext(t *testing.T) {
	db, err := Open("fakedb")
	if err != nil {
		t.Fatalf("could not open rundb: %+v", err)
	}
	defer db.Close()

	const queryLastRun = "SELECT id FROM runs ORDER BY id DESC LIMIT 1"

	_ = fakedb.Run(context.Background(), fakedb.Rows{
		Names: []string{"id"},
		Values: [][]driver.Value{
			{int32(42)},
		},
	}, func(ctx context.Context) error {
		rows, err := db.QueryContext(context.Background(), queryLastRun)
		if err != nil {
			t.Fatalf("could not execute query %q: %+v", queryLastRun, err)
		}
		defer rows.Close()

		var run int32
		for rows.Next() {
			err = rows.Scan(&run)
			if err != nil {
				t.Fatalf("could not scan run id: %+v", err)
			}
		}

		if err := rows.Err(); err != nil {
			t.Fatalf("could not scan run id: %+v", err)
		}

		if got, want := run, int32(42); got != want {
			t.Fatalf("invalid last run: got=%d, want=%d", got, want)
		}
		return nil
	})
}
