// Copyright 2025 The DC2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lembox

import "time"

// timeLayout is the absolute timestamp format of the CSV log,
// microsecond resolution.
const timeLayout = "2006-01-02 15:04:05.000000"

// timebase fuses the two clocks of a run: a wall-clock instant
// captured once at acquisition start (for display) and a monotonic
// anchor captured at the same instant (for ordering and elapsed time).
type timebase struct {
	wall  time.Time // wall-clock base, monotonic reading stripped
	start time.Time // same instant, monotonic reading kept
}

func newTimebase() timebase {
	now := time.Now()
	return timebase{
		// Round(0) strips the monotonic reading, so wall arithmetic
		// below is pure wall-clock.
		wall:  now.Round(0),
		start: now,
	}
}

// since returns the elapsed seconds since acquisition start, from the
// monotonic clock.
func (tb timebase) since() float64 {
	return time.Since(tb.start).Seconds()
}

// stamp returns the absolute timestamp of a sample taken rel seconds
// after acquisition start. It is a pure function of the base and rel:
// the wall clock is never re-queried.
func (tb timebase) stamp(rel float64) string {
	return tb.wall.Add(time.Duration(rel * float64(time.Second))).Format(timeLayout)
}
