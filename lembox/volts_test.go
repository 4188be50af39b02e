// Copyright 2025 The DC2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lembox

import (
	"math"
	"testing"
)

func TestConvertToVolts(t *testing.T) {
	const lsb = 20.0 / 65536
	for _, tc := range []struct {
		name string
		raw  uint16
		res  uint
		enc  Encoding
		max  float64
		min  float64
		want float64
	}{
		{
			name: "binary-zero",
			raw:  0x0000,
			res:  16, enc: EncBinary,
			max: +10.0, min: -10.0,
			want: -10.0,
		},
		{
			name: "binary-full-scale",
			raw:  0xffff,
			res:  16, enc: EncBinary,
			max: +10.0, min: -10.0,
			want: 10.0 - lsb,
		},
		{
			name: "binary-mid-scale",
			raw:  0x8000,
			res:  16, enc: EncBinary,
			max: +10.0, min: -10.0,
			want: 0.0,
		},
		{
			name: "2complement-zero",
			raw:  0x0000,
			res:  16, enc: EncTwosComplement,
			max: +10.0, min: -10.0,
			want: 0.0,
		},
		{
			name: "2complement-most-negative",
			raw:  0x8000,
			res:  16, enc: EncTwosComplement,
			max: +10.0, min: -10.0,
			want: -10.0,
		},
		{
			name: "binary-12bit",
			raw:  0x0800,
			res:  12, enc: EncBinary,
			max: +5.0, min: -5.0,
			want: 0.0,
		},
		{
			name: "unipolar",
			raw:  0x4000,
			res:  16, enc: EncBinary,
			max: 10.0, min: 0.0,
			want: 2.5,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got := ConvertToVolts(tc.raw, tc.res, tc.enc, tc.max, tc.min)
			if math.Abs(got-tc.want) > 1e-12 {
				t.Fatalf("invalid conversion: got=%v, want=%v", got, tc.want)
			}
		})
	}
}

func TestEncodingString(t *testing.T) {
	for _, tc := range []struct {
		enc  Encoding
		want string
	}{
		{EncBinary, "binary"},
		{EncTwosComplement, "2complement"},
		{Encoding(42), "invalid"},
	} {
		if got := tc.enc.String(); got != tc.want {
			t.Fatalf("invalid string for %d: got=%q, want=%q", tc.enc, got, tc.want)
		}
	}
}
