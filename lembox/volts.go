// Copyright 2025 The DC2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lembox

// Encoding describes how the ADC encodes raw codes.
type Encoding uint8

const (
	// EncBinary is straight (offset) binary: 0x0000 maps to the bottom
	// of the input range, the full-scale code to (almost) the top.
	EncBinary Encoding = iota
	// EncTwosComplement is two's complement; codes are converted to
	// straight binary before scaling.
	EncTwosComplement
)

func (enc Encoding) String() string {
	switch enc {
	case EncBinary:
		return "binary"
	case EncTwosComplement:
		return "2complement"
	}
	return "invalid"
}

// ConvertToVolts maps a raw ADC code of the given bit resolution to an
// engineering-unit value in the full-scale interval [min, max].
func ConvertToVolts(raw uint16, resolution uint, enc Encoding, max, min float64) float64 {
	v := uint32(raw)
	if enc != EncBinary {
		// convert from two's complement to straight binary.
		v ^= 1 << (resolution - 1)
	}
	return float64(v)*(max-min)/float64(uint64(1)<<resolution) + min
}
