// Copyright 2025 The DC2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tcouple

import (
	"fmt"
	"math"
	"testing"
)

type fakeConn struct {
	id   uint8
	cfg  uint8
	hot  uint16 // little-endian SMBus word, as read off the wire
	fail bool

	closed bool
}

func (c *fakeConn) ReadReg(addr, reg uint8) (uint8, error) {
	if c.fail {
		return 0, fmt.Errorf("bus fault")
	}
	switch reg {
	case regDeviceID:
		return c.id, nil
	case regSensorCfg:
		return c.cfg, nil
	}
	return 0, fmt.Errorf("invalid register 0x%x", reg)
}

func (c *fakeConn) ReadWord(addr, reg uint8) (uint16, error) {
	if c.fail {
		return 0, fmt.Errorf("bus fault")
	}
	if reg != regHotJunction {
		return 0, fmt.Errorf("invalid register 0x%x", reg)
	}
	return c.hot, nil
}

func (c *fakeConn) WriteReg(addr, reg uint8, v uint8) error {
	if c.fail {
		return fmt.Errorf("bus fault")
	}
	if reg != regSensorCfg {
		return fmt.Errorf("invalid register 0x%x", reg)
	}
	c.cfg = v
	return nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

// swap encodes a register value the way the sensor puts it on the
// SMBus wire.
func swap(v uint16) uint16 { return v<<8 | v>>8 }

func TestSensorID(t *testing.T) {
	c := &fakeConn{id: deviceID}
	s, err := newSensor(c, DefaultAddr)
	if err != nil {
		t.Fatalf("could not open sensor: %+v", err)
	}
	defer s.Close()

	bad := &fakeConn{id: 0x41}
	_, err = newSensor(bad, DefaultAddr)
	if err == nil {
		t.Fatalf("sensor opened with a bogus device id")
	}
	if !bad.closed {
		t.Fatalf("bus not released after a failed open")
	}
}

func TestSensorTemperature(t *testing.T) {
	for _, tc := range []struct {
		name string
		reg  uint16
		want float64
	}{
		{"zero", 0x0000, 0.0},
		{"room", 0x0190, 25.0},    // 400 * 0.0625
		{"hot", 0x0640, 100.0},    // 1600 * 0.0625
		{"freezing", 0xff60, -10}, // -160 * 0.0625
		{"fraction", 0x0001, 0.0625},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c := &fakeConn{id: deviceID, hot: swap(tc.reg)}
			s, err := newSensor(c, DefaultAddr)
			if err != nil {
				t.Fatalf("could not open sensor: %+v", err)
			}
			defer s.Close()

			got, err := s.Temperature()
			if err != nil {
				t.Fatalf("could not read temperature: %+v", err)
			}
			if math.Abs(got-tc.want) > 1e-12 {
				t.Fatalf("invalid temperature: got=%v, want=%v", got, tc.want)
			}
		})
	}
}

func TestSensorSetType(t *testing.T) {
	c := &fakeConn{id: deviceID, cfg: 0x03}
	s, err := newSensor(c, DefaultAddr)
	if err != nil {
		t.Fatalf("could not open sensor: %+v", err)
	}
	defer s.Close()

	if err := s.SetType(TypeT); err != nil {
		t.Fatalf("could not set thermocouple type: %+v", err)
	}
	// type bits programmed, filter bits preserved.
	if got, want := c.cfg, uint8(0x23); got != want {
		t.Fatalf("invalid sensor config: got=0x%02x, want=0x%02x", got, want)
	}

	if err := s.SetType(Type(12)); err == nil {
		t.Fatalf("set-type succeeded with an invalid type")
	}
}

func TestTypeString(t *testing.T) {
	for _, tc := range []struct {
		typ  Type
		want string
	}{
		{TypeK, "K"},
		{TypeJ, "J"},
		{TypeT, "T"},
		{TypeN, "N"},
		{TypeS, "S"},
		{TypeE, "E"},
		{TypeB, "B"},
		{TypeR, "R"},
		{Type(42), "invalid"},
	} {
		if got := tc.typ.String(); got != tc.want {
			t.Fatalf("invalid string for %d: got=%q, want=%q", tc.typ, got, tc.want)
		}
	}
}
