// Copyright 2025 The DC2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tcouple reads the MCP9600 thermocouple amplifier that
// monitors the temperature of the LEM transducer head, over I2C/SMBus.
package tcouple // import "github.com/swill187/DC2/tcouple"

import (
	"fmt"

	"github.com/go-daq/smbus"
)

// Default location of the sensor on the acquisition host.
const (
	DefaultBus  = 1
	DefaultAddr = 0x67
)

// MCP9600 register map.
const (
	regHotJunction = 0x00 // hot junction temperature, 0.0625 C/LSB
	regStatus      = 0x04
	regSensorCfg   = 0x05 // thermocouple type in bits 6:4
	regDeviceID    = 0x20 // device id in the high byte

	deviceID = 0x40 // MCP9600
)

// Type selects the thermocouple wire type.
type Type uint8

const (
	TypeK Type = iota
	TypeJ
	TypeT
	TypeN
	TypeS
	TypeE
	TypeB
	TypeR
)

func (typ Type) String() string {
	switch typ {
	case TypeK:
		return "K"
	case TypeJ:
		return "J"
	case TypeT:
		return "T"
	case TypeN:
		return "N"
	case TypeS:
		return "S"
	case TypeE:
		return "E"
	case TypeB:
		return "B"
	case TypeR:
		return "R"
	}
	return "invalid"
}

type conn interface {
	ReadReg(addr, reg uint8) (uint8, error)
	ReadWord(addr, reg uint8) (uint16, error)
	WriteReg(addr, reg uint8, v uint8) error
	Close() error
}

// Sensor reads one MCP9600 thermocouple amplifier.
type Sensor struct {
	c    conn
	addr uint8
}

// Open connects to the sensor at the given bus and address and
// verifies its identification register.
func Open(bus int, addr uint8) (*Sensor, error) {
	c, err := smbus.Open(bus, addr)
	if err != nil {
		return nil, fmt.Errorf("tcouple: could not open i2c bus %d: %w", bus, err)
	}
	return newSensor(c, addr)
}

func newSensor(c conn, addr uint8) (*Sensor, error) {
	id, err := c.ReadReg(addr, regDeviceID)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("tcouple: could not read device id: %w", err)
	}
	if id != deviceID {
		c.Close()
		return nil, fmt.Errorf("tcouple: invalid device id: got=0x%x, want=0x%x", id, deviceID)
	}
	return &Sensor{c: c, addr: addr}, nil
}

// SetType programs the thermocouple wire type.
func (s *Sensor) SetType(typ Type) error {
	if typ > TypeR {
		return fmt.Errorf("tcouple: invalid thermocouple type %d", typ)
	}
	cfg, err := s.c.ReadReg(s.addr, regSensorCfg)
	if err != nil {
		return fmt.Errorf("tcouple: could not read sensor config: %w", err)
	}
	cfg &= ^uint8(0x7 << 4)
	cfg |= uint8(typ) << 4
	err = s.c.WriteReg(s.addr, regSensorCfg, cfg)
	if err != nil {
		return fmt.Errorf("tcouple: could not write sensor config: %w", err)
	}
	return nil
}

// Temperature reads the hot junction temperature in Celsius.
//
// The sensor transmits the register big-endian while SMBus words are
// little-endian, hence the byte swap.
func (s *Sensor) Temperature() (float64, error) {
	w, err := s.c.ReadWord(s.addr, regHotJunction)
	if err != nil {
		return 0, fmt.Errorf("tcouple: could not read hot junction: %w", err)
	}
	raw := int16(w<<8 | w>>8)
	return float64(raw) * 0.0625, nil
}

// Close releases the bus connection.
func (s *Sensor) Close() error {
	return s.c.Close()
}
