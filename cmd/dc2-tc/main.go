// Copyright 2025 The DC2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command dc2-tc logs the LEM box ambient temperature from the MCP9600
// thermocouple amplifier on the I2C bus.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/swill187/DC2/tcouple"
)

func main() {
	log.SetPrefix("dc2-tc: ")
	log.SetFlags(0)

	var (
		bus   = flag.Int("bus", tcouple.DefaultBus, "I2C bus id")
		addr  = flag.Int("addr", tcouple.DefaultAddr, "I2C address of the sensor")
		tctyp = flag.Int("type", int(tcouple.TypeK), "thermocouple type (0=K 1=J 2=T 3=N 4=S 5=E 6=B 7=R)")
		freq  = flag.Duration("freq", 10*time.Second, "sampling period")
		oname = flag.String("o", "", "output CSV file (empty: stdout)")
		n     = flag.Int("n", 0, "number of samples to log (0: until interrupted)")
	)

	flag.Parse()

	err := run(*bus, uint8(*addr), tcouple.Type(*tctyp), *freq, *oname, *n)
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

func run(bus int, addr uint8, typ tcouple.Type, freq time.Duration, oname string, n int) error {
	sensor, err := tcouple.Open(bus, addr)
	if err != nil {
		return fmt.Errorf("could not open sensor (bus=%d, addr=0x%x): %w", bus, addr, err)
	}
	defer sensor.Close()

	err = sensor.SetType(typ)
	if err != nil {
		return fmt.Errorf("could not set thermocouple type %v: %w", typ, err)
	}
	log.Printf("sensor: bus=%d addr=0x%x type=%v freq=%v", bus, addr, typ, freq)

	var w io.Writer = os.Stdout
	if oname != "" {
		f, err := os.Create(oname)
		if err != nil {
			return fmt.Errorf("could not create output file %q: %w", oname, err)
		}
		defer f.Close()
		w = f
	}

	fmt.Fprintf(w, "Timestamp,Temperature(C)\n")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	defer signal.Stop(stop)

	tick := time.NewTicker(freq)
	defer tick.Stop()

	for i := 0; n == 0 || i < n; i++ {
		temp, err := sensor.Temperature()
		if err != nil {
			return fmt.Errorf("could not read temperature: %w", err)
		}
		fmt.Fprintf(w, "%s,%.4f\n",
			time.Now().UTC().Format("2006-01-02 15:04:05.000000"), temp,
		)

		select {
		case <-stop:
			return nil
		case <-tick.C:
		}
	}
	return nil
}
