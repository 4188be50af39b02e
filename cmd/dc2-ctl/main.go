// Copyright 2025 The DC2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command dc2-ctl supervises a dc2-daq acquisition process.
//
// It listens for JSON start/stop requests, tracks the status lines of
// the child to assess readiness, watches the output file for growth
// and raises mail alerts when the acquisition stops making progress.
package main // import "github.com/swill187/DC2/cmd/dc2-ctl"

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sbinet/pmon"
	mail "gopkg.in/gomail.v2"
)

func main() {
	var (
		name    = flag.String("cmd", "dc2-daq", "command to run")
		addr    = flag.String("addr", ":8866", "[ip]:port to listen on")
		dir     = flag.String("dir", "", "directory for monitoring logs")
		freq    = flag.Duration("freq", 30*time.Second, "probing interval")
		doMon   = flag.Bool("pmon", false, "enable pmon monitoring of the child")
		monFreq = flag.Duration("pmon-freq", 1*time.Second, "pmon sampling frequency")
	)

	flag.Parse()

	log.SetPrefix("dc2-ctl: ")
	log.SetFlags(0)

	run(*name, *addr, *dir, *freq, *doMon, *monFreq)
}

func run(name, addr, dir string, freq time.Duration, doMon bool, monFreq time.Duration) {
	srv, err := newServer(addr, dir, freq, doMon, monFreq)
	if err != nil {
		log.Fatalf("could not create server: %+v", err)
	}
	log.Printf("running dc2-ctl server on %q...", addr)
	srv.run(name)
}

type server struct {
	conn net.Listener
	cmd  *exec.Cmd
	buf  *bytes.Buffer

	dir     string
	freq    time.Duration
	doMon   bool
	monFreq time.Duration
	alerts  map[string]int // number of alerts raised per file
}

func newServer(addr, dir string, freq time.Duration, doMon bool, monFreq time.Duration) (*server, error) {
	srv, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("could not listen on %q: %w", addr, err)
	}
	return &server{
		conn:    srv,
		buf:     new(bytes.Buffer),
		dir:     dir,
		freq:    freq,
		doMon:   doMon,
		monFreq: monFreq,
		alerts:  make(map[string]int),
	}, nil
}

func (srv *server) run(name string) {
	defer srv.conn.Close()

	for {
		conn, err := srv.conn.Accept()
		if err != nil {
			log.Printf("could not accept connection: %+v", err)
		}
		go srv.handle(conn, name)
	}
}

func (srv *server) handle(conn net.Conn, name string) {
	defer conn.Close()
	done := make(chan int)
	defer close(done)

	for {
		var (
			req Request
			err = json.NewDecoder(conn).Decode(&req)
		)
		if err != nil {
			log.Printf("could not decode command: %+v", err)
			return
		}
		switch req.Name {
		case "start":
			log.Printf("starting command... %s %v", name, req.Args)
			srv.buf.Reset()
			srv.cmd = exec.Command(name, req.Args...)
			srv.cmd.Stdout = io.MultiWriter(os.Stdout, srv.buf)
			srv.cmd.Stderr = os.Stderr
			err = srv.cmd.Start()
			if err != nil {
				log.Printf("could not start %s %s: %+v",
					srv.cmd.Path,
					strings.Join(srv.cmd.Args, " "),
					err,
				)
				_ = json.NewEncoder(conn).Encode(Reply{Err: err.Error()})
				return
			}
			err = srv.checkCmdStatus()
			if err != nil {
				_ = srv.cmd.Process.Kill()
				log.Printf("command not in proper state: %+v", err)
				_ = json.NewEncoder(conn).Encode(Reply{Err: err.Error()})
				return
			}
			if srv.doMon {
				go srv.pmon(srv.cmd.Process.Pid, done)
			}
			_ = json.NewEncoder(conn).Encode(Reply{Msg: "ok"})
			log.Printf("starting command... [done]")

			fname := outputOf(req.Args)
			if fname != "" {
				go srv.monitor(fname, done)
			}

		case "stop":
			log.Printf("stopping command...")
			// make sure the process is eventually reaped by PID-1
			go func() { _ = srv.cmd.Wait() }()
			err = srv.cmd.Process.Signal(os.Interrupt)
			if err != nil {
				log.Printf("could not stop %s %s: %+v",
					srv.cmd.Path,
					strings.Join(srv.cmd.Args, " "),
					err,
				)
				_ = json.NewEncoder(conn).Encode(Reply{Err: err.Error()})
				return
			}
			_ = json.NewEncoder(conn).Encode(Reply{Msg: "ok"})
			log.Printf("stopping command... [done]")
			return

		default:
			log.Printf("unknown command %q", req.Name)
			_ = json.NewEncoder(conn).Encode(Reply{Err: "unknown command"})
		}
	}
}

type Request struct {
	Name string   `json:"cmd"`
	Args []string `json:"args"`
}

type Reply struct {
	Msg string `json:"msg"`
	Err string `json:"err,omitempty"`
}

// outputOf extracts the output file of the acquisition from the child
// command line.
func outputOf(args []string) string {
	for i, arg := range args {
		switch {
		case arg == "-o" && i+1 < len(args):
			return args[i+1]
		case strings.HasPrefix(arg, "-o="):
			return strings.TrimPrefix(arg, "-o=")
		}
	}
	return ""
}

func (srv *server) checkCmdStatus() error {
	var (
		timeout = 10 * time.Second
		timer   = time.NewTimer(timeout)
	)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			return fmt.Errorf(
				"could not assess command status before timeout (%v)",
				timeout,
			)
		default:
			buf := srv.buf.Bytes()
			if i := bytes.Index(buf, []byte("ERROR:")); i >= 0 {
				line := buf[i:]
				if j := bytes.IndexByte(line, '\n'); j >= 0 {
					line = line[:j]
				}
				return fmt.Errorf("acquisition failed: %s", line)
			}
			if bytes.Contains(buf, []byte("OK:ACQUISITION_STARTED")) {
				return nil
			}
			time.Sleep(1 * time.Second)
		}
	}
}

func (srv *server) pmon(pid int, quit chan int) {
	p, err := pmon.Monitor(pid)
	if err != nil {
		log.Printf("could not monitor pid=%d: %+v", pid, err)
		return
	}
	f, err := os.Create(filepath.Join(srv.dir, "dc2-daq-pmon.log"))
	if err != nil {
		log.Printf("could not create pmon log file: %+v", err)
		return
	}
	defer f.Close()
	p.W = f
	p.Freq = srv.monFreq

	go func() {
		<-quit
		err := p.Kill()
		if err != nil {
			log.Printf("could not stop monitoring pid=%d: %+v", pid, err)
		}
	}()

	log.Printf("run pmon pid=%d...", pid)
	err = p.Run()
	if err != nil {
		log.Printf("could not run pmon pid=%d: %+v", pid, err)
	}
}

func (srv *server) monitor(fname string, quit chan int) {
	var (
		tick = time.NewTicker(srv.freq)
		last int64 = -1
	)

	defer tick.Stop()

	for {
		select {
		case <-quit:
			return
		case <-tick.C:
			fi, err := os.Stat(fname)
			if err != nil {
				log.Printf("could not stat %q: %+v", fname, err)
				continue
			}
			if fi.Size() == last {
				// file didn't grow!
				srv.alert(fname, last)
			}
			last = fi.Size()
		}
	}
}

func (srv *server) alert(fname string, size int64) {
	log.Printf("file %q didn't change in the last %v (size=%d bytes)",
		fname, srv.freq, size,
	)
	srv.alerts[fname]++

	const maxAlerts = 5
	if srv.alerts[fname] < maxAlerts {
		srv.alertMail(fname, size)
		//srv.alertSMS(fname, size)
	}
}

var (
	alertMailUsr  = os.Getenv("MAIL_USERNAME")
	alertMailPwd  = os.Getenv("MAIL_PASSWORD")
	alertMailSrv  = os.Getenv("MAIL_SERVER")
	alertMailPort = atoi(os.Getenv("MAIL_PORT"))
	alertMailTgts = strings.Split(os.Getenv("MAIL_TGTS"), ",")
)

func (srv *server) alertMail(fname string, size int64) {
	if alertMailUsr == "" || alertMailPwd == "" ||
		alertMailSrv == "" || alertMailPort == 0 ||
		alertMailTgts == nil || len(alertMailTgts) == 0 {
		log.Printf("could not send mail alert: missing credentials")
		return
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", alertMailUsr)
	msg.SetHeader("Bcc", alertMailTgts...)
	msg.SetHeader("Subject", fmt.Sprintf("[dc2-ctl] file alert: %q", fname))
	msg.SetBody("text/plain", fmt.Sprintf("file: %q\nsize: %d bytes\nfreq: %v",
		fname, size, srv.freq,
	))

	dial := mail.NewDialer(alertMailSrv, alertMailPort, alertMailUsr, alertMailPwd)
	dial.TLSConfig = &tls.Config{
		InsecureSkipVerify: true,
	}
	err := dial.DialAndSend(msg)
	if err != nil {
		log.Printf("could not send mail alert: %+v", err)
	}
}

var (
	alertSMSEndPoint = os.Getenv("SMS_ENDPOINT")
)

func (srv *server) alertSMS(fname string, size int64) {
	if alertSMSEndPoint == "" {
		log.Printf("could not send sms alert: no end-point")
		return
	}

	var msg struct {
		Action string `json:"action"`
		Data   struct {
			All bool   `json:"all"`
			Msg string `json:"message"`
		}
	}
	msg.Action = "send"
	msg.Data.All = true
	msg.Data.Msg = fmt.Sprintf("[dc2-ctl]: alert file=%q size=%d freq=%v",
		fname, size, srv.freq,
	)

	data := new(bytes.Buffer)
	err := json.NewEncoder(data).Encode(msg)
	if err != nil {
		log.Printf("could not encode sms to json: %+v", err)
		return
	}
	resp, err := http.Post(alertSMSEndPoint, "application/json", data)
	if err != nil {
		log.Printf("could not POST sms alert: %+v", err)
		return
	}
	defer resp.Body.Close()

	var status struct {
		Msg string `json:"status"`
	}
	err = json.NewDecoder(resp.Body).Decode(&status)
	if err != nil {
		log.Printf("could not decode sms reply: %+v", err)
		return
	}
	if status.Msg != "success" {
		log.Printf("could not send sms: status=%q", status.Msg)
		return
	}
}

func atoi(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}
