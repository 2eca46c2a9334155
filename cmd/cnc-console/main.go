// cnc-console is an interactive host-side console for the cnc-go
// controller's serial front end. Lines typed on stdin are sent to the
// controller; a few slash commands map to the single-byte control
// characters that act immediately on the controller.
//
// Usage:
//
//	cnc-console -device /dev/ttyUSB0 [-baud 115200]
//
// Console commands:
//
//	/hold    send feedhold        (!)
//	/resume  send cycle start     (~)
//	/flush   send queue flush     (%)
//	/abort   send feedhold abort  (^D)
//	/quit    exit the console
//
// Any other line is sent verbatim with a trailing newline.
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	tarm "github.com/tarm/serial"
)

func main() {
	device := flag.String("device", "", "Serial device path (required)")
	baud := flag.Int("baud", 115200, "Baud rate")
	flag.Parse()

	if *device == "" {
		fmt.Fprintln(os.Stderr, "Error: -device is required")
		flag.Usage()
		os.Exit(1)
	}

	port, err := tarm.OpenPort(&tarm.Config{
		Name:        *device,
		Baud:        *baud,
		ReadTimeout: 500 * time.Millisecond,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening %s: %v\n", *device, err)
		os.Exit(1)
	}
	defer port.Close()

	fmt.Printf("Connected to %s at %d baud. /hold /resume /flush /abort /quit\n", *device, *baud)

	// Echo controller output.
	go func() {
		buf := make([]byte, 256)
		for {
			n, err := port.Read(buf)
			if n > 0 {
				os.Stdout.Write(buf[:n])
			}
			if err != nil && err != io.EOF {
				return
			}
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())

		var out []byte
		switch line {
		case "":
			continue
		case "/hold":
			out = []byte{'!'}
		case "/resume":
			out = []byte{'~'}
		case "/flush":
			out = []byte{'%'}
		case "/abort":
			out = []byte{0x04}
		case "/quit", "/exit":
			return
		default:
			out = []byte(line + "\n")
		}

		if _, err := port.Write(out); err != nil {
			fmt.Fprintf(os.Stderr, "Write error: %v\n", err)
			return
		}
	}
}
