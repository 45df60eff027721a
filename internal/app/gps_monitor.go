// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"time"

	serial "github.com/jacobsa/go-serial/serial"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/field_logger/internal/config"
	"github.com/relabs-tech/field_logger/internal/gps"
)

// openReceiver opens the GPS serial port and sends the startup commands.
// The caller closes the returned port.
func openReceiver(cfg *config.Config) (*gps.Receiver, io.Closer, error) {
	// InterCharacterTimeout with MinimumReadSize 0 makes every read return
	// after GPS_READ_TIMEOUT at the latest.
	serialOpts := serial.OpenOptions{
		PortName:              cfg.GPSSerialPort,
		BaudRate:              uint(cfg.GPSBaudRate),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       0,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: uint(cfg.GPSReadTimeout.Milliseconds()),
	}

	port, err := serial.Open(serialOpts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open GPS serial port %s: %w", cfg.GPSSerialPort, err)
	}
	log.Printf("GPS serial port opened on %s at %d baud", serialOpts.PortName, serialOpts.BaudRate)

	receiver := gps.NewReceiver(port)
	for _, cmd := range cfg.GPSInitCommands {
		if err := receiver.SendCommand(cmd); err != nil {
			port.Close()
			return nil, nil, err
		}
	}
	return receiver, port, nil
}

// RunGPSMonitor prints the receiver state once per second without touching
// the SD card or display. It is meant for checking antenna placement.
func RunGPSMonitor(ctx context.Context) error {
	receiver, port, err := openReceiver(config.Get())
	if err != nil {
		return err
	}
	defer port.Close()

	return monitor(ctx, receiver, time.Second, func(line string) { fmt.Println(line) })
}

func monitor(ctx context.Context, src gps.FixSource, every time.Duration, emit func(string)) error {
	var last time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		src.Drain()
		if time.Since(last) < every {
			continue
		}
		last = time.Now()

		if !src.HasFix() {
			emit("[WAIT] Waiting for fix...")
			continue
		}
		emit(FormatFixLine(src.Latest()))
	}
}
