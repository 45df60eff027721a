// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	nmea "github.com/adrianmo/go-nmea"
	log "github.com/sirupsen/logrus"
)

// DefaultInitCommands turns on RMC+GGA output at 1 Hz (PMTK_314 / PMTK_220).
var DefaultInitCommands = []string{
	"PMTK314,0,1,0,1,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0",
	"PMTK220,1000",
}

const (
	readChunk  = 256
	maxPending = 4096
)

// Receiver is a FixSource that decodes NMEA RMC and GGA sentences from a
// serial port. It is not safe for concurrent use; the control loop owns it.
type Receiver struct {
	port    io.ReadWriter
	buf     []byte
	pending []byte

	fix FixSample
}

// NewReceiver wraps an already opened port.
func NewReceiver(port io.ReadWriter) *Receiver {
	return &Receiver{
		port: port,
		buf:  make([]byte, readChunk),
	}
}

// SendCommand frames cmd as "$cmd*CS\r\n" and writes it to the receiver.
func (r *Receiver) SendCommand(cmd string) error {
	cmd = strings.TrimPrefix(strings.TrimSpace(cmd), "$")
	frame := fmt.Sprintf("$%s*%s\r\n", cmd, nmea.Checksum(cmd))
	if _, err := io.WriteString(r.port, frame); err != nil {
		return fmt.Errorf("gps: send %q: %w", cmd, err)
	}
	return nil
}

// Drain performs one read from the port (blocking up to the port's read
// timeout) and applies every complete sentence received so far.
func (r *Receiver) Drain() bool {
	n, err := r.port.Read(r.buf)
	if n > 0 {
		r.pending = append(r.pending, r.buf[:n]...)
	}
	if err != nil && !errors.Is(err, io.EOF) {
		log.Warnf("gps: read error: %v", err)
	}

	updated := false
	for {
		i := bytes.IndexByte(r.pending, '\n')
		if i < 0 {
			break
		}
		line := string(r.pending[:i])
		r.pending = r.pending[i+1:]
		if r.applyLine(line) {
			updated = true
		}
	}

	// A receiver spewing garbage without newlines must not grow us forever.
	if len(r.pending) > maxPending {
		log.Warnf("gps: dropping %d bytes without line terminator", len(r.pending))
		r.pending = r.pending[:0]
	}
	return updated
}

// HasFix reports whether the last decoded position is usable.
func (r *Receiver) HasFix() bool {
	return r.fix.HasFix
}

// Latest returns a copy of the current fix.
func (r *Receiver) Latest() FixSample {
	return r.fix
}

func (r *Receiver) applyLine(line string) bool {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") {
		return false
	}

	sentence, err := nmea.Parse(line)
	if err != nil {
		// partial sentences are normal right after the port opens
		log.Debugf("gps: NMEA parse error: %v (line: %q)", err, line)
		return false
	}

	switch sentence.DataType() {
	case nmea.TypeRMC:
		r.applyRMC(sentence.(nmea.RMC))
	case nmea.TypeGGA:
		r.applyGGA(sentence.(nmea.GGA))
	default:
		return false
	}
	r.fix.HasFix = r.fix.FixQuality >= 1
	return true
}

// RMC field indexes (after the sentence type).
const (
	rmcTime = iota
	rmcValidity
	rmcLat
	rmcLatDir
	rmcLon
	rmcLonDir
	rmcSpeed
	rmcCourse
	rmcDate
)

func (r *Receiver) applyRMC(m nmea.RMC) {
	f := m.Fields
	if m.Time.Valid && present(f, rmcTime) {
		r.setTime(m.Time)
	}
	if m.Date.Valid && present(f, rmcDate) {
		r.fix.Timestamp.Year = 2000 + m.Date.YY
		r.fix.Timestamp.Month = m.Date.MM
		r.fix.Timestamp.Day = m.Date.DD
		r.fix.Timestamp.DateValid = true
	}

	if m.Validity == nmea.ValidRMC {
		if r.fix.FixQuality == 0 {
			r.fix.FixQuality = 1
		}
	} else {
		r.fix.FixQuality = 0
	}

	if present(f, rmcLat) && present(f, rmcLon) {
		r.fix.Latitude = m.Latitude
		r.fix.Longitude = m.Longitude
	}
	r.fix.SpeedKnots = optFloat(f, rmcSpeed, m.Speed)
	r.fix.TrackAngleDeg = optFloat(f, rmcCourse, m.Course)
}

// GGA field indexes (after the sentence type).
const (
	ggaTime = iota
	ggaLat
	ggaLatDir
	ggaLon
	ggaLonDir
	ggaQuality
	ggaSatellites
	ggaHDOP
	ggaAltitude
	ggaAltUnit
	ggaSeparation
)

func (r *Receiver) applyGGA(m nmea.GGA) {
	f := m.Fields
	if m.Time.Valid && present(f, ggaTime) {
		r.setTime(m.Time)
	}

	q, err := strconv.Atoi(m.FixQuality)
	if err != nil {
		q = 0
	}
	r.fix.FixQuality = q

	if present(f, ggaLat) && present(f, ggaLon) {
		r.fix.Latitude = m.Latitude
		r.fix.Longitude = m.Longitude
	}
	if present(f, ggaSatellites) {
		v := int(m.NumSatellites)
		r.fix.Satellites = &v
	} else {
		r.fix.Satellites = nil
	}
	r.fix.HorizontalDilution = optFloat(f, ggaHDOP, m.HDOP)
	r.fix.AltitudeM = optFloat(f, ggaAltitude, m.Altitude)
	r.fix.HeightGeoid = optFloat(f, ggaSeparation, m.Separation)
}

func (r *Receiver) setTime(t nmea.Time) {
	r.fix.Timestamp.Hour = t.Hour
	r.fix.Timestamp.Minute = t.Minute
	r.fix.Timestamp.Second = t.Second
	r.fix.Timestamp.TimeValid = true
}

func present(fields []string, i int) bool {
	return i < len(fields) && strings.TrimSpace(fields[i]) != ""
}

func optFloat(fields []string, i int, v float64) *float64 {
	if !present(fields, i) {
		return nil
	}
	return &v
}
