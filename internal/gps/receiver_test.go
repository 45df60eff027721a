// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"testing"
)

func nmeaLine(payload string) string {
	ck := byte(0)
	for i := 0; i < len(payload); i++ {
		ck ^= payload[i]
	}
	return fmt.Sprintf("$%s*%02X\r\n", payload, ck)
}

// fakePort returns one queued chunk per Read, then io.EOF (a read timeout).
type fakePort struct {
	chunks  []string
	written bytes.Buffer
}

func (p *fakePort) Read(b []byte) (int, error) {
	if len(p.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(b, p.chunks[0])
	p.chunks[0] = p.chunks[0][n:]
	if p.chunks[0] == "" {
		p.chunks = p.chunks[1:]
	}
	return n, nil
}

func (p *fakePort) Write(b []byte) (int, error) {
	return p.written.Write(b)
}

const (
	rmcPayload = "GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,010523,003.1,W"
	ggaPayload = "GPGGA,123520,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,"
)

func TestReceiver_RMCAndGGA(t *testing.T) {
	port := &fakePort{chunks: []string{nmeaLine(rmcPayload) + nmeaLine(ggaPayload)}}
	r := NewReceiver(port)

	if !r.Drain() {
		t.Fatalf("expected Drain to report new data")
	}
	if !r.HasFix() {
		t.Fatalf("expected fix")
	}
	fix := r.Latest()
	if math.Abs(fix.Latitude-48.1173) > 1e-4 || math.Abs(fix.Longitude-11.516667) > 1e-4 {
		t.Fatalf("lat/lon=%v,%v", fix.Latitude, fix.Longitude)
	}
	ts := fix.Timestamp
	if !ts.DateValid || ts.DateString() != "2023-5-1" {
		t.Fatalf("date=%s valid=%v", ts.DateString(), ts.DateValid)
	}
	if !ts.TimeValid || ts.Hour != 12 || ts.Minute != 35 || ts.Second != 20 {
		t.Fatalf("time=%s", ts.TimeString())
	}
	if fix.FixQuality != 1 {
		t.Fatalf("fix_quality=%d", fix.FixQuality)
	}
	if fix.Satellites == nil || *fix.Satellites != 8 {
		t.Fatalf("satellites=%v", fix.Satellites)
	}
	if fix.AltitudeM == nil || math.Abs(*fix.AltitudeM-545.4) > 1e-9 {
		t.Fatalf("altitude=%v", fix.AltitudeM)
	}
	if fix.HeightGeoid == nil || math.Abs(*fix.HeightGeoid-46.9) > 1e-9 {
		t.Fatalf("height_geoid=%v", fix.HeightGeoid)
	}
	if fix.HorizontalDilution == nil || math.Abs(*fix.HorizontalDilution-0.9) > 1e-9 {
		t.Fatalf("hdop=%v", fix.HorizontalDilution)
	}
	if fix.SpeedKnots == nil || math.Abs(*fix.SpeedKnots-22.4) > 1e-9 {
		t.Fatalf("speed=%v", fix.SpeedKnots)
	}
	if fix.TrackAngleDeg == nil || math.Abs(*fix.TrackAngleDeg-84.4) > 1e-9 {
		t.Fatalf("track=%v", fix.TrackAngleDeg)
	}
}

func TestReceiver_MissingOptionalFieldsStayNil(t *testing.T) {
	gga := "GPGGA,123520,4807.038,N,01131.000,E,1,,,,M,,M,,"
	rmc := "GPRMC,123520,A,4807.038,N,01131.000,E,,,010523,003.1,W"
	port := &fakePort{chunks: []string{nmeaLine(gga) + nmeaLine(rmc)}}
	r := NewReceiver(port)
	r.Drain()

	fix := r.Latest()
	if !fix.HasFix {
		t.Fatalf("expected fix")
	}
	if fix.AltitudeM != nil {
		t.Fatalf("altitude=%v want nil", *fix.AltitudeM)
	}
	if fix.Satellites != nil {
		t.Fatalf("satellites=%v want nil", *fix.Satellites)
	}
	if fix.SpeedKnots != nil {
		t.Fatalf("speed=%v want nil", *fix.SpeedKnots)
	}
	if fix.TrackAngleDeg != nil || fix.HorizontalDilution != nil || fix.HeightGeoid != nil {
		t.Fatalf("expected remaining optionals to be nil: %+v", fix)
	}
}

func TestReceiver_PartialLinesAcrossReads(t *testing.T) {
	line := nmeaLine(ggaPayload)
	port := &fakePort{chunks: []string{line[:20], line[20:]}}
	r := NewReceiver(port)

	if r.Drain() {
		t.Fatalf("half a sentence must not be applied")
	}
	if !r.Drain() {
		t.Fatalf("expected sentence after second read")
	}
	if !r.HasFix() {
		t.Fatalf("expected fix")
	}
}

func TestReceiver_NoFixQualityZero(t *testing.T) {
	gga := "GPGGA,123520,4807.038,N,01131.000,E,0,00,,,M,,M,,"
	port := &fakePort{chunks: []string{nmeaLine(gga)}}
	r := NewReceiver(port)
	r.Drain()
	if r.HasFix() {
		t.Fatalf("expected no fix")
	}
	if _, ok := r.Latest().Coordinate(); ok {
		t.Fatalf("coordinate must not be usable without fix")
	}
}

func TestReceiver_LostFixClearsHasFix(t *testing.T) {
	lost := "GPGGA,123521,4807.038,N,01131.000,E,0,00,,,M,,M,,"
	port := &fakePort{chunks: []string{nmeaLine(ggaPayload), nmeaLine(lost)}}
	r := NewReceiver(port)
	r.Drain()
	if !r.HasFix() {
		t.Fatalf("expected fix after GGA")
	}
	r.Drain()
	if r.HasFix() {
		t.Fatalf("expected quality 0 to clear fix")
	}
}

func TestReceiver_IgnoresGarbageAndBadChecksum(t *testing.T) {
	bad := nmeaLine(ggaPayload)
	bad = bad[:len(bad)-4] + "00\r\n"
	port := &fakePort{chunks: []string{"noise\r\n" + bad}}
	r := NewReceiver(port)
	if r.Drain() {
		t.Fatalf("expected nothing applied")
	}
	if r.HasFix() {
		t.Fatalf("expected no fix")
	}
}

func TestReceiver_SendCommandFraming(t *testing.T) {
	port := &fakePort{}
	r := NewReceiver(port)
	for _, cmd := range DefaultInitCommands {
		if err := r.SendCommand(cmd); err != nil {
			t.Fatalf("SendCommand: %v", err)
		}
	}
	want := "$PMTK314,0,1,0,1,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0*28\r\n$PMTK220,1000*1F\r\n"
	if got := port.written.String(); got != want {
		t.Fatalf("written=%q want %q", got, want)
	}
}
