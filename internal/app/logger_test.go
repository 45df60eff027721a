// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/relabs-tech/field_logger/internal/csvlog"
	"github.com/relabs-tech/field_logger/internal/gps"
	"github.com/relabs-tech/field_logger/internal/power"
	"github.com/relabs-tech/field_logger/internal/status"
	"github.com/relabs-tech/field_logger/internal/telemetry"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type fakeSource struct {
	drains int
	fix    bool
	sample gps.FixSample
}

func (s *fakeSource) Drain() bool           { s.drains++; return false }
func (s *fakeSource) HasFix() bool          { return s.fix }
func (s *fakeSource) Latest() gps.FixSample { return s.sample }

type failingRecorder struct{ calls int }

func (r *failingRecorder) Append(gps.FixSample) error {
	r.calls++
	return &csvlog.IOError{Op: "write", Path: "/sd/x.csv", Err: errors.New("disk full")}
}
func (r *failingRecorder) Current() string { return "" }

type fakeMirror struct{ got []telemetry.Status }

func (m *fakeMirror) Publish(st telemetry.Status) { m.got = append(m.got, st) }

func fptr(v float64) *float64 { return &v }
func iptr(v int) *int         { return &v }

func sampleAt(lat, lon float64) gps.FixSample {
	return gps.FixSample{
		Timestamp: gps.Timestamp{
			Year: 2023, Month: 5, Day: 1, Hour: 12,
			DateValid: true, TimeValid: true,
		},
		Latitude:   lat,
		Longitude:  lon,
		AltitudeM:  fptr(120.5),
		FixQuality: 1,
		Satellites: iptr(7),
		HasFix:     true,
	}
}

type harness struct {
	clock   *fakeClock
	src     *fakeSource
	display *status.ConsoleDisplay
	fs      afero.Fs
	sink    *csvlog.Sink
	gate    *gps.ChangeGate
	mirror  *fakeMirror
	logger  *Logger
}

func newHarness(t *testing.T, rec Recorder) *harness {
	t.Helper()
	h := &harness{
		clock:   &fakeClock{now: time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)},
		src:     &fakeSource{},
		display: &status.ConsoleDisplay{Quiet: true},
		fs:      afero.NewMemMapFs(),
		gate:    gps.NewChangeGate(gps.DefaultChangeThreshold),
		mirror:  &fakeMirror{},
	}
	if err := h.fs.MkdirAll("/sd", 0o755); err != nil {
		t.Fatalf("MkdirAll() error: %v", err)
	}
	h.sink = csvlog.NewSink(h.fs, "/sd")
	if rec == nil {
		rec = h.sink
	}
	h.logger = NewLogger(LoggerOptions{
		Source:         h.src,
		Display:        h.display,
		Battery:        power.NewReader(power.FullSampler(power.DefaultCalibration()), power.DefaultCalibration()),
		Gate:           h.gate,
		Sink:           rec,
		Mirror:         h.mirror,
		Clock:          h.clock,
		UpdateInterval: 5 * time.Second,
	})
	return h
}

func (h *harness) readLog(t *testing.T, name string) string {
	t.Helper()
	b, err := afero.ReadFile(h.fs, "/sd/"+name)
	if err != nil {
		t.Fatalf("ReadFile(%s) error: %v", name, err)
	}
	return string(b)
}

func TestTick_Cadence(t *testing.T) {
	h := newHarness(t, nil)

	h.clock.Advance(4900 * time.Millisecond)
	if h.logger.Tick() {
		t.Fatalf("acted after 4.9s")
	}
	if len(h.display.Frames) != 0 {
		t.Fatalf("frames=%d want 0", len(h.display.Frames))
	}

	h.clock.Advance(100 * time.Millisecond)
	if !h.logger.Tick() {
		t.Fatalf("did not act after 5.0s")
	}
	if h.logger.Tick() {
		t.Fatalf("acted twice within one interval")
	}
	if h.src.drains != 3 {
		t.Fatalf("drains=%d want 3", h.src.drains)
	}
}

func TestTick_WaitingForFix(t *testing.T) {
	h := newHarness(t, nil)

	h.clock.Advance(5 * time.Second)
	h.logger.Tick()

	if got := h.logger.Lines()[2]; got != "Waiting for fix..." {
		t.Fatalf("line3=%q", got)
	}
	if _, ok := h.gate.Baseline(); ok {
		t.Fatalf("baseline set without a fix")
	}
	if files, _ := afero.ReadDir(h.fs, "/sd"); len(files) != 0 {
		t.Fatalf("files=%d want 0", len(files))
	}
	if len(h.mirror.got) != 1 || h.mirror.got[0].HasFix {
		t.Fatalf("mirror=%+v", h.mirror.got)
	}
}

func TestTick_RecordsFirstFix(t *testing.T) {
	h := newHarness(t, nil)
	h.src.fix = true
	h.src.sample = sampleAt(40.0, -75.0)

	h.clock.Advance(5 * time.Second)
	h.logger.Tick()

	want := csvlog.Header + "2023-5-1,12:00:00,40.000000,-75.000000,120.5,Unknown,1,7\r\n"
	if got := h.readLog(t, "GPS_Data_2023-5-1.csv"); got != want {
		t.Fatalf("log=%q want %q", got, want)
	}
	base, ok := h.gate.Baseline()
	if !ok || base != (gps.Coordinate{Lat: 40.0, Lon: -75.0}) {
		t.Fatalf("baseline=%v ok=%v", base, ok)
	}
	lines := h.logger.Lines()
	if lines[0] != "Q:1 Sat:7" || lines[1] != "40.0,-75.0" || lines[2] != "Alt:120.5 mts." {
		t.Fatalf("lines=%q", lines)
	}
	last := h.mirror.got[len(h.mirror.got)-1]
	if !last.Recorded || last.LogFile != "/sd/GPS_Data_2023-5-1.csv" || last.LastError != "" {
		t.Fatalf("status=%+v", last)
	}
}

func TestTick_SmallMoveNotRecorded(t *testing.T) {
	h := newHarness(t, nil)
	h.src.fix = true
	h.src.sample = sampleAt(40.0, -75.0)
	h.clock.Advance(5 * time.Second)
	h.logger.Tick()

	h.src.sample = sampleAt(40.00001, -75.0)
	h.clock.Advance(5 * time.Second)
	h.logger.Tick()

	got := h.readLog(t, "GPS_Data_2023-5-1.csv")
	if n := strings.Count(got, "\r\n"); n != 2 {
		t.Fatalf("rows=%d want 2 (header + one record)", n)
	}
	if base, _ := h.gate.Baseline(); base.Lat != 40.0 {
		t.Fatalf("baseline moved to %v", base)
	}
	// the display still follows the receiver
	if got := h.logger.Lines()[1]; got != "40.00001,-75.0" {
		t.Fatalf("line2=%q", got)
	}

	h.src.sample = sampleAt(40.0001, -75.0)
	h.clock.Advance(5 * time.Second)
	h.logger.Tick()
	if n := strings.Count(h.readLog(t, "GPS_Data_2023-5-1.csv"), "\r\n"); n != 3 {
		t.Fatalf("rows=%d want 3", n)
	}
}

func TestTick_FailedAppendIsRetried(t *testing.T) {
	rec := &failingRecorder{}
	h := newHarness(t, rec)
	h.src.fix = true
	h.src.sample = sampleAt(40.0, -75.0)

	h.clock.Advance(5 * time.Second)
	h.logger.Tick()
	if _, ok := h.gate.Baseline(); ok {
		t.Fatalf("baseline committed after a failed append")
	}
	last := h.mirror.got[len(h.mirror.got)-1]
	if last.Recorded || !strings.Contains(last.LastError, "disk full") {
		t.Fatalf("status=%+v", last)
	}
	if h.logger.Lines()[0] != "Q:1 Sat:7" {
		t.Fatalf("lines=%q", h.logger.Lines())
	}

	h.clock.Advance(5 * time.Second)
	h.logger.Tick()
	if rec.calls != 2 {
		t.Fatalf("append calls=%d want 2", rec.calls)
	}
}

func TestTick_DisplayShowsPreviousLines(t *testing.T) {
	h := newHarness(t, nil)
	h.src.fix = true
	h.src.sample = sampleAt(40.0, -75.0)

	h.clock.Advance(5 * time.Second)
	h.logger.Tick()
	first := strings.Join(h.display.Last(), "|")
	if !strings.Contains(first, "Initializing...") || strings.Contains(first, "Sat:") {
		t.Fatalf("first frame=%q", first)
	}

	h.clock.Advance(5 * time.Second)
	h.logger.Tick()
	second := strings.Join(h.display.Last(), "|")
	if !strings.Contains(second, "Q:1 Sat:7") || !strings.Contains(second, "Bat:") {
		t.Fatalf("second frame=%q", second)
	}
}

func TestSummaryLines_MissingValues(t *testing.T) {
	fix := gps.FixSample{Latitude: 1.5, Longitude: 2, FixQuality: 2, HasFix: true}
	lines := SummaryLines(fix)
	want := status.Lines{"Q:2 Sat:..", "1.5,2.0", "Alt:..."}
	if lines != want {
		t.Fatalf("lines=%q want %q", lines, want)
	}
}

func TestCheckStorage(t *testing.T) {
	cases := []struct {
		name string
		geo  status.Geometry
		want []status.Row
	}{
		{
			name: "128x64",
			geo:  status.DefaultGeometry,
			want: []status.Row{
				{Text: "No SD Card detected.", X: 0, Y: 13},
				{Text: "Off > Insert > On", X: 0, Y: 26},
			},
		},
		{
			name: "128x32",
			geo:  status.Geometry{Width: 128, Height: 32, CharWidth: 4, RowPitch: 8},
			want: []status.Row{
				{Text: "No SD Card detected.", X: 0, Y: 8},
				{Text: "Off > Insert > On", X: 0, Y: 16},
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			display := &status.ConsoleDisplay{Quiet: true}
			renderer := status.NewRenderer(tc.geo)

			err := CheckStorage(fs, "/sd", display, renderer)
			if !errors.Is(err, ErrNoStorage) {
				t.Fatalf("err=%v want ErrNoStorage", err)
			}
			if len(display.Frames) != 1 || !reflect.DeepEqual(display.Frames[0], tc.want) {
				t.Fatalf("frames=%+v\nwant %+v", display.Frames, tc.want)
			}

			if err := fs.MkdirAll("/sd", 0o755); err != nil {
				t.Fatalf("MkdirAll() error: %v", err)
			}
			if err := CheckStorage(fs, "/sd", display, renderer); err != nil {
				t.Fatalf("CheckStorage() error: %v", err)
			}
		})
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	h := newHarness(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := h.logger.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v want context.Canceled", err)
	}
	if h.src.drains != 0 {
		t.Fatalf("drains=%d want 0", h.src.drains)
	}
}
