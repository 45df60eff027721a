// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/relabs-tech/field_logger/internal/csvlog"
	"github.com/relabs-tech/field_logger/internal/gps"
	"github.com/relabs-tech/field_logger/internal/power"
	"github.com/relabs-tech/field_logger/internal/status"
	"github.com/relabs-tech/field_logger/internal/telemetry"
)

// ErrNoStorage is the one fatal startup condition: the SD card is not mounted.
var ErrNoStorage = errors.New("no SD card detected")

// Clock supplies monotonic time to the logger.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Recorder persists fixes. csvlog.Sink is the production implementation.
type Recorder interface {
	Append(gps.FixSample) error
	Current() string
}

// Logger is the control loop: it drains the receiver every iteration and,
// once per UpdateInterval, refreshes the display and records the position
// if it moved far enough.
type Logger struct {
	src      gps.FixSource
	display  status.Display
	renderer *status.Renderer
	battery  *power.Reader
	gate     *gps.ChangeGate
	sink     Recorder
	mirror   telemetry.Mirror
	clock    Clock
	interval time.Duration

	lastAction time.Time
	lines      status.Lines
	lastErr    string
}

// LoggerOptions wires the collaborators of a Logger. Mirror and Clock are
// optional.
type LoggerOptions struct {
	Source         gps.FixSource
	Display        status.Display
	Renderer       *status.Renderer
	Battery        *power.Reader
	Gate           *gps.ChangeGate
	Sink           Recorder
	Mirror         telemetry.Mirror
	Clock          Clock
	UpdateInterval time.Duration
}

// NewLogger builds a Logger. The first cadence action happens one
// UpdateInterval after construction.
func NewLogger(opts LoggerOptions) *Logger {
	clock := opts.Clock
	if clock == nil {
		clock = systemClock{}
	}
	renderer := opts.Renderer
	if renderer == nil {
		renderer = status.NewRenderer(status.DefaultGeometry)
	}
	gate := opts.Gate
	if gate == nil {
		gate = gps.NewChangeGate(gps.DefaultChangeThreshold)
	}
	interval := opts.UpdateInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Logger{
		src:        opts.Source,
		display:    opts.Display,
		renderer:   renderer,
		battery:    opts.Battery,
		gate:       gate,
		sink:       opts.Sink,
		mirror:     opts.Mirror,
		clock:      clock,
		interval:   interval,
		lastAction: clock.Now(),
		lines:      status.Lines{"", "", "Initializing..."},
	}
}

// Lines returns the summary lines currently held for the display.
func (l *Logger) Lines() status.Lines {
	return l.lines
}

// Refresh draws the held lines and battery level.
func (l *Logger) Refresh() {
	rows := l.renderer.Render(l.lines, l.battery.Read(power.Percent))
	if err := status.Show(l.display, rows); err != nil {
		log.Warnf("display: present error: %v", err)
	}
}

// Run calls Tick until ctx is done. Cancellation is only observed between
// iterations; a blocked read or write finishes first.
func (l *Logger) Run(ctx context.Context) error {
	log.Printf("logger: starting loop (update interval %s, threshold %g°)", l.interval, l.gate.Threshold())
	for {
		select {
		case <-ctx.Done():
			log.Println("logger: stopping")
			return ctx.Err()
		default:
		}
		l.Tick()
	}
}

// Tick runs one loop iteration and reports whether the cadence interval
// had elapsed.
func (l *Logger) Tick() bool {
	// The receiver must be drained every iteration or its parser falls
	// behind the incoming sentences.
	l.src.Drain()

	now := l.clock.Now()
	if now.Sub(l.lastAction) < l.interval {
		return false
	}
	l.lastAction = now

	l.Refresh()

	if !l.src.HasFix() {
		l.waitingForFix(now)
		return true
	}
	l.handleFix(now, l.src.Latest())
	return true
}

func (l *Logger) waitingForFix(now time.Time) {
	log.Println("Waiting for fix...")
	volts := l.battery.Read(power.Voltage)
	log.Printf("Battery voltage: %v v.", volts)
	l.lines[2] = "Waiting for fix..."
	l.publish(now, nil, false)
}

func (l *Logger) handleFix(now time.Time, fix gps.FixSample) {
	logFix(fix)
	log.Printf("Battery voltage: %v v.", l.battery.Read(power.Voltage))
	l.lines = SummaryLines(fix)

	coord, ok := fix.Coordinate()
	recorded := false
	if ok && l.gate.ShouldPersist(coord) {
		if err := l.sink.Append(fix); err != nil {
			// the baseline stays put so the next tick tries again
			l.lastErr = err.Error()
			log.Errorf("logger: record not written: %v", err)
		} else {
			l.gate.Commit(coord)
			l.lastErr = ""
			recorded = true
			log.WithField("file", l.sink.Current()).Debug("logger: record appended")
		}
	}
	l.publish(now, &fix, recorded)
}

func (l *Logger) publish(now time.Time, fix *gps.FixSample, recorded bool) {
	if l.mirror == nil {
		return
	}
	volts := l.battery.Read(power.Voltage)
	l.mirror.Publish(telemetry.Status{
		Time:       now,
		Lines:      l.lines,
		BatteryV:   volts,
		BatteryPct: l.battery.Read(power.Percent),
		HasFix:     fix != nil,
		Fix:        fix,
		Recorded:   recorded,
		LogFile:    l.sink.Current(),
		LastError:  l.lastErr,
	})
}

// SummaryLines builds the three display lines for a fix.
func SummaryLines(fix gps.FixSample) status.Lines {
	var lines status.Lines
	if fix.Satellites != nil {
		lines[0] = fmt.Sprintf("Q:%d Sat:%d", fix.FixQuality, *fix.Satellites)
	} else {
		lines[0] = fmt.Sprintf("Q:%d Sat:..", fix.FixQuality)
	}
	lines[1] = csvlog.FormatFloat(fix.Latitude) + "," + csvlog.FormatFloat(fix.Longitude)
	if fix.AltitudeM != nil {
		lines[2] = fmt.Sprintf("Alt:%s mts.", csvlog.FormatFloat(*fix.AltitudeM))
	} else {
		lines[2] = "Alt:..."
	}
	return lines
}

func logFix(fix gps.FixSample) {
	ts := fix.Timestamp
	log.Println(strings.Repeat("=", 40))
	log.Printf("Fix timestamp: %d/%d/%d %s", ts.Month, ts.Day, ts.Year, ts.TimeString())

	fields := log.Fields{
		"lat":         fix.Latitude,
		"lon":         fix.Longitude,
		"fix_quality": fix.FixQuality,
	}
	if fix.Satellites != nil {
		fields["satellites"] = *fix.Satellites
	}
	if fix.AltitudeM != nil {
		fields["altitude_m"] = *fix.AltitudeM
	}
	if fix.SpeedKnots != nil {
		fields["speed_knots"] = *fix.SpeedKnots
	}
	if fix.TrackAngleDeg != nil {
		fields["track_deg"] = *fix.TrackAngleDeg
	}
	if fix.HorizontalDilution != nil {
		fields["hdop"] = *fix.HorizontalDilution
	}
	if fix.HeightGeoid != nil {
		fields["height_geoid_m"] = *fix.HeightGeoid
	}
	log.WithFields(fields).Info("fix")
}

// CheckStorage verifies the log directory is mounted. If it is not, the
// diagnostic is shown on display and ErrNoStorage returned.
func CheckStorage(fs afero.Fs, dir string, display status.Display, renderer *status.Renderer) error {
	ok, err := afero.DirExists(fs, dir)
	if err == nil && ok {
		return nil
	}
	log.Println("No SD card detected. Turn off, insert one and turn back on.")

	rows := renderer.Render(status.Lines{"", "No SD Card detected.", "Off > Insert > On"}, 0)
	// the battery row is meaningless here
	diag := rows[:0]
	for _, r := range rows {
		if !strings.HasPrefix(r.Text, "Bat:") {
			diag = append(diag, r)
		}
	}
	if derr := status.Show(display, diag); derr != nil {
		log.Warnf("display: present error: %v", derr)
	}

	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNoStorage, dir, err)
	}
	return fmt.Errorf("%w: %s", ErrNoStorage, dir)
}
