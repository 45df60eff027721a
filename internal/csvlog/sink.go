// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package csvlog appends GPS fixes to one CSV file per calendar day.
//
// The file layout (header text, CRLF endings, six decimal coordinates,
// "Unknown" for missing values) is fixed; existing spreadsheets and scripts
// read these files directly.
package csvlog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"github.com/relabs-tech/field_logger/internal/gps"
)

// Header is the first row of every day log.
const Header = "Date,Time,Latitude,Longitude,Altitude (Mts.),Speed (Knots),Fix Quality,# Satellites\r\n"

// Unknown replaces optional values the receiver did not report.
const Unknown = "Unknown"

// ErrUndated is returned for samples whose receiver clock has no date yet.
var ErrUndated = errors.New("sample has no date")

// IOError is the single failure kind of the sink. Callers are not expected
// to tell the underlying causes apart.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("csvlog: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Sink writes day logs under dir on fs.
type Sink struct {
	fs  afero.Fs
	dir string

	// current is the last file successfully written to. It only changes
	// together with a completed write.
	current string
}

// NewSink returns a sink rooted at dir.
func NewSink(fs afero.Fs, dir string) *Sink {
	return &Sink{fs: fs, dir: dir}
}

// FileName returns the day log name for ts, e.g. "GPS_Data_2023-5-1.csv".
func FileName(ts gps.Timestamp) string {
	return fmt.Sprintf("GPS_Data_%d-%d-%d.csv", ts.Year, ts.Month, ts.Day)
}

// Current returns the path of the last file written, or "" before the
// first successful append.
func (s *Sink) Current() string {
	return s.current
}

// Append writes one record for sample, creating the day file with its
// header when needed. The file is closed before Append returns.
func (s *Sink) Append(sample gps.FixSample) (err error) {
	if !sample.Timestamp.DateValid {
		return &IOError{Op: "name", Path: s.dir, Err: ErrUndated}
	}
	path := filepath.Join(s.dir, FileName(sample.Timestamp))

	f, err := s.fs.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return &IOError{Op: "open", Path: path, Err: err}
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = &IOError{Op: "close", Path: path, Err: cerr}
		}
	}()

	// An empty file needs the header, including one left behind by a
	// failed first write.
	writeHeader := false
	if path != s.current {
		info, err := f.Stat()
		if err != nil {
			return &IOError{Op: "stat", Path: path, Err: err}
		}
		writeHeader = info.Size() == 0
	}

	var b strings.Builder
	if writeHeader {
		b.WriteString(Header)
	}
	b.WriteString(FormatRecord(sample))

	if _, err := f.WriteString(b.String()); err != nil {
		return &IOError{Op: "write", Path: path, Err: err}
	}

	s.current = path
	return nil
}

// FormatRecord renders sample as one CRLF-terminated CSV row.
func FormatRecord(sample gps.FixSample) string {
	ts := sample.Timestamp
	return fmt.Sprintf("%s,%s,%.6f,%.6f,%s,%s,%d,%s\r\n",
		ts.DateString(),
		ts.TimeString(),
		sample.Latitude,
		sample.Longitude,
		FormatOptFloat(sample.AltitudeM, Unknown),
		FormatOptFloat(sample.SpeedKnots, Unknown),
		sample.FixQuality,
		formatOptInt(sample.Satellites, Unknown),
	)
}

// FormatOptFloat prints v in its shortest form, keeping a decimal point
// (120 -> "120.0"), or placeholder when v is nil.
func FormatOptFloat(v *float64, placeholder string) string {
	if v == nil {
		return placeholder
	}
	return FormatFloat(*v)
}

// FormatFloat prints v in its shortest round-trip form with at least one
// decimal digit.
func FormatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".NI") {
		s += ".0"
	}
	return s
}

func formatOptInt(v *int, placeholder string) string {
	if v == nil {
		return placeholder
	}
	return strconv.Itoa(*v)
}
