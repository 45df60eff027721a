// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import "fmt"

// Timestamp is the receiver clock as last decoded. RMC carries both date and
// time, GGA only time, so either half may be missing.
type Timestamp struct {
	Year   int `json:"year"`
	Month  int `json:"month"`
	Day    int `json:"day"`
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
	Second int `json:"second"`

	DateValid bool `json:"date_valid"`
	TimeValid bool `json:"time_valid"`
}

// DateString formats the date the way the day logs expect it: no zero padding.
func (t Timestamp) DateString() string {
	return fmt.Sprintf("%d-%d-%d", t.Year, t.Month, t.Day)
}

// TimeString formats the time as HH:MM:SS.
func (t Timestamp) TimeString() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

// Coordinate is a latitude/longitude pair in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// FixSample is one decoded receiver reading. Optional fields are nil when the
// receiver did not report them; nil and zero mean different things.
type FixSample struct {
	Timestamp Timestamp `json:"timestamp"`

	Latitude  float64 `json:"lat"` // decimal degrees, valid only with HasFix
	Longitude float64 `json:"lon"` // decimal degrees, valid only with HasFix

	AltitudeM          *float64 `json:"altitude_m,omitempty"`
	SpeedKnots         *float64 `json:"speed_knots,omitempty"`
	TrackAngleDeg      *float64 `json:"track_angle_deg,omitempty"`
	HorizontalDilution *float64 `json:"hdop,omitempty"`
	HeightGeoid        *float64 `json:"height_geoid,omitempty"`

	FixQuality int  `json:"fix_quality"`
	Satellites *int `json:"satellites,omitempty"`
	HasFix     bool `json:"has_fix"`
}

// Coordinate returns the position of the sample and whether it may be used.
func (s FixSample) Coordinate() (Coordinate, bool) {
	if !s.HasFix {
		return Coordinate{}, false
	}
	return Coordinate{Lat: s.Latitude, Lon: s.Longitude}, true
}

// FixSource is anything that can be polled for receiver fixes.
type FixSource interface {
	// Drain advances the underlying parser. It must be called every loop
	// iteration; the return value reports whether new data was parsed.
	Drain() bool
	HasFix() bool
	Latest() FixSample
}
