// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import "math"

// DefaultChangeThreshold is the per-axis movement, in degrees, that makes a
// new position worth recording (~2.8 m of latitude).
const DefaultChangeThreshold = 0.000025

// thresholdEpsilon absorbs float rounding so a delta of exactly the
// threshold (e.g. 40.000025 - 40.0) still counts as a change.
const thresholdEpsilon = 1e-12

// ChangeGate decides whether a coordinate moved far enough from the last
// recorded one. Deciding and committing are separate so that a failed write
// leaves the baseline untouched.
type ChangeGate struct {
	threshold float64
	last      *Coordinate
}

// NewChangeGate returns a gate with no baseline. A threshold <= 0 selects
// DefaultChangeThreshold.
func NewChangeGate(threshold float64) *ChangeGate {
	if threshold <= 0 {
		threshold = DefaultChangeThreshold
	}
	return &ChangeGate{threshold: threshold}
}

// ShouldPersist reports whether c differs from the baseline by at least the
// threshold on either axis. It is always true before the first Commit.
func (g *ChangeGate) ShouldPersist(c Coordinate) bool {
	if g.last == nil {
		return true
	}
	limit := g.threshold - thresholdEpsilon
	return math.Abs(c.Lat-g.last.Lat) >= limit || math.Abs(c.Lon-g.last.Lon) >= limit
}

// Commit makes c the new baseline.
func (g *ChangeGate) Commit(c Coordinate) {
	g.last = &c
}

// Baseline returns the last committed coordinate, if any.
func (g *ChangeGate) Baseline() (Coordinate, bool) {
	if g.last == nil {
		return Coordinate{}, false
	}
	return *g.last, true
}

// Threshold returns the configured per-axis threshold.
func (g *ChangeGate) Threshold() float64 {
	return g.threshold
}
