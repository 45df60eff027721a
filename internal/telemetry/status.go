// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

import (
	"time"

	"github.com/relabs-tech/field_logger/internal/gps"
)

// Status is the summary published on every cadence tick.
type Status struct {
	Time       time.Time      `json:"time"`
	Lines      [3]string      `json:"lines"`
	BatteryV   float64        `json:"battery_v"`
	BatteryPct float64        `json:"battery_pct"`
	HasFix     bool           `json:"has_fix"`
	Fix        *gps.FixSample `json:"fix,omitempty"`
	Recorded   bool           `json:"recorded"`   // a record was appended this tick
	LogFile    string         `json:"log_file"`   // last day log written
	LastError  string         `json:"last_error"` // last persistence error, if any
}

// Mirror receives a copy of each status summary.
type Mirror interface {
	Publish(Status)
}
