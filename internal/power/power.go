// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package power

import (
	"fmt"
	"math"

	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/physic"
)

// Mode selects the unit returned by Reader.Read.
type Mode int

const (
	Voltage Mode = iota
	Percent
)

// Battery calibration for a single-cell LiPo behind an 806k/2M divider.
// Samples are microvolts at the ADC pin.
const (
	DefaultMinVolts = 3.20
	DefaultMaxVolts = 3.8432
	DefaultDivider  = 1.403
	DefaultScale    = DefaultDivider * microvoltsToVolts
)

const microvoltsToVolts = 1e-6

// DividerScale returns the Calibration.Scale for microvolt samples taken
// behind a divider that reduces the battery voltage by ratio.
func DividerScale(ratio float64) float64 {
	return ratio * microvoltsToVolts
}

// Sampler returns one raw analog reading.
type Sampler interface {
	Sample() (int32, error)
}

// AnalogPin is the part of a periph ADC pin the sampler needs.
type AnalogPin interface {
	Read() (analog.Sample, error)
}

// PinSampler reports the voltage measured on an ADC pin in microvolts, so
// the result does not depend on the converter's gain or resolution.
type PinSampler struct {
	Pin AnalogPin
}

func (p PinSampler) Sample() (int32, error) {
	s, err := p.Pin.Read()
	if err != nil {
		return 0, fmt.Errorf("battery ADC read: %w", err)
	}
	return int32(s.V / physic.MicroVolt), nil
}

// Calibration is the linear transform from raw counts to battery level.
type Calibration struct {
	MinVolts float64
	MaxVolts float64
	Scale    float64
	// Clamp limits Percent to [0, 100]. Off by default: readings outside
	// the window produce out-of-range percentages.
	Clamp bool
}

// DefaultCalibration returns the stock LiPo calibration.
func DefaultCalibration() Calibration {
	return Calibration{MinVolts: DefaultMinVolts, MaxVolts: DefaultMaxVolts, Scale: DefaultScale}
}

// Volts converts a raw reading to battery volts.
func (c Calibration) Volts(raw int32) float64 {
	return float64(raw) * c.Scale
}

// Percent maps volts into the [MinVolts, MaxVolts] window.
func (c Calibration) Percent(volts float64) float64 {
	pct := (volts - c.MinVolts) * 100 / (c.MaxVolts - c.MinVolts)
	if c.Clamp {
		if pct < 0 {
			return 0
		}
		if pct > 100 {
			return 100
		}
	}
	return pct
}

// Reader turns analog samples into battery voltage or charge percentage.
type Reader struct {
	src     Sampler
	cal     Calibration
	lastRaw int32
}

// NewReader builds a Reader over src.
func NewReader(src Sampler, cal Calibration) *Reader {
	return &Reader{src: src, cal: cal}
}

// Read samples the input and converts it. A failed sample falls back to the
// previous raw value so callers always get a number.
func (r *Reader) Read(mode Mode) float64 {
	raw, err := r.src.Sample()
	if err != nil {
		log.Warnf("power: sample error (using last value %d): %v", r.lastRaw, err)
		raw = r.lastRaw
	}
	r.lastRaw = raw

	volts := r.cal.Volts(raw)
	if mode == Voltage {
		return volts
	}
	return r.cal.Percent(volts)
}

// FixedSampler always returns the same count. It stands in for boards
// without a battery monitor.
type FixedSampler int32

func (f FixedSampler) Sample() (int32, error) {
	return int32(f), nil
}

// FullSampler returns a FixedSampler that reads as cal.MaxVolts.
func FullSampler(cal Calibration) FixedSampler {
	return FixedSampler(math.Round(cal.MaxVolts / cal.Scale))
}
