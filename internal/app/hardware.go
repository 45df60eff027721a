// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ads1x15"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/field_logger/internal/config"
	"github.com/relabs-tech/field_logger/internal/csvlog"
	"github.com/relabs-tech/field_logger/internal/gps"
	"github.com/relabs-tech/field_logger/internal/power"
	"github.com/relabs-tech/field_logger/internal/status"
	"github.com/relabs-tech/field_logger/internal/telemetry"
)

var adcChannels = []ads1x15.Channel{ads1x15.Channel0, ads1x15.Channel1, ads1x15.Channel2, ads1x15.Channel3}

// RunLogger brings up the receiver, display, battery monitor and SD card
// described by the global config and runs the control loop until ctx ends.
// It returns ErrNoStorage without entering the loop if LOG_DIR is missing.
func RunLogger(ctx context.Context) error {
	cfg := config.Get()

	var bus i2c.BusCloser
	if cfg.DisplayEnabled || cfg.BattADCEnabled {
		if _, err := host.Init(); err != nil {
			return fmt.Errorf("failed to initialize periph: %w", err)
		}
		b, err := i2creg.Open(cfg.I2CBus)
		if err != nil {
			return fmt.Errorf("failed to open I2C bus: %w", err)
		}
		defer b.Close()
		bus = b
	}

	panelFont, err := status.FontFor(cfg.DisplayWidth, cfg.DisplayHeight)
	if err != nil {
		return err
	}
	defer panelFont.Face.Close()
	renderer := status.NewRenderer(panelFont.Geometry)
	display := openDisplay(cfg, bus, panelFont)

	// ---- 1) SD card ----
	fs := afero.NewOsFs()
	if err := CheckStorage(fs, cfg.LogDir, display, renderer); err != nil {
		return err
	}
	log.Printf("storage: logging to %s", cfg.LogDir)

	// ---- 2) Battery monitor ----
	battery, err := openBattery(cfg, bus)
	if err != nil {
		return err
	}

	// ---- 3) GPS receiver ----
	receiver, port, err := openReceiver(cfg)
	if err != nil {
		return err
	}
	defer port.Close()

	// ---- 4) Optional status mirror ----
	var mirror telemetry.Mirror
	if cfg.MQTTBroker != "" {
		m, err := telemetry.DialMQTT(cfg.MQTTBroker, cfg.MQTTClientIDLogger, cfg.TopicStatus)
		if err != nil {
			// the mirror is a convenience; the logger works without it
			log.Warnf("telemetry: disabled: %v", err)
		} else {
			defer m.Close()
			mirror = m
		}
	}

	logger := NewLogger(LoggerOptions{
		Source:         receiver,
		Display:        display,
		Renderer:       renderer,
		Battery:        battery,
		Gate:           gps.NewChangeGate(cfg.ChangeThreshold),
		Sink:           csvlog.NewSink(fs, cfg.LogDir),
		Mirror:         mirror,
		UpdateInterval: cfg.UpdateInterval,
	})
	logger.Refresh()

	if err := logger.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func openDisplay(cfg *config.Config, bus i2c.Bus, f status.Font) status.Display {
	if !cfg.DisplayEnabled || bus == nil {
		log.Println("display: no panel configured, using console")
		return &status.ConsoleDisplay{}
	}
	oled, err := status.NewOLED(bus, cfg.DisplayI2CAddr, f)
	if err != nil {
		log.Warnf("display: %v; falling back to console", err)
		return &status.ConsoleDisplay{}
	}
	log.Printf("display: initialized at 0x%02X", cfg.DisplayI2CAddr)
	return oled
}

func openBattery(cfg *config.Config, bus i2c.Bus) (*power.Reader, error) {
	cal := power.Calibration{
		MinVolts: cfg.BattMin,
		MaxVolts: cfg.BattMax,
		Scale:    power.DividerScale(cfg.BattDivider),
		Clamp:    cfg.BattClamp,
	}
	if !cfg.BattADCEnabled || bus == nil {
		// report a full battery rather than a nonsense negative level
		return power.NewReader(power.FullSampler(cal), cal), nil
	}

	adc, err := ads1x15.NewADS1115(bus, &ads1x15.Opts{I2cAddress: cfg.BattADCI2CAddr})
	if err != nil {
		return nil, fmt.Errorf("battery ADC init at 0x%02X: %w", cfg.BattADCI2CAddr, err)
	}
	pin, err := adc.PinForChannel(adcChannels[cfg.BattADCChannel], 4096*physic.MilliVolt, 8*physic.Hertz, ads1x15.SaveEnergy)
	if err != nil {
		return nil, fmt.Errorf("battery ADC channel %d: %w", cfg.BattADCChannel, err)
	}
	log.Printf("power: battery monitor on ADS1115 0x%02X channel %d", cfg.BattADCI2CAddr, cfg.BattADCChannel)
	return power.NewReader(power.PinSampler{Pin: pin}, cal), nil
}
