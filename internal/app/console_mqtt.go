// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/field_logger/internal/config"
	"github.com/relabs-tech/field_logger/internal/csvlog"
	"github.com/relabs-tech/field_logger/internal/gps"
	"github.com/relabs-tech/field_logger/internal/telemetry"
)

// connectMQTT dials the configured broker with the given client id.
func connectMQTT(cfg *config.Config, clientID string) (mqtt.Client, error) {
	if cfg.MQTTBroker == "" {
		return nil, fmt.Errorf("MQTT_BROKER is not set")
	}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(clientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.MQTTBroker, token.Error())
	}
	log.Printf("connected to MQTT broker at %s", cfg.MQTTBroker)
	return client, nil
}

// RunConsoleMQTT prints every status summary the logger publishes until
// ctx is done.
func RunConsoleMQTT(ctx context.Context) error {
	cfg := config.Get()

	client, err := connectMQTT(cfg, cfg.MQTTClientIDConsole)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	token := client.Subscribe(cfg.TopicStatus, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var st telemetry.Status
		if err := json.Unmarshal(msg.Payload(), &st); err != nil {
			log.Printf("console: status unmarshal error: %v", err)
			return
		}
		fmt.Println(FormatStatusLine(st))
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicStatus)

	<-ctx.Done()
	log.Println("console: shutting down")
	return nil
}

// FormatStatusLine renders a status summary on one line. Values the
// receiver did not report are left out.
func FormatStatusLine(st telemetry.Status) string {
	var b strings.Builder
	if st.Fix == nil {
		fmt.Fprintf(&b, "[WAIT] %s", st.Lines[2])
	} else {
		b.WriteString(FormatFixLine(*st.Fix))
	}
	fmt.Fprintf(&b, " bat=%.2fV (%.1f%%)", st.BatteryV, st.BatteryPct)
	if st.Recorded {
		fmt.Fprintf(&b, " rec=%s", st.LogFile)
	}
	if st.LastError != "" {
		fmt.Fprintf(&b, " err=%q", st.LastError)
	}
	return b.String()
}

// FormatFixLine renders one fix, leaving out values the receiver did not
// report.
func FormatFixLine(f gps.FixSample) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[FIX ] %s %s lat=%.6f lon=%.6f q=%d",
		f.Timestamp.DateString(), f.Timestamp.TimeString(), f.Latitude, f.Longitude, f.FixQuality)
	if f.Satellites != nil {
		fmt.Fprintf(&b, " sats=%d", *f.Satellites)
	}
	if f.AltitudeM != nil {
		fmt.Fprintf(&b, " alt=%sm", csvlog.FormatFloat(*f.AltitudeM))
	}
	if f.SpeedKnots != nil {
		fmt.Fprintf(&b, " speed=%skn", csvlog.FormatFloat(*f.SpeedKnots))
	}
	if f.TrackAngleDeg != nil {
		fmt.Fprintf(&b, " track=%s°", csvlog.FormatFloat(*f.TrackAngleDeg))
	}
	if f.HorizontalDilution != nil {
		fmt.Fprintf(&b, " hdop=%s", csvlog.FormatFloat(*f.HorizontalDilution))
	}
	return b.String()
}
