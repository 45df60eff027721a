// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

// publishTimeout bounds how long a tick may wait on the broker.
const publishTimeout = 500 * time.Millisecond

// MQTTMirror publishes status summaries as retained JSON messages.
// Publishing is fire-and-forget: failures are logged, never retried.
type MQTTMirror struct {
	client mqtt.Client
	topic  string
}

// DialMQTT connects to broker and returns a mirror publishing on topic.
func DialMQTT(broker, clientID, topic string) (*MQTTMirror, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(false)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("telemetry: connect %s: %w", broker, token.Error())
	}
	log.Printf("telemetry: connected to MQTT broker at %s", broker)
	return &MQTTMirror{client: client, topic: topic}, nil
}

// NewMQTTMirror wraps an existing client.
func NewMQTTMirror(client mqtt.Client, topic string) *MQTTMirror {
	return &MQTTMirror{client: client, topic: topic}
}

func (m *MQTTMirror) Publish(st Status) {
	payload, err := json.Marshal(st)
	if err != nil {
		log.Errorf("telemetry: status marshal error: %v", err)
		return
	}

	token := m.client.Publish(m.topic, 0, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		log.Warnf("telemetry: publish to %s timed out", m.topic)
		return
	}
	if token.Error() != nil {
		log.Warnf("telemetry: publish error: %v", token.Error())
	}
}

// Close disconnects from the broker.
func (m *MQTTMirror) Close() {
	m.client.Disconnect(250)
}
