// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration values.
type Config struct {
	// Cadence and debounce
	UpdateInterval  time.Duration
	ChangeThreshold float64 // degrees, per axis

	// Battery calibration
	BattMin     float64 // volts at 0%
	BattMax     float64 // volts at 100%
	BattDivider float64 // battery volts per volt at the ADC pin
	BattClamp   bool

	// Battery ADC (ADS1115)
	BattADCEnabled bool
	BattADCI2CAddr uint16
	BattADCChannel int

	// GPS
	GPSSerialPort   string
	GPSBaudRate     int
	GPSReadTimeout  time.Duration
	GPSInitCommands []string

	// Storage
	LogDir string

	// Display
	I2CBus         string // "" selects the first bus
	DisplayEnabled bool
	DisplayI2CAddr uint16
	DisplayWidth   int
	DisplayHeight  int

	// MQTT
	MQTTBroker          string // empty disables the status mirror
	MQTTClientIDLogger  string
	MQTTClientIDConsole string
	MQTTClientIDWeb     string
	TopicStatus         string

	// Web Server
	WebServerPort int

	LogLevel string
}

// defaults lists every known key with its default value.
var defaults = map[string]string{
	"UPDATE_INTERVAL":  "5.0",
	"CHANGE_THRESHOLD": "0.000025",

	"BATT_MIN":     "3.20",
	"BATT_MAX":     "3.8432",
	"BATT_DIVIDER": "1.403",
	"BATT_CLAMP":   "false",

	"BATT_ADC_ENABLED":  "false",
	"BATT_ADC_I2C_ADDR": "0x48",
	"BATT_ADC_CHANNEL":  "0",

	"GPS_SERIAL_PORT":   "/dev/serial0",
	"GPS_BAUD_RATE":     "9600",
	"GPS_READ_TIMEOUT":  "3.0",
	"GPS_INIT_COMMANDS": "PMTK314,0,1,0,1,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0;PMTK220,1000",

	"LOG_DIR": "/sd",

	"I2C_BUS":          "",
	"DISPLAY_ENABLED":  "true",
	"DISPLAY_I2C_ADDR": "0x3C",
	"DISPLAY_WIDTH":    "128",
	"DISPLAY_HEIGHT":   "64",

	"MQTT_BROKER":            "",
	"MQTT_CLIENT_ID_LOGGER":  "field-logger",
	"MQTT_CLIENT_ID_CONSOLE": "field-logger-console",
	"MQTT_CLIENT_ID_WEB":     "field-logger-web",
	"TOPIC_STATUS":           "fieldlogger/status",

	"WEB_SERVER_PORT": "8080",

	"LOG_LEVEL": "info",
}

// EnvPrefix is prepended to keys when reading overrides from the
// environment, e.g. FIELD_LOGGER_LOG_DIR.
const EnvPrefix = "FIELD_LOGGER"

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads a KEY=VALUE configuration file (# starts a comment) and
// returns a validated Config. Keys missing from the file take their
// defaults; environment variables override both.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("env")
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	for _, key := range v.AllKeys() {
		if _, ok := defaults[strings.ToUpper(key)]; !ok {
			return nil, fmt.Errorf("unknown config key: %q", strings.ToUpper(key))
		}
	}

	return fromViper(v)
}

// Default returns the configuration with every key at its default.
func Default() *Config {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	cfg, err := fromViper(v)
	if err != nil {
		panic(fmt.Sprintf("config: defaults do not validate: %v", err))
	}
	return cfg
}

func fromViper(v *viper.Viper) (*Config, error) {
	p := &parser{v: v}
	c := &Config{
		UpdateInterval:  p.seconds("UPDATE_INTERVAL"),
		ChangeThreshold: p.float("CHANGE_THRESHOLD"),

		BattMin:     p.float("BATT_MIN"),
		BattMax:     p.float("BATT_MAX"),
		BattDivider: p.float("BATT_DIVIDER"),
		BattClamp:   p.bool("BATT_CLAMP"),

		BattADCEnabled: p.bool("BATT_ADC_ENABLED"),
		BattADCI2CAddr: p.addr("BATT_ADC_I2C_ADDR"),
		BattADCChannel: p.int("BATT_ADC_CHANNEL"),

		GPSSerialPort:   p.str("GPS_SERIAL_PORT"),
		GPSBaudRate:     p.int("GPS_BAUD_RATE"),
		GPSReadTimeout:  p.seconds("GPS_READ_TIMEOUT"),
		GPSInitCommands: p.list("GPS_INIT_COMMANDS"),

		LogDir: p.str("LOG_DIR"),

		I2CBus:         p.str("I2C_BUS"),
		DisplayEnabled: p.bool("DISPLAY_ENABLED"),
		DisplayI2CAddr: p.addr("DISPLAY_I2C_ADDR"),
		DisplayWidth:   p.int("DISPLAY_WIDTH"),
		DisplayHeight:  p.int("DISPLAY_HEIGHT"),

		MQTTBroker:          p.str("MQTT_BROKER"),
		MQTTClientIDLogger:  p.str("MQTT_CLIENT_ID_LOGGER"),
		MQTTClientIDConsole: p.str("MQTT_CLIENT_ID_CONSOLE"),
		MQTTClientIDWeb:     p.str("MQTT_CLIENT_ID_WEB"),
		TopicStatus:         p.str("TOPIC_STATUS"),

		WebServerPort: p.int("WEB_SERVER_PORT"),

		LogLevel: p.str("LOG_LEVEL"),
	}
	if p.err != nil {
		return nil, p.err
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// parser converts raw strings and keeps the first error.
type parser struct {
	v   *viper.Viper
	err error
}

func (p *parser) str(key string) string {
	return strings.TrimSpace(p.v.GetString(key))
}

func (p *parser) fail(key, value string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
}

func (p *parser) float(key string) float64 {
	s := p.str(key)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		p.fail(key, s, err)
	}
	return f
}

func (p *parser) int(key string) int {
	s := p.str(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		p.fail(key, s, err)
	}
	return n
}

func (p *parser) bool(key string) bool {
	s := p.str(key)
	b, err := strconv.ParseBool(s)
	if err != nil {
		p.fail(key, s, err)
	}
	return b
}

func (p *parser) addr(key string) uint16 {
	s := p.str(key)
	a, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		p.fail(key, s, err)
	}
	return uint16(a)
}

// seconds accepts either a bare number of seconds ("5.0") or a Go
// duration ("5s", "1500ms").
func (p *parser) seconds(key string) time.Duration {
	s := p.str(key)
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(f * float64(time.Second))
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		p.fail(key, s, err)
	}
	return d
}

func (p *parser) list(key string) []string {
	var out []string
	for _, item := range strings.Split(p.str(key), ";") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// validate checks ranges and required fields.
func (c *Config) validate() error {
	if c.UpdateInterval <= 0 {
		return fmt.Errorf("UPDATE_INTERVAL must be positive")
	}
	if c.ChangeThreshold <= 0 {
		return fmt.Errorf("CHANGE_THRESHOLD must be positive")
	}
	if c.BattMax <= c.BattMin {
		return fmt.Errorf("BATT_MAX must be greater than BATT_MIN")
	}
	if c.BattDivider <= 0 {
		return fmt.Errorf("BATT_DIVIDER must be positive")
	}
	if c.BattADCChannel < 0 || c.BattADCChannel > 3 {
		return fmt.Errorf("BATT_ADC_CHANNEL must be 0-3, got %d", c.BattADCChannel)
	}
	if c.GPSSerialPort == "" {
		return fmt.Errorf("GPS_SERIAL_PORT is required")
	}
	if c.GPSBaudRate <= 0 {
		return fmt.Errorf("GPS_BAUD_RATE is required")
	}
	// The serial driver works in tenths of a second, up to 25.5s.
	if c.GPSReadTimeout < 100*time.Millisecond || c.GPSReadTimeout > 25500*time.Millisecond {
		return fmt.Errorf("GPS_READ_TIMEOUT must be between 0.1 and 25.5 seconds")
	}
	if c.LogDir == "" {
		return fmt.Errorf("LOG_DIR is required")
	}
	if c.DisplayWidth <= 0 || c.DisplayHeight <= 0 || c.DisplayHeight%8 != 0 {
		return fmt.Errorf("DISPLAY_WIDTH/DISPLAY_HEIGHT must be positive, height a multiple of 8")
	}
	// three summary lines and the battery need four text rows
	if c.DisplayWidth < 128 || c.DisplayHeight < 32 {
		return fmt.Errorf("display must be at least 128x32, got %dx%d", c.DisplayWidth, c.DisplayHeight)
	}
	if c.MQTTBroker != "" && c.TopicStatus == "" {
		return fmt.Errorf("TOPIC_STATUS is required when MQTT_BROKER is set")
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Only the first call has any effect.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
