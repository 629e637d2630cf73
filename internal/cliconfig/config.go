// Package cliconfig resolves the canpulse CLI configuration from flags,
// environment variables and a TOML file, in that precedence order.
package cliconfig

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config holds CLI configuration for canpulse.
//
// FlickMessageID is kept as a string so ids can be written in hex
// ("0x3c2") in flags, env and the config file alike; ParseFrameID converts
// it. Watch entries use the "id:signal,signal" form parsed by ParseWatch.
type Config struct {
	Channel  string
	Bitrate  int
	DBCFile  string
	WatchDBC bool

	PollInterval time.Duration

	FlickMessageID string
	FlickSignal    string
	FlickAssert    int64
	FlickRelease   int64
	FlickInterval  time.Duration
	FlickJitter    time.Duration
	PulseGap       time.Duration

	Watch []string

	MQTTBroker   string
	MQTTTopic    string
	MQTTClientID string
	MQTTUsername string
	MQTTPassword string
	MQTTQoS      int
	MQTTRetain   bool

	LogLevel string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Channel:        "can0",
		Bitrate:        500000,
		PollInterval:   time.Millisecond,
		FlickMessageID: "0x3c2",
		FlickSignal:    "VCLEFT_swcLeftScrollTicks",
		FlickAssert:    -1,
		FlickRelease:   1,
		FlickInterval:  10 * time.Second,
		FlickJitter:    2 * time.Second,
		PulseGap:       10 * time.Millisecond,
		MQTTClientID:   "canpulse",
		LogLevel:       "info",
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.DBCFile == "" {
		return fmt.Errorf("dbc file is required")
	}
	if _, err := ParseFrameID(c.FlickMessageID); err != nil {
		return err
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if c.FlickInterval <= 0 {
		return fmt.Errorf("flick interval must be positive")
	}
	if c.FlickJitter < 0 || c.FlickJitter > c.FlickInterval {
		return fmt.Errorf("flick jitter must be within [0, flick interval]")
	}
	if c.MQTTQoS < 0 || c.MQTTQoS > 2 {
		return fmt.Errorf("mqtt qos must be 0, 1 or 2")
	}
	for _, w := range c.Watch {
		if _, _, err := ParseWatch(w); err != nil {
			return err
		}
	}
	return nil
}

// ParseFrameID parses a CAN identifier written in decimal or hex.
func ParseFrameID(s string) (uint32, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(s), 0, 32)
	if err != nil {
		return 0, fmt.Errorf("parse frame id %q: %w", s, err)
	}
	return uint32(id), nil
}

// ParseWatch parses one "id:signal[,signal...]" watch entry.
func ParseWatch(s string) (uint32, []string, error) {
	idPart, sigPart, ok := strings.Cut(s, ":")
	if !ok {
		return 0, nil, fmt.Errorf("watch entry %q: want id:signal[,signal...]", s)
	}
	id, err := ParseFrameID(idPart)
	if err != nil {
		return 0, nil, err
	}

	var signals []string
	for _, name := range strings.Split(sigPart, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		signals = append(signals, name)
	}
	if len(signals) == 0 {
		return 0, nil, fmt.Errorf("watch entry %q lists no signals", s)
	}
	return id, signals, nil
}

// configSetter helps apply configuration values while respecting flag
// precedence. It only applies values if the corresponding flag hasn't been
// explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setStrings sets a string slice if non-empty and flag not changed.
func (s *configSetter) setStrings(flag string, value []string, dst *[]string) {
	if len(value) == 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt64 sets an int64 value from a pointer if not nil and flag not changed.
func (s *configSetter) setInt64(flag string, value *int64, dst *int64) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setDuration parses and sets a duration from string if valid and flag not
// changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if
// valid. Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = i
	return nil
}

// setInt64FromString parses a string to int64 and sets the destination.
func (s *configSetter) setInt64FromString(flag, value string, dst *int64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = i
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
