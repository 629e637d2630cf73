package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors the TOML config file layout. All fields are optional;
// zero values leave the existing configuration untouched.
type FileConfig struct {
	Channel  string `toml:"channel"`
	Bitrate  int    `toml:"bitrate"`
	DBCFile  string `toml:"dbc_file"`
	WatchDBC *bool  `toml:"watch_dbc"`

	PollInterval string `toml:"poll_interval"`

	FlickMessageID string `toml:"flick_message_id"`
	FlickSignal    string `toml:"flick_signal"`
	FlickAssert    *int64 `toml:"flick_assert"`
	FlickRelease   *int64 `toml:"flick_release"`
	FlickInterval  string `toml:"flick_interval"`
	FlickJitter    string `toml:"flick_jitter"`
	PulseGap       string `toml:"pulse_gap"`

	Watch []string `toml:"watch"`

	MQTTBroker   string `toml:"mqtt_broker"`
	MQTTTopic    string `toml:"mqtt_topic"`
	MQTTClientID string `toml:"mqtt_client_id"`
	MQTTUsername string `toml:"mqtt_username"`
	MQTTPassword string `toml:"mqtt_password"`
	MQTTQoS      int    `toml:"mqtt_qos"`
	MQTTRetain   *bool  `toml:"mqtt_retain"`

	LogLevel string `toml:"log_level"`
}

// DefaultConfigPath returns the default config file location,
// ~/.canpulse/config.toml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".canpulse", "config.toml")
}

// FileExists reports whether path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// LoadFileConfig reads and parses a TOML config file.
func LoadFileConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var fc FileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return &fc, nil
}

// ApplyFileConfig overlays file values onto cfg. Values from flags that were
// explicitly set (recorded in changed) take precedence and are not
// overwritten.
func ApplyFileConfig(fc *FileConfig, cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("channel", fc.Channel, &cfg.Channel)
	s.setInt("bitrate", fc.Bitrate, &cfg.Bitrate)
	s.setString("dbc", fc.DBCFile, &cfg.DBCFile)
	s.setBool("watch-dbc", fc.WatchDBC, &cfg.WatchDBC)

	if err := s.setDuration("poll", fc.PollInterval, &cfg.PollInterval); err != nil {
		return err
	}

	s.setString("flick-id", fc.FlickMessageID, &cfg.FlickMessageID)
	s.setString("flick-signal", fc.FlickSignal, &cfg.FlickSignal)
	s.setInt64("flick-assert", fc.FlickAssert, &cfg.FlickAssert)
	s.setInt64("flick-release", fc.FlickRelease, &cfg.FlickRelease)
	if err := s.setDuration("flick-interval", fc.FlickInterval, &cfg.FlickInterval); err != nil {
		return err
	}
	if err := s.setDuration("flick-jitter", fc.FlickJitter, &cfg.FlickJitter); err != nil {
		return err
	}
	if err := s.setDuration("pulse-gap", fc.PulseGap, &cfg.PulseGap); err != nil {
		return err
	}

	s.setStrings("watch", fc.Watch, &cfg.Watch)

	s.setString("broker", fc.MQTTBroker, &cfg.MQTTBroker)
	s.setString("topic", fc.MQTTTopic, &cfg.MQTTTopic)
	s.setString("client-id", fc.MQTTClientID, &cfg.MQTTClientID)
	s.setString("username", fc.MQTTUsername, &cfg.MQTTUsername)
	s.setString("password", fc.MQTTPassword, &cfg.MQTTPassword)
	if fc.MQTTQoS > 0 && !changed["qos"] {
		cfg.MQTTQoS = fc.MQTTQoS
	}
	s.setBool("retain", fc.MQTTRetain, &cfg.MQTTRetain)

	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)

	return nil
}
