package cliconfig

import (
	"os"
	"strings"
)

// ApplyEnvConfig overlays CANPULSE_* environment variables onto cfg. Flags
// that were explicitly set take precedence; environment beats the config
// file because it runs after ApplyFileConfig.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("channel", os.Getenv("CANPULSE_CHANNEL"), &cfg.Channel)
	if err := s.setIntFromString("bitrate", os.Getenv("CANPULSE_BITRATE"), &cfg.Bitrate); err != nil {
		return err
	}
	s.setString("dbc", os.Getenv("CANPULSE_DBC_FILE"), &cfg.DBCFile)
	s.setBoolFromString("watch-dbc", os.Getenv("CANPULSE_WATCH_DBC"), &cfg.WatchDBC)

	if err := s.setDuration("poll", os.Getenv("CANPULSE_POLL_INTERVAL"), &cfg.PollInterval); err != nil {
		return err
	}

	s.setString("flick-id", os.Getenv("CANPULSE_FLICK_MESSAGE_ID"), &cfg.FlickMessageID)
	s.setString("flick-signal", os.Getenv("CANPULSE_FLICK_SIGNAL"), &cfg.FlickSignal)
	if err := s.setInt64FromString("flick-assert", os.Getenv("CANPULSE_FLICK_ASSERT"), &cfg.FlickAssert); err != nil {
		return err
	}
	if err := s.setInt64FromString("flick-release", os.Getenv("CANPULSE_FLICK_RELEASE"), &cfg.FlickRelease); err != nil {
		return err
	}
	if err := s.setDuration("flick-interval", os.Getenv("CANPULSE_FLICK_INTERVAL"), &cfg.FlickInterval); err != nil {
		return err
	}
	if err := s.setDuration("flick-jitter", os.Getenv("CANPULSE_FLICK_JITTER"), &cfg.FlickJitter); err != nil {
		return err
	}
	if err := s.setDuration("pulse-gap", os.Getenv("CANPULSE_PULSE_GAP"), &cfg.PulseGap); err != nil {
		return err
	}

	if v := os.Getenv("CANPULSE_WATCH"); v != "" && !changed["watch"] {
		var entries []string
		for _, e := range strings.Split(v, ";") {
			e = strings.TrimSpace(e)
			if e != "" {
				entries = append(entries, e)
			}
		}
		if len(entries) > 0 {
			cfg.Watch = entries
		}
	}

	s.setString("broker", os.Getenv("CANPULSE_MQTT_BROKER"), &cfg.MQTTBroker)
	s.setString("topic", os.Getenv("CANPULSE_MQTT_TOPIC"), &cfg.MQTTTopic)
	s.setString("client-id", os.Getenv("CANPULSE_MQTT_CLIENT_ID"), &cfg.MQTTClientID)
	s.setString("username", os.Getenv("CANPULSE_MQTT_USERNAME"), &cfg.MQTTUsername)
	s.setString("password", os.Getenv("CANPULSE_MQTT_PASSWORD"), &cfg.MQTTPassword)
	if err := s.setIntFromString("qos", os.Getenv("CANPULSE_MQTT_QOS"), &cfg.MQTTQoS); err != nil {
		return err
	}
	s.setBoolFromString("retain", os.Getenv("CANPULSE_MQTT_RETAIN"), &cfg.MQTTRetain)

	s.setString("log-level", os.Getenv("CANPULSE_LOG_LEVEL"), &cfg.LogLevel)

	return nil
}
