package canpulse

import (
	"fmt"
	"time"
)

// Defaults mirror the reference deployment: the left scroll wheel switch
// status message on a Model 3 vehicle bus, flicked roughly every ten
// seconds.
const (
	DefaultChannel       = "can0"
	DefaultBitrate       = 500000
	DefaultFlickMessage  = 0x3c2
	DefaultFlickSignal   = "VCLEFT_swcLeftScrollTicks"
	DefaultFlickInterval = 10 * time.Second
	DefaultFlickJitter   = 2 * time.Second
	DefaultPulseGap      = 10 * time.Millisecond
	DefaultPollInterval  = time.Millisecond
)

// Watch selects one message's signals for the selective signal log.
type Watch struct {
	ID      uint32
	Signals []string
}

// MQTTConfig configures the optional decoded-frame publisher. An empty
// Broker disables it.
type MQTTConfig struct {
	Broker   string
	Topic    string
	ClientID string
	Username string
	Password string
	QoS      byte
	Retain   bool
}

// Config holds the configuration for a Canpulse instance.
type Config struct {
	// Channel is the CAN interface name (e.g. "can0").
	Channel string

	// Bitrate is the nominal bus bitrate. SocketCAN interfaces are
	// configured out of band (ip link); the value is informational and
	// logged at startup.
	Bitrate int

	// DBCPath locates the signal definition file.
	DBCPath string

	// WatchDBC enables live reload of the definition file.
	WatchDBC bool

	// PollInterval is the read loop's idle wait.
	PollInterval time.Duration

	// Stimulus parameters; see internal/app.FlickConfig.
	FlickMessageID uint32
	FlickSignal    string
	FlickAssert    int64
	FlickRelease   int64
	FlickInterval  time.Duration
	FlickJitter    time.Duration
	PulseGap       time.Duration

	// Watches lists signals reported by the selective signal log.
	Watches []Watch

	// MQTT configures the optional broker publisher.
	MQTT MQTTConfig
}

// SetDefaults fills zero values with defaults.
func (c *Config) SetDefaults() {
	if c.Channel == "" {
		c.Channel = DefaultChannel
	}
	if c.Bitrate <= 0 {
		c.Bitrate = DefaultBitrate
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.FlickMessageID == 0 {
		c.FlickMessageID = DefaultFlickMessage
	}
	if c.FlickSignal == "" {
		c.FlickSignal = DefaultFlickSignal
	}
	if c.FlickAssert == 0 && c.FlickRelease == 0 {
		c.FlickAssert = -1
		c.FlickRelease = 1
	}
	if c.FlickInterval <= 0 {
		c.FlickInterval = DefaultFlickInterval
	}
	if c.FlickJitter == 0 {
		c.FlickJitter = DefaultFlickJitter
	} else if c.FlickJitter < 0 {
		// Negative disables jitter; zero means "use the default".
		c.FlickJitter = 0
	}
	if c.PulseGap <= 0 {
		c.PulseGap = DefaultPulseGap
	}
	if c.MQTT.Broker != "" && c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "canpulse"
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.DBCPath == "" {
		return fmt.Errorf("dbc path is required")
	}
	if c.FlickJitter > c.FlickInterval {
		return fmt.Errorf("flick jitter %v exceeds interval %v", c.FlickJitter, c.FlickInterval)
	}
	if c.MQTT.Broker != "" && c.MQTT.Topic == "" {
		return fmt.Errorf("mqtt topic is required when a broker is configured")
	}
	return nil
}
