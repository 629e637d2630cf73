// Package mqtt provides an optional subscriber that forwards decoded
// frames to an MQTT broker as JSON.
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/eclipse/paho.golang/packets"
	"github.com/eclipse/paho.golang/paho"
	jsoniter "github.com/json-iterator/go"

	"github.com/canpulse/canpulse/internal/codec"
	"github.com/canpulse/canpulse/internal/domain"
	"github.com/canpulse/canpulse/pkg/log"
)

// Config holds broker connection and publishing parameters.
type Config struct {
	Broker   string
	Topic    string
	ClientID string
	Username string
	Password string
	QoS      byte
	Retain   bool
}

// Publisher decodes observed frames and publishes them to one topic.
// Frames with unknown ids are skipped quietly; publish errors are logged
// and survived, matching the transient-error policy of the bus loops.
type Publisher struct {
	config Config
	client *paho.Client
	codec  *codec.Codec
	logger log.Logger
}

// payload is the wire shape of one decoded frame.
type payload struct {
	ID        uint32              `json:"id"`
	Name      string              `json:"name"`
	Timestamp int64               `json:"t"`
	Signals   domain.SignalValues `json:"signals"`
}

// Connect dials the broker and performs the MQTT connect handshake.
func Connect(ctx context.Context, cfg Config, c *codec.Codec, logger log.Logger) (*Publisher, error) {
	tcpConn, err := net.Dial("tcp", cfg.Broker)
	if err != nil {
		return nil, fmt.Errorf("mqtt: dial %s: %w", cfg.Broker, err)
	}

	client := paho.NewClient(paho.ClientConfig{
		Conn: packets.NewThreadSafeConn(tcpConn),
	})

	cp := &paho.Connect{
		KeepAlive:  30,
		ClientID:   cfg.ClientID,
		CleanStart: true,
		Username:   cfg.Username,
		Password:   []byte(cfg.Password),
	}
	if cfg.Username != "" {
		cp.UsernameFlag = true
	}
	if cfg.Password != "" {
		cp.PasswordFlag = true
	}

	ca, err := client.Connect(ctx, cp)
	if err != nil {
		return nil, fmt.Errorf("mqtt: connect %s: %w", cfg.Broker, err)
	}
	if ca.ReasonCode != 0 {
		return nil, fmt.Errorf("mqtt: connect %s refused: code %d", cfg.Broker, ca.ReasonCode)
	}

	logger.Info("mqtt: connected", log.String("broker", cfg.Broker), log.String("topic", cfg.Topic))

	return &Publisher{
		config: cfg,
		client: client,
		codec:  c,
		logger: logger,
	}, nil
}

// Handle implements registry.Handler.
func (p *Publisher) Handle(ctx context.Context, frame domain.Frame) {
	decoded, err := p.codec.DecodeFrame(frame)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownMessage) {
			return
		}
		p.logger.Debug("mqtt: decode error", log.Uint32("id", frame.ID), log.Err(err))
		return
	}

	body, err := jsoniter.Marshal(payload{
		ID:        decoded.ID,
		Name:      decoded.Name,
		Timestamp: frame.Timestamp.UnixMilli(),
		Signals:   decoded.Values,
	})
	if err != nil {
		p.logger.Error("mqtt: marshal failed", log.Err(err))
		return
	}

	if _, err := p.client.Publish(ctx, &paho.Publish{
		Topic:   p.config.Topic,
		QoS:     p.config.QoS,
		Retain:  p.config.Retain,
		Payload: body,
	}); err != nil {
		p.logger.Error("mqtt: publish failed", log.String("topic", p.config.Topic), log.Err(err))
	}
}

// Close sends a clean disconnect to the broker.
func (p *Publisher) Close() error {
	return p.client.Disconnect(&paho.Disconnect{ReasonCode: 0})
}
