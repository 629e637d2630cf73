// Package sinks provides the built-in decode consumers registered on the
// subscriber registry: a full traffic logger and selective signal watches.
package sinks

import (
	"context"
	"errors"

	"github.com/canpulse/canpulse/internal/codec"
	"github.com/canpulse/canpulse/internal/domain"
	"github.com/canpulse/canpulse/pkg/log"
)

// FrameLog decodes every observed frame and logs it. Unknown ids are
// expected traffic on a shared bus and go to debug; decode failures are
// logged with the raw bytes and receipt timestamp so the frame can be
// reconstructed offline.
type FrameLog struct {
	codec  *codec.Codec
	logger log.Logger
}

// NewFrameLog creates a frame logger over the given codec.
func NewFrameLog(c *codec.Codec, logger log.Logger) *FrameLog {
	return &FrameLog{codec: c, logger: logger}
}

// Handle implements registry.Handler.
func (l *FrameLog) Handle(ctx context.Context, frame domain.Frame) {
	decoded, err := l.codec.DecodeFrame(frame)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownMessage) {
			l.logger.Debug("received unknown message",
				log.Uint32("id", frame.ID),
				log.Hex("data", frame.Data),
			)
			return
		}
		// Structural and malformed-value failures are handled the same
		// way: diagnostic detail, loop continues.
		l.logger.Debug("decode error",
			log.Err(err),
			log.Uint32("id", frame.ID),
			log.Hex("data", frame.Data),
			log.Time("timestamp", frame.Timestamp),
		)
		return
	}

	l.logger.Info("received message",
		log.String("message", decoded.Name),
		log.Any("signals", decoded.Values),
	)
}
