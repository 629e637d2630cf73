package sinks

import (
	"context"
	"errors"
	"fmt"

	"github.com/canpulse/canpulse/internal/codec"
	"github.com/canpulse/canpulse/internal/domain"
	"github.com/canpulse/canpulse/pkg/log"
)

// SignalWatch reports the value of one signal of one message every time a
// matching frame is observed. Frames for other ids are ignored, so many
// watches can share the registry cheaply.
type SignalWatch struct {
	id     uint32
	signal string
	codec  *codec.Codec
	logger log.Logger
}

// NewSignalWatch creates a watch for the given frame id and signal name.
func NewSignalWatch(id uint32, signal string, c *codec.Codec, logger log.Logger) *SignalWatch {
	return &SignalWatch{id: id, signal: signal, codec: c, logger: logger}
}

// Name returns a stable subscriber identity for this watch.
func (w *SignalWatch) Name() string {
	return fmt.Sprintf("watch:0x%x:%s", w.id, w.signal)
}

// Handle implements registry.Handler.
func (w *SignalWatch) Handle(ctx context.Context, frame domain.Frame) {
	if frame.ID != w.id {
		return
	}

	decoded, err := w.codec.DecodeFrame(frame)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownMessage) {
			return
		}
		w.logger.Debug("signal watch decode error",
			log.Uint32("id", w.id),
			log.Err(err),
		)
		return
	}

	value, ok := decoded.Values[w.signal]
	if !ok {
		// Absent under the frame's multiplexer selector, or not declared.
		w.logger.Warn("signal not present in frame",
			log.String("signal", w.signal),
			log.Uint32("id", w.id),
		)
		return
	}

	w.logger.Info("signal value",
		log.String("signal", w.signal),
		log.Int64("value", value),
	)
}
