// Package codec is the boundary between raw frame bytes and named signal
// values. It resolves multiplexed value maps and classifies encode/decode
// failures; the bit-level layout itself is owned by the signal database.
package codec

import (
	"github.com/canpulse/canpulse/internal/domain"
	"github.com/canpulse/canpulse/internal/ports"
)

// Codec encodes signal value maps into frames and decodes frames back,
// delegating bit packing to the signal database. Codec is stateless and
// safe for concurrent use by the read loop and the stimulus scheduler.
type Codec struct {
	db ports.SignalDatabase
}

// New creates a codec over the given signal database.
func New(db ports.SignalDatabase) *Codec {
	return &Codec{db: db}
}

// EncodeFrame packs a complete signal value map into a transmittable frame.
// The value map must hold exactly the signals declared by the message; use
// [BuildValues] to construct one. Returns domain.ErrUnknownMessage when the
// id has no descriptor and *domain.RangeError when a value exceeds its
// signal's bit width.
func (c *Codec) EncodeFrame(id uint32, values domain.SignalValues) (domain.Frame, error) {
	data, err := c.db.Encode(id, values)
	if err != nil {
		return domain.Frame{}, err
	}
	// Identifiers beyond the 11-bit standard range need the extended
	// frame format on the wire.
	return domain.Frame{ID: id, Data: data, Extended: id > 0x7FF}, nil
}

// DecodeFrame resolves a raw frame into named signal values.
//
// Failures are classified per the error taxonomy: domain.ErrUnknownMessage
// for ids absent from the database (benign), *domain.StructuralError for
// known ids whose payload fails to unpack, and *domain.MalformedValueError
// for field values with no semantic mapping.
func (c *Codec) DecodeFrame(frame domain.Frame) (domain.DecodedFrame, error) {
	msg, ok := c.db.MessageByID(frame.ID)
	if !ok {
		return domain.DecodedFrame{}, domain.ErrUnknownMessage
	}

	values, err := c.db.Decode(frame.ID, frame.Data)
	if err != nil {
		return domain.DecodedFrame{}, err
	}

	return domain.DecodedFrame{
		ID:     frame.ID,
		Name:   msg.Name,
		Values: values,
	}, nil
}
