package ports

import "github.com/canpulse/canpulse/internal/domain"

// SignalDatabase provides message descriptors and the raw bit-level
// encode/decode for one vehicle signal definition file. Implementations
// are loaded once at startup; the core never parses the definition file
// itself.
type SignalDatabase interface {
	// MessageByID returns the descriptor for a frame identifier.
	// The second return value is false when the id is not in the database.
	MessageByID(id uint32) (*domain.Message, bool)

	// Decode unpacks a raw payload into named signal values.
	// It returns domain.ErrUnknownMessage for an id not in the database,
	// *domain.StructuralError for a payload that does not fit the
	// descriptor, and *domain.MalformedValueError for field values with
	// no semantic mapping.
	Decode(id uint32, data []byte) (domain.SignalValues, error)

	// Encode packs a complete signal value map into a raw payload.
	// Values must contain exactly the signals declared by the message.
	// It returns domain.ErrUnknownMessage or *domain.RangeError.
	Encode(id uint32, values domain.SignalValues) ([]byte, error)
}
