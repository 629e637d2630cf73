package domain

// ByteOrder identifies the bit packing order of a signal.
type ByteOrder int

const (
	// BigEndian is Motorola byte order (DBC byte order 0).
	BigEndian ByteOrder = iota

	// LittleEndian is Intel byte order (DBC byte order 1).
	LittleEndian
)

// Signal describes one bit-packed field of a message.
//
// A signal with MultiplexerIDs set is only present in frames whose
// multiplexer signal carries one of the listed selector values. A nil
// MultiplexerIDs means the signal is always active (or is itself the
// selector when IsMultiplexer is set).
type Signal struct {
	Name      string
	StartBit  int
	Width     int
	ByteOrder ByteOrder
	Signed    bool

	// Factor and Offset translate raw field values to physical values:
	// physical = raw*Factor + Offset.
	Factor float64
	Offset float64

	IsMultiplexer  bool
	MultiplexerIDs []int64
}

// Multiplexed reports whether the signal is only active under specific
// selector values.
func (s *Signal) Multiplexed() bool {
	return len(s.MultiplexerIDs) > 0
}

// ActiveUnder reports whether the signal is decoded for the given selector
// value. Non-multiplexed signals are active under every selector.
func (s *Signal) ActiveUnder(selector int64) bool {
	if !s.Multiplexed() {
		return true
	}
	for _, id := range s.MultiplexerIDs {
		if id == selector {
			return true
		}
	}
	return false
}

// Message is the schema for all frames sharing one CAN identifier.
// Signals are kept in declaration order. Messages are immutable once loaded.
type Message struct {
	ID      uint32
	Name    string
	Length  int
	Signals []Signal
}

// Multiplexer returns the message's multiplexer signal, or nil if the
// message is not multiplexed. At most one signal per message is a
// multiplexer.
func (m *Message) Multiplexer() *Signal {
	for i := range m.Signals {
		if m.Signals[i].IsMultiplexer {
			return &m.Signals[i]
		}
	}
	return nil
}

// SignalByName returns the named signal, or nil if the message does not
// declare it.
func (m *Message) SignalByName(name string) *Signal {
	for i := range m.Signals {
		if m.Signals[i].Name == name {
			return &m.Signals[i]
		}
	}
	return nil
}
