// Package dbc implements the signal database port over a DBC definition
// file: descriptor lookup, bit-level encode/decode, and live reload.
package dbc

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/canpulse/canpulse/internal/domain"
)

// Database holds message descriptors loaded from a DBC file and implements
// ports.SignalDatabase. All methods are safe for concurrent use; Reload
// swaps the descriptor set atomically under the lock.
type Database struct {
	path string

	mu       sync.RWMutex
	messages map[uint32]*domain.Message
}

// Load parses the DBC file at path and returns a ready database.
// A load failure here is a startup failure; callers surface it before any
// loop starts.
func Load(path string) (*Database, error) {
	messages, err := parseFile(path)
	if err != nil {
		return nil, fmt.Errorf("load dbc %s: %w", path, err)
	}
	return &Database{path: path, messages: messages}, nil
}

// Reload re-parses the definition file and swaps the descriptor set.
// On parse failure the previous descriptors stay in effect.
func (d *Database) Reload() error {
	messages, err := parseFile(d.path)
	if err != nil {
		return fmt.Errorf("reload dbc %s: %w", d.path, err)
	}
	d.mu.Lock()
	d.messages = messages
	d.mu.Unlock()
	return nil
}

// Path returns the definition file the database was loaded from.
func (d *Database) Path() string {
	return d.path
}

// Len returns the number of message descriptors.
func (d *Database) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.messages)
}

// MessageByID returns the descriptor for a frame identifier.
func (d *Database) MessageByID(id uint32) (*domain.Message, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	msg, ok := d.messages[id]
	return msg, ok
}

// Decode unpacks a raw payload into named signal values.
//
// For a multiplexed message the selector is decoded first and only signals
// active under it are unpacked. A selector value no declared signal is
// active under yields a *domain.MalformedValueError.
func (d *Database) Decode(id uint32, data []byte) (domain.SignalValues, error) {
	msg, ok := d.MessageByID(id)
	if !ok {
		return nil, domain.ErrUnknownMessage
	}

	if len(data) < msg.Length {
		return nil, &domain.StructuralError{
			ID:        id,
			Data:      data,
			Timestamp: time.Now(),
			Reason:    fmt.Sprintf("payload is %d bytes, descriptor requires %d", len(data), msg.Length),
		}
	}

	var selector int64
	hasSelector := false
	if mux := msg.Multiplexer(); mux != nil {
		raw, err := unpack(data, mux)
		if err != nil {
			return nil, structural(id, data, err)
		}
		selector = physical(raw, mux)
		hasSelector = true

		claimed := false
		multiplexed := false
		for i := range msg.Signals {
			if !msg.Signals[i].Multiplexed() {
				continue
			}
			multiplexed = true
			if msg.Signals[i].ActiveUnder(selector) {
				claimed = true
				break
			}
		}
		if multiplexed && !claimed {
			return nil, &domain.MalformedValueError{ID: id, Signal: mux.Name, Value: selector}
		}
	}

	values := make(domain.SignalValues, len(msg.Signals))
	for i := range msg.Signals {
		sig := &msg.Signals[i]
		if hasSelector && !sig.ActiveUnder(selector) {
			continue
		}
		raw, err := unpack(data, sig)
		if err != nil {
			return nil, structural(id, data, err)
		}
		values[sig.Name] = physical(raw, sig)
	}
	return values, nil
}

// Encode packs a complete signal value map into a raw payload. Signals not
// active under the map's selector value are left zero.
func (d *Database) Encode(id uint32, values domain.SignalValues) ([]byte, error) {
	msg, ok := d.MessageByID(id)
	if !ok {
		return nil, domain.ErrUnknownMessage
	}

	var selector int64
	hasSelector := false
	if mux := msg.Multiplexer(); mux != nil {
		v, ok := values[mux.Name]
		if !ok {
			return nil, fmt.Errorf("canpulse: encode 0x%x: missing multiplexer signal %q", id, mux.Name)
		}
		selector = v
		hasSelector = true
	}

	data := make([]byte, msg.Length)
	for i := range msg.Signals {
		sig := &msg.Signals[i]
		if hasSelector && !sig.ActiveUnder(selector) {
			continue
		}
		v, ok := values[sig.Name]
		if !ok {
			return nil, fmt.Errorf("canpulse: encode 0x%x: missing signal %q", id, sig.Name)
		}
		raw, err := rawValue(v, sig, id)
		if err != nil {
			return nil, err
		}
		pack(data, sig, raw)
	}
	return data, nil
}

func structural(id uint32, data []byte, err error) *domain.StructuralError {
	return &domain.StructuralError{
		ID:        id,
		Data:      data,
		Timestamp: time.Now(),
		Reason:    err.Error(),
	}
}

// unpack extracts the raw field bits of one signal.
func unpack(data []byte, sig *domain.Signal) (uint64, error) {
	var raw uint64
	byteIdx := sig.StartBit / 8
	bitIdx := sig.StartBit % 8

	for i := 0; i < sig.Width; i++ {
		if byteIdx < 0 || byteIdx >= len(data) {
			return 0, fmt.Errorf("signal %q runs past payload end", sig.Name)
		}
		bit := uint64(data[byteIdx]>>uint(bitIdx)) & 1

		if sig.ByteOrder == domain.LittleEndian {
			raw |= bit << uint(i)
			bitIdx++
			if bitIdx == 8 {
				bitIdx = 0
				byteIdx++
			}
		} else {
			// Motorola: start bit is the MSB, walk down and wrap to
			// bit 7 of the following byte.
			raw |= bit << uint(sig.Width-1-i)
			bitIdx--
			if bitIdx < 0 {
				bitIdx = 7
				byteIdx++
			}
		}
	}
	return raw, nil
}

// pack writes the raw field bits of one signal. The payload is sized from
// the descriptor and the parser rejects layouts that overrun it (see
// lastByte), so bounds hold.
func pack(data []byte, sig *domain.Signal, raw uint64) {
	byteIdx := sig.StartBit / 8
	bitIdx := sig.StartBit % 8

	for i := 0; i < sig.Width; i++ {
		var bit uint64
		if sig.ByteOrder == domain.LittleEndian {
			bit = (raw >> uint(i)) & 1
		} else {
			bit = (raw >> uint(sig.Width-1-i)) & 1
		}
		if bit != 0 {
			data[byteIdx] |= 1 << uint(bitIdx)
		}

		if sig.ByteOrder == domain.LittleEndian {
			bitIdx++
			if bitIdx == 8 {
				bitIdx = 0
				byteIdx++
			}
		} else {
			bitIdx--
			if bitIdx < 0 {
				bitIdx = 7
				byteIdx++
			}
		}
	}
}

// physical converts a raw field value to its physical integer value,
// applying sign extension and the factor/offset transform.
func physical(raw uint64, sig *domain.Signal) int64 {
	v := int64(raw)
	if sig.Signed && sig.Width < 64 && raw&(1<<uint(sig.Width-1)) != 0 {
		v = int64(raw | ^uint64(0)<<uint(sig.Width))
	}
	if sig.Factor == 1 && sig.Offset == 0 {
		return v
	}
	return int64(math.Round(float64(v)*sig.Factor + sig.Offset))
}

// rawValue converts a physical value back to raw field bits, checking the
// declared bit width.
func rawValue(v int64, sig *domain.Signal, id uint32) (uint64, error) {
	raw := v
	if sig.Factor != 1 || sig.Offset != 0 {
		raw = int64(math.Round((float64(v) - sig.Offset) / sig.Factor))
	}

	if sig.Signed {
		min := int64(-1) << uint(sig.Width-1)
		max := int64(1)<<uint(sig.Width-1) - 1
		if raw < min || raw > max {
			return 0, &domain.RangeError{ID: id, Signal: sig.Name, Value: v, Width: sig.Width}
		}
	} else {
		if raw < 0 || (sig.Width < 64 && uint64(raw) > uint64(1)<<uint(sig.Width)-1) {
			return 0, &domain.RangeError{ID: id, Signal: sig.Name, Value: v, Width: sig.Width}
		}
	}

	mask := ^uint64(0)
	if sig.Width < 64 {
		mask = uint64(1)<<uint(sig.Width) - 1
	}
	return uint64(raw) & mask, nil
}
