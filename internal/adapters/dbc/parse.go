package dbc

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/canpulse/canpulse/internal/domain"
)

// The parser covers the DBC subset the runtime needs: message definitions
// (BO_), signal definitions (SG_) including plain multiplexing (M / mN).
// Value tables, comments, attributes and node lists are skipped.

const (
	kwMessage = "BO_"
	kwSignal  = "SG_"
)

// extendedIDFlag marks 29-bit identifiers in DBC message ids.
const extendedIDFlag = 0x80000000

var (
	messageRe = regexp.MustCompile(`^BO_\s+(\d+)\s+(\w+)\s*:\s*(\d+)\s+\S+`)
	signalRe  = regexp.MustCompile(`^SG_\s+(\w+)\s*(M|m\d+)?\s*:\s*(\d+)\|(\d+)@([01])([+-])\s*\(([^,]+),([^)]+)\)`)
)

// parseFile reads a DBC file and returns descriptors keyed by frame id.
func parseFile(path string) (map[uint32]*domain.Message, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parse(f)
}

func parse(r io.Reader) (map[uint32]*domain.Message, error) {
	messages := make(map[uint32]*domain.Message)
	var current *domain.Message

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		switch {
		case strings.HasPrefix(line, kwMessage):
			msg, err := parseMessage(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			messages[msg.ID] = msg
			current = msg

		case strings.HasPrefix(line, kwSignal):
			if current == nil {
				return nil, fmt.Errorf("line %d: signal outside message definition", lineNo)
			}
			sig, err := parseSignal(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			if sig.IsMultiplexer && current.Multiplexer() != nil {
				return nil, fmt.Errorf("line %d: message %s declares a second multiplexer %q", lineNo, current.Name, sig.Name)
			}
			if last := lastByte(&sig); last >= current.Length {
				return nil, fmt.Errorf("line %d: signal %q (start %d, width %d) overruns the %d-byte payload of message %s",
					lineNo, sig.Name, sig.StartBit, sig.Width, current.Length, current.Name)
			}
			current.Signals = append(current.Signals, sig)

		default:
			// Anything else ends the current message block once a blank
			// line or unrelated section starts.
			if line == "" {
				current = nil
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return messages, nil
}

// lastByte returns the index of the last payload byte a signal touches.
// Rejecting overruns here keeps the encoder free of bounds checks: a loaded
// descriptor is guaranteed to fit its message.
func lastByte(sig *domain.Signal) int {
	if sig.ByteOrder == domain.LittleEndian {
		return (sig.StartBit + sig.Width - 1) / 8
	}
	// Motorola walks down from the start bit and wraps to bit 7 of the
	// following byte.
	rest := sig.Width - (sig.StartBit%8 + 1)
	if rest <= 0 {
		return sig.StartBit / 8
	}
	return sig.StartBit/8 + (rest+7)/8
}

func parseMessage(line string) (*domain.Message, error) {
	m := messageRe.FindStringSubmatch(line)
	if m == nil {
		return nil, fmt.Errorf("malformed message definition: %s", line)
	}

	rawID, err := strconv.ParseUint(m[1], 10, 32)
	if err != nil {
		return nil, fmt.Errorf("message id: %w", err)
	}
	length, err := strconv.Atoi(m[3])
	if err != nil {
		return nil, fmt.Errorf("message length: %w", err)
	}

	id := uint32(rawID)
	if id&extendedIDFlag != 0 {
		id &= 0x1FFFFFFF
	}
	return &domain.Message{ID: id, Name: m[2], Length: length}, nil
}

func parseSignal(line string) (domain.Signal, error) {
	m := signalRe.FindStringSubmatch(line)
	if m == nil {
		return domain.Signal{}, fmt.Errorf("malformed signal definition: %s", line)
	}

	startBit, err := strconv.Atoi(m[3])
	if err != nil {
		return domain.Signal{}, fmt.Errorf("start bit: %w", err)
	}
	width, err := strconv.Atoi(m[4])
	if err != nil {
		return domain.Signal{}, fmt.Errorf("bit width: %w", err)
	}
	if width <= 0 || width > 64 {
		return domain.Signal{}, fmt.Errorf("signal %q has invalid bit width %d", m[1], width)
	}
	factor, err := strconv.ParseFloat(strings.TrimSpace(m[7]), 64)
	if err != nil {
		return domain.Signal{}, fmt.Errorf("factor: %w", err)
	}
	offset, err := strconv.ParseFloat(strings.TrimSpace(m[8]), 64)
	if err != nil {
		return domain.Signal{}, fmt.Errorf("offset: %w", err)
	}

	sig := domain.Signal{
		Name:     m[1],
		StartBit: startBit,
		Width:    width,
		Signed:   m[6] == "-",
		Factor:   factor,
		Offset:   offset,
	}
	if m[5] == "1" {
		sig.ByteOrder = domain.LittleEndian
	} else {
		sig.ByteOrder = domain.BigEndian
	}

	switch mux := m[2]; {
	case mux == "M":
		sig.IsMultiplexer = true
	case strings.HasPrefix(mux, "m"):
		sel, err := strconv.ParseInt(mux[1:], 10, 64)
		if err != nil {
			return domain.Signal{}, fmt.Errorf("multiplexer selector: %w", err)
		}
		sig.MultiplexerIDs = []int64{sel}
	}

	return sig, nil
}
