package codec

import "github.com/canpulse/canpulse/internal/domain"

// BuildValues builds a complete signal value map for a message from a
// partial set of caller-specified values. Every declared signal starts at
// defaultValue; names in specified that the message does not declare are
// ignored.
//
// Multiplexer resolution: while walking signals in declaration order, each
// specified signal that is multiplexed records the first entry of its
// selector set as the candidate selector, later signals overwriting
// earlier ones. When the message has a multiplexer signal and a candidate
// was recorded, the multiplexer is set to the candidate, even when the
// caller specified the multiplexer signal explicitly. That override
// reproduces long-standing behavior that downstream tooling depends on;
// see the quirk test in values_test.go before changing it.
func BuildValues(msg *domain.Message, specified map[string]int64, defaultValue int64) domain.SignalValues {
	values := make(domain.SignalValues, len(msg.Signals))
	for i := range msg.Signals {
		values[msg.Signals[i].Name] = defaultValue
	}

	var selector int64
	haveSelector := false
	for i := range msg.Signals {
		sig := &msg.Signals[i]
		v, ok := specified[sig.Name]
		if !ok {
			continue
		}
		values[sig.Name] = v
		if sig.Multiplexed() {
			selector = sig.MultiplexerIDs[0]
			haveSelector = true
		}
	}

	if mux := msg.Multiplexer(); mux != nil && haveSelector {
		values[mux.Name] = selector
	}

	return values
}
