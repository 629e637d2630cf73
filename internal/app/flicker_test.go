package app

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/canpulse/canpulse/internal/codec"
	"github.com/canpulse/canpulse/internal/domain"
	"github.com/canpulse/canpulse/pkg/log"
)

// mockDatabase implements ports.SignalDatabase with a single one-signal
// message. Encode writes the signal value into byte 0 so tests can read
// the phase back out of sent frames.
type mockDatabase struct {
	messages  map[uint32]*domain.Message
	encodeErr error
}

func newMockDatabase() *mockDatabase {
	return &mockDatabase{
		messages: map[uint32]*domain.Message{
			0x3c2: {
				ID:     0x3c2,
				Name:   "SwitchStatus",
				Length: 1,
				Signals: []domain.Signal{
					{Name: "Tick", StartBit: 0, Width: 8, ByteOrder: domain.LittleEndian, Signed: true, Factor: 1},
				},
			},
		},
	}
}

func (m *mockDatabase) MessageByID(id uint32) (*domain.Message, bool) {
	msg, ok := m.messages[id]
	return msg, ok
}

func (m *mockDatabase) Decode(id uint32, data []byte) (domain.SignalValues, error) {
	if _, ok := m.messages[id]; !ok {
		return nil, domain.ErrUnknownMessage
	}
	return domain.SignalValues{"Tick": int64(int8(data[0]))}, nil
}

func (m *mockDatabase) Encode(id uint32, values domain.SignalValues) ([]byte, error) {
	if m.encodeErr != nil {
		return nil, m.encodeErr
	}
	if _, ok := m.messages[id]; !ok {
		return nil, domain.ErrUnknownMessage
	}
	return []byte{byte(int8(values["Tick"]))}, nil
}

func testFlickConfig() FlickConfig {
	return FlickConfig{
		MessageID:    0x3c2,
		Signal:       "Tick",
		AssertValue:  -1,
		ReleaseValue: 1,
		Interval:     5 * time.Millisecond,
		Jitter:       0,
		PulseGap:     time.Millisecond,
	}
}

func TestFlicker_SendsAssertThenRelease(t *testing.T) {
	db := newMockDatabase()
	transport := &mockTransport{}
	f := NewFlicker(testFlickConfig(), db, codec.New(db), transport, log.NewNoopLogger(), rand.New(rand.NewSource(1)))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if err := f.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run = %v, want context.DeadlineExceeded", err)
	}

	sent := transport.Sent()
	if len(sent) < 4 {
		t.Fatalf("sent %d frames, want at least two full cycles", len(sent))
	}
	for i, frame := range sent {
		if frame.ID != 0x3c2 {
			t.Fatalf("frame %d id = 0x%x, want 0x3c2", i, frame.ID)
		}
		want := int8(-1)
		if i%2 == 1 {
			want = 1
		}
		if got := int8(frame.Data[0]); got != want {
			t.Errorf("frame %d value = %d, want %d", i, got, want)
		}
	}
}

func TestFlicker_UnknownMessageIsStartupError(t *testing.T) {
	db := newMockDatabase()
	transport := &mockTransport{}
	cfg := testFlickConfig()
	cfg.MessageID = 0x999
	f := NewFlicker(cfg, db, codec.New(db), transport, log.NewNoopLogger(), rand.New(rand.NewSource(1)))

	err := f.Run(context.Background())
	if err == nil || errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v, want startup error", err)
	}
	if len(transport.Sent()) != 0 {
		t.Error("frames sent despite unknown message")
	}
}

func TestFlicker_UnknownSignalIsStartupError(t *testing.T) {
	db := newMockDatabase()
	cfg := testFlickConfig()
	cfg.Signal = "NotASignal"
	f := NewFlicker(cfg, db, codec.New(db), &mockTransport{}, log.NewNoopLogger(), rand.New(rand.NewSource(1)))

	if err := f.Run(context.Background()); err == nil {
		t.Fatal("Run = nil, want startup error")
	}
}

func TestFlicker_RangeErrorSkipsCycle(t *testing.T) {
	db := newMockDatabase()
	db.encodeErr = &domain.RangeError{ID: 0x3c2, Signal: "Tick", Value: 300, Width: 8}
	transport := &mockTransport{}
	f := NewFlicker(testFlickConfig(), db, codec.New(db), transport, log.NewNoopLogger(), rand.New(rand.NewSource(1)))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := f.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run = %v, want context.DeadlineExceeded", err)
	}
	if len(transport.Sent()) != 0 {
		t.Errorf("sent %d frames despite range error", len(transport.Sent()))
	}
}

func TestFlicker_NextIntervalWithinJitterBounds(t *testing.T) {
	cfg := testFlickConfig()
	cfg.Interval = 10 * time.Second
	cfg.Jitter = 2 * time.Second

	db := newMockDatabase()
	f := NewFlicker(cfg, db, codec.New(db), &mockTransport{}, log.NewNoopLogger(), rand.New(rand.NewSource(42)))

	min, max := cfg.Interval-cfg.Jitter, cfg.Interval+cfg.Jitter
	sawLow, sawHigh := false, false
	for i := 0; i < 10000; i++ {
		d := f.nextInterval()
		if d < min || d > max {
			t.Fatalf("interval %v outside [%v, %v]", d, min, max)
		}
		if d < cfg.Interval {
			sawLow = true
		}
		if d > cfg.Interval {
			sawHigh = true
		}
	}
	if !sawLow || !sawHigh {
		t.Error("jitter never produced values on both sides of the base interval")
	}
}

func TestFlicker_ZeroJitterIsDeterministic(t *testing.T) {
	cfg := testFlickConfig()
	cfg.Interval = 10 * time.Second
	cfg.Jitter = 0

	db := newMockDatabase()
	f := NewFlicker(cfg, db, codec.New(db), &mockTransport{}, log.NewNoopLogger(), rand.New(rand.NewSource(1)))

	for i := 0; i < 100; i++ {
		if d := f.nextInterval(); d != cfg.Interval {
			t.Fatalf("interval = %v, want %v", d, cfg.Interval)
		}
	}
}
