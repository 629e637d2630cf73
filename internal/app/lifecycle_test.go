package app

import (
	"errors"
	"testing"

	"github.com/canpulse/canpulse/internal/domain"
	"github.com/canpulse/canpulse/pkg/log"
)

func TestNewLifecycle(t *testing.T) {
	l := NewLifecycle(log.NewNoopLogger())

	if l.State() != StateStopped {
		t.Errorf("initial state = %v, want StateStopped", l.State())
	}
	if !l.CanStart() {
		t.Error("CanStart() = false for a new lifecycle")
	}
	if l.CanStop() {
		t.Error("CanStop() = true for a new lifecycle")
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateStopped, "Stopped"},
		{StateStarting, "Starting"},
		{StateRunning, "Running"},
		{StateStopping, "Stopping"},
		{StateCrashed, "Crashed"},
		{State(99), "Unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %s, want %s", tt.state, got, tt.want)
		}
	}
}

func TestLifecycle_ValidTransitions(t *testing.T) {
	tests := []struct {
		name string
		path []State
	}{
		{"full run", []State{StateStarting, StateRunning, StateStopping, StateStopped}},
		{"abort during start", []State{StateStarting, StateStopping, StateStopped}},
		{"crash while running", []State{StateStarting, StateRunning, StateCrashed}},
		{"crash during start", []State{StateStarting, StateCrashed}},
		{"restart after crash", []State{StateStarting, StateCrashed, StateStarting, StateRunning}},
		{"stop after crash", []State{StateStarting, StateRunning, StateCrashed, StateStopping, StateStopped}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLifecycle(log.NewNoopLogger())
			for _, next := range tt.path {
				if err := l.TransitionTo(next, "test"); err != nil {
					t.Fatalf("TransitionTo(%v): %v", next, err)
				}
			}
			if l.State() != tt.path[len(tt.path)-1] {
				t.Errorf("State() = %v, want %v", l.State(), tt.path[len(tt.path)-1])
			}
		})
	}
}

func TestLifecycle_InvalidTransitions(t *testing.T) {
	t.Run("start while running", func(t *testing.T) {
		l := NewLifecycle(log.NewNoopLogger())
		mustTransition(t, l, StateStarting, StateRunning)

		err := l.TransitionTo(StateStarting, "test")
		if !errors.Is(err, domain.ErrAlreadyRunning) {
			t.Errorf("err = %v, want ErrAlreadyRunning", err)
		}
	})

	t.Run("stop while stopped", func(t *testing.T) {
		l := NewLifecycle(log.NewNoopLogger())

		err := l.TransitionTo(StateStopping, "test")
		if !errors.Is(err, domain.ErrNotRunning) {
			t.Errorf("err = %v, want ErrNotRunning", err)
		}
	})

	t.Run("run from crashed", func(t *testing.T) {
		l := NewLifecycle(log.NewNoopLogger())
		mustTransition(t, l, StateStarting, StateCrashed)

		err := l.TransitionTo(StateRunning, "test")
		if !errors.Is(err, domain.ErrNotRunning) {
			t.Errorf("err = %v, want ErrNotRunning", err)
		}
	})
}

func TestLifecycle_CanStartCanStop(t *testing.T) {
	l := NewLifecycle(log.NewNoopLogger())
	mustTransition(t, l, StateStarting)

	if l.CanStart() {
		t.Error("CanStart() = true while starting")
	}
	if !l.CanStop() {
		t.Error("CanStop() = false while starting")
	}

	mustTransition(t, l, StateRunning, StateCrashed)
	if !l.CanStart() {
		t.Error("CanStart() = false after crash")
	}
	if !l.CanStop() {
		t.Error("CanStop() = false after crash")
	}
}

func mustTransition(t *testing.T, l *Lifecycle, path ...State) {
	t.Helper()
	for _, next := range path {
		if err := l.TransitionTo(next, "test"); err != nil {
			t.Fatalf("TransitionTo(%v): %v", next, err)
		}
	}
}
