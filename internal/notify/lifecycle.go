package notify

import (
	"context"
	"fmt"
	"sync"
)

// State is the connection state of a messaging channel
type State int

const (
	StateUninitialized State = iota
	StateAwaitingAuth
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateAwaitingAuth:
		return "awaiting_auth"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

var transitions = map[State][]State{
	StateUninitialized: {StateAwaitingAuth},
	StateAwaitingAuth:  {StateReady, StateFailed},
	StateReady:         {StateFailed},
}

// Lifecycle is the state machine shared by channel implementations. It
// settles exactly once, when the channel becomes ready or fails.
type Lifecycle struct {
	mu      sync.Mutex
	state   State
	err     error
	settled chan struct{}
}

// NewLifecycle returns a lifecycle in the uninitialized state
func NewLifecycle() *Lifecycle {
	return &Lifecycle{settled: make(chan struct{})}
}

// Transition moves to the given state. cause is recorded when moving to StateFailed.
func (l *Lifecycle) Transition(to State, cause error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	allowed := false
	for _, s := range transitions[l.state] {
		if s == to {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("invalid channel transition %s -> %s", l.state, to)
	}

	from := l.state
	l.state = to
	if to == StateFailed {
		l.err = cause
		if l.err == nil {
			l.err = ErrNotReady
		}
	}
	if from == StateAwaitingAuth {
		close(l.settled)
	}
	return nil
}

// State returns the current state
func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Err returns the recorded failure, if any
func (l *Lifecycle) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// WaitReady blocks until the channel is ready, fails, or ctx is done
func (l *Lifecycle) WaitReady(ctx context.Context) error {
	select {
	case <-l.settled:
	case <-ctx.Done():
		return ctx.Err()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == StateReady {
		return nil
	}
	return l.err
}
