// Package session models one authenticated client connection: its lifecycle
// state machine and the immutable filtered capability view computed at session
// start.
package session

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/viant/mcp-bridge/directory"
)

// State is the session lifecycle state.
type State int32

const (
	StateConnecting State = iota
	StateAuthenticating
	StateFiltering
	StateActive
	StateClosed
	StateRejected
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateAuthenticating:
		return "authenticating"
	case StateFiltering:
		return "filtering"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	case StateRejected:
		return "rejected"
	case StateErrored:
		return "errored"
	}
	return "connecting"
}

// Session holds one client connection's identity and capability view. The
// view is computed once, right after authentication, and never mutated; an
// agent reconnects to pick up allow-list or registry changes.
type Session struct {
	ID        string
	StartedAt time.Time

	state atomic.Int32
	agent *directory.Agent
	view  *FilteredView
}

// New creates a session in the Connecting state.
func New() *Session {
	return &Session{
		ID:        uuid.New().String(),
		StartedAt: time.Now(),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Agent returns the resolved agent once the session passed authentication.
func (s *Session) Agent() *directory.Agent {
	return s.agent
}

// View returns the held filtered capability view, nil before Active.
func (s *Session) View() *FilteredView {
	return s.view
}

func (s *Session) transition(from, to State) bool {
	return s.state.CompareAndSwap(int32(from), int32(to))
}

// BeginAuth marks the transport handshake complete.
func (s *Session) BeginAuth() bool {
	return s.transition(StateConnecting, StateAuthenticating)
}

// Reject terminates an unauthenticated session.
func (s *Session) Reject() bool {
	return s.transition(StateAuthenticating, StateRejected)
}

// Admit records the resolved agent and moves the session to Filtering.
func (s *Session) Admit(agent *directory.Agent) bool {
	if !s.transition(StateAuthenticating, StateFiltering) {
		return false
	}
	s.agent = agent
	return true
}

// Activate installs the filtered view computed for this session.
func (s *Session) Activate(view *FilteredView) bool {
	if view == nil {
		return false
	}
	s.view = view
	return s.transition(StateFiltering, StateActive)
}

// Fail records an unrecoverable transport fault.
func (s *Session) Fail() bool {
	return s.transition(StateActive, StateErrored)
}

// Close moves the session to its terminal Closed state. It returns true only
// on the first close of a session that reached Active, which is the caller's
// cue to emit the matching disconnect event exactly once.
func (s *Session) Close() bool {
	if s.transition(StateActive, StateClosed) {
		return true
	}
	if s.transition(StateErrored, StateClosed) {
		return true
	}
	// sessions that never activated close silently
	s.transition(StateConnecting, StateClosed)
	s.transition(StateAuthenticating, StateClosed)
	s.transition(StateFiltering, StateClosed)
	return false
}
