// internal/session/session.go

// Package session binds browser sessions to workers.
//
// A worker owns at most one Active session at a time. Sessions are created
// lazily, released explicitly, and never reused once closed.
package session

import (
	"sync/atomic"
	"time"

	"github.com/xkilldash9x/uiharness/internal/browser"
)

// State is the lifecycle state of a Session.
type State int32

const (
	StateUninitialized State = iota
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "ACTIVE"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNINITIALIZED"
	}
}

// Session is a browser driver bound to one worker.
type Session struct {
	id        string
	remote    bool
	workerID  string
	createdAt time.Time
	driver    browser.Driver
	state     atomic.Int32
}

// ID is the session identity: the browser's remote id when it has one, otherwise
// a locally generated UUID. It does not change for the lifetime of the session.
func (s *Session) ID() string { return s.id }

// Remote reports whether ID came from the browser.
func (s *Session) Remote() bool { return s.remote }

func (s *Session) WorkerID() string       { return s.workerID }
func (s *Session) CreatedAt() time.Time   { return s.createdAt }
func (s *Session) Driver() browser.Driver { return s.driver }
func (s *Session) State() State           { return State(s.state.Load()) }

// Active reports whether the session can still be used.
func (s *Session) Active() bool { return s.State() == StateActive }
