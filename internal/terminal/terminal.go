// Package terminal owns long lived pseudo terminal sessions: their
// processes, output fan-out and teardown.
package terminal

import (
	"errors"
	"time"
)

var (
	// ErrUnknownSession is returned by Write, Resize and Subscribe for ids
	// that were never created, have been destroyed or have exited.
	ErrUnknownSession = errors.New("unknown terminal session")
	// ErrSessionExists is returned by Create for an id that is live or was
	// used before. Ids are never reused.
	ErrSessionExists = errors.New("terminal session id already used")
)

// State is the lifecycle state of a session.
type State string

const (
	StateRunning   State = "running"
	StateExited    State = "exited"
	StateDestroyed State = "destroyed"
)

// Observer receives the output of a session. Calls for one session are made
// from a single goroutine in the order bytes arrived, so implementations
// must not block for long.
type Observer interface {
	OnData(id string, data []byte)
	// OnExit is called once when the process has exited. code is nil when
	// the exit status could not be determined.
	OnExit(id string, code *int)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are ignored.
type ObserverFuncs struct {
	Data func(id string, data []byte)
	Exit func(id string, code *int)
}

// OnData implements Observer.
func (f ObserverFuncs) OnData(id string, data []byte) {
	if f.Data != nil {
		f.Data(id, data)
	}
}

// OnExit implements Observer.
func (f ObserverFuncs) OnExit(id string, code *int) {
	if f.Exit != nil {
		f.Exit(id, code)
	}
}

// Info describes a live session.
type Info struct {
	ID         string    `json:"id"`
	Cwd        string    `json:"cwd"`
	Executable string    `json:"executable"`
	Args       []string  `json:"args"`
	PID        int       `json:"pid"`
	Cols       uint16    `json:"cols"`
	Rows       uint16    `json:"rows"`
	State      State     `json:"state"`
	CreatedAt  time.Time `json:"created_at"`
}
