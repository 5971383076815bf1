package session

import "errors"

// State tracks the driver's lifecycle. Transitions are forward-only; a
// closed driver is never reused, a new run gets a new Driver.
type State int32

const (
	StateNotStarted State = iota
	StateBrowserLaunched
	StateAwaitingAuth
	StateAuthenticated
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateBrowserLaunched:
		return "browser_launched"
	case StateAwaitingAuth:
		return "awaiting_auth"
	case StateAuthenticated:
		return "authenticated"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ErrSessionClosed is returned by any operation invoked after Teardown.
var ErrSessionClosed = errors.New("session: closed")
