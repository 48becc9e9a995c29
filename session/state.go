package session

import "github.com/opd-ai/rtspclient/rtsp"

// State is the session's position in the command state machine.
type State int

const (
	// StateInit is the state before any successful SETUP.
	StateInit State = iota
	// StateReady means a resource is bound and media is not flowing.
	StateReady
	// StatePlaying means the receive and playback tasks are running.
	StatePlaying
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateReady:
		return "READY"
	case StatePlaying:
		return "PLAYING"
	default:
		return "UNKNOWN"
	}
}

// allows reports whether method may be sent from state s.
func (s State) allows(method rtsp.Method) bool {
	switch method {
	case rtsp.MethodSetup:
		return s == StateInit || s == StateReady
	case rtsp.MethodPlay:
		return s == StateReady
	case rtsp.MethodPause:
		return s == StatePlaying
	case rtsp.MethodTeardown:
		return s == StateReady || s == StatePlaying
	}
	return false
}

// next returns the state after a successful method.
func (s State) next(method rtsp.Method) State {
	switch method {
	case rtsp.MethodSetup, rtsp.MethodPause, rtsp.MethodTeardown:
		return StateReady
	case rtsp.MethodPlay:
		return StatePlaying
	}
	return s
}
