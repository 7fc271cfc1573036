package domain

// SessionState is the orchestrator's lifecycle state.
type SessionState int

const (
	StateIdle SessionState = iota
	StateResolving
	StateNegotiating
	StateConnecting
	StateConnected
	StateClosed
	StateFailed
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateResolving:
		return "resolving"
	case StateNegotiating:
		return "negotiating"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions can occur from s.
func (s SessionState) Terminal() bool {
	return s == StateClosed || s == StateFailed
}
