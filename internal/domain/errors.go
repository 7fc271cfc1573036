package domain

import "errors"

// Error taxonomy for a connection attempt. Callers match with errors.Is;
// wrapping adds detail without changing the kind.
var (
	// ErrUnauthorized means the access token was rejected by the resolver.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrTargetNotFound means the target id is unknown to the resolver.
	ErrTargetNotFound = errors.New("target not found")
	// ErrTargetUnconfigured means the target exists but has no signaling
	// endpoint configured.
	ErrTargetUnconfigured = errors.New("target has no signaling endpoint configured")
	// ErrTransportRejected means the remote declined the offer or returned
	// a malformed answer.
	ErrTransportRejected = errors.New("transport rejected offer")
	// ErrTransportUnreachable means a network or channel failure.
	ErrTransportUnreachable = errors.New("transport unreachable")
	// ErrEstablishmentTimeout means the deadline elapsed before the
	// session reached the connected state.
	ErrEstablishmentTimeout = errors.New("establishment deadline elapsed")
	// ErrProtocolViolation marks a programming or integration bug, such as
	// a double offer. It is never expected in normal operation.
	ErrProtocolViolation = errors.New("protocol violation")
)
