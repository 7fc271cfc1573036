package domain

// TargetKind discriminates what a Target points at.
type TargetKind string

const (
	// TargetRobot is a robot running its own on-board streaming endpoint.
	TargetRobot TargetKind = "robot"
	// TargetBridgedStream is a legacy camera feed re-published by a bridge.
	TargetBridgedStream TargetKind = "bridged-stream"
)

// Target identifies what a session should connect to.
// It is immutable for the duration of one connection attempt.
type Target struct {
	Kind  TargetKind
	ID    string
	Token string
}
