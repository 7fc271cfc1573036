package domain

import "context"

// Resolver obtains the connectivity configuration and signaling descriptor
// for a target. Stateless; one call per connection attempt, no retries.
type Resolver interface {
	Resolve(ctx context.Context, target Target) (ConnectivityConfig, SignalingDescriptor, error)
}

// PeerEventKind discriminates events emitted by a PeerSession.
type PeerEventKind int

const (
	// PeerLocalCandidate carries a locally gathered ICE candidate.
	PeerLocalCandidate PeerEventKind = iota
	// PeerRemoteMedia signals the first inbound media track. Emitted at
	// most once per session.
	PeerRemoteMedia
	// PeerStateChange carries the raw connection state of the underlying
	// peer connection.
	PeerStateChange
)

// MediaInfo describes an inbound media track.
type MediaInfo struct {
	Kind  string
	Codec string
}

// PeerEvent is one event on a PeerSession's event stream.
type PeerEvent struct {
	Kind      PeerEventKind
	Candidate Candidate
	Media     MediaInfo
	State     string
}

// PeerSession owns one peer-connection primitive for one negotiation attempt.
type PeerSession interface {
	// CreateOffer generates a receive-only video offer. Exactly once per
	// session; a second call is a protocol violation.
	CreateOffer() (SessionDescription, error)
	// ApplyRemoteAnswer applies the remote description. Valid only once,
	// and only after CreateOffer. Buffered candidates are flushed in
	// arrival order before it returns.
	ApplyRemoteAnswer(SessionDescription) error
	// AddRemoteCandidate applies a candidate, buffering it if the answer
	// has not been applied yet.
	AddRemoteCandidate(Candidate) error
	// Events is the session's event stream. It is buffered; events are
	// dropped with a log line if the consumer falls far behind.
	Events() <-chan PeerEvent
	// Close releases the underlying primitive. Idempotent and safe to
	// call concurrently with any other method.
	Close()
}

// Transport is the signaling channel to the remote side. Two variants share
// this contract: direct (request/response) and relayed (duplex channel).
type Transport interface {
	// SendOffer delivers the offer and returns the remote answer along
	// with the peer id to route subsequent candidates. Cancellable via
	// ctx; it never blocks past ctx's lifetime.
	SendOffer(ctx context.Context, offer SessionDescription) (SessionDescription, string, error)
	// SendCandidate delivers one local candidate to the remote peer.
	SendCandidate(ctx context.Context, peerID string, c Candidate) error
	// RemoteCandidates streams candidates sent by the remote side, in
	// arrival order. Returns nil for variants without remote trickle.
	RemoteCandidates() <-chan Candidate
	// Close releases the channel. Idempotent.
	Close()
}
