// Package signaling implements the two signaling transport variants: direct
// (request/response HTTP against a robot's on-board endpoint) and relayed
// (persistent duplex WebSocket channel through the stream bridge).
package signaling

import (
	"fmt"

	"roboview/client/internal/domain"
)

const (
	messageTypeOffer  = "offer"
	messageTypeAnswer = "answer"
	messageTypeICE    = "ice"
)

// candidatePayload mirrors domain.Candidate on the wire.
type candidatePayload struct {
	Candidate     string `json:"candidate"`
	SDPMid        string `json:"sdpMid"`
	SDPMLineIndex int    `json:"sdpMLineIndex"`
}

func candidateToWire(c domain.Candidate) candidatePayload {
	return candidatePayload(c)
}

func (p candidatePayload) toDomain() domain.Candidate {
	return domain.Candidate(p)
}

// relayMessage is the discrete message envelope used on the relayed channel,
// in both directions.
type relayMessage struct {
	Type      string            `json:"type"`
	SDP       string            `json:"sdp,omitempty"`
	Candidate *candidatePayload `json:"candidate,omitempty"`
}

func (m relayMessage) validate() error {
	switch m.Type {
	case messageTypeOffer, messageTypeAnswer:
		if m.SDP == "" {
			return fmt.Errorf("%s message missing sdp", m.Type)
		}
	case messageTypeICE:
		if m.Candidate == nil {
			return fmt.Errorf("ice message missing candidate")
		}
	default:
		return fmt.Errorf("unsupported message type %q", m.Type)
	}
	return nil
}

// offerRequest is the direct-variant POST /offer body.
type offerRequest struct {
	SDP  string `json:"sdp"`
	Type string `json:"type"`
}

// answerResponse is the direct-variant POST /offer response. The peer id
// routes subsequent candidate posts, since the remote endpoint may serve many
// simultaneous viewers.
type answerResponse struct {
	SDP    string `json:"sdp"`
	Type   string `json:"type"`
	PeerID string `json:"peer_id"`
}

// iceCandidateRequest is the direct-variant POST /ice-candidate body.
type iceCandidateRequest struct {
	PeerID    string           `json:"peer_id"`
	Candidate candidatePayload `json:"candidate"`
}
