package domain

// SessionDescription is an opaque SDP offer or answer. The orchestrator
// forwards these blobs without inspecting them.
type SessionDescription struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// Candidate is an opaque ICE candidate payload.
type Candidate struct {
	Candidate     string `json:"candidate"`
	SDPMid        string `json:"sdpMid"`
	SDPMLineIndex int    `json:"sdpMLineIndex"`
}
