package domain

// ICEServer holds one STUN/TURN server descriptor.
type ICEServer struct {
	URL        string `json:"url"`
	Username   string `json:"username,omitempty"`
	Credential string `json:"credential,omitempty"`
}

// ConnectivityConfig is the ICE server list fetched once per connection attempt.
type ConnectivityConfig struct {
	Servers []ICEServer
}

// SignalingMode selects the signaling transport variant.
type SignalingMode string

const (
	// SignalingDirect exchanges the offer and answer over a single
	// request/response call to the remote endpoint.
	SignalingDirect SignalingMode = "direct"
	// SignalingRelayed exchanges discrete messages over a persistent
	// duplex channel to a bridge.
	SignalingRelayed SignalingMode = "relayed"
)

// SignalingDescriptor tells the orchestrator how to reach the remote side.
// EndpointURL is set for direct mode; SocketURL and StreamID for relayed mode.
type SignalingDescriptor struct {
	Mode        SignalingMode
	EndpointURL string
	SocketURL   string
	StreamID    string
}
