package webrtc

import (
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"roboview/client/internal/domain"

	"github.com/pion/interceptor"
	"github.com/pion/interceptor/pkg/nack"
	pion "github.com/pion/webrtc/v4"
)

const eventBufferSize = 64

// Peer wraps a Pion PeerConnection for one receive-only video session.
// It implements domain.PeerSession.
type Peer struct {
	pc     *pion.PeerConnection
	sink   io.Writer
	events chan domain.PeerEvent
	buf    candidateBuffer

	mu        sync.Mutex
	offered   bool
	answered  bool
	mediaSeen bool
	closed    bool

	closeOnce sync.Once
}

// NewPeer creates a PeerConnection with minimal codec registration and a
// single recvonly video transceiver. Depacketized H264 from the first video
// track is written to sink as Annex-B NAL units.
func NewPeer(cfg domain.ConnectivityConfig, sink io.Writer) (*Peer, error) {
	m := &pion.MediaEngine{}

	h264Codec := pion.RTPCodecParameters{
		RTPCodecCapability: pion.RTPCodecCapability{
			MimeType:    pion.MimeTypeH264,
			ClockRate:   90000,
			SDPFmtpLine: "level-asymmetry-allowed=1;packetization-mode=0;profile-level-id=64001f",
		},
		PayloadType: 121,
	}
	if err := m.RegisterCodec(h264Codec, pion.RTPCodecTypeVideo); err != nil {
		return nil, fmt.Errorf("register H264: %w", err)
	}

	i := &interceptor.Registry{}
	responderFactory, err := nack.NewResponderInterceptor()
	if err != nil {
		return nil, fmt.Errorf("create nack responder: %w", err)
	}
	i.Add(responderFactory)

	api := pion.NewAPI(
		pion.WithMediaEngine(m),
		pion.WithInterceptorRegistry(i),
	)

	var servers []pion.ICEServer
	for _, s := range cfg.Servers {
		servers = append(servers, pion.ICEServer{
			URLs:       []string{s.URL},
			Username:   s.Username,
			Credential: s.Credential,
		})
	}

	pc, err := api.NewPeerConnection(pion.Configuration{
		ICEServers:   servers,
		BundlePolicy: pion.BundlePolicyMaxBundle,
	})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	_, err = pc.AddTransceiverFromKind(pion.RTPCodecTypeVideo, pion.RTPTransceiverInit{
		Direction: pion.RTPTransceiverDirectionRecvonly,
	})
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("add video transceiver: %w", err)
	}

	p := &Peer{
		pc:     pc,
		sink:   sink,
		events: make(chan domain.PeerEvent, eventBufferSize),
	}

	pc.OnICECandidate(p.onICECandidate)
	pc.OnTrack(p.onTrack)
	pc.OnConnectionStateChange(func(state pion.PeerConnectionState) {
		log.Printf("[peer] connection state: %s", state.String())
		p.emit(domain.PeerEvent{Kind: domain.PeerStateChange, State: state.String()})
	})
	pc.OnICEConnectionStateChange(func(state pion.ICEConnectionState) {
		log.Printf("[peer] ICE connection state: %s", state.String())
	})

	return p, nil
}

// Events returns the session's event stream.
func (p *Peer) Events() <-chan domain.PeerEvent {
	return p.events
}

// CreateOffer creates the SDP offer and sets it as the local description.
// Calling it twice is a protocol violation.
func (p *Peer) CreateOffer() (domain.SessionDescription, error) {
	p.mu.Lock()
	if p.offered {
		p.mu.Unlock()
		return domain.SessionDescription{}, fmt.Errorf("%w: offer already created", domain.ErrProtocolViolation)
	}
	p.offered = true
	p.mu.Unlock()

	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return domain.SessionDescription{}, fmt.Errorf("create offer: %w", err)
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return domain.SessionDescription{}, fmt.Errorf("set local description: %w", err)
	}

	log.Printf("[peer] local SDP offer set")
	return domain.SessionDescription{Type: "offer", SDP: offer.SDP}, nil
}

// ApplyRemoteAnswer sets the remote description and flushes any candidates
// buffered before it. Valid exactly once, after CreateOffer.
func (p *Peer) ApplyRemoteAnswer(answer domain.SessionDescription) error {
	p.mu.Lock()
	if !p.offered {
		p.mu.Unlock()
		return fmt.Errorf("%w: answer before offer", domain.ErrProtocolViolation)
	}
	if p.answered {
		p.mu.Unlock()
		return fmt.Errorf("%w: answer already applied", domain.ErrProtocolViolation)
	}
	p.answered = true
	p.mu.Unlock()

	desc := pion.SessionDescription{
		Type: pion.SDPTypeAnswer,
		SDP:  answer.SDP,
	}
	if err := p.pc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}

	log.Printf("[peer] remote SDP answer set")
	return p.buf.Flush(p.applyCandidate)
}

// AddRemoteCandidate applies a candidate, buffering it until the answer has
// been applied.
func (p *Peer) AddRemoteCandidate(c domain.Candidate) error {
	return p.buf.Add(c, p.applyCandidate)
}

func (p *Peer) applyCandidate(c domain.Candidate) error {
	sdpMid := c.SDPMid
	sdpMLineIndex := uint16(c.SDPMLineIndex)
	init := pion.ICECandidateInit{
		Candidate:     c.Candidate,
		SDPMid:        &sdpMid,
		SDPMLineIndex: &sdpMLineIndex,
	}
	if err := p.pc.AddICECandidate(init); err != nil {
		return fmt.Errorf("add ice candidate: %w", err)
	}
	log.Printf("[peer] added remote ICE candidate")
	return nil
}

// Close releases the PeerConnection. Idempotent.
func (p *Peer) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		if err := p.pc.Close(); err != nil {
			log.Printf("[peer] close: %v", err)
		}
	})
}

func (p *Peer) onICECandidate(c *pion.ICECandidate) {
	if c == nil {
		log.Printf("[peer] ICE gathering complete")
		return
	}

	j := c.ToJSON()
	if isLoopback(j.Candidate) {
		log.Printf("[peer] filtering loopback ICE candidate")
		return
	}

	cand := domain.Candidate{Candidate: j.Candidate}
	if j.SDPMid != nil {
		cand.SDPMid = *j.SDPMid
	}
	if j.SDPMLineIndex != nil {
		cand.SDPMLineIndex = int(*j.SDPMLineIndex)
	}

	log.Printf("[peer] local ICE candidate: %s", cand.Candidate)
	p.emit(domain.PeerEvent{Kind: domain.PeerLocalCandidate, Candidate: cand})
}

func (p *Peer) onTrack(track *pion.TrackRemote, _ *pion.RTPReceiver) {
	codec := track.Codec()
	log.Printf("[peer] got track: kind=%s codec=%s pt=%d", track.Kind(), codec.MimeType, codec.PayloadType)

	if track.Kind() != pion.RTPCodecTypeVideo {
		go drainTrack(track)
		return
	}

	p.mu.Lock()
	first := !p.mediaSeen
	p.mediaSeen = true
	p.mu.Unlock()

	if first {
		p.emit(domain.PeerEvent{
			Kind:  domain.PeerRemoteMedia,
			Media: domain.MediaInfo{Kind: track.Kind().String(), Codec: codec.MimeType},
		})
	}

	go p.readVideoTrack(track)
}

func (p *Peer) readVideoTrack(track *pion.TrackRemote) {
	log.Printf("[peer] reading H264 video track")

	startCode := []byte{0x00, 0x00, 0x00, 0x01}
	depack := NewH264Depacketizer()

	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			log.Printf("[peer] video track read error: %v", err)
			return
		}

		nalus := depack.Depacketize(pkt.SequenceNumber, pkt.Payload)
		for _, nalu := range nalus {
			if len(nalu) == 0 {
				continue
			}
			p.sink.Write(startCode)
			p.sink.Write(nalu)
		}
	}
}

func drainTrack(track *pion.TrackRemote) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := track.Read(buf); err != nil {
			return
		}
	}
}

// emit delivers an event without blocking Pion's callback goroutines. Events
// are dropped with a log line if the consumer is far behind.
func (p *Peer) emit(ev domain.PeerEvent) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return
	}

	select {
	case p.events <- ev:
	default:
		log.Printf("[peer] event buffer full, dropping event kind=%d", ev.Kind)
	}
}

func isLoopback(candidate string) bool {
	return strings.Contains(candidate, "127.0.0.1") || strings.Contains(candidate, "::1 ")
}
