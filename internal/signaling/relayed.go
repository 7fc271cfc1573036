package signaling

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"roboview/client/internal/domain"

	"github.com/gorilla/websocket"
)

const (
	remoteCandidateBuffer = 16
	pingInterval          = 30 * time.Second
	pingWriteTimeout      = 5 * time.Second
)

// Relayed exchanges discrete signaling messages over a persistent WebSocket
// channel to the stream bridge. Both directions are asynchronous: the answer
// and remote candidates arrive as messages on the same channel local
// candidates are sent on. Implements domain.Transport.
type Relayed struct {
	socketURL string
	streamID  string
	Dialer    *websocket.Dialer

	connMu  sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex

	answerCh chan domain.SessionDescription
	remote   chan domain.Candidate

	closed    chan struct{}
	closeOnce sync.Once
}

// NewRelayed creates a relayed transport for the bridge at socketURL serving
// the given stream id. The channel is dialed lazily by SendOffer.
func NewRelayed(socketURL, streamID string) *Relayed {
	return &Relayed{
		socketURL: socketURL,
		streamID:  streamID,
		Dialer:    websocket.DefaultDialer,
		answerCh:  make(chan domain.SessionDescription, 1),
		remote:    make(chan domain.Candidate, remoteCandidateBuffer),
		closed:    make(chan struct{}),
	}
}

// SendOffer dials the bridge, sends the offer as a discrete message, and
// blocks until the answer message arrives, ctx is cancelled, or the channel
// closes. Channel closure before an answer is a failure, not a clean close.
// The returned peer id is the stream id; the relayed variant routes by
// channel, not by peer.
func (r *Relayed) SendOffer(ctx context.Context, offer domain.SessionDescription) (domain.SessionDescription, string, error) {
	u, err := url.Parse(r.socketURL)
	if err != nil {
		return domain.SessionDescription{}, "", fmt.Errorf("parse socket url: %w", err)
	}
	u.Path = "/ws/stream"
	u.RawQuery = url.Values{"stream_id": {r.streamID}}.Encode()

	log.Printf("[relayed] connecting to %s", u.String())

	conn, _, err := r.Dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return domain.SessionDescription{}, "", fmt.Errorf("%w: websocket dial: %v", domain.ErrTransportUnreachable, err)
	}

	r.connMu.Lock()
	select {
	case <-r.closed:
		// Close raced the dial; do not leak the connection.
		r.connMu.Unlock()
		conn.Close()
		return domain.SessionDescription{}, "", fmt.Errorf("%w: transport closed", domain.ErrTransportUnreachable)
	default:
	}
	r.conn = conn
	r.connMu.Unlock()

	go r.readLoop()
	go r.pingLoop()

	if err := r.writeMessage(relayMessage{Type: messageTypeOffer, SDP: offer.SDP}); err != nil {
		return domain.SessionDescription{}, "", fmt.Errorf("%w: send offer: %v", domain.ErrTransportUnreachable, err)
	}

	select {
	case answer := <-r.answerCh:
		return answer, r.streamID, nil
	case <-ctx.Done():
		return domain.SessionDescription{}, "", fmt.Errorf("%w: %v", domain.ErrTransportUnreachable, ctx.Err())
	case <-r.closed:
		return domain.SessionDescription{}, "", fmt.Errorf("%w: channel closed before answer", domain.ErrTransportUnreachable)
	}
}

// SendCandidate sends one local candidate as a discrete message the moment it
// is generated. The peer id is ignored; the channel identifies the session.
func (r *Relayed) SendCandidate(_ context.Context, _ string, c domain.Candidate) error {
	payload := candidateToWire(c)
	return r.writeMessage(relayMessage{Type: messageTypeICE, Candidate: &payload})
}

// RemoteCandidates streams candidates delivered by the bridge, in arrival
// order.
func (r *Relayed) RemoteCandidates() <-chan domain.Candidate {
	return r.remote
}

// Close shuts down the channel. Idempotent.
func (r *Relayed) Close() {
	r.closeOnce.Do(func() {
		close(r.closed)
		r.connMu.Lock()
		if r.conn != nil {
			r.conn.Close()
		}
		r.connMu.Unlock()
	})
}

func (r *Relayed) writeMessage(msg relayMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	select {
	case <-r.closed:
		return fmt.Errorf("transport closed")
	default:
	}
	if r.conn == nil {
		return fmt.Errorf("transport not connected")
	}
	return r.conn.WriteMessage(websocket.TextMessage, data)
}

func (r *Relayed) readLoop() {
	defer r.Close()

	for {
		_, data, err := r.conn.ReadMessage()
		if err != nil {
			select {
			case <-r.closed:
			default:
				log.Printf("[relayed] read error: %v", err)
			}
			return
		}

		var msg relayMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("[relayed] unmarshal error: %v", err)
			continue
		}
		if err := msg.validate(); err != nil {
			log.Printf("[relayed] invalid message: %v", err)
			continue
		}

		switch msg.Type {
		case messageTypeAnswer:
			log.Printf("[relayed] received SDP answer")
			select {
			case r.answerCh <- domain.SessionDescription{Type: msg.Type, SDP: msg.SDP}:
			default:
				log.Printf("[relayed] duplicate answer ignored")
			}

		case messageTypeICE:
			// Blocking send preserves FIFO; the loop is the only sender.
			select {
			case r.remote <- msg.Candidate.toDomain():
			case <-r.closed:
				return
			}

		default:
			log.Printf("[relayed] unhandled message type: %s", msg.Type)
		}
	}
}

func (r *Relayed) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.closed:
			return
		case <-ticker.C:
			r.writeMu.Lock()
			err := r.conn.WriteControl(
				websocket.PingMessage,
				[]byte{},
				time.Now().Add(pingWriteTimeout),
			)
			r.writeMu.Unlock()
			if err != nil {
				select {
				case <-r.closed:
				default:
					log.Printf("[relayed] ping error: %v", err)
				}
				return
			}
		}
	}
}
