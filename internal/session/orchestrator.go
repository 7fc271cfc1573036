// Package session implements the connection-signaling orchestrator: the
// state machine that resolves a target, negotiates a media session over one
// of the signaling transport variants, relays candidates in both directions,
// enforces the establishment deadline, and owns teardown.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"roboview/client/internal/domain"

	"github.com/google/uuid"
)

// DefaultEstablishDeadline bounds the whole attempt, from resolving until
// the first remote media arrives.
const DefaultEstablishDeadline = 30 * time.Second

// ErrDisconnected is returned from Connect when the caller disconnects
// before the session reaches the connected state. It is a clean close, not
// a failure.
var ErrDisconnected = errors.New("session: disconnected before connected")

// PeerFactory builds the peer session for one attempt.
type PeerFactory func(cfg domain.ConnectivityConfig) (domain.PeerSession, error)

// TransportFactory builds the signaling transport selected by the
// descriptor. Selection happens once per attempt and is never re-evaluated.
type TransportFactory func(desc domain.SignalingDescriptor) (domain.Transport, error)

// Event is delivered to the caller on every state transition. Err is set
// when State is failed; Media is set when State is connected.
type Event struct {
	State domain.SessionState
	Err   error
	Media domain.MediaInfo
}

// Config wires an Orchestrator.
type Config struct {
	Resolver     domain.Resolver
	NewPeer      PeerFactory
	NewTransport TransportFactory
	// EstablishDeadline overrides DefaultEstablishDeadline when positive.
	EstablishDeadline time.Duration
}

// Orchestrator drives exactly one connection attempt. It owns at most one
// peer session and one transport at a time; both are destroyed together on
// any terminal transition, exactly once.
type Orchestrator struct {
	resolver     domain.Resolver
	newPeer      PeerFactory
	newTransport TransportFactory
	deadline     time.Duration
	id           string

	mu          sync.Mutex
	state       domain.SessionState
	started     bool
	tearingDown bool
	peer        domain.PeerSession
	transport   domain.Transport
	timer       *time.Timer
	cancel      context.CancelFunc
	reason      error

	events chan Event
	done   chan struct{}

	teardownOnce sync.Once
}

// New creates an Orchestrator in the idle state.
func New(cfg Config) *Orchestrator {
	deadline := cfg.EstablishDeadline
	if deadline <= 0 {
		deadline = DefaultEstablishDeadline
	}
	return &Orchestrator{
		resolver:     cfg.Resolver,
		newPeer:      cfg.NewPeer,
		newTransport: cfg.NewTransport,
		deadline:     deadline,
		id:           uuid.NewString()[:8],
		state:        domain.StateIdle,
		events:       make(chan Event, 16),
		done:         make(chan struct{}),
	}
}

// Events returns the state-change stream. One terminal event is delivered
// per orchestrator, after both owned resources have been released.
func (o *Orchestrator) Events() <-chan Event {
	return o.events
}

// State returns the current session state.
func (o *Orchestrator) State() domain.SessionState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Connect runs one attempt against target. It blocks until the session is
// connected or terminally failed, and keeps relaying candidates in the
// background after returning successfully. Valid exactly once per
// orchestrator instance.
func (o *Orchestrator) Connect(ctx context.Context, target domain.Target) error {
	o.mu.Lock()
	if o.started || o.state.Terminal() {
		o.mu.Unlock()
		return fmt.Errorf("%w: connect on a used orchestrator", domain.ErrProtocolViolation)
	}
	o.started = true
	ctx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.timer = time.AfterFunc(o.deadline, func() {
		o.fail(domain.ErrEstablishmentTimeout)
	})
	o.setStateLocked(domain.StateResolving)
	o.mu.Unlock()

	log.Printf("[session %s] resolving %s %s", o.id, target.Kind, target.ID)
	cfg, desc, err := o.resolver.Resolve(ctx, target)
	if err != nil {
		return o.fail(fmt.Errorf("resolve: %w", err))
	}

	peer, err := o.newPeer(cfg)
	if err != nil {
		return o.fail(fmt.Errorf("create peer: %w", err))
	}
	if !o.adoptPeer(peer) {
		peer.Close()
		return o.terminalErr()
	}

	transport, err := o.newTransport(desc)
	if err != nil {
		return o.fail(fmt.Errorf("create transport: %w", err))
	}
	if !o.adoptTransport(transport) {
		transport.Close()
		return o.terminalErr()
	}

	offer, err := peer.CreateOffer()
	if err != nil {
		return o.fail(fmt.Errorf("create offer: %w", err))
	}

	o.setState(domain.StateNegotiating)

	// The relay starts before the offer goes out so that candidates the
	// peer gathers while the answer is outstanding are drained as they
	// appear; the relay holds them until the peer id is known.
	connected := make(chan domain.MediaInfo, 1)
	peerReady := make(chan string, 1)
	go o.relay(ctx, peer, transport, peerReady, connected)

	log.Printf("[session %s] sending offer via %s transport", o.id, desc.Mode)
	answer, peerID, err := transport.SendOffer(ctx, offer)
	if err != nil {
		return o.fail(fmt.Errorf("send offer: %w", err))
	}
	if o.terminal() {
		// A late answer after disconnect or timeout is ignored.
		return o.terminalErr()
	}

	if err := peer.ApplyRemoteAnswer(answer); err != nil {
		return o.fail(fmt.Errorf("apply answer: %w", err))
	}
	peerReady <- peerID
	o.setState(domain.StateConnecting)

	select {
	case media := <-connected:
		o.mu.Lock()
		if o.tearingDown || o.state.Terminal() {
			o.mu.Unlock()
			return o.terminalErr()
		}
		o.timer.Stop()
		o.state = domain.StateConnected
		o.mu.Unlock()
		o.emit(Event{State: domain.StateConnected, Media: media})
		log.Printf("[session %s] connected: %s %s", o.id, media.Kind, media.Codec)
		return nil
	case <-o.done:
		return o.terminalErr()
	}
}

// Disconnect tears the session down cleanly. Callable at any state, any
// number of times; duplicate calls are no-ops.
func (o *Orchestrator) Disconnect() {
	o.teardown(domain.StateClosed, ErrDisconnected)
}

// relay pumps candidates in both directions until the session is torn down:
// locally generated candidates to the transport, transport-delivered
// candidates to the peer. It also surfaces the first remote media and
// terminal peer-connection failures.
func (o *Orchestrator) relay(ctx context.Context, peer domain.PeerSession, transport domain.Transport, peerReady <-chan string, connected chan<- domain.MediaInfo) {
	remote := transport.RemoteCandidates()

	// Local candidates gathered before the answer arrives are held here and
	// flushed in order once the transport has a peer to route them to.
	var peerID string
	var pending []domain.Candidate
	ready := false

	send := func(c domain.Candidate) {
		if err := transport.SendCandidate(ctx, peerID, c); err != nil {
			// ICE tolerates individual candidate loss; a failed send
			// must not abort an otherwise succeeding negotiation.
			log.Printf("[session %s] send candidate: %v (ignored)", o.id, err)
		}
	}

	for {
		select {
		case <-o.done:
			return
		case <-ctx.Done():
			return

		case peerID = <-peerReady:
			ready = true
			peerReady = nil
			for _, c := range pending {
				send(c)
			}
			pending = nil

		case ev, ok := <-peer.Events():
			if !ok {
				return
			}
			switch ev.Kind {
			case domain.PeerLocalCandidate:
				if !ready {
					pending = append(pending, ev.Candidate)
					break
				}
				send(ev.Candidate)
			case domain.PeerRemoteMedia:
				select {
				case connected <- ev.Media:
				default:
				}
			case domain.PeerStateChange:
				if ev.State == "failed" {
					o.fail(fmt.Errorf("%w: peer connection failed", domain.ErrTransportUnreachable))
					return
				}
			}

		case c, ok := <-remote:
			if !ok {
				remote = nil
				continue
			}
			if err := peer.AddRemoteCandidate(c); err != nil {
				log.Printf("[session %s] add remote candidate: %v", o.id, err)
			}
		}
	}
}

// fail records reason as the terminal failure and tears down. The first
// recorded reason wins when errors race; fail returns whichever reason the
// session actually ended with.
func (o *Orchestrator) fail(reason error) error {
	o.teardown(domain.StateFailed, reason)
	return o.terminalErr()
}

// teardown runs exactly once: stop the deadline timer, close the peer, close
// the transport, enter the terminal state, notify the caller.
func (o *Orchestrator) teardown(terminal domain.SessionState, reason error) {
	o.teardownOnce.Do(func() {
		o.mu.Lock()
		o.tearingDown = true
		if o.timer != nil {
			o.timer.Stop()
		}
		if o.cancel != nil {
			o.cancel()
		}
		o.reason = reason
		peer := o.peer
		transport := o.transport
		o.mu.Unlock()

		if peer != nil {
			peer.Close()
		}
		if transport != nil {
			transport.Close()
		}

		o.mu.Lock()
		o.state = terminal
		o.mu.Unlock()
		close(o.done)

		ev := Event{State: terminal}
		if terminal == domain.StateFailed {
			ev.Err = reason
		}
		o.emit(ev)
		log.Printf("[session %s] %s (%v)", o.id, terminal, reason)
	})
}

// adoptPeer stores the peer unless the session already ended, in which case
// the caller must close it. At most one peer exists per orchestrator.
func (o *Orchestrator) adoptPeer(peer domain.PeerSession) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.tearingDown || o.state.Terminal() {
		return false
	}
	o.peer = peer
	return true
}

func (o *Orchestrator) adoptTransport(transport domain.Transport) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.tearingDown || o.state.Terminal() {
		return false
	}
	o.transport = transport
	return true
}

func (o *Orchestrator) terminal() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.tearingDown || o.state.Terminal()
}

// terminalErr blocks until teardown completes, then returns the reason the
// session ended with: nil was never recorded, so a clean disconnect yields
// ErrDisconnected and failures yield their typed error.
func (o *Orchestrator) terminalErr() error {
	<-o.done
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.reason
}

func (o *Orchestrator) setState(s domain.SessionState) {
	o.mu.Lock()
	o.setStateLocked(s)
	o.mu.Unlock()
}

// setStateLocked advances the state machine. Closed and failed are terminal:
// once teardown has begun, transitions racing with it are dropped so a
// terminal state is never overwritten and no event follows the terminal one.
func (o *Orchestrator) setStateLocked(s domain.SessionState) {
	if o.tearingDown || o.state.Terminal() {
		return
	}
	o.state = s
	o.emit(Event{State: s})
}

// emit never blocks; the events channel is buffered and a slow consumer
// only loses intermediate transitions, never resources.
func (o *Orchestrator) emit(ev Event) {
	select {
	case o.events <- ev:
	default:
		log.Printf("[session %s] event buffer full, dropping %s", o.id, ev.State)
	}
}
