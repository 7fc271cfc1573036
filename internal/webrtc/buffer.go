package webrtc

import (
	"sync"

	"roboview/client/internal/domain"
)

// candidateBuffer holds remote candidates that arrive before the answer has
// been applied. Until Flush is called, Add queues; afterwards Add applies
// directly. Queued candidates are applied in arrival order.
type candidateBuffer struct {
	mu      sync.Mutex
	ready   bool
	pending []domain.Candidate
}

// Add applies c via apply if the buffer has been flushed, or queues it.
func (b *candidateBuffer) Add(c domain.Candidate, apply func(domain.Candidate) error) error {
	b.mu.Lock()
	if !b.ready {
		b.pending = append(b.pending, c)
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()
	return apply(c)
}

// Flush marks the buffer ready and applies every queued candidate in order.
// The first apply error is returned; remaining candidates are still applied.
func (b *candidateBuffer) Flush(apply func(domain.Candidate) error) error {
	b.mu.Lock()
	b.ready = true
	pending := b.pending
	b.pending = nil
	b.mu.Unlock()

	var firstErr error
	for _, c := range pending {
		if err := apply(c); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
