package signaling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"roboview/client/internal/domain"
)

// Direct exchanges the offer and answer over a single request/response call
// to the remote endpoint. Remote candidates, if any, arrive embedded in the
// answer SDP; there is no remote trickle in this variant. Implements
// domain.Transport.
type Direct struct {
	endpoint   string
	HTTPClient *http.Client
}

// NewDirect creates a direct transport for the given endpoint URL. The
// transport owns its HTTP client so that Close does not flush connections
// shared with other callers.
func NewDirect(endpointURL string) *Direct {
	return &Direct{
		endpoint:   strings.TrimRight(endpointURL, "/"),
		HTTPClient: &http.Client{},
	}
}

// SendOffer posts the offer and returns the remote answer and peer id.
// Cancelling ctx aborts the in-flight request.
func (d *Direct) SendOffer(ctx context.Context, offer domain.SessionDescription) (domain.SessionDescription, string, error) {
	body, err := json.Marshal(offerRequest{SDP: offer.SDP, Type: offer.Type})
	if err != nil {
		return domain.SessionDescription{}, "", fmt.Errorf("marshal offer: %w", err)
	}

	respBody, status, err := d.post(ctx, "/offer", body)
	if err != nil {
		return domain.SessionDescription{}, "", fmt.Errorf("%w: %v", domain.ErrTransportUnreachable, err)
	}
	if status != http.StatusOK {
		return domain.SessionDescription{}, "", fmt.Errorf("%w: http %d: %s", domain.ErrTransportRejected, status, string(respBody))
	}

	var answer answerResponse
	if err := json.Unmarshal(respBody, &answer); err != nil {
		return domain.SessionDescription{}, "", fmt.Errorf("%w: unmarshal answer: %v", domain.ErrTransportRejected, err)
	}
	if answer.Type != messageTypeAnswer || answer.SDP == "" {
		return domain.SessionDescription{}, "", fmt.Errorf("%w: unexpected answer type=%q", domain.ErrTransportRejected, answer.Type)
	}
	if answer.PeerID == "" {
		return domain.SessionDescription{}, "", fmt.Errorf("%w: answer missing peer_id", domain.ErrTransportRejected)
	}

	return domain.SessionDescription{Type: answer.Type, SDP: answer.SDP}, answer.PeerID, nil
}

// SendCandidate posts one local candidate, routed by peer id. The remote
// acks best-effort; callers treat failures as non-fatal.
func (d *Direct) SendCandidate(ctx context.Context, peerID string, c domain.Candidate) error {
	body, err := json.Marshal(iceCandidateRequest{PeerID: peerID, Candidate: candidateToWire(c)})
	if err != nil {
		return fmt.Errorf("marshal candidate: %w", err)
	}

	respBody, status, err := d.post(ctx, "/ice-candidate", body)
	if err != nil {
		return fmt.Errorf("post candidate: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("post candidate: http %d: %s", status, string(respBody))
	}
	return nil
}

// RemoteCandidates returns nil: the direct variant has no remote trickle.
func (d *Direct) RemoteCandidates() <-chan domain.Candidate {
	return nil
}

// Close releases idle connections. The direct variant holds no persistent
// channel, so there is nothing else to tear down.
func (d *Direct) Close() {
	d.HTTPClient.CloseIdleConnections()
}

func (d *Direct) post(ctx context.Context, path string, body []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.HTTPClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read response: %w", err)
	}
	return respBody, resp.StatusCode, nil
}
