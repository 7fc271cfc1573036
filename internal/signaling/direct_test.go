package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"roboview/client/internal/domain"
)

func TestDirect_SendOffer(t *testing.T) {
	var gotOffer offerRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/offer" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotOffer); err != nil {
			t.Errorf("decode offer: %v", err)
		}
		json.NewEncoder(w).Encode(answerResponse{
			SDP:    "v=0\r\nanswer",
			Type:   "answer",
			PeerID: "p1",
		})
	}))
	defer srv.Close()

	d := NewDirect(srv.URL)
	answer, peerID, err := d.SendOffer(context.Background(), domain.SessionDescription{Type: "offer", SDP: "v=0\r\noffer"})
	if err != nil {
		t.Fatalf("SendOffer: %v", err)
	}
	if gotOffer.SDP != "v=0\r\noffer" || gotOffer.Type != "offer" {
		t.Errorf("unexpected offer body: %+v", gotOffer)
	}
	if answer.Type != "answer" || answer.SDP != "v=0\r\nanswer" {
		t.Errorf("unexpected answer: %+v", answer)
	}
	if peerID != "p1" {
		t.Errorf("expected peer id p1, got %q", peerID)
	}
}

func TestDirect_SendOfferRejectedOnHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"no camera"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := NewDirect(srv.URL)
	_, _, err := d.SendOffer(context.Background(), domain.SessionDescription{Type: "offer", SDP: "x"})
	if !errors.Is(err, domain.ErrTransportRejected) {
		t.Fatalf("expected ErrTransportRejected, got %v", err)
	}
}

func TestDirect_SendOfferRejectedOnBadAnswer(t *testing.T) {
	cases := []struct {
		name string
		resp answerResponse
	}{
		{"wrong type", answerResponse{SDP: "x", Type: "offer", PeerID: "p1"}},
		{"missing sdp", answerResponse{Type: "answer", PeerID: "p1"}},
		{"missing peer id", answerResponse{SDP: "x", Type: "answer"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(tc.resp)
			}))
			defer srv.Close()

			d := NewDirect(srv.URL)
			_, _, err := d.SendOffer(context.Background(), domain.SessionDescription{Type: "offer", SDP: "x"})
			if !errors.Is(err, domain.ErrTransportRejected) {
				t.Fatalf("expected ErrTransportRejected, got %v", err)
			}
		})
	}
}

func TestDirect_SendOfferUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening anymore

	d := NewDirect(srv.URL)
	_, _, err := d.SendOffer(context.Background(), domain.SessionDescription{Type: "offer", SDP: "x"})
	if !errors.Is(err, domain.ErrTransportUnreachable) {
		t.Fatalf("expected ErrTransportUnreachable, got %v", err)
	}
}

func TestDirect_SendOfferCancellable(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release // the remote never answers
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	d := NewDirect(srv.URL)
	go func() {
		_, _, err := d.SendOffer(ctx, domain.SessionDescription{Type: "offer", SDP: "x"})
		errCh <- err
	}()

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, domain.ErrTransportUnreachable) {
			t.Fatalf("expected ErrTransportUnreachable, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("SendOffer did not abort on cancellation")
	}
}

func TestDirect_SendCandidate(t *testing.T) {
	var got iceCandidateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ice-candidate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode candidate: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]bool{"success": true})
	}))
	defer srv.Close()

	d := NewDirect(srv.URL)
	err := d.SendCandidate(context.Background(), "p1", domain.Candidate{
		Candidate:     "candidate:123",
		SDPMid:        "0",
		SDPMLineIndex: 0,
	})
	if err != nil {
		t.Fatalf("SendCandidate: %v", err)
	}
	if got.PeerID != "p1" {
		t.Errorf("expected peer_id p1, got %q", got.PeerID)
	}
	if got.Candidate.Candidate != "candidate:123" {
		t.Errorf("unexpected candidate payload: %+v", got.Candidate)
	}
}

func TestDirect_OwnsHTTPClient(t *testing.T) {
	// Close flushes the transport's idle connections; using the shared
	// default client there would flush unrelated callers' pools too.
	d := NewDirect("http://robot/42")
	if d.HTTPClient == http.DefaultClient {
		t.Error("direct transport must not share http.DefaultClient")
	}
	d.Close()
}

func TestDirect_NoRemoteTrickle(t *testing.T) {
	d := NewDirect("http://robot/42")
	if ch := d.RemoteCandidates(); ch != nil {
		t.Error("direct transport must not expose remote candidates")
	}
}
