package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"roboview/client/internal/domain"
)

func resolverServer(t *testing.T, signalingHandler http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/webrtc/config", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("expected bearer token, got %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"ice_servers": []map[string]string{
				{"url": "stun:stun.example.org:3478"},
				{"url": "turn:turn.example.org:3478", "username": "u", "credential": "c"},
			},
		})
	})
	mux.HandleFunc("/", signalingHandler)
	return httptest.NewServer(mux)
}

func TestResolve_RobotDirect(t *testing.T) {
	srv := resolverServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots/42/webrtc" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]string{"webrtc_url": "http://robot/42"})
	})
	defer srv.Close()

	c := NewClient(srv.URL)
	cfg, desc, err := c.Resolve(context.Background(), domain.Target{Kind: domain.TargetRobot, ID: "42", Token: "tok"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(cfg.Servers) != 2 {
		t.Errorf("expected 2 ice servers, got %d", len(cfg.Servers))
	}
	if cfg.Servers[1].Username != "u" || cfg.Servers[1].Credential != "c" {
		t.Errorf("unexpected turn credentials: %+v", cfg.Servers[1])
	}
	if desc.Mode != domain.SignalingDirect || desc.EndpointURL != "http://robot/42" {
		t.Errorf("unexpected descriptor: %+v", desc)
	}
}

func TestResolve_StreamRelayed(t *testing.T) {
	srv := resolverServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/streams/s9/signaling-info" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]string{
			"type":      "rtsp",
			"ws_url":    "ws://bridge:8081",
			"stream_id": "s9",
		})
	})
	defer srv.Close()

	c := NewClient(srv.URL)
	_, desc, err := c.Resolve(context.Background(), domain.Target{Kind: domain.TargetBridgedStream, ID: "s9", Token: "tok"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if desc.Mode != domain.SignalingRelayed {
		t.Fatalf("expected relayed mode, got %s", desc.Mode)
	}
	if desc.SocketURL != "ws://bridge:8081" || desc.StreamID != "s9" {
		t.Errorf("unexpected descriptor: %+v", desc)
	}
}

func TestResolve_StreamNonRTSPDefaultsToDirect(t *testing.T) {
	srv := resolverServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"type":       "onvif",
			"webrtc_url": "http://cam/7",
		})
	})
	defer srv.Close()

	c := NewClient(srv.URL)
	_, desc, err := c.Resolve(context.Background(), domain.Target{Kind: domain.TargetBridgedStream, ID: "7", Token: "tok"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if desc.Mode != domain.SignalingDirect || desc.EndpointURL != "http://cam/7" {
		t.Errorf("unexpected descriptor: %+v", desc)
	}
}

func TestResolve_StreamMissingStreamIDFallsBackToTargetID(t *testing.T) {
	srv := resolverServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"type":   "rtsp",
			"ws_url": "ws://bridge:8081",
		})
	})
	defer srv.Close()

	c := NewClient(srv.URL)
	_, desc, err := c.Resolve(context.Background(), domain.Target{Kind: domain.TargetBridgedStream, ID: "s3", Token: "tok"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if desc.StreamID != "s3" {
		t.Errorf("expected stream id s3, got %q", desc.StreamID)
	}
}

func TestResolve_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, _, err := c.Resolve(context.Background(), domain.Target{Kind: domain.TargetRobot, ID: "42", Token: "expired"})
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestResolve_TargetNotFound(t *testing.T) {
	srv := resolverServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such robot", http.StatusNotFound)
	})
	defer srv.Close()

	c := NewClient(srv.URL)
	_, _, err := c.Resolve(context.Background(), domain.Target{Kind: domain.TargetRobot, ID: "99", Token: "tok"})
	if !errors.Is(err, domain.ErrTargetNotFound) {
		t.Fatalf("expected ErrTargetNotFound, got %v", err)
	}
}

func TestResolve_TargetUnconfigured(t *testing.T) {
	srv := resolverServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"webrtc_url": ""})
	})
	defer srv.Close()

	c := NewClient(srv.URL)
	_, _, err := c.Resolve(context.Background(), domain.Target{Kind: domain.TargetRobot, ID: "42", Token: "tok"})
	if !errors.Is(err, domain.ErrTargetUnconfigured) {
		t.Fatalf("expected ErrTargetUnconfigured, got %v", err)
	}
}

func TestResolve_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewClient(srv.URL)
	_, _, err := c.Resolve(context.Background(), domain.Target{Kind: domain.TargetRobot, ID: "42", Token: "tok"})
	if !errors.Is(err, domain.ErrTransportUnreachable) {
		t.Fatalf("expected ErrTransportUnreachable, got %v", err)
	}
}
