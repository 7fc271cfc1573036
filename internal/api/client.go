package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"roboview/client/internal/domain"
)

type configResponse struct {
	ICEServers []domain.ICEServer `json:"ice_servers"`
}

type robotSignalingResponse struct {
	WebRTCURL string `json:"webrtc_url"`
}

type streamSignalingResponse struct {
	Type      string `json:"type"`
	WSURL     string `json:"ws_url"`
	StreamID  string `json:"stream_id"`
	WebRTCURL string `json:"webrtc_url"`
}

// Client resolves connectivity configuration and signaling descriptors from
// the platform API. It implements domain.Resolver.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a resolver client for the given API base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: http.DefaultClient,
	}
}

// Resolve fetches the ICE server list and the signaling descriptor for the
// target. Both calls carry the target's bearer token. No retries; failures
// abort the whole attempt.
func (c *Client) Resolve(ctx context.Context, target domain.Target) (domain.ConnectivityConfig, domain.SignalingDescriptor, error) {
	cfg, err := c.fetchConnectivity(ctx, target.Token)
	if err != nil {
		return domain.ConnectivityConfig{}, domain.SignalingDescriptor{}, err
	}

	desc, err := c.fetchDescriptor(ctx, target)
	if err != nil {
		return domain.ConnectivityConfig{}, domain.SignalingDescriptor{}, err
	}

	return cfg, desc, nil
}

func (c *Client) fetchConnectivity(ctx context.Context, token string) (domain.ConnectivityConfig, error) {
	var resp configResponse
	if err := c.getJSON(ctx, "/webrtc/config", token, &resp); err != nil {
		return domain.ConnectivityConfig{}, fmt.Errorf("fetch connectivity config: %w", err)
	}
	return domain.ConnectivityConfig{Servers: resp.ICEServers}, nil
}

func (c *Client) fetchDescriptor(ctx context.Context, target domain.Target) (domain.SignalingDescriptor, error) {
	switch target.Kind {
	case domain.TargetRobot:
		var resp robotSignalingResponse
		if err := c.getJSON(ctx, "/robots/"+target.ID+"/webrtc", target.Token, &resp); err != nil {
			return domain.SignalingDescriptor{}, fmt.Errorf("fetch robot signaling: %w", err)
		}
		if resp.WebRTCURL == "" {
			return domain.SignalingDescriptor{}, fmt.Errorf("robot %s: %w", target.ID, domain.ErrTargetUnconfigured)
		}
		return domain.SignalingDescriptor{
			Mode:        domain.SignalingDirect,
			EndpointURL: resp.WebRTCURL,
		}, nil

	case domain.TargetBridgedStream:
		var resp streamSignalingResponse
		if err := c.getJSON(ctx, "/streams/"+target.ID+"/signaling-info", target.Token, &resp); err != nil {
			return domain.SignalingDescriptor{}, fmt.Errorf("fetch stream signaling: %w", err)
		}
		// Legacy RTSP feeds go through the bridge relay; anything else
		// is expected to expose a direct endpoint.
		if resp.Type == "rtsp" {
			if resp.WSURL == "" {
				return domain.SignalingDescriptor{}, fmt.Errorf("stream %s: %w", target.ID, domain.ErrTargetUnconfigured)
			}
			streamID := resp.StreamID
			if streamID == "" {
				streamID = target.ID
			}
			return domain.SignalingDescriptor{
				Mode:      domain.SignalingRelayed,
				SocketURL: resp.WSURL,
				StreamID:  streamID,
			}, nil
		}
		if resp.WebRTCURL == "" {
			return domain.SignalingDescriptor{}, fmt.Errorf("stream %s: %w", target.ID, domain.ErrTargetUnconfigured)
		}
		return domain.SignalingDescriptor{
			Mode:        domain.SignalingDirect,
			EndpointURL: resp.WebRTCURL,
		}, nil

	default:
		return domain.SignalingDescriptor{}, fmt.Errorf("%w: unknown target kind %q", domain.ErrProtocolViolation, target.Kind)
	}
}

func (c *Client) getJSON(ctx context.Context, path, token string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTransportUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", domain.ErrTransportUnreachable, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: http %d", domain.ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: http 404", domain.ErrTargetNotFound)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: http %d: %s", domain.ErrTransportUnreachable, resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: unmarshal response: %v", domain.ErrTransportUnreachable, err)
	}
	return nil
}
