package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	ossignal "os/signal"
	"syscall"

	"roboview/client/internal/api"
	"roboview/client/internal/config"
	"roboview/client/internal/domain"
	"roboview/client/internal/session"
	"roboview/client/internal/signaling"
	"roboview/client/internal/webrtc"
)

const helpText = `roboview - Stream live H264 video from a lab robot via WebRTC

Usage:
  roboview [options]

The raw H264 stream is written to stdout. Pipe to ffplay or ffmpeg for
playback or recording.

Environment Variables:
  ROBOVIEW_TOKEN    Access token for the platform API (required)
  ROBOVIEW_API      Platform API base URL (required)
  ROBOVIEW_ROBOT    Robot id to connect to
  ROBOVIEW_STREAM   Bridged stream id to connect to
  ROBOVIEW_TIMEOUT  Establishment deadline in seconds (default 30)

Exactly one of ROBOVIEW_ROBOT or ROBOVIEW_STREAM must be set.

Examples:
  # Live playback
  roboview | ffplay -f h264 -

  # Record to MP4
  roboview | ffmpeg -f h264 -i - -c copy output.mp4

Options:
  -h, --help  Show this help message
`

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "-h" || os.Args[1] == "--help") {
		fmt.Print(helpText)
		os.Exit(0)
	}

	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[main] %v", err)
	}

	orch := session.New(session.Config{
		Resolver: api.NewClient(cfg.BaseURL),
		NewPeer: func(cc domain.ConnectivityConfig) (domain.PeerSession, error) {
			return webrtc.NewPeer(cc, os.Stdout)
		},
		NewTransport: func(desc domain.SignalingDescriptor) (domain.Transport, error) {
			switch desc.Mode {
			case domain.SignalingDirect:
				return signaling.NewDirect(desc.EndpointURL), nil
			case domain.SignalingRelayed:
				return signaling.NewRelayed(desc.SocketURL, desc.StreamID), nil
			default:
				return nil, fmt.Errorf("unknown signaling mode %q", desc.Mode)
			}
		},
		EstablishDeadline: cfg.EstablishTimeout,
	})

	sigCh := make(chan os.Signal, 1)
	ossignal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("[main] received %s, disconnecting", sig)
		orch.Disconnect()
	}()

	log.Printf("[main] connecting to %s %s", cfg.Target.Kind, cfg.Target.ID)
	if err := orch.Connect(context.Background(), cfg.Target); err != nil {
		if errors.Is(err, session.ErrDisconnected) {
			log.Printf("[main] done")
			return
		}
		log.Fatalf("[main] connect: %v", err)
	}

	// Stay up until the session ends, one way or the other.
	for ev := range orch.Events() {
		if ev.State.Terminal() {
			if ev.Err != nil {
				log.Fatalf("[main] session ended: %v", ev.Err)
			}
			break
		}
	}

	log.Printf("[main] done")
}
