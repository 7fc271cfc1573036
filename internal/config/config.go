package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"roboview/client/internal/domain"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	Token            string
	BaseURL          string
	Target           domain.Target
	EstablishTimeout time.Duration
}

// Load reads configuration from a .env file (if present) and environment
// variables. Environment variables take precedence over .env values.
func Load() (*Config, error) {
	// godotenv.Load does not overwrite existing env vars
	_ = godotenv.Load()

	token := os.Getenv("ROBOVIEW_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("ROBOVIEW_TOKEN environment variable is required")
	}

	baseURL := os.Getenv("ROBOVIEW_API")
	if baseURL == "" {
		return nil, fmt.Errorf("ROBOVIEW_API environment variable is required")
	}

	robotID := os.Getenv("ROBOVIEW_ROBOT")
	streamID := os.Getenv("ROBOVIEW_STREAM")
	if robotID == "" && streamID == "" {
		return nil, fmt.Errorf("one of ROBOVIEW_ROBOT or ROBOVIEW_STREAM is required")
	}
	if robotID != "" && streamID != "" {
		return nil, fmt.Errorf("ROBOVIEW_ROBOT and ROBOVIEW_STREAM are mutually exclusive")
	}

	target := domain.Target{Kind: domain.TargetRobot, ID: robotID, Token: token}
	if streamID != "" {
		target = domain.Target{Kind: domain.TargetBridgedStream, ID: streamID, Token: token}
	}

	var timeout time.Duration
	if v := os.Getenv("ROBOVIEW_TIMEOUT"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs <= 0 {
			return nil, fmt.Errorf("ROBOVIEW_TIMEOUT must be a positive number of seconds")
		}
		timeout = time.Duration(secs) * time.Second
	}

	return &Config{
		Token:            token,
		BaseURL:          baseURL,
		Target:           target,
		EstablishTimeout: timeout,
	}, nil
}
