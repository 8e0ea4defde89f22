package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	Token       string
	UserID      string
	DisplayName string
	Callee      string
	GroupID     string
	APIBaseURL  string
}

// Load reads configuration from a .env file (if present) and environment
// variables. Environment variables take precedence over .env values.
func Load() (*Config, error) {
	// godotenv.Load does not overwrite existing env vars
	_ = godotenv.Load()

	token := os.Getenv("CALLSYNC_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("CALLSYNC_TOKEN environment variable is required")
	}

	userID := os.Getenv("CALLSYNC_USER")
	if userID == "" {
		return nil, fmt.Errorf("CALLSYNC_USER environment variable is required")
	}

	apiBaseURL := os.Getenv("CALLSYNC_API_URL")
	if apiBaseURL == "" {
		return nil, fmt.Errorf("CALLSYNC_API_URL environment variable is required")
	}

	displayName := os.Getenv("CALLSYNC_DISPLAY_NAME")
	if displayName == "" {
		displayName = userID
	}

	return &Config{
		Token:       token,
		UserID:      userID,
		DisplayName: displayName,
		Callee:      os.Getenv("CALLSYNC_CALLEE"),
		GroupID:     os.Getenv("CALLSYNC_GROUP"),
		APIBaseURL:  apiBaseURL,
	}, nil
}
