package httputil

import (
	"fmt"
	"net/http"
	"time"
)

// ClientConfig holds standard client configuration used across all
// integration clients (metrics, chat, action simulator).
type ClientConfig struct {
	// BaseURL is the base URL for the integration (will be normalized).
	BaseURL string

	// Timeout is the request timeout. Zero means use default.
	Timeout time.Duration

	// HTTPClient is the base HTTP client to use. If nil, a default client is created.
	HTTPClient *http.Client

	// MaxBodyBytes caps response body size to prevent memory exhaustion.
	// Zero means use default.
	MaxBodyBytes int64
}

// ClientDefaults holds default values for client configuration.
type ClientDefaults struct {
	Timeout          time.Duration
	MaxBodyBytes     int64
	NormalizeBaseURL bool
}

// DefaultClientDefaults returns standard default values.
func DefaultClientDefaults() ClientDefaults {
	return ClientDefaults{
		Timeout:          10 * time.Second,
		MaxBodyBytes:     1 << 20, // 1MiB
		NormalizeBaseURL: true,
	}
}

// NewClient creates an HTTP client with standardized configuration: timeout
// defaulting and a shallow copy so the caller's shared client is untouched.
func NewClient(cfg ClientConfig, defaults ClientDefaults) *http.Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaults.Timeout
	}
	forceTimeout := cfg.Timeout != 0
	return CopyHTTPClientWithTimeout(cfg.HTTPClient, timeout, forceTimeout)
}

// NewClientWithBaseURL creates a client with base URL normalization.
// Returns the HTTP client and normalized base URL.
func NewClientWithBaseURL(cfg ClientConfig, defaults ClientDefaults) (*http.Client, string, error) {
	normalizedURL := cfg.BaseURL
	if defaults.NormalizeBaseURL {
		var err error
		normalizedURL, _, err = NormalizeBaseURL(cfg.BaseURL)
		if err != nil {
			return nil, "", fmt.Errorf("normalize base URL: %w", err)
		}
	}

	client := NewClient(ClientConfig{
		BaseURL:    normalizedURL,
		Timeout:    cfg.Timeout,
		HTTPClient: cfg.HTTPClient,
	}, defaults)

	return client, normalizedURL, nil
}

// ResolveMaxBodyBytes returns the effective max body size from config and defaults.
func ResolveMaxBodyBytes(cfg int64, defaultBytes int64) int64 {
	if cfg <= 0 {
		return defaultBytes
	}
	return cfg
}
