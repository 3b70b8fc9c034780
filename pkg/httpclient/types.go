package httpclient

import (
	"fmt"
	"time"
)

// Config holds client configuration
type Config struct {
	// ServerURL is the base URL of the EventStore HTTP API (e.g., "http://localhost:8081")
	ServerURL string

	// ClientID is the identifier for this client
	ClientID string

	// Timeout for HTTP requests
	Timeout time.Duration

	// MaxRetries for idempotent requests that fail before reaching the server
	MaxRetries int

	// RetryBackoff is the pause before the first retry; it doubles on every further attempt
	RetryBackoff time.Duration
}

// SetDefaults sets reasonable default values for the config
func (c *Config) SetDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = 100 * time.Millisecond
	}
}

// AuthResponse represents the response from authentication
type AuthResponse struct {
	Token     string    `json:"token"`
	ClientID  string    `json:"clientId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Event is the wire form of a stored event
type Event struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

// BatchInsertResponse reports how many events of a batch were stored
type BatchInsertResponse struct {
	Inserted int `json:"inserted"`
	Rejected int `json:"rejected"`
}

// QueryOptions narrows a query. Nil bounds cover the whole timeline; a zero Limit uses the server default.
type QueryOptions struct {
	Start *int64
	End   *int64
	Limit int
}

// QueryResponse represents the events of one type in [Start, End)
type QueryResponse struct {
	Type      string  `json:"type"`
	Start     int64   `json:"start"`
	End       int64   `json:"end"`
	Events    []Event `json:"events"`
	Count     int     `json:"count"`
	Truncated bool    `json:"truncated"`
}

// PruneResponse reports how many events a range removal deleted
type PruneResponse struct {
	Type    string `json:"type"`
	Start   int64  `json:"start"`
	End     int64  `json:"end"`
	Removed int    `json:"removed"`
}

// TypesResponse lists the stored event types
type TypesResponse struct {
	Types []string `json:"types"`
}

// StatsResponse represents store statistics
type StatsResponse struct {
	TotalEvents int64            `json:"totalEvents"`
	TypeCount   int              `json:"typeCount"`
	TypeCounts  map[string]int64 `json:"typeCounts"`
}

// HealthResponse represents health check response
type HealthResponse struct {
	Healthy     bool   `json:"healthy"`
	TotalEvents int64  `json:"totalEvents"`
	TypeCount   int    `json:"typeCount"`
	Message     string `json:"message"`
}

// ErrorResponse represents an error response from the API
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// APIError is returned for every response with a 4xx or 5xx status
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}
