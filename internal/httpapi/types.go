package httpapi

import "time"

// Request/Response types for the HTTP API

// AuthRequest represents a login request
type AuthRequest struct {
	ClientID string `json:"clientId"`
}

// AuthResponse represents a login response
type AuthResponse struct {
	Token     string    `json:"token"`
	ClientID  string    `json:"clientId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// EventRequest represents an event insert request.
// Timestamp is a pointer so a missing field can be told apart from zero.
type EventRequest struct {
	Type      string `json:"type"`
	Timestamp *int64 `json:"timestamp"`
}

// EventResponse represents a stored event
type EventResponse struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

// BatchInsertRequest represents a bulk insert request
type BatchInsertRequest struct {
	Events []EventRequest `json:"events"`
}

// BatchInsertResponse reports how many events of a batch were stored
type BatchInsertResponse struct {
	Inserted int `json:"inserted"`
	Rejected int `json:"rejected"`
}

// QueryResponse represents the events of one type in [start, end)
type QueryResponse struct {
	Type      string          `json:"type"`
	Start     int64           `json:"start"`
	End       int64           `json:"end"`
	Events    []EventResponse `json:"events"`
	Count     int             `json:"count"`
	Truncated bool            `json:"truncated"`
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

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
