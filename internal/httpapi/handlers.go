package httpapi

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/rmacdonaldsmith/eventstore-go/pkg/eventstore"
)

const (
	// DefaultQueryLimit caps a query response when the caller sends no limit
	DefaultQueryLimit = 1000
	// MaxQueryLimit is the largest limit a caller may ask for
	MaxQueryLimit = 10000
	// MaxBatchSize is the largest number of events accepted by one batch insert
	MaxBatchSize = 10000
)

// Handlers contains HTTP request handlers
type Handlers struct {
	store   eventstore.EventStore
	jwtAuth *JWTAuth
	logger  *slog.Logger
}

// NewHandlers creates a new handlers instance
func NewHandlers(store eventstore.EventStore, jwtAuth *JWTAuth, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handlers{
		store:   store,
		jwtAuth: jwtAuth,
		logger:  logger,
	}
}

// Login handles POST /api/v1/auth/login
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	if err := validateJSON(r); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req AuthRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := validateAuthRequest(&req); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	// No credential check: the client id alone identifies the caller
	isAdmin := req.ClientID == "admin"

	token, expiresAt, err := h.jwtAuth.GenerateToken(req.ClientID, isAdmin)
	if err != nil {
		writeError(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	writeJSON(w, AuthResponse{
		Token:     token,
		ClientID:  req.ClientID,
		ExpiresAt: expiresAt,
	}, http.StatusOK)
}

// InsertEvent handles POST /api/v1/events
func (h *Handlers) InsertEvent(w http.ResponseWriter, r *http.Request) {
	if err := validateJSON(r); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req EventRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := validateEventRequest(&req); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	event := eventstore.NewEvent(req.Type, *req.Timestamp)
	if err := h.store.Insert(event); err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, toEventResponse(event), http.StatusCreated)
}

// InsertEvents handles POST /api/v1/events/batch.
// Every event is validated before any is stored; out-of-order events are counted as rejected.
func (h *Handlers) InsertEvents(w http.ResponseWriter, r *http.Request) {
	if err := validateJSON(r); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req BatchInsertRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if len(req.Events) == 0 {
		writeError(w, "events cannot be empty", http.StatusBadRequest)
		return
	}
	if len(req.Events) > MaxBatchSize {
		writeError(w, fmt.Sprintf("batch exceeds %d events", MaxBatchSize), http.StatusBadRequest)
		return
	}
	for i := range req.Events {
		if err := validateEventRequest(&req.Events[i]); err != nil {
			writeError(w, fmt.Sprintf("events[%d]: %v", i, err), http.StatusBadRequest)
			return
		}
	}

	var resp BatchInsertResponse
	for _, e := range req.Events {
		err := h.store.Insert(eventstore.NewEvent(e.Type, *e.Timestamp))
		switch {
		case err == nil:
			resp.Inserted++
		case errors.Is(err, eventstore.ErrOutOfOrder):
			resp.Rejected++
		default:
			writeStoreError(w, err)
			return
		}
	}

	writeJSON(w, resp, http.StatusCreated)
}

// ListTypes handles GET /api/v1/types
func (h *Handlers) ListTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, TypesResponse{Types: h.store.Types()}, http.StatusOK)
}

// QueryEvents handles GET /api/v1/types/{type}/events
func (h *Handlers) QueryEvents(w http.ResponseWriter, r *http.Request) {
	eventType := r.PathValue("type")
	if err := validateType(eventType); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	start, end, err := parseRange(r)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	it := h.store.QueryWithMode(eventType, start, end, eventstore.ModeSnapshot)
	defer it.Close()

	resp := QueryResponse{
		Type:   eventType,
		Start:  start,
		End:    end,
		Events: make([]EventResponse, 0),
	}
	for it.MoveNext() {
		if len(resp.Events) == limit {
			resp.Truncated = true
			break
		}
		resp.Events = append(resp.Events, toEventResponse(it.Current()))
	}
	resp.Count = len(resp.Events)

	writeJSON(w, resp, http.StatusOK)
}

// RemoveType handles DELETE /api/v1/types/{type}
func (h *Handlers) RemoveType(w http.ResponseWriter, r *http.Request) {
	eventType := r.PathValue("type")
	if err := validateType(eventType); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.store.RemoveAll(eventType)
	h.logger.Info("removed event type", "type", eventType, "client_id", GetClientID(r))

	w.WriteHeader(http.StatusNoContent)
}

// PruneEvents handles DELETE /api/v1/types/{type}/events.
// It walks a live iterator over the range and removes every element it visits.
func (h *Handlers) PruneEvents(w http.ResponseWriter, r *http.Request) {
	eventType := r.PathValue("type")
	if err := validateType(eventType); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	start, end, err := parseRange(r)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	it := h.store.QueryWithMode(eventType, start, end, eventstore.ModeLive)
	defer it.Close()

	removed := 0
	for it.MoveNext() {
		it.Remove()
		removed++
	}

	h.logger.Info("pruned events",
		"type", eventType,
		"start", start,
		"end", end,
		"removed", removed,
		"client_id", GetClientID(r),
	)

	writeJSON(w, PruneResponse{
		Type:    eventType,
		Start:   start,
		End:     end,
		Removed: removed,
	}, http.StatusOK)
}

// AdminGetStats handles GET /api/v1/admin/stats
func (h *Handlers) AdminGetStats(w http.ResponseWriter, r *http.Request) {
	stats := h.store.Statistics()
	writeJSON(w, StatsResponse{
		TotalEvents: stats.TotalEvents,
		TypeCount:   stats.TypeCount,
		TypeCounts:  stats.TypeCounts,
	}, http.StatusOK)
}

// Health handles GET /api/v1/health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	healthy := true
	if checker, ok := h.store.(eventstore.HealthChecker); ok {
		healthy = checker.Healthy()
	}

	stats := h.store.Statistics()
	resp := HealthResponse{
		Healthy:     healthy,
		TotalEvents: stats.TotalEvents,
		TypeCount:   stats.TypeCount,
		Message:     "event store is healthy",
	}

	statusCode := http.StatusOK
	if !healthy {
		resp.Message = "event store is closed"
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, resp, statusCode)
}

// Helper functions

// writeStoreError maps store errors onto HTTP status codes
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, eventstore.ErrOutOfOrder):
		writeError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, eventstore.ErrStoreClosed):
		writeError(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, eventstore.ErrEmptyType):
		writeError(w, err.Error(), http.StatusBadRequest)
	default:
		writeError(w, "Failed to store event", http.StatusInternalServerError)
	}
}

// writeError writes an error response as JSON
func writeError(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}, statusCode)
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

func toEventResponse(event *eventstore.Event) EventResponse {
	return EventResponse{Type: event.Type(), Timestamp: event.Timestamp()}
}

// parseRange reads the start and end query parameters. Missing bounds cover the whole timeline.
func parseRange(r *http.Request) (int64, int64, error) {
	start, err := parseInt64Param(r, "start", math.MinInt64)
	if err != nil {
		return 0, 0, err
	}
	end, err := parseInt64Param(r, "end", math.MaxInt64)
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

func parseInt64Param(r *http.Request, name string, fallback int64) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a 64-bit integer", name)
	}
	return v, nil
}

func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return DefaultQueryLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("limit must be a positive integer")
	}
	if limit > MaxQueryLimit {
		return 0, fmt.Errorf("limit cannot exceed %d", MaxQueryLimit)
	}
	return limit, nil
}

// validateJSON ensures the request has JSON content type
func validateJSON(r *http.Request) error {
	if r.Header.Get("Content-Type") != "application/json" {
		return fmt.Errorf("Content-Type must be application/json")
	}
	return nil
}

func validateAuthRequest(req *AuthRequest) error {
	if req.ClientID == "" {
		return fmt.Errorf("clientId is required")
	}
	if len(req.ClientID) < 2 {
		return fmt.Errorf("clientId must be at least 2 characters")
	}
	return nil
}

func validateEventRequest(req *EventRequest) error {
	if err := validateType(req.Type); err != nil {
		return err
	}
	if req.Timestamp == nil {
		return fmt.Errorf("timestamp is required")
	}
	return nil
}

// validateType checks an event type label: letters, numbers, '.', '-', '_' and ':' only
func validateType(eventType string) error {
	if eventType == "" {
		return fmt.Errorf("type is required: %w", eventstore.ErrEmptyType)
	}
	for _, char := range eventType {
		if !((char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') ||
			(char >= '0' && char <= '9') || char == '.' || char == '-' || char == '_' || char == ':') {
			return fmt.Errorf("type contains invalid characters (allowed: letters, numbers, ., -, _, :)")
		}
	}
	return nil
}
