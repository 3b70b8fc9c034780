package httpapi

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ContextKey type for context keys to avoid collisions
type ContextKey string

const (
	// ClientIDKey is the context key for the authenticated client ID
	ClientIDKey ContextKey = "client_id"
	// IsAdminKey is the context key for admin status
	IsAdminKey ContextKey = "is_admin"
	// ClaimsKey is the context key for JWT claims
	ClaimsKey ContextKey = "jwt_claims"
	// RequestIDKey is the context key for the request correlation ID
	RequestIDKey ContextKey = "request_id"
)

// RequestIDHeader carries the request correlation ID in both directions
const RequestIDHeader = "X-Request-ID"

// devClientID is the identity assigned to every request when auth is disabled
const devClientID = "dev-client"

// Middleware provides HTTP middleware functions
type Middleware struct {
	jwtAuth *JWTAuth
	noAuth  bool // Development mode: bypass authentication
	logger  *slog.Logger
}

// NewMiddleware creates a new middleware instance
func NewMiddleware(jwtAuth *JWTAuth, noAuth bool, logger *slog.Logger) *Middleware {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Middleware{
		jwtAuth: jwtAuth,
		noAuth:  noAuth,
		logger:  logger,
	}
}

// AuthRequired middleware requires valid JWT authentication
func (m *Middleware) AuthRequired(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if m.noAuth {
			claims := &JWTClaims{ClientID: devClientID}
			next(w, r.WithContext(withClaims(r.Context(), claims)))
			return
		}

		token := extractToken(r)
		if token == "" {
			writeError(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		claims, err := m.jwtAuth.ValidateToken(token)
		if err != nil {
			writeError(w, err.Error(), http.StatusUnauthorized)
			return
		}

		next(w, r.WithContext(withClaims(r.Context(), claims)))
	}
}

// AdminRequired middleware requires admin privileges.
// Admin endpoints are never bypassed, even in no-auth mode.
func (m *Middleware) AdminRequired(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			writeError(w, "Authorization header required for admin access", http.StatusUnauthorized)
			return
		}

		claims, err := m.jwtAuth.ValidateToken(token)
		if err != nil {
			writeError(w, "admin access: "+err.Error(), http.StatusUnauthorized)
			return
		}

		if !claims.IsAdmin {
			writeError(w, "Admin privileges required", http.StatusForbidden)
			return
		}

		next(w, r.WithContext(withClaims(r.Context(), claims)))
	}
}

// CORS middleware adds CORS headers for browser compatibility
func (m *Middleware) CORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+RequestIDHeader)
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

// ContentType middleware sets the content type to JSON
func (m *Middleware) ContentType(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next(w, r)
	}
}

// RequestID middleware propagates the caller's X-Request-ID or assigns a new one
func (m *Middleware) RequestID(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		ctx := context.WithValue(r.Context(), RequestIDKey, id)
		next(w, r.WithContext(ctx))
	}
}

// Logging middleware logs one structured line per request
func (m *Middleware) Logging(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next(rec, r)

		level := slog.LevelInfo
		if rec.status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		m.logger.LogAttrs(r.Context(), level, "http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", GetRequestID(r)),
		)
	}
}

// Chain wraps a route handler in the middleware every route shares. Logging sits outside
// Recovery so requests that panic still get an access-log line with their 500.
func (m *Middleware) Chain(handler http.HandlerFunc) http.Handler {
	return m.RequestID(
		m.Logging(
			m.Recovery(
				m.ContentType(handler))))
}

// Recovery middleware recovers from panics and returns 500 error
func (m *Middleware) Recovery(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				m.logger.Error("panic serving request",
					"path", r.URL.Path,
					"panic", err,
					"request_id", GetRequestID(r),
				)
				writeError(w, "Internal server error", http.StatusInternalServerError)
			}
		}()

		next(w, r)
	}
}

// statusRecorder remembers the status code written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if !s.wroteHeader {
		s.status = code
		s.wroteHeader = true
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	s.wroteHeader = true
	return s.ResponseWriter.Write(b)
}

// Helper functions

func withClaims(ctx context.Context, claims *JWTClaims) context.Context {
	ctx = context.WithValue(ctx, ClientIDKey, claims.ClientID)
	ctx = context.WithValue(ctx, IsAdminKey, claims.IsAdmin)
	return context.WithValue(ctx, ClaimsKey, claims)
}

// extractToken extracts the JWT token from the Authorization header.
// Both "Bearer <token>" and a bare token are accepted.
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	return strings.TrimPrefix(authHeader, "Bearer ")
}

// GetClientID extracts the client ID from the request context
func GetClientID(r *http.Request) string {
	if clientID, ok := r.Context().Value(ClientIDKey).(string); ok {
		return clientID
	}
	return ""
}

// IsAdmin checks if the current request is from an admin user
func IsAdmin(r *http.Request) bool {
	if isAdmin, ok := r.Context().Value(IsAdminKey).(bool); ok {
		return isAdmin
	}
	return false
}

// GetClaims extracts the JWT claims from the request context
func GetClaims(r *http.Request) *JWTClaims {
	if claims, ok := r.Context().Value(ClaimsKey).(*JWTClaims); ok {
		return claims
	}
	return nil
}

// GetRequestID extracts the request correlation ID from the request context
func GetRequestID(r *http.Request) string {
	if id, ok := r.Context().Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}
