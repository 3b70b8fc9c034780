package httpapi

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Bearer tokens are HS256 JWTs signed with the server's secret. They name the calling
// client and whether it may read the admin statistics.

// DefaultTokenTTL applies when the server config leaves auth.token_ttl unset
const DefaultTokenTTL = 24 * time.Hour

const tokenIssuer = "eventstore"

var (
	// ErrMissingToken is returned when no token was presented
	ErrMissingToken = errors.New("missing bearer token")

	// ErrInvalidToken wraps every signature, expiry, issuer or claims failure
	ErrInvalidToken = errors.New("invalid bearer token")
)

// JWTClaims is the token payload. Subject repeats ClientID.
type JWTClaims struct {
	ClientID string `json:"client_id"`
	IsAdmin  bool   `json:"is_admin,omitempty"`
	jwt.RegisteredClaims
}

// JWTAuth signs and checks the event store's bearer tokens.
type JWTAuth struct {
	secretKey []byte
	ttl       time.Duration
}

// NewJWTAuth returns a JWTAuth keyed by secretKey. A ttl <= 0 means DefaultTokenTTL.
func NewJWTAuth(secretKey string, ttl time.Duration) *JWTAuth {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &JWTAuth{
		secretKey: []byte(secretKey),
		ttl:       ttl,
	}
}

// GenerateToken issues a token for clientID and reports when it expires.
func (j *JWTAuth) GenerateToken(clientID string, isAdmin bool) (string, time.Time, error) {
	if clientID == "" {
		return "", time.Time{}, errors.New("clientID cannot be empty")
	}

	now := time.Now()
	expiresAt := now.Add(j.ttl)

	claims := JWTClaims{
		ClientID: clientID,
		IsAdmin:  isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   clientID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secretKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token for %q: %w", clientID, err)
	}

	return signed, expiresAt, nil
}

// ValidateToken accepts either a bare token or an Authorization header value.
// Tokens must be HS256, issued by this server, and carry an expiry.
func (j *JWTAuth) ValidateToken(tokenString string) (*JWTClaims, error) {
	tokenString = strings.TrimSpace(strings.TrimPrefix(tokenString, "Bearer "))
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	claims := &JWTClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (interface{}, error) { return j.secretKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.ClientID == "" {
		return nil, fmt.Errorf("%w: no client id", ErrInvalidToken)
	}

	return claims, nil
}
