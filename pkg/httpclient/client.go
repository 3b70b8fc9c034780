package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNotAuthenticated is returned by calls that need a token before Authenticate succeeded
var ErrNotAuthenticated = errors.New("client not authenticated - call Authenticate() first")

// Client provides HTTP client for EventStore API
type Client struct {
	config     Config
	httpClient *http.Client
	token      string
	baseURL    *url.URL
}

// NewClient creates a new EventStore HTTP client
func NewClient(config Config) (*Client, error) {
	config.SetDefaults()

	if config.ServerURL == "" {
		return nil, fmt.Errorf("ServerURL is required")
	}
	if config.ClientID == "" {
		return nil, fmt.Errorf("ClientID is required")
	}

	baseURL, err := url.Parse(config.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ServerURL: %w", err)
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		baseURL:    baseURL,
	}, nil
}

// Authenticate authenticates with the EventStore server and stores the token
func (c *Client) Authenticate(ctx context.Context) error {
	authReq := map[string]string{
		"clientId": c.config.ClientID,
	}

	var authResp AuthResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/login", authReq, &authResp, false); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	c.token = authResp.Token
	return nil
}

// InsertEvent stores one event
func (c *Client) InsertEvent(ctx context.Context, eventType string, timestamp int64) (*Event, error) {
	if c.token == "" {
		return nil, ErrNotAuthenticated
	}

	req := Event{Type: eventType, Timestamp: timestamp}

	var resp Event
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/events", req, &resp, true); err != nil {
		return nil, fmt.Errorf("failed to insert event: %w", err)
	}

	return &resp, nil
}

// InsertEvents stores a batch of events in one request
func (c *Client) InsertEvents(ctx context.Context, events []Event) (*BatchInsertResponse, error) {
	if c.token == "" {
		return nil, ErrNotAuthenticated
	}

	req := map[string][]Event{"events": events}

	var resp BatchInsertResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/events/batch", req, &resp, true); err != nil {
		return nil, fmt.Errorf("failed to insert events: %w", err)
	}

	return &resp, nil
}

// Query returns the events of eventType inside the optional [Start, End) range
func (c *Client) Query(ctx context.Context, eventType string, opts QueryOptions) (*QueryResponse, error) {
	if c.token == "" {
		return nil, ErrNotAuthenticated
	}

	queryParams := rangeParams(opts.Start, opts.End)
	if opts.Limit > 0 {
		queryParams.Set("limit", strconv.Itoa(opts.Limit))
	}

	var resp QueryResponse
	if err := c.doRequestWithQuery(ctx, http.MethodGet, typePath(eventType)+"/events", queryParams, nil, &resp, true); err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}

	return &resp, nil
}

// RemoveAll drops every event of eventType
func (c *Client) RemoveAll(ctx context.Context, eventType string) error {
	if c.token == "" {
		return ErrNotAuthenticated
	}

	if err := c.send(ctx, http.MethodDelete, typePath(eventType), nil, nil, nil, true, true); err != nil {
		return fmt.Errorf("failed to remove events: %w", err)
	}

	return nil
}

// Prune removes the events of eventType inside the optional [start, end) range
func (c *Client) Prune(ctx context.Context, eventType string, start, end *int64) (*PruneResponse, error) {
	if c.token == "" {
		return nil, ErrNotAuthenticated
	}

	var resp PruneResponse
	if err := c.doRequestWithQuery(ctx, http.MethodDelete, typePath(eventType)+"/events", rangeParams(start, end), nil, &resp, true); err != nil {
		return nil, fmt.Errorf("failed to prune events: %w", err)
	}

	return &resp, nil
}

// ListTypes returns the stored event types
func (c *Client) ListTypes(ctx context.Context) ([]string, error) {
	if c.token == "" {
		return nil, ErrNotAuthenticated
	}

	var resp TypesResponse
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/types", nil, &resp, true); err != nil {
		return nil, fmt.Errorf("failed to list types: %w", err)
	}

	return resp.Types, nil
}

// GetHealth returns the health status of the EventStore server
func (c *Client) GetHealth(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/health", nil, &resp, false); err != nil {
		// An unhealthy server still answers, with 503
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusServiceUnavailable {
			return &HealthResponse{Healthy: false, Message: apiErr.Message}, nil
		}
		return nil, fmt.Errorf("failed to get health status: %w", err)
	}

	return &resp, nil
}

// Admin Methods (require admin token)

// AdminGetStats returns store statistics (admin only)
func (c *Client) AdminGetStats(ctx context.Context) (*StatsResponse, error) {
	if c.token == "" {
		return nil, ErrNotAuthenticated
	}

	var resp StatsResponse
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/admin/stats", nil, &resp, true); err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}

	return &resp, nil
}

// doRequestWithQuery performs an HTTP request with query parameters and optional authentication.
// GET requests that fail in transport are retried up to MaxRetries times.
func (c *Client) doRequestWithQuery(ctx context.Context, method, path string, queryParams url.Values, reqBody interface{}, respBody interface{}, requireAuth bool) error {
	return c.send(ctx, method, path, queryParams, reqBody, respBody, requireAuth, method == http.MethodGet)
}

// send performs the request, retrying transport failures when retry is set.
// Only idempotent requests may be retried: a retried prune would also remove events
// inserted between the attempts.
func (c *Client) send(ctx context.Context, method, path string, queryParams url.Values, reqBody interface{}, respBody interface{}, requireAuth, retry bool) error {
	u := &url.URL{Path: path}
	if len(queryParams) > 0 {
		u.RawQuery = queryParams.Encode()
	}
	fullURL := c.baseURL.ResolveReference(u)

	var jsonBody []byte
	if reqBody != nil {
		var err error
		jsonBody, err = json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	attempts := 1
	if retry {
		attempts += c.config.MaxRetries
	}

	var resp *http.Response
	backoff := c.config.RetryBackoff
	for attempt := 1; ; attempt++ {
		var bodyReader io.Reader
		if jsonBody != nil {
			bodyReader = bytes.NewReader(jsonBody)
		}

		req, err := http.NewRequestWithContext(ctx, method, fullURL.String(), bodyReader)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		if jsonBody != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if requireAuth && c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err = c.httpClient.Do(req)
		if err == nil {
			break
		}
		if attempt >= attempts || ctx.Err() != nil {
			return fmt.Errorf("request failed: %w", err)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("request failed: %w", ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp ErrorResponse
		if err := json.Unmarshal(bodyBytes, &errResp); err != nil || errResp.Message == "" {
			return &APIError{StatusCode: resp.StatusCode, Message: string(bytes.TrimSpace(bodyBytes))}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: errResp.Message}
	}

	if respBody != nil && len(bodyBytes) > 0 {
		if err := json.Unmarshal(bodyBytes, respBody); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}

	return nil
}

// doRequest performs an HTTP request with optional authentication
func (c *Client) doRequest(ctx context.Context, method, path string, reqBody interface{}, respBody interface{}, requireAuth bool) error {
	return c.doRequestWithQuery(ctx, method, path, nil, reqBody, respBody, requireAuth)
}

// IsAuthenticated returns whether the client has a valid token
func (c *Client) IsAuthenticated() bool {
	return c.token != ""
}

// GetToken returns the current authentication token
func (c *Client) GetToken() string {
	return c.token
}

// SetToken sets the authentication token (useful for testing or token reuse)
func (c *Client) SetToken(token string) {
	c.token = token
}

func typePath(eventType string) string {
	return "/api/v1/types/" + url.PathEscape(eventType)
}

func rangeParams(start, end *int64) url.Values {
	params := url.Values{}
	if start != nil {
		params.Set("start", strconv.FormatInt(*start, 10))
	}
	if end != nil {
		params.Set("end", strconv.FormatInt(*end, 10))
	}
	return params
}
