package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// ErrNotAuthenticated is returned by calls that need a token before one is set
var ErrNotAuthenticated = errors.New("client not authenticated - call Authenticate() first")

// Client provides HTTP client for the PubSub API
type Client struct {
	config     Config
	httpClient *http.Client
	streamHTTP *http.Client
	token      string
	baseURL    *url.URL
}

// NewClient creates a new PubSub HTTP client
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
		streamHTTP: &http.Client{},
		token:      config.Token,
		baseURL:    baseURL,
	}, nil
}

// Authenticate authenticates with the PubSub server and stores the token
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

// PublishEvent publishes a payload to a channel. The payload is encoded as JSON.
func (c *Client) PublishEvent(ctx context.Context, channel string, payload any) (*PublishResponse, error) {
	if c.token == "" {
		return nil, ErrNotAuthenticated
	}

	req := PublishRequest{
		Channel: channel,
		Payload: payload,
	}

	var resp PublishResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/events", req, &resp, true); err != nil {
		return nil, fmt.Errorf("failed to publish event: %w", err)
	}

	return &resp, nil
}

// CreateSubscription subscribes this client to a literal or pattern channel
func (c *Client) CreateSubscription(ctx context.Context, channel string) (*SubscriptionResponse, error) {
	if c.token == "" {
		return nil, ErrNotAuthenticated
	}

	var resp SubscriptionResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/subscriptions", SubscriptionRequest{Channel: channel}, &resp, true); err != nil {
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}

	return &resp, nil
}

// ListSubscriptions returns all subscriptions for this client
func (c *Client) ListSubscriptions(ctx context.Context) ([]SubscriptionResponse, error) {
	if c.token == "" {
		return nil, ErrNotAuthenticated
	}

	var resp SubscriptionsListResponse
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/subscriptions", nil, &resp, true); err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}

	return resp.Subscriptions, nil
}

// DeleteSubscription unsubscribes this client from exactly this channel name
func (c *Client) DeleteSubscription(ctx context.Context, channel string) error {
	if c.token == "" {
		return ErrNotAuthenticated
	}

	query := url.Values{"channel": {channel}}
	if err := c.doRequestWithQuery(ctx, http.MethodDelete, "/api/v1/subscriptions", query, nil, nil, true); err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}

	return nil
}

// GetHealth returns the health status of the PubSub server
func (c *Client) GetHealth(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/health", nil, &resp, false); err != nil {
		return nil, fmt.Errorf("failed to get health status: %w", err)
	}

	return &resp, nil
}

// Admin Methods (require admin token)

// AdminListClients returns all connected clients (admin only)
func (c *Client) AdminListClients(ctx context.Context) (*AdminClientsResponse, error) {
	if c.token == "" {
		return nil, ErrNotAuthenticated
	}

	var resp AdminClientsResponse
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/admin/clients", nil, &resp, true); err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}

	return &resp, nil
}

// AdminListChannels returns every literal and pattern channel (admin only)
func (c *Client) AdminListChannels(ctx context.Context) (*AdminChannelsResponse, error) {
	if c.token == "" {
		return nil, ErrNotAuthenticated
	}

	var resp AdminChannelsResponse
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/admin/channels", nil, &resp, true); err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}

	return &resp, nil
}

// AdminGetStats returns system statistics (admin only)
func (c *Client) AdminGetStats(ctx context.Context) (*AdminStatsResponse, error) {
	if c.token == "" {
		return nil, ErrNotAuthenticated
	}

	var resp AdminStatsResponse
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/admin/stats", nil, &resp, true); err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}

	return &resp, nil
}

// doRequestWithQuery performs an HTTP request with query parameters and optional authentication
func (c *Client) doRequestWithQuery(ctx context.Context, method, path string, queryParams url.Values, reqBody any, respBody any, requireAuth bool) error {
	u := &url.URL{Path: path}
	if len(queryParams) > 0 {
		u.RawQuery = queryParams.Encode()
	}
	fullURL := c.baseURL.ResolveReference(u)

	var bodyReader io.Reader
	if reqBody != nil {
		jsonBody, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL.String(), bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if requireAuth && c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return apiError(resp.StatusCode, bodyBytes)
	}

	if respBody != nil && len(bodyBytes) > 0 {
		if err := json.Unmarshal(bodyBytes, respBody); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}

	return nil
}

// doRequest performs an HTTP request with optional authentication
func (c *Client) doRequest(ctx context.Context, method, path string, reqBody any, respBody any, requireAuth bool) error {
	return c.doRequestWithQuery(ctx, method, path, nil, reqBody, respBody, requireAuth)
}

func apiError(statusCode int, body []byte) error {
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Message == "" {
		return &APIError{StatusCode: statusCode, Message: string(bytes.TrimSpace(body))}
	}
	return &APIError{StatusCode: statusCode, Message: errResp.Message}
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
