package httpapi

import (
	"encoding/json"
	"time"
)

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

// PublishRequest represents an event publishing request
type PublishRequest struct {
	Channel string          `json:"channel"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// PublishResponse represents an event publishing response
type PublishResponse struct {
	EventID     string    `json:"eventId"`
	Channel     string    `json:"channel"`
	Subscribers int       `json:"subscribers"`
	Timestamp   time.Time `json:"timestamp"`
}

// SubscriptionRequest represents a subscription creation request.
// Channel may be a literal name or a pattern using * and ?.
type SubscriptionRequest struct {
	Channel string `json:"channel"`
}

// SubscriptionResponse represents a subscription response
type SubscriptionResponse struct {
	ClientID string `json:"clientId"`
	Channel  string `json:"channel"`
	Pattern  bool   `json:"pattern"`
}

// SubscriptionsListResponse represents a list of subscriptions
type SubscriptionsListResponse struct {
	ClientID      string                 `json:"clientId"`
	Subscriptions []SubscriptionResponse `json:"subscriptions"`
}

// AdminClientsResponse represents admin view of connected clients
type AdminClientsResponse struct {
	Clients []ClientInfo `json:"clients"`
}

// ClientInfo represents information about a connected client
type ClientInfo struct {
	ID            string   `json:"id"`
	Subscriptions []string `json:"subscriptions"`
}

// AdminChannelsResponse represents admin view of every channel entry
type AdminChannelsResponse struct {
	Channels []ChannelInfo `json:"channels"`
}

// ChannelInfo describes one literal or pattern channel
type ChannelInfo struct {
	Channel     string `json:"channel"`
	Pattern     bool   `json:"pattern"`
	Subscribers int    `json:"subscribers"`
}

// AdminStatsResponse represents system statistics
type AdminStatsResponse struct {
	NodeID               string `json:"nodeId"`
	ConnectedClients     int    `json:"connectedClients"`
	TotalChannels        int    `json:"totalChannels"`
	LiteralSubscriptions int    `json:"literalSubscriptions"`
	PatternSubscriptions int    `json:"patternSubscriptions"`
	EventsPublished      int64  `json:"eventsPublished"`
	EventsDelivered      int64  `json:"eventsDelivered"`
	HTTPSessions         int    `json:"httpSessions"`
}

// HealthResponse represents health check response
type HealthResponse struct {
	Healthy          bool   `json:"healthy"`
	ConnectedClients int    `json:"connectedClients"`
	Message          string `json:"message"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
