package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rmacdonaldsmith/pubsub-go/internal/clients"
	"github.com/rmacdonaldsmith/pubsub-go/internal/hub"
	"github.com/rmacdonaldsmith/pubsub-go/pkg/pubsub"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	hub       *hub.Hub
	jwtAuth   *JWTAuth
	sessions  *sessions
	keepalive time.Duration
	buffer    int
	logger    zerolog.Logger
	done      chan struct{}
}

// NewHandlers creates a new handlers instance
func NewHandlers(h *hub.Hub, jwtAuth *JWTAuth, keepalive time.Duration, buffer int, logger zerolog.Logger) *Handlers {
	if keepalive <= 0 {
		keepalive = DefaultKeepalive
	}
	return &Handlers{
		hub:       h,
		jwtAuth:   jwtAuth,
		sessions:  newSessions(h, buffer),
		keepalive: keepalive,
		buffer:    buffer,
		logger:    logger,
		done:      make(chan struct{}),
	}
}

// Auth endpoints

// Login handles POST /api/v1/auth/login
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	if err := h.validateJSON(r); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req AuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.validateAuthRequest(&req); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	// clientId-based login without credentials; "admin" gets admin rights
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

// Event endpoints

// PublishEvent handles POST /api/v1/events
func (h *Handlers) PublishEvent(w http.ResponseWriter, r *http.Request) {
	if err := h.validateJSON(r); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req PublishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Channel == "" {
		writeError(w, "channel is required", http.StatusBadRequest)
		return
	}

	event, subscribers, err := h.hub.Publish(r.Context(), req.Channel, hub.PublishRequest{
		Publisher: GetClientID(r),
		Payload:   req.Payload,
	})
	if err != nil {
		writeError(w, fmt.Sprintf("Failed to publish event: %v", err), statusFor(err))
		return
	}

	writeJSON(w, PublishResponse{
		EventID:     event.ID,
		Channel:     event.Channel,
		Subscribers: subscribers,
		Timestamp:   event.PublishedAt,
	}, http.StatusCreated)
}

// StreamEvents handles GET /api/v1/events/stream
//
// With one or more channel query parameters the stream is its own registry
// client subscribed to exactly those channels for the life of the request.
// Without them it drains the caller's mailbox, which receives everything the
// caller subscribed to through the subscriptions endpoints. Only one such
// stream per client may be open at a time; a second one gets 409.
func (h *Handlers) StreamEvents(w http.ResponseWriter, r *http.Request) {
	clientID := GetClientID(r)
	channels := r.URL.Query()["channel"]

	var stream *clients.Stream[hub.Event]
	if len(channels) > 0 {
		stream = clients.NewStream[hub.Event]("sse-"+uuid.NewString(), h.buffer)
		defer stream.Close()

		if err := h.hub.Connect(stream); err != nil {
			writeError(w, fmt.Sprintf("Failed to open stream: %v", err), statusFor(err))
			return
		}
		defer h.hub.Disconnect(stream)

		for _, channel := range channels {
			if err := h.hub.Subscribe(stream, channel); err != nil {
				writeError(w, fmt.Sprintf("Failed to subscribe to %q: %v", channel, err), statusFor(err))
				return
			}
		}
	} else {
		mailbox, detach, err := h.sessions.attach(clientID)
		if err != nil {
			writeError(w, fmt.Sprintf("Failed to open stream: %v", err), statusFor(err))
			return
		}
		defer detach()
		stream = mailbox
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)

	// subscriptions are in place once this comment reaches the client
	fmt.Fprintf(w, ": connected %s\n\n", stream.ID())
	flush(w)

	h.logger.Debug().
		Str("client_id", clientID).
		Str("stream_id", stream.ID()).
		Strs("channels", channels).
		Msg("SSE stream opened")

	h.streamWithKeepalive(w, r, stream)

	h.logger.Debug().Str("stream_id", stream.ID()).Msg("SSE stream closed")
}

// streamWithKeepalive forwards events to the client until it disconnects,
// sending a keepalive comment whenever the stream has been idle.
func (h *Handlers) streamWithKeepalive(w http.ResponseWriter, r *http.Request, stream *clients.Stream[hub.Event]) {
	ctx := r.Context()

	ticker := time.NewTicker(h.keepalive)
	defer ticker.Stop()

	events := stream.Events()
	for {
		select {
		case <-ctx.Done():
			return

		case <-h.done:
			return

		case <-ticker.C:
			if _, err := w.Write([]byte(": ping\n\n")); err != nil {
				return
			}
			flush(w)

		case event, ok := <-events:
			if !ok {
				return
			}
			if err := h.writeSSEMessage(w, event); err != nil {
				h.logger.Debug().Err(err).Str("stream_id", stream.ID()).Msg("Failed to write SSE message")
				return
			}
			flush(w)
		}
	}
}

// Subscription endpoints

// ListSubscriptions handles GET /api/v1/subscriptions
func (h *Handlers) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	clientID := GetClientID(r)

	channels := h.hub.Subscriptions(clientID)
	resp := SubscriptionsListResponse{
		ClientID:      clientID,
		Subscriptions: make([]SubscriptionResponse, 0, len(channels)),
	}
	for _, channel := range channels {
		resp.Subscriptions = append(resp.Subscriptions, SubscriptionResponse{
			ClientID: clientID,
			Channel:  channel,
			Pattern:  pubsub.IsPattern(channel),
		})
	}

	writeJSON(w, resp, http.StatusOK)
}

// CreateSubscription handles POST /api/v1/subscriptions
func (h *Handlers) CreateSubscription(w http.ResponseWriter, r *http.Request) {
	if err := h.validateJSON(r); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req SubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Channel == "" {
		writeError(w, "channel is required", http.StatusBadRequest)
		return
	}

	clientID := GetClientID(r)
	mailbox, err := h.sessions.open(clientID)
	if err != nil {
		writeError(w, fmt.Sprintf("Failed to subscribe: %v", err), statusFor(err))
		return
	}

	if err := h.hub.Subscribe(mailbox, req.Channel); err != nil {
		writeError(w, fmt.Sprintf("Failed to subscribe: %v", err), statusFor(err))
		return
	}

	writeJSON(w, SubscriptionResponse{
		ClientID: clientID,
		Channel:  req.Channel,
		Pattern:  pubsub.IsPattern(req.Channel),
	}, http.StatusCreated)
}

// DeleteSubscription handles DELETE /api/v1/subscriptions?channel={channel}
func (h *Handlers) DeleteSubscription(w http.ResponseWriter, r *http.Request) {
	channel := r.URL.Query().Get("channel")
	if channel == "" {
		writeError(w, "channel query parameter is required", http.StatusBadRequest)
		return
	}

	clientID := GetClientID(r)
	mailbox, ok := h.sessions.get(clientID)
	if !ok {
		writeError(w, fmt.Sprintf("Client %s has no subscriptions", clientID), http.StatusNotFound)
		return
	}

	if err := h.hub.Unsubscribe(mailbox, channel); err != nil {
		writeError(w, fmt.Sprintf("Failed to unsubscribe: %v", err), statusFor(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Admin endpoints

// AdminListClients handles GET /api/v1/admin/clients
func (h *Handlers) AdminListClients(w http.ResponseWriter, r *http.Request) {
	ids := h.hub.Clients()
	resp := AdminClientsResponse{Clients: make([]ClientInfo, 0, len(ids))}
	for _, id := range ids {
		resp.Clients = append(resp.Clients, ClientInfo{
			ID:            id,
			Subscriptions: h.hub.Subscriptions(id),
		})
	}
	writeJSON(w, resp, http.StatusOK)
}

// AdminListChannels handles GET /api/v1/admin/channels
func (h *Handlers) AdminListChannels(w http.ResponseWriter, r *http.Request) {
	infos := h.hub.Channels()
	resp := AdminChannelsResponse{Channels: make([]ChannelInfo, 0, len(infos))}
	for _, info := range infos {
		resp.Channels = append(resp.Channels, ChannelInfo{
			Channel:     info.Channel,
			Pattern:     info.Pattern,
			Subscribers: info.Subscribers,
		})
	}
	writeJSON(w, resp, http.StatusOK)
}

// AdminGetStats handles GET /api/v1/admin/stats
func (h *Handlers) AdminGetStats(w http.ResponseWriter, r *http.Request) {
	stats := h.hub.Stats()
	writeJSON(w, AdminStatsResponse{
		NodeID:               h.hub.NodeID(),
		ConnectedClients:     stats.Clients,
		TotalChannels:        stats.Channels,
		LiteralSubscriptions: stats.LiteralSubscriptions,
		PatternSubscriptions: stats.PatternSubscriptions,
		EventsPublished:      stats.EventsPublished,
		EventsDelivered:      stats.EventsDelivered,
		HTTPSessions:         h.sessions.len(),
	}, http.StatusOK)
}

// Health endpoint

// Health handles GET /api/v1/health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	health := h.hub.Health()

	statusCode := http.StatusOK
	if !health.Healthy {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, HealthResponse{
		Healthy:          health.Healthy,
		ConnectedClients: health.ConnectedClients,
		Message:          health.Message,
	}, statusCode)
}

// close ends every open stream and disconnects the mailboxes
func (h *Handlers) close() {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
	h.sessions.closeAll()
}

// Helper methods

// validateJSON validates that the request has valid JSON content-type
func (h *Handlers) validateJSON(r *http.Request) error {
	if r.Header.Get("Content-Type") != "application/json" {
		return errors.New("Content-Type must be application/json")
	}
	return nil
}

// validateAuthRequest validates authentication request fields
func (h *Handlers) validateAuthRequest(req *AuthRequest) error {
	if req.ClientID == "" {
		return errors.New("clientId is required")
	}
	if len(req.ClientID) < 2 {
		return errors.New("clientId must be at least 2 characters")
	}
	return nil
}

// writeSSEMessage writes an event as an SSE data message
func (h *Handlers) writeSSEMessage(w http.ResponseWriter, event hub.Event) error {
	jsonData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal SSE message: %w", err)
	}

	_, err = fmt.Fprintf(w, "data: %s\n\n", jsonData)
	return err
}

func flush(w http.ResponseWriter) {
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}

// statusFor maps hub and registry errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, pubsub.ErrEmptyChannel), errors.Is(err, pubsub.ErrInvalidPattern):
		return http.StatusBadRequest
	case errors.Is(err, pubsub.ErrClientAlreadySubscribed), errors.Is(err, pubsub.ErrClientWithIdentifierAlreadyExists),
		errors.Is(err, errMailboxAttached):
		return http.StatusConflict
	case errors.Is(err, pubsub.ErrClientNotSubscribed), errors.Is(err, pubsub.ErrChannelDoesNotExist), errors.Is(err, pubsub.ErrClientDoesNotExist):
		return http.StatusNotFound
	case errors.Is(err, hub.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
