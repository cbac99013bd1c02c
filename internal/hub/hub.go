package hub

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/rmacdonaldsmith/pubsub-go/internal/telemetry"
	"github.com/rmacdonaldsmith/pubsub-go/pkg/pubsub"
)

var (
	// ErrClosed is returned by every operation after Close
	ErrClosed = errors.New("hub: closed")
	// ErrNilClient is returned when a nil client is passed in
	ErrNilClient = errors.New("hub: client cannot be nil")
)

// Client is anything the hub can deliver events to. Clients must be
// comparable, usually pointers, because Disconnect removes a registration
// only when it still belongs to the client being disconnected.
type Client = pubsub.Client[string, Event]

// Stats is a point-in-time summary of the registry
type Stats struct {
	Clients              int
	Channels             int
	LiteralSubscriptions int
	PatternSubscriptions int
	EventsPublished      int64
	EventsDelivered      int64
}

// Health reports whether the hub accepts operations
type Health struct {
	Healthy          bool
	ConnectedClients int
	Message          string
}

// Hub is the service-side owner of a pubsub registry. It serializes access
// through pubsub.Locked, turns publish requests into Events and records logs
// and metrics for every operation. Transports (HTTP, TCP, gRPC) share one Hub.
type Hub struct {
	nodeID    string
	registry  *pubsub.Locked[string, Event]
	logger    zerolog.Logger
	startedAt time.Time

	closed    atomic.Bool
	published atomic.Int64
	delivered atomic.Int64
}

// New creates a hub from config
func New(config *Config) (*Hub, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var opts []pubsub.Option
	if config.StrictRegistration {
		opts = append(opts, pubsub.WithStrictRegistration())
	}
	if config.RequireRegistration {
		opts = append(opts, pubsub.WithRequireRegistration())
	}

	return &Hub{
		nodeID:    config.NodeID,
		registry:  pubsub.NewLocked(pubsub.New[string, Event](opts...)),
		logger:    config.Logger.With().Str("component", "hub").Logger(),
		startedAt: time.Now(),
	}, nil
}

// NodeID returns the hub's node identifier
func (h *Hub) NodeID() string {
	return h.nodeID
}

// Connect registers a client with the hub.
func (h *Hub) Connect(client Client) error {
	if err := h.check(client); err != nil {
		return err
	}

	if err := h.registry.AddClient(&tracked{Client: client, hub: h}); err != nil {
		h.recordError("connect", err)
		return err
	}

	telemetry.ClientsConnected.Set(float64(h.registry.Len()))
	h.logger.Debug().Str("client_id", client.ID()).Msg("Client connected")
	return nil
}

// Disconnect unsubscribes a client from every channel and removes it.
// Disconnecting an unknown client is a no-op, and so is disconnecting a
// client whose identifier has since been taken over by another Connect.
func (h *Hub) Disconnect(client Client) {
	if client == nil {
		return
	}

	id := client.ID()
	var (
		subscriptions []string
		remaining     int
		owned         bool
	)
	h.registry.Do(func(ps *pubsub.PubSub[string, Event]) {
		current, ok := ps.Client(id)
		if !ok || unwrap(current) != client {
			return
		}
		owned = true
		subscriptions = ps.SubscriptionsOf(id)
		ps.RemoveID(id)
		remaining = ps.Len()
	})
	if !owned {
		h.logger.Debug().Str("client_id", id).Msg("Disconnect ignored, client not registered")
		return
	}

	for _, channel := range subscriptions {
		telemetry.Subscriptions.With(kindOf(channel)).Dec()
	}
	telemetry.ClientsConnected.Set(float64(remaining))
	h.logger.Debug().
		Str("client_id", id).
		Int("subscriptions", len(subscriptions)).
		Msg("Client disconnected")
}

// Subscribe subscribes a client to a literal or pattern channel
func (h *Hub) Subscribe(client Client, channel string) error {
	if err := h.check(client); err != nil {
		return err
	}
	if channel == "" {
		h.recordError("subscribe", pubsub.ErrEmptyChannel)
		return pubsub.ErrEmptyChannel
	}

	if err := h.registry.Subscribe(client, channel); err != nil {
		h.recordError("subscribe", err)
		return err
	}

	telemetry.Subscriptions.With(kindOf(channel)).Inc()
	h.logger.Debug().
		Str("client_id", client.ID()).
		Str("channel", channel).
		Bool("pattern", pubsub.IsPattern(channel)).
		Msg("Subscribed")
	return nil
}

// Unsubscribe removes a client's subscription to exactly this channel name
func (h *Hub) Unsubscribe(client Client, channel string) error {
	if err := h.check(client); err != nil {
		return err
	}
	if channel == "" {
		h.recordError("unsubscribe", pubsub.ErrEmptyChannel)
		return pubsub.ErrEmptyChannel
	}

	if err := h.registry.Unsubscribe(client, channel); err != nil {
		h.recordError("unsubscribe", err)
		return err
	}

	telemetry.Subscriptions.With(kindOf(channel)).Dec()
	h.logger.Debug().
		Str("client_id", client.ID()).
		Str("channel", channel).
		Msg("Unsubscribed")
	return nil
}

// Publish converts req into an Event and delivers it to every subscriber of
// channel. It returns the event and the number of clients it was handed to.
func (h *Hub) Publish(ctx context.Context, channel string, req PublishRequest) (Event, int, error) {
	if h.closed.Load() {
		return Event{}, 0, ErrClosed
	}
	if channel == "" {
		return Event{}, 0, pubsub.ErrEmptyChannel
	}
	if err := ctx.Err(); err != nil {
		return Event{}, 0, err
	}

	var (
		event       Event
		subscribers int
	)
	h.registry.Do(func(ps *pubsub.PubSub[string, Event]) {
		subscribers = len(ps.Matching(channel))
		pubsub.PublishFrom(ps, channel, req, func(channel string, req PublishRequest) Event {
			event = NewEvent(channel, req)
			return event
		})
	})

	h.published.Add(1)
	telemetry.PublishesTotal.Inc()
	h.logger.Debug().
		Str("channel", channel).
		Str("event_id", event.ID).
		Int("subscribers", subscribers).
		Msg("Published")
	return event, subscribers, nil
}

// Subscriptions returns the channels a client is subscribed to
func (h *Hub) Subscriptions(clientID string) []string {
	return h.registry.SubscriptionsOf(clientID)
}

// Channels returns every channel entry known to the registry
func (h *Hub) Channels() []pubsub.ChannelInfo {
	return h.registry.Channels()
}

// Clients returns the connected client IDs in ascending order
func (h *Hub) Clients() []string {
	return h.registry.ClientIDs()
}

// Stats returns registry statistics
func (h *Hub) Stats() Stats {
	stats := Stats{
		EventsPublished: h.published.Load(),
		EventsDelivered: h.delivered.Load(),
	}
	h.registry.Do(func(ps *pubsub.PubSub[string, Event]) {
		stats.Clients = ps.Len()
		for _, info := range ps.Channels() {
			stats.Channels++
			if info.Pattern {
				stats.PatternSubscriptions += info.Subscribers
			} else {
				stats.LiteralSubscriptions += info.Subscribers
			}
		}
	})
	return stats
}

// Health returns the hub's health
func (h *Hub) Health() Health {
	if h.closed.Load() {
		return Health{Message: "hub is closed"}
	}
	return Health{
		Healthy:          true,
		ConnectedClients: h.registry.Len(),
		Message:          fmt.Sprintf("up %s", time.Since(h.startedAt).Round(time.Second)),
	}
}

// Close disconnects every client and rejects further operations.
func (h *Hub) Close() error {
	if !h.closed.CompareAndSwap(false, true) {
		return nil
	}

	h.registry.Do(func(ps *pubsub.PubSub[string, Event]) {
		for _, id := range ps.ClientIDs() {
			ps.RemoveID(id)
		}
	})
	telemetry.ClientsConnected.Set(0)
	telemetry.Subscriptions.With("literal").Set(0)
	telemetry.Subscriptions.With("pattern").Set(0)
	h.logger.Info().Str("node_id", h.nodeID).Msg("Hub closed")
	return nil
}

func (h *Hub) check(client Client) error {
	if h.closed.Load() {
		return ErrClosed
	}
	if client == nil {
		return ErrNilClient
	}
	return nil
}

func (h *Hub) recordError(op string, err error) {
	kind := errorKind(err)
	telemetry.RegistryErrorsTotal.With(op, kind).Inc()
	h.logger.Debug().Err(err).Str("op", op).Str("kind", kind).Msg("Registry operation rejected")
}

// tracked counts deliveries on the way to the real client.
type tracked struct {
	Client
	hub *Hub
}

func (t *tracked) Send(event Event) {
	t.hub.delivered.Add(1)
	telemetry.DeliveriesTotal.Inc()
	t.Client.Send(event)
}

func unwrap(client Client) Client {
	if t, ok := client.(*tracked); ok {
		return t.Client
	}
	return client
}

func kindOf(channel string) string {
	if pubsub.IsPattern(channel) {
		return "pattern"
	}
	return "literal"
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, pubsub.ErrClientAlreadySubscribed):
		return "already_subscribed"
	case errors.Is(err, pubsub.ErrClientNotSubscribed):
		return "not_subscribed"
	case errors.Is(err, pubsub.ErrChannelDoesNotExist):
		return "channel_does_not_exist"
	case errors.Is(err, pubsub.ErrClientWithIdentifierAlreadyExists):
		return "client_exists"
	case errors.Is(err, pubsub.ErrClientDoesNotExist):
		return "client_does_not_exist"
	case errors.Is(err, pubsub.ErrEmptyChannel):
		return "empty_channel"
	case errors.Is(err, pubsub.ErrInvalidPattern):
		return "invalid_pattern"
	default:
		return "other"
	}
}
