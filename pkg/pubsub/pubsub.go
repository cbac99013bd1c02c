package pubsub

import (
	"cmp"
	"fmt"
	"slices"
)

// Option configures registration policy for a PubSub.
type Option func(*options)

type options struct {
	strictRegistration  bool
	requireRegistration bool
}

// WithStrictRegistration makes AddClient reject an identifier that is already
// registered instead of replacing the existing client.
func WithStrictRegistration() Option {
	return func(o *options) {
		o.strictRegistration = true
	}
}

// WithRequireRegistration makes Subscribe reject clients that were never added.
func WithRequireRegistration() Option {
	return func(o *options) {
		o.requireRegistration = true
	}
}

// ChannelInfo describes one subscription table entry
type ChannelInfo struct {
	Channel     string
	Pattern     bool
	Subscribers int
}

// PubSub is a registry of clients and their channel subscriptions.
//
// The standard workflow is to:
//  1. Create a PubSub with New or NewFunc.
//  2. Add one or more clients.
//  3. Subscribe the clients to channels of interest.
//  4. Publish messages to channels.
//
// All clients of one PubSub share the identifier type I and the message type M.
// A PubSub is not safe for concurrent use; see Locked.
type PubSub[I comparable, M any] struct {
	opts    options
	compare func(a, b I) int

	clients  map[I]Client[I, M]
	literals map[string]*subscriberSet[I]
	patterns map[string]*patternEntry[I]
}

// New creates an empty PubSub for naturally ordered identifier types.
func New[I cmp.Ordered, M any](opts ...Option) *PubSub[I, M] {
	return NewFunc[I, M](cmp.Compare[I], opts...)
}

// NewFunc creates an empty PubSub whose identifiers are ordered by compare,
// which must define a total order consistent with ==.
func NewFunc[I comparable, M any](compare func(a, b I) int, opts ...Option) *PubSub[I, M] {
	if compare == nil {
		panic("pubsub: nil compare function")
	}

	ps := &PubSub[I, M]{
		compare:  compare,
		clients:  make(map[I]Client[I, M]),
		literals: make(map[string]*subscriberSet[I]),
		patterns: make(map[string]*patternEntry[I]),
	}
	for _, opt := range opts {
		opt(&ps.opts)
	}
	return ps
}

// AddClient registers a client under its identifier. A client already
// registered under the same identifier is replaced, unless the registry was
// built WithStrictRegistration.
func (ps *PubSub[I, M]) AddClient(client Client[I, M]) error {
	id := client.ID()
	if _, exists := ps.clients[id]; exists && ps.opts.strictRegistration {
		return fmt.Errorf("%w: %v", ErrClientWithIdentifierAlreadyExists, id)
	}
	ps.clients[id] = client
	return nil
}

// RemoveClient unsubscribes a client from all channels and removes it from
// the registry. Removing an unknown client is a no-op.
func (ps *PubSub[I, M]) RemoveClient(client Client[I, M]) {
	ps.RemoveID(client.ID())
}

// RemoveID is RemoveClient by identifier.
func (ps *PubSub[I, M]) RemoveID(id I) {
	delete(ps.clients, id)

	for _, set := range ps.literals {
		set.remove(id)
	}
	for _, entry := range ps.patterns {
		entry.subscribers.remove(id)
	}
}

// Subscribe subscribes a client to a literal or pattern channel.
//
// Returns ErrClientAlreadySubscribed if the client is already subscribed to
// exactly this channel name. The registry is unchanged on error.
func (ps *PubSub[I, M]) Subscribe(client Client[I, M], channel string) error {
	id := client.ID()
	if ps.opts.requireRegistration {
		if _, ok := ps.clients[id]; !ok {
			return fmt.Errorf("%w: %v", ErrClientDoesNotExist, id)
		}
	}

	set, err := ps.ensure(channel)
	if err != nil {
		return err
	}
	if !set.insert(id) {
		return fmt.Errorf("%w: %q", ErrClientAlreadySubscribed, channel)
	}
	return nil
}

// Unsubscribe removes a client from a channel. The channel name is used as
// the key itself: unsubscribing from "orders.*" only affects subscribers of
// that pattern, never the channels it matches.
//
// Returns ErrChannelDoesNotExist if nobody ever subscribed to the channel and
// ErrClientNotSubscribed if the client is not in its subscriber set.
func (ps *PubSub[I, M]) Unsubscribe(client Client[I, M], channel string) error {
	set := ps.lookup(channel)
	if set == nil {
		return fmt.Errorf("%w: %q", ErrChannelDoesNotExist, channel)
	}
	if !set.remove(client.ID()) {
		return fmt.Errorf("%w: %q", ErrClientNotSubscribed, channel)
	}
	return nil
}

// Publish delivers msg to every client subscribed to channel, either by its
// exact name or by a matching pattern. Each client receives the message at
// most once, and clients are served in ascending identifier order.
// Publishing to a channel without subscribers does nothing.
func (ps *PubSub[I, M]) Publish(channel string, msg M) {
	for _, id := range ps.route(channel) {
		client, ok := ps.clients[id]
		if !ok {
			continue
		}
		client.Send(msg)
	}
}

// Matching returns the registered identifiers a Publish to channel would
// deliver to, in delivery order.
func (ps *PubSub[I, M]) Matching(channel string) []I {
	ids := ps.route(channel)
	return slices.DeleteFunc(ids, func(id I) bool {
		_, ok := ps.clients[id]
		return !ok
	})
}

// Subscribers returns the subscriber set stored under exactly this channel
// name, and whether the channel entry exists.
func (ps *PubSub[I, M]) Subscribers(channel string) ([]I, bool) {
	set := ps.lookup(channel)
	if set == nil {
		return nil, false
	}
	return set.snapshot(), true
}

// Channels lists every literal and pattern channel entry, sorted by name.
// Entries whose subscriber set became empty are included.
func (ps *PubSub[I, M]) Channels() []ChannelInfo {
	infos := make([]ChannelInfo, 0, len(ps.literals)+len(ps.patterns))
	for channel, set := range ps.literals {
		infos = append(infos, ChannelInfo{Channel: channel, Subscribers: set.len()})
	}
	for channel, entry := range ps.patterns {
		infos = append(infos, ChannelInfo{Channel: channel, Pattern: true, Subscribers: entry.subscribers.len()})
	}
	slices.SortFunc(infos, func(a, b ChannelInfo) int {
		return cmp.Compare(a.Channel, b.Channel)
	})
	return infos
}

// SubscriptionsOf returns every channel name id is subscribed to, sorted.
func (ps *PubSub[I, M]) SubscriptionsOf(id I) []string {
	var channels []string
	for channel, set := range ps.literals {
		if set.contains(id) {
			channels = append(channels, channel)
		}
	}
	for channel, entry := range ps.patterns {
		if entry.subscribers.contains(id) {
			channels = append(channels, channel)
		}
	}
	slices.Sort(channels)
	return channels
}

// Client returns the client registered under id
func (ps *PubSub[I, M]) Client(id I) (Client[I, M], bool) {
	client, ok := ps.clients[id]
	return client, ok
}

// ClientIDs returns the registered identifiers in ascending order
func (ps *PubSub[I, M]) ClientIDs() []I {
	ids := make([]I, 0, len(ps.clients))
	for id := range ps.clients {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, ps.compare)
	return ids
}

// Len returns the number of registered clients
func (ps *PubSub[I, M]) Len() int {
	return len(ps.clients)
}

// route merges the literal subscribers of channel with the subscribers of
// every matching pattern, sorted and deduplicated.
func (ps *PubSub[I, M]) route(channel string) []I {
	var ids []I
	if set, ok := ps.literals[channel]; ok {
		ids = append(ids, set.ids...)
	}
	for _, entry := range ps.patterns {
		if entry.pattern.Match(channel) {
			ids = append(ids, entry.subscribers.ids...)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	slices.SortFunc(ids, ps.compare)
	return slices.CompactFunc(ids, func(a, b I) bool {
		return ps.compare(a, b) == 0
	})
}

// lookup returns the subscriber set for channel in the table its name
// selects, or nil if the entry was never created.
func (ps *PubSub[I, M]) lookup(channel string) *subscriberSet[I] {
	if IsPattern(channel) {
		if entry, ok := ps.patterns[channel]; ok {
			return entry.subscribers
		}
		return nil
	}
	if set, ok := ps.literals[channel]; ok {
		return set
	}
	return nil
}

// ensure is lookup that lazily creates the entry.
func (ps *PubSub[I, M]) ensure(channel string) (*subscriberSet[I], error) {
	if set := ps.lookup(channel); set != nil {
		return set, nil
	}

	set := newSubscriberSet(ps.compare)
	if !IsPattern(channel) {
		ps.literals[channel] = set
		return set, nil
	}

	pattern, err := CompilePattern(channel)
	if err != nil {
		return nil, err
	}
	ps.patterns[channel] = &patternEntry[I]{pattern: pattern, subscribers: set}
	return set, nil
}
