package pubsub

import "sync"

// Locked guards a PubSub with a single mutex held for the whole of every
// operation. Publish keeps the lock while it delivers, so a client's Send
// must not call back into the same Locked registry.
type Locked[I comparable, M any] struct {
	mu sync.Mutex
	ps *PubSub[I, M]
}

// NewLocked wraps ps; ps must not be used directly afterwards.
func NewLocked[I comparable, M any](ps *PubSub[I, M]) *Locked[I, M] {
	return &Locked[I, M]{ps: ps}
}

// Do runs fn with exclusive access to the underlying registry, for compound
// operations that must not interleave with others.
func (l *Locked[I, M]) Do(fn func(ps *PubSub[I, M])) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn(l.ps)
}

// AddClient is PubSub.AddClient under the lock
func (l *Locked[I, M]) AddClient(client Client[I, M]) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ps.AddClient(client)
}

// RemoveClient is PubSub.RemoveClient under the lock
func (l *Locked[I, M]) RemoveClient(client Client[I, M]) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ps.RemoveClient(client)
}

// RemoveID is PubSub.RemoveID under the lock
func (l *Locked[I, M]) RemoveID(id I) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ps.RemoveID(id)
}

// Subscribe is PubSub.Subscribe under the lock
func (l *Locked[I, M]) Subscribe(client Client[I, M], channel string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ps.Subscribe(client, channel)
}

// Unsubscribe is PubSub.Unsubscribe under the lock
func (l *Locked[I, M]) Unsubscribe(client Client[I, M], channel string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ps.Unsubscribe(client, channel)
}

// Publish is PubSub.Publish under the lock
func (l *Locked[I, M]) Publish(channel string, msg M) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ps.Publish(channel, msg)
}

// Matching is PubSub.Matching under the lock
func (l *Locked[I, M]) Matching(channel string) []I {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ps.Matching(channel)
}

// Channels is PubSub.Channels under the lock
func (l *Locked[I, M]) Channels() []ChannelInfo {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ps.Channels()
}

// SubscriptionsOf is PubSub.SubscriptionsOf under the lock
func (l *Locked[I, M]) SubscriptionsOf(id I) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ps.SubscriptionsOf(id)
}

// ClientIDs is PubSub.ClientIDs under the lock
func (l *Locked[I, M]) ClientIDs() []I {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ps.ClientIDs()
}

// Len is PubSub.Len under the lock
func (l *Locked[I, M]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ps.Len()
}
