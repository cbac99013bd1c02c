package hub

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmacdonaldsmith/pubsub-go/pkg/pubsub"
)

// recordingClient collects every event delivered to it
type recordingClient struct {
	id string

	mu     sync.Mutex
	events []Event
}

func newRecordingClient(id string) *recordingClient {
	return &recordingClient{id: id}
}

func (c *recordingClient) ID() string { return c.id }

func (c *recordingClient) Send(event Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *recordingClient) received() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	h, err := New(NewConfig("test-node"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func TestNew(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		h, err := New(nil)
		assert.Error(t, err)
		assert.Nil(t, h)
	})

	t.Run("empty node id", func(t *testing.T) {
		h, err := New(NewConfig(""))
		assert.ErrorIs(t, err, ErrEmptyNodeID)
		assert.Nil(t, h)
	})

	t.Run("valid config", func(t *testing.T) {
		h, err := New(NewConfig("node-a"))
		require.NoError(t, err)
		assert.Equal(t, "node-a", h.NodeID())
		assert.True(t, h.Health().Healthy)
	})
}

func TestHub_PublishDeliversToLiteralAndPatternSubscribers(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	alice := newRecordingClient("alice")
	bob := newRecordingClient("bob")
	carol := newRecordingClient("carol")
	for _, c := range []*recordingClient{alice, bob, carol} {
		require.NoError(t, h.Connect(c))
	}

	require.NoError(t, h.Subscribe(alice, "orders.created"))
	require.NoError(t, h.Subscribe(alice, "orders.*"))
	require.NoError(t, h.Subscribe(bob, "orders.*"))
	require.NoError(t, h.Subscribe(carol, "users.?"))

	event, delivered, err := h.Publish(ctx, "orders.created", PublishRequest{
		Publisher: "tester",
		Payload:   TextPayload("hello"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, delivered)
	assert.NotEmpty(t, event.ID)
	assert.Equal(t, "orders.created", event.Channel)
	assert.Equal(t, "tester", event.Publisher)
	assert.Equal(t, "hello", event.Text())

	// alice matches twice but receives once
	require.Len(t, alice.received(), 1)
	require.Len(t, bob.received(), 1)
	assert.Empty(t, carol.received())
	assert.Equal(t, event, alice.received()[0])

	stats := h.Stats()
	assert.Equal(t, int64(1), stats.EventsPublished)
	assert.Equal(t, int64(2), stats.EventsDelivered)
}

func TestHub_PublishWithoutSubscribers(t *testing.T) {
	h := newTestHub(t)

	_, delivered, err := h.Publish(context.Background(), "nobody.listens", PublishRequest{})
	require.NoError(t, err)
	assert.Zero(t, delivered)
}

func TestHub_PublishErrors(t *testing.T) {
	h := newTestHub(t)

	_, _, err := h.Publish(context.Background(), "", PublishRequest{})
	assert.ErrorIs(t, err, pubsub.ErrEmptyChannel)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = h.Publish(ctx, "a", PublishRequest{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHub_SubscribeErrors(t *testing.T) {
	h := newTestHub(t)
	client := newRecordingClient("alice")
	require.NoError(t, h.Connect(client))

	assert.ErrorIs(t, h.Subscribe(nil, "a"), ErrNilClient)
	assert.ErrorIs(t, h.Subscribe(client, ""), pubsub.ErrEmptyChannel)
	assert.ErrorIs(t, h.Unsubscribe(client, ""), pubsub.ErrEmptyChannel)

	require.NoError(t, h.Subscribe(client, "a"))
	assert.ErrorIs(t, h.Subscribe(client, "a"), pubsub.ErrClientAlreadySubscribed)

	assert.ErrorIs(t, h.Unsubscribe(client, "missing"), pubsub.ErrChannelDoesNotExist)
	require.NoError(t, h.Unsubscribe(client, "a"))
	assert.ErrorIs(t, h.Unsubscribe(client, "a"), pubsub.ErrClientNotSubscribed)
}

func TestHub_RegistrationPolicies(t *testing.T) {
	t.Run("strict registration rejects duplicate ids", func(t *testing.T) {
		h, err := New(NewConfig("node").WithStrictRegistration(true))
		require.NoError(t, err)

		require.NoError(t, h.Connect(newRecordingClient("alice")))
		err = h.Connect(newRecordingClient("alice"))
		assert.ErrorIs(t, err, pubsub.ErrClientWithIdentifierAlreadyExists)
	})

	t.Run("require registration rejects unknown subscribers", func(t *testing.T) {
		h, err := New(NewConfig("node").WithRequireRegistration(true))
		require.NoError(t, err)

		err = h.Subscribe(newRecordingClient("ghost"), "a")
		assert.ErrorIs(t, err, pubsub.ErrClientDoesNotExist)
	})
}

func TestHub_Disconnect(t *testing.T) {
	h := newTestHub(t)
	alice := newRecordingClient("alice")
	require.NoError(t, h.Connect(alice))
	require.NoError(t, h.Subscribe(alice, "a"))
	require.NoError(t, h.Subscribe(alice, "b.*"))

	assert.Equal(t, []string{"a", "b.*"}, h.Subscriptions("alice"))

	h.Disconnect(alice)
	assert.Empty(t, h.Subscriptions("alice"))
	assert.Empty(t, h.Clients())

	_, delivered, err := h.Publish(context.Background(), "a", PublishRequest{})
	require.NoError(t, err)
	assert.Zero(t, delivered)
	assert.Empty(t, alice.received())

	// unknown clients are ignored
	h.Disconnect(newRecordingClient("ghost"))
	h.Disconnect(nil)
}

func TestHub_DisconnectLeavesReplacementRegistered(t *testing.T) {
	h := newTestHub(t)
	first := newRecordingClient("alice")
	second := newRecordingClient("alice")

	require.NoError(t, h.Connect(first))
	require.NoError(t, h.Connect(second))
	require.NoError(t, h.Subscribe(second, "news"))

	h.Disconnect(first)
	assert.Equal(t, []string{"alice"}, h.Clients())
	assert.Equal(t, []string{"news"}, h.Subscriptions("alice"))

	_, delivered, err := h.Publish(context.Background(), "news", PublishRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)
	assert.Len(t, second.received(), 1)
	assert.Empty(t, first.received())

	h.Disconnect(second)
	assert.Empty(t, h.Clients())
}

func TestHub_Introspection(t *testing.T) {
	h := newTestHub(t)
	alice := newRecordingClient("alice")
	bob := newRecordingClient("bob")
	require.NoError(t, h.Connect(bob))
	require.NoError(t, h.Connect(alice))
	require.NoError(t, h.Subscribe(alice, "news"))
	require.NoError(t, h.Subscribe(bob, "news"))
	require.NoError(t, h.Subscribe(bob, "news.*"))

	assert.Equal(t, []string{"alice", "bob"}, h.Clients())
	assert.Equal(t, []pubsub.ChannelInfo{
		{Channel: "news", Subscribers: 2},
		{Channel: "news.*", Pattern: true, Subscribers: 1},
	}, h.Channels())

	stats := h.Stats()
	assert.Equal(t, 2, stats.Clients)
	assert.Equal(t, 2, stats.Channels)
	assert.Equal(t, 2, stats.LiteralSubscriptions)
	assert.Equal(t, 1, stats.PatternSubscriptions)
}

func TestHub_Close(t *testing.T) {
	h, err := New(NewConfig("node"))
	require.NoError(t, err)
	alice := newRecordingClient("alice")
	require.NoError(t, h.Connect(alice))

	require.NoError(t, h.Close())
	require.NoError(t, h.Close())

	assert.False(t, h.Health().Healthy)
	assert.Empty(t, h.Clients())
	assert.ErrorIs(t, h.Connect(alice), ErrClosed)
	assert.ErrorIs(t, h.Subscribe(alice, "a"), ErrClosed)
	assert.ErrorIs(t, h.Unsubscribe(alice, "a"), ErrClosed)
	_, _, err = h.Publish(context.Background(), "a", PublishRequest{})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestHub_ConcurrentPublish(t *testing.T) {
	h := newTestHub(t)
	subscriber := newRecordingClient("sub")
	require.NoError(t, h.Connect(subscriber))
	require.NoError(t, h.Subscribe(subscriber, "load.*"))

	const publishers, perPublisher = 8, 50
	var wg sync.WaitGroup
	for i := 0; i < publishers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perPublisher; j++ {
				_, _, err := h.Publish(context.Background(), "load.test", PublishRequest{})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	assert.Len(t, subscriber.received(), publishers*perPublisher)
	assert.Equal(t, int64(publishers*perPublisher), h.Stats().EventsDelivered)
}

func TestEvent_Text(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{"string payload is unquoted", `"hi there"`, "hi there"},
		{"object payload is raw", `{"a":1}`, `{"a":1}`},
		{"number payload is raw", `42`, `42`},
		{"empty payload", ``, ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := Event{Payload: []byte(tt.payload)}
			assert.Equal(t, tt.want, e.Text())
		})
	}
}
