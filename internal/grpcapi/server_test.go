package grpcapi

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/rmacdonaldsmith/pubsub-go/internal/clients"
	"github.com/rmacdonaldsmith/pubsub-go/internal/hub"
)

const bufSize = 1024 * 1024

func startServer(t *testing.T) (*hub.Hub, *Client) {
	t.Helper()

	h, err := hub.New(hub.NewConfig("grpc-test"))
	require.NoError(t, err)

	listener := bufconn.Listen(bufSize)
	server := NewServer(h, 16, zerolog.Nop())
	go func() {
		_ = server.Serve(listener)
	}()

	client, err := Dial("passthrough:///bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) {
			return listener.Dial()
		}),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		client.Close()
		server.Close()
		listener.Close()
		h.Close()
	})
	return h, client
}

func TestServer_PublishWithoutSubscribers(t *testing.T) {
	_, client := startServer(t)

	resp, err := client.Publish(context.Background(), &PublishRequest{
		Channel: "orders.created",
		Payload: hub.TextPayload("hi"),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.EventID)
	assert.Equal(t, "orders.created", resp.Channel)
	assert.Zero(t, resp.Subscribers)
	assert.False(t, resp.Timestamp.IsZero())
}

func TestServer_PublishEmptyChannel(t *testing.T) {
	_, client := startServer(t)

	_, err := client.Publish(context.Background(), &PublishRequest{})
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestServer_SubscribeReceivesMatchingEvents(t *testing.T) {
	h, client := startServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub, err := client.Subscribe(ctx, &SubscribeRequest{
		ClientID: "watcher",
		Channels: []string{"orders.*", "orders.created"},
	})
	require.NoError(t, err)
	assert.Equal(t, "grpc-watcher", sub.ClientID)
	assert.Equal(t, []string{"orders.*", "orders.created"}, h.Subscriptions("grpc-watcher"))

	resp, err := client.Publish(ctx, &PublishRequest{
		Channel:   "orders.created",
		Publisher: "test",
		Payload:   []byte(`{"id":1}`),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Subscribers)

	_, err = client.Publish(ctx, &PublishRequest{Channel: "users.created"})
	require.NoError(t, err)
	_, err = client.Publish(ctx, &PublishRequest{Channel: "orders.shipped"})
	require.NoError(t, err)

	first, err := sub.Recv()
	require.NoError(t, err)
	assert.Equal(t, resp.EventID, first.ID)
	assert.Equal(t, "orders.created", first.Channel)
	assert.Equal(t, "test", first.Publisher)
	assert.JSONEq(t, `{"id":1}`, string(first.Payload))

	second, err := sub.Recv()
	require.NoError(t, err)
	assert.Equal(t, "orders.shipped", second.Channel)
}

func TestServer_SubscribeAssignsClientID(t *testing.T) {
	h, client := startServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := client.Subscribe(ctx, &SubscribeRequest{Channels: []string{"a"}})
	require.NoError(t, err)
	assert.Contains(t, sub.ClientID, "grpc-")
	assert.Equal(t, []string{sub.ClientID}, h.Clients())

	// ending the call removes the stream client
	cancel()
	assert.Eventually(t, func() bool {
		return len(h.Clients()) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestServer_SubscribeCannotTakeOverOtherClients(t *testing.T) {
	h, client := startServer(t)

	mailbox := clients.NewStream[hub.Event]("alice", 4)
	defer mailbox.Close()
	require.NoError(t, h.Connect(mailbox))
	require.NoError(t, h.Subscribe(mailbox, "news"))

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := client.Subscribe(ctx, &SubscribeRequest{ClientID: "alice", Channels: []string{"news"}})
	require.NoError(t, err)
	assert.Equal(t, "grpc-alice", sub.ClientID)
	assert.Equal(t, []string{"alice", "grpc-alice"}, h.Clients())

	cancel()
	assert.Eventually(t, func() bool {
		return len(h.Clients()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, []string{"alice"}, h.Clients())
	assert.Equal(t, []string{"news"}, h.Subscriptions("alice"))

	_, delivered, err := h.Publish(context.Background(), "news", hub.PublishRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)
}

func TestServer_SubscribeErrors(t *testing.T) {
	_, client := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	t.Run("no channels", func(t *testing.T) {
		_, err := client.Subscribe(ctx, &SubscribeRequest{})
		require.Error(t, err)
		assert.Equal(t, codes.InvalidArgument, status.Code(err))
	})

	t.Run("duplicate channel", func(t *testing.T) {
		_, err := client.Subscribe(ctx, &SubscribeRequest{Channels: []string{"a", "a"}})
		require.Error(t, err)
		assert.Equal(t, codes.AlreadyExists, status.Code(err))
	})
}

func TestJSONCodec(t *testing.T) {
	codec := jsonCodec{}
	assert.Equal(t, "json", codec.Name())

	data, err := codec.Marshal(&PublishRequest{Channel: "a", Payload: []byte(`"x"`)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"channel":"a","payload":"x"}`, string(data))

	var req PublishRequest
	require.NoError(t, codec.Unmarshal(data, &req))
	assert.Equal(t, "a", req.Channel)
}
