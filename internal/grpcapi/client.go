package grpcapi

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/rmacdonaldsmith/pubsub-go/internal/hub"
)

// Client is a PubSub gRPC client
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to a PubSub server at target without transport security
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC client: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Publish publishes a payload to a channel
func (c *Client) Publish(ctx context.Context, req *PublishRequest) (*PublishResponse, error) {
	out := new(PublishResponse)
	if err := c.conn.Invoke(ctx, publishMethod, req, out, grpc.ForceCodec(jsonCodec{})); err != nil {
		return nil, err
	}
	return out, nil
}

// Subscribe opens an event stream. It returns once the server has set up
// every subscription, so events published afterwards are delivered.
func (c *Client) Subscribe(ctx context.Context, req *SubscribeRequest) (*Subscription, error) {
	stream, err := c.conn.NewStream(ctx, &serviceDesc.Streams[0], subscribeMethod, grpc.ForceCodec(jsonCodec{}))
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(req); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}

	header, err := stream.Header()
	if err != nil {
		return nil, err
	}
	ids := header.Get(subscribedHeader)
	if len(ids) == 0 {
		// the call failed before subscribing; its status arrives on receive
		var event hub.Event
		err := stream.RecvMsg(&event)
		if err == nil {
			err = fmt.Errorf("subscription was not acknowledged")
		}
		return nil, err
	}

	return &Subscription{ClientID: ids[0], stream: stream}, nil
}

// Close closes the client connection
func (c *Client) Close() error {
	return c.conn.Close()
}

// Subscription is an open event stream
type Subscription struct {
	// ClientID is the registry client ID the server assigned to the stream
	ClientID string

	stream grpc.ClientStream
}

// Recv blocks until the next event arrives
func (s *Subscription) Recv() (*hub.Event, error) {
	event := new(hub.Event)
	if err := s.stream.RecvMsg(event); err != nil {
		return nil, err
	}
	return event, nil
}
