// Package grpcapi exposes the hub as a gRPC service. Messages are plain Go
// structs encoded as JSON, so the service is described by hand instead of
// from generated stubs.
package grpcapi

import (
	"context"
	"encoding/json"
	"time"

	"google.golang.org/grpc"

	"github.com/rmacdonaldsmith/pubsub-go/internal/hub"
)

const (
	serviceName      = "pubsub.v1.PubSub"
	publishMethod    = "/" + serviceName + "/Publish"
	subscribeMethod  = "/" + serviceName + "/Subscribe"
	subscribedHeader = "pubsub-subscribed"
)

// PublishRequest publishes a payload to a channel
type PublishRequest struct {
	Channel   string          `json:"channel"`
	Publisher string          `json:"publisher,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// PublishResponse describes a published event
type PublishResponse struct {
	EventID     string    `json:"eventId"`
	Channel     string    `json:"channel"`
	Subscribers int       `json:"subscribers"`
	Timestamp   time.Time `json:"timestamp"`
}

// SubscribeRequest opens an event stream for a set of literal or pattern channels
type SubscribeRequest struct {
	// ClientID names the stream's registry client under the "grpc-" prefix; a
	// random ID is used when empty
	ClientID string   `json:"clientId,omitempty"`
	Channels []string `json:"channels"`
}

// PubSubServer is the server API of the PubSub service
type PubSubServer interface {
	Publish(context.Context, *PublishRequest) (*PublishResponse, error)
	Subscribe(*SubscribeRequest, EventStream) error
}

// EventStream is the server side of a Subscribe call
type EventStream interface {
	Send(*hub.Event) error
	grpc.ServerStream
}

type eventStream struct {
	grpc.ServerStream
}

func (s *eventStream) Send(event *hub.Event) error {
	return s.ServerStream.SendMsg(event)
}

// RegisterPubSubServer registers srv with a gRPC service registrar
func RegisterPubSubServer(r grpc.ServiceRegistrar, srv PubSubServer) {
	r.RegisterService(&serviceDesc, srv)
}

func publishHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(PublishRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PubSubServer).Publish(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: publishMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PubSubServer).Publish(ctx, req.(*PublishRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	in := new(SubscribeRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(PubSubServer).Subscribe(in, &eventStream{stream})
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*PubSubServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Publish",
			Handler:    publishHandler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Subscribe",
			Handler:       subscribeHandler,
			ServerStreams: true,
		},
	},
}
