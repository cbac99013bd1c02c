package grpcapi

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/rmacdonaldsmith/pubsub-go/internal/clients"
	"github.com/rmacdonaldsmith/pubsub-go/internal/hub"
	"github.com/rmacdonaldsmith/pubsub-go/pkg/pubsub"
)

// clientIDPrefix namespaces the registry IDs of subscription streams
const clientIDPrefix = "grpc-"

// Server serves the PubSub gRPC service backed by a hub
type Server struct {
	hub          *hub.Hub
	logger       zerolog.Logger
	streamBuffer int
	grpc         *grpc.Server
}

// NewServer creates a gRPC server for h. streamBuffer sizes each
// subscription's delivery queue.
func NewServer(h *hub.Hub, streamBuffer int, logger zerolog.Logger, opts ...grpc.ServerOption) *Server {
	s := &Server{
		hub:          h,
		logger:       logger.With().Str("component", "grpcapi").Logger(),
		streamBuffer: streamBuffer,
	}

	opts = append(opts,
		grpc.ChainUnaryInterceptor(s.logUnary),
		grpc.ChainStreamInterceptor(s.logStream),
	)
	s.grpc = grpc.NewServer(opts...)
	RegisterPubSubServer(s.grpc, s)
	return s
}

// Serve accepts gRPC connections on ln
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info().Str("address", ln.Addr().String()).Msg("gRPC server started")
	if err := s.grpc.Serve(ln); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Close stops the server and ends every open subscription
func (s *Server) Close() {
	s.grpc.Stop()
}

// Publish publishes a payload to a channel
func (s *Server) Publish(ctx context.Context, req *PublishRequest) (*PublishResponse, error) {
	event, subscribers, err := s.hub.Publish(ctx, req.Channel, hub.PublishRequest{
		Publisher: req.Publisher,
		Payload:   req.Payload,
	})
	if err != nil {
		return nil, toStatus(err)
	}

	return &PublishResponse{
		EventID:     event.ID,
		Channel:     event.Channel,
		Subscribers: subscribers,
		Timestamp:   event.PublishedAt,
	}, nil
}

// streamClientID keeps stream clients in their own namespace so a caller
// cannot take over the HTTP or TCP client with the same identifier.
func streamClientID(requested string) string {
	if requested == "" {
		requested = uuid.NewString()
	}
	return clientIDPrefix + requested
}

// Subscribe streams events from the requested channels until the caller
// goes away. The stream is a registry client for its whole lifetime.
func (s *Server) Subscribe(req *SubscribeRequest, stream EventStream) error {
	if len(req.Channels) == 0 {
		return status.Error(codes.InvalidArgument, "at least one channel is required")
	}

	id := streamClientID(req.ClientID)
	client := clients.NewStream[hub.Event](id, s.streamBuffer)
	defer client.Close()

	if err := s.hub.Connect(client); err != nil {
		return toStatus(err)
	}
	defer s.hub.Disconnect(client)

	for _, channel := range req.Channels {
		if err := s.hub.Subscribe(client, channel); err != nil {
			return toStatus(err)
		}
	}

	// subscriptions are in place once the caller sees the header
	if err := stream.SendHeader(metadata.Pairs(subscribedHeader, id)); err != nil {
		return err
	}

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-client.Events():
			if !ok {
				return nil
			}
			if err := stream.Send(&event); err != nil {
				return err
			}
		}
	}
}

func (s *Server) logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.logger.Debug().
		Str("method", info.FullMethod).
		Dur("duration", time.Since(start)).
		Str("code", status.Code(err).String()).
		Msg("gRPC request")
	return resp, err
}

func (s *Server) logStream(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	start := time.Now()
	err := handler(srv, ss)
	s.logger.Debug().
		Str("method", info.FullMethod).
		Dur("duration", time.Since(start)).
		Str("code", status.Code(err).String()).
		Msg("gRPC stream closed")
	return err
}

func toStatus(err error) error {
	code := codes.Internal
	switch {
	case errors.Is(err, pubsub.ErrEmptyChannel), errors.Is(err, pubsub.ErrInvalidPattern):
		code = codes.InvalidArgument
	case errors.Is(err, pubsub.ErrClientAlreadySubscribed), errors.Is(err, pubsub.ErrClientWithIdentifierAlreadyExists):
		code = codes.AlreadyExists
	case errors.Is(err, pubsub.ErrClientNotSubscribed), errors.Is(err, pubsub.ErrChannelDoesNotExist), errors.Is(err, pubsub.ErrClientDoesNotExist):
		code = codes.NotFound
	case errors.Is(err, hub.ErrClosed):
		code = codes.Unavailable
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	}
	return status.Error(code, err.Error())
}
