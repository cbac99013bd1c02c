// Package tcpserver exposes the hub over a line-oriented TCP protocol.
//
// Every connection is a hub client identified by its remote address and is
// subscribed to the announce channel as soon as it connects. Commands, one
// per line:
//
//	SUB <channel>
//	UNSUB <channel>
//	PUB <channel> <payload>
//	QUIT
//
// Each command is answered with "OK" or "ERR <message>". A line longer than
// the configured limit is answered with "ERR line too long" and the
// connection is closed. Deliveries arrive as
// "Client (<addr>) Received Message from Channel (<channel>): <payload>".
package tcpserver

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rmacdonaldsmith/pubsub-go/internal/clients"
	"github.com/rmacdonaldsmith/pubsub-go/internal/hub"
)

const (
	// DefaultAnnounceChannel is the channel new connections are announced on
	DefaultAnnounceChannel = "clients.all"

	// DefaultMaxLineBytes bounds a command line when Config leaves it unset
	DefaultMaxLineBytes = 1 << 20
)

// ErrServerClosed is returned by Serve after Close
var ErrServerClosed = errors.New("tcpserver: server closed")

// Config holds TCP server settings
type Config struct {
	// AnnounceChannel every connection is subscribed to and announced on
	AnnounceChannel string

	// WriteTimeout bounds each line written to a client
	WriteTimeout time.Duration

	// MaxLineBytes is the longest command line accepted, newline included
	MaxLineBytes int

	Logger zerolog.Logger
}

// Server accepts TCP connections and turns them into hub clients
type Server struct {
	hub    *hub.Hub
	config Config
	logger zerolog.Logger

	mu        sync.Mutex
	listeners map[net.Listener]struct{}
	conns     map[*clients.Conn]struct{}
	closed    bool
	quit      chan struct{}
	wg        sync.WaitGroup
}

// New creates a TCP server for h
func New(h *hub.Hub, config Config) *Server {
	if config.AnnounceChannel == "" {
		config.AnnounceChannel = DefaultAnnounceChannel
	}
	if config.MaxLineBytes <= 0 {
		config.MaxLineBytes = DefaultMaxLineBytes
	}
	return &Server{
		hub:       h,
		config:    config,
		logger:    config.Logger.With().Str("component", "tcpserver").Logger(),
		listeners: make(map[net.Listener]struct{}),
		conns:     make(map[*clients.Conn]struct{}),
		quit:      make(chan struct{}),
	}
}

// Serve accepts connections on ln until ctx is cancelled or Close is called.
// It always closes ln. Connections accepted before ctx is cancelled stay
// open until their peer hangs up or Close is called.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if !s.track(ln) {
		ln.Close()
		return ErrServerClosed
	}
	defer s.untrack(ln)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			ln.Close()
		case <-done:
		}
	}()

	s.logger.Info().Str("address", ln.Addr().String()).Msg("TCP server started")

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return ErrServerClosed
			default:
			}
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Error().Err(err).Msg("Accept error")
			continue
		}

		client := clients.NewConn(conn, s.config.WriteTimeout, s.logger)
		if !s.add(client) {
			client.Close()
			return ErrServerClosed
		}
		go func() {
			defer s.wg.Done()
			s.handleConnection(ctx, client, conn)
		}()
	}
}

// Close stops every listener, closes every connection and waits for the
// connection handlers to finish.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.quit)
	for ln := range s.listeners {
		ln.Close()
	}
	for client := range s.conns {
		client.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

func (s *Server) handleConnection(ctx context.Context, client *clients.Conn, conn net.Conn) {
	defer s.remove(client)
	defer client.Close()

	logger := s.logger.With().Str("client_id", client.ID()).Logger()
	logger.Debug().Msg("New connection")

	if err := s.join(ctx, client); err != nil {
		logger.Error().Err(err).Msg("Failed to register connection")
		_ = client.WriteLine("ERR " + err.Error())
		return
	}
	defer s.hub.Disconnect(client)

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, min(4096, s.config.MaxLineBytes)), s.config.MaxLineBytes)
	for scanner.Scan() {
		reply, quit := s.execute(ctx, client, scanner.Text())
		if reply != "" {
			if err := client.WriteLine(reply); err != nil {
				logger.Debug().Err(err).Msg("Failed to write reply")
				return
			}
		}
		if quit {
			return
		}
	}

	switch err := scanner.Err(); {
	case errors.Is(err, bufio.ErrTooLong):
		logger.Warn().Int("max_line_bytes", s.config.MaxLineBytes).Msg("Command line too long, closing connection")
		_ = client.WriteLine("ERR line too long")
	case err != nil && !errors.Is(err, net.ErrClosed):
		logger.Debug().Err(err).Msg("Read error")
	}
	logger.Debug().Msg("Connection closed")
}

// join registers the connection, subscribes it to the announce channel and
// announces it to everyone listening there, itself included.
func (s *Server) join(ctx context.Context, client *clients.Conn) error {
	if err := s.hub.Connect(client); err != nil {
		return err
	}
	if err := s.hub.Subscribe(client, s.config.AnnounceChannel); err != nil {
		s.hub.Disconnect(client)
		return err
	}

	_, _, err := s.hub.Publish(ctx, s.config.AnnounceChannel, hub.PublishRequest{
		Publisher: s.hub.NodeID(),
		Payload:   hub.TextPayload(fmt.Sprintf("A new client (%s) joined the pubsub server!", client.ID())),
	})
	if err != nil {
		s.hub.Disconnect(client)
		return err
	}
	return nil
}

// execute runs one command line and returns the reply and whether the
// connection should be closed.
func (s *Server) execute(ctx context.Context, client *clients.Conn, line string) (string, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", false
	}

	command, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToUpper(command) {
	case "SUB":
		if rest == "" {
			return "ERR usage: SUB <channel>", false
		}
		return reply(s.hub.Subscribe(client, rest)), false

	case "UNSUB":
		if rest == "" {
			return "ERR usage: UNSUB <channel>", false
		}
		return reply(s.hub.Unsubscribe(client, rest)), false

	case "PUB":
		channel, payload, _ := strings.Cut(rest, " ")
		if channel == "" {
			return "ERR usage: PUB <channel> <payload>", false
		}
		_, _, err := s.hub.Publish(ctx, channel, hub.PublishRequest{
			Publisher: client.ID(),
			Payload:   hub.TextPayload(payload),
		})
		return reply(err), false

	case "QUIT":
		return "OK", true

	default:
		return fmt.Sprintf("ERR unknown command %q", command), false
	}
}

func reply(err error) string {
	if err != nil {
		return "ERR " + err.Error()
	}
	return "OK"
}

func (s *Server) track(ln net.Listener) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.listeners[ln] = struct{}{}
	return true
}

func (s *Server) untrack(ln net.Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.listeners, ln)
	ln.Close()
}

func (s *Server) add(client *clients.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[client] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) remove(client *clients.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, client)
}
