package httpclient

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// StreamClient handles Server-Sent Events streaming
type StreamClient struct {
	client *Client
	events chan EventStreamMessage
	errors chan error
	ready  chan struct{}
	done   chan struct{}
	cancel context.CancelFunc

	readyOnce sync.Once
}

// StreamConfig configures the streaming client
type StreamConfig struct {
	// Channels to stream, literal or pattern. When empty the stream delivers
	// everything this client subscribed to with CreateSubscription.
	Channels []string

	// BufferSize for the event channel
	BufferSize int

	// ReconnectDelay for automatic reconnection
	ReconnectDelay time.Duration

	// MaxReconnectAttempts (0 = infinite)
	MaxReconnectAttempts int
}

// SetDefaults sets reasonable default values for StreamConfig
func (sc *StreamConfig) SetDefaults() {
	if sc.BufferSize == 0 {
		sc.BufferSize = 100
	}
	if sc.ReconnectDelay == 0 {
		sc.ReconnectDelay = 2 * time.Second
	}
}

// Stream opens an SSE stream of events and keeps it connected until Close
// or ctx is cancelled.
func (c *Client) Stream(ctx context.Context, config StreamConfig) (*StreamClient, error) {
	if c.token == "" {
		return nil, ErrNotAuthenticated
	}

	config.SetDefaults()

	streamCtx, cancel := context.WithCancel(ctx)

	streamClient := &StreamClient{
		client: c,
		events: make(chan EventStreamMessage, config.BufferSize),
		errors: make(chan error, 10),
		ready:  make(chan struct{}),
		done:   make(chan struct{}),
		cancel: cancel,
	}

	go streamClient.startStreaming(streamCtx, config)

	return streamClient, nil
}

// Events returns the channel for receiving events
func (sc *StreamClient) Events() <-chan EventStreamMessage {
	return sc.events
}

// Errors returns the channel for receiving errors
func (sc *StreamClient) Errors() <-chan error {
	return sc.errors
}

// Ready is closed once the server has confirmed the first connection, after
// which published events are delivered to the stream
func (sc *StreamClient) Ready() <-chan struct{} {
	return sc.ready
}

// Done returns a channel that's closed when streaming ends
func (sc *StreamClient) Done() <-chan struct{} {
	return sc.done
}

// Close stops the streaming client and waits for it to finish
func (sc *StreamClient) Close() error {
	sc.cancel()
	<-sc.done
	return nil
}

// startStreaming handles the SSE streaming loop with reconnection
func (sc *StreamClient) startStreaming(ctx context.Context, config StreamConfig) {
	defer close(sc.done)
	defer close(sc.events)
	defer close(sc.errors)

	attempts := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		err := sc.connectAndStream(ctx, config)
		if err != nil && ctx.Err() == nil {
			select {
			case sc.errors <- fmt.Errorf("streaming error: %w", err):
			default:
			}
		}

		if config.MaxReconnectAttempts > 0 && attempts >= config.MaxReconnectAttempts {
			select {
			case sc.errors <- fmt.Errorf("max reconnect attempts (%d) exceeded", config.MaxReconnectAttempts):
			default:
			}
			return
		}

		attempts++

		select {
		case <-time.After(config.ReconnectDelay):
		case <-ctx.Done():
			return
		}
	}
}

// connectAndStream establishes SSE connection and processes events
func (sc *StreamClient) connectAndStream(ctx context.Context, config StreamConfig) error {
	streamURL := sc.client.baseURL.ResolveReference(&url.URL{Path: "/api/v1/events/stream"})
	if len(config.Channels) > 0 {
		streamURL.RawQuery = url.Values{"channel": config.Channels}.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create streaming request: %w", err)
	}

	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Authorization", "Bearer "+sc.client.token)

	resp, err := sc.client.streamHTTP.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return apiError(resp.StatusCode, bodyBytes)
	}

	return sc.processSSEStream(ctx, resp.Body)
}

// processSSEStream reads and parses Server-Sent Events
func (sc *StreamClient) processSSEStream(ctx context.Context, reader io.Reader) error {
	scanner := bufio.NewScanner(reader)

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case strings.HasPrefix(line, "data: "):
			var event EventStreamMessage
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
				select {
				case sc.errors <- fmt.Errorf("failed to parse event: %w", err):
				default:
				}
				continue
			}

			select {
			case sc.events <- event:
			case <-ctx.Done():
				return ctx.Err()
			}

		case strings.HasPrefix(line, ": connected"):
			sc.readyOnce.Do(func() { close(sc.ready) })
		}
		// keepalive comments, blank separators and other fields are ignored
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading SSE stream: %w", err)
	}

	return nil
}
