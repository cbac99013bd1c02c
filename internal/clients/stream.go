package clients

import (
	"sync"
	"sync/atomic"

	"github.com/rmacdonaldsmith/pubsub-go/internal/telemetry"
)

// DefaultStreamBuffer is the buffer size used when NewStream is given zero
const DefaultStreamBuffer = 100

// Stream is a client that queues messages on a buffered channel for a
// consumer goroutine. Send never blocks: when the buffer is full the message
// is dropped and counted.
type Stream[M any] struct {
	id string

	mu      sync.RWMutex
	events  chan M
	closed  bool
	dropped atomic.Int64
}

// NewStream creates a stream client with the given buffer size
func NewStream[M any](id string, buffer int) *Stream[M] {
	if buffer <= 0 {
		buffer = DefaultStreamBuffer
	}
	return &Stream[M]{
		id:     id,
		events: make(chan M, buffer),
	}
}

// ID returns unique identifier for this client
func (s *Stream[M]) ID() string {
	return s.id
}

// Send queues msg without blocking
func (s *Stream[M]) Send(msg M) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return
	}
	select {
	case s.events <- msg:
	default:
		s.dropped.Add(1)
		telemetry.DroppedDeliveriesTotal.Inc()
	}
}

// Events returns the channel messages are queued on. It is closed by Close.
func (s *Stream[M]) Events() <-chan M {
	return s.events
}

// Dropped returns how many messages were dropped because the buffer was full
func (s *Stream[M]) Dropped() int64 {
	return s.dropped.Load()
}

// Close stops accepting messages and closes the events channel
func (s *Stream[M]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.events)
}
