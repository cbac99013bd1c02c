package clients

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rmacdonaldsmith/pubsub-go/internal/hub"
	"github.com/rmacdonaldsmith/pubsub-go/internal/telemetry"
)

// ErrConnClosed is returned when writing to a closed connection client
var ErrConnClosed = errors.New("clients: connection closed")

// Conn is a hub client backed by a network connection and identified by the
// peer's address. Deliveries and command replies share one write lock so
// lines never interleave.
type Conn struct {
	id           string
	conn         net.Conn
	writeTimeout time.Duration
	logger       zerolog.Logger

	mu     sync.Mutex
	closed bool
}

// NewConn wraps conn. A zero writeTimeout disables write deadlines.
func NewConn(conn net.Conn, writeTimeout time.Duration, logger zerolog.Logger) *Conn {
	id := conn.RemoteAddr().String()
	return &Conn{
		id:           id,
		conn:         conn,
		writeTimeout: writeTimeout,
		logger:       logger.With().Str("client_id", id).Logger(),
	}
}

// ID returns the remote address of the connection
func (c *Conn) ID() string {
	return c.id
}

// Send writes the event as a delivery line. Write failures are logged and
// counted as drops; the connection's reader notices the broken peer.
func (c *Conn) Send(event hub.Event) {
	if err := c.WriteLine(Format(c.id, event.Channel, event.Text())); err != nil {
		telemetry.DroppedDeliveriesTotal.Inc()
		c.logger.Warn().Err(err).Str("channel", event.Channel).Msg("Failed to write message to client")
	}
}

// WriteLine writes line followed by a newline
func (c *Conn) WriteLine(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnClosed
	}
	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	_, err := c.conn.Write([]byte(line + "\n"))
	return err
}

// Close closes the underlying connection. Later writes fail with ErrConnClosed.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}
