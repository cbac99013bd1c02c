package clients

import (
	"bufio"
	"bytes"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmacdonaldsmith/pubsub-go/internal/hub"
	"github.com/rmacdonaldsmith/pubsub-go/pkg/pubsub"
)

func TestConsole_Send(t *testing.T) {
	var buf bytes.Buffer
	ps := pubsub.New[int, pubsub.Message[string]]()
	console := NewConsole[int, string](7, &buf)
	require.NoError(t, ps.AddClient(console))
	require.NoError(t, ps.Subscribe(console, "channel.*"))

	pubsub.PublishFrom(ps, "channel.one", "hello", pubsub.Wrap[string])

	assert.Equal(t, "Client (7) Received Message from Channel (channel.one): hello\n", buf.String())
	assert.Equal(t, 7, console.ID())
}

func TestConn_SendAndWriteLine(t *testing.T) {
	server, peer := net.Pipe()
	defer peer.Close()

	conn := NewConn(server, time.Second, zerolog.Nop())
	defer conn.Close()
	assert.Equal(t, server.RemoteAddr().String(), conn.ID())

	reader := bufio.NewReader(peer)
	go conn.Send(hub.Event{Channel: "clients.all", Payload: hub.TextPayload("welcome")})

	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, Format(conn.ID(), "clients.all", "welcome")+"\n", line)

	go func() { _ = conn.WriteLine("OK") }()
	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "OK\n", line)
}

func TestConn_WriteFailures(t *testing.T) {
	t.Run("closed client", func(t *testing.T) {
		server, peer := net.Pipe()
		defer peer.Close()

		conn := NewConn(server, time.Second, zerolog.Nop())
		require.NoError(t, conn.Close())
		require.NoError(t, conn.Close())

		assert.ErrorIs(t, conn.WriteLine("OK"), ErrConnClosed)
		conn.Send(hub.Event{Channel: "a"})
	})

	t.Run("write deadline", func(t *testing.T) {
		server, peer := net.Pipe()
		defer peer.Close()

		conn := NewConn(server, 20*time.Millisecond, zerolog.Nop())
		defer conn.Close()

		// nobody reads from peer, so the write times out
		err := conn.WriteLine("stuck")
		require.Error(t, err)
		var netErr net.Error
		require.ErrorAs(t, err, &netErr)
		assert.True(t, netErr.Timeout())
	})
}

func TestStream(t *testing.T) {
	t.Run("queues and drops when full", func(t *testing.T) {
		s := NewStream[string]("s1", 2)
		s.Send("a")
		s.Send("b")
		s.Send("c")

		assert.Equal(t, int64(1), s.Dropped())
		assert.Equal(t, "a", <-s.Events())
		assert.Equal(t, "b", <-s.Events())
	})

	t.Run("default buffer", func(t *testing.T) {
		s := NewStream[int]("s2", 0)
		assert.Equal(t, DefaultStreamBuffer, cap(s.events))
	})

	t.Run("close", func(t *testing.T) {
		s := NewStream[int]("s3", 1)
		s.Close()
		s.Close()
		s.Send(1)

		_, ok := <-s.Events()
		assert.False(t, ok)
		assert.Zero(t, s.Dropped())
	})

	t.Run("concurrent send and close", func(t *testing.T) {
		s := NewStream[int]("s4", 10)
		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					s.Send(j)
				}
			}()
		}
		s.Close()
		wg.Wait()
	})
}
