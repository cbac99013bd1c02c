// Package clients provides concrete pubsub clients: a console printer, a
// TCP connection writer and a buffered Go channel stream.
package clients

import (
	"fmt"
	"io"

	"github.com/rmacdonaldsmith/pubsub-go/pkg/pubsub"
)

// Format renders the delivery line shared by console and TCP clients
func Format(id any, channel string, contents any) string {
	return fmt.Sprintf("Client (%v) Received Message from Channel (%s): %v", id, channel, contents)
}

// Console prints every message it receives to a writer, one line each.
type Console[I comparable, T any] struct {
	id I
	w  io.Writer
}

// NewConsole creates a console client writing to w
func NewConsole[I comparable, T any](id I, w io.Writer) *Console[I, T] {
	return &Console[I, T]{id: id, w: w}
}

// ID returns unique identifier for this client
func (c *Console[I, T]) ID() I {
	return c.id
}

// Send writes the message to the console writer
func (c *Console[I, T]) Send(msg pubsub.Message[T]) {
	fmt.Fprintln(c.w, Format(c.id, msg.Source, msg.Contents))
}
