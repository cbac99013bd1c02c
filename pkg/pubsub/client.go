package pubsub

// Client is an entity that can receive messages from a PubSub.
//
// ID must return the same value for as long as the client is registered;
// changing it while registered leaves the owning registry in an undefined
// state. Send may block or fail; the registry never inspects the outcome.
type Client[I comparable, M any] interface {
	// ID returns the unique identifier for this client
	ID() I

	// Send delivers a message to this client
	Send(msg M)
}

// ClientFunc adapts an identifier and a delivery function into a Client.
type ClientFunc[I comparable, M any] struct {
	Identifier I
	Deliver    func(msg M)
}

// NewClientFunc returns a Client that calls deliver for every message.
func NewClientFunc[I comparable, M any](id I, deliver func(msg M)) ClientFunc[I, M] {
	return ClientFunc[I, M]{Identifier: id, Deliver: deliver}
}

// ID returns the identifier the client was built with
func (c ClientFunc[I, M]) ID() I {
	return c.Identifier
}

// Send calls the delivery function, if any
func (c ClientFunc[I, M]) Send(msg M) {
	if c.Deliver != nil {
		c.Deliver(msg)
	}
}
