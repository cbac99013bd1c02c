package pubsub

import "errors"

var (
	// ErrClientAlreadySubscribed is returned when a client subscribes to a channel it is already subscribed to
	ErrClientAlreadySubscribed = errors.New("pubsub: client already subscribed to channel")
	// ErrClientNotSubscribed is returned when a client unsubscribes from a channel it is not subscribed to
	ErrClientNotSubscribed = errors.New("pubsub: client is not subscribed to channel")
	// ErrChannelDoesNotExist is returned when unsubscribing from a channel nobody ever subscribed to
	ErrChannelDoesNotExist = errors.New("pubsub: channel does not exist")
	// ErrClientWithIdentifierAlreadyExists is returned by strict registries when an identifier is re-registered
	ErrClientWithIdentifierAlreadyExists = errors.New("pubsub: client with that identifier already exists")
	// ErrClientDoesNotExist is returned by registries requiring registration before subscribing
	ErrClientDoesNotExist = errors.New("pubsub: client does not exist")
	// ErrInvalidPattern is returned when a pattern channel cannot be compiled
	ErrInvalidPattern = errors.New("pubsub: invalid channel pattern")
	// ErrEmptyChannel is for services that refuse empty channel names. The
	// registry itself accepts "" as a literal channel.
	ErrEmptyChannel = errors.New("pubsub: channel name cannot be empty")
)
