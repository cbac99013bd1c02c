package pubsub

// Message is the envelope delivered to clients when the publish-time payload
// is wrapped with Wrap: the payload plus the channel it was published to.
type Message[T any] struct {
	Source   string
	Contents T
}

// Wrap builds a Message from a publish-time payload. It can be passed to
// PublishFrom directly.
func Wrap[T any](channel string, contents T) Message[T] {
	return Message[T]{Source: channel, Contents: contents}
}

// Publisher is the publish side of a registry, satisfied by PubSub and Locked.
type Publisher[M any] interface {
	Publish(channel string, msg M)
}

// PublishFrom converts in into the registry's message type once, then
// publishes it to channel.
func PublishFrom[M, In any](p Publisher[M], channel string, in In, into func(channel string, in In) M) {
	p.Publish(channel, into(channel, in))
}
