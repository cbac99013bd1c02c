// Package pubsub provides an in-process publish/subscribe registry.
//
// A PubSub tracks a set of addressable clients, their subscriptions to named
// channels and dispatches published messages to the deduplicated set of
// current subscribers:
//   - Client: anything with a stable ID and a Send method
//   - literal channels: names without wildcards, matched exactly
//   - pattern channels: names containing '*' or '?', matched with glob rules
//
// Example usage:
//
//	ps := pubsub.New[int, pubsub.Message[string]]()
//	_ = ps.AddClient(client)
//	if err := ps.Subscribe(client, "orders.*"); err != nil {
//		return err
//	}
//	pubsub.PublishFrom(ps, "orders.created", "hello", pubsub.Wrap[string])
//
// Wildcard patterns:
//   - "*" matches any run of characters, including the empty run
//   - "?" matches exactly one character
//   - every other character matches itself; matching is case-sensitive and
//     anchored to the whole channel name, and there is no escape syntax
//
// Delivery goes to each unique subscriber exactly once, in ascending
// identifier order, even when the client is subscribed to the literal name and
// to one or more patterns matching it.
//
// A PubSub is a single-owner data structure. Use Locked when several
// goroutines drive the same registry.
package pubsub
