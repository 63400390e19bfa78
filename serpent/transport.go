package serpent

import (
	"context"
	"errors"
)

var (
	ErrTransportClosed  = errors.New("transport is closed")
	ErrNotConnected     = errors.New("transport is not connected")
	ErrAlreadyConnected = errors.New("transport is already connected")
)

// Transport is a persistent, topic-addressable connection to the server.
// Implementations deliver inbound traffic through the On* callbacks; all
// callbacks are invoked from a single read loop, so handlers never run
// concurrently with each other.
type Transport interface {
	// Connect establishes the connection. Completion of the handshake is
	// signalled through the OnOpen callback, not by Connect returning.
	Connect(ctx context.Context) error

	// Close tears the connection down. Safe to call when not connected.
	Close() error

	// Subscribe registers interest in a topic on the server. At most one
	// server-side subscription exists per topic.
	Subscribe(topic string) error

	// Unsubscribe removes the server-side subscription for a topic.
	// Unsubscribing an unknown topic is a no-op.
	Unsubscribe(topic string) error

	// Send publishes a payload to a destination.
	Send(destination string, body []byte) error

	// Connected reports whether the handshake has completed.
	Connected() bool

	OnOpen(fn func())
	OnClose(fn func(err error))
	OnMessage(fn func(topic string, body []byte))
	OnError(fn func(err error))
}

// Publisher is the outbound half of the Client, accepted by components that
// only ever publish (the input controller, the start-game trigger).
type Publisher interface {
	Publish(destination string, body []byte) error
}
