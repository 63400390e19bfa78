package serpent

import (
	"context"
	"log/slog"
	"sync"
)

// ConnState is the lifecycle phase of the client connection.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	}
	return "disconnected"
}

// ClientOptions configures a Client. Zero values get defaults.
type ClientOptions struct {
	Transport Transport
	Logger    *slog.Logger
}

// Client owns the single persistent server connection and the ref-counted
// topic subscriptions multiplexed over it. It is constructed explicitly and
// passed to its consumers; there is no process-wide instance.
type Client struct {
	transport Transport
	registry  *registry
	logger    *slog.Logger

	mu    sync.Mutex
	state ConnState

	onConnect    func()
	onDisconnect func(err error)
	onError      func(err error)
}

// NewClient creates a Client over the given transport and wires itself into
// the transport's lifecycle callbacks.
func NewClient(opts ClientOptions) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		transport:    opts.Transport,
		logger:       logger,
		onConnect:    func() {},
		onDisconnect: func(error) {},
		onError:      func(error) {},
	}
	c.registry = newRegistry(opts.Transport, logger)

	c.transport.OnOpen(c.handleOpen)
	c.transport.OnClose(c.handleClose)
	c.transport.OnMessage(c.registry.dispatch)
	c.transport.OnError(c.handleError)

	return c
}

// ==================================================================
// Lifecycle
// ==================================================================

// Connect establishes the connection. It is idempotent while a connection is
// pending or active. Handshake failures are reported through the error
// callback as well as the returned error; the client never retries on its
// own, retry policy belongs to the caller.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return nil
	}
	c.state = StateConnecting
	c.mu.Unlock()

	if err := c.transport.Connect(ctx); err != nil {
		c.mu.Lock()
		c.state = StateDisconnected
		c.mu.Unlock()

		c.logger.Error("connect failed", "error", err)
		c.onError(err)
		return err
	}
	return nil
}

// Disconnect tears down the connection and deactivates every subscription.
// Listener interest survives, so a later Connect re-establishes the same
// topics. Safe to call when not connected.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	if c.state == StateDisconnected {
		c.mu.Unlock()
		return nil
	}
	c.state = StateDisconnected
	c.mu.Unlock()

	c.registry.deactivateAll()
	return c.transport.Close()
}

// State returns the current connection state.
func (c *Client) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// OnConnect sets the callback invoked after the handshake completes and the
// pending subscriptions have been re-established.
func (c *Client) OnConnect(fn func()) {
	c.onConnect = fn
}

// OnDisconnect sets the callback invoked when the connection drops. err is
// nil for a deliberate Disconnect.
func (c *Client) OnDisconnect(fn func(err error)) {
	c.onDisconnect = fn
}

// OnError sets the callback invoked for transport-level errors.
func (c *Client) OnError(fn func(err error)) {
	c.onError = fn
}

func (c *Client) handleOpen() {
	c.mu.Lock()
	c.state = StateConnected
	c.mu.Unlock()

	c.logger.Debug("connection established")
	c.registry.activateAll()
	c.onConnect()
}

func (c *Client) handleClose(err error) {
	c.mu.Lock()
	wasConnected := c.state != StateDisconnected
	c.state = StateDisconnected
	c.mu.Unlock()

	if !wasConnected {
		return
	}
	if err != nil {
		c.logger.Warn("connection lost", "error", err)
	}
	c.registry.deactivateAll()
	c.onDisconnect(err)
}

func (c *Client) handleError(err error) {
	c.logger.Error("transport error", "error", err)
	c.onError(err)
}

// ==================================================================
// Messaging
// ==================================================================

// Publish sends a payload to a destination. While disconnected it is a
// silent no-op, not an error; callers that need delivery guarantees must
// check State first.
func (c *Client) Publish(destination string, body []byte) error {
	c.mu.Lock()
	connected := c.state == StateConnected
	c.mu.Unlock()

	if !connected {
		c.logger.Debug("publish dropped while disconnected", "destination", destination)
		return nil
	}
	return c.transport.Send(destination, body)
}

// Subscribe registers a listener for a topic and returns its disposer. The
// first listener on a topic creates the server-side subscription, the last
// disposer removes it. Subscribing while disconnected records the interest;
// it becomes active automatically on the next successful connect, in the
// order the topics were first requested. Disposing twice is a no-op.
func (c *Client) Subscribe(topic string, fn Listener) func() {
	return c.registry.addListener(topic, fn)
}
