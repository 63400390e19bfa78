// Package wstransport implements serpent.Transport over a WebSocket
// connection speaking STOMP, the protocol of the Serpentia game server's
// /ws endpoint.
package wstransport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"serpentia/serpent"
)

const defaultHandshakeTimeout = 10 * time.Second

// Config configures a Transport. URL is the websocket endpoint
// (ws://host/ws); Token is the opaque bearer credential passed as a
// connection parameter. Zero values get defaults.
type Config struct {
	URL              string
	Token            string
	Logger           *slog.Logger
	HandshakeTimeout time.Duration
}

// Transport is a single-connection STOMP client. It can be connected and
// closed repeatedly; topic subscriptions do not survive a close, callers
// re-establish them after the next connect.
type Transport struct {
	cfg    Config
	logger *slog.Logger
	dialer *websocket.Dialer

	mu   sync.Mutex
	conn *websocket.Conn
	subs map[string]string // topic -> subscription id
	// generation invalidates the read pump of a previous connection, so a
	// stale pump exiting cannot close the state of a newer one.
	generation uint64

	connected atomic.Bool
	closing   atomic.Bool

	onOpen    func()
	onClose   func(error)
	onMessage func(string, []byte)
	onError   func(error)
}

// New creates a Transport from the given config.
func New(cfg Config) *Transport {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.HandshakeTimeout
	if timeout <= 0 {
		timeout = defaultHandshakeTimeout
	}

	return &Transport{
		cfg:    cfg,
		logger: logger,
		dialer: &websocket.Dialer{HandshakeTimeout: timeout},
		subs:   make(map[string]string),

		onOpen:    func() {},
		onClose:   func(error) {},
		onMessage: func(string, []byte) {},
		onError:   func(error) {},
	}
}

func (t *Transport) OnOpen(fn func()) { t.onOpen = fn }

func (t *Transport) OnClose(fn func(err error)) { t.onClose = fn }

func (t *Transport) OnMessage(fn func(topic string, body []byte)) { t.onMessage = fn }

func (t *Transport) OnError(fn func(err error)) { t.onError = fn }

// ==================================================================
// Lifecycle
// ==================================================================

// Connect dials the endpoint and starts the STOMP handshake. OnOpen fires
// once the server acknowledges with CONNECTED. There is no internal
// timeout beyond the websocket handshake; callers race ctx externally.
func (t *Transport) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.conn != nil {
		t.mu.Unlock()
		return serpent.ErrAlreadyConnected
	}
	t.mu.Unlock()

	endpoint, err := t.endpoint()
	if err != nil {
		return err
	}

	conn, _, err := t.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", t.cfg.URL, err)
	}

	host := conn.RemoteAddr().String()
	if u, err := url.Parse(t.cfg.URL); err == nil && u.Host != "" {
		host = u.Hostname()
	}

	t.mu.Lock()
	t.conn = conn
	t.closing.Store(false)
	t.generation++
	gen := t.generation
	err = t.writeFrame(frame{
		command: cmdConnect,
		headers: [][2]string{
			{hdrAcceptVersion, "1.2"},
			{hdrHost, host},
		},
	})
	t.mu.Unlock()

	if err != nil {
		t.teardown(gen)
		return fmt.Errorf("stomp connect: %w", err)
	}

	go t.readPump(conn, gen)
	return nil
}

func (t *Transport) endpoint() (string, error) {
	u, err := url.Parse(t.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", t.cfg.URL, err)
	}
	if t.cfg.Token != "" {
		q := u.Query()
		q.Set("token", t.cfg.Token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Close shuts the connection down deliberately; OnClose fires with a nil
// error. Safe to call when not connected.
func (t *Transport) Close() error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	if conn == nil {
		return nil
	}
	t.closing.Store(true)

	deadline := time.Now().Add(time.Second)
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		deadline,
	)
	return conn.Close()
}

// Connected reports whether the STOMP handshake has completed.
func (t *Transport) Connected() bool {
	return t.connected.Load()
}

// teardown clears the connection state for a given pump generation.
func (t *Transport) teardown(gen uint64) {
	t.mu.Lock()
	if t.generation != gen {
		t.mu.Unlock()
		return
	}
	conn := t.conn
	t.conn = nil
	t.subs = make(map[string]string)
	t.mu.Unlock()

	t.connected.Store(false)
	if conn != nil {
		conn.Close()
	}
}

// ==================================================================
// Outbound
// ==================================================================

// Subscribe opens a server-side subscription for a topic. Subscribing a
// topic that is already subscribed is a no-op.
func (t *Transport) Subscribe(topic string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		if t.closing.Load() {
			return serpent.ErrTransportClosed
		}
		return serpent.ErrNotConnected
	}
	if _, ok := t.subs[topic]; ok {
		return nil
	}

	id := uuid.NewString()
	err := t.writeFrame(frame{
		command: cmdSubscribe,
		headers: [][2]string{
			{hdrID, id},
			{hdrDestination, topic},
		},
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	t.subs[topic] = id
	return nil
}

// Unsubscribe closes the server-side subscription for a topic. Unknown
// topics are a no-op.
func (t *Transport) Unsubscribe(topic string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	id, ok := t.subs[topic]
	if !ok {
		return nil
	}
	delete(t.subs, topic)

	if t.conn == nil {
		return nil
	}
	err := t.writeFrame(frame{
		command: cmdUnsubscribe,
		headers: [][2]string{{hdrID, id}},
	})
	if err != nil {
		return fmt.Errorf("unsubscribe %s: %w", topic, err)
	}
	return nil
}

// Send publishes a payload to a destination.
func (t *Transport) Send(destination string, body []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		if t.closing.Load() {
			return serpent.ErrTransportClosed
		}
		return serpent.ErrNotConnected
	}
	err := t.writeFrame(frame{
		command: cmdSend,
		headers: [][2]string{
			{hdrDestination, destination},
			{hdrContentType, "application/json"},
		},
		body: body,
	})
	if err != nil {
		return fmt.Errorf("send to %s: %w", destination, err)
	}
	return nil
}

// writeFrame writes one frame. Callers must hold t.mu; gorilla permits a
// single concurrent writer.
func (t *Transport) writeFrame(f frame) error {
	return t.conn.WriteMessage(websocket.TextMessage, marshalFrame(f))
}

// ==================================================================
// Inbound
// ==================================================================

func (t *Transport) readPump(conn *websocket.Conn, gen uint64) {
	var closeErr error
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !t.closing.Load() && !errors.Is(err, websocket.ErrCloseSent) {
				closeErr = err
			}
			break
		}
		if isHeartbeat(data) {
			continue
		}

		f, err := parseFrame(data)
		if err != nil {
			t.logger.Warn("dropping malformed frame", "error", err)
			continue
		}
		t.handleFrame(f)
	}

	wasConnected := t.connected.Load()
	t.teardown(gen)
	if wasConnected || closeErr != nil {
		t.onClose(closeErr)
	}
}

func (t *Transport) handleFrame(f frame) {
	switch f.command {
	case cmdConnected:
		t.connected.Store(true)
		t.logger.Debug("stomp session established")
		t.onOpen()

	case cmdMessage:
		topic, ok := f.header(hdrDestination)
		if !ok {
			t.logger.Warn("message frame without destination")
			return
		}
		t.onMessage(topic, f.body)

	case cmdError:
		msg, _ := f.header(hdrMessage)
		if msg == "" {
			msg = string(f.body)
		}
		t.onError(fmt.Errorf("server error: %s", msg))

	case cmdReceipt:
		// Receipts are not requested; ignore.

	default:
		t.logger.Warn("unexpected frame", "command", f.command)
	}
}
