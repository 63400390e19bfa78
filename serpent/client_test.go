package serpent

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// fakeTransport records outbound calls and lets tests drive the inbound
// callbacks by hand.
type fakeTransport struct {
	mu           sync.Mutex
	connectCalls int
	connectErr   error
	connected    bool
	subscribes   []string
	unsubscribes []string
	sends        map[string][][]byte

	onOpen    func()
	onClose   func(error)
	onMessage func(string, []byte)
	onError   func(error)
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{sends: make(map[string][][]byte)}
}

func (f *fakeTransport) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectCalls++
	return f.connectErr
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) Subscribe(topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribes = append(f.subscribes, topic)
	return nil
}

func (f *fakeTransport) Unsubscribe(topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribes = append(f.unsubscribes, topic)
	return nil
}

func (f *fakeTransport) Send(destination string, body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends[destination] = append(f.sends[destination], body)
	return nil
}

func (f *fakeTransport) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeTransport) OnOpen(fn func())                  { f.onOpen = fn }
func (f *fakeTransport) OnClose(fn func(error))            { f.onClose = fn }
func (f *fakeTransport) OnMessage(fn func(string, []byte)) { f.onMessage = fn }
func (f *fakeTransport) OnError(fn func(error))            { f.onError = fn }

// open simulates the server acknowledging the handshake.
func (f *fakeTransport) open() {
	f.mu.Lock()
	f.connected = true
	f.mu.Unlock()
	f.onOpen()
}

// drop simulates the connection going away.
func (f *fakeTransport) drop(err error) {
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
	f.onClose(err)
}

func newTestClient(t *testing.T) (*Client, *fakeTransport) {
	t.Helper()
	ft := newFakeTransport()
	return NewClient(ClientOptions{Transport: ft}), ft
}

func TestConnectIsIdempotent(t *testing.T) {
	c, ft := newTestClient(t)

	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	if ft.connectCalls != 1 {
		t.Fatalf("expected 1 transport connect, got %d", ft.connectCalls)
	}

	ft.open()
	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	if ft.connectCalls != 1 {
		t.Fatalf("connect after open dialed again: %d calls", ft.connectCalls)
	}
}

func TestConnectFailureReportedViaCallback(t *testing.T) {
	ft := newFakeTransport()
	ft.connectErr = errors.New("refused")
	c := NewClient(ClientOptions{Transport: ft})

	var reported error
	c.OnError(func(err error) { reported = err })

	if err := c.Connect(context.Background()); !errors.Is(err, ft.connectErr) {
		t.Fatalf("expected connect error, got %v", err)
	}
	if !errors.Is(reported, ft.connectErr) {
		t.Fatalf("error callback got %v", reported)
	}
	if got := c.State(); got != StateDisconnected {
		t.Fatalf("state after failed connect = %v", got)
	}

	// A failed attempt must not wedge the client.
	if err := c.Connect(context.Background()); err == nil {
		t.Fatal("expected second connect to dial and fail again")
	}
	if ft.connectCalls != 2 {
		t.Fatalf("expected 2 dials, got %d", ft.connectCalls)
	}
}

func TestPublishWhileDisconnectedIsSilentNoop(t *testing.T) {
	c, ft := newTestClient(t)

	if err := c.Publish("/app/room/r1/move", []byte(`{}`)); err != nil {
		t.Fatalf("publish while disconnected returned %v", err)
	}
	if len(ft.sends) != 0 {
		t.Fatalf("payload was sent while disconnected: %v", ft.sends)
	}

	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	ft.open()
	if err := c.Publish("/app/room/r1/move", []byte(`{}`)); err != nil {
		t.Fatal(err)
	}
	if got := len(ft.sends["/app/room/r1/move"]); got != 1 {
		t.Fatalf("expected 1 send, got %d", got)
	}
}

func TestLifecycleCallbacks(t *testing.T) {
	c, ft := newTestClient(t)

	var connects int
	var disconnectErr error
	c.OnConnect(func() { connects++ })
	c.OnDisconnect(func(err error) { disconnectErr = err })

	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	ft.open()
	if connects != 1 {
		t.Fatalf("expected 1 connect callback, got %d", connects)
	}
	if got := c.State(); got != StateConnected {
		t.Fatalf("state = %v", got)
	}

	dropErr := errors.New("gone")
	ft.drop(dropErr)
	if !errors.Is(disconnectErr, dropErr) {
		t.Fatalf("disconnect callback got %v", disconnectErr)
	}
	if got := c.State(); got != StateDisconnected {
		t.Fatalf("state after drop = %v", got)
	}
}

func TestDisconnectWhenNotConnected(t *testing.T) {
	c, _ := newTestClient(t)
	if err := c.Disconnect(); err != nil {
		t.Fatal(err)
	}
}

func TestQueuedSubscriptionsActivateInOrder(t *testing.T) {
	c, ft := newTestClient(t)

	c.Subscribe("/topic/lobby", func([]byte) {})
	c.Subscribe("/topic/game/r1", func([]byte) {})

	if len(ft.subscribes) != 0 {
		t.Fatalf("subscribed before connect: %v", ft.subscribes)
	}

	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	ft.open()

	want := []string{"/topic/lobby", "/topic/game/r1"}
	if len(ft.subscribes) != len(want) {
		t.Fatalf("subscribes = %v, want %v", ft.subscribes, want)
	}
	for i, topic := range want {
		if ft.subscribes[i] != topic {
			t.Fatalf("subscribes = %v, want %v", ft.subscribes, want)
		}
	}
}

func TestSubscriptionsReplayAcrossReconnect(t *testing.T) {
	c, ft := newTestClient(t)

	var got [][]byte
	c.Subscribe("/topic/lobby", func(body []byte) { got = append(got, body) })

	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	ft.open()
	ft.drop(errors.New("network blip"))

	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	ft.open()

	if len(ft.subscribes) != 2 {
		t.Fatalf("expected resubscribe after reconnect, got %v", ft.subscribes)
	}

	ft.onMessage("/topic/lobby", []byte(`{"type":"CLEARED"}`))
	if len(got) != 1 {
		t.Fatalf("listener did not survive reconnect, got %d messages", len(got))
	}
}
