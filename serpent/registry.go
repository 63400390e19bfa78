package serpent

import (
	"log/slog"
	"sync"
)

// Listener receives the raw payload of every message on a topic.
type Listener func(body []byte)

type listenerRef struct {
	id uint64
	fn Listener
}

type topicState struct {
	listeners []listenerRef
	// active means the server-side subscription currently exists. The
	// invariant is active == (refcount > 0 && connection is up).
	active bool
}

// registry is the ref-counted mapping from topic to interested listeners.
// It creates the underlying transport subscription on the 0->1 transition,
// tears it down on 1->0, and replays all surviving interest across a
// reconnect.
type registry struct {
	transport Transport
	logger    *slog.Logger

	mu     sync.Mutex
	topics map[string]*topicState
	// order holds topics by first interest, so pending subscriptions are
	// activated deterministically on connect.
	order  []string
	nextID uint64
}

func newRegistry(transport Transport, logger *slog.Logger) *registry {
	return &registry{
		transport: transport,
		logger:    logger,
		topics:    make(map[string]*topicState),
	}
}

func (r *registry) addListener(topic string, fn Listener) func() {
	r.mu.Lock()

	st, ok := r.topics[topic]
	if !ok {
		st = &topicState{}
		r.topics[topic] = st
		r.order = append(r.order, topic)
	}

	r.nextID++
	ref := listenerRef{id: r.nextID, fn: fn}
	st.listeners = append(st.listeners, ref)

	needsSubscribe := !st.active && r.transport.Connected()
	if needsSubscribe {
		st.active = true
	}
	r.mu.Unlock()

	if needsSubscribe {
		if err := r.transport.Subscribe(topic); err != nil {
			r.logger.Error("subscribe failed", "topic", topic, "error", err)
			r.mu.Lock()
			st.active = false
			r.mu.Unlock()
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			r.removeListener(topic, ref.id)
		})
	}
}

func (r *registry) removeListener(topic string, id uint64) {
	r.mu.Lock()

	st, ok := r.topics[topic]
	if !ok {
		r.mu.Unlock()
		return
	}

	for i, ref := range st.listeners {
		if ref.id == id {
			st.listeners = append(st.listeners[:i], st.listeners[i+1:]...)
			break
		}
	}

	needsUnsubscribe := len(st.listeners) == 0 && st.active
	if len(st.listeners) == 0 {
		st.active = false
		delete(r.topics, topic)
		for i, t := range r.order {
			if t == topic {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	}
	r.mu.Unlock()

	if needsUnsubscribe && r.transport.Connected() {
		if err := r.transport.Unsubscribe(topic); err != nil {
			r.logger.Error("unsubscribe failed", "topic", topic, "error", err)
		}
	}
}

// activateAll establishes the server-side subscription for every topic that
// has listeners, in first-interest order. Called after every successful
// connect; it covers both subscriptions queued while disconnected and the
// replay after a reconnect.
func (r *registry) activateAll() {
	r.mu.Lock()
	pending := make([]string, 0, len(r.order))
	for _, topic := range r.order {
		st := r.topics[topic]
		if st != nil && len(st.listeners) > 0 && !st.active {
			st.active = true
			pending = append(pending, topic)
		}
	}
	r.mu.Unlock()

	for _, topic := range pending {
		if err := r.transport.Subscribe(topic); err != nil {
			r.logger.Error("subscribe failed", "topic", topic, "error", err)
			r.mu.Lock()
			if st, ok := r.topics[topic]; ok {
				st.active = false
			}
			r.mu.Unlock()
		}
	}
}

// deactivateAll marks every subscription inactive without dropping listener
// interest. The server forgets subscriptions when the connection goes away,
// so there is nothing to unsubscribe.
func (r *registry) deactivateAll() {
	r.mu.Lock()
	for _, st := range r.topics {
		st.active = false
	}
	r.mu.Unlock()
}

// dispatch fans a message out to every listener of its topic, in
// registration order. A panicking listener is logged and skipped so one bad
// consumer cannot take down the delivery loop.
func (r *registry) dispatch(topic string, body []byte) {
	r.mu.Lock()
	st, ok := r.topics[topic]
	if !ok {
		r.mu.Unlock()
		return
	}
	refs := make([]listenerRef, len(st.listeners))
	copy(refs, st.listeners)
	r.mu.Unlock()

	for _, ref := range refs {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					r.logger.Error("listener panic", "topic", topic, "panic", rec)
				}
			}()
			ref.fn(body)
		}()
	}
}
