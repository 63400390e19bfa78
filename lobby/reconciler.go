// Package lobby keeps a local, server-authoritative view of the room list
// and wraps the room REST collaborators.
package lobby

import (
	"context"
	"log/slog"
	"sync"

	"serpentia/serpent"
)

// Listener receives an immutable copy of the room list after every change.
type Listener func(rooms []serpent.Room)

type listenerRef struct {
	id uint64
	fn Listener
}

// Reconciler folds the lobby event stream plus periodic full fetches into
// one authoritative room collection. Events are applied with upsert-by-id
// semantics, so duplicate CREATED and out-of-order UPDATED-before-CREATED
// deliveries converge to the same list.
type Reconciler struct {
	logger *slog.Logger

	mu        sync.Mutex
	rooms     []serpent.Room
	listeners []listenerRef
	nextID    uint64
}

// NewReconciler creates an empty Reconciler.
func NewReconciler(logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{logger: logger}
}

// Apply folds one room change event into the local list and notifies every
// listener. Each event yields exactly one notification; there is no
// batching or coalescing.
func (r *Reconciler) Apply(ev serpent.RoomEvent) {
	r.mu.Lock()
	switch ev.Type {
	case serpent.RoomCreated:
		// Redelivered CREATED for a known room is a no-op.
		if r.indexOf(ev.Room.RoomID) < 0 {
			r.rooms = append(r.rooms, ev.Room.Clone())
		}

	case serpent.RoomUpdated:
		// UPDATED for an unseen room is an implicit create.
		if i := r.indexOf(ev.Room.RoomID); i >= 0 {
			r.rooms[i] = ev.Room.Clone()
		} else {
			r.rooms = append(r.rooms, ev.Room.Clone())
		}

	case serpent.RoomDeleted:
		if i := r.indexOf(ev.Room.RoomID); i >= 0 {
			r.rooms = append(r.rooms[:i], r.rooms[i+1:]...)
		}

	case serpent.RoomsCleared:
		r.rooms = nil
	}

	snapshot := r.snapshotLocked()
	refs := r.listenersLocked()
	r.mu.Unlock()

	notify(refs, snapshot)
}

// Replace swaps the whole local list for the server's authoritative answer
// and notifies listeners. Used for the initial load and for recovery after
// a reconnect.
func (r *Reconciler) Replace(rooms []serpent.Room) {
	r.mu.Lock()
	r.rooms = make([]serpent.Room, len(rooms))
	for i, room := range rooms {
		r.rooms[i] = room.Clone()
	}
	snapshot := r.snapshotLocked()
	refs := r.listenersLocked()
	r.mu.Unlock()

	notify(refs, snapshot)
}

// Rooms returns a copy of the current room list.
func (r *Reconciler) Rooms() []serpent.Room {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Room returns the room with the given id from the local list.
func (r *Reconciler) Room(roomID string) (serpent.Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := r.indexOf(roomID); i >= 0 {
		return r.rooms[i].Clone(), true
	}
	return serpent.Room{}, false
}

// AddListener registers a listener and returns its disposer. The current
// list is replayed to the new listener synchronously before any future
// event, so late subscribers never see a stale empty state.
func (r *Reconciler) AddListener(fn Listener) func() {
	r.mu.Lock()
	r.nextID++
	ref := listenerRef{id: r.nextID, fn: fn}
	r.listeners = append(r.listeners, ref)
	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	fn(snapshot)

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			for i, l := range r.listeners {
				if l.id == ref.id {
					r.listeners = append(r.listeners[:i], r.listeners[i+1:]...)
					break
				}
			}
			r.mu.Unlock()
		})
	}
}

// Attach subscribes the reconciler to the lobby topic of a client and
// returns the subscription's disposer. Malformed payloads are logged and
// skipped; one bad message never disturbs the current list.
func (r *Reconciler) Attach(c *serpent.Client) func() {
	return c.Subscribe(serpent.TopicLobby, func(body []byte) {
		ev, err := serpent.ParseRoomEvent(body)
		if err != nil {
			r.logger.Warn("dropping lobby event", "error", err)
			return
		}
		r.Apply(ev)
	})
}

// Resync replaces the local list with a fresh full fetch. Call after a
// reconnect, when events may have been missed.
func (r *Reconciler) Resync(ctx context.Context, api *API) error {
	rooms, err := api.FetchRooms(ctx)
	if err != nil {
		return err
	}
	r.Replace(rooms)
	return nil
}

func (r *Reconciler) indexOf(roomID string) int {
	for i, room := range r.rooms {
		if room.RoomID == roomID {
			return i
		}
	}
	return -1
}

func (r *Reconciler) snapshotLocked() []serpent.Room {
	out := make([]serpent.Room, len(r.rooms))
	for i, room := range r.rooms {
		out[i] = room.Clone()
	}
	return out
}

func (r *Reconciler) listenersLocked() []listenerRef {
	refs := make([]listenerRef, len(r.listeners))
	copy(refs, r.listeners)
	return refs
}

func notify(refs []listenerRef, rooms []serpent.Room) {
	for _, ref := range refs {
		ref.fn(rooms)
	}
}
