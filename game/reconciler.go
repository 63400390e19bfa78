// Package game reconciles per-room game events into an authoritative board
// snapshot and gates local player input.
package game

import (
	"encoding/json"
	"log/slog"
	"sort"
	"sync"

	"serpentia/serpent"
)

// Listener receives an immutable snapshot after every applied change.
type Listener func(state serpent.GameState)

type listenerRef struct {
	id uint64
	fn Listener
}

// Reconciler folds the event stream of one game topic into a single board
// snapshot. Every applied board is a complete replacement; partial events
// (score deltas) are adapted into a full snapshot before being applied. A
// new room requires a fresh SetRoom binding; there is no transition out of
// FINISHED.
type Reconciler struct {
	logger *slog.Logger

	mu      sync.Mutex
	roomID  string
	localID string
	state   serpent.GameState

	listeners []listenerRef
	nextID    uint64

	warnedMapShape bool
}

// NewReconciler creates a Reconciler for the user identified by localID
// (the id-then-name key used to resolve the local player).
func NewReconciler(localID string, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		logger:  logger,
		localID: localID,
		state:   emptyState(""),
	}
}

// SetRoom binds the reconciler to a room and resets the snapshot to the
// safe empty WAITING state.
func (g *Reconciler) SetRoom(roomID string) {
	g.mu.Lock()
	g.roomID = roomID
	g.state = emptyState(roomID)
	g.warnedMapShape = false
	snapshot := g.state.Clone()
	refs := g.listenersLocked()
	g.mu.Unlock()

	notifyGame(refs, snapshot)
}

// RoomID returns the bound room id.
func (g *Reconciler) RoomID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.roomID
}

// SetLocalID overrides the local player key, for when the resolved identity
// changes after the reconciler was built.
func (g *Reconciler) SetLocalID(id string) {
	g.mu.Lock()
	g.localID = id
	g.mu.Unlock()
}

// Apply folds one game event into the snapshot.
func (g *Reconciler) Apply(ev serpent.GameEvent) {
	switch ev.Type {
	case serpent.GameStart:
		if len(ev.Board) == 0 {
			g.logger.Warn("start event without board", "room", g.RoomID())
			return
		}
		g.applyBoard(ev.Board, true)

	case serpent.GameUpdate:
		if len(ev.Board) == 0 {
			g.logger.Warn("update event without board", "room", g.RoomID())
			return
		}
		g.applyBoard(ev.Board, false)

	case serpent.GameScoreUpdate:
		g.ApplyScoreDelta(ev.Players)

	case serpent.GameEnd, serpent.GameOver, serpent.GameFinished:
		g.finish(ev.Players)

	case serpent.GameCollision, serpent.GameFruit, serpent.GamePlayerJoin, serpent.GamePlayerLeave:
		g.logger.Debug("game event", "type", ev.Type, "player", ev.PlayerID)

	default:
		g.logger.Warn("unknown game event type", "type", ev.Type)
	}
}

// ApplyBoard adapts a raw board payload and replaces the snapshot with it.
// A malformed payload (missing required geometry) never propagates: the
// snapshot falls back to the safe empty state and the anomaly is logged.
func (g *Reconciler) ApplyBoard(board json.RawMessage) {
	g.applyBoard(board, false)
}

func (g *Reconciler) applyBoard(board json.RawMessage, start bool) {
	adapted, mapShape, err := adaptBoard(board)

	g.mu.Lock()
	if g.state.Status == serpent.StatusFinished {
		g.mu.Unlock()
		return
	}

	if err != nil {
		g.logger.Warn("malformed board payload, resetting to empty board",
			"room", g.roomID, "error", err)
		g.state = emptyState(g.roomID)
		snapshot := g.state.Clone()
		refs := g.listenersLocked()
		g.mu.Unlock()
		notifyGame(refs, snapshot)
		return
	}

	if mapShape && !g.warnedMapShape {
		// The server serializes boards in two shapes with no
		// discriminator; surface it once per binding so the
		// inconsistency stays visible upstream.
		g.warnedMapShape = true
		g.logger.Warn("board arrived as parallel id-keyed maps", "room", g.roomID)
	}

	adapted.RoomID = g.roomID
	status := g.state.Status
	if start {
		status = serpent.StatusInGame
	}
	adapted.Status = status
	g.state = adapted

	snapshot := g.state.Clone()
	refs := g.listenersLocked()
	g.mu.Unlock()

	notifyGame(refs, snapshot)
}

// ApplyScoreDelta replaces only the player list of the current snapshot,
// leaving board geometry untouched. Used for lightweight score events that
// do not carry a full board.
func (g *Reconciler) ApplyScoreDelta(players []serpent.Player) {
	if players == nil {
		return
	}

	g.mu.Lock()
	if g.state.Status == serpent.StatusFinished {
		g.mu.Unlock()
		return
	}
	g.state.Players = make([]serpent.Player, len(players))
	for i, p := range players {
		g.state.Players[i] = p.Clone()
	}
	snapshot := g.state.Clone()
	refs := g.listenersLocked()
	g.mu.Unlock()

	notifyGame(refs, snapshot)
}

func (g *Reconciler) finish(players []serpent.Player) {
	g.mu.Lock()
	if g.state.Status == serpent.StatusFinished {
		g.mu.Unlock()
		return
	}
	if players != nil {
		g.state.Players = make([]serpent.Player, len(players))
		for i, p := range players {
			g.state.Players[i] = p.Clone()
		}
	}
	g.state.Status = serpent.StatusFinished
	snapshot := g.state.Clone()
	refs := g.listenersLocked()
	g.mu.Unlock()

	notifyGame(refs, snapshot)
}

// Snapshot returns a copy of the current board state.
func (g *Reconciler) Snapshot() serpent.GameState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state.Clone()
}

// LocalPlayer resolves the snapshot entry for this client's user. The
// server may assign a session id that differs from the display name used
// locally, so resolution falls back in a fixed order: exact id match, then
// name match, then the first player in the list.
func (g *Reconciler) LocalPlayer() (serpent.Player, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.state.Players) == 0 {
		return serpent.Player{}, false
	}
	for _, p := range g.state.Players {
		if p.ID != "" && p.ID == g.localID {
			return p.Clone(), true
		}
	}
	for _, p := range g.state.Players {
		if p.Name == g.localID {
			return p.Clone(), true
		}
	}
	return g.state.Players[0].Clone(), true
}

// Leaderboard returns the players sorted by descending score. The sort is
// stable: ties keep their original list order.
func (g *Reconciler) Leaderboard() []serpent.Player {
	g.mu.Lock()
	players := make([]serpent.Player, len(g.state.Players))
	for i, p := range g.state.Players {
		players[i] = p.Clone()
	}
	g.mu.Unlock()

	sort.SliceStable(players, func(i, j int) bool {
		return players[i].Score > players[j].Score
	})
	return players
}

// AddListener registers a snapshot listener and returns its disposer. The
// current snapshot is replayed synchronously.
func (g *Reconciler) AddListener(fn Listener) func() {
	g.mu.Lock()
	g.nextID++
	ref := listenerRef{id: g.nextID, fn: fn}
	g.listeners = append(g.listeners, ref)
	snapshot := g.state.Clone()
	g.mu.Unlock()

	fn(snapshot)

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			for i, l := range g.listeners {
				if l.id == ref.id {
					g.listeners = append(g.listeners[:i], g.listeners[i+1:]...)
					break
				}
			}
			g.mu.Unlock()
		})
	}
}

// Attach subscribes the reconciler to its room's game topic and returns the
// subscription's disposer. SetRoom must have been called first.
func (g *Reconciler) Attach(c *serpent.Client) func() {
	topic := serpent.GameTopic(g.RoomID())
	return c.Subscribe(topic, func(body []byte) {
		ev, err := serpent.ParseGameEvent(body)
		if err != nil {
			g.logger.Warn("dropping game event", "error", err)
			return
		}
		g.Apply(ev)
	})
}

func (g *Reconciler) listenersLocked() []listenerRef {
	refs := make([]listenerRef, len(g.listeners))
	copy(refs, g.listeners)
	return refs
}

func notifyGame(refs []listenerRef, state serpent.GameState) {
	for _, ref := range refs {
		ref.fn(state)
	}
}
