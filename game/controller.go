package game

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"serpentia/serpent"
)

// defaultMoveInterval is the minimum spacing between two accepted moves in
// the same direction. Direction changes are never throttled.
const defaultMoveInterval = 150 * time.Millisecond

// ControllerConfig configures a Controller. Zero values get defaults; Now
// exists as a clock hook for tests.
type ControllerConfig struct {
	MoveInterval time.Duration
	Logger       *slog.Logger
	Now          func() time.Time
}

// Controller samples raw directional input, applies the move-legality and
// rate-limit rules, and forwards accepted moves to the room's move
// destination. Rejected samples are dropped silently; rapid invalid
// key-repeat is normal behavior, not a fault.
type Controller struct {
	rec      *Reconciler
	pub      serpent.Publisher
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu            sync.Mutex
	lastDirection serpent.Direction
	lastMove      time.Time
}

// NewController creates a Controller over the given reconciler and
// publisher.
func NewController(rec *Reconciler, pub serpent.Publisher, cfg ControllerConfig) *Controller {
	interval := cfg.MoveInterval
	if interval <= 0 {
		interval = defaultMoveInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Controller{
		rec:      rec,
		pub:      pub,
		interval: interval,
		logger:   logger,
		now:      now,
	}
}

// HandleDirection processes one raw input sample. The move is forwarded
// only if the game is running, the local player is alive, the requested
// direction is not the exact opposite of the player's current facing, and
// the same-direction throttle has elapsed. Returns whether the move was
// forwarded.
func (c *Controller) HandleDirection(dir serpent.Direction) bool {
	if !dir.Valid() {
		return false
	}

	snapshot := c.rec.Snapshot()
	if snapshot.Status != serpent.StatusInGame {
		return false
	}

	player, ok := c.rec.LocalPlayer()
	if !ok || !player.Alive {
		return false
	}

	// Reversing into yourself is an immediate self-collision; the server
	// would kill the snake, so never send it.
	if dir == player.Direction.Opposite() {
		return false
	}

	now := c.now()

	c.mu.Lock()
	if dir == c.lastDirection && now.Sub(c.lastMove) < c.interval {
		c.mu.Unlock()
		return false
	}
	c.lastDirection = dir
	c.lastMove = now
	c.mu.Unlock()

	ident := player.Name
	if ident == "" {
		ident = player.ID
	}

	body, err := json.Marshal(serpent.Move{Player: ident, Direction: dir})
	if err != nil {
		c.logger.Error("encode move", "error", err)
		return false
	}
	if err := c.pub.Publish(serpent.MoveDestination(snapshot.RoomID), body); err != nil {
		c.logger.Error("publish move", "error", err)
		return false
	}
	return true
}
