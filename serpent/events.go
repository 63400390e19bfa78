package serpent

import (
	"encoding/json"
	"fmt"
)

// RoomEventType tags a lobby room change event.
type RoomEventType string

const (
	RoomCreated  RoomEventType = "CREATED"
	RoomUpdated  RoomEventType = "UPDATED"
	RoomDeleted  RoomEventType = "DELETED"
	RoomsCleared RoomEventType = "CLEARED"
)

// RoomEvent is one change on the lobby topic. CREATED, UPDATED and DELETED
// carry the complete post-change room snapshot, not a diff.
type RoomEvent struct {
	Type      RoomEventType `json:"type"`
	Room      Room          `json:"room"`
	Timestamp int64         `json:"timestamp,omitempty"`
}

// ParseRoomEvent decodes a lobby topic payload. The server also emits JOINED
// and LEFT variants which carry the same full room snapshot; they are
// normalized to UPDATED so consumers only deal with the closed set above.
func ParseRoomEvent(data []byte) (RoomEvent, error) {
	var ev RoomEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return RoomEvent{}, fmt.Errorf("decode room event: %w", err)
	}

	switch ev.Type {
	case "JOINED", "LEFT":
		ev.Type = RoomUpdated
	case RoomCreated, RoomUpdated, RoomDeleted, RoomsCleared:
	default:
		return RoomEvent{}, fmt.Errorf("unknown room event type %q", ev.Type)
	}

	if ev.Type != RoomsCleared && ev.Room.RoomID == "" {
		return RoomEvent{}, fmt.Errorf("room event %s without room id", ev.Type)
	}
	return ev, nil
}

// GameEventType tags an event on a per-room game topic.
type GameEventType string

const (
	GameStart       GameEventType = "START"
	GameUpdate      GameEventType = "UPDATE"
	GameEnd         GameEventType = "END"
	GameOver        GameEventType = "GAME_END"
	GameFinished    GameEventType = "FINISHED"
	GameCollision   GameEventType = "COLLISION"
	GameFruit       GameEventType = "FRUIT"
	GameScoreUpdate GameEventType = "SCORE_UPDATE"
	GamePlayerJoin  GameEventType = "PLAYER_JOIN"
	GamePlayerLeave GameEventType = "PLAYER_LEAVE"
)

// GameEvent is one message on a game topic. Board is kept raw because the
// server serializes it in two different shapes; the game reconciler adapts
// it into a canonical GameState.
type GameEvent struct {
	Type         GameEventType   `json:"type"`
	Board        json.RawMessage `json:"board,omitempty"`
	Players      []Player        `json:"players,omitempty"`
	PlayerID     string          `json:"playerId,omitempty"`
	PlayerName   string          `json:"playerName,omitempty"`
	Score        int             `json:"score,omitempty"`
	PointsGained int             `json:"pointsGained,omitempty"`
	Message      string          `json:"message,omitempty"`
}

// ParseGameEvent decodes a game topic payload.
func ParseGameEvent(data []byte) (GameEvent, error) {
	var ev GameEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return GameEvent{}, fmt.Errorf("decode game event: %w", err)
	}
	if ev.Type == "" {
		return GameEvent{}, fmt.Errorf("game event without type")
	}
	return ev, nil
}
