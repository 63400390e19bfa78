package game

import (
	"encoding/json"
	"fmt"
	"sort"

	"serpentia/serpent"
)

const (
	defaultWidth  = 40
	defaultHeight = 30
	fallbackColor = "#4CAF50"
)

// rawBoard accepts both board serializations the server emits: the players
// array shape and the parallel id-keyed maps shape. The server offers no
// discriminator field, so the adapter sniffs which shape is present.
type rawBoard struct {
	RoomID       string                      `json:"roomId"`
	Width        int                         `json:"width"`
	Height       int                         `json:"height"`
	Status       serpent.Status              `json:"status"`
	GameMode     serpent.GameMode            `json:"gameMode"`
	TargetScore  int                         `json:"targetScore"`
	Fruits       []serpent.Position          `json:"fruits"`
	Food         []serpent.Position          `json:"food"`
	Teams        map[string]serpent.TeamInfo `json:"teams"`
	PlayerToTeam map[string]string           `json:"playerToTeam"`

	Players []serpent.Player `json:"players"`

	SnakePositions  map[string][]serpent.Position `json:"snakePositions"`
	SnakeDirections map[string]serpent.Direction  `json:"snakeDirections"`
	PlayerColors    map[string]string             `json:"playerColors"`
	PlayerScores    map[string]int                `json:"playerScores"`
	PlayerAlive     map[string]*bool              `json:"playerAlive"`
}

// adaptBoard normalizes a raw board payload into the canonical GameState.
// mapShape reports whether the parallel maps serialization was seen.
// Missing optional fields get fixed defaults: score 0, alive true, the
// fallback color, a 40x30 board.
func adaptBoard(data []byte) (state serpent.GameState, mapShape bool, err error) {
	if len(data) == 0 {
		return serpent.GameState{}, false, fmt.Errorf("empty board payload")
	}

	var raw rawBoard
	if err := json.Unmarshal(data, &raw); err != nil {
		return serpent.GameState{}, false, fmt.Errorf("decode board: %w", err)
	}

	var players []serpent.Player
	switch {
	case raw.Players != nil:
		players = make([]serpent.Player, len(raw.Players))
		for i, p := range raw.Players {
			if p.Color == "" {
				p.Color = fallbackColor
			}
			players[i] = p
		}

	case raw.SnakePositions != nil && raw.SnakeDirections != nil:
		mapShape = true
		// Map iteration order is not stable; sort ids so equivalent
		// payloads always adapt to the same player order. Order matters
		// downstream: it is the leaderboard tie break.
		ids := make([]string, 0, len(raw.SnakePositions))
		for id := range raw.SnakePositions {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		players = make([]serpent.Player, 0, len(ids))
		for _, id := range ids {
			p := serpent.Player{
				ID:        id,
				Name:      id,
				Color:     raw.PlayerColors[id],
				Snake:     raw.SnakePositions[id],
				Direction: raw.SnakeDirections[id],
				Score:     raw.PlayerScores[id],
				Alive:     true,
			}
			if p.Color == "" {
				p.Color = fallbackColor
			}
			if alive, ok := raw.PlayerAlive[id]; ok && alive != nil {
				p.Alive = *alive
			}
			players = append(players, p)
		}

	default:
		return serpent.GameState{}, false, fmt.Errorf("board payload has neither players array nor snake position maps")
	}

	fruits := raw.Fruits
	if fruits == nil {
		fruits = raw.Food
	}
	width := raw.Width
	if width <= 0 {
		width = defaultWidth
	}
	height := raw.Height
	if height <= 0 {
		height = defaultHeight
	}
	status := raw.Status
	if status == "" {
		status = serpent.StatusWaiting
	}

	return serpent.GameState{
		RoomID:       raw.RoomID,
		Width:        width,
		Height:       height,
		Players:      players,
		Fruits:       fruits,
		Status:       status,
		GameMode:     raw.GameMode,
		Teams:        raw.Teams,
		PlayerToTeam: raw.PlayerToTeam,
		TargetScore:  raw.TargetScore,
	}, mapShape, nil
}

// emptyState is the safe snapshot the reconciler falls back to: zero
// players, zero fruits, WAITING.
func emptyState(roomID string) serpent.GameState {
	return serpent.GameState{
		RoomID: roomID,
		Width:  defaultWidth,
		Height: defaultHeight,
		Status: serpent.StatusWaiting,
	}
}
