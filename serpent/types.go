// Package serpent contains the core state synchronization engine of the
// Serpentia client: the shared data model, the event variants delivered over
// the server connection, and the Client which owns that connection and
// multiplexes topic subscriptions for the reconcilers built on top of it.
package serpent

// Direction is a facing or movement direction on the board.
type Direction string

const (
	DirectionUp    Direction = "UP"
	DirectionDown  Direction = "DOWN"
	DirectionLeft  Direction = "LEFT"
	DirectionRight Direction = "RIGHT"
)

// Valid reports whether d is one of the four known directions.
func (d Direction) Valid() bool {
	switch d {
	case DirectionUp, DirectionDown, DirectionLeft, DirectionRight:
		return true
	}
	return false
}

// Opposite returns the direction facing away from d. Unknown directions
// map to the empty string.
func (d Direction) Opposite() Direction {
	switch d {
	case DirectionUp:
		return DirectionDown
	case DirectionDown:
		return DirectionUp
	case DirectionLeft:
		return DirectionRight
	case DirectionRight:
		return DirectionLeft
	}
	return ""
}

// GameMode enumerates the supported room modes.
type GameMode string

const (
	ModeCompetitive GameMode = "COMPETITIVE"
	ModeTeam        GameMode = "TEAM"
	ModeCooperative GameMode = "COOPERATIVE"
)

// Status is the lifecycle phase of a room or a running game.
type Status string

const (
	StatusWaiting  Status = "WAITING"
	StatusInGame   Status = "IN_GAME"
	StatusFinished Status = "FINISHED"
)

// Position is a cell on the board grid.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// TeamInfo describes one team in a TEAM mode room.
type TeamInfo struct {
	Name    string   `json:"name"`
	Color   string   `json:"color"`
	Members []string `json:"members"`
}

// Room is the lobby-level view of a game room. Field names match the wire
// contract of the lobby topic and the room REST endpoints.
type Room struct {
	RoomID         string              `json:"roomId"`
	RoomName       string              `json:"roomName,omitempty"`
	Host           string              `json:"host"`
	GameMode       GameMode            `json:"gameMode"`
	MaxPlayers     int                 `json:"maxPlayers"`
	CurrentPlayers []string            `json:"currentPlayers"`
	TargetScore    int                 `json:"targetScore,omitempty"`
	Powerups       bool                `json:"powerups"`
	Status         Status              `json:"status"`
	Teams          map[string]TeamInfo `json:"teams,omitempty"`
	PlayerToTeam   map[string]string   `json:"playerToTeam,omitempty"`
}

// IsFull reports whether the room has reached its player limit.
func (r Room) IsFull() bool {
	return r.MaxPlayers > 0 && len(r.CurrentPlayers) >= r.MaxPlayers
}

// Clone returns a deep copy of the room.
func (r Room) Clone() Room {
	out := r
	if r.CurrentPlayers != nil {
		out.CurrentPlayers = make([]string, len(r.CurrentPlayers))
		copy(out.CurrentPlayers, r.CurrentPlayers)
	}
	if r.Teams != nil {
		out.Teams = make(map[string]TeamInfo, len(r.Teams))
		for name, team := range r.Teams {
			members := make([]string, len(team.Members))
			copy(members, team.Members)
			team.Members = members
			out.Teams[name] = team
		}
	}
	if r.PlayerToTeam != nil {
		out.PlayerToTeam = make(map[string]string, len(r.PlayerToTeam))
		for k, v := range r.PlayerToTeam {
			out.PlayerToTeam[k] = v
		}
	}
	return out
}

// Player is one snake in a running game. ID is assigned by the server and
// may transiently diverge from the display name used locally.
type Player struct {
	ID        string     `json:"id,omitempty"`
	Name      string     `json:"name"`
	Color     string     `json:"color"`
	Snake     []Position `json:"snake"`
	Direction Direction  `json:"direction"`
	Score     int        `json:"score"`
	Alive     bool       `json:"alive"`
	MaxScore  int        `json:"maxScore,omitempty"`
}

// Clone returns a deep copy of the player.
func (p Player) Clone() Player {
	out := p
	if p.Snake != nil {
		out.Snake = make([]Position, len(p.Snake))
		copy(out.Snake, p.Snake)
	}
	return out
}

// GameState is the complete board snapshot for one room. Snapshots always
// replace the previous state wholesale; they are never patched in place.
type GameState struct {
	RoomID       string              `json:"roomId"`
	Width        int                 `json:"width"`
	Height       int                 `json:"height"`
	Players      []Player            `json:"players"`
	Fruits       []Position          `json:"fruits"`
	Status       Status              `json:"status"`
	GameMode     GameMode            `json:"gameMode,omitempty"`
	Teams        map[string]TeamInfo `json:"teams,omitempty"`
	PlayerToTeam map[string]string   `json:"playerToTeam,omitempty"`
	TargetScore  int                 `json:"targetScore,omitempty"`
}

// Clone returns a deep copy of the snapshot.
func (g GameState) Clone() GameState {
	out := g
	if g.Players != nil {
		out.Players = make([]Player, len(g.Players))
		for i, p := range g.Players {
			out.Players[i] = p.Clone()
		}
	}
	if g.Fruits != nil {
		out.Fruits = make([]Position, len(g.Fruits))
		copy(out.Fruits, g.Fruits)
	}
	if g.Teams != nil {
		out.Teams = make(map[string]TeamInfo, len(g.Teams))
		for name, team := range g.Teams {
			members := make([]string, len(team.Members))
			copy(members, team.Members)
			team.Members = members
			out.Teams[name] = team
		}
	}
	if g.PlayerToTeam != nil {
		out.PlayerToTeam = make(map[string]string, len(g.PlayerToTeam))
		for k, v := range g.PlayerToTeam {
			out.PlayerToTeam[k] = v
		}
	}
	return out
}

// Move is the payload published to a room's move destination.
type Move struct {
	Player    string    `json:"player"`
	Direction Direction `json:"direction"`
}
