package serpent

// TopicLobby carries room change events for the whole lobby.
const TopicLobby = "/topic/lobby"

// GameTopic returns the per-room topic carrying game events.
func GameTopic(roomID string) string {
	return "/topic/game/" + roomID
}

// MoveDestination returns the destination a player's moves are published to.
func MoveDestination(roomID string) string {
	return "/app/room/" + roomID + "/move"
}

// StartDestination returns the destination that triggers the game start.
func StartDestination(roomID string) string {
	return "/app/room/" + roomID + "/start"
}
