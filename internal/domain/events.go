package domain

import "time"

// Event types for WebSocket notifications
const (
	EventServerStart     = "server_start"
	EventPlayerConnected = "player_connected"
	EventBadPassword     = "bad_password"
	EventCharacterDied   = "character_died"
	EventCharacterJoined = "character_joined"
	EventPlayerLeft      = "player_left"
	EventReconcile       = "reconcile"
	EventShutdown        = "shutdown"
)

// Event is the envelope broadcast to WebSocket clients for every recognized
// log event.
type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"event"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// ServerStartEvent is sent when the game server announces it is live.
type ServerStartEvent struct {
	Address string `json:"address"`
	Port    int    `json:"port"`
}

// PlayerConnectedEvent is sent on a steam handshake.
type PlayerConnectedEvent struct {
	SteamID string `json:"steam_id"`
}

// BadPasswordEvent is sent when a connection is rejected for bad credentials.
type BadPasswordEvent struct {
	SteamID string `json:"steam_id"`
}

// CharacterDiedEvent is sent when a character dies.
type CharacterDiedEvent struct {
	Name   string `json:"name"`
	Deaths int64  `json:"deaths"`
}

// CharacterJoinedEvent is sent when a character spawns in with a live ZDOID.
// Rejoined is true for a returning session, false for a first-seen character.
type CharacterJoinedEvent struct {
	Name     string `json:"name"`
	SteamID  string `json:"steam_id,omitempty"`
	Rejoined bool   `json:"rejoined"`
}

// PlayerLeftEvent is sent when a connection socket closes.
type PlayerLeftEvent struct {
	SteamID        string `json:"steam_id"`
	Character      string `json:"character,omitempty"`
	SessionSeconds int64  `json:"session_seconds"`
	BadPassword    bool   `json:"bad_password"`
}

// ShutdownEvent is sent once at watcher exit with the shutdown cause.
type ShutdownEvent struct {
	Cause string `json:"cause"`
}
