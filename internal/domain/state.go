package domain

// Status values for players and characters. The zero value ("") means the
// entity has been created but no lifecycle event has been applied yet.
type Status string

const (
	StatusUnset        Status = ""
	StatusConnected    Status = "connected"
	StatusPlaying      Status = "playing"
	StatusBadPassword  Status = "bad_password"
	StatusDisconnected Status = "disconnected"
	StatusDead         Status = "dead"
)

// Player represents a steam user that connected to the server, keyed by
// steam ID in State.Players.
type Player struct {
	LastCharacter       string `json:"last_character"`
	LastJoinedEpoch     int64  `json:"last_joined_epoch"`
	LastJoined          string `json:"last_joined"`
	LastDisconnect      string `json:"last_disconnect"`
	LastDisconnectEpoch int64  `json:"last_disconnect_epoch"`
	TimePlayed          int64  `json:"time_played"`
	Status              Status `json:"status"`
}

// Character represents an in-game character, keyed by name in
// State.Characters. A character is owned by at most one steam user; once
// OwnerSteamID is set it is never cleared by event processing.
type Character struct {
	OwnerSteamID        string `json:"owner_steam_id"`
	LastZDOID           string `json:"last_zdoid"`
	LastJoinedEpoch     int64  `json:"last_joined_epoch"`
	LastJoined          string `json:"last_joined"`
	LastDisconnect      string `json:"last_disconnect"`
	LastDisconnectEpoch int64  `json:"last_disconnect_epoch"`
	TimePlayed          int64  `json:"time_played"`
	Status              Status `json:"status"`
	Deaths              int64  `json:"deaths"`
}

// Server holds details on the game server itself.
type Server struct {
	LastParsedLog     string `json:"last_parsed_log"`
	LastTurnedOnEpoch int64  `json:"last_turned_on_epoch"`
	LastShutdownEpoch int64  `json:"last_shutdown_epoch"`
	LastTurnedOn      string `json:"last_turned_on"`
	LastShutdown      string `json:"last_shutdown"`
}

// State is the aggregate root persisted to the state file.
type State struct {
	Players    map[string]*Player    `json:"players"`
	Characters map[string]*Character `json:"characters"`
	Server     *Server               `json:"server"`
}

// NewState returns an empty state with all containers allocated.
func NewState() *State {
	return &State{
		Players:    make(map[string]*Player),
		Characters: make(map[string]*Character),
		Server:     &Server{},
	}
}

// Normalize back-fills any top-level container missing after a load, so a
// state file written by an older version round-trips without nil maps.
func (s *State) Normalize() {
	if s.Players == nil {
		s.Players = make(map[string]*Player)
	}
	if s.Characters == nil {
		s.Characters = make(map[string]*Character)
	}
	if s.Server == nil {
		s.Server = &Server{}
	}
}
