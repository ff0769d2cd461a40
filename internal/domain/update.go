package domain

// Partial-update structs: nil fields are left untouched by an upsert, set
// fields overwrite. This replaces the original's open keyword-argument
// filtering with a schema the compiler checks.

// PlayerUpdate lists the Player fields an event handler may change.
type PlayerUpdate struct {
	LastCharacter       *string
	LastJoinedEpoch     *int64
	LastJoined          *string
	LastDisconnect      *string
	LastDisconnectEpoch *int64
	TimePlayed          *int64
	Status              *Status
}

// CharacterUpdate lists the Character fields an event handler may change.
type CharacterUpdate struct {
	OwnerSteamID        *string
	LastZDOID           *string
	LastJoinedEpoch     *int64
	LastJoined          *string
	LastDisconnect      *string
	LastDisconnectEpoch *int64
	TimePlayed          *int64
	Status              *Status
	Deaths              *int64
}

// ServerUpdate lists the Server fields an event handler may change.
type ServerUpdate struct {
	LastParsedLog     *string
	LastTurnedOnEpoch *int64
	LastShutdownEpoch *int64
	LastTurnedOn      *string
	LastShutdown      *string
}

// Apply merges the set fields into p.
func (u PlayerUpdate) Apply(p *Player) {
	if u.LastCharacter != nil {
		p.LastCharacter = *u.LastCharacter
	}
	if u.LastJoinedEpoch != nil {
		p.LastJoinedEpoch = *u.LastJoinedEpoch
	}
	if u.LastJoined != nil {
		p.LastJoined = *u.LastJoined
	}
	if u.LastDisconnect != nil {
		p.LastDisconnect = *u.LastDisconnect
	}
	if u.LastDisconnectEpoch != nil {
		p.LastDisconnectEpoch = *u.LastDisconnectEpoch
	}
	if u.TimePlayed != nil {
		p.TimePlayed = *u.TimePlayed
	}
	if u.Status != nil {
		p.Status = *u.Status
	}
}

// Apply merges the set fields into c.
func (u CharacterUpdate) Apply(c *Character) {
	if u.OwnerSteamID != nil {
		c.OwnerSteamID = *u.OwnerSteamID
	}
	if u.LastZDOID != nil {
		c.LastZDOID = *u.LastZDOID
	}
	if u.LastJoinedEpoch != nil {
		c.LastJoinedEpoch = *u.LastJoinedEpoch
	}
	if u.LastJoined != nil {
		c.LastJoined = *u.LastJoined
	}
	if u.LastDisconnect != nil {
		c.LastDisconnect = *u.LastDisconnect
	}
	if u.LastDisconnectEpoch != nil {
		c.LastDisconnectEpoch = *u.LastDisconnectEpoch
	}
	if u.TimePlayed != nil {
		c.TimePlayed = *u.TimePlayed
	}
	if u.Status != nil {
		c.Status = *u.Status
	}
	if u.Deaths != nil {
		c.Deaths = *u.Deaths
	}
}

// Apply merges the set fields into s.
func (u ServerUpdate) Apply(s *Server) {
	if u.LastParsedLog != nil {
		s.LastParsedLog = *u.LastParsedLog
	}
	if u.LastTurnedOnEpoch != nil {
		s.LastTurnedOnEpoch = *u.LastTurnedOnEpoch
	}
	if u.LastShutdownEpoch != nil {
		s.LastShutdownEpoch = *u.LastShutdownEpoch
	}
	if u.LastTurnedOn != nil {
		s.LastTurnedOn = *u.LastTurnedOn
	}
	if u.LastShutdown != nil {
		s.LastShutdown = *u.LastShutdown
	}
}

// String returns a pointer to s. Helper for building updates.
func String(s string) *string { return &s }

// Int64 returns a pointer to v. Helper for building updates.
func Int64(v int64) *int64 { return &v }

// StatusPtr returns a pointer to st. Helper for building updates.
func StatusPtr(st Status) *Status { return &st }
