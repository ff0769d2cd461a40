// Package state owns the in-memory entity model and its durable JSON form.
// The store is the single mutable aggregate for the whole process: the stream
// driver mutates it on each recognized event, the status API reads it, and
// the force-disconnect reconciliation normalizes it at startup and shutdown.
package state

import (
	"sort"
	"sync"
	"time"

	"github.com/ernie/valheim-tracker/internal/domain"
)

// EpochFormat is the human-readable companion to every epoch field.
const EpochFormat = "2006-01-02 15:04:05"

// Store wraps the aggregate State with the typed upsert operations and
// guards it for concurrent readers (the API). Event processing remains
// strictly sequential; there is exactly one writer at a time.
type Store struct {
	mu    sync.RWMutex
	path  string
	state *domain.State
}

// NewStore creates a store persisting to path, starting from empty state.
func NewStore(path string) *Store {
	return &Store{
		path:  path,
		state: domain.NewState(),
	}
}

// UpsertPlayer creates the player with defaults if absent, then merges the
// set fields of u.
func (s *Store) UpsertPlayer(steamID string, u domain.PlayerUpdate) *domain.Player {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.state.Players[steamID]
	if !ok {
		// first time seeing this steam user
		p = &domain.Player{}
		s.state.Players[steamID] = p
	}
	u.Apply(p)
	return p
}

// UpsertCharacter creates the character with defaults if absent, then merges
// the set fields of u.
func (s *Store) UpsertCharacter(name string, u domain.CharacterUpdate) *domain.Character {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.state.Characters[name]
	if !ok {
		c = &domain.Character{}
		s.state.Characters[name] = c
	}
	u.Apply(c)
	return c
}

// UpdateServer merges the set fields of u into the server record.
func (s *Store) UpdateServer(u domain.ServerUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.Apply(s.state.Server)
}

// GetPlayer returns a copy of the player, or false if unknown.
func (s *Store) GetPlayer(steamID string) (domain.Player, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.state.Players[steamID]
	if !ok {
		return domain.Player{}, false
	}
	return *p, true
}

// GetCharacter returns a copy of the character, or false if unknown.
func (s *Store) GetCharacter(name string) (domain.Character, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.state.Characters[name]
	if !ok {
		return domain.Character{}, false
	}
	return *c, true
}

// GetServer returns a copy of the server record.
func (s *Store) GetServer() domain.Server {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return *s.state.Server
}

// Players returns a copy of the player map.
func (s *Store) Players() map[string]domain.Player {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.Player, len(s.state.Players))
	for id, p := range s.state.Players {
		out[id] = *p
	}
	return out
}

// Characters returns a copy of the character map.
func (s *Store) Characters() map[string]domain.Character {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.Character, len(s.state.Characters))
	for name, c := range s.state.Characters {
		out[name] = *c
	}
	return out
}

// Snapshot returns a deep copy of the whole aggregate, for the API.
func (s *Store) Snapshot() domain.State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := domain.State{
		Players:    make(map[string]*domain.Player, len(s.state.Players)),
		Characters: make(map[string]*domain.Character, len(s.state.Characters)),
	}
	for id, p := range s.state.Players {
		cp := *p
		snap.Players[id] = &cp
	}
	for name, c := range s.state.Characters {
		cp := *c
		snap.Characters[name] = &cp
	}
	srv := *s.state.Server
	snap.Server = &srv
	return snap
}

// OldestConnectedSteamID resolves which connection a newly-seen character
// belongs to: the player in status "connected" (handshaked but not yet bound
// to a character) with the earliest last_joined_epoch. Ties break on the
// lexicographically smallest steam ID so the result is deterministic; with
// several unbound connections joining close together this remains an
// approximation, not a guaranteed mapping.
func (s *Store) OldestConnectedSteamID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var candidates []string
	for id, p := range s.state.Players {
		if p.Status == domain.StatusConnected {
			candidates = append(candidates, id)
		}
	}
	if len(candidates) == 0 {
		return ""
	}
	sort.Slice(candidates, func(i, j int) bool {
		pi, pj := s.state.Players[candidates[i]], s.state.Players[candidates[j]]
		if pi.LastJoinedEpoch != pj.LastJoinedEpoch {
			return pi.LastJoinedEpoch < pj.LastJoinedEpoch
		}
		return candidates[i] < candidates[j]
	})
	return candidates[0]
}

// ForceDisconnectAll normalizes every player and character to
// "disconnected" as of now. Entities that were connected or playing accrue
// the elapsed session time into time_played and get their disconnect
// timestamps set; everything else only has its status normalized. Calling it
// twice in a row accrues nothing the second time.
func (s *Store) ForceDisconnectAll(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	epoch := now.Unix()
	stamp := now.Format(EpochFormat)

	for _, p := range s.state.Players {
		if p.Status == domain.StatusConnected || p.Status == domain.StatusPlaying {
			p.LastDisconnect = stamp
			p.LastDisconnectEpoch = epoch
			p.TimePlayed += SessionSeconds(p.LastJoinedEpoch, epoch)
		}
		p.Status = domain.StatusDisconnected
	}
	for _, c := range s.state.Characters {
		if c.Status == domain.StatusConnected || c.Status == domain.StatusPlaying {
			c.LastDisconnect = stamp
			c.LastDisconnectEpoch = epoch
			c.TimePlayed += SessionSeconds(c.LastJoinedEpoch, epoch)
		}
		c.Status = domain.StatusDisconnected
	}
}

// SessionSeconds computes the accrued session length, clamped at zero.
// An unset join epoch means the session start was never observed; accruing
// against it would add decades of playtime.
func SessionSeconds(joinedEpoch, nowEpoch int64) int64 {
	if joinedEpoch <= 0 || nowEpoch < joinedEpoch {
		return 0
	}
	return nowEpoch - joinedEpoch
}
