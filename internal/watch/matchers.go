package watch

import (
	"log"
	"regexp"
	"strconv"
	"time"

	"github.com/ernie/valheim-tracker/internal/domain"
	"github.com/ernie/valheim-tracker/internal/notify"
	"github.com/ernie/valheim-tracker/internal/state"
)

// Notification templates. Parameters are substituted by the notifier.
const (
	msgServerLive     = "Server is live! Visit {ip}:{port}"
	msgCharacterDied  = "{name} has died! This is death number {deaths}"
	msgNewPlayer      = "A new player has joined! Welcome, {name}!"
	msgPlayerRejoined = "{name} has joined!"
	msgBadPassNew     = "A new player attempted to join with a bad password! Their steam ID is {id}"
	msgBadPassKnown   = "{name} attempted to join with a bad password!"
	msgDisconnected   = "{name} has disconnected. Their total play time has been {hours}hr {min}m!"
)

// Regular expressions for the recognized log lines
var (
	serverStartRegex   = regexp.MustCompile(`DungeonDB Start`)
	handshakeRegex     = regexp.MustCompile(`Got handshake from client (\d+)`)
	badPasswordRegex   = regexp.MustCompile(`Peer (\d+) has wrong password`)
	characterDiedRegex = regexp.MustCompile(`Got character ZDOID from (.+) : 0:0`)
	characterJoinRegex = regexp.MustCompile(`Got character ZDOID from (.+) : ([A-Za-z0-9-]{2,}):([A-Za-z0-9-]+)`)
	socketClosedRegex  = regexp.MustCompile(`Closing socket (\d+)`)
)

// result is what a handler produces: an optional notification request and an
// optional live event for the WebSocket stream. A nil result means the line
// was consumed without anything to announce.
type result struct {
	msg   *notify.Message
	event *domain.Event
}

// matcher binds a line pattern to its handler. The set of matchers is closed
// and ordered; the driver tries them in order and stops at the first match.
type matcher struct {
	name    string
	re      *regexp.Regexp
	needsTS bool
	handle  func(m []string, ts time.Time, st *state.Store) (result, error)
}

// newMatchers builds the dispatch table. Order matters: CharacterDied must
// precede CharacterJoined so a "0:0" ZDOID is read as a death, and exactly
// one matcher consumes any given line.
func newMatchers(serverAddr string, serverPort int) []matcher {
	return []matcher{
		{
			name:    "ServerStart",
			re:      serverStartRegex,
			needsTS: true,
			handle: func(_ []string, ts time.Time, st *state.Store) (result, error) {
				st.UpdateServer(domain.ServerUpdate{
					LastTurnedOnEpoch: domain.Int64(ts.Unix()),
					LastTurnedOn:      domain.String(ts.Format(state.EpochFormat)),
				})
				return result{
					msg: &notify.Message{
						Template: msgServerLive,
						Params: map[string]string{
							"ip":   serverAddr,
							"port": strconv.Itoa(serverPort),
						},
					},
					event: &domain.Event{
						Type: domain.EventServerStart,
						Data: domain.ServerStartEvent{Address: serverAddr, Port: serverPort},
					},
				}, nil
			},
		},
		{
			name:    "SteamUserJoined",
			re:      handshakeRegex,
			needsTS: true,
			handle:  handleHandshake,
		},
		{
			name:   "SteamUserBadPassword",
			re:     badPasswordRegex,
			handle: handleBadPassword,
		},
		{
			name:   "CharacterDied",
			re:     characterDiedRegex,
			handle: handleCharacterDied,
		},
		{
			name:    "CharacterJoined",
			re:      characterJoinRegex,
			needsTS: true,
			handle:  handleCharacterJoined,
		},
		{
			name:    "SteamUserLeft",
			re:      socketClosedRegex,
			needsTS: true,
			handle:  handleSocketClosed,
		},
	}
}

// handleHandshake records a steam user's network handshake. The connection
// is not yet bound to a character.
func handleHandshake(m []string, ts time.Time, st *state.Store) (result, error) {
	steamID := m[1]
	st.UpsertPlayer(steamID, domain.PlayerUpdate{
		LastJoinedEpoch: domain.Int64(ts.Unix()),
		LastJoined:      domain.String(ts.Format(state.EpochFormat)),
		Status:          domain.StatusPtr(domain.StatusConnected),
	})
	return result{
		event: &domain.Event{
			Type: domain.EventPlayerConnected,
			Data: domain.PlayerConnectedEvent{SteamID: steamID},
		},
	}, nil
}

// handleBadPassword marks a rejected connection. Notification is deferred to
// the socket close, where the character association (if any) is known.
func handleBadPassword(m []string, _ time.Time, st *state.Store) (result, error) {
	steamID := m[1]
	st.UpsertPlayer(steamID, domain.PlayerUpdate{
		Status: domain.StatusPtr(domain.StatusBadPassword),
	})
	return result{
		event: &domain.Event{
			Type: domain.EventBadPassword,
			Data: domain.BadPasswordEvent{SteamID: steamID},
		},
	}, nil
}

// handleCharacterDied increments the death counter. A death for a character
// never seen before means the stream started mid-session; a default record
// is synthesized so the counter stays correct and the stream keeps going.
func handleCharacterDied(m []string, _ time.Time, st *state.Store) (result, error) {
	name := m[1]
	c, known := st.GetCharacter(name)
	if !known {
		log.Printf("Death event for unknown character %q, synthesizing record", name)
	}
	updated := st.UpsertCharacter(name, domain.CharacterUpdate{
		Deaths: domain.Int64(c.Deaths + 1),
		Status: domain.StatusPtr(domain.StatusDead),
	})
	return result{
		msg: &notify.Message{
			Template: msgCharacterDied,
			Params: map[string]string{
				"name":   name,
				"deaths": strconv.FormatInt(updated.Deaths, 10),
			},
		},
		event: &domain.Event{
			Type: domain.EventCharacterDied,
			Data: domain.CharacterDiedEvent{Name: name, Deaths: updated.Deaths},
		},
	}, nil
}

// handleCharacterJoined processes a character identity handshake with a live
// ZDOID. Three cases: a brand-new character (bind to the oldest unbound
// connection), a returning session, or a respawn after death.
func handleCharacterJoined(m []string, ts time.Time, st *state.Store) (result, error) {
	name := m[1]
	zdoid := m[2]

	c, known := st.GetCharacter(name)
	switch {
	case !known:
		// Brand-new character: bind it to the connection that has been
		// waiting longest without a character. The character is recorded
		// even when no such connection exists.
		owner := st.OldestConnectedSteamID()
		update := domain.CharacterUpdate{
			Status:          domain.StatusPtr(domain.StatusPlaying),
			LastZDOID:       domain.String(zdoid),
			LastJoinedEpoch: domain.Int64(ts.Unix()),
			LastJoined:      domain.String(ts.Format(state.EpochFormat)),
		}
		if owner != "" {
			update.OwnerSteamID = domain.String(owner)
		}
		st.UpsertCharacter(name, update)
		if owner != "" {
			// The session clock restarts at character spawn, so both the
			// player and the character accrue the same session length.
			st.UpsertPlayer(owner, domain.PlayerUpdate{
				LastCharacter:   domain.String(name),
				LastJoinedEpoch: domain.Int64(ts.Unix()),
				LastJoined:      domain.String(ts.Format(state.EpochFormat)),
				Status:          domain.StatusPtr(domain.StatusPlaying),
			})
		} else {
			log.Printf("No unbound connected player for new character %q, recording unowned", name)
		}
		return result{
			msg: &notify.Message{
				Template: msgNewPlayer,
				Params:   map[string]string{"name": name},
			},
			event: &domain.Event{
				Type: domain.EventCharacterJoined,
				Data: domain.CharacterJoinedEvent{Name: name, SteamID: owner},
			},
		}, nil

	case c.Status == domain.StatusDisconnected:
		// Returning session.
		st.UpsertCharacter(name, domain.CharacterUpdate{
			Status:          domain.StatusPtr(domain.StatusPlaying),
			LastZDOID:       domain.String(zdoid),
			LastJoinedEpoch: domain.Int64(ts.Unix()),
			LastJoined:      domain.String(ts.Format(state.EpochFormat)),
		})
		if c.OwnerSteamID != "" {
			st.UpsertPlayer(c.OwnerSteamID, domain.PlayerUpdate{
				LastCharacter:   domain.String(name),
				LastJoinedEpoch: domain.Int64(ts.Unix()),
				LastJoined:      domain.String(ts.Format(state.EpochFormat)),
				Status:          domain.StatusPtr(domain.StatusPlaying),
			})
		}
		return result{
			msg: &notify.Message{
				Template: msgPlayerRejoined,
				Params:   map[string]string{"name": name},
			},
			event: &domain.Event{
				Type: domain.EventCharacterJoined,
				Data: domain.CharacterJoinedEvent{Name: name, SteamID: c.OwnerSteamID, Rejoined: true},
			},
		}, nil

	case c.Status == domain.StatusDead:
		// Respawn within the same connection: new identity token only.
		// Session continuity is unchanged, so no timestamps, no owner
		// update and no notification.
		st.UpsertCharacter(name, domain.CharacterUpdate{
			Status:    domain.StatusPtr(domain.StatusPlaying),
			LastZDOID: domain.String(zdoid),
		})
		return result{}, nil
	}

	// Already playing (duplicate identity handshake): nothing to do.
	return result{}, nil
}

// handleSocketClosed closes a session: accrues play time to the player and
// the owned character, or reports the bad-password attempt.
func handleSocketClosed(m []string, ts time.Time, st *state.Store) (result, error) {
	steamID := m[1]
	epoch := ts.Unix()
	stamp := ts.Format(state.EpochFormat)

	p, known := st.GetPlayer(steamID)
	name := p.LastCharacter

	if known && p.Status == domain.StatusBadPassword {
		// Rejected connection: no time accrual.
		st.UpsertPlayer(steamID, domain.PlayerUpdate{
			LastDisconnectEpoch: domain.Int64(epoch),
			LastDisconnect:      domain.String(stamp),
			Status:              domain.StatusPtr(domain.StatusDisconnected),
		})
		msg := &notify.Message{
			Template: msgBadPassNew,
			Params:   map[string]string{"id": steamID},
		}
		if name != "" {
			msg = &notify.Message{
				Template: msgBadPassKnown,
				Params:   map[string]string{"name": name},
			}
		}
		return result{
			msg: msg,
			event: &domain.Event{
				Type: domain.EventPlayerLeft,
				Data: domain.PlayerLeftEvent{SteamID: steamID, Character: name, BadPassword: true},
			},
		}, nil
	}

	if name == "" {
		// Orphaned disconnect: a socket closed with no character ever
		// associated. Dropped without any update, matching the original
		// watchdog's behavior.
		log.Printf("Orphaned disconnect for steam id %s, ignoring", steamID)
		return result{}, nil
	}

	session := state.SessionSeconds(p.LastJoinedEpoch, epoch)
	c, _ := st.GetCharacter(name)
	playerTime := p.TimePlayed + session
	charTime := c.TimePlayed + session

	st.UpsertPlayer(steamID, domain.PlayerUpdate{
		LastDisconnectEpoch: domain.Int64(epoch),
		LastDisconnect:      domain.String(stamp),
		TimePlayed:          domain.Int64(playerTime),
		Status:              domain.StatusPtr(domain.StatusDisconnected),
	})
	st.UpsertCharacter(name, domain.CharacterUpdate{
		Status:              domain.StatusPtr(domain.StatusDisconnected),
		TimePlayed:          domain.Int64(charTime),
		LastDisconnectEpoch: domain.Int64(epoch),
		LastDisconnect:      domain.String(stamp),
	})

	hours := charTime / 3600
	mins := (charTime % 3600) / 60
	return result{
		msg: &notify.Message{
			Template: msgDisconnected,
			Params: map[string]string{
				"name":  name,
				"hours": strconv.FormatInt(hours, 10),
				"min":   strconv.FormatInt(mins, 10),
			},
		},
		event: &domain.Event{
			Type: domain.EventPlayerLeft,
			Data: domain.PlayerLeftEvent{SteamID: steamID, Character: name, SessionSeconds: session},
		},
	}, nil
}
