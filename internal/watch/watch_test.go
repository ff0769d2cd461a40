package watch

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ernie/valheim-tracker/internal/domain"
	"github.com/ernie/valheim-tracker/internal/notify"
	"github.com/ernie/valheim-tracker/internal/state"
)

// captureNotifier records every message instead of delivering it.
type captureNotifier struct {
	msgs []notify.Message
}

func (c *captureNotifier) Notify(_ context.Context, msg notify.Message) error {
	c.msgs = append(c.msgs, msg)
	return nil
}

func (c *captureNotifier) Close() {}

func (c *captureNotifier) rendered() []string {
	out := make([]string, len(c.msgs))
	for i, m := range c.msgs {
		out[i] = m.Render()
	}
	return out
}

func newTestWatcher(t *testing.T) (*Watcher, *state.Store, *captureNotifier) {
	t.Helper()
	store := state.NewStore(filepath.Join(t.TempDir(), "state.json"))
	rec := &captureNotifier{}
	w := New(store, rec, nil, "1.2.3.4", 2456)
	return w, store, rec
}

func feed(t *testing.T, w *Watcher, lines ...string) {
	t.Helper()
	for _, line := range lines {
		require.True(t, w.safeProcessLine(context.Background(), line))
	}
}

func TestExtractTimestamp(t *testing.T) {
	ts, ok := ExtractTimestamp("01/01/2024 10:00:00: Got handshake from client 555")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 1, 1, 10, 0, 0, 0, time.Local), ts)

	_, ok = ExtractTimestamp("Got handshake from client 555")
	assert.False(t, ok)

	_, ok = ExtractTimestamp("not a log line at all")
	assert.False(t, ok)
}

func TestServerStart(t *testing.T) {
	w, store, rec := newTestWatcher(t)

	feed(t, w, "01/01/2024 09:59:00: DungeonDB Start")

	srv := store.GetServer()
	assert.Equal(t, "2024-01-01 09:59:00", srv.LastTurnedOn)
	assert.NotZero(t, srv.LastTurnedOnEpoch)
	assert.Equal(t, "01/01/2024 09:59:00: DungeonDB Start", srv.LastParsedLog)

	require.Len(t, rec.msgs, 1)
	assert.Equal(t, "Server is live! Visit 1.2.3.4:2456", rec.rendered()[0])
}

func TestHandshakeRecordsConnectionWithoutNotification(t *testing.T) {
	w, store, rec := newTestWatcher(t)

	feed(t, w, "01/01/2024 10:00:00: Got handshake from client 555")

	p, ok := store.GetPlayer("555")
	require.True(t, ok)
	assert.Equal(t, domain.StatusConnected, p.Status)
	assert.NotZero(t, p.LastJoinedEpoch)
	assert.Empty(t, rec.msgs)
}

func TestEndToEndSession(t *testing.T) {
	w, store, rec := newTestWatcher(t)

	feed(t, w,
		"01/01/2024 10:00:00: Got handshake from client 555",
		"01/01/2024 10:00:05: Got character ZDOID from Bob : 1a2b:3c4d",
		"01/01/2024 10:05:05: Closing socket 555",
	)

	p, ok := store.GetPlayer("555")
	require.True(t, ok)
	assert.Equal(t, int64(300), p.TimePlayed)
	assert.Equal(t, domain.StatusDisconnected, p.Status)
	assert.Equal(t, "Bob", p.LastCharacter)

	c, ok := store.GetCharacter("Bob")
	require.True(t, ok)
	assert.Equal(t, "555", c.OwnerSteamID)
	assert.Equal(t, int64(300), c.TimePlayed)
	assert.Equal(t, domain.StatusDisconnected, c.Status)
	assert.Equal(t, "1a2b", c.LastZDOID)

	assert.Equal(t, []string{
		"A new player has joined! Welcome, Bob!",
		"Bob has disconnected. Their total play time has been 0hr 5m!",
	}, rec.rendered())
}

func TestTimeAccruesAcrossSessions(t *testing.T) {
	w, store, _ := newTestWatcher(t)

	feed(t, w,
		"01/01/2024 10:00:00: Got handshake from client 555",
		"01/01/2024 10:00:05: Got character ZDOID from Bob : 1a2b:3c4d",
		"01/01/2024 10:05:05: Closing socket 555",
		// second session, reconnect with the same character
		"01/01/2024 12:00:00: Got handshake from client 555",
		"01/01/2024 12:00:10: Got character ZDOID from Bob : 9e8f:7a6b",
		"01/01/2024 13:00:10: Closing socket 555",
	)

	p, _ := store.GetPlayer("555")
	c, _ := store.GetCharacter("Bob")
	assert.Equal(t, int64(300+3600), p.TimePlayed, "play time accumulates, never resets")
	assert.Equal(t, int64(300+3600), c.TimePlayed)
}

func TestDeathThenRespawn(t *testing.T) {
	w, store, rec := newTestWatcher(t)

	feed(t, w,
		"01/01/2024 10:00:00: Got handshake from client 555",
		"01/01/2024 10:00:05: Got character ZDOID from Bob : 1a2b:3c4d",
	)
	rec.msgs = nil

	feed(t, w, "01/01/2024 10:10:00: Got character ZDOID from Bob : 0:0")

	c, _ := store.GetCharacter("Bob")
	assert.Equal(t, int64(1), c.Deaths)
	assert.Equal(t, domain.StatusDead, c.Status)
	require.Len(t, rec.msgs, 1)
	assert.Equal(t, "Bob has died! This is death number 1", rec.rendered()[0])

	// Respawn is silent and keeps the session going.
	feed(t, w, "01/01/2024 10:10:30: Got character ZDOID from Bob : 9e8f:7a6b")

	c, _ = store.GetCharacter("Bob")
	assert.Equal(t, int64(1), c.Deaths)
	assert.Equal(t, domain.StatusPlaying, c.Status)
	assert.Equal(t, "9e8f", c.LastZDOID)
	assert.Len(t, rec.msgs, 1, "no notification on respawn")
}

func TestDeathsAreMonotonic(t *testing.T) {
	w, store, _ := newTestWatcher(t)

	feed(t, w,
		"01/01/2024 10:00:00: Got handshake from client 555",
		"01/01/2024 10:00:05: Got character ZDOID from Bob : 1a2b:3c4d",
	)
	for i := 0; i < 3; i++ {
		feed(t, w,
			"01/01/2024 10:10:00: Got character ZDOID from Bob : 0:0",
			"01/01/2024 10:10:30: Got character ZDOID from Bob : 9e8f:7a6b",
		)
	}

	c, _ := store.GetCharacter("Bob")
	assert.Equal(t, int64(3), c.Deaths)
}

func TestDeathOfUnknownCharacterSynthesizesRecord(t *testing.T) {
	w, store, rec := newTestWatcher(t)

	feed(t, w, "01/01/2024 10:00:00: Got character ZDOID from Ghost : 0:0")

	c, ok := store.GetCharacter("Ghost")
	require.True(t, ok)
	assert.Equal(t, int64(1), c.Deaths)
	assert.Equal(t, domain.StatusDead, c.Status)
	require.Len(t, rec.msgs, 1)
	assert.Equal(t, "Ghost has died! This is death number 1", rec.rendered()[0])
}

func TestBadPasswordKnownAndUnknown(t *testing.T) {
	w, store, rec := newTestWatcher(t)

	// Unknown attacker: never had a character.
	feed(t, w,
		"01/01/2024 10:00:00: Got handshake from client 777",
		"01/01/2024 10:00:01: Peer 777 has wrong password",
		"01/01/2024 10:00:02: Closing socket 777",
	)

	p, _ := store.GetPlayer("777")
	assert.Equal(t, domain.StatusDisconnected, p.Status)
	assert.Equal(t, int64(0), p.TimePlayed, "rejected connections accrue no time")
	require.Len(t, rec.msgs, 1)
	assert.Equal(t, "A new player attempted to join with a bad password! Their steam ID is 777", rec.rendered()[0])

	// Known player retrying with a wrong password.
	feed(t, w,
		"01/01/2024 11:00:00: Got handshake from client 555",
		"01/01/2024 11:00:05: Got character ZDOID from Bob : 1a2b:3c4d",
		"01/01/2024 11:30:05: Closing socket 555",
	)
	rec.msgs = nil
	feed(t, w,
		"01/01/2024 12:00:00: Peer 555 has wrong password",
		"01/01/2024 12:00:01: Closing socket 555",
	)

	require.Len(t, rec.msgs, 1)
	assert.Equal(t, "Bob attempted to join with a bad password!", rec.rendered()[0])

	p, _ = store.GetPlayer("555")
	assert.Equal(t, int64(1800), p.TimePlayed, "bad-password branch leaves accrued time alone")
}

func TestRejoinNotification(t *testing.T) {
	w, _, rec := newTestWatcher(t)

	feed(t, w,
		"01/01/2024 10:00:00: Got handshake from client 555",
		"01/01/2024 10:00:05: Got character ZDOID from Bob : 1a2b:3c4d",
		"01/01/2024 10:05:05: Closing socket 555",
	)
	rec.msgs = nil

	feed(t, w,
		"01/01/2024 11:00:00: Got handshake from client 555",
		"01/01/2024 11:00:05: Got character ZDOID from Bob : 9e8f:7a6b",
	)

	require.Len(t, rec.msgs, 1)
	assert.Equal(t, "Bob has joined!", rec.rendered()[0])
}

func TestOrphanedDisconnectIsDropped(t *testing.T) {
	w, store, rec := newTestWatcher(t)

	feed(t, w,
		"01/01/2024 10:00:00: Got handshake from client 555",
		"01/01/2024 10:00:10: Closing socket 555",
	)

	// The player keeps its connected status; nothing was announced.
	p, _ := store.GetPlayer("555")
	assert.Equal(t, domain.StatusConnected, p.Status)
	assert.Equal(t, int64(0), p.TimePlayed)
	assert.Empty(t, rec.msgs)
}

func TestNewCharacterWithoutConnectionIsRecordedUnowned(t *testing.T) {
	w, store, rec := newTestWatcher(t)

	feed(t, w, "01/01/2024 10:00:05: Got character ZDOID from Loner : 1a2b:3c4d")

	c, ok := store.GetCharacter("Loner")
	require.True(t, ok)
	assert.Equal(t, "", c.OwnerSteamID)
	assert.Equal(t, domain.StatusPlaying, c.Status)
	require.Len(t, rec.msgs, 1)
	assert.Equal(t, "A new player has joined! Welcome, Loner!", rec.rendered()[0])
}

func TestOwnerBindingPicksOldestConnection(t *testing.T) {
	w, store, _ := newTestWatcher(t)

	feed(t, w,
		"01/01/2024 10:00:00: Got handshake from client 999",
		"01/01/2024 10:00:02: Got handshake from client 111",
		"01/01/2024 10:00:05: Got character ZDOID from Bob : 1a2b:3c4d",
	)

	c, _ := store.GetCharacter("Bob")
	assert.Equal(t, "999", c.OwnerSteamID)

	p, _ := store.GetPlayer("111")
	assert.Equal(t, domain.StatusConnected, p.Status, "the younger connection stays unbound")
}

func TestFirstMatchWins(t *testing.T) {
	w, store, rec := newTestWatcher(t)

	feed(t, w,
		"01/01/2024 10:00:00: Got handshake from client 555",
		"01/01/2024 10:00:05: Got character ZDOID from Bob : 1a2b:3c4d",
	)
	rec.msgs = nil

	// A death line also contains text a later matcher could bite on; only
	// the death handler may fire.
	feed(t, w, "01/01/2024 10:10:00: Got character ZDOID from Bob : 0:0")

	c, _ := store.GetCharacter("Bob")
	assert.Equal(t, int64(1), c.Deaths)
	assert.Equal(t, domain.StatusDead, c.Status)
	require.Len(t, rec.msgs, 1)
	assert.Contains(t, rec.rendered()[0], "has died")
}

func TestUnmatchedLinesHaveNoSideEffects(t *testing.T) {
	w, store, rec := newTestWatcher(t)

	feed(t, w,
		"01/01/2024 10:00:00: Some unrelated engine chatter",
		"random line with no timestamp",
	)

	assert.Empty(t, store.Players())
	assert.Empty(t, store.Characters())
	assert.Empty(t, rec.msgs)
	assert.Equal(t, "", store.GetServer().LastParsedLog, "checkpoint only moves on a match")
}

func TestMatchedLineWithoutTimestampIsSkipped(t *testing.T) {
	w, store, rec := newTestWatcher(t)

	feed(t, w, "Got handshake from client 555")

	assert.Empty(t, store.Players())
	assert.Empty(t, rec.msgs)
}

func TestCheckpointRecordsLastParsedLine(t *testing.T) {
	w, store, _ := newTestWatcher(t)

	line := "01/01/2024 10:00:00: Got handshake from client 555"
	feed(t, w, line)
	assert.Equal(t, line, store.GetServer().LastParsedLog)
}

func TestRunReconcilesOnStartupAndShutdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	// Simulate a previous run that crashed with a live session.
	prev := state.NewStore(path)
	prev.UpsertPlayer("555", domain.PlayerUpdate{
		LastJoinedEpoch: domain.Int64(time.Now().Add(-10 * time.Minute).Unix()),
		Status:          domain.StatusPtr(domain.StatusPlaying),
	})
	require.NoError(t, prev.Save())

	store := state.NewStore(path)
	rec := &captureNotifier{}
	w := New(store, rec, nil, "1.2.3.4", 2456)

	lines := make(chan string)
	close(lines)
	require.NoError(t, w.Run(context.Background(), lines))

	p, _ := store.GetPlayer("555")
	assert.Equal(t, domain.StatusDisconnected, p.Status)
	assert.InDelta(t, 600, p.TimePlayed, 5, "crashed session time is recovered at startup")

	// End of stream announces the server shutdown.
	require.NotEmpty(t, rec.msgs)
	assert.Equal(t, "Server has been shutdown.", rec.rendered()[len(rec.msgs)-1])

	srv := store.GetServer()
	assert.NotZero(t, srv.LastShutdownEpoch)
}

func TestRunInterruptCause(t *testing.T) {
	w, _, rec := newTestWatcher(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	lines := make(chan string)
	require.NoError(t, w.Run(ctx, lines))

	require.NotEmpty(t, rec.msgs)
	assert.Equal(t, "Watcher shut down by operator.", rec.rendered()[len(rec.msgs)-1])
}
