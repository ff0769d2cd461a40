// Package watch implements the log stream watchdog: it recognizes game
// server log lines, folds them into the durable state model, and fans
// notifications out to the configured sinks.
package watch

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/ernie/valheim-tracker/internal/domain"
	"github.com/ernie/valheim-tracker/internal/notify"
	"github.com/ernie/valheim-tracker/internal/state"
)

// Cause identifies why the watcher stopped.
type Cause string

const (
	// CauseStreamEnd means the input stream reached EOF.
	CauseStreamEnd Cause = "stream_end"
	// CauseInterrupt means the operator asked the process to stop.
	CauseInterrupt Cause = "interrupt"
	// CauseFault means line processing panicked.
	CauseFault Cause = "fault"
)

// shutdownMessages maps each stop cause to its announcement.
var shutdownMessages = map[Cause]string{
	CauseStreamEnd: "Server has been shutdown.",
	CauseInterrupt: "Watcher shut down by operator.",
	CauseFault:     "The parser has been forced to exit",
}

// EventSink receives live events for streaming to WebSocket clients.
type EventSink interface {
	Broadcast(domain.Event)
}

// Watcher drives the whole pipeline for one run: load state, reconcile,
// process lines until the stream ends, reconcile again, announce shutdown.
type Watcher struct {
	store    *state.Store
	notifier notify.Notifier
	sink     EventSink
	matchers []matcher

	// Echo mirrors every consumed line to the process log.
	Echo bool

	// now is swappable for tests.
	now func() time.Time
}

// New builds a watcher. notifier must be non-nil (use notify.Nop to
// discard); sink may be nil when no WebSocket hub is running.
func New(store *state.Store, notifier notify.Notifier, sink EventSink, serverAddr string, serverPort int) *Watcher {
	return &Watcher{
		store:    store,
		notifier: notifier,
		sink:     sink,
		matchers: newMatchers(serverAddr, serverPort),
		now:      time.Now,
	}
}

// Run executes one full watch cycle over lines. It returns once the channel
// closes, the context is canceled, or a line handler panics. State is loaded
// and reconciled before the first line and reconciled and saved again on the
// way out, so a crash-interrupted previous run is healed here too.
func (w *Watcher) Run(ctx context.Context, lines <-chan string) error {
	if err := w.store.Load(); err != nil {
		return fmt.Errorf("loading state: %w", err)
	}
	w.reconcile()

	cause := CauseStreamEnd
loop:
	for {
		select {
		case <-ctx.Done():
			cause = CauseInterrupt
			break loop
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			if !w.safeProcessLine(ctx, line) {
				cause = CauseFault
				break loop
			}
		}
	}

	w.shutdown(cause)
	return nil
}

// reconcile forces every entity to disconnected as of now and persists the
// result. Running it twice in a row changes nothing the second time.
func (w *Watcher) reconcile() {
	w.store.ForceDisconnectAll(w.now())
	if err := w.store.Save(); err != nil {
		log.Printf("Failed to save state after reconcile: %v", err)
	}
}

// Reconcile is the exported form used by the admin API.
func (w *Watcher) Reconcile() {
	w.reconcile()
	w.emit(domain.Event{Type: domain.EventReconcile})
}

// safeProcessLine isolates a panic in line handling so the shutdown path
// still runs and state is persisted. Returns false when a panic occurred.
func (w *Watcher) safeProcessLine(ctx context.Context, line string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Panic processing line %q: %v\n%s", line, r, debug.Stack())
			ok = false
		}
	}()
	w.processLine(ctx, line)
	return true
}

// processLine runs the dispatch table over one log line. The first matcher
// whose pattern fires consumes the line; state is checkpointed and saved
// after every consumed line so a crash never replays further back than one
// event.
func (w *Watcher) processLine(ctx context.Context, line string) {
	if w.Echo {
		log.Print(line)
	}

	ts, hasTS := ExtractTimestamp(line)

	for _, m := range w.matchers {
		groups := m.re.FindStringSubmatch(line)
		if groups == nil {
			continue
		}
		if m.needsTS && !hasTS {
			log.Printf("Matched %s but line has no timestamp, skipping: %q", m.name, line)
			return
		}

		res, err := m.handle(groups, ts, w.store)
		if err != nil {
			log.Printf("Handler %s failed: %v", m.name, err)
		}

		w.store.UpdateServer(domain.ServerUpdate{LastParsedLog: domain.String(line)})
		if saveErr := w.store.Save(); saveErr != nil {
			log.Printf("Failed to save state: %v", saveErr)
		}

		if err == nil {
			if res.msg != nil {
				if nerr := w.notifier.Notify(ctx, *res.msg); nerr != nil {
					log.Printf("Notification failed: %v", nerr)
				}
			}
			if res.event != nil {
				ev := *res.event
				ev.Timestamp = ts
				w.emit(ev)
			}
		}
		return
	}
}

// shutdown reconciles, persists, and announces the end of the run.
func (w *Watcher) shutdown(cause Cause) {
	now := w.now()
	w.store.ForceDisconnectAll(now)
	w.store.UpdateServer(domain.ServerUpdate{
		LastShutdownEpoch: domain.Int64(now.Unix()),
		LastShutdown:      domain.String(now.Format(state.EpochFormat)),
	})
	if err := w.store.Save(); err != nil {
		log.Printf("Failed to save state at shutdown: %v", err)
	}

	msg := notify.Message{Template: shutdownMessages[cause]}
	if err := w.notifier.Notify(context.Background(), msg); err != nil {
		log.Printf("Shutdown notification failed: %v", err)
	}
	w.emit(domain.Event{
		Type:      domain.EventShutdown,
		Timestamp: now,
		Data:      domain.ShutdownEvent{Cause: string(cause)},
	})
}

// emit stamps and broadcasts a live event when a sink is attached.
func (w *Watcher) emit(ev domain.Event) {
	if w.sink == nil {
		return
	}
	ev.ID = uuid.NewString()
	if ev.Timestamp.IsZero() {
		ev.Timestamp = w.now()
	}
	w.sink.Broadcast(ev)
}

// Lines converts a reader into the line channel Run consumes. The channel
// closes at EOF or read error; cancellation stops the goroutine on the next
// line boundary.
func Lines(ctx context.Context, r io.Reader) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			select {
			case out <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := sc.Err(); err != nil {
			log.Printf("Log stream read error: %v", err)
		}
	}()
	return out
}
