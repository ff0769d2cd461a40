// vhtrack - Valheim dedicated server log watchdog
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/ernie/valheim-tracker/internal/api"
	"github.com/ernie/valheim-tracker/internal/auth"
	"github.com/ernie/valheim-tracker/internal/config"
	"github.com/ernie/valheim-tracker/internal/notify"
	"github.com/ernie/valheim-tracker/internal/state"
	"github.com/ernie/valheim-tracker/internal/watch"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "watch":
		cmdWatch(os.Args[2:])
	case "replay":
		cmdReplay(os.Args[2:])
	case "hashpass":
		cmdHashpass(os.Args[2:])
	case "version":
		fmt.Printf("vhtrack %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: vhtrack <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  watch [--config FILE] [--echo]   Watch the server log (stdin, or log_path when configured)")
	fmt.Println("  replay [--config FILE] <file>    Replay a saved log file (.gz supported) through the tracker")
	fmt.Println("  hashpass                         Hash an admin password for the config file")
	fmt.Println("  version                          Show version")
}

// cmdWatch runs the live watchdog against stdin or a tailed log file.
func cmdWatch(args []string) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	echo := fs.Bool("echo", false, "mirror consumed log lines to the process log")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("vhtrack %s starting...", version)

	store := state.NewStore(cfg.Watch.StateFile)
	notifier := buildNotifier(cfg)
	defer notifier.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	// The hub only exists when the status API is enabled.
	var sink watch.EventSink
	var hub *api.Hub
	if cfg.HTTP.ListenAddr != "" {
		hub = api.NewHub()
		go hub.Run()
		sink = hub
	}

	watcher := watch.New(store, notifier, sink, cfg.Server.Address, cfg.Server.Port)
	watcher.Echo = *echo

	// Optional status API
	var httpServer *http.Server
	if hub != nil {
		authService := auth.NewService(cfg.HTTP.JWTSecret, cfg.HTTP.TokenDuration)
		router := api.NewRouter(store, authService, cfg.HTTP.AdminPasswordHash, notifier, watcher, hub)

		httpServer = &http.Server{
			Addr:         cfg.HTTP.ListenAddr,
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		go func() {
			log.Printf("HTTP server listening on %s", cfg.HTTP.ListenAddr)
			if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
				log.Printf("HTTP server error: %v", err)
			}
		}()
	}

	var lines <-chan string
	if cfg.Watch.LogPath != "" {
		tailer, err := watch.NewTailer(cfg.Watch.LogPath)
		if err != nil {
			log.Fatalf("Failed to open log file: %v", err)
		}
		log.Printf("Tailing %s", cfg.Watch.LogPath)
		lines = tailer.Lines(ctx)
	} else {
		log.Print("Reading log from stdin")
		lines = watch.Lines(ctx, os.Stdin)
	}

	if err := watcher.Run(ctx, lines); err != nil {
		log.Fatalf("Watcher failed: %v", err)
	}

	if httpServer != nil {
		log.Println("Shutting down HTTP server...")
		shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutCancel()
		if err := httpServer.Shutdown(shutCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
	}

	log.Println("Shutdown complete")
}

// cmdReplay runs a saved log file through the tracker from start to finish.
func cmdReplay(args []string) {
	fs := flag.NewFlagSet("replay", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	echo := fs.Bool("echo", false, "mirror consumed log lines to the process log")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: vhtrack replay [--config FILE] <file>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	file, err := watch.OpenLogFile(path)
	if err != nil {
		log.Fatalf("Failed to open %s: %v", path, err)
	}
	defer file.Close()

	store := state.NewStore(cfg.Watch.StateFile)

	// Replays rebuild state from history; re-announcing old events would
	// spam the webhook.
	watcher := watch.New(store, notify.Nop{}, nil, cfg.Server.Address, cfg.Server.Port)
	watcher.Echo = *echo

	ctx := context.Background()
	if err := watcher.Run(ctx, watch.Lines(ctx, file)); err != nil {
		log.Fatalf("Replay failed: %v", err)
	}
	log.Printf("Replay of %s complete", path)
}

// cmdHashpass prompts for a password and prints its bcrypt hash, for the
// admin_password_hash config field.
func cmdHashpass(args []string) {
	fmt.Print("Enter password: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		log.Fatalf("Failed to read password: %v", err)
	}
	if len(password) < 8 {
		log.Fatal("Password must be at least 8 characters")
	}

	fmt.Print("Confirm password: ")
	confirm, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		log.Fatalf("Failed to read password: %v", err)
	}
	if string(password) != string(confirm) {
		log.Fatal("Passwords do not match")
	}

	hash, err := auth.HashPassword(string(password))
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}
	fmt.Println(hash)
}

// buildNotifier assembles the configured notification sinks. Unconfigured
// sinks collapse to no-ops so Multi only carries live endpoints.
func buildNotifier(cfg *config.Config) notify.Notifier {
	sinks := notify.Multi{notify.NewWebhook(cfg.Notify.WebhookURL, cfg.Notify.Timeout)}

	nats, err := notify.NewNATSPublisher(cfg.Notify.NATSURL, cfg.Notify.NATSSubject)
	if err != nil {
		log.Printf("NATS publisher disabled: %v", err)
	} else {
		sinks = append(sinks, nats)
	}

	return sinks
}
