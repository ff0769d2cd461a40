// Package api serves the read-only status endpoints, the admin operations,
// and the live WebSocket event stream over the tracked state.
package api

import (
	"net/http"

	"github.com/ernie/valheim-tracker/internal/auth"
	"github.com/ernie/valheim-tracker/internal/notify"
	"github.com/ernie/valheim-tracker/internal/state"
)

// Reconciler is the admin hook for forcing a session reconciliation.
type Reconciler interface {
	Reconcile()
}

// Router holds the HTTP routes and dependencies.
type Router struct {
	mux        *http.ServeMux
	store      *state.Store
	hub        *Hub
	auth       *auth.Service
	adminHash  string
	notifier   notify.Notifier
	reconciler Reconciler
}

// NewRouter wires the routes. adminHash is the bcrypt hash of the single
// operator password; when empty, login always fails and the admin endpoints
// are unreachable.
func NewRouter(store *state.Store, authService *auth.Service, adminHash string, notifier notify.Notifier, reconciler Reconciler, hub *Hub) *Router {
	r := &Router{
		mux:        http.NewServeMux(),
		store:      store,
		hub:        hub,
		auth:       authService,
		adminHash:  adminHash,
		notifier:   notifier,
		reconciler: reconciler,
	}

	r.mux.HandleFunc("GET /api/state", r.handleGetState)
	r.mux.HandleFunc("GET /api/players", r.handleGetPlayers)
	r.mux.HandleFunc("GET /api/players/{id}", r.handleGetPlayer)
	r.mux.HandleFunc("GET /api/characters", r.handleGetCharacters)
	r.mux.HandleFunc("GET /api/characters/{name}", r.handleGetCharacter)
	r.mux.HandleFunc("GET /api/server", r.handleGetServer)

	r.mux.HandleFunc("POST /api/auth/login", r.handleLogin)

	r.mux.HandleFunc("POST /api/reconcile", r.requireAdmin(r.handleReconcile))
	r.mux.HandleFunc("POST /api/notify/test", r.requireAdmin(r.handleNotifyTest))

	r.mux.HandleFunc("GET /ws", r.handleWebSocket)
	r.mux.HandleFunc("GET /health", r.handleHealth)

	return r
}

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

	if req.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	r.mux.ServeHTTP(w, req)
}
