package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/ernie/valheim-tracker/internal/auth"
	"github.com/ernie/valheim-tracker/internal/notify"
)

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// handleHealth returns a simple health check response
func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// handleGetState returns the full tracked aggregate.
func (r *Router) handleGetState(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, r.store.Snapshot())
}

// handleGetPlayers returns every tracked steam user.
func (r *Router) handleGetPlayers(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, r.store.Players())
}

// handleGetPlayer returns one steam user by ID.
func (r *Router) handleGetPlayer(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")
	p, ok := r.store.GetPlayer(id)
	if !ok {
		writeError(w, http.StatusNotFound, "player not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleGetCharacters returns every tracked character.
func (r *Router) handleGetCharacters(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, r.store.Characters())
}

// handleGetCharacter returns one character by name.
func (r *Router) handleGetCharacter(w http.ResponseWriter, req *http.Request) {
	name := req.PathValue("name")
	c, ok := r.store.GetCharacter(name)
	if !ok {
		writeError(w, http.StatusNotFound, "character not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// handleGetServer returns the game server record.
func (r *Router) handleGetServer(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, r.store.GetServer())
}

// LoginRequest is the request body for login
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is the response body for successful login
type LoginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// handleLogin authenticates the operator and returns a JWT token.
func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	var login LoginRequest
	if err := json.NewDecoder(req.Body).Decode(&login); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if login.Username == "" || login.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	if login.Username != "admin" || r.adminHash == "" || !auth.CheckPassword(login.Password, r.adminHash) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := r.auth.GenerateToken(login.Username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{Token: token, Username: login.Username})
}

// handleReconcile forces a session reconciliation and save.
func (r *Router) handleReconcile(w http.ResponseWriter, req *http.Request) {
	r.reconciler.Reconcile()
	writeJSON(w, http.StatusOK, map[string]string{"status": "reconciled"})
}

// NotifyTestRequest is the request body for the notification test endpoint.
type NotifyTestRequest struct {
	Content string `json:"content"`
}

// handleNotifyTest sends a message through the configured notification
// sinks so operators can verify webhook wiring.
func (r *Router) handleNotifyTest(w http.ResponseWriter, req *http.Request) {
	var body NotifyTestRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Content == "" {
		body.Content = "Notification test from the watchdog."
	}

	ctx, cancel := context.WithTimeout(req.Context(), 10*time.Second)
	defer cancel()
	if err := r.notifier.Notify(ctx, notify.Message{Template: body.Content}); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

// requireAdmin is middleware that validates the operator JWT before calling
// the handler.
func (r *Router) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if r.getAuthClaims(req) == nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next(w, req)
	}
}

// getAuthClaims extracts and validates JWT from the Authorization header.
func (r *Router) getAuthClaims(req *http.Request) *auth.Claims {
	authHeader := req.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return nil
	}
	claims, err := r.auth.ValidateToken(strings.TrimPrefix(authHeader, "Bearer "))
	if err != nil {
		return nil
	}
	return claims
}
