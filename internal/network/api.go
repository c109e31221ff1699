// Package network exposes the zoo session over HTTP and WebSocket: a REST
// API for the snapshot and commands, an event history endpoint and a hub
// that streams every event to connected clients.
package network

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MRamiBalles/ZooSimulator/server/internal/engine"
	"github.com/MRamiBalles/ZooSimulator/server/internal/platform/logger"
)

// Commander is the set of session commands clients may issue.
// *engine.Engine implements it.
type Commander interface {
	Feed() error
	Jump() (bool, error)
	NewGame(ctx context.Context) error
	Snapshot() engine.ZooSnapshot
}

// API handles the REST surface of the session.
type API struct {
	commander Commander
	logger    *logger.Logger
}

// NewAPI creates the REST handler set.
func NewAPI(cmd Commander, log *logger.Logger) *API {
	return &API{commander: cmd, logger: log}
}

// JumpResponse is returned by POST /api/jump.
type JumpResponse struct {
	Ended bool               `json:"ended"`
	Zoo   engine.ZooSnapshot `json:"zoo"`
}

// HandleZoo returns the current snapshot.
// GET /api/zoo
func (a *API) HandleZoo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	jsonSuccess(w, a.commander.Snapshot())
}

// HandleFeed feeds every animal.
// POST /api/feed
func (a *API) HandleFeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := a.commander.Feed(); err != nil {
		a.commandFailed(w, "feed", err)
		return
	}
	a.logger.Event("API_FEED", r.RemoteAddr, "fed every animal")
	jsonSuccess(w, a.commander.Snapshot())
}

// HandleJump applies one forced decay pass.
// POST /api/jump
func (a *API) HandleJump(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ended, err := a.commander.Jump()
	if err != nil {
		a.commandFailed(w, "jump", err)
		return
	}
	a.logger.Event("API_JUMP", r.RemoteAddr, "jumped forward")
	jsonSuccess(w, JumpResponse{Ended: ended, Zoo: a.commander.Snapshot()})
}

// HandleNewGame replaces the population.
// POST /api/new-game
func (a *API) HandleNewGame(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()
	if err := a.commander.NewGame(ctx); err != nil {
		a.commandFailed(w, "new game", err)
		return
	}
	a.logger.Event("API_NEW_GAME", r.RemoteAddr, "started a new game")
	jsonSuccess(w, a.commander.Snapshot())
}

// RegisterRoutes sets up the session API routes.
func (a *API) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/zoo", a.HandleZoo)
	mux.HandleFunc("/api/feed", a.HandleFeed)
	mux.HandleFunc("/api/jump", a.HandleJump)
	mux.HandleFunc("/api/new-game", a.HandleNewGame)
}

func (a *API) commandFailed(w http.ResponseWriter, command string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, engine.ErrNotStarted), errors.Is(err, engine.ErrClosed):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		status = http.StatusGatewayTimeout
	}
	a.logger.Warn("command failed", "command", command, "error", err)
	jsonError(w, err.Error(), status)
}

// NewUpgrader returns the websocket upgrader used by /ws.
func NewUpgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin: func(r *http.Request) bool {
			return true // The zoo has no browser-facing auth to protect
		},
	}
}

// ServeWS upgrades the request and attaches the connection to the hub.
func ServeWS(hub *Hub, upgrader *websocket.Upgrader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			hub.metrics.RecordWSError()
			hub.logger.Warn("failed to upgrade websocket connection", "error", err)
			return
		}

		client := NewClient(hub, conn)
		client.Register()

		go client.WritePump()
		go client.ReadPump()
	}
}

// jsonError sends an error response.
func jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// jsonSuccess sends a success response.
func jsonSuccess(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(data)
}
