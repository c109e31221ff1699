package network

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MRamiBalles/ZooSimulator/server/internal/events"
	"github.com/MRamiBalles/ZooSimulator/server/internal/infra/storage"
	"github.com/MRamiBalles/ZooSimulator/server/internal/platform/logger"
)

const (
	defaultHistoryLimit = 500
	maxHistoryLimit     = 5000
)

// HistorySource answers event history queries. Both the in-memory log and
// the SQLite journal can serve it.
type HistorySource interface {
	History(ctx context.Context, f events.EventFilter) ([]events.GameEvent, error)
}

// GameSource lists the games recorded for the session.
type GameSource interface {
	Games(ctx context.Context) ([]storage.GameRecord, error)
}

// RecapSource narrates one generation.
type RecapSource interface {
	GenerateRecap(ctx context.Context, sessionID string, generation uint64) ([]storage.RecapEvent, error)
}

// LogHistory serves history from the in-memory event log.
type LogHistory struct {
	Log *events.EventLog
}

// History implements HistorySource.
func (h LogHistory) History(_ context.Context, f events.EventFilter) ([]events.GameEvent, error) {
	return h.Log.Filter(f), nil
}

// HistoryHandler provides the event history API.
type HistoryHandler struct {
	source    HistorySource
	sessionID string
	games     GameSource
	recaps    RecapSource
	logger    *logger.Logger
}

// NewHistoryHandler creates a history handler over source.
func NewHistoryHandler(source HistorySource, sessionID string, log *logger.Logger) *HistoryHandler {
	return &HistoryHandler{source: source, sessionID: sessionID, logger: log}
}

// WithJournal enables the /api/games and /api/recap endpoints.
func (hh *HistoryHandler) WithJournal(games GameSource, recaps RecapSource) *HistoryHandler {
	hh.games = games
	hh.recaps = recaps
	return hh
}

// HistoryResponse is the API response for a history query.
type HistoryResponse struct {
	SessionID   string             `json:"session_id"`
	TotalEvents int                `json:"total_events"`
	FilteredBy  string             `json:"filtered_by,omitempty"`
	GeneratedAt string             `json:"generated_at"`
	Events      []events.GameEvent `json:"events"`
}

// HandleHistory returns the filtered event history.
// GET /api/history?type=TIME_TICK&generation=N&limit=N
func (hh *HistoryHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	filter, err := parseFilter(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	evs, err := hh.source.History(r.Context(), filter)
	if err != nil {
		hh.logger.Error("history query failed", "error", err)
		jsonError(w, "history unavailable", http.StatusInternalServerError)
		return
	}
	if evs == nil {
		evs = []events.GameEvent{}
	}

	var desc []string
	if filter.Type != "" {
		desc = append(desc, "type "+string(filter.Type))
	}
	if filter.Generation != 0 {
		desc = append(desc, "generation "+strconv.FormatUint(filter.Generation, 10))
	}

	hh.logger.Debug("history served", "events", len(evs), "filter", strings.Join(desc, ", "))
	jsonSuccess(w, HistoryResponse{
		SessionID:   hh.sessionID,
		TotalEvents: len(evs),
		FilteredBy:  strings.Join(desc, ", "),
		GeneratedAt: time.Now().Format(time.RFC3339),
		Events:      evs,
	})
}

// HandleStats returns event counts by type.
// GET /api/history/stats?generation=N
func (hh *HistoryHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	filter, err := parseFilter(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	filter.Type = ""
	filter.Limit = 0

	evs, err := hh.source.History(r.Context(), filter)
	if err != nil {
		hh.logger.Error("history query failed", "error", err)
		jsonError(w, "history unavailable", http.StatusInternalServerError)
		return
	}

	stats := map[string]int{"total_events": len(evs)}
	for _, e := range evs {
		stats[string(e.Type)]++
	}

	jsonSuccess(w, map[string]interface{}{
		"session_id":   hh.sessionID,
		"generated_at": time.Now().Format(time.RFC3339),
		"stats":        stats,
	})
}

// HandleGames lists the games of this session.
// GET /api/games
func (hh *HistoryHandler) HandleGames(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	games, err := hh.games.Games(r.Context())
	if err != nil {
		hh.logger.Error("games query failed", "error", err)
		jsonError(w, "games unavailable", http.StatusInternalServerError)
		return
	}
	if games == nil {
		games = []storage.GameRecord{}
	}
	jsonSuccess(w, map[string]interface{}{
		"session_id": hh.sessionID,
		"games":      games,
	})
}

// HandleRecap narrates one generation.
// GET /api/recap?generation=N
func (hh *HistoryHandler) HandleRecap(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	gen, err := strconv.ParseUint(r.URL.Query().Get("generation"), 10, 64)
	if err != nil || gen == 0 {
		jsonError(w, "generation must be a positive integer", http.StatusBadRequest)
		return
	}

	recap, err := hh.recaps.GenerateRecap(r.Context(), hh.sessionID, gen)
	if err != nil {
		hh.logger.Error("recap failed", "generation", gen, "error", err)
		jsonError(w, "recap unavailable", http.StatusInternalServerError)
		return
	}
	if recap == nil {
		recap = []storage.RecapEvent{}
	}
	jsonSuccess(w, map[string]interface{}{
		"session_id": hh.sessionID,
		"generation": gen,
		"recap":      recap,
	})
}

// RegisterRoutes sets up the history API routes.
func (hh *HistoryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/history", hh.HandleHistory)
	mux.HandleFunc("/api/history/stats", hh.HandleStats)
	if hh.games != nil {
		mux.HandleFunc("/api/games", hh.HandleGames)
	}
	if hh.recaps != nil {
		mux.HandleFunc("/api/recap", hh.HandleRecap)
	}
}

type badQuery string

func (e badQuery) Error() string { return string(e) }

func parseFilter(r *http.Request) (events.EventFilter, error) {
	q := r.URL.Query()
	f := events.EventFilter{
		Type:  events.EventType(strings.ToUpper(q.Get("type"))),
		Limit: defaultHistoryLimit,
	}

	if s := q.Get("generation"); s != "" {
		gen, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return f, badQuery("generation must be a non-negative integer")
		}
		f.Generation = gen
	}
	if s := q.Get("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil || limit <= 0 {
			return f, badQuery("limit must be a positive integer")
		}
		f.Limit = min(limit, maxHistoryLimit)
	}
	return f, nil
}
