package admin

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"rpg-lite/apps/server/internal/auth"
	"rpg-lite/apps/server/internal/engine"
	"rpg-lite/progression"
)

// HTTPHandler exposes moderation over JSON. Every route needs an admin
// session from auth.
type HTTPHandler struct {
	engine   *engine.Engine
	sessions auth.Service
}

type targetRequest struct {
	Player string `json:"player"`
	Bot    string `json:"bot"`
	Scoped bool   `json:"scoped"`
}

func (t targetRequest) target() engine.Target {
	return engine.Target{Bot: t.Bot, Player: t.Player, Scoped: t.Scoped}
}

type favorabilityRequest struct {
	targetRequest
	Value int    `json:"value"`
	Mode  string `json:"mode"`
}

type playerResponse struct {
	Key  progression.Key  `json:"key"`
	View progression.View `json:"view"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func NewHTTPHandler(eng *engine.Engine, sessions auth.Service) *HTTPHandler {
	return &HTTPHandler{engine: eng, sessions: sessions}
}

func (h *HTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/admin/players", auth.RequireSession(h.sessions, h.handlePlayer))
	mux.HandleFunc("/api/admin/favorability", auth.RequireSession(h.sessions, h.handleFavorability))
	mux.HandleFunc("/api/admin/reset-card", auth.RequireSession(h.sessions, h.handleResetCard))
	mux.HandleFunc("/api/admin/revive", auth.RequireSession(h.sessions, h.handleRevive))
	mux.HandleFunc("/api/admin/reset-player", auth.RequireSession(h.sessions, h.handleResetPlayer))
	mux.HandleFunc("/api/admin/ledger", auth.RequireSession(h.sessions, h.handleLedger))
	mux.HandleFunc("/api/admin/events", auth.RequireSession(h.sessions, h.handleEvents))
}

func (h *HTTPHandler) operator(r *http.Request) string {
	name, _ := h.sessions.ResolveSession(auth.BearerToken(r.Header.Get("Authorization")))
	return name
}

func queryTarget(r *http.Request) engine.Target {
	q := r.URL.Query()
	scoped, _ := strconv.ParseBool(q.Get("scoped"))
	return engine.Target{
		Player: strings.TrimSpace(q.Get("player")),
		Bot:    strings.TrimSpace(q.Get("bot")),
		Scoped: scoped,
	}
}

func (h *HTTPHandler) handlePlayer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	key, view, err := h.engine.Player(r.Context(), queryTarget(r))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, playerResponse{Key: key, View: view})
}

func (h *HTTPHandler) handleFavorability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req favorabilityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	mode, err := progression.ParseFavorMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.engine.SetFavorability(r.Context(), req.target(), h.operator(r), req.Value, mode)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *HTTPHandler) handleResetCard(w http.ResponseWriter, r *http.Request) {
	h.handleTargetOp(w, r, h.engine.ResetCard)
}

func (h *HTTPHandler) handleRevive(w http.ResponseWriter, r *http.Request) {
	h.handleTargetOp(w, r, h.engine.Revive)
}

func (h *HTTPHandler) handleResetPlayer(w http.ResponseWriter, r *http.Request) {
	h.handleTargetOp(w, r, h.engine.ResetPlayer)
}

type targetOp func(ctx context.Context, t engine.Target, operator string) (*engine.AdminResult, error)

func (h *HTTPHandler) handleTargetOp(w http.ResponseWriter, r *http.Request, op targetOp) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req targetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := op(r.Context(), req.target(), h.operator(r))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *HTTPHandler) handleLedger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.engine.History(r.Context(), queryTarget(r), limit)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (h *HTTPHandler) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	events, err := h.engine.CustomEvents(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrInvalidScope):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, engine.ErrHistoryUnavailable):
		writeError(w, http.StatusNotImplemented, err.Error())
	default:
		log.Printf("[Admin] request failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
