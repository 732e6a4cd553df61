package library

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/avelez/gametracker/backend/internal/models"
	"github.com/avelez/gametracker/backend/internal/store"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// UserGameWriter defines the mutating interface for library entries.
type UserGameWriter interface {
	AddUserGame(ctx context.Context, ug *models.UserGame) (*models.UserGame, error)
	UpdateUserGame(ctx context.Context, id string, upd models.UserGameUpdate) (*models.UserGame, error)
	DeleteUserGame(ctx context.Context, id string) (bool, error)
}

// GameFinder resolves a game id or slug for the add-game existence check.
type GameFinder interface {
	GetGameByIDOrSlug(ctx context.Context, idOrSlug string) (*models.Game, error)
}

// Handler holds library HTTP handlers.
type Handler struct {
	service   *Service
	userGames UserGameWriter
	games     GameFinder
}

func NewHandler(service *Service, userGames UserGameWriter, games GameFinder) *Handler {
	return &Handler{service: service, userGames: userGames, games: games}
}

// GetLibrary handles GET /api/userGames?userId=.
func (h *Handler) GetLibrary(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, `{"error":"userId is required"}`, http.StatusBadRequest)
		return
	}

	entries, err := h.service.GetUserLibrary(r.Context(), userID)
	if err != nil {
		http.Error(w, `{"error":"database error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"games": entries})
}

// GetStats handles GET /api/userGames/stats?userId=.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, `{"error":"userId is required"}`, http.StatusBadRequest)
		return
	}

	stats, err := h.service.GetUserStats(r.Context(), userID)
	if err != nil {
		http.Error(w, `{"error":"database error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"stats": stats})
}

type addUserGameRequest struct {
	UserID        string      `json:"userId"`
	GameID        string      `json:"gameId"`
	Status        string      `json:"status"`
	HoursPlayed   interface{} `json:"hoursPlayed"`
	MoneySpent    interface{} `json:"moneySpent"`
	PersonalNotes string      `json:"personalNotes"`
}

// sanitizeAmount coerces a decoded JSON value to a non-negative number,
// falling back to 0 the way the clients expect.
func sanitizeAmount(v interface{}) float64 {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case string:
		parsed, err := parseFloat(n)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return f
}

// Add handles POST /api/userGames.
func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	var req addUserGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	if req.UserID == "" || req.GameID == "" {
		http.Error(w, `{"error":"userId and gameId are required"}`, http.StatusBadRequest)
		return
	}

	status := req.Status
	if !models.ValidStatus(status) {
		status = models.StatusBacklog
	}

	// The game must exist before it can join a library.
	game, err := h.games.GetGameByIDOrSlug(r.Context(), req.GameID)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, `{"error":"game not found"}`, http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, `{"error":"database error"}`, http.StatusInternalServerError)
		return
	}

	ug := &models.UserGame{
		UserID:        req.UserID,
		GameID:        game.ID,
		Status:        status,
		HoursPlayed:   sanitizeAmount(req.HoursPlayed),
		MoneySpent:    sanitizeAmount(req.MoneySpent),
		PersonalNotes: strings.TrimSpace(req.PersonalNotes),
	}
	created, err := h.userGames.AddUserGame(r.Context(), ug)
	if errors.Is(err, store.ErrConflict) {
		http.Error(w, `{"error":"this game is already in your library"}`, http.StatusConflict)
		return
	}
	if err != nil {
		http.Error(w, `{"error":"database error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"ok": true, "userGame": created})
}

type updateUserGameRequest struct {
	Status        *string     `json:"status"`
	HoursPlayed   interface{} `json:"hoursPlayed"`
	MoneySpent    interface{} `json:"moneySpent"`
	PersonalNotes *string     `json:"personalNotes"`
}

// Update handles PATCH /api/userGames/{id}. Only status, hoursPlayed,
// moneySpent, and personalNotes are ever mutable.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateUserGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}

	var upd models.UserGameUpdate
	if req.Status != nil {
		if !models.ValidStatus(*req.Status) {
			http.Error(w, `{"error":"invalid status value"}`, http.StatusBadRequest)
			return
		}
		upd.Status = req.Status
	}
	if req.HoursPlayed != nil {
		hours, ok := nonNegativeNumber(req.HoursPlayed)
		if !ok {
			http.Error(w, `{"error":"hoursPlayed must be a non-negative number"}`, http.StatusBadRequest)
			return
		}
		upd.HoursPlayed = &hours
	}
	if req.MoneySpent != nil {
		spent, ok := nonNegativeNumber(req.MoneySpent)
		if !ok {
			http.Error(w, `{"error":"moneySpent must be a non-negative number"}`, http.StatusBadRequest)
			return
		}
		upd.MoneySpent = &spent
	}
	if req.PersonalNotes != nil {
		notes := strings.TrimSpace(*req.PersonalNotes)
		upd.PersonalNotes = &notes
	}

	ug, err := h.userGames.UpdateUserGame(r.Context(), id, upd)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, `{"error":"user game not found"}`, http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, `{"error":"database error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "userGame": ug})
}

// Delete handles DELETE /api/userGames/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ok, err := h.userGames.DeleteUserGame(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, `{"error":"database error"}`, http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, `{"error":"user game not found"}`, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

func nonNegativeNumber(v interface{}) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case string:
		parsed, err := parseFloat(n)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0, false
	}
	return f, true
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
