package reviews

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/avelez/gametracker/backend/internal/models"
	"github.com/avelez/gametracker/backend/internal/store"
)

const defaultPageSize = 20

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ReviewStore defines the interface for review persistence.
type ReviewStore interface {
	CreateReview(ctx context.Context, r *models.Review) (*models.Review, error)
	UpdateReview(ctx context.Context, id string, rating *int, text *string) (*models.Review, error)
	DeleteReview(ctx context.Context, id string) (bool, error)
	ListReviews(ctx context.Context, f store.ReviewFilter, page, pageSize int64) ([]models.Review, error)
}

// GameFinder resolves a game id or slug for the create-review existence check.
type GameFinder interface {
	GetGameByIDOrSlug(ctx context.Context, idOrSlug string) (*models.Game, error)
}

// Handler holds review HTTP handlers.
type Handler struct {
	reviews ReviewStore
	games   GameFinder
}

func NewHandler(reviews ReviewStore, games GameFinder) *Handler {
	return &Handler{reviews: reviews, games: games}
}

// parseRating coerces a decoded JSON value to an integer rating in 1..5.
// Fractional values and non-numeric strings are rejected.
func parseRating(v interface{}) (int, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	r := int(f)
	if float64(r) != f || r < 1 || r > 5 {
		return 0, false
	}
	return r, true
}

// List handles GET /api/reviews?userId=&gameId=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	var filter store.ReviewFilter
	if gameID := r.URL.Query().Get("gameId"); gameID != "" {
		oid, err := primitive.ObjectIDFromHex(gameID)
		if err != nil {
			http.Error(w, `{"error":"invalid gameId"}`, http.StatusBadRequest)
			return
		}
		filter.GameID = &oid
	}
	filter.UserID = r.URL.Query().Get("userId")

	page := parseInt(r.URL.Query().Get("page"), 0)
	pageSize := parseInt(r.URL.Query().Get("pageSize"), defaultPageSize)

	items, err := h.reviews.ListReviews(r.Context(), filter, page, pageSize)
	if err != nil {
		http.Error(w, `{"error":"database error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

type createReviewRequest struct {
	GameID string      `json:"gameId"`
	UserID string      `json:"userId"`
	Rating interface{} `json:"rating"`
	Text   string      `json:"text"`
}

// Create handles POST /api/reviews. Duplicate reviews for the same
// (userId, gameId) pair are rejected by the storage constraint.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	if req.GameID == "" || req.UserID == "" {
		http.Error(w, `{"error":"gameId and userId are required"}`, http.StatusBadRequest)
		return
	}
	rating, ok := parseRating(req.Rating)
	if !ok {
		http.Error(w, `{"error":"rating must be an integer between 1 and 5"}`, http.StatusBadRequest)
		return
	}

	game, err := h.games.GetGameByIDOrSlug(r.Context(), req.GameID)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, `{"error":"game not found"}`, http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, `{"error":"database error"}`, http.StatusInternalServerError)
		return
	}

	review := &models.Review{
		GameID:    game.ID,
		UserID:    req.UserID,
		GameTitle: game.Title,
		Rating:    rating,
		Text:      strings.TrimSpace(req.Text),
	}
	created, err := h.reviews.CreateReview(r.Context(), review)
	if errors.Is(err, store.ErrConflict) {
		http.Error(w, `{"error":"you already reviewed this game"}`, http.StatusConflict)
		return
	}
	if err != nil {
		http.Error(w, `{"error":"database error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"ok": true, "review": created})
}

type updateReviewRequest struct {
	Rating interface{} `json:"rating"`
	Text   *string     `json:"text"`
}

// Update handles PATCH /api/reviews/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}

	var rating *int
	if req.Rating != nil {
		parsed, ok := parseRating(req.Rating)
		if !ok {
			http.Error(w, `{"error":"rating must be an integer between 1 and 5"}`, http.StatusBadRequest)
			return
		}
		rating = &parsed
	}
	var text *string
	if req.Text != nil {
		trimmed := strings.TrimSpace(*req.Text)
		text = &trimmed
	}

	review, err := h.reviews.UpdateReview(r.Context(), id, rating, text)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, `{"error":"review not found"}`, http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, `{"error":"database error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "review": review})
}

// Delete handles DELETE /api/reviews/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ok, err := h.reviews.DeleteReview(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, `{"error":"database error"}`, http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, `{"error":"review not found"}`, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

// parseInt falls back for anything non-positive: a zero limit would be
// passed through to the driver as "no limit".
func parseInt(s string, fallback int64) int64 {
	if s == "" {
		return fallback
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
