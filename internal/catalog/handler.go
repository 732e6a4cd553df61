package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/avelez/gametracker/backend/internal/models"
	"github.com/avelez/gametracker/backend/internal/store"
)

const (
	defaultPageSize   = 20
	listCap           = 50
	autocompleteLimit = 10
	maxCoverBytes     = 5 << 20
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// GameStore defines the interface for catalog persistence.
type GameStore interface {
	CreateGame(ctx context.Context, g *models.Game) (*models.Game, error)
	GetGameByIDOrSlug(ctx context.Context, idOrSlug string) (*models.Game, error)
	UpdateGame(ctx context.Context, id string, upd models.GameUpdate) (*models.Game, error)
	SetGameCover(ctx context.Context, id, objectKey, contentType string) (*models.Game, error)
	DeleteGame(ctx context.Context, id string) (bool, error)
	SearchGames(ctx context.Context, query string, limit int64) ([]models.Game, error)
	AutocompleteTitles(ctx context.Context, query string, limit int64) ([]models.Game, error)
	ListGames(ctx context.Context, page, pageSize int64) ([]models.Game, error)
}

// ReviewReader is the slice of the review store the catalog needs for
// the community block on game detail pages.
type ReviewReader interface {
	ReviewsByGameIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Review, error)
}

// CoverStore defines the interface for cover image storage.
type CoverStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	Download(ctx context.Context, key string) ([]byte, string, error)
	Remove(ctx context.Context, key string) error
}

// Handler holds catalog HTTP handlers.
type Handler struct {
	games   GameStore
	reviews ReviewReader
	covers  CoverStore
}

func NewHandler(games GameStore, reviews ReviewReader, covers CoverStore) *Handler {
	return &Handler{games: games, reviews: reviews, covers: covers}
}

type gameRequest struct {
	Title       *string     `json:"title"`
	Platform    *string     `json:"platform"`
	Genre       *string     `json:"genre"`
	Year        interface{} `json:"year"`
	Price       interface{} `json:"price"`
	CoverURL    *string     `json:"coverUrl"`
	Description *string     `json:"description"`
}

// toNumber coerces a decoded JSON value to a float64, accepting numbers
// and numeric strings the way the browser clients send them.
func toNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

// List handles GET /api/games. A non-empty q does a substring title
// search; an empty q returns the default catalog listing.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q != "" {
		games, err := h.games.SearchGames(r.Context(), q, listCap)
		if err != nil {
			http.Error(w, `{"error":"database error"}`, http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"games": games})
		return
	}

	page := parseInt(r.URL.Query().Get("page"), 0)
	pageSize := parseInt(r.URL.Query().Get("pageSize"), defaultPageSize)
	if pageSize > listCap {
		pageSize = listCap
	}
	games, err := h.games.ListGames(r.Context(), page, pageSize)
	if err != nil {
		http.Error(w, `{"error":"database error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"games": games})
}

// Autocomplete handles GET /api/games/autocomplete with a projected
// result for suggestion UIs. Empty queries return an empty list.
func (h *Handler) Autocomplete(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	limit := parseInt(r.URL.Query().Get("limit"), autocompleteLimit)
	if limit > autocompleteLimit {
		limit = autocompleteLimit
	}

	games, err := h.games.AutocompleteTitles(r.Context(), q, limit)
	if err != nil {
		http.Error(w, `{"error":"database error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"games": games})
}

// Get handles GET /api/games/{idOrSlug}: the game plus its community
// review count and average.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "id")
	game, err := h.games.GetGameByIDOrSlug(r.Context(), token)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, `{"error":"game not found"}`, http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, `{"error":"database error"}`, http.StatusInternalServerError)
		return
	}

	reviews, err := h.reviews.ReviewsByGameIDs(r.Context(), []primitive.ObjectID{game.ID})
	if err != nil {
		http.Error(w, `{"error":"database error"}`, http.StatusInternalServerError)
		return
	}
	community := map[string]interface{}{"count": len(reviews), "avgRating": nil}
	if len(reviews) > 0 {
		sum := 0
		for _, rv := range reviews {
			sum += rv.Rating
		}
		community["avgRating"] = float64(sum) / float64(len(reviews))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"game": game, "community": community})
}

// Create handles POST /api/games.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req gameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	if req.Title == nil || strings.TrimSpace(*req.Title) == "" ||
		req.Platform == nil || strings.TrimSpace(*req.Platform) == "" {
		http.Error(w, `{"error":"title and platform are required"}`, http.StatusBadRequest)
		return
	}

	game := &models.Game{
		Title:    strings.TrimSpace(*req.Title),
		Slug:     Slugify(*req.Title),
		Platform: strings.TrimSpace(*req.Platform),
	}
	if req.Genre != nil {
		game.Genre = strings.TrimSpace(*req.Genre)
	}
	if req.CoverURL != nil {
		game.CoverURL = strings.TrimSpace(*req.CoverURL)
	}
	if req.Description != nil {
		game.Description = strings.TrimSpace(*req.Description)
	}
	if req.Year != nil {
		f, ok := toNumber(req.Year)
		if !ok {
			http.Error(w, `{"error":"year must be a number"}`, http.StatusBadRequest)
			return
		}
		y := int(f)
		game.Year = &y
	}
	if req.Price != nil {
		f, ok := toNumber(req.Price)
		if !ok {
			http.Error(w, `{"error":"price must be a number"}`, http.StatusBadRequest)
			return
		}
		game.Price = &f
	}

	created, err := h.games.CreateGame(r.Context(), game)
	if errors.Is(err, store.ErrConflict) {
		http.Error(w, `{"error":"a game with this title already exists"}`, http.StatusConflict)
		return
	}
	if err != nil {
		log.Printf("create game error: %v", err)
		http.Error(w, `{"error":"database error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"ok": true, "game": created})
}

// Update handles PATCH /api/games/{id}. A title change re-derives the slug.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req gameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}

	var upd models.GameUpdate
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			http.Error(w, `{"error":"title must not be empty"}`, http.StatusBadRequest)
			return
		}
		slug := Slugify(title)
		upd.Title = &title
		upd.Slug = &slug
	}
	if req.Platform != nil {
		platform := strings.TrimSpace(*req.Platform)
		if platform == "" {
			http.Error(w, `{"error":"platform must not be empty"}`, http.StatusBadRequest)
			return
		}
		upd.Platform = &platform
	}
	if req.Genre != nil {
		genre := strings.TrimSpace(*req.Genre)
		upd.Genre = &genre
	}
	if req.CoverURL != nil {
		coverURL := strings.TrimSpace(*req.CoverURL)
		upd.CoverURL = &coverURL
	}
	if req.Description != nil {
		desc := strings.TrimSpace(*req.Description)
		upd.Description = &desc
	}
	if req.Year != nil {
		f, ok := toNumber(req.Year)
		if !ok {
			http.Error(w, `{"error":"year must be a number"}`, http.StatusBadRequest)
			return
		}
		y := int(f)
		upd.Year = &y
	}
	if req.Price != nil {
		f, ok := toNumber(req.Price)
		if !ok {
			http.Error(w, `{"error":"price must be a number"}`, http.StatusBadRequest)
			return
		}
		upd.Price = &f
	}

	game, err := h.games.UpdateGame(r.Context(), id, upd)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, `{"error":"game not found"}`, http.StatusNotFound)
		return
	}
	if errors.Is(err, store.ErrConflict) {
		http.Error(w, `{"error":"a game with this title already exists"}`, http.StatusConflict)
		return
	}
	if err != nil {
		http.Error(w, `{"error":"database error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "game": game})
}

// Delete handles DELETE /api/games/{id}. The cover object, if any, is
// removed best-effort, and only once the row deletion is confirmed.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	// Resolve the cover key up front; the object itself is not touched
	// until the row is gone.
	game, _ := h.games.GetGameByIDOrSlug(r.Context(), id)

	ok, err := h.games.DeleteGame(r.Context(), id)
	if err != nil {
		http.Error(w, `{"error":"database error"}`, http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, `{"error":"game not found"}`, http.StatusNotFound)
		return
	}

	if game != nil && game.CoverObjectKey != "" {
		if err := h.covers.Remove(r.Context(), game.CoverObjectKey); err != nil {
			log.Printf("cover remove error (non-fatal): %v", err)
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

// UploadCover handles POST /api/games/{id}/cover: the request body is
// the raw image, content type taken from the request header.
func (h *Handler) UploadCover(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	game, err := h.games.GetGameByIDOrSlug(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, `{"error":"game not found"}`, http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, `{"error":"database error"}`, http.StatusInternalServerError)
		return
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxCoverBytes+1))
	if err != nil || len(data) == 0 {
		http.Error(w, `{"error":"image body required"}`, http.StatusBadRequest)
		return
	}
	if len(data) > maxCoverBytes {
		http.Error(w, `{"error":"image too large"}`, http.StatusBadRequest)
		return
	}
	contentType := r.Header.Get("Content-Type")
	if contentType == "" || !strings.HasPrefix(contentType, "image/") {
		contentType = http.DetectContentType(data)
	}

	key := fmt.Sprintf("covers/%s", game.ID.Hex())
	if err := h.covers.Upload(r.Context(), key, data, contentType); err != nil {
		log.Printf("cover upload error: %v", err)
		http.Error(w, `{"error":"cover upload failed"}`, http.StatusInternalServerError)
		return
	}

	updated, err := h.games.SetGameCover(r.Context(), game.ID.Hex(), key, contentType)
	if err != nil {
		http.Error(w, `{"error":"database error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"ok": true, "game": updated})
}

// GetCover streams the stored cover image.
func (h *Handler) GetCover(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	game, err := h.games.GetGameByIDOrSlug(r.Context(), id)
	if err != nil || game.CoverObjectKey == "" {
		http.Error(w, `{"error":"cover not available"}`, http.StatusNotFound)
		return
	}

	data, ct, err := h.covers.Download(r.Context(), game.CoverObjectKey)
	if err != nil {
		http.Error(w, `{"error":"download failed"}`, http.StatusInternalServerError)
		return
	}
	if ct == "" {
		ct = game.CoverContentType
	}
	w.Header().Set("Content-Type", ct)
	w.Write(data)
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
