package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/avelez/gametracker/backend/internal/models"
	"github.com/avelez/gametracker/backend/internal/store"
)

type fakeGameStore struct {
	created   *models.Game
	createErr error
	byToken   *models.Game
	updated   *models.Game
	updateErr error
	deleted   bool
	searched  []models.Game
	listed    []models.Game
	lastQuery string
	lastSize  int64
}

func (f *fakeGameStore) CreateGame(_ context.Context, g *models.Game) (*models.Game, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	g.ID = primitive.NewObjectID()
	f.created = g
	return g, nil
}

func (f *fakeGameStore) GetGameByIDOrSlug(_ context.Context, _ string) (*models.Game, error) {
	if f.byToken == nil {
		return nil, store.ErrNotFound
	}
	return f.byToken, nil
}

func (f *fakeGameStore) UpdateGame(_ context.Context, _ string, _ models.GameUpdate) (*models.Game, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return f.updated, nil
}

func (f *fakeGameStore) SetGameCover(_ context.Context, _, key, ct string) (*models.Game, error) {
	g := f.byToken
	g.CoverObjectKey = key
	g.CoverContentType = ct
	return g, nil
}

func (f *fakeGameStore) DeleteGame(_ context.Context, _ string) (bool, error) {
	return f.deleted, nil
}

func (f *fakeGameStore) SearchGames(_ context.Context, query string, _ int64) ([]models.Game, error) {
	f.lastQuery = query
	return f.searched, nil
}

func (f *fakeGameStore) AutocompleteTitles(_ context.Context, query string, _ int64) ([]models.Game, error) {
	if query == "" {
		return []models.Game{}, nil
	}
	return f.searched, nil
}

func (f *fakeGameStore) ListGames(_ context.Context, _, pageSize int64) ([]models.Game, error) {
	f.lastSize = pageSize
	return f.listed, nil
}

type fakeReviewReader struct {
	reviews []models.Review
}

func (f *fakeReviewReader) ReviewsByGameIDs(_ context.Context, _ []primitive.ObjectID) ([]models.Review, error) {
	return f.reviews, nil
}

type fakeCovers struct {
	objects map[string][]byte
}

func (f *fakeCovers) Upload(_ context.Context, key string, data []byte, _ string) error {
	if f.objects == nil {
		f.objects = map[string][]byte{}
	}
	f.objects[key] = data
	return nil
}

func (f *fakeCovers) Download(_ context.Context, key string) ([]byte, string, error) {
	return f.objects[key], "image/png", nil
}

func (f *fakeCovers) Remove(_ context.Context, key string) error {
	delete(f.objects, key)
	return nil
}

func newTestRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Get("/api/games", h.List)
	r.Get("/api/games/autocomplete", h.Autocomplete)
	r.Get("/api/games/{id}", h.Get)
	r.Get("/api/games/{id}/cover", h.GetCover)
	r.Post("/api/games", h.Create)
	r.Patch("/api/games/{id}", h.Update)
	r.Delete("/api/games/{id}", h.Delete)
	r.Post("/api/games/{id}/cover", h.UploadCover)
	return r
}

func TestCreateGameRequiresTitleAndPlatform(t *testing.T) {
	for _, body := range []string{
		`{}`,
		`{"title":"Foo"}`,
		`{"platform":"PC"}`,
		`{"title":"   ","platform":"PC"}`,
	} {
		h := NewHandler(&fakeGameStore{}, &fakeReviewReader{}, &fakeCovers{})
		rec := httptest.NewRecorder()
		newTestRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/games", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %s", body)
	}
}

func TestCreateGameDerivesSlug(t *testing.T) {
	gs := &fakeGameStore{}
	h := NewHandler(gs, &fakeReviewReader{}, &fakeCovers{})

	body := `{"title":"The Witcher 3: Wild Hunt","platform":"PC","year":"2015","price":39.99}`
	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/games", strings.NewReader(body)))

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, gs.created)
	assert.Equal(t, "the-witcher-3-wild-hunt", gs.created.Slug)
	require.NotNil(t, gs.created.Year)
	assert.Equal(t, 2015, *gs.created.Year)
	require.NotNil(t, gs.created.Price)
	assert.InDelta(t, 39.99, *gs.created.Price, 1e-9)
}

func TestCreateGameRejectsNonNumericYear(t *testing.T) {
	h := NewHandler(&fakeGameStore{}, &fakeReviewReader{}, &fakeCovers{})
	body := `{"title":"Foo","platform":"PC","year":"abc"}`
	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/games", strings.NewReader(body)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateGameSlugConflict(t *testing.T) {
	h := NewHandler(&fakeGameStore{createErr: store.ErrConflict}, &fakeReviewReader{}, &fakeCovers{})
	body := `{"title":"Foo","platform":"PC"}`
	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/games", strings.NewReader(body)))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestListFallsBackToCatalogOnEmptyQuery(t *testing.T) {
	gs := &fakeGameStore{listed: []models.Game{{Title: "A"}, {Title: "B"}}}
	h := NewHandler(gs, &fakeReviewReader{}, &fakeCovers{})

	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/games?q=", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Games []models.Game `json:"games"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Games, 2)
	assert.Empty(t, gs.lastQuery, "empty q must not hit the search path")
}

func TestListZeroPageSizeFallsBackToDefault(t *testing.T) {
	gs := &fakeGameStore{}
	h := NewHandler(gs, &fakeReviewReader{}, &fakeCovers{})

	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/games?pageSize=0", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	// A zero limit would mean "no limit" at the driver.
	assert.Equal(t, int64(defaultPageSize), gs.lastSize)
}

func TestListCapsOversizedPageSize(t *testing.T) {
	gs := &fakeGameStore{}
	h := NewHandler(gs, &fakeReviewReader{}, &fakeCovers{})

	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/games?pageSize=9999", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(listCap), gs.lastSize)
}

func TestListSearchesOnQuery(t *testing.T) {
	gs := &fakeGameStore{searched: []models.Game{{Title: "Zelda"}}}
	h := NewHandler(gs, &fakeReviewReader{}, &fakeCovers{})

	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/games?q=zel", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "zel", gs.lastQuery)
}

func TestGetGameWithCommunityStats(t *testing.T) {
	game := &models.Game{ID: primitive.NewObjectID(), Title: "Foo", Slug: "foo"}
	rr := &fakeReviewReader{reviews: []models.Review{
		{GameID: game.ID, UserID: "u1", Rating: 3},
		{GameID: game.ID, UserID: "u2", Rating: 5},
	}}
	h := NewHandler(&fakeGameStore{byToken: game}, rr, &fakeCovers{})

	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/games/foo", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Community struct {
			Count     int      `json:"count"`
			AvgRating *float64 `json:"avgRating"`
		} `json:"community"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Community.Count)
	require.NotNil(t, resp.Community.AvgRating)
	assert.InDelta(t, 4.0, *resp.Community.AvgRating, 1e-9)
}

func TestGetGameNoReviewsHasNullAverage(t *testing.T) {
	game := &models.Game{ID: primitive.NewObjectID(), Slug: "foo"}
	h := NewHandler(&fakeGameStore{byToken: game}, &fakeReviewReader{}, &fakeCovers{})

	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/games/foo", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"avgRating":null`)
}

func TestGetGameNotFound(t *testing.T) {
	h := NewHandler(&fakeGameStore{}, &fakeReviewReader{}, &fakeCovers{})
	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/games/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteGameNotFound(t *testing.T) {
	h := NewHandler(&fakeGameStore{deleted: false}, &fakeReviewReader{}, &fakeCovers{})
	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/games/abc", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteGameFailureKeepsCover(t *testing.T) {
	game := &models.Game{ID: primitive.NewObjectID(), Slug: "foo", CoverObjectKey: "covers/x"}
	covers := &fakeCovers{objects: map[string][]byte{"covers/x": []byte("png")}}
	h := NewHandler(&fakeGameStore{byToken: game, deleted: false}, &fakeReviewReader{}, covers)

	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/games/foo", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, covers.objects, "covers/x", "cover must survive a failed row deletion")
}

func TestDeleteGameRemovesCoverOnSuccess(t *testing.T) {
	game := &models.Game{ID: primitive.NewObjectID(), Slug: "foo", CoverObjectKey: "covers/x"}
	covers := &fakeCovers{objects: map[string][]byte{"covers/x": []byte("png")}}
	h := NewHandler(&fakeGameStore{byToken: game, deleted: true}, &fakeReviewReader{}, covers)

	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/games/"+game.ID.Hex(), nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, covers.objects, "covers/x")
}

func TestUploadAndFetchCover(t *testing.T) {
	game := &models.Game{ID: primitive.NewObjectID(), Slug: "foo"}
	covers := &fakeCovers{}
	gs := &fakeGameStore{byToken: game}
	h := NewHandler(gs, &fakeReviewReader{}, covers)
	router := newTestRouter(h)

	req := httptest.NewRequest(http.MethodPost, "/api/games/foo/cover", strings.NewReader("\x89PNG fake bytes"))
	req.Header.Set("Content-Type", "image/png")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Len(t, covers.objects, 1)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/games/foo/cover", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
}

func TestUploadCoverRejectsEmptyBody(t *testing.T) {
	game := &models.Game{ID: primitive.NewObjectID(), Slug: "foo"}
	h := NewHandler(&fakeGameStore{byToken: game}, &fakeReviewReader{}, &fakeCovers{})

	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/games/foo/cover", strings.NewReader("")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
