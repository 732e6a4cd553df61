package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelez/gametracker/backend/internal/auth"
)

type fakeSessions struct {
	store map[string]auth.Identity
}

func (f *fakeSessions) Create(_ context.Context, ident auth.Identity) (string, error) {
	return "", nil
}

func (f *fakeSessions) Get(_ context.Context, sid string) (*auth.Identity, error) {
	ident, ok := f.store[sid]
	if !ok {
		return nil, nil
	}
	return &ident, nil
}

func (f *fakeSessions) Delete(_ context.Context, _ string) error { return nil }

func TestRequireAuthInjectsIdentity(t *testing.T) {
	sessions := &fakeSessions{store: map[string]auth.Identity{
		"good-sid": {UserID: "u1", Email: "alice@example.com"},
	}}

	var gotID, gotEmail string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID, _ = r.Context().Value("user_id").(string)
		gotEmail, _ = r.Context().Value("user_email").(string)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: auth.SessionCookie, Value: "good-sid"})
	rec := httptest.NewRecorder()
	RequireAuth(sessions)(next).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", gotID)
	assert.Equal(t, "alice@example.com", gotEmail)
}

func TestRequireAuthFailsClosedWithOneResponse(t *testing.T) {
	sessions := &fakeSessions{store: map[string]auth.Identity{}}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler must not run")
	})
	handler := RequireAuth(sessions)(next)

	// No cookie at all.
	recMissing := httptest.NewRecorder()
	handler.ServeHTTP(recMissing, httptest.NewRequest(http.MethodGet, "/", nil))

	// Cookie present but the session is unknown or expired.
	reqStale := httptest.NewRequest(http.MethodGet, "/", nil)
	reqStale.AddCookie(&http.Cookie{Name: auth.SessionCookie, Value: "stale-sid"})
	recStale := httptest.NewRecorder()
	handler.ServeHTTP(recStale, reqStale)

	assert.Equal(t, http.StatusUnauthorized, recMissing.Code)
	assert.Equal(t, http.StatusUnauthorized, recStale.Code)
	assert.Equal(t, recMissing.Body.String(), recStale.Body.String())
}
