package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/avelez/gametracker/backend/internal/models"
	"github.com/avelez/gametracker/backend/internal/store"
)

type fakeUserStore struct {
	byEmail  map[string]*models.User
	byID     map[string]*models.User
	emailErr error
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{byEmail: map[string]*models.User{}, byID: map[string]*models.User{}}
}

func (f *fakeUserStore) add(u *models.User) {
	f.byEmail[u.Email] = u
	f.byID[u.ID] = u
}

func (f *fakeUserStore) CreateUser(_ context.Context, email, displayName, passwordHash string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, ok := f.byEmail[email]; ok {
		return nil, store.ErrConflict
	}
	if displayName == "" {
		displayName = strings.SplitN(email, "@", 2)[0]
	}
	u := &models.User{ID: "user-" + email, Email: email, DisplayName: displayName, PasswordHash: passwordHash}
	f.add(u)
	return u, nil
}

func (f *fakeUserStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	if f.emailErr != nil {
		return nil, f.emailErr
	}
	u, ok := f.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, store.ErrNotFound
	}
	return u, nil
}

func (f *fakeUserStore) GetUserByID(_ context.Context, id string) (*models.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return u, nil
}

func (f *fakeUserStore) UpdateDisplayName(_ context.Context, email, displayName string) (*models.User, error) {
	u, ok := f.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, store.ErrNotFound
	}
	u.DisplayName = displayName
	return u, nil
}

func (f *fakeUserStore) UpdatePassword(_ context.Context, email, passwordHash string) error {
	u, ok := f.byEmail[strings.ToLower(email)]
	if !ok {
		return store.ErrNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

type fakeSessions struct {
	store map[string]Identity
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{store: map[string]Identity{}}
}

func (f *fakeSessions) Create(_ context.Context, ident Identity) (string, error) {
	sid := "sid-" + ident.UserID
	f.store[sid] = ident
	return sid, nil
}

func (f *fakeSessions) Get(_ context.Context, sid string) (*Identity, error) {
	ident, ok := f.store[sid]
	if !ok {
		return nil, nil
	}
	return &ident, nil
}

func (f *fakeSessions) Delete(_ context.Context, sid string) error {
	delete(f.store, sid)
	return nil
}

func hash(t *testing.T, pw string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func TestRegisterValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
		want int
	}{
		{"missing email", `{"password":"password123"}`, http.StatusBadRequest},
		{"missing password", `{"email":"a@example.com"}`, http.StatusBadRequest},
		{"short password", `{"email":"a@example.com","password":"123"}`, http.StatusBadRequest},
		{"ok", `{"email":"a@example.com","password":"password123"}`, http.StatusCreated},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			h := NewHandler(newFakeUserStore(), newFakeSessions())
			rec := httptest.NewRecorder()
			h.Register(rec, httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(c.body)))
			assert.Equal(t, c.want, rec.Code)
		})
	}
}

func TestRegisterDuplicateEmailConflict(t *testing.T) {
	users := newFakeUserStore()
	users.add(&models.User{ID: "u1", Email: "alice@example.com"})
	h := NewHandler(users, newFakeSessions())

	// Case-insensitive: the store lowercases before lookup.
	body := `{"email":"ALICE@example.com","password":"password123"}`
	rec := httptest.NewRecorder()
	h.Register(rec, httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body)))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRegisterNeverReturnsPasswordHash(t *testing.T) {
	h := NewHandler(newFakeUserStore(), newFakeSessions())
	body := `{"email":"a@example.com","password":"password123"}`
	rec := httptest.NewRecorder()
	h.Register(rec, httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body)))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotContains(t, rec.Body.String(), "passwordHash")
	assert.NotContains(t, rec.Body.String(), "$2a$")
}

func TestLoginUnknownEmailAndWrongPasswordLookAlike(t *testing.T) {
	users := newFakeUserStore()
	users.add(&models.User{ID: "u1", Email: "alice@example.com", PasswordHash: hash(t, "password123")})
	h := NewHandler(users, newFakeSessions())

	recUnknown := httptest.NewRecorder()
	h.Login(recUnknown, httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"email":"nobody@example.com","password":"password123"}`)))

	recWrong := httptest.NewRecorder()
	h.Login(recWrong, httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"email":"alice@example.com","password":"wrong"}`)))

	assert.Equal(t, http.StatusUnauthorized, recUnknown.Code)
	assert.Equal(t, http.StatusUnauthorized, recWrong.Code)
	// Indistinguishable outcomes: same body either way.
	assert.Equal(t, recUnknown.Body.String(), recWrong.Body.String())
}

func TestLoginStorageFailureIsNotUnauthorized(t *testing.T) {
	users := newFakeUserStore()
	users.emailErr = errors.New("connection reset")
	h := NewHandler(users, newFakeSessions())

	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"email":"alice@example.com","password":"password123"}`)))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "invalid credentials")
}

func TestLoginSetsSessionCookie(t *testing.T) {
	users := newFakeUserStore()
	users.add(&models.User{ID: "u1", Email: "alice@example.com", DisplayName: "Alice", PasswordHash: hash(t, "password123")})
	sessions := newFakeSessions()
	h := NewHandler(users, sessions)

	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"email":"alice@example.com","password":"password123"}`)))

	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, int(SessionTTL.Seconds()), cookies[0].MaxAge)

	ident, err := sessions.Get(context.Background(), cookies[0].Value)
	require.NoError(t, err)
	require.NotNil(t, ident)
	assert.Equal(t, "u1", ident.UserID)
	assert.Equal(t, "alice@example.com", ident.Email)
	assert.Contains(t, rec.Body.String(), `"displayName":"Alice"`)
}

func TestLogoutClearsSession(t *testing.T) {
	sessions := newFakeSessions()
	sid, err := sessions.Create(context.Background(), Identity{UserID: "u1", Email: "a@example.com"})
	require.NoError(t, err)
	h := NewHandler(newFakeUserStore(), sessions)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: sid})
	rec := httptest.NewRecorder()
	h.Logout(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	ident, err := sessions.Get(context.Background(), sid)
	require.NoError(t, err)
	assert.Nil(t, ident)
}

func TestChangePasswordRequiresCurrentPassword(t *testing.T) {
	users := newFakeUserStore()
	users.add(&models.User{ID: "u1", Email: "alice@example.com", PasswordHash: hash(t, "password123")})
	h := NewHandler(users, newFakeSessions())

	req := httptest.NewRequest(http.MethodPost, "/api/auth/change-password",
		strings.NewReader(`{"currentPassword":"wrong","newPassword":"newpassword"}`))
	req = req.WithContext(context.WithValue(req.Context(), "user_email", "alice@example.com"))
	rec := httptest.NewRecorder()
	h.ChangePassword(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/auth/change-password",
		strings.NewReader(`{"currentPassword":"password123","newPassword":"newpassword"}`))
	req = req.WithContext(context.WithValue(req.Context(), "user_email", "alice@example.com"))
	rec = httptest.NewRecorder()
	h.ChangePassword(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// The stored hash now matches the new password.
	u, _ := users.GetUserByEmail(context.Background(), "alice@example.com")
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("newpassword")))
}
