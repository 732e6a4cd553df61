package auth

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	SessionTTL    = 2 * time.Hour
	SessionCookie = "session_id"
)

// Identity is what a valid session resolves to.
type Identity struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

// Sessions is the session contract the handlers and middleware depend on.
type Sessions interface {
	Create(ctx context.Context, ident Identity) (string, error)
	Get(ctx context.Context, sessionID string) (*Identity, error)
	Delete(ctx context.Context, sessionID string) error
}

// SessionStore wraps Redis for session management. Session ids are
// opaque random tokens; everything verifiable lives server-side, so a
// tampered or expired cookie simply resolves to nothing.
type SessionStore struct {
	rdb *redis.Client
}

func NewSessionStore(rdb *redis.Client) *SessionStore {
	return &SessionStore{rdb: rdb}
}

// Create stores a new session mapping sessionID -> identity.
func (s *SessionStore) Create(ctx context.Context, ident Identity) (string, error) {
	sid := uuid.New().String()
	payload, err := json.Marshal(ident)
	if err != nil {
		return "", err
	}
	if err := s.rdb.Set(ctx, "session:"+sid, payload, SessionTTL).Err(); err != nil {
		return "", err
	}
	return sid, nil
}

// Get returns the identity for a session, or nil if not found / expired.
func (s *SessionStore) Get(ctx context.Context, sessionID string) (*Identity, error) {
	val, err := s.rdb.Get(ctx, "session:"+sessionID).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ident Identity
	if err := json.Unmarshal([]byte(val), &ident); err != nil {
		return nil, nil
	}
	return &ident, nil
}

// Delete removes a session.
func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	return s.rdb.Del(ctx, "session:"+sessionID).Err()
}
