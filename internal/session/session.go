// Package session persists and scopes the authenticated identity.
package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/postsiva/postsiva-cli/internal/config"
	"github.com/postsiva/postsiva-cli/internal/logger"
	"go.uber.org/zap"
)

// User is the backend's account record
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	FullName  string `json:"full_name"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// Session is the durable authenticated identity. A nil *Session means
// nobody is signed in.
type Session struct {
	Token string
	User  User
}

// Store saves and restores the session under two fixed keys. Storage
// failures never reach the caller: a session that cannot be read is simply
// absent.
type Store struct {
	storage  Storage
	tokenKey string
	userKey  string
	log      *zap.Logger
}

// NewStore creates a Store. A nil storage makes every operation a no-op.
func NewStore(storage Storage, cfg *config.SessionConfig) *Store {
	tokenKey, userKey := "auth_token", "auth_user"
	if cfg != nil {
		if cfg.TokenKey != "" {
			tokenKey = cfg.TokenKey
		}
		if cfg.UserKey != "" {
			userKey = cfg.UserKey
		}
	}
	return &Store{
		storage:  storage,
		tokenKey: tokenKey,
		userKey:  userKey,
		log:      logger.Named("session"),
	}
}

// Save writes the token and the serialized user
func (s *Store) Save(ctx context.Context, token string, user User) {
	if s.storage == nil {
		return
	}
	data, err := json.Marshal(user)
	if err != nil {
		s.log.Warn("encode user", zap.Error(err))
		return
	}
	if err := s.storage.Set(ctx, s.tokenKey, token); err != nil {
		s.log.Warn("save session token", zap.Error(err))
		return
	}
	if err := s.storage.Set(ctx, s.userKey, string(data)); err != nil {
		s.log.Warn("save session user", zap.Error(err))
	}
}

// Clear removes both keys
func (s *Store) Clear(ctx context.Context) {
	if s.storage == nil {
		return
	}
	for _, key := range []string{s.tokenKey, s.userKey} {
		if err := s.storage.Remove(ctx, key); err != nil {
			s.log.Warn("clear session key", zap.String("key", key), zap.Error(err))
		}
	}
}

// Restore returns the stored session, or nil. A user value that does not
// decode is treated as corruption and both keys are cleared.
func (s *Store) Restore(ctx context.Context) *Session {
	if s.storage == nil {
		return nil
	}

	token, ok, err := s.storage.Get(ctx, s.tokenKey)
	if err != nil {
		s.log.Warn("read session token", zap.Error(err))
		return nil
	}
	if !ok || token == "" {
		return nil
	}

	raw, ok, err := s.storage.Get(ctx, s.userKey)
	if err != nil {
		s.log.Warn("read session user", zap.Error(err))
		return nil
	}
	if !ok || raw == "" {
		return nil
	}

	user, err := decodeUser(raw)
	if err != nil {
		s.log.Warn("stored session is corrupt, clearing", zap.Error(err))
		s.Clear(ctx)
		return nil
	}

	return &Session{Token: token, User: *user}
}

func decodeUser(raw string) (*User, error) {
	var user *User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("stored user is null")
	}
	return user, nil
}
