// Package session keeps one Redis entry per live access token so logout can
// revoke a JWT before it expires.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/fanjava-backend/pkg/config"
	redisclient "github.com/angelmondragon/fanjava-backend/pkg/redis"
)

var errBlankAccessID = errors.New("session: access id is required")

type store interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	AccessSessionKey(accessID string) string
}

// AccessSessionChecker is the read side used by the auth middleware.
type AccessSessionChecker interface {
	HasSession(ctx context.Context, accessID string, userID uuid.UUID) (bool, error)
}

type Manager struct {
	store store
	ttl   time.Duration
}

func NewManager(client *redisclient.Client, cfg config.JWTConfig) (*Manager, error) {
	if client == nil {
		return nil, errors.New("session: redis client is required")
	}
	return newManager(client, cfg.AccessTTL())
}

func newManager(s store, ttl time.Duration) (*Manager, error) {
	if ttl <= 0 {
		return nil, errors.New("session: access token ttl must be positive")
	}
	return &Manager{store: s, ttl: ttl}, nil
}

// Open lives exactly as long as the token it backs.
func (m *Manager) Open(ctx context.Context, accessID string, userID uuid.UUID) error {
	if accessID == "" {
		return errBlankAccessID
	}
	return m.store.Set(ctx, m.store.AccessSessionKey(accessID), userID.String(), m.ttl)
}

func (m *Manager) Revoke(ctx context.Context, accessID string) error {
	if accessID == "" {
		return errBlankAccessID
	}
	return m.store.Del(ctx, m.store.AccessSessionKey(accessID))
}

// HasSession is false when the session is gone or belongs to another user.
func (m *Manager) HasSession(ctx context.Context, accessID string, userID uuid.UUID) (bool, error) {
	if accessID == "" {
		return false, errBlankAccessID
	}
	owner, err := m.store.Get(ctx, m.store.AccessSessionKey(accessID))
	if errors.Is(err, redislib.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return owner == userID.String(), nil
}

// NewAccessID is used as both the JWT jti and the session key suffix.
func NewAccessID() string {
	return uuid.NewString()
}
