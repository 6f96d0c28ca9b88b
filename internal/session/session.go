// Package session issues signed session tokens carried in the session cookie
// and tracks live sessions in Redis so logout can revoke them.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/MikeMC777/storefront/internal/apperr"
)

// Identity is the caller resolved from a session token.
type Identity struct {
	UserID    string
	IsAdmin   bool
	SessionID string
	ExpiresAt time.Time
}

type Claims struct {
	IsAdmin bool `json:"adm"`
	jwt.RegisteredClaims
}

// Store records live session ids.
type Store interface {
	Save(ctx context.Context, sessionID, userID string, ttl time.Duration) error
	Exists(ctx context.Context, sessionID string) (bool, error)
	Delete(ctx context.Context, sessionID string) error
}

type Manager struct {
	secret []byte
	ttl    time.Duration
	store  Store
	now    func() time.Time
}

func NewManager(secret string, ttl time.Duration, store Store) *Manager {
	return &Manager{secret: []byte(secret), ttl: ttl, store: store, now: time.Now}
}

func (m *Manager) TTL() time.Duration { return m.ttl }

// Issue creates and records a new session for the user.
func (m *Manager) Issue(ctx context.Context, userID string, isAdmin bool) (string, Identity, error) {
	now := m.now()
	id := Identity{
		UserID:    userID,
		IsAdmin:   isAdmin,
		SessionID: uuid.NewString(),
		ExpiresAt: now.Add(m.ttl),
	}
	claims := Claims{
		IsAdmin: isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id.SessionID,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(id.ExpiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", Identity{}, fmt.Errorf("sign session: %w", err)
	}
	if err := m.store.Save(ctx, id.SessionID, userID, m.ttl); err != nil {
		return "", Identity{}, apperr.Persistence(err, "save session")
	}
	return token, id, nil
}

func (m *Manager) parse(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(m.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, errors.New("session token without subject or id")
	}
	return claims, nil
}

// Resolve verifies the token and checks that the session was not revoked.
func (m *Manager) Resolve(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, apperr.Auth("authentication required")
	}
	claims, err := m.parse(token)
	if err != nil {
		return Identity{}, apperr.Wrap(apperr.KindAuth, err, "invalid or expired session")
	}
	ok, err := m.store.Exists(ctx, claims.ID)
	if err != nil {
		return Identity{}, apperr.Persistence(err, "lookup session")
	}
	if !ok {
		return Identity{}, apperr.Auth("session revoked")
	}
	return Identity{
		UserID:    claims.Subject,
		IsAdmin:   claims.IsAdmin,
		SessionID: claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Revoke ends the session named by token. Unparseable or expired tokens are
// already unusable and are ignored.
func (m *Manager) Revoke(ctx context.Context, token string) error {
	claims, err := m.parse(token)
	if err != nil {
		return nil
	}
	if err := m.store.Delete(ctx, claims.ID); err != nil {
		return apperr.Persistence(err, "delete session")
	}
	return nil
}

// RedisStore keeps one key per live session, expiring with the token.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore { return &RedisStore{rdb: rdb} }

func sessionKey(id string) string { return fmt.Sprintf("session:%s", id) }

func (s *RedisStore) Save(ctx context.Context, sessionID, userID string, ttl time.Duration) error {
	return s.rdb.Set(ctx, sessionKey(sessionID), userID, ttl).Err()
}

func (s *RedisStore) Exists(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.rdb.Exists(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	return s.rdb.Del(ctx, sessionKey(sessionID)).Err()
}
