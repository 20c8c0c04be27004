package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrNoSession = errors.New("no valid session")

const sessionTTL = 30 * 24 * time.Hour

// Sessions maps bearer tokens to user ids. The upstream OAuth layer proves
// identity; this only keeps the resulting session alive.
type Sessions interface {
	Create(ctx context.Context, userID string) (string, error)
	UserID(ctx context.Context, token string) (string, error)
	Revoke(ctx context.Context, token string) error
}

type RedisSessions struct {
	rdb *redis.Client
}

func NewRedisSessions(rdb *redis.Client) *RedisSessions {
	return &RedisSessions{rdb: rdb}
}

func (s *RedisSessions) Create(ctx context.Context, userID string) (string, error) {
	b := make([]byte, 32)
	rand.Read(b)
	token := hex.EncodeToString(b)

	if err := s.rdb.Set(ctx, sessionKey(token), userID, sessionTTL).Err(); err != nil {
		return "", fmt.Errorf("storing session: %w", err)
	}
	return token, nil
}

func (s *RedisSessions) UserID(ctx context.Context, token string) (string, error) {
	userID, err := s.rdb.Get(ctx, sessionKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNoSession
	}
	if err != nil {
		return "", fmt.Errorf("looking up session: %w", err)
	}
	return userID, nil
}

func (s *RedisSessions) Revoke(ctx context.Context, token string) error {
	return s.rdb.Del(ctx, sessionKey(token)).Err()
}

func sessionKey(token string) string {
	return "session:" + token
}
