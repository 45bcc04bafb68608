package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisSessionPrefix = "session:"
	// redisRetention keeps expired sessions readable so verification can still report them as expired.
	redisRetention = 24 * time.Hour
)

// RedisSessionStore implements SessionStore with one hash per session.
type RedisSessionStore struct {
	client *redis.Client
}

// NewRedisSessionStore creates a new RedisSessionStore.
func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

func redisSessionKey(token string) string {
	return redisSessionPrefix + token
}

// CreateSession writes the session hash, replacing any previous one for the token.
func (s *RedisSessionStore) CreateSession(ctx context.Context, session Session) error {
	key := redisSessionKey(session.Token)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			"user_email", session.UserEmail,
			"expires_at", FormatStoredTime(session.ExpiresAt),
			"created_at", FormatStoredTime(session.CreatedAt),
		)
		pipe.ExpireAt(ctx, key, session.ExpiresAt.Add(redisRetention))
		return nil
	})
	return err
}

// FindSession reads the session hash for token.
func (s *RedisSessionStore) FindSession(ctx context.Context, token string) (*Session, error) {
	values, err := s.client.HGetAll(ctx, redisSessionKey(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if len(values) == 0 {
		return nil, nil
	}

	expiresAt, err := ParseStoredTime(values["expires_at"])
	if err != nil {
		return nil, fmt.Errorf("session expires_at: %w", err)
	}
	createdAt, err := ParseStoredTime(values["created_at"])
	if err != nil {
		createdAt = time.Time{}
	}

	return &Session{
		Token:     token,
		UserEmail: values["user_email"],
		ExpiresAt: expiresAt,
		CreatedAt: createdAt,
	}, nil
}

// DeleteSession removes the session hash.
func (s *RedisSessionStore) DeleteSession(ctx context.Context, token string) error {
	return s.client.Del(ctx, redisSessionKey(token)).Err()
}

// DeleteExpiredSessions scans session keys and removes those expired at now.
func (s *RedisSessionStore) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	var removed int64
	iter := s.client.Scan(ctx, 0, redisSessionPrefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		raw, err := s.client.HGet(ctx, key, "expires_at").Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return removed, err
		}
		expiresAt, err := ParseStoredTime(raw)
		if err != nil || !expiresAt.Before(now.UTC()) {
			continue
		}
		n, err := s.client.Del(ctx, key).Result()
		if err != nil {
			return removed, err
		}
		removed += n
	}
	return removed, iter.Err()
}

// Ping verifies connectivity to the server.
func (s *RedisSessionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
