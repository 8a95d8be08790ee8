// Package session keeps refresh tokens, password-reset tokens and revoked
// access-token ids in Redis.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrTokenNotFound = errors.New("token not found or expired")

const (
	refreshPrefix  = "refresh:"
	resetPrefix    = "reset:"
	revokedPrefix  = "revoked:"
	accountsPrefix = "account-sessions:"
)

// TokenData is stored for each refresh token.
type TokenData struct {
	AccountID string    `json:"account_id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// SaveRefreshSession stores a refresh token hash and indexes it under the
// account so every session can be dropped at once.
func (s *RedisStore) SaveRefreshSession(ctx context.Context, tokenHash, accountID, email string, expiresAt time.Time) error {
	payload, err := json.Marshal(TokenData{AccountID: accountID, Email: email, CreatedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal token data: %w", err)
	}
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return fmt.Errorf("save refresh token: already expired")
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, refreshPrefix+tokenHash, payload, ttl)
	pipe.SAdd(ctx, accountsPrefix+accountID, tokenHash)
	pipe.Expire(ctx, accountsPrefix+accountID, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save refresh token: %w", err)
	}
	return nil
}

func (s *RedisStore) LookupRefreshSession(ctx context.Context, tokenHash string) (TokenData, error) {
	raw, err := s.client.Get(ctx, refreshPrefix+tokenHash).Result()
	if errors.Is(err, redis.Nil) {
		return TokenData{}, ErrTokenNotFound
	}
	if err != nil {
		return TokenData{}, fmt.Errorf("lookup refresh token: %w", err)
	}
	var data TokenData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return TokenData{}, fmt.Errorf("unmarshal token data: %w", err)
	}
	return data, nil
}

func (s *RedisStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	if err := s.client.Del(ctx, refreshPrefix+tokenHash).Err(); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// RevokeAccountSessions drops every refresh token issued to the account.
func (s *RedisStore) RevokeAccountSessions(ctx context.Context, accountID string) error {
	index := accountsPrefix + accountID
	hashes, err := s.client.SMembers(ctx, index).Result()
	if err != nil {
		return fmt.Errorf("list account sessions: %w", err)
	}
	keys := make([]string, 0, len(hashes)+1)
	for _, h := range hashes {
		keys = append(keys, refreshPrefix+h)
	}
	keys = append(keys, index)
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("revoke account sessions: %w", err)
	}
	return nil
}

// SaveResetToken stores a single-use password reset token.
func (s *RedisStore) SaveResetToken(ctx context.Context, tokenHash, accountID string, ttl time.Duration) error {
	if err := s.client.Set(ctx, resetPrefix+tokenHash, accountID, ttl).Err(); err != nil {
		return fmt.Errorf("save reset token: %w", err)
	}
	return nil
}

// ConsumeResetToken returns the account a reset token belongs to and deletes
// it in the same round trip.
func (s *RedisStore) ConsumeResetToken(ctx context.Context, tokenHash string) (string, error) {
	accountID, err := s.client.GetDel(ctx, resetPrefix+tokenHash).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrTokenNotFound
	}
	if err != nil {
		return "", fmt.Errorf("consume reset token: %w", err)
	}
	return accountID, nil
}

// RevokeAccessToken blocks an access token id until it would have expired.
func (s *RedisStore) RevokeAccessToken(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, revokedPrefix+jti, "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

func (s *RedisStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.client.Exists(ctx, revokedPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return n > 0, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
