package cache

import (
	"context"
	"fmt"
	"time"

	"appointly/core/constants"
	"appointly/core/logger"

	"github.com/redis/go-redis/v9"
)

type Cache interface {
	SetOAuthState(ctx context.Context, state string, userID string) error
	ConsumeOAuthState(ctx context.Context, state string) (string, error)
	AddToTokenBlacklist(ctx context.Context, token string, ttl time.Duration) error
	IsTokenBlacklisted(ctx context.Context, token string) (bool, error)
	Close() error
}

type redisCache struct {
	client *redis.Client
}

type Config struct {
	Addr     string
	Password string
	DB       int
}

func Connect(cfg Config) (Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis initialized successfully", "addr", cfg.Addr, "db", cfg.DB)
	return &redisCache{client: client}, nil
}

// SetOAuthState stores a pending OAuth state token, keyed so the callback can
// resolve which user initiated the consent flow. States expire on their own.
func (c *redisCache) SetOAuthState(ctx context.Context, state string, userID string) error {
	key := constants.RedisKeyOAuthState + state
	return c.client.Set(ctx, key, userID, constants.OAuthStateLifetime).Err()
}

// ConsumeOAuthState returns the user id bound to a state and deletes it, so a
// state can be redeemed at most once.
func (c *redisCache) ConsumeOAuthState(ctx context.Context, state string) (string, error) {
	key := constants.RedisKeyOAuthState + state
	userID, err := c.client.GetDel(ctx, key).Result()
	if err == redis.Nil {
		return "", fmt.Errorf("oauth state not found or expired")
	}
	if err != nil {
		logger.Error("Cache:ConsumeOAuthState:Error", "error", err)
		return "", err
	}
	return userID, nil
}

func (c *redisCache) AddToTokenBlacklist(ctx context.Context, token string, ttl time.Duration) error {
	return c.client.Set(ctx, constants.RedisKeyTokenBlacklist+token, "1", ttl).Err()
}

func (c *redisCache) IsTokenBlacklisted(ctx context.Context, token string) (bool, error) {
	n, err := c.client.Exists(ctx, constants.RedisKeyTokenBlacklist+token).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *redisCache) Close() error {
	return c.client.Close()
}
