package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/elgomatiae/muslim-space-sub000/internal/infrastructure/logging"
)

const (
	// LeaderboardKey is the sorted set key for overall score rankings.
	LeaderboardKey = "spirit:leaderboard"

	// latestScorePrefix prefixes the per-user latest score cache entries.
	latestScorePrefix = "spirit:scores:latest:"

	// default connection timeout
	defaultConnectTimeout = 10 * time.Second
)

var (
	ErrRedisNotConnected = errors.New("redis not connected")
	ErrRedisEmpty        = errors.New("redis leaderboard is empty")
	ErrCacheMiss         = errors.New("cache miss")
)

// RedisConfig holds configuration for Redis connection.
type RedisConfig struct {
	URL string
}

// RedisClient wraps the go-redis client with scoring-specific operations:
// the overall score leaderboard and the latest score cache.
type RedisClient struct {
	client *redis.Client
	logger *logging.Logger
}

// NewRedisClient creates a new Redis client from the config.
// returns nil if the URL is empty (redis disabled).
func NewRedisClient(cfg RedisConfig, logger *logging.Logger) (*RedisClient, error) {
	if cfg.URL == "" {
		logger.Info("redis disabled: no REDIS_URL configured")
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	opts.DialTimeout = defaultConnectTimeout
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolSize = 50
	opts.MinIdleConns = 5

	return &RedisClient{
		client: redis.NewClient(opts),
		logger: logger.WithComponent("redis"),
	}, nil
}

// Connect tests the connection to Redis.
func (r *RedisClient) Connect(ctx context.Context) error {
	if r == nil || r.client == nil {
		return ErrRedisNotConnected
	}

	ctx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}

	r.logger.Info("redis connected")
	return nil
}

// Close closes the Redis connection.
func (r *RedisClient) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}

// UpdateLeaderboardScore upserts the user's overall score with ZADD.
func (r *RedisClient) UpdateLeaderboardScore(ctx context.Context, userID string, overall float64) error {
	if r == nil || r.client == nil {
		return ErrRedisNotConnected
	}

	err := r.client.ZAdd(ctx, LeaderboardKey, redis.Z{
		Score:  overall,
		Member: userID,
	}).Err()
	if err != nil {
		return fmt.Errorf("zadd failed: %w", err)
	}

	r.logger.Debug("leaderboard updated",
		"user_id", userID,
		"overall", overall,
	)
	return nil
}

// GetTopUsers returns user ids ordered by overall score (descending).
func (r *RedisClient) GetTopUsers(ctx context.Context, limit, offset int64) ([]string, error) {
	if r == nil || r.client == nil {
		return nil, ErrRedisNotConnected
	}

	// ZREVRANGE returns members ordered by score (high to low)
	members, err := r.client.ZRevRange(ctx, LeaderboardKey, offset, offset+limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("zrevrange failed: %w", err)
	}
	if len(members) == 0 {
		return nil, ErrRedisEmpty
	}

	r.logger.Debug("leaderboard queried",
		"limit", limit,
		"offset", offset,
		"returned", len(members),
	)
	return members, nil
}

// GetUserRank returns the 0-based rank of a user (highest overall = 0),
// or -1 when the user is not ranked.
func (r *RedisClient) GetUserRank(ctx context.Context, userID string) (int64, error) {
	if r == nil || r.client == nil {
		return -1, ErrRedisNotConnected
	}

	rank, err := r.client.ZRevRank(ctx, LeaderboardKey, userID).Result()
	if errors.Is(err, redis.Nil) {
		return -1, nil
	}
	if err != nil {
		return -1, fmt.Errorf("zrevrank failed: %w", err)
	}
	return rank, nil
}

// GetJSON decodes a cached value into dst. a missing key returns ErrCacheMiss.
func (r *RedisClient) GetJSON(ctx context.Context, key string, dst any) error {
	if r == nil || r.client == nil {
		return ErrRedisNotConnected
	}

	raw, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return fmt.Errorf("get failed: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decoding cached %s: %w", key, err)
	}
	return nil
}

// SetJSON stores value under key for ttl.
func (r *RedisClient) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	if r == nil || r.client == nil {
		return ErrRedisNotConnected
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	if err := r.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("set failed: %w", err)
	}
	return nil
}

// Delete removes cached keys.
func (r *RedisClient) Delete(ctx context.Context, keys ...string) error {
	if r == nil || r.client == nil {
		return ErrRedisNotConnected
	}
	return r.client.Del(ctx, keys...).Err()
}

// HealthCheck verifies Redis is responding.
func (r *RedisClient) HealthCheck(ctx context.Context) error {
	if r == nil || r.client == nil {
		return ErrRedisNotConnected
	}
	return r.client.Ping(ctx).Err()
}

func latestScoreKey(userID string) string {
	return latestScorePrefix + userID
}
