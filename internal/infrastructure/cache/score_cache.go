package cache

import (
	"context"
	"errors"
	"time"

	"github.com/elgomatiae/muslim-space-sub000/internal/domain"
	"github.com/elgomatiae/muslim-space-sub000/internal/infrastructure/logging"
)

// DefaultScoreTTL bounds how long a cached latest score is served.
const DefaultScoreTTL = 10 * time.Minute

// ScoreRepositoryWithCache wraps a ScoreRepository and adds Redis caching.
// latest scores are read through the cache, the leaderboard is served from
// the sorted set. any redis failure falls back to postgres.
type ScoreRepositoryWithCache struct {
	repo   domain.ScoreRepository
	redis  *RedisClient
	ttl    time.Duration
	logger *logging.Logger
}

// NewScoreRepositoryWithCache creates a cached score repository.
// if redis is nil, all calls go directly to the underlying repository.
func NewScoreRepositoryWithCache(
	repo domain.ScoreRepository,
	redis *RedisClient,
	ttl time.Duration,
	logger *logging.Logger,
) *ScoreRepositoryWithCache {
	if ttl <= 0 {
		ttl = DefaultScoreTTL
	}
	return &ScoreRepositoryWithCache{
		repo:   repo,
		redis:  redis,
		ttl:    ttl,
		logger: logger.WithComponent("score_cache"),
	}
}

// Save persists through the repository, then refreshes the cache entry.
// inside a unit of work the commit may still fail, so the entry is dropped
// rather than written.
func (r *ScoreRepositoryWithCache) Save(ctx context.Context, record domain.ScoreRecord) error {
	if err := r.repo.Save(ctx, record); err != nil {
		return err
	}
	if r.redis == nil {
		return nil
	}
	if err := r.redis.Delete(ctx, latestScoreKey(record.UserID.String())); err != nil {
		r.logger.Warn("latest score invalidation failed",
			"user_id", record.UserID.String(),
			"error", err.Error(),
		)
	}
	return nil
}

// Latest tries redis first and fills the cache on a miss.
func (r *ScoreRepositoryWithCache) Latest(ctx context.Context, userID domain.UserID) (domain.ScoreRecord, error) {
	if r.redis == nil {
		return r.repo.Latest(ctx, userID)
	}

	key := latestScoreKey(userID.String())
	var cached cachedScore
	err := r.redis.GetJSON(ctx, key, &cached)
	if err == nil {
		if record, ok := cached.toDomain(); ok {
			return record, nil
		}
		r.logger.Warn("invalid latest score in cache", "user_id", userID.String())
	} else if !errors.Is(err, ErrCacheMiss) {
		r.logger.Debug("latest score cache unavailable, falling back to postgres",
			"user_id", userID.String(),
			"reason", err.Error(),
		)
	}

	record, err := r.repo.Latest(ctx, userID)
	if err != nil {
		return domain.ScoreRecord{}, err
	}

	if err := r.redis.SetJSON(ctx, key, fromDomain(record), r.ttl); err != nil {
		r.logger.Debug("latest score cache fill failed",
			"user_id", userID.String(),
			"reason", err.Error(),
		)
	}
	return record, nil
}

// History delegates directly to the underlying repository.
func (r *ScoreRepositoryWithCache) History(ctx context.Context, userID domain.UserID, limit int) ([]domain.ScoreRecord, error) {
	return r.repo.History(ctx, userID, limit)
}

// Top reads ranked user ids from the sorted set and resolves each through
// Latest. falls back to postgres when redis is down or empty.
func (r *ScoreRepositoryWithCache) Top(ctx context.Context, limit, offset int) ([]domain.ScoreRecord, error) {
	if r.redis == nil {
		return r.repo.Top(ctx, limit, offset)
	}

	userIDs, err := r.redis.GetTopUsers(ctx, int64(limit), int64(offset))
	if err != nil {
		r.logger.Debug("leaderboard cache miss, falling back to postgres",
			"limit", limit,
			"offset", offset,
			"reason", err.Error(),
		)
		return r.repo.Top(ctx, limit, offset)
	}

	records := make([]domain.ScoreRecord, 0, len(userIDs))
	for _, raw := range userIDs {
		userID, err := domain.ParseUserID(raw)
		if err != nil {
			// corrupted data in redis? log and skip
			r.logger.Warn("invalid user id in leaderboard cache",
				"id", raw,
				"error", err.Error(),
			)
			continue
		}

		record, err := r.Latest(ctx, userID)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if len(records) == 0 {
		r.logger.Warn("no leaderboard cache entries resolved, falling back to postgres")
		return r.repo.Top(ctx, limit, offset)
	}
	return records, nil
}

// cachedScore is the redis representation of a score record.
type cachedScore struct {
	UserID     string    `json:"user_id"`
	Fresh      [3]int    `json:"fresh"`
	Final      [3]int    `json:"final"`
	Overall    int       `json:"overall"`
	ComputedAt time.Time `json:"computed_at"`
	Status     string    `json:"status"`
	Fallbacks  []string  `json:"fallbacks,omitempty"`
}

func fromDomain(record domain.ScoreRecord) cachedScore {
	c := cachedScore{
		UserID:     record.UserID.String(),
		Fresh:      [3]int{record.Fresh.Worship.Int(), record.Fresh.Knowledge.Int(), record.Fresh.Wellbeing.Int()},
		Final:      [3]int{record.Final.Worship.Int(), record.Final.Knowledge.Int(), record.Final.Wellbeing.Int()},
		Overall:    record.Overall.Int(),
		ComputedAt: record.ComputedAt,
		Status:     string(record.Status),
	}
	for _, f := range record.Fallbacks {
		c.Fallbacks = append(c.Fallbacks, string(f))
	}
	return c
}

func (c cachedScore) toDomain() (domain.ScoreRecord, bool) {
	userID, err := domain.ParseUserID(c.UserID)
	if err != nil {
		return domain.ScoreRecord{}, false
	}

	record := domain.ScoreRecord{
		UserID:     userID,
		Fresh:      scoresFromArray(c.Fresh),
		Final:      scoresFromArray(c.Final),
		Overall:    domain.ClampPercentage(c.Overall),
		ComputedAt: c.ComputedAt,
		Status:     domain.ComputeStatus(c.Status),
	}
	for _, f := range c.Fallbacks {
		record.Fallbacks = append(record.Fallbacks, domain.Fallback(f))
	}
	return record, true
}

func scoresFromArray(v [3]int) domain.CategoryScores {
	return domain.CategoryScores{
		Worship:   domain.ClampPercentage(v[0]),
		Knowledge: domain.ClampPercentage(v[1]),
		Wellbeing: domain.ClampPercentage(v[2]),
	}
}
