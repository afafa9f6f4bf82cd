package cache

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elgomatiae/muslim-space-sub000/internal/domain"
	"github.com/elgomatiae/muslim-space-sub000/internal/infrastructure/logging"
)

// memoryScoreRepo is a minimal in-memory ScoreRepository.
type memoryScoreRepo struct {
	mu      sync.Mutex
	latest  map[domain.UserID]domain.ScoreRecord
	history map[domain.UserID][]domain.ScoreRecord
	calls   map[string]int
}

func newMemoryScoreRepo() *memoryScoreRepo {
	return &memoryScoreRepo{
		latest:  make(map[domain.UserID]domain.ScoreRecord),
		history: make(map[domain.UserID][]domain.ScoreRecord),
		calls:   make(map[string]int),
	}
}

func (m *memoryScoreRepo) Save(_ context.Context, record domain.ScoreRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["save"]++
	m.latest[record.UserID] = record
	m.history[record.UserID] = append(m.history[record.UserID], record)
	return nil
}

func (m *memoryScoreRepo) Latest(_ context.Context, userID domain.UserID) (domain.ScoreRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["latest"]++
	record, ok := m.latest[userID]
	if !ok {
		return domain.ScoreRecord{}, domain.ErrNotFound
	}
	return record, nil
}

func (m *memoryScoreRepo) History(_ context.Context, userID domain.UserID, limit int) ([]domain.ScoreRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["history"]++
	records := m.history[userID]
	if len(records) > limit {
		records = records[len(records)-limit:]
	}
	return records, nil
}

func (m *memoryScoreRepo) Top(_ context.Context, limit, offset int) ([]domain.ScoreRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["top"]++
	var all []domain.ScoreRecord
	for _, r := range m.latest {
		all = append(all, r)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Overall > all[j].Overall })
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func sampleRecord(overall int) domain.ScoreRecord {
	return domain.ScoreRecord{
		UserID:     domain.NewUserID(),
		Fresh:      domain.CategoryScores{Worship: 50, Knowledge: 40, Wellbeing: 30},
		Final:      domain.CategoryScores{Worship: 55, Knowledge: 44, Wellbeing: 33},
		Overall:    domain.Percentage(overall),
		ComputedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Status:     domain.ComputeStatusFallbackUsed,
		Fallbacks:  []domain.Fallback{domain.FallbackScheduleUnavailable},
	}
}

func TestScoreRepositoryWithCache_NilRedisDelegates(t *testing.T) {
	repo := newMemoryScoreRepo()
	cached := NewScoreRepositoryWithCache(repo, nil, 0, logging.NewNop())
	ctx := context.Background()

	low, high := sampleRecord(20), sampleRecord(80)
	require.NoError(t, cached.Save(ctx, low))
	require.NoError(t, cached.Save(ctx, high))

	got, err := cached.Latest(ctx, high.UserID)
	require.NoError(t, err)
	assert.Equal(t, high.Overall, got.Overall)

	top, err := cached.Top(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, high.UserID, top[0].UserID)

	_, err = cached.Latest(ctx, domain.NewUserID())
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestScoreRepositoryWithCache_UnreachableRedisFallsBack(t *testing.T) {
	redisClient, err := NewRedisClient(RedisConfig{URL: "redis://127.0.0.1:1/0"}, logging.NewNop())
	require.NoError(t, err)
	defer redisClient.Close()

	repo := newMemoryScoreRepo()
	cached := NewScoreRepositoryWithCache(repo, redisClient, time.Minute, logging.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	record := sampleRecord(64)
	require.NoError(t, cached.Save(ctx, record), "cache invalidation failure must not fail the save")

	got, err := cached.Latest(ctx, record.UserID)
	require.NoError(t, err)
	assert.Equal(t, record.Final, got.Final)

	top, err := cached.Top(ctx, 5, 0)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, 1, repo.calls["top"])
}

func TestCachedScoreRoundTrip(t *testing.T) {
	record := sampleRecord(47)

	got, ok := fromDomain(record).toDomain()
	require.True(t, ok)
	assert.Equal(t, record.UserID, got.UserID)
	assert.Equal(t, record.Fresh, got.Fresh)
	assert.Equal(t, record.Final, got.Final)
	assert.Equal(t, record.Overall, got.Overall)
	assert.Equal(t, record.Status, got.Status)
	assert.Equal(t, record.Fallbacks, got.Fallbacks)
	assert.True(t, record.ComputedAt.Equal(got.ComputedAt))
}

func TestCachedScore_InvalidUserID(t *testing.T) {
	_, ok := cachedScore{UserID: "not-a-uuid"}.toDomain()
	assert.False(t, ok)
}

func TestRedisClient_NilIsDisabled(t *testing.T) {
	client, err := NewRedisClient(RedisConfig{}, logging.NewNop())
	require.NoError(t, err)
	assert.Nil(t, client)

	ctx := context.Background()
	assert.ErrorIs(t, client.UpdateLeaderboardScore(ctx, "u", 10), ErrRedisNotConnected)
	assert.ErrorIs(t, client.HealthCheck(ctx), ErrRedisNotConnected)
	assert.NoError(t, client.Close())
}
