package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/elgomatiae/muslim-space-sub000/internal/domain"
	"github.com/elgomatiae/muslim-space-sub000/internal/infrastructure/logging"
)

const (
	DefaultHistoryLimit = 30
	MaxHistoryLimit     = 365

	DefaultLeaderboardLimit = 20
	MaxLeaderboardLimit     = 100
)

// RankReader returns a user's 0-based leaderboard position, -1 when unranked.
type RankReader interface {
	GetUserRank(ctx context.Context, userID string) (int64, error)
}

// QueryScoresUseCase serves stored score records to progress displays.
type QueryScoresUseCase struct {
	scoreRepo domain.ScoreRepository
	ranks     RankReader
	logger    *logging.Logger
}

// NewQueryScoresUseCase creates a new QueryScoresUseCase.
func NewQueryScoresUseCase(scoreRepo domain.ScoreRepository, logger *logging.Logger) *QueryScoresUseCase {
	return &QueryScoresUseCase{
		scoreRepo: scoreRepo,
		logger:    logger.WithComponent("query_scores"),
	}
}

// WithRanks sets the leaderboard used to rank users.
func (uc *QueryScoresUseCase) WithRanks(r RankReader) *QueryScoresUseCase {
	uc.ranks = r
	return uc
}

// Rank returns the user's 1-based leaderboard position. ok is false when no
// leaderboard is configured, the user is unranked, or the lookup failed.
func (uc *QueryScoresUseCase) Rank(ctx context.Context, rawUserID string) (rank int, ok bool) {
	if uc.ranks == nil {
		return 0, false
	}
	userID, err := domain.ParseUserID(rawUserID)
	if err != nil {
		return 0, false
	}

	pos, err := uc.ranks.GetUserRank(ctx, userID.String())
	if err != nil {
		uc.logger.Warn("leaderboard rank unavailable",
			"user_id", userID.String(),
			"error", err.Error(),
		)
		return 0, false
	}
	if pos < 0 {
		return 0, false
	}
	return int(pos) + 1, true
}

// Latest returns the most recent record. ErrNotFound means nothing was computed yet.
func (uc *QueryScoresUseCase) Latest(ctx context.Context, rawUserID string) (domain.ScoreRecord, error) {
	userID, err := domain.ParseUserID(rawUserID)
	if err != nil {
		return domain.ScoreRecord{}, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	record, err := uc.scoreRepo.Latest(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ScoreRecord{}, err
	}
	if err != nil {
		return domain.ScoreRecord{}, fmt.Errorf("%w: %v", domain.ErrStorageRead, err)
	}
	return record, nil
}

// History returns up to limit records, newest first.
func (uc *QueryScoresUseCase) History(ctx context.Context, rawUserID string, limit int) ([]domain.ScoreRecord, error) {
	userID, err := domain.ParseUserID(rawUserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	records, err := uc.scoreRepo.History(ctx, userID, clampLimit(limit, DefaultHistoryLimit, MaxHistoryLimit))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageRead, err)
	}
	return records, nil
}

// Leaderboard returns users ranked by overall score.
func (uc *QueryScoresUseCase) Leaderboard(ctx context.Context, limit, offset int) ([]domain.ScoreRecord, error) {
	if offset < 0 {
		offset = 0
	}
	records, err := uc.scoreRepo.Top(ctx, clampLimit(limit, DefaultLeaderboardLimit, MaxLeaderboardLimit), offset)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageRead, err)
	}
	return records, nil
}

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
