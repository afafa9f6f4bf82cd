package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/elgomatiae/muslim-space-sub000/internal/domain"
)

// ScoreRepository implements domain.ScoreRepository using Postgres.
// every record goes to score_history; latest_scores keeps one row per user
// for lookups and the leaderboard fallback.
type ScoreRepository struct {
	pool *pgxpool.Pool
}

// NewScoreRepository creates a new ScoreRepository.
func NewScoreRepository(pool *pgxpool.Pool) *ScoreRepository {
	return &ScoreRepository{pool: pool}
}

const scoreColumns = `user_id,
	fresh_worship, fresh_knowledge, fresh_wellbeing,
	final_worship, final_knowledge, final_wellbeing,
	overall, status, fallbacks, computed_at`

// Save appends to the history and replaces the latest row.
// run it inside a unit of work to make both writes atomic.
func (r *ScoreRepository) Save(ctx context.Context, record domain.ScoreRecord) error {
	const historyQuery = `
		INSERT INTO score_history (` + scoreColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	const latestQuery = `
		INSERT INTO latest_scores (` + scoreColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (user_id) DO UPDATE SET
			fresh_worship = EXCLUDED.fresh_worship,
			fresh_knowledge = EXCLUDED.fresh_knowledge,
			fresh_wellbeing = EXCLUDED.fresh_wellbeing,
			final_worship = EXCLUDED.final_worship,
			final_knowledge = EXCLUDED.final_knowledge,
			final_wellbeing = EXCLUDED.final_wellbeing,
			overall = EXCLUDED.overall,
			status = EXCLUDED.status,
			fallbacks = EXCLUDED.fallbacks,
			computed_at = EXCLUDED.computed_at
		WHERE latest_scores.computed_at <= EXCLUDED.computed_at
	`

	args := scoreArgs(record)
	q := GetQuerier(ctx, r.pool)

	if _, err := q.Exec(ctx, historyQuery, args...); err != nil {
		return fmt.Errorf("saving score history: %w", err)
	}
	if _, err := q.Exec(ctx, latestQuery, args...); err != nil {
		return fmt.Errorf("saving latest scores: %w", err)
	}
	return nil
}

// Latest retrieves the most recent record for a user.
func (r *ScoreRepository) Latest(ctx context.Context, userID domain.UserID) (domain.ScoreRecord, error) {
	query := `SELECT ` + scoreColumns + ` FROM latest_scores WHERE user_id = $1`

	record, err := scanScore(GetQuerier(ctx, r.pool).QueryRow(ctx, query, userID.UUID()))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ScoreRecord{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.ScoreRecord{}, err
	}
	return record, nil
}

// History returns up to limit records, newest first.
func (r *ScoreRepository) History(ctx context.Context, userID domain.UserID, limit int) ([]domain.ScoreRecord, error) {
	query := `
		SELECT ` + scoreColumns + `
		FROM score_history
		WHERE user_id = $1
		ORDER BY computed_at DESC, id DESC
		LIMIT $2
	`

	rows, err := GetQuerier(ctx, r.pool).Query(ctx, query, userID.UUID(), limit)
	if err != nil {
		return nil, fmt.Errorf("querying score history: %w", err)
	}
	return scanScores(rows)
}

// Top returns the latest records ordered by overall score.
func (r *ScoreRepository) Top(ctx context.Context, limit, offset int) ([]domain.ScoreRecord, error) {
	query := `
		SELECT ` + scoreColumns + `
		FROM latest_scores
		ORDER BY overall DESC, computed_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := GetQuerier(ctx, r.pool).Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("querying top scores: %w", err)
	}
	return scanScores(rows)
}

func scoreArgs(record domain.ScoreRecord) []any {
	fallbacks := make([]string, 0, len(record.Fallbacks))
	for _, f := range record.Fallbacks {
		fallbacks = append(fallbacks, string(f))
	}
	return []any{
		record.UserID.UUID(),
		record.Fresh.Worship.Int(),
		record.Fresh.Knowledge.Int(),
		record.Fresh.Wellbeing.Int(),
		record.Final.Worship.Int(),
		record.Final.Knowledge.Int(),
		record.Final.Wellbeing.Int(),
		record.Overall.Int(),
		string(record.Status),
		fallbacks,
		record.ComputedAt,
	}
}

func scanScore(row pgx.Row) (domain.ScoreRecord, error) {
	var (
		id                     uuid.UUID
		freshW, freshK, freshB int
		finalW, finalK, finalB int
		overall                int
		status                 string
		fallbacks              []string
		computedAt             time.Time
	)

	err := row.Scan(&id, &freshW, &freshK, &freshB, &finalW, &finalK, &finalB, &overall, &status, &fallbacks, &computedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ScoreRecord{}, err
	}
	if err != nil {
		return domain.ScoreRecord{}, fmt.Errorf("scanning score record: %w", err)
	}

	record := domain.ScoreRecord{
		UserID:     domain.UserIDFromUUID(id),
		Fresh:      scoresFromInts(freshW, freshK, freshB),
		Final:      scoresFromInts(finalW, finalK, finalB),
		Overall:    domain.ClampPercentage(overall),
		ComputedAt: computedAt,
		Status:     domain.ComputeStatus(status),
	}
	for _, f := range fallbacks {
		record.Fallbacks = append(record.Fallbacks, domain.Fallback(f))
	}
	return record, nil
}

func scanScores(rows pgx.Rows) ([]domain.ScoreRecord, error) {
	defer rows.Close()

	var records []domain.ScoreRecord
	for rows.Next() {
		record, err := scanScore(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating score records: %w", err)
	}
	return records, nil
}
