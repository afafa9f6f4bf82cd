package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/elgomatiae/muslim-space-sub000/internal/domain"
)

// GoalRepository implements domain.GoalRepository using Postgres.
// components are stored as jsonb so catalogue changes need no migration.
type GoalRepository struct {
	pool *pgxpool.Pool
}

// NewGoalRepository creates a new GoalRepository.
func NewGoalRepository(pool *pgxpool.Pool) *GoalRepository {
	return &GoalRepository{pool: pool}
}

// Get retrieves one category's record.
func (r *GoalRepository) Get(ctx context.Context, userID domain.UserID, category domain.Category) (domain.GoalRecord, error) {
	const query = `
		SELECT components, completed_obligations
		FROM goal_records
		WHERE user_id = $1 AND category = $2
	`

	var (
		raw         []byte
		obligations []string
	)
	err := GetQuerier(ctx, r.pool).QueryRow(ctx, query, userID.UUID(), category.String()).Scan(&raw, &obligations)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.GoalRecord{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.GoalRecord{}, fmt.Errorf("scanning goal record: %w", err)
	}

	record := domain.GoalRecord{Category: category, CompletedObligations: obligations}
	if err := json.Unmarshal(raw, &record.Components); err != nil {
		return domain.GoalRecord{}, fmt.Errorf("%w: decoding components: %v", domain.ErrInvalidGoalRecord, err)
	}
	return record, nil
}

// Save persists a record (insert or update).
func (r *GoalRepository) Save(ctx context.Context, userID domain.UserID, record domain.GoalRecord) error {
	const query = `
		INSERT INTO goal_records (user_id, category, components, completed_obligations, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (user_id, category) DO UPDATE SET
			components = EXCLUDED.components,
			completed_obligations = EXCLUDED.completed_obligations,
			updated_at = EXCLUDED.updated_at
	`

	components := record.Components
	if components == nil {
		components = []domain.GoalComponent{}
	}
	raw, err := json.Marshal(components)
	if err != nil {
		return fmt.Errorf("encoding components: %w", err)
	}

	obligations := record.CompletedObligations
	if obligations == nil {
		obligations = []string{}
	}

	if _, err := GetQuerier(ctx, r.pool).Exec(ctx, query, userID.UUID(), record.Category.String(), raw, obligations); err != nil {
		return fmt.Errorf("saving goal record: %w", err)
	}
	return nil
}

// MomentumRepository implements domain.MomentumRepository using Postgres.
type MomentumRepository struct {
	pool *pgxpool.Pool
}

// NewMomentumRepository creates a new MomentumRepository.
func NewMomentumRepository(pool *pgxpool.Pool) *MomentumRepository {
	return &MomentumRepository{pool: pool}
}

// Get retrieves the user's momentum state.
func (r *MomentumRepository) Get(ctx context.Context, userID domain.UserID) (domain.MomentumState, error) {
	const query = `
		SELECT last_activity_at, consecutive_active_days, multiplier,
			last_final_worship, last_final_knowledge, last_final_wellbeing,
			last_fresh_worship, last_fresh_knowledge, last_fresh_wellbeing,
			last_evaluated_at
		FROM momentum_states
		WHERE user_id = $1
	`

	var (
		state                  domain.MomentumState
		finalW, finalK, finalB int
		freshW, freshK, freshB int
		lastEvaluatedAt        *time.Time
	)
	err := GetQuerier(ctx, r.pool).QueryRow(ctx, query, userID.UUID()).Scan(
		&state.LastActivityAt, &state.ConsecutiveActiveDays, &state.Multiplier,
		&finalW, &finalK, &finalB,
		&freshW, &freshK, &freshB,
		&lastEvaluatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.MomentumState{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.MomentumState{}, fmt.Errorf("scanning momentum state: %w", err)
	}

	state.LastFinalScores = scoresFromInts(finalW, finalK, finalB)
	state.LastFreshScores = scoresFromInts(freshW, freshK, freshB)
	if lastEvaluatedAt != nil {
		state.LastEvaluatedAt = *lastEvaluatedAt
	}
	return state, nil
}

// Save persists the user's momentum state (insert or update).
func (r *MomentumRepository) Save(ctx context.Context, userID domain.UserID, state domain.MomentumState) error {
	const query = `
		INSERT INTO momentum_states (
			user_id, last_activity_at, consecutive_active_days, multiplier,
			last_final_worship, last_final_knowledge, last_final_wellbeing,
			last_fresh_worship, last_fresh_knowledge, last_fresh_wellbeing,
			last_evaluated_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
		ON CONFLICT (user_id) DO UPDATE SET
			last_activity_at = EXCLUDED.last_activity_at,
			consecutive_active_days = EXCLUDED.consecutive_active_days,
			multiplier = EXCLUDED.multiplier,
			last_final_worship = EXCLUDED.last_final_worship,
			last_final_knowledge = EXCLUDED.last_final_knowledge,
			last_final_wellbeing = EXCLUDED.last_final_wellbeing,
			last_fresh_worship = EXCLUDED.last_fresh_worship,
			last_fresh_knowledge = EXCLUDED.last_fresh_knowledge,
			last_fresh_wellbeing = EXCLUDED.last_fresh_wellbeing,
			last_evaluated_at = EXCLUDED.last_evaluated_at,
			updated_at = EXCLUDED.updated_at
	`

	_, err := GetQuerier(ctx, r.pool).Exec(ctx, query,
		userID.UUID(),
		state.LastActivityAt,
		state.ConsecutiveActiveDays,
		state.Multiplier,
		state.LastFinalScores.Worship.Int(),
		state.LastFinalScores.Knowledge.Int(),
		state.LastFinalScores.Wellbeing.Int(),
		state.LastFreshScores.Worship.Int(),
		state.LastFreshScores.Knowledge.Int(),
		state.LastFreshScores.Wellbeing.Int(),
		nullableTime(state.LastEvaluatedAt),
	)
	if err != nil {
		return fmt.Errorf("saving momentum state: %w", err)
	}
	return nil
}

// Delete removes the user's momentum state. deleting nothing is not an error.
func (r *MomentumRepository) Delete(ctx context.Context, userID domain.UserID) error {
	if _, err := GetQuerier(ctx, r.pool).Exec(ctx, `DELETE FROM momentum_states WHERE user_id = $1`, userID.UUID()); err != nil {
		return fmt.Errorf("deleting momentum state: %w", err)
	}
	return nil
}

// ResetMarkerRepository implements domain.ResetMarkerRepository using Postgres.
type ResetMarkerRepository struct {
	pool *pgxpool.Pool
}

// NewResetMarkerRepository creates a new ResetMarkerRepository.
func NewResetMarkerRepository(pool *pgxpool.Pool) *ResetMarkerRepository {
	return &ResetMarkerRepository{pool: pool}
}

// Get retrieves the user's reset marker.
func (r *ResetMarkerRepository) Get(ctx context.Context, userID domain.UserID) (domain.ResetMarker, error) {
	const query = `SELECT last_daily, last_weekly, time_zone FROM reset_markers WHERE user_id = $1`

	var (
		daily, weekly *time.Time
		zone          string
	)
	err := GetQuerier(ctx, r.pool).QueryRow(ctx, query, userID.UUID()).Scan(&daily, &weekly, &zone)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ResetMarker{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.ResetMarker{}, fmt.Errorf("scanning reset marker: %w", err)
	}

	marker := domain.ResetMarker{TimeZone: zone}
	if daily != nil {
		marker.LastDaily = *daily
	}
	if weekly != nil {
		marker.LastWeekly = *weekly
	}
	return marker, nil
}

// Save persists the user's reset marker (insert or update).
func (r *ResetMarkerRepository) Save(ctx context.Context, userID domain.UserID, marker domain.ResetMarker) error {
	const query = `
		INSERT INTO reset_markers (user_id, last_daily, last_weekly, time_zone, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (user_id) DO UPDATE SET
			last_daily = EXCLUDED.last_daily,
			last_weekly = EXCLUDED.last_weekly,
			time_zone = EXCLUDED.time_zone,
			updated_at = EXCLUDED.updated_at
	`

	_, err := GetQuerier(ctx, r.pool).Exec(ctx, query,
		userID.UUID(),
		nullableTime(marker.LastDaily),
		nullableTime(marker.LastWeekly),
		marker.TimeZone,
	)
	if err != nil {
		return fmt.Errorf("saving reset marker: %w", err)
	}
	return nil
}

// helper functions

func scoresFromInts(worship, knowledge, wellbeing int) domain.CategoryScores {
	return domain.CategoryScores{
		Worship:   domain.ClampPercentage(worship),
		Knowledge: domain.ClampPercentage(knowledge),
		Wellbeing: domain.ClampPercentage(wellbeing),
	}
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
