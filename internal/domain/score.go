package domain

import (
	"context"
	"time"
)

// ComputeStatus tells consumers whether a score was computed from real inputs.
// achievement unlocks should only trust ComputeStatusComputed.
type ComputeStatus string

const (
	ComputeStatusComputed     ComputeStatus = "computed"
	ComputeStatusFallbackUsed ComputeStatus = "fallback_used"
)

// Fallback names a degraded path taken during a scoring cycle.
type Fallback string

const (
	FallbackScheduleUnavailable Fallback = "schedule_unavailable"
	FallbackGoalsDefault        Fallback = "goals_default"
	FallbackMomentumDefault     Fallback = "momentum_default"
	FallbackMarkerUnavailable   Fallback = "marker_unavailable"
	FallbackInvalidGoals        Fallback = "invalid_goals"
	FallbackPersistFailed       Fallback = "persist_failed"
)

// ScoreRecord is the output of record of one scoring cycle.
type ScoreRecord struct {
	UserID     UserID
	Fresh      CategoryScores
	Final      CategoryScores
	Overall    Percentage
	ComputedAt time.Time
	Status     ComputeStatus
	Fallbacks  []Fallback
}

// StatusFor derives the status from the fallbacks taken.
// a failed write does not make the computation itself less trustworthy.
func StatusFor(fallbacks []Fallback) ComputeStatus {
	for _, f := range fallbacks {
		if f != FallbackPersistFailed {
			return ComputeStatusFallbackUsed
		}
	}
	return ComputeStatusComputed
}

// Location identifies where the user is, for prayer time calculation.
type Location struct {
	Latitude  float64
	Longitude float64
	// Method is the calculation method id understood by the schedule provider.
	Method   int
	TimeZone string
}

// IsZero is true when no coordinates were given.
func (l Location) IsZero() bool {
	return l.Latitude == 0 && l.Longitude == 0
}

// GoalRepository persists goal records per user and category.
type GoalRepository interface {
	// Get returns ErrNotFound when the user has no record for the category.
	Get(ctx context.Context, userID UserID, category Category) (GoalRecord, error)
	Save(ctx context.Context, userID UserID, record GoalRecord) error
}

// MomentumRepository persists momentum state per user.
type MomentumRepository interface {
	// Get returns ErrNotFound for users without state.
	Get(ctx context.Context, userID UserID) (MomentumState, error)
	Save(ctx context.Context, userID UserID, state MomentumState) error
	Delete(ctx context.Context, userID UserID) error
}

// ResetMarkerRepository persists the periodic reset marker per user.
type ResetMarkerRepository interface {
	// Get returns ErrNotFound for users never reset.
	Get(ctx context.Context, userID UserID) (ResetMarker, error)
	Save(ctx context.Context, userID UserID, marker ResetMarker) error
}

// ScoreRepository is the score output sink.
type ScoreRepository interface {
	Save(ctx context.Context, record ScoreRecord) error
	// Latest returns ErrNotFound when nothing was computed yet.
	Latest(ctx context.Context, userID UserID) (ScoreRecord, error)
	History(ctx context.Context, userID UserID, limit int) ([]ScoreRecord, error)
	// Top returns the latest record of each user ordered by overall score, highest first.
	Top(ctx context.Context, limit, offset int) ([]ScoreRecord, error)
}

// ObligationScheduleProvider supplies today's obligation times for a location.
type ObligationScheduleProvider interface {
	ScheduleForToday(ctx context.Context, location Location, now time.Time) (ObligationSchedule, error)
}
