package application

import (
	"context"
	"sync"
	"time"

	"github.com/elgomatiae/muslim-space-sub000/internal/domain"
)

// stubSchedule answers every lookup with fn.
type stubSchedule func(ctx context.Context, loc domain.Location, now time.Time) (domain.ObligationSchedule, error)

func (s stubSchedule) ScheduleForToday(ctx context.Context, loc domain.Location, now time.Time) (domain.ObligationSchedule, error) {
	return s(ctx, loc, now)
}

// passedAt returns a schedule whose first n prayers are already past at now.
func passedAt(n int) stubSchedule {
	return func(_ context.Context, _ domain.Location, now time.Time) (domain.ObligationSchedule, error) {
		var schedule domain.ObligationSchedule
		for i, name := range domain.StandardObligations() {
			at := now.Add(time.Duration(i-n+1) * time.Hour)
			if i < n {
				at = now.Add(-time.Duration(n-i) * time.Hour)
			}
			schedule = append(schedule, domain.Obligation{Name: name, At: at})
		}
		return schedule, nil
	}
}

type failingGoals struct {
	domain.GoalRepository
	getErr  error
	saveErr error
}

func (f failingGoals) Get(ctx context.Context, userID domain.UserID, c domain.Category) (domain.GoalRecord, error) {
	if f.getErr != nil {
		return domain.GoalRecord{}, f.getErr
	}
	return f.GoalRepository.Get(ctx, userID, c)
}

func (f failingGoals) Save(ctx context.Context, userID domain.UserID, record domain.GoalRecord) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	return f.GoalRepository.Save(ctx, userID, record)
}

type failingMomentum struct {
	domain.MomentumRepository
	getErr    error
	deleteErr error
}

func (f failingMomentum) Get(ctx context.Context, userID domain.UserID) (domain.MomentumState, error) {
	if f.getErr != nil {
		return domain.MomentumState{}, f.getErr
	}
	return f.MomentumRepository.Get(ctx, userID)
}

func (f failingMomentum) Delete(ctx context.Context, userID domain.UserID) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.MomentumRepository.Delete(ctx, userID)
}

type failingMarkers struct {
	domain.ResetMarkerRepository
	getErr error
}

func (f failingMarkers) Get(ctx context.Context, userID domain.UserID) (domain.ResetMarker, error) {
	if f.getErr != nil {
		return domain.ResetMarker{}, f.getErr
	}
	return f.ResetMarkerRepository.Get(ctx, userID)
}

type failingScores struct {
	domain.ScoreRepository
	saveErr error
	readErr error
}

func (f failingScores) Save(ctx context.Context, record domain.ScoreRecord) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	return f.ScoreRepository.Save(ctx, record)
}

func (f failingScores) Latest(ctx context.Context, userID domain.UserID) (domain.ScoreRecord, error) {
	if f.readErr != nil {
		return domain.ScoreRecord{}, f.readErr
	}
	return f.ScoreRepository.Latest(ctx, userID)
}

func (f failingScores) Top(ctx context.Context, limit, offset int) ([]domain.ScoreRecord, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.ScoreRepository.Top(ctx, limit, offset)
}

type recordingLeaderboard struct {
	mu     sync.Mutex
	scores map[string]float64
	err    error
}

func (r *recordingLeaderboard) UpdateLeaderboardScore(_ context.Context, userID string, overall float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if r.scores == nil {
		r.scores = make(map[string]float64)
	}
	r.scores[userID] = overall
	return nil
}

type recordingNotifier struct {
	mu        sync.Mutex
	crossings []domain.MilestoneCrossing
}

func (r *recordingNotifier) NotifyMilestone(_ context.Context, c domain.MilestoneCrossing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.crossings = append(r.crossings, c)
	return nil
}

func (r *recordingNotifier) milestones() []domain.Percentage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Percentage, 0, len(r.crossings))
	for _, c := range r.crossings {
		out = append(out, c.Milestone)
	}
	return out
}

type recordingMetrics struct {
	mu        sync.Mutex
	statuses  []string
	fallbacks []string
	phases    []string
}

func (m *recordingMetrics) RecordScoringCycle(_ float64, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, status)
}

func (m *recordingMetrics) RecordFallback(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallbacks = append(m.fallbacks, kind)
}

func (m *recordingMetrics) RecordMomentumPhase(phase string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.phases = append(m.phases, phase)
}

// countingUoW tracks transaction boundaries without a database.
type countingUoW struct {
	begins, commits, rollbacks int
	committed                  bool
}

type uowKey struct{}

func (u *countingUoW) Begin(ctx context.Context) (context.Context, error) {
	u.begins++
	u.committed = false
	return context.WithValue(ctx, uowKey{}, true), nil
}

func (u *countingUoW) Commit(context.Context) error {
	u.commits++
	u.committed = true
	return nil
}

func (u *countingUoW) Rollback(context.Context) error {
	if !u.committed {
		u.rollbacks++
	}
	return nil
}
