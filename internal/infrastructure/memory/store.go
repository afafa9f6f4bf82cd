// Package memory is a process-local storage backend for development runs
// and tests. nothing survives a restart.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/elgomatiae/muslim-space-sub000/internal/domain"
)

type goalKey struct {
	user     domain.UserID
	category domain.Category
}

// Store implements every scoring repository over maps guarded by one mutex.
type Store struct {
	mu       sync.RWMutex
	goals    map[goalKey]domain.GoalRecord
	momentum map[domain.UserID]domain.MomentumState
	markers  map[domain.UserID]domain.ResetMarker
	latest   map[domain.UserID]domain.ScoreRecord
	history  map[domain.UserID][]domain.ScoreRecord
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		goals:    make(map[goalKey]domain.GoalRecord),
		momentum: make(map[domain.UserID]domain.MomentumState),
		markers:  make(map[domain.UserID]domain.ResetMarker),
		latest:   make(map[domain.UserID]domain.ScoreRecord),
		history:  make(map[domain.UserID][]domain.ScoreRecord),
	}
}

// Goals returns the goal repository view.
func (s *Store) Goals() *GoalRepository { return &GoalRepository{s} }

// Momentum returns the momentum repository view.
func (s *Store) Momentum() *MomentumRepository { return &MomentumRepository{s} }

// Markers returns the reset marker repository view.
func (s *Store) Markers() *ResetMarkerRepository { return &ResetMarkerRepository{s} }

// Scores returns the score repository view.
func (s *Store) Scores() *ScoreRepository { return &ScoreRepository{s} }

// GoalRepository implements domain.GoalRepository.
type GoalRepository struct{ s *Store }

// Get returns a copy of the stored record.
func (r *GoalRepository) Get(_ context.Context, userID domain.UserID, category domain.Category) (domain.GoalRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	record, ok := r.s.goals[goalKey{userID, category}]
	if !ok {
		return domain.GoalRecord{}, domain.ErrNotFound
	}
	return record.Clone(), nil
}

// Save stores a copy of record.
func (r *GoalRepository) Save(_ context.Context, userID domain.UserID, record domain.GoalRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.goals[goalKey{userID, record.Category}] = record.Clone()
	return nil
}

// MomentumRepository implements domain.MomentumRepository.
type MomentumRepository struct{ s *Store }

// Get returns the stored state.
func (r *MomentumRepository) Get(_ context.Context, userID domain.UserID) (domain.MomentumState, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	state, ok := r.s.momentum[userID]
	if !ok {
		return domain.MomentumState{}, domain.ErrNotFound
	}
	return state, nil
}

// Save stores the state.
func (r *MomentumRepository) Save(_ context.Context, userID domain.UserID, state domain.MomentumState) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.momentum[userID] = state
	return nil
}

// Delete removes the state.
func (r *MomentumRepository) Delete(_ context.Context, userID domain.UserID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.momentum, userID)
	return nil
}

// ResetMarkerRepository implements domain.ResetMarkerRepository.
type ResetMarkerRepository struct{ s *Store }

// Get returns the stored marker.
func (r *ResetMarkerRepository) Get(_ context.Context, userID domain.UserID) (domain.ResetMarker, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	marker, ok := r.s.markers[userID]
	if !ok {
		return domain.ResetMarker{}, domain.ErrNotFound
	}
	return marker, nil
}

// Save stores the marker.
func (r *ResetMarkerRepository) Save(_ context.Context, userID domain.UserID, marker domain.ResetMarker) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.markers[userID] = marker
	return nil
}

// ScoreRepository implements domain.ScoreRepository.
type ScoreRepository struct{ s *Store }

// Save appends to the history and replaces the latest record.
func (r *ScoreRepository) Save(_ context.Context, record domain.ScoreRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	record.Fallbacks = append([]domain.Fallback(nil), record.Fallbacks...)
	r.s.history[record.UserID] = append(r.s.history[record.UserID], record)
	if current, ok := r.s.latest[record.UserID]; !ok || !record.ComputedAt.Before(current.ComputedAt) {
		r.s.latest[record.UserID] = record
	}
	return nil
}

// Latest returns the most recent record.
func (r *ScoreRepository) Latest(_ context.Context, userID domain.UserID) (domain.ScoreRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	record, ok := r.s.latest[userID]
	if !ok {
		return domain.ScoreRecord{}, domain.ErrNotFound
	}
	return record, nil
}

// History returns up to limit records, newest first.
func (r *ScoreRepository) History(_ context.Context, userID domain.UserID, limit int) ([]domain.ScoreRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	stored := r.s.history[userID]
	out := make([]domain.ScoreRecord, 0, min(limit, len(stored)))
	for i := len(stored) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, stored[i])
	}
	return out, nil
}

// Top returns latest records ordered by overall score, then recency.
func (r *ScoreRepository) Top(_ context.Context, limit, offset int) ([]domain.ScoreRecord, error) {
	r.s.mu.RLock()
	all := make([]domain.ScoreRecord, 0, len(r.s.latest))
	for _, record := range r.s.latest {
		all = append(all, record)
	}
	r.s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].Overall != all[j].Overall {
			return all[i].Overall > all[j].Overall
		}
		return all[i].ComputedAt.After(all[j].ComputedAt)
	})

	if offset >= len(all) {
		return []domain.ScoreRecord{}, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}
