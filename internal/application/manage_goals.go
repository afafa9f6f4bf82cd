package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/elgomatiae/muslim-space-sub000/internal/domain"
	"github.com/elgomatiae/muslim-space-sub000/internal/infrastructure/logging"
)

// GoalComponentInput is one component update sent by a client.
type GoalComponentInput struct {
	Key       string
	Target    float64
	Completed float64
}

// UpdateGoalsInput replaces the listed components of one category.
// components not listed keep their stored values.
type UpdateGoalsInput struct {
	UserID               string
	Category             string
	Components           []GoalComponentInput
	CompletedObligations []string
}

// ManageGoalsUseCase reads and writes goal records.
// every call first applies the daily and weekly resets, so edits always land
// in the current period.
type ManageGoalsUseCase struct {
	goalRepo     domain.GoalRepository
	markerRepo   domain.ResetMarkerRepository
	uow          UnitOfWork
	locker       UserLocker
	config       ScoringConfig
	timeProvider TimeProvider
	logger       *logging.Logger
}

// NewManageGoalsUseCase creates a new ManageGoalsUseCase.
func NewManageGoalsUseCase(
	goalRepo domain.GoalRepository,
	markerRepo domain.ResetMarkerRepository,
	config ScoringConfig,
	logger *logging.Logger,
) *ManageGoalsUseCase {
	return &ManageGoalsUseCase{
		goalRepo:     goalRepo,
		markerRepo:   markerRepo,
		locker:       NewLocalUserLocker(),
		config:       config,
		timeProvider: RealTime,
		logger:       logger.WithComponent("manage_goals"),
	}
}

// WithLocker shares the scoring lock so goal edits never race a reset.
func (uc *ManageGoalsUseCase) WithLocker(l UserLocker) *ManageGoalsUseCase {
	uc.locker = l
	return uc
}

// WithTimeProvider sets a custom time provider for testing.
func (uc *ManageGoalsUseCase) WithTimeProvider(tp TimeProvider) *ManageGoalsUseCase {
	uc.timeProvider = tp
	return uc
}

// WithUnitOfWork makes reset writes atomic.
func (uc *ManageGoalsUseCase) WithUnitOfWork(uow UnitOfWork) *ManageGoalsUseCase {
	uc.uow = uow
	return uc
}

// List returns the user's records for every category, defaults where none exist.
func (uc *ManageGoalsUseCase) List(ctx context.Context, rawUserID string) ([]domain.GoalRecord, error) {
	userID, err := domain.ParseUserID(rawUserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	unlock, err := uc.locker.Lock(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("acquiring user lock: %w", err)
	}
	defer unlock()

	current, err := uc.current(ctx, userID, false)
	if err != nil {
		return nil, err
	}

	records := make([]domain.GoalRecord, 0, len(current))
	for _, c := range domain.AllCategories() {
		records = append(records, current[c])
	}
	return records, nil
}

// Get returns one category's record.
func (uc *ManageGoalsUseCase) Get(ctx context.Context, rawUserID, rawCategory string) (domain.GoalRecord, error) {
	userID, err := domain.ParseUserID(rawUserID)
	if err != nil {
		return domain.GoalRecord{}, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	category, err := domain.ParseCategory(rawCategory)
	if err != nil {
		return domain.GoalRecord{}, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	unlock, err := uc.locker.Lock(ctx, userID)
	if err != nil {
		return domain.GoalRecord{}, fmt.Errorf("acquiring user lock: %w", err)
	}
	defer unlock()

	current, err := uc.current(ctx, userID, false)
	if err != nil {
		return domain.GoalRecord{}, err
	}
	return current[category], nil
}

// current loads all three records and applies any pending reset. the caller
// holds the user lock. all categories are reset together because they share
// one marker. with strict unset, marker and reset-write failures are logged
// and the best available records are served.
func (uc *ManageGoalsUseCase) current(ctx context.Context, userID domain.UserID, strict bool) (map[domain.Category]domain.GoalRecord, error) {
	records := make(map[domain.Category]domain.GoalRecord, 3)
	for _, c := range domain.AllCategories() {
		record, err := uc.get(ctx, userID, c)
		if err != nil {
			return nil, err
		}
		records[c] = record
	}

	periods := periodReset{
		goalRepo:   uc.goalRepo,
		markerRepo: uc.markerRepo,
		uow:        uc.uow,
		config:     uc.config,
		logger:     uc.logger,
	}

	marker, err := periods.marker(ctx, userID)
	if err != nil {
		if strict {
			return nil, fmt.Errorf("%w: reading reset marker: %v", domain.ErrStorageRead, err)
		}
		uc.logger.Warn("reset marker unreadable, serving stored goals",
			"user_id", userID.String(),
			"error", err.Error(),
		)
		return records, nil
	}

	cal := periods.calendar(userID, "", marker)
	reset, _, err := periods.apply(ctx, userID, records, marker, uc.timeProvider(), cal)
	if err != nil && strict {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageWrite, err)
	}
	return reset, nil
}

func (uc *ManageGoalsUseCase) get(ctx context.Context, userID domain.UserID, c domain.Category) (domain.GoalRecord, error) {
	record, err := uc.goalRepo.Get(ctx, userID, c)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.DefaultGoalRecord(c), nil
	}
	if err != nil {
		return domain.GoalRecord{}, fmt.Errorf("%w: %v", domain.ErrStorageRead, err)
	}
	record.Category = c
	normalized, _ := record.Normalize()
	return normalized, nil
}

// Update validates and merges component values into the stored record.
// unknown keys, obligations or invalid numbers reject the whole update.
func (uc *ManageGoalsUseCase) Update(ctx context.Context, input UpdateGoalsInput) (domain.GoalRecord, error) {
	userID, err := domain.ParseUserID(input.UserID)
	if err != nil {
		return domain.GoalRecord{}, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	category, err := domain.ParseCategory(input.Category)
	if err != nil {
		return domain.GoalRecord{}, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	for _, comp := range input.Components {
		if _, ok := domain.LookupComponent(category, comp.Key); !ok {
			return domain.GoalRecord{}, fmt.Errorf("%w: unknown %s component %q", domain.ErrInvalidInput, category, comp.Key)
		}
		g := domain.GoalComponent{Key: comp.Key, Target: comp.Target, Completed: comp.Completed}
		if err := g.Validate(); err != nil {
			return domain.GoalRecord{}, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
	}
	for _, name := range input.CompletedObligations {
		if !domain.IsStandardObligation(name) {
			return domain.GoalRecord{}, fmt.Errorf("%w: unknown obligation %q", domain.ErrInvalidInput, name)
		}
	}

	unlock, err := uc.locker.Lock(ctx, userID)
	if err != nil {
		return domain.GoalRecord{}, fmt.Errorf("acquiring user lock: %w", err)
	}
	defer unlock()

	current, err := uc.current(ctx, userID, true)
	if err != nil {
		return domain.GoalRecord{}, err
	}
	record := current[category].Clone()

	for _, comp := range input.Components {
		updated := domain.GoalComponent{Key: comp.Key, Target: comp.Target, Completed: comp.Completed}
		replaced := false
		for i := range record.Components {
			if record.Components[i].Key == comp.Key {
				record.Components[i] = updated
				replaced = true
				break
			}
		}
		if !replaced {
			record.Components = append(record.Components, updated)
		}
	}
	if input.CompletedObligations != nil {
		record.CompletedObligations = dedupeStrings(input.CompletedObligations)
	}

	if err := uc.goalRepo.Save(ctx, userID, record); err != nil {
		uc.logger.Error("goal update failed",
			"user_id", userID.String(),
			"category", category.String(),
			"error", err.Error(),
		)
		return domain.GoalRecord{}, fmt.Errorf("%w: %v", domain.ErrStorageWrite, err)
	}

	uc.logger.Info("goals updated",
		"user_id", userID.String(),
		"category", category.String(),
		"components", len(input.Components),
		"obligations", len(record.CompletedObligations),
	)
	return record, nil
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
