package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/elgomatiae/muslim-space-sub000/internal/domain"
	"github.com/elgomatiae/muslim-space-sub000/internal/infrastructure/logging"
)

// TimeProvider abstracts time acquisition for testability.
// inject a custom implementation to control time in tests.
type TimeProvider func() time.Time

// RealTime returns the current UTC time.
// use this in production.
func RealTime() time.Time {
	return time.Now().UTC()
}

// LeaderboardUpdater abstracts the cache layer for overall score rankings.
type LeaderboardUpdater interface {
	UpdateLeaderboardScore(ctx context.Context, userID string, overall float64) error
}

// ScoringMetrics receives per-cycle measurements.
type ScoringMetrics interface {
	RecordScoringCycle(durationSeconds float64, status string)
	RecordFallback(kind string)
	RecordMomentumPhase(phase string)
}

// ComputeScoresInput identifies whose scores to compute and where they are.
type ComputeScoresInput struct {
	UserID   string
	Location domain.Location
}

// ComputeScoresOutput is the typed result of a scoring cycle.
// Record.Status tells a normal computation from one that used fallbacks.
type ComputeScoresOutput struct {
	Record                domain.ScoreRecord
	Phase                 domain.MomentumPhase
	Multiplier            float64
	ConsecutiveActiveDays int
	DecayFactor           float64
	DueObligations        int
	Reset                 domain.ResetResult
	Persisted             bool
}

// ComputeScoresUseCase runs one scoring cycle for a user:
// reset → category scores → obligation window → momentum/decay → overall → persist.
type ComputeScoresUseCase struct {
	goalRepo     domain.GoalRepository
	momentumRepo domain.MomentumRepository
	markerRepo   domain.ResetMarkerRepository
	scoreRepo    domain.ScoreRepository
	schedule     domain.ObligationScheduleProvider
	locker       UserLocker
	uow          UnitOfWork
	leaderboard  LeaderboardUpdater
	notifier     domain.NotificationService
	metrics      ScoringMetrics
	config       ScoringConfig
	timeProvider TimeProvider
	logger       *logging.Logger
}

// NewComputeScoresUseCase creates a new ComputeScoresUseCase.
// the in-process user lock is always on; WithLocker replaces it.
func NewComputeScoresUseCase(
	goalRepo domain.GoalRepository,
	momentumRepo domain.MomentumRepository,
	markerRepo domain.ResetMarkerRepository,
	scoreRepo domain.ScoreRepository,
	schedule domain.ObligationScheduleProvider,
	config ScoringConfig,
	logger *logging.Logger,
) *ComputeScoresUseCase {
	return &ComputeScoresUseCase{
		goalRepo:     goalRepo,
		momentumRepo: momentumRepo,
		markerRepo:   markerRepo,
		scoreRepo:    scoreRepo,
		schedule:     schedule,
		locker:       NewLocalUserLocker(),
		config:       config,
		timeProvider: RealTime,
		logger:       logger.WithComponent("compute_scores"),
	}
}

// WithTimeProvider sets a custom time provider for testing.
func (uc *ComputeScoresUseCase) WithTimeProvider(tp TimeProvider) *ComputeScoresUseCase {
	uc.timeProvider = tp
	return uc
}

// WithLocker replaces the per-user lock.
func (uc *ComputeScoresUseCase) WithLocker(l UserLocker) *ComputeScoresUseCase {
	uc.locker = l
	return uc
}

// WithUnitOfWork makes momentum and score writes atomic.
func (uc *ComputeScoresUseCase) WithUnitOfWork(uow UnitOfWork) *ComputeScoresUseCase {
	uc.uow = uow
	return uc
}

// WithLeaderboard sets the leaderboard updater (redis cache).
func (uc *ComputeScoresUseCase) WithLeaderboard(lb LeaderboardUpdater) *ComputeScoresUseCase {
	uc.leaderboard = lb
	return uc
}

// WithNotifier sets the milestone notifier (webhook dispatcher).
func (uc *ComputeScoresUseCase) WithNotifier(n domain.NotificationService) *ComputeScoresUseCase {
	uc.notifier = n
	return uc
}

// WithMetrics sets the metrics sink.
func (uc *ComputeScoresUseCase) WithMetrics(m ScoringMetrics) *ComputeScoresUseCase {
	uc.metrics = m
	return uc
}

// Execute runs a full scoring cycle.
// storage and provider failures never surface here: they degrade to documented
// defaults and are listed in Record.Fallbacks. errors are returned only for
// invalid input and for failing to acquire the user lock.
func (uc *ComputeScoresUseCase) Execute(ctx context.Context, input ComputeScoresInput) (*ComputeScoresOutput, error) {
	userID, err := domain.ParseUserID(input.UserID)
	if err != nil {
		uc.logger.Warn("scoring rejected: invalid user id",
			"user_id", input.UserID,
			"reason", err.Error(),
		)
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	unlock, err := uc.locker.Lock(ctx, userID)
	if err != nil {
		uc.logger.Warn("scoring aborted: user lock not acquired",
			"user_id", userID.String(),
			"error", err.Error(),
		)
		return nil, fmt.Errorf("acquiring user lock: %w", err)
	}
	defer unlock()

	start := time.Now()
	now := uc.timeProvider()
	cycle := &scoringCycle{userID: userID}

	periods := uc.periods()
	marker, markerOK := uc.loadMarker(ctx, cycle, periods)
	cal := periods.calendar(userID, input.Location.TimeZone, marker)

	records := uc.loadGoals(ctx, cycle)
	reset := domain.ResetResult{}
	if markerOK {
		records, reset = uc.applyReset(ctx, cycle, periods, records, marker, now, cal)
	}
	due := uc.resolveDue(ctx, cycle, input.Location, now)

	fresh := domain.ScoreAll(records, due, uc.config.Policy)

	state := uc.loadMomentum(ctx, cycle, now)
	previousOverall := domain.Overall(state.LastFinalScores)
	result := domain.AdvanceMomentum(state, fresh, now, cal, uc.config.Momentum)

	record := domain.ScoreRecord{
		UserID:     userID,
		Fresh:      fresh,
		Final:      result.Final,
		Overall:    domain.Overall(result.Final),
		ComputedAt: now,
		Status:     domain.StatusFor(cycle.fallbacks),
		Fallbacks:  append([]domain.Fallback(nil), cycle.fallbacks...),
	}

	persisted := true
	if err := uc.persist(ctx, userID, result.State, record); err != nil {
		persisted = false
		cycle.fallback(domain.FallbackPersistFailed)
		record.Fallbacks = append([]domain.Fallback(nil), cycle.fallbacks...)
		uc.logger.Error("scores not persisted, returning in-memory result",
			"user_id", userID.String(),
			"error", err.Error(),
		)
	}

	if persisted {
		uc.syncLeaderboard(ctx, record)
		uc.notifyMilestones(ctx, record, previousOverall)
	}

	uc.recordMetrics(time.Since(start), record, result.Phase, cycle.fallbacks)

	uc.logger.Info("scores computed",
		"user_id", userID.String(),
		"worship", record.Final.Worship.Int(),
		"knowledge", record.Final.Knowledge.Int(),
		"wellbeing", record.Final.Wellbeing.Int(),
		"overall", record.Overall.Int(),
		"phase", string(result.Phase),
		"multiplier", result.State.Multiplier,
		"due_obligations", due.Total,
		"status", string(record.Status),
		"fallback_count", len(record.Fallbacks),
	)

	return &ComputeScoresOutput{
		Record:                record,
		Phase:                 result.Phase,
		Multiplier:            result.State.Multiplier,
		ConsecutiveActiveDays: result.State.ConsecutiveActiveDays,
		DecayFactor:           result.DecayFactor,
		DueObligations:        due.Total,
		Reset:                 reset,
		Persisted:             persisted,
	}, nil
}

// scoringCycle collects the fallbacks taken during one Execute call.
type scoringCycle struct {
	userID    domain.UserID
	fallbacks []domain.Fallback
}

func (c *scoringCycle) fallback(f domain.Fallback) {
	for _, existing := range c.fallbacks {
		if existing == f {
			return
		}
	}
	c.fallbacks = append(c.fallbacks, f)
}

// loadGoals reads every category's record. a missing record means the user
// never set goals; an unreadable one is replaced by the category defaults.
func (uc *ComputeScoresUseCase) loadGoals(ctx context.Context, cycle *scoringCycle) map[domain.Category]domain.GoalRecord {
	records := make(map[domain.Category]domain.GoalRecord, 3)

	for _, c := range domain.AllCategories() {
		record, err := uc.goalRepo.Get(ctx, cycle.userID, c)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			record = domain.DefaultGoalRecord(c)
		case err != nil:
			cycle.fallback(domain.FallbackGoalsDefault)
			uc.logger.Warn("goal record unreadable, using defaults",
				"user_id", cycle.userID.String(),
				"category", c.String(),
				"error", err.Error(),
			)
			record = domain.DefaultGoalRecord(c)
		}

		record.Category = c
		normalized, invalid := record.Normalize()
		if len(invalid) > 0 {
			cycle.fallback(domain.FallbackInvalidGoals)
			uc.logger.Warn("malformed goal components treated as disabled",
				"user_id", cycle.userID.String(),
				"category", c.String(),
				"components", invalid,
			)
		}
		records[c] = normalized
	}

	return records
}

func (uc *ComputeScoresUseCase) periods() periodReset {
	return periodReset{
		goalRepo:   uc.goalRepo,
		markerRepo: uc.markerRepo,
		uow:        uc.uow,
		config:     uc.config,
		logger:     uc.logger,
	}
}

// loadMarker reads the reset marker. ok is false when it cannot be read, in
// which case nothing is zeroed so progress is never wiped on a storage hiccup.
func (uc *ComputeScoresUseCase) loadMarker(ctx context.Context, cycle *scoringCycle, periods periodReset) (domain.ResetMarker, bool) {
	marker, err := periods.marker(ctx, cycle.userID)
	if err != nil {
		cycle.fallback(domain.FallbackMarkerUnavailable)
		uc.logger.Warn("reset marker unreadable, skipping periodic reset",
			"user_id", cycle.userID.String(),
			"error", err.Error(),
		)
		return domain.ResetMarker{}, false
	}
	return marker, true
}

// applyReset zeroes counters whose period ended and persists the result.
func (uc *ComputeScoresUseCase) applyReset(
	ctx context.Context,
	cycle *scoringCycle,
	periods periodReset,
	records map[domain.Category]domain.GoalRecord,
	marker domain.ResetMarker,
	now time.Time,
	cal domain.Calendar,
) (map[domain.Category]domain.GoalRecord, domain.ResetResult) {
	reset, result, err := periods.apply(ctx, cycle.userID, records, marker, now, cal)
	if err != nil {
		// the zeroed state is still what this cycle scores
		cycle.fallback(domain.FallbackPersistFailed)
	}
	return reset, result
}

// resolveDue asks the schedule provider which obligations are due.
// any failure, timeout or empty schedule means every obligation counts.
func (uc *ComputeScoresUseCase) resolveDue(ctx context.Context, cycle *scoringCycle, location domain.Location, now time.Time) domain.DueSet {
	if uc.schedule == nil || location.IsZero() {
		cycle.fallback(domain.FallbackScheduleUnavailable)
		uc.logger.Debug("no schedule source, treating all obligations as due",
			"user_id", cycle.userID.String(),
			"has_provider", uc.schedule != nil,
		)
		return domain.AllObligationsDue()
	}

	fetchCtx := ctx
	if uc.config.ScheduleTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, uc.config.ScheduleTimeout)
		defer cancel()
	}

	schedule, err := uc.schedule.ScheduleForToday(fetchCtx, location, now)
	if err == nil && len(schedule) == 0 {
		err = fmt.Errorf("%w: empty schedule", domain.ErrProviderUnavailable)
	}
	if err != nil {
		cycle.fallback(domain.FallbackScheduleUnavailable)
		uc.logger.Warn("obligation schedule unavailable, treating all as due",
			"user_id", cycle.userID.String(),
			"timeout", uc.config.ScheduleTimeout.String(),
			"error", err.Error(),
		)
		return domain.AllObligationsDue()
	}

	return domain.DueObligations(now, schedule)
}

// loadMomentum reads the user's momentum state, substituting a fresh state
// for new users and unreadable rows.
func (uc *ComputeScoresUseCase) loadMomentum(ctx context.Context, cycle *scoringCycle, now time.Time) domain.MomentumState {
	state, err := uc.momentumRepo.Get(ctx, cycle.userID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return domain.FreshMomentumState(now)
	case err != nil:
		cycle.fallback(domain.FallbackMomentumDefault)
		uc.logger.Warn("momentum state unreadable, starting fresh",
			"user_id", cycle.userID.String(),
			"error", err.Error(),
		)
		return domain.FreshMomentumState(now)
	}
	return state
}

// persist writes the momentum state and the score record atomically.
func (uc *ComputeScoresUseCase) persist(ctx context.Context, userID domain.UserID, state domain.MomentumState, record domain.ScoreRecord) error {
	err := RunInTransaction(ctx, uc.uow, func(txCtx context.Context) error {
		if err := uc.momentumRepo.Save(txCtx, userID, state); err != nil {
			return fmt.Errorf("saving momentum: %w", err)
		}
		if err := uc.scoreRepo.Save(txCtx, record); err != nil {
			return fmt.Errorf("saving scores: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageWrite, err)
	}
	return nil
}

// syncLeaderboard pushes the overall score to the cache (best-effort).
func (uc *ComputeScoresUseCase) syncLeaderboard(ctx context.Context, record domain.ScoreRecord) {
	if uc.leaderboard == nil {
		return
	}
	if err := uc.leaderboard.UpdateLeaderboardScore(ctx, record.UserID.String(), record.Overall.Float()); err != nil {
		// log but don't fail - postgres is the source of truth
		uc.logger.Warn("leaderboard sync failed",
			"user_id", record.UserID.String(),
			"overall", record.Overall.Int(),
			"error", err.Error(),
		)
	}
}

// notifyMilestones reports overall-score milestones to the achievement sink.
// scores computed from fallbacks are not trusted for unlocks.
func (uc *ComputeScoresUseCase) notifyMilestones(ctx context.Context, record domain.ScoreRecord, previousOverall domain.Percentage) {
	if uc.notifier == nil {
		return
	}

	crossed := uc.config.Milestones.Crossed(previousOverall, record.Overall)
	if len(crossed) == 0 {
		return
	}
	if record.Status != domain.ComputeStatusComputed {
		uc.logger.Info("milestones withheld: scores used fallbacks",
			"user_id", record.UserID.String(),
			"milestones", len(crossed),
		)
		return
	}

	for _, milestone := range crossed {
		err := uc.notifier.NotifyMilestone(ctx, domain.MilestoneCrossing{
			UserID:     record.UserID,
			Milestone:  milestone,
			OldOverall: previousOverall,
			NewOverall: record.Overall,
			Status:     record.Status,
			Timestamp:  record.ComputedAt,
		})
		if err != nil {
			uc.logger.Warn("milestone notification failed",
				"user_id", record.UserID.String(),
				"milestone", milestone.Int(),
				"error", err.Error(),
			)
			continue
		}
		uc.logger.Info("milestone reached",
			"user_id", record.UserID.String(),
			"milestone", milestone.Int(),
		)
	}
}

func (uc *ComputeScoresUseCase) recordMetrics(duration time.Duration, record domain.ScoreRecord, phase domain.MomentumPhase, fallbacks []domain.Fallback) {
	if uc.metrics == nil {
		return
	}
	uc.metrics.RecordScoringCycle(duration.Seconds(), string(record.Status))
	uc.metrics.RecordMomentumPhase(string(phase))
	for _, f := range fallbacks {
		uc.metrics.RecordFallback(string(f))
	}
}
