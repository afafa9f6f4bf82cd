package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/elgomatiae/muslim-space-sub000/internal/domain"
	"github.com/elgomatiae/muslim-space-sub000/internal/infrastructure/logging"
)

// periodReset applies the daily and weekly goal resets. scoring cycles and
// goal edits both run it under the user lock, so progress is never written
// into a period that already ended.
type periodReset struct {
	goalRepo   domain.GoalRepository
	markerRepo domain.ResetMarkerRepository
	uow        UnitOfWork
	config     ScoringConfig
	logger     *logging.Logger
}

// marker reads the stored marker. users that were never reset get the zero marker.
func (p periodReset) marker(ctx context.Context, userID domain.UserID) (domain.ResetMarker, error) {
	marker, err := p.markerRepo.Get(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ResetMarker{}, nil
	}
	return marker, err
}

// calendar resolves the zone for one call: the requested zone when it loads,
// else the zone the marker remembers, else the configured default.
func (p periodReset) calendar(userID domain.UserID, requested string, marker domain.ResetMarker) domain.Calendar {
	cal, ok := p.config.calendarFor(requested, marker.TimeZone)
	if !ok {
		p.logger.Warn("unknown time zone, using the remembered one",
			"user_id", userID.String(),
			"time_zone", requested,
			"remembered", marker.TimeZone,
		)
	}
	return cal
}

// apply zeroes the periods that ended and saves the zeroed records with the
// new marker in one unit of work. on a save error the zeroed records are
// still returned, they are what the current period looks like.
func (p periodReset) apply(
	ctx context.Context,
	userID domain.UserID,
	records map[domain.Category]domain.GoalRecord,
	marker domain.ResetMarker,
	now time.Time,
	cal domain.Calendar,
) (map[domain.Category]domain.GoalRecord, domain.ResetResult, error) {
	reset, next, result := domain.ApplyPeriodicReset(records, marker, now, cal)
	if !result.NeedsSave() {
		return reset, result, nil
	}

	err := RunInTransaction(ctx, p.uow, func(txCtx context.Context) error {
		if result.Changed() {
			for _, c := range domain.AllCategories() {
				record, ok := reset[c]
				if !ok {
					continue
				}
				if err := p.goalRepo.Save(txCtx, userID, record); err != nil {
					return fmt.Errorf("saving %s goals: %w", c, err)
				}
			}
		}
		return p.markerRepo.Save(txCtx, userID, next)
	})
	if err != nil {
		p.logger.Error("periodic reset not persisted",
			"user_id", userID.String(),
			"daily", result.Daily,
			"weekly", result.Weekly,
			"error", err.Error(),
		)
		return reset, result, err
	}

	if result.Changed() {
		p.logger.Info("periodic reset applied",
			"user_id", userID.String(),
			"daily", result.Daily,
			"weekly", result.Weekly,
			"time_zone", next.TimeZone,
		)
	}
	return reset, result, nil
}
