package application

import (
	"time"

	"github.com/elgomatiae/muslim-space-sub000/internal/domain"
)

// ScoringConfig bundles the tunables of a scoring cycle.
type ScoringConfig struct {
	Momentum domain.MomentumConfig
	Policy   domain.ScoringPolicy

	// WeekStart is the weekday on which weekly goals reset.
	WeekStart time.Weekday

	// DefaultTimeZone is used when the caller sends no usable time zone.
	DefaultTimeZone *time.Location

	// ScheduleTimeout bounds the obligation schedule fetch.
	// on timeout every obligation is treated as due.
	ScheduleTimeout time.Duration

	Milestones domain.MilestoneThresholds
}

// DefaultScoringConfig returns the reference configuration.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		Momentum:        domain.DefaultMomentumConfig(),
		Policy:          domain.PolicyExcludeDisabled,
		WeekStart:       time.Sunday,
		DefaultTimeZone: time.UTC,
		ScheduleTimeout: 3 * time.Second,
		Milestones:      domain.DefaultMilestoneThresholds(),
	}
}

// calendarFor resolves the user's calendar. the requested zone wins when it
// loads, then the remembered one, then DefaultTimeZone. ok is false when a
// requested zone was rejected.
func (c ScoringConfig) calendarFor(requested, remembered string) (domain.Calendar, bool) {
	cal := domain.Calendar{Location: c.DefaultTimeZone, WeekStart: c.WeekStart}
	if cal.Location == nil {
		cal.Location = time.UTC
	}

	ok := true
	if requested != "" {
		if loc, err := time.LoadLocation(requested); err == nil {
			cal.Location = loc
			return cal, true
		}
		ok = false
	}
	if remembered != "" {
		if loc, err := time.LoadLocation(remembered); err == nil {
			cal.Location = loc
		}
	}
	return cal, ok
}
