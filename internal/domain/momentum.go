package domain

import (
	"errors"
	"math"
	"time"
)

// MomentumConfig holds the tunables of the momentum/decay engine.
type MomentumConfig struct {
	// ActiveWindow is how long after the last activity a new activity still
	// continues the streak rather than counting as a return.
	ActiveWindow time.Duration

	// GracePeriod is the inactivity window during which no decay applies.
	GracePeriod time.Duration

	// BuildRate is added to the multiplier on every streak-continuing activity.
	BuildRate float64

	// ReturnPenaltyPerDay is removed from the multiplier per whole day missed.
	ReturnPenaltyPerDay float64

	MinMultiplier float64
	MaxMultiplier float64

	// BaseDecayPerDay is the decay in percent per inactive day past the grace period.
	BaseDecayPerDay float64

	// MaxDecayPerDay caps the total decay percentage.
	MaxDecayPerDay float64

	// ActiveBlendWeight is the share of the fresh score when new activity was seen.
	ActiveBlendWeight float64

	// IdleBlendWeight is the share of the fresh score otherwise.
	IdleBlendWeight float64

	// ScoreFloor is the lowest final score a category can read.
	ScoreFloor Percentage
}

// DefaultMomentumConfig returns the reference tuning.
func DefaultMomentumConfig() MomentumConfig {
	return MomentumConfig{
		ActiveWindow:        36 * time.Hour,
		GracePeriod:         20 * time.Hour,
		BuildRate:           0.02,
		ReturnPenaltyPerDay: 0.05,
		MinMultiplier:       1.0,
		MaxMultiplier:       1.3,
		BaseDecayPerDay:     5,
		MaxDecayPerDay:      25,
		ActiveBlendWeight:   0.7,
		IdleBlendWeight:     0.5,
		ScoreFloor:          0,
	}
}

var (
	ErrMomentumWindow     = errors.New("active window and grace period must be positive")
	ErrMomentumMultiplier = errors.New("multiplier bounds must satisfy 1.0 <= min <= max <= 1.3")
	ErrMomentumRate       = errors.New("build rate, return penalty and decay rates must be non-negative")
	ErrMomentumDecayCap   = errors.New("max decay must be at most 100 percent")
	ErrMomentumBlend      = errors.New("blend weights must be within [0,1]")
	ErrMomentumFloor      = errors.New("score floor must be within [0,100]")
)

// Validate checks the config against the engine's invariants.
func (c MomentumConfig) Validate() error {
	switch {
	case c.ActiveWindow <= 0 || c.GracePeriod <= 0:
		return ErrMomentumWindow
	case c.MinMultiplier < 1.0 || c.MaxMultiplier > 1.3 || c.MinMultiplier > c.MaxMultiplier:
		return ErrMomentumMultiplier
	case c.BuildRate < 0 || c.ReturnPenaltyPerDay < 0 || c.BaseDecayPerDay < 0 || c.MaxDecayPerDay < 0:
		return ErrMomentumRate
	case c.MaxDecayPerDay > 100:
		return ErrMomentumDecayCap
	case c.ActiveBlendWeight < 0 || c.ActiveBlendWeight > 1 || c.IdleBlendWeight < 0 || c.IdleBlendWeight > 1:
		return ErrMomentumBlend
	case c.ScoreFloor < MinPercentage || c.ScoreFloor > MaxPercentage:
		return ErrMomentumFloor
	}
	return nil
}

// MomentumState is the persisted, per-user history the engine blends against.
type MomentumState struct {
	LastActivityAt        time.Time
	ConsecutiveActiveDays int
	Multiplier            float64
	LastFinalScores       CategoryScores

	// LastFreshScores and LastEvaluatedAt identify the previous invocation,
	// so re-running it with the same inputs is a no-op.
	LastFreshScores CategoryScores
	LastEvaluatedAt time.Time
}

// FreshMomentumState is the state of a user seen for the first time.
func FreshMomentumState(now time.Time) MomentumState {
	return MomentumState{
		LastActivityAt: now,
		Multiplier:     1.0,
	}
}

// MomentumPhase names the branch the engine took. derived each call, never stored.
type MomentumPhase string

const (
	PhaseBuilding  MomentumPhase = "building"
	PhaseReturning MomentumPhase = "returning"
	PhaseIdle      MomentumPhase = "idle"
	PhaseDecaying  MomentumPhase = "decaying"
	PhaseUnchanged MomentumPhase = "unchanged"
)

// MomentumResult is the output of one engine evaluation.
type MomentumResult struct {
	State       MomentumState
	Final       CategoryScores
	Phase       MomentumPhase
	DecayFactor float64
}

// AdvanceMomentum blends fresh category scores with the stored history,
// applies inactivity decay and updates the momentum multiplier.
// this is a pure function: now is supplied by the caller.
// the streak counts calendar days in cal, so it grows at most once per local day.
//
// phases:
//   - building: new activity within the active window. streak and multiplier grow.
//   - returning: new activity after the active window. streak restarts at 1,
//     multiplier drops by ReturnPenaltyPerDay per whole day missed.
//   - idle: no new activity within the grace period. nothing changes.
//   - decaying: no new activity past the grace period. scores decay.
//
// per category: final = clamp(round(blend * multiplier * decay), floor, 100)
// where blend = fresh*w + last*(1-w) and w depends on whether activity was seen.
func AdvanceMomentum(state MomentumState, fresh CategoryScores, now time.Time, cal Calendar, cfg MomentumConfig) MomentumResult {
	state.Multiplier = clampMultiplier(state.Multiplier, cfg)

	if !state.LastEvaluatedAt.IsZero() && now.Equal(state.LastEvaluatedAt) && fresh == state.LastFreshScores {
		return MomentumResult{
			State:       state,
			Final:       state.LastFinalScores,
			Phase:       PhaseUnchanged,
			DecayFactor: 1,
		}
	}

	elapsed := now.Sub(state.LastActivityAt)
	if elapsed < 0 {
		elapsed = 0
	}

	active := HasNewActivity(fresh, state.LastFinalScores)
	next := state
	decay := 1.0

	var phase MomentumPhase
	switch {
	case active && elapsed <= cfg.ActiveWindow:
		phase = PhaseBuilding
		if next.ConsecutiveActiveDays == 0 || !cal.Day(state.LastActivityAt).Equal(cal.Day(now)) {
			next.ConsecutiveActiveDays++
		}
		next.Multiplier = clampMultiplier(state.Multiplier+cfg.BuildRate, cfg)
		next.LastActivityAt = now

	case active:
		phase = PhaseReturning
		daysMissed := math.Floor(elapsed.Hours() / 24)
		next.ConsecutiveActiveDays = 1
		next.Multiplier = clampMultiplier(state.Multiplier-cfg.ReturnPenaltyPerDay*daysMissed, cfg)
		next.LastActivityAt = now

	default:
		decay = DecayFactor(elapsed, cfg)
		phase = PhaseIdle
		if decay < 1 {
			phase = PhaseDecaying
		}
	}

	blendWeight := cfg.IdleBlendWeight
	if active {
		blendWeight = cfg.ActiveBlendWeight
	}

	var final CategoryScores
	for _, c := range AllCategories() {
		blended := fresh.Get(c).Float()*blendWeight + state.LastFinalScores.Get(c).Float()*(1-blendWeight)
		score := NewPercentage(blended * next.Multiplier * decay)
		if score < cfg.ScoreFloor {
			score = cfg.ScoreFloor
		}
		final = final.Set(c, score)
	}

	next.LastFinalScores = final
	next.LastFreshScores = fresh
	next.LastEvaluatedAt = now

	return MomentumResult{
		State:       next,
		Final:       final,
		Phase:       phase,
		DecayFactor: decay,
	}
}

// HasNewActivity reports whether any fresh score exceeds the previous final score.
func HasNewActivity(fresh, lastFinal CategoryScores) bool {
	for _, c := range AllCategories() {
		if fresh.Get(c) > lastFinal.Get(c) {
			return true
		}
	}
	return false
}

// DecayFactor returns the multiplicative decay for a given inactivity span.
// 1.0 within the grace period, then 1 - min(max, base*days)/100 where days
// counts fractional days past the grace period.
func DecayFactor(elapsed time.Duration, cfg MomentumConfig) float64 {
	if elapsed <= cfg.GracePeriod {
		return 1
	}
	decayDays := (elapsed - cfg.GracePeriod).Hours() / 24
	percent := math.Min(cfg.MaxDecayPerDay, cfg.BaseDecayPerDay*decayDays)
	return 1 - percent/100
}

func clampMultiplier(m float64, cfg MomentumConfig) float64 {
	if math.IsNaN(m) || m < cfg.MinMultiplier {
		return cfg.MinMultiplier
	}
	if m > cfg.MaxMultiplier {
		return cfg.MaxMultiplier
	}
	return m
}
