package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/elgomatiae/muslim-space-sub000/internal/application"
	"github.com/elgomatiae/muslim-space-sub000/internal/domain"
)

// ScoringFile is the yaml tuning file. every field is optional,
// unset fields keep the reference values.
type ScoringFile struct {
	Momentum        MomentumFile   `yaml:"momentum"`
	Policy          string         `yaml:"policy"`
	WeekStart       string         `yaml:"week_start"`
	DefaultTimeZone string         `yaml:"default_time_zone"`
	ScheduleTimeout *time.Duration `yaml:"schedule_timeout"`
	Milestones      []int          `yaml:"milestones"`
}

// MomentumFile overrides momentum engine constants.
type MomentumFile struct {
	ActiveWindow        *time.Duration `yaml:"active_window"`
	GracePeriod         *time.Duration `yaml:"grace_period"`
	BuildRate           *float64       `yaml:"build_rate"`
	ReturnPenaltyPerDay *float64       `yaml:"return_penalty_per_day"`
	MinMultiplier       *float64       `yaml:"min_multiplier"`
	MaxMultiplier       *float64       `yaml:"max_multiplier"`
	BaseDecayPerDay     *float64       `yaml:"base_decay_per_day"`
	MaxDecay            *float64       `yaml:"max_decay"`
	ActiveBlendWeight   *float64       `yaml:"active_blend_weight"`
	IdleBlendWeight     *float64       `yaml:"idle_blend_weight"`
	ScoreFloor          *int           `yaml:"score_floor"`
}

// LoadScoring reads the tuning file at path. an empty path returns the defaults.
func LoadScoring(path string) (application.ScoringConfig, error) {
	if path == "" {
		return application.DefaultScoringConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return application.ScoringConfig{}, fmt.Errorf("load scoring config %q: %w", path, err)
	}
	return ParseScoring(data)
}

// ParseScoring decodes yaml tuning on top of the defaults and validates the result.
func ParseScoring(data []byte) (application.ScoringConfig, error) {
	var file ScoringFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return application.ScoringConfig{}, fmt.Errorf("parse scoring config: %w", err)
	}
	return file.Apply(application.DefaultScoringConfig())
}

// Apply overlays the file onto base.
func (f ScoringFile) Apply(base application.ScoringConfig) (application.ScoringConfig, error) {
	cfg := base
	m := &cfg.Momentum

	setDuration(&m.ActiveWindow, f.Momentum.ActiveWindow)
	setDuration(&m.GracePeriod, f.Momentum.GracePeriod)
	setFloat(&m.BuildRate, f.Momentum.BuildRate)
	setFloat(&m.ReturnPenaltyPerDay, f.Momentum.ReturnPenaltyPerDay)
	setFloat(&m.MinMultiplier, f.Momentum.MinMultiplier)
	setFloat(&m.MaxMultiplier, f.Momentum.MaxMultiplier)
	setFloat(&m.BaseDecayPerDay, f.Momentum.BaseDecayPerDay)
	setFloat(&m.MaxDecayPerDay, f.Momentum.MaxDecay)
	setFloat(&m.ActiveBlendWeight, f.Momentum.ActiveBlendWeight)
	setFloat(&m.IdleBlendWeight, f.Momentum.IdleBlendWeight)
	if f.Momentum.ScoreFloor != nil {
		m.ScoreFloor = domain.Percentage(*f.Momentum.ScoreFloor)
	}
	if err := m.Validate(); err != nil {
		return application.ScoringConfig{}, fmt.Errorf("momentum: %w", err)
	}

	if f.Policy != "" {
		policy, err := domain.ParseScoringPolicy(f.Policy)
		if err != nil {
			return application.ScoringConfig{}, err
		}
		cfg.Policy = policy
	}

	if f.WeekStart != "" {
		day, err := parseWeekday(f.WeekStart)
		if err != nil {
			return application.ScoringConfig{}, err
		}
		cfg.WeekStart = day
	}

	if f.DefaultTimeZone != "" {
		loc, err := time.LoadLocation(f.DefaultTimeZone)
		if err != nil {
			return application.ScoringConfig{}, fmt.Errorf("default_time_zone: %w", err)
		}
		cfg.DefaultTimeZone = loc
	}

	if f.ScheduleTimeout != nil {
		if *f.ScheduleTimeout <= 0 {
			return application.ScoringConfig{}, fmt.Errorf("schedule_timeout must be positive, got %s", *f.ScheduleTimeout)
		}
		cfg.ScheduleTimeout = *f.ScheduleTimeout
	}

	if f.Milestones != nil {
		levels := make([]domain.Percentage, 0, len(f.Milestones))
		for _, level := range f.Milestones {
			if level <= 0 || level > 100 {
				return application.ScoringConfig{}, fmt.Errorf("milestone %d outside 1..100", level)
			}
			levels = append(levels, domain.Percentage(level))
		}
		cfg.Milestones = domain.MilestoneThresholds{Levels: levels}
	}

	return cfg, nil
}

func setDuration(dst *time.Duration, src *time.Duration) {
	if src != nil {
		*dst = *src
	}
}

func setFloat(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}

func parseWeekday(s string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), s) {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("week_start %q is not a weekday", s)
}
