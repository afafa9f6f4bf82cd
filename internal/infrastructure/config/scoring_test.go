package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elgomatiae/muslim-space-sub000/internal/application"
	"github.com/elgomatiae/muslim-space-sub000/internal/domain"
)

func TestLoadScoring_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := LoadScoring("")
	require.NoError(t, err)
	assert.Equal(t, application.DefaultScoringConfig().Momentum, cfg.Momentum)
	assert.Equal(t, domain.PolicyExcludeDisabled, cfg.Policy)
}

func TestLoadScoring_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scoring.yaml")
	content := `
momentum:
  active_window: 30h
  grace_period: 12h
  build_rate: 0.03
  max_decay: 40
  score_floor: 10
policy: full_credit_disabled
week_start: monday
default_time_zone: Asia/Karachi
schedule_timeout: 2s
milestones: [50, 90]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadScoring(path)
	require.NoError(t, err)

	assert.Equal(t, 30*time.Hour, cfg.Momentum.ActiveWindow)
	assert.Equal(t, 12*time.Hour, cfg.Momentum.GracePeriod)
	assert.InDelta(t, 0.03, cfg.Momentum.BuildRate, 1e-9)
	assert.InDelta(t, 40.0, cfg.Momentum.MaxDecayPerDay, 1e-9)
	assert.Equal(t, domain.Percentage(10), cfg.Momentum.ScoreFloor)
	// untouched fields keep reference values
	assert.InDelta(t, 1.3, cfg.Momentum.MaxMultiplier, 1e-9)

	assert.Equal(t, domain.PolicyFullCreditDisabled, cfg.Policy)
	assert.Equal(t, time.Monday, cfg.WeekStart)
	assert.Equal(t, "Asia/Karachi", cfg.DefaultTimeZone.String())
	assert.Equal(t, 2*time.Second, cfg.ScheduleTimeout)
	assert.Equal(t, []domain.Percentage{50, 90}, cfg.Milestones.Levels)
}

func TestLoadScoring_MissingFile(t *testing.T) {
	_, err := LoadScoring(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestParseScoring_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"multiplier above cap", "momentum:\n  max_multiplier: 1.5\n"},
		{"negative build rate", "momentum:\n  build_rate: -0.1\n"},
		{"blend weight above one", "momentum:\n  active_blend_weight: 1.2\n"},
		{"floor above 100", "momentum:\n  score_floor: 120\n"},
		{"unknown policy", "policy: generous\n"},
		{"bad weekday", "week_start: funday\n"},
		{"bad zone", "default_time_zone: Mars/Olympus\n"},
		{"zero timeout", "schedule_timeout: 0s\n"},
		{"milestone out of range", "milestones: [0, 50]\n"},
		{"not yaml", "momentum: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScoring([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}
