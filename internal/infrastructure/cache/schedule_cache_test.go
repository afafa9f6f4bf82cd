package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elgomatiae/muslim-space-sub000/internal/domain"
)

func TestScheduleCache_ExpiresAtDayEnd(t *testing.T) {
	now := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)
	c := NewScheduleCache()

	schedule := domain.ObligationSchedule{
		{Name: domain.ObligationFajr, At: now.Add(-4 * time.Hour)},
		{Name: domain.ObligationDhuhr, At: now.Add(3 * time.Hour)},
	}
	c.Set("21.4,39.8,4:2026-05-10", schedule, now.Add(15*time.Hour))

	got, ok := c.Get("21.4,39.8,4:2026-05-10", now)
	require.True(t, ok)
	assert.Equal(t, schedule, got)

	// callers cannot mutate the cached copy
	got[0].Name = "changed"
	again, _ := c.Get("21.4,39.8,4:2026-05-10", now.Add(time.Hour))
	assert.Equal(t, domain.ObligationFajr, again[0].Name)

	// one minute before expiry the entry is still served
	_, ok = c.Get("21.4,39.8,4:2026-05-10", now.Add(15*time.Hour-time.Minute))
	assert.True(t, ok)
	assert.Equal(t, 0, c.Cleanup(now.Add(15*time.Hour-time.Minute)))

	_, ok = c.Get("21.4,39.8,4:2026-05-10", now.Add(15*time.Hour))
	assert.False(t, ok)

	assert.Equal(t, 1, c.Cleanup(now.Add(15*time.Hour)))
	assert.Equal(t, 0, c.Size())
}

func TestScheduleCache_Miss(t *testing.T) {
	c := NewScheduleCache()
	_, ok := c.Get("unknown", time.Now())
	assert.False(t, ok)
}

func TestScheduleCache_IgnoresWallClock(t *testing.T) {
	// a day long past, so an ambient clock would see it as expired
	now := time.Date(2020, 1, 2, 9, 0, 0, 0, time.UTC)
	c := NewScheduleCache()
	c.Set("k", domain.ObligationSchedule{{Name: domain.ObligationFajr, At: now}}, now.Add(15*time.Hour))

	_, ok := c.Get("k", now.Add(time.Hour))
	assert.True(t, ok)
	assert.Equal(t, 0, c.Cleanup(now.Add(time.Hour)))
	assert.Equal(t, 1, c.Size())
}
