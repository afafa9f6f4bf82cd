package cache

import (
	"sync"
	"time"

	"github.com/elgomatiae/muslim-space-sub000/internal/domain"
)

// ScheduleCache is a simple in-memory cache for daily obligation schedules.
// a schedule only changes with the date, so entries live until their day ends.
// expiry is judged against the time the caller passes in, never the wall clock.
type ScheduleCache struct {
	entries map[string]scheduleEntry
	mu      sync.RWMutex
}

type scheduleEntry struct {
	schedule  domain.ObligationSchedule
	expiresAt time.Time
}

// NewScheduleCache creates an empty schedule cache.
func NewScheduleCache() *ScheduleCache {
	return &ScheduleCache{
		entries: make(map[string]scheduleEntry),
	}
}

// Get returns the cached schedule for key if it has not expired at now.
func (c *ScheduleCache) Get(key string, now time.Time) (domain.ObligationSchedule, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || !now.Before(entry.expiresAt) {
		return nil, false
	}
	out := make(domain.ObligationSchedule, len(entry.schedule))
	copy(out, entry.schedule)
	return out, true
}

// Set stores a schedule until expiresAt.
func (c *ScheduleCache) Set(key string, schedule domain.ObligationSchedule, expiresAt time.Time) {
	stored := make(domain.ObligationSchedule, len(schedule))
	copy(stored, schedule)

	c.mu.Lock()
	c.entries[key] = scheduleEntry{schedule: stored, expiresAt: expiresAt}
	c.mu.Unlock()
}

// Size returns the current number of cached entries.
func (c *ScheduleCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Cleanup removes entries expired at now.
// call this periodically to prevent memory growth.
func (c *ScheduleCache) Cleanup(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}
