package domain

import "time"

// the five daily prayers, in schedule order.
const (
	ObligationFajr    = "fajr"
	ObligationDhuhr   = "dhuhr"
	ObligationAsr     = "asr"
	ObligationMaghrib = "maghrib"
	ObligationIsha    = "isha"
)

// StandardObligations returns the daily obligation names in schedule order.
func StandardObligations() []string {
	return []string{ObligationFajr, ObligationDhuhr, ObligationAsr, ObligationMaghrib, ObligationIsha}
}

// IsStandardObligation reports whether name is one of the five daily prayers.
func IsStandardObligation(name string) bool {
	switch name {
	case ObligationFajr, ObligationDhuhr, ObligationAsr, ObligationMaghrib, ObligationIsha:
		return true
	}
	return false
}

// Obligation is a named, time-bound goal with its scheduled time for today.
type Obligation struct {
	Name string
	At   time.Time
}

// ObligationSchedule is today's ordered list of obligations.
type ObligationSchedule []Obligation

// DueSet is the result of resolving which obligations are currently due.
type DueSet struct {
	Names map[string]bool
	Total int
}

// DueObligations returns the obligations whose scheduled time is at or before now.
// upcoming obligations are not counted at all.
func DueObligations(now time.Time, schedule ObligationSchedule) DueSet {
	due := DueSet{Names: make(map[string]bool, len(schedule))}
	for _, ob := range schedule {
		if ob.At.After(now) || due.Names[ob.Name] {
			continue
		}
		due.Names[ob.Name] = true
		due.Total++
	}
	return due
}

// AllObligationsDue is the fallback used when the schedule is unavailable:
// every obligation counts, so missing prayers are never credited for free.
func AllObligationsDue() DueSet {
	names := StandardObligations()
	due := DueSet{Names: make(map[string]bool, len(names)), Total: len(names)}
	for _, name := range names {
		due.Names[name] = true
	}
	return due
}

// CountCompleted counts the completed obligations that are due.
func (d DueSet) CountCompleted(completed []string) int {
	seen := make(map[string]bool, len(completed))
	count := 0
	for _, name := range completed {
		if d.Names[name] && !seen[name] {
			seen[name] = true
			count++
		}
	}
	return count
}

// Ratio returns completed/total among due obligations, or 1 when nothing is due yet.
func (d DueSet) Ratio(completed []string) float64 {
	if d.Total == 0 {
		return 1
	}
	return float64(d.CountCompleted(completed)) / float64(d.Total)
}
