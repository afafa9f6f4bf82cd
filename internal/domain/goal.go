package domain

import (
	"fmt"
	"math"
)

// Scope is the period over which a component's completed counter accumulates.
type Scope string

const (
	ScopeDaily  Scope = "daily"
	ScopeWeekly Scope = "weekly"
	ScopeNone   Scope = "none"
)

// ComponentSpec describes one trackable habit in a category's catalogue.
type ComponentSpec struct {
	Key    string
	Weight float64
	Scope  Scope
	// Obligation marks the prayer component whose ratio comes from the
	// obligation window instead of completed/target.
	Obligation bool
}

// component keys. the values are what the client and the stores use.
const (
	KeyFardPrayers   = "fard_prayers"
	KeySunnahPrayers = "sunnah_prayers"
	KeyQuranPages    = "quran_pages"
	KeyQuranVerses   = "quran_verses"
	KeyDhikr         = "dhikr"
	KeyDua           = "dua"
	KeyTahajjud      = "tahajjud"
	KeyFasting       = "fasting"

	KeyLectures    = "lectures"
	KeyRecitations = "recitations"
	KeyQuizzes     = "quizzes"
	KeyReflections = "reflections"

	KeyExerciseMinutes   = "exercise_minutes"
	KeyWaterGlasses      = "water_glasses"
	KeySleepHours        = "sleep_hours"
	KeyMeditationMinutes = "meditation_minutes"
	KeyMoodCheckins      = "mood_checkins"
	KeyWorkoutSessions   = "workout_sessions"
	KeyJournalEntries    = "journal_entries"
)

// weights sum to 100 per category.
var catalogue = map[Category][]ComponentSpec{
	CategoryWorship: {
		{Key: KeyFardPrayers, Weight: 30, Scope: ScopeDaily, Obligation: true},
		{Key: KeySunnahPrayers, Weight: 10, Scope: ScopeDaily},
		{Key: KeyQuranPages, Weight: 15, Scope: ScopeDaily},
		{Key: KeyQuranVerses, Weight: 5, Scope: ScopeDaily},
		{Key: KeyDhikr, Weight: 15, Scope: ScopeDaily},
		{Key: KeyDua, Weight: 10, Scope: ScopeDaily},
		{Key: KeyTahajjud, Weight: 5, Scope: ScopeWeekly},
		{Key: KeyFasting, Weight: 10, Scope: ScopeWeekly},
	},
	CategoryKnowledge: {
		{Key: KeyLectures, Weight: 30, Scope: ScopeWeekly},
		{Key: KeyRecitations, Weight: 20, Scope: ScopeWeekly},
		{Key: KeyQuizzes, Weight: 25, Scope: ScopeWeekly},
		{Key: KeyReflections, Weight: 25, Scope: ScopeWeekly},
	},
	CategoryWellbeing: {
		{Key: KeyExerciseMinutes, Weight: 20, Scope: ScopeDaily},
		{Key: KeyWaterGlasses, Weight: 15, Scope: ScopeDaily},
		{Key: KeySleepHours, Weight: 15, Scope: ScopeDaily},
		{Key: KeyMeditationMinutes, Weight: 15, Scope: ScopeDaily},
		{Key: KeyMoodCheckins, Weight: 10, Scope: ScopeDaily},
		{Key: KeyWorkoutSessions, Weight: 15, Scope: ScopeWeekly},
		{Key: KeyJournalEntries, Weight: 10, Scope: ScopeWeekly},
	},
}

// default targets applied when a category's record cannot be read.
var defaultTargets = map[Category]map[string]float64{
	CategoryWorship: {
		KeyFardPrayers:   5,
		KeySunnahPrayers: 4,
		KeyQuranPages:    2,
		KeyQuranVerses:   10,
		KeyDhikr:         100,
		KeyDua:           3,
		KeyTahajjud:      1,
		KeyFasting:       1,
	},
	CategoryKnowledge: {
		KeyLectures:    2,
		KeyRecitations: 2,
		KeyQuizzes:     1,
		KeyReflections: 3,
	},
	CategoryWellbeing: {
		KeyExerciseMinutes:   30,
		KeyWaterGlasses:      8,
		KeySleepHours:        7,
		KeyMeditationMinutes: 10,
		KeyMoodCheckins:      1,
		KeyWorkoutSessions:   3,
		KeyJournalEntries:    2,
	},
}

// Catalogue returns a copy of the component catalogue for a category.
func Catalogue(c Category) []ComponentSpec {
	specs := catalogue[c]
	out := make([]ComponentSpec, len(specs))
	copy(out, specs)
	return out
}

// LookupComponent finds a component spec by key within a category.
func LookupComponent(c Category, key string) (ComponentSpec, bool) {
	for _, spec := range catalogue[c] {
		if spec.Key == key {
			return spec, true
		}
	}
	return ComponentSpec{}, false
}

// GoalComponent is a single habit with a target and a completed amount.
// a target of zero disables the component.
type GoalComponent struct {
	Key       string  `json:"key"`
	Target    float64 `json:"target"`
	Completed float64 `json:"completed"`
}

// Validate reports whether the numeric fields are usable.
func (g GoalComponent) Validate() error {
	if g.Key == "" {
		return fmt.Errorf("%w: component key is empty", ErrInvalidGoalRecord)
	}
	if !isFiniteNonNegative(g.Target) {
		return fmt.Errorf("%w: %s target %v", ErrInvalidGoalRecord, g.Key, g.Target)
	}
	if !isFiniteNonNegative(g.Completed) {
		return fmt.Errorf("%w: %s completed %v", ErrInvalidGoalRecord, g.Key, g.Completed)
	}
	return nil
}

// Enabled is false for zero targets and for malformed components.
func (g GoalComponent) Enabled() bool {
	return g.Validate() == nil && g.Target > 0
}

// Ratio returns min(1, completed/target) for an enabled component, zero otherwise.
func (g GoalComponent) Ratio() float64 {
	if !g.Enabled() {
		return 0
	}
	return math.Min(1, g.Completed/g.Target)
}

func isFiniteNonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

// GoalRecord is one category's set of goal components for a user.
type GoalRecord struct {
	Category   Category        `json:"category"`
	Components []GoalComponent `json:"components"`

	// CompletedObligations holds the names of today's obligations marked done.
	CompletedObligations []string `json:"completed_obligations,omitempty"`
}

// DefaultGoalRecord returns the documented default record for a category.
// used when the stored record cannot be read.
func DefaultGoalRecord(c Category) GoalRecord {
	record := GoalRecord{Category: c}
	for _, spec := range catalogue[c] {
		record.Components = append(record.Components, GoalComponent{
			Key:    spec.Key,
			Target: defaultTargets[c][spec.Key],
		})
	}
	return record
}

// DefaultGoalRecords returns the default record of every category.
func DefaultGoalRecords() map[Category]GoalRecord {
	records := make(map[Category]GoalRecord, 3)
	for _, c := range AllCategories() {
		records[c] = DefaultGoalRecord(c)
	}
	return records
}

// Component returns the component with the given key.
func (r GoalRecord) Component(key string) (GoalComponent, bool) {
	for _, comp := range r.Components {
		if comp.Key == key {
			return comp, true
		}
	}
	return GoalComponent{}, false
}

// Normalize returns a record with exactly one entry per catalogue component,
// in catalogue order. unknown keys are dropped, missing components are added
// disabled, and malformed components are reset to disabled.
// the returned slice reports which keys were malformed.
func (r GoalRecord) Normalize() (GoalRecord, []string) {
	var invalid []string

	byKey := make(map[string]GoalComponent, len(r.Components))
	for _, comp := range r.Components {
		if _, known := LookupComponent(r.Category, comp.Key); !known {
			continue
		}
		if _, seen := byKey[comp.Key]; seen {
			continue
		}
		if err := comp.Validate(); err != nil {
			invalid = append(invalid, comp.Key)
			comp = GoalComponent{Key: comp.Key}
		}
		byKey[comp.Key] = comp
	}

	out := GoalRecord{Category: r.Category}
	for _, spec := range catalogue[r.Category] {
		comp, ok := byKey[spec.Key]
		if !ok {
			comp = GoalComponent{Key: spec.Key}
		}
		out.Components = append(out.Components, comp)
	}

	seen := make(map[string]bool, len(r.CompletedObligations))
	for _, name := range r.CompletedObligations {
		if !IsStandardObligation(name) || seen[name] {
			continue
		}
		seen[name] = true
		out.CompletedObligations = append(out.CompletedObligations, name)
	}

	return out, invalid
}

// Clone returns a deep copy of the record.
func (r GoalRecord) Clone() GoalRecord {
	out := GoalRecord{Category: r.Category}
	if r.Components != nil {
		out.Components = make([]GoalComponent, len(r.Components))
		copy(out.Components, r.Components)
	}
	if r.CompletedObligations != nil {
		out.CompletedObligations = make([]string, len(r.CompletedObligations))
		copy(out.CompletedObligations, r.CompletedObligations)
	}
	return out
}
