package domain

import (
	"context"
	"sort"
	"time"
)

// MilestoneCrossing is emitted when a user's overall score rises past a milestone.
// the achievement evaluator consumes these; it never writes back.
type MilestoneCrossing struct {
	UserID     UserID
	Milestone  Percentage
	OldOverall Percentage
	NewOverall Percentage
	Status     ComputeStatus
	Timestamp  time.Time
}

// NotificationService delivers milestone crossings to external consumers.
type NotificationService interface {
	// NotifyMilestone queues a crossing for delivery.
	NotifyMilestone(ctx context.Context, crossing MilestoneCrossing) error
}

// MilestoneThresholds defines which overall scores count as milestones.
type MilestoneThresholds struct {
	Levels []Percentage
}

// DefaultMilestoneThresholds returns quarter steps of the overall score.
func DefaultMilestoneThresholds() MilestoneThresholds {
	return MilestoneThresholds{Levels: []Percentage{25, 50, 75, 100}}
}

// Crossed returns the milestones strictly above old and at or below new,
// in ascending order. falling scores cross nothing.
func (t MilestoneThresholds) Crossed(oldOverall, newOverall Percentage) []Percentage {
	if newOverall <= oldOverall {
		return nil
	}

	var crossed []Percentage
	for _, level := range t.Levels {
		if level > oldOverall && level <= newOverall {
			crossed = append(crossed, level)
		}
	}
	sort.Slice(crossed, func(i, j int) bool { return crossed[i] < crossed[j] })
	return crossed
}
