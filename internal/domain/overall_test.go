package domain

import "testing"

func TestOverall(t *testing.T) {
	tests := []struct {
		name     string
		scores   CategoryScores
		expected Percentage
	}{
		{"all_zero", CategoryScores{}, 0},
		{"all_full", CategoryScores{100, 100, 100}, 100},
		{"worship_only", CategoryScores{Worship: 100}, 50},
		{"knowledge_only", CategoryScores{Knowledge: 100}, 25},
		{"mixed", CategoryScores{Worship: 71, Knowledge: 40, Wellbeing: 33}, 54},
		{"half_rounds_up", CategoryScores{Worship: 1, Knowledge: 0, Wellbeing: 0}, 1},
		{"out_of_range_clamped", CategoryScores{Worship: 180, Knowledge: -20, Wellbeing: 100}, 75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Overall(tt.scores); got != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, got)
			}
		})
	}
}
