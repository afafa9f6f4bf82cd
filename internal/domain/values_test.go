package domain

import (
	"math"
	"testing"
)

func TestNewPercentage(t *testing.T) {
	tests := []struct {
		name     string
		input    float64
		expected Percentage
	}{
		{"zero", 0, 0},
		{"rounds_down", 49.4, 49},
		{"rounds_half_up", 49.5, 50},
		{"negative_clamped", -12, 0},
		{"over_hundred_clamped", 130.2, 100},
		{"nan_is_zero", math.NaN(), 0},
		{"positive_inf", math.Inf(1), 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewPercentage(tt.input); got != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestClampPercentage(t *testing.T) {
	if got := ClampPercentage(-5); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
	if got := ClampPercentage(250); got != 100 {
		t.Errorf("expected 100, got %d", got)
	}
	if got := ClampPercentage(42); got != 42 {
		t.Errorf("expected 42, got %d", got)
	}
}

func TestParseCategory(t *testing.T) {
	tests := []struct {
		input    string
		expected Category
		valid    bool
	}{
		{"worship", CategoryWorship, true},
		{"ibadah", CategoryWorship, true},
		{"knowledge", CategoryKnowledge, true},
		{"ilm", CategoryKnowledge, true},
		{"wellbeing", CategoryWellbeing, true},
		{"amanah", CategoryWellbeing, true},
		{"Worship", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseCategory(tt.input)
			if tt.valid {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if got != tt.expected {
					t.Errorf("expected %s, got %s", tt.expected, got)
				}
				if !got.IsValid() {
					t.Error("expected parsed category to be valid")
				}
			} else if err != ErrCategoryInvalid {
				t.Errorf("expected ErrCategoryInvalid, got %v", err)
			}
		})
	}
}

func TestCategoryScores_GetSet(t *testing.T) {
	var scores CategoryScores
	scores = scores.Set(CategoryKnowledge, 40)

	if scores.Get(CategoryKnowledge) != 40 {
		t.Errorf("expected 40, got %d", scores.Get(CategoryKnowledge))
	}
	if scores.Get(CategoryWorship) != 0 {
		t.Errorf("expected worship untouched, got %d", scores.Get(CategoryWorship))
	}
	if scores.Get(Category("other")) != 0 {
		t.Error("expected unknown category to read as zero")
	}
}

func TestUserID_Parse(t *testing.T) {
	id := NewUserID()
	parsed, err := ParseUserID(id.String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed != id {
		t.Errorf("expected %s, got %s", id, parsed)
	}
	if _, err := ParseUserID("not-a-uuid"); err == nil {
		t.Error("expected error for invalid uuid")
	}
	if !(UserID{}).IsZero() {
		t.Error("expected zero user id")
	}
}
