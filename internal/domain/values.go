package domain

import (
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
)

// UserID represents a unique identifier for a user.
// wrapping uuid to enforce type safety and prevent mixing with other ids.
type UserID struct {
	value uuid.UUID
}

// NewUserID creates a new random UserID.
func NewUserID() UserID {
	return UserID{value: uuid.New()}
}

// ParseUserID parses a string into a UserID.
func ParseUserID(s string) (UserID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return UserID{}, fmt.Errorf("invalid user id: %w", err)
	}
	return UserID{value: id}, nil
}

// UserIDFromUUID creates a UserID from an existing uuid.
func UserIDFromUUID(id uuid.UUID) UserID {
	return UserID{value: id}
}

// String returns the string representation of the UserID.
func (id UserID) String() string {
	return id.value.String()
}

// UUID returns the underlying uuid value.
func (id UserID) UUID() uuid.UUID {
	return id.value
}

// IsZero returns true if the UserID is not set.
func (id UserID) IsZero() bool {
	return id.value == uuid.Nil
}

// Category is one of the three life domains that get scored.
type Category string

const (
	CategoryWorship   Category = "worship"   // ibadah
	CategoryKnowledge Category = "knowledge" // ilm
	CategoryWellbeing Category = "wellbeing" // amanah
)

var ErrCategoryInvalid = errors.New("category must be one of worship, knowledge, wellbeing")

// AllCategories returns the categories in their canonical order.
func AllCategories() []Category {
	return []Category{CategoryWorship, CategoryKnowledge, CategoryWellbeing}
}

// ParseCategory validates a category name.
// accepts the arabic names used by the mobile client as aliases.
func ParseCategory(s string) (Category, error) {
	switch s {
	case "worship", "ibadah":
		return CategoryWorship, nil
	case "knowledge", "ilm":
		return CategoryKnowledge, nil
	case "wellbeing", "amanah":
		return CategoryWellbeing, nil
	}
	return "", ErrCategoryInvalid
}

// IsValid returns true for the three known categories.
func (c Category) IsValid() bool {
	switch c {
	case CategoryWorship, CategoryKnowledge, CategoryWellbeing:
		return true
	}
	return false
}

// String returns the category name.
func (c Category) String() string {
	return string(c)
}

// Percentage is a score in [0,100].
type Percentage int

const (
	MinPercentage Percentage = 0
	MaxPercentage Percentage = 100
)

// NewPercentage rounds v to the nearest integer and clamps it to [0,100].
// NaN maps to zero.
func NewPercentage(v float64) Percentage {
	switch {
	case math.IsNaN(v), v <= 0:
		return MinPercentage
	case v >= 100:
		return MaxPercentage
	}
	return Percentage(math.Round(v))
}

// ClampPercentage clamps an integer score to [0,100].
func ClampPercentage(v int) Percentage {
	if v < int(MinPercentage) {
		return MinPercentage
	}
	if v > int(MaxPercentage) {
		return MaxPercentage
	}
	return Percentage(v)
}

// Int returns the score as a plain int.
func (p Percentage) Int() int {
	return int(p)
}

// Float returns the score as a float64.
func (p Percentage) Float() float64 {
	return float64(p)
}

// CategoryScores holds one percentage per category.
type CategoryScores struct {
	Worship   Percentage `json:"worship"`
	Knowledge Percentage `json:"knowledge"`
	Wellbeing Percentage `json:"wellbeing"`
}

// Get returns the score for a category. unknown categories read as zero.
func (s CategoryScores) Get(c Category) Percentage {
	switch c {
	case CategoryWorship:
		return s.Worship
	case CategoryKnowledge:
		return s.Knowledge
	case CategoryWellbeing:
		return s.Wellbeing
	}
	return MinPercentage
}

// Set returns a copy with the category's score replaced.
func (s CategoryScores) Set(c Category, p Percentage) CategoryScores {
	switch c {
	case CategoryWorship:
		s.Worship = p
	case CategoryKnowledge:
		s.Knowledge = p
	case CategoryWellbeing:
		s.Wellbeing = p
	}
	return s
}
