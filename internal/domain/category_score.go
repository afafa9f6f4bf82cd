package domain

import (
	"errors"
	"fmt"
)

// ScoringPolicy decides how disabled components (target 0) are treated.
type ScoringPolicy string

const (
	// PolicyExcludeDisabled drops disabled components from both numerator and
	// denominator. a category with nothing enabled scores 0.
	PolicyExcludeDisabled ScoringPolicy = "exclude_disabled"

	// PolicyFullCreditDisabled is the legacy convention: disabled components
	// count as fully met, so a category with nothing enabled scores 100.
	PolicyFullCreditDisabled ScoringPolicy = "full_credit_disabled"
)

var ErrScoringPolicyInvalid = errors.New("scoring policy must be exclude_disabled or full_credit_disabled")

// ParseScoringPolicy validates a policy name. empty selects the reference policy.
func ParseScoringPolicy(s string) (ScoringPolicy, error) {
	switch ScoringPolicy(s) {
	case "", PolicyExcludeDisabled:
		return PolicyExcludeDisabled, nil
	case PolicyFullCreditDisabled:
		return PolicyFullCreditDisabled, nil
	}
	return "", fmt.Errorf("%w: %q", ErrScoringPolicyInvalid, s)
}

// CategoryCalculator turns one category's goal record into a percentage
// using fixed per-component weights.
type CategoryCalculator struct {
	Category   Category
	Components []ComponentSpec
	Policy     ScoringPolicy
}

// NewCategoryCalculator builds a calculator from the category's catalogue.
func NewCategoryCalculator(c Category, policy ScoringPolicy) CategoryCalculator {
	return CategoryCalculator{
		Category:   c,
		Components: Catalogue(c),
		Policy:     policy,
	}
}

// Score computes the category percentage.
//
// for every catalogue component with weight w:
//   - target 0 (or malformed): excluded, or counted at ratio 1 under the legacy policy
//   - obligation component: ratio = completed-and-due / due, full weight if nothing is due
//   - otherwise: ratio = min(1, completed/target)
//
// result = round(100 * sum(ratio*w) / sum(w)), or 0 when no weight was counted.
func (calc CategoryCalculator) Score(record GoalRecord, due DueSet) Percentage {
	var numerator, denominator float64

	for _, entry := range calc.Components {
		comp, ok := record.Component(entry.Key)
		if !ok || !comp.Enabled() {
			if calc.Policy == PolicyFullCreditDisabled {
				numerator += entry.Weight
				denominator += entry.Weight
			}
			continue
		}

		ratio := comp.Ratio()
		if entry.Obligation {
			ratio = due.Ratio(record.CompletedObligations)
		}

		numerator += ratio * entry.Weight
		denominator += entry.Weight
	}

	if denominator <= 0 {
		return MinPercentage
	}
	return NewPercentage(100 * numerator / denominator)
}

// ScoreAll scores every category. a missing record scores as if fully disabled.
func ScoreAll(records map[Category]GoalRecord, due DueSet, policy ScoringPolicy) CategoryScores {
	var scores CategoryScores
	for _, c := range AllCategories() {
		record, ok := records[c]
		if !ok {
			record = GoalRecord{Category: c}
		}
		scores = scores.Set(c, NewCategoryCalculator(c, policy).Score(record, due))
	}
	return scores
}
