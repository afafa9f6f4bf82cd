package domain

// OverallWeights are the fixed category weights of the overall score.
type OverallWeights struct {
	Worship   float64
	Knowledge float64
	Wellbeing float64
}

// DefaultOverallWeights weights worship at half of the overall score.
func DefaultOverallWeights() OverallWeights {
	return OverallWeights{
		Worship:   0.50,
		Knowledge: 0.25,
		Wellbeing: 0.25,
	}
}

// Overall aggregates final category scores into one overall percentage.
// out-of-range inputs are clamped before weighting.
func Overall(final CategoryScores) Percentage {
	w := DefaultOverallWeights()
	return NewPercentage(
		ClampPercentage(final.Worship.Int()).Float()*w.Worship +
			ClampPercentage(final.Knowledge.Int()).Float()*w.Knowledge +
			ClampPercentage(final.Wellbeing.Int()).Float()*w.Wellbeing,
	)
}
