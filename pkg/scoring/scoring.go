// Package scoring turns a scan summary into a bounded risk score and a
// coarse risk level for reporting.
package scoring

import "github.com/apivet/apivet/pkg/session"

// Severity weights. INFO and PASSED contribute nothing.
const (
	weightCritical = 25
	weightHigh     = 15
	weightMedium   = 8
	weightLow      = 3

	// MaxScore caps the weighted sum so reports stay on a 0-100 scale.
	MaxScore = 100
)

// Level is the coarse risk bucket derived from a score.
type Level string

const (
	LevelCritical Level = "CRITICAL"
	LevelHigh     Level = "HIGH"
	LevelMedium   Level = "MEDIUM"
	LevelLow      Level = "LOW"
)

// Score computes the weighted risk score and its level from a summary.
// The score is monotone in every severity counter and capped at MaxScore.
func Score(s session.Summary) (int, Level) {
	score := s.Critical*weightCritical +
		s.High*weightHigh +
		s.Medium*weightMedium +
		s.Low*weightLow
	if score > MaxScore {
		score = MaxScore
	}
	return score, LevelFor(score)
}

// LevelFor maps a score onto its risk level.
func LevelFor(score int) Level {
	switch {
	case score >= 75:
		return LevelCritical
	case score >= 50:
		return LevelHigh
	case score >= 25:
		return LevelMedium
	default:
		return LevelLow
	}
}
