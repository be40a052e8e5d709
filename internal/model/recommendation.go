package model

import "time"

// Difficulty is how much effort a recommendation asks for.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Recommendation is a time-boxed suggestion. Only Applied changes after
// creation; validity is derived from GeneratedAt and ValidityDays.
type Recommendation struct {
	ID               string     `json:"id"`
	Key              string     `json:"key"` // rule identity: rule/subject/period
	Category         string     `json:"category"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	EstimatedImpact  float64    `json:"estimated_impact"`
	Difficulty       Difficulty `json:"difficulty"`
	AffectedAccounts []string   `json:"affected_accounts"`
	GeneratedAt      time.Time  `json:"generated_at"`
	ValidityDays     int        `json:"validity_days"`
	Applied          bool       `json:"applied"`
	Score            float64    `json:"score"`
	Steps            []string   `json:"steps,omitempty"`
	Tags             []string   `json:"tags,omitempty"`
}

// ExpiresAt is the end of the validity window.
func (r Recommendation) ExpiresAt() time.Time {
	return r.GeneratedAt.AddDate(0, 0, r.ValidityDays)
}

// Valid reports whether the recommendation is still inside its window at now.
func (r Recommendation) Valid(now time.Time) bool {
	return now.Before(r.ExpiresAt())
}
