// Package events defines the payloads published through the outbox and
// consumed by downstream projections.
package events

import "time"

// WorkoutSettled is emitted once per settled workout. It carries the new
// point total (not the delta) so projections can apply it idempotently.
type WorkoutSettled struct {
	WorkoutID       string    `json:"workout_id"`
	ProfileID       string    `json:"profile_id"`
	Username        string    `json:"username"`
	TemplateName    string    `json:"template_name"`
	DurationMinutes int       `json:"duration_minutes"`
	PointsEarned    int       `json:"points_earned"`
	TotalPoints     int       `json:"total_points"`
	StreakCount     int       `json:"streak_count"`
	IsPremium       bool      `json:"is_premium"`
	CompletedOn     string    `json:"completed_on"` // YYYY-MM-DD
	SettledAt       time.Time `json:"settled_at"`
}

// ProfileMigrated is emitted when a guest's progress is folded into a newly
// created account profile (including the empty-snapshot first sign-in case).
type ProfileMigrated struct {
	ProfileID   string    `json:"profile_id"`
	Username    string    `json:"username"`
	Points      int       `json:"points"`
	StreakCount int       `json:"streak_count"`
	IsPremium   bool      `json:"is_premium"`
	MigratedAt  time.Time `json:"migrated_at"`
}
