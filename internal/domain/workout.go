package domain

import (
	"context"
	"time"
)

// WorkoutSet is a single logged set within a workout.
type WorkoutSet struct {
	ExerciseName string
	Weight       float64
	Reps         int
	Completed    bool
}

// Workout is an immutable record of a completed session. Only sets marked
// completed are persisted; incomplete sets are discarded at settlement time.
type Workout struct {
	ID              string
	ProfileID       string
	TemplateName    string
	DurationMinutes int
	Points          int
	CompletedAt     time.Time
	Sets            []WorkoutSet
}

// Cursor models the pagination token for workout history.
type Cursor struct {
	CompletedAt time.Time
	ID          string
}

// WorkoutStore captures workout persistence operations.
type WorkoutStore interface {
	// FindWorkoutByIdempotency returns nil, nil when the key is unknown.
	FindWorkoutByIdempotency(ctx context.Context, profileID, idempotencyKey string) (*Workout, error)
	InsertWorkout(ctx context.Context, workout Workout) error
	ListWorkouts(ctx context.Context, profileID string, cursor *Cursor, limit int) ([]Workout, *Cursor, error)
}

// Settlement bundles every write a settled workout produces so a backend can
// apply them atomically in its own engine.
type Settlement struct {
	Workout        Workout
	PointsDelta    int
	StreakCount    int
	WorkoutDay     time.Time // calendar date persisted as last_workout_date
	IdempotencyKey string
}

// Store is the full persistence contract the settlement service runs on.
// Account mode binds it to Postgres, device mode to the local SQLite store;
// the contract and computed values are identical between the two.
type Store interface {
	ProfileStore
	WorkoutStore
	SettleWorkout(ctx context.Context, settlement Settlement) error
}

// CompletedSets filters a logged set list down to the completed entries.
func CompletedSets(sets []WorkoutSet) []WorkoutSet {
	out := make([]WorkoutSet, 0, len(sets))
	for _, set := range sets {
		if set.Completed {
			out = append(out, set)
		}
	}
	return out
}
