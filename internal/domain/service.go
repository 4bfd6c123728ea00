// Package domain defines the business logic for the workout service:
// settlement of completed workouts into points and streak updates, and the
// one-time migration of guest progress into an account profile.
package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrProfileNotFound is returned when settlement targets a profile that
	// does not exist. It should not occur in the normal flow.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrStoreUnavailable wraps network or storage failures from the backend.
	ErrStoreUnavailable = errors.New("storage backend unavailable")
	// ErrPartialSettlement indicates some but not all writes landed. Only the
	// cross-store migration loop can still produce it; settlement itself is
	// transactional in both backends.
	ErrPartialSettlement = errors.New("settlement partially applied")
)

// Service orchestrates settlement and migration workflows over a Store.
type Service struct {
	store Store
	now   func() time.Time
}

// Option configures optional Service behaviour.
type Option func(*Service)

// WithClock overrides the clock, so streak computation and last_workout_date
// writes observe the same "today" in tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService constructs a Service.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SettlementInput captures a completed workout as submitted by the client.
// PointsEarned is a delta, not a new total.
type SettlementInput struct {
	TemplateName    string
	DurationMinutes int
	PointsEarned    int
	Sets            []WorkoutSet
	IdempotencyKey  string
}

// SettlementResult reports the state produced by a settlement.
type SettlementResult struct {
	WorkoutID   string
	TotalPoints int
	StreakCount int
	WorkoutDay  time.Time
	Replay      bool
}

// SettleWorkout records a completed workout, awards points, and advances the
// streak. A workout with zero completed sets is still valid and still counts;
// the caller already decided to mark the session complete.
func (s *Service) SettleWorkout(ctx context.Context, profileID string, input SettlementInput) (*SettlementResult, error) {
	if input.IdempotencyKey != "" {
		existing, err := s.store.FindWorkoutByIdempotency(ctx, profileID, input.IdempotencyKey)
		if err != nil {
			return nil, wrapStoreErr("find workout by idempotency key", err)
		}
		if existing != nil {
			profile, err := s.store.GetProfile(ctx, profileID)
			if err != nil {
				return nil, wrapStoreErr("load profile", err)
			}
			if profile == nil {
				return nil, ErrProfileNotFound
			}
			return &SettlementResult{
				WorkoutID:   existing.ID,
				TotalPoints: profile.Points,
				StreakCount: profile.StreakCount,
				WorkoutDay:  DateOf(existing.CompletedAt),
				Replay:      true,
			}, nil
		}
	}

	profile, err := s.store.GetProfile(ctx, profileID)
	if err != nil {
		return nil, wrapStoreErr("load profile", err)
	}
	if profile == nil {
		return nil, ErrProfileNotFound
	}

	completedAt := s.now().UTC()
	today := DateOf(completedAt)
	streak := ComputeStreak(profile.LastWorkoutDate, completedAt, profile.StreakCount)

	workout := Workout{
		ID:              uuid.NewString(),
		ProfileID:       profileID,
		TemplateName:    input.TemplateName,
		DurationMinutes: input.DurationMinutes,
		Points:          input.PointsEarned,
		CompletedAt:     completedAt,
		Sets:            CompletedSets(input.Sets),
	}

	settlement := Settlement{
		Workout:        workout,
		PointsDelta:    input.PointsEarned,
		StreakCount:    streak,
		WorkoutDay:     today,
		IdempotencyKey: input.IdempotencyKey,
	}

	if err := s.store.SettleWorkout(ctx, settlement); err != nil {
		return nil, wrapStoreErr("settle workout", err)
	}

	return &SettlementResult{
		WorkoutID:   workout.ID,
		TotalPoints: profile.Points + input.PointsEarned,
		StreakCount: streak,
		WorkoutDay:  today,
	}, nil
}

// Profile fetches the profile by id.
func (s *Service) Profile(ctx context.Context, profileID string) (*Profile, error) {
	profile, err := s.store.GetProfile(ctx, profileID)
	if err != nil {
		return nil, wrapStoreErr("load profile", err)
	}
	if profile == nil {
		return nil, ErrProfileNotFound
	}
	return profile, nil
}

// ListWorkouts returns the profile's workout history with cursor pagination.
func (s *Service) ListWorkouts(ctx context.Context, profileID string, cursor *Cursor, limit int) ([]Workout, *Cursor, error) {
	workouts, next, err := s.store.ListWorkouts(ctx, profileID, cursor, limit)
	if err != nil {
		return nil, nil, wrapStoreErr("list workouts", err)
	}
	return workouts, next, nil
}

// UsernameFromEmail derives the default username an account profile is
// created with.
func UsernameFromEmail(email string) string {
	if at := strings.IndexByte(email, '@'); at > 0 {
		return email[:at]
	}
	return "user"
}

func wrapStoreErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
}
