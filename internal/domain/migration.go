package domain

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// GuestProfile is the progress a device accumulated before sign-in.
type GuestProfile struct {
	ID          string
	Points      int
	StreakCount int
}

// GuestSnapshot is the full exported guest state submitted for migration.
type GuestSnapshot struct {
	Profile  GuestProfile
	Workouts []Workout
}

// GuestSource is the device-side store a snapshot is read from and cleared on
// after a successful migration.
type GuestSource interface {
	Snapshot(ctx context.Context) (GuestSnapshot, error)
	Clear(ctx context.Context) error
}

// AccountIdentity identifies the authenticated account a guest migrates into.
type AccountIdentity struct {
	ID    string
	Email string
}

// MigrationResult reports what a migration attempt did.
type MigrationResult struct {
	Migrated      bool
	Points        int
	StreakCarried int
	WorkoutCount  int
}

// MigrateGuest transfers guest progress into a newly created server profile.
// It runs only when no profile exists for the account id: a returning user
// keeps their server profile untouched and the submitted guest data is
// dropped without a merge.
//
// The guest's last workout date is intentionally not carried over, so the
// first authenticated workout starts a fresh streak even though the count
// migrated. The result exposes the carried streak so a client can warn.
func (s *Service) MigrateGuest(ctx context.Context, account AccountIdentity, snapshot GuestSnapshot) (*MigrationResult, error) {
	existing, err := s.store.GetProfile(ctx, account.ID)
	if err != nil {
		return nil, wrapStoreErr("load profile", err)
	}
	if existing != nil {
		return &MigrationResult{Migrated: false}, nil
	}

	profile := Profile{
		ID:          account.ID,
		Email:       account.Email,
		Username:    UsernameFromEmail(account.Email),
		Points:      snapshot.Profile.Points,
		StreakCount: snapshot.Profile.StreakCount,
	}
	if err := s.store.CreateProfile(ctx, profile); err != nil {
		return nil, wrapStoreErr("create profile", err)
	}

	for i, workout := range snapshot.Workouts {
		reinserted := Workout{
			ID:              uuid.NewString(),
			ProfileID:       account.ID,
			TemplateName:    workout.TemplateName,
			DurationMinutes: workout.DurationMinutes,
			Points:          workout.Points,
			CompletedAt:     workout.CompletedAt,
			Sets:            workout.Sets,
		}
		if err := s.store.InsertWorkout(ctx, reinserted); err != nil {
			// The profile and i prior workouts already landed.
			return nil, fmt.Errorf("%w: profile created, %d workouts inserted: %v", ErrPartialSettlement, i, err)
		}
	}

	return &MigrationResult{
		Migrated:      true,
		Points:        snapshot.Profile.Points,
		StreakCarried: snapshot.Profile.StreakCount,
		WorkoutCount:  len(snapshot.Workouts),
	}, nil
}

// MigrateFromLocal reads the snapshot directly from a device store, migrates
// it, and clears all local guest state on success. The move is one-way and
// one-time; a skipped migration leaves the local data in place for the caller
// to decide about.
func (s *Service) MigrateFromLocal(ctx context.Context, account AccountIdentity, local GuestSource) (*MigrationResult, error) {
	snapshot, err := local.Snapshot(ctx)
	if err != nil {
		return nil, wrapStoreErr("read guest snapshot", err)
	}

	result, err := s.MigrateGuest(ctx, account, snapshot)
	if err != nil {
		return nil, err
	}
	if result.Migrated {
		if err := local.Clear(ctx); err != nil {
			return nil, wrapStoreErr("clear guest state", err)
		}
	}
	return result, nil
}
