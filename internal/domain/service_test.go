package domain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSettleWorkoutDiscardsIncompleteSets(t *testing.T) {
	store := newMemStore()
	store.seedProfile(Profile{ID: "user-1", Username: "lifter", Points: 0})

	service := NewService(store, WithClock(fixedClock(2024, time.March, 10)))

	result, err := service.SettleWorkout(context.Background(), "user-1", SettlementInput{
		TemplateName:    "Push Day",
		DurationMinutes: 40,
		PointsEarned:    25,
		Sets: []WorkoutSet{
			{ExerciseName: "Bench Press", Weight: 80, Reps: 8, Completed: false},
			{ExerciseName: "Overhead Press", Weight: 40, Reps: 10, Completed: false},
		},
	})
	require.NoError(t, err)
	require.False(t, result.Replay)

	// The workout still exists, with zero persisted sets, and points and
	// streak still moved.
	require.Len(t, store.workouts, 1)
	require.Empty(t, store.workouts[0].Sets)
	require.Equal(t, 25, store.profiles["user-1"].Points)
	require.Equal(t, 1, store.profiles["user-1"].StreakCount)
	require.Equal(t, 25, result.TotalPoints)
	require.Equal(t, 1, result.StreakCount)
}

func TestSettleWorkoutKeepsOnlyCompletedSets(t *testing.T) {
	store := newMemStore()
	store.seedProfile(Profile{ID: "user-1"})

	service := NewService(store)

	_, err := service.SettleWorkout(context.Background(), "user-1", SettlementInput{
		TemplateName:    "Leg Day",
		DurationMinutes: 55,
		PointsEarned:    30,
		Sets: []WorkoutSet{
			{ExerciseName: "Squat", Weight: 100, Reps: 5, Completed: true},
			{ExerciseName: "Squat", Weight: 100, Reps: 5, Completed: false},
			{ExerciseName: "Leg Press", Weight: 160, Reps: 10, Completed: true},
		},
	})
	require.NoError(t, err)

	require.Len(t, store.workouts[0].Sets, 2)
	for _, set := range store.workouts[0].Sets {
		require.True(t, set.Completed)
	}
}

func TestSettleWorkoutAddsPointsDelta(t *testing.T) {
	store := newMemStore()
	store.seedProfile(Profile{ID: "user-1", Points: 5})

	service := NewService(store)

	result, err := service.SettleWorkout(context.Background(), "user-1", SettlementInput{
		TemplateName:    "Pull Day",
		DurationMinutes: 35,
		PointsEarned:    10,
	})
	require.NoError(t, err)

	require.Equal(t, 15, result.TotalPoints, "points are additive, not an overwrite")
	require.Equal(t, 15, store.profiles["user-1"].Points)
}

func TestSettleWorkoutAdvancesStreakFromYesterday(t *testing.T) {
	store := newMemStore()
	lastWorkout := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	store.seedProfile(Profile{ID: "user-1", StreakCount: 3, LastWorkoutDate: &lastWorkout})

	service := NewService(store, WithClock(fixedClock(2024, time.January, 2)))

	result, err := service.SettleWorkout(context.Background(), "user-1", SettlementInput{
		TemplateName:    "Full Body",
		DurationMinutes: 60,
		PointsEarned:    40,
	})
	require.NoError(t, err)

	require.Equal(t, 4, result.StreakCount)
	require.Equal(t, 4, store.profiles["user-1"].StreakCount)
	require.Equal(t, time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC), *store.profiles["user-1"].LastWorkoutDate)
}

func TestSettleWorkoutIdempotentReplay(t *testing.T) {
	store := newMemStore()
	store.seedProfile(Profile{ID: "user-1", Points: 5})

	service := NewService(store)

	input := SettlementInput{
		TemplateName:    "Push Day",
		DurationMinutes: 40,
		PointsEarned:    10,
		IdempotencyKey:  "req-abc",
	}

	first, err := service.SettleWorkout(context.Background(), "user-1", input)
	require.NoError(t, err)

	second, err := service.SettleWorkout(context.Background(), "user-1", input)
	require.NoError(t, err)

	require.True(t, second.Replay)
	require.Equal(t, first.WorkoutID, second.WorkoutID)
	require.Equal(t, 15, store.profiles["user-1"].Points, "a retried submission must not double-award points")
	require.Len(t, store.workouts, 1)
}

func TestSettleWorkoutUnknownProfile(t *testing.T) {
	service := NewService(newMemStore())

	_, err := service.SettleWorkout(context.Background(), "ghost", SettlementInput{TemplateName: "x"})
	require.ErrorIs(t, err, ErrProfileNotFound)
}

func TestSettleWorkoutWrapsStoreFailure(t *testing.T) {
	store := newMemStore()
	store.seedProfile(Profile{ID: "user-1"})
	store.settleErr = errors.New("connection refused")

	service := NewService(store)

	_, err := service.SettleWorkout(context.Background(), "user-1", SettlementInput{TemplateName: "Push Day"})
	require.ErrorIs(t, err, ErrStoreUnavailable)
	require.ErrorContains(t, err, "connection refused")
}

func TestProfileWrapsStoreFailure(t *testing.T) {
	store := newMemStore()
	store.getProfileErr = errors.New("dial tcp: timeout")

	service := NewService(store)

	_, err := service.Profile(context.Background(), "user-1")
	require.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestMigrateGuestSeedsProfileFromSnapshot(t *testing.T) {
	store := newMemStore()
	service := NewService(store)

	completedAt := time.Date(2024, time.February, 14, 18, 30, 0, 0, time.UTC)
	snapshot := GuestSnapshot{
		Profile: GuestProfile{ID: "guest_k3j2h", Points: 30, StreakCount: 4},
		Workouts: []Workout{
			{
				ID:              "local-1",
				TemplateName:    "Push Day",
				DurationMinutes: 45,
				Points:          30,
				CompletedAt:     completedAt,
				Sets: []WorkoutSet{
					{ExerciseName: "Bench Press", Weight: 60, Reps: 10, Completed: true},
				},
			},
		},
	}

	result, err := service.MigrateGuest(context.Background(), AccountIdentity{ID: "acct-1", Email: "ana@example.com"}, snapshot)
	require.NoError(t, err)
	require.True(t, result.Migrated)
	require.Equal(t, 4, result.StreakCarried)

	profile := store.profiles["acct-1"]
	require.NotNil(t, profile)
	require.Equal(t, 30, profile.Points)
	require.Equal(t, 4, profile.StreakCount)
	require.Equal(t, "ana", profile.Username)
	require.Nil(t, profile.LastWorkoutDate, "the last workout date is not migrated")

	require.Len(t, store.workouts, 1)
	migrated := store.workouts[0]
	require.Equal(t, "acct-1", migrated.ProfileID)
	require.NotEqual(t, "local-1", migrated.ID)
	require.Equal(t, completedAt, migrated.CompletedAt)
	require.Equal(t, 45, migrated.DurationMinutes)
	require.Equal(t, snapshot.Workouts[0].Sets, migrated.Sets)
}

func TestMigrateGuestSkipsExistingProfile(t *testing.T) {
	store := newMemStore()
	store.seedProfile(Profile{ID: "acct-1", Points: 500, StreakCount: 12})

	service := NewService(store)

	result, err := service.MigrateGuest(context.Background(), AccountIdentity{ID: "acct-1", Email: "ana@example.com"}, GuestSnapshot{
		Profile: GuestProfile{Points: 30, StreakCount: 4},
	})
	require.NoError(t, err)
	require.False(t, result.Migrated)

	// No merge: the existing profile is untouched.
	require.Equal(t, 500, store.profiles["acct-1"].Points)
	require.Equal(t, 12, store.profiles["acct-1"].StreakCount)
	require.Empty(t, store.workouts)
}

func TestMigrateFromLocalClearsGuestStateOnSuccess(t *testing.T) {
	store := newMemStore()
	service := NewService(store)

	local := &stubGuestSource{snapshot: GuestSnapshot{
		Profile:  GuestProfile{ID: "guest_x", Points: 10, StreakCount: 2},
		Workouts: []Workout{{ID: "local-1", TemplateName: "Pull Day", DurationMinutes: 30, CompletedAt: time.Now().UTC()}},
	}}

	result, err := service.MigrateFromLocal(context.Background(), AccountIdentity{ID: "acct-1", Email: "b@example.com"}, local)
	require.NoError(t, err)
	require.True(t, result.Migrated)
	require.True(t, local.cleared)
}

func TestMigrateFromLocalLeavesGuestStateWhenSkipped(t *testing.T) {
	store := newMemStore()
	store.seedProfile(Profile{ID: "acct-1"})

	service := NewService(store)
	local := &stubGuestSource{}

	result, err := service.MigrateFromLocal(context.Background(), AccountIdentity{ID: "acct-1", Email: "b@example.com"}, local)
	require.NoError(t, err)
	require.False(t, result.Migrated)
	require.False(t, local.cleared)
}

func TestMigrateGuestReportsPartialFailure(t *testing.T) {
	store := newMemStore()
	store.insertWorkoutErr = errors.New("connection reset")

	service := NewService(store)

	_, err := service.MigrateGuest(context.Background(), AccountIdentity{ID: "acct-1", Email: "c@example.com"}, GuestSnapshot{
		Profile:  GuestProfile{Points: 10},
		Workouts: []Workout{{ID: "local-1", TemplateName: "Legs", CompletedAt: time.Now().UTC()}},
	})
	require.ErrorIs(t, err, ErrPartialSettlement)
	require.NotNil(t, store.profiles["acct-1"], "the profile write already landed")
}

func fixedClock(y int, m time.Month, d int) func() time.Time {
	return func() time.Time {
		return time.Date(y, m, d, 9, 30, 0, 0, time.UTC)
	}
}

// memStore is an in-memory Store used by the unit tests.
type memStore struct {
	profiles         map[string]*Profile
	workouts         []Workout
	byIdempotency    map[string]string
	insertWorkoutErr error
	settleErr        error
	getProfileErr    error
}

func newMemStore() *memStore {
	return &memStore{
		profiles:      make(map[string]*Profile),
		byIdempotency: make(map[string]string),
	}
}

func (m *memStore) seedProfile(p Profile) {
	copied := p
	m.profiles[p.ID] = &copied
}

func (m *memStore) GetProfile(_ context.Context, id string) (*Profile, error) {
	if m.getProfileErr != nil {
		return nil, m.getProfileErr
	}
	profile, ok := m.profiles[id]
	if !ok {
		return nil, nil
	}
	copied := *profile
	return &copied, nil
}

func (m *memStore) CreateProfile(_ context.Context, profile Profile) error {
	copied := profile
	m.profiles[profile.ID] = &copied
	return nil
}

func (m *memStore) UpdateProfile(_ context.Context, id string, update ProfileUpdate) error {
	profile, ok := m.profiles[id]
	if !ok {
		return ErrProfileNotFound
	}
	if update.Username != nil {
		profile.Username = *update.Username
	}
	if update.StreakCount != nil {
		profile.StreakCount = *update.StreakCount
	}
	if update.LastWorkoutDate != nil {
		profile.LastWorkoutDate = update.LastWorkoutDate
	}
	if update.IsPremium != nil {
		profile.IsPremium = *update.IsPremium
	}
	return nil
}

func (m *memStore) IncrementPoints(_ context.Context, id string, delta int) error {
	profile, ok := m.profiles[id]
	if !ok {
		return ErrProfileNotFound
	}
	profile.Points += delta
	return nil
}

func (m *memStore) FindWorkoutByIdempotency(_ context.Context, profileID, key string) (*Workout, error) {
	id, ok := m.byIdempotency[profileID+"|"+key]
	if !ok {
		return nil, nil
	}
	for i := range m.workouts {
		if m.workouts[i].ID == id {
			copied := m.workouts[i]
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memStore) InsertWorkout(_ context.Context, workout Workout) error {
	if m.insertWorkoutErr != nil {
		return m.insertWorkoutErr
	}
	m.workouts = append(m.workouts, workout)
	return nil
}

func (m *memStore) ListWorkouts(_ context.Context, profileID string, _ *Cursor, limit int) ([]Workout, *Cursor, error) {
	out := make([]Workout, 0, limit)
	for _, w := range m.workouts {
		if w.ProfileID == profileID {
			out = append(out, w)
		}
	}
	return out, nil, nil
}

func (m *memStore) SettleWorkout(_ context.Context, settlement Settlement) error {
	if m.settleErr != nil {
		return m.settleErr
	}
	profile, ok := m.profiles[settlement.Workout.ProfileID]
	if !ok {
		return ErrProfileNotFound
	}
	m.workouts = append(m.workouts, settlement.Workout)
	if settlement.IdempotencyKey != "" {
		m.byIdempotency[settlement.Workout.ProfileID+"|"+settlement.IdempotencyKey] = settlement.Workout.ID
	}
	profile.Points += settlement.PointsDelta
	profile.StreakCount = settlement.StreakCount
	day := settlement.WorkoutDay
	profile.LastWorkoutDate = &day
	return nil
}

type stubGuestSource struct {
	snapshot GuestSnapshot
	cleared  bool
}

func (s *stubGuestSource) Snapshot(context.Context) (GuestSnapshot, error) {
	return s.snapshot, nil
}

func (s *stubGuestSource) Clear(context.Context) error {
	s.cleared = true
	return nil
}
