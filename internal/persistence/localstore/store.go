// Package localstore is the device-mode store: a single SQLite file standing
// in for the browser-local storage guests used in the original product. It
// implements the same store contract as the Postgres backend so settlement
// behaves identically in both modes, plus snapshot/clear for migration.
package localstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"example.com/workout/internal/domain"
)

type guestProfile struct {
	ID              string `gorm:"primaryKey"`
	Points          int
	StreakCount     int
	LastWorkoutDate *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type guestWorkout struct {
	ID              string `gorm:"primaryKey"`
	ProfileID       string `gorm:"index"`
	TemplateName    string
	DurationMinutes int
	Points          int
	CompletedAt     time.Time `gorm:"index"`
	IdempotencyKey  *string   `gorm:"uniqueIndex"`
	Sets            []guestSet `gorm:"foreignKey:WorkoutID;constraint:OnDelete:CASCADE"`
}

type guestSet struct {
	ID           uint   `gorm:"primaryKey"`
	WorkoutID    string `gorm:"index"`
	ExerciseName string
	Weight       float64
	Reps         int
	Completed    bool
}

// Store is the GORM-backed device store.
type Store struct {
	db *gorm.DB
}

// Open opens (or creates) the device database at path and migrates its
// schema.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open device store: %w", err)
	}
	if err := db.AutoMigrate(&guestProfile{}, &guestWorkout{}, &guestSet{}); err != nil {
		return nil, fmt.Errorf("migrate device store: %w", err)
	}
	return &Store{db: db}, nil
}

// EnsureGuestProfile returns the device's guest profile id, creating the
// profile with a locally generated token on first use.
func (s *Store) EnsureGuestProfile(ctx context.Context) (string, error) {
	var profile guestProfile
	err := s.db.WithContext(ctx).First(&profile).Error
	if err == nil {
		return profile.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}

	profile = guestProfile{ID: "guest_" + uuid.NewString()}
	if err := s.db.WithContext(ctx).Create(&profile).Error; err != nil {
		return "", err
	}
	return profile.ID, nil
}

// GetProfile fetches the guest profile by id, returning nil when absent.
func (s *Store) GetProfile(ctx context.Context, id string) (*domain.Profile, error) {
	var profile guestProfile
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toDomainProfile(profile), nil
}

// CreateProfile inserts a guest profile.
func (s *Store) CreateProfile(ctx context.Context, profile domain.Profile) error {
	return s.db.WithContext(ctx).Create(&guestProfile{
		ID:              profile.ID,
		Points:          profile.Points,
		StreakCount:     profile.StreakCount,
		LastWorkoutDate: profile.LastWorkoutDate,
	}).Error
}

// UpdateProfile applies a partial update. Username and premium fields have no
// local columns; a guest gains both only by migrating to an account.
func (s *Store) UpdateProfile(ctx context.Context, id string, update domain.ProfileUpdate) error {
	fields := map[string]interface{}{}
	if update.StreakCount != nil {
		fields["streak_count"] = *update.StreakCount
	}
	if update.LastWorkoutDate != nil {
		fields["last_workout_date"] = *update.LastWorkoutDate
	}
	if len(fields) == 0 {
		return nil
	}

	result := s.db.WithContext(ctx).Model(&guestProfile{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrProfileNotFound
	}
	return nil
}

// IncrementPoints adds the delta in SQL rather than read-modify-write.
func (s *Store) IncrementPoints(ctx context.Context, id string, delta int) error {
	result := s.db.WithContext(ctx).Model(&guestProfile{}).Where("id = ?", id).
		Update("points", gorm.Expr("points + ?", delta))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrProfileNotFound
	}
	return nil
}

// FindWorkoutByIdempotency checks for an earlier settlement with the key.
func (s *Store) FindWorkoutByIdempotency(ctx context.Context, profileID, idempotencyKey string) (*domain.Workout, error) {
	if idempotencyKey == "" {
		return nil, nil
	}

	var workout guestWorkout
	err := s.db.WithContext(ctx).Preload("Sets").
		Where("profile_id = ? AND idempotency_key = ?", profileID, idempotencyKey).
		First(&workout).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	converted := toDomainWorkout(workout)
	return &converted, nil
}

// InsertWorkout persists a workout and its sets.
func (s *Store) InsertWorkout(ctx context.Context, workout domain.Workout) error {
	return s.db.WithContext(ctx).Create(newGuestWorkout(workout, "")).Error
}

// SettleWorkout applies all settlement writes in one transaction, mirroring
// the Postgres backend's guarantee.
func (s *Store) SettleWorkout(ctx context.Context, settlement domain.Settlement) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(newGuestWorkout(settlement.Workout, settlement.IdempotencyKey)).Error; err != nil {
			return err
		}

		day := settlement.WorkoutDay
		result := tx.Model(&guestProfile{}).
			Where("id = ?", settlement.Workout.ProfileID).
			Updates(map[string]interface{}{
				"points":            gorm.Expr("points + ?", settlement.PointsDelta),
				"streak_count":      settlement.StreakCount,
				"last_workout_date": day,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrProfileNotFound
		}
		return nil
	})
}

// ListWorkouts returns the guest's history, newest first.
func (s *Store) ListWorkouts(ctx context.Context, profileID string, cursor *domain.Cursor, limit int) ([]domain.Workout, *domain.Cursor, error) {
	query := s.db.WithContext(ctx).Preload("Sets").Where("profile_id = ?", profileID)
	if cursor != nil {
		query = query.Where("(completed_at, id) < (?, ?)", cursor.CompletedAt, cursor.ID)
	}

	var workouts []guestWorkout
	if err := query.Order("completed_at DESC, id DESC").Limit(limit).Find(&workouts).Error; err != nil {
		return nil, nil, err
	}

	results := make([]domain.Workout, 0, len(workouts))
	for _, w := range workouts {
		results = append(results, toDomainWorkout(w))
	}

	var nextCursor *domain.Cursor
	if len(results) == limit && limit > 0 {
		last := results[len(results)-1]
		nextCursor = &domain.Cursor{CompletedAt: last.CompletedAt, ID: last.ID}
	}
	return results, nextCursor, nil
}

// snapshotPageSize bounds each export query. A var so tests can shrink it.
var snapshotPageSize = 500

// Snapshot exports the full guest state for migration, paging through the
// workout history so no workout is left behind however long it grew.
func (s *Store) Snapshot(ctx context.Context) (domain.GuestSnapshot, error) {
	var snapshot domain.GuestSnapshot

	var profile guestProfile
	err := s.db.WithContext(ctx).First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return snapshot, nil
		}
		return snapshot, err
	}

	snapshot.Profile = domain.GuestProfile{
		ID:          profile.ID,
		Points:      profile.Points,
		StreakCount: profile.StreakCount,
	}

	var cursor *domain.Cursor
	for {
		page, next, err := s.ListWorkouts(ctx, profile.ID, cursor, snapshotPageSize)
		if err != nil {
			return snapshot, err
		}
		snapshot.Workouts = append(snapshot.Workouts, page...)
		if next == nil {
			return snapshot, nil
		}
		cursor = next
	}
}

// Clear deletes all local guest state. Called once migration succeeds; the
// server copy is the sole authority afterwards.
func (s *Store) Clear(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{&guestSet{}, &guestWorkout{}, &guestProfile{}} {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func newGuestWorkout(workout domain.Workout, idempotencyKey string) *guestWorkout {
	record := &guestWorkout{
		ID:              workout.ID,
		ProfileID:       workout.ProfileID,
		TemplateName:    workout.TemplateName,
		DurationMinutes: workout.DurationMinutes,
		Points:          workout.Points,
		CompletedAt:     workout.CompletedAt,
	}
	if idempotencyKey != "" {
		record.IdempotencyKey = &idempotencyKey
	}
	for _, set := range workout.Sets {
		record.Sets = append(record.Sets, guestSet{
			WorkoutID:    workout.ID,
			ExerciseName: set.ExerciseName,
			Weight:       set.Weight,
			Reps:         set.Reps,
			Completed:    set.Completed,
		})
	}
	return record
}

func toDomainProfile(profile guestProfile) *domain.Profile {
	return &domain.Profile{
		ID:              profile.ID,
		Points:          profile.Points,
		StreakCount:     profile.StreakCount,
		LastWorkoutDate: profile.LastWorkoutDate,
		IsGuest:         true,
		CreatedAt:       profile.CreatedAt,
		UpdatedAt:       profile.UpdatedAt,
	}
}

func toDomainWorkout(workout guestWorkout) domain.Workout {
	sets := make([]domain.WorkoutSet, 0, len(workout.Sets))
	for _, set := range workout.Sets {
		sets = append(sets, domain.WorkoutSet{
			ExerciseName: set.ExerciseName,
			Weight:       set.Weight,
			Reps:         set.Reps,
			Completed:    set.Completed,
		})
	}
	return domain.Workout{
		ID:              workout.ID,
		ProfileID:       workout.ProfileID,
		TemplateName:    workout.TemplateName,
		DurationMinutes: workout.DurationMinutes,
		Points:          workout.Points,
		CompletedAt:     workout.CompletedAt,
		Sets:            sets,
	}
}
