package domain

import (
	"context"
	"time"
)

// Profile is the durable per-user (or per-device) record holding points and
// streak state. Guest profiles live only in the local device store and never
// appear on the leaderboard.
type Profile struct {
	ID              string
	Email           string
	Username        string
	Points          int
	StreakCount     int
	LastWorkoutDate *time.Time // calendar date; nil until the first settled workout
	IsGuest         bool
	IsPremium       bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ProfileUpdate carries a partial update; nil fields are left untouched.
type ProfileUpdate struct {
	Username        *string
	StreakCount     *int
	LastWorkoutDate *time.Time
	IsPremium       *bool
}

// ProfileStore captures profile persistence operations.
type ProfileStore interface {
	// GetProfile returns nil, nil when no profile exists for the id.
	GetProfile(ctx context.Context, id string) (*Profile, error)
	CreateProfile(ctx context.Context, profile Profile) error
	UpdateProfile(ctx context.Context, id string, update ProfileUpdate) error
	// IncrementPoints adds delta atomically rather than read-modify-write.
	IncrementPoints(ctx context.Context, id string, delta int) error
}
