// Package postgres provides the account-mode store: profiles, workouts, the
// feature board, and outbox events, all in one database.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/workout/internal/domain"
	"example.com/workout/internal/events"
	"example.com/workout/internal/observability"
)

// Repository provides Postgres-backed persistence for profiles, workouts,
// feature requests, and outbox events.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const profileColumns = `id, email, username, points, streak_count, last_workout_date, is_premium, created_at, updated_at`

func scanProfile(row pgx.Row) (*domain.Profile, error) {
	var p domain.Profile
	err := row.Scan(&p.ID, &p.Email, &p.Username, &p.Points, &p.StreakCount, &p.LastWorkoutDate, &p.IsPremium, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// GetProfile fetches a profile by id, returning nil when absent.
func (r *Repository) GetProfile(ctx context.Context, id string) (*domain.Profile, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id=$1`, id)
	return scanProfile(row)
}

// CreateProfile inserts a new account profile and records the migration
// event in the same transaction. Profiles are only ever created server-side
// through guest migration (an empty snapshot covers plain first sign-in).
func (r *Repository) CreateProfile(ctx context.Context, profile domain.Profile) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	now := time.Now().UTC()
	_, err = tx.Exec(ctx,
		`INSERT INTO profiles (id, email, username, points, streak_count, last_workout_date, is_premium, created_at, updated_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$8)`,
		profile.ID,
		profile.Email,
		profile.Username,
		profile.Points,
		profile.StreakCount,
		profile.LastWorkoutDate,
		profile.IsPremium,
		now,
	)
	if err != nil {
		return err
	}

	err = insertOutbox(ctx, tx, "profile", profile.ID, "profile.migrated", profile.ID, events.ProfileMigrated{
		ProfileID:   profile.ID,
		Username:    profile.Username,
		Points:      profile.Points,
		StreakCount: profile.StreakCount,
		IsPremium:   profile.IsPremium,
		MigratedAt:  now,
	})
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// UpdateProfile applies a partial update.
func (r *Repository) UpdateProfile(ctx context.Context, id string, update domain.ProfileUpdate) error {
	sets := make([]string, 0, 4)
	args := make([]interface{}, 0, 5)
	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s=$%d", column, len(args)))
	}

	if update.Username != nil {
		add("username", *update.Username)
	}
	if update.StreakCount != nil {
		add("streak_count", *update.StreakCount)
	}
	if update.LastWorkoutDate != nil {
		add("last_workout_date", *update.LastWorkoutDate)
	}
	if update.IsPremium != nil {
		add("is_premium", *update.IsPremium)
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE profiles SET %s, updated_at=NOW() WHERE id=$%d`, strings.Join(sets, ", "), len(args))
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrProfileNotFound
	}
	return nil
}

// IncrementPoints adds the delta server-side, avoiding the lost-update window
// of a read-modify-write.
func (r *Repository) IncrementPoints(ctx context.Context, id string, delta int) error {
	tag, err := r.pool.Exec(ctx, `UPDATE profiles SET points = points + $1, updated_at=NOW() WHERE id=$2`, delta, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrProfileNotFound
	}
	return nil
}

const workoutColumns = `id, profile_id, template_name, duration_minutes, points, completed_at`

// FindWorkoutByIdempotency checks if a workout already exists for the
// supplied idempotency key.
func (r *Repository) FindWorkoutByIdempotency(ctx context.Context, profileID, idempotencyKey string) (*domain.Workout, error) {
	if idempotencyKey == "" {
		return nil, nil
	}

	row := r.pool.QueryRow(ctx,
		`SELECT `+workoutColumns+` FROM workouts WHERE profile_id=$1 AND idempotency_key=$2`,
		profileID, idempotencyKey)

	var w domain.Workout
	if err := row.Scan(&w.ID, &w.ProfileID, &w.TemplateName, &w.DurationMinutes, &w.Points, &w.CompletedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	sets, err := r.loadSets(ctx, []string{w.ID})
	if err != nil {
		return nil, err
	}
	w.Sets = sets[w.ID]
	return &w, nil
}

// InsertWorkout persists a workout and its sets. Used by guest migration,
// which replays device history without touching points or streak.
func (r *Repository) InsertWorkout(ctx context.Context, workout domain.Workout) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	if err = insertWorkoutTx(ctx, tx, workout, ""); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// SettleWorkout applies every write a settlement produces in one transaction:
// the workout row, its completed sets, the additive points update, the new
// streak and last workout date, and the outbox event.
func (r *Repository) SettleWorkout(ctx context.Context, settlement domain.Settlement) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	workout := settlement.Workout
	if err = insertWorkoutTx(ctx, tx, workout, settlement.IdempotencyKey); err != nil {
		return err
	}

	row := tx.QueryRow(ctx,
		`UPDATE profiles
         SET points = points + $1, streak_count = $2, last_workout_date = $3, updated_at = NOW()
         WHERE id = $4
         RETURNING points, username, is_premium`,
		settlement.PointsDelta,
		settlement.StreakCount,
		settlement.WorkoutDay,
		workout.ProfileID,
	)

	var totalPoints int
	var username string
	var isPremium bool
	if err = row.Scan(&totalPoints, &username, &isPremium); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = domain.ErrProfileNotFound
		}
		return err
	}

	err = insertOutbox(ctx, tx, "workout", workout.ID, "workout.settled", workout.ProfileID, events.WorkoutSettled{
		WorkoutID:       workout.ID,
		ProfileID:       workout.ProfileID,
		Username:        username,
		TemplateName:    workout.TemplateName,
		DurationMinutes: workout.DurationMinutes,
		PointsEarned:    settlement.PointsDelta,
		TotalPoints:     totalPoints,
		StreakCount:     settlement.StreakCount,
		IsPremium:       isPremium,
		CompletedOn:     settlement.WorkoutDay.Format("2006-01-02"),
		SettledAt:       workout.CompletedAt,
	})
	if err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return err
	}
	observability.RecordWorkoutSettled(workout.CompletedAt)
	observability.RecordPointsAwarded(settlement.PointsDelta)
	return nil
}

func insertWorkoutTx(ctx context.Context, tx pgx.Tx, workout domain.Workout, idempotencyKey string) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO workouts (id, profile_id, template_name, duration_minutes, points, completed_at, idempotency_key)
         VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		workout.ID,
		workout.ProfileID,
		workout.TemplateName,
		workout.DurationMinutes,
		workout.Points,
		workout.CompletedAt,
		nullIfEmpty(idempotencyKey),
	)
	if err != nil {
		return err
	}

	for _, set := range workout.Sets {
		if _, err := tx.Exec(ctx,
			`INSERT INTO workout_sets (workout_id, exercise_name, weight, reps, completed)
             VALUES ($1,$2,$3,$4,$5)`,
			workout.ID, set.ExerciseName, set.Weight, set.Reps, set.Completed,
		); err != nil {
			return err
		}
	}
	return nil
}

// ListWorkouts returns workouts for a profile ordered by completion time.
func (r *Repository) ListWorkouts(ctx context.Context, profileID string, cursor *domain.Cursor, limit int) ([]domain.Workout, *domain.Cursor, error) {
	args := []interface{}{profileID, limit}
	query := `SELECT ` + workoutColumns + ` FROM workouts WHERE profile_id=$1`

	if cursor != nil {
		query += ` AND (completed_at, id) < ($3, $4)`
		args = append(args, cursor.CompletedAt, cursor.ID)
	}

	query += ` ORDER BY completed_at DESC, id DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	results := make([]domain.Workout, 0, limit)
	ids := make([]string, 0, limit)
	for rows.Next() {
		var w domain.Workout
		if err := rows.Scan(&w.ID, &w.ProfileID, &w.TemplateName, &w.DurationMinutes, &w.Points, &w.CompletedAt); err != nil {
			return nil, nil, err
		}
		results = append(results, w)
		ids = append(ids, w.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	sets, err := r.loadSets(ctx, ids)
	if err != nil {
		return nil, nil, err
	}
	for i := range results {
		results[i].Sets = sets[results[i].ID]
	}

	var nextCursor *domain.Cursor
	if len(results) == limit {
		last := results[len(results)-1]
		nextCursor = &domain.Cursor{CompletedAt: last.CompletedAt, ID: last.ID}
	}

	return results, nextCursor, nil
}

func (r *Repository) loadSets(ctx context.Context, workoutIDs []string) (map[string][]domain.WorkoutSet, error) {
	out := make(map[string][]domain.WorkoutSet, len(workoutIDs))
	if len(workoutIDs) == 0 {
		return out, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT workout_id, exercise_name, weight, reps, completed
         FROM workout_sets WHERE workout_id = ANY($1) ORDER BY id`,
		workoutIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var workoutID string
		var set domain.WorkoutSet
		if err := rows.Scan(&workoutID, &set.ExerciseName, &set.Weight, &set.Reps, &set.Completed); err != nil {
			return nil, err
		}
		out[workoutID] = append(out[workoutID], set)
	}
	return out, rows.Err()
}

func insertOutbox(ctx context.Context, tx pgx.Tx, aggregateType, aggregateID, eventType, partitionKey string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	meta, ok := eventCatalog[eventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	dedupeKey := fmt.Sprintf("%s:%s", aggregateID, eventType)

	_, err = tx.Exec(ctx,
		`INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		aggregateType,
		aggregateID,
		eventType,
		meta.Topic,
		meta.SchemaSubject,
		partitionKey,
		body,
		dedupeKey,
	)
	return err
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic         string
	SchemaSubject string
}

var eventCatalog = map[string]EventMetadata{
	"workout.settled": {
		Topic:         "workout_events",
		SchemaSubject: "workout_events-value",
	},
	"profile.migrated": {
		Topic:         "profile_events",
		SchemaSubject: "profile_events-value",
	},
}
