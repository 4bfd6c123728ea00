//go:build integration

package postgres

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"example.com/workout/internal/domain"
)

func TestSettleWorkoutTransactional(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgres(t, ctx)
	defer cleanup()

	repo := NewRepository(pool)

	profileID := uuid.NewString()
	require.NoError(t, repo.CreateProfile(ctx, domain.Profile{
		ID:       profileID,
		Email:    "ada@example.com",
		Username: "ada",
		Points:   100,
	}))

	completedAt := time.Date(2024, 3, 10, 18, 30, 0, 0, time.UTC)
	workoutID := uuid.NewString()
	settlement := domain.Settlement{
		Workout: domain.Workout{
			ID:              workoutID,
			ProfileID:       profileID,
			TemplateName:    "Push Day",
			DurationMinutes: 45,
			Points:          12,
			CompletedAt:     completedAt,
			Sets: []domain.WorkoutSet{
				{ExerciseName: "Bench Press", Weight: 80, Reps: 8, Completed: true},
				{ExerciseName: "Overhead Press", Weight: 40, Reps: 10, Completed: true},
			},
		},
		PointsDelta:    12,
		StreakCount:    1,
		WorkoutDay:     domain.DateOf(completedAt),
		IdempotencyKey: "settle-1",
	}
	require.NoError(t, repo.SettleWorkout(ctx, settlement))

	profile, err := repo.GetProfile(ctx, profileID)
	require.NoError(t, err)
	require.NotNil(t, profile)
	require.Equal(t, 112, profile.Points)
	require.Equal(t, 1, profile.StreakCount)
	require.NotNil(t, profile.LastWorkoutDate)

	stored, err := repo.FindWorkoutByIdempotency(ctx, profileID, "settle-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Equal(t, workoutID, stored.ID)
	require.Len(t, stored.Sets, 2)

	var eventCount int
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM outbox WHERE event_type = 'workout.settled' AND aggregate_id = $1`,
		workoutID).Scan(&eventCount))
	require.Equal(t, 1, eventCount)

	// A second settlement under the same key must be rejected by the unique
	// index without touching the profile.
	settlement.Workout.ID = uuid.NewString()
	require.Error(t, repo.SettleWorkout(ctx, settlement))

	profile, err = repo.GetProfile(ctx, profileID)
	require.NoError(t, err)
	require.Equal(t, 112, profile.Points)
}

func TestCreateProfileEmitsMigrationEvent(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgres(t, ctx)
	defer cleanup()

	repo := NewRepository(pool)

	profileID := uuid.NewString()
	require.NoError(t, repo.CreateProfile(ctx, domain.Profile{
		ID:          profileID,
		Email:       "grace@example.com",
		Username:    "grace",
		Points:      30,
		StreakCount: 4,
	}))

	var topic string
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT topic FROM outbox WHERE event_type = 'profile.migrated' AND aggregate_id = $1`,
		profileID).Scan(&topic))
	require.Equal(t, "profile_events", topic)
}

func TestListWorkoutsPaginates(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgres(t, ctx)
	defer cleanup()

	repo := NewRepository(pool)

	profileID := uuid.NewString()
	require.NoError(t, repo.CreateProfile(ctx, domain.Profile{ID: profileID, Email: "x@example.com"}))

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.InsertWorkout(ctx, domain.Workout{
			ID:          uuid.NewString(),
			ProfileID:   profileID,
			Points:      i,
			CompletedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	page, cursor, err := repo.ListWorkouts(ctx, profileID, nil, 3)
	require.NoError(t, err)
	require.Len(t, page, 3)
	require.NotNil(t, cursor)
	require.True(t, page[0].CompletedAt.After(page[1].CompletedAt))

	rest, _, err := repo.ListWorkouts(ctx, profileID, cursor, 3)
	require.NoError(t, err)
	require.Len(t, rest, 2)
	require.True(t, page[2].CompletedAt.After(rest[0].CompletedAt))
}

func TestFeatureUpvoteLifecycle(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgres(t, ctx)
	defer cleanup()

	repo := NewRepository(pool)

	author := uuid.NewString()
	voter := uuid.NewString()
	require.NoError(t, repo.CreateProfile(ctx, domain.Profile{ID: author, Email: "author@example.com", Username: "author"}))
	require.NoError(t, repo.CreateProfile(ctx, domain.Profile{ID: voter, Email: "voter@example.com", Username: "voter"}))

	request := domain.FeatureRequest{
		ID:        uuid.NewString(),
		ProfileID: author,
		Title:     "Dark mode",
		Upvotes:   1,
		Status:    "open",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.CreateFeatureRequest(ctx, request))

	upvoted, err := repo.ToggleUpvote(ctx, voter, request.ID)
	require.NoError(t, err)
	require.True(t, upvoted)

	board, err := repo.ListFeatureRequests(ctx, voter)
	require.NoError(t, err)
	require.Len(t, board, 1)
	require.Equal(t, 2, board[0].Upvotes)
	require.True(t, board[0].UpvotedByCaller)
	require.Equal(t, "author", board[0].Username)
	require.Empty(t, board[0].Description)

	upvoted, err = repo.ToggleUpvote(ctx, voter, request.ID)
	require.NoError(t, err)
	require.False(t, upvoted)

	board, err = repo.ListFeatureRequests(ctx, voter)
	require.NoError(t, err)
	require.Equal(t, 1, board[0].Upvotes)
	require.False(t, board[0].UpvotedByCaller)

	_, err = repo.ToggleUpvote(ctx, voter, uuid.NewString())
	require.ErrorIs(t, err, domain.ErrFeatureNotFound)

	board, err = repo.ListFeatureRequests(ctx, voter)
	require.NoError(t, err)
	require.Len(t, board, 1)
	require.Equal(t, 1, board[0].Upvotes)
}

func setupPostgres(t *testing.T, ctx context.Context) (*pgxpool.Pool, func()) {
	t.Helper()

	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("workout"),
		postgrescontainer.WithUsername("platform"),
		postgrescontainer.WithPassword("platform"),
	)
	require.NoError(t, err)

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, waitForDatabase(ctx, connStr))

	runMigrations(t, ctx, connStr)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	cleanup := func() {
		pool.Close()
		_ = pg.Terminate(ctx)
	}
	return pool, cleanup
}

func runMigrations(t *testing.T, ctx context.Context, connStr string) {
	t.Helper()

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	defer pool.Close()

	migrationsDir := resolvePath(t, "../../../db/postgres/migrations")
	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.up.sql"))
	require.NoError(t, err)
	require.NotEmpty(t, files, "expected at least one migration .up.sql file")

	sort.Strings(files)

	for _, file := range files {
		contents, readErr := os.ReadFile(file)
		require.NoErrorf(t, readErr, "read migration %s", file)

		if _, execErr := pool.Exec(ctx, string(contents)); execErr != nil {
			require.NoErrorf(t, execErr, "execute migration %s", file)
		}
	}
}

func resolvePath(t *testing.T, rel string) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), rel)
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}
