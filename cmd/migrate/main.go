// Command migrate pushes the device's guest progress to an account backend.
// It reads the local store, posts the snapshot with the account's token, and
// clears local state once the server confirms the migration.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"example.com/workout/internal/api"
	"example.com/workout/internal/domain"
	"example.com/workout/internal/persistence/localstore"
)

func main() {
	var (
		storePath = flag.String("store", "workout.db", "path to the device store")
		serverURL = flag.String("server", "http://localhost:8080", "account backend base URL")
		token     = flag.String("token", "", "bearer token for the signed-in account")
		discard   = flag.Bool("discard", false, "clear local data even when the server skips the migration")
		timeout   = flag.Duration("timeout", 30*time.Second, "request timeout")
	)
	flag.Parse()

	if *token == "" {
		log.Fatal("missing -token: sign in first and pass the account token")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	store, err := localstore.Open(*storePath)
	if err != nil {
		log.Fatalf("open device store: %v", err)
	}

	snapshot, err := store.Snapshot(ctx)
	if err != nil {
		log.Fatalf("read device store: %v", err)
	}
	if snapshot.Profile.ID == "" {
		fmt.Println("nothing to migrate: no local guest profile")
		return
	}

	result, err := postSnapshot(ctx, *serverURL, *token, snapshot)
	if err != nil {
		log.Fatalf("migration failed, local data kept: %v", err)
	}

	if result.Migrated {
		if err := store.Clear(ctx); err != nil {
			log.Fatalf("server accepted the migration but clearing local data failed: %v", err)
		}
		fmt.Printf("migrated %d points, %d workouts (streak of %d carried; it resumes on your next workout)\n",
			result.Points, result.WorkoutCount, result.StreakCarried)
		return
	}

	fmt.Println("server skipped the migration: the account already has a profile")
	if !*discard {
		fmt.Println("local data kept; rerun with -discard to delete it anyway")
		os.Exit(1)
	}
	if err := store.Clear(ctx); err != nil {
		log.Fatalf("clearing local data failed: %v", err)
	}
	fmt.Println("local data discarded")
}

func postSnapshot(ctx context.Context, serverURL, token string, snapshot domain.GuestSnapshot) (*api.MigrateResponse, error) {
	var req api.MigrateRequest
	req.Profile.ID = snapshot.Profile.ID
	req.Profile.Points = snapshot.Profile.Points
	req.Profile.StreakCount = snapshot.Profile.StreakCount
	for _, workout := range snapshot.Workouts {
		view := api.WorkoutView{
			WorkoutID:       workout.ID,
			TemplateName:    workout.TemplateName,
			DurationMinutes: workout.DurationMinutes,
			Points:          workout.Points,
			CompletedAt:     workout.CompletedAt,
		}
		for _, set := range workout.Sets {
			view.Sets = append(view.Sets, api.WorkoutSetView{
				ExerciseName: set.ExerciseName,
				Weight:       set.Weight,
				Reps:         set.Reps,
				Completed:    set.Completed,
			})
		}
		req.Workouts = append(req.Workouts, view)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, serverURL+"/v1/migrate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errBody struct {
			Type   string `json:"type"`
			Detail string `json:"detail"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		return nil, fmt.Errorf("server answered %d (%s: %s)", resp.StatusCode, errBody.Type, errBody.Detail)
	}

	var result api.MigrateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}
