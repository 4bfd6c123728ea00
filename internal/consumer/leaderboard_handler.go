package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	"example.com/workout/internal/events"
	"example.com/workout/internal/leaderboard"
)

// RankUpdater applies projected member state to the leaderboard.
type RankUpdater interface {
	UpdateScore(context.Context, leaderboard.MemberUpdate) error
}

// LeaderboardHandler projects settlement and migration events into Redis.
// Events carry absolute point totals, so replays are harmless.
type LeaderboardHandler struct {
	ranker RankUpdater
}

// NewLeaderboardHandler constructs a handler over the provided ranker.
func NewLeaderboardHandler(ranker RankUpdater) *LeaderboardHandler {
	return &LeaderboardHandler{ranker: ranker}
}

// Handle dispatches on event type. Unknown events are skipped so the topic
// can evolve without stalling this consumer group.
func (h *LeaderboardHandler) Handle(ctx context.Context, msg Message) error {
	switch msg.EventType {
	case "workout.settled":
		var event events.WorkoutSettled
		if err := json.Unmarshal(msg.Payload, &event); err != nil {
			return fmt.Errorf("decode workout.settled: %w", err)
		}
		return h.ranker.UpdateScore(ctx, leaderboard.MemberUpdate{
			ProfileID:   event.ProfileID,
			Username:    event.Username,
			TotalPoints: event.TotalPoints,
			StreakCount: event.StreakCount,
			IsPremium:   event.IsPremium,
		})
	case "profile.migrated":
		var event events.ProfileMigrated
		if err := json.Unmarshal(msg.Payload, &event); err != nil {
			return fmt.Errorf("decode profile.migrated: %w", err)
		}
		return h.ranker.UpdateScore(ctx, leaderboard.MemberUpdate{
			ProfileID:   event.ProfileID,
			Username:    event.Username,
			TotalPoints: event.Points,
			StreakCount: event.StreakCount,
			IsPremium:   event.IsPremium,
		})
	default:
		return nil
	}
}
