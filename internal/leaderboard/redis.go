// Package leaderboard maintains the points ranking as a Redis projection fed
// by settlement events. Scores are absolute point totals, so applying the
// same event twice converges to the same state.
package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const (
	pointsKey  = "leaderboard:points"
	premiumKey = "leaderboard:premium"
	memberKey  = "leaderboard:member:"
)

// Entry is one ranked row.
type Entry struct {
	Rank        int    `json:"rank"`
	ProfileID   string `json:"profile_id"`
	Username    string `json:"username"`
	Points      int    `json:"points"`
	StreakCount int    `json:"streak_count"`
	IsPremium   bool   `json:"is_premium"`
}

// MemberUpdate carries the projected state for one profile.
type MemberUpdate struct {
	ProfileID   string
	Username    string
	TotalPoints int
	StreakCount int
	IsPremium   bool
}

// Ranker reads and writes the Redis sorted sets backing the leaderboard.
type Ranker struct {
	client redis.UniversalClient
}

// NewRanker wraps an established Redis client.
func NewRanker(client redis.UniversalClient) *Ranker {
	return &Ranker{client: client}
}

// UpdateScore sets the member's absolute score and display attributes. The
// premium set mirrors the points set for premium members only.
func (r *Ranker) UpdateScore(ctx context.Context, update MemberUpdate) error {
	member := redis.Z{Score: float64(update.TotalPoints), Member: update.ProfileID}

	pipe := r.client.TxPipeline()
	pipe.ZAdd(ctx, pointsKey, member)
	pipe.HSet(ctx, memberKey+update.ProfileID,
		"username", update.Username,
		"streak_count", update.StreakCount,
		"premium", boolField(update.IsPremium),
	)
	if update.IsPremium {
		pipe.ZAdd(ctx, premiumKey, member)
	} else {
		pipe.ZRem(ctx, premiumKey, update.ProfileID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("update leaderboard member %s: %w", update.ProfileID, err)
	}
	return nil
}

// Top returns the highest scored members, optionally restricted to premium.
func (r *Ranker) Top(ctx context.Context, limit int, premiumOnly bool) ([]Entry, error) {
	if limit <= 0 {
		limit = 10
	}
	key := pointsKey
	if premiumOnly {
		key = premiumKey
	}

	scored, err := r.client.ZRevRangeWithScores(ctx, key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read leaderboard: %w", err)
	}

	entries := make([]Entry, 0, len(scored))
	for i, z := range scored {
		profileID, ok := z.Member.(string)
		if !ok {
			continue
		}
		entry := Entry{
			Rank:      i + 1,
			ProfileID: profileID,
			Points:    int(z.Score),
		}
		attrs, err := r.client.HGetAll(ctx, memberKey+profileID).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("read leaderboard member %s: %w", profileID, err)
		}
		entry.Username = attrs["username"]
		entry.StreakCount, _ = strconv.Atoi(attrs["streak_count"])
		entry.IsPremium = attrs["premium"] == "1"
		entries = append(entries, entry)
	}
	return entries, nil
}

// Rank returns the 1-based position of a profile, or 0 when unranked.
func (r *Ranker) Rank(ctx context.Context, profileID string) (int, error) {
	rank, err := r.client.ZRevRank(ctx, pointsKey, profileID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("read rank for %s: %w", profileID, err)
	}
	return int(rank) + 1, nil
}

func boolField(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
