package api

import (
	"context"
	"net/http"
	"strconv"

	"example.com/workout/internal/auth"
	"example.com/workout/internal/leaderboard"
)

// RankReader is the read side of the leaderboard projection.
type RankReader interface {
	Top(ctx context.Context, limit int, premiumOnly bool) ([]leaderboard.Entry, error)
	Rank(ctx context.Context, profileID string) (int, error)
}

// LeaderboardResponse packages ranked entries.
type LeaderboardResponse struct {
	Entries []leaderboard.Entry `json:"entries"`
}

// RankResponse reports the caller's position. Rank 0 means unranked.
type RankResponse struct {
	ProfileID string `json:"profile_id"`
	Rank      int    `json:"rank"`
}

func (h *Handler) leaderboardTop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	if h.ranker == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "leaderboard is not available in this deployment")
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !auth.CanRead(claims) {
		writeError(w, http.StatusForbidden, "forbidden", "scope workouts:read required")
		return
	}

	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			if parsed > 100 {
				parsed = 100
			}
			limit = parsed
		}
	}
	premiumOnly := r.URL.Query().Get("premium_only") == "true"

	entries, err := h.ranker.Top(r.Context(), limit, premiumOnly)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, LeaderboardResponse{Entries: entries})
}

func (h *Handler) leaderboardRank(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	if h.ranker == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "leaderboard is not available in this deployment")
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !auth.CanRead(claims) {
		writeError(w, http.StatusForbidden, "forbidden", "scope workouts:read required")
		return
	}

	rank, err := h.ranker.Rank(r.Context(), claims.Subject)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, RankResponse{ProfileID: claims.Subject, Rank: rank})
}
