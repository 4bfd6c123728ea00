// Package api exposes HTTP handlers for the workout service.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"example.com/workout/internal/auth"
	"example.com/workout/internal/domain"
	"example.com/workout/internal/persistence"
)

// Handler coordinates HTTP requests with the domain services. The feature
// board, leaderboard, and billing dependencies are nil in device deployments;
// their endpoints answer 503 there.
type Handler struct {
	service  *domain.Service
	features *domain.FeatureService
	ranker   RankReader
	checkout CheckoutProvider
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service, opts ...HandlerOption) *Handler {
	h := &Handler{service: service}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandlerOption wires optional account-mode dependencies.
type HandlerOption func(*Handler)

// WithFeatureBoard enables the feature-request endpoints.
func WithFeatureBoard(features *domain.FeatureService) HandlerOption {
	return func(h *Handler) { h.features = features }
}

// WithLeaderboard enables the leaderboard endpoints.
func WithLeaderboard(ranker RankReader) HandlerOption {
	return func(h *Handler) { h.ranker = ranker }
}

// WithBilling enables the premium checkout endpoint.
func WithBilling(checkout CheckoutProvider) HandlerOption {
	return func(h *Handler) { h.checkout = checkout }
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/workouts", h.workouts)
	mux.HandleFunc("/v1/profile", h.profile)
	mux.HandleFunc("/v1/migrate", h.migrate)
	mux.HandleFunc("/v1/leaderboard", h.leaderboardTop)
	mux.HandleFunc("/v1/leaderboard/rank", h.leaderboardRank)
	mux.HandleFunc("/v1/features", h.featureBoard)
	mux.HandleFunc("/v1/features/", h.featureUpvote)
	mux.HandleFunc("/v1/billing/checkout", h.billingCheckout)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) workouts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.settleWorkout(w, r)
	case http.MethodGet:
		h.listWorkouts(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) settleWorkout(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeWorkoutsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope workouts:write required")
		return
	}

	var req SettleWorkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	sets := make([]domain.WorkoutSet, 0, len(req.Sets))
	for _, set := range req.Sets {
		sets = append(sets, domain.WorkoutSet{
			ExerciseName: set.ExerciseName,
			Weight:       set.Weight,
			Reps:         set.Reps,
			Completed:    set.Completed,
		})
	}

	result, err := h.service.SettleWorkout(r.Context(), claims.Subject, domain.SettlementInput{
		TemplateName:    req.TemplateName,
		DurationMinutes: req.DurationMinutes,
		PointsEarned:    req.PointsEarned,
		Sets:            sets,
		IdempotencyKey:  r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		if errors.Is(err, domain.ErrProfileNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "profile not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	resp := SettleWorkoutResponse{
		WorkoutID:   result.WorkoutID,
		TotalPoints: result.TotalPoints,
		StreakCount: result.StreakCount,
		WorkoutDay:  result.WorkoutDay.Format("2006-01-02"),
		Replay:      result.Replay,
	}

	status := http.StatusCreated
	if result.Replay {
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}

func (h *Handler) listWorkouts(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !auth.CanRead(claims) {
		writeError(w, http.StatusForbidden, "forbidden", "scope workouts:read required")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			if parsed > 100 {
				parsed = 100
			}
			limit = parsed
		}
	}

	cursor, err := persistence.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	workouts, next, err := h.service.ListWorkouts(r.Context(), claims.Subject, cursor, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	items := make([]WorkoutView, 0, len(workouts))
	for _, workout := range workouts {
		items = append(items, toWorkoutView(workout))
	}

	writeJSON(w, http.StatusOK, ListWorkoutsResponse{
		Items:      items,
		NextCursor: persistence.EncodeCursor(next),
	})
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
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

	profile, err := h.service.Profile(r.Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrProfileNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "profile not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, toProfileView(*profile))
}

func (h *Handler) migrate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if claims.Guest {
		writeError(w, http.StatusForbidden, "forbidden", "migration requires a signed-in account")
		return
	}

	var req MigrateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	snapshot := domain.GuestSnapshot{
		Profile: domain.GuestProfile{
			ID:          req.Profile.ID,
			Points:      req.Profile.Points,
			StreakCount: req.Profile.StreakCount,
		},
	}
	for _, workout := range req.Workouts {
		converted := domain.Workout{
			TemplateName:    workout.TemplateName,
			DurationMinutes: workout.DurationMinutes,
			Points:          workout.Points,
			CompletedAt:     workout.CompletedAt,
		}
		for _, set := range workout.Sets {
			converted.Sets = append(converted.Sets, domain.WorkoutSet{
				ExerciseName: set.ExerciseName,
				Weight:       set.Weight,
				Reps:         set.Reps,
				Completed:    set.Completed,
			})
		}
		snapshot.Workouts = append(snapshot.Workouts, converted)
	}

	result, err := h.service.MigrateGuest(r.Context(), domain.AccountIdentity{
		ID:    claims.Subject,
		Email: claims.Email,
	}, snapshot)
	if err != nil {
		if errors.Is(err, domain.ErrPartialSettlement) {
			writeError(w, http.StatusConflict, "partial_migration", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, MigrateResponse{
		Migrated:      result.Migrated,
		Points:        result.Points,
		StreakCarried: result.StreakCarried,
		WorkoutCount:  result.WorkoutCount,
	})
}

// SettleWorkoutRequest is the payload for POST /v1/workouts.
type SettleWorkoutRequest struct {
	TemplateName    string           `json:"template_name"`
	DurationMinutes int              `json:"duration_minutes"`
	PointsEarned    int              `json:"points_earned"`
	Sets            []WorkoutSetView `json:"sets"`
}

// Validate ensures request correctness. A workout with no completed sets is
// accepted; the session still counts toward the streak.
func (r SettleWorkoutRequest) Validate() error {
	if strings.TrimSpace(r.TemplateName) == "" {
		return errors.New("template_name is required")
	}
	if r.DurationMinutes < 0 {
		return errors.New("duration_minutes must be >= 0")
	}
	if r.PointsEarned < 0 {
		return errors.New("points_earned must be >= 0")
	}
	return nil
}

// SettleWorkoutResponse describes the response body for settlement.
type SettleWorkoutResponse struct {
	WorkoutID   string `json:"workout_id"`
	TotalPoints int    `json:"total_points"`
	StreakCount int    `json:"streak_count"`
	WorkoutDay  string `json:"workout_day"`
	Replay      bool   `json:"idempotent_replay"`
}

// WorkoutSetView mirrors a logged set on the wire.
type WorkoutSetView struct {
	ExerciseName string  `json:"exercise_name"`
	Weight       float64 `json:"weight"`
	Reps         int     `json:"reps"`
	Completed    bool    `json:"completed"`
}

// WorkoutView exposes a persisted workout.
type WorkoutView struct {
	WorkoutID       string           `json:"workout_id"`
	TemplateName    string           `json:"template_name"`
	DurationMinutes int              `json:"duration_minutes"`
	Points          int              `json:"points"`
	CompletedAt     time.Time        `json:"completed_at"`
	Sets            []WorkoutSetView `json:"sets"`
}

// ListWorkoutsResponse packages list results.
type ListWorkoutsResponse struct {
	Items      []WorkoutView `json:"items"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

// ProfileView exposes the caller's profile.
type ProfileView struct {
	ProfileID       string     `json:"profile_id"`
	Username        string     `json:"username"`
	Points          int        `json:"points"`
	StreakCount     int        `json:"streak_count"`
	LastWorkoutDate *string    `json:"last_workout_date,omitempty"`
	IsGuest         bool       `json:"is_guest"`
	IsPremium       bool       `json:"is_premium"`
	CreatedAt       time.Time  `json:"created_at"`
}

// MigrateRequest carries a guest snapshot into POST /v1/migrate.
type MigrateRequest struct {
	Profile struct {
		ID          string `json:"id"`
		Points      int    `json:"points"`
		StreakCount int    `json:"streak_count"`
	} `json:"profile"`
	Workouts []WorkoutView `json:"workouts"`
}

// MigrateResponse reports the migration outcome.
type MigrateResponse struct {
	Migrated      bool `json:"migrated"`
	Points        int  `json:"points"`
	StreakCarried int  `json:"streak_carried"`
	WorkoutCount  int  `json:"workout_count"`
}

func toWorkoutView(workout domain.Workout) WorkoutView {
	view := WorkoutView{
		WorkoutID:       workout.ID,
		TemplateName:    workout.TemplateName,
		DurationMinutes: workout.DurationMinutes,
		Points:          workout.Points,
		CompletedAt:     workout.CompletedAt,
		Sets:            make([]WorkoutSetView, 0, len(workout.Sets)),
	}
	for _, set := range workout.Sets {
		view.Sets = append(view.Sets, WorkoutSetView{
			ExerciseName: set.ExerciseName,
			Weight:       set.Weight,
			Reps:         set.Reps,
			Completed:    set.Completed,
		})
	}
	return view
}

func toProfileView(profile domain.Profile) ProfileView {
	view := ProfileView{
		ProfileID:   profile.ID,
		Username:    profile.Username,
		Points:      profile.Points,
		StreakCount: profile.StreakCount,
		IsGuest:     profile.IsGuest,
		IsPremium:   profile.IsPremium,
		CreatedAt:   profile.CreatedAt,
	}
	if profile.LastWorkoutDate != nil {
		formatted := profile.LastWorkoutDate.Format("2006-01-02")
		view.LastWorkoutDate = &formatted
	}
	return view
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
