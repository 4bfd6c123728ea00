package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"example.com/workout/internal/auth"
	"example.com/workout/internal/domain"
)

// FeatureRequestView exposes a board entry.
type FeatureRequestView struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Upvotes     int       `json:"upvotes"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	Upvoted     bool      `json:"upvoted"`
}

// CreateFeatureRequest is the payload for POST /v1/features.
type CreateFeatureRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// ListFeaturesResponse packages the board.
type ListFeaturesResponse struct {
	Items []FeatureRequestView `json:"items"`
}

// UpvoteResponse reports the toggle outcome.
type UpvoteResponse struct {
	RequestID string `json:"request_id"`
	Upvoted   bool   `json:"upvoted"`
}

func (h *Handler) featureBoard(w http.ResponseWriter, r *http.Request) {
	if h.features == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "feature requests are not available in this deployment")
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}

	switch r.Method {
	case http.MethodPost:
		h.createFeature(w, r, claims)
	case http.MethodGet:
		h.listFeatures(w, r, claims)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) createFeature(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	if claims.Guest {
		writeError(w, http.StatusForbidden, "forbidden", "feature requests require a signed-in account")
		return
	}

	var req CreateFeatureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	created, err := h.features.CreateRequest(r.Context(), claims.Subject, req.Title, req.Description)
	if err != nil {
		if strings.Contains(err.Error(), "required") {
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, toFeatureView(*created))
}

func (h *Handler) listFeatures(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	requests, err := h.features.List(r.Context(), claims.Subject)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	items := make([]FeatureRequestView, 0, len(requests))
	for _, request := range requests {
		items = append(items, toFeatureView(request))
	}
	writeJSON(w, http.StatusOK, ListFeaturesResponse{Items: items})
}

func (h *Handler) featureUpvote(w http.ResponseWriter, r *http.Request) {
	if h.features == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "feature requests are not available in this deployment")
		return
	}
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
		writeError(w, http.StatusForbidden, "forbidden", "upvoting requires a signed-in account")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/v1/features/")
	requestID := strings.TrimSuffix(rest, "/upvote")
	if requestID == "" || requestID == rest {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing feature request id")
		return
	}

	upvoted, err := h.features.ToggleUpvote(r.Context(), claims.Subject, requestID)
	if err != nil {
		if errors.Is(err, domain.ErrFeatureNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "feature request not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, UpvoteResponse{RequestID: requestID, Upvoted: upvoted})
}

func toFeatureView(request domain.FeatureRequest) FeatureRequestView {
	return FeatureRequestView{
		ID:          request.ID,
		Username:    request.Username,
		Title:       request.Title,
		Description: request.Description,
		Upvotes:     request.Upvotes,
		Status:      request.Status,
		CreatedAt:   request.CreatedAt,
		Upvoted:     request.UpvotedByCaller,
	}
}
