package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrFeatureNotFound is returned when an upvote targets an unknown request.
var ErrFeatureNotFound = errors.New("feature request not found")

// FeatureRequest is a user-submitted feature idea on the public board.
type FeatureRequest struct {
	ID          string
	ProfileID   string
	Username    string
	Title       string
	Description string
	Upvotes     int
	Status      string
	CreatedAt   time.Time
	// UpvotedByCaller is populated by list queries for the requesting user.
	UpvotedByCaller bool
}

// FeatureStore captures feature-request persistence. Only the account-mode
// backend implements it; the board does not exist in device mode.
type FeatureStore interface {
	// CreateFeatureRequest inserts the request together with the creator's
	// implicit upvote row in one transaction.
	CreateFeatureRequest(ctx context.Context, request FeatureRequest) error
	// ToggleUpvote flips the caller's upvote and moves the counter with it.
	// It reports whether the request is upvoted after the call.
	ToggleUpvote(ctx context.Context, profileID, requestID string) (bool, error)
	// ListFeatureRequests returns the board ordered by upvotes desc, then
	// created_at desc, annotated for the caller.
	ListFeatureRequests(ctx context.Context, callerProfileID string) ([]FeatureRequest, error)
}

// FeatureService wraps the feature board operations.
type FeatureService struct {
	store FeatureStore
}

// NewFeatureService constructs a FeatureService.
func NewFeatureService(store FeatureStore) *FeatureService {
	return &FeatureService{store: store}
}

// CreateRequest submits a new feature request. The creator counts as the
// first upvote.
func (s *FeatureService) CreateRequest(ctx context.Context, profileID, title, description string) (*FeatureRequest, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.New("title is required")
	}

	request := FeatureRequest{
		ID:          uuid.NewString(),
		ProfileID:   profileID,
		Title:       title,
		Description: strings.TrimSpace(description),
		Upvotes:     1,
		Status:      "open",
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.CreateFeatureRequest(ctx, request); err != nil {
		return nil, err
	}
	return &request, nil
}

// ToggleUpvote adds or removes the caller's upvote.
func (s *FeatureService) ToggleUpvote(ctx context.Context, profileID, requestID string) (bool, error) {
	return s.store.ToggleUpvote(ctx, profileID, requestID)
}

// List returns the board for the caller.
func (s *FeatureService) List(ctx context.Context, callerProfileID string) ([]FeatureRequest, error) {
	return s.store.ListFeatureRequests(ctx, callerProfileID)
}
