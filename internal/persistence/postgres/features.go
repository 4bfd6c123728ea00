package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"example.com/workout/internal/domain"
)

// CreateFeatureRequest inserts the request and the creator's implicit upvote
// row in one transaction, matching the counter that starts at 1.
func (r *Repository) CreateFeatureRequest(ctx context.Context, request domain.FeatureRequest) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	_, err = tx.Exec(ctx,
		`INSERT INTO feature_requests (id, profile_id, title, description, upvotes, status, created_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		request.ID, request.ProfileID, request.Title, nullIfEmpty(request.Description), request.Upvotes, request.Status, request.CreatedAt,
	)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO feature_upvotes (profile_id, request_id) VALUES ($1,$2)`,
		request.ProfileID, request.ID,
	)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// ToggleUpvote flips the caller's upvote; the counter moves inside the same
// transaction so it can never drift from the upvote rows.
func (r *Repository) ToggleUpvote(ctx context.Context, profileID, requestID string) (bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	var known bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM feature_requests WHERE id=$1)`,
		requestID,
	).Scan(&known)
	if err != nil {
		return false, err
	}
	if !known {
		err = domain.ErrFeatureNotFound
		return false, err
	}

	var exists bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM feature_upvotes WHERE profile_id=$1 AND request_id=$2)`,
		profileID, requestID,
	).Scan(&exists)
	if err != nil {
		return false, err
	}

	counter := `UPDATE feature_requests SET upvotes = upvotes + 1 WHERE id=$1`
	if exists {
		if _, err = tx.Exec(ctx,
			`DELETE FROM feature_upvotes WHERE profile_id=$1 AND request_id=$2`,
			profileID, requestID,
		); err != nil {
			return false, err
		}
		counter = `UPDATE feature_requests SET upvotes = upvotes - 1 WHERE id=$1`
	} else {
		if _, err = tx.Exec(ctx,
			`INSERT INTO feature_upvotes (profile_id, request_id) VALUES ($1,$2)`,
			profileID, requestID,
		); err != nil {
			return false, err
		}
	}

	tag, execErr := tx.Exec(ctx, counter, requestID)
	if execErr != nil {
		err = execErr
		return false, err
	}
	if tag.RowsAffected() == 0 {
		err = domain.ErrFeatureNotFound
		return false, err
	}

	if err = tx.Commit(ctx); err != nil {
		return false, err
	}
	return !exists, nil
}

// ListFeatureRequests returns the board ordered by upvotes, newest first
// within a tie, annotated with the caller's upvote state.
func (r *Repository) ListFeatureRequests(ctx context.Context, callerProfileID string) ([]domain.FeatureRequest, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT fr.id, fr.profile_id, p.username, fr.title, COALESCE(fr.description, ''), fr.upvotes, fr.status, fr.created_at,
                EXISTS (SELECT 1 FROM feature_upvotes fu WHERE fu.request_id = fr.id AND fu.profile_id = $1)
         FROM feature_requests fr
         JOIN profiles p ON p.id = fr.profile_id
         ORDER BY fr.upvotes DESC, fr.created_at DESC`,
		callerProfileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	requests := make([]domain.FeatureRequest, 0)
	for rows.Next() {
		var req domain.FeatureRequest
		if err := rows.Scan(&req.ID, &req.ProfileID, &req.Username, &req.Title, &req.Description, &req.Upvotes, &req.Status, &req.CreatedAt, &req.UpvotedByCaller); err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}
