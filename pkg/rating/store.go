package rating

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/trydirect/stacker/internal/db"
)

// Store handles database operations for deployment ratings.
type Store struct {
	dbtx db.DBTX
}

// NewStore creates a rating store over dbtx. Callers needing atomicity
// should construct this Store over an open pgx.Tx.
func NewStore(dbtx db.DBTX) *Store {
	return &Store{dbtx: dbtx}
}

const ratingColumns = "id, deployment_hash, user_id, score, comment, created_at"

func scanRating(row pgx.Row) (Rating, error) {
	var r Rating
	err := row.Scan(&r.ID, &r.DeploymentHash, &r.UserID, &r.Score, &r.Comment, &r.CreatedAt)
	return r, err
}

// Upsert inserts a rating for (deploymentHash, userID), or replaces the
// user's existing rating on conflict — a user may only have one rating per
// deployment.
func (s *Store) Upsert(ctx context.Context, deploymentHash, userID string, req SubmitRequest) (Rating, error) {
	row := s.dbtx.QueryRow(ctx, `
		INSERT INTO deployment_rating (deployment_hash, user_id, score, comment)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (deployment_hash, user_id)
		DO UPDATE SET score = EXCLUDED.score, comment = EXCLUDED.comment
		RETURNING `+ratingColumns,
		deploymentHash, userID, req.Score, req.Comment,
	)
	r, err := scanRating(row)
	if err != nil {
		return Rating{}, fmt.Errorf("upserting rating: %w", err)
	}
	return r, nil
}

// ListForDeployment returns every rating recorded against a deployment.
func (s *Store) ListForDeployment(ctx context.Context, deploymentHash string) ([]Rating, error) {
	rows, err := s.dbtx.Query(ctx, `
		SELECT `+ratingColumns+`
		FROM deployment_rating
		WHERE deployment_hash = $1
		ORDER BY created_at DESC`,
		deploymentHash,
	)
	if err != nil {
		return nil, fmt.Errorf("listing ratings: %w", err)
	}
	defer rows.Close()

	var out []Rating
	for rows.Next() {
		r, err := scanRating(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning rating: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Average returns the mean score for a deployment and the number of ratings
// it was computed from.
func (s *Store) Average(ctx context.Context, deploymentHash string) (float64, int, error) {
	var avg *float64
	var count int
	err := s.dbtx.QueryRow(ctx, `
		SELECT AVG(score)::float8, COUNT(*)
		FROM deployment_rating
		WHERE deployment_hash = $1`,
		deploymentHash,
	).Scan(&avg, &count)
	if err != nil {
		return 0, 0, fmt.Errorf("averaging ratings: %w", err)
	}
	if avg == nil {
		return 0, 0, nil
	}
	return *avg, count, nil
}
