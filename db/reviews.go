package db

import (
	"context"
	"database/sql"

	"aidirectory/models"
)

const reviewSelect = `
	SELECT r.id, r.user_id, r.tool_id, r.rating, r.comment, r.is_verified, r.created_at, r.updated_at,
	       u.first_name, u.last_name
	FROM reviews r
	JOIN users u ON u.id = r.user_id`

var reviewSort = map[string]string{
	models.SortRating:    "r.rating",
	models.SortCreatedAt: "r.created_at",
}

func scanReview(sc scanner) (*models.Review, error) {
	var (
		r   models.Review
		ref models.UserRef
	)
	if err := sc.Scan(&r.ID, &r.UserID, &r.ToolID, &r.Rating, &r.Comment, &r.IsVerified,
		&r.CreatedAt, &r.UpdatedAt, &ref.FirstName, &ref.LastName); err != nil {
		return nil, err
	}
	ref.ID = r.UserID
	r.User = &ref
	return &r, nil
}

func collectReviews(rows *sql.Rows) ([]models.Review, error) {
	defer rows.Close()
	out := []models.Review{}
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// recomputeRating sets the tool's rating to the mean of its reviews, or 0.
func recomputeRating(ctx context.Context, q querier, toolID int64) error {
	_, err := q.ExecContext(ctx, `
		UPDATE ai_tools
		SET rating = COALESCE((SELECT AVG(rating)::float8 FROM reviews WHERE tool_id = $1), 0)
		WHERE id = $1`, toolID)
	return err
}

func (s *Store) ListReviews(ctx context.Context, f models.ReviewFilter) ([]models.Review, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reviews WHERE tool_id = $1`, f.ToolID).Scan(&total); err != nil {
		return nil, 0, err
	}

	order, ok := reviewSort[f.Sort]
	if !ok {
		order = reviewSort[models.SortCreatedAt]
	}
	if f.Desc {
		order += " DESC"
	}
	rows, err := s.db.QueryContext(ctx, reviewSelect+" WHERE r.tool_id = $1 ORDER BY "+order+", r.id LIMIT $2 OFFSET $3",
		f.ToolID, f.Page.Limit, f.Page.Offset())
	if err != nil {
		return nil, 0, err
	}
	reviews, err := collectReviews(rows)
	if err != nil {
		return nil, 0, err
	}
	return reviews, total, nil
}

// ListAllReviews is the moderation listing across tools.
func (s *Store) ListAllReviews(ctx context.Context, f models.ReviewFilter) ([]models.Review, int, error) {
	var w where
	if f.ToolID != 0 {
		w.add("r.tool_id = ?", f.ToolID)
	}
	if f.Verified != nil {
		w.add("r.is_verified = ?", *f.Verified)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM reviews r"+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	order, ok := reviewSort[f.Sort]
	if !ok {
		order = reviewSort[models.SortCreatedAt]
	}
	if f.Desc {
		order += " DESC"
	}
	limit, args := w.page(f.Page.Limit, f.Page.Offset())
	rows, err := s.db.QueryContext(ctx, reviewSelect+w.String()+" ORDER BY "+order+", r.id"+limit, args...)
	if err != nil {
		return nil, 0, err
	}
	reviews, err := collectReviews(rows)
	if err != nil {
		return nil, 0, err
	}
	return reviews, total, nil
}

func (s *Store) toolReviews(ctx context.Context, toolID int64) ([]models.Review, error) {
	rows, err := s.db.QueryContext(ctx, reviewSelect+" WHERE r.tool_id = $1 ORDER BY r.created_at DESC, r.id DESC", toolID)
	if err != nil {
		return nil, err
	}
	return collectReviews(rows)
}

func (s *Store) GetReview(ctx context.Context, id int64) (*models.Review, error) {
	r, err := scanReview(s.db.QueryRowContext(ctx, reviewSelect+" WHERE r.id = $1", id))
	return r, mapError(err)
}

// CreateReview inserts r and refreshes the tool rating before committing.
// A second review by the same user on the same tool is ErrConflict.
func (s *Store) CreateReview(ctx context.Context, r *models.Review) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO reviews (user_id, tool_id, rating, comment)
			VALUES ($1, $2, $3, $4)
			RETURNING id, is_verified, created_at, updated_at`,
			r.UserID, r.ToolID, r.Rating, r.Comment,
		).Scan(&r.ID, &r.IsVerified, &r.CreatedAt, &r.UpdatedAt)
		if err != nil {
			return mapError(err)
		}
		return recomputeRating(ctx, tx, r.ToolID)
	})
	return err
}

func (s *Store) UpdateReview(ctx context.Context, id int64, p models.ReviewPatch) (*models.Review, error) {
	var set setter
	if p.Rating != nil {
		set.add("rating", *p.Rating)
	}
	if p.Comment != nil {
		set.add("comment", *p.Comment)
	}
	if p.IsVerified != nil {
		set.add("is_verified", *p.IsVerified)
	}
	if set.empty() {
		return s.GetReview(ctx, id)
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var toolID int64
		q, args := set.update("reviews", id, "tool_id")
		if err := tx.QueryRowContext(ctx, q, args...).Scan(&toolID); err != nil {
			return mapError(err)
		}
		return recomputeRating(ctx, tx, toolID)
	})
	if err != nil {
		return nil, err
	}
	return s.GetReview(ctx, id)
}

func (s *Store) DeleteReview(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var toolID int64
		if err := tx.QueryRowContext(ctx, `DELETE FROM reviews WHERE id = $1 RETURNING tool_id`, id).Scan(&toolID); err != nil {
			return mapError(err)
		}
		return recomputeRating(ctx, tx, toolID)
	})
}
