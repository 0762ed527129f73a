package db

import (
	"context"
	"database/sql"

	"aidirectory/models"
)

const guideSelect = `
	SELECT g.id, g.tool_id, g.title, g.content, g.author_id, u.first_name, u.last_name,
	       g.guide_type, g.order_index, g.created_at, g.updated_at
	FROM tool_guides g
	LEFT JOIN users u ON u.id = g.author_id`

func scanGuide(sc scanner) (*models.Guide, error) {
	var (
		g           models.Guide
		authorID    sql.NullInt64
		first, last sql.NullString
	)
	if err := sc.Scan(&g.ID, &g.ToolID, &g.Title, &g.Content, &authorID, &first, &last,
		&g.GuideType, &g.OrderIndex, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return nil, err
	}
	if authorID.Valid {
		g.AuthorID = &authorID.Int64
		g.Author = &models.UserRef{ID: authorID.Int64, FirstName: first.String, LastName: last.String}
	}
	return &g, nil
}

// ListGuides returns a tool's guides in display order.
func (s *Store) ListGuides(ctx context.Context, toolID int64) ([]models.Guide, error) {
	rows, err := s.db.QueryContext(ctx, guideSelect+" WHERE g.tool_id = $1 ORDER BY g.order_index, g.id", toolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	guides := []models.Guide{}
	for rows.Next() {
		g, err := scanGuide(rows)
		if err != nil {
			return nil, err
		}
		guides = append(guides, *g)
	}
	return guides, rows.Err()
}

// ListAllGuides pages through guides of every tool, or of f.ToolID when set.
func (s *Store) ListAllGuides(ctx context.Context, f models.GuideFilter) ([]models.Guide, int, error) {
	var w where
	if f.ToolID != 0 {
		w.add("g.tool_id = ?", f.ToolID)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tool_guides g"+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, args := w.page(f.Page.Limit, f.Page.Offset())
	rows, err := s.db.QueryContext(ctx, guideSelect+w.String()+" ORDER BY g.tool_id, g.order_index, g.id"+limit, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	guides := []models.Guide{}
	for rows.Next() {
		g, err := scanGuide(rows)
		if err != nil {
			return nil, 0, err
		}
		guides = append(guides, *g)
	}
	return guides, total, rows.Err()
}

func (s *Store) GetGuide(ctx context.Context, id int64) (*models.Guide, error) {
	g, err := scanGuide(s.db.QueryRowContext(ctx, guideSelect+" WHERE g.id = $1", id))
	return g, mapError(err)
}

func (s *Store) CreateGuide(ctx context.Context, g *models.Guide) error {
	if err := insertGuide(ctx, s.db, g); err != nil {
		return err
	}
	created, err := s.GetGuide(ctx, g.ID)
	if err != nil {
		return err
	}
	*g = *created
	return nil
}

func insertGuide(ctx context.Context, q querier, g *models.Guide) error {
	if g.GuideType == "" {
		g.GuideType = models.DefaultGuideType
	}
	err := q.QueryRowContext(ctx, `
		INSERT INTO tool_guides (tool_id, title, content, author_id, guide_type, order_index)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`,
		g.ToolID, g.Title, g.Content, g.AuthorID, g.GuideType, g.OrderIndex,
	).Scan(&g.ID, &g.CreatedAt, &g.UpdatedAt)
	return mapError(err)
}

func (s *Store) UpdateGuide(ctx context.Context, id int64, p models.GuidePatch) (*models.Guide, error) {
	var set setter
	if p.Title != nil {
		set.add("title", *p.Title)
	}
	if p.Content != nil {
		set.add("content", *p.Content)
	}
	if p.GuideType != nil {
		set.add("guide_type", *p.GuideType)
	}
	if p.OrderIndex != nil {
		set.add("order_index", *p.OrderIndex)
	}
	if !set.empty() {
		q, args := set.update("tool_guides", id, "")
		res, err := s.db.ExecContext(ctx, q, args...)
		if err != nil {
			return nil, mapError(err)
		}
		if err := expectRow(res); err != nil {
			return nil, err
		}
	}
	return s.GetGuide(ctx, id)
}

func (s *Store) DeleteGuide(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tool_guides WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	return expectRow(res)
}
