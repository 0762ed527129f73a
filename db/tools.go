package db

import (
	"context"
	"database/sql"
	"encoding/json"

	"aidirectory/models"

	"github.com/lib/pq"
)

const toolColumns = `
	t.id, t.name, t.description, t.category_id, c.name, c.description, c.icon,
	t.website_url, t.image_path, t.access_level, t.rating, t.business_utility,
	t.price_point_type, t.price_point_details, t.created_at, t.updated_at`

const toolFrom = `
	FROM ai_tools t
	LEFT JOIN categories c ON c.id = t.category_id`

var toolSort = map[string]string{
	models.SortName:      "t.name",
	models.SortRating:    "t.rating",
	models.SortCreatedAt: "t.created_at",
}

// scanTool reads toolColumns, preceded by any extra destinations in pre.
func scanTool(sc scanner, pre ...any) (*models.Tool, error) {
	var (
		t          models.Tool
		categoryID sql.NullInt64
		catName    sql.NullString
		catDesc    sql.NullString
		catIcon    sql.NullString
		price      []byte
	)
	dest := append(pre, &t.ID, &t.Name, &t.Description, &categoryID, &catName, &catDesc, &catIcon,
		&t.WebsiteURL, &t.ImagePath, &t.AccessLevel, &t.Rating, &t.BusinessUtility,
		&t.PricePointType, &price, &t.CreatedAt, &t.UpdatedAt)
	if err := sc.Scan(dest...); err != nil {
		return nil, err
	}
	if categoryID.Valid {
		t.CategoryID = &categoryID.Int64
		t.Category = &models.Category{
			ID:          categoryID.Int64,
			Name:        catName.String,
			Description: catDesc.String,
			Icon:        catIcon.String,
		}
	}
	if len(price) > 0 {
		t.PricePointDetails = json.RawMessage(price)
	}
	t.Industries = []models.Industry{}
	return &t, nil
}

func (s *Store) ListTools(ctx context.Context, f models.ToolFilter) ([]models.Tool, int, error) {
	var w where
	if f.Search != "" {
		w.add("(t.name ILIKE ? OR t.description ILIKE ?)", likePattern(f.Search))
	}
	if f.CategoryID != 0 {
		w.add("t.category_id = ?", f.CategoryID)
	}
	if f.IndustryID != 0 {
		w.add("EXISTS (SELECT 1 FROM tool_industries ti WHERE ti.tool_id = t.id AND ti.industry_id = ?)", f.IndustryID)
	}
	if f.AccessLevel != "" {
		w.add("t.access_level = ?", f.AccessLevel)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM ai_tools t"+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	order, ok := toolSort[f.Sort]
	if !ok {
		order = toolSort[models.SortName]
	}
	if f.Desc {
		order += " DESC"
	}
	limit, args := w.page(f.Page.Limit, f.Page.Offset())

	rows, err := s.db.QueryContext(ctx, "SELECT"+toolColumns+toolFrom+w.String()+" ORDER BY "+order+", t.id"+limit, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	tools := []models.Tool{}
	for rows.Next() {
		t, err := scanTool(rows)
		if err != nil {
			return nil, 0, err
		}
		tools = append(tools, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if err := s.attachIndustries(ctx, s.db, tools); err != nil {
		return nil, 0, err
	}
	return tools, total, nil
}

// attachIndustries loads the industry links of every tool in one query.
func (s *Store) attachIndustries(ctx context.Context, q querier, tools []models.Tool) error {
	if len(tools) == 0 {
		return nil
	}
	ids := make([]int64, len(tools))
	index := make(map[int64]int, len(tools))
	for i, t := range tools {
		ids[i] = t.ID
		index[t.ID] = i
	}

	rows, err := q.QueryContext(ctx, `
		SELECT ti.tool_id, i.id, i.name, i.description, i.created_at, i.updated_at
		FROM tool_industries ti
		JOIN industries i ON i.id = ti.industry_id
		WHERE ti.tool_id = ANY($1)
		ORDER BY i.name`, pq.Array(ids))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			toolID int64
			ind    models.Industry
		)
		if err := rows.Scan(&toolID, &ind.ID, &ind.Name, &ind.Description, &ind.CreatedAt, &ind.UpdatedAt); err != nil {
			return err
		}
		if i, ok := index[toolID]; ok {
			tools[i].Industries = append(tools[i].Industries, ind)
		}
	}
	return rows.Err()
}

// GetTool returns the tool with its category and industries.
func (s *Store) GetTool(ctx context.Context, id int64) (*models.Tool, error) {
	t, err := scanTool(s.db.QueryRowContext(ctx, "SELECT"+toolColumns+toolFrom+" WHERE t.id = $1", id))
	if err != nil {
		return nil, mapError(err)
	}
	one := []models.Tool{*t}
	if err := s.attachIndustries(ctx, s.db, one); err != nil {
		return nil, err
	}
	return &one[0], nil
}

// GetToolDetail is GetTool plus guides and every review.
func (s *Store) GetToolDetail(ctx context.Context, id int64) (*models.Tool, error) {
	t, err := s.GetTool(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Guides, err = s.ListGuides(ctx, id); err != nil {
		return nil, err
	}
	if t.Reviews, err = s.toolReviews(ctx, id); err != nil {
		return nil, err
	}
	return t, nil
}

// CreateTool inserts the tool, its industry links and its guides atomically.
func (s *Store) CreateTool(ctx context.Context, in models.ToolInput) (*models.Tool, error) {
	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO ai_tools (name, description, category_id, website_url, image_path, access_level,
			                      business_utility, price_point_type, price_point_details)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id`,
			in.Name, in.Description, in.CategoryID, in.WebsiteURL, in.ImagePath, in.AccessLevel,
			in.BusinessUtility, in.PricePointType, jsonArg(in.PricePointDetails),
		).Scan(&id)
		if err != nil {
			return mapError(err)
		}
		if err := linkIndustries(ctx, tx, id, in.IndustryIDs); err != nil {
			return err
		}
		for _, g := range in.Guides {
			guide := models.Guide{
				ToolID:     id,
				Title:      g.Title,
				Content:    g.Content,
				GuideType:  g.GuideType,
				OrderIndex: g.OrderIndex,
			}
			if in.AuthorID != 0 {
				guide.AuthorID = &in.AuthorID
			}
			if err := insertGuide(ctx, tx, &guide); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetTool(ctx, id)
}

func (s *Store) UpdateTool(ctx context.Context, id int64, p models.ToolPatch) (*models.Tool, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var set setter
		if p.Name != nil {
			set.add("name", *p.Name)
		}
		if p.Description != nil {
			set.add("description", *p.Description)
		}
		if p.CategoryID != nil {
			set.add("category_id", *p.CategoryID)
		}
		if p.WebsiteURL != nil {
			set.add("website_url", *p.WebsiteURL)
		}
		if p.ImagePath != nil {
			set.add("image_path", *p.ImagePath)
		}
		if p.AccessLevel != nil {
			set.add("access_level", *p.AccessLevel)
		}
		if p.BusinessUtility != nil {
			set.add("business_utility", *p.BusinessUtility)
		}
		if p.PricePointType != nil {
			set.add("price_point_type", *p.PricePointType)
		}
		if p.PricePointDetails != nil {
			set.add("price_point_details", jsonArg(p.PricePointDetails))
		}

		var found int64
		if set.empty() {
			err := tx.QueryRowContext(ctx, `SELECT id FROM ai_tools WHERE id = $1 FOR UPDATE`, id).Scan(&found)
			if err != nil {
				return mapError(err)
			}
		} else {
			q, args := set.update("ai_tools", id, "id")
			if err := tx.QueryRowContext(ctx, q, args...).Scan(&found); err != nil {
				return mapError(err)
			}
		}

		if p.IndustryIDs != nil {
			if _, err := tx.ExecContext(ctx, `DELETE FROM tool_industries WHERE tool_id = $1`, id); err != nil {
				return err
			}
			return linkIndustries(ctx, tx, id, p.IndustryIDs)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetTool(ctx, id)
}

// DeleteTool removes the tool and returns its image path for cleanup.
// Reviews, favorites, guides and industry links cascade.
func (s *Store) DeleteTool(ctx context.Context, id int64) (string, error) {
	var image string
	err := s.db.QueryRowContext(ctx, `DELETE FROM ai_tools WHERE id = $1 RETURNING image_path`, id).Scan(&image)
	return image, mapError(err)
}

func linkIndustries(ctx context.Context, tx *sql.Tx, toolID int64, industryIDs []int64) error {
	if len(industryIDs) == 0 {
		return nil
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO tool_industries (tool_id, industry_id)
		SELECT $1, x FROM unnest($2::bigint[]) AS x
		ON CONFLICT DO NOTHING`, toolID, pq.Array(industryIDs))
	return mapError(err)
}

func jsonArg(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func (s *Store) AddFavorite(ctx context.Context, userID, toolID int64) (*models.Favorite, error) {
	f := models.Favorite{UserID: userID, ToolID: toolID}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO user_favorites (user_id, tool_id) VALUES ($1, $2)
		RETURNING id, created_at`, userID, toolID,
	).Scan(&f.ID, &f.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &f, nil
}

func (s *Store) RemoveFavorite(ctx context.Context, userID, toolID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM user_favorites WHERE user_id = $1 AND tool_id = $2`, userID, toolID)
	if err != nil {
		return mapError(err)
	}
	return expectRow(res)
}

// ListFavorites returns the user's favorites, newest first, with their tools.
func (s *Store) ListFavorites(ctx context.Context, userID int64, page models.Page) ([]models.Favorite, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_favorites WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT f.id, f.created_at,`+toolColumns+`
		FROM user_favorites f
		JOIN ai_tools t ON t.id = f.tool_id
		LEFT JOIN categories c ON c.id = t.category_id
		WHERE f.user_id = $1
		ORDER BY f.created_at DESC, f.id DESC
		LIMIT $2 OFFSET $3`, userID, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	favs := []models.Favorite{}
	tools := []models.Tool{}
	for rows.Next() {
		var f models.Favorite
		t, err := scanTool(rows, &f.ID, &f.CreatedAt)
		if err != nil {
			return nil, 0, err
		}
		f.UserID = userID
		f.ToolID = t.ID
		favs = append(favs, f)
		tools = append(tools, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if err := s.attachIndustries(ctx, s.db, tools); err != nil {
		return nil, 0, err
	}
	for i := range favs {
		favs[i].Tool = &tools[i]
	}
	return favs, total, nil
}
