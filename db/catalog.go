package db

import (
	"context"
	"errors"

	"aidirectory/models"
)

const categorySelect = `
	SELECT c.id, c.name, c.description, c.icon,
	       (SELECT COUNT(*) FROM ai_tools t WHERE t.category_id = c.id),
	       c.created_at, c.updated_at
	FROM categories c`

func scanCategory(sc scanner) (*models.Category, error) {
	var c models.Category
	if err := sc.Scan(&c.ID, &c.Name, &c.Description, &c.Icon, &c.ToolCount, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) ListCategories(ctx context.Context) ([]models.Category, error) {
	rows, err := s.db.QueryContext(ctx, categorySelect+" ORDER BY c.name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (s *Store) GetCategory(ctx context.Context, id int64) (*models.Category, error) {
	c, err := scanCategory(s.db.QueryRowContext(ctx, categorySelect+" WHERE c.id = $1", id))
	return c, mapError(err)
}

func (s *Store) CreateCategory(ctx context.Context, c *models.Category) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO categories (name, description, icon) VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`,
		c.Name, c.Description, c.Icon,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	return mapError(err)
}

func (s *Store) UpdateCategory(ctx context.Context, id int64, p models.CategoryPatch) (*models.Category, error) {
	var set setter
	if p.Name != nil {
		set.add("name", *p.Name)
	}
	if p.Description != nil {
		set.add("description", *p.Description)
	}
	if p.Icon != nil {
		set.add("icon", *p.Icon)
	}
	if !set.empty() {
		q, args := set.update("categories", id, "")
		res, err := s.db.ExecContext(ctx, q, args...)
		if err != nil {
			return nil, mapError(err)
		}
		if err := expectRow(res); err != nil {
			return nil, err
		}
	}
	return s.GetCategory(ctx, id)
}

// DeleteCategory refuses to remove a category that tools still point at.
func (s *Store) DeleteCategory(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		err = mapError(err)
		if errors.Is(err, ErrInvalidReference) {
			return ErrInUse
		}
		return err
	}
	return expectRow(res)
}

const industrySelect = `SELECT id, name, description, created_at, updated_at FROM industries`

func scanIndustry(sc scanner) (*models.Industry, error) {
	var i models.Industry
	if err := sc.Scan(&i.ID, &i.Name, &i.Description, &i.CreatedAt, &i.UpdatedAt); err != nil {
		return nil, err
	}
	return &i, nil
}

func (s *Store) ListIndustries(ctx context.Context) ([]models.Industry, error) {
	rows, err := s.db.QueryContext(ctx, industrySelect+" ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Industry{}
	for rows.Next() {
		i, err := scanIndustry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *i)
	}
	return out, rows.Err()
}

func (s *Store) GetIndustry(ctx context.Context, id int64) (*models.Industry, error) {
	i, err := scanIndustry(s.db.QueryRowContext(ctx, industrySelect+" WHERE id = $1", id))
	return i, mapError(err)
}

func (s *Store) CreateIndustry(ctx context.Context, i *models.Industry) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO industries (name, description) VALUES ($1, $2)
		RETURNING id, created_at, updated_at`,
		i.Name, i.Description,
	).Scan(&i.ID, &i.CreatedAt, &i.UpdatedAt)
	return mapError(err)
}

func (s *Store) UpdateIndustry(ctx context.Context, id int64, p models.IndustryPatch) (*models.Industry, error) {
	var set setter
	if p.Name != nil {
		set.add("name", *p.Name)
	}
	if p.Description != nil {
		set.add("description", *p.Description)
	}
	if !set.empty() {
		q, args := set.update("industries", id, "")
		res, err := s.db.ExecContext(ctx, q, args...)
		if err != nil {
			return nil, mapError(err)
		}
		if err := expectRow(res); err != nil {
			return nil, err
		}
	}
	return s.GetIndustry(ctx, id)
}

// DeleteIndustry unlinks the industry from tools and clears it from user
// profiles through the foreign key actions.
func (s *Store) DeleteIndustry(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM industries WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	return expectRow(res)
}
