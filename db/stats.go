package db

import (
	"context"
	"database/sql"
	"math"
	"time"

	"aidirectory/models"
)

// growth is the percentage change from prev to cur, rounded to 2 places.
func growth(cur, prev float64) float64 {
	if prev == 0 {
		if cur > 0 {
			return 100
		}
		return 0
	}
	return math.Round((cur-prev)/prev*10000) / 100
}

func (s *Store) DashboardStats(ctx context.Context, now time.Time) (*models.DashboardStats, error) {
	var (
		st        models.DashboardStats
		prevMonth int
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE created_at >= date_trunc('day', $1::timestamptz)),
		       COUNT(*) FILTER (WHERE created_at >= $1::timestamptz - INTERVAL '7 days'),
		       COUNT(*) FILTER (WHERE created_at >= $1::timestamptz - INTERVAL '30 days'),
		       COUNT(*) FILTER (WHERE created_at >= $1::timestamptz - INTERVAL '60 days'
		                          AND created_at < $1::timestamptz - INTERVAL '30 days'),
		       COUNT(*) FILTER (WHERE subscription_tier = 'Free'),
		       COUNT(*) FILTER (WHERE subscription_tier = 'Premium'),
		       COUNT(*) FILTER (WHERE subscription_tier = 'Business')
		FROM users`, now,
	).Scan(&st.Users.Total, &st.Users.NewToday, &st.Users.NewWeek, &st.Users.NewMonth, &prevMonth,
		&st.Subscriptions.Free, &st.Subscriptions.Premium, &st.Subscriptions.Business)
	if err != nil {
		return nil, err
	}
	st.Users.GrowthRate = growth(float64(st.Users.NewMonth), float64(prevMonth))

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE access_level = 'Public'),
		       COUNT(*) FILTER (WHERE access_level = 'Premium Only'),
		       COUNT(*) FILTER (WHERE access_level = 'Business Only')
		FROM ai_tools`,
	).Scan(&st.Tools.Total, &st.Tools.Public, &st.Tools.Premium, &st.Tools.Business)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE is_verified) FROM reviews`,
	).Scan(&st.Reviews.Total, &st.Reviews.Verified)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount) FILTER (WHERE transaction_date >= $1::timestamptz - INTERVAL '30 days'), 0)::float8,
		       COALESCE(SUM(amount) FILTER (WHERE transaction_date >= $1::timestamptz - INTERVAL '60 days'
		                                      AND transaction_date < $1::timestamptz - INTERVAL '30 days'), 0)::float8
		FROM payment_transactions
		WHERE status = 'completed'`, now,
	).Scan(&st.Revenue.Monthly, &st.Revenue.LastMonth)
	if err != nil {
		return nil, err
	}
	st.Revenue.GrowthRate = growth(st.Revenue.Monthly, st.Revenue.LastMonth)

	return &st, nil
}

// UserStats reports signups per day over the trailing window and the
// current tier distribution.
func (s *Store) UserStats(ctx context.Context, now time.Time, days int) (*models.UserStats, error) {
	st := models.UserStats{
		DailySignups:             []models.DailyCount{},
		SubscriptionDistribution: []models.NamedCount{},
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT to_char(d.day, 'YYYY-MM-DD'), COUNT(u.id)
		FROM generate_series(date_trunc('day', $1::timestamptz) - ($2::int - 1) * INTERVAL '1 day',
		                     date_trunc('day', $1::timestamptz), INTERVAL '1 day') AS d(day)
		LEFT JOIN users u ON date_trunc('day', u.created_at) = d.day
		GROUP BY d.day
		ORDER BY d.day`, now, days)
	if err != nil {
		return nil, err
	}
	if err := scanRows(rows, func(r *sql.Rows) error {
		var c models.DailyCount
		if err := r.Scan(&c.Date, &c.Count); err != nil {
			return err
		}
		st.DailySignups = append(st.DailySignups, c)
		return nil
	}); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT subscription_tier, COUNT(*) FROM users GROUP BY subscription_tier ORDER BY subscription_tier`)
	if err != nil {
		return nil, err
	}
	if err := scanRows(rows, func(r *sql.Rows) error {
		var c models.NamedCount
		if err := r.Scan(&c.Name, &c.Count); err != nil {
			return err
		}
		st.SubscriptionDistribution = append(st.SubscriptionDistribution, c)
		return nil
	}); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *Store) ToolStats(ctx context.Context, top int) (*models.ToolStats, error) {
	st := models.ToolStats{
		CategoryDistribution:    []models.NamedCount{},
		AccessLevelDistribution: []models.NamedCount{},
		TopRated:                []models.ToolRank{},
		MostFavorited:           []models.ToolRank{},
	}

	named := func(dst *[]models.NamedCount) func(*sql.Rows) error {
		return func(r *sql.Rows) error {
			var c models.NamedCount
			if err := r.Scan(&c.Name, &c.Count); err != nil {
				return err
			}
			*dst = append(*dst, c)
			return nil
		}
	}
	ranked := func(dst *[]models.ToolRank) func(*sql.Rows) error {
		return func(r *sql.Rows) error {
			var (
				t   models.ToolRank
				cat sql.NullString
			)
			if err := r.Scan(&t.ID, &t.Name, &t.Rating, &t.FavoriteCount, &cat); err != nil {
				return err
			}
			if cat.Valid {
				t.Category = &cat.String
			}
			*dst = append(*dst, t)
			return nil
		}
	}

	queries := []struct {
		sql  string
		args []any
		fn   func(*sql.Rows) error
	}{
		{`SELECT c.name, COUNT(t.id) FROM categories c
		  LEFT JOIN ai_tools t ON t.category_id = c.id
		  GROUP BY c.id, c.name ORDER BY COUNT(t.id) DESC, c.name`, nil, named(&st.CategoryDistribution)},
		{`SELECT access_level, COUNT(*) FROM ai_tools GROUP BY access_level ORDER BY access_level`,
			nil, named(&st.AccessLevelDistribution)},
		{`SELECT t.id, t.name, t.rating, 0, c.name FROM ai_tools t
		  LEFT JOIN categories c ON c.id = t.category_id
		  ORDER BY t.rating DESC, t.id LIMIT $1`, []any{top}, ranked(&st.TopRated)},
		{`SELECT t.id, t.name, t.rating, COUNT(f.id), c.name FROM ai_tools t
		  JOIN user_favorites f ON f.tool_id = t.id
		  LEFT JOIN categories c ON c.id = t.category_id
		  GROUP BY t.id, t.name, t.rating, c.name
		  ORDER BY COUNT(f.id) DESC, t.id LIMIT $1`, []any{top}, ranked(&st.MostFavorited)},
	}
	for _, q := range queries {
		rows, err := s.db.QueryContext(ctx, q.sql, q.args...)
		if err != nil {
			return nil, err
		}
		if err := scanRows(rows, q.fn); err != nil {
			return nil, err
		}
	}
	return &st, nil
}

func (s *Store) RevenueStats(ctx context.Context, now time.Time, days int) (*models.RevenueStats, error) {
	st := models.RevenueStats{
		DailyRevenue:  []models.DailyAmount{},
		RevenueByTier: []models.NamedAmount{},
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT to_char(d.day, 'YYYY-MM-DD'), COALESCE(SUM(p.amount), 0)::float8
		FROM generate_series(date_trunc('day', $1::timestamptz) - ($2::int - 1) * INTERVAL '1 day',
		                     date_trunc('day', $1::timestamptz), INTERVAL '1 day') AS d(day)
		LEFT JOIN payment_transactions p
		       ON date_trunc('day', p.transaction_date) = d.day AND p.status = 'completed'
		GROUP BY d.day
		ORDER BY d.day`, now, days)
	if err != nil {
		return nil, err
	}
	if err := scanRows(rows, func(r *sql.Rows) error {
		var a models.DailyAmount
		if err := r.Scan(&a.Date, &a.Amount); err != nil {
			return err
		}
		st.DailyRevenue = append(st.DailyRevenue, a)
		return nil
	}); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT subscription_tier, COALESCE(SUM(amount), 0)::float8
		FROM payment_transactions
		WHERE status = 'completed'
		GROUP BY subscription_tier
		ORDER BY subscription_tier`)
	if err != nil {
		return nil, err
	}
	if err := scanRows(rows, func(r *sql.Rows) error {
		var a models.NamedAmount
		if err := r.Scan(&a.Name, &a.Amount); err != nil {
			return err
		}
		st.RevenueByTier = append(st.RevenueByTier, a)
		return nil
	}); err != nil {
		return nil, err
	}
	return &st, nil
}

func scanRows(rows *sql.Rows, fn func(*sql.Rows) error) error {
	defer rows.Close()
	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}
