package db

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"aidirectory/models"
)

const userSelect = `
	SELECT u.id, u.email, u.password_hash, u.first_name, u.last_name, u.company, u.job_title,
	       u.industry_id, i.name, u.subscription_tier, u.is_admin,
	       u.subscription_start_date, u.subscription_end_date, u.created_at, u.updated_at
	FROM users u
	LEFT JOIN industries i ON i.id = u.industry_id`

func scanUser(sc scanner) (*models.User, error) {
	var (
		u            models.User
		industryID   sql.NullInt64
		industryName sql.NullString
		start, end   sql.NullTime
	)
	err := sc.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Company, &u.JobTitle,
		&industryID, &industryName, &u.SubscriptionTier, &u.IsAdmin,
		&start, &end, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if industryID.Valid {
		u.IndustryID = &industryID.Int64
		u.Industry = &models.NamedRef{ID: industryID.Int64, Name: industryName.String}
	}
	if start.Valid {
		u.SubscriptionStartDate = &start.Time
	}
	if end.Valid {
		u.SubscriptionEndDate = &end.Time
	}
	return &u, nil
}

// CreateUser inserts u and fills its id and timestamps. Emails are stored
// lower-cased.
func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.SubscriptionTier == "" {
		u.SubscriptionTier = models.TierFree
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (email, password_hash, first_name, last_name, company, job_title,
		                   industry_id, subscription_tier, is_admin)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`,
		u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Company, u.JobTitle,
		u.IndustryID, u.SubscriptionTier, u.IsAdmin,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	return mapError(err)
}

func (s *Store) GetUser(ctx context.Context, id int64) (*models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, userSelect+" WHERE u.id = $1", id))
	return u, mapError(err)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, userSelect+" WHERE u.email = $1",
		strings.ToLower(strings.TrimSpace(email))))
	return u, mapError(err)
}

// UpdateUser applies p. Setting a tier directly starts an open-ended grant
// and cancels any active paid subscription in the same transaction.
func (s *Store) UpdateUser(ctx context.Context, id int64, p models.UserPatch) (*models.User, error) {
	if p.Empty() {
		return s.GetUser(ctx, id)
	}

	var set setter
	if p.FirstName != nil {
		set.add("first_name", *p.FirstName)
	}
	if p.LastName != nil {
		set.add("last_name", *p.LastName)
	}
	if p.Company != nil {
		set.add("company", *p.Company)
	}
	if p.JobTitle != nil {
		set.add("job_title", *p.JobTitle)
	}
	if p.IndustryID != nil {
		set.add("industry_id", *p.IndustryID)
	}
	if p.SubscriptionTier != nil {
		set.add("subscription_tier", *p.SubscriptionTier)
		set.raw("subscription_start_date = NOW()")
		set.raw("subscription_end_date = NULL")
	}
	if p.IsAdmin != nil {
		set.add("is_admin", *p.IsAdmin)
	}

	q, args := set.update("users", id, "")
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, q, args...)
		if err != nil {
			return mapError(err)
		}
		if err := expectRow(res); err != nil {
			return err
		}
		if p.SubscriptionTier == nil {
			return nil
		}
		// A granted tier has no end date, so an active paid period must not
		// outlive it and downgrade the user when it expires.
		_, err = tx.ExecContext(ctx, closeActiveSubscriptions, id, time.Now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.GetUser(ctx, id)
}

func (s *Store) UpdatePassword(ctx context.Context, id int64, hash string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash = $1 WHERE id = $2`, hash, id)
	if err != nil {
		return mapError(err)
	}
	return expectRow(res)
}

// DeleteUser removes the user; favorites, reviews, activity, subscriptions
// and transactions go with it through ON DELETE CASCADE. Ratings of tools the
// user reviewed are recomputed in the same transaction.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `SELECT DISTINCT tool_id FROM reviews WHERE user_id = $1`, id)
		if err != nil {
			return err
		}
		var toolIDs []int64
		for rows.Next() {
			var tid int64
			if err := rows.Scan(&tid); err != nil {
				rows.Close()
				return err
			}
			toolIDs = append(toolIDs, tid)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
		if err != nil {
			return mapError(err)
		}
		if err := expectRow(res); err != nil {
			return err
		}
		for _, tid := range toolIDs {
			if err := recomputeRating(ctx, tx, tid); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) ListUsers(ctx context.Context, f models.UserFilter) ([]models.User, int, error) {
	var w where
	if f.Search != "" {
		w.add("(u.email ILIKE ? OR u.first_name ILIKE ? OR u.last_name ILIKE ? OR u.company ILIKE ?)",
			likePattern(f.Search))
	}
	if f.Tier != "" {
		w.add("u.subscription_tier = ?", f.Tier)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users u"+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, args := w.page(f.Page.Limit, f.Page.Offset())
	rows, err := s.db.QueryContext(ctx, userSelect+w.String()+" ORDER BY u.created_at DESC, u.id DESC"+limit, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, *u)
	}
	return users, total, rows.Err()
}

// EnsureAdmin creates the bootstrap admin, or promotes an existing account
// with that email. The password of an existing account is left alone.
func (s *Store) EnsureAdmin(ctx context.Context, email, hash string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (email, password_hash, is_admin, subscription_tier)
		VALUES ($1, $2, TRUE, 'Business')
		ON CONFLICT (email) DO UPDATE SET is_admin = TRUE`,
		strings.ToLower(strings.TrimSpace(email)), hash)
	return mapError(err)
}

func (s *Store) LogActivity(ctx context.Context, userID int64, activityType, details string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_activity_logs (user_id, activity_type, details) VALUES ($1, $2, $3)`,
		userID, activityType, details)
	return mapError(err)
}

func (s *Store) ListActivity(ctx context.Context, limit int) ([]models.ActivityLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.user_id, u.email, u.first_name, u.last_name, a.activity_type, a.details, a.created_at
		FROM user_activity_logs a
		JOIN users u ON u.id = a.user_id
		ORDER BY a.created_at DESC, a.id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []models.ActivityLog{}
	for rows.Next() {
		var (
			a   models.ActivityLog
			ref models.UserRef
		)
		if err := rows.Scan(&a.ID, &a.UserID, &ref.Email, &ref.FirstName, &ref.LastName,
			&a.ActivityType, &a.Details, &a.CreatedAt); err != nil {
			return nil, err
		}
		ref.ID = a.UserID
		a.User = &ref
		logs = append(logs, a)
	}
	return logs, rows.Err()
}
