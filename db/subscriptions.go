package db

import (
	"context"
	"database/sql"
	"time"

	"aidirectory/models"

	"github.com/lib/pq"
)

const subscriptionColumns = `
	id, user_id, plan_id, status, current_period_start, current_period_end,
	cancel_at_period_end, payment_method_id, created_at, updated_at`

func scanSubscription(sc scanner) (*models.Subscription, error) {
	var sub models.Subscription
	if err := sc.Scan(&sub.ID, &sub.UserID, &sub.PlanID, &sub.Status, &sub.CurrentPeriodStart,
		&sub.CurrentPeriodEnd, &sub.CancelAtPeriodEnd, &sub.PaymentMethodID, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
		return nil, err
	}
	return &sub, nil
}

// closeActiveSubscriptions cancels every active subscription of $1 as of $2.
const closeActiveSubscriptions = `
	UPDATE subscriptions
	SET status = 'canceled', cancel_at_period_end = FALSE, current_period_end = LEAST(current_period_end, $2)
	WHERE user_id = $1 AND status = 'active'`

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

// ChangeSubscription moves a user onto a plan. Any active subscription is
// closed first. Paid plans get a new subscription row and a completed
// transaction; all of it commits together with the user's tier.
func (s *Store) ChangeSubscription(ctx context.Context, ch models.SubscriptionChange) (*models.Subscription, *models.PaymentTransaction, error) {
	var (
		sub *models.Subscription
		txn *models.PaymentTransaction
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE users
			SET subscription_tier = $2, subscription_start_date = $3, subscription_end_date = $4
			WHERE id = $1`, ch.UserID, ch.Tier, ch.Start, nullTime(ch.End))
		if err != nil {
			return mapError(err)
		}
		if err := expectRow(res); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, closeActiveSubscriptions, ch.UserID, ch.Start); err != nil {
			return err
		}
		if !ch.Paid {
			return nil
		}

		sub, err = scanSubscription(tx.QueryRowContext(ctx, `
			INSERT INTO subscriptions (user_id, plan_id, status, current_period_start, current_period_end, payment_method_id)
			VALUES ($1, $2, 'active', $3, $4, $5)
			RETURNING`+subscriptionColumns,
			ch.UserID, ch.PlanID, ch.Start, nullTime(ch.End), ch.PaymentMethodID))
		if err != nil {
			return mapError(err)
		}

		txn = &models.PaymentTransaction{
			UserID:           ch.UserID,
			Amount:           ch.Amount,
			Currency:         ch.Currency,
			Status:           models.TransactionCompleted,
			PaymentMethod:    ch.PaymentMethodID,
			SubscriptionTier: ch.Tier,
		}
		return tx.QueryRowContext(ctx, `
			INSERT INTO payment_transactions (user_id, amount, currency, status, payment_method, subscription_tier, transaction_date)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id, transaction_date, created_at`,
			txn.UserID, txn.Amount, txn.Currency, txn.Status, txn.PaymentMethod, txn.SubscriptionTier, ch.Start,
		).Scan(&txn.ID, &txn.TransactionDate, &txn.CreatedAt)
	})
	if err != nil {
		return nil, nil, err
	}
	return sub, txn, nil
}

// ActiveSubscription returns the user's current active subscription.
func (s *Store) ActiveSubscription(ctx context.Context, userID int64) (*models.Subscription, error) {
	sub, err := scanSubscription(s.db.QueryRowContext(ctx, `
		SELECT`+subscriptionColumns+`
		FROM subscriptions
		WHERE user_id = $1 AND status = 'active'
		ORDER BY current_period_end DESC, id DESC
		LIMIT 1`, userID))
	return sub, mapError(err)
}

func (s *Store) LatestTransaction(ctx context.Context, userID int64) (*models.PaymentTransaction, error) {
	var t models.PaymentTransaction
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, amount::float8, currency, status, payment_method, subscription_tier, transaction_date, created_at
		FROM payment_transactions
		WHERE user_id = $1
		ORDER BY transaction_date DESC, id DESC
		LIMIT 1`, userID,
	).Scan(&t.ID, &t.UserID, &t.Amount, &t.Currency, &t.Status, &t.PaymentMethod, &t.SubscriptionTier,
		&t.TransactionDate, &t.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &t, nil
}

// CancelSubscription ends the active subscription now, dropping the user to
// Free, or flags it to lapse at the end of the paid period.
func (s *Store) CancelSubscription(ctx context.Context, userID int64, immediate bool, now time.Time) (*models.Subscription, error) {
	var sub *models.Subscription
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var id int64
		err := tx.QueryRowContext(ctx, `
			SELECT id FROM subscriptions
			WHERE user_id = $1 AND status = 'active'
			ORDER BY current_period_end DESC, id DESC
			LIMIT 1
			FOR UPDATE`, userID).Scan(&id)
		if err != nil {
			return mapError(err)
		}

		if !immediate {
			sub, err = scanSubscription(tx.QueryRowContext(ctx, `
				UPDATE subscriptions SET cancel_at_period_end = TRUE
				WHERE id = $1
				RETURNING`+subscriptionColumns, id))
			return err
		}

		sub, err = scanSubscription(tx.QueryRowContext(ctx, `
			UPDATE subscriptions
			SET status = 'canceled', cancel_at_period_end = FALSE, current_period_end = $2
			WHERE id = $1
			RETURNING`+subscriptionColumns, id, now))
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE users SET subscription_tier = 'Free', subscription_end_date = $2
			WHERE id = $1`, userID, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// ExpireSubscriptions closes active subscriptions whose period ended before
// now and drops their users to Free unless another active period covers them.
func (s *Store) ExpireSubscriptions(ctx context.Context, now time.Time) ([]models.Subscription, error) {
	var lapsed []models.Subscription
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			UPDATE subscriptions
			SET status = CASE WHEN cancel_at_period_end THEN 'canceled' ELSE 'expired' END
			WHERE status = 'active' AND current_period_end < $1
			RETURNING`+subscriptionColumns, now)
		if err != nil {
			return err
		}
		var userIDs []int64
		for rows.Next() {
			sub, err := scanSubscription(rows)
			if err != nil {
				rows.Close()
				return err
			}
			lapsed = append(lapsed, *sub)
			userIDs = append(userIDs, sub.UserID)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		if len(userIDs) == 0 {
			return nil
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE users u SET subscription_tier = 'Free'
			WHERE u.id = ANY($1)
			  AND NOT EXISTS (
			      SELECT 1 FROM subscriptions s
			      WHERE s.user_id = u.id AND s.status = 'active' AND s.current_period_end >= $2)`,
			pq.Array(userIDs), now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return lapsed, nil
}

func (s *Store) ListSubscriptions(ctx context.Context, f models.SubscriptionFilter) ([]models.Subscription, int, error) {
	var w where
	if f.Status != "" {
		w.add("status = ?", f.Status)
	}
	if f.PlanID != "" {
		w.add("plan_id = ?", f.PlanID)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM subscriptions"+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, args := w.page(f.Page.Limit, f.Page.Offset())
	rows, err := s.db.QueryContext(ctx, "SELECT"+subscriptionColumns+" FROM subscriptions"+w.String()+
		" ORDER BY created_at DESC, id DESC"+limit, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	subs := []models.Subscription{}
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, 0, err
		}
		subs = append(subs, *sub)
	}
	return subs, total, rows.Err()
}
