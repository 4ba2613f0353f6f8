package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mmynk/tontine/internal/apperr"
	"github.com/mmynk/tontine/internal/models"
	"github.com/mmynk/tontine/internal/storage"
)

const accountColumns = "id, phone, pin_hash, role, session_version, created_at"

const subscriptionColumns = "account_id, status, active, expires_at, created_at"

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// CreateAccount inserts an account, its subscription and its default group.
func (s *PostgresStore) CreateAccount(ctx context.Context, account *models.Account, sub *models.Subscription, group *models.Group) error {
	if err := account.Validate(); err != nil {
		return err
	}
	if err := sub.Validate(); err != nil {
		return err
	}
	if group != nil {
		if err := group.Validate(); err != nil {
			return err
		}
	}

	return s.inTx(ctx, func(tx pgx.Tx) error {
		if err := insertAccount(ctx, tx, account); err != nil {
			return err
		}
		if err := insertSubscription(ctx, tx, sub); err != nil {
			return err
		}
		if group != nil {
			return insertGroup(ctx, tx, group)
		}
		return nil
	})
}

func insertAccount(ctx context.Context, q querier, account *models.Account) error {
	_, err := q.Exec(ctx,
		"INSERT INTO accounts ("+accountColumns+") VALUES ($1, $2, $3, $4, $5, $6)",
		account.ID, account.Phone, account.PinHash, string(account.Role), account.SessionVersion, account.CreatedAt,
	)
	if isUniqueViolation(err) {
		return apperr.Conflict("phone %s already registered", account.Phone)
	}
	if err != nil {
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

func insertSubscription(ctx context.Context, q querier, sub *models.Subscription) error {
	_, err := q.Exec(ctx,
		"INSERT INTO subscriptions ("+subscriptionColumns+") VALUES ($1, $2, $3, $4, $5)",
		sub.AccountID, string(sub.Status), sub.Active, sub.ExpiresAt, sub.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert subscription: %w", err)
	}
	return nil
}

func scanAccount(row scanner) (*models.Account, error) {
	account := &models.Account{}
	var role string
	if err := row.Scan(&account.ID, &account.Phone, &account.PinHash, &role,
		&account.SessionVersion, &account.CreatedAt); err != nil {
		return nil, err
	}
	account.Role = models.Role(role)
	account.CreatedAt = account.CreatedAt.UTC()
	if err := account.Validate(); err != nil {
		return nil, fmt.Errorf("malformed account row %s: %w", account.ID, err)
	}
	return account, nil
}

func scanSubscription(row scanner) (*models.Subscription, error) {
	sub := &models.Subscription{}
	var status string
	if err := row.Scan(&sub.AccountID, &status, &sub.Active, &sub.ExpiresAt, &sub.CreatedAt); err != nil {
		return nil, err
	}
	sub.Status = models.SubscriptionStatus(status)
	sub.ExpiresAt = utcPtr(sub.ExpiresAt)
	sub.CreatedAt = sub.CreatedAt.UTC()
	if err := sub.Validate(); err != nil {
		return nil, fmt.Errorf("malformed subscription row %s: %w", sub.AccountID, err)
	}
	return sub, nil
}

// GetAccount retrieves an account by ID.
func (s *PostgresStore) GetAccount(ctx context.Context, accountID string) (*models.Account, error) {
	account, err := scanAccount(s.pool.QueryRow(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE id = $1", accountID,
	))
	if err != nil {
		return nil, notFound(err, "account", accountID)
	}
	return account, nil
}

// GetAccountByPhone retrieves an account by its normalized phone number.
func (s *PostgresStore) GetAccountByPhone(ctx context.Context, phone string) (*models.Account, error) {
	account, err := scanAccount(s.pool.QueryRow(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE phone = $1", phone,
	))
	if err != nil {
		return nil, notFound(err, "account", phone)
	}
	return account, nil
}

// ListAccounts returns every account, newest first.
func (s *PostgresStore) ListAccounts(ctx context.Context) ([]*models.Account, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+accountColumns+" FROM accounts ORDER BY created_at DESC, id")
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}
	return accounts, nil
}

// SaveAdmin creates or updates a super_admin account and its subscription.
func (s *PostgresStore) SaveAdmin(ctx context.Context, account *models.Account, sub *models.Subscription) error {
	if err := account.Validate(); err != nil {
		return err
	}
	if err := sub.Validate(); err != nil {
		return err
	}

	return s.inTx(ctx, func(tx pgx.Tx) error {
		existing, err := scanAccount(tx.QueryRow(ctx,
			"SELECT "+accountColumns+" FROM accounts WHERE phone = $1 FOR UPDATE", account.Phone,
		))
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			if err := insertAccount(ctx, tx, account); err != nil {
				return err
			}
			return insertSubscription(ctx, tx, sub)
		case err != nil:
			return fmt.Errorf("failed to look up account: %w", err)
		}

		account.ID = existing.ID
		sub.AccountID = existing.ID
		account.SessionVersion = existing.SessionVersion + 1
		if _, err := tx.Exec(ctx,
			"UPDATE accounts SET pin_hash = $1, role = $2, session_version = $3 WHERE id = $4",
			account.PinHash, string(account.Role), account.SessionVersion, account.ID,
		); err != nil {
			return fmt.Errorf("failed to update account: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO subscriptions (`+subscriptionColumns+`) VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (account_id) DO UPDATE SET status = EXCLUDED.status, active = EXCLUDED.active, expires_at = EXCLUDED.expires_at`,
			sub.AccountID, string(sub.Status), sub.Active, sub.ExpiresAt, sub.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to upsert subscription: %w", err)
		}
		return nil
	})
}

// BumpSessionVersion increments the session version, revoking issued tokens.
func (s *PostgresStore) BumpSessionVersion(ctx context.Context, accountID string) (int64, error) {
	var version int64
	err := s.pool.QueryRow(ctx,
		"UPDATE accounts SET session_version = session_version + 1 WHERE id = $1 RETURNING session_version", accountID,
	).Scan(&version)
	if err != nil {
		return 0, notFound(err, "account", accountID)
	}
	return version, nil
}

// DeleteAccount removes an account and all of its data, children first.
func (s *PostgresStore) DeleteAccount(ctx context.Context, accountID string) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		var id string
		if err := tx.QueryRow(ctx, "SELECT id FROM accounts WHERE id = $1 FOR UPDATE", accountID).Scan(&id); err != nil {
			return notFound(err, "account", accountID)
		}

		statements := []string{
			"DELETE FROM turn_records WHERE account_id = $1",
			"DELETE FROM members WHERE account_id = $1",
			"DELETE FROM groups WHERE account_id = $1",
			"DELETE FROM payments WHERE account_id = $1",
			"DELETE FROM payment_alerts WHERE account_id = $1",
			"DELETE FROM subscriptions WHERE account_id = $1",
			"DELETE FROM accounts WHERE id = $1",
		}
		for _, stmt := range statements {
			if _, err := tx.Exec(ctx, stmt, accountID); err != nil {
				return fmt.Errorf("failed to delete account data: %w", err)
			}
		}
		return nil
	})
}

// GetSubscription retrieves the subscription of an account.
func (s *PostgresStore) GetSubscription(ctx context.Context, accountID string) (*models.Subscription, error) {
	return getSubscription(ctx, s.pool, accountID, false)
}

func getSubscription(ctx context.Context, q querier, accountID string, forUpdate bool) (*models.Subscription, error) {
	query := "SELECT " + subscriptionColumns + " FROM subscriptions WHERE account_id = $1"
	if forUpdate {
		query += " FOR UPDATE"
	}
	sub, err := scanSubscription(q.QueryRow(ctx, query, accountID))
	if err != nil {
		return nil, notFound(err, "subscription", accountID)
	}
	return sub, nil
}

// ListSubscriptions returns every subscription.
func (s *PostgresStore) ListSubscriptions(ctx context.Context) ([]*models.Subscription, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+subscriptionColumns+" FROM subscriptions ORDER BY account_id")
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*models.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate subscriptions: %w", err)
	}
	return subs, nil
}

// UpdateSubscription locks the subscription row, applies fn and writes it back.
func (s *PostgresStore) UpdateSubscription(ctx context.Context, accountID string, fn storage.SubscriptionFunc) (*models.Subscription, error) {
	var sub *models.Subscription
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		sub, err = getSubscription(ctx, tx, accountID, true)
		if err != nil {
			return err
		}
		if err := fn(sub); err != nil {
			return err
		}
		return writeSubscription(ctx, tx, sub)
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func writeSubscription(ctx context.Context, q querier, sub *models.Subscription) error {
	if err := sub.Validate(); err != nil {
		return err
	}
	tag, err := q.Exec(ctx,
		"UPDATE subscriptions SET status = $1, active = $2, expires_at = $3 WHERE account_id = $4",
		string(sub.Status), sub.Active, sub.ExpiresAt, sub.AccountID,
	)
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("subscription", sub.AccountID)
	}
	return nil
}
