package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mmynk/tontine/internal/apperr"
	"github.com/mmynk/tontine/internal/models"
	"github.com/mmynk/tontine/internal/storage"
)

const accountColumns = "id, phone, pin_hash, role, session_version, created_at"

const subscriptionColumns = "account_id, status, active, expires_at, created_at"

// CreateAccount inserts an account, its subscription and its default group.
func (s *SQLiteStore) CreateAccount(ctx context.Context, account *models.Account, sub *models.Subscription, group *models.Group) error {
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

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := insertAccount(ctx, tx, account); err != nil {
			return err
		}
		if err := insertSubscription(ctx, tx, sub); err != nil {
			return err
		}
		if group != nil {
			if err := insertGroup(ctx, tx, group); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertAccount(ctx context.Context, q querier, account *models.Account) error {
	_, err := q.ExecContext(ctx,
		"INSERT INTO accounts ("+accountColumns+") VALUES (?, ?, ?, ?, ?, ?)",
		account.ID, account.Phone, account.PinHash, string(account.Role), account.SessionVersion, unix(account.CreatedAt),
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
	_, err := q.ExecContext(ctx,
		"INSERT INTO subscriptions ("+subscriptionColumns+") VALUES (?, ?, ?, ?, ?)",
		sub.AccountID, string(sub.Status), boolInt(sub.Active), nullUnix(sub.ExpiresAt), unix(sub.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert subscription: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (*models.Account, error) {
	account := &models.Account{}
	var role string
	var createdAt int64
	if err := row.Scan(&account.ID, &account.Phone, &account.PinHash, &role, &account.SessionVersion, &createdAt); err != nil {
		return nil, err
	}
	account.Role = models.Role(role)
	account.CreatedAt = fromUnix(createdAt)
	if err := account.Validate(); err != nil {
		return nil, fmt.Errorf("malformed account row %s: %w", account.ID, err)
	}
	return account, nil
}

func scanSubscription(row scanner) (*models.Subscription, error) {
	sub := &models.Subscription{}
	var status string
	var active int
	var expiresAt sql.NullInt64
	var createdAt int64
	if err := row.Scan(&sub.AccountID, &status, &active, &expiresAt, &createdAt); err != nil {
		return nil, err
	}
	sub.Status = models.SubscriptionStatus(status)
	sub.Active = active != 0
	sub.ExpiresAt = timePtr(expiresAt)
	sub.CreatedAt = fromUnix(createdAt)
	if err := sub.Validate(); err != nil {
		return nil, fmt.Errorf("malformed subscription row %s: %w", sub.AccountID, err)
	}
	return sub, nil
}

// GetAccount retrieves an account by ID.
func (s *SQLiteStore) GetAccount(ctx context.Context, accountID string) (*models.Account, error) {
	account, err := scanAccount(s.db.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE id = ?", accountID,
	))
	if err != nil {
		return nil, notFound(err, "account", accountID)
	}
	return account, nil
}

// GetAccountByPhone retrieves an account by its normalized phone number.
func (s *SQLiteStore) GetAccountByPhone(ctx context.Context, phone string) (*models.Account, error) {
	account, err := scanAccount(s.db.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE phone = ?", phone,
	))
	if err != nil {
		return nil, notFound(err, "account", phone)
	}
	return account, nil
}

// ListAccounts returns every account, newest first.
func (s *SQLiteStore) ListAccounts(ctx context.Context) ([]*models.Account, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+accountColumns+" FROM accounts ORDER BY created_at DESC, id",
	)
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
func (s *SQLiteStore) SaveAdmin(ctx context.Context, account *models.Account, sub *models.Subscription) error {
	if err := account.Validate(); err != nil {
		return err
	}
	if err := sub.Validate(); err != nil {
		return err
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		existing, err := scanAccount(tx.QueryRowContext(ctx,
			"SELECT "+accountColumns+" FROM accounts WHERE phone = ?", account.Phone,
		))
		switch {
		case errors.Is(err, sql.ErrNoRows):
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
		if _, err := tx.ExecContext(ctx,
			"UPDATE accounts SET pin_hash = ?, role = ?, session_version = ? WHERE id = ?",
			account.PinHash, string(account.Role), account.SessionVersion, account.ID,
		); err != nil {
			return fmt.Errorf("failed to update account: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO subscriptions (`+subscriptionColumns+`) VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT (account_id) DO UPDATE SET status = excluded.status, active = excluded.active, expires_at = excluded.expires_at`,
			sub.AccountID, string(sub.Status), boolInt(sub.Active), nullUnix(sub.ExpiresAt), unix(sub.CreatedAt),
		); err != nil {
			return fmt.Errorf("failed to upsert subscription: %w", err)
		}
		return nil
	})
}

// BumpSessionVersion increments the session version, revoking issued tokens.
func (s *SQLiteStore) BumpSessionVersion(ctx context.Context, accountID string) (int64, error) {
	var version int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"UPDATE accounts SET session_version = session_version + 1 WHERE id = ?", accountID,
		)
		if err != nil {
			return fmt.Errorf("failed to bump session version: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperr.NotFound("account", accountID)
		}
		return tx.QueryRowContext(ctx,
			"SELECT session_version FROM accounts WHERE id = ?", accountID,
		).Scan(&version)
	})
	return version, err
}

// DeleteAccount removes an account and all of its data, children first.
func (s *SQLiteStore) DeleteAccount(ctx context.Context, accountID string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, "SELECT 1 FROM accounts WHERE id = ?", accountID).Scan(&exists)
		if err != nil {
			return notFound(err, "account", accountID)
		}

		statements := []string{
			"DELETE FROM turn_records WHERE account_id = ?",
			"DELETE FROM members WHERE account_id = ?",
			"DELETE FROM groups WHERE account_id = ?",
			"DELETE FROM payments WHERE account_id = ?",
			"DELETE FROM payment_alerts WHERE account_id = ?",
			"DELETE FROM subscriptions WHERE account_id = ?",
			"DELETE FROM accounts WHERE id = ?",
		}
		for _, stmt := range statements {
			if _, err := tx.ExecContext(ctx, stmt, accountID); err != nil {
				return fmt.Errorf("failed to delete account data: %w", err)
			}
		}
		return nil
	})
}

// GetSubscription retrieves the subscription of an account.
func (s *SQLiteStore) GetSubscription(ctx context.Context, accountID string) (*models.Subscription, error) {
	return getSubscription(ctx, s.db, accountID)
}

func getSubscription(ctx context.Context, q querier, accountID string) (*models.Subscription, error) {
	sub, err := scanSubscription(q.QueryRowContext(ctx,
		"SELECT "+subscriptionColumns+" FROM subscriptions WHERE account_id = ?", accountID,
	))
	if err != nil {
		return nil, notFound(err, "subscription", accountID)
	}
	return sub, nil
}

// ListSubscriptions returns every subscription.
func (s *SQLiteStore) ListSubscriptions(ctx context.Context) ([]*models.Subscription, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+subscriptionColumns+" FROM subscriptions ORDER BY created_at DESC, account_id",
	)
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

// UpdateSubscription reads, mutates and writes a subscription in one transaction.
func (s *SQLiteStore) UpdateSubscription(ctx context.Context, accountID string, fn storage.SubscriptionFunc) (*models.Subscription, error) {
	var updated *models.Subscription
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		sub, err := getSubscription(ctx, tx, accountID)
		if err != nil {
			return err
		}
		if err := fn(sub); err != nil {
			return err
		}
		if err := writeSubscription(ctx, tx, sub); err != nil {
			return err
		}
		updated = sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func writeSubscription(ctx context.Context, q querier, sub *models.Subscription) error {
	if err := sub.Validate(); err != nil {
		return err
	}
	res, err := q.ExecContext(ctx,
		"UPDATE subscriptions SET status = ?, active = ?, expires_at = ? WHERE account_id = ?",
		string(sub.Status), boolInt(sub.Active), nullUnix(sub.ExpiresAt), sub.AccountID,
	)
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("subscription", sub.AccountID)
	}
	return nil
}
