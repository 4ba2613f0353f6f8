package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mmynk/tontine/internal/apperr"
	"github.com/mmynk/tontine/internal/models"
	"github.com/mmynk/tontine/internal/storage"
)

const paymentColumns = "id, account_id, amount, reference, submitted_at, validated, validated_at"

const alertColumns = "id, account_id, message, seen, sent_at"

func scanPayment(row scanner) (*models.Payment, error) {
	payment := &models.Payment{}
	var reference sql.NullString
	var submittedAt int64
	var validated int
	var validatedAt sql.NullInt64
	if err := row.Scan(&payment.ID, &payment.AccountID, &payment.Amount, &reference,
		&submittedAt, &validated, &validatedAt); err != nil {
		return nil, err
	}
	if reference.Valid {
		payment.Reference = reference.String
	}
	payment.SubmittedAt = fromUnix(submittedAt)
	payment.Validated = validated != 0
	payment.ValidatedAt = timePtr(validatedAt)
	if err := payment.Validate(); err != nil {
		return nil, fmt.Errorf("malformed payment row %s: %w", payment.ID, err)
	}
	return payment, nil
}

func scanAlert(row scanner) (*models.PaymentAlert, error) {
	alert := &models.PaymentAlert{}
	var seen int
	var sentAt int64
	if err := row.Scan(&alert.ID, &alert.AccountID, &alert.Message, &seen, &sentAt); err != nil {
		return nil, err
	}
	alert.Seen = seen != 0
	alert.SentAt = fromUnix(sentAt)
	if err := alert.Validate(); err != nil {
		return nil, fmt.Errorf("malformed alert row %s: %w", alert.ID, err)
	}
	return alert, nil
}

// CreatePayment persists a new payment.
func (s *SQLiteStore) CreatePayment(ctx context.Context, payment *models.Payment) error {
	if err := payment.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO payments ("+paymentColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
		payment.ID, payment.AccountID, payment.Amount, nullString(payment.Reference),
		unix(payment.SubmittedAt), boolInt(payment.Validated), nullUnix(payment.ValidatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

// GetPayment retrieves a payment by ID.
func (s *SQLiteStore) GetPayment(ctx context.Context, paymentID string) (*models.Payment, error) {
	return getPayment(ctx, s.db, paymentID)
}

func getPayment(ctx context.Context, q querier, paymentID string) (*models.Payment, error) {
	payment, err := scanPayment(q.QueryRowContext(ctx,
		"SELECT "+paymentColumns+" FROM payments WHERE id = ?", paymentID,
	))
	if err != nil {
		return nil, notFound(err, "payment", paymentID)
	}
	return payment, nil
}

// ListPaymentsByAccount returns an account's payments, newest first.
func (s *SQLiteStore) ListPaymentsByAccount(ctx context.Context, accountID string) ([]*models.Payment, error) {
	return s.listPayments(ctx,
		"SELECT "+paymentColumns+" FROM payments WHERE account_id = ? ORDER BY submitted_at DESC, id", accountID,
	)
}

// ListPayments returns all payments, newest first.
func (s *SQLiteStore) ListPayments(ctx context.Context, pendingOnly bool) ([]*models.Payment, error) {
	query := "SELECT " + paymentColumns + " FROM payments"
	if pendingOnly {
		query += " WHERE validated = 0"
	}
	return s.listPayments(ctx, query+" ORDER BY submitted_at DESC, id")
}

func (s *SQLiteStore) listPayments(ctx context.Context, query string, args ...any) ([]*models.Payment, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []*models.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, payment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payments: %w", err)
	}
	return payments, nil
}

// ValidatePayment marks a payment validated and writes the subscription in
// one transaction. An already validated payment is returned unchanged and fn
// decides whether that is an error.
func (s *SQLiteStore) ValidatePayment(ctx context.Context, paymentID string, fn storage.ValidateFunc) (*models.Payment, *models.Subscription, error) {
	var payment *models.Payment
	var sub *models.Subscription
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		payment, err = getPayment(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		sub, err = getSubscription(ctx, tx, payment.AccountID)
		if err != nil {
			return err
		}

		alreadyValidated := payment.Validated
		if err := fn(payment, sub); err != nil {
			return err
		}
		if alreadyValidated {
			return nil
		}
		if !payment.Validated {
			return apperr.Validation("payment %s was not marked validated", paymentID)
		}
		if err := payment.Validate(); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx,
			"UPDATE payments SET validated = 1, validated_at = ? WHERE id = ? AND validated = 0",
			nullUnix(payment.ValidatedAt), paymentID,
		)
		if err != nil {
			return fmt.Errorf("failed to validate payment: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperr.Conflict("payment %s validated concurrently", paymentID)
		}
		return writeSubscription(ctx, tx, sub)
	})
	if err != nil {
		return nil, nil, err
	}
	return payment, sub, nil
}

// CreateAlert persists a payment alert.
func (s *SQLiteStore) CreateAlert(ctx context.Context, alert *models.PaymentAlert) error {
	if err := alert.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO payment_alerts ("+alertColumns+") VALUES (?, ?, ?, ?, ?)",
		alert.ID, alert.AccountID, alert.Message, boolInt(alert.Seen), unix(alert.SentAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

// ListAlerts returns an account's alerts, newest first.
func (s *SQLiteStore) ListAlerts(ctx context.Context, accountID string) ([]*models.PaymentAlert, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+alertColumns+" FROM payment_alerts WHERE account_id = ? ORDER BY sent_at DESC, id", accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*models.PaymentAlert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alerts: %w", err)
	}
	return alerts, nil
}

// MarkAlertSeen sets the seen flag of an alert owned by accountID.
func (s *SQLiteStore) MarkAlertSeen(ctx context.Context, accountID, alertID string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE payment_alerts SET seen = 1 WHERE id = ? AND account_id = ?", alertID, accountID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark alert seen: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("alert", alertID)
	}
	return nil
}
