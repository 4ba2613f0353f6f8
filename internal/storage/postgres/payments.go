package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmynk/tontine/internal/apperr"
	"github.com/mmynk/tontine/internal/models"
	"github.com/mmynk/tontine/internal/storage"
)

const paymentColumns = "id, account_id, amount, reference, submitted_at, validated, validated_at"

const alertColumns = "id, account_id, message, seen, sent_at"

func scanPayment(row scanner) (*models.Payment, error) {
	payment := &models.Payment{}
	var reference *string
	if err := row.Scan(&payment.ID, &payment.AccountID, &payment.Amount, &reference,
		&payment.SubmittedAt, &payment.Validated, &payment.ValidatedAt); err != nil {
		return nil, err
	}
	payment.Reference = deref(reference)
	payment.SubmittedAt = payment.SubmittedAt.UTC()
	payment.ValidatedAt = utcPtr(payment.ValidatedAt)
	if err := payment.Validate(); err != nil {
		return nil, fmt.Errorf("malformed payment row %s: %w", payment.ID, err)
	}
	return payment, nil
}

func scanAlert(row scanner) (*models.PaymentAlert, error) {
	alert := &models.PaymentAlert{}
	if err := row.Scan(&alert.ID, &alert.AccountID, &alert.Message, &alert.Seen, &alert.SentAt); err != nil {
		return nil, err
	}
	alert.SentAt = alert.SentAt.UTC()
	if err := alert.Validate(); err != nil {
		return nil, fmt.Errorf("malformed alert row %s: %w", alert.ID, err)
	}
	return alert, nil
}

// CreatePayment persists a new payment.
func (s *PostgresStore) CreatePayment(ctx context.Context, payment *models.Payment) error {
	if err := payment.Validate(); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx,
		"INSERT INTO payments ("+paymentColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7)",
		payment.ID, payment.AccountID, payment.Amount, nullString(payment.Reference),
		payment.SubmittedAt, payment.Validated, payment.ValidatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

// GetPayment retrieves a payment by ID.
func (s *PostgresStore) GetPayment(ctx context.Context, paymentID string) (*models.Payment, error) {
	return getPayment(ctx, s.pool, paymentID, false)
}

func getPayment(ctx context.Context, q querier, paymentID string, forUpdate bool) (*models.Payment, error) {
	query := "SELECT " + paymentColumns + " FROM payments WHERE id = $1"
	if forUpdate {
		query += " FOR UPDATE"
	}
	payment, err := scanPayment(q.QueryRow(ctx, query, paymentID))
	if err != nil {
		return nil, notFound(err, "payment", paymentID)
	}
	return payment, nil
}

// ListPaymentsByAccount returns an account's payments, newest first.
func (s *PostgresStore) ListPaymentsByAccount(ctx context.Context, accountID string) ([]*models.Payment, error) {
	return s.listPayments(ctx,
		"SELECT "+paymentColumns+" FROM payments WHERE account_id = $1 ORDER BY submitted_at DESC, id", accountID,
	)
}

// ListPayments returns all payments, newest first.
func (s *PostgresStore) ListPayments(ctx context.Context, pendingOnly bool) ([]*models.Payment, error) {
	query := "SELECT " + paymentColumns + " FROM payments"
	if pendingOnly {
		query += " WHERE NOT validated"
	}
	return s.listPayments(ctx, query+" ORDER BY submitted_at DESC, id")
}

func (s *PostgresStore) listPayments(ctx context.Context, query string, args ...any) ([]*models.Payment, error) {
	rows, err := s.pool.Query(ctx, query, args...)
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

// ValidatePayment locks the payment and its subscription, applies fn and
// writes both in one transaction. An already validated payment is returned
// unchanged.
func (s *PostgresStore) ValidatePayment(ctx context.Context, paymentID string, fn storage.ValidateFunc) (*models.Payment, *models.Subscription, error) {
	var payment *models.Payment
	var sub *models.Subscription
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		payment, err = getPayment(ctx, tx, paymentID, true)
		if err != nil {
			return err
		}
		sub, err = getSubscription(ctx, tx, payment.AccountID, true)
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

		tag, err := tx.Exec(ctx,
			"UPDATE payments SET validated = TRUE, validated_at = $1 WHERE id = $2 AND NOT validated",
			payment.ValidatedAt, paymentID,
		)
		if err != nil {
			return fmt.Errorf("failed to validate payment: %w", err)
		}
		if tag.RowsAffected() == 0 {
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
func (s *PostgresStore) CreateAlert(ctx context.Context, alert *models.PaymentAlert) error {
	if err := alert.Validate(); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx,
		"INSERT INTO payment_alerts ("+alertColumns+") VALUES ($1, $2, $3, $4, $5)",
		alert.ID, alert.AccountID, alert.Message, alert.Seen, alert.SentAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

// ListAlerts returns an account's alerts, newest first.
func (s *PostgresStore) ListAlerts(ctx context.Context, accountID string) ([]*models.PaymentAlert, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+alertColumns+" FROM payment_alerts WHERE account_id = $1 ORDER BY sent_at DESC, id", accountID,
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
func (s *PostgresStore) MarkAlertSeen(ctx context.Context, accountID, alertID string) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE payment_alerts SET seen = TRUE WHERE id = $1 AND account_id = $2", alertID, accountID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark alert seen: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("alert", alertID)
	}
	return nil
}
