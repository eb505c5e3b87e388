package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"hotelier/internal/models"

	"github.com/shopspring/decimal"
)

const paymentColumns = `id, booking_id, kind, status, amount, session_id, session_url, created_at, updated_at`

func scanPayment(row rowScanner) (*models.Payment, error) {
	p := &models.Payment{}
	var amount string
	var sessionID, sessionURL sql.NullString

	err := row.Scan(&p.ID, &p.BookingID, &p.Kind, &p.Status, &amount,
		&sessionID, &sessionURL, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if p.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("failed to parse payment amount %s: %w", amount, err)
	}
	p.SessionID = sessionID.String
	p.SessionURL = sessionURL.String
	return p, nil
}

func (db *DB) GetPayment(ctx context.Context, id int64) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = ?`
	payment, err := scanPayment(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return payment, nil
}

func (db *DB) GetPaymentBySession(ctx context.Context, sessionID string) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE session_id = ?`
	payment, err := scanPayment(db.QueryRowContext(ctx, query, sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment by session: %w", err)
	}
	return payment, nil
}

// HasPendingPaymentForGuest reports whether the guest has an unsettled
// PENDING payment on any of their bookings.
func (db *DB) HasPendingPaymentForGuest(ctx context.Context, guestID int64) (bool, error) {
	query := `SELECT COUNT(*) FROM payments p
              JOIN bookings b ON b.id = p.booking_id
              WHERE b.guest_id = ? AND p.status = ?`
	var count int
	if err := db.QueryRowContext(ctx, query, guestID, models.PaymentPending).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to count pending payments: %w", err)
	}
	return count > 0, nil
}

// GetOrCreatePendingPayment returns the booking's PENDING payment of the
// given kind, creating it if absent. The lookup and insert share a
// transaction so repeated cancel or check-out calls cannot stack
// duplicate fees. The second return value reports whether a new payment
// was created.
func (db *DB) GetOrCreatePendingPayment(ctx context.Context, bookingID int64, kind models.PaymentKind, amount decimal.Decimal) (*models.Payment, bool, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `SELECT ` + paymentColumns + ` FROM payments
              WHERE booking_id = ? AND kind = ? AND status = ?`
	existing, err := scanPayment(tx.QueryRowContext(ctx, query, bookingID, kind, models.PaymentPending))
	if err == nil {
		return existing, false, tx.Commit()
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to look up pending payment: %w", err)
	}

	now := time.Now()
	result, err := tx.ExecContext(ctx,
		`INSERT INTO payments (booking_id, kind, status, amount, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		bookingID, kind, models.PaymentPending, amount.String(), now, now)
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert payment: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, false, fmt.Errorf("failed to get last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit payment: %w", err)
	}

	return &models.Payment{
		ID:        id,
		BookingID: bookingID,
		Kind:      kind,
		Status:    models.PaymentPending,
		Amount:    amount,
		CreatedAt: now,
		UpdatedAt: now,
	}, true, nil
}

// SetPaymentSession attaches a checkout session to a payment.
func (db *DB) SetPaymentSession(ctx context.Context, id int64, sessionID, sessionURL string) error {
	query := `UPDATE payments SET session_id = ?, session_url = ?, updated_at = ? WHERE id = ?`
	result, err := db.ExecContext(ctx, query, sessionID, sessionURL, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to set payment session: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// ExpirePayment marks a PENDING payment EXPIRED. A payment that was
// confirmed in the meantime is left alone.
func (db *DB) ExpirePayment(ctx context.Context, id int64) error {
	query := `UPDATE payments SET status = ?, updated_at = ? WHERE id = ? AND status = ?`
	result, err := db.ExecContext(ctx, query, models.PaymentExpired, time.Now(), id, models.PaymentPending)
	if err != nil {
		return fmt.Errorf("failed to expire payment: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// RenewPaymentSession reopens an EXPIRED payment with a fresh checkout
// session. The status guard keeps a racing confirmation from being
// overwritten back to PENDING.
func (db *DB) RenewPaymentSession(ctx context.Context, id int64, sessionID, sessionURL string) error {
	query := `UPDATE payments SET status = ?, session_id = ?, session_url = ?, updated_at = ?
              WHERE id = ? AND status = ?`
	result, err := db.ExecContext(ctx, query,
		models.PaymentPending, sessionID, sessionURL, time.Now(), id, models.PaymentExpired)
	if err != nil {
		return fmt.Errorf("failed to renew payment session: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *DB) ListBookingPayments(ctx context.Context, bookingID int64) ([]*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE booking_id = ? ORDER BY id ASC`
	return db.queryPayments(ctx, query, bookingID)
}

func (db *DB) ListBookingPaymentsByStatus(ctx context.Context, bookingID int64, status models.PaymentStatus) ([]*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE booking_id = ? AND status = ? ORDER BY id ASC`
	return db.queryPayments(ctx, query, bookingID, status)
}

// ListPayments returns every payment, newest first.
func (db *DB) ListPayments(ctx context.Context) ([]*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments ORDER BY id DESC`
	return db.queryPayments(ctx, query)
}

func (db *DB) ListPaymentsByStatus(ctx context.Context, status models.PaymentStatus) ([]*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE status = ? ORDER BY id DESC`
	return db.queryPayments(ctx, query, status)
}

func (db *DB) queryPayments(ctx context.Context, query string, args ...any) ([]*models.Payment, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []*models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// ApplyPaymentConfirmation settles the payment behind a checkout session
// and advances the booking accordingly, all in one transaction. Calling
// it twice for the same session is a no-op reported via AlreadyPaid.
func (db *DB) ApplyPaymentConfirmation(ctx context.Context, sessionID string, now time.Time) (*models.ConfirmationResult, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	payment, err := scanPayment(tx.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE session_id = ?`, sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment in tx: %w", err)
	}

	booking, err := scanBooking(tx.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, payment.BookingID))
	if err != nil {
		return nil, fmt.Errorf("failed to get booking in tx: %w", err)
	}

	result := &models.ConfirmationResult{Payment: payment, Booking: booking, PreviousStatus: booking.Status}

	if payment.Status == models.PaymentPaid {
		result.AlreadyPaid = true
		return result, tx.Commit()
	}

	updatedAt := time.Now()
	if _, err := tx.ExecContext(ctx,
		`UPDATE payments SET status = ?, updated_at = ? WHERE id = ?`,
		models.PaymentPaid, updatedAt, payment.ID); err != nil {
		return nil, fmt.Errorf("failed to mark payment paid: %w", err)
	}
	payment.Status = models.PaymentPaid
	payment.UpdatedAt = updatedAt

	next, ok := models.NextStatusOnPayment(payment.Kind, booking.Status)
	if ok {
		var res sql.Result
		if next == models.StatusCompleted {
			res, err = tx.ExecContext(ctx,
				`UPDATE bookings SET status = ?, actual_check_out_date = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`,
				next, now.Format(dateLayout), updatedAt, booking.ID, booking.Version)
		} else {
			res, err = tx.ExecContext(ctx,
				`UPDATE bookings SET status = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`,
				next, updatedAt, booking.ID, booking.Version)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to advance booking status: %w", err)
		}
		affected, _ := res.RowsAffected()
		if affected == 0 {
			return nil, ErrConcurrentModification
		}

		booking.Status = next
		booking.Version++
		booking.UpdatedAt = updatedAt
		if next == models.StatusCompleted {
			actual := models.DateOnly(now)
			booking.ActualCheckOutDate = &actual
		}
		result.StatusChanged = true
	}

	return result, tx.Commit()
}
