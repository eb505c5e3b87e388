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

const bookingColumns = `id, reference, room_id, guest_id, guest_name, guest_email,
                 check_in_date, check_out_date, actual_check_out_date, status,
                 price_per_night, created_at, updated_at, version`

// overlapCondition matches occupying bookings whose half-open stay range
// [check_in, check_out) intersects [?, ?); first placeholder is the
// range end, second the range start.
const overlapCondition = `status IN ('BOOKED', 'ACTIVE') AND check_in_date < ? AND check_out_date > ?`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	b := &models.Booking{}
	var checkIn, checkOut, price string
	var actualCheckOut sql.NullString

	err := row.Scan(
		&b.ID, &b.Reference, &b.RoomID, &b.GuestID, &b.GuestName, &b.GuestEmail,
		&checkIn, &checkOut, &actualCheckOut, &b.Status,
		&price, &b.CreatedAt, &b.UpdatedAt, &b.Version,
	)
	if err != nil {
		return nil, err
	}

	if b.CheckInDate, err = time.Parse(dateLayout, checkIn); err != nil {
		return nil, fmt.Errorf("failed to parse check-in date %s: %w", checkIn, err)
	}
	if b.CheckOutDate, err = time.Parse(dateLayout, checkOut); err != nil {
		return nil, fmt.Errorf("failed to parse check-out date %s: %w", checkOut, err)
	}
	if actualCheckOut.Valid && actualCheckOut.String != "" {
		t, err := time.Parse(dateLayout, actualCheckOut.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse actual check-out date %s: %w", actualCheckOut.String, err)
		}
		b.ActualCheckOutDate = &t
	}
	if b.PricePerNight, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("failed to parse price %s: %w", price, err)
	}
	return b, nil
}

// CreateBookingWithLock inserts a booking only if no occupying booking
// overlaps its date range. The availability check and the insert run in
// one transaction so two racing requests cannot both win the room.
func (db *DB) CreateBookingWithLock(ctx context.Context, booking *models.Booking) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var overlapping int
	queryCount := `SELECT COUNT(*) FROM bookings WHERE room_id = ? AND ` + overlapCondition
	err = tx.QueryRowContext(ctx, queryCount, booking.RoomID,
		booking.CheckOutDate.Format(dateLayout), booking.CheckInDate.Format(dateLayout)).Scan(&overlapping)
	if err != nil {
		return fmt.Errorf("failed to check availability in tx: %w", err)
	}
	if overlapping > 0 {
		return ErrRoomNotAvailable
	}

	queryInsert := `INSERT INTO bookings (
				reference, room_id, guest_id, guest_name, guest_email,
				check_in_date, check_out_date, status, price_per_night,
				created_at, updated_at, version
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := tx.ExecContext(ctx, queryInsert,
		booking.Reference,
		booking.RoomID,
		booking.GuestID,
		booking.GuestName,
		booking.GuestEmail,
		booking.CheckInDate.Format(dateLayout),
		booking.CheckOutDate.Format(dateLayout),
		booking.Status,
		booking.PricePerNight.String(),
		now,
		now,
		1,
	)
	if err != nil {
		return fmt.Errorf("failed to insert booking in tx: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id in tx: %w", err)
	}
	booking.ID = id
	booking.CreatedAt = now
	booking.UpdatedAt = now
	booking.Version = 1

	return tx.Commit()
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	booking, err := scanBooking(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return booking, nil
}

func (db *DB) GetBookingByReference(ctx context.Context, reference string) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE reference = ?`
	booking, err := scanBooking(db.QueryRowContext(ctx, query, reference))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking by reference: %w", err)
	}
	return booking, nil
}

func (db *DB) ListBookings(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE 1=1`
	var args []any

	if filter.RoomID != 0 {
		query += ` AND room_id = ?`
		args = append(args, filter.RoomID)
	}
	if filter.GuestID != 0 {
		query += ` AND guest_id = ?`
		args = append(args, filter.GuestID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	if !filter.From.IsZero() {
		query += ` AND check_out_date > ?`
		args = append(args, filter.From.Format(dateLayout))
	}
	if !filter.To.IsZero() {
		query += ` AND check_in_date <= ?`
		args = append(args, filter.To.Format(dateLayout))
	}
	query += ` ORDER BY check_in_date ASC, id ASC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// GetRoomBookings returns the occupying bookings of a room that overlap
// the half-open range [from, to).
func (db *DB) GetRoomBookings(ctx context.Context, roomID int64, from, to time.Time) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
              WHERE room_id = ? AND ` + overlapCondition + ` ORDER BY check_in_date ASC`
	rows, err := db.QueryContext(ctx, query, roomID, to.Format(dateLayout), from.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to get room bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func (db *DB) UpdateBookingStatusWithVersion(ctx context.Context, id, fromVersion int64, status models.BookingStatus) error {
	query := `UPDATE bookings SET status = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`
	result, err := db.ExecContext(ctx, query, status, time.Now(), id, fromVersion)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}
	return nil
}

// CompleteBookingWithVersion moves a booking to COMPLETED and stamps the
// date the guest actually left.
func (db *DB) CompleteBookingWithVersion(ctx context.Context, id, fromVersion int64, actualCheckOut time.Time) error {
	query := `UPDATE bookings SET status = ?, actual_check_out_date = ?, version = version + 1, updated_at = ?
              WHERE id = ? AND version = ?`
	result, err := db.ExecContext(ctx, query,
		models.StatusCompleted, actualCheckOut.Format(dateLayout), time.Now(), id, fromVersion)
	if err != nil {
		return fmt.Errorf("failed to complete booking: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}
	return nil
}

// MarkNoShows flips every BOOKED booking whose check-in date is before
// today to NO_SHOW and returns the affected bookings. Selection and
// update share a transaction so a concurrent check-in cannot slip a
// booking into both outcomes.
func (db *DB) MarkNoShows(ctx context.Context, today time.Time) ([]*models.Booking, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE status = ? AND check_in_date < ?`
	rows, err := tx.QueryContext(ctx, query, models.StatusBooked, today.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to select overdue bookings: %w", err)
	}

	var overdue []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		overdue = append(overdue, b)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	now := time.Now()
	for _, b := range overdue {
		result, err := tx.ExecContext(ctx,
			`UPDATE bookings SET status = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`,
			models.StatusNoShow, now, b.ID, b.Version)
		if err != nil {
			return nil, fmt.Errorf("failed to mark booking %d as no-show: %w", b.ID, err)
		}
		affected, _ := result.RowsAffected()
		if affected == 0 {
			return nil, ErrConcurrentModification
		}
		b.Status = models.StatusNoShow
		b.Version++
		b.UpdatedAt = now
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit no-show sweep: %w", err)
	}
	return overdue, nil
}
