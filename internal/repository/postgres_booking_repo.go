package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/travelbook/internal/model"
)

const bookingColumns = `id, user_id, user_email, destination, hotel, travel_date, contact_name,
	contact_email, contact_phone, status, updated_by, cancelled_by, created_at, updated_at`

// PostgresBookingRepo はPostgreSQLを使用した予約リポジトリ。
type PostgresBookingRepo struct {
	db *sql.DB
}

// NewPostgresBookingRepo はPostgresBookingRepoを生成する。
func NewPostgresBookingRepo(db *sql.DB) *PostgresBookingRepo {
	return &PostgresBookingRepo{db: db}
}

func scanBooking(row rowScanner) (*model.Booking, error) {
	b := &model.Booking{}
	var status string
	err := row.Scan(&b.ID, &b.UserID, &b.UserEmail, &b.Destination, &b.Hotel, &b.TravelDate,
		&b.ContactName, &b.ContactEmail, &b.ContactPhone, &status, &b.UpdatedBy, &b.CancelledBy,
		&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	b.Status = model.BookingStatus(status)
	return b, nil
}

func (r *PostgresBookingRepo) queryBookings(ctx context.Context, query string, args ...any) ([]*model.Booking, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookings: %w", err)
	}
	return bookings, nil
}

// Create は予約を作成する。IDが空の場合はUUIDを採番する。
func (r *PostgresBookingRepo) Create(ctx context.Context, b *model.Booking) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO bookings (id, user_id, user_email, destination, hotel, travel_date, contact_name,
			contact_email, contact_phone, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		b.ID, b.UserID, b.UserEmail, b.Destination, b.Hotel, b.TravelDate.Format(model.TravelDateLayout), b.ContactName,
		b.ContactEmail, b.ContactPhone, string(b.Status), b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert booking: %w", err)
	}
	return nil
}

// FindByID は指定IDの予約を取得する。UUIDとして不正なIDは見つからないものとして扱う。
func (r *PostgresBookingRepo) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	b, err := scanBooking(r.db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}
	return b, nil
}

// FindDuplicate は同一ユーザー・同一目的地・同一日付の予約を状態を問わず返す。
func (r *PostgresBookingRepo) FindDuplicate(ctx context.Context, userID, destination string, travelDate time.Time) (*model.Booking, error) {
	b, err := scanBooking(r.db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings
		 WHERE user_id = $1 AND destination = $2 AND travel_date = $3
		 LIMIT 1`,
		userID, destination, travelDate.Format(model.TravelDateLayout)))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find duplicate booking: %w", err)
	}
	return b, nil
}

// ListByUserID はユーザーの予約を作成日時の降順で返す。
func (r *PostgresBookingRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Booking, error) {
	return r.queryBookings(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

// List は全予約を作成日時の降順で返す。
func (r *PostgresBookingRepo) List(ctx context.Context, status model.BookingStatus) ([]*model.Booking, error) {
	if status == "" {
		return r.queryBookings(ctx,
			`SELECT `+bookingColumns+` FROM bookings ORDER BY created_at DESC`)
	}
	return r.queryBookings(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE status = $1 ORDER BY created_at DESC`, string(status))
}

// CountByStatus は状態ごとの予約件数を返す。
func (r *PostgresBookingRepo) CountByStatus(ctx context.Context) (map[model.BookingStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, count(*) FROM bookings GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count bookings: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.BookingStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan booking count: %w", err)
		}
		counts[model.BookingStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate booking counts: %w", err)
	}
	return counts, nil
}

// UpdateStatus は状態と更新者を記録する。
func (r *PostgresBookingRepo) UpdateStatus(ctx context.Context, id string, status model.BookingStatus, updatedBy string) error {
	return r.execUpdate(ctx, id,
		`UPDATE bookings SET status = $2, updated_by = $3, updated_at = now() WHERE id = $1`,
		id, string(status), updatedBy)
}

// Cancel は予約をキャンセル状態にする。
func (r *PostgresBookingRepo) Cancel(ctx context.Context, id, cancelledBy string) error {
	return r.execUpdate(ctx, id,
		`UPDATE bookings SET status = 'cancelled', cancelled_by = $2, updated_at = now() WHERE id = $1`,
		id, cancelledBy)
}

// Delete は予約を削除する。
func (r *PostgresBookingRepo) Delete(ctx context.Context, id string) error {
	return r.execUpdate(ctx, id, `DELETE FROM bookings WHERE id = $1`, id)
}

func (r *PostgresBookingRepo) execUpdate(ctx context.Context, id, query string, args ...any) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// compile-time interface check
var _ BookingRepository = (*PostgresBookingRepo)(nil)
