package dbgen

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

const bookingColumns = `id, user_id, station_id, connector_type, start_time, end_time, duration_minutes, status, total_cost, energy_delivered, reminder_sent, created_at, updated_at, started_at`

func scanBooking(row interface{ Scan(...interface{}) error }) (Booking, error) {
	var i Booking
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.StationID,
		&i.ConnectorType,
		&i.StartTime,
		&i.EndTime,
		&i.DurationMinutes,
		&i.Status,
		&i.TotalCost,
		&i.EnergyDelivered,
		&i.ReminderSent,
		&i.CreatedAt,
		&i.UpdatedAt,
		&i.StartedAt,
	)
	return i, err
}

func (q *Queries) queryBookings(ctx context.Context, query string, args ...interface{}) ([]Booking, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Booking
	for rows.Next() {
		i, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createBooking = `-- name: CreateBooking :exec
INSERT INTO bookings (id, user_id, station_id, connector_type, start_time, end_time, duration_minutes, status, total_cost, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

type CreateBookingParams struct {
	ID              string
	UserID          string
	StationID       string
	ConnectorType   string
	StartTime       time.Time
	EndTime         time.Time
	DurationMinutes int64
	Status          string
	TotalCost       float64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (q *Queries) CreateBooking(ctx context.Context, arg CreateBookingParams) (Booking, error) {
	_, err := q.db.ExecContext(ctx, createBooking,
		arg.ID,
		arg.UserID,
		arg.StationID,
		arg.ConnectorType,
		arg.StartTime,
		arg.EndTime,
		arg.DurationMinutes,
		arg.Status,
		arg.TotalCost,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	if err != nil {
		return Booking{}, err
	}
	return q.GetBooking(ctx, arg.ID)
}

const getBooking = `-- name: GetBooking :one
SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`

func (q *Queries) GetBooking(ctx context.Context, id string) (Booking, error) {
	return scanBooking(q.db.QueryRowContext(ctx, getBooking, id))
}

const getUserBooking = `-- name: GetUserBooking :one
SELECT ` + bookingColumns + ` FROM bookings WHERE id = ? AND user_id = ?`

func (q *Queries) GetUserBooking(ctx context.Context, id, userID string) (Booking, error) {
	return scanBooking(q.db.QueryRowContext(ctx, getUserBooking, id, userID))
}

type ListUserBookingsParams struct {
	UserID   string
	Statuses []string
	Limit    int64
	Offset   int64
}

// ListUserBookings returns newest-first bookings. An empty Statuses matches
// every status and a negative Limit returns all rows.
func (q *Queries) ListUserBookings(ctx context.Context, arg ListUserBookingsParams) ([]Booking, error) {
	where, args := userBookingFilter(arg.UserID, arg.Statuses)
	query := `-- name: ListUserBookings :many
SELECT ` + bookingColumns + ` FROM bookings WHERE ` + where + `
ORDER BY start_time DESC, id
LIMIT ? OFFSET ?`
	args = append(args, arg.Limit, arg.Offset)
	return q.queryBookings(ctx, query, args...)
}

func (q *Queries) CountUserBookings(ctx context.Context, userID string, statuses []string) (int64, error) {
	where, args := userBookingFilter(userID, statuses)
	query := `-- name: CountUserBookings :one
SELECT COUNT(*) FROM bookings WHERE ` + where
	var count int64
	err := q.db.QueryRowContext(ctx, query, args...).Scan(&count)
	return count, err
}

func userBookingFilter(userID string, statuses []string) (string, []interface{}) {
	where := "user_id = ?"
	args := []interface{}{userID}
	if len(statuses) > 0 {
		where += " AND status IN (?" + strings.Repeat(", ?", len(statuses)-1) + ")"
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	return where, args
}

const countOverlappingBookings = `-- name: CountOverlappingBookings :one
SELECT COUNT(*) FROM bookings
WHERE station_id = ?
  AND connector_type = ?
  AND status IN ('Pending', 'Confirmed', 'Active')
  AND start_time < ?
  AND end_time > ?
  AND id != ?`

type CountOverlappingBookingsParams struct {
	StationID     string
	ConnectorType string
	StartTime     time.Time
	EndTime       time.Time
	ExcludeID     string
}

func (q *Queries) CountOverlappingBookings(ctx context.Context, arg CountOverlappingBookingsParams) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countOverlappingBookings,
		arg.StationID,
		arg.ConnectorType,
		arg.EndTime,
		arg.StartTime,
		arg.ExcludeID,
	).Scan(&count)
	return count, err
}

const updateBookingStatus = `-- name: UpdateBookingStatus :exec
UPDATE bookings SET status = ?, updated_at = ? WHERE id = ? AND status = ?`

// UpdateBookingStatus only moves a booking still in the expected status.
func (q *Queries) UpdateBookingStatus(ctx context.Context, id, from, to string, updatedAt time.Time) error {
	result, err := q.db.ExecContext(ctx, updateBookingStatus, to, updatedAt, id, from)
	return requireRow(result, err)
}

const startBooking = `-- name: StartBooking :exec
UPDATE bookings SET status = 'Active', started_at = ?, updated_at = ? WHERE id = ? AND status = ?`

// StartBooking moves a booking from the expected status to Active and
// records when charging began.
func (q *Queries) StartBooking(ctx context.Context, id, from string, startedAt time.Time) error {
	result, err := q.db.ExecContext(ctx, startBooking, startedAt, startedAt, id, from)
	return requireRow(result, err)
}

const updateBookingSchedule = `-- name: UpdateBookingSchedule :exec
UPDATE bookings
SET end_time = ?, duration_minutes = ?, total_cost = ?, updated_at = ?
WHERE id = ?`

type UpdateBookingScheduleParams struct {
	EndTime         time.Time
	DurationMinutes int64
	TotalCost       float64
	UpdatedAt       time.Time
	ID              string
}

func (q *Queries) UpdateBookingSchedule(ctx context.Context, arg UpdateBookingScheduleParams) error {
	result, err := q.db.ExecContext(ctx, updateBookingSchedule,
		arg.EndTime,
		arg.DurationMinutes,
		arg.TotalCost,
		arg.UpdatedAt,
		arg.ID,
	)
	return requireRow(result, err)
}

const completeBooking = `-- name: CompleteBooking :exec
UPDATE bookings
SET status = 'Completed', end_time = ?, duration_minutes = ?, total_cost = ?, energy_delivered = ?, updated_at = ?
WHERE id = ? AND status = 'Active'`

type CompleteBookingParams struct {
	EndTime         time.Time
	DurationMinutes int64
	TotalCost       float64
	EnergyDelivered sql.NullFloat64
	UpdatedAt       time.Time
	ID              string
}

func (q *Queries) CompleteBooking(ctx context.Context, arg CompleteBookingParams) error {
	result, err := q.db.ExecContext(ctx, completeBooking,
		arg.EndTime,
		arg.DurationMinutes,
		arg.TotalCost,
		arg.EnergyDelivered,
		arg.UpdatedAt,
		arg.ID,
	)
	return requireRow(result, err)
}

const listPendingBookingsCreatedBefore = `-- name: ListPendingBookingsCreatedBefore :many
SELECT ` + bookingColumns + ` FROM bookings
WHERE status = 'Pending' AND created_at < ?
ORDER BY created_at`

func (q *Queries) ListPendingBookingsCreatedBefore(ctx context.Context, cutoff time.Time) ([]Booking, error) {
	return q.queryBookings(ctx, listPendingBookingsCreatedBefore, cutoff)
}

const listBookingsEndedBefore = `-- name: ListBookingsEndedBefore :many
SELECT ` + bookingColumns + ` FROM bookings
WHERE status = ? AND end_time <= ?
ORDER BY end_time`

func (q *Queries) ListBookingsEndedBefore(ctx context.Context, status string, cutoff time.Time) ([]Booking, error) {
	return q.queryBookings(ctx, listBookingsEndedBefore, status, cutoff)
}

const listBookingsStartingBetween = `-- name: ListBookingsStartingBetween :many
SELECT ` + bookingColumns + ` FROM bookings
WHERE status = 'Confirmed'
  AND reminder_sent = 0
  AND start_time >= ?
  AND start_time < ?
ORDER BY start_time`

func (q *Queries) ListBookingsStartingBetween(ctx context.Context, from, to time.Time) ([]Booking, error) {
	return q.queryBookings(ctx, listBookingsStartingBetween, from, to)
}

const markBookingReminderSent = `-- name: MarkBookingReminderSent :exec
UPDATE bookings SET reminder_sent = 1 WHERE id = ?`

func (q *Queries) MarkBookingReminderSent(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, markBookingReminderSent, id)
	return err
}

const listPendingBookingsForUser = `-- name: ListPendingBookingsForUser :many
SELECT ` + bookingColumns + ` FROM bookings
WHERE user_id = ? AND status = 'Pending'
ORDER BY start_time`

func (q *Queries) ListPendingBookingsForUser(ctx context.Context, userID string) ([]Booking, error) {
	return q.queryBookings(ctx, listPendingBookingsForUser, userID)
}
