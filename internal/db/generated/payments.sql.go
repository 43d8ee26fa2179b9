package dbgen

import (
	"context"
)

const paymentMethodColumns = `id, user_id, type, last4, brand, is_default, created_at`

func scanPaymentMethod(row interface{ Scan(...interface{}) error }) (PaymentMethod, error) {
	var i PaymentMethod
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.Type,
		&i.Last4,
		&i.Brand,
		&i.IsDefault,
		&i.CreatedAt,
	)
	return i, err
}

const listPaymentMethods = `-- name: ListPaymentMethods :many
SELECT ` + paymentMethodColumns + ` FROM payment_methods
WHERE user_id = ?
ORDER BY created_at, id`

func (q *Queries) ListPaymentMethods(ctx context.Context, userID string) ([]PaymentMethod, error) {
	rows, err := q.db.QueryContext(ctx, listPaymentMethods, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PaymentMethod
	for rows.Next() {
		i, err := scanPaymentMethod(rows)
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

const countPaymentMethods = `-- name: CountPaymentMethods :one
SELECT COUNT(*) FROM payment_methods WHERE user_id = ?`

func (q *Queries) CountPaymentMethods(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countPaymentMethods, userID).Scan(&count)
	return count, err
}

const createPaymentMethod = `-- name: CreatePaymentMethod :exec
INSERT INTO payment_methods (id, user_id, type, last4, brand, is_default, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreatePaymentMethod(ctx context.Context, arg PaymentMethod) error {
	_, err := q.db.ExecContext(ctx, createPaymentMethod,
		arg.ID,
		arg.UserID,
		arg.Type,
		arg.Last4,
		arg.Brand,
		arg.IsDefault,
		arg.CreatedAt,
	)
	return err
}

const getPaymentMethod = `-- name: GetPaymentMethod :one
SELECT ` + paymentMethodColumns + ` FROM payment_methods WHERE id = ? AND user_id = ?`

func (q *Queries) GetPaymentMethod(ctx context.Context, id, userID string) (PaymentMethod, error) {
	return scanPaymentMethod(q.db.QueryRowContext(ctx, getPaymentMethod, id, userID))
}

const deletePaymentMethod = `-- name: DeletePaymentMethod :exec
DELETE FROM payment_methods WHERE id = ? AND user_id = ?`

func (q *Queries) DeletePaymentMethod(ctx context.Context, id, userID string) error {
	result, err := q.db.ExecContext(ctx, deletePaymentMethod, id, userID)
	return requireRow(result, err)
}

const setDefaultPaymentMethod = `-- name: SetDefaultPaymentMethod :exec
UPDATE payment_methods SET is_default = (id = ?) WHERE user_id = ?`

// SetDefaultPaymentMethod clears the flag on every other method of the user.
func (q *Queries) SetDefaultPaymentMethod(ctx context.Context, id, userID string) error {
	_, err := q.db.ExecContext(ctx, setDefaultPaymentMethod, id, userID)
	return err
}

const getOldestPaymentMethod = `-- name: GetOldestPaymentMethod :one
SELECT ` + paymentMethodColumns + ` FROM payment_methods
WHERE user_id = ?
ORDER BY created_at, id
LIMIT 1`

func (q *Queries) GetOldestPaymentMethod(ctx context.Context, userID string) (PaymentMethod, error) {
	return scanPaymentMethod(q.db.QueryRowContext(ctx, getOldestPaymentMethod, userID))
}

const createPaymentIntent = `-- name: CreatePaymentIntent :exec
INSERT INTO payment_intents (id, user_id, amount, currency, client_secret, status, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreatePaymentIntent(ctx context.Context, arg PaymentIntent) error {
	_, err := q.db.ExecContext(ctx, createPaymentIntent,
		arg.ID,
		arg.UserID,
		arg.Amount,
		arg.Currency,
		arg.ClientSecret,
		arg.Status,
		arg.CreatedAt,
	)
	return err
}

const createInvoice = `-- name: CreateInvoice :exec
INSERT INTO invoices (id, user_id, booking_id, amount, currency, status, issued_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateInvoice(ctx context.Context, arg Invoice) error {
	_, err := q.db.ExecContext(ctx, createInvoice,
		arg.ID,
		arg.UserID,
		arg.BookingID,
		arg.Amount,
		arg.Currency,
		arg.Status,
		arg.IssuedAt,
	)
	return err
}

const invoiceColumns = `id, user_id, booking_id, amount, currency, status, issued_at`

func scanInvoice(row interface{ Scan(...interface{}) error }) (Invoice, error) {
	var i Invoice
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.BookingID,
		&i.Amount,
		&i.Currency,
		&i.Status,
		&i.IssuedAt,
	)
	return i, err
}

const getInvoiceByBooking = `-- name: GetInvoiceByBooking :one
SELECT ` + invoiceColumns + ` FROM invoices WHERE booking_id = ?`

func (q *Queries) GetInvoiceByBooking(ctx context.Context, bookingID string) (Invoice, error) {
	return scanInvoice(q.db.QueryRowContext(ctx, getInvoiceByBooking, bookingID))
}

const listInvoices = `-- name: ListInvoices :many
SELECT ` + invoiceColumns + ` FROM invoices
WHERE user_id = ?
ORDER BY issued_at DESC, id
LIMIT ? OFFSET ?`

func (q *Queries) ListInvoices(ctx context.Context, userID string, limit, offset int64) ([]Invoice, error) {
	rows, err := q.db.QueryContext(ctx, listInvoices, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Invoice
	for rows.Next() {
		i, err := scanInvoice(rows)
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

const countInvoices = `-- name: CountInvoices :one
SELECT COUNT(*) FROM invoices WHERE user_id = ?`

func (q *Queries) CountInvoices(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countInvoices, userID).Scan(&count)
	return count, err
}
