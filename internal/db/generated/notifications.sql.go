package dbgen

import (
	"context"
)

const notificationColumns = `id, user_id, type, title, message, action_url, read, created_at`

func scanNotification(row interface{ Scan(...interface{}) error }) (Notification, error) {
	var i Notification
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.Type,
		&i.Title,
		&i.Message,
		&i.ActionUrl,
		&i.Read,
		&i.CreatedAt,
	)
	return i, err
}

const createNotification = `-- name: CreateNotification :exec
INSERT INTO notifications (id, user_id, type, title, message, action_url, read, created_at)
VALUES (?, ?, ?, ?, ?, ?, 0, ?)`

func (q *Queries) CreateNotification(ctx context.Context, arg Notification) error {
	_, err := q.db.ExecContext(ctx, createNotification,
		arg.ID,
		arg.UserID,
		arg.Type,
		arg.Title,
		arg.Message,
		arg.ActionUrl,
		arg.CreatedAt,
	)
	return err
}

const listNotifications = `-- name: ListNotifications :many
SELECT ` + notificationColumns + ` FROM notifications
WHERE user_id = ?
ORDER BY created_at DESC, id
LIMIT ? OFFSET ?`

func (q *Queries) ListNotifications(ctx context.Context, userID string, limit, offset int64) ([]Notification, error) {
	rows, err := q.db.QueryContext(ctx, listNotifications, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Notification
	for rows.Next() {
		i, err := scanNotification(rows)
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

const countNotifications = `-- name: CountNotifications :one
SELECT COUNT(*) FROM notifications WHERE user_id = ?`

func (q *Queries) CountNotifications(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countNotifications, userID).Scan(&count)
	return count, err
}

const getNotification = `-- name: GetNotification :one
SELECT ` + notificationColumns + ` FROM notifications WHERE id = ? AND user_id = ?`

func (q *Queries) GetNotification(ctx context.Context, id, userID string) (Notification, error) {
	return scanNotification(q.db.QueryRowContext(ctx, getNotification, id, userID))
}

const markNotificationRead = `-- name: MarkNotificationRead :exec
UPDATE notifications SET read = 1 WHERE id = ? AND user_id = ?`

func (q *Queries) MarkNotificationRead(ctx context.Context, id, userID string) error {
	result, err := q.db.ExecContext(ctx, markNotificationRead, id, userID)
	return requireRow(result, err)
}

const markAllNotificationsRead = `-- name: MarkAllNotificationsRead :execrows
UPDATE notifications SET read = 1 WHERE user_id = ? AND read = 0`

func (q *Queries) MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error) {
	result, err := q.db.ExecContext(ctx, markAllNotificationsRead, userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteNotification = `-- name: DeleteNotification :exec
DELETE FROM notifications WHERE id = ? AND user_id = ?`

func (q *Queries) DeleteNotification(ctx context.Context, id, userID string) error {
	result, err := q.db.ExecContext(ctx, deleteNotification, id, userID)
	return requireRow(result, err)
}
