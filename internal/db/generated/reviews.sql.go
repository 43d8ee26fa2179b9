package dbgen

import (
	"context"
	"database/sql"
	"time"
)

const reviewColumns = `r.id, r.user_id, r.station_id, r.rating, r.title, r.comment, r.images, r.helpful, r.created_at, r.updated_at`

type ReviewWithAuthor struct {
	Review
	UserName   string
	UserAvatar sql.NullString
}

func scanReviewWithAuthor(row interface{ Scan(...interface{}) error }) (ReviewWithAuthor, error) {
	var i ReviewWithAuthor
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.StationID,
		&i.Rating,
		&i.Title,
		&i.Comment,
		&i.Images,
		&i.Helpful,
		&i.CreatedAt,
		&i.UpdatedAt,
		&i.UserName,
		&i.UserAvatar,
	)
	return i, err
}

func (q *Queries) queryReviews(ctx context.Context, query string, args ...interface{}) ([]ReviewWithAuthor, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ReviewWithAuthor
	for rows.Next() {
		i, err := scanReviewWithAuthor(rows)
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

const createReview = `-- name: CreateReview :exec
INSERT INTO reviews (id, user_id, station_id, rating, title, comment, images, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

type CreateReviewParams struct {
	ID        string
	UserID    string
	StationID string
	Rating    int64
	Title     string
	Comment   string
	Images    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (q *Queries) CreateReview(ctx context.Context, arg CreateReviewParams) error {
	_, err := q.db.ExecContext(ctx, createReview,
		arg.ID,
		arg.UserID,
		arg.StationID,
		arg.Rating,
		arg.Title,
		arg.Comment,
		arg.Images,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return err
}

const getReview = `-- name: GetReview :one
SELECT ` + reviewColumns + `, u.name, u.avatar
FROM reviews r
JOIN users u ON u.id = r.user_id
WHERE r.id = ?`

func (q *Queries) GetReview(ctx context.Context, id string) (ReviewWithAuthor, error) {
	return scanReviewWithAuthor(q.db.QueryRowContext(ctx, getReview, id))
}

const getUserStationReview = `-- name: GetUserStationReview :one
SELECT ` + reviewColumns + `, u.name, u.avatar
FROM reviews r
JOIN users u ON u.id = r.user_id
WHERE r.user_id = ? AND r.station_id = ?`

func (q *Queries) GetUserStationReview(ctx context.Context, userID, stationID string) (ReviewWithAuthor, error) {
	return scanReviewWithAuthor(q.db.QueryRowContext(ctx, getUserStationReview, userID, stationID))
}

const updateReview = `-- name: UpdateReview :exec
UPDATE reviews SET rating = ?, title = ?, comment = ?, images = ?, updated_at = ? WHERE id = ?`

type UpdateReviewParams struct {
	Rating    int64
	Title     string
	Comment   string
	Images    string
	UpdatedAt time.Time
	ID        string
}

func (q *Queries) UpdateReview(ctx context.Context, arg UpdateReviewParams) error {
	result, err := q.db.ExecContext(ctx, updateReview,
		arg.Rating,
		arg.Title,
		arg.Comment,
		arg.Images,
		arg.UpdatedAt,
		arg.ID,
	)
	return requireRow(result, err)
}

const deleteReview = `-- name: DeleteReview :exec
DELETE FROM reviews WHERE id = ?`

func (q *Queries) DeleteReview(ctx context.Context, id string) error {
	result, err := q.db.ExecContext(ctx, deleteReview, id)
	return requireRow(result, err)
}

const listStationReviews = `-- name: ListStationReviews :many
SELECT ` + reviewColumns + `, u.name, u.avatar
FROM reviews r
JOIN users u ON u.id = r.user_id
WHERE r.station_id = ?
ORDER BY r.created_at DESC, r.id
LIMIT ? OFFSET ?`

func (q *Queries) ListStationReviews(ctx context.Context, stationID string, limit, offset int64) ([]ReviewWithAuthor, error) {
	return q.queryReviews(ctx, listStationReviews, stationID, limit, offset)
}

const countStationReviews = `-- name: CountStationReviews :one
SELECT COUNT(*) FROM reviews WHERE station_id = ?`

func (q *Queries) CountStationReviews(ctx context.Context, stationID string) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countStationReviews, stationID).Scan(&count)
	return count, err
}

const listUserReviews = `-- name: ListUserReviews :many
SELECT ` + reviewColumns + `, u.name, u.avatar
FROM reviews r
JOIN users u ON u.id = r.user_id
WHERE r.user_id = ?
ORDER BY r.created_at DESC, r.id
LIMIT ? OFFSET ?`

func (q *Queries) ListUserReviews(ctx context.Context, userID string, limit, offset int64) ([]ReviewWithAuthor, error) {
	return q.queryReviews(ctx, listUserReviews, userID, limit, offset)
}

const countUserReviews = `-- name: CountUserReviews :one
SELECT COUNT(*) FROM reviews WHERE user_id = ?`

func (q *Queries) CountUserReviews(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countUserReviews, userID).Scan(&count)
	return count, err
}

const addHelpfulVote = `-- name: AddHelpfulVote :execrows
INSERT OR IGNORE INTO review_helpful_votes (review_id, user_id) VALUES (?, ?)`

// AddHelpfulVote returns 0 when the user already voted.
func (q *Queries) AddHelpfulVote(ctx context.Context, reviewID, userID string) (int64, error) {
	result, err := q.db.ExecContext(ctx, addHelpfulVote, reviewID, userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const incrementReviewHelpful = `-- name: IncrementReviewHelpful :exec
UPDATE reviews SET helpful = helpful + 1 WHERE id = ?`

func (q *Queries) IncrementReviewHelpful(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, incrementReviewHelpful, id)
	return err
}
