package dbgen

import (
	"context"
	"database/sql"
	"time"
)

const userColumns = `id, email, name, phone, avatar, password_hash, email_verified, membership_level, preferences, vehicles, created_at, updated_at`

func scanUser(row interface{ Scan(...interface{}) error }) (User, error) {
	var i User
	err := row.Scan(
		&i.ID,
		&i.Email,
		&i.Name,
		&i.Phone,
		&i.Avatar,
		&i.PasswordHash,
		&i.EmailVerified,
		&i.MembershipLevel,
		&i.Preferences,
		&i.Vehicles,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createUser = `-- name: CreateUser :exec
INSERT INTO users (id, email, name, phone, password_hash, preferences, vehicles, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

type CreateUserParams struct {
	ID           string
	Email        string
	Name         string
	Phone        sql.NullString
	PasswordHash string
	Preferences  string
	Vehicles     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	_, err := q.db.ExecContext(ctx, createUser,
		arg.ID,
		arg.Email,
		arg.Name,
		arg.Phone,
		arg.PasswordHash,
		arg.Preferences,
		arg.Vehicles,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	if err != nil {
		return User{}, err
	}
	return q.GetUserByID(ctx, arg.ID)
}

const getUserByID = `-- name: GetUserByID :one
SELECT ` + userColumns + ` FROM users WHERE id = ?`

func (q *Queries) GetUserByID(ctx context.Context, id string) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByID, id))
}

const getUserByEmail = `-- name: GetUserByEmail :one
SELECT ` + userColumns + ` FROM users WHERE email = ?`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByEmail, email))
}

const updateUserProfile = `-- name: UpdateUserProfile :exec
UPDATE users
SET name = ?, phone = ?, avatar = ?, preferences = ?, vehicles = ?, updated_at = ?
WHERE id = ?`

type UpdateUserProfileParams struct {
	Name        string
	Phone       sql.NullString
	Avatar      sql.NullString
	Preferences string
	Vehicles    string
	UpdatedAt   time.Time
	ID          string
}

func (q *Queries) UpdateUserProfile(ctx context.Context, arg UpdateUserProfileParams) (User, error) {
	result, err := q.db.ExecContext(ctx, updateUserProfile,
		arg.Name,
		arg.Phone,
		arg.Avatar,
		arg.Preferences,
		arg.Vehicles,
		arg.UpdatedAt,
		arg.ID,
	)
	if err := requireRow(result, err); err != nil {
		return User{}, err
	}
	return q.GetUserByID(ctx, arg.ID)
}

const updateUserAvatar = `-- name: UpdateUserAvatar :exec
UPDATE users SET avatar = ?, updated_at = ? WHERE id = ?`

func (q *Queries) UpdateUserAvatar(ctx context.Context, avatar string, updatedAt time.Time, id string) error {
	_, err := q.db.ExecContext(ctx, updateUserAvatar, avatar, updatedAt, id)
	return err
}

const updateUserPassword = `-- name: UpdateUserPassword :exec
UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`

func (q *Queries) UpdateUserPassword(ctx context.Context, passwordHash string, updatedAt time.Time, id string) error {
	_, err := q.db.ExecContext(ctx, updateUserPassword, passwordHash, updatedAt, id)
	return err
}

const markUserEmailVerified = `-- name: MarkUserEmailVerified :exec
UPDATE users SET email_verified = 1, updated_at = ? WHERE id = ?`

func (q *Queries) MarkUserEmailVerified(ctx context.Context, updatedAt time.Time, id string) error {
	_, err := q.db.ExecContext(ctx, markUserEmailVerified, updatedAt, id)
	return err
}

const updateUserMembership = `-- name: UpdateUserMembership :exec
UPDATE users SET membership_level = ?, updated_at = ? WHERE id = ?`

func (q *Queries) UpdateUserMembership(ctx context.Context, level string, updatedAt time.Time, id string) (User, error) {
	result, err := q.db.ExecContext(ctx, updateUserMembership, level, updatedAt, id)
	if err := requireRow(result, err); err != nil {
		return User{}, err
	}
	return q.GetUserByID(ctx, id)
}

const updateUserPreferences = `-- name: UpdateUserPreferences :exec
UPDATE users SET preferences = ?, updated_at = ? WHERE id = ?`

func (q *Queries) UpdateUserPreferences(ctx context.Context, preferences string, updatedAt time.Time, id string) error {
	_, err := q.db.ExecContext(ctx, updateUserPreferences, preferences, updatedAt, id)
	return err
}

const deleteUser = `-- name: DeleteUser :execrows
DELETE FROM users WHERE id = ?`

func (q *Queries) DeleteUser(ctx context.Context, id string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteUser, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const createUserToken = `-- name: CreateUserToken :exec
INSERT INTO user_tokens (token_hash, user_id, purpose, expires_at, created_at)
VALUES (?, ?, ?, ?, ?)`

type CreateUserTokenParams struct {
	TokenHash string
	UserID    string
	Purpose   string
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (q *Queries) CreateUserToken(ctx context.Context, arg CreateUserTokenParams) error {
	_, err := q.db.ExecContext(ctx, createUserToken,
		arg.TokenHash,
		arg.UserID,
		arg.Purpose,
		arg.ExpiresAt,
		arg.CreatedAt,
	)
	return err
}

const getUserToken = `-- name: GetUserToken :one
SELECT token_hash, user_id, purpose, expires_at, created_at
FROM user_tokens
WHERE token_hash = ? AND purpose = ?`

func (q *Queries) GetUserToken(ctx context.Context, tokenHash, purpose string) (UserToken, error) {
	row := q.db.QueryRowContext(ctx, getUserToken, tokenHash, purpose)
	var i UserToken
	err := row.Scan(
		&i.TokenHash,
		&i.UserID,
		&i.Purpose,
		&i.ExpiresAt,
		&i.CreatedAt,
	)
	return i, err
}

const deleteUserTokens = `-- name: DeleteUserTokens :exec
DELETE FROM user_tokens WHERE user_id = ? AND purpose = ?`

func (q *Queries) DeleteUserTokens(ctx context.Context, userID, purpose string) error {
	_, err := q.db.ExecContext(ctx, deleteUserTokens, userID, purpose)
	return err
}

const deleteExpiredUserTokens = `-- name: DeleteExpiredUserTokens :execrows
DELETE FROM user_tokens WHERE expires_at <= ?`

func (q *Queries) DeleteExpiredUserTokens(ctx context.Context, now time.Time) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteExpiredUserTokens, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const createContactMessage = `-- name: CreateContactMessage :exec
INSERT INTO contact_messages (id, name, email, subject, message, created_at)
VALUES (?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateContactMessage(ctx context.Context, arg ContactMessage) error {
	_, err := q.db.ExecContext(ctx, createContactMessage,
		arg.ID,
		arg.Name,
		arg.Email,
		arg.Subject,
		arg.Message,
		arg.CreatedAt,
	)
	return err
}
