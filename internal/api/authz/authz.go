package authz

import (
	"context"
	"errors"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
)

type AuthUser struct {
	ID              string
	Email           string
	SessionID       string
	MembershipLevel string
}

type userContextKey struct{}

func ContextWithUser(ctx context.Context, user *AuthUser) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext retrieves the AuthUser stored in ctx.
// It returns nil if ctx is nil, if no user is stored, or if the stored value has a different type.
func UserFromContext(ctx context.Context) *AuthUser {
	if ctx == nil {
		return nil
	}

	user, ok := ctx.Value(userContextKey{}).(*AuthUser)
	if !ok {
		return nil
	}

	return user
}

func RequireUser(ctx context.Context) (*AuthUser, error) {
	user := UserFromContext(ctx)
	if user == nil || user.ID == "" {
		return nil, ErrUnauthenticated
	}
	return user, nil
}

// RequireOwner allows access only to the resource's owner.
func RequireOwner(ctx context.Context, ownerID string) error {
	user, err := RequireUser(ctx)
	if err != nil {
		return err
	}
	if user.ID != ownerID {
		return ErrForbidden
	}
	return nil
}
