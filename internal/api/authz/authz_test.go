package authz

import (
	"context"
	"errors"
	"testing"
)

func TestRequireUserUnauthenticated(t *testing.T) {
	if _, err := RequireUser(context.Background()); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestRequireUserEmptyID(t *testing.T) {
	ctx := ContextWithUser(context.Background(), &AuthUser{})
	if _, err := RequireUser(ctx); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestRequireUserAllowed(t *testing.T) {
	ctx := ContextWithUser(context.Background(), &AuthUser{ID: "u1", SessionID: "s1"})
	user, err := RequireUser(ctx)
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if user.ID != "u1" {
		t.Fatalf("expected u1, got %q", user.ID)
	}
}

func TestRequireOwner(t *testing.T) {
	ctx := ContextWithUser(context.Background(), &AuthUser{ID: "u1"})

	if err := RequireOwner(ctx, "u1"); err != nil {
		t.Fatalf("expected owner to pass, got %v", err)
	}
	if err := RequireOwner(ctx, "u2"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := RequireOwner(context.Background(), "u1"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestUserFromContextNil(t *testing.T) {
	if user := UserFromContext(nil); user != nil {
		t.Fatalf("expected nil user, got %+v", user)
	}
}
