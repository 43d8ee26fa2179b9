package auth

import (
	"errors"
	"testing"
	"time"
)

// Tests cannot use t.Parallel() due to shared package state.
func resetSessions(t *testing.T) {
	t.Helper()
	sessionMu.Lock()
	sessionStore = make(map[string]sessionRecord)
	refreshIndex = make(map[string]string)
	sessionMu.Unlock()
	t.Cleanup(func() {
		sessionMu.Lock()
		sessionStore = make(map[string]sessionRecord)
		refreshIndex = make(map[string]string)
		sessionMu.Unlock()
	})
}

func TestRotateRefreshTokenInvalidatesOldToken(t *testing.T) {
	resetSessions(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	sessionID, refresh, err := createSession("user-1", accessTokenTTL, now)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	rotatedID, session, next, err := rotateRefreshToken(refresh, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if rotatedID != sessionID {
		t.Fatalf("expected session %q to survive rotation, got %q", sessionID, rotatedID)
	}
	if session.UserID != "user-1" {
		t.Fatalf("expected user-1, got %q", session.UserID)
	}
	if next == refresh {
		t.Fatal("expected a new refresh token")
	}

	if _, _, _, err := rotateRefreshToken(refresh, now.Add(2*time.Hour)); !errors.Is(err, errSessionNotFound) {
		t.Fatalf("expected old refresh token to be rejected, got %v", err)
	}
	if _, _, _, err := rotateRefreshToken(next, now.Add(2*time.Hour)); err != nil {
		t.Fatalf("expected rotated token to work: %v", err)
	}
}

func TestRefreshTokenExpires(t *testing.T) {
	resetSessions(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	sessionID, refresh, err := createSession("user-1", accessTokenTTL, now)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	later := now.Add(refreshTokenTTL + time.Second)
	if _, _, _, err := rotateRefreshToken(refresh, later); !errors.Is(err, errSessionNotFound) {
		t.Fatalf("expected expired refresh token to fail, got %v", err)
	}
	if _, ok := getSession(sessionID, later); ok {
		t.Fatal("expected expired session to be gone")
	}
}

func TestEndUserSessions(t *testing.T) {
	resetSessions(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	first, _, _ := createSession("user-1", accessTokenTTL, now)
	second, _, _ := createSession("user-1", accessTokenTTL, now)
	other, _, _ := createSession("user-2", accessTokenTTL, now)

	EndUserSessions("user-1")

	for _, id := range []string{first, second} {
		if _, ok := getSession(id, now); ok {
			t.Fatalf("expected session %q to be ended", id)
		}
	}
	if _, ok := getSession(other, now); !ok {
		t.Fatal("expected other user's session to survive")
	}
}

func TestPruneExpiredSessions(t *testing.T) {
	resetSessions(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	old, oldRefresh, _ := createSession("user-1", accessTokenTTL, now.Add(-refreshTokenTTL-time.Minute))
	fresh, _, _ := createSession("user-1", accessTokenTTL, now)

	pruneExpiredSessions(now)

	sessionMu.RLock()
	_, oldKept := sessionStore[old]
	_, freshKept := sessionStore[fresh]
	_, indexKept := refreshIndex[hashToken(oldRefresh)]
	sessionMu.RUnlock()

	if oldKept || indexKept {
		t.Fatal("expected expired session and its refresh index to be pruned")
	}
	if !freshKept {
		t.Fatal("expected live session to be kept")
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	secret := []byte("test-secret")
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	token, expiresAt, err := issueAccessToken(secret, "user-1", "session-1", now, accessTokenTTL)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !expiresAt.Equal(now.Add(accessTokenTTL)) {
		t.Fatalf("unexpected expiry %v", expiresAt)
	}

	claims, err := parseAccessToken(secret, token, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "user-1" || claims.ID != "session-1" {
		t.Fatalf("unexpected claims: sub=%q jti=%q", claims.Subject, claims.ID)
	}

	if _, err := parseAccessToken(secret, token, now.Add(accessTokenTTL+time.Minute)); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token to fail, got %v", err)
	}
	if _, err := parseAccessToken([]byte("other-secret"), token, now); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected wrong secret to fail, got %v", err)
	}
}
