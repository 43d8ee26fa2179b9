package auth

import (
	"errors"
	"sync"
	"time"
)

const (
	accessTokenTTL         = 8 * time.Hour
	rememberMeTTL          = 30 * 24 * time.Hour
	refreshTokenTTL        = 30 * 24 * time.Hour
	sessionTokenBytes      = 32
	sessionCleanupInterval = 15 * time.Minute
)

var errSessionNotFound = errors.New("session not found")

type sessionRecord struct {
	UserID      string
	RefreshHash string
	ExpiresAt   time.Time
	// AccessTTL is the access token lifetime chosen at login, reused on refresh.
	AccessTTL   time.Duration
}

var (
	sessionMu sync.RWMutex
	// Sessions live in memory; a restart signs everyone out.
	sessionStore       = make(map[string]sessionRecord)
	refreshIndex       = make(map[string]string)
	sessionCleanupOnce sync.Once
)

// createSession registers a session and returns its id and refresh token.
func createSession(userID string, accessTTL time.Duration, now time.Time) (string, string, error) {
	startSessionCleanup()

	sessionID, err := newOpaqueToken()
	if err != nil {
		return "", "", err
	}
	refresh, err := newOpaqueToken()
	if err != nil {
		return "", "", err
	}

	refreshHash := hashToken(refresh)
	sessionMu.Lock()
	sessionStore[sessionID] = sessionRecord{
		UserID:      userID,
		RefreshHash: refreshHash,
		ExpiresAt:   now.Add(refreshTokenTTL),
		AccessTTL:   accessTTL,
	}
	refreshIndex[refreshHash] = sessionID
	sessionMu.Unlock()

	return sessionID, refresh, nil
}

// rotateRefreshToken swaps a refresh token for a new one on the same
// session. The old token stops working.
func rotateRefreshToken(refresh string, now time.Time) (string, sessionRecord, string, error) {
	oldHash := hashToken(refresh)
	next, err := newOpaqueToken()
	if err != nil {
		return "", sessionRecord{}, "", err
	}
	nextHash := hashToken(next)

	sessionMu.Lock()
	defer sessionMu.Unlock()

	sessionID, ok := refreshIndex[oldHash]
	if !ok {
		return "", sessionRecord{}, "", errSessionNotFound
	}
	session, ok := sessionStore[sessionID]
	if !ok || !session.ExpiresAt.After(now) {
		delete(refreshIndex, oldHash)
		delete(sessionStore, sessionID)
		return "", sessionRecord{}, "", errSessionNotFound
	}

	delete(refreshIndex, oldHash)
	session.RefreshHash = nextHash
	session.ExpiresAt = now.Add(refreshTokenTTL)
	sessionStore[sessionID] = session
	refreshIndex[nextHash] = sessionID

	return sessionID, session, next, nil
}

func getSession(sessionID string, now time.Time) (sessionRecord, bool) {
	sessionMu.RLock()
	session, ok := sessionStore[sessionID]
	sessionMu.RUnlock()
	if !ok {
		return sessionRecord{}, false
	}

	if !session.ExpiresAt.After(now) {
		deleteSession(sessionID)
		return sessionRecord{}, false
	}

	return session, true
}

func deleteSession(sessionID string) {
	sessionMu.Lock()
	if session, ok := sessionStore[sessionID]; ok {
		delete(refreshIndex, session.RefreshHash)
		delete(sessionStore, sessionID)
	}
	sessionMu.Unlock()
}

// EndUserSessions signs the user out everywhere.
func EndUserSessions(userID string) {
	sessionMu.Lock()
	for id, session := range sessionStore {
		if session.UserID == userID {
			delete(refreshIndex, session.RefreshHash)
			delete(sessionStore, id)
		}
	}
	sessionMu.Unlock()
}

func startSessionCleanup() {
	sessionCleanupOnce.Do(func() {
		// Lazy-start cleanup only when sessions are first used.
		go func() {
			ticker := time.NewTicker(sessionCleanupInterval)
			defer ticker.Stop()
			for range ticker.C {
				pruneExpiredSessions(time.Now())
			}
		}()
	})
}

func pruneExpiredSessions(now time.Time) {
	sessionMu.Lock()
	for id, session := range sessionStore {
		if !session.ExpiresAt.After(now) {
			delete(refreshIndex, session.RefreshHash)
			delete(sessionStore, id)
		}
	}
	sessionMu.Unlock()
}
