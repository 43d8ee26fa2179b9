// Package ratelimit throttles login attempts and password-reset emails.
package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Clock interface for testing time-dependent behavior.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type Config struct {
	// Password reset emails
	ResetCooldown     time.Duration // Minimum time between sends to one address (default: 60s)
	ResetMaxPerHour   int           // Max sends per address per hour (default: 5)
	ResetMaxIPPerHour int           // Max sends per IP per hour (default: 20)

	// Login attempts
	LoginMaxFailures  int           // Consecutive failures before lockout (default: 5)
	LoginLockout      time.Duration // Lockout duration (default: 5m)
	LoginMaxIPPerHour int           // Max failed logins per IP per hour (default: 50)

	// Clock for testing (nil uses real time)
	Clock Clock
}

func DefaultConfig() *Config {
	return &Config{
		ResetCooldown:     60 * time.Second,
		ResetMaxPerHour:   5,
		ResetMaxIPPerHour: 20,
		LoginMaxFailures:  5,
		LoginLockout:      5 * time.Minute,
		LoginMaxIPPerHour: 50,
	}
}

type LimitResult struct {
	Allowed    bool
	RetryAfter time.Duration
	Reason     string // For logging
}

type entry struct {
	count    int
	firstAt  time.Time // First request in window
	lastAt   time.Time // Most recent request (for cooldown)
	lockedAt time.Time // When lockout started (zero if not locked)
}

// Limiter tracks per-account and per-IP counters in memory.
type Limiter struct {
	config *Config
	clock  Clock
	mu     sync.RWMutex
	// Keyed by hash of email or IP
	resetByID map[string]*entry
	resetByIP map[string]*entry
	loginByID map[string]*entry
	loginByIP map[string]*entry

	cleanupCtx    context.Context
	cleanupCancel context.CancelFunc
	cleanupOnce   sync.Once
	cleanupWg     sync.WaitGroup
}

func New(cfg *Config) *Limiter {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = realClock{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Limiter{
		config:        cfg,
		clock:         clock,
		resetByID:     make(map[string]*entry),
		resetByIP:     make(map[string]*entry),
		loginByID:     make(map[string]*entry),
		loginByIP:     make(map[string]*entry),
		cleanupCtx:    ctx,
		cleanupCancel: cancel,
	}
}

// Close stops the cleanup goroutine.
func (l *Limiter) Close() {
	l.cleanupCancel()
	l.cleanupWg.Wait()
}

// CheckResetSend reports whether a password-reset email may be sent.
// It does not record anything; call RecordResetSend after sending.
func (l *Limiter) CheckResetSend(email, ip string) LimitResult {
	l.startCleanup()
	now := l.clock.Now()
	idKey := l.hashKey("reset:id:", normalizeIdentifier(email))
	ipKey := l.hashKey("reset:ip:", ip)

	l.mu.RLock()
	defer l.mu.RUnlock()

	if e := l.resetByID[idKey]; e != nil {
		elapsed := now.Sub(e.lastAt)
		if elapsed < l.config.ResetCooldown {
			return LimitResult{
				Allowed:    false,
				RetryAfter: l.config.ResetCooldown - elapsed,
				Reason:     "cooldown",
			}
		}

		if now.Sub(e.firstAt) < time.Hour && e.count >= l.config.ResetMaxPerHour {
			return LimitResult{
				Allowed:    false,
				RetryAfter: time.Hour - now.Sub(e.firstAt),
				Reason:     "hourly_limit",
			}
		}
	}

	if e := l.resetByIP[ipKey]; e != nil {
		if now.Sub(e.firstAt) < time.Hour && e.count >= l.config.ResetMaxIPPerHour {
			return LimitResult{
				Allowed:    false,
				RetryAfter: time.Hour - now.Sub(e.firstAt),
				Reason:     "ip_hourly_limit",
			}
		}
	}

	return LimitResult{Allowed: true}
}

func (l *Limiter) RecordResetSend(email, ip string) {
	now := l.clock.Now()
	idKey := l.hashKey("reset:id:", normalizeIdentifier(email))
	ipKey := l.hashKey("reset:ip:", ip)

	l.mu.Lock()
	defer l.mu.Unlock()

	bumpHourly(l.resetByID, idKey, now)
	bumpHourly(l.resetByIP, ipKey, now)
}

// CheckLogin reports whether a login attempt for email may proceed.
func (l *Limiter) CheckLogin(email, ip string) LimitResult {
	l.startCleanup()
	now := l.clock.Now()
	idKey := l.hashKey("login:id:", normalizeIdentifier(email))
	ipKey := l.hashKey("login:ip:", ip)

	l.mu.RLock()
	defer l.mu.RUnlock()

	if e := l.loginByID[idKey]; e != nil && !e.lockedAt.IsZero() {
		elapsed := now.Sub(e.lockedAt)
		if elapsed < l.config.LoginLockout {
			return LimitResult{
				Allowed:    false,
				RetryAfter: l.config.LoginLockout - elapsed,
				Reason:     "lockout",
			}
		}
		// Lockout expired; the next failure starts a fresh count.
	}

	if e := l.loginByIP[ipKey]; e != nil {
		if now.Sub(e.firstAt) < time.Hour && e.count >= l.config.LoginMaxIPPerHour {
			return LimitResult{
				Allowed:    false,
				RetryAfter: time.Hour - now.Sub(e.firstAt),
				Reason:     "ip_hourly_limit",
			}
		}
	}

	return LimitResult{Allowed: true}
}

// RecordLoginFailure counts a failed login and reports whether it started a lockout.
func (l *Limiter) RecordLoginFailure(email, ip string) (lockedOut bool) {
	now := l.clock.Now()
	idKey := l.hashKey("login:id:", normalizeIdentifier(email))
	ipKey := l.hashKey("login:ip:", ip)

	l.mu.Lock()
	defer l.mu.Unlock()

	e := l.loginByID[idKey]
	switch {
	case e == nil:
		e = &entry{count: 1, firstAt: now, lastAt: now}
		l.loginByID[idKey] = e
	case !e.lockedAt.IsZero() && now.Sub(e.lockedAt) >= l.config.LoginLockout:
		e = &entry{count: 1, firstAt: now, lastAt: now}
		l.loginByID[idKey] = e
	default:
		e.count++
		e.lastAt = now
	}
	if e.count >= l.config.LoginMaxFailures && e.lockedAt.IsZero() {
		e.lockedAt = now
		lockedOut = true
	}

	bumpHourly(l.loginByIP, ipKey, now)
	return lockedOut
}

// ResetLogin clears the failure counter after a successful login.
func (l *Limiter) ResetLogin(email string) {
	idKey := l.hashKey("login:id:", normalizeIdentifier(email))
	l.mu.Lock()
	delete(l.loginByID, idKey)
	l.mu.Unlock()
}

func bumpHourly(entries map[string]*entry, key string, now time.Time) {
	e := entries[key]
	if e == nil || now.Sub(e.firstAt) >= time.Hour {
		entries[key] = &entry{count: 1, firstAt: now, lastAt: now}
		return
	}
	e.count++
	e.lastAt = now
}

func (l *Limiter) hashKey(prefix, value string) string {
	hash := sha256.Sum256([]byte(value))
	return prefix + hex.EncodeToString(hash[:8])
}

// normalizeIdentifier lowercases the identifier to prevent case-based bypass.
func normalizeIdentifier(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

func (l *Limiter) startCleanup() {
	l.cleanupOnce.Do(func() {
		l.cleanupWg.Add(1)
		go func() {
			defer l.cleanupWg.Done()
			ticker := time.NewTicker(5 * time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-l.cleanupCtx.Done():
					return
				case <-ticker.C:
					l.cleanup()
				}
			}
		}()
	})
}

func (l *Limiter) cleanup() {
	now := l.clock.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, entries := range []map[string]*entry{l.resetByID, l.resetByIP, l.loginByIP} {
		for k, e := range entries {
			if now.Sub(e.lastAt) > time.Hour {
				delete(entries, k)
			}
		}
	}

	maxAge := l.config.LoginLockout + time.Hour
	for k, e := range l.loginByID {
		if now.Sub(e.lastAt) > maxAge {
			delete(l.loginByID, k)
		}
	}
}

// GetClientIP extracts the client IP from a request.
// When trustProxy is true, uses the rightmost IP from X-Forwarded-For (added by your proxy).
// When trustProxy is false, ignores X-Forwarded-For entirely (prevents spoofing).
func GetClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			// Use RIGHTMOST IP - this is the one your proxy added, not user-supplied
			parts := strings.Split(xff, ",")
			for i := len(parts) - 1; i >= 0; i-- {
				ip := strings.TrimSpace(parts[i])
				// Skip private/internal IPs to find the real client
				if ip != "" && !isPrivateIP(ip) {
					return ip
				}
			}
			// All IPs are private, use the last one
			return strings.TrimSpace(parts[len(parts)-1])
		}

		// Check X-Real-IP (set by nginx)
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}

	// Fall back to RemoteAddr (direct connection or untrusted proxy)
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr might not have a port (e.g., Unix socket or malformed)
		// Try to parse as IP directly, otherwise return as-is
		if parsed := net.ParseIP(r.RemoteAddr); parsed != nil {
			return r.RemoteAddr
		}
		// Last resort: strip anything after last colon that looks like a port
		if idx := strings.LastIndex(r.RemoteAddr, ":"); idx != -1 {
			candidate := r.RemoteAddr[:idx]
			if net.ParseIP(candidate) != nil {
				return candidate
			}
		}
		return r.RemoteAddr
	}
	return ip
}

// privateNetworks holds parsed CIDR ranges for private/reserved IPs.
// Parsed once at package init for efficiency.
var privateNetworks []*net.IPNet

func init() {
	privateRanges := []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"127.0.0.0/8",
		"::1/128",
		"fc00::/7",
		"fe80::/10", // Link-local
	}
	for _, cidr := range privateRanges {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic("invalid private CIDR: " + cidr)
		}
		privateNetworks = append(privateNetworks, network)
	}
}

// isPrivateIP checks if an IP is in a private/reserved range.
// Handles both IPv4 and IPv4-mapped IPv6 addresses (e.g., ::ffff:192.168.1.1).
func isPrivateIP(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}

	// Convert IPv4-mapped IPv6 to IPv4 for consistent matching
	// e.g., ::ffff:192.168.1.1 -> 192.168.1.1
	if ipv4 := ip.To4(); ipv4 != nil {
		ip = ipv4
	}

	for _, network := range privateNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// SanitizeIdentifier masks an identifier for logging.
func SanitizeIdentifier(identifier string) string {
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	if strings.Contains(identifier, "@") {
		parts := strings.Split(identifier, "@")
		if len(parts[0]) > 2 {
			return parts[0][:2] + "***@" + parts[1]
		}
		return "***@" + parts[1]
	}
	return "***"
}

// LogRateLimitExceeded logs a rate limit event with sanitized identifier.
func LogRateLimitExceeded(limitType, identifier, ip, reason string) {
	log.Warn().
		Str("event", "rate_limit_exceeded").
		Str("type", limitType).
		Str("identifier", SanitizeIdentifier(identifier)).
		Str("ip", ip).
		Str("reason", reason).
		Msg("Rate limit exceeded")
}
