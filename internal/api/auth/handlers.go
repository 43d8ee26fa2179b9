package auth

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/codr1/ChargeEase/internal/api/apiutil"
	"github.com/codr1/ChargeEase/internal/api/authz"
	"github.com/codr1/ChargeEase/internal/config"
	dbgen "github.com/codr1/ChargeEase/internal/db/generated"
	"github.com/codr1/ChargeEase/internal/email"
	"github.com/codr1/ChargeEase/internal/models"
	"github.com/codr1/ChargeEase/internal/ratelimit"
)

const (
	purposePasswordReset = "password_reset"
	purposeVerifyEmail   = "email_verify"

	passwordResetTTL = time.Hour
	verifyEmailTTL   = 24 * time.Hour

	authRequestsPerMinute = 30
	authRequestBurst      = 10
)

var (
	queries     *dbgen.Queries
	appConfig   *config.Config
	emailSender email.EmailSender
	limiter     *ratelimit.Limiter
	ipLimiter   *ratelimit.IPLimiter
	secretKey   []byte

	nowFunc = time.Now
)

// InitHandlers wires the auth handlers. A missing secret outside production
// gets a random per-process key, so tokens do not survive a restart.
func InitHandlers(q *dbgen.Queries, cfg *config.Config, sender email.EmailSender) {
	queries = q
	appConfig = cfg
	emailSender = sender
	limiter = ratelimit.New(nil)
	ipLimiter = ratelimit.NewIPLimiter(authRequestsPerMinute, authRequestBurst, nil)

	if cfg != nil && cfg.App.SecretKey != "" {
		secretKey = []byte(cfg.App.SecretKey)
		return
	}
	secretKey = make([]byte, 32)
	if _, err := rand.Read(secretKey); err != nil {
		panic(fmt.Sprintf("generate auth secret: %v", err))
	}
	log.Warn().Msg("APP_SECRET_KEY not set; using an ephemeral signing key")
}

// IPLimiter exposes the per-IP limiter for periodic pruning.
func IPLimiter() *ratelimit.IPLimiter {
	return ipLimiter
}

// Close stops the limiter's background cleanup.
func Close() {
	if limiter != nil {
		limiter.Close()
	}
}

type signupRequest struct {
	Name            string `json:"name" validate:"required,min=2,max=50"`
	Email           string `json:"email" validate:"required"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
	Phone           string `json:"phone"`
	AgreeToTerms    bool   `json:"agreeToTerms"`
}

type loginRequest struct {
	Email      string `json:"email" validate:"required"`
	Password   string `json:"password" validate:"required"`
	RememberMe bool   `json:"rememberMe"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required"`
}

type resetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type verifyEmailRequest struct {
	Token string `json:"token" validate:"required"`
}

// POST /auth/signup
func HandleSignup(w http.ResponseWriter, r *http.Request) error {
	if err := throttle(r); err != nil {
		return err
	}

	var req signupRequest
	if err := apiutil.Decode(r, &req); err != nil {
		return err
	}

	emailAddr := NormalizeEmail(req.Email)
	if !ValidEmail(emailAddr) {
		return apiutil.BadRequest("email must be a valid email address")
	}
	if err := ValidatePassword(req.Password); err != nil {
		return apiutil.BadRequest(err.Error())
	}
	if req.Password != req.ConfirmPassword {
		return apiutil.BadRequest("passwords do not match")
	}
	if !req.AgreeToTerms {
		return apiutil.BadRequest("you must agree to the terms and conditions")
	}
	phone, err := NormalizePhone(req.Phone)
	if err != nil {
		return apiutil.BadRequest(err.Error())
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	prefs, err := json.Marshal(models.DefaultPreferences())
	if err != nil {
		return err
	}

	now := nowFunc().UTC().Truncate(time.Second)
	row, err := queries.CreateUser(r.Context(), dbgen.CreateUserParams{
		ID:           uuid.NewString(),
		Email:        emailAddr,
		Name:         strings.TrimSpace(req.Name),
		Phone:        sql.NullString{String: phone, Valid: phone != ""},
		PasswordHash: hash,
		Preferences:  string(prefs),
		Vehicles:     "[]",
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		if isUniqueViolation(err) {
			return apiutil.Conflict("an account with this email already exists", err)
		}
		return fmt.Errorf("create user: %w", err)
	}

	if err := sendVerification(r.Context(), row); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Str("user_id", row.ID).Msg("Failed to create verification token")
	}

	resp, err := issueAuthResponse(row, false)
	if err != nil {
		return err
	}
	log.Ctx(r.Context()).Info().Str("user_id", row.ID).Msg("User signed up")
	return apiutil.SuccessMessage(w, http.StatusCreated, resp, "Account created successfully")
}

// POST /auth/login
func HandleLogin(w http.ResponseWriter, r *http.Request) error {
	if err := throttle(r); err != nil {
		return err
	}

	var req loginRequest
	if err := apiutil.Decode(r, &req); err != nil {
		return err
	}
	emailAddr := NormalizeEmail(req.Email)
	ip := clientIP(r)

	if check := limiter.CheckLogin(emailAddr, ip); !check.Allowed {
		ratelimit.LogRateLimitExceeded("login", emailAddr, ip, check.Reason)
		return tooManyRequests(w, check.RetryAfter, "too many failed login attempts, please try again later")
	}

	row, err := queries.GetUserByEmail(r.Context(), emailAddr)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("load user: %w", err)
	}
	if err != nil || !VerifyPassword(row.PasswordHash, req.Password) {
		if limiter.RecordLoginFailure(emailAddr, ip) {
			log.Ctx(r.Context()).Warn().Str("email", ratelimit.SanitizeIdentifier(emailAddr)).Msg("Login locked out")
		}
		return apiutil.HandlerError{Status: http.StatusUnauthorized, Message: "Invalid email or password"}
	}
	limiter.ResetLogin(emailAddr)

	resp, err := issueAuthResponse(row, req.RememberMe)
	if err != nil {
		return err
	}
	return apiutil.SuccessMessage(w, http.StatusOK, resp, "Login successful")
}

// POST /auth/logout ends the session named by the bearer token, if any.
func HandleLogout(w http.ResponseWriter, r *http.Request) error {
	if token := bearerToken(r); token != "" {
		if claims, err := parseAccessToken(secretKey, token, nowFunc()); err == nil {
			deleteSession(claims.ID)
		}
	}
	return apiutil.SuccessMessage(w, http.StatusOK, nil, "Logged out successfully")
}

// POST /auth/refresh
func HandleRefresh(w http.ResponseWriter, r *http.Request) error {
	var req refreshRequest
	if err := apiutil.Decode(r, &req); err != nil {
		return err
	}

	now := nowFunc()
	sessionID, session, refresh, err := rotateRefreshToken(req.RefreshToken, now)
	if err != nil {
		return apiutil.HandlerError{Status: http.StatusUnauthorized, Message: "Invalid or expired refresh token", Err: err}
	}

	row, err := queries.GetUserByID(r.Context(), session.UserID)
	if err != nil {
		deleteSession(sessionID)
		if errors.Is(err, sql.ErrNoRows) {
			return apiutil.HandlerError{Status: http.StatusUnauthorized, Message: "Invalid or expired refresh token", Err: err}
		}
		return fmt.Errorf("load user: %w", err)
	}

	ttl := session.AccessTTL
	if ttl <= 0 {
		ttl = accessTokenTTL
	}
	token, _, err := issueAccessToken(secretKey, row.ID, sessionID, now, ttl)
	if err != nil {
		return err
	}
	user, err := models.NewUser(row)
	if err != nil {
		return err
	}
	return apiutil.Success(w, http.StatusOK, models.AuthResponse{User: user, Token: token, RefreshToken: refresh})
}

// POST /auth/forgot-password always answers the same way so it cannot be
// used to probe for accounts.
func HandleForgotPassword(w http.ResponseWriter, r *http.Request) error {
	if err := throttle(r); err != nil {
		return err
	}

	var req forgotPasswordRequest
	if err := apiutil.Decode(r, &req); err != nil {
		return err
	}
	emailAddr := NormalizeEmail(req.Email)
	logger := log.Ctx(r.Context())
	const message = "If an account exists for that email, a reset link has been sent"

	row, err := queries.GetUserByEmail(r.Context(), emailAddr)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logger.Error().Err(err).Msg("Failed to look up user for password reset")
		}
		return apiutil.SuccessMessage(w, http.StatusOK, nil, message)
	}

	ip := clientIP(r)
	if check := limiter.CheckResetSend(emailAddr, ip); !check.Allowed {
		ratelimit.LogRateLimitExceeded("password_reset", emailAddr, ip, check.Reason)
		return apiutil.SuccessMessage(w, http.StatusOK, nil, message)
	}

	token, err := createUserToken(r.Context(), row.ID, purposePasswordReset, passwordResetTTL)
	if err != nil {
		return err
	}
	limiter.RecordResetSend(emailAddr, ip)

	link := frontendLink("/reset-password", token)
	email.SendAsync(r.Context(), emailSender, row.Email, email.BuildPasswordResetEmail(row.Name, link), logger)
	return apiutil.SuccessMessage(w, http.StatusOK, nil, message)
}

// POST /auth/reset-password
func HandleResetPassword(w http.ResponseWriter, r *http.Request) error {
	if err := throttle(r); err != nil {
		return err
	}

	var req resetPasswordRequest
	if err := apiutil.Decode(r, &req); err != nil {
		return err
	}
	if err := ValidatePassword(req.Password); err != nil {
		return apiutil.BadRequest(err.Error())
	}

	token, err := lookupUserToken(r.Context(), req.Token, purposePasswordReset)
	if err != nil {
		return err
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	now := nowFunc().UTC().Truncate(time.Second)
	if err := queries.UpdateUserPassword(r.Context(), hash, now, token.UserID); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if err := queries.DeleteUserTokens(r.Context(), token.UserID, purposePasswordReset); err != nil {
		return fmt.Errorf("delete reset tokens: %w", err)
	}
	EndUserSessions(token.UserID)

	log.Ctx(r.Context()).Info().Str("user_id", token.UserID).Msg("Password reset")
	return apiutil.SuccessMessage(w, http.StatusOK, nil, "Password has been reset")
}

// POST /auth/verify-email
func HandleVerifyEmail(w http.ResponseWriter, r *http.Request) error {
	var req verifyEmailRequest
	if err := apiutil.Decode(r, &req); err != nil {
		return err
	}

	token, err := lookupUserToken(r.Context(), req.Token, purposeVerifyEmail)
	if err != nil {
		return err
	}

	now := nowFunc().UTC().Truncate(time.Second)
	if err := queries.MarkUserEmailVerified(r.Context(), now, token.UserID); err != nil {
		return fmt.Errorf("verify email: %w", err)
	}
	if err := queries.DeleteUserTokens(r.Context(), token.UserID, purposeVerifyEmail); err != nil {
		return fmt.Errorf("delete verification tokens: %w", err)
	}
	return apiutil.SuccessMessage(w, http.StatusOK, nil, "Email verified")
}

// UserFromRequest resolves the bearer token to a user. It returns nil
// without error when the request carries no token.
func UserFromRequest(r *http.Request) (*authz.AuthUser, error) {
	token := bearerToken(r)
	if token == "" {
		return nil, nil
	}

	claims, err := parseAccessToken(secretKey, token, nowFunc())
	if err != nil {
		return nil, err
	}
	session, ok := getSession(claims.ID, nowFunc())
	if !ok || session.UserID != claims.Subject {
		return nil, errSessionNotFound
	}

	return &authz.AuthUser{
		ID:        claims.Subject,
		SessionID: claims.ID,
	}, nil
}

func issueAuthResponse(row dbgen.User, rememberMe bool) (models.AuthResponse, error) {
	ttl := accessTokenTTL
	if rememberMe {
		ttl = rememberMeTTL
	}

	now := nowFunc()
	sessionID, refresh, err := createSession(row.ID, ttl, now)
	if err != nil {
		return models.AuthResponse{}, fmt.Errorf("create session: %w", err)
	}

	token, _, err := issueAccessToken(secretKey, row.ID, sessionID, now, ttl)
	if err != nil {
		deleteSession(sessionID)
		return models.AuthResponse{}, err
	}

	user, err := models.NewUser(row)
	if err != nil {
		deleteSession(sessionID)
		return models.AuthResponse{}, err
	}
	return models.AuthResponse{User: user, Token: token, RefreshToken: refresh}, nil
}

func sendVerification(ctx context.Context, row dbgen.User) error {
	token, err := createUserToken(ctx, row.ID, purposeVerifyEmail, verifyEmailTTL)
	if err != nil {
		return err
	}
	link := frontendLink("/verify-email", token)
	email.SendAsync(ctx, emailSender, row.Email, email.BuildVerifyEmail(row.Name, link), log.Ctx(ctx))
	return nil
}

func createUserToken(ctx context.Context, userID, purpose string, ttl time.Duration) (string, error) {
	token, err := newOpaqueToken()
	if err != nil {
		return "", err
	}
	now := nowFunc().UTC().Truncate(time.Second)
	if err := queries.DeleteUserTokens(ctx, userID, purpose); err != nil {
		return "", fmt.Errorf("clear %s tokens: %w", purpose, err)
	}
	if err := queries.CreateUserToken(ctx, dbgen.CreateUserTokenParams{
		TokenHash: hashToken(token),
		UserID:    userID,
		Purpose:   purpose,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}); err != nil {
		return "", fmt.Errorf("create %s token: %w", purpose, err)
	}
	return token, nil
}

func lookupUserToken(ctx context.Context, token, purpose string) (dbgen.UserToken, error) {
	invalid := apiutil.BadRequest("link is invalid or has expired")

	row, err := queries.GetUserToken(ctx, hashToken(token), purpose)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return dbgen.UserToken{}, invalid
		}
		return dbgen.UserToken{}, fmt.Errorf("load %s token: %w", purpose, err)
	}
	if !row.ExpiresAt.After(nowFunc()) {
		return dbgen.UserToken{}, invalid
	}
	return row, nil
}

func frontendLink(path, token string) string {
	base := ""
	if appConfig != nil {
		base = strings.TrimRight(appConfig.App.BaseURL, "/")
	}
	return base + path + "?token=" + url.QueryEscape(token)
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func clientIP(r *http.Request) string {
	return ratelimit.GetClientIP(r, appConfig != nil && appConfig.App.TrustProxy)
}

func throttle(r *http.Request) error {
	if ipLimiter == nil {
		return nil
	}
	ip := clientIP(r)
	if ok, _ := ipLimiter.Allow(ip); !ok {
		ratelimit.LogRateLimitExceeded("auth_ip", "", ip, "ip_rate")
		return apiutil.HandlerError{Status: http.StatusTooManyRequests, Message: "too many requests, please slow down"}
	}
	return nil
}

func tooManyRequests(w http.ResponseWriter, retryAfter time.Duration, message string) error {
	seconds := int(retryAfter.Round(time.Second) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	return apiutil.HandlerError{Status: http.StatusTooManyRequests, Message: message}
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
