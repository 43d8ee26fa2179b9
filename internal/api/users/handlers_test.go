package users

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/codr1/ChargeEase/internal/api/apiutil"
	"github.com/codr1/ChargeEase/internal/api/authz"
	"github.com/codr1/ChargeEase/internal/cache"
	"github.com/codr1/ChargeEase/internal/config"
	"github.com/codr1/ChargeEase/internal/db"
	dbgen "github.com/codr1/ChargeEase/internal/db/generated"
	"github.com/codr1/ChargeEase/internal/models"
	"github.com/codr1/ChargeEase/internal/testutil"
)

const (
	testUserID   = "user-ada"
	downtownSF   = "9b2f6c1e-0d6a-4d0e-9a5e-1f0c2b7a1001"
	pngSignature = "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00"
	defaultPrefs = `{"units":"imperial","language":"en","notifications":{"email":true,"push":true,"sms":false}}`
)

// Tests cannot use t.Parallel() due to shared package state.
func setupUsersTest(t *testing.T) *db.DB {
	t.Helper()

	testDB := testutil.NewTestDB(t)

	prevDB, prevQueries, prevCache, prevUploads := database, queries, stationCache, uploadsDir
	t.Cleanup(func() {
		database, queries, stationCache, uploadsDir = prevDB, prevQueries, prevCache, prevUploads
	})

	cfg := config.Default()
	cfg.App.UploadsDir = t.TempDir()
	InitHandlers(testDB, cache.NewStations(testDB.Queries), cfg)

	now := db.Now()
	if _, err := testDB.Exec(
		`INSERT INTO users (id, email, name, phone, password_hash, preferences, vehicles, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		testUserID, "ada@example.com", "Ada Driver", "+16502530000", "hash", defaultPrefs, "[]", now, now,
	); err != nil {
		t.Fatalf("insert user: %v", err)
	}
	return testDB
}

func serve(handler apiutil.HandlerFunc, req *http.Request, authed bool) *httptest.ResponseRecorder {
	if authed {
		req = req.WithContext(authz.ContextWithUser(req.Context(), &authz.AuthUser{ID: testUserID}))
	}
	rec := httptest.NewRecorder()
	apiutil.Handle(handler).ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method string, body string) *http.Request {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (%s)", err, rec.Body.String())
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		t.Fatalf("decode data: %v (%s)", err, env.Data)
	}
}

func TestGetProfileRequiresAuth(t *testing.T) {
	setupUsersTest(t)

	rec := serve(HandleGetProfile, httptest.NewRequest(http.MethodGet, "/", nil), false)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	rec = serve(HandleGetProfile, httptest.NewRequest(http.MethodGet, "/", nil), true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var user models.User
	decodeData(t, rec, &user)
	if user.Email != "ada@example.com" || !user.Preferences.Notifications.Email {
		t.Fatalf("unexpected profile: %+v", user)
	}
}

func TestUpdateProfilePartial(t *testing.T) {
	setupUsersTest(t)

	body := `{"name":"Ada Lovelace","vehicles":[{"make":"Tesla","model":"Model 3","year":2023,"batteryCapacity":75,"connectorTypes":["Tesla","CCS"],"estimatedRange":310}]}`
	rec := serve(HandleUpdateProfile, jsonRequest(http.MethodPut, body), true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var user models.User
	decodeData(t, rec, &user)
	if user.Name != "Ada Lovelace" {
		t.Fatalf("expected updated name, got %q", user.Name)
	}
	if user.Phone != "+16502530000" {
		t.Fatalf("expected phone to be kept, got %q", user.Phone)
	}
	if len(user.Vehicles) != 1 || user.Vehicles[0].ID == "" || !user.Vehicles[0].IsDefault {
		t.Fatalf("expected one default vehicle with an id, got %+v", user.Vehicles)
	}
}

func TestUpdateProfileValidation(t *testing.T) {
	setupUsersTest(t)

	tests := []struct {
		name string
		body string
	}{
		{"short name", `{"name":"A"}`},
		{"bad phone", `{"phone":"12"}`},
		{"bad connector", `{"vehicles":[{"make":"VW","model":"ID.4","year":2022,"connectorTypes":["Plug"]}]}`},
		{"bad units", `{"preferences":{"units":"furlongs"}}`},
		{"unknown field", `{"email":"new@example.com"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(HandleUpdateProfile, jsonRequest(http.MethodPut, tt.body), true)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func multipartRequest(t *testing.T, field, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/users/avatar", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestUploadAvatar(t *testing.T) {
	setupUsersTest(t)

	rec := serve(HandleUploadAvatar, multipartRequest(t, "avatar", "me.png", []byte(pngSignature)), true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		URL string `json:"url"`
	}
	decodeData(t, rec, &body)
	if !strings.HasPrefix(body.URL, "/uploads/avatars/") || !strings.HasSuffix(body.URL, ".png") {
		t.Fatalf("unexpected url %q", body.URL)
	}
	stored := filepath.Join(uploadsDir, strings.TrimPrefix(body.URL, "/uploads/"))
	if _, err := os.Stat(stored); err != nil {
		t.Fatalf("expected stored file: %v", err)
	}

	row, err := queries.GetUserByID(context.Background(), testUserID)
	if err != nil {
		t.Fatalf("load user: %v", err)
	}
	if row.Avatar.String != body.URL {
		t.Fatalf("expected avatar %q, got %q", body.URL, row.Avatar.String)
	}
}

func TestUploadAvatarRejectsNonImage(t *testing.T) {
	setupUsersTest(t)

	rec := serve(HandleUploadAvatar, multipartRequest(t, "avatar", "me.png", []byte("just some text")), true)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	rec = serve(HandleUploadAvatar, multipartRequest(t, "photo", "me.png", []byte(pngSignature)), true)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing avatar field, got %d", rec.Code)
	}
}

func TestUpdateMembership(t *testing.T) {
	setupUsersTest(t)

	rec := serve(HandleUpdateMembership, jsonRequest(http.MethodPut, `{"level":"Platinum"}`), true)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	rec = serve(HandleUpdateMembership, jsonRequest(http.MethodPut, `{"level":"Premium"}`), true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var user models.User
	decodeData(t, rec, &user)
	if user.MembershipLevel != models.MembershipPremium {
		t.Fatalf("expected Premium, got %q", user.MembershipLevel)
	}
}

func TestFavoritesResolveStations(t *testing.T) {
	setupUsersTest(t)

	if err := queries.AddFavorite(context.Background(), testUserID, downtownSF, db.Now()); err != nil {
		t.Fatalf("add favorite: %v", err)
	}

	rec := serve(HandleFavorites, httptest.NewRequest(http.MethodGet, "/", nil), true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var stations []models.ChargingStation
	decodeData(t, rec, &stations)
	if len(stations) != 1 || stations[0].ID != downtownSF {
		t.Fatalf("expected Downtown SF favorite, got %+v", stations)
	}
}

func TestDeleteProfile(t *testing.T) {
	setupUsersTest(t)

	rec := serve(HandleDeleteProfile, httptest.NewRequest(http.MethodDelete, "/", nil), true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if _, err := queries.GetUserByID(context.Background(), testUserID); err != sql.ErrNoRows {
		t.Fatalf("expected user to be gone, got %v", err)
	}

	rec = serve(HandleDeleteProfile, httptest.NewRequest(http.MethodDelete, "/", nil), true)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", rec.Code)
	}
}

func TestPlansArePublic(t *testing.T) {
	rec := serve(HandlePlans, httptest.NewRequest(http.MethodGet, "/", nil), false)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var plans []models.SubscriptionPlan
	decodeData(t, rec, &plans)
	if len(plans) != 3 || plans[1].Price != 9.99 {
		t.Fatalf("unexpected plans: %+v", plans)
	}
}

func TestSummarize(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	completed := []dbgen.Booking{
		{StartTime: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), TotalCost: 34.6, EnergyDelivered: sql.NullFloat64{Float64: 120, Valid: true}},
		{StartTime: time.Date(2026, 1, 20, 9, 0, 0, 0, time.UTC), TotalCost: 10.25, EnergyDelivered: sql.NullFloat64{Float64: 30.5, Valid: true}},
		// Outside the twelve-month window but still in the totals.
		{StartTime: time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC), TotalCost: 5, EnergyDelivered: sql.NullFloat64{Float64: 10, Valid: true}},
	}

	got := Summarize(completed, now)

	if got.TotalSessions != 3 {
		t.Fatalf("expected 3 sessions, got %d", got.TotalSessions)
	}
	if got.TotalEnergyConsumed != 160.5 {
		t.Fatalf("expected 160.5 kWh, got %v", got.TotalEnergyConsumed)
	}
	if got.TotalCost != 49.85 {
		t.Fatalf("expected 49.85, got %v", got.TotalCost)
	}
	if got.CarbonFootprintSaved != 64.2 {
		t.Fatalf("expected 64.2 kg, got %v", got.CarbonFootprintSaved)
	}
	if len(got.MonthlyUsage) != 12 {
		t.Fatalf("expected 12 months, got %d", len(got.MonthlyUsage))
	}
	if first, last := got.MonthlyUsage[0], got.MonthlyUsage[11]; first.Month != "2025-04" || last.Month != "2026-03" {
		t.Fatalf("unexpected month range %s..%s", first.Month, last.Month)
	}
	if march := got.MonthlyUsage[11]; march.Sessions != 1 || march.EnergyConsumed != 120 || march.Cost != 34.6 {
		t.Fatalf("unexpected March usage: %+v", march)
	}
	if jan := got.MonthlyUsage[9]; jan.Month != "2026-01" || jan.Sessions != 1 {
		t.Fatalf("unexpected January usage: %+v", jan)
	}
}
