package reviews

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/codr1/ChargeEase/internal/api/apiutil"
	"github.com/codr1/ChargeEase/internal/api/authz"
	"github.com/codr1/ChargeEase/internal/cache"
	"github.com/codr1/ChargeEase/internal/config"
	"github.com/codr1/ChargeEase/internal/db"
	"github.com/codr1/ChargeEase/internal/models"
	"github.com/codr1/ChargeEase/internal/testutil"
)

const (
	ada          = "user-ada"
	bob          = "user-bob"
	downtownSF   = "9b2f6c1e-0d6a-4d0e-9a5e-1f0c2b7a1001"
	pngSignature = "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00"
)

// Tests cannot use t.Parallel() due to shared package state.
func setupReviewsTest(t *testing.T) *http.ServeMux {
	t.Helper()

	testDB := testutil.NewTestDB(t)
	prevDB, prevCache, prevUploads := database, stationCache, uploadsDir
	t.Cleanup(func() {
		database, stationCache, uploadsDir = prevDB, prevCache, prevUploads
	})

	cfg := config.Default()
	cfg.App.UploadsDir = t.TempDir()
	InitHandlers(testDB, cache.NewStations(testDB.Queries), cfg)

	now := db.Now()
	for _, id := range []string{ada, bob} {
		if _, err := testDB.Exec(
			`INSERT INTO users (id, email, name, password_hash, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
			id, id+"@example.com", "Driver "+id, "hash", now, now,
		); err != nil {
			t.Fatalf("insert user: %v", err)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /reviews", apiutil.Handle(HandleCreate))
	mux.HandleFunc("PUT /reviews/{id}", apiutil.Handle(HandleUpdate))
	mux.HandleFunc("DELETE /reviews/{id}", apiutil.Handle(HandleDelete))
	mux.HandleFunc("POST /reviews/{id}/helpful", apiutil.Handle(HandleHelpful))
	return mux
}

func serve(mux *http.ServeMux, req *http.Request, userID string) *httptest.ResponseRecorder {
	if userID != "" {
		req = req.WithContext(authz.ContextWithUser(req.Context(), &authz.AuthUser{ID: userID}))
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeReview(t *testing.T, rec *httptest.ResponseRecorder) models.Review {
	t.Helper()
	var env struct {
		Data models.Review `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode review: %v (%s)", err, rec.Body.String())
	}
	return env.Data
}

func createReview(t *testing.T, mux *http.ServeMux, userID string, rating int) models.Review {
	t.Helper()
	body, _ := json.Marshal(map[string]any{
		"stationId": downtownSF,
		"rating":    rating,
		"title":     "Fast and clean",
		"comment":   "Plenty of stalls and the restrooms were open.",
	})
	rec := serve(mux, jsonRequest(http.MethodPost, "/reviews", string(body)), userID)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create review: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	return decodeReview(t, rec)
}

func stationRating(t *testing.T) (float64, int) {
	t.Helper()
	station, err := stationCache.Get(context.Background(), downtownSF)
	if err != nil {
		t.Fatalf("load station: %v", err)
	}
	return station.Rating, station.ReviewCount
}

func TestCreateReview(t *testing.T) {
	mux := setupReviewsTest(t)

	review := createReview(t, mux, ada, 4)
	if review.UserName != "Driver user-ada" || review.Rating != 4 || len(review.Images) != 0 {
		t.Fatalf("unexpected review: %+v", review)
	}
	if rating, count := stationRating(t); rating != 4 || count != 1 {
		t.Fatalf("expected rating 4 from 1 review, got %v from %d", rating, count)
	}

	createReview(t, mux, bob, 5)
	if rating, count := stationRating(t); rating != 4.5 || count != 2 {
		t.Fatalf("expected rating 4.5 from 2 reviews, got %v from %d", rating, count)
	}

	rec := serve(mux, jsonRequest(http.MethodPost, "/reviews",
		`{"stationId":"`+downtownSF+`","rating":3,"title":"Again","comment":"Second try"}`), ada)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for a second review, got %d", rec.Code)
	}
}

func TestCreateReviewValidation(t *testing.T) {
	mux := setupReviewsTest(t)

	tests := []struct {
		name   string
		body   string
		userID string
		want   int
	}{
		{"anonymous", `{"stationId":"` + downtownSF + `","rating":4,"title":"t","comment":"c"}`, "", http.StatusUnauthorized},
		{"rating too high", `{"stationId":"` + downtownSF + `","rating":6,"title":"t","comment":"c"}`, ada, http.StatusBadRequest},
		{"missing title", `{"stationId":"` + downtownSF + `","rating":4,"comment":"c"}`, ada, http.StatusBadRequest},
		{"blank comment", `{"stationId":"` + downtownSF + `","rating":4,"title":"t","comment":"   "}`, ada, http.StatusBadRequest},
		{"title too long", `{"stationId":"` + downtownSF + `","rating":4,"title":"` + strings.Repeat("x", 101) + `","comment":"c"}`, ada, http.StatusBadRequest},
		{"unknown station", `{"stationId":"nowhere","rating":4,"title":"t","comment":"c"}`, ada, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(mux, jsonRequest(http.MethodPost, "/reviews", tt.body), tt.userID)
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

// multipartReview builds a review form carrying one png attachment.
func multipartReview(t *testing.T, fields map[string]string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	part, err := writer.CreateFormFile("images", "stalls.png")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(pngSignature)); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/reviews", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func storedImages(t *testing.T) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(uploadsDir, imagesSubdir))
	if err != nil && !os.IsNotExist(err) {
		t.Fatalf("read uploads: %v", err)
	}
	return entries
}

func TestCreateReviewWithImages(t *testing.T) {
	mux := setupReviewsTest(t)

	rec := serve(mux, multipartReview(t, map[string]string{
		"stationId": downtownSF,
		"rating":    "5",
		"title":     "Great view",
		"comment":   "Photo of the stalls attached.",
	}), ada)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	review := decodeReview(t, rec)
	if len(review.Images) != 1 || !strings.HasPrefix(review.Images[0], "/uploads/reviews/") {
		t.Fatalf("unexpected images: %v", review.Images)
	}
	stored := filepath.Join(uploadsDir, imagesSubdir, filepath.Base(review.Images[0]))
	if _, err := os.Stat(stored); err != nil {
		t.Fatalf("expected stored image: %v", err)
	}
}

func TestCreateReviewConflictRemovesImages(t *testing.T) {
	mux := setupReviewsTest(t)
	createReview(t, mux, ada, 4)

	rec := serve(mux, multipartReview(t, map[string]string{
		"stationId": downtownSF,
		"rating":    "2",
		"title":     "Second look",
		"comment":   "Trying to review again.",
	}), ada)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
	if entries := storedImages(t); len(entries) != 0 {
		t.Fatalf("expected no images left behind, found %d", len(entries))
	}
}

func TestUpdateReviewOwnerOnly(t *testing.T) {
	mux := setupReviewsTest(t)
	review := createReview(t, mux, ada, 4)
	createReview(t, mux, bob, 5)

	rec := serve(mux, jsonRequest(http.MethodPut, "/reviews/"+review.ID, `{"rating":1}`), bob)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for another user's review, got %d", rec.Code)
	}

	rec = serve(mux, jsonRequest(http.MethodPut, "/reviews/"+review.ID, `{"rating":2,"title":"Slower today"}`), ada)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	updated := decodeReview(t, rec)
	if updated.Rating != 2 || updated.Title != "Slower today" || updated.Comment != review.Comment {
		t.Fatalf("unexpected update: %+v", updated)
	}
	if rating, _ := stationRating(t); rating != 3.5 {
		t.Fatalf("expected rating 3.5 after update, got %v", rating)
	}

	rec = serve(mux, jsonRequest(http.MethodPut, "/reviews/missing", `{"rating":2}`), ada)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestDeleteReview(t *testing.T) {
	mux := setupReviewsTest(t)
	review := createReview(t, mux, ada, 2)

	if rec := serve(mux, httptest.NewRequest(http.MethodDelete, "/reviews/"+review.ID, nil), bob); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if rec := serve(mux, httptest.NewRequest(http.MethodDelete, "/reviews/"+review.ID, nil), ada); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rating, count := stationRating(t); rating != 0 || count != 0 {
		t.Fatalf("expected rating reset, got %v from %d", rating, count)
	}
	if rec := serve(mux, httptest.NewRequest(http.MethodDelete, "/reviews/"+review.ID, nil), ada); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", rec.Code)
	}
}

func TestHelpfulIsIdempotent(t *testing.T) {
	mux := setupReviewsTest(t)
	review := createReview(t, mux, ada, 5)

	for i := 0; i < 2; i++ {
		rec := serve(mux, httptest.NewRequest(http.MethodPost, "/reviews/"+review.ID+"/helpful", nil), bob)
		if rec.Code != http.StatusOK {
			t.Fatalf("vote %d: expected 200, got %d", i+1, rec.Code)
		}
		if got := decodeReview(t, rec).Helpful; got != 1 {
			t.Fatalf("vote %d: expected helpful 1, got %d", i+1, got)
		}
	}

	rec := serve(mux, httptest.NewRequest(http.MethodPost, "/reviews/"+review.ID+"/helpful", nil), ada)
	if got := decodeReview(t, rec).Helpful; got != 2 {
		t.Fatalf("expected helpful 2, got %d", got)
	}

	if rec := serve(mux, httptest.NewRequest(http.MethodPost, "/reviews/missing/helpful", nil), bob); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
