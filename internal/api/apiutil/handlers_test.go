package apiutil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/codr1/ChargeEase/internal/request"
)

func decodeErrorBody(t *testing.T, rec *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var body ErrorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body
}

func TestHandleRendersPlainErrorAs500(t *testing.T) {
	SetProduction(false)
	t.Cleanup(func() { SetProduction(false) })

	handler := Handle(func(w http.ResponseWriter, r *http.Request) error {
		return errors.New("x")
	})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	body := decodeErrorBody(t, rec)
	if body.Success || body.Message != "x" {
		t.Fatalf("unexpected body %+v", body)
	}
	if body.Stack == "" || body.Stack == ProductionStack {
		t.Fatalf("expected a real stack trace, got %q", body.Stack)
	}
}

func TestHandleHidesStackInProduction(t *testing.T) {
	SetProduction(true)
	t.Cleanup(func() { SetProduction(false) })

	handler := Handle(func(w http.ResponseWriter, r *http.Request) error {
		return errors.New("x")
	})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	body := decodeErrorBody(t, rec)
	if body.Stack != "🥞" {
		t.Fatalf("expected pancake stack, got %q", body.Stack)
	}
}

func TestHandleUsesHandlerErrorStatus(t *testing.T) {
	handler := Handle(func(w http.ResponseWriter, r *http.Request) error {
		return Conflict("slot taken", errors.New("overlap"))
	})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/bookings", nil))

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if body := decodeErrorBody(t, rec); body.Message != "slot taken" {
		t.Fatalf("unexpected message %q", body.Message)
	}
}

type bookingForm struct {
	StationID string    `json:"stationId" validate:"required"`
	StartTime time.Time `json:"startTime" validate:"required"`
	Duration  int       `json:"duration" validate:"gte=15,lte=480"`
	Notify    *bool     `json:"notify"`
	Tags      []string  `json:"tags"`
}

func TestDecodeJSONAndForm(t *testing.T) {
	jsonReq := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"stationId":"s1","startTime":"2026-03-01T10:00:00Z","duration":60}`))
	jsonReq.Header.Set("Content-Type", "application/json")
	var fromJSON bookingForm
	if err := Decode(jsonReq, &fromJSON); err != nil {
		t.Fatalf("decode json: %v", err)
	}

	formReq := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("stationId=s1&startTime=2026-03-01T10%3A00%3A00Z&duration=60&notify=on&tags=a&tags=b"))
	formReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	var fromForm bookingForm
	if err := Decode(formReq, &fromForm); err != nil {
		t.Fatalf("decode form: %v", err)
	}

	if fromJSON.StationID != fromForm.StationID || !fromJSON.StartTime.Equal(fromForm.StartTime) || fromJSON.Duration != fromForm.Duration {
		t.Fatalf("json and form decoded differently: %+v vs %+v", fromJSON, fromForm)
	}
	if fromForm.Notify == nil || !*fromForm.Notify || len(fromForm.Tags) != 2 {
		t.Fatalf("unexpected form extras: %+v", fromForm)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		status      int
		message     string
	}{
		{"unknown json field", "application/json", `{"stationId":"s1","duration":60,"extra":1}`, http.StatusBadRequest, `Unknown field "extra"`},
		{"malformed json", "application/json", `{"stationId":`, http.StatusBadRequest, "Malformed JSON body"},
		{"trailing data", "application/json", `{"stationId":"s1","startTime":"2026-03-01T10:00:00Z","duration":60}{}`, http.StatusBadRequest, "invalid JSON body"},
		{"validation", "application/json", `{"stationId":"s1","startTime":"2026-03-01T10:00:00Z","duration":5}`, http.StatusBadRequest, "duration must be at least 15"},
		{"missing required", "application/json", `{"startTime":"2026-03-01T10:00:00Z","duration":60}`, http.StatusBadRequest, "stationId is required"},
		{"unknown form field", "application/x-www-form-urlencoded", "stationId=s1&bogus=1", http.StatusBadRequest, "bogus is not a known field"},
		{"bad form int", "application/x-www-form-urlencoded", "stationId=s1&duration=long", http.StatusBadRequest, "duration must be an integer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			var dst bookingForm
			err := Decode(req, &dst)
			if err == nil {
				t.Fatal("expected error")
			}
			if got := StatusFor(err); got != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, got)
			}
			if err.Error() != tt.message {
				t.Fatalf("expected message %q, got %q", tt.message, err.Error())
			}
		})
	}
}

func TestPaginatedEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	if err := Paginated(rec, []string{"a"}, request.Pagination{Page: 2, Limit: 10}, 21); err != nil {
		t.Fatalf("paginated: %v", err)
	}

	var env struct {
		Success    bool     `json:"success"`
		Data       []string `json:"data"`
		Pagination PageInfo `json:"pagination"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !env.Success || env.Pagination.TotalPages != 3 || env.Pagination.Total != 21 {
		t.Fatalf("unexpected envelope %+v", env)
	}
}
