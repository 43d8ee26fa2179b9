package payments

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/codr1/ChargeEase/internal/api/apiutil"
	"github.com/codr1/ChargeEase/internal/api/authz"
	"github.com/codr1/ChargeEase/internal/bookings"
	"github.com/codr1/ChargeEase/internal/db"
	"github.com/codr1/ChargeEase/internal/models"
	"github.com/codr1/ChargeEase/internal/testutil"
)

const (
	ada        = "user-ada"
	downtownSF = "9b2f6c1e-0d6a-4d0e-9a5e-1f0c2b7a1001"
)

// Tests cannot use t.Parallel() due to shared package state.
func setupPaymentsTest(t *testing.T) (*db.DB, *http.ServeMux) {
	t.Helper()

	testDB := testutil.NewTestDB(t)
	prevDB, prevService := database, bookingService
	t.Cleanup(func() {
		database, bookingService = prevDB, prevService
	})
	InitHandlers(testDB, bookings.NewService(testDB, nil))

	now := db.Now()
	if _, err := testDB.Exec(
		`INSERT INTO users (id, email, name, password_hash, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		ada, "ada@example.com", "Ada Driver", "hash", now, now,
	); err != nil {
		t.Fatalf("insert user: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /payments/methods", apiutil.Handle(HandleListMethods))
	mux.HandleFunc("POST /payments/methods", apiutil.Handle(HandleAddMethod))
	mux.HandleFunc("DELETE /payments/methods/{id}", apiutil.Handle(HandleDeleteMethod))
	mux.HandleFunc("PUT /payments/methods/{id}/default", apiutil.Handle(HandleSetDefault))
	mux.HandleFunc("POST /payments/intent", apiutil.Handle(HandleCreateIntent))
	mux.HandleFunc("GET /payments/invoices", apiutil.Handle(HandleInvoices))
	return testDB, mux
}

func serve(mux *http.ServeMux, method, target, body string, authed bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req = req.WithContext(authz.ContextWithUser(req.Context(), &authz.AuthUser{ID: ada}))
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (%s)", err, rec.Body.String())
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}

func addMethod(t *testing.T, mux *http.ServeMux, body string) models.PaymentMethod {
	t.Helper()
	rec := serve(mux, http.MethodPost, "/payments/methods", body, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add method: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var method models.PaymentMethod
	decodeData(t, rec, &method)
	return method
}

func listMethods(t *testing.T, mux *http.ServeMux) []models.PaymentMethod {
	t.Helper()
	rec := serve(mux, http.MethodGet, "/payments/methods", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("list methods: expected 200, got %d", rec.Code)
	}
	var methods []models.PaymentMethod
	decodeData(t, rec, &methods)
	return methods
}

func defaultID(methods []models.PaymentMethod) string {
	for _, m := range methods {
		if m.IsDefault {
			return m.ID
		}
	}
	return ""
}

func TestAddMethodValidation(t *testing.T) {
	_, mux := setupPaymentsTest(t)

	if rec := serve(mux, http.MethodPost, "/payments/methods", `{"type":"card","last4":"4242"}`, false); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	for _, body := range []string{
		`{"type":"cheque"}`,
		`{"type":"card"}`,
		`{"type":"card","last4":"42"}`,
		`{"type":"card","last4":"abcd"}`,
	} {
		if rec := serve(mux, http.MethodPost, "/payments/methods", body, true); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", body, rec.Code)
		}
	}

	paypal := addMethod(t, mux, `{"type":"paypal"}`)
	if paypal.Last4 != "" || !paypal.IsDefault {
		t.Fatalf("unexpected paypal method: %+v", paypal)
	}
}

func TestDefaultPromotion(t *testing.T) {
	testDB, mux := setupPaymentsTest(t)

	first := addMethod(t, mux, `{"type":"card","last4":"4242","brand":"Visa"}`)
	if !first.IsDefault {
		t.Fatal("expected first method to become default")
	}
	if _, err := testDB.Exec(`UPDATE payment_methods SET created_at = ? WHERE id = ?`, db.Now().Add(-time.Hour), first.ID); err != nil {
		t.Fatalf("backdate method: %v", err)
	}
	second := addMethod(t, mux, `{"type":"card","last4":"5555","brand":"Mastercard"}`)
	if second.IsDefault {
		t.Fatal("expected second method not to be default")
	}
	third := addMethod(t, mux, `{"type":"apple_pay"}`)

	rec := serve(mux, http.MethodPut, "/payments/methods/"+third.ID+"/default", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("set default: expected 200, got %d", rec.Code)
	}
	if got := defaultID(listMethods(t, mux)); got != third.ID {
		t.Fatalf("expected %s to be default, got %s", third.ID, got)
	}

	if rec := serve(mux, http.MethodDelete, "/payments/methods/"+third.ID, "", true); rec.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", rec.Code)
	}
	methods := listMethods(t, mux)
	if len(methods) != 2 {
		t.Fatalf("expected 2 methods, got %d", len(methods))
	}
	if got := defaultID(methods); got != first.ID {
		t.Fatalf("expected oldest method %s promoted, got %s", first.ID, got)
	}

	if rec := serve(mux, http.MethodDelete, "/payments/methods/"+third.ID, "", true); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 deleting twice, got %d", rec.Code)
	}
	if rec := serve(mux, http.MethodPut, "/payments/methods/missing/default", "", true); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown method, got %d", rec.Code)
	}
}

func TestAddMethodConfirmsPendingBookings(t *testing.T) {
	testDB, mux := setupPaymentsTest(t)

	booking, err := bookingService.Create(t.Context(), bookings.CreateParams{
		UserID:          ada,
		StationID:       downtownSF,
		ConnectorType:   "CCS",
		StartTime:       time.Now().Add(2 * time.Hour),
		DurationMinutes: 60,
	})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	if booking.Status != models.BookingPending {
		t.Fatalf("expected Pending, got %s", booking.Status)
	}

	addMethod(t, mux, `{"type":"google_pay"}`)

	var status string
	if err := testDB.QueryRow(`SELECT status FROM bookings WHERE id = ?`, booking.ID).Scan(&status); err != nil {
		t.Fatalf("load booking: %v", err)
	}
	if status != models.BookingConfirmed {
		t.Fatalf("expected Confirmed after adding a method, got %s", status)
	}
}

func TestCreateIntent(t *testing.T) {
	_, mux := setupPaymentsTest(t)

	rec := serve(mux, http.MethodPost, "/payments/intent", `{"amount":34.6}`, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var intent models.PaymentIntent
	decodeData(t, rec, &intent)
	if intent.Currency != "USD" || intent.Amount != 34.6 {
		t.Fatalf("unexpected intent: %+v", intent)
	}
	if !strings.HasPrefix(intent.ClientSecret, intent.ID+"_secret_") {
		t.Fatalf("unexpected client secret %q", intent.ClientSecret)
	}

	rec = serve(mux, http.MethodPost, "/payments/intent", `{"amount":10,"currency":"eur"}`, true)
	decodeData(t, rec, &intent)
	if intent.Currency != "EUR" {
		t.Fatalf("expected EUR, got %q", intent.Currency)
	}

	for _, body := range []string{`{"amount":0}`, `{"amount":-5}`, `{"amount":5,"currency":"XYZ"}`} {
		if rec := serve(mux, http.MethodPost, "/payments/intent", body, true); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", body, rec.Code)
		}
	}
}

func TestInvoices(t *testing.T) {
	testDB, mux := setupPaymentsTest(t)

	now := db.Now()
	for i, id := range []string{"b1", "b2", "b3"} {
		start := now.Add(-time.Duration(i+2) * time.Hour)
		if _, err := testDB.Exec(
			`INSERT INTO bookings (id, user_id, station_id, connector_type, start_time, end_time, duration_minutes, status, total_cost, created_at, updated_at)
			 VALUES (?, ?, ?, 'CCS', ?, ?, 60, 'Completed', 12.5, ?, ?)`,
			id, ada, downtownSF, start, start.Add(time.Hour), now, now,
		); err != nil {
			t.Fatalf("insert booking: %v", err)
		}
		if _, err := testDB.Exec(
			`INSERT INTO invoices (id, user_id, booking_id, amount, currency, status, issued_at) VALUES (?, ?, ?, 12.5, 'USD', 'paid', ?)`,
			"inv-"+id, ada, id, start.Add(time.Hour),
		); err != nil {
			t.Fatalf("insert invoice: %v", err)
		}
	}

	rec := serve(mux, http.MethodGet, "/payments/invoices?limit=2", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var page struct {
		Invoices []models.Invoice `json:"invoices"`
		Total    int64            `json:"total"`
	}
	decodeData(t, rec, &page)
	if page.Total != 3 || len(page.Invoices) != 2 {
		t.Fatalf("unexpected invoice page: %+v", page)
	}

	if rec := serve(mux, http.MethodGet, "/payments/invoices?page=zero", "", true); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
