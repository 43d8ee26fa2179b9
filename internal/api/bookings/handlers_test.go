package bookings

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
	downtownSF = "9b2f6c1e-0d6a-4d0e-9a5e-1f0c2b7a1001"
	marina     = "9b2f6c1e-0d6a-4d0e-9a5e-1f0c2b7a1003"
	sunset     = "9b2f6c1e-0d6a-4d0e-9a5e-1f0c2b7a1007"
)

type bookingsTest struct {
	db  *db.DB
	mux *http.ServeMux
	now *time.Time
}

// Tests cannot use t.Parallel() due to shared package state.
func setupBookingsTest(t *testing.T) *bookingsTest {
	t.Helper()

	database := testutil.NewTestDB(t)
	prev := service
	t.Cleanup(func() { service = prev })

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc := bookings.NewService(database, nil)
	svc.Now = func() time.Time { return now }
	InitHandlers(svc)

	for _, id := range []string{"user-ada", "user-bob"} {
		if _, err := database.Exec(
			`INSERT INTO users (id, email, name, password_hash, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
			id, id+"@example.com", "Driver "+id, "hash", now, now,
		); err != nil {
			t.Fatalf("insert user: %v", err)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /bookings", apiutil.Handle(HandleCreate))
	mux.HandleFunc("GET /bookings", apiutil.Handle(HandleList))
	mux.HandleFunc("GET /bookings/history", apiutil.Handle(HandleHistory))
	mux.HandleFunc("GET /bookings/{id}", apiutil.Handle(HandleGet))
	mux.HandleFunc("PUT /bookings/{id}/cancel", apiutil.Handle(HandleCancel))
	mux.HandleFunc("PUT /bookings/{id}/extend", apiutil.Handle(HandleExtend))
	mux.HandleFunc("PUT /bookings/{id}/start", apiutil.Handle(HandleStart))
	mux.HandleFunc("PUT /bookings/{id}/stop", apiutil.Handle(HandleStop))

	return &bookingsTest{db: database, mux: mux, now: &now}
}

func (bt *bookingsTest) do(t *testing.T, userID, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req = req.WithContext(authz.ContextWithUser(req.Context(), &authz.AuthUser{ID: userID}))
	}
	rec := httptest.NewRecorder()
	bt.mux.ServeHTTP(rec, req)
	return rec
}

func (bt *bookingsTest) create(t *testing.T, userID, stationID, connector string, startIn time.Duration, minutes int) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(map[string]any{
		"stationId":     stationID,
		"startTime":     bt.now.Add(startIn).Format(time.RFC3339),
		"duration":      minutes,
		"connectorType": connector,
	})
	return bt.do(t, userID, http.MethodPost, "/bookings", string(body))
}

func (bt *bookingsTest) addPaymentMethod(t *testing.T, userID string) {
	t.Helper()
	if _, err := bt.db.Exec(
		`INSERT INTO payment_methods (id, user_id, type, last4, brand, is_default, created_at) VALUES (?, ?, 'card', '4242', 'Visa', 1, ?)`,
		"pm-"+userID, userID, *bt.now,
	); err != nil {
		t.Fatalf("insert payment method: %v", err)
	}
}

func decodeBooking(t *testing.T, rec *httptest.ResponseRecorder) (models.Booking, string) {
	t.Helper()
	var env struct {
		Data    models.Booking `json:"data"`
		Message string         `json:"message"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode booking: %v (%s)", err, rec.Body.String())
	}
	return env.Data, env.Message
}

func decodeList(t *testing.T, rec *httptest.ResponseRecorder) bookingList {
	t.Helper()
	var env struct {
		Data bookingList `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	return env.Data
}

func TestCreateBooking(t *testing.T) {
	bt := setupBookingsTest(t)

	rec := bt.create(t, "user-ada", downtownSF, "CCS", 2*time.Hour, 60)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	booking, message := decodeBooking(t, rec)
	if booking.Status != models.BookingPending {
		t.Fatalf("expected Pending without a payment method, got %s", booking.Status)
	}
	if !strings.Contains(message, "payment method") {
		t.Fatalf("unexpected message %q", message)
	}
	if booking.TotalCost != 34.6 || booking.Duration != 60 {
		t.Fatalf("unexpected booking: %+v", booking)
	}
	if booking.Station == nil || booking.Station.ID != downtownSF {
		t.Fatalf("expected embedded station, got %+v", booking.Station)
	}

	bt.addPaymentMethod(t, "user-bob")
	rec = bt.create(t, "user-bob", downtownSF, "Tesla", 2*time.Hour, 30)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if booking, _ := decodeBooking(t, rec); booking.Status != models.BookingConfirmed {
		t.Fatalf("expected Confirmed with a payment method, got %s", booking.Status)
	}
}

func TestCreateBookingRejects(t *testing.T) {
	bt := setupBookingsTest(t)

	if rec := bt.create(t, "", downtownSF, "CCS", time.Hour, 60); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	tests := []struct {
		name      string
		station   string
		connector string
		startIn   time.Duration
		minutes   int
		want      int
	}{
		{"too short", downtownSF, "CCS", time.Hour, 10, http.StatusBadRequest},
		{"too long", downtownSF, "CCS", time.Hour, 481, http.StatusBadRequest},
		{"in the past", downtownSF, "CCS", -10 * time.Minute, 60, http.StatusBadRequest},
		{"unknown connector", downtownSF, "Plug", time.Hour, 60, http.StatusBadRequest},
		{"connector not offered", downtownSF, "J1772", time.Hour, 60, http.StatusBadRequest},
		{"unknown station", "missing", "CCS", time.Hour, 60, http.StatusNotFound},
		{"out of service", sunset, "J1772", time.Hour, 60, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := bt.create(t, "user-ada", tt.station, tt.connector, tt.startIn, tt.minutes)
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}

	rec := bt.do(t, "user-ada", http.MethodPost, "/bookings",
		`{"stationId":"`+downtownSF+`","startTime":"tomorrow","duration":60,"connectorType":"CCS"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad startTime, got %d", rec.Code)
	}
}

func TestCreateBookingCapacity(t *testing.T) {
	bt := setupBookingsTest(t)

	// Marina has a single CHAdeMO stall.
	if rec := bt.create(t, "user-ada", marina, "CHAdeMO", time.Hour, 60); rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec := bt.create(t, "user-bob", marina, "CHAdeMO", 90*time.Minute, 60); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for overlapping booking, got %d", rec.Code)
	}
	if rec := bt.create(t, "user-bob", marina, "CHAdeMO", 2*time.Hour, 60); rec.Code != http.StatusCreated {
		t.Fatalf("expected back-to-back booking to succeed, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestBookingLifecycle(t *testing.T) {
	bt := setupBookingsTest(t)
	bt.addPaymentMethod(t, "user-ada")

	rec := bt.create(t, "user-ada", downtownSF, "CCS", 10*time.Minute, 60)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	created, _ := decodeBooking(t, rec)
	base := "/bookings/" + created.ID

	rec = bt.do(t, "user-ada", http.MethodPut, base+"/extend", `{"additionalMinutes":30}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("extend: %d %s", rec.Code, rec.Body.String())
	}
	if extended, _ := decodeBooking(t, rec); extended.Duration != 90 {
		t.Fatalf("expected 90 minutes, got %d", extended.Duration)
	}
	if rec := bt.do(t, "user-ada", http.MethodPut, base+"/extend", `{"additionalMinutes":400}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 past 480 minutes, got %d", rec.Code)
	}
	if rec := bt.do(t, "user-ada", http.MethodPut, base+"/extend", `{"additionalMinutes":0}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for zero minutes, got %d", rec.Code)
	}

	if rec := bt.do(t, "user-ada", http.MethodPut, base+"/stop", ""); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 stopping a Confirmed booking, got %d", rec.Code)
	}

	rec = bt.do(t, "user-ada", http.MethodPut, base+"/start", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("start: %d %s", rec.Code, rec.Body.String())
	}
	if started, _ := decodeBooking(t, rec); started.Status != models.BookingActive {
		t.Fatalf("expected Active, got %s", started.Status)
	}

	*bt.now = bt.now.Add(40 * time.Minute)
	rec = bt.do(t, "user-ada", http.MethodPut, base+"/stop", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("stop: %d %s", rec.Code, rec.Body.String())
	}
	stopped, _ := decodeBooking(t, rec)
	if stopped.Status != models.BookingCompleted || stopped.EnergyDelivered == nil {
		t.Fatalf("expected Completed with energy, got %+v", stopped)
	}

	var invoices int
	if err := bt.db.QueryRow(`SELECT COUNT(*) FROM invoices WHERE booking_id = ?`, created.ID).Scan(&invoices); err != nil {
		t.Fatalf("count invoices: %v", err)
	}
	if invoices != 1 {
		t.Fatalf("expected one invoice, got %d", invoices)
	}

	if rec := bt.do(t, "user-ada", http.MethodPut, base+"/cancel", ""); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 cancelling a Completed booking, got %d", rec.Code)
	}

	history := decodeList(t, bt.do(t, "user-ada", http.MethodGet, "/bookings/history", ""))
	if history.Total != 1 || history.Bookings[0].ID != created.ID {
		t.Fatalf("unexpected history: %+v", history)
	}
}

func TestStartOutsideWindow(t *testing.T) {
	bt := setupBookingsTest(t)
	bt.addPaymentMethod(t, "user-ada")

	rec := bt.create(t, "user-ada", downtownSF, "CCS", time.Hour, 60)
	created, _ := decodeBooking(t, rec)

	if rec := bt.do(t, "user-ada", http.MethodPut, "/bookings/"+created.ID+"/start", ""); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 an hour early, got %d", rec.Code)
	}
}

func TestBookingsAreScopedToOwner(t *testing.T) {
	bt := setupBookingsTest(t)

	rec := bt.create(t, "user-ada", downtownSF, "CCS", time.Hour, 60)
	created, _ := decodeBooking(t, rec)

	if rec := bt.do(t, "user-bob", http.MethodGet, "/bookings/"+created.ID, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for another user's booking, got %d", rec.Code)
	}
	if rec := bt.do(t, "user-bob", http.MethodPut, "/bookings/"+created.ID+"/cancel", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 cancelling another user's booking, got %d", rec.Code)
	}
	if rec := bt.do(t, "user-ada", http.MethodGet, "/bookings/"+created.ID, ""); rec.Code != http.StatusOK {
		t.Fatalf("expected owner to see booking, got %d", rec.Code)
	}
}

func TestListBookings(t *testing.T) {
	bt := setupBookingsTest(t)

	first, _ := decodeBooking(t, bt.create(t, "user-ada", downtownSF, "CCS", time.Hour, 60))
	bt.create(t, "user-ada", downtownSF, "Tesla", 3*time.Hour, 60)
	if rec := bt.do(t, "user-ada", http.MethodPut, "/bookings/"+first.ID+"/cancel", ""); rec.Code != http.StatusOK {
		t.Fatalf("cancel: %d %s", rec.Code, rec.Body.String())
	}

	all := decodeList(t, bt.do(t, "user-ada", http.MethodGet, "/bookings", ""))
	if all.Total != 2 || len(all.Bookings) != 2 {
		t.Fatalf("expected 2 bookings, got %+v", all)
	}

	pending := decodeList(t, bt.do(t, "user-ada", http.MethodGet, "/bookings?status=Pending", ""))
	if pending.Total != 1 || pending.Bookings[0].ConnectorType != "Tesla" {
		t.Fatalf("unexpected pending list: %+v", pending)
	}

	paged := decodeList(t, bt.do(t, "user-ada", http.MethodGet, "/bookings?limit=1&page=2", ""))
	if paged.Total != 2 || len(paged.Bookings) != 1 {
		t.Fatalf("unexpected page: %+v", paged)
	}

	if rec := bt.do(t, "user-ada", http.MethodGet, "/bookings?status=Paused", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", rec.Code)
	}
	if list := decodeList(t, bt.do(t, "user-bob", http.MethodGet, "/bookings", "")); list.Total != 0 {
		t.Fatalf("expected no bookings for bob, got %+v", list)
	}
}
