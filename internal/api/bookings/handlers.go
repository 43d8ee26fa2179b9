// internal/api/bookings/handlers.go
package bookings

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/ChargeEase/internal/api/apiutil"
	"github.com/codr1/ChargeEase/internal/bookings"
	"github.com/codr1/ChargeEase/internal/models"
	"github.com/codr1/ChargeEase/internal/request"
)

const (
	defaultPageSize = 10
	maxPageSize     = 50
)

var (
	service *bookings.Service

	bookingStatuses = []string{
		models.BookingPending,
		models.BookingConfirmed,
		models.BookingActive,
		models.BookingCompleted,
		models.BookingCancelled,
	}
	historyStatuses = []string{models.BookingCompleted, models.BookingCancelled}
)

func InitHandlers(svc *bookings.Service) {
	service = svc
}

type createRequest struct {
	StationID     string `json:"stationId" validate:"required"`
	StartTime     string `json:"startTime" validate:"required"`
	Duration      int    `json:"duration" validate:"required"`
	ConnectorType string `json:"connectorType" validate:"required"`
}

type extendRequest struct {
	AdditionalMinutes int `json:"additionalMinutes" validate:"required,gt=0"`
}

type bookingList struct {
	Bookings []models.Booking `json:"bookings"`
	Total    int64            `json:"total"`
}

// POST /bookings
func HandleCreate(w http.ResponseWriter, r *http.Request) error {
	user, err := apiutil.RequireUser(r)
	if err != nil {
		return err
	}

	var req createRequest
	if err := apiutil.Decode(r, &req); err != nil {
		return err
	}
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartTime))
	if err != nil {
		return apiutil.BadRequest("startTime must be an RFC3339 timestamp")
	}
	if !slices.Contains(models.ConnectorTypes, req.ConnectorType) {
		return apiutil.BadRequest(fmt.Sprintf("connectorType must be one of %s", strings.Join(models.ConnectorTypes, ", ")))
	}

	booking, err := service.Create(r.Context(), bookings.CreateParams{
		UserID:          user.ID,
		StationID:       strings.TrimSpace(req.StationID),
		ConnectorType:   req.ConnectorType,
		StartTime:       start,
		DurationMinutes: req.Duration,
	})
	if err != nil {
		return classify(err)
	}

	log.Ctx(r.Context()).Info().
		Str("booking_id", booking.ID).
		Str("station_id", booking.StationID).
		Str("status", booking.Status).
		Msg("Booking created")

	message := "Booking confirmed"
	if booking.Status == models.BookingPending {
		message = "Booking created. Add a payment method to confirm it"
	}
	return apiutil.SuccessMessage(w, http.StatusCreated, booking, message)
}

// GET /bookings
func HandleList(w http.ResponseWriter, r *http.Request) error {
	statuses := request.Strings(r.URL.Query(), "status")
	for _, status := range statuses {
		if !slices.Contains(bookingStatuses, status) {
			return apiutil.BadRequest(fmt.Sprintf("status must be one of %s", strings.Join(bookingStatuses, ", ")))
		}
	}
	return list(w, r, statuses)
}

// GET /bookings/history
func HandleHistory(w http.ResponseWriter, r *http.Request) error {
	return list(w, r, historyStatuses)
}

func list(w http.ResponseWriter, r *http.Request, statuses []string) error {
	user, err := apiutil.RequireUser(r)
	if err != nil {
		return err
	}
	page, err := request.ParsePagination(r.URL.Query(), defaultPageSize, maxPageSize)
	if err != nil {
		return apiutil.BadRequest(err.Error())
	}

	items, total, err := service.List(r.Context(), user.ID, statuses, page.Limit, page.Offset())
	if err != nil {
		return err
	}
	return apiutil.Paginated(w, bookingList{Bookings: items, Total: total}, page, total)
}

// GET /bookings/{id}
func HandleGet(w http.ResponseWriter, r *http.Request) error {
	user, err := apiutil.RequireUser(r)
	if err != nil {
		return err
	}
	booking, err := service.Get(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		return classify(err)
	}
	return apiutil.Success(w, http.StatusOK, booking)
}

// PUT /bookings/{id}/cancel
func HandleCancel(w http.ResponseWriter, r *http.Request) error {
	return transition(w, r, "Booking cancelled", service.Cancel)
}

// PUT /bookings/{id}/start
func HandleStart(w http.ResponseWriter, r *http.Request) error {
	return transition(w, r, "Charging started", service.Start)
}

// PUT /bookings/{id}/stop
func HandleStop(w http.ResponseWriter, r *http.Request) error {
	return transition(w, r, "Charging session completed", service.Stop)
}

// PUT /bookings/{id}/extend
func HandleExtend(w http.ResponseWriter, r *http.Request) error {
	user, err := apiutil.RequireUser(r)
	if err != nil {
		return err
	}

	var req extendRequest
	if err := apiutil.Decode(r, &req); err != nil {
		return err
	}

	booking, err := service.Extend(r.Context(), user.ID, r.PathValue("id"), req.AdditionalMinutes)
	if err != nil {
		return classify(err)
	}
	return apiutil.SuccessMessage(w, http.StatusOK, booking, "Booking extended")
}

type transitionFunc func(ctx context.Context, userID, id string) (models.Booking, error)

func transition(w http.ResponseWriter, r *http.Request, message string, fn transitionFunc) error {
	user, err := apiutil.RequireUser(r)
	if err != nil {
		return err
	}

	booking, err := fn(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		return classify(err)
	}

	log.Ctx(r.Context()).Info().
		Str("booking_id", booking.ID).
		Str("status", booking.Status).
		Msg("Booking status changed")
	return apiutil.SuccessMessage(w, http.StatusOK, booking, message)
}

// classify maps booking service errors onto HTTP statuses.
func classify(err error) error {
	switch {
	case errors.Is(err, bookings.ErrNotFound):
		return apiutil.NotFound("Booking not found")
	case errors.Is(err, bookings.ErrStationNotFound):
		return apiutil.NotFound("Station not found")
	case errors.Is(err, bookings.ErrInvalidTransition),
		errors.Is(err, bookings.ErrOutsideStartWindow),
		errors.Is(err, bookings.ErrNoCapacity),
		errors.Is(err, bookings.ErrStationUnavailable):
		return apiutil.Conflict(err.Error(), err)
	case errors.Is(err, bookings.ErrInvalidDuration),
		errors.Is(err, bookings.ErrStartInPast),
		errors.Is(err, bookings.ErrConnectorUnavailable):
		return apiutil.HandlerError{Status: http.StatusBadRequest, Message: err.Error(), Err: err}
	}
	return err
}
