package client

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/codr1/ChargeEase/internal/models"
)

type CreateBookingRequest struct {
	StationID     string `json:"stationId"`
	StartTime     string `json:"startTime"`
	Duration      int    `json:"duration"`
	ConnectorType string `json:"connectorType"`
}

type BookingList struct {
	Bookings []models.Booking `json:"bookings"`
	Total    int64            `json:"total"`
}

// NewBookingRequest formats start as RFC 3339 UTC.
func NewBookingRequest(stationID, connectorType string, start time.Time, minutes int) CreateBookingRequest {
	return CreateBookingRequest{
		StationID:     stationID,
		StartTime:     start.UTC().Format(time.RFC3339),
		Duration:      minutes,
		ConnectorType: connectorType,
	}
}

func (c *Client) CreateBooking(ctx context.Context, req CreateBookingRequest) (models.Booking, error) {
	var booking models.Booking
	err := c.post(ctx, "/bookings", req, &booking)
	return booking, err
}

// Bookings lists the user's bookings. status may be empty.
func (c *Client) Bookings(ctx context.Context, status string, page, limit int) (BookingList, error) {
	return c.listBookings(ctx, "/bookings", status, page, limit)
}

func (c *Client) BookingHistory(ctx context.Context, page, limit int) (BookingList, error) {
	return c.listBookings(ctx, "/bookings/history", "", page, limit)
}

func (c *Client) Booking(ctx context.Context, id string) (models.Booking, error) {
	var booking models.Booking
	_, err := c.get(ctx, "/bookings/"+url.PathEscape(id), nil, &booking)
	return booking, err
}

func (c *Client) CancelBooking(ctx context.Context, id string) (models.Booking, error) {
	return c.bookingAction(ctx, id, "cancel", nil)
}

func (c *Client) ExtendBooking(ctx context.Context, id string, additionalMinutes int) (models.Booking, error) {
	return c.bookingAction(ctx, id, "extend", map[string]int{"additionalMinutes": additionalMinutes})
}

func (c *Client) StartCharging(ctx context.Context, id string) (models.Booking, error) {
	return c.bookingAction(ctx, id, "start", nil)
}

func (c *Client) StopCharging(ctx context.Context, id string) (models.Booking, error) {
	return c.bookingAction(ctx, id, "stop", nil)
}

func (c *Client) listBookings(ctx context.Context, path, status string, page, limit int) (BookingList, error) {
	v := url.Values{}
	if status != "" {
		v.Set("status", status)
	}
	if page > 0 {
		v.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		v.Set("limit", strconv.Itoa(limit))
	}
	var list BookingList
	_, err := c.get(ctx, path, v, &list)
	return list, err
}

func (c *Client) bookingAction(ctx context.Context, id, action string, body any) (models.Booking, error) {
	var booking models.Booking
	err := c.put(ctx, "/bookings/"+url.PathEscape(id)+"/"+action, body, &booking)
	return booking, err
}
