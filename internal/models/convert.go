package models

import (
	"database/sql"
	"encoding/json"
	"fmt"

	dbgen "github.com/codr1/ChargeEase/internal/db/generated"
)

// DeriveStatus keeps operator-set statuses and otherwise reports whether any
// connector is free.
func DeriveStatus(operatorStatus string, available int) string {
	switch operatorStatus {
	case StatusOutOfService, StatusComingSoon:
		return operatorStatus
	}
	if available > 0 {
		return StatusAvailable
	}
	return StatusBusy
}

func NewStation(row dbgen.Station, connectors []dbgen.StationConnector) (ChargingStation, error) {
	station := ChargingStation{
		ID:            row.ID,
		Name:          row.Name,
		Address:       row.Address,
		Latitude:      row.Latitude,
		Longitude:     row.Longitude,
		Rating:        row.Rating,
		ReviewCount:   int(row.ReviewCount),
		ChargingSpeed: row.ChargingSpeed,
		HostType:      row.HostType,
		Pricing: Pricing{
			PerKwh:     nullFloat(row.PricePerKwh),
			PerMinute:  nullFloat(row.PricePerMinute),
			SessionFee: nullFloat(row.SessionFee),
			Currency:   row.Currency,
		},
		OperatingHours: OperatingHours{IsOpen24Hours: row.Open24Hours},
		ConnectorTypes: make([]Connector, 0, len(connectors)),
	}

	if err := decodeList(row.Amenities, &station.Amenities); err != nil {
		return ChargingStation{}, fmt.Errorf("station %s amenities: %w", row.ID, err)
	}
	if err := decodeList(row.Images, &station.Images); err != nil {
		return ChargingStation{}, fmt.Errorf("station %s images: %w", row.ID, err)
	}
	if !row.Open24Hours && row.Schedule != "" && row.Schedule != "{}" {
		if err := json.Unmarshal([]byte(row.Schedule), &station.OperatingHours.Schedule); err != nil {
			return ChargingStation{}, fmt.Errorf("station %s schedule: %w", row.ID, err)
		}
	}

	var available, total int
	for _, c := range connectors {
		if c.StationID != row.ID {
			continue
		}
		station.ConnectorTypes = append(station.ConnectorTypes, Connector{
			Type:      c.ConnectorType,
			MaxPower:  c.MaxPower,
			Available: int(c.AvailableCount),
			Count:     int(c.TotalCount),
		})
		available += int(c.AvailableCount)
		total += int(c.TotalCount)
	}

	station.Availability = Availability{
		Status:              DeriveStatus(row.OperatorStatus, available),
		AvailableConnectors: available,
		TotalConnectors:     total,
	}
	if row.EstimatedWaitMinutes.Valid {
		wait := int(row.EstimatedWaitMinutes.Int64)
		station.Availability.EstimatedWaitTime = &wait
	}

	return station, nil
}

func NewUser(row dbgen.User) (User, error) {
	user := User{
		ID:              row.ID,
		Email:           row.Email,
		Name:            row.Name,
		Phone:           row.Phone.String,
		Avatar:          row.Avatar.String,
		EmailVerified:   row.EmailVerified,
		MembershipLevel: row.MembershipLevel,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
		Preferences:     DefaultPreferences(),
		Vehicles:        []Vehicle{},
	}
	if row.Preferences != "" {
		if err := json.Unmarshal([]byte(row.Preferences), &user.Preferences); err != nil {
			return User{}, fmt.Errorf("user %s preferences: %w", row.ID, err)
		}
	}
	if row.Vehicles != "" {
		if err := json.Unmarshal([]byte(row.Vehicles), &user.Vehicles); err != nil {
			return User{}, fmt.Errorf("user %s vehicles: %w", row.ID, err)
		}
	}
	return user, nil
}

func NewBooking(row dbgen.Booking) Booking {
	booking := Booking{
		ID:              row.ID,
		UserID:          row.UserID,
		StationID:       row.StationID,
		StartTime:       row.StartTime,
		EndTime:         row.EndTime,
		Duration:        int(row.DurationMinutes),
		ConnectorType:   row.ConnectorType,
		Status:          row.Status,
		TotalCost:       row.TotalCost,
		EnergyDelivered: nullFloat(row.EnergyDelivered),
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
	if row.StartedAt.Valid {
		startedAt := row.StartedAt.Time
		booking.StartedAt = &startedAt
	}
	return booking
}

func NewReview(row dbgen.ReviewWithAuthor) Review {
	review := Review{
		ID:         row.ID,
		UserID:     row.UserID,
		UserName:   row.UserName,
		UserAvatar: row.UserAvatar.String,
		StationID:  row.StationID,
		Rating:     int(row.Rating),
		Title:      row.Title,
		Comment:    row.Comment,
		Helpful:    int(row.Helpful),
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}
	// Images are written by this service; a malformed list degrades to none.
	if err := decodeList(row.Images, &review.Images); err != nil {
		review.Images = []string{}
	}
	return review
}

func NewPaymentMethod(row dbgen.PaymentMethod) PaymentMethod {
	return PaymentMethod{
		ID:        row.ID,
		Type:      row.Type,
		Last4:     row.Last4.String,
		Brand:     row.Brand.String,
		IsDefault: row.IsDefault,
	}
}

func NewInvoice(row dbgen.Invoice) Invoice {
	return Invoice{
		ID:        row.ID,
		BookingID: row.BookingID,
		Amount:    row.Amount,
		Currency:  row.Currency,
		Status:    row.Status,
		IssuedAt:  row.IssuedAt,
	}
}

func NewNotification(row dbgen.Notification) Notification {
	return Notification{
		ID:        row.ID,
		Type:      row.Type,
		Title:     row.Title,
		Message:   row.Message,
		Timestamp: row.CreatedAt,
		Read:      row.Read,
		ActionURL: row.ActionUrl.String,
	}
}

// EncodeList stores a string slice as a JSON array column.
func EncodeList(values []string) string {
	if len(values) == 0 {
		return "[]"
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func decodeList(raw string, dst *[]string) error {
	*dst = []string{}
	if raw == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), dst)
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
