package models

import (
	"database/sql"
	"testing"

	dbgen "github.com/codr1/ChargeEase/internal/db/generated"
)

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name      string
		operator  string
		available int
		want      string
	}{
		{name: "free connector", available: 2, want: StatusAvailable},
		{name: "all busy", available: 0, want: StatusBusy},
		{name: "out of service sticks", operator: StatusOutOfService, available: 3, want: StatusOutOfService},
		{name: "coming soon sticks", operator: StatusComingSoon, want: StatusComingSoon},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveStatus(tt.operator, tt.available); got != tt.want {
				t.Fatalf("DeriveStatus(%q, %d) = %q, want %q", tt.operator, tt.available, got, tt.want)
			}
		})
	}
}

func TestNewStationAggregatesConnectors(t *testing.T) {
	row := dbgen.Station{
		ID:            "s1",
		Name:          "Downtown",
		Amenities:     `["WiFi","Restrooms"]`,
		Images:        `[]`,
		ChargingSpeed: "DC Fast",
		PricePerKwh:   sql.NullFloat64{Float64: 0.3, Valid: true},
		Currency:      "USD",
		Open24Hours:   true,
		Schedule:      "{}",
		HostType:      "EVgo",
	}
	connectors := []dbgen.StationConnector{
		{StationID: "s1", ConnectorType: "CCS", MaxPower: 150, TotalCount: 4, AvailableCount: 1},
		{StationID: "s1", ConnectorType: "CHAdeMO", MaxPower: 50, TotalCount: 2, AvailableCount: 0},
		{StationID: "other", ConnectorType: "CCS", MaxPower: 50, TotalCount: 9, AvailableCount: 9},
	}

	station, err := NewStation(row, connectors)
	if err != nil {
		t.Fatalf("new station: %v", err)
	}
	if len(station.ConnectorTypes) != 2 {
		t.Fatalf("expected 2 connectors, got %d", len(station.ConnectorTypes))
	}
	if station.Availability.TotalConnectors != 6 || station.Availability.AvailableConnectors != 1 {
		t.Fatalf("unexpected availability: %+v", station.Availability)
	}
	if station.Availability.Status != StatusAvailable {
		t.Fatalf("expected Available, got %q", station.Availability.Status)
	}
	if station.Pricing.PerKwh == nil || *station.Pricing.PerKwh != 0.3 {
		t.Fatalf("expected perKwh 0.3, got %v", station.Pricing.PerKwh)
	}
	if station.Pricing.SessionFee != nil {
		t.Fatalf("expected no session fee")
	}
	if len(station.Amenities) != 2 || station.Amenities[0] != "WiFi" {
		t.Fatalf("unexpected amenities: %v", station.Amenities)
	}
	if _, ok := station.Connector("Tesla"); ok {
		t.Fatal("did not expect a Tesla connector")
	}
}

func TestNewUserFillsDefaults(t *testing.T) {
	user, err := NewUser(dbgen.User{ID: "u1", Email: "a@b.co", Name: "Al", MembershipLevel: MembershipFree, Preferences: "{}", Vehicles: "[]"})
	if err != nil {
		t.Fatalf("new user: %v", err)
	}
	if user.Preferences.Units != "imperial" || !user.Preferences.Notifications.Email {
		t.Fatalf("expected default preferences, got %+v", user.Preferences)
	}
	if user.Vehicles == nil {
		t.Fatal("expected empty vehicle list, got nil")
	}
}
