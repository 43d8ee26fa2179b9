// Package telemetry applies connector status reports from the field.
package telemetry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/codr1/ChargeEase/internal/db"
	"github.com/codr1/ChargeEase/internal/realtime"
)

var (
	ErrUnknownConnector = errors.New("station has no such connector")
	ErrBadTopic         = errors.New("topic does not name a station")
	ErrBadPayload       = errors.New("malformed connector status payload")
)

// Report is one connector status message.
type Report struct {
	ConnectorType string `json:"connectorType"`
	Available     int    `json:"available"`
}

// ParseTopic extracts the station id from chargeease/stations/{id}/connectors.
func ParseTopic(topic string) (string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[1] != "stations" || parts[3] != "connectors" || parts[2] == "" {
		return "", ErrBadTopic
	}
	return parts[2], nil
}

func ParseReport(payload []byte) (Report, error) {
	var report Report
	if err := json.Unmarshal(payload, &report); err != nil {
		return Report{}, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	if strings.TrimSpace(report.ConnectorType) == "" {
		return Report{}, fmt.Errorf("%w: connectorType is required", ErrBadPayload)
	}
	return report, nil
}

// Applier writes reports to the database and fans the new availability out.
type Applier struct {
	db       *db.DB
	stations realtime.StationSource
	hub      *realtime.Hub
}

func NewApplier(database *db.DB, stations realtime.StationSource, hub *realtime.Hub) *Applier {
	return &Applier{db: database, stations: stations, hub: hub}
}

// Apply stores the reported count, clamped to [0, count].
func (a *Applier) Apply(ctx context.Context, stationID string, report Report) error {
	err := a.db.RunInTx(ctx, func(tx *db.DB) error {
		err := tx.Queries.SetConnectorAvailability(ctx, int64(report.Available), stationID, report.ConnectorType)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s %s", ErrUnknownConnector, stationID, report.ConnectorType)
		}
		if err != nil {
			return fmt.Errorf("set availability: %w", err)
		}
		return tx.Queries.TouchStation(ctx, db.Now(), stationID)
	})
	if err != nil {
		return err
	}

	a.hub.Refresh(ctx, a.stations, stationID)
	return nil
}

// Handle parses and applies one raw message.
func (a *Applier) Handle(ctx context.Context, topic string, payload []byte) error {
	stationID, err := ParseTopic(topic)
	if err != nil {
		return err
	}
	report, err := ParseReport(payload)
	if err != nil {
		return err
	}
	return a.Apply(ctx, stationID, report)
}
