package dbgen

import (
	"context"
	"time"
)

const stationColumns = `id, name, address, latitude, longitude, rating, review_count, amenities, images, charging_speed, price_per_kwh, price_per_minute, session_fee, currency, operator_status, estimated_wait_minutes, open_24_hours, schedule, host_type, created_at, updated_at`

func scanStation(row interface{ Scan(...interface{}) error }) (Station, error) {
	var i Station
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Address,
		&i.Latitude,
		&i.Longitude,
		&i.Rating,
		&i.ReviewCount,
		&i.Amenities,
		&i.Images,
		&i.ChargingSpeed,
		&i.PricePerKwh,
		&i.PricePerMinute,
		&i.SessionFee,
		&i.Currency,
		&i.OperatorStatus,
		&i.EstimatedWaitMinutes,
		&i.Open24Hours,
		&i.Schedule,
		&i.HostType,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listStations = `-- name: ListStations :many
SELECT ` + stationColumns + ` FROM stations ORDER BY name`

func (q *Queries) ListStations(ctx context.Context) ([]Station, error) {
	rows, err := q.db.QueryContext(ctx, listStations)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Station
	for rows.Next() {
		i, err := scanStation(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getStation = `-- name: GetStation :one
SELECT ` + stationColumns + ` FROM stations WHERE id = ?`

func (q *Queries) GetStation(ctx context.Context, id string) (Station, error) {
	return scanStation(q.db.QueryRowContext(ctx, getStation, id))
}

const createStation = `-- name: CreateStation :exec
INSERT INTO stations (` + stationColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateStation(ctx context.Context, arg Station) error {
	_, err := q.db.ExecContext(ctx, createStation,
		arg.ID,
		arg.Name,
		arg.Address,
		arg.Latitude,
		arg.Longitude,
		arg.Rating,
		arg.ReviewCount,
		arg.Amenities,
		arg.Images,
		arg.ChargingSpeed,
		arg.PricePerKwh,
		arg.PricePerMinute,
		arg.SessionFee,
		arg.Currency,
		arg.OperatorStatus,
		arg.EstimatedWaitMinutes,
		arg.Open24Hours,
		arg.Schedule,
		arg.HostType,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return err
}

const listStationConnectors = `-- name: ListStationConnectors :many
SELECT station_id, connector_type, max_power, total_count, available_count
FROM station_connectors
ORDER BY station_id, connector_type`

func (q *Queries) ListStationConnectors(ctx context.Context) ([]StationConnector, error) {
	return q.queryConnectors(ctx, listStationConnectors)
}

const listConnectorsForStation = `-- name: ListConnectorsForStation :many
SELECT station_id, connector_type, max_power, total_count, available_count
FROM station_connectors
WHERE station_id = ?
ORDER BY connector_type`

func (q *Queries) ListConnectorsForStation(ctx context.Context, stationID string) ([]StationConnector, error) {
	return q.queryConnectors(ctx, listConnectorsForStation, stationID)
}

func (q *Queries) queryConnectors(ctx context.Context, query string, args ...interface{}) ([]StationConnector, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []StationConnector
	for rows.Next() {
		var i StationConnector
		if err := rows.Scan(
			&i.StationID,
			&i.ConnectorType,
			&i.MaxPower,
			&i.TotalCount,
			&i.AvailableCount,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getStationConnector = `-- name: GetStationConnector :one
SELECT station_id, connector_type, max_power, total_count, available_count
FROM station_connectors
WHERE station_id = ? AND connector_type = ?`

func (q *Queries) GetStationConnector(ctx context.Context, stationID, connectorType string) (StationConnector, error) {
	row := q.db.QueryRowContext(ctx, getStationConnector, stationID, connectorType)
	var i StationConnector
	err := row.Scan(
		&i.StationID,
		&i.ConnectorType,
		&i.MaxPower,
		&i.TotalCount,
		&i.AvailableCount,
	)
	return i, err
}

const createStationConnector = `-- name: CreateStationConnector :exec
INSERT INTO station_connectors (station_id, connector_type, max_power, total_count, available_count)
VALUES (?, ?, ?, ?, ?)`

func (q *Queries) CreateStationConnector(ctx context.Context, arg StationConnector) error {
	_, err := q.db.ExecContext(ctx, createStationConnector,
		arg.StationID,
		arg.ConnectorType,
		arg.MaxPower,
		arg.TotalCount,
		arg.AvailableCount,
	)
	return err
}

const setConnectorAvailability = `-- name: SetConnectorAvailability :exec
UPDATE station_connectors
SET available_count = MAX(0, MIN(?, total_count))
WHERE station_id = ? AND connector_type = ?`

// SetConnectorAvailability clamps the reported count to [0, total_count].
func (q *Queries) SetConnectorAvailability(ctx context.Context, available int64, stationID, connectorType string) error {
	result, err := q.db.ExecContext(ctx, setConnectorAvailability, available, stationID, connectorType)
	return requireRow(result, err)
}

const touchStation = `-- name: TouchStation :exec
UPDATE stations SET updated_at = ? WHERE id = ?`

func (q *Queries) TouchStation(ctx context.Context, updatedAt time.Time, id string) error {
	_, err := q.db.ExecContext(ctx, touchStation, updatedAt, id)
	return err
}

const recomputeStationRating = `-- name: RecomputeStationRating :exec
UPDATE stations
SET rating = COALESCE((SELECT ROUND(AVG(rating), 1) FROM reviews WHERE station_id = stations.id), 0),
    review_count = (SELECT COUNT(*) FROM reviews WHERE station_id = stations.id),
    updated_at = ?
WHERE id = ?`

func (q *Queries) RecomputeStationRating(ctx context.Context, updatedAt time.Time, stationID string) error {
	_, err := q.db.ExecContext(ctx, recomputeStationRating, updatedAt, stationID)
	return err
}

const countRecentStationBookings = `-- name: CountRecentStationBookings :many
SELECT station_id, COUNT(*) AS booking_count
FROM bookings
WHERE created_at >= ?
GROUP BY station_id`

type CountRecentStationBookingsRow struct {
	StationID    string
	BookingCount int64
}

func (q *Queries) CountRecentStationBookings(ctx context.Context, since time.Time) ([]CountRecentStationBookingsRow, error) {
	rows, err := q.db.QueryContext(ctx, countRecentStationBookings, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CountRecentStationBookingsRow
	for rows.Next() {
		var i CountRecentStationBookingsRow
		if err := rows.Scan(&i.StationID, &i.BookingCount); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createStationReport = `-- name: CreateStationReport :exec
INSERT INTO station_reports (id, station_id, user_id, reason, description, created_at)
VALUES (?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateStationReport(ctx context.Context, arg StationReport) error {
	_, err := q.db.ExecContext(ctx, createStationReport,
		arg.ID,
		arg.StationID,
		arg.UserID,
		arg.Reason,
		arg.Description,
		arg.CreatedAt,
	)
	return err
}

const addFavorite = `-- name: AddFavorite :exec
INSERT OR IGNORE INTO favorites (user_id, station_id, created_at) VALUES (?, ?, ?)`

func (q *Queries) AddFavorite(ctx context.Context, userID, stationID string, createdAt time.Time) error {
	_, err := q.db.ExecContext(ctx, addFavorite, userID, stationID, createdAt)
	return err
}

const removeFavorite = `-- name: RemoveFavorite :exec
DELETE FROM favorites WHERE user_id = ? AND station_id = ?`

func (q *Queries) RemoveFavorite(ctx context.Context, userID, stationID string) error {
	_, err := q.db.ExecContext(ctx, removeFavorite, userID, stationID)
	return err
}

const listFavoriteStationIDs = `-- name: ListFavoriteStationIDs :many
SELECT station_id FROM favorites WHERE user_id = ? ORDER BY created_at DESC, station_id`

func (q *Queries) ListFavoriteStationIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listFavoriteStationIDs, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []string
	for rows.Next() {
		var stationID string
		if err := rows.Scan(&stationID); err != nil {
			return nil, err
		}
		items = append(items, stationID)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
