// Package cache holds in-process snapshots of station data.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	dbgen "github.com/codr1/ChargeEase/internal/db/generated"
	"github.com/codr1/ChargeEase/internal/models"
)

const (
	snapshotTTL     = 5 * time.Minute
	cleanupInterval = 10 * time.Minute

	allStationsKey = "stations:all"
	popularKey     = "stations:popular"
)

var ErrStationNotFound = errors.New("station not found")

// Stations caches the full station list; search runs over the snapshot.
type Stations struct {
	q     *dbgen.Queries
	cache *gocache.Cache
	now   func() time.Time

	// gen counts invalidations. A load only stores its snapshot if no
	// invalidation happened while it was reading.
	mu  sync.Mutex
	gen uint64
}

func NewStations(q *dbgen.Queries) *Stations {
	return &Stations{
		q:     q,
		cache: gocache.New(snapshotTTL, cleanupInterval),
		now:   time.Now,
	}
}

// All returns every station with its connectors, loading from the database on a miss.
func (s *Stations) All(ctx context.Context) ([]models.ChargingStation, error) {
	if cached, ok := s.cache.Get(allStationsKey); ok {
		return cached.([]models.ChargingStation), nil
	}
	gen := s.generation()

	rows, err := s.q.ListStations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stations: %w", err)
	}
	connectors, err := s.q.ListStationConnectors(ctx)
	if err != nil {
		return nil, fmt.Errorf("list connectors: %w", err)
	}

	stations := make([]models.ChargingStation, 0, len(rows))
	for _, row := range rows {
		station, err := models.NewStation(row, connectors)
		if err != nil {
			return nil, fmt.Errorf("station %s: %w", row.ID, err)
		}
		stations = append(stations, station)
	}

	s.store(allStationsKey, stations, gen)
	return stations, nil
}

func (s *Stations) Get(ctx context.Context, id string) (models.ChargingStation, error) {
	all, err := s.All(ctx)
	if err != nil {
		return models.ChargingStation{}, err
	}
	for _, station := range all {
		if station.ID == id {
			return station, nil
		}
	}
	return models.ChargingStation{}, ErrStationNotFound
}

// BookingCounts returns bookings per station created within window.
func (s *Stations) BookingCounts(ctx context.Context, window time.Duration) (map[string]int64, error) {
	if cached, ok := s.cache.Get(popularKey); ok {
		return cached.(map[string]int64), nil
	}
	gen := s.generation()

	rows, err := s.q.CountRecentStationBookings(ctx, s.now().UTC().Add(-window).Truncate(time.Second))
	if err != nil {
		return nil, fmt.Errorf("count recent bookings: %w", err)
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.StationID] = row.BookingCount
	}

	s.store(popularKey, counts, gen)
	return counts, nil
}

// Invalidate drops every snapshot. Station rows are cached as one list, so a
// change to any station clears the lot.
func (s *Stations) Invalidate(stationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.cache.Delete(allStationsKey)
	s.cache.Delete(popularKey)
}

func (s *Stations) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

func (s *Stations) store(key string, value any, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return
	}
	s.cache.SetDefault(key, value)
}

func (s *Stations) Flush() {
	s.cache.Flush()
}
