// Package stations filters, orders and pages station snapshots.
package stations

import (
	"sort"
	"strings"
	"time"

	"github.com/codr1/ChargeEase/internal/geo"
	"github.com/codr1/ChargeEase/internal/models"
)

const (
	DefaultRadius  = 25.0
	DefaultLimit   = 20
	MaxLimit       = 100
	NearbyLimit    = 20
	HighlightLimit = 10
	SortDistance   = "distance"
	SortRating     = "rating"
	SortPrice      = "price"

	// PopularWindow is how far back bookings count toward popularity.
	PopularWindow = 30 * 24 * time.Hour
)

type Location struct {
	Latitude  float64
	Longitude float64
	Radius    float64
}

type Filters struct {
	Location       *Location
	ChargingSpeeds []string
	ConnectorTypes []string
	Amenities      []string
	Availability   *bool
	MinRating      *float64
	HostTypes      []string
	MinPrice       *float64
	MaxPrice       *float64
	Query          string
}

type Query struct {
	Filters
	Sort  string
	Page  int
	Limit int
}

type Result struct {
	Stations []models.ChargingStation `json:"stations"`
	Total    int                      `json:"total"`
	Page     int                      `json:"page"`
	Limit    int                      `json:"limit"`
	HasMore  bool                     `json:"hasMore"`
}

// Search filters all, orders the matches and returns the requested page.
func Search(all []models.ChargingStation, q Query) Result {
	page, limit := normalizePage(q.Page, q.Limit)

	matches := Filter(all, q.Filters)
	Sort(matches, q.Sort, q.Location != nil)

	total := len(matches)
	start := total
	if page-1 <= total/limit {
		start = min((page-1)*limit, total)
	}
	end := start + limit
	if end > total {
		end = total
	}

	return Result{
		Stations: matches[start:end],
		Total:    total,
		Page:     page,
		Limit:    limit,
		HasMore:  end < total,
	}
}

// Filter returns copies of the stations that pass every filter. With a
// location each copy carries its distance in miles.
func Filter(all []models.ChargingStation, f Filters) []models.ChargingStation {
	query := strings.ToLower(strings.TrimSpace(f.Query))
	out := make([]models.ChargingStation, 0, len(all))

	for _, station := range all {
		if len(f.ChargingSpeeds) > 0 && !contains(f.ChargingSpeeds, station.ChargingSpeed) {
			continue
		}
		if len(f.ConnectorTypes) > 0 && !hasAnyConnector(station, f.ConnectorTypes) {
			continue
		}
		if len(f.Amenities) > 0 && !containsAll(station.Amenities, f.Amenities) {
			continue
		}
		if f.Availability != nil && (station.Availability.Status == models.StatusAvailable) != *f.Availability {
			continue
		}
		if f.MinRating != nil && station.Rating < *f.MinRating {
			continue
		}
		if len(f.HostTypes) > 0 && !contains(f.HostTypes, station.HostType) {
			continue
		}
		if f.MinPrice != nil || f.MaxPrice != nil {
			perKwh := station.Pricing.PerKwh
			if perKwh == nil {
				continue
			}
			if f.MinPrice != nil && *perKwh < *f.MinPrice {
				continue
			}
			if f.MaxPrice != nil && *perKwh > *f.MaxPrice {
				continue
			}
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(station.Name), query) &&
			!strings.Contains(strings.ToLower(station.Address), query) {
			continue
		}

		if f.Location != nil {
			radius := f.Location.Radius
			if radius <= 0 {
				radius = DefaultRadius
			}
			d := geo.Distance(f.Location.Latitude, f.Location.Longitude, station.Latitude, station.Longitude, geo.Miles)
			if d > radius {
				continue
			}
			station.Distance = &d
		} else {
			station.Distance = nil
		}

		out = append(out, station)
	}

	return out
}

// Sort orders stations in place. Without an explicit key, located searches
// sort by distance and the rest by rating.
func Sort(list []models.ChargingStation, key string, located bool) {
	if key == "" || (key == SortDistance && !located) {
		if located {
			key = SortDistance
		} else {
			key = SortRating
		}
	}

	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		switch key {
		case SortDistance:
			if da, db := distanceOf(a), distanceOf(b); da != db {
				return da < db
			}
		case SortPrice:
			pa, pb := a.Pricing.PerKwh, b.Pricing.PerKwh
			switch {
			case pa != nil && pb == nil:
				return true
			case pa == nil && pb != nil:
				return false
			case pa != nil && pb != nil && *pa != *pb:
				return *pa < *pb
			}
		default:
			if a.Rating != b.Rating {
				return a.Rating > b.Rating
			}
		}
		return a.Name < b.Name
	})
}

// Nearby returns up to NearbyLimit stations within radius, closest first.
func Nearby(all []models.ChargingStation, lat, lng, radius float64) []models.ChargingStation {
	matches := Filter(all, Filters{Location: &Location{Latitude: lat, Longitude: lng, Radius: radius}})
	Sort(matches, SortDistance, true)
	if len(matches) > NearbyLimit {
		matches = matches[:NearbyLimit]
	}
	return matches
}

// TopRated returns the best reviewed stations. Unreviewed stations are left out.
func TopRated(all []models.ChargingStation) []models.ChargingStation {
	out := make([]models.ChargingStation, 0, len(all))
	for _, station := range all {
		if station.ReviewCount > 0 {
			out = append(out, station)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Rating != out[j].Rating {
			return out[i].Rating > out[j].Rating
		}
		if out[i].ReviewCount != out[j].ReviewCount {
			return out[i].ReviewCount > out[j].ReviewCount
		}
		return out[i].Name < out[j].Name
	})
	return head(out, HighlightLimit)
}

// Popular orders stations by recent booking count, then review count.
func Popular(all []models.ChargingStation, bookings map[string]int64) []models.ChargingStation {
	out := append([]models.ChargingStation(nil), all...)
	sort.SliceStable(out, func(i, j int) bool {
		bi, bj := bookings[out[i].ID], bookings[out[j].ID]
		if bi != bj {
			return bi > bj
		}
		if out[i].ReviewCount != out[j].ReviewCount {
			return out[i].ReviewCount > out[j].ReviewCount
		}
		return out[i].Name < out[j].Name
	})
	return head(out, HighlightLimit)
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}

func head(list []models.ChargingStation, n int) []models.ChargingStation {
	if len(list) > n {
		return list[:n]
	}
	return list
}

func distanceOf(s models.ChargingStation) float64 {
	if s.Distance == nil {
		return 1e9
	}
	return *s.Distance
}

func hasAnyConnector(station models.ChargingStation, wanted []string) bool {
	for _, c := range station.ConnectorTypes {
		if contains(wanted, c.Type) {
			return true
		}
	}
	return false
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}

func containsAll(have, want []string) bool {
	for _, w := range want {
		if !contains(have, w) {
			return false
		}
	}
	return true
}
