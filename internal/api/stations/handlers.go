// internal/api/stations/handlers.go
package stations

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/codr1/ChargeEase/internal/api/apiutil"
	"github.com/codr1/ChargeEase/internal/cache"
	"github.com/codr1/ChargeEase/internal/db"
	dbgen "github.com/codr1/ChargeEase/internal/db/generated"
	"github.com/codr1/ChargeEase/internal/geo"
	"github.com/codr1/ChargeEase/internal/models"
	"github.com/codr1/ChargeEase/internal/realtime"
	"github.com/codr1/ChargeEase/internal/request"
	"github.com/codr1/ChargeEase/internal/stations"
)

const (
	defaultReviewPageSize = 10
	maxReviewPageSize     = 50
)

var (
	queries      *dbgen.Queries
	stationCache *cache.Stations
	hub          *realtime.Hub
)

func InitHandlers(q *dbgen.Queries, stationsCache *cache.Stations, liveHub *realtime.Hub) {
	queries = q
	stationCache = stationsCache
	hub = liveHub
}

type reportRequest struct {
	Reason      string `json:"reason" validate:"required,max=100"`
	Description string `json:"description" validate:"max=1000"`
}

// GET /stations
func HandleSearch(w http.ResponseWriter, r *http.Request) error {
	query, err := ParseSearch(r)
	if err != nil {
		return err
	}

	all, err := stationCache.All(r.Context())
	if err != nil {
		return err
	}

	result := stations.Search(all, query)
	page := request.Pagination{Page: result.Page, Limit: result.Limit}
	return apiutil.Paginated(w, result, page, int64(result.Total))
}

// GET /stations/{id}
func HandleGet(w http.ResponseWriter, r *http.Request) error {
	station, err := loadStation(r)
	if err != nil {
		return err
	}
	return apiutil.Success(w, http.StatusOK, station)
}

// GET /stations/nearby
func HandleNearby(w http.ResponseWriter, r *http.Request) error {
	values := r.URL.Query()
	if values.Get("lat") == "" || values.Get("lng") == "" {
		return apiutil.BadRequest("lat and lng are required")
	}
	location, err := parseLocation(r)
	if err != nil {
		return err
	}

	all, err := stationCache.All(r.Context())
	if err != nil {
		return err
	}
	return apiutil.Success(w, http.StatusOK, stations.Nearby(all, location.Latitude, location.Longitude, location.Radius))
}

// GET /stations/popular
func HandlePopular(w http.ResponseWriter, r *http.Request) error {
	all, err := stationCache.All(r.Context())
	if err != nil {
		return err
	}
	counts, err := stationCache.BookingCounts(r.Context(), stations.PopularWindow)
	if err != nil {
		return err
	}
	return apiutil.Success(w, http.StatusOK, stations.Popular(all, counts))
}

// GET /stations/top-rated
func HandleTopRated(w http.ResponseWriter, r *http.Request) error {
	all, err := stationCache.All(r.Context())
	if err != nil {
		return err
	}
	return apiutil.Success(w, http.StatusOK, stations.TopRated(all))
}

// GET /stations/{id}/reviews
func HandleReviews(w http.ResponseWriter, r *http.Request) error {
	station, err := loadStation(r)
	if err != nil {
		return err
	}
	page, err := request.ParsePagination(r.URL.Query(), defaultReviewPageSize, maxReviewPageSize)
	if err != nil {
		return apiutil.BadRequest(err.Error())
	}

	rows, err := queries.ListStationReviews(r.Context(), station.ID, int64(page.Limit), int64(page.Offset()))
	if err != nil {
		return fmt.Errorf("list reviews: %w", err)
	}
	total, err := queries.CountStationReviews(r.Context(), station.ID)
	if err != nil {
		return fmt.Errorf("count reviews: %w", err)
	}

	reviews := make([]models.Review, 0, len(rows))
	for _, row := range rows {
		reviews = append(reviews, models.NewReview(row))
	}
	return apiutil.Paginated(w, map[string]any{"reviews": reviews, "total": total}, page, total)
}

// POST /stations/{id}/favorite
func HandleAddFavorite(w http.ResponseWriter, r *http.Request) error {
	user, err := apiutil.RequireUser(r)
	if err != nil {
		return err
	}
	station, err := loadStation(r)
	if err != nil {
		return err
	}

	if err := queries.AddFavorite(r.Context(), user.ID, station.ID, db.Now()); err != nil {
		return fmt.Errorf("add favorite: %w", err)
	}
	return apiutil.SuccessMessage(w, http.StatusOK, nil, "Station added to favorites")
}

// DELETE /stations/{id}/favorite
func HandleRemoveFavorite(w http.ResponseWriter, r *http.Request) error {
	user, err := apiutil.RequireUser(r)
	if err != nil {
		return err
	}
	station, err := loadStation(r)
	if err != nil {
		return err
	}

	if err := queries.RemoveFavorite(r.Context(), user.ID, station.ID); err != nil {
		return fmt.Errorf("remove favorite: %w", err)
	}
	return apiutil.SuccessMessage(w, http.StatusOK, nil, "Station removed from favorites")
}

// POST /stations/{id}/report
func HandleReport(w http.ResponseWriter, r *http.Request) error {
	user, err := apiutil.RequireUser(r)
	if err != nil {
		return err
	}
	station, err := loadStation(r)
	if err != nil {
		return err
	}

	var req reportRequest
	if err := apiutil.Decode(r, &req); err != nil {
		return err
	}

	description := strings.TrimSpace(req.Description)
	report := dbgen.StationReport{
		ID:          uuid.NewString(),
		StationID:   station.ID,
		UserID:      user.ID,
		Reason:      strings.TrimSpace(req.Reason),
		Description: sql.NullString{String: description, Valid: description != ""},
		CreatedAt:   db.Now(),
	}
	if err := queries.CreateStationReport(r.Context(), report); err != nil {
		return fmt.Errorf("create report: %w", err)
	}

	log.Ctx(r.Context()).Info().
		Str("station_id", station.ID).
		Str("reason", report.Reason).
		Msg("Station issue reported")
	return apiutil.SuccessMessage(w, http.StatusCreated, map[string]string{"id": report.ID}, "Report submitted")
}

// GET /stations/{id}/live
func HandleLive(w http.ResponseWriter, r *http.Request) error {
	station, err := loadStation(r)
	if err != nil {
		return err
	}
	return hub.Serve(w, r, realtime.UpdateFor(station, time.Now()))
}

// ParseSearch reads the station search query string.
func ParseSearch(r *http.Request) (stations.Query, error) {
	values := r.URL.Query()

	page, err := request.ParsePagination(values, stations.DefaultLimit, stations.MaxLimit)
	if err != nil {
		return stations.Query{}, apiutil.BadRequest(err.Error())
	}
	query := stations.Query{Page: page.Page, Limit: page.Limit}

	if values.Get("lat") != "" || values.Get("lng") != "" {
		location, err := parseLocation(r)
		if err != nil {
			return stations.Query{}, err
		}
		query.Location = &location
	}

	lists := []struct {
		key     string
		allowed []string
		dst     *[]string
	}{
		{"chargingSpeed", models.ChargingSpeeds, &query.ChargingSpeeds},
		{"connectorType", models.ConnectorTypes, &query.ConnectorTypes},
		{"hostType", models.HostTypes, &query.HostTypes},
		{"amenity", nil, &query.Amenities},
	}
	for _, list := range lists {
		for _, value := range request.Strings(values, list.key) {
			if list.allowed != nil && !slices.Contains(list.allowed, value) {
				return stations.Query{}, apiutil.BadRequest(fmt.Sprintf("%s must be one of %s", list.key, strings.Join(list.allowed, ", ")))
			}
			*list.dst = append(*list.dst, value)
		}
	}

	if query.Availability, err = request.Bool(values, "availability"); err != nil {
		return stations.Query{}, apiutil.BadRequest(err.Error())
	}
	if query.MinRating, err = request.Float(values, "rating"); err != nil {
		return stations.Query{}, apiutil.BadRequest(err.Error())
	}
	if query.MinPrice, err = request.Float(values, "minPrice"); err != nil {
		return stations.Query{}, apiutil.BadRequest(err.Error())
	}
	if query.MaxPrice, err = request.Float(values, "maxPrice"); err != nil {
		return stations.Query{}, apiutil.BadRequest(err.Error())
	}
	if query.MinPrice != nil && query.MaxPrice != nil && *query.MinPrice > *query.MaxPrice {
		return stations.Query{}, apiutil.BadRequest("minPrice must not exceed maxPrice")
	}
	query.Query = strings.TrimSpace(values.Get("q"))

	switch sortKey := values.Get("sort"); sortKey {
	case "", stations.SortDistance, stations.SortRating, stations.SortPrice:
		query.Sort = sortKey
	default:
		return stations.Query{}, apiutil.BadRequest("sort must be one of distance, rating, price")
	}

	return query, nil
}

func parseLocation(r *http.Request) (stations.Location, error) {
	values := r.URL.Query()
	lat, err := request.Float(values, "lat")
	if err != nil {
		return stations.Location{}, apiutil.BadRequest(err.Error())
	}
	lng, err := request.Float(values, "lng")
	if err != nil {
		return stations.Location{}, apiutil.BadRequest(err.Error())
	}
	if lat == nil || lng == nil {
		return stations.Location{}, apiutil.BadRequest("lat and lng must be given together")
	}
	if !geo.ValidCoordinates(*lat, *lng) {
		return stations.Location{}, apiutil.BadRequest("lat and lng are out of range")
	}

	radius := stations.DefaultRadius
	if value, err := request.Float(values, "radius"); err != nil {
		return stations.Location{}, apiutil.BadRequest(err.Error())
	} else if value != nil {
		if *value <= 0 {
			return stations.Location{}, apiutil.BadRequest("radius must be positive")
		}
		radius = *value
	}

	return stations.Location{Latitude: *lat, Longitude: *lng, Radius: radius}, nil
}

func loadStation(r *http.Request) (models.ChargingStation, error) {
	station, err := stationCache.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, cache.ErrStationNotFound) {
		return models.ChargingStation{}, apiutil.NotFound("Station not found")
	}
	return station, err
}
